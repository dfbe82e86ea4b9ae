// Package wavetable plays notes from short single-cycle tables. Tables are
// written as WAVB hex: one signed byte per sample.
package wavetable

import (
	"encoding/hex"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
)

type Params struct {
	AttackSec   float64
	DecaySec    float64
	SustainLvl  float64
	ReleaseSec  float64
	VelocityAmp float64
	Gain        float64
}

func DefaultParams() Params {
	return Params{
		AttackSec:   0.005,
		DecaySec:    0.12,
		SustainLvl:  0.75,
		ReleaseSec:  0.2,
		VelocityAmp: 0.8,
		Gain:        0.4,
	}
}

// ParseWAVB converts hex pairs of signed 8-bit values into samples in
// [-1, 1].
func ParseWAVB(h string) ([]float64, error) {
	h = strings.Join(strings.Fields(h), "")
	data, err := hex.DecodeString(h)
	if err != nil {
		return nil, fault.Wrap(err, fmsg.WithDesc("parse wavetable", "Wavetable data must be hex byte pairs"))
	}
	if len(data) == 0 {
		return nil, fault.New("empty wavetable", fmsg.WithDesc("empty wavetable", "Wavetable has no samples"))
	}
	out := make([]float64, len(data))
	for i, b := range data {
		out[i] = float64(int8(b)) / 127.0
	}
	return out, nil
}

var tableDefs = []struct{ name, wavb string }{
	{"organ", "002b4b5b5c554e4c4c4a3f2a10faeff3000d1106f0d6c1b6b4b4b2aba4a5b5d5"},
	{"buzz", "8189919aa2aab2bac3cbd3dbe3ecf4fc3f372e261d150c04fcf3ebe2dad1c9c0"},
	{"hollow", "000107162d4964787f7864492d16070100fff9ead3b79c8881889cb7d3eaf9ff"},
}

type table struct {
	name    string
	samples []float64
}

var tables = buildTables()

func buildTables() []table {
	sine := make([]float64, 64)
	for i := range sine {
		sine[i] = math.Sin(2 * math.Pi * float64(i) / float64(len(sine)))
	}
	out := []table{{"sine", sine}}
	for _, d := range tableDefs {
		s, err := ParseWAVB(d.wavb)
		if err != nil {
			panic(err)
		}
		out = append(out, table{d.name, s})
	}
	return out
}

// Lookup returns a built-in table by slot number or name. Slot numbers wrap
// around; ok is false for unknown names, which play the sine table.
func Lookup(key string) ([]float64, bool) {
	key = strings.ToLower(strings.TrimSpace(key))
	if key == "" {
		return tables[0].samples, true
	}
	if n, err := strconv.Atoi(key); err == nil {
		if n < 0 {
			n = -n
		}
		return tables[n%len(tables)].samples, true
	}
	for _, t := range tables {
		if t.name == key {
			return t.samples, true
		}
	}
	return tables[0].samples, false
}

// Names lists the built-in tables in slot order.
func Names() []string {
	out := make([]string, len(tables))
	for i, t := range tables {
		out[i] = t.name
	}
	return out
}

type envState int

const (
	envAttack envState = iota
	envDecay
	envSustain
	envRelease
	envOff
)

// Voice reads one table at the note's pitch. It sustains until Release.
type Voice struct {
	params     Params
	sampleRate float64
	table      []float64
	step       float64
	phase      float64
	velocity   float64
	env        float64
	state      envState
	relStep    float64
	done       bool
}

// NewVoice starts a note on table. velocity is 0..1.
func NewVoice(sampleRate, note int, velocity float64, table []float64, p Params) *Voice {
	if len(table) == 0 {
		table = tables[0].samples
	}
	freq := 440 * math.Pow(2, float64(note-69)/12)
	return &Voice{
		params:     p,
		sampleRate: float64(sampleRate),
		table:      table,
		step:       freq * float64(len(table)) / float64(sampleRate),
		velocity:   math.Max(0, math.Min(1, velocity)),
	}
}

func (v *Voice) Release() {
	if v.state == envOff || v.state == envRelease {
		return
	}
	v.state = envRelease
	v.relStep = v.env / (v.params.ReleaseSec * v.sampleRate)
	if v.relStep <= 0 || v.params.ReleaseSec <= 0 {
		v.relStep = 1
	}
}

func (v *Voice) Tail() time.Duration {
	return time.Duration(v.params.ReleaseSec * float64(time.Second))
}

// Next renders one mono frame on both channels with linear interpolation
// between table entries.
func (v *Voice) Next() (float32, float32, bool) {
	if v.done {
		return 0, 0, false
	}
	env := v.advanceEnv()
	if v.state == envOff {
		v.done = true
		return 0, 0, false
	}
	n := len(v.table)
	i0 := int(v.phase)
	frac := v.phase - float64(i0)
	i1 := (i0 + 1) % n
	sig := v.table[i0]*(1-frac) + v.table[i1]*frac
	sig *= env * v.params.Gain * (0.2 + v.velocity*v.params.VelocityAmp)

	tableLen := float64(n)
	v.phase += v.step
	for v.phase >= tableLen {
		v.phase -= tableLen
	}
	out := float32(sig)
	return out, out, true
}

func (v *Voice) advanceEnv() float64 {
	p := v.params
	switch v.state {
	case envAttack:
		v.env += step(1, p.AttackSec, v.sampleRate)
		if v.env >= 1 {
			v.env = 1
			v.state = envDecay
		}
	case envDecay:
		v.env -= step(1-p.SustainLvl, p.DecaySec, v.sampleRate)
		if v.env <= p.SustainLvl {
			v.env = p.SustainLvl
			v.state = envSustain
		}
	case envSustain:
	case envRelease:
		v.env -= v.relStep
		if v.env <= 0.0001 {
			v.env = 0
			v.state = envOff
		}
	case envOff:
		v.env = 0
	}
	return v.env
}

func step(span, sec, sampleRate float64) float64 {
	s := span / (sec * sampleRate)
	if s <= 0 || sec <= 0 {
		return 1
	}
	return s
}
