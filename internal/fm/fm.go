// Package fm renders four-operator FM notes. Patches use the OPM layout:
// algorithm and feedback followed by eleven values per operator.
package fm

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"

	"github.com/cbegin/loopcode/internal/lfo"
)

const twoPi = math.Pi * 2

// opmValues is the length of an OPM patch: alg, fb, then 4 operators with
// AR, D1R, D2R, RR, D1L, TL, KS, MUL, DT1, DT2, AMS each.
const opmValues = 2 + 4*11

// Operator is one sine operator with its own envelope. Times are seconds,
// Sustain and Level are 0..1.
type Operator struct {
	Attack  float64
	Decay   float64
	Sustain float64
	Release float64
	Level   float64
	Mul     float64
}

// Patch describes how operators connect and sound. Index scales modulator
// output into carrier phase and Vibrato is a pitch LFO depth in semitones.
type Patch struct {
	Name      string
	Algorithm int
	Feedback  float64
	Ops       int
	Operators [4]Operator
	Index     float64
	Waveform  int
	Vibrato   float64
}

var opmNumRegex = regexp.MustCompile(`-?\d+`)

// ParsePatch reads an OPM patch body such as "{ 3, 0, 31, 10, ... }".
func ParsePatch(name, body string) (Patch, error) {
	if i := strings.IndexByte(body, '{'); i >= 0 {
		body = body[i:]
	}
	nums := opmNumRegex.FindAllString(body, -1)
	if len(nums) < opmValues {
		msg := "FM patch " + name + " needs " + strconv.Itoa(opmValues) + " values, got " + strconv.Itoa(len(nums))
		return Patch{}, fault.New(msg, fmsg.WithDesc(msg, msg))
	}
	data := make([]int, opmValues)
	for i := range data {
		n, err := strconv.Atoi(nums[i])
		if err != nil {
			return Patch{}, fault.Wrap(err, fmsg.With("parse FM patch "+name))
		}
		data[i] = n
	}
	return opmPatch(name, data), nil
}

// opmPatch converts register-style OPM values into seconds and levels.
func opmPatch(name string, data []int) Patch {
	p := Patch{
		Name:      name,
		Algorithm: clampInt(data[0], 0, 7),
		Feedback:  float64(clampInt(data[1], 0, 7)) / 7.0,
		Ops:       4,
		Index:     1.6,
	}
	for oi := 0; oi < 4; oi++ {
		base := 2 + oi*11
		ar, d1r, rr, d1l, tl, mul := data[base], data[base+1], data[base+3], data[base+4], data[base+5], data[base+7]
		op := &p.Operators[oi]
		op.Attack = clamp(0.001+float64(31-clampInt(ar, 0, 31))/31.0*0.3, 0.001, 8)
		op.Decay = clamp(0.01+float64(31-clampInt(d1r, 0, 31))/31.0*0.2, 0.01, 4)
		op.Release = clamp(0.01+float64(15-clampInt(rr, 0, 15))/15.0*0.3, 0.01, 4)
		op.Sustain = float64(clampInt(d1l, 0, 15)) / 15.0
		op.Level = (127 - float64(clampInt(tl, 0, 127))) / 127.0
		if mul == 0 {
			op.Mul = 0.5
		} else {
			op.Mul = float64(clampInt(mul, 0, 15))
		}
	}
	return p
}

// DefaultPatch is a two-operator serial voice with a modulator at twice the
// carrier frequency.
func DefaultPatch() Patch {
	p := Patch{Name: "default", Ops: 2, Index: 1.6}
	muls := [4]float64{1, 2, 3, 4}
	for oi := range p.Operators {
		p.Operators[oi] = Operator{Attack: 0.005, Decay: 0.12, Sustain: 0.75, Release: 0.2, Level: 0.2, Mul: muls[oi]}
	}
	p.Operators[0].Level = 1
	return p
}

var presetDefs = []struct{ name, body string }{
	{"piano", `{ 3, 0,
		31, 10, 0, 6, 4, 0, 0, 1, 0, 0, 0,
		31, 12, 0, 6, 3, 8, 0, 1, 0, 0, 0,
		31, 14, 0, 6, 2, 52, 0, 14, 0, 0, 0,
		31, 10, 0, 6, 2, 44, 0, 1, 0, 0, 0 }`},
	{"bass", `{ 0, 5,
		31, 14, 0, 8, 8, 0, 0, 1, 0, 0, 0,
		31, 16, 0, 8, 6, 40, 0, 1, 0, 0, 0,
		31, 18, 0, 8, 4, 60, 0, 2, 0, 0, 0,
		31, 20, 0, 8, 2, 70, 0, 1, 0, 0, 0 }`},
	{"bell", `{ 3, 0,
		31, 6, 0, 3, 2, 0, 0, 1, 0, 0, 0,
		31, 5, 0, 3, 2, 10, 0, 2, 0, 0, 0,
		31, 8, 0, 3, 1, 40, 0, 7, 0, 0, 0,
		31, 7, 0, 3, 1, 36, 0, 3, 0, 0, 0 }`},
	{"brass", `{ 2, 4,
		24, 4, 0, 7, 12, 0, 0, 1, 0, 0, 0,
		22, 4, 0, 7, 12, 30, 0, 1, 0, 0, 0,
		20, 6, 0, 7, 10, 60, 0, 1, 0, 0, 0,
		20, 6, 0, 7, 10, 64, 0, 2, 0, 0, 0 }`},
	{"organ", `{ 5, 0,
		31, 0, 0, 9, 15, 0, 0, 1, 0, 0, 0,
		31, 0, 0, 9, 15, 12, 0, 2, 0, 0, 0,
		31, 0, 0, 9, 15, 20, 0, 4, 0, 0, 0,
		31, 0, 0, 9, 15, 28, 0, 8, 0, 0, 0 }`},
}

var presets = buildPresets()

func buildPresets() []Patch {
	out := []Patch{DefaultPatch()}
	for _, d := range presetDefs {
		p, err := ParsePatch(d.name, d.body)
		if err != nil {
			panic(err)
		}
		if d.name == "brass" || d.name == "organ" {
			p.Vibrato = 0.15
		}
		out = append(out, p)
	}
	return out
}

// Preset returns a built-in patch by number or name. Numbers wrap around;
// ok is false for unknown names.
func Preset(key string) (Patch, bool) {
	if key == "" {
		return presets[0], true
	}
	if n, err := strconv.Atoi(key); err == nil {
		if n < 0 {
			n = -n
		}
		return presets[n%len(presets)], true
	}
	for _, p := range presets {
		if p.Name == strings.ToLower(key) {
			return p, true
		}
	}
	return presets[0], false
}

// PresetNames lists the built-in patches in number order.
func PresetNames() []string {
	out := make([]string, len(presets))
	for i, p := range presets {
		out[i] = p.Name
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

type operator struct {
	Operator
	phase   float64
	env     float64
	state   envState
	relStep float64
	prevOut float64
}

// Voice is one FM note. It sustains until Release.
type Voice struct {
	sampleRate float64
	freq       float64
	gain       float64
	patch      Patch
	ops        [4]operator
	vibrato    *lfo.LFO
	lpfAlpha   float64
	lpf        float64
	done       bool
}

// NewVoice starts a note. velocity is 0..1.
func NewVoice(sampleRate, note int, velocity float64, p Patch) *Voice {
	if p.Ops < 1 || p.Ops > 4 {
		p.Ops = 4
	}
	sr := float64(sampleRate)
	v := &Voice{
		sampleRate: sr,
		freq:       440 * math.Pow(2, float64(note-69)/12),
		gain:       0.45 * (0.2 + clamp(velocity, 0, 1)*0.8),
		patch:      p,
		vibrato:    lfo.New(lfo.Sine, 5.5, p.Vibrato),
	}
	for oi := 0; oi < p.Ops; oi++ {
		v.ops[oi] = operator{Operator: p.Operators[oi]}
	}
	cutoff := math.Min(12000, sr*0.45)
	rc := 1.0 / (twoPi * cutoff)
	dt := 1.0 / sr
	v.lpfAlpha = dt / (rc + dt)
	return v
}

// Release moves every operator into its release stage.
func (v *Voice) Release() {
	for oi := 0; oi < v.patch.Ops; oi++ {
		op := &v.ops[oi]
		if op.state == envOff || op.state == envRelease {
			continue
		}
		op.state = envRelease
		op.relStep = op.env / (op.Release * v.sampleRate)
		if op.relStep <= 0 {
			op.relStep = 1
		}
	}
}

// Tail is the longest operator release.
func (v *Voice) Tail() time.Duration {
	var longest float64
	for oi := 0; oi < v.patch.Ops; oi++ {
		longest = math.Max(longest, v.ops[oi].Release)
	}
	return time.Duration(longest * float64(time.Second))
}

// Next renders one mono frame on both channels. ok is false once every
// operator envelope has closed.
func (v *Voice) Next() (float32, float32, bool) {
	if v.done {
		return 0, 0, false
	}
	allOff := true
	for oi := 0; oi < v.patch.Ops; oi++ {
		v.ops[oi].advance(v.sampleRate)
		if v.ops[oi].state != envOff {
			allOff = false
		}
	}
	if allOff {
		v.done = true
		return 0, 0, false
	}
	sig := v.render() * v.gain
	v.lpf += v.lpfAlpha * (sig - v.lpf)

	freqMul := 1.0
	if bend := v.vibrato.Next(v.sampleRate); bend != 0 {
		freqMul = math.Pow(2, bend/12.0)
	}
	for oi := 0; oi < v.patch.Ops; oi++ {
		op := &v.ops[oi]
		op.phase += twoPi * v.freq * freqMul * op.Mul / v.sampleRate
		if op.phase > twoPi {
			op.phase -= twoPi
		}
	}
	out := float32(clamp(v.lpf, -1, 1))
	return out, out, true
}

// render mixes the operators for the patch algorithm.
func (v *Voice) render() float64 {
	ops := &v.ops
	idx := v.patch.Index
	fbAmt := v.patch.Feedback
	wave := v.patch.Waveform
	var out [4]float64
	for oi := 0; oi < v.patch.Ops; oi++ {
		out[oi] = ops[oi].env * ops[oi].Level
	}
	// modulate runs a feedback-capable sine modulator and returns its phase
	// offset for the next operator.
	modulate := func(oi int, in float64, fb bool) float64 {
		ph := ops[oi].phase + in
		if fb {
			ph += ops[oi].prevOut * fbAmt * math.Pi
		}
		s := math.Sin(ph) * out[oi]
		ops[oi].prevOut = s
		return s * idx
	}
	carrier := func(oi int, in float64) float64 {
		return waveformSample(ops[oi].phase+in, wave) * out[oi]
	}

	switch v.patch.Ops {
	case 1:
		fb := ops[0].prevOut * fbAmt * math.Pi
		s := carrier(0, fb)
		ops[0].prevOut = s
		return s
	case 2:
		if v.patch.Algorithm == 1 {
			return (carrier(0, 0) + carrier(1, 0)) / math.Sqrt2
		}
		return carrier(0, modulate(1, 0, true))
	case 3:
		switch v.patch.Algorithm {
		case 1:
			return carrier(0, modulate(1, modulate(2, 0, true), false))
		case 2:
			return carrier(0, modulate(1, 0, false)+modulate(2, 0, false))
		case 3:
			return (carrier(0, 0) + carrier(1, 0) + carrier(2, 0)) / math.Sqrt(3)
		default:
			return carrier(0, modulate(1, modulate(2, 0, false), false))
		}
	}
	switch v.patch.Algorithm {
	case 1:
		return carrier(0, modulate(1, modulate(2, modulate(3, 0, false), false), false))
	case 2:
		return carrier(0, modulate(1, modulate(2, 0, false)+modulate(3, 0, false), false))
	case 3:
		c0 := carrier(0, modulate(3, 0, true))
		c1 := carrier(1, modulate(2, 0, false))
		return (c0 + c1) / math.Sqrt2
	case 4:
		s1 := math.Sin(ops[1].phase+modulate(2, modulate(3, 0, false), false)) * out[1]
		return (carrier(0, 0) + s1) / math.Sqrt2
	case 5:
		s := 0.0
		for oi := 0; oi < 4; oi++ {
			s += carrier(oi, 0)
		}
		return s * 0.5
	default:
		return carrier(0, modulate(1, modulate(2, modulate(3, 0, true), false), false))
	}
}

func (op *operator) advance(sampleRate float64) {
	switch op.state {
	case envAttack:
		op.env += 1.0 / (op.Attack * sampleRate)
		if op.env >= 1 {
			op.env = 1
			op.state = envDecay
		}
	case envDecay:
		step := (1 - op.Sustain) / (op.Decay * sampleRate)
		if step <= 0 {
			step = 1
		}
		op.env -= step
		if op.env <= op.Sustain {
			op.env = op.Sustain
			op.state = envSustain
		}
	case envSustain:
	case envRelease:
		op.env -= op.relStep
		if op.env <= 0.0001 {
			op.env = 0
			op.state = envOff
		}
	case envOff:
		op.env = 0
	}
}

// waveformSample evaluates carrier waveform w at phase (radians):
// 0 sine, 1 saw, 2 triangle, 3 square, 4 pulse 25%, 5 pulse 12.5%,
// 6 half-rectified sine.
func waveformSample(phase float64, w int) float64 {
	m := math.Mod(phase, twoPi)
	if m < 0 {
		m += twoPi
	}
	switch w {
	case 1:
		return 1.0 - 2.0*m/twoPi
	case 2:
		return 2.0*math.Abs(2.0*m/twoPi-1.0) - 1.0
	case 3:
		return pulse(m, math.Pi)
	case 4:
		return pulse(m, math.Pi/2)
	case 5:
		return pulse(m, math.Pi/4)
	case 6:
		return math.Max(math.Sin(phase), 0)
	default:
		return math.Sin(phase)
	}
}

func pulse(m, width float64) float64 {
	if m < width {
		return 1
	}
	return -1
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
