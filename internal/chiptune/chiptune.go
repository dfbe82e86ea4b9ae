// Package chiptune renders notes on pulse, triangle and noise waves with a
// stepped volume envelope, the way early sound chips did.
package chiptune

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/cbegin/loopcode/internal/lfo"
)

type Params struct {
	AttackSec   float64
	DecaySec    float64
	SustainLvl  float64
	ReleaseSec  float64
	StepLevels  int
	PulseDutyA  float64
	PulseDutyB  float64
	VelocityAmp float64
	Gain        float64
	Vibrato     float64 // semitones
	VibratoHz   float64
}

func DefaultParams() Params {
	return Params{
		AttackSec:   0.005,
		DecaySec:    0.15,
		SustainLvl:  0.65,
		ReleaseSec:  0.20,
		StepLevels:  16,
		PulseDutyA:  0.125,
		PulseDutyB:  0.25,
		VelocityAmp: 0.85,
		Gain:        0.28,
		VibratoHz:   6,
	}
}

type Wave int

const (
	PulseA Wave = iota
	PulseB
	Triangle
	Noise
)

var waveNames = map[string]Wave{
	"pulse":    PulseA,
	"pulse12":  PulseA,
	"pulse25":  PulseB,
	"triangle": Triangle,
	"tri":      Triangle,
	"noise":    Noise,
}

// WaveForProgram maps a program number onto a wave: 0-31 pulse 12.5%,
// 32-63 pulse 25%, 64-95 triangle and 96 and up noise. Numbers below 4
// select the waves directly.
func WaveForProgram(program int) Wave {
	switch {
	case program < 0:
		return PulseA
	case program < 4:
		return Wave(program)
	case program >= 96:
		return Noise
	case program >= 64:
		return Triangle
	case program >= 32:
		return PulseB
	}
	return PulseA
}

// LookupWave resolves a wave by name or program number. ok is false for
// unknown names, which play as PulseA.
func LookupWave(key string) (Wave, bool) {
	key = strings.ToLower(strings.TrimSpace(key))
	if key == "" {
		return PulseA, true
	}
	if n, err := strconv.Atoi(key); err == nil {
		return WaveForProgram(n), true
	}
	w, ok := waveNames[key]
	return w, ok
}

type envState int

const (
	envAttack envState = iota
	envDecay
	envSustain
	envRelease
	envOff
)

// Voice is one chip note. It sustains until Release.
type Voice struct {
	params     Params
	sampleRate float64
	wave       Wave
	freq       float64
	phase      float64
	velocity   float64
	env        float64
	state      envState
	noiseLFSR  uint16
	vibrato    *lfo.LFO
	dcIn       float64
	dcOut      float64
	done       bool
}

// NewVoice starts a note. velocity is 0..1.
func NewVoice(sampleRate, note int, velocity float64, wave Wave, p Params) *Voice {
	return &Voice{
		params:     p,
		sampleRate: float64(sampleRate),
		wave:       wave,
		freq:       440 * math.Pow(2, float64(note-69)/12),
		velocity:   clamp(velocity, 0, 1),
		noiseLFSR:  1,
		vibrato:    lfo.New(lfo.Triangle, p.VibratoHz, p.Vibrato),
	}
}

func (v *Voice) Release() {
	if v.state != envOff {
		v.state = envRelease
	}
}

func (v *Voice) Tail() time.Duration {
	return time.Duration(v.params.ReleaseSec * float64(time.Second))
}

// Next renders one mono frame on both channels.
func (v *Voice) Next() (float32, float32, bool) {
	if v.done {
		return 0, 0, false
	}
	env := v.advanceEnv()
	if v.state == envOff {
		v.done = true
		return 0, 0, false
	}
	freq := v.freq
	if bend := v.vibrato.Next(v.sampleRate); bend != 0 {
		freq *= math.Pow(2, bend/12.0)
	}
	level := quantize(env*(0.15+v.velocity*v.params.VelocityAmp), v.params.StepLevels)
	sig := v.renderWave(freq) * level * v.params.Gain
	// DC blocker keeps narrow pulses centred.
	y := sig - v.dcIn + 0.995*v.dcOut
	v.dcIn, v.dcOut = sig, y
	out := float32(clamp(y, -1, 1))
	return out, out, true
}

func (v *Voice) renderWave(freq float64) float64 {
	dt := freq / v.sampleRate
	v.phase += dt
	if v.phase >= 1 {
		v.phase -= 1
	}
	switch v.wave {
	case PulseA:
		return pulse(v.phase, dt, v.params.PulseDutyA)
	case PulseB:
		return pulse(v.phase, dt, v.params.PulseDutyB)
	case Triangle:
		return 2*math.Abs(2*v.phase-1) - 1
	case Noise:
		if v.phase < dt {
			bit := (v.noiseLFSR ^ (v.noiseLFSR >> 1)) & 1
			v.noiseLFSR = (v.noiseLFSR >> 1) | (bit << 14)
		}
		if v.noiseLFSR&1 == 1 {
			return 1
		}
		return -1
	}
	return 0
}

func pulse(phase, dt, duty float64) float64 {
	out := -1.0
	if phase < duty {
		out = 1
	}
	out += polyBLEP(phase, dt)
	out -= polyBLEP(math.Mod(phase-duty+1, 1), dt)
	return out
}

// polyBLEP reduces aliasing at waveform discontinuities.
// t is the phase position [0,1), dt is the phase increment per sample.
func polyBLEP(t, dt float64) float64 {
	if t < dt {
		t /= dt
		return t + t - t*t - 1
	}
	if t > 1-dt {
		t = (t - 1) / dt
		return t*t + t + t + 1
	}
	return 0
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
		v.env -= step(1, p.ReleaseSec, v.sampleRate)
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

func quantize(v float64, steps int) float64 {
	if steps <= 1 {
		return v
	}
	n := math.Round(v*float64(steps-1)) / float64(steps-1)
	return clamp(n, 0, 1)
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
