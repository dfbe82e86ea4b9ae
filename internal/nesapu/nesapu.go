// Package nesapu models the four tone channels of the NES audio unit: two
// pulses, a triangle and noise. Each channel plays one note at a time and
// notes fade out on a 240 Hz frame clock once released.
package nesapu

import (
	"math"
	"strconv"
	"strings"
	"time"
)

const (
	twoPi     = math.Pi * 2
	frameRate = 240.0
)

type Params struct {
	MasterGain   float64
	PulseDutyA   float64
	PulseDutyB   float64
	ReleaseStep  float64
	NoiseCutoff  int
	TriangleGain float64
	PulseGain    float64
	NoiseGain    float64
	LPFCutoff    float64 // Hz, 0 disables
}

func DefaultParams() Params {
	return Params{
		MasterGain:   0.32,
		PulseDutyA:   0.125,
		PulseDutyB:   0.25,
		ReleaseStep:  1.0 / 48.0,
		NoiseCutoff:  84,
		TriangleGain: 0.85,
		PulseGain:    1.0,
		NoiseGain:    0.45,
		LPFCutoff:    12000,
	}
}

type Channel int

const (
	Auto Channel = iota - 1
	Pulse1
	Pulse2
	Triangle
	Noise
	channelCount
)

var channelNames = map[string]Channel{
	"":         Auto,
	"auto":     Auto,
	"pulse1":   Pulse1,
	"p1":       Pulse1,
	"pulse2":   Pulse2,
	"p2":       Pulse2,
	"triangle": Triangle,
	"tri":      Triangle,
	"noise":    Noise,
}

// LookupChannel resolves a channel by name or number 0-3. ok is false for
// anything else, which routes automatically.
func LookupChannel(key string) (Channel, bool) {
	key = strings.ToLower(strings.TrimSpace(key))
	if n, err := strconv.Atoi(key); err == nil {
		if n >= 0 && n < int(channelCount) {
			return Channel(n), true
		}
		return Auto, false
	}
	c, ok := channelNames[key]
	if !ok {
		return Auto, false
	}
	return c, true
}

// APU hands out channels to notes. A note that starts on a busy channel
// cuts the note holding it.
type APU struct {
	sampleRate  float64
	params      Params
	owners      [channelCount]*Voice
	counter     int
	framePeriod int
	lpfAlpha    float64
}

func New(sampleRate int, p Params) *APU {
	sr := float64(sampleRate)
	a := &APU{sampleRate: sr, params: p, framePeriod: int(sr / frameRate)}
	if a.framePeriod < 1 {
		a.framePeriod = 1
	}
	if p.ReleaseStep <= 0 {
		a.params.ReleaseStep = 1.0 / 48.0
	}
	if p.LPFCutoff > 0 {
		rc := 1.0 / (twoPi * math.Min(p.LPFCutoff, sr/2))
		dt := 1.0 / sr
		a.lpfAlpha = dt / (rc + dt)
	}
	return a
}

// route picks the channel for a note when none was requested: high notes
// go to noise, low notes to the triangle and the rest alternate between
// the pulses.
func (a *APU) route(note int) Channel {
	switch {
	case note >= a.params.NoiseCutoff:
		return Noise
	case note < 48:
		return Triangle
	}
	a.counter++
	if a.counter%2 == 1 {
		return Pulse1
	}
	return Pulse2
}

// NoteOn prepares a note on ch. The voice claims its channel when it
// renders its first frame. velocity is 0..1.
func (a *APU) NoteOn(note int, velocity float64, ch Channel) *Voice {
	if ch < Pulse1 || ch >= channelCount {
		ch = a.route(note)
	}
	freq := 440 * math.Pow(2, float64(note-69)/12)
	if ch == Noise {
		freq *= 8
	}
	return &Voice{
		apu:  a,
		ch:   ch,
		freq: freq,
		vol:  clamp(velocity, 0, 1),
		lfsr: seedLFSR(note),
	}
}

// Voice is one note on one channel.
type Voice struct {
	apu      *APU
	ch       Channel
	freq     float64
	phase    float64
	vol      float64
	lfsr     uint16
	clock    int
	lpf      float64
	started  bool
	released bool
	done     bool
}

func (v *Voice) Channel() Channel { return v.ch }

func (v *Voice) Release() { v.released = true }

// Tail is how long the release fade takes from the note's volume.
func (v *Voice) Tail() time.Duration {
	frames := math.Ceil(v.vol/v.apu.params.ReleaseStep - 1e-9)
	return time.Duration(frames / frameRate * float64(time.Second))
}

// Cut reports whether a later note took over the channel.
func (v *Voice) Cut() bool {
	return v.started && v.apu.owners[v.ch] != v
}

// Next renders one mono frame on both channels.
func (v *Voice) Next() (float32, float32, bool) {
	if v.done {
		return 0, 0, false
	}
	a := v.apu
	if !v.started {
		v.started = true
		a.owners[v.ch] = v
	}
	if a.owners[v.ch] != v {
		v.done = true
		return 0, 0, false
	}
	v.clock++
	if v.clock >= a.framePeriod {
		v.clock = 0
		if v.released {
			v.vol -= a.params.ReleaseStep
		}
	}
	if v.vol <= 0 {
		v.done = true
		a.owners[v.ch] = nil
		return 0, 0, false
	}
	sig := v.render() * quantize(v.vol, 16) * a.params.MasterGain
	if a.lpfAlpha > 0 {
		v.lpf += a.lpfAlpha * (sig - v.lpf)
		sig = v.lpf
	}
	out := float32(clamp(sig, -1, 1))
	return out, out, true
}

func (v *Voice) render() float64 {
	p := v.apu.params
	dt := v.freq / v.apu.sampleRate
	v.phase += dt
	wrapped := v.phase >= 1
	if wrapped {
		v.phase -= math.Floor(v.phase)
	}
	switch v.ch {
	case Pulse1:
		return pulse(v.phase, dt, p.PulseDutyA) * p.PulseGain
	case Pulse2:
		return pulse(v.phase, dt, p.PulseDutyB) * p.PulseGain
	case Triangle:
		return (2*math.Abs(2*v.phase-1) - 1) * p.TriangleGain
	}
	if wrapped || dt >= 1 {
		bit := (v.lfsr ^ (v.lfsr >> 1)) & 1
		v.lfsr = (v.lfsr >> 1) | (bit << 15)
	}
	out := -1.0
	if v.lfsr&1 == 1 {
		out = 1
	}
	return out * p.NoiseGain
}

func pulse(phase, dt, duty float64) float64 {
	out := -1.0
	if phase < duty {
		out = 1
	}
	if dt < 1 {
		out += polyBLEP(phase, dt)
		out -= polyBLEP(math.Mod(phase-duty+1, 1), dt)
	}
	return out
}

// polyBLEP reduces aliasing at waveform discontinuities.
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

func quantize(v float64, steps int) float64 {
	if steps <= 1 {
		return clamp(v, 0, 1)
	}
	return clamp(math.Round(v*float64(steps-1))/float64(steps-1), 0, 1)
}

func seedLFSR(note int) uint16 {
	s := uint16(0xACE1) ^ uint16((note&0x7f)<<1)
	if s == 0 {
		return 0xACE1
	}
	return s
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
