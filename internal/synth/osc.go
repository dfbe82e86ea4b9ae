package synth

import "math"

const twoPi = math.Pi * 2

// Waveform selects the oscillator of a note voice.
type Waveform string

const (
	Sine     Waveform = "sine"
	Square   Waveform = "square"
	Saw      Waveform = "saw"
	Triangle Waveform = "triangle"
)

var waveAliases = map[string]Waveform{
	"":         Sine,
	"sine":     Sine,
	"sin":      Sine,
	"square":   Square,
	"sqr":      Square,
	"pulse":    Square,
	"saw":      Saw,
	"sawtooth": Saw,
	"triangle": Triangle,
	"tri":      Triangle,
}

// LookupWaveform resolves a synth name. ok is false for unknown names,
// which callers render as Sine.
func LookupWaveform(name string) (Waveform, bool) {
	w, ok := waveAliases[name]
	if !ok {
		return Sine, false
	}
	return w, true
}

type oscillator struct {
	wave  Waveform
	phase float64
	dt    float64
}

func newOscillator(wave Waveform, freq, sampleRate float64) oscillator {
	return oscillator{wave: wave, dt: freq / sampleRate}
}

func (o *oscillator) next() float64 {
	o.phase += o.dt
	if o.phase >= 1 {
		o.phase -= 1
	}
	switch o.wave {
	case Square:
		out := -1.0
		if o.phase < 0.5 {
			out = 1
		}
		out += polyBLEP(o.phase, o.dt)
		out -= polyBLEP(math.Mod(o.phase+0.5, 1), o.dt)
		return out * 0.6
	case Saw:
		out := 2*o.phase - 1
		out -= polyBLEP(o.phase, o.dt)
		return out * 0.6
	case Triangle:
		return 2*math.Abs(2*o.phase-1) - 1
	default:
		return math.Sin(twoPi * o.phase)
	}
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

// MIDIToFreq converts a MIDI note number to Hz.
func MIDIToFreq(note int) float64 {
	return 440 * math.Pow(2, float64(note-69)/12)
}

// noise is a 16-bit LFSR white noise source.
type noise struct {
	lfsr uint16
}

func (n *noise) next() float64 {
	if n.lfsr == 0 {
		n.lfsr = 0xACE1
	}
	bit := (n.lfsr ^ (n.lfsr >> 2) ^ (n.lfsr >> 3) ^ (n.lfsr >> 5)) & 1
	n.lfsr = (n.lfsr >> 1) | (bit << 15)
	return float64(n.lfsr)/32768.0 - 1
}
