package synth

import (
	"math"
	"time"
)

// Voice renders one note or drum hit as mono audio duplicated on both
// channels. It satisfies effects.Source.
type Voice struct {
	gen    func() (float64, bool)
	frames int
	done   bool
}

// Next returns the next frame. ok is false once the voice has finished.
func (v *Voice) Next() (float32, float32, bool) {
	if v.done {
		return 0, 0, false
	}
	s, ok := v.gen()
	if !ok {
		v.done = true
		return 0, 0, false
	}
	out := float32(s)
	return out, out, true
}

// Frames is the nominal length of the voice in frames.
func (v *Voice) Frames() int { return v.frames }

// Length is the nominal length of the voice.
func (v *Voice) Length(sampleRate int) time.Duration {
	return time.Duration(float64(v.frames) / float64(sampleRate) * float64(time.Second))
}

// Done reports whether the voice has produced its last frame.
func (v *Voice) Done() bool { return v.done }

// NewNote builds a note voice that holds for dur and then releases. Unknown
// synth names render as a sine; known reports whether name was recognised.
func NewNote(sampleRate int, note int, synth string, dur time.Duration, p Params) (v *Voice, known bool) {
	wave, known := LookupWaveform(synth)
	sr := float64(sampleRate)
	osc := newOscillator(wave, MIDIToFreq(note), sr)
	env := newEnvelope(p, sr)
	gate := int(dur.Seconds() * sr)
	if gate < 1 {
		gate = 1
	}
	frame := 0
	level := p.Level
	v = &Voice{frames: gate + int(p.ReleaseSec*sr)}
	v.gen = func() (float64, bool) {
		if frame == gate {
			env.release()
		}
		frame++
		a := env.next()
		if env.done() {
			return 0, false
		}
		return osc.next() * a * level, true
	}
	return v, known
}

// Drum names with a synthesized fallback.
var drumNames = []string{"bd", "sd", "hh", "oh", "cp"}

var drumAliases = map[string]string{
	"bd": "bd", "kick": "bd",
	"sd": "sd", "snare": "sd",
	"hh": "hh", "hat": "hh", "ch": "hh",
	"oh": "oh",
	"cp": "cp", "clap": "cp",
}

// DrumNames lists the drums NewDrum can synthesize.
func DrumNames() []string { return append([]string(nil), drumNames...) }

// HasDrum reports whether NewDrum can render name.
func HasDrum(name string) bool {
	_, ok := drumAliases[BaseName(name)]
	return ok
}

// CanonicalDrum resolves an alias such as "kick" to its drum name.
func CanonicalDrum(name string) (string, bool) {
	d, ok := drumAliases[BaseName(name)]
	return d, ok
}

// BaseName strips a bank index suffix: "bd:3" becomes "bd".
func BaseName(name string) string {
	for i := 0; i < len(name); i++ {
		if name[i] == ':' {
			return name[:i]
		}
	}
	return name
}

// NewDrum synthesizes a drum hit. ok is false when name has no drum.
func NewDrum(sampleRate int, name string) (*Voice, bool) {
	drum, ok := drumAliases[BaseName(name)]
	if !ok {
		return nil, false
	}
	sr := float64(sampleRate)
	var (
		length float64
		render func(t float64) float64
		n      noise
		prev   float64
	)
	highNoise := func() float64 {
		x := n.next()
		y := x - prev
		prev = x
		return y * 0.5
	}
	phase := 0.0
	switch drum {
	case "bd":
		length = 0.5
		render = func(t float64) float64 {
			freq := 50 + 100*math.Exp(-t/0.03)
			phase += freq / sr
			return math.Sin(twoPi*phase) * math.Exp(-t/0.15) * 0.9
		}
	case "sd":
		length = 0.3
		render = func(t float64) float64 {
			phase += 180 / sr
			tone := math.Sin(twoPi*phase) * math.Exp(-t/0.08)
			return (0.5*n.next()*math.Exp(-t/0.06) + 0.4*tone) * 0.8
		}
	case "hh":
		length = 0.08
		render = func(t float64) float64 {
			return highNoise() * math.Exp(-t/0.02) * 0.6
		}
	case "oh":
		length = 0.4
		render = func(t float64) float64 {
			return highNoise() * math.Exp(-t/0.15) * 0.5
		}
	case "cp":
		length = 0.3
		render = func(t float64) float64 {
			env := 0.0
			for _, at := range []float64{0, 0.01, 0.02} {
				if t >= at {
					env += math.Exp(-(t - at) / 0.008)
				}
			}
			if t >= 0.02 {
				env += 0.6 * math.Exp(-(t-0.02)/0.08)
			}
			return n.next() * env * 0.4
		}
	}
	total := int(length * sr)
	frame := 0
	v := &Voice{frames: total}
	v.gen = func() (float64, bool) {
		if frame >= total {
			return 0, false
		}
		t := float64(frame) / sr
		frame++
		return render(t), true
	}
	return v, true
}
