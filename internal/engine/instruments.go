package engine

import (
	"strings"
	"time"

	"github.com/cbegin/loopcode/internal/chiptune"
	"github.com/cbegin/loopcode/internal/fm"
	"github.com/cbegin/loopcode/internal/nesapu"
	"github.com/cbegin/loopcode/internal/wavetable"
)

// noteVoice is a sustained note that ends some time after Release.
type noteVoice interface {
	Next() (float32, float32, bool)
	Release()
	Tail() time.Duration
}

// instrument builds a voice for a note. variant is the part of the synth
// name after the colon; known is false when it names nothing.
type instrument func(sampleRate, note int, variant string) (v noteVoice, known bool)

// noteVelocity is the velocity chip instruments play at. Loudness comes
// from the event's gain stage.
const noteVelocity = 0.8

func (e *Engine) instruments() map[string]instrument {
	return map[string]instrument{
		"fm": func(sr, note int, variant string) (noteVoice, bool) {
			p, ok := fm.Preset(variant)
			return fm.NewVoice(sr, note, noteVelocity, p), ok
		},
		"chip": func(sr, note int, variant string) (noteVoice, bool) {
			w, ok := chiptune.LookupWave(variant)
			return chiptune.NewVoice(sr, note, noteVelocity, w, chiptune.DefaultParams()), ok
		},
		"nes": func(sr, note int, variant string) (noteVoice, bool) {
			ch, ok := nesapu.LookupChannel(variant)
			return e.apu.NoteOn(note, noteVelocity, ch), ok
		},
		"wt": func(sr, note int, variant string) (noteVoice, bool) {
			table, ok := wavetable.Lookup(variant)
			return wavetable.NewVoice(sr, note, noteVelocity, table, wavetable.DefaultParams()), ok
		},
	}
}

var instrumentAliases = map[string]string{
	"fm":        "fm",
	"opm":       "fm",
	"chip":      "chip",
	"chiptune":  "chip",
	"nes":       "nes",
	"wt":        "wt",
	"wavetable": "wt",
}

// splitSynth breaks "fm:bell" into its instrument and variant.
func splitSynth(name string) (base, variant string) {
	base, variant, _ = strings.Cut(strings.ToLower(name), ":")
	return base, variant
}

// gatedVoice holds a note for gate frames and then releases it.
type gatedVoice struct {
	v     noteVoice
	gate  int
	frame int
}

func (g *gatedVoice) Next() (float32, float32, bool) {
	if g.frame == g.gate {
		g.v.Release()
	}
	g.frame++
	return g.v.Next()
}

// newInstrumentNote returns a gated voice and its playback length in frames
// when synthName belongs to an instrument.
func (e *Engine) newInstrumentNote(note int, synthName string, dur time.Duration) (src *gatedVoice, frames int64, ok bool) {
	base, variant := splitSynth(synthName)
	name, ok := instrumentAliases[base]
	if !ok {
		return nil, 0, false
	}
	v, known := e.registry[name](e.sampleRate, note, variant)
	if !known {
		e.warnOnce("synth:"+synthName, "unknown instrument variant, using default", "synth", synthName)
	}
	gate := int(dur.Seconds() * float64(e.sampleRate))
	if gate < 1 {
		gate = 1
	}
	tail := int(v.Tail().Seconds()*float64(e.sampleRate)) + 1
	return &gatedVoice{v: v, gate: gate}, int64(gate + tail), true
}
