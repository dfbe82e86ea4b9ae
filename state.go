package loopcode

import (
	intfx "github.com/cbegin/loopcode/internal/effects"
)

// SlotState describes one bound slot.
type SlotState struct {
	Name     string           `json:"name"`
	Kind     string           `json:"kind"`
	Source   string           `json:"source,omitempty"`
	Speed    float64          `json:"speed"`
	Reversed bool             `json:"reversed"`
	Synth    string           `json:"synth,omitempty"`
	Effects  intfx.Descriptor `json:"effects"`
	Level    float32          `json:"level"`
}

// State is a snapshot of the session.
type State struct {
	Running        bool              `json:"running"`
	BPM            float64           `json:"bpm"`
	Cycle          int               `json:"cycle"`
	Slots          []SlotState       `json:"slots"`
	Master         intfx.BusSettings `json:"master"`
	PendingVoices  int               `json:"pendingVoices"`
	ActiveVoices   int               `json:"activeVoices"`
	MissingSamples []string          `json:"missingSamples"`
}

func (a *App) State() State {
	levels := a.engine.Levels()
	st := State{
		Running:        a.scheduler.Running(),
		BPM:            a.scheduler.BPM(),
		Cycle:          a.scheduler.Cycle(),
		Slots:          []SlotState{},
		Master:         a.engine.Bus().Settings(),
		MissingSamples: a.MissingSamples(),
	}
	st.PendingVoices, st.ActiveVoices = a.engine.Voices()
	for _, b := range a.registry.Bindings() {
		p := b.Pattern
		st.Slots = append(st.Slots, SlotState{
			Name:     b.Name,
			Kind:     string(p.Kind()),
			Source:   p.Source(),
			Speed:    p.Speed(),
			Reversed: p.Reversed(),
			Synth:    p.SynthType(),
			Effects:  p.Effects(),
			Level:    levels[b.Name],
		})
	}
	return st
}
