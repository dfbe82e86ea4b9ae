package pattern

import "github.com/cbegin/loopcode/internal/effects"

func (p *Pattern) Gain(v float64) *Pattern {
	p.fx.Gain = clamp(v, 0, 2)
	return p
}

func (p *Pattern) Room(v float64) *Pattern {
	p.fx.Room = clamp(v, 0, 1)
	return p
}

func (p *Pattern) Delay(v float64) *Pattern {
	p.fx.Delay = clamp(v, 0, 1)
	return p
}

func (p *Pattern) Pan(v float64) *Pattern {
	p.fx.Pan = clamp(v, 0, 1)
	return p
}

// Shape sets the waveshaper amount; 0 bypasses.
func (p *Pattern) Shape(v float64) *Pattern {
	p.fx.Shape = clamp(v, 0, 1)
	return p
}

func (p *Pattern) Chorus(v float64) *Pattern {
	p.fx.Chorus = clamp(v, 0, 1)
	return p
}

// LPF sets the low-pass cutoff in Hz; 0 bypasses.
func (p *Pattern) LPF(hz float64) *Pattern {
	p.fx.LPF = effects.ClampCutoff(hz)
	return p
}

// HPF sets the high-pass cutoff in Hz; 0 bypasses.
func (p *Pattern) HPF(hz float64) *Pattern {
	p.fx.HPF = effects.ClampCutoff(hz)
	return p
}

// S selects the synth used for note events.
func (p *Pattern) S(synth string) *Pattern {
	p.synth = synth
	return p
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
