package pattern

// RandomSource supplies uniform draws in [0, 1). *rand.Rand satisfies it.
type RandomSource interface {
	Float64() float64
}

const (
	sometimesThreshold = 0.5
	rarelyThreshold    = 0.25
	oftenThreshold     = 0.75
)

// Sometimes applies fn right away with probability 0.5.
func (p *Pattern) Sometimes(src RandomSource, fn Transform) *Pattern {
	return p.chance(src, sometimesThreshold, fn)
}

// Rarely applies fn right away with probability 0.25.
func (p *Pattern) Rarely(src RandomSource, fn Transform) *Pattern {
	return p.chance(src, rarelyThreshold, fn)
}

// Often applies fn right away with probability 0.75.
func (p *Pattern) Often(src RandomSource, fn Transform) *Pattern {
	return p.chance(src, oftenThreshold, fn)
}

func (p *Pattern) chance(src RandomSource, threshold float64, fn Transform) *Pattern {
	if fn == nil || src == nil {
		return p
	}
	if src.Float64() < threshold {
		if out := fn(p); out != nil {
			return out
		}
	}
	return p
}
