package effects

import (
	"math"
	"sync/atomic"
)

// Gain scales both channels. The level can be changed while audio runs.
type Gain struct {
	level atomic.Uint32
}

func NewGain(level float32) *Gain {
	g := &Gain{}
	g.Set(level)
	return g
}

func (g *Gain) Set(level float32) {
	if level < 0 {
		level = 0
	}
	g.level.Store(math.Float32bits(level))
}

func (g *Gain) Level() float32 {
	return math.Float32frombits(g.level.Load())
}

func (g *Gain) Process(l, r float32) (float32, float32) {
	v := g.Level()
	return l * v, r * v
}

func (g *Gain) Reset() {}

// Pan places a stereo signal with an equal-power law. 0 is hard left, 0.5
// center (unity on both sides), 1 hard right.
type Pan struct {
	gl, gr float32
}

func NewPan(pos float64) *Pan {
	pos = clamp64(pos, 0, 1)
	theta := pos * math.Pi / 2
	return &Pan{
		gl: float32(math.Cos(theta) * math.Sqrt2),
		gr: float32(math.Sin(theta) * math.Sqrt2),
	}
}

func (p *Pan) Process(l, r float32) (float32, float32) {
	mono := (l + r) * 0.5
	return clamp(mono*p.gl, -4, 4), clamp(mono*p.gr, -4, 4)
}

func (p *Pan) Reset() {}
