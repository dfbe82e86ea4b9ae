// Package lfo provides low-frequency modulation sources for the effects.
package lfo

import (
	"math"
	"strings"
)

type Shape int

const (
	Sine Shape = iota
	Triangle
	Square
	Saw
	Random
)

var shapeNames = map[string]Shape{
	"sine":     Sine,
	"sin":      Sine,
	"triangle": Triangle,
	"tri":      Triangle,
	"square":   Square,
	"sqr":      Square,
	"saw":      Saw,
	"random":   Random,
	"rand":     Random,
}

// ParseShape looks up a shape by name.
func ParseShape(name string) (Shape, bool) {
	s, ok := shapeNames[strings.ToLower(strings.TrimSpace(name))]
	return s, ok
}

// LFO produces one modulation value per sample in [-depth, +depth].
type LFO struct {
	shape Shape
	rate  float64
	depth float64
	phase float64
	held  float64
	seed  uint32
}

func New(shape Shape, rateHz, depth float64) *LFO {
	return &LFO{shape: shape, rate: rateHz, depth: depth, seed: 0x9e3779b9}
}

// SetPhase moves the oscillator to p, a fraction of one period.
func (l *LFO) SetPhase(p float64) {
	l.phase = p - math.Floor(p)
}

func (l *LFO) Phase() float64 { return l.phase }

// Next returns the current value and advances by one sample.
func (l *LFO) Next(sampleRate float64) float64 {
	if !l.Active() || sampleRate <= 0 {
		return 0
	}
	var v float64
	switch l.shape {
	case Triangle:
		if l.phase < 0.5 {
			v = 4*l.phase - 1
		} else {
			v = 3 - 4*l.phase
		}
	case Square:
		v = 1
		if l.phase >= 0.5 {
			v = -1
		}
	case Saw:
		v = 1 - 2*l.phase
	case Random:
		v = l.held
	default:
		v = math.Sin(2 * math.Pi * l.phase)
	}
	l.phase += l.rate / sampleRate
	if l.phase >= 1 {
		l.phase -= math.Floor(l.phase)
		if l.shape == Random {
			l.held = l.draw()
		}
	}
	return v * l.depth
}

// draw returns a value in [-1, 1) from an xorshift generator.
func (l *LFO) draw() float64 {
	x := l.seed
	x ^= x << 13
	x ^= x >> 17
	x ^= x << 5
	l.seed = x
	return float64(x)/(1<<32)*2 - 1
}

func (l *LFO) Active() bool {
	return l.depth != 0 && l.rate != 0
}

func (l *LFO) Reset() {
	l.phase = 0
	l.held = 0
	l.seed = 0x9e3779b9
}
