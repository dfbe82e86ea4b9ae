package effects

import (
	"math"
	"sync/atomic"
)

// Compressor is a stereo-linked feed-forward compressor. Both channels
// share one envelope so the image does not shift under gain reduction.
type Compressor struct {
	threshold float64 // dB
	ratio     float64
	knee      float64 // dB
	attack    float32
	release   float32
	makeup    float32
	env       float32
	reduction atomic.Uint32 // last gain reduction in dB, float32 bits
}

// NewCompressor creates a compressor. thresholdDB and makeupDB are in dB,
// ratio is n for n:1, attackMs and releaseMs set the envelope speed.
func NewCompressor(sampleRate int, thresholdDB, ratio, attackMs, releaseMs, makeupDB float32) *Compressor {
	if ratio < 1 {
		ratio = 1
	}
	return &Compressor{
		threshold: float64(thresholdDB),
		ratio:     float64(ratio),
		knee:      6,
		attack:    envCoeff(sampleRate, attackMs),
		release:   envCoeff(sampleRate, releaseMs),
		makeup:    float32(dbToGain(float64(makeupDB))),
	}
}

func envCoeff(sampleRate int, ms float32) float32 {
	if ms <= 0 {
		return 1
	}
	return float32(1 - math.Exp(-1/(float64(ms)*float64(sampleRate)/1000)))
}

func (c *Compressor) Process(l, r float32) (float32, float32) {
	peak := abs32(l)
	if ar := abs32(r); ar > peak {
		peak = ar
	}
	if peak > c.env {
		c.env += c.attack * (peak - c.env)
	} else {
		c.env += c.release * (peak - c.env)
	}
	red := c.gainReduction(c.env)
	c.reduction.Store(math.Float32bits(float32(red)))
	g := float32(dbToGain(-red)) * c.makeup
	return l * g, r * g
}

// gainReduction returns how many dB to cut for an envelope level, with a
// soft knee around the threshold.
func (c *Compressor) gainReduction(env float32) float64 {
	if env <= 0 {
		return 0
	}
	level := 20 * math.Log10(float64(env))
	over := level - c.threshold
	slope := 1 - 1/c.ratio
	switch {
	case over <= -c.knee/2:
		return 0
	case over < c.knee/2:
		x := over + c.knee/2
		return slope * x * x / (2 * c.knee)
	default:
		return slope * over
	}
}

// SetThreshold and SetRatio change the curve without touching the envelope.
func (c *Compressor) SetThreshold(thresholdDB float32) { c.threshold = float64(thresholdDB) }

func (c *Compressor) SetRatio(ratio float32) {
	if ratio < 1 {
		ratio = 1
	}
	c.ratio = float64(ratio)
}

// GainReduction reports the most recent gain reduction in dB.
func (c *Compressor) GainReduction() float32 {
	return math.Float32frombits(c.reduction.Load())
}

func (c *Compressor) Reset() {
	c.env = 0
	c.reduction.Store(0)
}

func dbToGain(db float64) float64 {
	return math.Pow(10, db/20)
}
