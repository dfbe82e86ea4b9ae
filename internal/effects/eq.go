package effects

import (
	"math"
	"sync/atomic"
)

// EQBands is the number of bands in EQ.
const EQBands = 5

// Band gain limits in dB.
const (
	EQMinDB = -24
	EQMaxDB = 12
)

var eqCrossovers = [EQBands - 1]float64{200, 800, 2500, 8000}

// EQ is a five-band equalizer. The bands are split by one-pole low-passes
// at the crossover frequencies and sum back to the input when every band
// sits at 0 dB. Band gains may be changed while audio is running.
type EQ struct {
	alpha [EQBands - 1]float32
	zL    [EQBands - 1]float32
	zR    [EQBands - 1]float32
	db    [EQBands]atomic.Uint64
}

func NewEQ(sampleRate int) *EQ {
	eq := &EQ{}
	for i, hz := range eqCrossovers {
		eq.alpha[i] = onePoleAlpha(sampleRate, hz)
	}
	return eq
}

// SetBand sets band's gain in dB, clamped to [EQMinDB, EQMaxDB]. Out of
// range bands are ignored.
func (eq *EQ) SetBand(band int, db float64) {
	if band < 0 || band >= EQBands {
		return
	}
	db = math.Max(EQMinDB, math.Min(EQMaxDB, db))
	eq.db[band].Store(math.Float64bits(db))
}

// Band returns band's gain in dB.
func (eq *EQ) Band(band int) float64 {
	if band < 0 || band >= EQBands {
		return 0
	}
	return math.Float64frombits(eq.db[band].Load())
}

// Flat reports whether every band is at 0 dB.
func (eq *EQ) Flat() bool {
	for i := range eq.db {
		if eq.db[i].Load() != 0 {
			return false
		}
	}
	return true
}

func (eq *EQ) Process(l, r float32) (float32, float32) {
	var outL, outR, lowL, lowR float32
	for i := range eq.alpha {
		eq.zL[i] += eq.alpha[i] * (l - eq.zL[i])
		eq.zR[i] += eq.alpha[i] * (r - eq.zR[i])
		g := float32(dbToGain(eq.Band(i)))
		outL += (eq.zL[i] - lowL) * g
		outR += (eq.zR[i] - lowR) * g
		lowL, lowR = eq.zL[i], eq.zR[i]
	}
	g := float32(dbToGain(eq.Band(EQBands - 1)))
	return outL + (l-lowL)*g, outR + (r-lowR)*g
}

func (eq *EQ) Reset() {
	eq.zL = [EQBands - 1]float32{}
	eq.zR = [EQBands - 1]float32{}
}
