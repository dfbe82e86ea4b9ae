package effects

import "math"

// Limiter is a peak limiter with instant attack and exponential release.
// Output never exceeds the ceiling.
type Limiter struct {
	ceiling float32
	release float32
	gain    float32
}

// NewLimiter creates a limiter. ceiling is linear amplitude (e.g. 0.98).
func NewLimiter(sampleRate int, ceiling float32, releaseMs float64) *Limiter {
	if ceiling <= 0 {
		ceiling = 1
	}
	rel := float32(1.0 - math.Exp(-1.0/(releaseMs*float64(sampleRate)/1000.0)))
	return &Limiter{ceiling: ceiling, release: rel, gain: 1}
}

func (m *Limiter) Process(l, r float32) (float32, float32) {
	peak := abs32(l)
	if a := abs32(r); a > peak {
		peak = a
	}
	if peak*m.gain > m.ceiling {
		m.gain = m.ceiling / peak
	} else {
		m.gain += m.release * (1 - m.gain)
		if peak*m.gain > m.ceiling {
			m.gain = m.ceiling / peak
		}
	}
	return l * m.gain, r * m.gain
}

func (m *Limiter) Reset() { m.gain = 1 }

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
