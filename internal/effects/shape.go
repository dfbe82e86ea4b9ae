package effects

import "math"

// Shaper is a tanh waveshaper. Output is normalized so a full-scale input
// stays near full scale at any drive, and a one-pole low-pass softens the
// added harmonics.
type Shaper struct {
	drive    float64
	norm     float32
	alpha    float32
	lpL, lpR float32
}

// NewShaper creates a waveshaper for amount in [0, 1].
func NewShaper(sampleRate int, amount float32) *Shaper {
	amount = clamp(amount, 0, 1)
	drive := 1 + 24*float64(amount)
	cutoff := 18000 - 12000*float64(amount)
	if ny := float64(sampleRate) * 0.45; cutoff > ny {
		cutoff = ny
	}
	return &Shaper{
		drive: drive,
		norm:  float32(1 / math.Tanh(drive)),
		alpha: onePoleAlpha(sampleRate, cutoff),
	}
}

func (s *Shaper) Process(l, r float32) (float32, float32) {
	l = float32(math.Tanh(float64(l)*s.drive)) * s.norm
	r = float32(math.Tanh(float64(r)*s.drive)) * s.norm
	s.lpL += s.alpha * (l - s.lpL)
	s.lpR += s.alpha * (r - s.lpR)
	return s.lpL, s.lpR
}

func (s *Shaper) Reset() {
	s.lpL, s.lpR = 0, 0
}
