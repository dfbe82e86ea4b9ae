package effects

import "math"

// LowPass is a one-pole stereo low-pass filter.
type LowPass struct {
	alpha  float32
	zL, zR float32
}

func NewLowPass(sampleRate int, cutoffHz float64) *LowPass {
	return &LowPass{alpha: onePoleAlpha(sampleRate, cutoffHz)}
}

func (f *LowPass) Process(l, r float32) (float32, float32) {
	f.zL += f.alpha * (l - f.zL)
	f.zR += f.alpha * (r - f.zR)
	return f.zL, f.zR
}

func (f *LowPass) Reset() {
	f.zL, f.zR = 0, 0
}

// SetCutoff retunes the filter and keeps its state.
func (f *LowPass) SetCutoff(sampleRate int, cutoffHz float64) {
	f.alpha = onePoleAlpha(sampleRate, cutoffHz)
}

// HighPass is a one-pole stereo high-pass filter built as input minus the
// matching low-pass.
type HighPass struct {
	lp LowPass
}

func NewHighPass(sampleRate int, cutoffHz float64) *HighPass {
	return &HighPass{lp: LowPass{alpha: onePoleAlpha(sampleRate, cutoffHz)}}
}

func (f *HighPass) Process(l, r float32) (float32, float32) {
	ll, lr := f.lp.Process(l, r)
	return l - ll, r - lr
}

func (f *HighPass) Reset() { f.lp.Reset() }

func (f *HighPass) SetCutoff(sampleRate int, cutoffHz float64) {
	f.lp.SetCutoff(sampleRate, cutoffHz)
}

func onePoleAlpha(sampleRate int, cutoffHz float64) float32 {
	if sampleRate <= 0 || cutoffHz <= 0 {
		return 1
	}
	nyquist := float64(sampleRate) / 2
	if cutoffHz >= nyquist {
		return 1
	}
	rc := 1.0 / (2 * math.Pi * cutoffHz)
	dt := 1.0 / float64(sampleRate)
	return float32(dt / (rc + dt))
}
