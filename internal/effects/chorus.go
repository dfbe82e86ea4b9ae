package effects

import "github.com/cbegin/loopcode/internal/lfo"

// Chorus mixes the input with a copy delayed by a slowly swept amount.
// The right channel's sweep runs a quarter period behind the left.
type Chorus struct {
	line       ring
	sampleRate float64
	base       float32
	modL, modR *lfo.LFO
	feedback   float32
	wet        float32
	lastL      float32
	lastR      float32
}

// NewChorus creates a chorus around a base delay of delayMs swept by
// ±depthMs at rateHz. Short delays with feedback give a flanger.
func NewChorus(sampleRate int, delayMs, feedback, depthMs, rateHz, wet float32) *Chorus {
	sr := float64(sampleRate)
	base := float32(float64(delayMs) * sr / 1000)
	depth := float64(depthMs) * sr / 1000
	if base < float32(depth)+1 {
		base = float32(depth) + 1
	}
	modR := lfo.New(lfo.Sine, float64(rateHz), depth)
	modR.SetPhase(0.25)
	return &Chorus{
		line:       newRing(int(base+float32(depth)) + 3),
		sampleRate: sr,
		base:       base,
		modL:       lfo.New(lfo.Sine, float64(rateHz), depth),
		modR:       modR,
		feedback:   clamp(feedback, 0, 0.9),
		wet:        clamp(wet, 0, 1),
	}
}

func (c *Chorus) Process(l, r float32) (float32, float32) {
	c.line.write(l+c.lastL*c.feedback, r+c.lastR*c.feedback)
	dl, _ := c.line.readFrac(c.base + float32(c.modL.Next(c.sampleRate)))
	_, dr := c.line.readFrac(c.base + float32(c.modR.Next(c.sampleRate)))
	c.lastL, c.lastR = dl, dr
	return l*(1-c.wet) + dl*c.wet, r*(1-c.wet) + dr*c.wet
}

func (c *Chorus) Reset() {
	c.line.clear()
	c.modL.Reset()
	c.modR.Reset()
	c.modR.SetPhase(0.25)
	c.lastL, c.lastR = 0, 0
}
