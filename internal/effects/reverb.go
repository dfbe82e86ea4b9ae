package effects

// Reverb is a small stereo Schroeder network: four damped comb filters
// per channel feeding two allpass diffusers. The right channel's delay
// lines are slightly longer to decorrelate the two sides.
type Reverb struct {
	left, right tank
	wet         float32
}

const (
	stereoSpread = 23
	combCount    = 4
	diffuserGain = 0.5
)

// Comb and allpass lengths relative to the room's base length.
var (
	combRatios    = [combCount]int{1000, 1117, 1271, 1437}
	allpassRatios = [2]int{347, 213}
)

type tank struct {
	combs   [combCount]comb
	allpass [2]allpass
}

type comb struct {
	buf      []float32
	pos      int
	feedback float32
	damp     float32
	lp       float32
}

type allpass struct {
	buf []float32
	pos int
}

// NewReverb creates a reverb. roomSize in [0, 1] scales the delay lengths,
// feedback sets the decay and wet the mix.
func NewReverb(sampleRate int, roomSize, feedback, wet float32) *Reverb {
	base := int(float32(sampleRate) * clamp(roomSize, 0, 1) * 0.05)
	if base < 10 {
		base = 10
	}
	fb := clamp(feedback, 0, 0.95)
	damp := 0.2 + 0.3*(1-clamp(roomSize, 0, 1))
	return &Reverb{
		left:  newTank(base, 0, fb, damp),
		right: newTank(base, stereoSpread*sampleRate/44100, fb, damp),
		wet:   clamp(wet, 0, 1),
	}
}

func newTank(base, spread int, fb, damp float32) tank {
	var t tank
	for i := range t.combs {
		t.combs[i] = comb{buf: make([]float32, base*combRatios[i]/1000+spread), feedback: fb, damp: damp}
	}
	for i := range t.allpass {
		n := base*allpassRatios[i]/1000 + spread
		if n < 1 {
			n = 1
		}
		t.allpass[i] = allpass{buf: make([]float32, n)}
	}
	return t
}

func (r *Reverb) Process(l, rt float32) (float32, float32) {
	in := (l + rt) * 0.5
	outL := r.left.process(in)
	outR := r.right.process(in)
	return l*(1-r.wet) + outL*r.wet, rt*(1-r.wet) + outR*r.wet
}

// SetWet changes the mix and keeps the tail ringing.
func (r *Reverb) SetWet(wet float32) { r.wet = clamp(wet, 0, 1) }

func (r *Reverb) Reset() {
	r.left.reset()
	r.right.reset()
}

func (t *tank) process(in float32) float32 {
	var out float32
	for i := range t.combs {
		out += t.combs[i].process(in)
	}
	out /= combCount
	for i := range t.allpass {
		out = t.allpass[i].process(out)
	}
	return out
}

func (t *tank) reset() {
	for i := range t.combs {
		clear(t.combs[i].buf)
		t.combs[i].pos = 0
		t.combs[i].lp = 0
	}
	for i := range t.allpass {
		clear(t.allpass[i].buf)
		t.allpass[i].pos = 0
	}
}

func (c *comb) process(in float32) float32 {
	out := c.buf[c.pos]
	c.lp = out*(1-c.damp) + c.lp*c.damp
	c.buf[c.pos] = in + c.lp*c.feedback
	if c.pos++; c.pos == len(c.buf) {
		c.pos = 0
	}
	return out
}

func (a *allpass) process(in float32) float32 {
	delayed := a.buf[a.pos]
	a.buf[a.pos] = in + delayed*diffuserGain
	if a.pos++; a.pos == len(a.buf) {
		a.pos = 0
	}
	return delayed - in
}
