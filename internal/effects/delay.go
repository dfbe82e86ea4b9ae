package effects

// Delay is a stereo feedback echo. cross moves feedback between channels
// (1 gives ping-pong) and the feedback path is darkened on every repeat.
type Delay struct {
	line     ring
	frames   int
	feedback float32
	cross    float32
	wet      float32
	tone     float32
	fbL, fbR float32
}

// NewDelay creates an echo of delayMs with feedback and cross in [0, 1)
// and wet in [0, 1].
func NewDelay(sampleRate int, delayMs float64, feedback, cross, wet float32) *Delay {
	frames := int(delayMs * float64(sampleRate) / 1000)
	if frames < 1 {
		frames = 1
	}
	return &Delay{
		line:     newRing(frames + 1),
		frames:   frames,
		feedback: clamp(feedback, 0, 0.95),
		cross:    clamp(cross, 0, 1),
		wet:      clamp(wet, 0, 1),
		tone:     0.6,
	}
}

func (d *Delay) Process(l, r float32) (float32, float32) {
	echoL, echoR := d.line.read(d.frames)
	d.fbL += d.tone * (echoL - d.fbL)
	d.fbR += d.tone * (echoR - d.fbR)
	keep := d.feedback * (1 - d.cross)
	swap := d.feedback * d.cross
	d.line.write(l+d.fbL*keep+d.fbR*swap, r+d.fbR*keep+d.fbL*swap)
	return l*(1-d.wet) + echoL*d.wet, r*(1-d.wet) + echoR*d.wet
}

// SetWet changes the mix and keeps pending echoes.
func (d *Delay) SetWet(wet float32) { d.wet = clamp(wet, 0, 1) }

func (d *Delay) Reset() {
	d.line.clear()
	d.fbL, d.fbR = 0, 0
}
