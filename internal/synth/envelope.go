package synth

type envState int

const (
	envAttack envState = iota
	envDecay
	envSustain
	envRelease
	envOff
)

// Params shapes the envelope and level of note voices.
type Params struct {
	AttackSec  float64
	DecaySec   float64
	SustainLvl float64
	ReleaseSec float64
	Level      float64
}

func DefaultParams() Params {
	return Params{
		AttackSec:  0.005,
		DecaySec:   0.12,
		SustainLvl: 0.75,
		ReleaseSec: 0.2,
		Level:      0.35,
	}
}

type envelope struct {
	state      envState
	level      float64
	attackStep float64
	decayStep  float64
	sustain    float64
	relStep    float64
}

func newEnvelope(p Params, sampleRate float64) envelope {
	return envelope{
		attackStep: step(1, p.AttackSec, sampleRate),
		decayStep:  step(1-p.SustainLvl, p.DecaySec, sampleRate),
		sustain:    p.SustainLvl,
		relStep:    step(1, p.ReleaseSec, sampleRate),
	}
}

func step(span, sec, sampleRate float64) float64 {
	s := span / (sec * sampleRate)
	if s <= 0 || sec <= 0 {
		return 1
	}
	return s
}

func (e *envelope) release() {
	if e.state != envOff {
		e.state = envRelease
	}
}

func (e *envelope) next() float64 {
	switch e.state {
	case envAttack:
		e.level += e.attackStep
		if e.level >= 1 {
			e.level = 1
			e.state = envDecay
		}
	case envDecay:
		e.level -= e.decayStep
		if e.level <= e.sustain {
			e.level = e.sustain
			e.state = envSustain
		}
	case envSustain:
	case envRelease:
		e.level -= e.relStep
		if e.level <= 0.0001 {
			e.level = 0
			e.state = envOff
		}
	case envOff:
		e.level = 0
	}
	return e.level
}

func (e *envelope) done() bool { return e.state == envOff }
