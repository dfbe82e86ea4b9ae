// Package effects holds the stereo processors used by slot chains and the
// master bus, and the builder that turns a Descriptor into a chain.
package effects

// Effector transforms one stereo frame at a time.
type Effector interface {
	Process(l, r float32) (float32, float32)
	Reset()
}

// Chain runs effects in series.
type Chain struct {
	stages []Effector
}

// NewChain builds a chain from stages, dropping nil entries.
func NewChain(stages ...Effector) *Chain {
	c := &Chain{}
	for _, e := range stages {
		c.Add(e)
	}
	return c
}

func (c *Chain) Process(l, r float32) (float32, float32) {
	for _, e := range c.stages {
		l, r = e.Process(l, r)
	}
	return l, r
}

func (c *Chain) Reset() {
	for _, e := range c.stages {
		e.Reset()
	}
}

// Add appends e. A nil e is ignored.
func (c *Chain) Add(e Effector) {
	if e == nil {
		return
	}
	c.stages = append(c.stages, e)
}

func (c *Chain) Len() int { return len(c.stages) }
