package effects

import "sync/atomic"

// Source produces the dry stereo signal of one event. ok is false once the
// source has nothing more to play.
type Source interface {
	Next() (l, r float32, ok bool)
}

// Sink receives processed frames.
type Sink interface {
	Mix(l, r float32)
}

// Builder creates per-event chains. Every node it hands out is counted by
// its Tracker.
type Builder struct {
	sampleRate int
	tracker    *Tracker
}

func NewBuilder(sampleRate int, tracker *Tracker) *Builder {
	if tracker == nil {
		tracker = &Tracker{}
	}
	return &Builder{sampleRate: sampleRate, tracker: tracker}
}

func (b *Builder) Tracker() *Tracker { return b.tracker }

// Build wires gain, then the optional shaper, high-pass, low-pass, chorus,
// reverb, delay and pan stages for desc, in that order.
func (b *Builder) Build(desc Descriptor, src Source) *EventChain {
	desc = desc.Clamped()
	c := &EventChain{src: src}
	c.add(StageGain, NewGain(float32(desc.Gain)), b.tracker)
	if desc.Shape > 0 {
		c.add(StageShape, NewShaper(b.sampleRate, float32(desc.Shape)), b.tracker)
	}
	if desc.HPF > MinCutoff {
		c.add(StageHPF, NewHighPass(b.sampleRate, desc.HPF), b.tracker)
	}
	if desc.LPF > 0 && desc.LPF < MaxCutoff {
		c.add(StageLPF, NewLowPass(b.sampleRate, desc.LPF), b.tracker)
	}
	if desc.Chorus > 0 {
		c.add(StageChorus, NewChorus(b.sampleRate, 12, 0.2, 4, 0.8, float32(desc.Chorus)), b.tracker)
	}
	if desc.Room > 0 {
		room := float32(0.3 + 0.6*desc.Room)
		c.add(StageReverb, NewReverb(b.sampleRate, room, 0.75, float32(desc.Room)), b.tracker)
	}
	if desc.Delay > 0 {
		c.add(StageDelay, NewDelay(b.sampleRate, 250, 0.4, 0.3, float32(desc.Delay)), b.tracker)
	}
	if desc.Pan != 0.5 {
		c.add(StagePan, NewPan(desc.Pan), b.tracker)
	}
	return c
}

// EventChain is the one-shot processing chain of a single event.
type EventChain struct {
	src      Source
	nodes    []*Node
	dest     Sink
	drained  bool
	disposed atomic.Bool
}

func (c *EventChain) add(stage Stage, fx Effector, t *Tracker) {
	c.nodes = append(c.nodes, t.newNode(stage, fx))
}

// Connect routes the chain output into dest.
func (c *EventChain) Connect(dest Sink) { c.dest = dest }

// Stages lists the stages in processing order.
func (c *EventChain) Stages() []Stage {
	out := make([]Stage, len(c.nodes))
	for i, n := range c.nodes {
		out[i] = n.Stage
	}
	return out
}

// Nodes exposes the chain's nodes for inspection.
func (c *EventChain) Nodes() []*Node { return c.nodes }

// Drained reports whether the source has finished. Tail stages keep
// ringing on silence after that.
func (c *EventChain) Drained() bool { return c.drained }

// Step renders one frame into the connected sink. It returns false once the
// chain has been disposed.
func (c *EventChain) Step() bool {
	if c.disposed.Load() {
		return false
	}
	var l, r float32
	if !c.drained && c.src != nil {
		var ok bool
		l, r, ok = c.src.Next()
		if !ok {
			c.drained = true
			l, r = 0, 0
		}
	}
	for _, n := range c.nodes {
		l, r = n.fx.Process(l, r)
	}
	if c.dest != nil {
		c.dest.Mix(l, r)
	}
	return true
}

// Dispose releases every node of the chain. Calling it again is a no-op.
func (c *EventChain) Dispose() {
	if !c.disposed.CompareAndSwap(false, true) {
		return
	}
	for _, n := range c.nodes {
		n.release()
	}
	c.src = nil
	c.dest = nil
}

// Disposed reports whether Dispose has run.
func (c *EventChain) Disposed() bool { return c.disposed.Load() }
