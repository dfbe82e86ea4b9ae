package pattern

import (
	"math"

	"github.com/cbegin/loopcode/internal/effects"
	"github.com/cbegin/loopcode/internal/mini"
)

// Kind selects how the scheduler dispatches a pattern's events.
type Kind string

const (
	KindSound   Kind = "sound"
	KindNote    Kind = "note"
	KindStacked Kind = "stacked"
)

// Event is a mini-notation event tagged with the routing of the pattern it
// came from, so stacked patterns keep each child's kind and synth.
type Event struct {
	mini.Event
	Kind  Kind
	Synth string
}

// Transform turns one pattern into another.
type Transform func(*Pattern) *Pattern

// TransformKind tags a recorded structural transformation.
type TransformKind string

const (
	TransformFast  TransformKind = "fast"
	TransformSlow  TransformKind = "slow"
	TransformRev   TransformKind = "rev"
	TransformEvery TransformKind = "every"
)

// Transformation is one entry of a pattern's history.
type Transformation struct {
	Kind   TransformKind
	Factor float64
	N      int
	Fn     Transform
}

// Pattern holds the events of one cycle plus the operations applied to
// them. Structural operations return a modified copy; effect setters modify
// the receiver and return it.
type Pattern struct {
	kind       Kind
	events     []Event
	source     string
	speed      float64
	reversed   bool
	transforms []Transformation
	synth      string
	fx         effects.Descriptor
}

// New builds a pattern of the given kind from already-parsed events.
func New(kind Kind, events []mini.Event) *Pattern {
	p := &Pattern{kind: kind, speed: 1, fx: effects.DefaultDescriptor()}
	p.events = make([]Event, len(events))
	for i, ev := range events {
		p.events[i] = Event{Event: ev, Kind: kind}
	}
	return p
}

// FromNotation parses text for the given cycle. Text containing alternation
// is kept and re-parsed for every cycle the pattern is asked about.
func FromNotation(kind Kind, text string, cycle int) (*Pattern, error) {
	evs, err := mini.Parse(text, cycle)
	if err != nil {
		return nil, err
	}
	p := New(kind, evs)
	if mini.HasAlternation(text) {
		p.source = text
	}
	return p, nil
}

func fromEvents(kind Kind, events []Event) *Pattern {
	return &Pattern{
		kind:   kind,
		events: append([]Event(nil), events...),
		speed:  1,
		fx:     effects.DefaultDescriptor(),
	}
}

func (p *Pattern) Kind() Kind                  { return p.kind }
func (p *Pattern) Speed() float64              { return p.speed }
func (p *Pattern) Reversed() bool              { return p.reversed }
func (p *Pattern) SynthType() string           { return p.synth }
func (p *Pattern) Effects() effects.Descriptor { return p.fx }
func (p *Pattern) Source() string              { return p.source }
func (p *Pattern) Transformations() []Transformation {
	return append([]Transformation(nil), p.transforms...)
}

// Events returns a copy of the stored base events.
func (p *Pattern) Events() []Event { return append([]Event(nil), p.events...) }

// Clone returns a copy that shares no mutable state with p.
func (p *Pattern) Clone() *Pattern {
	c := *p
	c.events = append([]Event(nil), p.events...)
	c.transforms = append([]Transformation(nil), p.transforms...)
	return &c
}

func (p *Pattern) Fast(factor float64) *Pattern {
	c := p.Clone()
	c.speed *= factor
	c.transforms = append(c.transforms, Transformation{Kind: TransformFast, Factor: factor})
	return c
}

func (p *Pattern) Slow(factor float64) *Pattern {
	c := p.Clone()
	c.speed /= factor
	c.transforms = append(c.transforms, Transformation{Kind: TransformSlow, Factor: factor})
	return c
}

func (p *Pattern) Rev() *Pattern {
	c := p.Clone()
	c.reversed = !c.reversed
	c.transforms = append(c.transforms, Transformation{Kind: TransformRev})
	return c
}

// Every applies fn on cycles divisible by n.
func (p *Pattern) Every(n int, fn Transform) *Pattern {
	c := p.Clone()
	c.transforms = append(c.transforms, Transformation{Kind: TransformEvery, N: n, Fn: fn})
	return c
}

// EventsForCycle returns the events to play in the given cycle. It never
// modifies p.
func (p *Pattern) EventsForCycle(cycle int) []Event {
	working := p.baseEvents(cycle)
	if p.speed != 1 && p.speed > 0 {
		working = scaleSpeed(working, p.speed)
	}
	if p.reversed {
		working = reverse(working)
	}
	for _, tr := range p.transforms {
		if tr.Kind != TransformEvery || tr.N <= 0 || tr.Fn == nil {
			continue
		}
		if mod(cycle, tr.N) != 0 {
			continue
		}
		out := tr.Fn(fromEvents(p.kind, working))
		if out == nil {
			continue
		}
		working = out.EventsForCycle(cycle)
	}
	for i := range working {
		if working[i].Synth == "" {
			working[i].Synth = p.synth
		}
	}
	return working
}

func (p *Pattern) baseEvents(cycle int) []Event {
	if p.source != "" {
		if evs, err := mini.Parse(p.source, cycle); err == nil {
			out := make([]Event, len(evs))
			for i, ev := range evs {
				out[i] = Event{Event: ev, Kind: p.kind}
			}
			return out
		}
	}
	return append([]Event(nil), p.events...)
}

func scaleSpeed(events []Event, speed float64) []Event {
	scaled := make([]Event, len(events))
	for i, ev := range events {
		ev.Time /= speed
		ev.Duration /= speed
		scaled[i] = ev
	}
	if speed <= 1 {
		return scaled
	}
	reps := int(math.Floor(speed))
	out := make([]Event, 0, len(scaled)*reps)
	for r := 0; r < reps; r++ {
		shift := float64(r) / float64(reps)
		for _, ev := range scaled {
			ev.Time += shift
			out = append(out, ev)
		}
	}
	return out
}

func reverse(events []Event) []Event {
	out := make([]Event, len(events))
	for i, ev := range events {
		ev.Time = 1 - ev.Time - ev.Duration
		out[len(events)-1-i] = ev
	}
	return out
}

// Stack combines patterns into one. Only each child's cycle-0 events are
// kept; the children themselves are not retained.
func Stack(patterns ...*Pattern) *Pattern {
	var events []Event
	for _, child := range patterns {
		if child == nil {
			continue
		}
		evs := child.EventsForCycle(0)
		for i := range evs {
			if evs[i].Kind == KindStacked || evs[i].Kind == "" {
				evs[i].Kind = KindSound
			}
		}
		events = append(events, evs...)
	}
	return fromEvents(KindStacked, events)
}

func mod(a, n int) int {
	m := a % n
	if m < 0 {
		m += n
	}
	return m
}
