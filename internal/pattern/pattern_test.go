package pattern

import (
	"math"
	"testing"

	"github.com/cbegin/loopcode/internal/mini"
)

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func mustParse(t *testing.T, kind Kind, text string) *Pattern {
	t.Helper()
	p, err := FromNotation(kind, text, 0)
	if err != nil {
		t.Fatalf("parse %q: %v", text, err)
	}
	return p
}

func TestFastIntegerReplication(t *testing.T) {
	p := New(KindSound, []mini.Event{{Sound: "bd", Time: 0, Duration: 1}})
	evs := p.Fast(2).EventsForCycle(1)
	if len(evs) != 2 {
		t.Fatalf("expected 2 events, got %d", len(evs))
	}
	for i, want := range []float64{0, 0.5} {
		if !approx(evs[i].Time, want) || !approx(evs[i].Duration, 0.5) {
			t.Fatalf("event %d = %+v, want time %v duration 0.5", i, evs[i], want)
		}
	}
}

func TestFastNonIntegerTruncatesReplicas(t *testing.T) {
	p := New(KindSound, []mini.Event{{Sound: "bd", Time: 0, Duration: 1}})
	evs := p.Fast(2.5).EventsForCycle(0)
	if len(evs) != 2 {
		t.Fatalf("expected floor(2.5)=2 replicas, got %d", len(evs))
	}
	if !approx(evs[0].Duration, 0.4) {
		t.Fatalf("duration = %v, want 0.4", evs[0].Duration)
	}
}

func TestSlowStretchesWithoutFiltering(t *testing.T) {
	p := mustParse(t, KindSound, "bd sd")
	evs := p.Slow(2).EventsForCycle(0)
	if len(evs) != 2 {
		t.Fatalf("expected 2 events, got %d", len(evs))
	}
	if !approx(evs[1].Time, 1.0) || !approx(evs[1].Duration, 0.9) {
		t.Fatalf("slowed second event = %+v", evs[1])
	}
}

func TestStructuralTransformsClone(t *testing.T) {
	p := mustParse(t, KindSound, "bd sd")
	fast := p.Fast(2)
	rev := p.Rev()
	if p.Speed() != 1 || p.Reversed() || len(p.Transformations()) != 0 {
		t.Fatal("original pattern was modified")
	}
	if fast.Speed() != 2 || !rev.Reversed() {
		t.Fatal("transforms not recorded on copies")
	}
	tags := p.Fast(2).Slow(4).Rev().Transformations()
	want := []TransformKind{TransformFast, TransformSlow, TransformRev}
	for i, tr := range tags {
		if tr.Kind != want[i] {
			t.Fatalf("transform %d = %s, want %s", i, tr.Kind, want[i])
		}
	}
}

func TestEffectSettersMutateReceiver(t *testing.T) {
	p := mustParse(t, KindSound, "bd")
	q := p.Gain(3).Room(0.5).Delay(-1).Pan(0.25).LPF(800).HPF(10).Shape(1.5).Chorus(0.3)
	if q != p {
		t.Fatal("effect setters must return the receiver")
	}
	fx := p.Effects()
	if fx.Gain != 2 || fx.Room != 0.5 || fx.Delay != 0 || fx.Pan != 0.25 || fx.LPF != 800 || fx.HPF != 20 || fx.Shape != 1 || fx.Chorus != 0.3 {
		t.Fatalf("unexpected effects %+v", fx)
	}
	if p.S("saw") != p || p.SynthType() != "saw" {
		t.Fatal("S must set the synth on the receiver")
	}
}

func TestDefaultEffects(t *testing.T) {
	fx := mustParse(t, KindSound, "bd").Effects()
	if fx.Gain != 1 || fx.Pan != 0.5 || fx.LPF != 0 || fx.HPF != 0 {
		t.Fatalf("unexpected defaults %+v", fx)
	}
}

func TestRevMirrorsTimes(t *testing.T) {
	p := mustParse(t, KindSound, "bd sd hh")
	evs := p.Rev().EventsForCycle(0)
	if len(evs) != 3 {
		t.Fatalf("expected 3 events, got %d", len(evs))
	}
	if evs[0].Sound != "hh" || evs[2].Sound != "bd" {
		t.Fatalf("order not reversed: %v %v %v", evs[0].Sound, evs[1].Sound, evs[2].Sound)
	}
	step := 1.0 / 3
	if !approx(evs[0].Time, 1-2*step-step*0.9) {
		t.Fatalf("mirrored time = %v", evs[0].Time)
	}
}

func TestRevTwiceRestoresEvents(t *testing.T) {
	p := mustParse(t, KindSound, "bd ~ sd*2 hh")
	orig := p.EventsForCycle(3)
	p2 := p.Rev().Rev()
	if p2.Reversed() {
		t.Fatal("reversed flag should toggle back")
	}
	got := p2.EventsForCycle(3)
	if len(got) != len(orig) {
		t.Fatalf("len = %d, want %d", len(got), len(orig))
	}
	for i := range orig {
		if got[i].Sound != orig[i].Sound || !approx(got[i].Time, orig[i].Time) {
			t.Fatalf("event %d = %+v, want %+v", i, got[i], orig[i])
		}
	}
	// The mirror formula is its own inverse.
	twice := reverse(reverse(orig))
	for i := range orig {
		if !approx(twice[i].Time, orig[i].Time) {
			t.Fatalf("double mirror event %d time = %v, want %v", i, twice[i].Time, orig[i].Time)
		}
	}
}

func TestEveryAppliesOnMatchingCycles(t *testing.T) {
	p := mustParse(t, KindSound, "bd sd").Every(3, func(q *Pattern) *Pattern { return q.Fast(2) })
	for cycle := 0; cycle < 7; cycle++ {
		n := len(p.EventsForCycle(cycle))
		want := 2
		if cycle%3 == 0 {
			want = 4
		}
		if n != want {
			t.Fatalf("cycle %d: %d events, want %d", cycle, n, want)
		}
	}
}

func TestEveryEntriesApplyInOrder(t *testing.T) {
	p := mustParse(t, KindSound, "bd").
		Every(2, func(q *Pattern) *Pattern { return q.Fast(2) }).
		Every(4, func(q *Pattern) *Pattern { return q.Fast(2) })
	if n := len(p.EventsForCycle(4)); n != 4 {
		t.Fatalf("cycle 4: %d events, want 4", n)
	}
	if n := len(p.EventsForCycle(2)); n != 2 {
		t.Fatalf("cycle 2: %d events, want 2", n)
	}
	if n := len(p.EventsForCycle(1)); n != 1 {
		t.Fatalf("cycle 1: %d events, want 1", n)
	}
}

func TestEventsForCycleIsIdempotent(t *testing.T) {
	p := mustParse(t, KindSound, "bd <sd cp> hh").Fast(2).Rev()
	a := p.EventsForCycle(5)
	b := p.EventsForCycle(5)
	if len(a) != len(b) {
		t.Fatalf("lengths differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("event %d differs: %+v vs %+v", i, a[i], b[i])
		}
	}
}

func TestAlternationFollowsCycle(t *testing.T) {
	p := mustParse(t, KindSound, "bd <sd cp>")
	if got := p.EventsForCycle(1)[1].Sound; got != "cp" {
		t.Fatalf("cycle 1 second sound = %q, want cp", got)
	}
	if got := p.EventsForCycle(2)[1].Sound; got != "sd" {
		t.Fatalf("cycle 2 second sound = %q, want sd", got)
	}
}

func TestSynthPropagatesToEvents(t *testing.T) {
	p := mustParse(t, KindNote, "c e g").S("square")
	for _, ev := range p.EventsForCycle(0) {
		if ev.Synth != "square" || ev.Kind != KindNote {
			t.Fatalf("event %+v missing synth or kind", ev)
		}
	}
}

func TestStackSnapshotsCycleZero(t *testing.T) {
	drums := mustParse(t, KindSound, "bd <sd cp>")
	notes := mustParse(t, KindNote, "c e").S("saw")
	st := Stack(drums, notes)
	if st.Kind() != KindStacked {
		t.Fatalf("kind = %s, want stacked", st.Kind())
	}
	for _, cycle := range []int{0, 1, 2, 3} {
		evs := st.EventsForCycle(cycle)
		if len(evs) != 4 {
			t.Fatalf("cycle %d: %d events, want 4", cycle, len(evs))
		}
		// Alternation is frozen at its cycle-0 choice.
		if evs[1].Sound != "sd" {
			t.Fatalf("cycle %d: stacked alternation = %q, want sd", cycle, evs[1].Sound)
		}
		if evs[2].Kind != KindNote || evs[2].Synth != "saw" {
			t.Fatalf("cycle %d: note child lost routing: %+v", cycle, evs[2])
		}
	}
}

type fixedDraw float64

func (f fixedDraw) Float64() float64 { return float64(f) }

func TestChanceThresholds(t *testing.T) {
	fast := func(q *Pattern) *Pattern { return q.Fast(2) }
	cases := []struct {
		name string
		call func(*Pattern, RandomSource) *Pattern
		draw float64
		hit  bool
	}{
		{"sometimes hit", func(p *Pattern, r RandomSource) *Pattern { return p.Sometimes(r, fast) }, 0.49, true},
		{"sometimes miss", func(p *Pattern, r RandomSource) *Pattern { return p.Sometimes(r, fast) }, 0.5, false},
		{"rarely hit", func(p *Pattern, r RandomSource) *Pattern { return p.Rarely(r, fast) }, 0.2, true},
		{"rarely miss", func(p *Pattern, r RandomSource) *Pattern { return p.Rarely(r, fast) }, 0.3, false},
		{"often hit", func(p *Pattern, r RandomSource) *Pattern { return p.Often(r, fast) }, 0.7, true},
		{"often miss", func(p *Pattern, r RandomSource) *Pattern { return p.Often(r, fast) }, 0.8, false},
	}
	for _, tc := range cases {
		p := mustParse(t, KindSound, "bd")
		out := tc.call(p, fixedDraw(tc.draw))
		if hit := out.Speed() == 2; hit != tc.hit {
			t.Errorf("%s: hit = %v, want %v", tc.name, hit, tc.hit)
		}
		if !tc.hit && out != p {
			t.Errorf("%s: miss must return the receiver", tc.name)
		}
	}
}
