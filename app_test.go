package loopcode

import (
	"path/filepath"
	"reflect"
	"sync"
	"testing"
	"time"

	intfx "github.com/cbegin/loopcode/internal/effects"
	intsched "github.com/cbegin/loopcode/internal/scheduler"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

type sampleCall struct {
	name string
	at   time.Time
	fx   intfx.Descriptor
	slot string
}

type countingTrigger struct {
	mu    sync.Mutex
	calls []sampleCall
	notes int
}

func (c *countingTrigger) PlaySample(name string, at time.Time, fx intfx.Descriptor, slot string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, sampleCall{name: name, at: at, fx: fx, slot: slot})
	return nil
}

func (c *countingTrigger) PlayNote(int, string, time.Time, time.Duration, intfx.Descriptor, string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notes++
	return nil
}

func (c *countingTrigger) snapshot() []sampleCall {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]sampleCall(nil), c.calls...)
}

func newTestApp(t *testing.T, opts ...Option) (*App, *countingTrigger, *intsched.FakeClock) {
	t.Helper()
	trig := &countingTrigger{}
	clock := intsched.NewFakeClock(epoch)
	opts = append([]Option{WithTrigger(trig), WithClock(clock)}, opts...)
	a, err := New(opts...)
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	return a, trig, clock
}

func start(t *testing.T, a *App, clock *intsched.FakeClock) {
	t.Helper()
	a.Start()
	if !clock.WaitArmed(2 * time.Second) {
		t.Fatal("scheduler did not arm its timer")
	}
}

func beat(t *testing.T, clock *intsched.FakeClock) {
	t.Helper()
	deadline, ok := clock.NextDeadline()
	if !ok {
		t.Fatal("no timer armed")
	}
	clock.AdvanceTo(deadline)
	if !clock.WaitArmed(2 * time.Second) {
		t.Fatal("scheduler did not re-arm its timer")
	}
}

func TestEndToEndFourKicksPerCycle(t *testing.T) {
	a, trig, clock := newTestApp(t, WithBPM(120))
	if res := a.Evaluate(`d1(s("bd*4"))`); !res.Success {
		t.Fatalf("evaluate: %s", res.Message)
	}
	start(t, a, clock)
	for i := 0; i < 4; i++ {
		beat(t, clock)
	}
	a.Stop()

	calls := trig.snapshot()
	if len(calls) != 8 {
		t.Fatalf("two cycles dispatched %d sample calls, want 8", len(calls))
	}
	for i, c := range calls {
		want := epoch.Add(time.Duration(i) * 500 * time.Millisecond)
		if !c.at.Equal(want) {
			t.Errorf("call %d at %v, want %v", i, c.at.Sub(epoch), want.Sub(epoch))
		}
		if c.name != "bd" || c.slot != "d1" || c.fx.Gain != 1 {
			t.Errorf("call %d = %+v", i, c)
		}
	}
	if a.Cycle() != 0 || a.Running() {
		t.Fatalf("after stop: cycle=%d running=%v", a.Cycle(), a.Running())
	}
}

func TestWatchReportsTelemetryInOrder(t *testing.T) {
	a, _, clock := newTestApp(t)
	ch := a.Watch()
	a.Evaluate(`d2(s("bd sd"))`)
	start(t, a, clock)
	defer a.Stop()

	want := []int{EventSlots, EventBeat, EventCycle, EventHighlight, EventHighlight, EventTransport}
	var got []int
	var highlights []string
	for range want {
		select {
		case ev := <-ch:
			got = append(got, ev.Kind)
			if ev.Kind == EventHighlight {
				if ev.Slot != 2 {
					t.Errorf("highlight slot = %d, want 2", ev.Slot)
				}
				highlights = append(highlights, ev.Sound)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out after events %v", got)
		}
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	if !reflect.DeepEqual(highlights, []string{"bd", "sd"}) {
		t.Fatalf("highlights = %v", highlights)
	}
}

func TestEvaluateDrivesTransportAndMaster(t *testing.T) {
	a, _, clock := newTestApp(t)
	results := a.EvaluateAll("bpm(300)\nbogus(\nmasterGain(0.5)")
	if len(results) != 3 {
		t.Fatalf("results = %d, want 3", len(results))
	}
	if !results[0].Success || results[1].Success || !results[2].Success {
		t.Fatalf("results = %+v", results)
	}
	if a.BPM() != 200 {
		t.Fatalf("bpm = %v, want clamp to 200", a.BPM())
	}
	if got := a.Master().Settings().Volume; got != 0.5 {
		t.Fatalf("master volume = %v, want 0.5", got)
	}
	a.Evaluate("start()")
	if !clock.WaitArmed(2 * time.Second) {
		t.Fatal("start() did not arm the scheduler")
	}
	if !a.Running() {
		t.Fatal("start() did not start the transport")
	}
	a.Evaluate("stop()")
	if a.Running() {
		t.Fatal("stop() did not stop the transport")
	}
}

func TestHushClearsSlots(t *testing.T) {
	a, _, _ := newTestApp(t)
	a.Evaluate(`d1(s("bd"))`)
	a.Evaluate(`d3(note("c4 e4"))`)
	if got := a.Slots(); !reflect.DeepEqual(got, []string{"d1", "d3"}) {
		t.Fatalf("slots = %v", got)
	}
	ch := a.Watch()
	a.Hush()
	if len(a.Slots()) != 0 {
		t.Fatalf("slots after hush = %v", a.Slots())
	}
	var sawHush bool
	for len(ch) > 0 {
		if ev := <-ch; ev.Kind == EventHush {
			sawHush = true
		}
	}
	if !sawHush {
		t.Fatal("no hush event")
	}
}

func TestMissingSamples(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, filepath.Join(dir, "bd.wav"))

	a, _, _ := newTestApp(t, WithSampleDir(dir))
	a.Evaluate(`d1(s("bd sd sd:2 ~"))`)
	a.Evaluate(`d2(note("c4"))`)
	if !a.HasSample("bd") || a.HasSample("sd") {
		t.Fatalf("HasSample bd=%v sd=%v", a.HasSample("bd"), a.HasSample("sd"))
	}
	if got := a.MissingSamples(); !reflect.DeepEqual(got, []string{"sd", "sd:2"}) {
		t.Fatalf("missing = %v", got)
	}
}

func TestStateSnapshot(t *testing.T) {
	a, _, _ := newTestApp(t, WithBPM(90))
	a.Evaluate(`d4(s("hh*2").fast(2).gain(0.5))`)
	st := a.State()
	if st.Running || st.BPM != 90 || len(st.Slots) != 1 {
		t.Fatalf("state = %+v", st)
	}
	slot := st.Slots[0]
	if slot.Name != "d4" || slot.Kind != "sound" || slot.Speed != 2 || slot.Effects.Gain != 0.5 {
		t.Fatalf("slot = %+v", slot)
	}
	if st.Master != intfx.DefaultBusSettings() {
		t.Fatalf("master = %+v", st.Master)
	}
}
