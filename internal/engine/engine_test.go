package engine

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/cbegin/loopcode/internal/effects"
	"github.com/cbegin/loopcode/internal/samples"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

const rate = 48000

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newEngine(opts ...Option) *Engine {
	opts = append([]Option{WithEpoch(epoch), WithLogger(quietLogger())}, opts...)
	return New(rate, opts...)
}

func constSample(frames int, v float32) *samples.Sample {
	data := make([]float32, frames*2)
	for i := range data {
		data[i] = v
	}
	return &samples.Sample{SampleRate: rate, Data: data}
}

func peak(buf []float32) float32 {
	var p float32
	for _, v := range buf {
		if a := abs32(v); a > p {
			p = a
		}
	}
	return p
}

func TestDrumFallbackPlaysAndReleases(t *testing.T) {
	e := newEngine()
	if err := e.PlaySample("bd", epoch, effects.DefaultDescriptor(), "d1"); err != nil {
		t.Fatalf("play: %v", err)
	}
	out := e.Render(rate / 2)
	if peak(out) < 0.01 {
		t.Fatal("expected audible kick")
	}
	e.Render(rate / 10)
	if p, a := e.Voices(); p != 0 || a != 0 {
		t.Fatalf("voices pending=%d active=%d after window", p, a)
	}
	if live := e.Tracker().Live(); live != 0 {
		t.Fatalf("live nodes = %d", live)
	}
	if e.Levels()["d1"] <= 0 {
		t.Fatal("slot meter did not register the kick")
	}
}

func TestEventStartsAtScheduledFrame(t *testing.T) {
	e := newEngine()
	_ = e.PlaySample("sd", epoch.Add(10*time.Millisecond), effects.DefaultDescriptor(), "d1")
	out := e.Render(960)
	for i := 0; i < 480*2; i++ {
		if out[i] != 0 {
			t.Fatalf("sample %d not silent before the event: %v", i, out[i])
		}
	}
	if peak(out[480*2:]) == 0 {
		t.Fatal("event did not start at frame 480")
	}
}

func TestLateEventPlaysImmediately(t *testing.T) {
	e := newEngine()
	e.Render(1000)
	_ = e.PlaySample("bd", epoch, effects.DefaultDescriptor(), "d1")
	if p, _ := e.Voices(); p != 1 {
		t.Fatalf("pending = %d", p)
	}
	e.Render(1)
	if _, a := e.Voices(); a != 1 {
		t.Fatal("late event should start on the next frame")
	}
}

func TestThousandEventsLeakNoNodes(t *testing.T) {
	tracker := &effects.Tracker{}
	e := newEngine(WithTracker(tracker))
	fx := effects.Descriptor{Gain: 0.9, Room: 0.3, Delay: 0.2, LPF: 4000, HPF: 100, Pan: 0.3}
	at := epoch
	for i := 0; i < 1000; i++ {
		_ = e.PlaySample("hh", at, fx, "d1")
		at = at.Add(5 * time.Millisecond)
	}
	// 5s of events plus the hi-hat length and the effect tail.
	e.Render(rate * 6)
	if tracker.Created() != 6000 {
		t.Fatalf("created = %d, want 6000", tracker.Created())
	}
	if tracker.Live() != 0 {
		t.Fatalf("leaked %d nodes", tracker.Live())
	}
}

func TestSampleOnlySkipsMissing(t *testing.T) {
	e := newEngine(WithSampleOnly(true), WithLibrary(samples.NewLibrary(quietLogger())))
	if err := e.PlaySample("bd", epoch, effects.DefaultDescriptor(), "d1"); err != nil {
		t.Fatalf("missing sample must not be an error: %v", err)
	}
	if p, a := e.Voices(); p+a != 0 {
		t.Fatal("sample-only mode scheduled a fallback")
	}
}

func TestUnknownSoundIsSkipped(t *testing.T) {
	e := newEngine()
	if err := e.PlaySample("arpy", epoch, effects.DefaultDescriptor(), "d1"); err != nil {
		t.Fatalf("play: %v", err)
	}
	if p, a := e.Voices(); p+a != 0 {
		t.Fatal("unknown sound scheduled a voice")
	}
}

func TestLibrarySamplePlayback(t *testing.T) {
	lib := samples.NewLibrary(quietLogger())
	lib.Add("pad", constSample(100, 0.25))
	e := newEngine(WithLibrary(lib))
	_ = e.PlaySample("pad", epoch, effects.DefaultDescriptor(), "d2")
	out := e.Render(200)
	if peak(out[:200]) == 0 {
		t.Fatal("sample produced no output")
	}
	if _, a := e.Voices(); a != 0 {
		t.Fatal("voice should be released after the sample ends")
	}
	if !e.HasSample("pad") || e.HasSample("bd") {
		t.Fatal("HasSample mismatch")
	}
}

func TestPlayerPoolStealsOldest(t *testing.T) {
	lib := samples.NewLibrary(quietLogger())
	lib.Add("pad", constSample(rate, 0.1))
	e := newEngine(WithLibrary(lib), WithPlayers(2))
	for i := 0; i < 3; i++ {
		_ = e.PlaySample("pad", epoch.Add(time.Duration(i)*time.Millisecond), effects.DefaultDescriptor(), "d1")
	}
	if p, a := e.Voices(); p != 3 || a != 0 {
		t.Fatalf("voices pending=%d active=%d, want 3 scheduled", p, a)
	}
	if e.pool.busy() != 0 {
		t.Fatalf("players bound before any voice started: %d", e.pool.busy())
	}
	e.Render(200)
	if p, a := e.Voices(); p != 0 || a != 2 {
		t.Fatalf("voices pending=%d active=%d, want 2 sounding", p, a)
	}
	if e.pool.busy() != 2 {
		t.Fatalf("busy players = %d", e.pool.busy())
	}
	if e.active[0].seq != 2 || e.active[1].seq != 3 {
		t.Fatalf("surviving voices = %d,%d, want 2,3", e.active[0].seq, e.active[1].seq)
	}
	if e.Tracker().Released() != 1 {
		t.Fatalf("released = %d, want the stolen chain", e.Tracker().Released())
	}
}

func TestShortHitsBeyondPoolSizeAllSound(t *testing.T) {
	const (
		hits   = 32
		length = rate / 50          // 20 ms
		gap    = rate * 625 / 10000 // 62.5 ms
	)
	lib := samples.NewLibrary(quietLogger())
	lib.Add("hh", constSample(length, 0.25))
	e := newEngine(WithLibrary(lib))
	for i := 0; i < hits; i++ {
		at := epoch.Add(time.Duration(i) * 62500 * time.Microsecond)
		_ = e.PlaySample("hh", at, effects.DefaultDescriptor(), "d1")
	}
	if e.Tracker().Released() != 0 {
		t.Fatalf("%d hits released before they started", e.Tracker().Released())
	}
	out := e.Render(hits * gap)
	for i := 0; i < hits; i++ {
		start := i * gap
		if peak(out[start*2:(start+length/2)*2]) < 0.01 {
			t.Fatalf("hit %d was silent", i)
		}
	}
	if e.pool.busy() != 0 {
		t.Fatalf("busy players = %d after every hit ended", e.pool.busy())
	}
}

func TestSynthPolyphonyCap(t *testing.T) {
	e := newEngine(WithPolyphony(2))
	for i := 0; i < 3; i++ {
		_ = e.PlayNote(60+i, "saw", epoch, time.Second, effects.DefaultDescriptor(), "d3")
	}
	if p, _ := e.Voices(); p != 3 {
		t.Fatalf("pending = %d, want every note scheduled", p)
	}
	e.Render(1)
	if p, a := e.Voices(); p != 0 || a != 2 {
		t.Fatalf("voices pending=%d active=%d, want 2 sounding", p, a)
	}
	if e.Tracker().Released() != 1 {
		t.Fatalf("released = %d, want the oldest note", e.Tracker().Released())
	}
}

func TestUnknownSynthStillPlays(t *testing.T) {
	e := newEngine()
	_ = e.PlayNote(69, "theremin", epoch, 50*time.Millisecond, effects.DefaultDescriptor(), "d1")
	if peak(e.Render(2400)) == 0 {
		t.Fatal("fallback sine was silent")
	}
}

func TestTailExtendsWindow(t *testing.T) {
	e := newEngine()
	_ = e.PlaySample("hh", epoch, effects.Descriptor{Gain: 1, Pan: 0.5, Room: 0.5}, "d1")
	e.Render(rate / 2)
	if _, a := e.Voices(); a != 1 {
		t.Fatal("voice with reverb should still ring")
	}
	e.Render(rate / 2)
	if _, a := e.Voices(); a != 0 {
		t.Fatal("voice should be released after the tail")
	}
}

func TestInstrumentSynthsPlayAndRelease(t *testing.T) {
	for _, name := range []string{"fm", "fm:bell", "opm:3", "chip", "chip:tri", "nes", "nes:noise", "wt", "wavetable:buzz"} {
		e := newEngine()
		_ = e.PlayNote(60, name, epoch, 100*time.Millisecond, effects.DefaultDescriptor(), "d1")
		if peak(e.Render(rate/10)) < 0.01 {
			t.Errorf("%s: expected audible note", name)
		}
		e.Render(rate / 2)
		if p, a := e.Voices(); p != 0 || a != 0 {
			t.Errorf("%s: voices pending=%d active=%d after release", name, p, a)
		}
		if live := e.Tracker().Live(); live != 0 {
			t.Errorf("%s: live nodes = %d", name, live)
		}
	}
}

func TestInstrumentsDiffer(t *testing.T) {
	render := func(name string) []float32 {
		e := newEngine()
		_ = e.PlayNote(57, name, epoch, 50*time.Millisecond, effects.DefaultDescriptor(), "d1")
		return e.Render(1200)
	}
	sine := render("sine")
	for _, name := range []string{"fm", "chip", "nes", "wt:organ"} {
		out := render(name)
		same := true
		for i := range out {
			if out[i] != sine[i] {
				same = false
				break
			}
		}
		if same {
			t.Errorf("%s rendered like the sine fallback", name)
		}
	}
}

func TestNESNotesShareChannels(t *testing.T) {
	e := newEngine()
	fx := effects.DefaultDescriptor()
	_ = e.PlayNote(40, "nes:tri", epoch, time.Second, fx, "d1")
	_ = e.PlayNote(43, "nes:tri", epoch.Add(10*time.Millisecond), time.Second, fx, "d1")
	e.Render(rate / 50)
	srcs := 0
	for _, v := range e.active {
		if !v.chain.Drained() {
			srcs++
		}
	}
	if srcs != 1 {
		t.Fatalf("%d triangle notes still sounding, want the later one only", srcs)
	}
}
