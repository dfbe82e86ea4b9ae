package scheduler

import (
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cbegin/loopcode/internal/effects"
	"github.com/cbegin/loopcode/internal/mini"
	"github.com/cbegin/loopcode/internal/pattern"
	"github.com/cbegin/loopcode/internal/slots"
)

const (
	MinBPM        = 60
	MaxBPM        = 200
	DefaultBPM    = 120
	BeatsPerCycle = 4
)

// Trigger produces sound for dispatched events. at is the absolute time the
// sound should start.
type Trigger interface {
	PlaySample(name string, at time.Time, fx effects.Descriptor, slot string) error
	PlayNote(note int, synth string, at time.Time, dur time.Duration, fx effects.Descriptor, slot string) error
}

// Source supplies the patterns to play. *slots.Registry satisfies it.
type Source interface {
	Bindings() []slots.Binding
}

// Hooks are optional telemetry callbacks. They run on the scheduler
// goroutine and must not call Stop, Start or SetBPM.
type Hooks struct {
	OnBeat  func(beat int)
	OnCycle func(cycle int)
	OnEvent func(slot int, ev pattern.Event, at time.Time)
}

type Option func(*config)

type config struct {
	bpm    float64
	clock  Clock
	logger *slog.Logger
	hooks  Hooks
}

func WithBPM(bpm float64) Option {
	return func(cfg *config) { cfg.bpm = bpm }
}

func WithClock(c Clock) Option {
	return func(cfg *config) { cfg.clock = c }
}

func WithLogger(l *slog.Logger) Option {
	return func(cfg *config) { cfg.logger = l }
}

func WithHooks(h Hooks) Option {
	return func(cfg *config) { cfg.hooks = h }
}

// Scheduler walks a beat grid and, every fourth beat, dispatches one cycle
// of every bound pattern. Each tick re-arms its timer for the beat period
// minus the lateness it observed, so timer jitter does not accumulate.
type Scheduler struct {
	mu      sync.Mutex
	source  Source
	trigger Trigger
	clock   Clock
	logger  *slog.Logger
	hooks   Hooks
	bpm     float64
	running bool
	stop    chan struct{}
	done    chan struct{}

	cycle atomic.Int64

	// loop state, owned by Start and then the loop goroutine
	beat     int
	expected time.Time
	beatDur  time.Duration
	cycleDur time.Duration
	timer    Timer
}

func New(source Source, trigger Trigger, opts ...Option) *Scheduler {
	cfg := config{bpm: DefaultBPM, clock: RealClock{}, logger: slog.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Scheduler{
		source:  source,
		trigger: trigger,
		clock:   cfg.clock,
		logger:  cfg.logger,
		hooks:   cfg.hooks,
		bpm:     ClampBPM(cfg.bpm),
	}
}

// ClampBPM limits bpm to [MinBPM, MaxBPM].
func ClampBPM(bpm float64) float64 {
	if bpm < MinBPM {
		return MinBPM
	}
	if bpm > MaxBPM {
		return MaxBPM
	}
	return bpm
}

// SetHooks replaces the telemetry hooks. Call it while stopped.
func (s *Scheduler) SetHooks(h Hooks) {
	s.mu.Lock()
	s.hooks = h
	s.mu.Unlock()
}

func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Scheduler) BPM() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bpm
}

// Cycle returns the number of the last dispatched cycle, 0 when stopped.
func (s *Scheduler) Cycle() int { return int(s.cycle.Load()) }

// BeatDuration returns the beat period at the current tempo.
func (s *Scheduler) BeatDuration() time.Duration {
	return beatDuration(s.BPM())
}

// CycleDuration returns the cycle period at the current tempo.
func (s *Scheduler) CycleDuration() time.Duration {
	return BeatsPerCycle * s.BeatDuration()
}

// Start begins playback. Beat zero, including the first cycle dispatch,
// runs before Start returns. Starting a running scheduler does nothing.
func (s *Scheduler) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	s.cycle.Store(0)
	s.beat = 0
	s.beatDur = beatDuration(s.bpm)
	s.cycleDur = BeatsPerCycle * s.beatDur
	stop, done := s.stop, s.done
	s.mu.Unlock()

	now := s.clock.Now()
	s.expected = now.Add(s.beatDur)
	s.pulse(now)
	s.timer = s.clock.NewTimer(s.beatDur)
	go s.loop(stop, done)
}

// Stop halts playback and waits for the loop to exit. Sounds already handed
// to the trigger are not recalled.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	stop, done := s.stop, s.done
	s.mu.Unlock()

	close(stop)
	<-done
	s.timer.Stop()
	s.cycle.Store(0)
}

// SetBPM changes the tempo, clamped to [MinBPM, MaxBPM]. A running
// scheduler is stopped and restarted at the new tempo.
func (s *Scheduler) SetBPM(bpm float64) float64 {
	bpm = ClampBPM(bpm)
	s.mu.Lock()
	s.bpm = bpm
	running := s.running
	s.mu.Unlock()
	if running {
		s.Stop()
		s.Start()
	}
	return bpm
}

func (s *Scheduler) loop(stop, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-stop:
			return
		case <-s.timer.C():
		}
		select {
		case <-stop:
			return
		default:
		}
		s.tick()
	}
}

func (s *Scheduler) tick() {
	now := s.clock.Now()
	drift := now.Sub(s.expected)
	at := s.expected
	s.beat++
	s.pulse(at)
	s.expected = s.expected.Add(s.beatDur)
	delay := s.beatDur - drift
	if delay < 0 {
		delay = 0
	}
	s.timer.Reset(delay)
}

// pulse does the work of one beat: the beat hook, then on every fourth beat
// the cycle dispatch.
func (s *Scheduler) pulse(at time.Time) {
	if s.hooks.OnBeat != nil {
		s.hooks.OnBeat(s.beat)
	}
	if s.beat%BeatsPerCycle == 0 {
		s.scheduleCycle(at)
	}
}

func (s *Scheduler) scheduleCycle(at time.Time) {
	cycle := int(s.cycle.Add(1))
	if s.hooks.OnCycle != nil {
		s.hooks.OnCycle(cycle)
	}
	s.dispatchCycle(cycle, at, s.cycleDur)
}

// DispatchCycle sends the events of cycle to the trigger as if the cycle
// started at at, without touching the transport state. Offline rendering
// drives the trigger this way.
func (s *Scheduler) DispatchCycle(cycle int, at time.Time) {
	s.dispatchCycle(cycle, at, s.CycleDuration())
}

func (s *Scheduler) dispatchCycle(cycle int, at time.Time, cycleDur time.Duration) {
	if s.source == nil {
		return
	}
	for _, b := range s.source.Bindings() {
		if b.Pattern == nil {
			continue
		}
		fx := b.Pattern.Effects()
		for _, ev := range b.Pattern.EventsForCycle(cycle) {
			eventAt := at.Add(scale(cycleDur, ev.Time))
			if err := s.dispatch(b.Name, ev, eventAt, scale(cycleDur, ev.Duration), fx); err != nil {
				s.logger.Warn("trigger failed", "slot", b.Name, "sound", ev.Name(), "err", err)
			}
			if s.hooks.OnEvent != nil {
				s.hooks.OnEvent(b.Index, ev, eventAt)
			}
		}
	}
}

func (s *Scheduler) dispatch(slot string, ev pattern.Event, at time.Time, dur time.Duration, fx effects.Descriptor) error {
	if s.trigger == nil {
		return nil
	}
	if ev.Kind == pattern.KindNote {
		return s.trigger.PlayNote(mini.Resolve(ev.Event), ev.Synth, at, dur, fx, slot)
	}
	return s.trigger.PlaySample(ev.Name(), at, fx, slot)
}

func beatDuration(bpm float64) time.Duration {
	return time.Duration(math.Round(60 / bpm * float64(time.Second)))
}

func scale(d time.Duration, f float64) time.Duration {
	return time.Duration(math.Round(float64(d) * f))
}
