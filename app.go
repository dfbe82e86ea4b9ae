package loopcode

import (
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	intaudio "github.com/cbegin/loopcode/internal/audio"
	intfx "github.com/cbegin/loopcode/internal/effects"
	intengine "github.com/cbegin/loopcode/internal/engine"
	inteval "github.com/cbegin/loopcode/internal/eval"
	intpattern "github.com/cbegin/loopcode/internal/pattern"
	intsamples "github.com/cbegin/loopcode/internal/samples"
	intsched "github.com/cbegin/loopcode/internal/scheduler"
	intslots "github.com/cbegin/loopcode/internal/slots"
)

// Event carries telemetry from Watch().
type Event struct {
	Kind    int // one of the Event* constants
	Cycle   int
	Beat    int
	Slot    int // 1-based slot number for EventHighlight
	Sound   string
	At      time.Time
	Active  []string
	Running bool
}

const (
	EventBeat int = iota
	EventCycle
	EventHighlight
	EventSlots
	EventHush
	EventTransport
)

// Result is the outcome of evaluating one statement.
type Result = inteval.Result

type Option func(*appConfig)

type appConfig struct {
	bpm          float64
	sampleRate   int
	sampleDir    string
	sampleOnly   bool
	polyphony    int
	masterVolume float64
	trigger      intsched.Trigger
	clock        intsched.Clock
	rng          intpattern.RandomSource
	logger       *slog.Logger
}

func defaultAppConfig() appConfig {
	return appConfig{
		bpm:          intsched.DefaultBPM,
		sampleRate:   48000,
		polyphony:    32,
		masterVolume: -1,
		clock:        intsched.RealClock{},
		logger:       slog.Default(),
	}
}

func WithBPM(bpm float64) Option {
	return func(cfg *appConfig) { cfg.bpm = bpm }
}

func WithSampleRate(rate int) Option {
	return func(cfg *appConfig) { cfg.sampleRate = rate }
}

// WithSampleDir loads WAV samples from dir at construction.
func WithSampleDir(dir string) Option {
	return func(cfg *appConfig) { cfg.sampleDir = dir }
}

// WithSampleOnly disables the synthesized drum fallback for missing samples.
func WithSampleOnly(enabled bool) Option {
	return func(cfg *appConfig) { cfg.sampleOnly = enabled }
}

func WithPolyphony(n int) Option {
	return func(cfg *appConfig) { cfg.polyphony = n }
}

func WithMasterVolume(v float64) Option {
	return func(cfg *appConfig) { cfg.masterVolume = v }
}

// WithTrigger routes scheduled events to t instead of the audio engine.
func WithTrigger(t intsched.Trigger) Option {
	return func(cfg *appConfig) { cfg.trigger = t }
}

func WithClock(c intsched.Clock) Option {
	return func(cfg *appConfig) { cfg.clock = c }
}

// WithRand sets the random source of sometimes/rarely/often.
func WithRand(r intpattern.RandomSource) Option {
	return func(cfg *appConfig) { cfg.rng = r }
}

func WithLogger(l *slog.Logger) Option {
	return func(cfg *appConfig) { cfg.logger = l }
}

// App wires the slot registry, evaluator, scheduler and audio engine
// into one live-coding session.
type App struct {
	mu        sync.Mutex
	cfg       appConfig
	registry  *intslots.Registry
	library   *intsamples.Library
	engine    *intengine.Engine
	scheduler *intsched.Scheduler
	evaluator *inteval.Evaluator
	audio     *intaudio.Output
	logger    *slog.Logger
	eventCh   chan Event
	eventChMu sync.Mutex
}

func New(opts ...Option) (*App, error) {
	cfg := defaultAppConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.sampleRate <= 0 {
		return nil, errors.New("sampleRate must be positive")
	}
	a := &App{cfg: cfg, logger: cfg.logger, registry: intslots.NewRegistry()}

	a.library = intsamples.NewLibrary(cfg.logger)
	if cfg.sampleDir != "" {
		if err := a.library.Load(cfg.sampleDir); err != nil {
			cfg.logger.Warn("sample directory unavailable, using synthesized drums", "dir", cfg.sampleDir, "err", err)
		} else {
			cfg.logger.Info("samples loaded", "dir", cfg.sampleDir, "count", a.library.Len())
		}
	}
	a.engine = a.newEngine(cfg.clock.Now())
	if cfg.masterVolume >= 0 {
		a.engine.Bus().SetVolume(cfg.masterVolume)
	}

	trigger := cfg.trigger
	if trigger == nil {
		trigger = a.engine
	}
	a.scheduler = intsched.New(a.registry, trigger,
		intsched.WithBPM(cfg.bpm),
		intsched.WithClock(cfg.clock),
		intsched.WithLogger(cfg.logger),
		intsched.WithHooks(intsched.Hooks{
			OnBeat: func(beat int) {
				a.sendEvent(Event{Kind: EventBeat, Beat: beat})
			},
			OnCycle: func(cycle int) {
				a.sendEvent(Event{Kind: EventCycle, Cycle: cycle})
			},
			OnEvent: func(slot int, ev intpattern.Event, at time.Time) {
				a.sendEvent(Event{Kind: EventHighlight, Slot: slot, Sound: ev.Name(), At: at})
			},
		}),
	)
	a.registry.OnChange(func(active []string) {
		a.sendEvent(Event{Kind: EventSlots, Active: active})
	})

	evalOpts := []inteval.Option{
		inteval.WithTransport(transport{a}),
		inteval.WithMaster(a.engine.Bus()),
		inteval.WithCycle(a.scheduler.Cycle),
		inteval.WithHushHook(func() { a.sendEvent(Event{Kind: EventHush}) }),
		inteval.WithLogger(cfg.logger),
	}
	if cfg.rng != nil {
		evalOpts = append(evalOpts, inteval.WithRand(cfg.rng))
	}
	a.evaluator = inteval.New(a.registry, evalOpts...)
	return a, nil
}

func (a *App) newEngine(epoch time.Time) *intengine.Engine {
	return intengine.New(a.cfg.sampleRate,
		intengine.WithLibrary(a.library),
		intengine.WithSampleOnly(a.cfg.sampleOnly),
		intengine.WithPolyphony(a.cfg.polyphony),
		intengine.WithEpoch(epoch),
		intengine.WithLogger(a.cfg.logger),
	)
}

// transport lets the evaluator drive the scheduler while the App reports
// the change on Watch.
type transport struct{ a *App }

func (t transport) Start()                     { t.a.Start() }
func (t transport) Stop()                      { t.a.Stop() }
func (t transport) SetBPM(bpm float64) float64 { return t.a.SetBPM(bpm) }
func (t transport) Running() bool              { return t.a.scheduler.Running() }

// Evaluate runs one statement.
func (a *App) Evaluate(line string) Result {
	return a.evaluator.Evaluate(line)
}

// EvaluateAll runs a block of code line by line. Failures are reported per
// statement and do not stop the rest.
func (a *App) EvaluateAll(code string) []Result {
	return a.evaluator.EvaluateAll(code)
}

func (a *App) Start() {
	a.scheduler.Start()
	a.sendEvent(Event{Kind: EventTransport, Running: true})
}

func (a *App) Stop() {
	a.scheduler.Stop()
	a.sendEvent(Event{Kind: EventTransport, Running: false})
}

// SetBPM clamps bpm to [60, 200] and returns the applied tempo.
func (a *App) SetBPM(bpm float64) float64 {
	return a.scheduler.SetBPM(bpm)
}

func (a *App) BPM() float64    { return a.scheduler.BPM() }
func (a *App) Running() bool   { return a.scheduler.Running() }
func (a *App) Cycle() int      { return a.scheduler.Cycle() }
func (a *App) Slots() []string { return a.registry.Active() }

// Hush clears every slot. The transport keeps running.
func (a *App) Hush() {
	a.registry.Hush()
	a.sendEvent(Event{Kind: EventHush})
}

// Master returns the master bus.
func (a *App) Master() *intfx.Bus { return a.engine.Bus() }

// Engine returns the audio engine.
func (a *App) Engine() *intengine.Engine { return a.engine }

// HasSample reports whether the sample library holds name.
func (a *App) HasSample(name string) bool {
	return a.library.Has(name)
}

// MissingSamples lists the sounds bound patterns use in their next cycle
// that the sample library cannot provide.
func (a *App) MissingSamples() []string {
	cycle := a.scheduler.Cycle() + 1
	seen := make(map[string]bool)
	var out []string
	for _, b := range a.registry.Bindings() {
		for _, ev := range b.Pattern.EventsForCycle(cycle) {
			if ev.Kind == intpattern.KindNote {
				continue
			}
			name := ev.Name()
			if seen[name] || a.library.Has(name) {
				continue
			}
			seen[name] = true
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// OpenAudio starts streaming the engine to the default output device.
func (a *App) OpenAudio(bufferSize time.Duration) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.audio != nil {
		return nil
	}
	out, err := intaudio.Open(a.cfg.sampleRate, a.engine, bufferSize)
	if err != nil {
		return err
	}
	a.engine.Sync(a.cfg.clock.Now().Add(bufferSize))
	out.Play()
	a.audio = out
	return nil
}

// Close stops the transport and the audio device.
func (a *App) Close() error {
	a.Stop()
	a.mu.Lock()
	out := a.audio
	a.audio = nil
	a.mu.Unlock()
	if out != nil {
		return out.Close()
	}
	return nil
}

// Watch returns a channel that receives telemetry events:
//   - EventBeat on every beat, EventCycle when a cycle is dispatched
//   - EventHighlight for every dispatched event (Slot, Sound, At)
//   - EventSlots after a slot changes, EventHush after hush
//   - EventTransport when playback starts or stops
//
// The channel is buffered (cap 64); events are dropped when it is full.
// Only the most recent Watch() channel receives events.
func (a *App) Watch() <-chan Event {
	ch := make(chan Event, 64)
	a.eventChMu.Lock()
	a.eventCh = ch
	a.eventChMu.Unlock()
	return ch
}

func (a *App) sendEvent(ev Event) {
	a.eventChMu.Lock()
	ch := a.eventCh
	a.eventChMu.Unlock()
	if ch != nil {
		select {
		case ch <- ev:
		default:
		}
	}
}
