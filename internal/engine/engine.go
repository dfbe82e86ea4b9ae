package engine

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/cbegin/loopcode/internal/effects"
	"github.com/cbegin/loopcode/internal/nesapu"
	"github.com/cbegin/loopcode/internal/samples"
	"github.com/cbegin/loopcode/internal/synth"
)

// tailSeconds is added to the playback window of events with reverb or
// delay so their tails can ring out before the chain is released.
const tailSeconds = 0.75

type Option func(*config)

type config struct {
	library    *samples.Library
	sampleOnly bool
	polyphony  int
	players    int
	params     synth.Params
	logger     *slog.Logger
	epoch      time.Time
	tracker    *effects.Tracker
}

// WithLibrary sets the samples PlaySample looks up first.
func WithLibrary(lib *samples.Library) Option {
	return func(c *config) { c.library = lib }
}

// WithSampleOnly disables synthesized drum fallbacks for missing samples.
func WithSampleOnly(enabled bool) Option {
	return func(c *config) { c.sampleOnly = enabled }
}

// WithPolyphony caps the number of concurrent synth voices.
func WithPolyphony(n int) Option {
	return func(c *config) { c.polyphony = n }
}

// WithPlayers sets the size of the sample player pool.
func WithPlayers(n int) Option {
	return func(c *config) { c.players = n }
}

func WithParams(p synth.Params) Option {
	return func(c *config) { c.params = p }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.logger = l }
}

// WithEpoch sets the wall-clock time of frame zero.
func WithEpoch(t time.Time) Option {
	return func(c *config) { c.epoch = t }
}

// WithTracker counts effect nodes built for events.
func WithTracker(t *effects.Tracker) Option {
	return func(c *config) { c.tracker = t }
}

// voice is one scheduled event. Sample voices carry their sample until
// Process binds a player at the start frame.
type voice struct {
	slot   string
	start  int64
	end    int64
	chain  *effects.EventChain
	sample *samples.Sample
	src    *sampleSource
	synth  bool
	seq    uint64
}

// Engine turns triggers into audio. It schedules one effect chain per event
// at the frame matching the event's time, mixes every chain into the master
// bus, and releases each chain once its playback window has passed.
type Engine struct {
	mu         sync.Mutex
	sampleRate int
	epoch      time.Time
	frame      int64
	builder    *effects.Builder
	bus        *effects.Bus
	library    *samples.Library
	sampleOnly bool
	polyphony  int
	params     synth.Params
	logger     *slog.Logger
	pool       *playerPool
	apu        *nesapu.APU
	registry   map[string]instrument
	pending    []*voice
	active     []*voice
	seq        uint64
	meters     map[string]*meter
	warned     map[string]bool
}

func New(sampleRate int, opts ...Option) *Engine {
	cfg := config{
		polyphony: 32,
		players:   16,
		params:    synth.DefaultParams(),
		logger:    slog.Default(),
		epoch:     time.Now(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.polyphony <= 0 {
		cfg.polyphony = 32
	}
	if cfg.players <= 0 {
		cfg.players = 16
	}
	e := &Engine{
		sampleRate: sampleRate,
		epoch:      cfg.epoch,
		builder:    effects.NewBuilder(sampleRate, cfg.tracker),
		bus:        effects.NewBus(sampleRate),
		library:    cfg.library,
		sampleOnly: cfg.sampleOnly,
		polyphony:  cfg.polyphony,
		params:     cfg.params,
		logger:     cfg.logger,
		pool:       newPlayerPool(cfg.players),
		apu:        nesapu.New(sampleRate, nesapu.DefaultParams()),
		meters:     make(map[string]*meter),
		warned:     make(map[string]bool),
	}
	e.registry = e.instruments()
	return e
}

// Bus returns the master bus.
func (e *Engine) Bus() *effects.Bus { return e.bus }

// Tracker returns the node counter of the chain builder.
func (e *Engine) Tracker() *effects.Tracker { return e.builder.Tracker() }

func (e *Engine) SampleRate() int { return e.sampleRate }

// Sync aligns the current render position with t.
func (e *Engine) Sync(t time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.epoch = t.Add(-e.framesToDuration(e.frame))
}

// HasSample reports whether the library holds name.
func (e *Engine) HasSample(name string) bool {
	return e.library != nil && e.library.Has(name)
}

// PlaySample triggers a sample at the given time. A missing sample falls
// back to a synthesized drum unless the engine is sample-only; a sound with
// no fallback is skipped and logged.
func (e *Engine) PlaySample(name string, at time.Time, fx effects.Descriptor, slot string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	start := e.frameAt(at)
	if e.library != nil {
		if s, ok := e.library.Get(name); ok {
			src := &sampleSource{}
			v := e.schedule(src, sampleFrames(s, e.sampleRate), start, fx, slot)
			v.sample = s
			v.src = src
			return nil
		}
	}
	if e.sampleOnly {
		e.warnOnce("sample:"+name, "sample not found, skipping", "sound", name)
		return nil
	}
	dv, ok := synth.NewDrum(e.sampleRate, name)
	if !ok {
		e.warnOnce("sound:"+name, "no sample or drum for sound, skipping", "sound", name)
		return nil
	}
	if e.library != nil {
		e.warnOnce("fallback:"+name, "sample not found, using synthesized drum", "sound", name)
	}
	v := e.schedule(dv, int64(dv.Frames()), start, fx, slot)
	v.synth = true
	return nil
}

// PlayNote triggers a synth note. Instrument names such as "fm:bell" or
// "nes" play on their chip; unknown synth names play as a sine.
func (e *Engine) PlayNote(note int, synthName string, at time.Time, dur time.Duration, fx effects.Descriptor, slot string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if src, frames, ok := e.newInstrumentNote(note, synthName, dur); ok {
		sv := e.schedule(src, frames, e.frameAt(at), fx, slot)
		sv.synth = true
		return nil
	}
	v, known := synth.NewNote(e.sampleRate, note, synthName, dur, e.params)
	if !known {
		e.warnOnce("synth:"+synthName, "unknown synth, using sine", "synth", synthName)
	}
	sv := e.schedule(v, int64(v.Frames()), e.frameAt(at), fx, slot)
	sv.synth = true
	return nil
}

func (e *Engine) schedule(src effects.Source, length, start int64, fx effects.Descriptor, slot string) *voice {
	if start < e.frame {
		start = e.frame
	}
	window := length
	if fx.HasTail() {
		window += int64(tailSeconds * float64(e.sampleRate))
	}
	if window < 1 {
		window = 1
	}
	chain := e.builder.Build(fx, src)
	chain.Connect(e.meterFor(slot))
	e.seq++
	v := &voice{slot: slot, start: start, end: start + window, chain: chain, seq: e.seq}
	i := sort.Search(len(e.pending), func(i int) bool { return e.pending[i].start > start })
	e.pending = append(e.pending, nil)
	copy(e.pending[i+1:], e.pending[i:])
	e.pending[i] = v
	return v
}

// activate moves v from pending to sounding. A sample voice gets its player
// here, so only sounding voices are ever stolen from.
func (e *Engine) activate(v *voice) {
	switch {
	case v.sample != nil:
		p, stolen := e.pool.acquire()
		if stolen != nil {
			e.logger.Debug("sample player stolen", "slot", stolen.slot)
			e.retire(stolen)
		}
		p.load(v.sample, e.sampleRate)
		p.owner = v
		v.src.bind(p)
	case v.synth:
		e.makeRoomForSynth()
	}
	e.active = append(e.active, v)
}

// makeRoomForSynth retires the oldest sounding synth voice when the cap is
// reached.
func (e *Engine) makeRoomForSynth() {
	n := 0
	var oldest *voice
	for _, v := range e.active {
		if !v.synth {
			continue
		}
		n++
		if oldest == nil || v.seq < oldest.seq {
			oldest = v
		}
	}
	if n >= e.polyphony && oldest != nil {
		e.logger.Debug("synth voice stolen", "slot", oldest.slot)
		e.retire(oldest)
	}
}

// release disposes v's chain and hands back its player.
func (e *Engine) release(v *voice) {
	v.chain.Dispose()
	if v.src != nil && v.src.p != nil {
		if v.src.p.owner == v {
			v.src.p.stop()
		}
		v.src.p = nil
	}
}

// retire releases v and drops it from the pending or active list.
func (e *Engine) retire(v *voice) {
	e.release(v)
	e.pending = remove(e.pending, v)
	e.active = remove(e.active, v)
}

func remove(list []*voice, v *voice) []*voice {
	for i, x := range list {
		if x == v {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}

// Process renders interleaved stereo frames into dst.
func (e *Engine) Process(dst []float32) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i := 0; i+1 < len(dst); i += 2 {
		for len(e.pending) > 0 && e.pending[0].start <= e.frame {
			v := e.pending[0]
			e.pending = e.pending[1:]
			e.activate(v)
		}
		kept := e.active[:0]
		for _, v := range e.active {
			if e.frame >= v.end {
				e.release(v)
				continue
			}
			v.chain.Step()
			kept = append(kept, v)
		}
		for j := len(kept); j < len(e.active); j++ {
			e.active[j] = nil
		}
		e.active = kept
		for _, m := range e.meters {
			m.flush(e.bus)
		}
		dst[i], dst[i+1] = e.bus.Render()
		e.frame++
	}
}

// Render returns frames of output. It is used for offline rendering.
func (e *Engine) Render(frames int) []float32 {
	out := make([]float32, frames*2)
	e.Process(out)
	return out
}

// Voices returns the number of scheduled and sounding voices.
func (e *Engine) Voices() (pending, active int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.pending), len(e.active)
}

// Frame returns the current render position.
func (e *Engine) Frame() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.frame
}

// Levels returns the recent peak level of every slot that has played.
func (e *Engine) Levels() map[string]float32 {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[string]float32, len(e.meters))
	for slot, m := range e.meters {
		out[slot] = m.peak
	}
	return out
}

func (e *Engine) frameAt(at time.Time) int64 {
	d := at.Sub(e.epoch)
	return int64(d.Seconds()*float64(e.sampleRate) + 0.5)
}

func (e *Engine) framesToDuration(frames int64) time.Duration {
	return time.Duration(float64(frames) / float64(e.sampleRate) * float64(time.Second))
}

func (e *Engine) meterFor(slot string) *meter {
	m, ok := e.meters[slot]
	if !ok {
		m = &meter{decay: 1 - 1/(0.3*float32(e.sampleRate))}
		e.meters[slot] = m
	}
	return m
}

func (e *Engine) warnOnce(key, msg string, args ...any) {
	if e.warned[key] {
		return
	}
	e.warned[key] = true
	e.logger.Warn(msg, args...)
}

// meter sums the chains of one slot, tracks their peak and forwards the
// frame to the bus.
type meter struct {
	l, r  float32
	peak  float32
	decay float32
}

func (m *meter) Mix(l, r float32) {
	m.l += l
	m.r += r
}

func (m *meter) flush(bus *effects.Bus) {
	a := abs32(m.l)
	if b := abs32(m.r); b > a {
		a = b
	}
	m.peak *= m.decay
	if a > m.peak {
		m.peak = a
	}
	bus.Mix(m.l, m.r)
	m.l, m.r = 0, 0
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
