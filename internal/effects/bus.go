package effects

import "sync"

// BusSettings is the current master bus configuration.
type BusSettings struct {
	HPF         float64          `json:"hpf"`
	LPF         float64          `json:"lpf"`
	ThresholdDB float64          `json:"thresholdDb"`
	Ratio       float64          `json:"ratio"`
	Reverb      float64          `json:"reverb"`
	Delay       float64          `json:"delay"`
	Volume      float64          `json:"volume"`
	EQ          [EQBands]float64 `json:"eq"`
}

// DefaultBusSettings returns the values Reset restores.
func DefaultBusSettings() BusSettings {
	return BusSettings{
		HPF:         MinCutoff,
		LPF:         MaxCutoff,
		ThresholdDB: -20,
		Ratio:       4,
		Volume:      0.8,
	}
}

// Bus is the long-lived master chain every event chain feeds:
// HPF, LPF, EQ, compressor, reverb, delay, gain, limiter. Setters retune
// the stages in place, so filter state and effect tails carry over.
type Bus struct {
	mu         sync.Mutex
	sampleRate int
	settings   BusSettings
	chain      *Chain
	hpf        *HighPass
	lpf        *LowPass
	eq         *EQ
	comp       *Compressor
	reverb     *Reverb
	delay      *Delay
	gain       *Gain
	accL, accR float32
}

func NewBus(sampleRate int) *Bus {
	d := DefaultBusSettings()
	b := &Bus{
		sampleRate: sampleRate,
		hpf:        NewHighPass(sampleRate, d.HPF),
		lpf:        NewLowPass(sampleRate, d.LPF),
		eq:         NewEQ(sampleRate),
		comp:       NewCompressor(sampleRate, float32(d.ThresholdDB), float32(d.Ratio), 5, 120, 0),
		reverb:     NewReverb(sampleRate, 0.8, 0.8, 0),
		delay:      NewDelay(sampleRate, 375, 0.45, 0.3, 0),
		gain:       NewGain(float32(d.Volume)),
	}
	b.chain = NewChain(b.hpf, b.lpf, b.eq, b.comp, b.reverb, b.delay, b.gain, NewLimiter(sampleRate, 0.98, 80))
	b.apply(d)
	return b
}

// Mix accumulates one event frame. It is called from the render thread
// only, between Render calls.
func (b *Bus) Mix(l, r float32) {
	b.accL += l
	b.accR += r
}

// Render runs the accumulated frame through the master chain and clears
// the accumulator.
func (b *Bus) Render() (float32, float32) {
	l, r := b.accL, b.accR
	b.accL, b.accR = 0, 0
	b.mu.Lock()
	l, r = b.chain.Process(l, r)
	b.mu.Unlock()
	return l, r
}

// Process renders l, r directly through the master chain.
func (b *Bus) Process(l, r float32) (float32, float32) {
	b.Mix(l, r)
	return b.Render()
}

func (b *Bus) Settings() BusSettings {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.settings
}

func (b *Bus) SetHPF(hz float64) {
	b.update(func(s *BusSettings) { s.HPF = clamp64(hz, MinCutoff, MaxCutoff) })
}

func (b *Bus) SetLPF(hz float64) {
	b.update(func(s *BusSettings) { s.LPF = clamp64(hz, MinCutoff, MaxCutoff) })
}

func (b *Bus) SetCompressor(thresholdDB, ratio float64) {
	b.update(func(s *BusSettings) {
		s.ThresholdDB = clamp64(thresholdDB, -60, 0)
		s.Ratio = clamp64(ratio, 1, 20)
	})
}

func (b *Bus) SetReverb(amount float64) {
	b.update(func(s *BusSettings) { s.Reverb = clamp64(amount, 0, 1) })
}

func (b *Bus) SetDelay(amount float64) {
	b.update(func(s *BusSettings) { s.Delay = clamp64(amount, 0, 1) })
}

// SetEQ sets one EQ band in dB. Bands outside [0, EQBands) are ignored.
func (b *Bus) SetEQ(band int, db float64) {
	if band < 0 || band >= EQBands {
		return
	}
	b.update(func(s *BusSettings) { s.EQ[band] = db })
}

// SetVolume changes the master gain.
func (b *Bus) SetVolume(v float64) {
	b.update(func(s *BusSettings) { s.Volume = clamp64(v, 0, 2) })
}

// Reset restores DefaultBusSettings.
func (b *Bus) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.apply(DefaultBusSettings())
}

// Apply replaces every setting at once.
func (b *Bus) Apply(settings BusSettings) {
	b.update(func(s *BusSettings) { *s = settings })
}

func (b *Bus) update(fn func(*BusSettings)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := b.settings
	fn(&s)
	b.apply(s)
}

// apply pushes s into the existing stages; the caller holds mu (or owns b
// exclusively).
func (b *Bus) apply(s BusSettings) {
	sr := b.sampleRate
	b.hpf.SetCutoff(sr, s.HPF)
	b.lpf.SetCutoff(sr, s.LPF)
	for i, db := range s.EQ {
		b.eq.SetBand(i, db)
		s.EQ[i] = b.eq.Band(i)
	}
	b.comp.SetThreshold(float32(s.ThresholdDB))
	b.comp.SetRatio(float32(s.Ratio))
	b.reverb.SetWet(float32(s.Reverb))
	b.delay.SetWet(float32(s.Delay))
	b.gain.Set(float32(s.Volume))
	b.settings = s
}
