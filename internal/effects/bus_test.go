package effects

import "testing"

func TestBusDefaults(t *testing.T) {
	b := NewBus(48000)
	if got := b.Settings(); got != DefaultBusSettings() {
		t.Fatalf("settings = %+v, want defaults", got)
	}
	want := BusSettings{HPF: 20, LPF: 20000, ThresholdDB: -20, Ratio: 4, Volume: 0.8}
	if DefaultBusSettings() != want {
		t.Fatalf("defaults = %+v, want %+v", DefaultBusSettings(), want)
	}
}

func TestBusSettersAndReset(t *testing.T) {
	b := NewBus(48000)
	b.SetLPF(800)
	b.SetHPF(5)
	b.SetCompressor(-12, 8)
	b.SetReverb(0.4)
	b.SetDelay(1.5)
	b.SetVolume(0.5)
	got := b.Settings()
	want := BusSettings{HPF: 20, LPF: 800, ThresholdDB: -12, Ratio: 8, Reverb: 0.4, Delay: 1, Volume: 0.5}
	if got != want {
		t.Fatalf("settings = %+v, want %+v", got, want)
	}
	b.Reset()
	if got := b.Settings(); got != DefaultBusSettings() {
		t.Fatalf("after reset = %+v, want defaults", got)
	}
}

func TestBusRenderLimitsOutput(t *testing.T) {
	b := NewBus(48000)
	b.SetVolume(2)
	for i := 0; i < 4800; i++ {
		b.Mix(2, 2)
		b.Mix(2, 2)
		l, r := b.Render()
		if abs32(l) > 0.98+1e-6 || abs32(r) > 0.98+1e-6 {
			t.Fatalf("frame %d exceeded limiter ceiling: %v %v", i, l, r)
		}
	}
}

func TestBusSilenceStaysSilent(t *testing.T) {
	b := NewBus(48000)
	for i := 0; i < 100; i++ {
		l, r := b.Render()
		if l != 0 || r != 0 {
			t.Fatalf("frame %d: expected silence, got %v %v", i, l, r)
		}
	}
}

func TestBusEQ(t *testing.T) {
	b := NewBus(48000)
	b.SetEQ(0, -30)
	b.SetEQ(3, 4)
	b.SetEQ(9, 4)
	want := [EQBands]float64{-24, 0, 0, 4, 0}
	if got := b.Settings().EQ; got != want {
		t.Fatalf("eq = %v, want %v", got, want)
	}
	b.SetReverb(0.2)
	if got := b.Settings().EQ; got != want {
		t.Fatalf("eq after rebuild = %v, want %v", got, want)
	}
	b.Reset()
	if got := b.Settings().EQ; got != ([EQBands]float64{}) {
		t.Fatalf("eq after reset = %v, want flat", got)
	}
}

func TestBusSettersKeepTails(t *testing.T) {
	b := NewBus(48000)
	b.SetDelay(1)
	b.Process(1, 1)
	for i := 1; i < 1000; i++ {
		b.Process(0, 0)
	}
	b.SetLPF(12000)
	b.SetHPF(40)
	b.SetCompressor(-10, 2)
	b.SetReverb(0.1)
	b.SetEQ(2, 3)
	var peak float32
	for i := 1000; i < 19000; i++ {
		l, _ := b.Process(0, 0)
		peak = max(peak, abs32(l))
	}
	if peak < 0.05 {
		t.Fatalf("delay echo lost when settings changed, peak = %v", peak)
	}
}

func TestBusLowPassRetunesInPlace(t *testing.T) {
	b := NewBus(48000)
	lpf := b.lpf
	b.SetLPF(500)
	if b.lpf != lpf || b.chain.Len() != 8 {
		t.Fatal("setter replaced the chain stages")
	}
	// A 500 Hz one-pole takes several frames to follow a step.
	l, _ := b.Process(0.5, 0.5)
	if l > 0.1 {
		t.Fatalf("first frame after a step = %v, want it smoothed", l)
	}
}
