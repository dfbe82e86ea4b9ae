package effects

import (
	"math"
	"testing"
)

func TestDelayEchoArrivesAfterDelayTime(t *testing.T) {
	d := NewDelay(44100, 100, 0.5, 0, 0.5)
	d.Process(1, 1)
	for i := 0; i < 4409; i++ {
		if l, _ := d.Process(0, 0); l != 0 {
			t.Fatalf("frame %d: echo arrived early: %v", i+1, l)
		}
	}
	l, r := d.Process(0, 0)
	if math.Abs(float64(l)-0.5) > 1e-6 || math.Abs(float64(r)-0.5) > 1e-6 {
		t.Fatalf("echo = %v,%v, want 0.5,0.5", l, r)
	}
}

func TestDelayCrossFeedsOtherChannel(t *testing.T) {
	run := func(cross float32) float32 {
		d := NewDelay(1000, 10, 0.8, cross, 1)
		d.Process(1, 0)
		var right float32
		for i := 0; i < 200; i++ {
			_, r := d.Process(0, 0)
			right += abs32(r)
		}
		return right
	}
	if got := run(0); got != 0 {
		t.Fatalf("no cross: right energy = %v, want 0", got)
	}
	if got := run(1); got < 0.1 {
		t.Fatalf("ping-pong: right energy = %v, want > 0.1", got)
	}
}

func TestReverbTailAndReset(t *testing.T) {
	r := NewReverb(44100, 0.5, 0.7, 0.5)
	r.Process(1, 1)
	var peak float32
	for i := 0; i < 10000; i++ {
		l, _ := r.Process(0, 0)
		if a := abs32(l); a > peak {
			peak = a
		}
	}
	if peak < 0.001 {
		t.Fatal("expected reverb tail")
	}
	r.Reset()
	for i := 0; i < 10000; i++ {
		if l, rr := r.Process(0, 0); l != 0 || rr != 0 {
			t.Fatalf("frame %d after reset: %v,%v", i, l, rr)
		}
	}
}

func TestCompressorReducesLoudSignal(t *testing.T) {
	c := NewCompressor(44100, -10, 4, 1, 50, 0)
	var out float32
	for i := 0; i < 1000; i++ {
		out, _ = c.Process(1, 1)
	}
	if out >= 0.9 {
		t.Fatalf("compressed level = %v, want < 0.9", out)
	}
	if gr := c.GainReduction(); gr < 5 {
		t.Fatalf("gain reduction = %v dB, want about 7.5", gr)
	}
	c.Reset()
	if c.GainReduction() != 0 {
		t.Fatal("reset should clear gain reduction")
	}
}

func TestCompressorLeavesQuietSignal(t *testing.T) {
	c := NewCompressor(44100, -10, 4, 1, 50, 0)
	var out float32
	for i := 0; i < 1000; i++ {
		out, _ = c.Process(0.01, 0.01)
	}
	if math.Abs(float64(out)-0.01) > 1e-6 {
		t.Fatalf("quiet level = %v, want 0.01", out)
	}
}

func TestShaperKeepsFullScaleAndLiftsQuiet(t *testing.T) {
	s := NewShaper(48000, 0.5)
	var out float32
	for i := 0; i < 2000; i++ {
		out, _ = s.Process(1, 1)
	}
	if math.Abs(float64(out)-1) > 1e-3 {
		t.Fatalf("full scale = %v, want 1", out)
	}

	s = NewShaper(48000, 1)
	for i := 0; i < 2000; i++ {
		out, _ = s.Process(0.05, 0.05)
	}
	if out < 0.5 {
		t.Fatalf("driven quiet input = %v, want > 0.5", out)
	}
	for i := 0; i < 2000; i++ {
		l, r := s.Process(10, -10)
		if abs32(l) > 1+1e-6 || abs32(r) > 1+1e-6 {
			t.Fatalf("frame %d: output %v,%v exceeds full scale", i, l, r)
		}
	}
}

func TestChorusDryWhenWetIsZero(t *testing.T) {
	c := NewChorus(48000, 12, 0.2, 4, 0.8, 0)
	for i := 0; i < 100; i++ {
		v := float32(math.Sin(float64(i) * 0.1))
		l, r := c.Process(v, -v)
		if l != v || r != -v {
			t.Fatalf("frame %d: %v,%v, want %v,%v", i, l, r, v, -v)
		}
	}
}

func TestChorusDelaysImpulseWithinSweep(t *testing.T) {
	// 10ms ±2ms at 1kHz puts the impulse between 8 and 13 frames back.
	c := NewChorus(1000, 10, 0, 2, 0.8, 1)
	var early, late float32
	for i := 0; i < 20; i++ {
		in := float32(0)
		if i == 0 {
			in = 1
		}
		l, _ := c.Process(in, in)
		if i < 7 {
			early += abs32(l)
		} else {
			late += l
		}
	}
	if early != 0 {
		t.Fatalf("impulse leaked before sweep window: %v", early)
	}
	if math.Abs(float64(late)-1) > 0.05 {
		t.Fatalf("impulse energy in window = %v, want ~1", late)
	}
}

func TestEQFlatIsTransparent(t *testing.T) {
	eq := NewEQ(48000)
	if !eq.Flat() {
		t.Fatal("new EQ should be flat")
	}
	for i := 0; i < 500; i++ {
		v := float32(math.Sin(float64(i) * 0.3))
		l, r := eq.Process(v, v*0.5)
		if math.Abs(float64(l-v)) > 1e-5 || math.Abs(float64(r-v*0.5)) > 1e-5 {
			t.Fatalf("frame %d: %v,%v, want %v,%v", i, l, r, v, v*0.5)
		}
	}
}

func TestEQBandClampsAndCuts(t *testing.T) {
	eq := NewEQ(48000)
	eq.SetBand(0, -100)
	eq.SetBand(4, 40)
	eq.SetBand(7, 3)
	if got := eq.Band(0); got != EQMinDB {
		t.Fatalf("band 0 = %v, want %v", got, EQMinDB)
	}
	if got := eq.Band(4); got != EQMaxDB {
		t.Fatalf("band 4 = %v, want %v", got, EQMaxDB)
	}
	if eq.Flat() {
		t.Fatal("EQ should not be flat")
	}
	// DC lives entirely in the lowest band.
	var l float32
	for i := 0; i < 48000; i++ {
		l, _ = eq.Process(1, 1)
	}
	if math.Abs(float64(l)-math.Pow(10, -24.0/20)) > 1e-3 {
		t.Fatalf("DC through cut low band = %v", l)
	}
}

func TestChainRunsStagesInOrder(t *testing.T) {
	c := NewChain(NewGain(2), nil, NewLimiter(48000, 0.5, 50))
	if c.Len() != 2 {
		t.Fatalf("len = %d, want 2 (nil dropped)", c.Len())
	}
	l, r := c.Process(0.2, 0.4)
	if math.Abs(float64(l)-0.25) > 1e-6 || math.Abs(float64(r)-0.5) > 1e-6 {
		t.Fatalf("chain = %v,%v, want 0.25,0.5", l, r)
	}
	c.Add(nil)
	if c.Len() != 2 {
		t.Fatal("Add(nil) should be ignored")
	}
}
