package chiptune

import (
	"math"
	"testing"
)

func render(v *Voice, frames int) (peak float64, n int) {
	for i := 0; i < frames; i++ {
		l, _, ok := v.Next()
		if !ok {
			return
		}
		n++
		if a := math.Abs(float64(l)); a > peak {
			peak = a
		}
	}
	return
}

func TestEveryWaveSounds(t *testing.T) {
	for w := PulseA; w <= Noise; w++ {
		v := NewVoice(48000, 60, 0.8, w, DefaultParams())
		if peak, _ := render(v, 4800); peak == 0 {
			t.Errorf("wave %d silent", w)
		}
	}
}

func TestReleaseEndsVoice(t *testing.T) {
	p := DefaultParams()
	v := NewVoice(48000, 64, 1, Triangle, p)
	if _, n := render(v, 4800); n != 4800 {
		t.Fatalf("held voice stopped after %d frames", n)
	}
	v.Release()
	tail := int(v.Tail().Seconds()*48000) + 10
	if _, n := render(v, tail*2); n > tail {
		t.Fatalf("voice rang for %d frames after release", n)
	}
	if _, _, ok := v.Next(); ok {
		t.Fatal("finished voice kept producing")
	}
}

func TestLevelsAreStepped(t *testing.T) {
	p := DefaultParams()
	p.StepLevels = 4
	if got := quantize(0.4, p.StepLevels); got != 1.0/3 {
		t.Fatalf("quantize(0.4, 4) = %v", got)
	}
	if got := quantize(0.9, 1); got != 0.9 {
		t.Fatalf("one step level should pass through, got %v", got)
	}
}

func TestWaveForProgram(t *testing.T) {
	cases := map[int]Wave{0: PulseA, 1: PulseB, 2: Triangle, 3: Noise, 10: PulseA, 40: PulseB, 70: Triangle, 100: Noise}
	for program, want := range cases {
		if got := WaveForProgram(program); got != want {
			t.Errorf("WaveForProgram(%d) = %d, want %d", program, got, want)
		}
	}
	if w, ok := LookupWave("tri"); !ok || w != Triangle {
		t.Fatal("tri should be triangle")
	}
	if w, ok := LookupWave("3"); !ok || w != Noise {
		t.Fatal("3 should be noise")
	}
	if _, ok := LookupWave("saxophone"); ok {
		t.Fatal("unknown wave reported ok")
	}
}

func TestVibratoBendsPitch(t *testing.T) {
	plain := NewVoice(48000, 69, 1, Triangle, DefaultParams())
	p := DefaultParams()
	p.Vibrato = 1
	wobbly := NewVoice(48000, 69, 1, Triangle, p)
	differs := false
	for i := 0; i < 4800; i++ {
		a, _, _ := plain.Next()
		b, _, _ := wobbly.Next()
		if a != b {
			differs = true
			break
		}
	}
	if !differs {
		t.Fatal("vibrato had no effect")
	}
}
