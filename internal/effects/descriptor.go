package effects

import "fmt"

// Transparent filter bounds in Hz. A high-pass at or below MinCutoff and a
// low-pass at or above MaxCutoff are bypassed.
const (
	MinCutoff = 20.0
	MaxCutoff = 20000.0
)

// Descriptor holds the per-pattern effect settings forwarded with every
// triggered event. LPF and HPF of 0 mean bypass.
type Descriptor struct {
	Gain   float64 `json:"gain"`
	Room   float64 `json:"room"`
	Delay  float64 `json:"delay"`
	LPF    float64 `json:"lpf"`
	HPF    float64 `json:"hpf"`
	Pan    float64 `json:"pan"`
	Shape  float64 `json:"shape"`
	Chorus float64 `json:"chorus"`
}

// DefaultDescriptor returns unity gain, centered pan and everything else off.
func DefaultDescriptor() Descriptor {
	return Descriptor{Gain: 1, Pan: 0.5}
}

// Clamped returns d with every field forced into its documented range.
func (d Descriptor) Clamped() Descriptor {
	d.Gain = clamp64(d.Gain, 0, 2)
	d.Room = clamp64(d.Room, 0, 1)
	d.Delay = clamp64(d.Delay, 0, 1)
	d.Pan = clamp64(d.Pan, 0, 1)
	d.Shape = clamp64(d.Shape, 0, 1)
	d.Chorus = clamp64(d.Chorus, 0, 1)
	d.LPF = ClampCutoff(d.LPF)
	d.HPF = ClampCutoff(d.HPF)
	return d
}

// HasTail reports whether the descriptor rings on after the source ends.
func (d Descriptor) HasTail() bool {
	return d.Room > 0 || d.Delay > 0
}

func (d Descriptor) String() string {
	return fmt.Sprintf("gain=%.2f room=%.2f delay=%.2f lpf=%.0f hpf=%.0f pan=%.2f shape=%.2f chorus=%.2f",
		d.Gain, d.Room, d.Delay, d.LPF, d.HPF, d.Pan, d.Shape, d.Chorus)
}

// ClampCutoff keeps a non-zero cutoff inside the audible band.
func ClampCutoff(hz float64) float64 {
	if hz <= 0 {
		return 0
	}
	return clamp64(hz, MinCutoff, MaxCutoff)
}

func clamp64(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
