// Package midiout sends pattern events to an external MIDI port.
package midiout

import (
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"

	"github.com/cbegin/loopcode/internal/effects"
	"github.com/cbegin/loopcode/internal/synth"
)

const (
	DrumChannel  = 9
	NoteChannel  = 0
	drumDuration = 100 * time.Millisecond
)

// General MIDI percussion keys.
var drumKeys = map[string]uint8{
	"bd": 36,
	"sd": 38,
	"hh": 42,
	"oh": 46,
	"cp": 39,
}

// DrumKey maps a sound name ("bd", "kick", "sd:2") to its GM percussion key.
func DrumKey(name string) (uint8, bool) {
	base, ok := synth.CanonicalDrum(name)
	if !ok {
		return 0, false
	}
	k, ok := drumKeys[base]
	return k, ok
}

// Velocity converts a linear gain into a MIDI velocity. A silent gain maps
// to 0 and is never sent, since a note on with velocity 0 means note off.
func Velocity(gain float64) uint8 {
	if gain <= 0 {
		return 0
	}
	v := math.Round(gain * 100)
	if v < 1 {
		return 1
	}
	if v > 127 {
		return 127
	}
	return uint8(v)
}

type Option func(*Trigger)

// WithSend replaces the port writer.
func WithSend(send func(midi.Message) error) Option {
	return func(t *Trigger) { t.send = send }
}

// WithAfterFunc replaces the timer used to schedule note messages.
func WithAfterFunc(after func(time.Duration, func())) Option {
	return func(t *Trigger) { t.after = after }
}

func WithNow(now func() time.Time) Option {
	return func(t *Trigger) { t.now = now }
}

func WithLogger(l *slog.Logger) Option {
	return func(t *Trigger) { t.logger = l }
}

// Trigger turns sample and note events into MIDI note on/off pairs.
type Trigger struct {
	mu     sync.Mutex
	send   func(midi.Message) error
	after  func(time.Duration, func())
	now    func() time.Time
	logger *slog.Logger
	out    drivers.Out
	sent   int
}

func New(opts ...Option) *Trigger {
	t := &Trigger{
		after:  func(d time.Duration, fn func()) { time.AfterFunc(d, fn) },
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.send == nil {
		t.send = func(midi.Message) error { return fmt.Errorf("midi output not open") }
	}
	return t
}

// Open finds an output port whose name contains name (case-insensitive)
// and returns a Trigger writing to it. An empty name selects the first port.
func Open(name string, opts ...Option) (*Trigger, error) {
	outs, err := drivers.Outs()
	if err != nil {
		return nil, err
	}
	var found drivers.Out
	for _, out := range outs {
		if name == "" || strings.Contains(strings.ToLower(out.String()), strings.ToLower(name)) {
			found = out
			break
		}
	}
	if found == nil {
		return nil, fmt.Errorf("midi output %q not found", name)
	}
	if err := found.Open(); err != nil {
		return nil, err
	}
	t := New(opts...)
	t.out = found
	t.send = func(msg midi.Message) error {
		return found.Send(msg.Bytes())
	}
	t.logger.Info("midi output opened", "port", found.String())
	return t, nil
}

// Ports lists the available output port names.
func Ports() ([]string, error) {
	outs, err := drivers.Outs()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(outs))
	for _, out := range outs {
		names = append(names, out.String())
	}
	return names, nil
}

func (t *Trigger) PlaySample(name string, at time.Time, fx effects.Descriptor, slot string) error {
	key, ok := DrumKey(name)
	if !ok {
		t.logger.Debug("no midi mapping for sound", "sound", name, "slot", slot)
		return nil
	}
	t.schedule(DrumChannel, key, Velocity(fx.Gain), at, drumDuration)
	return nil
}

func (t *Trigger) PlayNote(note int, synthName string, at time.Time, dur time.Duration, fx effects.Descriptor, slot string) error {
	if note < 0 || note > 127 {
		return fmt.Errorf("note %d outside midi range", note)
	}
	t.schedule(NoteChannel, uint8(note), Velocity(fx.Gain), at, dur)
	return nil
}

func (t *Trigger) schedule(ch, key, vel uint8, at time.Time, dur time.Duration) {
	if vel == 0 {
		return
	}
	delay := at.Sub(t.now())
	if delay < 0 {
		delay = 0
	}
	t.after(delay, func() {
		t.write(midi.NoteOn(ch, key, vel))
		t.after(dur, func() { t.write(midi.NoteOff(ch, key)) })
	})
}

func (t *Trigger) write(msg midi.Message) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.send(msg); err != nil {
		t.logger.Warn("midi send failed", "err", err)
		return
	}
	t.sent++
}

// Sent returns the number of messages written successfully.
func (t *Trigger) Sent() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sent
}

func (t *Trigger) Close() error {
	if t.out == nil {
		return nil
	}
	err := t.out.Close()
	drivers.Close()
	return err
}
