package audio

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"
	"time"

	ebitaudio "github.com/hajimehoshi/ebiten/v2/audio"
)

// Source fills interleaved stereo float32 frames.
type Source interface {
	Process(dst []float32)
}

// StreamReader adapts a Source to the float32 little-endian byte stream
// the audio device reads.
type StreamReader struct {
	mu     sync.Mutex
	source Source
	buf    []float32
	frames int64
}

func NewStreamReader(source Source) *StreamReader {
	return &StreamReader{source: source}
}

func (r *StreamReader) Read(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	frames := len(p) / 8
	if frames == 0 {
		return 0, nil
	}
	need := frames * 2
	if cap(r.buf) < need {
		r.buf = make([]float32, need)
	}
	r.buf = r.buf[:need]
	r.source.Process(r.buf)
	for i, v := range r.buf {
		binary.LittleEndian.PutUint32(p[i*4:], math.Float32bits(v))
	}
	r.frames += int64(frames)
	return frames * 8, nil
}

// Frames returns how many frames have been pulled from the source.
func (r *StreamReader) Frames() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frames
}

func (r *StreamReader) Close() error { return nil }

var (
	contextOnce sync.Once
	context     *ebitaudio.Context
	contextRate int
)

func sharedContext(sampleRate int) (*ebitaudio.Context, error) {
	contextOnce.Do(func() {
		contextRate = sampleRate
		context = ebitaudio.NewContext(sampleRate)
	})
	if contextRate != sampleRate {
		return nil, fmt.Errorf("audio context already initialized at %d Hz (requested %d Hz)", contextRate, sampleRate)
	}
	return context, nil
}

// Output streams a Source to the default audio device.
type Output struct {
	player *ebitaudio.Player
	reader *StreamReader
}

// Open creates a paused output. bufferSize trades latency for robustness;
// zero keeps the device default.
func Open(sampleRate int, source Source, bufferSize time.Duration) (*Output, error) {
	ctx, err := sharedContext(sampleRate)
	if err != nil {
		return nil, err
	}
	reader := NewStreamReader(source)
	pl, err := ctx.NewPlayerF32(reader)
	if err != nil {
		return nil, err
	}
	if bufferSize > 0 {
		pl.SetBufferSize(bufferSize)
	}
	return &Output{player: pl, reader: reader}, nil
}

func (o *Output) Play()           { o.player.Play() }
func (o *Output) Pause()          { o.player.Pause() }
func (o *Output) IsPlaying() bool { return o.player.IsPlaying() }

// Position returns the current playback position (what the listener actually hears).
func (o *Output) Position() time.Duration {
	return o.player.Position()
}

func (o *Output) Close() error {
	o.player.Pause()
	if err := o.player.Close(); err != nil {
		return err
	}
	return o.reader.Close()
}
