package loopcode

import (
	"io"
	"math"
	"os"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	intsched "github.com/cbegin/loopcode/internal/scheduler"
)

// RenderCycles renders the bound slots for the given number of cycles at
// the current tempo and master settings. The live transport and the audio
// device are not touched.
func (a *App) RenderCycles(cycles int) []float32 {
	if cycles <= 0 {
		return nil
	}
	start := time.Unix(0, 0)
	eng := a.newEngine(start)
	eng.Bus().Apply(a.engine.Bus().Settings())
	sched := intsched.New(a.registry, eng,
		intsched.WithBPM(a.scheduler.BPM()),
		intsched.WithLogger(a.logger),
	)
	cycleDur := sched.CycleDuration()
	sr := float64(a.cfg.sampleRate)
	out := make([]float32, 0, int(float64(cycles)*cycleDur.Seconds()*sr)*2+2)
	rendered := 0
	for c := 1; c <= cycles; c++ {
		sched.DispatchCycle(c, start.Add(time.Duration(c-1)*cycleDur))
		end := int(math.Round(float64(c) * cycleDur.Seconds() * sr))
		out = append(out, eng.Render(end-rendered)...)
		rendered = end
	}
	return out
}

// WriteWAV encodes interleaved stereo float samples as 16-bit PCM.
func WriteWAV(w io.WriteSeeker, samples []float32, sampleRate int) error {
	enc := wav.NewEncoder(w, sampleRate, 16, 2, 1)
	data := make([]int, len(samples))
	for i, s := range samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		data[i] = int(math.Round(float64(s) * math.MaxInt16))
	}
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 2, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return err
	}
	return enc.Close()
}

// RenderWAV renders cycles of the current session into a WAV file at path.
func (a *App) RenderWAV(path string, cycles int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteWAV(f, a.RenderCycles(cycles), a.cfg.sampleRate); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
