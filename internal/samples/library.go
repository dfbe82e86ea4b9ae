package samples

import (
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/go-audio/wav"
)

// Sample is decoded PCM audio as interleaved stereo float32 frames.
type Sample struct {
	Name       string
	SampleRate int
	Data       []float32
}

// Frames returns the number of stereo frames.
func (s *Sample) Frames() int { return len(s.Data) / 2 }

// Library holds named samples. A directory of WAV files becomes a bank:
// "bd/a.wav", "bd/b.wav" are "bd:0" and "bd:1", and "bd" is "bd:0".
type Library struct {
	mu      sync.RWMutex
	samples map[string]*Sample
	logger  *slog.Logger
}

func NewLibrary(logger *slog.Logger) *Library {
	if logger == nil {
		logger = slog.Default()
	}
	return &Library{samples: make(map[string]*Sample), logger: logger}
}

// Load adds every WAV file under dir. Top-level files are named after the
// file; files in subdirectories form banks named after the directory.
// Files that fail to decode are logged and skipped.
func (l *Library) Load(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fault.Wrap(err, fmsg.With("read sample directory"))
	}
	for _, ent := range entries {
		path := filepath.Join(dir, ent.Name())
		if ent.IsDir() {
			l.loadBank(ent.Name(), path)
			continue
		}
		if !isWAV(ent.Name()) {
			continue
		}
		name := strings.TrimSuffix(ent.Name(), filepath.Ext(ent.Name()))
		l.loadFile(strings.ToLower(name), path)
	}
	return nil
}

func (l *Library) loadBank(bank, dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		l.logger.Warn("skipping sample bank", "bank", bank, "err", err)
		return
	}
	var files []string
	for _, ent := range entries {
		if !ent.IsDir() && isWAV(ent.Name()) {
			files = append(files, ent.Name())
		}
	}
	sort.Strings(files)
	bank = strings.ToLower(bank)
	for i, f := range files {
		l.loadFile(fmt.Sprintf("%s:%d", bank, i), filepath.Join(dir, f))
	}
}

func (l *Library) loadFile(name, path string) {
	s, err := DecodeFile(path)
	if err != nil {
		l.logger.Warn("skipping sample", "name", name, "path", path, "err", err)
		return
	}
	s.Name = name
	l.Add(name, s)
}

// Add registers s under name, replacing any sample with that name.
func (l *Library) Add(name string, s *Sample) {
	l.mu.Lock()
	l.samples[name] = s
	l.mu.Unlock()
}

// Get finds a sample. "bd" also matches the first entry of bank "bd", and
// a bank index wraps around the bank size.
func (l *Library) Get(name string) (*Sample, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if s, ok := l.samples[name]; ok {
		return s, true
	}
	base, idx := splitName(name)
	if s, ok := l.samples[base]; ok && idx == 0 {
		return s, true
	}
	n := l.bankSizeLocked(base)
	if n == 0 {
		return nil, false
	}
	s, ok := l.samples[fmt.Sprintf("%s:%d", base, idx%n)]
	return s, ok
}

// Has reports whether Get would find name.
func (l *Library) Has(name string) bool {
	_, ok := l.Get(name)
	return ok
}

// Names lists every registered sample name in order.
func (l *Library) Names() []string {
	l.mu.RLock()
	out := make([]string, 0, len(l.samples))
	for name := range l.samples {
		out = append(out, name)
	}
	l.mu.RUnlock()
	sort.Strings(out)
	return out
}

func (l *Library) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.samples)
}

func (l *Library) bankSizeLocked(base string) int {
	n := 0
	for {
		if _, ok := l.samples[fmt.Sprintf("%s:%d", base, n)]; !ok {
			return n
		}
		n++
	}
}

func splitName(name string) (string, int) {
	i := strings.IndexByte(name, ':')
	if i < 0 {
		return name, 0
	}
	var idx int
	if _, err := fmt.Sscanf(name[i+1:], "%d", &idx); err != nil || idx < 0 {
		idx = 0
	}
	return name[:i], idx
}

func isWAV(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".wav")
}

// DecodeFile reads a PCM WAV file.
func DecodeFile(path string) (*Sample, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fault.Wrap(err, fmsg.With("open sample"))
	}
	defer f.Close()
	d := wav.NewDecoder(f)
	if !d.IsValidFile() {
		return nil, fault.New("not a valid wav file")
	}
	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, fault.Wrap(err, fmsg.With("decode wav"))
	}
	channels := buf.Format.NumChannels
	if channels < 1 {
		return nil, fault.New("wav file has no channels")
	}
	bitDepth := int(d.BitDepth)
	if bitDepth <= 0 {
		bitDepth = 16
	}
	scale := float32(math.Pow(2, float64(bitDepth-1)))
	frames := len(buf.Data) / channels
	data := make([]float32, frames*2)
	for i := 0; i < frames; i++ {
		l := float32(buf.Data[i*channels]) / scale
		r := l
		if channels > 1 {
			r = float32(buf.Data[i*channels+1]) / scale
		}
		data[i*2] = l
		data[i*2+1] = r
	}
	return &Sample{SampleRate: buf.Format.SampleRate, Data: data}, nil
}
