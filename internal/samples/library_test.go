package samples

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

func writeWAV(t *testing.T, path string, channels int, data []int) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer f.Close()
	enc := wav.NewEncoder(f, 44100, 16, channels, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: channels, SampleRate: 44100},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestDecodeMonoAndStereo(t *testing.T) {
	dir := t.TempDir()
	writeWAV(t, filepath.Join(dir, "mono.wav"), 1, []int{0, 16384, -16384, 32767})
	writeWAV(t, filepath.Join(dir, "stereo.wav"), 2, []int{16384, -16384, 0, 8192})

	mono, err := DecodeFile(filepath.Join(dir, "mono.wav"))
	if err != nil {
		t.Fatalf("decode mono: %v", err)
	}
	if mono.Frames() != 4 || mono.SampleRate != 44100 {
		t.Fatalf("mono frames=%d rate=%d", mono.Frames(), mono.SampleRate)
	}
	if mono.Data[2] != 0.5 || mono.Data[3] != 0.5 {
		t.Fatalf("mono frame 1 = %v,%v, want 0.5,0.5", mono.Data[2], mono.Data[3])
	}

	stereo, err := DecodeFile(filepath.Join(dir, "stereo.wav"))
	if err != nil {
		t.Fatalf("decode stereo: %v", err)
	}
	if stereo.Frames() != 2 || stereo.Data[0] != 0.5 || stereo.Data[1] != -0.5 || stereo.Data[3] != 0.25 {
		t.Fatalf("stereo data = %v", stereo.Data)
	}
}

func TestLoadBanksAndLookup(t *testing.T) {
	dir := t.TempDir()
	writeWAV(t, filepath.Join(dir, "BD", "b.wav"), 1, []int{1, 2, 3})
	writeWAV(t, filepath.Join(dir, "BD", "a.wav"), 1, []int{1, 2})
	writeWAV(t, filepath.Join(dir, "cp.wav"), 1, []int{1})
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "broken.wav"), []byte("nope"), 0o644); err != nil {
		t.Fatal(err)
	}

	lib := NewLibrary(nil)
	if err := lib.Load(dir); err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := lib.Names(); !reflect.DeepEqual(got, []string{"bd:0", "bd:1", "cp"}) {
		t.Fatalf("names = %v", got)
	}
	bd, ok := lib.Get("bd")
	if !ok || bd.Frames() != 2 {
		t.Fatalf("bd = %+v, %v", bd, ok)
	}
	if s, ok := lib.Get("bd:3"); !ok || s.Frames() != 3 {
		t.Fatal("bank index should wrap to bd:1")
	}
	if !lib.Has("cp") || !lib.Has("cp:0") || lib.Has("sd") {
		t.Fatal("Has mismatch")
	}
}

func TestLoadMissingDir(t *testing.T) {
	lib := NewLibrary(nil)
	if err := lib.Load(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Fatal("expected error")
	}
}
