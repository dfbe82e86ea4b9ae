package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg != Default() {
		t.Fatalf("cfg = %+v, want defaults", cfg)
	}
}

func TestLoadOverridesAndNormalizes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	body := `{"port": 8080, "bpm": 140, "polyphony": -1, "masterVolume": 3, "sampleOnly": true}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != 8080 || cfg.BPM != 140 || !cfg.SampleOnly {
		t.Fatalf("overrides lost: %+v", cfg)
	}
	if cfg.Polyphony != 32 || cfg.MasterVolume != 1 {
		t.Fatalf("normalize: polyphony=%d volume=%v", cfg.Polyphony, cfg.MasterVolume)
	}
	if cfg.SampleRate != 48000 {
		t.Fatalf("sample rate default lost: %d", cfg.SampleRate)
	}
}

func TestLoadRejectsBadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte("{"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestSaveThenLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.json")
	cfg := Default()
	cfg.MIDIPort = "IAC"
	cfg.BPM = 90
	if err := Save(path, cfg); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got != cfg {
		t.Fatalf("got %+v, want %+v", got, cfg)
	}
}
