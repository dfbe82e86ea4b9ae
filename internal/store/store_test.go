package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Southclaws/fault/ftag"
)

func TestSanitizeName(t *testing.T) {
	cases := map[string]string{
		"Techno_1":         "techno_1",
		"../../etc/passwd": "etcpasswd",
		"my preset!":       "mypreset",
		"a-b":              "a-b",
		"///":              "",
	}
	for in, want := range cases {
		if got := SanitizeName(in); got != want {
			t.Errorf("SanitizeName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCodeRoundTrip(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	code, err := s.LoadCode()
	if err != nil || code != "" {
		t.Fatalf("empty load = %q, %v", code, err)
	}
	if err := s.SaveCode(`d1(s("bd*4"))`); err != nil {
		t.Fatalf("save: %v", err)
	}
	code, err = s.LoadCode()
	if err != nil || code != `d1(s("bd*4"))` {
		t.Fatalf("load = %q, %v", code, err)
	}
}

func TestPresetsStayInsideDataDir(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	name, err := s.SavePreset("../Escape", "hush()")
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if name != "escape" {
		t.Fatalf("saved name = %q", name)
	}
	if _, err := os.Stat(filepath.Join(dir, presetDir, "escape.txt")); err != nil {
		t.Fatalf("preset file missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(filepath.Dir(dir), "Escape.txt")); err == nil {
		t.Fatalf("preset escaped the data directory")
	}
	got, err := s.LoadPreset("ESCAPE")
	if err != nil || got != "hush()" {
		t.Fatalf("load = %q, %v", got, err)
	}
	if _, err := s.SavePreset("b", "x"); err != nil {
		t.Fatalf("save b: %v", err)
	}
	names, err := s.Presets()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(names) != 2 || names[0] != "b" || names[1] != "escape" {
		t.Fatalf("presets = %v", names)
	}
}

func TestPresetErrorsAreTagged(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, err := s.LoadPreset("missing"); ftag.Get(err) != ftag.NotFound {
		t.Fatalf("missing preset tag = %v (%v)", ftag.Get(err), err)
	}
	if _, err := s.SavePreset("!!!", "x"); ftag.Get(err) != ftag.InvalidArgument {
		t.Fatalf("empty name tag = %v (%v)", ftag.Get(err), err)
	}
	if err := s.DeletePreset("missing"); ftag.Get(err) != ftag.NotFound {
		t.Fatalf("delete missing tag = %v", ftag.Get(err))
	}
	if _, err := s.SavePreset("gone", "x"); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := s.DeletePreset("gone"); err != nil {
		t.Fatalf("delete: %v", err)
	}
}
