// Package store persists the editor buffer and named presets as files.
package store

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
)

const (
	codeFile   = "code.txt"
	presetDir  = "presets"
	presetExt  = ".txt"
	filePerm   = 0o644
	dirPerm    = 0o755
	maxNameLen = 64
)

// SanitizeName lowercases name and drops every character outside [a-z0-9_-].
func SanitizeName(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		}
	}
	out := b.String()
	if len(out) > maxNameLen {
		out = out[:maxNameLen]
	}
	return out
}

// Store keeps files under a single data directory.
type Store struct {
	mu  sync.Mutex
	dir string
}

func New(dir string) (*Store, error) {
	if err := os.MkdirAll(filepath.Join(dir, presetDir), dirPerm); err != nil {
		return nil, fault.Wrap(err, fmsg.With("create data directory"))
	}
	return &Store{dir: dir}, nil
}

func (s *Store) Dir() string { return s.dir }

// LoadCode returns the saved editor buffer, or "" when nothing was saved.
func (s *Store) LoadCode() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := os.ReadFile(filepath.Join(s.dir, codeFile))
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fault.Wrap(err, fmsg.WithDesc("read code", "Could not load code"))
	}
	return string(data), nil
}

func (s *Store) SaveCode(code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := writeFile(filepath.Join(s.dir, codeFile), code); err != nil {
		return fault.Wrap(err, fmsg.WithDesc("write code", "Could not save code"))
	}
	return nil
}

// Presets lists saved preset names in sorted order.
func (s *Store) Presets() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries, err := os.ReadDir(filepath.Join(s.dir, presetDir))
	if err != nil {
		return nil, fault.Wrap(err, fmsg.WithDesc("list presets", "Could not list presets"))
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != presetExt {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), presetExt))
	}
	sort.Strings(names)
	return names, nil
}

func (s *Store) LoadPreset(name string) (string, error) {
	path, err := s.presetPath(name)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", fault.Wrap(err,
			fmsg.WithDesc("preset not found", "Preset "+SanitizeName(name)+" not found"),
			ftag.With(ftag.NotFound))
	}
	if err != nil {
		return "", fault.Wrap(err, fmsg.WithDesc("read preset", "Could not load preset"))
	}
	return string(data), nil
}

// SavePreset writes code under the sanitized name and returns that name.
func (s *Store) SavePreset(name, code string) (string, error) {
	path, err := s.presetPath(name)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := writeFile(path, code); err != nil {
		return "", fault.Wrap(err, fmsg.WithDesc("write preset", "Could not save preset"))
	}
	return SanitizeName(name), nil
}

func (s *Store) DeletePreset(name string) error {
	path, err := s.presetPath(name)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	err = os.Remove(path)
	if errors.Is(err, fs.ErrNotExist) {
		return fault.Wrap(err,
			fmsg.WithDesc("preset not found", "Preset "+SanitizeName(name)+" not found"),
			ftag.With(ftag.NotFound))
	}
	if err != nil {
		return fault.Wrap(err, fmsg.WithDesc("delete preset", "Could not delete preset"))
	}
	return nil
}

func (s *Store) presetPath(name string) (string, error) {
	clean := SanitizeName(name)
	if clean == "" {
		return "", fault.New("empty preset name",
			fmsg.WithDesc("empty preset name", "Preset name must contain letters, digits, '-' or '_'"),
			ftag.With(ftag.InvalidArgument))
	}
	return filepath.Join(s.dir, presetDir, clean+presetExt), nil
}

// writeFile replaces path atomically.
func writeFile(path, content string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Chmod(tmp.Name(), filePerm); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
