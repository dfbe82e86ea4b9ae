// Package config loads the loopcode settings file.
package config

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
)

type Config struct {
	Port         int     `json:"port"`
	BPM          float64 `json:"bpm"`
	SampleRate   int     `json:"sampleRate"`
	Polyphony    int     `json:"polyphony"`
	SampleDir    string  `json:"sampleDir"`
	DataDir      string  `json:"dataDir"`
	SampleOnly   bool    `json:"sampleOnly"`
	MasterVolume float64 `json:"masterVolume"`
	MIDIPort     string  `json:"midiPort"`
	LogFile      string  `json:"logFile"`
}

func Default() Config {
	return Config{
		Port:         3000,
		BPM:          120,
		SampleRate:   48000,
		Polyphony:    32,
		SampleDir:    "samples",
		DataDir:      filepath.Join(baseDir(), "data"),
		MasterVolume: 0.8,
	}
}

// DefaultPath is the settings file used when no -config flag is given.
func DefaultPath() string {
	return filepath.Join(baseDir(), "config.json")
}

func baseDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".loopcode"
	}
	return filepath.Join(dir, "loopcode")
}

// Load reads path over the defaults. A missing file yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fault.Wrap(err, fmsg.With("read config"))
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Default(), fault.Wrap(err, fmsg.WithDesc("parse config", "Config file "+path+" is not valid JSON"))
	}
	cfg.normalize()
	return cfg, nil
}

func Save(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fault.Wrap(err, fmsg.With("create config directory"))
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fault.Wrap(err, fmsg.With("encode config"))
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fault.Wrap(err, fmsg.With("write config"))
	}
	return nil
}

func (c *Config) normalize() {
	d := Default()
	if c.Port <= 0 || c.Port > 65535 {
		c.Port = d.Port
	}
	if c.BPM <= 0 {
		c.BPM = d.BPM
	}
	if c.SampleRate <= 0 {
		c.SampleRate = d.SampleRate
	}
	if c.Polyphony <= 0 {
		c.Polyphony = d.Polyphony
	}
	if c.DataDir == "" {
		c.DataDir = d.DataDir
	}
	if c.MasterVolume < 0 {
		c.MasterVolume = 0
	}
	if c.MasterVolume > 1 {
		c.MasterVolume = 1
	}
}
