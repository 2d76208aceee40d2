// Package config loads the emulator settings: struct defaults, then a YAML
// file, then ZXEMU_* environment variables, then command-line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kkyr/fig"
	"github.com/spf13/pflag"
)

const (
	EnvPrefix = "ZXEMU"
	FileName  = "zxemu.yaml"
)

type Config struct {
	Video      Video      `fig:"video"`
	Audio      Audio      `fig:"audio"`
	Log        Log        `fig:"log"`
	Monitoring Monitoring `fig:"monitoring"`
	Record     Record     `fig:"record"`
	Headless   Headless   `fig:"headless"`
}

type Video struct {
	Backend string `fig:"backend" default:"ebiten"` // ebiten or gl
	Title   string `fig:"title" default:"zxemu"`
	Scale   int    `fig:"scale" default:"2"`
	NoVSync bool   `fig:"novsync"`
}

type Audio struct {
	Backend      string `fig:"backend" default:"oto"` // oto or headless
	SampleRate   int    `fig:"samplerate" default:"44100"`
	ChunkSamples int    `fig:"chunksamples" default:"1024"`
	BufferMs     int    `fig:"bufferms" default:"40"`
}

func (a Audio) Buffer() time.Duration { return time.Duration(a.BufferMs) * time.Millisecond }

type Log struct {
	Level   string `fig:"level" default:"info"`
	JSON    bool   `fig:"json"`
	NoColor bool   `fig:"nocolor"`
}

type Monitoring struct {
	Enabled   bool   `fig:"enabled"`
	Port      int    `fig:"port" default:"6601"`
	URLPrefix string `fig:"urlprefix"`
	Profiling bool   `fig:"profiling"`
}

type Record struct {
	WAV string `fig:"wav"`
}

type Headless struct {
	Enabled bool   `fig:"enabled"`
	Ticks   int    `fig:"ticks" default:"300"`
	PNG     string `fig:"png"`
	Expect  string `fig:"expect"`
}

// Load reads path, or searches the default locations when path is empty.
// Finding no file in the default locations is not an error.
func Load(path string) (Config, error) {
	var c Config
	if path != "" {
		dir, file := filepath.Split(path)
		if dir == "" {
			dir = "."
		}
		if err := fig.Load(&c, fig.File(file), fig.Dirs(dir), fig.UseEnv(EnvPrefix)); err != nil {
			return c, fmt.Errorf("config %s: %w", path, err)
		}
		return c, c.Validate()
	}

	dirs := []string{".", "configs"}
	if home, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs, filepath.Join(home, ".zxemu"))
	}
	err := fig.Load(&c, fig.File(FileName), fig.Dirs(dirs...), fig.UseEnv(EnvPrefix))
	if errors.Is(err, fig.ErrFileNotFound) {
		c = Config{}
		err = loadWithoutFile(&c)
	}
	if err != nil {
		return c, fmt.Errorf("config: %w", err)
	}
	return c, c.Validate()
}

// loadWithoutFile applies defaults and the environment alone. fig always
// reads a file, so it is handed an empty document.
func loadWithoutFile(c *Config) error {
	dir, err := os.MkdirTemp("", "zxemu-config")
	if err != nil {
		return err
	}
	defer os.RemoveAll(dir)
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte("{}\n"), 0o600); err != nil {
		return err
	}
	return fig.Load(c, fig.File(FileName), fig.Dirs(dir), fig.UseEnv(EnvPrefix))
}

func (c Config) Validate() error {
	switch c.Video.Backend {
	case "ebiten", "gl":
	default:
		return fmt.Errorf("config: unknown video backend %q", c.Video.Backend)
	}
	switch c.Audio.Backend {
	case "oto", "headless":
	default:
		return fmt.Errorf("config: unknown audio backend %q", c.Audio.Backend)
	}
	if c.Audio.SampleRate <= 0 || c.Audio.ChunkSamples <= 0 {
		return fmt.Errorf("config: audio %d Hz with %d-sample chunks", c.Audio.SampleRate, c.Audio.ChunkSamples)
	}
	if c.Video.Scale <= 0 {
		return fmt.Errorf("config: scale %d", c.Video.Scale)
	}
	return nil
}

// flag binds one command-line flag to the config field it overrides.
type flag struct {
	name  string
	apply func(dst, src *Config)
}

// Parse loads the configuration named by --config and applies every flag
// that was set explicitly on top of it.
func Parse(name string, args []string) (Config, error) {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	path := fs.StringP("config", "c", "", "path to "+FileName)

	var f Config
	flags := []flag{
		{"video", func(d, s *Config) { d.Video.Backend = s.Video.Backend }},
		{"title", func(d, s *Config) { d.Video.Title = s.Video.Title }},
		{"scale", func(d, s *Config) { d.Video.Scale = s.Video.Scale }},
		{"novsync", func(d, s *Config) { d.Video.NoVSync = s.Video.NoVSync }},
		{"audio", func(d, s *Config) { d.Audio.Backend = s.Audio.Backend }},
		{"buffer-ms", func(d, s *Config) { d.Audio.BufferMs = s.Audio.BufferMs }},
		{"log-level", func(d, s *Config) { d.Log.Level = s.Log.Level }},
		{"log-json", func(d, s *Config) { d.Log.JSON = s.Log.JSON }},
		{"monitoring", func(d, s *Config) { d.Monitoring.Enabled = s.Monitoring.Enabled }},
		{"monitoring-port", func(d, s *Config) { d.Monitoring.Port = s.Monitoring.Port }},
		{"record", func(d, s *Config) { d.Record.WAV = s.Record.WAV }},
		{"headless", func(d, s *Config) { d.Headless.Enabled = s.Headless.Enabled }},
		{"ticks", func(d, s *Config) { d.Headless.Ticks = s.Headless.Ticks }},
		{"outpng", func(d, s *Config) { d.Headless.PNG = s.Headless.PNG }},
		{"expect", func(d, s *Config) { d.Headless.Expect = s.Headless.Expect }},
	}
	fs.StringVar(&f.Video.Backend, "video", "ebiten", "display backend: ebiten or gl")
	fs.StringVar(&f.Video.Title, "title", "zxemu", "window title")
	fs.IntVar(&f.Video.Scale, "scale", 2, "initial window scale")
	fs.BoolVar(&f.Video.NoVSync, "novsync", false, "do not wait for vertical blank")
	fs.StringVar(&f.Audio.Backend, "audio", "oto", "audio backend: oto or headless")
	fs.IntVar(&f.Audio.BufferMs, "buffer-ms", 40, "audio device buffer in milliseconds")
	fs.StringVar(&f.Log.Level, "log-level", "info", "trace, debug, info, warn or error")
	fs.BoolVar(&f.Log.JSON, "log-json", false, "log JSON lines instead of console text")
	fs.BoolVar(&f.Monitoring.Enabled, "monitoring", false, "serve Prometheus metrics")
	fs.IntVar(&f.Monitoring.Port, "monitoring-port", 6601, "metrics port")
	fs.StringVar(&f.Record.WAV, "record", "", "write played audio to this WAV file")
	fs.BoolVar(&f.Headless.Enabled, "headless", false, "run without a window or sound device")
	fs.IntVar(&f.Headless.Ticks, "ticks", 300, "ticks to run in headless mode")
	fs.StringVar(&f.Headless.PNG, "outpng", "", "write the last presented frame to PNG")
	fs.StringVar(&f.Headless.Expect, "expect", "", "assert the last frame's CRC32 (hex)")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	c, err := Load(*path)
	if err != nil {
		return c, err
	}
	for _, fl := range flags {
		if fs.Changed(fl.name) {
			fl.apply(&c, &f)
		}
	}
	return c, c.Validate()
}
