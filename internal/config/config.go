// Package config handles loading and saving user configuration for parler.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// FileName is the name of the configuration file inside the config directory.
const FileName = "config.yaml"

// Duration is a time.Duration that unmarshals from "90s" style strings or integer seconds.
type Duration time.Duration

// ToDuration converts d to a time.Duration.
func (d Duration) ToDuration() time.Duration { return time.Duration(d) }

// ParseDuration reads "90s" style strings. A bare integer counts as seconds.
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Duration(i) * time.Second, nil
	}
	if dur, err := time.ParseDuration(s); err == nil {
		return dur, nil
	}
	return 0, fmt.Errorf("invalid duration: %q", s)
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("duration must be a scalar")
	}

	dur, err := ParseDuration(value.Value)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Config holds all user configuration for parler.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Recorder RecorderConfig `yaml:"recorder"`
	Player   PlayerConfig   `yaml:"player"`
	Deck     DeckConfig     `yaml:"deck"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig describes the practice backend.
type ServerConfig struct {
	BaseURL string   `yaml:"base_url"`
	Timeout Duration `yaml:"timeout"` // Per request; 0 disables
	Paths   Paths    `yaml:"paths"`
}

// Paths are the endpoint paths relative to BaseURL.
type Paths struct {
	Score      string `yaml:"score"`
	Synthesize string `yaml:"synthesize"`
	Feedback   string `yaml:"feedback"`
	IPA        string `yaml:"ipa"`
	IPAScore   string `yaml:"ipa_score"`
	Phonemes   string `yaml:"phonemes"`
}

// RecorderConfig controls microphone capture through ffmpeg.
type RecorderConfig struct {
	FFmpegPath  string `yaml:"ffmpeg_path"`
	InputFormat string `yaml:"input_format"` // pulse, alsa, avfoundation, dshow
	Device      string `yaml:"device"`
	SampleRate  int    `yaml:"sample_rate"`
	Channels    int    `yaml:"channels"`
}

// PlayerConfig controls audio playback.
type PlayerConfig struct {
	Command string `yaml:"command,omitempty"` // e.g. "mpv --no-video"; empty = autodetect
}

// DeckConfig controls how phrases are read from Anki decks.
type DeckConfig struct {
	Path  string `yaml:"path,omitempty"`
	Field string `yaml:"field,omitempty"` // Note field holding the phrase; empty = first field
}

// LogConfig controls the log file.
type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file,omitempty"` // Empty = <config dir>/parler.log
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			BaseURL: "http://localhost:8000",
			Timeout: Duration(2 * time.Minute),
			Paths: Paths{
				Score:      "/audio-score",
				Synthesize: "/tts",
				Feedback:   "/llm-feedback",
				IPA:        "/ipa",
				IPAScore:   "/score",
				Phonemes:   "/audio-phonemes",
			},
		},
		Recorder: RecorderConfig{
			FFmpegPath:  "ffmpeg",
			InputFormat: defaultInputFormat(),
			Device:      defaultDevice(),
			SampleRate:  16000,
			Channels:    1,
		},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
	}
}

// applyDefaults fills zero values left by a partial config file.
func (c *Config) applyDefaults() {
	def := Default()

	if c.Server.BaseURL == "" {
		c.Server.BaseURL = def.Server.BaseURL
	}
	c.Server.BaseURL = strings.TrimRight(c.Server.BaseURL, "/")
	if c.Server.Timeout < 0 {
		c.Server.Timeout = 0
	}
	p := &c.Server.Paths
	if p.Score == "" {
		p.Score = def.Server.Paths.Score
	}
	if p.Synthesize == "" {
		p.Synthesize = def.Server.Paths.Synthesize
	}
	if p.Feedback == "" {
		p.Feedback = def.Server.Paths.Feedback
	}
	if p.IPA == "" {
		p.IPA = def.Server.Paths.IPA
	}
	if p.IPAScore == "" {
		p.IPAScore = def.Server.Paths.IPAScore
	}
	if p.Phonemes == "" {
		p.Phonemes = def.Server.Paths.Phonemes
	}

	r := &c.Recorder
	if r.FFmpegPath == "" {
		r.FFmpegPath = def.Recorder.FFmpegPath
	}
	if r.InputFormat == "" {
		r.InputFormat = def.Recorder.InputFormat
	}
	if r.Device == "" {
		r.Device = def.Recorder.Device
	}
	if r.SampleRate <= 0 {
		r.SampleRate = def.Recorder.SampleRate
	}
	if r.Channels <= 0 {
		r.Channels = def.Recorder.Channels
	}

	if c.Log.Level == "" {
		c.Log.Level = def.Log.Level
	}
	if c.Log.MaxSizeMB <= 0 {
		c.Log.MaxSizeMB = def.Log.MaxSizeMB
	}
	if c.Log.MaxBackups <= 0 {
		c.Log.MaxBackups = def.Log.MaxBackups
	}
}

// Load reads configuration from a YAML file. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &cfg, nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	cfg.applyDefaults()

	return &cfg, nil
}

// Save writes configuration to a YAML file.
func Save(path string, cfg *Config) error {
	out, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	if err := os.WriteFile(path, out, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// GetConfigDir returns the default configuration directory.
func GetConfigDir() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "parler"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "parler"), nil
}

// LogPath returns the log file path for a config directory.
func (c *Config) LogPath(configDir string) string {
	if c.Log.File != "" {
		return c.Log.File
	}
	return filepath.Join(configDir, "parler.log")
}
