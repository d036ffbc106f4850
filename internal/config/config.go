package config

import (
	"errors"
	"fmt"
	"runtime"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v10"
	"github.com/danmuck/qrlink/internal/compress"
	"github.com/danmuck/qrlink/internal/protocol"
	"github.com/danmuck/qrlink/internal/protocol/frame"
)

const (
	DefaultPath = "qrlink.toml"
	EnvPrefix   = "QRLINK_"
)

var ErrInvalid = errors.New("config: invalid")

// Config holds every tunable of the qrlink tools. Environment variables
// named EnvPrefix plus the env tag override file values.
type Config struct {
	Variant     string  `toml:"variant" env:"VARIANT"`
	Level       string  `toml:"level" env:"LEVEL"`
	Mode        string  `toml:"mode" env:"MODE"`
	Compressor  string  `toml:"compressor" env:"COMPRESSOR"`
	Workers     int     `toml:"workers" env:"WORKERS"`
	ScanRate    int     `toml:"scan_rate" env:"SCAN_RATE"`
	ImagePrefix string  `toml:"image_prefix" env:"IMAGE_PREFIX"`
	JournalDir  string  `toml:"journal_dir" env:"JOURNAL_DIR"`
	FFmpegPath  string  `toml:"ffmpeg_path" env:"FFMPEG_PATH"`
	FrameRate   float64 `toml:"frame_rate" env:"FRAME_RATE"`
	MetricsAddr string  `toml:"metrics_addr" env:"METRICS_ADDR"`
}

func Default() Config {
	return Config{
		Variant:    protocol.VariantBase45,
		Level:      protocol.LevelQ.String(),
		Compressor: compress.NameZstd,
		Workers:    runtime.NumCPU(),
		ScanRate:   10,
		FFmpegPath: "ffmpeg",
	}
}

// Load starts from Default, applies the file at path when path is not
// empty, then the environment, and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) != "" {
		if err := applyFile(&cfg, path); err != nil {
			return Config{}, err
		}
	}
	if err := ApplyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyFile(cfg *Config, path string) error {
	var raw Config
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("%w: unknown key %q in %s", ErrInvalid, undecoded[0].String(), path)
	}
	if meta.IsDefined("variant") {
		cfg.Variant = strings.TrimSpace(raw.Variant)
	}
	if meta.IsDefined("level") {
		cfg.Level = strings.TrimSpace(raw.Level)
	}
	if meta.IsDefined("mode") {
		cfg.Mode = strings.TrimSpace(raw.Mode)
	}
	if meta.IsDefined("compressor") {
		cfg.Compressor = strings.TrimSpace(raw.Compressor)
	}
	if meta.IsDefined("workers") {
		cfg.Workers = raw.Workers
	}
	if meta.IsDefined("scan_rate") {
		cfg.ScanRate = raw.ScanRate
	}
	if meta.IsDefined("image_prefix") {
		cfg.ImagePrefix = raw.ImagePrefix
	}
	if meta.IsDefined("journal_dir") {
		cfg.JournalDir = strings.TrimSpace(raw.JournalDir)
	}
	if meta.IsDefined("ffmpeg_path") {
		cfg.FFmpegPath = strings.TrimSpace(raw.FFmpegPath)
	}
	if meta.IsDefined("frame_rate") {
		cfg.FrameRate = raw.FrameRate
	}
	if meta.IsDefined("metrics_addr") {
		cfg.MetricsAddr = strings.TrimSpace(raw.MetricsAddr)
	}
	return nil
}

// ApplyEnv overrides cfg with any QRLINK_* variables that are set.
func ApplyEnv(cfg *Config) error {
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("config env: %w", err)
	}
	return nil
}

func (c Config) Validate() error {
	v, err := protocol.LookupVariant(c.Variant)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if _, err := protocol.ParseLevel(c.Level); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if _, err := frame.ParseMode(c.Mode, v); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if _, err := compress.Lookup(c.Compressor); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if c.Workers < 1 {
		return fmt.Errorf("%w: workers must be at least 1, got %d", ErrInvalid, c.Workers)
	}
	if c.ScanRate < 1 {
		return fmt.Errorf("%w: scan_rate must be at least 1, got %d", ErrInvalid, c.ScanRate)
	}
	if c.FrameRate < 0 {
		return fmt.Errorf("%w: frame_rate must not be negative", ErrInvalid)
	}
	if strings.ContainsAny(c.ImagePrefix, `/\`) {
		return fmt.Errorf("%w: image_prefix %q contains a path separator", ErrInvalid, c.ImagePrefix)
	}
	return nil
}
