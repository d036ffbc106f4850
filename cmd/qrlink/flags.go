package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/danmuck/qrlink/internal/config"
	"github.com/danmuck/qrlink/internal/logging"
	"github.com/danmuck/qrlink/internal/pipeline"
)

var errUsage = errors.New("usage")

// settings are the config-backed flags shared by every data command. Only
// flags given on the command line override the loaded config.
type settings struct {
	configPath string
	variant    string
	level      string
	mode       string
	compressor string
	workers    int
	prefix     string
}

func newFlagSet(name string, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet("qrlink "+name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	return fs
}

func (s *settings) bind(fs *flag.FlagSet) {
	fs.StringVar(&s.configPath, "config", "", "config file (default "+config.DefaultPath+" when present)")
	fs.StringVar(&s.variant, "variant", "", "encoding variant: base45 | base32")
	fs.StringVar(&s.level, "level", "", "error-correction level: L | M | Q | H")
	fs.StringVar(&s.mode, "mode", "", "framing: plain | indexed")
	fs.StringVar(&s.compressor, "compressor", "", "compressor: zstd | gzip")
	fs.IntVar(&s.workers, "workers", 0, "parallel renders")
	fs.StringVar(&s.prefix, "prefix", "", "image name prefix")
}

// load resolves the config file, the environment, then explicit flags.
func (s *settings) load(fs *flag.FlagSet) (config.Config, error) {
	path := s.configPath
	if path == "" {
		if _, err := os.Stat(config.DefaultPath); err == nil {
			path = config.DefaultPath
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, err
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "variant":
			cfg.Variant = s.variant
		case "level":
			cfg.Level = s.level
		case "mode":
			cfg.Mode = s.mode
		case "compressor":
			cfg.Compressor = s.compressor
		case "workers":
			cfg.Workers = s.workers
		case "prefix":
			cfg.ImagePrefix = s.prefix
		}
	})
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func pipelineOptions(cfg config.Config) pipeline.Options {
	return pipeline.Options{
		Variant:    cfg.Variant,
		Level:      cfg.Level,
		Mode:       cfg.Mode,
		Compressor: cfg.Compressor,
		Workers:    cfg.Workers,
		Logger:     logging.For("pipeline"),
	}
}

func parse(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return err
		}
		return fmt.Errorf("%w: %w", errUsage, err)
	}
	return nil
}
