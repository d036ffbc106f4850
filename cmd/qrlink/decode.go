package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/danmuck/qrlink/internal/bundle"
	"github.com/danmuck/qrlink/internal/logging"
	"github.com/danmuck/qrlink/internal/pipeline"
)

func runDecode(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("decode", stderr)
	var s settings
	s.bind(fs)
	out := fs.String("out", "", "output file (default <input>.decode, <dir>.decode for images)")
	extract := fs.String("extract", ".", "directory to unpack bundles into")
	if err := parse(fs, args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return fmt.Errorf("%w: nothing to decode", errUsage)
	}
	cfg, err := s.load(fs)
	if err != nil {
		return err
	}
	opts := pipelineOptions(cfg)
	log := logging.For("decode")

	var data []byte
	var fallback string
	first := fs.Arg(0)
	info, err := os.Stat(first)
	if err != nil {
		return err
	}
	switch {
	case info.IsDir():
		if fs.NArg() > 1 {
			return fmt.Errorf("%w: one directory at a time", errUsage)
		}
		d, man, err := pipeline.DecodeDir(ctx, first, cfg.ImagePrefix, opts)
		if err != nil {
			return err
		}
		data = d
		fallback = filepath.Clean(first) + ".decode"
		log.Info().Str("dir", first).Int("chunks", man.Chunks).Bool("manifest", man.Variant != "").Msg("decoded directory")
	case strings.EqualFold(filepath.Ext(first), pipeline.TextExt):
		if fs.NArg() > 1 {
			return fmt.Errorf("%w: one .code file at a time", errUsage)
		}
		p, err := pipeline.New(opts)
		if err != nil {
			return err
		}
		if data, err = p.DecodeText(first); err != nil {
			return err
		}
		fallback = first + ".decode"
	default:
		p, err := pipeline.New(opts)
		if err != nil {
			return err
		}
		if data, err = p.DecodeImages(ctx, fs.Args()); err != nil {
			return err
		}
		fallback = filepath.Clean(filepath.Dir(first)) + ".decode"
	}
	return emit(data, *out, fallback, *extract, stdout)
}

// emit unpacks bundles under extractDir unless target is set, and writes
// anything else to target or, when that is empty, to fallback.
func emit(data []byte, target, fallback, extractDir string, stdout io.Writer) error {
	if bundle.IsBundle(data) && target == "" {
		entries, err := bundle.Unpack(data)
		if err != nil {
			return err
		}
		written, err := bundle.Extract(extractDir, entries, logging.For("bundle"))
		if err != nil {
			return err
		}
		for _, w := range written {
			fmt.Fprintf(stdout, "extracted %s\n", w)
		}
		return nil
	}
	if target == "" {
		target = fallback
	}
	if target == "" {
		return fmt.Errorf("%w: -out is required", errUsage)
	}
	if err := pipeline.WriteOutput(target, data); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "wrote %s (%d bytes)\n", target, len(data))
	return nil
}
