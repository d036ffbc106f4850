package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/danmuck/qrlink/internal/bundle"
	"github.com/danmuck/qrlink/internal/logging"
	"github.com/danmuck/qrlink/internal/pipeline"
)

func runEncode(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("encode", stderr)
	var s settings
	s.bind(fs)
	out := fs.String("out", "qrcodes", "directory for the rendered images")
	text := fs.String("text", "", "write the encoded payload to this .code file instead of images")
	forceBundle := fs.Bool("bundle", false, "pack input as a bundle even when it is a single file")
	if err := parse(fs, args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return fmt.Errorf("%w: no input files", errUsage)
	}
	cfg, err := s.load(fs)
	if err != nil {
		return err
	}
	p, err := pipeline.New(pipelineOptions(cfg))
	if err != nil {
		return err
	}
	data, isBundle, err := readInput(fs.Args(), *forceBundle)
	if err != nil {
		return err
	}
	log := logging.For("encode")
	log.Info().
		Strs("inputs", fs.Args()).
		Bool("bundle", isBundle).
		Int("bytes", len(data)).
		Str("variant", p.Variant.Name).
		Str("level", p.Level.String()).
		Msg("encoding")

	if *text != "" {
		if err := p.EncodeToText(data, *text); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "wrote %s\n", *text)
		return nil
	}
	written, err := p.EncodeToImages(ctx, data, *out, cfg.ImagePrefix, isBundle)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "wrote %d images and %s\n", len(written.Images), written.Manifest)
	return nil
}

// readInput returns a single regular file as is and anything else as a
// bundle.
func readInput(paths []string, forceBundle bool) ([]byte, bool, error) {
	if len(paths) == 1 && !forceBundle {
		info, err := os.Stat(paths[0])
		if err != nil {
			return nil, false, err
		}
		if info.Mode().IsRegular() {
			data, err := os.ReadFile(paths[0])
			return data, false, err
		}
	}
	entries, err := bundle.Collect(paths)
	if err != nil {
		return nil, false, err
	}
	data, err := bundle.Pack(entries)
	return data, true, err
}
