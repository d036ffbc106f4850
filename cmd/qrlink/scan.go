package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/danmuck/qrlink/internal/journal"
	"github.com/danmuck/qrlink/internal/logging"
	"github.com/danmuck/qrlink/internal/observability"
	"github.com/danmuck/qrlink/internal/pipeline"
	"github.com/danmuck/qrlink/internal/protocol/frame"
	"github.com/danmuck/qrlink/internal/scan"
	"github.com/danmuck/qrlink/internal/tools"
	"github.com/rs/zerolog"
)

func runScan(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	fs := newFlagSet("scan", stderr)
	var s settings
	s.bind(fs)
	out := fs.String("out", "", "output file for non-bundle payloads (default <source>.decode)")
	extract := fs.String("extract", ".", "directory to unpack bundles into")
	rate := fs.Int("rate", 0, "scan every n-th frame after a hit (default from config)")
	session := fs.String("session", "", "journal session name (default: source path)")
	interactive := fs.Bool("keys", true, "read p (pause) and q (quit) lines from stdin")
	metricsAddr := fs.String("metrics", "", "serve prometheus metrics on this address")
	if err := parse(fs, args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("%w: expected one video file or frame directory", errUsage)
	}
	cfg, err := s.load(fs)
	if err != nil {
		return err
	}
	if *rate > 0 {
		cfg.ScanRate = *rate
	}
	if *metricsAddr != "" {
		cfg.MetricsAddr = *metricsAddr
	}
	log := logging.For("scan")

	p, err := pipeline.New(pipelineOptions(cfg))
	if err != nil {
		return err
	}
	src, closeSrc, err := openSource(ctx, fs.Arg(0), cfg.FFmpegPath, cfg.FrameRate, log)
	if err != nil {
		return err
	}
	defer closeSrc()

	if cfg.MetricsAddr != "" {
		stopMetrics := serveMetrics(cfg.MetricsAddr, log)
		defer stopMetrics()
	}

	loop := &scan.Loop{
		Source:   src,
		Scanner:  p.Scanner,
		Set:      p.NewSet(),
		ScanRate: cfg.ScanRate,
		Logger:   log,
		Observer: progress(log),
	}
	if *interactive && stdin != nil {
		loop.Control = scan.ReaderControl(stdin)
	}

	var j *journal.Journal
	if cfg.JournalDir != "" {
		if p.Mode != frame.ModeIndexed {
			log.Warn().Msg("journal needs indexed framing; resuming disabled")
		} else {
			name := *session
			if name == "" {
				name = sessionName(fs.Arg(0), p)
			}
			j, err = journal.Open(cfg.JournalDir, name, journal.Options{Logger: logging.For("journal")})
			if err != nil {
				return err
			}
			defer j.Close()
			loop.Journal = j
		}
	}

	payload, err := loop.Run(ctx)
	if err != nil {
		return err
	}
	data, err := p.DecodePayload(payload)
	if err != nil {
		return err
	}
	if err := emit(data, *out, filepath.Clean(fs.Arg(0))+".decode", *extract, stdout); err != nil {
		return err
	}
	if j != nil {
		if err := j.Reset(); err != nil {
			log.Warn().Err(err).Msg("journal reset failed")
		}
	}
	return nil
}

func openSource(ctx context.Context, path, ffmpeg string, frameRate float64, log zerolog.Logger) (scan.FrameSource, func(), error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, nil, err
	}
	if info.IsDir() {
		src, err := scan.NewDirSource(path)
		if err != nil {
			return nil, nil, err
		}
		return src, func() {}, nil
	}
	src, err := scan.NewVideoSource(ctx, path, scan.VideoOptions{
		FFmpegPath: ffmpeg,
		FrameRate:  frameRate,
		Runner:     tools.ExecRunner{},
		Logger:     log,
	})
	if err != nil {
		return nil, nil, err
	}
	return src, func() {
		if err := src.Close(); err != nil {
			log.Warn().Err(err).Msg("frame cleanup failed")
		}
	}, nil
}

func sessionName(source string, p *pipeline.Pipeline) string {
	abs, err := filepath.Abs(source)
	if err != nil {
		abs = source
	}
	return abs + "|" + p.Variant.Name + "|" + p.Mode.String()
}

func progress(log zerolog.Logger) scan.Observer {
	return func(f scan.Frame) {
		if !f.Found {
			return
		}
		log.Debug().
			Int("frame", f.Index).
			Bool("duplicate", f.Result.Duplicate).
			Str("state", f.Result.State.String()).
			Msg("symbol read")
	}
}

func serveMetrics(addr string, log zerolog.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Warn().Err(err).Str("addr", addr).Msg("metrics server stopped")
		}
	}()
	log.Info().Str("addr", addr).Msg("serving metrics")
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
