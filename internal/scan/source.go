package scan

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/danmuck/qrlink/internal/symbol"
	"github.com/danmuck/qrlink/internal/tools"
	"github.com/rs/zerolog"
)

var ErrFrameSource = errors.New("scan: frame source")

// FrameSource yields frames in order and returns io.EOF when exhausted.
type FrameSource interface {
	Next(ctx context.Context) (image.Image, error)
}

var frameExts = map[string]bool{".png": true, ".jpg": true, ".jpeg": true, ".gif": true}

// DirSource reads image files from a directory in lexical order.
type DirSource struct {
	paths []string
	pos   int
}

func NewDirSource(dir string) (*DirSource, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFrameSource, err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() || !frameExts[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	sort.Strings(paths)
	return &DirSource{paths: paths}, nil
}

// NewFileSource reads the given image files in the order supplied.
func NewFileSource(paths []string) *DirSource {
	return &DirSource{paths: append([]string(nil), paths...)}
}

func (d *DirSource) Len() int { return len(d.paths) }

func (d *DirSource) Next(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if d.pos >= len(d.paths) {
		return nil, io.EOF
	}
	p := d.paths[d.pos]
	d.pos++
	return symbol.LoadImage(p)
}

// VideoSource extracts frames from a video with ffmpeg into a temporary
// directory and serves them as a DirSource. Close removes the directory.
type VideoSource struct {
	*DirSource
	dir string
}

type VideoOptions struct {
	FFmpegPath string
	// FrameRate resamples the video when positive.
	FrameRate float64
	Runner    tools.CommandRunner
	Logger    zerolog.Logger
}

func NewVideoSource(ctx context.Context, video string, opts VideoOptions) (*VideoSource, error) {
	if _, err := os.Stat(video); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFrameSource, err)
	}
	bin := opts.FFmpegPath
	if bin == "" {
		bin = "ffmpeg"
	}
	runner := opts.Runner
	if runner == nil {
		runner = tools.ExecRunner{}
	}
	dir, err := os.MkdirTemp("", "qrlink-frames-*")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFrameSource, err)
	}
	args := []string{"-hide_banner", "-loglevel", "error", "-i", video}
	if opts.FrameRate > 0 {
		args = append(args, "-vf", "fps="+strconv.FormatFloat(opts.FrameRate, 'f', -1, 64))
	}
	args = append(args, filepath.Join(dir, "frame-%06d.png"))

	opts.Logger.Debug().Str("bin", bin).Strs("args", args).Msg("scan: extracting frames")
	_, stderr, code, err := runner.Run(ctx, bin, args...)
	if err != nil || code != 0 {
		_ = os.RemoveAll(dir)
		return nil, fmt.Errorf("%w: %s exited %d: %s: %v", ErrFrameSource, bin, code, strings.TrimSpace(string(stderr)), err)
	}
	ds, err := NewDirSource(dir)
	if err != nil {
		_ = os.RemoveAll(dir)
		return nil, err
	}
	opts.Logger.Info().Int("frames", ds.Len()).Str("video", video).Msg("scan: frames extracted")
	return &VideoSource{DirSource: ds, dir: dir}, nil
}

func (v *VideoSource) Close() error {
	return os.RemoveAll(v.dir)
}
