package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/danmuck/qrlink/internal/manifest"
	"github.com/danmuck/qrlink/internal/observability"
	"github.com/danmuck/qrlink/internal/symbol"
)

const (
	ImageExt = ".png"
	TextExt  = ".code"
	// TextWidth wraps .code files; decoding strips the line breaks.
	TextWidth = 76
)

type Written struct {
	Images   []string
	Manifest string
}

// Manifest describes data as this pipeline would render it.
func (p *Pipeline) Manifest(data []byte, images []string, isBundle bool) manifest.Manifest {
	names := make([]string, len(images))
	for i, img := range images {
		names[i] = filepath.Base(img)
	}
	return manifest.Manifest{
		Version:    manifest.Version,
		Variant:    p.Variant.Name,
		Level:      p.Level.String(),
		Mode:       p.Mode.String(),
		Compressor: p.Compressor.Name(),
		Chunks:     len(images),
		Size:       int64(len(data)),
		Digest:     manifest.Digest(data),
		Bundle:     isBundle,
		Images:     names,
	}
}

// FromManifest builds a pipeline matching the settings recorded in m.
func FromManifest(m manifest.Manifest, base Options) (*Pipeline, error) {
	base.Variant = m.Variant
	base.Level = m.Level
	base.Mode = m.Mode
	base.Compressor = m.Compressor
	return New(base)
}

// EncodeToImages renders data as one image per chunk into dir, plus a
// manifest. Nothing is written if any target already exists, and a failed
// run removes what it wrote.
func (p *Pipeline) EncodeToImages(ctx context.Context, data []byte, dir, prefix string, isBundle bool) (Written, error) {
	chunks, err := p.EncodeChunks(data)
	if err != nil {
		return Written{}, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Written{}, err
	}
	names := symbol.Names(dir, prefix, len(chunks), ImageExt)
	mpath := filepath.Join(dir, prefix+manifest.FileName)
	if _, err := os.Lstat(mpath); err == nil {
		return Written{}, fmt.Errorf("%w: %s", symbol.ErrTargetExists, mpath)
	}
	m := p.Manifest(data, names, isBundle)
	raw, err := manifest.Marshal(m)
	if err != nil {
		return Written{}, err
	}

	start := time.Now()
	if err := symbol.RenderAll(ctx, p.Renderer, chunks, names, p.Workers, p.Logger); err != nil {
		return Written{}, err
	}
	observability.RecordRender(p.Variant.Name, time.Since(start))
	if err := symbol.WriteNew(mpath, raw, 0o644); err != nil {
		for _, n := range names {
			_ = os.Remove(n)
		}
		return Written{}, err
	}
	p.Logger.Info().
		Str("dir", dir).
		Int("images", len(names)).
		Dur("elapsed", time.Since(start)).
		Msg("pipeline: images written")
	return Written{Images: names, Manifest: mpath}, nil
}

// ScanImages reads one chunk from each image, in order.
func (p *Pipeline) ScanImages(ctx context.Context, paths []string) ([]string, error) {
	chunks := make([]string, 0, len(paths))
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		chunk, ok, err := symbol.ScanFile(p.Scanner, path)
		if err != nil {
			return nil, err
		}
		if !ok {
			observability.RecordScanFrame(observability.ScanEmpty)
			return nil, fmt.Errorf("%w: %s", ErrNoSymbol, path)
		}
		observability.RecordScanFrame(observability.ScanAccepted)
		chunks = append(chunks, chunk)
	}
	return chunks, nil
}

func (p *Pipeline) DecodeImages(ctx context.Context, paths []string) ([]byte, error) {
	chunks, err := p.ScanImages(ctx, paths)
	if err != nil {
		return nil, err
	}
	return p.DecodeChunks(chunks)
}

// ImagesIn lists the image files of dir in name order.
func ImagesIn(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".png", ".jpg", ".jpeg", ".gif":
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	return out, nil
}

// LoadManifest returns the manifest in dir, if there is one.
func LoadManifest(dir, prefix string) (manifest.Manifest, bool, error) {
	path := filepath.Join(dir, prefix+manifest.FileName)
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return manifest.Manifest{}, false, nil
	}
	m, err := manifest.Load(path)
	if err != nil {
		return manifest.Manifest{}, false, err
	}
	return m, true, nil
}

// DecodeDir decodes the images in dir. When dir carries a manifest its
// settings and image list are used and the result is checked against its
// digest.
func DecodeDir(ctx context.Context, dir, prefix string, base Options) ([]byte, manifest.Manifest, error) {
	m, ok, err := LoadManifest(dir, prefix)
	if err != nil {
		return nil, manifest.Manifest{}, err
	}
	if !ok {
		p, err := New(base)
		if err != nil {
			return nil, manifest.Manifest{}, err
		}
		paths, err := ImagesIn(dir)
		if err != nil {
			return nil, manifest.Manifest{}, err
		}
		data, err := p.DecodeImages(ctx, paths)
		return data, manifest.Manifest{}, err
	}

	p, err := FromManifest(m, base)
	if err != nil {
		return nil, m, err
	}
	paths := make([]string, len(m.Images))
	for i, name := range m.Images {
		if filepath.Base(name) != name {
			return nil, m, fmt.Errorf("%w: image name %q", manifest.ErrInvalid, name)
		}
		paths[i] = filepath.Join(dir, name)
	}
	data, err := p.DecodeImages(ctx, paths)
	if err != nil {
		return nil, m, err
	}
	if err := m.Verify(data); err != nil {
		return nil, m, err
	}
	return data, m, nil
}

// WriteOutput writes data to path, refusing to replace anything there.
func WriteOutput(path string, data []byte) error {
	if err := symbol.WriteNew(path, data, 0o644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}

// WrapText breaks an encoded payload into lines of width symbols.
func WrapText(encoded string, width int) string {
	if width <= 0 {
		return encoded + "\n"
	}
	var sb strings.Builder
	sb.Grow(len(encoded) + len(encoded)/width + 1)
	for i := 0; i < len(encoded); i += width {
		sb.WriteString(encoded[i:min(i+width, len(encoded))])
		sb.WriteByte('\n')
	}
	return sb.String()
}

// EncodeToText writes the whole encoded payload as a wrapped text file.
func (p *Pipeline) EncodeToText(data []byte, path string) error {
	encoded, err := p.EncodePayload(data)
	if err != nil {
		return err
	}
	return WriteOutput(path, []byte(WrapText(encoded, TextWidth)))
}

func (p *Pipeline) DecodeText(path string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return p.DecodePayload(string(raw))
}
