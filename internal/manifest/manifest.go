// Package manifest describes a rendered payload: how it was encoded, which
// images carry it, and a digest of the input bytes.
package manifest

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/zeebo/xxh3"
)

const (
	FileName = "manifest.toml"
	Version  = 1
)

var (
	ErrDigestMismatch = errors.New("manifest: digest mismatch")
	ErrInvalid        = errors.New("manifest: invalid")
)

type Manifest struct {
	Version    int      `toml:"version"`
	Variant    string   `toml:"variant"`
	Level      string   `toml:"level"`
	Mode       string   `toml:"mode"`
	Compressor string   `toml:"compressor"`
	Chunks     int      `toml:"chunks"`
	Size       int64    `toml:"size"`
	Digest     string   `toml:"digest"`
	Bundle     bool     `toml:"bundle,omitempty"`
	Images     []string `toml:"images"`
}

// Digest is the hex xxh3-128 of data.
func Digest(data []byte) string {
	sum := xxh3.Hash128(data).Bytes()
	return fmt.Sprintf("%x", sum[:])
}

// Verify checks data against the recorded size and digest.
func (m Manifest) Verify(data []byte) error {
	if int64(len(data)) != m.Size {
		return fmt.Errorf("%w: size %d, manifest says %d", ErrDigestMismatch, len(data), m.Size)
	}
	if got := Digest(data); got != m.Digest {
		return fmt.Errorf("%w: %s, manifest says %s", ErrDigestMismatch, got, m.Digest)
	}
	return nil
}

func (m Manifest) Validate() error {
	if m.Version != Version {
		return fmt.Errorf("%w: unsupported version %d", ErrInvalid, m.Version)
	}
	if strings.TrimSpace(m.Variant) == "" {
		return fmt.Errorf("%w: variant is required", ErrInvalid)
	}
	if m.Chunks < 0 || m.Size < 0 {
		return fmt.Errorf("%w: negative counts", ErrInvalid)
	}
	if len(m.Images) != 0 && len(m.Images) != m.Chunks {
		return fmt.Errorf("%w: %d images for %d chunks", ErrInvalid, len(m.Images), m.Chunks)
	}
	return nil
}

func Marshal(m Manifest) ([]byte, error) {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(m); err != nil {
		return nil, fmt.Errorf("manifest: encode: %w", err)
	}
	return buf.Bytes(), nil
}

func Unmarshal(data []byte) (Manifest, error) {
	var m Manifest
	meta, err := toml.Decode(string(data), &m)
	if err != nil {
		return Manifest{}, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Manifest{}, fmt.Errorf("%w: unknown key %q", ErrInvalid, undecoded[0].String())
	}
	if !meta.IsDefined("version") {
		m.Version = Version
	}
	if err := m.Validate(); err != nil {
		return Manifest{}, err
	}
	return m, nil
}

func Load(path string) (Manifest, error) {
	var m Manifest
	meta, err := toml.DecodeFile(path, &m)
	if err != nil {
		return Manifest{}, fmt.Errorf("load manifest: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Manifest{}, fmt.Errorf("%w: unknown key %q in %s", ErrInvalid, undecoded[0].String(), path)
	}
	if !meta.IsDefined("version") {
		m.Version = Version
	}
	if err := m.Validate(); err != nil {
		return Manifest{}, err
	}
	return m, nil
}
