// Package compress wraps the byte compressors a pipeline can run before
// base encoding. Every implementation emits a non-zero leading magic byte,
// which the big-integer codec relies on.
package compress

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// MaxDecodedBytes bounds decompression output.
const MaxDecodedBytes = 256 << 20

var (
	ErrCorrupt         = errors.New("compress: corrupt or truncated input")
	ErrTooLarge        = errors.New("compress: decompressed payload too large")
	ErrUnknownCompress = errors.New("compress: unknown compressor")
)

// Compressor is a matched compress/decompress pair.
type Compressor interface {
	Name() string
	Compress(data []byte) ([]byte, error)
	Decompress(data []byte) ([]byte, error)
}

const (
	NameZstd = "zstd"
	NameGzip = "gzip"
)

var registry = map[string]func() (Compressor, error){
	NameZstd: func() (Compressor, error) { return NewZstd() },
	NameGzip: func() (Compressor, error) { return NewGzip(), nil },
}

// Lookup builds the named compressor. Empty selects zstd.
func Lookup(name string) (Compressor, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		key = NameZstd
	}
	build, ok := registry[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCompress, name)
	}
	return build()
}

func Names() []string {
	out := make([]string, 0, len(registry))
	for name := range registry {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
