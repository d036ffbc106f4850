// Package bundle packs several files into one payload so they travel as a
// single chunk sequence.
package bundle

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/danmuck/qrlink/internal/protocol/tlv"
	"github.com/danmuck/qrlink/internal/symbol"
	"github.com/rs/zerolog"
)

const (
	magic   = "qrlink/bundle"
	version = 1
)

const (
	fieldMagic uint16 = iota + 1
	fieldVersion
	fieldCount
	fieldPath
	fieldMode
	fieldData
	fieldSize
)

var (
	ErrMalformed     = errors.New("bundle: malformed")
	ErrUnsafePath    = errors.New("bundle: unsafe path")
	ErrDuplicatePath = errors.New("bundle: duplicate path")
)

// Entry is one file. Path is slash separated and relative.
type Entry struct {
	Path string
	Mode fs.FileMode
	Data []byte
}

var header = func() []byte {
	b, _ := tlv.Append(nil, tlv.String(fieldMagic, magic))
	return b
}()

// IsBundle reports whether data starts with a bundle header.
func IsBundle(data []byte) bool {
	return bytes.HasPrefix(data, header)
}

// Pack encodes entries in order. Paths must be clean, relative and unique.
func Pack(entries []Entry) ([]byte, error) {
	seen := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		if err := checkPath(e.Path); err != nil {
			return nil, err
		}
		if _, dup := seen[e.Path]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicatePath, e.Path)
		}
		seen[e.Path] = struct{}{}
	}

	out := append([]byte(nil), header...)
	fields := []tlv.Field{tlv.U32(fieldVersion, version), tlv.U32(fieldCount, uint32(len(entries)))}
	for _, e := range entries {
		fields = append(fields,
			tlv.String(fieldPath, e.Path),
			tlv.U32(fieldMode, uint32(e.Mode.Perm())),
			tlv.U64(fieldSize, uint64(len(e.Data))),
			tlv.Bytes(fieldData, e.Data),
		)
	}
	var err error
	for _, f := range fields {
		if out, err = tlv.Append(out, f); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func Unpack(data []byte) ([]Entry, error) {
	if !IsBundle(data) {
		return nil, fmt.Errorf("%w: missing header", ErrMalformed)
	}
	r := tlv.NewReader(data[len(header):])
	vf, err := r.Expect(fieldVersion, tlv.TypeU32)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	if v, _ := vf.U32(); v != version {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrMalformed, v)
	}
	cf, err := r.Expect(fieldCount, tlv.TypeU32)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	count, _ := cf.U32()

	entries := make([]Entry, 0, min(int(count), 1024))
	seen := make(map[string]struct{})
	for i := uint32(0); i < count; i++ {
		e, err := readEntry(r)
		if err != nil {
			return nil, fmt.Errorf("%w: entry %d: %w", ErrMalformed, i, err)
		}
		if err := checkPath(e.Path); err != nil {
			return nil, err
		}
		if _, dup := seen[e.Path]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicatePath, e.Path)
		}
		seen[e.Path] = struct{}{}
		entries = append(entries, e)
	}
	if r.More() {
		return nil, fmt.Errorf("%w: trailing bytes at offset %d", ErrMalformed, r.Offset())
	}
	return entries, nil
}

func readEntry(r *tlv.Reader) (Entry, error) {
	pf, err := r.Expect(fieldPath, tlv.TypeString)
	if err != nil {
		return Entry{}, err
	}
	mf, err := r.Expect(fieldMode, tlv.TypeU32)
	if err != nil {
		return Entry{}, err
	}
	mode, err := mf.U32()
	if err != nil {
		return Entry{}, err
	}
	sf, err := r.Expect(fieldSize, tlv.TypeU64)
	if err != nil {
		return Entry{}, err
	}
	size, err := sf.U64()
	if err != nil {
		return Entry{}, err
	}
	df, err := r.Expect(fieldData, tlv.TypeBytes)
	if err != nil {
		return Entry{}, err
	}
	if uint64(len(df.Value)) != size {
		return Entry{}, fmt.Errorf("size %d, data has %d bytes", size, len(df.Value))
	}
	return Entry{
		Path: string(pf.Value),
		Mode: fs.FileMode(mode).Perm(),
		Data: append([]byte(nil), df.Value...),
	}, nil
}

func checkPath(p string) error {
	switch {
	case p == "" || p == ".":
		return fmt.Errorf("%w: empty path", ErrUnsafePath)
	case strings.ContainsRune(p, '\\') || strings.ContainsRune(p, 0):
		return fmt.Errorf("%w: %q", ErrUnsafePath, p)
	case path.IsAbs(p) || path.Clean(p) != p:
		return fmt.Errorf("%w: %q is not clean and relative", ErrUnsafePath, p)
	case p == ".." || strings.HasPrefix(p, "../"):
		return fmt.Errorf("%w: %q escapes root", ErrUnsafePath, p)
	}
	return nil
}

// Collect reads the named files. Directories are walked and their files
// keep the directory name as a prefix. Absolute paths keep only their base.
func Collect(paths []string) ([]Entry, error) {
	var entries []Entry
	for _, arg := range paths {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		base := filepath.Clean(arg)
		if filepath.IsAbs(base) || strings.HasPrefix(filepath.ToSlash(base), "../") {
			base = filepath.Base(base)
		}
		if !info.IsDir() {
			data, err := os.ReadFile(arg)
			if err != nil {
				return nil, err
			}
			entries = append(entries, Entry{Path: filepath.ToSlash(base), Mode: info.Mode().Perm(), Data: data})
			continue
		}
		var found []Entry
		err = filepath.WalkDir(arg, func(p string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if !d.Type().IsRegular() {
				return nil
			}
			rel, err := filepath.Rel(arg, p)
			if err != nil {
				return err
			}
			fi, err := d.Info()
			if err != nil {
				return err
			}
			data, err := os.ReadFile(p)
			if err != nil {
				return err
			}
			found = append(found, Entry{
				Path: filepath.ToSlash(filepath.Join(base, rel)),
				Mode: fi.Mode().Perm(),
				Data: data,
			})
			return nil
		})
		if err != nil {
			return nil, err
		}
		sort.Slice(found, func(i, j int) bool { return found[i].Path < found[j].Path })
		entries = append(entries, found...)
	}
	return entries, nil
}

// Extract writes entries under root. Every target is checked before the
// first write; nothing is overwritten, and a failure removes the files
// this call created.
func Extract(root string, entries []Entry, logger zerolog.Logger) ([]string, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	targets := make([]string, len(entries))
	for i, e := range entries {
		p, err := resolvePath(absRoot, e.Path)
		if err != nil {
			return nil, err
		}
		if _, err := os.Lstat(p); err == nil {
			return nil, fmt.Errorf("%w: %s", symbol.ErrTargetExists, p)
		} else if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		targets[i] = p
	}

	written := make([]string, 0, len(entries))
	for i, e := range entries {
		if err := os.MkdirAll(filepath.Dir(targets[i]), 0o755); err != nil {
			cleanup(written)
			return nil, err
		}
		mode := e.Mode.Perm()
		if mode == 0 {
			mode = 0o644
		}
		if err := symbol.WriteNew(targets[i], e.Data, mode); err != nil {
			cleanup(written)
			return nil, err
		}
		written = append(written, targets[i])
		logger.Debug().Str("path", targets[i]).Int("bytes", len(e.Data)).Msg("bundle: extracted")
	}
	return written, nil
}

func cleanup(paths []string) {
	for _, p := range paths {
		_ = os.Remove(p)
	}
}

func resolvePath(root, rel string) (string, error) {
	if err := checkPath(rel); err != nil {
		return "", err
	}
	p := filepath.Clean(filepath.Join(root, filepath.FromSlash(rel)))
	if !isWithin(p, root) {
		return "", fmt.Errorf("%w: %q escapes root", ErrUnsafePath, rel)
	}
	return p, nil
}

func isWithin(p, root string) bool {
	p = filepath.Clean(p)
	r := filepath.Clean(root)
	if p == r {
		return true
	}
	return strings.HasPrefix(p, r+string(os.PathSeparator))
}
