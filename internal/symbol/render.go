package symbol

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/danmuck/qrlink/internal/protocol"
	qrcode "github.com/skip2/go-qrcode"
)

var (
	ErrTargetExists    = errors.New("symbol: target exists")
	ErrDuplicateTarget = errors.New("symbol: duplicate target name")
	ErrRender          = errors.New("symbol: render failed")
)

// Renderer turns one chunk string into one image at target.
type Renderer interface {
	Render(chunk, target string) error
}

// QRRenderer writes PNG QR codes.
type QRRenderer struct {
	Level protocol.Level
	// Size is the PNG edge in pixels; negative means pixels per module.
	Size int
}

func NewQRRenderer(level protocol.Level) *QRRenderer {
	return &QRRenderer{Level: level, Size: -4}
}

func recoveryLevel(l protocol.Level) qrcode.RecoveryLevel {
	switch l {
	case protocol.LevelL:
		return qrcode.Low
	case protocol.LevelM:
		return qrcode.Medium
	case protocol.LevelH:
		return qrcode.Highest
	default:
		return qrcode.High
	}
}

// Render refuses an existing target before encoding anything, then writes
// the PNG to a sibling temp file and links it into place. A failure at any
// step leaves no file at target.
func (r *QRRenderer) Render(chunk, target string) error {
	if err := ensureAbsent(target); err != nil {
		return err
	}
	q, err := qrcode.New(chunk, recoveryLevel(r.Level))
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrRender, target, err)
	}
	png, err := q.PNG(r.Size)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrRender, target, err)
	}
	return WriteNew(target, png, 0o644)
}

func ensureAbsent(target string) error {
	_, err := os.Lstat(target)
	if err == nil {
		return fmt.Errorf("%w: %s", ErrTargetExists, target)
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// WriteNew writes data to path only if nothing exists there. The content is
// fully written and synced before it becomes visible at path.
func WriteNew(path string, data []byte, perm fs.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, perm.Perm()); err != nil {
		return err
	}
	if err := os.Link(tmpName, path); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("%w: %s", ErrTargetExists, path)
		}
		return err
	}
	return nil
}
