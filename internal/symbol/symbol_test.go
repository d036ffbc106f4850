package symbol

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/danmuck/qrlink/internal/protocol"
	"github.com/danmuck/qrlink/internal/testutil/testlog"
	"github.com/rs/zerolog"
)

func TestRenderRefusesOverwrite(t *testing.T) {
	testlog.Start(t)
	target := filepath.Join(t.TempDir(), "0.png")
	if err := os.WriteFile(target, []byte("test"), 0o644); err != nil {
		t.Fatalf("seed file: %v", err)
	}
	r := NewQRRenderer(protocol.LevelQ)
	err := r.Render("HELLO", target)
	if !errors.Is(err, ErrTargetExists) {
		t.Fatalf("expected ErrTargetExists, got %v", err)
	}
	got, _ := os.ReadFile(target)
	if string(got) != "test" {
		t.Fatalf("existing content modified: %q", got)
	}
}

func TestRenderTwiceKeepsFirstImage(t *testing.T) {
	testlog.Start(t)
	target := filepath.Join(t.TempDir(), "chunk.png")
	r := NewQRRenderer(protocol.LevelM)
	if err := r.Render("FIRST", target); err != nil {
		t.Fatalf("first render: %v", err)
	}
	before, _ := os.ReadFile(target)
	if err := r.Render("SECOND", target); !errors.Is(err, ErrTargetExists) {
		t.Fatalf("expected ErrTargetExists, got %v", err)
	}
	after, _ := os.ReadFile(target)
	if string(before) != string(after) {
		t.Fatalf("first image was modified")
	}
	entries, _ := os.ReadDir(filepath.Dir(target))
	if len(entries) != 1 {
		t.Fatalf("expected only the image in dir, got %d entries", len(entries))
	}
}

func TestRenderScanRoundTrip(t *testing.T) {
	testlog.Start(t)
	dir := t.TempDir()
	chunks := []string{"1#ABC DEF$%*+-./:", "V5!0123456789"}
	r := NewQRRenderer(protocol.LevelQ)
	s := NewQRScanner()
	for i, chunk := range chunks {
		target := filepath.Join(dir, fmt.Sprintf("%d.png", i))
		if err := r.Render(chunk, target); err != nil {
			t.Fatalf("render: %v", err)
		}
		got, ok, err := ScanFile(s, target)
		if err != nil || !ok {
			t.Fatalf("scan %s: ok=%v err=%v", target, ok, err)
		}
		if got != chunk {
			t.Fatalf("scan = %q, want %q", got, chunk)
		}
	}
}

func TestNamesZeroPadded(t *testing.T) {
	cases := []struct {
		count int
		first string
		last  string
	}{
		{1, "0.png", "0.png"},
		{9, "0.png", "8.png"},
		{10, "00.png", "09.png"},
		{120, "000.png", "119.png"},
	}
	for _, tc := range cases {
		names := Names("", "", tc.count, ".png")
		if len(names) != tc.count {
			t.Fatalf("count %d: got %d names", tc.count, len(names))
		}
		if names[0] != tc.first || names[len(names)-1] != tc.last {
			t.Fatalf("count %d: got %s..%s", tc.count, names[0], names[len(names)-1])
		}
	}
	if Names("out", "qr-", 0, ".png") != nil {
		t.Fatalf("expected nil for zero count")
	}
	if got := Names("out", "qr-", 2, ".png")[1]; got != filepath.Join("out", "qr-1.png") {
		t.Fatalf("unexpected name %q", got)
	}
}

type fileRenderer struct {
	failOn string
	calls  atomic.Int32
}

func (f *fileRenderer) Render(chunk, target string) error {
	f.calls.Add(1)
	if chunk == f.failOn {
		return fmt.Errorf("%w: forced", ErrRender)
	}
	return WriteNew(target, []byte(chunk), 0o644)
}

func TestRenderAllPreflightWritesNothing(t *testing.T) {
	testlog.Start(t)
	dir := t.TempDir()
	names := Names(dir, "", 3, ".png")
	if err := os.WriteFile(names[2], []byte("keep"), 0o644); err != nil {
		t.Fatalf("seed: %v", err)
	}
	r := &fileRenderer{}
	err := RenderAll(context.Background(), r, []string{"a", "b", "c"}, names, 2, zerolog.Nop())
	if !errors.Is(err, ErrTargetExists) {
		t.Fatalf("expected ErrTargetExists, got %v", err)
	}
	if r.calls.Load() != 0 {
		t.Fatalf("expected no renders, got %d", r.calls.Load())
	}
	for _, n := range names[:2] {
		if _, err := os.Stat(n); err == nil {
			t.Fatalf("unexpected file %s", n)
		}
	}
}

func TestRenderAllRejectsDuplicateNames(t *testing.T) {
	dir := t.TempDir()
	n := filepath.Join(dir, "x.png")
	err := RenderAll(context.Background(), &fileRenderer{}, []string{"a", "b"}, []string{n, n}, 1, zerolog.Nop())
	if !errors.Is(err, ErrDuplicateTarget) {
		t.Fatalf("expected ErrDuplicateTarget, got %v", err)
	}
}

func TestRenderAllRemovesPartialOutputOnFailure(t *testing.T) {
	testlog.Start(t)
	dir := t.TempDir()
	chunks := []string{"a", "b", "c", "d", "e", "f"}
	names := Names(dir, "", len(chunks), ".png")
	err := RenderAll(context.Background(), &fileRenderer{failOn: "d"}, chunks, names, 1, zerolog.Nop())
	if !errors.Is(err, ErrRender) {
		t.Fatalf("expected ErrRender, got %v", err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Fatalf("expected empty dir after failure, got %d entries", len(entries))
	}
}

func TestRenderAllWritesEveryTarget(t *testing.T) {
	dir := t.TempDir()
	chunks := []string{"a", "b", "c", "d"}
	names := Names(dir, "qr-", len(chunks), ".png")
	if err := RenderAll(context.Background(), &fileRenderer{}, chunks, names, 4, zerolog.Nop()); err != nil {
		t.Fatalf("render all: %v", err)
	}
	for i, n := range names {
		got, err := os.ReadFile(n)
		if err != nil || string(got) != chunks[i] {
			t.Fatalf("%s = %q, %v", n, got, err)
		}
	}
}
