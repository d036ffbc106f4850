package bundle

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/danmuck/qrlink/internal/protocol/tlv"
	"github.com/danmuck/qrlink/internal/symbol"
	"github.com/danmuck/qrlink/internal/testutil/testlog"
	"github.com/rs/zerolog"
)

func TestPackUnpackRoundTrip(t *testing.T) {
	in := []Entry{
		{Path: "a.txt", Mode: 0o644, Data: []byte("EOF\nhello\n")},
		{Path: "bin/run.sh", Mode: 0o755, Data: []byte("#!/bin/sh\necho ok\n")},
		{Path: "empty", Mode: 0o600},
	}
	data, err := Pack(in)
	if err != nil {
		t.Fatalf("pack: %v", err)
	}
	if !IsBundle(data) {
		t.Fatalf("packed data not recognised as bundle")
	}
	out, err := Unpack(data)
	if err != nil {
		t.Fatalf("unpack: %v", err)
	}
	if len(out) != len(in) {
		t.Fatalf("expected %d entries, got %d", len(in), len(out))
	}
	for i := range in {
		if out[i].Path != in[i].Path || out[i].Mode != in[i].Mode || !bytes.Equal(out[i].Data, in[i].Data) {
			t.Fatalf("entry %d = %+v, want %+v", i, out[i], in[i])
		}
	}
}

func TestPackRejectsUnsafePaths(t *testing.T) {
	cases := []string{"", ".", "/etc/passwd", "../up", "a/../../b", "a//b", `a\b`}
	for _, p := range cases {
		if _, err := Pack([]Entry{{Path: p}}); !errors.Is(err, ErrUnsafePath) {
			t.Fatalf("path %q: expected ErrUnsafePath, got %v", p, err)
		}
	}
	if _, err := Pack([]Entry{{Path: "x"}, {Path: "x"}}); !errors.Is(err, ErrDuplicatePath) {
		t.Fatalf("expected ErrDuplicatePath, got %v", err)
	}
}

func craft(fields ...tlv.Field) []byte {
	out := append([]byte(nil), header...)
	for _, f := range fields {
		out, _ = tlv.Append(out, f)
	}
	return out
}

func TestUnpackRejectsCraftedEscape(t *testing.T) {
	out := craft(
		tlv.U32(fieldVersion, version),
		tlv.U32(fieldCount, 1),
		tlv.String(fieldPath, "../../etc/cron"),
		tlv.U32(fieldMode, 0o644),
		tlv.U64(fieldSize, 1),
		tlv.Bytes(fieldData, []byte("x")),
	)
	if _, err := Unpack(out); !errors.Is(err, ErrUnsafePath) {
		t.Fatalf("expected ErrUnsafePath, got %v", err)
	}
}

func TestUnpackChecksEntrySize(t *testing.T) {
	entry := func(size uint64) []byte {
		return craft(
			tlv.U32(fieldVersion, version),
			tlv.U32(fieldCount, 1),
			tlv.String(fieldPath, "a.txt"),
			tlv.U32(fieldMode, 0o644),
			tlv.U64(fieldSize, size),
			tlv.Bytes(fieldData, []byte("abc")),
		)
	}
	entries, err := Unpack(entry(3))
	if err != nil || len(entries) != 1 || string(entries[0].Data) != "abc" {
		t.Fatalf("unpack = %+v, %v", entries, err)
	}
	if _, err := Unpack(entry(4)); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed for size mismatch, got %v", err)
	}
	noSize := craft(
		tlv.U32(fieldVersion, version),
		tlv.U32(fieldCount, 1),
		tlv.String(fieldPath, "a.txt"),
		tlv.U32(fieldMode, 0o644),
		tlv.Bytes(fieldData, []byte("abc")),
	)
	if _, err := Unpack(noSize); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed without size field, got %v", err)
	}
}

func TestUnpackMalformed(t *testing.T) {
	good, err := Pack([]Entry{{Path: "a", Data: []byte("abc")}})
	if err != nil {
		t.Fatalf("pack: %v", err)
	}
	cases := map[string][]byte{
		"no header": []byte("plain data"),
		"truncated": good[:len(good)-1],
		"trailing":  append(append([]byte(nil), good...), 0x01),
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Unpack(data); !errors.Is(err, ErrMalformed) {
				t.Fatalf("expected ErrMalformed, got %v", err)
			}
		})
	}
}

func TestCollectFilesAndDirs(t *testing.T) {
	dir := t.TempDir()
	mustWrite(t, filepath.Join(dir, "one.txt"), "1")
	mustWrite(t, filepath.Join(dir, "tree", "b.txt"), "b")
	mustWrite(t, filepath.Join(dir, "tree", "sub", "a.txt"), "a")

	entries, err := Collect([]string{filepath.Join(dir, "one.txt"), filepath.Join(dir, "tree")})
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	want := []string{"one.txt", "tree/b.txt", "tree/sub/a.txt"}
	if len(entries) != len(want) {
		t.Fatalf("expected %d entries, got %+v", len(want), entries)
	}
	for i, w := range want {
		if entries[i].Path != w {
			t.Fatalf("entry %d path %q, want %q", i, entries[i].Path, w)
		}
	}
}

func TestExtractWritesUnderRoot(t *testing.T) {
	testlog.Start(t)
	root := t.TempDir()
	entries := []Entry{
		{Path: "a.txt", Mode: 0o644, Data: []byte("a")},
		{Path: "deep/b.sh", Mode: 0o755, Data: []byte("b")},
	}
	written, err := Extract(root, entries, zerolog.Nop())
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if len(written) != 2 {
		t.Fatalf("expected 2 files, got %v", written)
	}
	got, err := os.ReadFile(filepath.Join(root, "deep", "b.sh"))
	if err != nil || string(got) != "b" {
		t.Fatalf("read extracted: %q, %v", got, err)
	}
	info, _ := os.Stat(filepath.Join(root, "deep", "b.sh"))
	if info.Mode().Perm() != 0o755 {
		t.Fatalf("mode = %o", info.Mode().Perm())
	}
}

func TestExtractRefusesOverwriteAndWritesNothing(t *testing.T) {
	root := t.TempDir()
	mustWrite(t, filepath.Join(root, "b.txt"), "keep")
	entries := []Entry{
		{Path: "a.txt", Data: []byte("a")},
		{Path: "b.txt", Data: []byte("b")},
	}
	_, err := Extract(root, entries, zerolog.Nop())
	if !errors.Is(err, symbol.ErrTargetExists) {
		t.Fatalf("expected ErrTargetExists, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "a.txt")); !os.IsNotExist(err) {
		t.Fatalf("a.txt should not have been written")
	}
	got, _ := os.ReadFile(filepath.Join(root, "b.txt"))
	if string(got) != "keep" {
		t.Fatalf("existing file modified: %q", got)
	}
}

func TestIsWithin(t *testing.T) {
	root := filepath.Join(string(os.PathSeparator), "srv", "out")
	if !isWithin(filepath.Join(root, "a"), root) || !isWithin(root, root) {
		t.Fatalf("expected paths under root to be within")
	}
	if isWithin(root+"2", root) || isWithin(filepath.Dir(root), root) {
		t.Fatalf("expected sibling and parent to be outside")
	}
}

func mustWrite(t *testing.T, p, body string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}
