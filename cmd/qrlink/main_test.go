package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/danmuck/qrlink/internal/testutil/testlog"
)

func runArgs(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, strings.NewReader(""), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestRunUsage(t *testing.T) {
	if code, _, stderr := runArgs(t); code != 2 || !strings.Contains(stderr, "usage") {
		t.Fatalf("expected usage exit 2, got %d: %s", code, stderr)
	}
	if code, _, _ := runArgs(t, "bogus"); code != 2 {
		t.Fatalf("expected exit 2 for unknown command, got %d", code)
	}
	if code, _, _ := runArgs(t, "encode"); code != 2 {
		t.Fatalf("expected exit 2 without inputs, got %d", code)
	}
}

func TestConfigInitAndValidate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "qrlink.toml")
	if code, _, stderr := runArgs(t, "config", "init", "-path", path); code != 0 {
		t.Fatalf("init: %d %s", code, stderr)
	}
	if code, _, _ := runArgs(t, "config", "init", "-path", path); code != 1 {
		t.Fatalf("expected init to refuse overwrite, got %d", code)
	}
	if code, stdout, stderr := runArgs(t, "config", "validate", "-path", path); code != 0 || !strings.Contains(stdout, "validated") {
		t.Fatalf("validate: %d %s", code, stderr)
	}
	if code, stdout, _ := runArgs(t, "config", "show", "-path", path); code != 0 || !strings.Contains(stdout, "variant") {
		t.Fatalf("show: %d %s", code, stdout)
	}
}

func TestEncodeDecodeTextFile(t *testing.T) {
	testlog.Start(t)
	dir := t.TempDir()
	in := filepath.Join(dir, "notes.txt")
	body := strings.Repeat("qrlink text payload\n", 40)
	if err := os.WriteFile(in, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	code := filepath.Join(dir, "notes.code")
	if c, _, stderr := runArgs(t, "encode", "-text", code, in); c != 0 {
		t.Fatalf("encode: %d %s", c, stderr)
	}
	if c, _, stderr := runArgs(t, "decode", code); c != 0 {
		t.Fatalf("decode: %d %s", c, stderr)
	}
	got, err := os.ReadFile(code + ".decode")
	if err != nil || string(got) != body {
		t.Fatalf("decoded %q, %v", got, err)
	}
	if c, _, _ := runArgs(t, "decode", code); c != 1 {
		t.Fatalf("expected second decode to refuse overwrite, got %d", c)
	}
}

func TestEncodeDecodeImagesBundle(t *testing.T) {
	testlog.Start(t)
	dir := t.TempDir()
	a := filepath.Join(dir, "a.txt")
	b := filepath.Join(dir, "b.txt")
	if err := os.WriteFile(a, []byte("first file"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.WriteFile(b, []byte("second file"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	images := filepath.Join(dir, "images")
	if c, _, stderr := runArgs(t, "encode", "-out", images, a, b); c != 0 {
		t.Fatalf("encode: %d %s", c, stderr)
	}
	dest := filepath.Join(dir, "restored")
	if c, _, stderr := runArgs(t, "decode", "-extract", dest, images); c != 0 {
		t.Fatalf("decode: %d %s", c, stderr)
	}
	got, err := os.ReadFile(filepath.Join(dest, "a.txt"))
	if err != nil || string(got) != "first file" {
		t.Fatalf("a.txt = %q, %v", got, err)
	}
	got, err = os.ReadFile(filepath.Join(dest, "b.txt"))
	if err != nil || string(got) != "second file" {
		t.Fatalf("b.txt = %q, %v", got, err)
	}
}

func TestScanFrameDirectory(t *testing.T) {
	testlog.Start(t)
	dir := t.TempDir()
	in := filepath.Join(dir, "payload.bin")
	if err := os.WriteFile(in, []byte("scanned payload"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	frames := filepath.Join(dir, "frames")
	if c, _, stderr := runArgs(t, "encode", "-variant", "base32", "-out", frames, in); c != 0 {
		t.Fatalf("encode: %d %s", c, stderr)
	}
	out := filepath.Join(dir, "out.bin")
	c, _, stderr := runArgs(t, "scan", "-variant", "base32", "-keys=false", "-rate", "1", "-out", out, frames)
	if c != 0 {
		t.Fatalf("scan: %d %s", c, stderr)
	}
	got, err := os.ReadFile(out)
	if err != nil || string(got) != "scanned payload" {
		t.Fatalf("scanned %q, %v", got, err)
	}
}

func TestDecodeDirectoryDefaultsOutputPath(t *testing.T) {
	testlog.Start(t)
	dir := t.TempDir()
	in := filepath.Join(dir, "single.bin")
	if err := os.WriteFile(in, []byte("one file, no bundle"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	images := filepath.Join(dir, "images")
	if c, _, stderr := runArgs(t, "encode", "-out", images, in); c != 0 {
		t.Fatalf("encode: %d %s", c, stderr)
	}
	if c, stdout, stderr := runArgs(t, "decode", images+string(filepath.Separator)); c != 0 || !strings.Contains(stdout, "images.decode") {
		t.Fatalf("decode: %d %s %s", c, stdout, stderr)
	}
	got, err := os.ReadFile(images + ".decode")
	if err != nil || string(got) != "one file, no bundle" {
		t.Fatalf("decoded %q, %v", got, err)
	}
}
