package tools

import (
	"context"
	"os/exec"
	"testing"
)

func TestExecRunnerMissingBinaryExitCode(t *testing.T) {
	_, _, code, err := ExecRunner{}.Run(context.Background(), "qrlink-definitely-not-a-binary")
	if err == nil {
		t.Fatalf("expected error for missing binary")
	}
	if code != 127 {
		t.Fatalf("expected exit code 127, got %d", code)
	}
}

func TestExecRunnerCapturesStdout(t *testing.T) {
	if _, err := exec.LookPath("echo"); err != nil {
		t.Skip("echo not available")
	}
	out, _, code, err := ExecRunner{}.Run(context.Background(), "echo", "frames")
	if err != nil || code != 0 {
		t.Fatalf("run: code=%d err=%v", code, err)
	}
	if string(out) != "frames\n" {
		t.Fatalf("unexpected stdout %q", out)
	}
}
