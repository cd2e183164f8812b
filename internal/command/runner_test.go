package command

import (
	"context"
	"errors"
	"os/exec"
	"testing"
	"time"
)

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func TestExecCapturesOutputAndExitCode(t *testing.T) {
	requireShell(t)

	res, err := Exec{}.Run(context.Background(), 0, "sh", "-c", "echo out; echo err >&2; exit 3")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.ExitCode != 3 || res.OK() {
		t.Fatalf("expected exit code 3, got %d", res.ExitCode)
	}
	if string(res.Stdout) != "out\n" || string(res.Stderr) != "err\n" {
		t.Fatalf("unexpected output stdout=%q stderr=%q", res.Stdout, res.Stderr)
	}
}

func TestExecTimeout(t *testing.T) {
	requireShell(t)

	_, err := Exec{}.Run(context.Background(), 50*time.Millisecond, "sh", "-c", "sleep 5")
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected timeout error, got %v", err)
	}
}

func TestExecMissingBinary(t *testing.T) {
	_, err := Exec{}.Run(context.Background(), time.Second, "goattach-definitely-missing-binary")
	if err == nil || errors.Is(err, ErrTimeout) {
		t.Fatalf("expected start error, got %v", err)
	}
}

func TestDescribe(t *testing.T) {
	if got := Describe("sudo", "-n", "-u", "bob", "true"); got != "sudo -n -u bob true" {
		t.Fatalf("unexpected description %q", got)
	}
	if got := Describe("ps"); got != "ps" {
		t.Fatalf("unexpected description %q", got)
	}
}
