package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/watzon/relay/internal/shell"
)

type recordingRunner struct {
	lastCommand string
	exitCode    int
	stderr      string
	err         error
}

func (r *recordingRunner) Run(ctx context.Context, command string, opts shell.Options) (*shell.Result, error) {
	r.lastCommand = command
	if r.err != nil {
		return nil, r.err
	}
	return &shell.Result{ExitCode: r.exitCode, Stderr: r.stderr}, nil
}

func TestLogNotifier(t *testing.T) {
	n := NewLogNotifier()
	if err := n.Notify(context.Background(), "Build", "done"); err != nil {
		t.Errorf("LogNotifier must not fail: %v", err)
	}
}

func TestCommandNotifier_ExpandsTemplate(t *testing.T) {
	r := &recordingRunner{}
	n := NewCommandNotifier(`notify-send "{{title}}" "{{message}}"`, r)

	if err := n.Notify(context.Background(), "Deploy", "shipped v2"); err != nil {
		t.Fatalf("Notify failed: %v", err)
	}
	want := `notify-send "Deploy" "shipped v2"`
	if r.lastCommand != want {
		t.Errorf("command = %q, want %q", r.lastCommand, want)
	}
}

func TestCommandNotifier_NonZeroExit(t *testing.T) {
	r := &recordingRunner{exitCode: 1, stderr: "no display"}
	n := NewCommandNotifier("notify-send x", r)

	err := n.Notify(context.Background(), "t", "m")
	if err == nil {
		t.Fatal("expected failure for non-zero exit")
	}
	if got := err.Error(); got != "notify command failed: no display" {
		t.Errorf("unexpected error text %q", got)
	}
}

func TestCommandNotifier_SpawnError(t *testing.T) {
	r := &recordingRunner{err: errors.New("spawn failed")}
	n := NewCommandNotifier("notify-send x", r)

	if err := n.Notify(context.Background(), "t", "m"); err == nil {
		t.Error("expected spawn error to propagate")
	}
}
