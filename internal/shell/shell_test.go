package shell

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestRun_CapturesStdout(t *testing.T) {
	r := NewRunner()

	res, err := r.Run(context.Background(), "echo hello", Options{Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.ExitCode != 0 {
		t.Errorf("expected exit 0, got %d", res.ExitCode)
	}
	if !strings.Contains(res.Stdout, "hello") {
		t.Errorf("expected stdout to contain hello, got %q", res.Stdout)
	}
	if res.Duration <= 0 {
		t.Error("expected a positive duration")
	}
}

func TestRun_CapturesStderr(t *testing.T) {
	r := NewRunner()

	res, err := r.Run(context.Background(), "echo oops 1>&2", Options{Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !strings.Contains(res.Stderr, "oops") {
		t.Errorf("expected stderr to contain oops, got %q", res.Stderr)
	}
}

func TestRun_NonZeroExitIsNotAnError(t *testing.T) {
	r := NewRunner()

	res, err := r.Run(context.Background(), "exit 3", Options{Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("expected no error for non-zero exit, got %v", err)
	}
	if res.ExitCode != 3 {
		t.Errorf("expected exit 3, got %d", res.ExitCode)
	}
}

func TestRun_Timeout(t *testing.T) {
	r := NewRunner()

	start := time.Now()
	_, err := r.Run(context.Background(), "sleep 10", Options{Timeout: 100 * time.Millisecond})
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("timeout kill took too long: %v", elapsed)
	}
}

func TestRun_WorkingDirectory(t *testing.T) {
	r := NewRunner()
	dir := t.TempDir()

	res, err := r.Run(context.Background(), "pwd", Options{Dir: dir, Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !strings.Contains(res.Stdout, dir) {
		t.Errorf("expected pwd output %q to contain %q", res.Stdout, dir)
	}
}

func TestRun_Environment(t *testing.T) {
	r := NewRunner()

	res, err := r.Run(context.Background(), "echo $RELAY_TEST_VAR", Options{
		Env:     map[string]string{"RELAY_TEST_VAR": "present", "PATH": "/usr/bin:/bin"},
		Timeout: 5 * time.Second,
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !strings.Contains(res.Stdout, "present") {
		t.Errorf("expected env var in output, got %q", res.Stdout)
	}
}

func TestRun_SpawnError(t *testing.T) {
	r := NewRunner()

	_, err := r.RunArgs(context.Background(), "/no/such/binary", nil, Options{Timeout: time.Second})
	if err == nil {
		t.Fatal("expected spawn error for missing binary")
	}
	if errors.Is(err, ErrTimeout) {
		t.Error("spawn failure must not be reported as a timeout")
	}
}

func TestRunArgs_PreservesArguments(t *testing.T) {
	r := NewRunner()

	res, err := r.RunArgs(context.Background(), "echo", []string{"one two", "three"}, Options{Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("RunArgs failed: %v", err)
	}
	if !strings.Contains(res.Stdout, "one two three") {
		t.Errorf("expected argv spacing preserved, got %q", res.Stdout)
	}
}

func TestFields(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"commit -m message", []string{"commit", "-m", "message"}},
		{`commit -m "two words"`, []string{"commit", "-m", "two words"}},
		{`run --flag='a b c'`, []string{"run", "--flag=a b c"}},
		{"", nil},
	}

	for _, tt := range tests {
		got, err := Fields(tt.in)
		if err != nil {
			t.Fatalf("Fields(%q) failed: %v", tt.in, err)
		}
		if len(got) != len(tt.want) {
			t.Fatalf("Fields(%q) = %v, want %v", tt.in, got, tt.want)
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("Fields(%q)[%d] = %q, want %q", tt.in, i, got[i], tt.want[i])
			}
		}
	}
}

func TestEnviron(t *testing.T) {
	t.Setenv("RELAY_ENVIRON_PROBE", "yes")

	env := Environ()
	if env["RELAY_ENVIRON_PROBE"] != "yes" {
		t.Error("expected process environment to be captured")
	}
}
