// Package shell is the command-execution primitive behind shell-backed
// actions and condition checks. A non-zero exit status is a normal
// Result, not an error; only spawn failures and timeouts error out.
package shell

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	mvshell "mvdan.cc/sh/v3/shell"
)

var ErrTimeout = errors.New("command timed out")

// Options bound one command run.
type Options struct {
	Dir     string
	Env     map[string]string
	Timeout time.Duration
}

// Result is the outcome of one command run. On timeout a partial
// Result (whatever output was captured) accompanies the error.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
}

// ExecRunner runs commands on the host. Commands run in their own
// process group so a timeout kills the whole tree, not just the shell.
type ExecRunner struct{}

func NewRunner() *ExecRunner {
	return &ExecRunner{}
}

// Run executes command through "sh -c" with the given working
// directory, environment, and timeout.
func (r *ExecRunner) Run(ctx context.Context, command string, opts Options) (*Result, error) {
	return r.start(ctx, opts, "sh", "-c", command)
}

// RunArgs executes a program with an explicit argument vector, no
// shell interpretation.
func (r *ExecRunner) RunArgs(ctx context.Context, name string, args []string, opts Options) (*Result, error) {
	return r.start(ctx, opts, name, args...)
}

func (r *ExecRunner) start(ctx context.Context, opts Options, name string, args ...string) (*Result, error) {
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = opts.Dir
	if opts.Env != nil {
		cmd.Env = flattenEnv(opts.Env)
	}
	setProcGroup(cmd)
	cmd.Cancel = func() error {
		return killProcGroup(cmd)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	runErr := cmd.Run()

	res := &Result{
		ExitCode: -1,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return res, fmt.Errorf("%w after %v", ErrTimeout, opts.Timeout)
	}
	if ctx.Err() != nil {
		return res, ctx.Err()
	}

	if runErr != nil {
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
			return res, nil
		}
		return res, fmt.Errorf("spawning command: %w", runErr)
	}

	res.ExitCode = 0
	return res, nil
}

func flattenEnv(env map[string]string) []string {
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	return out
}

// Fields splits a command string into an argument vector with
// shell-style quoting rules, so arguments containing spaces survive
// intact. Parameter expansion falls back to the process environment.
func Fields(s string) ([]string, error) {
	args, err := mvshell.Fields(s, nil)
	if err != nil {
		return nil, fmt.Errorf("tokenizing arguments: %w", err)
	}
	return args, nil
}

// Environ snapshots the current process environment as a map.
func Environ() map[string]string {
	env := make(map[string]string)
	for _, kv := range os.Environ() {
		for i := 0; i < len(kv); i++ {
			if kv[i] == '=' {
				env[kv[:i]] = kv[i+1:]
				break
			}
		}
	}
	return env
}
