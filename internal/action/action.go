// Package action executes a single typed hook action and produces a
// normalized result. Failures never escape as errors; they land in the
// result's error field for the engine's policy to judge.
package action

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/watzon/relay/internal/ai"
	"github.com/watzon/relay/internal/hook"
	"github.com/watzon/relay/internal/shell"
	"github.com/watzon/relay/internal/specgen"
	"github.com/watzon/relay/internal/tmpl"
)

// Result is the normalized outcome of one action.
type Result struct {
	ActionID   string          `json:"action_id,omitempty"`
	Type       hook.ActionType `json:"type"`
	Success    bool            `json:"success"`
	DurationMs int             `json:"duration_ms"`
	Output     string          `json:"output,omitempty"`
	Error      string          `json:"error,omitempty"`
	ExitCode   *int            `json:"exit_code,omitempty"`
}

// CommandRunner is the execution primitive consumed by shell-backed
// handlers.
type CommandRunner interface {
	Run(ctx context.Context, command string, opts shell.Options) (*shell.Result, error)
	RunArgs(ctx context.Context, name string, args []string, opts shell.Options) (*shell.Result, error)
}

// Completer is the AI completion collaborator behind ai_generate.
type Completer interface {
	Complete(ctx context.Context, messages []ai.Message) (string, error)
}

// SpecBuilder is the code-generation collaborator behind spec_build.
type SpecBuilder interface {
	Build(ctx context.Context, specPath string) (*specgen.BuildResult, error)
}

// Notifier emits notification actions.
type Notifier interface {
	Notify(ctx context.Context, title, message string) error
}

// HandlerFunc extends the dispatcher with handlers for action types
// outside the built-in set, custom included.
type HandlerFunc func(ctx context.Context, h *hook.Hook, a *hook.Action, ec *hook.ExecutionContext) (string, error)

// Dispatcher routes one action to its typed handler, applying template
// substitution to every string parameter first and timing every run.
type Dispatcher struct {
	runner    CommandRunner
	completer Completer
	builder   SpecBuilder
	notifier  Notifier

	mu       sync.RWMutex
	handlers map[hook.ActionType]HandlerFunc
}

// NewDispatcher wires the dispatcher's collaborators. completer,
// builder, and notifier may be nil; the matching action types then
// fail (or, for notifications, fall back to the log).
func NewDispatcher(runner CommandRunner, completer Completer, builder SpecBuilder, notifier Notifier) *Dispatcher {
	return &Dispatcher{
		runner:    runner,
		completer: completer,
		builder:   builder,
		notifier:  notifier,
		handlers:  make(map[hook.ActionType]HandlerFunc),
	}
}

// Register installs a handler for an action type not covered by the
// built-in set.
func (d *Dispatcher) Register(t hook.ActionType, fn HandlerFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[t] = fn
}

func (d *Dispatcher) handler(t hook.ActionType) (HandlerFunc, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	fn, ok := d.handlers[t]
	return fn, ok
}

// Execute runs one action and always returns a timed result.
func (d *Dispatcher) Execute(ctx context.Context, h *hook.Hook, a *hook.Action, ec *hook.ExecutionContext) *Result {
	res := &Result{ActionID: a.ID, Type: a.Type}

	log.Debug().
		Str("hook", h.ID).
		Str("action", a.ID).
		Str("type", string(a.Type)).
		Msg("Executing action")

	start := time.Now()
	output, exitCode, err := d.dispatch(ctx, h, a, ec)
	res.DurationMs = int(time.Since(start).Milliseconds())
	res.Output = output
	res.ExitCode = exitCode

	if err != nil {
		res.Error = err.Error()
		log.Debug().
			Str("hook", h.ID).
			Str("action", a.ID).
			Str("error", res.Error).
			Msg("Action failed")
	} else {
		res.Success = true
	}
	return res
}

func (d *Dispatcher) dispatch(ctx context.Context, h *hook.Hook, a *hook.Action, ec *hook.ExecutionContext) (string, *int, error) {
	expand := func(s string) string {
		return tmpl.Expand(s, ec.Variables, ec.Environment)
	}

	switch a.Type {
	case hook.ActionShell:
		return d.runShell(ctx, expand(a.Command), h.ActionTimeout(a), ec)

	case hook.ActionScript:
		return d.runScript(ctx, expand(a.Path), h.ActionTimeout(a), ec)

	case hook.ActionGit:
		return d.runTool(ctx, "git", expand(a.Command), h.ActionTimeout(a), ec)

	case hook.ActionNpm:
		return d.runTool(ctx, "npm", expand(a.Command), h.ActionTimeout(a), ec)

	case hook.ActionFileCreate:
		out, err := fileCreate(expand(a.Path), expand(a.Content), ec.WorkingDir)
		return out, nil, err

	case hook.ActionFileCopy:
		out, err := fileCopy(expand(a.Source), expand(a.Target), ec.WorkingDir)
		return out, nil, err

	case hook.ActionFileMove:
		out, err := fileMove(expand(a.Source), expand(a.Target), ec.WorkingDir)
		return out, nil, err

	case hook.ActionFileDelete:
		out, err := fileDelete(expand(a.Path), ec.WorkingDir)
		return out, nil, err

	case hook.ActionNotification:
		out, err := d.sendNotification(ctx, h.Name, expand(a.Message))
		return out, nil, err

	case hook.ActionAIGenerate:
		out, err := d.aiGenerate(ctx, expand(a.Prompt), h.ActionTimeout(a))
		return out, nil, err

	case hook.ActionSpecBuild:
		out, err := d.specBuild(ctx, expand(a.Path), h.ActionTimeout(a), ec)
		return out, nil, err

	default:
		if fn, ok := d.handler(a.Type); ok {
			out, err := fn(ctx, h, a, ec)
			return out, nil, err
		}
		return "", nil, fmt.Errorf("unknown action type: %s", a.Type)
	}
}

func (d *Dispatcher) runShell(ctx context.Context, command string, timeout time.Duration, ec *hook.ExecutionContext) (string, *int, error) {
	if command == "" {
		return "", nil, fmt.Errorf("shell action requires a command")
	}
	res, err := d.runner.Run(ctx, command, shell.Options{
		Dir:     ec.WorkingDir,
		Env:     ec.Environment,
		Timeout: timeout,
	})
	return commandOutcome(res, err)
}

func (d *Dispatcher) runScript(ctx context.Context, path string, timeout time.Duration, ec *hook.ExecutionContext) (string, *int, error) {
	if path == "" {
		return "", nil, fmt.Errorf("script action requires a path")
	}
	path = resolvePath(path, ec.WorkingDir)

	opts := shell.Options{
		Dir:     ec.WorkingDir,
		Env:     ec.Environment,
		Timeout: timeout,
	}

	// Executable scripts run directly so shebangs are honored;
	// everything else goes through sh.
	var (
		res *shell.Result
		err error
	)
	if isExecutable(path) {
		res, err = d.runner.RunArgs(ctx, path, nil, opts)
	} else {
		res, err = d.runner.RunArgs(ctx, "sh", []string{path}, opts)
	}
	return commandOutcome(res, err)
}

// runTool runs git/npm with the templated parameter tokenized under
// shell quoting rules, so quoted arguments with spaces survive.
func (d *Dispatcher) runTool(ctx context.Context, tool, argLine string, timeout time.Duration, ec *hook.ExecutionContext) (string, *int, error) {
	args, err := shell.Fields(argLine)
	if err != nil {
		return "", nil, fmt.Errorf("%s action: %w", tool, err)
	}
	if len(args) == 0 {
		return "", nil, fmt.Errorf("%s action requires arguments", tool)
	}
	res, runErr := d.runner.RunArgs(ctx, tool, args, shell.Options{
		Dir:     ec.WorkingDir,
		Env:     ec.Environment,
		Timeout: timeout,
	})
	return commandOutcome(res, runErr)
}

func commandOutcome(res *shell.Result, err error) (string, *int, error) {
	if err != nil {
		var output string
		var exit *int
		if res != nil {
			output = res.Stdout
			exit = &res.ExitCode
		}
		return output, exit, err
	}

	exit := res.ExitCode
	if exit != 0 {
		msg := strings.TrimSpace(res.Stderr)
		if msg == "" {
			msg = strings.TrimSpace(res.Stdout)
		}
		if msg == "" {
			return res.Stdout, &exit, fmt.Errorf("command exited with status %d", exit)
		}
		return res.Stdout, &exit, fmt.Errorf("command exited with status %d: %s", exit, msg)
	}
	return res.Stdout, &exit, nil
}

func (d *Dispatcher) sendNotification(ctx context.Context, title, message string) (string, error) {
	if d.notifier == nil {
		log.Info().Str("title", title).Msg(message)
		return message, nil
	}
	if err := d.notifier.Notify(ctx, title, message); err != nil {
		return "", fmt.Errorf("sending notification: %w", err)
	}
	return message, nil
}

func (d *Dispatcher) aiGenerate(ctx context.Context, prompt string, timeout time.Duration) (string, error) {
	if d.completer == nil {
		return "", fmt.Errorf("ai_generate: no AI service configured")
	}
	if prompt == "" {
		return "", fmt.Errorf("ai_generate requires a prompt")
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	text, err := d.completer.Complete(ctx, []ai.Message{
		{Role: ai.RoleUser, Content: prompt},
	})
	if err != nil {
		return "", fmt.Errorf("ai_generate: %w", err)
	}
	return text, nil
}

func (d *Dispatcher) specBuild(ctx context.Context, specPath string, timeout time.Duration, ec *hook.ExecutionContext) (string, error) {
	if d.builder == nil {
		return "", fmt.Errorf("spec_build: no spec builder configured")
	}
	if specPath == "" {
		return "", fmt.Errorf("spec_build requires a path")
	}
	specPath = resolvePath(specPath, ec.WorkingDir)

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	res, err := d.builder.Build(ctx, specPath)
	if err != nil {
		return "", fmt.Errorf("spec_build: %w", err)
	}
	return fmt.Sprintf("Generated %d files in %dms", res.FileCount, res.DurationMs), nil
}
