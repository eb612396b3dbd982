// Package condition evaluates hook precondition gates. Evaluation
// never surfaces an error to the engine: a check that cannot run
// counts as false, and the first failing condition short-circuits the
// rest.
package condition

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/watzon/relay/internal/hook"
	"github.com/watzon/relay/internal/shell"
)

// checkTimeout bounds command_success probes, which sit outside the
// action timeout/retry configuration.
const checkTimeout = 30 * time.Second

// CommandRunner is the slice of the execution primitive the evaluator
// needs for command_success checks.
type CommandRunner interface {
	Run(ctx context.Context, command string, opts shell.Options) (*shell.Result, error)
}

// Checker decides one condition against the execution context. Used
// for the git_status and custom extension points.
type Checker interface {
	Check(ctx context.Context, c *hook.Condition, ec *hook.ExecutionContext) (bool, error)
}

// Evaluator checks ordered condition lists left to right.
type Evaluator struct {
	runner CommandRunner

	mu       sync.RWMutex
	checkers map[hook.ConditionType]Checker
}

func NewEvaluator(runner CommandRunner) *Evaluator {
	return &Evaluator{
		runner:   runner,
		checkers: make(map[hook.ConditionType]Checker),
	}
}

// Register installs a checker for a condition type. Without a
// registered checker, git_status and custom conditions pass
// unconditionally.
func (e *Evaluator) Register(t hook.ConditionType, c Checker) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.checkers[t] = c
}

func (e *Evaluator) checker(t hook.ConditionType) (Checker, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	c, ok := e.checkers[t]
	return c, ok
}

// EvaluateAll reports whether every condition holds. Evaluation stops
// at the first failure, so later conditions with side effects never
// run once the gate is closed.
func (e *Evaluator) EvaluateAll(ctx context.Context, conds []hook.Condition, ec *hook.ExecutionContext) bool {
	for i := range conds {
		if !e.evaluate(ctx, &conds[i], ec) {
			log.Debug().
				Str("type", string(conds[i].Type)).
				Str("parameter", conds[i].Parameter).
				Int("index", i).
				Msg("Condition failed")
			return false
		}
	}
	return true
}

func (e *Evaluator) evaluate(ctx context.Context, c *hook.Condition, ec *hook.ExecutionContext) bool {
	switch c.Type {
	case hook.ConditionFileExists:
		return fileExists(c.Parameter, ec.WorkingDir)

	case hook.ConditionCommandSuccess:
		return e.commandSucceeds(ctx, c.Parameter, ec)

	case hook.ConditionEnvVar:
		return checkEnvVar(c, ec.Environment)

	default:
		// git_status and custom are extension points: a registered
		// checker decides, otherwise they hold trivially.
		checker, ok := e.checker(c.Type)
		if !ok {
			return true
		}
		pass, err := checker.Check(ctx, c, ec)
		if err != nil {
			log.Debug().Err(err).Str("type", string(c.Type)).Msg("Condition checker failed")
			return false
		}
		return pass
	}
}

func fileExists(path, workingDir string) bool {
	if path == "" {
		return false
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(workingDir, path)
	}
	_, err := os.Stat(path)
	return err == nil
}

func (e *Evaluator) commandSucceeds(ctx context.Context, command string, ec *hook.ExecutionContext) bool {
	if command == "" || e.runner == nil {
		return false
	}
	res, err := e.runner.Run(ctx, command, shell.Options{
		Dir:     ec.WorkingDir,
		Env:     ec.Environment,
		Timeout: checkTimeout,
	})
	if err != nil {
		return false
	}
	return res.ExitCode == 0
}

func checkEnvVar(c *hook.Condition, env map[string]string) bool {
	val, set := env[c.Parameter]
	nonEmpty := set && val != ""

	if c.Operator == hook.OpNotExists {
		return !set
	}
	if c.Value == "" {
		return nonEmpty
	}

	switch c.Operator {
	case hook.OpEquals:
		return val == c.Value
	case hook.OpContains:
		return strings.Contains(val, c.Value)
	case hook.OpMatches:
		matched, err := regexp.MatchString(c.Value, val)
		if err != nil {
			return false
		}
		return matched
	default:
		return nonEmpty
	}
}
