package condition

import (
	"context"
	"strings"

	"github.com/watzon/relay/internal/hook"
	"github.com/watzon/relay/internal/shell"
)

// GitStatusChecker backs git_status conditions with the real git CLI.
// Parameter values: "clean" holds when the working tree has no pending
// changes, "dirty" when it has some, anything else (or empty) when the
// directory is inside a git work tree at all.
type GitStatusChecker struct {
	runner CommandRunner
}

func NewGitStatusChecker(runner CommandRunner) *GitStatusChecker {
	return &GitStatusChecker{runner: runner}
}

func (g *GitStatusChecker) Check(ctx context.Context, c *hook.Condition, ec *hook.ExecutionContext) (bool, error) {
	opts := shell.Options{
		Dir:     ec.WorkingDir,
		Env:     ec.Environment,
		Timeout: checkTimeout,
	}

	switch c.Parameter {
	case "clean", "dirty":
		res, err := g.runner.Run(ctx, "git status --porcelain", opts)
		if err != nil {
			return false, err
		}
		if res.ExitCode != 0 {
			return false, nil
		}
		clean := strings.TrimSpace(res.Stdout) == ""
		if c.Parameter == "clean" {
			return clean, nil
		}
		return !clean, nil

	default:
		res, err := g.runner.Run(ctx, "git rev-parse --is-inside-work-tree", opts)
		if err != nil {
			return false, err
		}
		return res.ExitCode == 0, nil
	}
}
