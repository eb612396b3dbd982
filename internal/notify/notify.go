// Package notify delivers hook notifications, either to the log or
// through a user-configured external command.
package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/watzon/relay/internal/shell"
	"github.com/watzon/relay/internal/tmpl"
)

const sendTimeout = 15 * time.Second

// CommandRunner runs the configured notification command.
type CommandRunner interface {
	Run(ctx context.Context, command string, opts shell.Options) (*shell.Result, error)
}

// LogNotifier writes notifications to the structured log. It never
// fails.
type LogNotifier struct{}

func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) Notify(ctx context.Context, title, message string) error {
	log.Info().Str("title", title).Msg(message)
	return nil
}

// CommandNotifier pipes notifications through an external command
// template, e.g. `notify-send "{{title}}" "{{message}}"`.
type CommandNotifier struct {
	command string
	runner  CommandRunner
}

func NewCommandNotifier(command string, runner CommandRunner) *CommandNotifier {
	return &CommandNotifier{command: command, runner: runner}
}

func (n *CommandNotifier) Notify(ctx context.Context, title, message string) error {
	cmd := tmpl.Expand(n.command, map[string]any{
		"title":   title,
		"message": message,
	}, nil)

	res, err := n.runner.Run(ctx, cmd, shell.Options{Timeout: sendTimeout})
	if err != nil {
		return fmt.Errorf("running notify command: %w", err)
	}
	if res.ExitCode != 0 {
		detail := strings.TrimSpace(res.Stderr)
		if detail == "" {
			detail = fmt.Sprintf("exit status %d", res.ExitCode)
		}
		return fmt.Errorf("notify command failed: %s", detail)
	}
	return nil
}
