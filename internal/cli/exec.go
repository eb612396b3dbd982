package cli

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/watzon/relay/internal/hook"
)

var execCmd = &cobra.Command{
	Use:   "exec -- <command> [args...]",
	Short: "Run a command, then fire post-command hooks",
	Long: `Run a command with inherited stdio, then fire every enabled
post_command hook whose pattern matches the command line.

The wrapped command's exit status is preserved. Hook failures are
logged but never change it.

Examples:
  relay exec -- npm run build
  relay exec -- make test`,
	Args: cobra.MinimumNArgs(1),
	RunE: runExec,
}

func init() {
	rootCmd.AddCommand(execCmd)
}

func runExec(cmd *cobra.Command, args []string) error {
	command := strings.Join(args, " ")

	// Inherit stdio so the wrapped command behaves as if run directly.
	child := exec.CommandContext(cmd.Context(), "sh", "-c", command)
	child.Stdin = os.Stdin
	child.Stdout = os.Stdout
	child.Stderr = os.Stderr

	exitCode := 0
	if err := child.Run(); err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return fmt.Errorf("spawning command: %w", err)
		}
		exitCode = exitErr.ExitCode()
	}

	fireCommandHooks(cmd, command)

	if exitCode != 0 {
		os.Exit(exitCode)
	}
	return nil
}

func fireCommandHooks(cmd *cobra.Command, command string) {
	rt, err := buildRuntime(loadConfig())
	if err != nil {
		log.Error().Err(err).Msg("Failed to load hooks, skipping post-command triggers")
		return
	}

	ev := &hook.TriggerEvent{
		Type:    hook.TriggerPostCommand,
		Command: command,
		Time:    time.Now().UTC(),
	}
	ran, failed := rt.runMatching(cmd.Context(), hook.TriggerPostCommand, func(t *hook.Trigger) bool {
		return matchPattern(t.Command, command)
	}, ev)

	if ran > 0 {
		log.Info().Int("ran", ran).Int("failed", failed).Msg("Post-command hooks finished")
	}
}
