package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/watzon/relay/internal/hook"
)

var (
	gitHooksDir   string
	gitEvents     []string
	gitForce      bool
	installMarker = "# Installed by relay"
)

// defaultGitEvents are the repository hooks the installer wires up.
var defaultGitEvents = []string{"pre-commit", "post-commit", "post-merge", "post-checkout", "pre-push"}

var gitEventCmd = &cobra.Command{
	Use:   "git-event <event>",
	Short: "Fire git-event hooks",
	Long: `Fire every enabled git_event hook whose event pattern matches.

Intended to be called from repository hook scripts (see
"relay git-event install"). For pre-* events a failing hook makes the
command exit non-zero, which blocks the git operation.

Examples:
  relay git-event post-commit
  relay git-event install`,
	Args: cobra.ExactArgs(1),
	RunE: runGitEvent,
}

var gitEventInstallCmd = &cobra.Command{
	Use:   "install",
	Short: "Install repository hook scripts",
	Long: `Write wrapper scripts into .git/hooks that forward each event to
"relay git-event <event>".

Existing scripts not written by relay are left alone unless --force is
set.`,
	RunE: runGitEventInstall,
}

func init() {
	gitEventInstallCmd.Flags().StringVar(&gitHooksDir, "hooks-dir", filepath.Join(".git", "hooks"), "Repository hooks directory")
	gitEventInstallCmd.Flags().StringSliceVar(&gitEvents, "events", defaultGitEvents, "Events to install scripts for")
	gitEventInstallCmd.Flags().BoolVar(&gitForce, "force", false, "Replace existing scripts not written by relay")

	gitEventCmd.AddCommand(gitEventInstallCmd)
	rootCmd.AddCommand(gitEventCmd)
}

func runGitEvent(cmd *cobra.Command, args []string) error {
	event := args[0]

	rt, err := buildRuntime(loadConfig())
	if err != nil {
		return err
	}

	ev := &hook.TriggerEvent{
		Type:  hook.TriggerGitEvent,
		Event: event,
		Time:  time.Now().UTC(),
	}
	ran, failed := rt.runMatching(cmd.Context(), hook.TriggerGitEvent, func(t *hook.Trigger) bool {
		return matchPattern(t.Event, event)
	}, ev)

	if ran == 0 {
		return nil
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d hooks failed for %s", failed, ran, event)
	}
	return nil
}

func runGitEventInstall(cmd *cobra.Command, args []string) error {
	if _, err := os.Stat(gitHooksDir); err != nil {
		return fmt.Errorf("hooks directory not found (not a git repository?): %s", gitHooksDir)
	}

	installed, skipped := 0, 0
	for _, event := range gitEvents {
		path := filepath.Join(gitHooksDir, event)

		if existing, err := os.ReadFile(path); err == nil {
			if !strings.Contains(string(existing), installMarker) && !gitForce {
				fmt.Printf("  skipping %s: existing script not written by relay (use --force)\n", event)
				skipped++
				continue
			}
		}

		if err := os.WriteFile(path, []byte(gitHookScript(event)), 0o755); err != nil {
			return fmt.Errorf("writing hook script %s: %w", event, err)
		}
		installed++
	}

	fmt.Printf("✓ Installed %d git hook scripts in %s (%d skipped)\n", installed, gitHooksDir, skipped)
	return nil
}

func gitHookScript(event string) string {
	return fmt.Sprintf(`#!/bin/sh
%s
exec relay git-event %s "$@"
`, installMarker, event)
}
