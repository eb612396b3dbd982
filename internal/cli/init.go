package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init [dir]",
	Short: "Initialize a new Relay project",
	Long: `Initialize a Relay project in the given directory (default: current).

Creates the starter layout:
  - relay.yaml       Configuration file
  - hooks/           Hook documents, one YAML file per hook
  - hooks/welcome.yaml  A sample hook to run and edit`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "Overwrite existing files")

	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	projectDir := "."
	if len(args) > 0 {
		projectDir = args[0]
	}

	if err := prepareProjectDir(projectDir, initForce); err != nil {
		return err
	}

	if err := writeProjectFile(projectDir, "relay.yaml", starterConfigYAML); err != nil {
		return err
	}
	log.Info().Str("file", "relay.yaml").Msg("Created")

	sample := filepath.Join("hooks", "welcome.yaml")
	if err := writeProjectFile(projectDir, sample, starterHookYAML); err != nil {
		return err
	}
	log.Info().Str("file", sample).Msg("Created")

	printInitSuccess(projectDir)
	return nil
}

func prepareProjectDir(projectDir string, force bool) error {
	if projectDir != "." {
		if err := os.MkdirAll(projectDir, 0o755); err != nil {
			return fmt.Errorf("creating project directory: %w", err)
		}
		log.Info().Str("directory", projectDir).Msg("Created project directory")
	}

	if !force {
		existing := checkExistingFiles(projectDir)
		if len(existing) > 0 {
			return fmt.Errorf("files already exist: %s (use --force to overwrite)", strings.Join(existing, ", "))
		}
	}
	return nil
}

func checkExistingFiles(dir string) []string {
	filesToCheck := []string{"relay.yaml", "relay.yml"}
	var existing []string
	for _, f := range filesToCheck {
		if _, err := os.Stat(filepath.Join(dir, f)); err == nil {
			existing = append(existing, f)
		}
	}
	return existing
}

func writeProjectFile(projectDir, name, content string) error {
	path := filepath.Join(projectDir, name)

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating directory for %s: %w", name, err)
		}
	}

	return os.WriteFile(path, []byte(content), 0o644)
}

func printInitSuccess(projectDir string) {
	fmt.Println()
	fmt.Println("✓ Project initialized")
	fmt.Println()
	fmt.Println("Next steps:")
	if projectDir != "." {
		fmt.Printf("  cd %s\n", projectDir)
	}
	fmt.Println("  relay run welcome    # Run the sample hook")
	fmt.Println("  relay daemon         # Start watch, schedule, and lifecycle triggers")
	fmt.Println()
}

const starterConfigYAML = `# =============================================================================
# Relay Configuration
# =============================================================================
# Every value can also come from the environment with a RELAY_ prefix
# and underscores for dots, e.g. RELAY_LOGGING_LEVEL=debug.
# =============================================================================

# -----------------------------------------------------------------------------
# Hook Storage
# -----------------------------------------------------------------------------
hooks:
  # Directory holding one YAML document per hook. The file's base name
  # is the hook's default id.
  dir: hooks

# -----------------------------------------------------------------------------
# Execution Engine
# -----------------------------------------------------------------------------
engine:
  # How many execution results the in-memory history retains.
  history_capacity: 1000

  # Default number of entries returned by history queries.
  history_limit: 50

  # Stop the run when a retried action never succeeds. The default
  # moves on to the next action once retries are exhausted.
  # stop_on_retry_exhausted: false

# -----------------------------------------------------------------------------
# File Watching (daemon)
# -----------------------------------------------------------------------------
watch:
  # Bursts of change events for the same path within this window
  # collapse into a single hook run.
  debounce: 200ms

# -----------------------------------------------------------------------------
# AI Completion (ai_generate actions)
# -----------------------------------------------------------------------------
ai:
  # Wire format: anthropic or openai.
  provider: anthropic
  base_url: https://api.anthropic.com

  # Name of the environment variable holding the API key. The key
  # itself never lives in this file.
  api_key_env: ANTHROPIC_API_KEY

  model: claude-sonnet-4-5
  max_tokens: 1024
  timeout: 60s

# -----------------------------------------------------------------------------
# Notifications (notification actions)
# -----------------------------------------------------------------------------
notify:
  # Shell command run per notification with {{title}} and {{message}}
  # placeholders. Empty routes notifications to the log.
  # command: notify-send "{{title}}" "{{message}}"

# -----------------------------------------------------------------------------
# Daemon
# -----------------------------------------------------------------------------
daemon:
  # Listen address for the HTTP API, Prometheus /metrics, and the
  # execution feed WebSocket. Empty disables the listener.
  # listen: localhost:9091

# -----------------------------------------------------------------------------
# Logging
# -----------------------------------------------------------------------------
logging:
  # Level: debug, info, warn, error
  level: info

  # Format: console or json
  format: console

  # timestamp: true
  # caller: false
`

const starterHookYAML = `# =============================================================================
# Relay Hook Definition
# =============================================================================
# One YAML document per hook; the file's base name is the default id.
#
# Trigger types:
#   manual          Run only via relay run <id>
#   file_change     Files matching a glob pattern changed (needs the daemon)
#   schedule        A cron expression came due (needs the daemon)
#   git_event       An installed git hook fired (relay git-event install)
#   post_command    A wrapped command finished (relay exec -- <command>)
#   lifecycle       Daemon startup/shutdown
#   spec_lifecycle  A spec_build action succeeded
# =============================================================================

name: Welcome
description: Greets whoever just scaffolded this project
enabled: true

trigger:
  type: manual

# Variables feed {{name}} placeholders in action parameters. relay run
# --var name=value overrides them per run.
variables:
  name: world

# Conditions gate the actions; all of them must hold.
# Types: file_exists, command_success, env_var, git_status, custom
# Operators: equals, contains, matches, exists, not_exists
# conditions:
#   - type: file_exists
#     parameter: package.json

# Actions run in declared order. Types: shell, script, file_create,
# file_copy, file_move, file_delete, git, npm, notification,
# ai_generate, spec_build, custom.
actions:
  - id: greet
    type: shell
    command: echo "hello {{name}}"

# Error policy when an action fails and does not set continue_on_error:
#   continue  Keep going with the next action
#   stop      Halt the run (default)
#   retry     Re-attempt the action up to retries times
# on_error: stop
# retries: 0

# Default per-action timeout in milliseconds.
# timeout: 30000
`
