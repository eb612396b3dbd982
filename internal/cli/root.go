package cli

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/watzon/relay/internal/config"
)

var (
	cfgFile string
	verbose bool
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "relay",
	Short: "A hook-based workflow automation engine",
	Long: `Relay runs automation hooks in response to events in your project:

  - File changes, matched against glob patterns
  - Cron schedules
  - Git events (pre-commit, post-commit, ...)
  - Finished commands, matched by pattern
  - Host lifecycle events (startup, shutdown)
  - Manual triggers

Each hook gates on conditions, then runs an ordered list of actions:
shell commands, file operations, git, npm, notifications, AI
generation, and spec-driven code generation.

Start the daemon to enable file, schedule, and lifecycle triggers:
  relay daemon

Run a hook by hand:
  relay run my-hook`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./relay.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
}

// loadConfig resolves the effective configuration. A broken config file
// degrades to defaults with a warning so read-only commands keep
// working.
func loadConfig() *config.Config {
	cfg, err := config.Load(config.LoadOptions{ConfigFile: cfgFile})
	if err != nil {
		log.Warn().Err(err).Msg("Invalid config, using defaults")
		cfg = config.Default()
	}
	return cfg
}

// setupLogging configures zerolog from the logging config, with the
// --verbose flag forcing debug level.
func setupLogging() {
	cfg := loadConfig().Logging

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	if verbose {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)

	var logger zerolog.Logger
	if cfg.Format == "json" {
		logger = zerolog.New(os.Stderr)
	} else {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	ctx := logger.With()
	if cfg.Timestamp {
		ctx = ctx.Timestamp()
	}
	if cfg.Caller {
		ctx = ctx.Caller()
	}
	log.Logger = ctx.Logger()
}

// AddCommand adds a command to the root command.
func AddCommand(cmd *cobra.Command) {
	rootCmd.AddCommand(cmd)
}

// Version returns the version string.
func Version() string {
	return fmt.Sprintf("relay version %s", "0.1.0-dev")
}
