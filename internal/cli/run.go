package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/watzon/relay/internal/engine"
	"github.com/watzon/relay/internal/hook"
)

var (
	runVars   []string
	runDir    string
	runFormat string
)

var runCmd = &cobra.Command{
	Use:     "run <id>",
	Aliases: []string{"trigger"},
	Short:   "Run a hook now",
	Long: `Execute a hook immediately, regardless of its trigger type.

Variables passed with --var overlay the hook's own variables for this
run only.

Examples:
  relay run deploy-staging
  relay run greet --var name=world --var greeting=hi
  relay run nightly-report --format json`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringArrayVar(&runVars, "var", nil, "Variable override as key=value (repeatable)")
	runCmd.Flags().StringVarP(&runDir, "dir", "d", "", "Working directory for the run (default: current directory)")
	runCmd.Flags().StringVarP(&runFormat, "format", "f", "text", "Output format (text, json)")

	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	rt, err := buildRuntime(loadConfig())
	if err != nil {
		return err
	}

	vars, err := parseVars(runVars)
	if err != nil {
		return err
	}

	res, err := rt.engine.Run(cmd.Context(), args[0], engine.RunOptions{
		Variables:  vars,
		WorkingDir: resolveWorkingDir(runDir),
	})
	if err != nil {
		return err
	}

	if runFormat == "json" {
		if err := printJSON(res); err != nil {
			return err
		}
	} else {
		printResult(res)
	}

	// A successful spec_build action fires dependent spec_lifecycle
	// hooks, one level deep.
	if builtSpec(res) {
		rt.fireEvent(cmd.Context(), hook.TriggerSpecLifecycle, "build_complete", resolveWorkingDir(runDir))
	}

	if !res.Success {
		return fmt.Errorf("hook %s failed", res.HookID)
	}
	return nil
}
