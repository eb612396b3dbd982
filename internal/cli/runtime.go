package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/gobwas/glob"
	"github.com/rs/zerolog/log"

	"github.com/watzon/relay/internal/action"
	"github.com/watzon/relay/internal/ai"
	"github.com/watzon/relay/internal/condition"
	"github.com/watzon/relay/internal/config"
	"github.com/watzon/relay/internal/engine"
	"github.com/watzon/relay/internal/hook"
	"github.com/watzon/relay/internal/notify"
	"github.com/watzon/relay/internal/shell"
	"github.com/watzon/relay/internal/specgen"
)

// runtime bundles the wired execution stack shared by every command
// that runs hooks.
type runtime struct {
	cfg    *config.Config
	store  *hook.Store
	engine *engine.Engine
}

// buildRuntime loads the hook registry and wires the engine with its
// collaborators.
func buildRuntime(cfg *config.Config) (*runtime, error) {
	store := hook.NewStore(cfg.Hooks.Dir)
	if err := store.Load(); err != nil {
		return nil, err
	}

	runner := shell.NewRunner()
	gate := condition.NewEvaluator(runner)
	dispatcher := action.NewDispatcher(
		runner,
		ai.NewClient(cfg.AI),
		specgen.NewBuilder(),
		buildNotifier(cfg, runner),
	)

	return &runtime{
		cfg:    cfg,
		store:  store,
		engine: engine.New(store, gate, dispatcher, cfg.Engine),
	}, nil
}

func buildNotifier(cfg *config.Config, runner notify.CommandRunner) action.Notifier {
	if cfg.Notify.Command != "" {
		return notify.NewCommandNotifier(cfg.Notify.Command, runner)
	}
	return notify.NewLogNotifier()
}

// runMatching executes every enabled hook of the given trigger type
// whose trigger the match function accepts. Reports how many hooks ran
// and how many of those failed.
func (rt *runtime) runMatching(ctx context.Context, t hook.TriggerType, match func(*hook.Trigger) bool, ev *hook.TriggerEvent) (ran, failed int) {
	enabled := true
	for _, h := range rt.store.List(hook.ListFilter{Enabled: &enabled}) {
		if h.Trigger.Type != t {
			continue
		}
		if match != nil && !match(&h.Trigger) {
			continue
		}

		res, err := rt.engine.Run(ctx, h.ID, engine.RunOptions{Trigger: ev})
		if err != nil {
			log.Error().Err(err).Str("hook", h.ID).Msg("Triggered execution failed")
			failed++
			ran++
			continue
		}

		ran++
		if !res.Success {
			failed++
		}
		printResult(res)
	}
	return ran, failed
}

// matchPattern matches a value against a glob pattern, treating an
// unparseable pattern as a literal string. An empty pattern matches
// everything.
func matchPattern(pattern, value string) bool {
	if pattern == "" {
		return true
	}
	g, err := glob.Compile(pattern)
	if err != nil {
		return pattern == value
	}
	return g.Match(value)
}

// parseVars converts repeated key=value flags into a variable map.
func parseVars(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	vars := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid variable %q, expected key=value", pair)
		}
		vars[key] = value
	}
	return vars, nil
}

// printResult writes a human-readable run summary to stdout.
func printResult(res *engine.ExecutionResult) {
	for _, a := range res.Actions {
		mark := "✓"
		if !a.Success {
			mark = "✗"
		}
		label := string(a.Type)
		if a.ActionID != "" {
			label = fmt.Sprintf("%s (%s)", a.ActionID, a.Type)
		}
		fmt.Printf("  %s %s %dms\n", mark, label, a.DurationMs)
		if !a.Success && a.Error != "" {
			fmt.Printf("      %s\n", a.Error)
		}
	}

	if res.Success {
		fmt.Printf("✓ %s completed in %dms\n", res.HookID, res.DurationMs)
	} else {
		fmt.Printf("✗ %s failed in %dms: %s\n", res.HookID, res.DurationMs, res.Error)
	}
}

// printJSON writes any value as indented JSON to stdout.
func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling output: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

// resolveWorkingDir returns the explicit directory when given,
// otherwise the process working directory.
func resolveWorkingDir(explicit string) string {
	if explicit != "" {
		return explicit
	}
	wd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return wd
}
