package engine

import (
	"os"
	"time"

	"github.com/watzon/relay/internal/hook"
	"github.com/watzon/relay/internal/shell"
)

// BuildContext assembles the execution context for one run. Variables
// layer caller overrides over the hook's own variables, then fill in
// the builtins (timestamp, workingDirectory) and the trigger payload
// (file, event, command) where the layers above left them unset.
func BuildContext(h *hook.Hook, opts RunOptions) *hook.ExecutionContext {
	workingDir := opts.WorkingDir
	if workingDir == "" {
		if wd, err := os.Getwd(); err == nil {
			workingDir = wd
		} else {
			workingDir = "."
		}
	}

	now := time.Now()

	vars := make(map[string]any, len(h.Variables)+len(opts.Variables)+4)
	for k, v := range h.Variables {
		vars[k] = v
	}
	for k, v := range opts.Variables {
		vars[k] = v
	}

	setDefault(vars, "timestamp", now.Format(time.RFC3339))
	setDefault(vars, "workingDirectory", workingDir)

	if t := opts.Trigger; t != nil {
		if t.Path != "" {
			setDefault(vars, "file", t.Path)
		}
		if t.Event != "" {
			setDefault(vars, "event", t.Event)
		}
		if t.Command != "" {
			setDefault(vars, "command", t.Command)
		}
	}

	return &hook.ExecutionContext{
		WorkingDir:  workingDir,
		Environment: shell.Environ(),
		Variables:   vars,
		Trigger:     opts.Trigger,
		StartedAt:   now,
	}
}

func setDefault(vars map[string]any, key string, value any) {
	if _, ok := vars[key]; !ok {
		vars[key] = value
	}
}
