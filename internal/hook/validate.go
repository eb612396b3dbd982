package hook

import (
	"fmt"

	"github.com/robfig/cron/v3"
)

// ValidationResult separates blocking errors from advisory warnings.
// Only errors make a hook ineligible for loading.
type ValidationResult struct {
	Errors   []string
	Warnings []string
}

// Valid reports whether the hook may be loaded.
func (r *ValidationResult) Valid() bool {
	return len(r.Errors) == 0
}

func (r *ValidationResult) errorf(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

func (r *ValidationResult) warnf(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

var knownActionTypes = map[ActionType]bool{
	ActionShell:        true,
	ActionScript:       true,
	ActionFileCreate:   true,
	ActionFileCopy:     true,
	ActionFileMove:     true,
	ActionFileDelete:   true,
	ActionGit:          true,
	ActionNpm:          true,
	ActionNotification: true,
	ActionAIGenerate:   true,
	ActionSpecBuild:    true,
	ActionCustom:       true,
}

var knownTriggerTypes = map[TriggerType]bool{
	TriggerManual:        true,
	TriggerFileChange:    true,
	TriggerSchedule:      true,
	TriggerGitEvent:      true,
	TriggerPostCommand:   true,
	TriggerLifecycle:     true,
	TriggerSpecLifecycle: true,
}

// Validate checks a hook definition. A hook is valid when it has a
// name, a description, a typed trigger, and at least one typed action.
// A file_change trigger requires a pattern. Missing action ids are
// warnings only: execution still works, but result correlation degrades
// to positional.
func Validate(h *Hook) *ValidationResult {
	r := &ValidationResult{}

	if h.Name == "" {
		r.errorf("name is required")
	}
	if h.Description == "" {
		r.errorf("description is required")
	}

	if h.Trigger.Type == "" {
		r.errorf("trigger type is required")
	} else if !knownTriggerTypes[h.Trigger.Type] {
		r.warnf("trigger: unknown type %q", h.Trigger.Type)
	}

	switch h.Trigger.Type {
	case TriggerFileChange:
		if h.Trigger.Pattern == "" {
			r.errorf("trigger: file_change requires a pattern")
		}
	case TriggerSchedule:
		if h.Trigger.Schedule == "" {
			r.errorf("trigger: schedule requires a cron expression")
		} else if _, err := cron.ParseStandard(h.Trigger.Schedule); err != nil {
			// The scheduler skips unparseable expressions at runtime, so
			// this blocks nothing at load.
			r.warnf("trigger: cron expression %q does not parse", h.Trigger.Schedule)
		}
	}

	if len(h.Actions) == 0 {
		r.errorf("at least one action is required")
	}
	for i, a := range h.Actions {
		if a.Type == "" {
			r.errorf("actions[%d]: type is required", i)
		} else if !knownActionTypes[a.Type] {
			r.warnf("actions[%d]: unknown type %q", i, a.Type)
		}
		if a.ID == "" {
			r.warnf("actions[%d]: missing id, results will be identified by position", i)
		}
	}

	switch h.OnError {
	case "", OnErrorContinue, OnErrorStop, OnErrorRetry:
	default:
		r.errorf("on_error: unknown policy %q", h.OnError)
	}

	if h.Retries < 0 {
		r.errorf("retries cannot be negative")
	}
	if h.Timeout < 0 {
		r.errorf("timeout cannot be negative")
	}

	return r
}
