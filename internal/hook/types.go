// Package hook defines the hook data model and the file-backed store
// that owns the in-memory hook registry.
package hook

import (
	"time"

	"gopkg.in/yaml.v3"
)

// TriggerType identifies the event class that causes a hook to run.
type TriggerType string

const (
	TriggerManual        TriggerType = "manual"
	TriggerFileChange    TriggerType = "file_change"
	TriggerSchedule      TriggerType = "schedule"
	TriggerGitEvent      TriggerType = "git_event"
	TriggerPostCommand   TriggerType = "post_command"
	TriggerLifecycle     TriggerType = "lifecycle"
	TriggerSpecLifecycle TriggerType = "spec_lifecycle"
)

// ActionType identifies the handler for one step inside a hook.
type ActionType string

const (
	ActionShell        ActionType = "shell"
	ActionScript       ActionType = "script"
	ActionFileCreate   ActionType = "file_create"
	ActionFileCopy     ActionType = "file_copy"
	ActionFileMove     ActionType = "file_move"
	ActionFileDelete   ActionType = "file_delete"
	ActionGit          ActionType = "git"
	ActionNpm          ActionType = "npm"
	ActionNotification ActionType = "notification"
	ActionAIGenerate   ActionType = "ai_generate"
	ActionSpecBuild    ActionType = "spec_build"
	ActionCustom       ActionType = "custom"
)

// ConditionType identifies a precondition check.
type ConditionType string

const (
	ConditionFileExists     ConditionType = "file_exists"
	ConditionCommandSuccess ConditionType = "command_success"
	ConditionEnvVar         ConditionType = "env_var"
	ConditionGitStatus      ConditionType = "git_status"
	ConditionCustom         ConditionType = "custom"
)

// Operator compares a condition's subject against its expected value.
type Operator string

const (
	OpEquals    Operator = "equals"
	OpContains  Operator = "contains"
	OpMatches   Operator = "matches"
	OpExists    Operator = "exists"
	OpNotExists Operator = "not_exists"
)

// ErrorPolicy is the hook-level response to a failed action.
type ErrorPolicy string

const (
	OnErrorContinue ErrorPolicy = "continue"
	OnErrorStop     ErrorPolicy = "stop"
	OnErrorRetry    ErrorPolicy = "retry"
)

// Defaults applied when a hook document omits the field.
const (
	DefaultTimeout = 30000 // milliseconds
	DefaultRetries = 0
)

// Trigger declares when a hook fires. Exactly one type per hook; the
// remaining fields qualify it (glob pattern, cron expression, event kind,
// command name).
type Trigger struct {
	Type     TriggerType `yaml:"type" json:"type"`
	Pattern  string      `yaml:"pattern,omitempty" json:"pattern,omitempty"`
	Schedule string      `yaml:"schedule,omitempty" json:"schedule,omitempty"`
	Event    string      `yaml:"event,omitempty" json:"event,omitempty"`
	Command  string      `yaml:"command,omitempty" json:"command,omitempty"`
}

// Condition is a precondition gate evaluated before any action runs.
type Condition struct {
	Type      ConditionType `yaml:"type" json:"type"`
	Parameter string        `yaml:"parameter" json:"parameter"`
	Value     string        `yaml:"value,omitempty" json:"value,omitempty"`
	Operator  Operator      `yaml:"operator,omitempty" json:"operator,omitempty"`
}

// Action is one typed, executable step. Which parameter fields are
// consulted depends on Type; every string parameter is templated before
// use.
type Action struct {
	ID      string     `yaml:"id,omitempty" json:"id,omitempty"`
	Type    ActionType `yaml:"type" json:"type"`
	Command string     `yaml:"command,omitempty" json:"command,omitempty"`
	Path    string     `yaml:"path,omitempty" json:"path,omitempty"`
	Source  string     `yaml:"source,omitempty" json:"source,omitempty"`
	Target  string     `yaml:"target,omitempty" json:"target,omitempty"`
	Content string     `yaml:"content,omitempty" json:"content,omitempty"`
	Message string     `yaml:"message,omitempty" json:"message,omitempty"`
	Prompt  string     `yaml:"prompt,omitempty" json:"prompt,omitempty"`

	// Timeout overrides the hook-level default for this action only,
	// in milliseconds. Zero means inherit.
	Timeout int `yaml:"timeout,omitempty" json:"timeout,omitempty"`

	// ContinueOnError exempts this action from the hook-level error
	// policy: a failure here never stops or retries the run.
	ContinueOnError bool `yaml:"continue_on_error,omitempty" json:"continue_on_error,omitempty"`
}

// Hook is a named automation unit: one trigger, optional condition
// gates, and an ordered action list.
type Hook struct {
	ID          string   `yaml:"id,omitempty" json:"id"`
	Name        string   `yaml:"name" json:"name"`
	Description string   `yaml:"description" json:"description"`
	Version     string   `yaml:"version,omitempty" json:"version,omitempty"`
	Author      string   `yaml:"author,omitempty" json:"author,omitempty"`
	Tags        []string `yaml:"tags,omitempty" json:"tags,omitempty"`
	Category    string   `yaml:"category,omitempty" json:"category,omitempty"`

	Enabled    bool           `yaml:"enabled" json:"enabled"`
	Trigger    Trigger        `yaml:"trigger" json:"trigger"`
	Conditions []Condition    `yaml:"conditions,omitempty" json:"conditions,omitempty"`
	Actions    []Action       `yaml:"actions" json:"actions"`
	Variables  map[string]any `yaml:"variables,omitempty" json:"variables,omitempty"`

	// Timeout is the per-action default in milliseconds.
	Timeout int         `yaml:"timeout,omitempty" json:"timeout,omitempty"`
	Retries int         `yaml:"retries,omitempty" json:"retries,omitempty"`
	OnError ErrorPolicy `yaml:"on_error,omitempty" json:"on_error,omitempty"`

	CreatedAt time.Time `yaml:"created,omitempty" json:"created,omitempty"`
	UpdatedAt time.Time `yaml:"modified,omitempty" json:"modified,omitempty"`
}

// UnmarshalYAML decodes a hook document with its declared defaults:
// hooks are enabled unless the document says otherwise, the per-action
// timeout defaults to 30s, and a failed action stops the run.
func (h *Hook) UnmarshalYAML(value *yaml.Node) error {
	type plain Hook
	doc := plain{
		Enabled: true,
		Timeout: DefaultTimeout,
		Retries: DefaultRetries,
		OnError: OnErrorStop,
	}
	if err := value.Decode(&doc); err != nil {
		return err
	}
	*h = Hook(doc)
	return nil
}

// ActionTimeout resolves the effective timeout for an action,
// preferring the action's own override.
func (h *Hook) ActionTimeout(a *Action) time.Duration {
	ms := h.Timeout
	if a.Timeout > 0 {
		ms = a.Timeout
	}
	if ms <= 0 {
		ms = DefaultTimeout
	}
	return time.Duration(ms) * time.Millisecond
}

// HasTag reports whether the hook carries the given tag.
func (h *Hook) HasTag(tag string) bool {
	for _, t := range h.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// TriggerEvent is the concrete occurrence that caused a run, including
// trigger-specific payload such as the changed file path.
type TriggerEvent struct {
	Type    TriggerType `json:"type"`
	Path    string      `json:"path,omitempty"`
	Event   string      `json:"event,omitempty"`
	Command string      `json:"command,omitempty"`
	Time    time.Time   `json:"time"`
}

// ExecutionContext is the ephemeral environment for one run. It is
// constructed fresh per execution and never persisted.
type ExecutionContext struct {
	WorkingDir  string
	Environment map[string]string
	Variables   map[string]any
	Trigger     *TriggerEvent
	StartedAt   time.Time
}

// WatchController is the slice of the trigger subsystem the store needs
// to keep file watches consistent with registry mutations. Ensure
// starts or stops the watch for a hook based on its current state;
// Remove tears down any watch for a deleted id.
type WatchController interface {
	Ensure(h *Hook) error
	Remove(id string)
}
