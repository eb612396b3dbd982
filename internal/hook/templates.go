package hook

import "sort"

// Template is a partial hook definition used to seed Create. Its
// fields act as defaults; CreateOptions override any of them.
type Template struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Category    string         `json:"category"`
	Trigger     Trigger        `json:"trigger"`
	Conditions  []Condition    `json:"conditions,omitempty"`
	Actions     []Action       `json:"actions"`
	Variables   map[string]any `json:"variables,omitempty"`
}

func (t *Template) apply(h *Hook) {
	h.Name = t.Name
	h.Description = t.Description
	h.Category = t.Category
	h.Trigger = t.Trigger
	if len(t.Conditions) > 0 {
		h.Conditions = append([]Condition(nil), t.Conditions...)
	}
	if len(t.Actions) > 0 {
		h.Actions = append([]Action(nil), t.Actions...)
	}
	if len(t.Variables) > 0 {
		h.Variables = make(map[string]any, len(t.Variables))
		for k, v := range t.Variables {
			h.Variables[k] = v
		}
	}
}

var builtinTemplates = map[string]*Template{
	"format-on-save": {
		ID:          "format-on-save",
		Name:        "Format on Save",
		Description: "Runs the project formatter whenever a source file changes",
		Category:    "quality",
		Trigger:     Trigger{Type: TriggerFileChange, Pattern: "**/*.go"},
		Actions: []Action{
			{ID: "format", Type: ActionShell, Command: "gofmt -w {{file}}"},
		},
	},
	"test-on-save": {
		ID:          "test-on-save",
		Name:        "Test on Save",
		Description: "Runs the test suite whenever a source file changes",
		Category:    "testing",
		Trigger:     Trigger{Type: TriggerFileChange, Pattern: "**/*.go"},
		Actions: []Action{
			{ID: "test", Type: ActionShell, Command: "go test ./...", Timeout: 120000},
		},
	},
	"lint-before-commit": {
		ID:          "lint-before-commit",
		Name:        "Lint Before Commit",
		Description: "Lints the working tree when a commit event fires",
		Category:    "quality",
		Trigger:     Trigger{Type: TriggerGitEvent, Event: "pre-commit"},
		Conditions: []Condition{
			{Type: ConditionCommandSuccess, Parameter: "git rev-parse --is-inside-work-tree"},
		},
		Actions: []Action{
			{ID: "lint", Type: ActionShell, Command: "golangci-lint run"},
		},
	},
	"daily-cleanup": {
		ID:          "daily-cleanup",
		Name:        "Daily Cleanup",
		Description: "Removes build artifacts on a daily schedule",
		Category:    "maintenance",
		Trigger:     Trigger{Type: TriggerSchedule, Schedule: "0 3 * * *"},
		Actions: []Action{
			{ID: "clean", Type: ActionShell, Command: "rm -rf {{workingDirectory}}/tmp"},
			{ID: "notify", Type: ActionNotification, Message: "Cleanup finished at {{timestamp}}"},
		},
	},
	"deps-install": {
		ID:          "deps-install",
		Name:        "Install Dependencies",
		Description: "Reinstalls npm dependencies when the manifest changes",
		Category:    "build",
		Trigger:     Trigger{Type: TriggerFileChange, Pattern: "**/package.json"},
		Actions: []Action{
			{ID: "install", Type: ActionNpm, Command: "install", Timeout: 300000},
		},
	},
	"ai-commit-summary": {
		ID:          "ai-commit-summary",
		Name:        "AI Commit Summary",
		Description: "Generates a summary of the latest commit",
		Category:    "ai",
		Trigger:     Trigger{Type: TriggerGitEvent, Event: "post-commit"},
		Actions: []Action{
			{ID: "diff", Type: ActionGit, Command: "log -1 --stat"},
			{ID: "summarize", Type: ActionAIGenerate, Prompt: "Summarize this commit in one sentence: {{file}}"},
		},
	},
	"spec-rebuild": {
		ID:          "spec-rebuild",
		Name:        "Rebuild From Spec",
		Description: "Regenerates code whenever a spec document changes",
		Category:    "build",
		Trigger:     Trigger{Type: TriggerFileChange, Pattern: "specs/**/*.yaml"},
		Actions: []Action{
			{ID: "build", Type: ActionSpecBuild, Path: "{{file}}"},
			{ID: "notify", Type: ActionNotification, Message: "Spec {{file}} rebuilt"},
		},
	},
	"startup-banner": {
		ID:          "startup-banner",
		Name:        "Startup Banner",
		Description: "Announces the working directory when the host starts",
		Category:    "notification",
		Trigger:     Trigger{Type: TriggerLifecycle, Event: "startup"},
		Actions: []Action{
			{ID: "announce", Type: ActionNotification, Message: "Relay online in {{workingDirectory}}"},
		},
	},
}

// Templates returns the built-in template catalog sorted by id.
func Templates() []*Template {
	out := make([]*Template, 0, len(builtinTemplates))
	for _, t := range builtinTemplates {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// LookupTemplate returns the built-in template with the given id.
func LookupTemplate(id string) (*Template, bool) {
	t, ok := builtinTemplates[id]
	return t, ok
}

// TemplateCategories returns the distinct categories in the catalog,
// sorted.
func TemplateCategories() []string {
	seen := make(map[string]bool)
	for _, t := range builtinTemplates {
		seen[t.Category] = true
	}
	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}
