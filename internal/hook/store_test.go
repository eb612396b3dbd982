package hook

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

type fakeWatcher struct {
	mu      sync.Mutex
	ensured map[string]bool // id -> enabled at last Ensure
	removed []string
}

func newFakeWatcher() *fakeWatcher {
	return &fakeWatcher{ensured: make(map[string]bool)}
}

func (f *fakeWatcher) Ensure(h *Hook) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ensured[h.ID] = h.Enabled
	return nil
}

func (f *fakeWatcher) Remove(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, id)
	delete(f.ensured, id)
}

func setupStore(t *testing.T) *Store {
	t.Helper()

	s := NewStore(t.TempDir())
	if err := s.Load(); err != nil {
		t.Fatalf("Failed to load empty store: %v", err)
	}
	return s
}

func writeDoc(t *testing.T, dir, name, content string) {
	t.Helper()

	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write hook document: %v", err)
	}
}

func TestStore_LoadAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "deploy.yaml", `
name: Deploy
description: Deploys the thing
trigger:
  type: manual
actions:
  - id: run
    type: shell
    command: make deploy
`)

	s := NewStore(dir)
	if err := s.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	h, err := s.Get("deploy")
	if err != nil {
		t.Fatalf("expected hook id from filename, got error: %v", err)
	}

	if !h.Enabled {
		t.Error("expected enabled to default to true")
	}
	if h.Timeout != DefaultTimeout {
		t.Errorf("expected timeout %d, got %d", DefaultTimeout, h.Timeout)
	}
	if h.Retries != 0 {
		t.Errorf("expected retries 0, got %d", h.Retries)
	}
	if h.OnError != OnErrorStop {
		t.Errorf("expected on_error stop, got %s", h.OnError)
	}
}

func TestStore_LoadRespectsExplicitDisabled(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "off.yaml", `
name: Off
description: Explicitly disabled
enabled: false
trigger:
  type: manual
actions:
  - type: shell
    command: "true"
`)

	s := NewStore(dir)
	if err := s.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	h, err := s.Get("off")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if h.Enabled {
		t.Error("expected enabled: false to be preserved")
	}
}

func TestStore_LoadSkipsInvalid(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "good.yaml", `
name: Good
description: A valid hook
trigger:
  type: manual
actions:
  - type: shell
    command: echo ok
`)
	writeDoc(t, dir, "bad.yaml", `
name: Bad
description: No actions here
trigger:
  type: manual
`)
	writeDoc(t, dir, "garbage.yaml", "{{{not yaml")

	s := NewStore(dir)
	if err := s.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if _, err := s.Get("good"); err != nil {
		t.Errorf("expected valid hook to load: %v", err)
	}
	if _, err := s.Get("bad"); !errors.Is(err, ErrNotFound) {
		t.Error("expected invalid hook to be skipped")
	}
	if _, err := s.Get("garbage"); !errors.Is(err, ErrNotFound) {
		t.Error("expected unparseable hook to be skipped")
	}
}

func TestStore_LoadSkipsReservedConfig(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "config.yaml", `
name: Sneaky
description: Lives under the reserved name
trigger:
  type: manual
actions:
  - type: shell
    command: echo no
`)

	s := NewStore(dir)
	if err := s.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if len(s.List(ListFilter{})) != 0 {
		t.Error("expected config.yaml to be excluded from loading")
	}
}

func TestStore_CreateBlank(t *testing.T) {
	s := setupStore(t)

	h, err := s.Create(CreateOptions{Name: "Blank", Description: "Empty shell"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if h.ID == "" {
		t.Fatal("expected fresh id")
	}
	if h.Trigger.Type != TriggerManual {
		t.Errorf("expected manual trigger, got %s", h.Trigger.Type)
	}
	if len(h.Actions) != 0 {
		t.Errorf("expected no actions, got %d", len(h.Actions))
	}
	if !h.Enabled {
		t.Error("expected new hook to be enabled")
	}
	if h.CreatedAt.IsZero() || h.UpdatedAt.IsZero() {
		t.Error("expected timestamps to be stamped")
	}

	if _, err := os.Stat(filepath.Join(s.Dir(), h.ID+".yaml")); err != nil {
		t.Errorf("expected hook document on disk: %v", err)
	}
}

func TestStore_CreateFromTemplate(t *testing.T) {
	s := setupStore(t)

	tpl, ok := LookupTemplate("format-on-save")
	if !ok {
		t.Fatal("expected built-in template format-on-save")
	}

	h, err := s.Create(CreateOptions{Template: "format-on-save"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if h.Category != tpl.Category {
		t.Errorf("expected category %s, got %s", tpl.Category, h.Category)
	}
	if len(h.Actions) != len(tpl.Actions) {
		t.Errorf("expected %d actions from template, got %d", len(tpl.Actions), len(h.Actions))
	}
	if h.Trigger.Type != TriggerFileChange {
		t.Errorf("expected file_change trigger, got %s", h.Trigger.Type)
	}

	byCategory := s.List(ListFilter{Category: tpl.Category})
	if len(byCategory) != 1 || byCategory[0].ID != h.ID {
		t.Errorf("expected listing by category to return exactly the new hook, got %d", len(byCategory))
	}
}

func TestStore_CreateFromTemplateOverrides(t *testing.T) {
	s := setupStore(t)

	h, err := s.Create(CreateOptions{
		Template:    "format-on-save",
		Name:        "My Formatter",
		Description: "Custom description",
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if h.Name != "My Formatter" {
		t.Errorf("expected override name, got %s", h.Name)
	}
	if h.Description != "Custom description" {
		t.Errorf("expected override description, got %s", h.Description)
	}
}

func TestStore_CreateUnknownTemplate(t *testing.T) {
	s := setupStore(t)

	if _, err := s.Create(CreateOptions{Template: "no-such-template"}); !errors.Is(err, ErrTemplateNotFound) {
		t.Errorf("expected ErrTemplateNotFound, got %v", err)
	}
}

func TestStore_CreateUniqueIDs(t *testing.T) {
	s := setupStore(t)

	seen := make(map[string]bool)
	for i := 0; i < 5; i++ {
		h, err := s.Create(CreateOptions{Name: "N", Description: "D"})
		if err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		if seen[h.ID] {
			t.Fatalf("duplicate id %s", h.ID)
		}
		seen[h.ID] = true
	}
}

func TestStore_SaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir)
	if err := s.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	h := &Hook{
		ID:          "roundtrip",
		Name:        "Round Trip",
		Description: "Survives a reload",
		Enabled:     true,
		Trigger:     Trigger{Type: TriggerFileChange, Pattern: "src/**/*.ts"},
		Actions: []Action{
			{ID: "build", Type: ActionShell, Command: "make build"},
		},
		Variables: map[string]any{"env": "dev"},
		Timeout:   5000,
		OnError:   OnErrorContinue,
	}
	if err := s.Save(h); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	fresh := NewStore(dir)
	if err := fresh.Load(); err != nil {
		t.Fatalf("reload failed: %v", err)
	}

	got, err := fresh.Get("roundtrip")
	if err != nil {
		t.Fatalf("Get after reload failed: %v", err)
	}
	if got.Trigger.Pattern != "src/**/*.ts" {
		t.Errorf("expected pattern to survive, got %s", got.Trigger.Pattern)
	}
	if got.Timeout != 5000 {
		t.Errorf("expected timeout 5000, got %d", got.Timeout)
	}
	if got.OnError != OnErrorContinue {
		t.Errorf("expected on_error continue, got %s", got.OnError)
	}
}

func TestStore_SaveRejectsInvalid(t *testing.T) {
	s := setupStore(t)

	h := &Hook{ID: "x", Name: "", Description: "no name", Actions: nil}
	if err := s.Save(h); err == nil {
		t.Error("expected save of invalid hook to fail")
	}
}

func TestStore_Toggle(t *testing.T) {
	s := setupStore(t)
	w := newFakeWatcher()
	s.AttachWatcher(w)

	h, err := s.Create(CreateOptions{Template: "format-on-save"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	before := h.UpdatedAt

	toggled, err := s.Toggle(h.ID, nil)
	if err != nil {
		t.Fatalf("Toggle failed: %v", err)
	}
	if toggled.Enabled {
		t.Error("expected toggle to disable the hook")
	}
	if !toggled.UpdatedAt.After(before) && !toggled.UpdatedAt.Equal(before) {
		t.Error("expected modified timestamp to be stamped")
	}

	w.mu.Lock()
	enabled := w.ensured[h.ID]
	w.mu.Unlock()
	if enabled {
		t.Error("expected watcher to see the hook disabled")
	}

	on := true
	toggled, err = s.Toggle(h.ID, &on)
	if err != nil {
		t.Fatalf("Toggle failed: %v", err)
	}
	if !toggled.Enabled {
		t.Error("expected explicit enable")
	}
}

func TestStore_ToggleNotFound(t *testing.T) {
	s := setupStore(t)

	if _, err := s.Toggle("missing", nil); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_Delete(t *testing.T) {
	s := setupStore(t)
	w := newFakeWatcher()
	s.AttachWatcher(w)

	h, err := s.Create(CreateOptions{Template: "format-on-save"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if err := s.Delete(h.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	if _, err := s.Get(h.ID); !errors.Is(err, ErrNotFound) {
		t.Error("expected registry entry to be gone")
	}
	if _, err := os.Stat(filepath.Join(s.Dir(), h.ID+".yaml")); !os.IsNotExist(err) {
		t.Error("expected hook document to be removed")
	}

	w.mu.Lock()
	removed := len(w.removed) == 1 && w.removed[0] == h.ID
	w.mu.Unlock()
	if !removed {
		t.Error("expected watcher Remove for the deleted id")
	}
}

func TestStore_DeleteNotFound(t *testing.T) {
	s := setupStore(t)

	h, err := s.Create(CreateOptions{Name: "Keep", Description: "Stays put"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if err := s.Delete("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	if _, err := s.Get(h.ID); err != nil {
		t.Error("expected existing hooks to be untouched")
	}
	entries, err := os.ReadDir(s.Dir())
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("expected storage directory unchanged, found %d entries", len(entries))
	}
}

func TestStore_ListFilters(t *testing.T) {
	s := setupStore(t)

	mustCreate := func(opts CreateOptions) *Hook {
		t.Helper()
		h, err := s.Create(opts)
		if err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		return h
	}

	a := mustCreate(CreateOptions{Name: "Build Runner", Description: "Builds things", Category: "build", Tags: []string{"ci"}})
	b := mustCreate(CreateOptions{Name: "Linter", Description: "Checks style", Category: "quality"})
	mustCreate(CreateOptions{Name: "Notifier", Description: "Pings the team", Category: "notification"})

	off := false
	if _, err := s.Toggle(b.ID, &off); err != nil {
		t.Fatalf("Toggle failed: %v", err)
	}

	if got := s.List(ListFilter{Category: "build"}); len(got) != 1 || got[0].ID != a.ID {
		t.Errorf("category filter: expected exactly the build hook, got %d", len(got))
	}

	on := true
	if got := s.List(ListFilter{Enabled: &on}); len(got) != 2 {
		t.Errorf("enabled filter: expected 2 hooks, got %d", len(got))
	}
	if got := s.List(ListFilter{Enabled: &off}); len(got) != 1 || got[0].ID != b.ID {
		t.Errorf("disabled filter: expected exactly the linter, got %d", len(got))
	}

	if got := s.List(ListFilter{Tag: "ci"}); len(got) != 1 || got[0].ID != a.ID {
		t.Errorf("tag filter: expected exactly the tagged hook, got %d", len(got))
	}

	if got := s.List(ListFilter{Search: "team"}); len(got) != 1 {
		t.Errorf("search filter: expected 1 hit on description, got %d", len(got))
	}
	if got := s.List(ListFilter{Search: "LINT"}); len(got) != 1 {
		t.Errorf("search filter: expected case-insensitive name hit, got %d", len(got))
	}
}
