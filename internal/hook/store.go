package hook

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// reservedNames are document basenames never treated as hook documents.
var reservedNames = map[string]bool{
	"config": true,
}

// ReservedName reports whether base is reserved for non-hook documents
// in the hooks directory.
func ReservedName(base string) bool {
	return reservedNames[base]
}

// Store owns the authoritative in-memory registry of hooks, kept in
// sync with a directory of YAML documents (one per hook, named by id).
// All mutations persist first and update memory second, so the
// registry never reflects a write that failed.
type Store struct {
	dir     string
	mu      sync.RWMutex
	hooks   map[string]*Hook
	watcher WatchController
}

// NewStore creates a store over the given hooks directory. Call Load
// to populate the registry.
func NewStore(dir string) *Store {
	return &Store{
		dir:   dir,
		hooks: make(map[string]*Hook),
	}
}

// Dir returns the backing directory.
func (s *Store) Dir() string {
	return s.dir
}

// AttachWatcher wires the trigger subsystem into the store and
// reconciles watches for every hook already loaded. Subsequent
// toggle/delete calls keep the watch set consistent under the store's
// lock.
func (s *Store) AttachWatcher(w WatchController) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.watcher = w
	for _, h := range s.hooks {
		s.ensureWatchLocked(h)
	}
}

// ensureWatchLocked re-evaluates the watch for one hook. Caller holds
// s.mu.
func (s *Store) ensureWatchLocked(h *Hook) {
	if s.watcher == nil {
		return
	}
	if err := s.watcher.Ensure(h); err != nil {
		log.Warn().Err(err).Str("hook", h.ID).Msg("Failed to update file watch")
	}
}

// Load reads every eligible document in the hooks directory, validates
// each, and replaces the registry. Invalid documents are skipped with a
// logged warning; one bad file never fails the whole load. A document
// without an explicit id takes its base filename as id.
func (s *Store) Load() error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("creating hooks directory: %w", err)
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("reading hooks directory: %w", err)
	}

	loaded := make(map[string]*Hook)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		ext := filepath.Ext(name)
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		base := strings.TrimSuffix(name, ext)
		if reservedNames[base] {
			continue
		}

		path := filepath.Join(s.dir, name)
		h, err := readHookFile(path, base)
		if err != nil {
			log.Warn().Err(err).Str("file", name).Msg("Skipping unreadable hook document")
			continue
		}

		if result := Validate(h); !result.Valid() {
			log.Warn().
				Str("file", name).
				Strs("errors", result.Errors).
				Msg("Skipping invalid hook document")
			continue
		} else if len(result.Warnings) > 0 {
			log.Debug().
				Str("file", name).
				Strs("warnings", result.Warnings).
				Msg("Hook document loaded with warnings")
		}

		if _, dup := loaded[h.ID]; dup {
			log.Warn().Str("file", name).Str("id", h.ID).Msg("Skipping duplicate hook id")
			continue
		}
		loaded[h.ID] = h
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.watcher != nil {
		for id := range s.hooks {
			if _, ok := loaded[id]; !ok {
				s.watcher.Remove(id)
			}
		}
	}

	s.hooks = loaded
	for _, h := range s.hooks {
		s.ensureWatchLocked(h)
	}

	log.Info().Int("count", len(s.hooks)).Str("dir", s.dir).Msg("Hooks loaded")
	return nil
}

func readHookFile(path, base string) (*Hook, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading hook document: %w", err)
	}

	h := &Hook{}
	if err := yaml.Unmarshal(data, h); err != nil {
		return nil, fmt.Errorf("parsing hook document: %w", err)
	}

	if h.ID == "" {
		h.ID = base
	}
	return h, nil
}

// Get retrieves a hook by id.
func (s *Store) Get(id string) (*Hook, error) {
	s.mu.RLock()
	h, ok := s.hooks[id]
	s.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return h, nil
}

// ListFilter narrows List output. Zero value matches everything.
type ListFilter struct {
	Category string
	Enabled  *bool
	Tag      string
	Search   string
}

func (f ListFilter) matches(h *Hook) bool {
	if f.Category != "" && h.Category != f.Category {
		return false
	}
	if f.Enabled != nil && h.Enabled != *f.Enabled {
		return false
	}
	if f.Tag != "" && !h.HasTag(f.Tag) {
		return false
	}
	if f.Search != "" {
		needle := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(h.Name), needle) &&
			!strings.Contains(strings.ToLower(h.Description), needle) {
			return false
		}
	}
	return true
}

// List returns hooks matching the filter, oldest first.
func (s *Store) List(filter ListFilter) []*Hook {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*Hook, 0, len(s.hooks))
	for _, h := range s.hooks {
		if filter.matches(h) {
			result = append(result, h)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result
}

// Save persists a hook document and then updates the registry. The
// modified timestamp is stamped here; created is stamped on first save.
func (s *Store) Save(h *Hook) error {
	if h.ID == "" {
		return fmt.Errorf("saving hook: id is required")
	}
	if result := Validate(h); !result.Valid() {
		return fmt.Errorf("saving hook %s: %s", h.ID, strings.Join(result.Errors, "; "))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if h.CreatedAt.IsZero() {
		h.CreatedAt = now
	}
	h.UpdatedAt = now

	if err := s.writeLocked(h); err != nil {
		return err
	}

	s.hooks[h.ID] = h
	s.ensureWatchLocked(h)

	log.Debug().Str("id", h.ID).Str("name", h.Name).Msg("Hook saved")
	return nil
}

// writeLocked serializes a hook to its document path. Caller holds
// s.mu.
func (s *Store) writeLocked(h *Hook) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("creating hooks directory: %w", err)
	}

	data, err := yaml.Marshal(h)
	if err != nil {
		return fmt.Errorf("serializing hook %s: %w", h.ID, err)
	}

	if err := os.WriteFile(s.path(h.ID), data, 0o644); err != nil {
		return fmt.Errorf("writing hook %s: %w", h.ID, err)
	}
	return nil
}

func (s *Store) path(id string) string {
	return filepath.Join(s.dir, id+".yaml")
}

// CreateOptions control Create. Template, when set, names a built-in
// template whose partial definition seeds the new hook; every other
// field overrides the seeded value.
type CreateOptions struct {
	Template    string
	Name        string
	Description string
	Category    string
	Tags        []string
	Trigger     *Trigger
	Conditions  []Condition
	Actions     []Action
	Variables   map[string]any
}

// Create builds a new hook, assigns a fresh time-derived id, persists
// it, and returns it. Without a template the hook starts blank: manual
// trigger, no actions.
func (s *Store) Create(opts CreateOptions) (*Hook, error) {
	h := &Hook{
		Name:        opts.Name,
		Description: opts.Description,
		Enabled:     true,
		Trigger:     Trigger{Type: TriggerManual},
		Timeout:     DefaultTimeout,
		OnError:     OnErrorStop,
	}

	if opts.Template != "" {
		tpl, ok := LookupTemplate(opts.Template)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrTemplateNotFound, opts.Template)
		}
		tpl.apply(h)
	}

	if opts.Name != "" {
		h.Name = opts.Name
	}
	if opts.Description != "" {
		h.Description = opts.Description
	}
	if opts.Category != "" {
		h.Category = opts.Category
	}
	if len(opts.Tags) > 0 {
		h.Tags = opts.Tags
	}
	if opts.Trigger != nil {
		h.Trigger = *opts.Trigger
	}
	if len(opts.Conditions) > 0 {
		h.Conditions = opts.Conditions
	}
	if len(opts.Actions) > 0 {
		h.Actions = opts.Actions
	}
	if len(opts.Variables) > 0 {
		h.Variables = opts.Variables
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	h.ID = s.nextIDLocked()
	now := time.Now().UTC()
	h.CreatedAt = now
	h.UpdatedAt = now

	if err := s.writeLocked(h); err != nil {
		return nil, err
	}

	s.hooks[h.ID] = h
	s.ensureWatchLocked(h)

	log.Info().Str("id", h.ID).Str("name", h.Name).Msg("Hook created")
	return h, nil
}

// nextIDLocked derives a fresh unique id from the current time. Caller
// holds s.mu.
func (s *Store) nextIDLocked() string {
	base := fmt.Sprintf("hook-%d", time.Now().UnixMilli())
	id := base
	for n := 1; ; n++ {
		if _, taken := s.hooks[id]; !taken {
			return id
		}
		id = fmt.Sprintf("%s-%d", base, n)
	}
}

// Toggle flips the enabled flag, or sets it when enabled is non-nil,
// then persists and re-evaluates the hook's file watch. Registry and
// watch table move together under the store's lock, so a concurrent
// delete can never leave a dangling watch.
func (s *Store) Toggle(id string, enabled *bool) (*Hook, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.hooks[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	next := *current
	if enabled != nil {
		next.Enabled = *enabled
	} else {
		next.Enabled = !current.Enabled
	}
	next.UpdatedAt = time.Now().UTC()

	if err := s.writeLocked(&next); err != nil {
		return nil, err
	}

	s.hooks[id] = &next
	s.ensureWatchLocked(&next)

	log.Info().Str("id", id).Bool("enabled", next.Enabled).Msg("Hook toggled")
	return &next, nil
}

// Delete removes a hook: its watch stops, the registry entry goes, and
// its document is deleted. A document already missing on disk is
// tolerated.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.hooks[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	if s.watcher != nil {
		s.watcher.Remove(id)
	}
	delete(s.hooks, id)

	// Load accepts both extensions, so delete both or a .yml document
	// would resurrect the hook on the next load.
	for _, path := range []string{s.path(id), filepath.Join(s.dir, id+".yml")} {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("deleting hook document %s: %w", id, err)
		}
	}

	log.Info().Str("id", id).Msg("Hook deleted")
	return nil
}
