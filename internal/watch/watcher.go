// Package watch maintains live filesystem watches for enabled hooks
// with file_change triggers and fires the execution engine when a
// matching path changes. Watches are keyed by hook id; enable, disable,
// and delete keep the watch table exactly in sync with the registry.
package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"

	"github.com/watzon/relay/internal/config"
	"github.com/watzon/relay/internal/engine"
	"github.com/watzon/relay/internal/hook"
)

const defaultDebounce = 100 * time.Millisecond

// HookRunner executes a hook in response to a file event. Satisfied by
// *engine.Engine.
type HookRunner interface {
	Run(ctx context.Context, id string, opts engine.RunOptions) (*engine.ExecutionResult, error)
}

type watchEntry struct {
	hookID  string
	pattern string // slash-separated, relative to root unless abs
	abs     bool
	base    string
}

// Watcher owns the fsnotify instance and the hook-to-watch table.
// Event handling never invokes the engine while holding the mutex.
type Watcher struct {
	root     string
	runner   HookRunner
	debounce time.Duration

	fs *fsnotify.Watcher

	mu      sync.Mutex
	entries map[string]*watchEntry
	dirs    map[string]map[string]bool // watched dir -> hook ids needing it
	timers  map[string]*time.Timer

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a watcher rooted at the given project directory.
func New(root string, runner HookRunner, cfg config.WatchConfig) (*Watcher, error) {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}

	debounce := cfg.Debounce
	if debounce <= 0 {
		debounce = defaultDebounce
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Watcher{
		root:     root,
		runner:   runner,
		debounce: debounce,
		fs:       fs,
		entries:  make(map[string]*watchEntry),
		dirs:     make(map[string]map[string]bool),
		timers:   make(map[string]*time.Timer),
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// Start begins delivering file events to hooks.
func (w *Watcher) Start() {
	w.wg.Add(1)
	go w.eventLoop()
}

// Stop tears down the event loop, pending debounce timers, and the
// underlying fsnotify watcher.
func (w *Watcher) Stop() error {
	w.cancel()
	w.wg.Wait()

	w.mu.Lock()
	for key, timer := range w.timers {
		timer.Stop()
		delete(w.timers, key)
	}
	w.mu.Unlock()

	return w.fs.Close()
}

// Ensure reconciles the watch table with one hook: an enabled
// file_change hook gets exactly one live watch for its pattern, any
// other state removes whatever watch the id had.
func (w *Watcher) Ensure(h *hook.Hook) error {
	if h.Trigger.Type != hook.TriggerFileChange || !h.Enabled || h.Trigger.Pattern == "" {
		w.Remove(h.ID)
		return nil
	}

	pattern := filepath.ToSlash(h.Trigger.Pattern)
	if !doublestar.ValidatePattern(pattern) {
		return fmt.Errorf("invalid glob pattern %q", h.Trigger.Pattern)
	}

	abs := filepath.IsAbs(h.Trigger.Pattern)
	full := h.Trigger.Pattern
	if !abs {
		full = filepath.Join(w.root, filepath.FromSlash(pattern))
	}
	base := extractBaseDir(full)

	dirs, err := collectDirs(base)
	if err != nil {
		return fmt.Errorf("resolving watch root for %s: %w", h.ID, err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	w.detachLocked(h.ID)
	w.entries[h.ID] = &watchEntry{hookID: h.ID, pattern: pattern, abs: abs, base: base}
	for _, d := range dirs {
		w.attachDirLocked(h.ID, d)
	}

	log.Debug().
		Str("hook", h.ID).
		Str("pattern", pattern).
		Int("dirs", len(dirs)).
		Msg("Watching for file changes")
	return nil
}

// Remove drops the watch for a hook id, if any, along with its pending
// debounce timers.
func (w *Watcher) Remove(id string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.detachLocked(id)
}

func (w *Watcher) attachDirLocked(hookID, dir string) {
	ids, watched := w.dirs[dir]
	if !watched {
		if err := w.fs.Add(dir); err != nil {
			log.Warn().Err(err).Str("dir", dir).Msg("Failed to watch directory")
			return
		}
		ids = make(map[string]bool)
		w.dirs[dir] = ids
	}
	ids[hookID] = true
}

func (w *Watcher) detachLocked(id string) {
	if _, ok := w.entries[id]; !ok {
		return
	}
	delete(w.entries, id)

	for dir, ids := range w.dirs {
		if !ids[id] {
			continue
		}
		delete(ids, id)
		if len(ids) == 0 {
			delete(w.dirs, dir)
			if err := w.fs.Remove(dir); err != nil {
				log.Debug().Err(err).Str("dir", dir).Msg("Dropping directory watch")
			}
		}
	}

	prefix := id + "\x00"
	for key, timer := range w.timers {
		if strings.HasPrefix(key, prefix) {
			timer.Stop()
			delete(w.timers, key)
		}
	}
}

func (w *Watcher) eventLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return

		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			// Removals are not change events; a deleted file has
			// nothing for a hook to act on.
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					w.coverNewDir(event.Name)
					continue
				}
			}
			w.handleEvent(event)

		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			log.Error().Err(err).Msg("File watcher error")
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	name := filepath.Clean(event.Name)

	rel, err := filepath.Rel(w.root, name)
	inRoot := err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
	relSlash := filepath.ToSlash(rel)

	w.mu.Lock()
	var matched []string
	var paths []string
	for id, e := range w.entries {
		target := relSlash
		if e.abs {
			target = filepath.ToSlash(name)
		} else if !inRoot {
			continue
		}
		if ok, _ := doublestar.Match(e.pattern, target); ok {
			matched = append(matched, id)
			paths = append(paths, target)
		}
	}
	w.mu.Unlock()

	for i, id := range matched {
		w.schedule(id, paths[i], opLabel(event.Op))
	}
}

// schedule arms (or re-arms) the debounce timer for one hook/path
// pair. Bursts of events for the same file collapse into a single run.
func (w *Watcher) schedule(id, path, event string) {
	key := id + "\x00" + path

	w.mu.Lock()
	defer w.mu.Unlock()

	if timer, exists := w.timers[key]; exists {
		timer.Stop()
	}
	w.timers[key] = time.AfterFunc(w.debounce, func() {
		w.fire(key, id, path, event)
	})
}

// fire runs the hook for a settled file event. It holds no locks while
// the engine runs; failures are logged, there is no caller to throw to.
func (w *Watcher) fire(key, id, path, event string) {
	w.mu.Lock()
	delete(w.timers, key)
	_, live := w.entries[id]
	w.mu.Unlock()
	if !live {
		return
	}

	log.Debug().
		Str("hook", id).
		Str("file", path).
		Str("event", event).
		Msg("File change triggered hook")

	_, err := w.runner.Run(w.ctx, id, engine.RunOptions{
		WorkingDir: w.root,
		Trigger: &hook.TriggerEvent{
			Type:  hook.TriggerFileChange,
			Path:  path,
			Event: event,
			Time:  time.Now(),
		},
	})
	if err != nil {
		log.Error().Err(err).Str("hook", id).Msg("Watch-triggered execution failed")
	}
}

// coverNewDir extends existing watches over a directory created after
// they were established, so patterns like src/**/*.go keep matching in
// fresh subdirectories.
func (w *Watcher) coverNewDir(dir string) {
	dirs, err := collectDirs(dir)
	if err != nil {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	for id, e := range w.entries {
		if !within(e.base, dir) {
			continue
		}
		for _, d := range dirs {
			w.attachDirLocked(id, d)
		}
	}
}

func within(base, dir string) bool {
	return dir == base || strings.HasPrefix(dir, base+string(filepath.Separator))
}

func opLabel(op fsnotify.Op) string {
	switch {
	case op&fsnotify.Create != 0:
		return "create"
	case op&fsnotify.Rename != 0:
		return "rename"
	default:
		return "change"
	}
}

// extractBaseDir walks a pattern up to its deepest wildcard-free
// directory, the directory fsnotify can actually watch.
func extractBaseDir(pattern string) string {
	dir := filepath.Dir(pattern)
	for {
		if !containsWildcard(dir) {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return dir
}

func containsWildcard(path string) bool {
	return strings.ContainsAny(path, "*?[{")
}

// collectDirs lists base and every non-hidden subdirectory, since
// fsnotify watches single directories, not trees.
func collectDirs(base string) ([]string, error) {
	info, err := os.Stat(base)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{filepath.Dir(base)}, nil
	}

	var dirs []string
	err = filepath.WalkDir(base, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != base && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		dirs = append(dirs, path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return dirs, nil
}
