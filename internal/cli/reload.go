package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"

	"github.com/watzon/relay/internal/hook"
)

const reloadDebounce = 300 * time.Millisecond

// hookReloader watches the hooks directory and reloads the registry
// when documents change, so edits made with an editor or a second
// relay process show up in the running daemon without a restart.
type hookReloader struct {
	store    *hook.Store
	watcher  *fsnotify.Watcher
	onReload func()

	mu    sync.Mutex
	timer *time.Timer

	wg sync.WaitGroup
}

// newHookReloader watches dir for hook document changes. The onReload
// callback runs after each successful registry reload.
func newHookReloader(dir string, store *hook.Store, onReload func()) (*hookReloader, error) {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}
	if err := fs.Add(dir); err != nil {
		fs.Close()
		return nil, fmt.Errorf("watching hooks directory: %w", err)
	}

	return &hookReloader{
		store:    store,
		watcher:  fs,
		onReload: onReload,
	}, nil
}

// Start begins watching for document changes.
func (r *hookReloader) Start(ctx context.Context) {
	r.wg.Add(1)
	go r.loop(ctx)
}

// Stop tears down the watcher and any pending reload.
func (r *hookReloader) Stop() error {
	err := r.watcher.Close()
	r.wg.Wait()

	r.mu.Lock()
	if r.timer != nil {
		r.timer.Stop()
	}
	r.mu.Unlock()
	return err
}

func (r *hookReloader) loop(ctx context.Context) {
	defer r.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-r.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			ext := filepath.Ext(event.Name)
			if ext != ".yaml" && ext != ".yml" {
				continue
			}
			r.schedule()

		case err, ok := <-r.watcher.Errors:
			if !ok {
				return
			}
			log.Error().Err(err).Msg("Hooks directory watcher error")
		}
	}
}

// schedule arms (or re-arms) the debounce timer; a burst of document
// writes collapses into one reload.
func (r *hookReloader) schedule() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.timer != nil {
		r.timer.Stop()
	}
	r.timer = time.AfterFunc(reloadDebounce, r.reload)
}

func (r *hookReloader) reload() {
	log.Info().Msg("Hook documents changed, reloading registry")

	if err := r.store.Load(); err != nil {
		log.Error().Err(err).Msg("Failed to reload hooks")
		return
	}
	if r.onReload != nil {
		r.onReload()
	}
}
