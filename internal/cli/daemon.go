package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/watzon/relay/internal/api"
	"github.com/watzon/relay/internal/config"
	"github.com/watzon/relay/internal/engine"
	"github.com/watzon/relay/internal/feed"
	"github.com/watzon/relay/internal/hook"
	"github.com/watzon/relay/internal/metrics"
	"github.com/watzon/relay/internal/schedule"
	"github.com/watzon/relay/internal/watch"
)

const lifecycleShutdownTimeout = 30 * time.Second

var (
	daemonDir     string
	daemonListen  string
	daemonNoWatch bool
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the watch daemon",
	Long: `Run the long-lived daemon that drives non-manual triggers.

The daemon will:
  - Watch the filesystem for hooks with file_change triggers
  - Fire schedule hooks as their cron expressions come due
  - Fire lifecycle hooks on startup and shutdown
  - Fire spec_lifecycle hooks after successful spec builds
  - Reload the hook registry when documents in the hooks directory change

With a listen address (daemon.listen in relay.yaml or --listen) it also
serves the HTTP API, the Prometheus /metrics endpoint, and the
execution feed WebSocket.

Use --no-watch to disable file watching.`,
	RunE: runDaemon,
}

func init() {
	daemonCmd.Flags().StringVarP(&daemonDir, "dir", "d", "", "Project directory to watch (default: current directory)")
	daemonCmd.Flags().StringVar(&daemonListen, "listen", "", "API listen address (default: daemon.listen)")
	daemonCmd.Flags().BoolVar(&daemonNoWatch, "no-watch", false, "Disable file watching")

	rootCmd.AddCommand(daemonCmd)
}

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	root := resolveWorkingDir(daemonDir)

	rt, err := buildRuntime(cfg)
	if err != nil {
		return fmt.Errorf("building runtime: %w", err)
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Info().Msg("Shutdown signal received")
		cancel()
	}()

	rt.engine.AddListener(metrics.RecordExecution)
	rt.engine.AddListener(specLifecycleRelay(ctx, rt, root))
	updateHookGauges(rt.store)

	if !daemonNoWatch {
		watcher, err := watch.New(root, rt.engine, cfg.Watch)
		if err != nil {
			return fmt.Errorf("starting file watcher: %w", err)
		}
		rt.store.AttachWatcher(watcher)
		watcher.Start()
		defer func() { _ = watcher.Stop() }()
	}

	sched := schedule.NewScheduler(rt.store, rt.engine)
	sched.Start(&schedule.Config{WorkingDir: root})
	defer sched.Stop()

	reloader, err := newHookReloader(cfg.Hooks.Dir, rt.store, func() {
		updateHookGauges(rt.store)
	})
	if err != nil {
		log.Warn().Err(err).Msg("Hook directory reload disabled")
	} else {
		reloader.Start(ctx)
		defer func() { _ = reloader.Stop() }()
	}

	if addr := daemonAddr(daemonListen, cfg); addr != "" {
		broker := feed.NewBroker(rt.engine.History())
		rt.engine.AddListener(broker.Publish)
		metrics.RegisterFeedClients(broker.ClientCount)
		defer broker.Stop()

		srv := &http.Server{
			Addr:              addr,
			Handler:           api.New(rt.store, rt.engine, broker).Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			log.Info().Str("addr", addr).Msg("API server listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("API server error")
				cancel()
			}
		}()
		defer func() {
			shutCtx, shutCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutCancel()
			_ = srv.Shutdown(shutCtx)
		}()
	}

	rt.fireEvent(ctx, hook.TriggerLifecycle, "startup", root)

	configPath, _ := config.ConfigFilePath(cfgFile)
	log.Info().
		Str("root", root).
		Str("hooks_dir", cfg.Hooks.Dir).
		Str("config", configPath).
		Msg("Daemon running")

	<-ctx.Done()

	shutCtx, shutCancel := context.WithTimeout(context.Background(), lifecycleShutdownTimeout)
	defer shutCancel()
	rt.fireEvent(shutCtx, hook.TriggerLifecycle, "shutdown", root)

	log.Info().Msg("Daemon stopped")
	return nil
}

// fireEvent runs every enabled hook of the given trigger type whose
// event matches, all concurrently. An empty event on the hook matches
// any event. Failures are logged; an event firing never aborts the
// daemon.
func (rt *runtime) fireEvent(ctx context.Context, t hook.TriggerType, event, workingDir string) {
	enabled := true
	now := time.Now()

	var g errgroup.Group
	for _, h := range rt.store.List(hook.ListFilter{Enabled: &enabled}) {
		if h.Trigger.Type != t || !matchPattern(h.Trigger.Event, event) {
			continue
		}

		id := h.ID
		g.Go(func() error {
			res, err := rt.engine.Run(ctx, id, engine.RunOptions{
				WorkingDir: workingDir,
				Trigger:    &hook.TriggerEvent{Type: t, Event: event, Time: now},
			})
			switch {
			case err != nil:
				log.Error().Err(err).Str("hook", id).Str("event", event).Msg("Event-triggered execution failed")
			case !res.Success:
				log.Warn().Str("hook", id).Str("event", event).Msg("Event-triggered hook failed")
			}
			return nil
		})
	}
	_ = g.Wait()
}

// specLifecycleRelay returns an engine listener that fires
// spec_lifecycle hooks once a run containing a successful spec_build
// action is recorded. Runs that were themselves spec_lifecycle
// triggered are skipped, so two such hooks can never feed each other.
func specLifecycleRelay(ctx context.Context, rt *runtime, workingDir string) engine.Listener {
	return func(res *engine.ExecutionResult) {
		if res.Trigger == hook.TriggerSpecLifecycle || !builtSpec(res) {
			return
		}
		go rt.fireEvent(ctx, hook.TriggerSpecLifecycle, "build_complete", workingDir)
	}
}

// builtSpec reports whether the run contains at least one successful
// spec_build action.
func builtSpec(res *engine.ExecutionResult) bool {
	for i := range res.Actions {
		if res.Actions[i].Type == hook.ActionSpecBuild && res.Actions[i].Success {
			return true
		}
	}
	return false
}

// updateHookGauges refreshes the registered-hook metrics from the
// store.
func updateHookGauges(store *hook.Store) {
	enabled, disabled := 0, 0
	for _, h := range store.List(hook.ListFilter{}) {
		if h.Enabled {
			enabled++
		} else {
			disabled++
		}
	}
	metrics.SetRegisteredHooks(enabled, disabled)
}
