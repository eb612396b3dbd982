// Package schedule drives hooks with schedule triggers. A poll loop
// tracks the next run time of every enabled cron hook and invokes the
// execution engine when one comes due, exactly as a manual trigger
// would.
package schedule

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/watzon/relay/internal/engine"
	"github.com/watzon/relay/internal/hook"
)

const defaultPollInterval = 1 * time.Second

// HookLister snapshots the current hook registry. Satisfied by
// *hook.Store.
type HookLister interface {
	List(filter hook.ListFilter) []*hook.Hook
}

// HookRunner executes a due hook. Satisfied by *engine.Engine.
type HookRunner interface {
	Run(ctx context.Context, id string, opts engine.RunOptions) (*engine.ExecutionResult, error)
}

// Config holds scheduler settings.
type Config struct {
	// PollInterval is how often due schedules are checked (default 1s).
	PollInterval time.Duration

	// WorkingDir is passed to every scheduled run.
	WorkingDir string
}

type entry struct {
	expression string
	next       time.Time
}

// Scheduler polls the hook registry so created, toggled, and deleted
// schedule hooks are picked up without explicit wiring.
type Scheduler struct {
	store  HookLister
	runner HookRunner
	parser *CronParser

	workingDir string

	mu      sync.Mutex
	nextRun map[string]entry

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewScheduler(store HookLister, runner HookRunner) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		store:   store,
		runner:  runner,
		parser:  NewCronParser(),
		nextRun: make(map[string]entry),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start begins background processing.
func (s *Scheduler) Start(cfg *Config) {
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = defaultPollInterval
	}
	s.workingDir = cfg.WorkingDir

	s.wg.Add(1)
	go s.pollLoop(cfg.PollInterval)

	log.Info().
		Dur("poll_interval", cfg.PollInterval).
		Msg("Scheduler started")
}

// Stop shuts down the poll loop and waits for in-flight runs.
func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
	log.Info().Msg("Scheduler stopped")
}

func (s *Scheduler) pollLoop(interval time.Duration) {
	defer s.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.tick(time.Now())
		}
	}
}

// tick reconciles the next-run table with the registry and fires every
// hook that has come due. A hook seen for the first time (or with a
// changed expression) only gets its next run computed; it fires on a
// later tick.
func (s *Scheduler) tick(now time.Time) {
	hooks := s.store.List(hook.ListFilter{})

	s.mu.Lock()
	seen := make(map[string]bool, len(hooks))
	var due []string

	for _, h := range hooks {
		if h.Trigger.Type != hook.TriggerSchedule || !h.Enabled || h.Trigger.Schedule == "" {
			continue
		}
		seen[h.ID] = true

		e, known := s.nextRun[h.ID]
		if !known || e.expression != h.Trigger.Schedule {
			s.nextRun[h.ID] = s.computeNext(h.ID, h.Trigger.Schedule, now)
			continue
		}
		if e.next.IsZero() || now.Before(e.next) {
			continue
		}

		due = append(due, h.ID)
		s.nextRun[h.ID] = s.computeNext(h.ID, h.Trigger.Schedule, now)
	}

	for id := range s.nextRun {
		if !seen[id] {
			delete(s.nextRun, id)
		}
	}
	s.mu.Unlock()

	for _, id := range due {
		s.fire(id, now)
	}
}

// computeNext parses the expression and records the next due time. An
// unparsable expression poisons the entry (zero next) so it is skipped
// without re-logging every tick.
func (s *Scheduler) computeNext(id, expression string, now time.Time) entry {
	next, err := s.parser.NextAfter(expression, now)
	if err != nil {
		log.Warn().
			Err(err).
			Str("hook", id).
			Str("schedule", expression).
			Msg("Invalid schedule expression")
		return entry{expression: expression}
	}
	return entry{expression: expression, next: next}
}

func (s *Scheduler) fire(id string, now time.Time) {
	log.Debug().Str("hook", id).Msg("Schedule triggered hook")

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		_, err := s.runner.Run(s.ctx, id, engine.RunOptions{
			WorkingDir: s.workingDir,
			Trigger: &hook.TriggerEvent{
				Type: hook.TriggerSchedule,
				Time: now,
			},
		})
		if err != nil {
			log.Error().Err(err).Str("hook", id).Msg("Scheduled execution failed")
		}
	}()
}
