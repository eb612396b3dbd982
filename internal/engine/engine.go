// Package engine orchestrates hook runs: it gates on conditions,
// dispatches actions in declared order under the hook's error policy,
// and records every outcome in a bounded history. The engine is the
// error boundary for a run; action and condition failures resolve into
// the result, never escape as errors.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/watzon/relay/internal/action"
	"github.com/watzon/relay/internal/config"
	"github.com/watzon/relay/internal/hook"
)

// ConditionsNotMet is the error text recorded when a hook's condition
// gate blocks a run.
const ConditionsNotMet = "Hook conditions not met"

// ExecutionResult is the recorded outcome of one hook run.
type ExecutionResult struct {
	HookID     string           `json:"hook_id"`
	HookName   string           `json:"hook_name,omitempty"`
	Trigger    hook.TriggerType `json:"trigger,omitempty"`
	Success    bool             `json:"success"`
	DurationMs int              `json:"duration_ms"`
	Actions    []action.Result  `json:"actions"`
	Error      string           `json:"error,omitempty"`
	Timestamp  time.Time        `json:"timestamp"`
}

// RunOptions carries caller-supplied state into one run.
type RunOptions struct {
	// Variables overlay the hook's own variables for this run.
	Variables map[string]any

	// Trigger describes what fired the run. Nil means manual.
	Trigger *hook.TriggerEvent

	// WorkingDir overrides the process working directory for the run.
	WorkingDir string
}

// HookSource resolves hook ids to definitions.
type HookSource interface {
	Get(id string) (*hook.Hook, error)
}

// ConditionGate decides whether a hook's conditions hold.
type ConditionGate interface {
	EvaluateAll(ctx context.Context, conds []hook.Condition, ec *hook.ExecutionContext) bool
}

// ActionExecutor runs one action and reports its result.
type ActionExecutor interface {
	Execute(ctx context.Context, h *hook.Hook, a *hook.Action, ec *hook.ExecutionContext) *action.Result
}

// Listener observes every recorded execution result.
type Listener func(*ExecutionResult)

// Engine runs hooks. Independent runs may execute concurrently; the
// only state shared between them is the history and the listener list.
type Engine struct {
	store      HookSource
	gate       ConditionGate
	dispatcher ActionExecutor
	history    *History

	// stopOnRetryExhausted halts a run when a retried action never
	// succeeds, instead of moving on to the next action.
	stopOnRetryExhausted bool

	mu        sync.RWMutex
	listeners []Listener
}

// New wires an engine from its collaborators.
func New(store HookSource, gate ConditionGate, dispatcher ActionExecutor, cfg config.EngineConfig) *Engine {
	return &Engine{
		store:                store,
		gate:                 gate,
		dispatcher:           dispatcher,
		history:              NewHistory(cfg.HistoryCapacity),
		stopOnRetryExhausted: cfg.StopOnRetryExhausted,
	}
}

// History exposes the engine's execution history.
func (e *Engine) History() *History {
	return e.history
}

// AddListener registers a callback invoked synchronously after every
// recorded run, gate-blocked runs included.
func (e *Engine) AddListener(fn Listener) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners = append(e.listeners, fn)
}

// Run executes the hook with the given id. A missing or disabled hook
// is a hard failure before any context is built; everything after that
// resolves into the returned ExecutionResult.
func (e *Engine) Run(ctx context.Context, id string, opts RunOptions) (*ExecutionResult, error) {
	h, err := e.store.Get(id)
	if err != nil {
		return nil, err
	}
	if !h.Enabled {
		return nil, fmt.Errorf("running hook %s: %w", id, hook.ErrDisabled)
	}

	ec := BuildContext(h, opts)

	res := &ExecutionResult{
		HookID:    h.ID,
		HookName:  h.Name,
		Trigger:   triggerType(opts.Trigger),
		Actions:   []action.Result{},
		Timestamp: ec.StartedAt,
	}

	log.Info().
		Str("hook", h.ID).
		Str("trigger", string(res.Trigger)).
		Msg("Executing hook")

	start := time.Now()

	if len(h.Conditions) > 0 && !e.gate.EvaluateAll(ctx, h.Conditions, ec) {
		res.Error = ConditionsNotMet
		res.DurationMs = int(time.Since(start).Milliseconds())
		e.record(res)
		log.Info().Str("hook", h.ID).Msg("Hook blocked by conditions")
		return res, nil
	}

	e.runActions(ctx, h, ec, res)
	res.DurationMs = int(time.Since(start).Milliseconds())
	e.record(res)

	if res.Success {
		log.Info().
			Str("hook", h.ID).
			Int("actions", len(res.Actions)).
			Int("duration_ms", res.DurationMs).
			Msg("Hook completed")
	} else {
		log.Warn().
			Str("hook", h.ID).
			Str("error", res.Error).
			Msg("Hook failed")
	}
	return res, nil
}

// runActions iterates the hook's actions in declared order, applying
// the error policy, then settles success and the result error text.
func (e *Engine) runActions(ctx context.Context, h *hook.Hook, ec *hook.ExecutionContext, res *ExecutionResult) {
	for i := range h.Actions {
		a := &h.Actions[i]

		ar := e.dispatcher.Execute(ctx, h, a, ec)
		res.Actions = append(res.Actions, *ar)
		if ar.Success {
			continue
		}

		// A per-action continueOnError exempts the action from the
		// hook-level policy entirely.
		if a.ContinueOnError || h.OnError == hook.OnErrorContinue {
			continue
		}

		if h.OnError == hook.OnErrorRetry {
			if e.retry(ctx, h, a, ec, res) {
				continue
			}
			// Retry exhaustion does not imply stop unless configured.
			if e.stopOnRetryExhausted {
				break
			}
			continue
		}

		// stop: remaining actions are never attempted.
		break
	}

	res.Success = true
	for i := range res.Actions {
		if !res.Actions[i].Success {
			res.Success = false
			if res.Error == "" {
				res.Error = actionFailure(i, &res.Actions[i])
			}
		}
	}
}

// retry re-dispatches a failed action up to the hook's retry budget.
// Each attempt replaces the previously recorded result in place, so a
// retried action contributes exactly one result. Reports whether an
// attempt succeeded.
func (e *Engine) retry(ctx context.Context, h *hook.Hook, a *hook.Action, ec *hook.ExecutionContext, res *ExecutionResult) bool {
	last := len(res.Actions) - 1
	for attempt := 1; attempt <= h.Retries; attempt++ {
		log.Debug().
			Str("hook", h.ID).
			Str("action", a.ID).
			Int("attempt", attempt).
			Int("retries", h.Retries).
			Msg("Retrying action")

		ar := e.dispatcher.Execute(ctx, h, a, ec)
		res.Actions[last] = *ar
		if ar.Success {
			return true
		}
	}
	return false
}

func (e *Engine) record(res *ExecutionResult) {
	e.history.Append(res)

	e.mu.RLock()
	listeners := make([]Listener, len(e.listeners))
	copy(listeners, e.listeners)
	e.mu.RUnlock()

	for _, fn := range listeners {
		fn(res)
	}
}

// triggerType resolves the recorded trigger. A run without a trigger
// event is a manual invocation, whatever the hook declares.
func triggerType(ev *hook.TriggerEvent) hook.TriggerType {
	if ev != nil && ev.Type != "" {
		return ev.Type
	}
	return hook.TriggerManual
}

func actionFailure(i int, ar *action.Result) string {
	name := ar.ActionID
	if name == "" {
		name = fmt.Sprintf("#%d", i+1)
	}
	return fmt.Sprintf("action %s (%s) failed: %s", name, ar.Type, ar.Error)
}
