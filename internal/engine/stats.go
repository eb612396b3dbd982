package engine

import (
	"time"

	"github.com/watzon/relay/internal/hook"
)

// Stats is a point-in-time summary of the hook registry and the
// execution history. Derived on demand; never mutates either source.
type Stats struct {
	TotalHooks    int            `json:"total_hooks"`
	EnabledHooks  int            `json:"enabled_hooks"`
	DisabledHooks int            `json:"disabled_hooks"`
	ByCategory    map[string]int `json:"by_category"`
	TotalRuns     int            `json:"total_runs"`
	SuccessRate   float64        `json:"success_rate"`
	LastRun       time.Time      `json:"last_run"`
}

// Collect derives statistics from a hook snapshot and the history.
// The success rate is 0 when no runs are recorded.
func Collect(hooks []*hook.Hook, history *History) *Stats {
	s := &Stats{
		TotalHooks: len(hooks),
		ByCategory: make(map[string]int),
	}

	for _, h := range hooks {
		if h.Enabled {
			s.EnabledHooks++
		} else {
			s.DisabledHooks++
		}
		if h.Category != "" {
			s.ByCategory[h.Category]++
		}
	}

	if history != nil {
		s.TotalRuns = history.TotalRuns()
		if s.TotalRuns > 0 {
			s.SuccessRate = float64(history.SucceededRuns()) / float64(s.TotalRuns)
		}
		s.LastRun = history.LastRun()
	}
	return s
}
