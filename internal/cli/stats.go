package cli

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/watzon/relay/internal/engine"
	"github.com/watzon/relay/internal/hook"
)

var (
	statsRemote string
	statsLocal  bool
	statsFormat string
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show hook statistics",
	Long: `Show hook counts, run totals, and the success rate.

Run counters live in the daemon. When daemon.listen is configured (or
--remote is given) the daemon is queried; if it is unreachable, or with
--local, registration stats are computed from the hooks directory and
run counters read zero.`,
	RunE: runStats,
}

func init() {
	statsCmd.Flags().StringVar(&statsRemote, "remote", "", "Daemon address to query (default: daemon.listen)")
	statsCmd.Flags().BoolVar(&statsLocal, "local", false, "Never contact the daemon")
	statsCmd.Flags().StringVarP(&statsFormat, "format", "f", "text", "Output format (text, json)")

	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()

	var stats *engine.Stats
	fromDaemon := false

	if addr := daemonAddr(statsRemote, cfg); addr != "" && !statsLocal {
		stats = &engine.Stats{}
		if err := fetchDaemon(addr, "/api/stats", stats); err != nil {
			log.Debug().Err(err).Msg("Daemon unreachable, computing local stats")
			stats = nil
		} else {
			fromDaemon = true
		}
	}

	if stats == nil {
		store := hook.NewStore(cfg.Hooks.Dir)
		if err := store.Load(); err != nil {
			return fmt.Errorf("loading hooks: %w", err)
		}
		stats = engine.Collect(store.List(hook.ListFilter{}), nil)
	}

	if statsFormat == "json" {
		return printJSON(stats)
	}

	fmt.Printf("Hooks:        %d (%d enabled, %d disabled)\n",
		stats.TotalHooks, stats.EnabledHooks, stats.DisabledHooks)

	if len(stats.ByCategory) > 0 {
		categories := make([]string, 0, len(stats.ByCategory))
		for c := range stats.ByCategory {
			categories = append(categories, c)
		}
		sort.Strings(categories)

		fmt.Println("Categories:")
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		for _, c := range categories {
			fmt.Fprintf(w, "  %s\t%d\n", c, stats.ByCategory[c])
		}
		w.Flush()
	}

	fmt.Printf("Runs:         %d\n", stats.TotalRuns)
	if stats.TotalRuns > 0 {
		fmt.Printf("Success rate: %.1f%%\n", stats.SuccessRate*100)
		fmt.Printf("Last run:     %s\n", stats.LastRun.Format(time.RFC3339))
	} else if !fromDaemon {
		fmt.Println("Run counters require a running daemon (relay daemon).")
	}
	return nil
}
