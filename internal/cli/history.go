package cli

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/watzon/relay/internal/engine"
)

var (
	historyRemote string
	historyHook   string
	historyLimit  int
	historyFormat string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent hook executions",
	Long: `Show the daemon's recent hook executions, newest first.

The execution history lives in the relay daemon; start one with
"relay daemon" and point this command at it via daemon.listen in
relay.yaml or the --remote flag.`,
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().StringVar(&historyRemote, "remote", "", "Daemon address to query (default: daemon.listen)")
	historyCmd.Flags().StringVar(&historyHook, "hook", "", "Only show executions of this hook")
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 0, "Maximum entries to show (default 50)")
	historyCmd.Flags().StringVarP(&historyFormat, "format", "f", "table", "Output format (table, json)")

	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()

	addr := daemonAddr(historyRemote, cfg)
	if addr == "" {
		return fmt.Errorf("no daemon address: set daemon.listen in relay.yaml or pass --remote")
	}

	query := url.Values{}
	if historyHook != "" {
		query.Set("hook", historyHook)
	}
	if historyLimit > 0 {
		query.Set("limit", strconv.Itoa(historyLimit))
	}
	path := "/api/history"
	if len(query) > 0 {
		path += "?" + query.Encode()
	}

	var entries []*engine.ExecutionResult
	if err := fetchDaemon(addr, path, &entries); err != nil {
		return err
	}

	if historyFormat == "json" {
		return printJSON(entries)
	}

	if len(entries) == 0 {
		fmt.Println("No executions recorded.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tHOOK\tTRIGGER\tSTATUS\tDURATION")
	for _, e := range entries {
		status := "ok"
		if !e.Success {
			status = "failed"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%dms\n",
			e.Timestamp.Format("2006-01-02 15:04:05"), e.HookID, e.Trigger, status, e.DurationMs)
	}
	return w.Flush()
}
