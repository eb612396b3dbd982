package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/watzon/relay/internal/hook"
)

var templatesCmd = &cobra.Command{
	Use:   "templates",
	Short: "List built-in hook templates",
	Long: `List the built-in hook templates available to "relay hooks create".

Examples:
  relay templates
  relay templates show test-on-save`,
	RunE: runTemplatesList,
}

var templatesShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a template definition",
	Args:  cobra.ExactArgs(1),
	RunE:  runTemplatesShow,
}

func init() {
	templatesCmd.AddCommand(templatesShowCmd)
	rootCmd.AddCommand(templatesCmd)
}

func runTemplatesList(cmd *cobra.Command, args []string) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tCATEGORY\tDESCRIPTION")
	for _, t := range hook.Templates() {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", t.ID, t.Name, t.Category, t.Description)
	}
	return w.Flush()
}

func runTemplatesShow(cmd *cobra.Command, args []string) error {
	t, ok := hook.LookupTemplate(args[0])
	if !ok {
		return fmt.Errorf("unknown template: %s (see: relay templates)", args[0])
	}

	data, err := yaml.Marshal(t)
	if err != nil {
		return fmt.Errorf("serializing template: %w", err)
	}
	fmt.Print(string(data))
	return nil
}
