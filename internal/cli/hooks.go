package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/watzon/relay/internal/hook"
)

var (
	hooksFormat      string
	hooksGetFormat   string
	hooksCategory    string
	hooksTag         string
	hooksEnabledOnly bool
	hooksSearch      string

	createTemplate    string
	createFile        string
	createName        string
	createDescription string
	createCategory    string
	createTags        []string
	createCommands    []string
)

var hooksCmd = &cobra.Command{
	Use:   "hooks",
	Short: "Manage hook definitions",
	Long: `Manage the hook registry.

Hooks live as YAML documents in the hooks directory, one file per hook.

Examples:
  relay hooks list                       List all hooks
  relay hooks get my-hook                Show one hook definition
  relay hooks create --template test-on-save
  relay hooks disable my-hook            Turn a hook off without deleting it
  relay hooks export backup.tar.gz       Bundle every hook into an archive`,
}

var hooksListCmd = &cobra.Command{
	Use:   "list",
	Short: "List hooks",
	RunE:  runHooksList,
}

var hooksGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Show a hook definition",
	Args:  cobra.ExactArgs(1),
	RunE:  runHooksGet,
}

var hooksCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a hook",
	Long: `Create a hook from a template, a definition file, or inline flags.

A hook needs at least one action. Provide one via --template, --file,
or one or more --command flags (each becomes a shell action).

Examples:
  relay hooks create --template format-on-save
  relay hooks create --file ./my-hook.yaml
  relay hooks create --name "Build" --description "Builds on demand" --command "make build"`,
	RunE: runHooksCreate,
}

var hooksDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a hook",
	Args:  cobra.ExactArgs(1),
	RunE:  runHooksDelete,
}

var hooksEnableCmd = &cobra.Command{
	Use:   "enable <id>",
	Short: "Enable a hook",
	Args:  cobra.ExactArgs(1),
	RunE:  runHooksEnable,
}

var hooksDisableCmd = &cobra.Command{
	Use:   "disable <id>",
	Short: "Disable a hook",
	Args:  cobra.ExactArgs(1),
	RunE:  runHooksDisable,
}

var hooksValidateCmd = &cobra.Command{
	Use:   "validate <id-or-file>",
	Short: "Validate a hook definition",
	Long: `Validate a hook by registry id or by document path.

Errors make the hook ineligible for loading; warnings are advisory.`,
	Args: cobra.ExactArgs(1),
	RunE: runHooksValidate,
}

func init() {
	hooksListCmd.Flags().StringVarP(&hooksFormat, "format", "f", "table", "Output format (table, json)")
	hooksListCmd.Flags().StringVar(&hooksCategory, "category", "", "Filter by category")
	hooksListCmd.Flags().StringVar(&hooksTag, "tag", "", "Filter by tag")
	hooksListCmd.Flags().BoolVar(&hooksEnabledOnly, "enabled", false, "Show enabled hooks only")
	hooksListCmd.Flags().StringVar(&hooksSearch, "search", "", "Filter by name or description substring")

	hooksGetCmd.Flags().StringVarP(&hooksGetFormat, "format", "f", "yaml", "Output format (yaml, json)")

	hooksCreateCmd.Flags().StringVarP(&createTemplate, "template", "t", "", "Built-in template id (see: relay templates)")
	hooksCreateCmd.Flags().StringVar(&createFile, "file", "", "Hook definition file to install")
	hooksCreateCmd.Flags().StringVar(&createName, "name", "", "Hook name")
	hooksCreateCmd.Flags().StringVar(&createDescription, "description", "", "Hook description")
	hooksCreateCmd.Flags().StringVar(&createCategory, "category", "", "Hook category")
	hooksCreateCmd.Flags().StringSliceVar(&createTags, "tag", nil, "Hook tag (repeatable)")
	hooksCreateCmd.Flags().StringArrayVar(&createCommands, "command", nil, "Shell action to run (repeatable)")

	hooksCmd.AddCommand(hooksListCmd)
	hooksCmd.AddCommand(hooksGetCmd)
	hooksCmd.AddCommand(hooksCreateCmd)
	hooksCmd.AddCommand(hooksDeleteCmd)
	hooksCmd.AddCommand(hooksEnableCmd)
	hooksCmd.AddCommand(hooksDisableCmd)
	hooksCmd.AddCommand(hooksValidateCmd)

	rootCmd.AddCommand(hooksCmd)
}

func openStore() (*hook.Store, error) {
	cfg := loadConfig()
	store := hook.NewStore(cfg.Hooks.Dir)
	if err := store.Load(); err != nil {
		return nil, err
	}
	return store, nil
}

func runHooksList(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}

	filter := hook.ListFilter{
		Category: hooksCategory,
		Tag:      hooksTag,
		Search:   hooksSearch,
	}
	if hooksEnabledOnly {
		enabled := true
		filter.Enabled = &enabled
	}

	hooks := store.List(filter)
	if hooksFormat == "json" {
		return printJSON(hooks)
	}

	if len(hooks) == 0 {
		fmt.Println("No hooks found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tTRIGGER\tENABLED\tCATEGORY")
	for _, h := range hooks {
		fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%s\n",
			h.ID, h.Name, describeTrigger(&h.Trigger), h.Enabled, h.Category)
	}
	return w.Flush()
}

// describeTrigger renders a trigger with its qualifier for listings.
func describeTrigger(t *hook.Trigger) string {
	switch t.Type {
	case hook.TriggerFileChange:
		return fmt.Sprintf("%s %s", t.Type, t.Pattern)
	case hook.TriggerSchedule:
		return fmt.Sprintf("%s %s", t.Type, t.Schedule)
	case hook.TriggerGitEvent, hook.TriggerLifecycle, hook.TriggerSpecLifecycle:
		if t.Event != "" {
			return fmt.Sprintf("%s %s", t.Type, t.Event)
		}
	case hook.TriggerPostCommand:
		if t.Command != "" {
			return fmt.Sprintf("%s %s", t.Type, t.Command)
		}
	}
	return string(t.Type)
}

func runHooksGet(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}

	h, err := store.Get(args[0])
	if err != nil {
		return err
	}

	if hooksGetFormat == "json" {
		return printJSON(h)
	}

	data, err := yaml.Marshal(h)
	if err != nil {
		return fmt.Errorf("serializing hook: %w", err)
	}
	fmt.Print(string(data))
	return nil
}

func runHooksCreate(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}

	if createFile != "" {
		return createFromFile(store, createFile)
	}

	if createTemplate == "" && len(createCommands) == 0 {
		return fmt.Errorf("a hook needs at least one action: use --template, --file, or --command")
	}

	opts := hook.CreateOptions{
		Template:    createTemplate,
		Name:        createName,
		Description: createDescription,
		Category:    createCategory,
		Tags:        createTags,
	}
	for i, command := range createCommands {
		opts.Actions = append(opts.Actions, hook.Action{
			ID:      fmt.Sprintf("cmd-%d", i+1),
			Type:    hook.ActionShell,
			Command: command,
		})
	}

	h, err := store.Create(opts)
	if err != nil {
		return err
	}

	if result := hook.Validate(h); !result.Valid() {
		// The document is on disk but will be skipped at load time.
		return fmt.Errorf("hook %s created but invalid: %s", h.ID, strings.Join(result.Errors, "; "))
	} else if len(result.Warnings) > 0 {
		for _, warning := range result.Warnings {
			fmt.Printf("  warning: %s\n", warning)
		}
	}

	fmt.Printf("✓ Created hook %s (%s)\n", h.ID, h.Name)
	return nil
}

func createFromFile(store *hook.Store, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading definition file: %w", err)
	}

	h := &hook.Hook{}
	if err := yaml.Unmarshal(data, h); err != nil {
		return fmt.Errorf("parsing definition file: %w", err)
	}
	if h.ID == "" {
		base := filepath.Base(path)
		h.ID = strings.TrimSuffix(base, filepath.Ext(base))
	}

	// Unlike import --overwrite, create never replaces a hook.
	if _, err := store.Get(h.ID); err == nil {
		return fmt.Errorf("%w: %s", hook.ErrExists, h.ID)
	}

	if err := store.Save(h); err != nil {
		return err
	}

	fmt.Printf("✓ Installed hook %s (%s)\n", h.ID, h.Name)
	return nil
}

func runHooksDelete(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}

	if err := store.Delete(args[0]); err != nil {
		return err
	}
	fmt.Printf("✓ Deleted hook %s\n", args[0])
	return nil
}

func runHooksEnable(cmd *cobra.Command, args []string) error {
	return setEnabled(args[0], true)
}

func runHooksDisable(cmd *cobra.Command, args []string) error {
	return setEnabled(args[0], false)
}

func setEnabled(id string, enabled bool) error {
	store, err := openStore()
	if err != nil {
		return err
	}

	h, err := store.Toggle(id, &enabled)
	if err != nil {
		return err
	}

	state := "disabled"
	if h.Enabled {
		state = "enabled"
	}
	fmt.Printf("✓ Hook %s %s\n", h.ID, state)
	return nil
}

func runHooksValidate(cmd *cobra.Command, args []string) error {
	target := args[0]

	h, err := resolveHook(target)
	if err != nil {
		return err
	}

	result := hook.Validate(h)
	for _, e := range result.Errors {
		fmt.Printf("  error: %s\n", e)
	}
	for _, w := range result.Warnings {
		fmt.Printf("  warning: %s\n", w)
	}

	if !result.Valid() {
		return fmt.Errorf("hook %s is invalid (%d errors)", h.ID, len(result.Errors))
	}
	fmt.Printf("✓ Hook %s is valid\n", h.ID)
	return nil
}

// resolveHook loads a hook from a document path when one exists,
// falling back to a registry lookup.
func resolveHook(target string) (*hook.Hook, error) {
	if _, err := os.Stat(target); err == nil {
		data, err := os.ReadFile(target)
		if err != nil {
			return nil, fmt.Errorf("reading definition file: %w", err)
		}
		h := &hook.Hook{}
		if err := yaml.Unmarshal(data, h); err != nil {
			return nil, fmt.Errorf("parsing definition file: %w", err)
		}
		if h.ID == "" {
			base := filepath.Base(target)
			h.ID = strings.TrimSuffix(base, filepath.Ext(base))
		}
		return h, nil
	}

	store, err := openStore()
	if err != nil {
		return nil, err
	}
	return store.Get(target)
}
