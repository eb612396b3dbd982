package cli

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/watzon/relay/internal/archive"
	"github.com/watzon/relay/internal/hook"
)

var (
	transferCompression string
	importOverwrite     bool
)

var hooksExportCmd = &cobra.Command{
	Use:   "export <file>",
	Short: "Export hooks to an archive",
	Long: `Bundle every hook document into a tar archive.

Compression is inferred from the file extension (.tar.gz, .tgz,
.tar.zst, or plain .tar) and can be forced with --compression.

Examples:
  relay hooks export hooks.tar.gz
  relay hooks export hooks.tar.zst
  relay hooks export - --compression gzip > hooks.tar.gz`,
	Args: cobra.ExactArgs(1),
	RunE: runHooksExport,
}

var hooksImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import hooks from an archive",
	Long: `Install hook documents from an archive produced by export.

Hooks that already exist are skipped unless --overwrite is set.`,
	Args: cobra.ExactArgs(1),
	RunE: runHooksImport,
}

func init() {
	hooksExportCmd.Flags().StringVar(&transferCompression, "compression", "", "Compression type (gzip, zstd; default from extension)")
	hooksImportCmd.Flags().StringVar(&transferCompression, "compression", "", "Compression type (gzip, zstd; default from extension)")
	hooksImportCmd.Flags().BoolVar(&importOverwrite, "overwrite", false, "Replace hooks that already exist")

	hooksCmd.AddCommand(hooksExportCmd)
	hooksCmd.AddCommand(hooksImportCmd)
}

func transferCompressionFor(path string) string {
	if transferCompression != "" {
		return transferCompression
	}
	return archive.DetectCompression(path)
}

func runHooksExport(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}

	target := args[0]
	out := os.Stdout
	if target != "-" {
		f, err := os.Create(target)
		if err != nil {
			return fmt.Errorf("creating archive file: %w", err)
		}
		defer f.Close()
		out = f
	}

	hooks := store.List(hook.ListFilter{})
	if err := archive.Export(out, hooks, transferCompressionFor(target)); err != nil {
		return err
	}

	if target != "-" {
		fmt.Printf("✓ Exported %d hooks to %s\n", len(hooks), target)
	}
	return nil
}

func runHooksImport(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}

	target := args[0]
	in := os.Stdin
	if target != "-" {
		f, err := os.Open(target)
		if err != nil {
			return fmt.Errorf("opening archive file: %w", err)
		}
		defer f.Close()
		in = f
	}

	hooks, err := archive.Import(in, transferCompressionFor(target))
	if err != nil {
		return err
	}

	installed, skipped := 0, 0
	for _, h := range hooks {
		if _, err := store.Get(h.ID); err == nil && !importOverwrite {
			log.Warn().Str("id", h.ID).Msg("Hook already exists, skipping (use --overwrite to replace)")
			skipped++
			continue
		}

		if err := store.Save(h); err != nil {
			log.Warn().Err(err).Str("id", h.ID).Msg("Skipping invalid hook")
			skipped++
			continue
		}
		installed++
	}

	fmt.Printf("✓ Imported %d hooks (%d skipped)\n", installed, skipped)
	return nil
}
