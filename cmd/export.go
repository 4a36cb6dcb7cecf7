package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/inkwell-ai/recall/pkg/store"
)

var exportCmd = &cobra.Command{
	Use:   "export [file]",
	Short: "Export cached responses as JSON lines",
	Long: `Streams every cached entry from the configured store to a file (or
stdout) as one JSON object per line. Useful for auditing what the cache
holds or for seeding another store.

Example:
  recall export entries.jsonl
  recall export - > entries.jsonl`,
	Args: cobra.MaximumNArgs(1),
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	warnIfEphemeral(cfg)

	st, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close()

	lister, ok := st.(entryLister)
	if !ok {
		return fmt.Errorf("store backend %q does not support export", cfg.Store.Backend)
	}

	out := os.Stdout
	toStdout := len(args) == 0 || args[0] == "-"
	if !toStdout {
		f, err := os.Create(args[0])
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		out = f
	}

	total, err := st.Len(ctx)
	if err != nil {
		return fmt.Errorf("failed to count entries: %w", err)
	}

	// Create progress bar; keep it off stdout when entries go there
	bar := progressbar.NewOptions64(
		total,
		progressbar.OptionSetDescription("Exporting"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("entries"),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionFullWidth(),
		progressbar.OptionSetRenderBlankState(true),
	)

	enc := json.NewEncoder(out)
	var exported int64
	err = lister.Entries(ctx, func(e store.Entry) error {
		if err := enc.Encode(e); err != nil {
			return err
		}
		exported++
		_ = bar.Add(1)
		return nil
	})
	if err != nil {
		return fmt.Errorf("export failed after %d entries: %w", exported, err)
	}
	_ = bar.Finish()

	fmt.Fprintf(os.Stderr, "\nExported %d entries\n", exported)
	return nil
}
