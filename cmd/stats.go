package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/inkwell-ai/recall/pkg/store"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache contents and accumulated savings",
	Long: `Connects to the configured response store and summarizes what it
holds: entry count, accumulated hits, and the dollars those hits saved.

Example:
  recall stats
  recall stats --config /etc/recall/recall.yaml`,
	RunE: runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
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
		n, err := st.Len(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Entries: %d\n", n)
		return nil
	}

	var (
		entries    int64
		totalHits  int64
		saved      float64
		oldest     time.Time
		lastAccess time.Time
	)
	err = lister.Entries(ctx, func(e store.Entry) error {
		entries++
		totalHits += e.HitCount
		saved += e.CostSaved * float64(e.HitCount)
		if oldest.IsZero() || e.CreatedAt.Before(oldest) {
			oldest = e.CreatedAt
		}
		if e.LastAccessedAt.After(lastAccess) {
			lastAccess = e.LastAccessedAt
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to scan store: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Backend:       %s\n", cfg.Store.Backend)
	fmt.Fprintf(out, "Entries:       %d\n", entries)
	fmt.Fprintf(out, "Total hits:    %d\n", totalHits)
	fmt.Fprintf(out, "Dollars saved: $%.4f\n", saved)
	if !oldest.IsZero() {
		fmt.Fprintf(out, "Oldest entry:  %s\n", oldest.Format(time.RFC3339))
	}
	if !lastAccess.IsZero() {
		fmt.Fprintf(out, "Last access:   %s\n", lastAccess.Format(time.RFC3339))
	}
	return nil
}
