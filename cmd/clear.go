package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all cached responses",
	Long: `Clears the configured response store and, when semantic matching is
enabled, the vector index alongside it.

Example:
  recall clear
  recall clear --yes`,
	RunE: runClear,
}

func init() {
	rootCmd.AddCommand(clearCmd)

	clearCmd.Flags().BoolP("yes", "y", false, "skip confirmation prompt")
}

func runClear(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if yes, _ := cmd.Flags().GetBool("yes"); !yes {
		fmt.Fprintf(os.Stderr, "Clear all cached responses from the %s store? [y/N] ", cfg.Store.Backend)
		line, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if ans := strings.ToLower(strings.TrimSpace(line)); ans != "y" && ans != "yes" {
			fmt.Fprintln(os.Stderr, "Aborted")
			return nil
		}
	}

	st, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close()

	if err := st.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear store: %w", err)
	}

	ix, err := openIndex(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open semantic index: %w", err)
	}
	if ix != nil {
		defer ix.Close()
		if err := ix.Clear(ctx); err != nil {
			return fmt.Errorf("failed to clear semantic index: %w", err)
		}
	}

	fmt.Fprintln(os.Stderr, "Cache cleared")
	return nil
}
