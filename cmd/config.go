package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/inkwell-ai/recall/pkg/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage Recall configuration",
	Long:  `Commands for creating and validating recall.yaml configuration files.`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate a recall.yaml template",
	Long: `Creates a recall.yaml configuration file with all available options
and their default values.

Example:
  recall config init
  recall config init --output /etc/recall/recall.yaml`,
	RunE: runConfigInit,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate [file]",
	Short: "Validate a recall.yaml configuration file",
	Long: `Reads and validates a configuration file, reporting any errors.

Example:
  recall config validate
  recall config validate recall.yaml
  recall config validate --config /etc/recall/recall.yaml`,
	RunE: runConfigValidate,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Long: `Resolves the configuration as a running process would see it
(file, environment interpolation, defaults) and prints the result.`,
	RunE: runConfigShow,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configValidateCmd)
	configCmd.AddCommand(configShowCmd)

	configInitCmd.Flags().StringP("output", "o", "recall.yaml", "output file path")
	configInitCmd.Flags().Bool("stdout", false, "print to stdout instead of file")
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	toStdout, _ := cmd.Flags().GetBool("stdout")
	output, _ := cmd.Flags().GetString("output")

	template := config.GenerateTemplate()

	if toStdout {
		fmt.Print(template)
		return nil
	}

	// Check if file already exists
	if _, err := os.Stat(output); err == nil {
		return fmt.Errorf("file %s already exists (use --stdout to print to stdout)", output)
	}

	if err := os.WriteFile(output, []byte(template), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Fprintf(os.Stderr, "Created %s\n", output)
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	var cfgPath string

	if len(args) > 0 {
		cfgPath = args[0]
	} else if cfgFile != "" {
		cfgPath = cfgFile
	} else {
		// Search default locations
		candidates := []string{
			"recall.yaml",
			".recall.yaml",
		}
		home, err := os.UserHomeDir()
		if err == nil {
			candidates = append(candidates,
				home+"/.recall.yaml",
				home+"/recall.yaml",
			)
		}

		for _, c := range candidates {
			if _, err := os.Stat(c); err == nil {
				cfgPath = c
				break
			}
		}

		if cfgPath == "" {
			return fmt.Errorf("no config file found (try: recall config validate <file>)")
		}
	}

	cfg, err := config.LoadFromFile(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Validation failed for %s:\n%v\n", cfgPath, err)
		os.Exit(1)
	}

	_ = cfg
	fmt.Fprintf(os.Stderr, "Config file %s is valid\n", cfgPath)
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "cache:\n")
	fmt.Fprintf(out, "  max_entries: %d\n", cfg.Cache.MaxEntries)
	fmt.Fprintf(out, "  ttl: %s\n", cfg.Cache.TTL)
	fmt.Fprintf(out, "  similarity_threshold: %g\n", cfg.Cache.SimilarityThreshold)
	fmt.Fprintf(out, "store:\n")
	fmt.Fprintf(out, "  backend: %s\n", cfg.Store.Backend)
	if cfg.Store.Backend == "redis" {
		fmt.Fprintf(out, "  redis:\n")
		fmt.Fprintf(out, "    url: %s\n", cfg.Store.Redis.URL)
		fmt.Fprintf(out, "    key_prefix: %s\n", cfg.Store.Redis.KeyPrefix)
		fmt.Fprintf(out, "    pool_size: %d\n", cfg.Store.Redis.PoolSize)
	}
	fmt.Fprintf(out, "semantic:\n")
	fmt.Fprintf(out, "  enabled: %t\n", cfg.Semantic.Enabled)
	if cfg.Semantic.Enabled {
		fmt.Fprintf(out, "  backend: %s\n", cfg.Semantic.Backend)
	}
	fmt.Fprintf(out, "embedding:\n")
	fmt.Fprintf(out, "  provider: %s\n", cfg.Embedding.Provider)
	fmt.Fprintf(out, "  model: %s\n", cfg.Embedding.Model)
	fmt.Fprintf(out, "telemetry:\n")
	fmt.Fprintf(out, "  metrics_addr: %q\n", cfg.Telemetry.MetricsAddr)
	fmt.Fprintf(out, "  tracing_enabled: %t\n", cfg.Telemetry.Tracing.Enabled)
	return nil
}
