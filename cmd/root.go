package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "recall",
	Short: "Recall - Response cache for LLM calls with semantic matching",
	Long: `Recall memoizes expensive LLM calls. Identical requests are served
from storage; optionally, near-identical prompts are matched through
embedding similarity. Every hit is accounted as dollars not spent.

Features:
  - Deterministic request fingerprinting (prompt + decoding parameters)
  - In-process or Redis-backed response store with TTL and LRU bounds
  - Optional semantic matching via a local, Qdrant, or Pinecone index
  - Cost accounting from a per-model price table

Environment Variables:
  OPENAI_API_KEY      For prompt embedding (semantic matching)
  REDIS_URL           For the Redis store backend
  VECTOR_DB_API_KEY   For Qdrant or Pinecone index backends`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.recall.yaml)")
	rootCmd.PersistentFlags().Bool("verbose", false, "enable verbose output")

	// Bind to viper
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
		}
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".recall")
	}

	// Read environment variables
	viper.SetEnvPrefix("RECALL")
	viper.AutomaticEnv()

	// Read config file if it exists
	if err := viper.ReadInConfig(); err == nil {
		if viper.GetBool("verbose") {
			fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
		}
	}
}
