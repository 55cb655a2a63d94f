package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"qaflow/internal/config"
	"qaflow/internal/telemetry"
)

var exit = os.Exit

var (
	cfgFile string
	verbose bool
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "qaflow",
	Short: "Autonomous QA pipeline: generate, execute, and report test runs",
	Long: `qaflow turns tracker work items into exploratory test scenarios and
executable browser test scripts, runs them in an isolated sandbox, and
serves the aggregated results with full evidence.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command. Called once from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose/debug logging")
}

// loadConfig builds the Config honoring the --config and --verbose flags.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if verbose {
		cfg.Verbose = true
	}
	telemetry.InitLogger(cfg.Verbose, cfg.LogFile)
	return cfg, nil
}
