package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"qaflow/internal/status"
)

var statusCmd = &cobra.Command{
	Use:   "status <runID>",
	Short: "Print the aggregated status of a run as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		s, err := buildStore(cmd.Context(), cfg)
		if err != nil {
			return err
		}

		agg := status.NewAggregator(s, slog.Default())
		view, err := agg.GetStatus(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		out, err := json.MarshalIndent(view, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(os.Stdout, string(out))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
