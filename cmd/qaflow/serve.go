package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"qaflow/internal/metrics"
	"qaflow/internal/status"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the run status API and metrics",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		s, err := buildStore(cmd.Context(), cfg)
		if err != nil {
			return err
		}

		logger := slog.Default()
		agg := status.NewAggregator(s, logger)
		srv := status.NewServer(agg, logger, metrics.New())
		return srv.ListenAndServe(cfg.Server.Addr)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
