package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"qaflow/internal/generator"
	"qaflow/internal/metrics"
	"qaflow/internal/orchestrator"
	"qaflow/internal/queue"
	"qaflow/internal/status"
)

var batchLoop bool

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Run one batch sweep: discover work items and generate test runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		s, err := buildStore(ctx, cfg)
		if err != nil {
			return err
		}
		q, err := buildQueue(cfg, queue.QueueExecute)
		if err != nil {
			return err
		}
		defer q.Close()
		a, err := buildAgent(cfg)
		if err != nil {
			return err
		}
		tr, err := buildTracker(cfg)
		if err != nil {
			return err
		}

		m := metrics.New()
		logger := slog.Default()
		gen := generator.New(a, s, q, logger, m)
		agg := status.NewAggregator(s, logger)
		o := orchestrator.New(tr, gen, agg, buildNotifier(cfg), logger, m, orchestrator.Options{
			Query:          cfg.Tracker.Query,
			FileDefects:    cfg.Defects.Enabled,
			CommentOnItems: cfg.Defects.Comment,
		})

		if batchLoop {
			return o.Run(ctx, cfg.Batch.Interval)
		}

		batch, err := o.RunBatch(ctx)
		if err != nil {
			return err
		}
		out, err := json.MarshalIndent(batch, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(os.Stdout, string(out))
		return nil
	},
}

func init() {
	batchCmd.Flags().BoolVar(&batchLoop, "loop", false, "Keep sweeping on the configured interval")
	rootCmd.AddCommand(batchCmd)
}
