package main

import (
	"context"
	"errors"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"qaflow/internal/executor"
	"qaflow/internal/metrics"
	"qaflow/internal/queue"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Consume the execute queue and run test scripts in the sandbox",
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
		events, err := buildQueue(cfg, queue.QueueEvents)
		if err != nil {
			return err
		}
		defer events.Close()
		sb, err := buildSandbox(cfg)
		if err != nil {
			return err
		}

		logger := slog.Default()
		e := executor.New(s, sb, logger, executor.Options{
			Events:        events,
			RunnerCommand: runnerCommand(cfg),
			Timeout:       cfg.Executor.Timeout,
			Metrics:       metrics.New(),
		})

		c := executor.NewConsumer(q, e, logger, cfg.Executor.PollInterval)
		logger.Info("Worker started", "mode", cfg.Executor.Mode)
		if err := c.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		logger.Info("Worker stopped")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
}
