package main

import (
	"context"
	"fmt"
	"strings"

	"qaflow/internal/agent"
	"qaflow/internal/config"
	"qaflow/internal/notify"
	"qaflow/internal/queue"
	"qaflow/internal/sandbox"
	"qaflow/internal/store"
	"qaflow/internal/tracker"
)

// buildStore creates the artifact store named by the config.
func buildStore(ctx context.Context, cfg *config.Config) (store.ArtifactStore, error) {
	switch cfg.Store.Backend {
	case "", "fs":
		return store.NewFSStore(cfg.Store.Dir)
	case "minio", "s3":
		return store.NewMinioStore(ctx, store.MinioConfig{
			Endpoint:  cfg.Store.Endpoint,
			Bucket:    cfg.Store.Bucket,
			AccessKey: cfg.Store.AccessKey,
			SecretKey: cfg.Store.SecretKey,
			UseSSL:    cfg.Store.UseSSL,
		})
	default:
		return nil, fmt.Errorf("unknown store backend: %s", cfg.Store.Backend)
	}
}

// buildQueue opens the named pipeline queue.
func buildQueue(cfg *config.Config, name string) (queue.Queue, error) {
	return queue.New(name, queue.Config{
		Backend:     cfg.Queue.Backend,
		DSN:         cfg.Queue.DSN,
		Visibility:  cfg.Queue.Visibility,
		MaxAttempts: cfg.Queue.MaxAttempts,
	})
}

// buildAgent creates the model client.
func buildAgent(cfg *config.Config) (agent.Agent, error) {
	return agent.NewAgent(cfg.Provider, cfg.APIKey, cfg.Model)
}

// buildSandbox picks the execution isolation mode.
func buildSandbox(cfg *config.Config) (sandbox.Sandbox, error) {
	switch cfg.Executor.Mode {
	case "", "local":
		return sandbox.NewLocalSandbox(), nil
	case "docker":
		return sandbox.NewDockerSandbox(cfg.Executor.Image)
	default:
		return nil, fmt.Errorf("unknown executor mode: %s", cfg.Executor.Mode)
	}
}

// buildNotifier returns nil when notifications are disabled.
func buildNotifier(cfg *config.Config) notify.Notifier {
	if !cfg.Notify.Enabled {
		return nil
	}
	if cfg.Notify.SlackToken != "" {
		return notify.NewSlackAPINotifier(cfg.Notify.SlackToken, cfg.Notify.SlackChannel)
	}
	if cfg.Notify.SlackWebhook != "" {
		return notify.NewSlackWebhookNotifier(cfg.Notify.SlackWebhook)
	}
	return nil
}

// buildTracker creates the work item tracker client.
func buildTracker(cfg *config.Config) (tracker.Tracker, error) {
	if cfg.Tracker.URL == "" {
		return nil, fmt.Errorf("tracker.url is not configured")
	}
	return tracker.NewJiraClient(cfg.Tracker.URL, cfg.Tracker.Username, cfg.Tracker.Token, cfg.Tracker.Project), nil
}

// runnerCommand splits the configured runner command line.
func runnerCommand(cfg *config.Config) []string {
	return strings.Fields(cfg.Executor.RunnerCommand)
}
