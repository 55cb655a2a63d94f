// Package config loads pipeline configuration from a YAML file, .env,
// and QAFLOW_-prefixed environment variables into an explicit struct.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the full pipeline configuration. All wiring reads from this
// struct; nothing reaches into viper afterwards.
type Config struct {
	Provider string `mapstructure:"provider"`
	Model    string `mapstructure:"model"`
	APIKey   string `mapstructure:"api_key"`
	Verbose  bool   `mapstructure:"verbose"`
	LogFile  string `mapstructure:"log_file"`

	Tracker  TrackerConfig  `mapstructure:"tracker"`
	Store    StoreConfig    `mapstructure:"store"`
	Queue    QueueConfig    `mapstructure:"queue"`
	Executor ExecutorConfig `mapstructure:"executor"`
	Notify   NotifyConfig   `mapstructure:"notify"`
	Server   ServerConfig   `mapstructure:"server"`
	Defects  DefectsConfig  `mapstructure:"defects"`
	Batch    BatchConfig    `mapstructure:"batch"`
}

type TrackerConfig struct {
	URL      string `mapstructure:"url"`
	Username string `mapstructure:"username"`
	Token    string `mapstructure:"token"`
	Project  string `mapstructure:"project"`
	Query    string `mapstructure:"query"`
}

type StoreConfig struct {
	Backend   string `mapstructure:"backend"` // fs or minio
	Dir       string `mapstructure:"dir"`
	Endpoint  string `mapstructure:"endpoint"`
	Bucket    string `mapstructure:"bucket"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

type QueueConfig struct {
	Backend     string        `mapstructure:"backend"` // sqlite or postgres
	DSN         string        `mapstructure:"dsn"`
	Visibility  time.Duration `mapstructure:"visibility"`
	MaxAttempts int           `mapstructure:"max_attempts"`
}

type ExecutorConfig struct {
	Mode          string        `mapstructure:"mode"` // local or docker
	Image         string        `mapstructure:"image"`
	RunnerCommand string        `mapstructure:"runner_command"`
	Timeout       time.Duration `mapstructure:"timeout"`
	PollInterval  time.Duration `mapstructure:"poll_interval"`
}

type NotifyConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	SlackWebhook string `mapstructure:"slack_webhook"`
	SlackToken   string `mapstructure:"slack_token"`
	SlackChannel string `mapstructure:"slack_channel"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

type DefectsConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Comment bool `mapstructure:"comment"`
}

type BatchConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

// Load reads configuration from the given file (or ./config.yaml when
// empty), a .env file if present, and QAFLOW_ environment variables.
func Load(cfgFile string) (*Config, error) {
	// explicit .env loading; a missing file is fine
	_ = godotenv.Load()

	v := viper.New()
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigType("yaml")
		v.SetConfigName("config")
	}

	v.SetEnvPrefix("QAFLOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// A missing default config file is not an error; a broken
		// explicitly named one is.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && cfgFile != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("provider", "openai")
	v.SetDefault("model", "gpt-4o")
	v.SetDefault("verbose", false)

	v.SetDefault("tracker.query", `labels = "needs-qa" AND status = "Ready for QA"`)

	v.SetDefault("store.backend", "fs")
	v.SetDefault("store.dir", "./artifacts")
	v.SetDefault("store.bucket", "qaflow-artifacts")
	v.SetDefault("store.use_ssl", true)

	v.SetDefault("queue.backend", "sqlite")
	v.SetDefault("queue.dsn", "./qaflow.db")
	v.SetDefault("queue.visibility", 5*time.Minute)
	v.SetDefault("queue.max_attempts", 5)

	v.SetDefault("executor.mode", "local")
	v.SetDefault("executor.image", "mcr.microsoft.com/playwright:v1.48.0-jammy")
	v.SetDefault("executor.runner_command", "npx playwright test {script}")
	v.SetDefault("executor.timeout", 10*time.Minute)
	v.SetDefault("executor.poll_interval", 2*time.Second)

	v.SetDefault("notify.enabled", false)
	v.SetDefault("notify.slack_channel", "#qa-runs")

	v.SetDefault("server.addr", ":8080")

	v.SetDefault("defects.enabled", false)
	v.SetDefault("defects.comment", true)

	v.SetDefault("batch.interval", 15*time.Minute)
}
