package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"

	"janmat/internal/bootstrap/logging"
	"janmat/internal/errs"
)

type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Hosted    HostedConfig    `mapstructure:"hosted"`
	Local     LocalConfig     `mapstructure:"local"`
	Consensus ConsensusConfig `mapstructure:"consensus"`
	Learning  LearningConfig  `mapstructure:"learning"`
	Batch     BatchConfig     `mapstructure:"batch"`
	Server    ServerConfig    `mapstructure:"server"`
	Seeds     SeedsConfig     `mapstructure:"seeds"`
}

type AppConfig struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

// HostedConfig drives the hosted-model extractor: the rate ceiling and quota
// are hard external constraints, not tuning knobs.
type HostedConfig struct {
	Enabled           bool   `mapstructure:"enabled"`
	APIKey            string `mapstructure:"api_key"`
	BaseURL           string `mapstructure:"base_url"`
	Model             string `mapstructure:"model"`
	RequestsPerMinute int    `mapstructure:"requests_per_minute"`
	QuotaCeiling      int    `mapstructure:"quota_ceiling"`
	TimeoutSeconds    int    `mapstructure:"timeout_seconds"`
	MaxRetries        int    `mapstructure:"max_retries"`
	WaitForSlot       bool   `mapstructure:"wait_for_slot"`
}

type LocalConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	BaseURL        string `mapstructure:"base_url"`
	Model          string `mapstructure:"model"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

type ConsensusConfig struct {
	ReviewThreshold float64 `mapstructure:"review_threshold"`
	HighConfidence  float64 `mapstructure:"high_confidence"`
	MajorityPenalty float64 `mapstructure:"majority_penalty"`
	FallbackPenalty float64 `mapstructure:"fallback_penalty"`
}

type LearningConfig struct {
	PromotionThreshold int `mapstructure:"promotion_threshold"`
}

type BatchConfig struct {
	Workers int `mapstructure:"workers"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

type SeedsConfig struct {
	Dir string `mapstructure:"dir"`
}

func (c HostedConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

func (c LocalConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

func Load(ctx context.Context, configFile string) (Config, error) {
	if ctx == nil {
		return Config{}, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return Config{}, errs.Wrap(err, "check context")
	}

	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.config"))

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("JM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile == "" && errors.As(err, &notFound) {
			// Keep default and env-backed config when no file is provided.
			logging.Warn(logCtx, "config file not found, fallback to defaults and env")
		} else {
			return Config{}, errs.Wrap(err, "read config")
		}
	} else {
		logging.Info(logCtx, "using config file", slog.String("path", v.ConfigFileUsed()))
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errs.Wrap(err, "unmarshal config")
	}

	if err := validate(cfg); err != nil {
		return Config{}, err
	}

	logging.Info(
		logCtx,
		"config loaded",
		slog.String("app", cfg.App.Name),
		slog.String("env", cfg.App.Env),
		slog.Bool("hosted_enabled", cfg.Hosted.Enabled),
		slog.Bool("local_enabled", cfg.Local.Enabled),
		slog.Int("batch_workers", cfg.Batch.Workers),
	)

	return cfg, nil
}

func validate(cfg Config) error {
	if cfg.Database.DSN == "" {
		return errors.New("database.dsn is required")
	}
	if cfg.Hosted.Enabled && cfg.Hosted.RequestsPerMinute <= 0 {
		return errors.New("hosted.requests_per_minute must be positive when hosted is enabled")
	}
	if cfg.Consensus.ReviewThreshold < 0 || cfg.Consensus.ReviewThreshold > 1 {
		return fmt.Errorf("consensus.review_threshold %v out of [0,1]", cfg.Consensus.ReviewThreshold)
	}
	if cfg.Consensus.HighConfidence < 0 || cfg.Consensus.HighConfidence > 1 {
		return fmt.Errorf("consensus.high_confidence %v out of [0,1]", cfg.Consensus.HighConfidence)
	}
	if cfg.Learning.PromotionThreshold < 1 {
		return errors.New("learning.promotion_threshold must be at least 1")
	}
	if cfg.Batch.Workers < 1 {
		return errors.New("batch.workers must be at least 1")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "janmat")
	v.SetDefault("app.env", "local")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "data/janmat.sqlite")

	v.SetDefault("hosted.enabled", false)
	v.SetDefault("hosted.base_url", "")
	v.SetDefault("hosted.model", "gpt-4o-mini")
	v.SetDefault("hosted.requests_per_minute", 10)
	v.SetDefault("hosted.quota_ceiling", 0)
	v.SetDefault("hosted.timeout_seconds", 30)
	v.SetDefault("hosted.max_retries", 3)
	v.SetDefault("hosted.wait_for_slot", true)

	v.SetDefault("local.enabled", false)
	v.SetDefault("local.base_url", "http://localhost:11434")
	v.SetDefault("local.model", "llama3.1")
	v.SetDefault("local.timeout_seconds", 60)

	v.SetDefault("consensus.review_threshold", 0.65)
	v.SetDefault("consensus.high_confidence", 0.8)
	v.SetDefault("consensus.majority_penalty", 0.85)
	v.SetDefault("consensus.fallback_penalty", 0.6)

	v.SetDefault("learning.promotion_threshold", 2)

	v.SetDefault("batch.workers", 4)

	v.SetDefault("server.addr", ":8085")

	v.SetDefault("seeds.dir", "seeds")
}
