package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Load reads configuration from environment variables and an optional
// config.yaml in the working directory. Environment variables take
// precedence over values from config files. Returns a populated Config
// struct or an error if loading or validation fails.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// A missing config file is fine; the environment carries the rest.
	}

	v.SetEnvPrefix("STORIES")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "stories-service")
	v.SetDefault("app.log_level", "info")

	v.SetDefault("database.pool_min_conns", 2)
	v.SetDefault("database.pool_max_conns", 10)
	v.SetDefault("database.acquire_timeout_seconds", 10)
	v.SetDefault("database.pre_ping", true)

	v.SetDefault("task.queue_name", "default")
	v.SetDefault("task.worker_count", 4)
	v.SetDefault("task.refresh_story_schedule", "0 * * * *")
	v.SetDefault("task.runtime_timeout_seconds", 60)

	v.SetDefault("sentry.enabled", false)
}

// bindEnvVars binds every config key explicitly. AutomaticEnv alone does
// not surface env-only keys through Unmarshal.
func bindEnvVars(v *viper.Viper) {
	keys := []string{
		"app.name",
		"app.log_level",
		"database.url",
		"database.pool_min_conns",
		"database.pool_max_conns",
		"database.acquire_timeout_seconds",
		"database.pre_ping",
		"task.broker_url",
		"task.queue_name",
		"task.worker_count",
		"task.refresh_story_schedule",
		"task.runtime_timeout_seconds",
		"sentry.enabled",
		"sentry.dsn",
	}
	for _, key := range keys {
		// Only errors when no env name can be derived, which cannot
		// happen for literal keys.
		_ = v.BindEnv(key)
	}
}
