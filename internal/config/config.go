package config

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	App      AppConfig      `mapstructure:"app" validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	Task     TaskConfig     `mapstructure:"task" validate:"required"`
	Sentry   SentryConfig   `mapstructure:"sentry"`
}

// AppConfig contains application-wide settings. The application name is
// used as the first segment of every broker key, so two deployments with
// different names never see each other's queues.
type AppConfig struct {
	Name     string `mapstructure:"name" validate:"required"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required,url"`

	PoolMinConns          int  `mapstructure:"pool_min_conns" validate:"gte=0"`
	PoolMaxConns          int  `mapstructure:"pool_max_conns" validate:"required,gt=0,gtefield=PoolMinConns"`
	AcquireTimeoutSeconds int  `mapstructure:"acquire_timeout_seconds" validate:"gte=0"`
	PrePing               bool `mapstructure:"pre_ping"`
}

// TaskConfig contains the background task queue settings.
type TaskConfig struct {
	// BrokerURL is the Redis connection string for the task broker.
	BrokerURL string `mapstructure:"broker_url" validate:"required,url"`

	// QueueName identifies the queue this process produces to and
	// consumes from. The health check fails when the broker reports a
	// different name.
	QueueName string `mapstructure:"queue_name" validate:"required"`

	// WorkerCount is the number of concurrent job-processing goroutines.
	WorkerCount int `mapstructure:"worker_count" validate:"required,gt=0"`

	// RefreshStorySchedule is the cron expression for the periodic
	// story refresh fan-out.
	RefreshStorySchedule string `mapstructure:"refresh_story_schedule" validate:"required"`

	// RuntimeTimeoutSeconds bounds the execution of a single job. Jobs
	// stuck in processing longer than this are re-enqueued.
	RuntimeTimeoutSeconds int `mapstructure:"runtime_timeout_seconds" validate:"required,gt=0"`
}

// SentryConfig contains error reporting settings. Enabling reporting
// without a DSN is a configuration error.
type SentryConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	DSN     string `mapstructure:"dsn" validate:"required_if=Enabled true"`
}
