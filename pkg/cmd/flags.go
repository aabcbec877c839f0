package cmd

import (
	"errors"
	"io/fs"
	"time"

	"github.com/dukex/orderflow/pkg/engine"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"
)

// LoadEnv reads .env files into the environment without overriding
// variables that are already set. Missing files are ignored.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}

	for _, file := range files {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}

	return nil
}

// RuntimeFlags are the flags shared by the API and the worker.
func RuntimeFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "database-url",
			Usage:    "Database connection URL for persistence (file://path or postgres://...)",
			Required: true,
			Sources:  cli.EnvVars("DATABASE_URL"),
		},
		&cli.StringFlag{
			Name:    "event-bus",
			Usage:   "Event bus type (gochannel, kafka)",
			Value:   "gochannel",
			Sources: cli.EnvVars("EVENT_BUS_TYPE"),
		},
		&cli.StringFlag{
			Name:    "plugins-path",
			Usage:   "Path to the directory containing action plugins",
			Value:   "./plugins",
			Sources: cli.EnvVars("PLUGINS_PATH"),
		},
		&cli.StringFlag{
			Name:    "redis-url",
			Usage:   "Redis URL for assignment records (in-memory when empty)",
			Sources: cli.EnvVars("REDIS_URL"),
		},
		&cli.StringFlag{
			Name:    "records-api-url",
			Usage:   "Base URL of the records API used by update_record (log only when empty)",
			Sources: cli.EnvVars("RECORDS_API_URL"),
		},
		&cli.StringFlag{
			Name:    "notify-webhook-url",
			Usage:   "Email and SMS gateway URL (log only when empty)",
			Sources: cli.EnvVars("NOTIFY_WEBHOOK_URL"),
		},
		&cli.IntFlag{
			Name:    "max-concurrent-executions",
			Usage:   "Executions running at once",
			Value:   engine.DefaultMaxConcurrent,
			Sources: cli.EnvVars("MAX_CONCURRENT_EXECUTIONS"),
		},
		&cli.DurationFlag{
			Name:    "definition-cache-ttl",
			Usage:   "How long active workflow definitions are cached (0 disables)",
			Value:   5 * time.Second,
			Sources: cli.EnvVars("DEFINITION_CACHE_TTL"),
		},
		&cli.BoolFlag{
			Name:    "otel-enabled",
			Usage:   "Export traces over OTLP",
			Sources: cli.EnvVars("OTEL_ENABLED"),
		},
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "Log level (debug, info, warn, error)",
			Value:   "info",
			Sources: cli.EnvVars("LOG_LEVEL"),
		},
	}
}

// SchedulerIntervalFlag sets how often cron triggers and waits are checked.
func SchedulerIntervalFlag() cli.Flag {
	return &cli.DurationFlag{
		Name:    "scheduler-interval",
		Usage:   "How often cron triggers and elapsed waits are checked",
		Value:   15 * time.Second,
		Sources: cli.EnvVars("SCHEDULER_INTERVAL"),
	}
}

// RuntimeConfigFrom reads the RuntimeFlags of command.
func RuntimeConfigFrom(command *cli.Command, service string) RuntimeConfig {
	return RuntimeConfig{
		Service:     service,
		DatabaseURL: command.String("database-url"),
		EventBus:    command.String("event-bus"),
		PluginsPath: command.String("plugins-path"),
		Collaborators: Collaborators{
			RedisURL:         command.String("redis-url"),
			RecordsAPIURL:    command.String("records-api-url"),
			NotifyWebhookURL: command.String("notify-webhook-url"),
		},
		MaxConcurrent: int64(command.Int("max-concurrent-executions")),
		CacheTTL:      command.Duration("definition-cache-ttl"),
		OTelEnabled:   command.Bool("otel-enabled"),
	}
}
