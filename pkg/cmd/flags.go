package cmd

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/dukex/lakeflow/pkg/config"
	"github.com/dukex/lakeflow/pkg/engine"
	"github.com/dukex/lakeflow/pkg/eventbus"
	"github.com/dukex/lakeflow/pkg/importflow"
	"github.com/dukex/lakeflow/pkg/log"
	"github.com/dukex/lakeflow/pkg/models"
	"github.com/dukex/lakeflow/pkg/otelhelper"
	"github.com/dukex/lakeflow/pkg/tasks/connector"
	"github.com/dukex/lakeflow/pkg/tasks/queue"
	"github.com/dukex/lakeflow/pkg/tasks/status"
	cli "github.com/urfave/cli/v3"
)

// CommonFlags are the flags every lakeflow binary accepts.
func CommonFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Usage:   "Path to the YAML config file (defaults apply when empty)",
			Sources: cli.EnvVars("LAKEFLOW_CONFIG"),
		},
		&cli.StringFlag{
			Name:    "database-url",
			Usage:   "Run persistence URL (file://, memory://, postgres://, sqlite://)",
			Value:   "file://./data/runs",
			Sources: cli.EnvVars("DATABASE_URL"),
		},
		&cli.StringFlag{
			Name:    "event-bus",
			Usage:   "Event bus provider (gochannel, kafka)",
			Value:   "gochannel",
			Sources: cli.EnvVars("EVENT_BUS_TYPE"),
		},
		&cli.StringFlag{
			Name:    "kafka-brokers",
			Usage:   "Comma separated Kafka brokers",
			Value:   "localhost:9092",
			Sources: cli.EnvVars("KAFKA_BROKERS"),
		},
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "Log level (debug, info, warn, error)",
			Value:   "info",
			Sources: cli.EnvVars("LOG_LEVEL"),
		},
		&cli.StringFlag{
			Name:    "log-format",
			Usage:   "Log format (text, json)",
			Value:   "text",
			Sources: cli.EnvVars("LOG_FORMAT"),
		},
	}
}

// ExecutionFlags configure the task backends and the engine of binaries
// that execute runs.
func ExecutionFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "metadata-root",
			Usage:   "Root directory of the metadata objects listed by list-objects",
			Value:   ".",
			Sources: cli.EnvVars("METADATA_ROOT"),
		},
		&cli.StringFlag{
			Name:    "connector-url",
			Usage:   "Base URL of the connector service",
			Sources: cli.EnvVars("CONNECTOR_URL"),
		},
		&cli.StringFlag{
			Name:    "connector-token",
			Usage:   "Bearer token for the connector service",
			Sources: cli.EnvVars("CONNECTOR_TOKEN"),
		},
		&cli.Float64Flag{
			Name:    "connector-rps",
			Usage:   "Requests per second allowed to the connector service",
			Value:   10,
			Sources: cli.EnvVars("CONNECTOR_RPS"),
		},
		&cli.StringFlag{
			Name:    "staging-database-url",
			Usage:   "PostgreSQL URL of the staging tables",
			Sources: cli.EnvVars("STAGING_DATABASE_URL"),
		},
		&cli.StringFlag{
			Name:    "staging-schema",
			Usage:   "Schema of the staging tables",
			Value:   "public",
			Sources: cli.EnvVars("STAGING_SCHEMA"),
		},
		&cli.StringFlag{
			Name:    "redis-addr",
			Usage:   "Redis address of the processing queues",
			Sources: cli.EnvVars("REDIS_ADDR"),
		},
		&cli.StringFlag{
			Name:    "redis-password",
			Usage:   "Redis password",
			Sources: cli.EnvVars("REDIS_PASSWORD"),
		},
		&cli.IntFlag{
			Name:    "redis-db",
			Usage:   "Redis database",
			Sources: cli.EnvVars("REDIS_DB"),
		},
		&cli.StringFlag{
			Name:    "plugins-path",
			Usage:   "Path to the directory containing task plugins",
			Sources: cli.EnvVars("PLUGINS_PATH"),
		},
		&cli.BoolFlag{
			Name:    "tracing",
			Usage:   "Export OpenTelemetry traces over OTLP/HTTP",
			Sources: cli.EnvVars("LAKEFLOW_TRACING"),
		},
	}
}

// SetupLogger configures the default logger from the common flags.
func SetupLogger(command *cli.Command, module string) *slog.Logger {
	log.Setup(command.String("log-level"), command.String("log-format"))

	return log.WithModule(module)
}

// LoadConfig reads the file named by --config.
func LoadConfig(command *cli.Command) (config.File, error) {
	return config.LoadFile(command.String("config"))
}

// Definition builds the import workflow of file.
func Definition(file config.File) *models.Definition {
	return importflow.NewDefinition(file.Import)
}

// EventBusFromCommand opens the event bus selected by the common flags.
func EventBusFromCommand(command *cli.Command, serviceName string, logger *slog.Logger) eventbus.EventBus {
	return NewEventBus(command.String("event-bus"), strings.Split(command.String("kafka-brokers"), ","), serviceName, logger)
}

// AdaptersFromCommand reads the execution flags.
func AdaptersFromCommand(command *cli.Command, reports status.ReportStore, publisher eventbus.EventPublisher) Adapters {
	return Adapters{
		MetadataRoot: command.String("metadata-root"),
		Connector: connector.Config{
			BaseURL:           command.String("connector-url"),
			Token:             command.String("connector-token"),
			Timeout:           30 * time.Second,
			RequestsPerSecond: command.Float64("connector-rps"),
		},
		StagingDatabaseURL: command.String("staging-database-url"),
		StagingSchema:      command.String("staging-schema"),
		Redis: queue.Options{
			Addr:     command.String("redis-addr"),
			Password: command.String("redis-password"),
			DB:       command.Int("redis-db"),
		},
		Reports:     reports,
		Publisher:   publisher,
		PluginsPath: command.String("plugins-path"),
	}
}

// EngineOptions returns the engine options selected by the execution flags.
func EngineOptions(ctx context.Context, command *cli.Command, serviceName string, logger *slog.Logger) []engine.Option {
	if !command.Bool("tracing") {
		return nil
	}

	tracer, err := otelhelper.NewTracer(ctx, serviceName)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to initialize tracer, continuing without traces", "error", err)

		return nil
	}

	return []engine.Option{engine.WithTracer(tracer)}
}
