package main

import (
	"context"
	"os"
	"slices"

	"github.com/dukex/lakeflow/pkg/cmd"
	"github.com/dukex/lakeflow/pkg/events"
	"github.com/dukex/lakeflow/pkg/services"
	cli "github.com/urfave/cli/v3"
)

const defaultPort = 9091

func main() {
	command := &cli.Command{
		Name:                  "lakeflow-api",
		Usage:                 "Request import runs and inspect their outcome",
		EnableShellCompletion: true,
		Flags: slices.Concat(cmd.CommonFlags(), cmd.ExecutionFlags(), []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.BoolFlag{
				Name:    "embedded-worker",
				Usage:   "Execute requested runs in this process",
				Sources: cli.EnvVars("EMBEDDED_WORKER"),
			},
		}),
		Action: func(ctx context.Context, command *cli.Command) error {
			logger := cmd.SetupLogger(command, "lakeflow-api")

			logger.InfoContext(ctx, "Initializing lakeflow API")

			file, err := cmd.LoadConfig(command)
			if err != nil {
				return err
			}

			persistence := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			defer func() {
				err := persistence.Close(ctx)
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			eventBus := cmd.EventBusFromCommand(command, "lakeflow-api", logger)
			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			registry, closeRegistry := cmd.NewRegistry(ctx, logger, cmd.AdaptersFromCommand(command, persistence, eventBus))
			defer func() {
				if err := closeRegistry(); err != nil {
					logger.ErrorContext(ctx, "Failed to close task backends", "error", err)
				}
			}()

			runService := services.NewRun(
				persistence,
				eventBus,
				registry,
				cmd.Definition(file),
				logger,
				services.WithEngineOptions(cmd.EngineOptions(ctx, command, "lakeflow-api", logger)...),
			)

			if command.Bool("embedded-worker") {
				err := eventBus.Handle(events.RunRequestedEvent, runService.HandleRunRequested)
				if err != nil {
					return err
				}

				err = eventBus.Subscribe(ctx)
				if err != nil {
					return err
				}

				logger.InfoContext(ctx, "Embedded worker started")
			}

			api := NewAPI(logger, runService, registry)

			err = api.Start(command.Int("port"))
			if err != nil {
				logger.ErrorContext(ctx, "Failed to start API server", "error", err)

				return err
			}

			return nil
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
