package main

import (
	"context"
	"os"
	"slices"

	"github.com/dukex/lakeflow/pkg/cmd"
	"github.com/dukex/lakeflow/pkg/services"
	"github.com/google/uuid"
	cli "github.com/urfave/cli/v3"
	_ "go.uber.org/automaxprocs"
)

func main() {
	command := &cli.Command{
		Name:                  "lakeflow-worker",
		EnableShellCompletion: true,
		Usage:                 "Execute requested import runs",
		Flags: slices.Concat(cmd.CommonFlags(), cmd.ExecutionFlags(), []cli.Flag{
			&cli.StringFlag{
				Name:    "worker-id",
				Aliases: []string{"id"},
				Usage:   "Custom worker ID (auto-generated if not provided)",
				Sources: cli.EnvVars("WORKER_ID"),
			},
		}),
		Action: func(ctx context.Context, command *cli.Command) error {
			workerID := command.String("worker-id")
			if workerID == "" {
				workerID = "worker-" + uuid.New().String()[:8]
			}

			logger := cmd.SetupLogger(command, "lakeflow-worker").With("workerId", workerID)

			logger.InfoContext(ctx, "Initializing lakeflow worker")

			file, err := cmd.LoadConfig(command)
			if err != nil {
				return err
			}

			eventBus := cmd.EventBusFromCommand(command, "lakeflow-worker", logger)
			defer func() {
				err := eventBus.Close()
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			persistence := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			defer func() {
				err := persistence.Close(ctx)
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
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
				services.WithWorkerID(workerID),
				services.WithEngineOptions(cmd.EngineOptions(ctx, command, "lakeflow-worker", logger)...),
			)

			err = NewWorker(workerID, runService, eventBus, logger).Start(ctx)
			if err != nil {
				logger.ErrorContext(ctx, "Failed to start worker", "error", err)

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
