// Package main provides the scheduler requesting import runs on a cron
// schedule.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/dukex/lakeflow/pkg/cmd"
	"github.com/dukex/lakeflow/pkg/scheduler"
	"github.com/dukex/lakeflow/pkg/services"
	cli "github.com/urfave/cli/v3"
)

func main() {
	command := &cli.Command{
		Name:                  "lakeflow-scheduler",
		EnableShellCompletion: true,
		Usage:                 "Request import runs on a cron schedule",
		Flags: append(cmd.CommonFlags(),
			&cli.StringFlag{
				Name:    "cron",
				Usage:   "Cron expression overriding the schedule of the config file",
				Sources: cli.EnvVars("LAKEFLOW_CRON"),
			},
			&cli.BoolFlag{
				Name:    "enable",
				Usage:   "Enable the schedule even when the config file disables it",
				Sources: cli.EnvVars("LAKEFLOW_SCHEDULE_ENABLED"),
			},
		),
		Action: func(ctx context.Context, command *cli.Command) error {
			logger := cmd.SetupLogger(command, "lakeflow-scheduler")

			file, err := cmd.LoadConfig(command)
			if err != nil {
				return err
			}

			schedule := file.Schedule
			if command.String("cron") != "" {
				schedule.Cron = command.String("cron")
			}

			if command.Bool("enable") {
				schedule.Enabled = true
			}

			persistence := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			defer func() {
				err := persistence.Close(ctx)
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			eventBus := cmd.EventBusFromCommand(command, "lakeflow-scheduler", logger)
			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			// Runs are executed by the workers; the scheduler only requests them.
			runService := services.NewRun(persistence, eventBus, nil, cmd.Definition(file), logger)

			sched, err := scheduler.New(runService, schedule, logger)
			if err != nil {
				return err
			}

			err = sched.Start(ctx)
			if err != nil {
				return err
			}

			logger.InfoContext(ctx, "Scheduler started", "cron", schedule.Cron, "next", sched.Next())

			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

			<-sigChan
			logger.InfoContext(ctx, "Shutting down scheduler...")

			return sched.Stop(ctx)
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
