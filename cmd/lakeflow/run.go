package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/dukex/lakeflow/pkg/cmd"
	"github.com/dukex/lakeflow/pkg/models"
	"github.com/dukex/lakeflow/pkg/services"
	cli "github.com/urfave/cli/v3"
)

var ErrRunNotSucceeded = errors.New("run did not succeed")

func NewRunCommand() *cli.Command {
	return &cli.Command{
		Name:    "run",
		Aliases: []string{"r"},
		Usage:   "Execute one import run in this process and print its record",
		Flags: slices.Concat(cmd.CommonFlags(), cmd.ExecutionFlags(), []cli.Flag{
			&cli.StringFlag{
				Name:  "input",
				Usage: "JSON object given to the workflow as its input",
			},
			&cli.StringFlag{
				Name:  "trigger",
				Usage: "Trigger recorded on the run",
				Value: "cli",
			},
		}),
		Action: func(ctx context.Context, command *cli.Command) error {
			logger := cmd.SetupLogger(command, "lakeflow")

			input, err := parseInput(command.String("input"))
			if err != nil {
				return err
			}

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

			eventBus := cmd.EventBusFromCommand(command, "lakeflow", logger)
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
				services.WithWorkerID("cli"),
				services.WithEngineOptions(cmd.EngineOptions(ctx, command, "lakeflow", logger)...),
			)

			run, err := runService.Start(ctx, services.RunRequest{
				Trigger: command.String("trigger"),
				Input:   input,
			})
			if err != nil {
				return err
			}

			return printRun(os.Stdout, run)
		},
	}
}

func parseInput(raw string) (map[string]any, error) {
	if raw == "" {
		return nil, nil
	}

	var input map[string]any

	err := json.Unmarshal([]byte(raw), &input)
	if err != nil {
		return nil, fmt.Errorf("invalid --input: %w", err)
	}

	return input, nil
}

// printRun writes run as indented JSON and fails unless it succeeded.
func printRun(w io.Writer, run *models.Run) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")

	err := encoder.Encode(run)
	if err != nil {
		return err
	}

	if run.Status != models.RunStatusSucceeded {
		return fmt.Errorf("%w: %s (%s)", ErrRunNotSucceeded, run.Status, run.ErrorKind)
	}

	return nil
}
