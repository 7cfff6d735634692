package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/dukex/lakeflow/pkg/cmd"
	"github.com/dukex/lakeflow/pkg/log"
	"github.com/dukex/lakeflow/pkg/models"
	"github.com/dukex/lakeflow/pkg/registry"
	cli "github.com/urfave/cli/v3"
)

var ErrUnknownResources = errors.New("definition uses unknown task resources")

func NewValidateCommand() *cli.Command {
	return &cli.Command{
		Name:      "validate",
		Aliases:   []string{"v"},
		Usage:     "Validate a workflow definition file, or the built-in import workflow",
		ArgsUsage: "[definition.yaml]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Usage:   "Path to the YAML config file",
				Sources: cli.EnvVars("LAKEFLOW_CONFIG"),
			},
			&cli.StringFlag{
				Name:    "plugins-path",
				Usage:   "Path to the directory containing task plugins",
				Sources: cli.EnvVars("PLUGINS_PATH"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			definition, err := loadDefinition(command)
			if err != nil {
				return err
			}

			reg, closeRegistry := cmd.NewRegistry(ctx, log.Discard(), cmd.Adapters{
				PluginsPath: command.String("plugins-path"),
			})
			defer func() { _ = closeRegistry() }()

			return validateResources(os.Stdout, definition, reg)
		},
	}
}

func loadDefinition(command *cli.Command) (*models.Definition, error) {
	path := command.Args().First()
	if path == "" {
		file, err := cmd.LoadConfig(command)
		if err != nil {
			return nil, err
		}

		definition := cmd.Definition(file)

		return definition, definition.Validate()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read definition %s: %w", path, err)
	}

	return models.ParseDefinition(data)
}

// validateResources reports every task resource of definition and fails when
// one is unknown to reg. Known resources without a configured backend are
// accepted: binding depends on the flags of the process executing the run.
func validateResources(w io.Writer, definition *models.Definition, reg *registry.Registry) error {
	unknown := 0

	for _, resource := range definition.Resources() {
		_, err := reg.Task(resource)

		switch {
		case errors.Is(err, registry.ErrTaskNotRegistered):
			_, _ = fmt.Fprintf(w, "  %s: unknown\n", resource)
			unknown++
		case errors.Is(err, registry.ErrTaskNotBound):
			_, _ = fmt.Fprintf(w, "  %s: needs backend configuration\n", resource)
		case err != nil:
			_, _ = fmt.Fprintf(w, "  %s: %v\n", resource, err)
		default:
			_, _ = fmt.Fprintf(w, "  %s: ok\n", resource)
		}
	}

	if unknown > 0 {
		return fmt.Errorf("%w: %d", ErrUnknownResources, unknown)
	}

	_, _ = fmt.Fprintln(w, "Definition is valid")

	return nil
}
