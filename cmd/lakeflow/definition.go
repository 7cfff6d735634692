package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/dukex/lakeflow/pkg/cmd"
	"github.com/dukex/lakeflow/pkg/models"
	cli "github.com/urfave/cli/v3"
)

var ErrUnknownFormat = errors.New("unknown output format")

func NewDefinitionCommand() *cli.Command {
	return &cli.Command{
		Name:    "definition",
		Aliases: []string{"def"},
		Usage:   "Print the import workflow built from the config file",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Usage:   "Path to the YAML config file",
				Sources: cli.EnvVars("LAKEFLOW_CONFIG"),
			},
			&cli.StringFlag{
				Name:  "format",
				Usage: "Output format (yaml, json)",
				Value: "yaml",
			},
		},
		Action: func(_ context.Context, command *cli.Command) error {
			file, err := cmd.LoadConfig(command)
			if err != nil {
				return err
			}

			return writeDefinition(os.Stdout, cmd.Definition(file), command.String("format"))
		},
	}
}

func writeDefinition(w io.Writer, definition *models.Definition, format string) error {
	var (
		data []byte
		err  error
	)

	switch format {
	case "yaml", "":
		data, err = definition.MarshalYAMLDocument()
	case "json":
		data, err = definition.MarshalJSONDocument()
		data = append(data, '\n')
	default:
		return fmt.Errorf("%w: %s", ErrUnknownFormat, format)
	}

	if err != nil {
		return err
	}

	_, err = w.Write(data)

	return err
}
