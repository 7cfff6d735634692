// Package config loads the import workflow settings from a YAML file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/dukex/lakeflow/pkg/importflow"
	"github.com/dukex/lakeflow/pkg/scheduler"
	"gopkg.in/yaml.v3"
)

// File is the layout of a lakeflow config file. Every field is optional;
// missing values keep the defaults.
type File struct {
	Import   importflow.Config `yaml:"import"`
	Schedule scheduler.Config  `yaml:"schedule"`
}

func DefaultFile() File {
	return File{
		Import:   importflow.DefaultConfig(),
		Schedule: scheduler.DefaultConfig(),
	}
}

// LoadFile reads every section of path over the defaults. An empty path
// returns the defaults.
func LoadFile(path string) (File, error) {
	if path == "" {
		return DefaultFile(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	file, err := ParseFile(data)
	if err != nil {
		return File{}, fmt.Errorf("config file %s: %w", path, err)
	}

	return file, nil
}

// Load reads path over the import workflow defaults and validates the result.
func Load(path string) (importflow.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return importflow.Config{}, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return importflow.Config{}, fmt.Errorf("config file %s: %w", path, err)
	}

	return cfg, nil
}

// LoadOrDefault returns the defaults when path is empty.
func LoadOrDefault(path string) (importflow.Config, error) {
	if path == "" {
		return importflow.DefaultConfig(), nil
	}

	return Load(path)
}

// Parse returns the import section of a config file.
func Parse(data []byte) (importflow.Config, error) {
	file, err := ParseFile(data)
	if err != nil {
		return importflow.Config{}, err
	}

	return file.Import, nil
}

func ParseFile(data []byte) (File, error) {
	file := DefaultFile()

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)

	err := decoder.Decode(&file)
	if err != nil && !errors.Is(err, io.EOF) {
		return File{}, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	err = file.Import.Validate()
	if err != nil {
		return File{}, err
	}

	err = file.Schedule.Validate()
	if err != nil {
		return File{}, fmt.Errorf("invalid schedule config: %w", err)
	}

	return file, nil
}
