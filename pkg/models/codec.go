package models

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// ParseDefinition decodes a YAML (or JSON, which is valid YAML) document and
// validates it.
func ParseDefinition(data []byte) (*Definition, error) {
	var definition Definition

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)

	err := decoder.Decode(&definition)
	if err != nil {
		return nil, fmt.Errorf("failed to decode workflow definition: %w", err)
	}

	err = definition.Validate()
	if err != nil {
		return nil, err
	}

	return &definition, nil
}

func (d *Definition) MarshalYAMLDocument() ([]byte, error) {
	var buf bytes.Buffer

	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)

	err := encoder.Encode(d)
	if err != nil {
		return nil, fmt.Errorf("failed to encode workflow definition: %w", err)
	}

	err = encoder.Close()
	if err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func (d *Definition) MarshalJSONDocument() ([]byte, error) {
	return json.MarshalIndent(d, "", "  ")
}
