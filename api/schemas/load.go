// File: api/schemas/load.go
package schemas

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/go-homedir"
	"gopkg.in/yaml.v3"
)

// Format is the encoding of a definition file.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFromPath infers the encoding from a file extension. Anything that is
// not .yaml or .yml is treated as JSON.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

func decode(data []byte, format Format, out interface{}) error {
	switch format {
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		if err := dec.Decode(out); err != nil {
			return fmt.Errorf("failed to decode yaml: %w", err)
		}
	default:
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("failed to decode json: %w", err)
		}
	}
	return nil
}

func readFile(path string) ([]byte, string, error) {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to expand path '%s': %w", path, err)
	}
	data, err := os.ReadFile(expanded)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read '%s': %w", expanded, err)
	}
	return data, expanded, nil
}

// DecodeSpec parses and validates an extraction spec.
func DecodeSpec(data []byte, format Format) (ExtractionSpec, error) {
	var spec ExtractionSpec
	if err := decode(data, format, &spec); err != nil {
		return ExtractionSpec{}, err
	}
	if err := spec.Validate(); err != nil {
		return ExtractionSpec{}, fmt.Errorf("invalid extraction spec: %w", err)
	}
	return spec, nil
}

// LoadSpec reads an extraction spec from a YAML or JSON file. A leading ~ is expanded.
func LoadSpec(path string) (ExtractionSpec, error) {
	data, expanded, err := readFile(path)
	if err != nil {
		return ExtractionSpec{}, err
	}
	return DecodeSpec(data, FormatFromPath(expanded))
}

// DecodeStep parses a single recorded step. Extraction steps are validated
// the same way a standalone spec is.
func DecodeStep(data []byte, format Format) (Step, error) {
	var step Step
	if err := decode(data, format, &step); err != nil {
		return Step{}, err
	}
	if step.Type == "" {
		return Step{}, fmt.Errorf("step type is required")
	}
	if step.Type == StepExtractDOM {
		if err := step.ExtractionSpec.Validate(); err != nil {
			return Step{}, fmt.Errorf("invalid extraction step: %w", err)
		}
	}
	return step, nil
}

// LoadStep reads a single recorded step from a YAML or JSON file.
func LoadStep(path string) (Step, error) {
	data, expanded, err := readFile(path)
	if err != nil {
		return Step{}, err
	}
	return DecodeStep(data, FormatFromPath(expanded))
}
