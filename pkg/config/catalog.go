package config

import (
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/stoewer/go-strcase"
	"gopkg.in/yaml.v3"
)

// Catalog is the on-disk declaration of command-backed tools.
//
//	tools:
//	  - name: analyze_excel
//	    description: Analyze an uploaded spreadsheet
//	    command: python3
//	    args: ["scripts/analyze_excel.py"]
//	    input_parameter: file_path
//	    result_format: analysis
//	    parameters:
//	      - name: file_path
//	        type: string
//	        description: Path of the spreadsheet to analyze
type Catalog struct {
	Tools []CommandToolConfig `yaml:"tools"`
}

// CommandToolConfig declares a tool that delegates to an external process.
type CommandToolConfig struct {
	Name        string            `yaml:"name"`
	Description string            `yaml:"description"`
	Parameters  []ParameterConfig `yaml:"parameters,omitempty"`
	Command     string            `yaml:"command"`
	Args        []string          `yaml:"args,omitempty"`
	// InputParameter names the argument holding the input file path. The
	// path must exist and is appended to Args.
	InputParameter string `yaml:"input_parameter"`
	// ResultFormat is "json" (default) or "analysis".
	ResultFormat string        `yaml:"result_format,omitempty"`
	Timeout      time.Duration `yaml:"timeout,omitempty"`
	WorkingDir   string        `yaml:"working_dir,omitempty"`
}

// ParameterConfig declares one tool parameter.
type ParameterConfig struct {
	Name        string `yaml:"name"`
	Type        string `yaml:"type"`
	Description string `yaml:"description"`
}

var parameterTypes = map[string]bool{
	"string":  true,
	"number":  true,
	"integer": true,
	"boolean": true,
	"object":  true,
	"array":   true,
}

var resultFormats = map[string]bool{
	"":         true,
	"json":     true,
	"analysis": true,
}

// LoadCatalog reads and validates a tool catalog file.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read tool catalog: %w", err)
	}

	var catalog Catalog
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return nil, fmt.Errorf("failed to parse tool catalog: %w", err)
	}

	if err := catalog.Validate(); err != nil {
		return nil, err
	}
	return &catalog, nil
}

// Validate checks every declared tool.
func (c *Catalog) Validate() error {
	var result *multierror.Error
	seen := make(map[string]bool)

	for i, tool := range c.Tools {
		prefix := fmt.Sprintf("tools[%d]", i)
		if tool.Name == "" {
			result = multierror.Append(result, fmt.Errorf("%s: name is required", prefix))
		} else {
			prefix = fmt.Sprintf("tool %s", tool.Name)
			if strcase.SnakeCase(tool.Name) != tool.Name {
				result = multierror.Append(result, fmt.Errorf("%s: name must be snake_case", prefix))
			}
			if seen[tool.Name] {
				result = multierror.Append(result, fmt.Errorf("%s: declared more than once", prefix))
			}
			seen[tool.Name] = true
		}

		if tool.Command == "" {
			result = multierror.Append(result, fmt.Errorf("%s: command is required", prefix))
		}
		if !resultFormats[tool.ResultFormat] {
			result = multierror.Append(result, fmt.Errorf("%s: unknown result_format %q", prefix, tool.ResultFormat))
		}

		inputDeclared := false
		for _, param := range tool.Parameters {
			if param.Name == "" {
				result = multierror.Append(result, fmt.Errorf("%s: parameter name is required", prefix))
			}
			if !parameterTypes[param.Type] {
				result = multierror.Append(result, fmt.Errorf("%s: parameter %s has unsupported type %q", prefix, param.Name, param.Type))
			}
			if param.Name == tool.InputParameter {
				inputDeclared = true
				if param.Type != "string" {
					result = multierror.Append(result, fmt.Errorf("%s: input parameter %s must be a string", prefix, param.Name))
				}
			}
		}
		if tool.InputParameter == "" {
			result = multierror.Append(result, fmt.Errorf("%s: input_parameter is required", prefix))
		} else if !inputDeclared {
			result = multierror.Append(result, fmt.Errorf("%s: input_parameter %s is not a declared parameter", prefix, tool.InputParameter))
		}
	}

	return result.ErrorOrNil()
}
