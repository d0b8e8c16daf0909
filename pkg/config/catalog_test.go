package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCatalog(t *testing.T) {
	path := writeFile(t, "tools.yaml", `
tools:
  - name: analyze_excel
    description: Analyze an uploaded spreadsheet
    command: python3
    args: ["analyze_excel.py"]
    input_parameter: file_path
    result_format: analysis
    timeout: 45s
    parameters:
      - name: file_path
        type: string
        description: Path of the spreadsheet
`)

	catalog, err := LoadCatalog(path)
	require.NoError(t, err)
	require.Len(t, catalog.Tools, 1)

	tool := catalog.Tools[0]
	assert.Equal(t, "analyze_excel", tool.Name)
	assert.Equal(t, "python3", tool.Command)
	assert.Equal(t, []string{"analyze_excel.py"}, tool.Args)
	assert.Equal(t, "analysis", tool.ResultFormat)
	assert.Equal(t, 45*time.Second, tool.Timeout)
	require.Len(t, tool.Parameters, 1)
	assert.Equal(t, "string", tool.Parameters[0].Type)
}

func TestCatalogValidate(t *testing.T) {
	valid := CommandToolConfig{
		Name:           "analyze_csv",
		Command:        "analyze",
		InputParameter: "path",
		Parameters:     []ParameterConfig{{Name: "path", Type: "string"}},
	}

	tests := []struct {
		name    string
		mutate  func(c *CommandToolConfig)
		wantErr string
	}{
		{"valid", func(c *CommandToolConfig) {}, ""},
		{"camel case name", func(c *CommandToolConfig) { c.Name = "analyzeCsv" }, "snake_case"},
		{"missing command", func(c *CommandToolConfig) { c.Command = "" }, "command is required"},
		{"bad type", func(c *CommandToolConfig) { c.Parameters[0].Type = "float" }, "unsupported type"},
		{"undeclared input", func(c *CommandToolConfig) { c.InputParameter = "file" }, "not a declared parameter"},
		{"missing input", func(c *CommandToolConfig) { c.InputParameter = "" }, "input_parameter is required"},
		{"non string input", func(c *CommandToolConfig) { c.Parameters[0].Type = "number" }, "must be a string"},
		{"bad format", func(c *CommandToolConfig) { c.ResultFormat = "xml" }, "unknown result_format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tool := valid
			tool.Parameters = append([]ParameterConfig(nil), valid.Parameters...)
			tt.mutate(&tool)

			err := (&Catalog{Tools: []CommandToolConfig{tool}}).Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestCatalogValidate_Duplicates(t *testing.T) {
	tool := CommandToolConfig{
		Name:           "analyze_csv",
		Command:        "analyze",
		InputParameter: "path",
		Parameters:     []ParameterConfig{{Name: "path", Type: "string"}},
	}

	err := (&Catalog{Tools: []CommandToolConfig{tool, tool}}).Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "declared more than once")
}
