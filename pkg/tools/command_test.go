package tools

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kagent-dev/toolchat/pkg/config"
	apperrors "github.com/kagent-dev/toolchat/pkg/errors"
)

// writeScript writes an executable shell script and returns its path.
func writeScript(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts are not supported on windows")
	}
	path := filepath.Join(t.TempDir(), "tool.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	return path
}

func writeInput(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.csv")
	require.NoError(t, os.WriteFile(path, []byte("a,b\n1,2\n"), 0o644))
	return path
}

func newScriptTool(script, format string, timeout time.Duration) *CommandTool {
	return NewCommandTool(config.CommandToolConfig{
		Name:           "analyze_file",
		Description:    "Analyze a file",
		Command:        script,
		InputParameter: "file_path",
		ResultFormat:   format,
		Timeout:        timeout,
		Parameters: []config.ParameterConfig{
			{Name: "file_path", Type: "string", Description: "Input file"},
		},
	}, time.Minute)
}

func TestCommandTool_JSONOutput(t *testing.T) {
	script := writeScript(t, `echo "{\"path\": \"$1\", \"rows\": 2}"`)
	input := writeInput(t)

	result, err := newScriptTool(script, "", 0).Execute(context.Background(), map[string]any{"file_path": input})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"path": input, "rows": float64(2)}, result)
}

func TestCommandTool_ReceivesArgumentsOnStdin(t *testing.T) {
	script := writeScript(t, `cat`)
	input := writeInput(t)

	result, err := newScriptTool(script, "json", 0).Execute(context.Background(), map[string]any{"file_path": input, "sheet": "Q1"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"file_path": input, "sheet": "Q1"}, result)
}

func TestCommandTool_InputNotFound(t *testing.T) {
	script := writeScript(t, `echo should-not-run >&2; exit 3`)

	_, err := newScriptTool(script, "", 0).Execute(context.Background(),
		map[string]any{"file_path": filepath.Join(t.TempDir(), "missing.xlsx")})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeInputNotFound, apperrors.CodeOf(err))
}

func TestCommandTool_NonZeroExit(t *testing.T) {
	script := writeScript(t, `echo "partial" ; echo "sheet is corrupt" >&2; exit 2`)
	input := writeInput(t)

	_, err := newScriptTool(script, "", 0).Execute(context.Background(), map[string]any{"file_path": input})
	require.Error(t, err)

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.ErrCodeExecutionFailed, appErr.Code)
	assert.Contains(t, appErr.Message, "sheet is corrupt")
	assert.Equal(t, "sheet is corrupt\n", appErr.Details["stderr"])
	assert.Equal(t, 2, appErr.Details["exitCode"])
}

func TestCommandTool_MalformedOutput(t *testing.T) {
	script := writeScript(t, `echo "Traceback: not json"`)
	input := writeInput(t)

	_, err := newScriptTool(script, "", 0).Execute(context.Background(), map[string]any{"file_path": input})
	require.Error(t, err)

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.ErrCodeMalformedOutput, appErr.Code)
	assert.Equal(t, "Traceback: not json\n", appErr.Details["output"])
}

func TestCommandTool_Timeout(t *testing.T) {
	script := writeScript(t, `exec sleep 5`)
	input := writeInput(t)

	start := time.Now()
	_, err := newScriptTool(script, "", 100*time.Millisecond).Execute(context.Background(), map[string]any{"file_path": input})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeExecutionTimeout, apperrors.CodeOf(err))
	assert.Less(t, time.Since(start), 4*time.Second)
}

func TestCommandTool_AnalysisShaping(t *testing.T) {
	script := writeScript(t, `cat <<'EOF'
{"summaries": [{"type": "text", "text": "2 rows"}],
 "plots": {"sales_by_month": "AAAA", "column_distribution": "BBBB"}}
EOF`)
	input := writeInput(t)

	result, err := newScriptTool(script, "analysis", 0).Execute(context.Background(), map[string]any{"file_path": input})
	require.NoError(t, err)

	data, err := json.Marshal(result)
	require.NoError(t, err)
	assert.JSONEq(t, `{"content": [
		{"type": "text", "text": "2 rows"},
		{"type": "image", "image_url": {"url": "data:image/png;base64,BBBB"}, "title": "column distribution"},
		{"type": "image", "image_url": {"url": "data:image/png;base64,AAAA"}, "title": "sales by_month"}
	]}`, string(data))
}

func TestCommandTool_Parameters(t *testing.T) {
	tool := newScriptTool("/bin/true", "", 0)
	assert.Equal(t, []Parameter{{Name: "file_path", Type: "string", Description: "Input file"}}, tool.Parameters())
	assert.Equal(t, "analyze_file", tool.Name())
}
