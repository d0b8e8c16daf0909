package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"
	"time"

	"github.com/kagent-dev/toolchat/pkg/config"
	apperrors "github.com/kagent-dev/toolchat/pkg/errors"
)

const (
	DefaultCommandTimeout = 2 * time.Minute
	// commandWaitDelay bounds how long output pipes are drained after the
	// process is killed.
	commandWaitDelay = 2 * time.Second
	maxRawOutput     = 8 << 10
)

// CommandTool delegates to an external process. The input file path is
// appended to the configured arguments, the full argument mapping is written
// to stdin as JSON, and stdout must hold a single JSON document.
type CommandTool struct {
	BaseTool
	command        string
	args           []string
	inputParameter string
	resultFormat   string
	workingDir     string
	timeout        time.Duration
}

// NewCommandTool creates a tool from its catalog declaration.
func NewCommandTool(cfg config.CommandToolConfig, defaultTimeout time.Duration) *CommandTool {
	params := make([]Parameter, 0, len(cfg.Parameters))
	for _, p := range cfg.Parameters {
		params = append(params, Parameter{Name: p.Name, Type: p.Type, Description: p.Description})
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if timeout <= 0 {
		timeout = DefaultCommandTimeout
	}

	return &CommandTool{
		BaseTool:       NewBaseTool(cfg.Name, cfg.Description, params...),
		command:        cfg.Command,
		args:           append([]string(nil), cfg.Args...),
		inputParameter: cfg.InputParameter,
		resultFormat:   cfg.ResultFormat,
		workingDir:     cfg.WorkingDir,
		timeout:        timeout,
	}
}

func (c *CommandTool) Execute(ctx context.Context, args map[string]any) (any, error) {
	inputPath, ok := args[c.inputParameter].(string)
	if !ok || inputPath == "" {
		return nil, apperrors.New(apperrors.ErrCodeInvalidArguments,
			fmt.Sprintf("%s is required", c.inputParameter), nil)
	}
	if _, err := os.Stat(inputPath); err != nil {
		return nil, apperrors.New(apperrors.ErrCodeInputNotFound,
			fmt.Sprintf("File not found at path %s", inputPath), err).
			WithDetail("path", inputPath)
	}

	stdin, err := json.Marshal(args)
	if err != nil {
		return nil, apperrors.New(apperrors.ErrCodeInvalidArguments, "arguments are not serializable", err)
	}

	cmdCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	cmdArgs := append(append([]string(nil), c.args...), inputPath)
	cmd := exec.CommandContext(cmdCtx, c.command, cmdArgs...)
	cmd.Dir = c.workingDir
	cmd.Stdin = bytes.NewReader(stdin)
	cmd.WaitDelay = commandWaitDelay

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if errors.Is(cmdCtx.Err(), context.DeadlineExceeded) {
			return nil, apperrors.New(apperrors.ErrCodeExecutionTimeout,
				fmt.Sprintf("%s timed out after %v", c.Name(), c.timeout), err)
		}

		appErr := apperrors.New(apperrors.ErrCodeExecutionFailed,
			fmt.Sprintf("%s failed: %s", c.Name(), firstLine(stderr.String(), "Unknown error")), err).
			WithDetail("stderr", stderr.String())
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			appErr.WithDetail("exitCode", exitErr.ExitCode())
		}
		return nil, appErr
	}

	var output any
	if err := json.Unmarshal(stdout.Bytes(), &output); err != nil {
		raw := truncate(stdout.String(), maxRawOutput)
		return nil, apperrors.New(apperrors.ErrCodeMalformedOutput,
			fmt.Sprintf("%s produced output that is not JSON", c.Name()), err).
			WithDetail("output", raw).
			WithDetail("stderr", stderr.String())
	}

	if c.resultFormat == "analysis" {
		return shapeAnalysis(stdout.Bytes())
	}
	return output, nil
}

// AnalysisResult is the client-facing form of an analysis process output.
type AnalysisResult struct {
	Content []any `json:"content"`
}

// ImageContent is an embedded plot.
type ImageContent struct {
	Type     string   `json:"type"`
	ImageURL ImageURL `json:"image_url"`
	Title    string   `json:"title"`
}

type ImageURL struct {
	URL string `json:"url"`
}

type analysisOutput struct {
	Summaries []any             `json:"summaries"`
	Plots     map[string]string `json:"plots"`
}

// shapeAnalysis turns {summaries, plots} into a content list: summaries
// first, then one image item per plot ordered by plot name.
func shapeAnalysis(data []byte) (any, error) {
	var out analysisOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, apperrors.New(apperrors.ErrCodeMalformedOutput, "analysis output has an unexpected shape", err).
			WithDetail("output", truncate(string(data), maxRawOutput))
	}

	content := make([]any, 0, len(out.Summaries)+len(out.Plots))
	content = append(content, out.Summaries...)

	names := make([]string, 0, len(out.Plots))
	for name := range out.Plots {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		content = append(content, ImageContent{
			Type:     "image",
			ImageURL: ImageURL{URL: "data:image/png;base64," + out.Plots[name]},
			Title:    strings.Replace(name, "_", " ", 1),
		})
	}

	return AnalysisResult{Content: content}, nil
}

func firstLine(s, fallback string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return fallback
	}
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
