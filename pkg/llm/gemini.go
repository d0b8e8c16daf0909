package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-logr/logr"

	"github.com/kagent-dev/toolchat/pkg/config"
	apperrors "github.com/kagent-dev/toolchat/pkg/errors"
)

// maxErrorBody bounds how much of a failed upstream response is kept.
const maxErrorBody = 8 << 10

// GeminiGateway talks to the Gemini generateContent REST endpoint.
type GeminiGateway struct {
	baseURL     string
	model       string
	apiKey      string
	temperature float64
	httpClient  *http.Client
	log         logr.Logger
}

var _ Gateway = (*GeminiGateway)(nil)

// NewGeminiGateway creates a gateway from cfg. A missing API key is accepted
// here and reported by CheckCredentials.
func NewGeminiGateway(cfg config.GeminiConfig, log logr.Logger) *GeminiGateway {
	temperature := config.DefaultTemperature
	if cfg.Temperature != nil {
		temperature = *cfg.Temperature
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = config.DefaultGeminiBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = config.DefaultGeminiModel
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &GeminiGateway{
		baseURL:     strings.TrimRight(baseURL, "/"),
		model:       model,
		apiKey:      cfg.APIKey,
		temperature: temperature,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		log: log.WithName("gemini"),
	}
}

// ModelName returns the name of the model being used
func (g *GeminiGateway) ModelName() string {
	return g.model
}

// CheckCredentials reports a configuration error when no API key is set.
func (g *GeminiGateway) CheckCredentials() error {
	if g.apiKey == "" {
		return apperrors.New(apperrors.ErrCodeConfiguration, "Gemini API key is not configured", nil)
	}
	return nil
}

// Converse performs the first call of a turn, advertising every tool.
func (g *GeminiGateway) Converse(ctx context.Context, userText string, tools []FunctionDeclaration) (*Turn, error) {
	req := geminiRequest{
		Contents: []geminiContent{userContent(userText)},
		GenerationConfig: geminiGenerationConfig{
			Temperature: g.temperature,
		},
	}
	if len(tools) > 0 {
		req.Tools = []geminiTool{{FunctionDeclarations: tools}}
		req.ToolConfig = &geminiToolConfig{
			FunctionCallingConfig: geminiFunctionCallingConfig{Mode: "auto"},
		}
	}

	return g.generate(ctx, req, true)
}

// ConverseWithToolResult performs the follow-up call carrying the tool result.
func (g *GeminiGateway) ConverseWithToolResult(ctx context.Context, userText string, call FunctionCall, result any) (*Turn, error) {
	args := call.Arguments
	if args == nil {
		args = map[string]any{}
	}

	req := geminiRequest{
		Contents: []geminiContent{
			userContent(userText),
			{
				Role: "model",
				Parts: []geminiPart{{
					FunctionCall: &geminiFunctionCall{Name: call.Name, Args: args},
				}},
			},
			{
				Role: "function",
				Parts: []geminiPart{{
					FunctionResponse: &geminiFunctionResponse{
						Name:     call.Name,
						Response: map[string]any{"result": result},
					},
				}},
			},
		},
		GenerationConfig: geminiGenerationConfig{
			Temperature: g.temperature,
		},
	}

	return g.generate(ctx, req, false)
}

func (g *GeminiGateway) generate(ctx context.Context, body geminiRequest, allowCall bool) (*Turn, error) {
	if g.apiKey == "" {
		return nil, apperrors.New(apperrors.ErrCodeUpstreamUnavailable, "Gemini API key is not configured", nil)
	}

	bodyJSON, err := json.Marshal(body)
	if err != nil {
		return nil, apperrors.New(apperrors.ErrCodeUpstreamError, "failed to marshal request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint(), bytes.NewReader(bodyJSON))
	if err != nil {
		return nil, apperrors.New(apperrors.ErrCodeUpstreamError, "failed to create request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	// The key stays out of the URL so transport errors never carry it.
	httpReq.Header.Set(apiKeyHeader, g.apiKey)

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		if isTimeout(err) {
			return nil, apperrors.New(apperrors.ErrCodeUpstreamTimeout,
				fmt.Sprintf("Gemini API did not respond within %s", g.httpClient.Timeout), err)
		}
		return nil, apperrors.New(apperrors.ErrCodeUpstreamUnavailable, "Gemini API request failed", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		if isTimeout(err) {
			return nil, apperrors.New(apperrors.ErrCodeUpstreamTimeout, "timed out reading Gemini response", err)
		}
		return nil, apperrors.New(apperrors.ErrCodeUpstreamError, "failed to read response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		text := string(respBody)
		if len(text) > maxErrorBody {
			text = text[:maxErrorBody]
		}
		return nil, apperrors.New(apperrors.ErrCodeUpstreamError,
			fmt.Sprintf("Gemini API error (%d): %s", resp.StatusCode, text), nil).
			WithDetail("status", resp.StatusCode).
			WithDetail("body", text)
	}

	var geminiResp geminiResponse
	if err := json.Unmarshal(respBody, &geminiResp); err != nil {
		return nil, apperrors.New(apperrors.ErrCodeUpstreamError, "failed to parse response", err)
	}

	if len(geminiResp.Candidates) == 0 {
		return nil, apperrors.New(apperrors.ErrCodeEmptyUpstreamResponse, "no candidates in Gemini response", nil)
	}

	return g.decodeCandidate(geminiResp.Candidates[0], allowCall)
}

// decodeCandidate concatenates text parts in order and extracts the first
// function call.
func (g *GeminiGateway) decodeCandidate(candidate geminiCandidate, allowCall bool) (*Turn, error) {
	turn := &Turn{}
	var text strings.Builder

	for _, part := range candidate.Content.Parts {
		if part.Text != "" {
			text.WriteString(part.Text)
		}
		if part.FunctionCall == nil {
			continue
		}

		if !allowCall {
			g.log.Info("Ignoring tool proposal in follow-up reply", "tool", part.FunctionCall.Name)
			continue
		}
		if turn.ProposedCall != nil {
			g.log.Info("Ignoring additional tool proposal", "tool", part.FunctionCall.Name)
			continue
		}
		if part.FunctionCall.Name == "" {
			return nil, apperrors.New(apperrors.ErrCodeMalformedToolCall, "function call has no name", nil)
		}

		args, err := part.FunctionCall.Args.Normalize()
		if err != nil {
			return nil, err
		}
		g.log.V(1).Info("Decoded tool proposal", "tool", part.FunctionCall.Name, "payload", part.FunctionCall.Args.Kind.String())
		turn.ProposedCall = &FunctionCall{
			Name:      part.FunctionCall.Name,
			Arguments: args,
		}
	}

	turn.Content = text.String()
	return turn, nil
}

const apiKeyHeader = "x-goog-api-key"

func (g *GeminiGateway) endpoint() string {
	return fmt.Sprintf("%s/v1beta/models/%s:generateContent", g.baseURL, url.PathEscape(g.model))
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func userContent(text string) geminiContent {
	return geminiContent{
		Role:  "user",
		Parts: []geminiPart{{Text: text}},
	}
}

type geminiRequest struct {
	Contents         []geminiContent        `json:"contents"`
	Tools            []geminiTool           `json:"tools,omitempty"`
	ToolConfig       *geminiToolConfig      `json:"tool_config,omitempty"`
	GenerationConfig geminiGenerationConfig `json:"generationConfig"`
}

type geminiContent struct {
	Role  string       `json:"role"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text             string                  `json:"text,omitempty"`
	FunctionCall     *geminiFunctionCall     `json:"functionCall,omitempty"`
	FunctionResponse *geminiFunctionResponse `json:"functionResponse,omitempty"`
}

type geminiFunctionCall struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

type geminiFunctionResponse struct {
	Name     string         `json:"name"`
	Response map[string]any `json:"response"`
}

type geminiTool struct {
	FunctionDeclarations []FunctionDeclaration `json:"function_declarations"`
}

type geminiToolConfig struct {
	FunctionCallingConfig geminiFunctionCallingConfig `json:"function_calling_config"`
}

type geminiFunctionCallingConfig struct {
	Mode string `json:"mode"`
}

type geminiGenerationConfig struct {
	Temperature float64 `json:"temperature"`
}

type geminiResponse struct {
	Candidates []geminiCandidate `json:"candidates"`
}

type geminiCandidate struct {
	Content struct {
		Parts []struct {
			Text         string `json:"text,omitempty"`
			FunctionCall *struct {
				Name string          `json:"name"`
				Args ArgumentPayload `json:"args"`
			} `json:"functionCall,omitempty"`
		} `json:"parts"`
	} `json:"content"`
	FinishReason string `json:"finishReason"`
}
