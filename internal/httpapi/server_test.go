package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kagent-dev/toolchat/pkg/config"
	apperrors "github.com/kagent-dev/toolchat/pkg/errors"
	"github.com/kagent-dev/toolchat/pkg/llm"
	"github.com/kagent-dev/toolchat/pkg/metrics"
	"github.com/kagent-dev/toolchat/pkg/orchestrator"
	"github.com/kagent-dev/toolchat/pkg/store"
)

type processorFunc func(ctx context.Context, contextID, text string) (*orchestrator.Result, error)

func (f processorFunc) ProcessMessage(ctx context.Context, contextID, text string) (*orchestrator.Result, error) {
	return f(ctx, contextID, text)
}

func newTestServer(t *testing.T, processor MessageProcessor) (*Server, *store.GormStore) {
	t.Helper()
	st, err := store.Open(config.DatabaseConfig{Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "api.db")}, logr.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	reg := prometheus.NewRegistry()
	metrics.New(reg)

	return NewServer(config.DefaultConfig().Server, config.MetricsConfig{Path: "/metrics"}, processor, st, reg, logr.Discard()), st
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestChat_Success(t *testing.T) {
	var gotContext, gotText string
	s, _ := newTestServer(t, processorFunc(func(ctx context.Context, contextID, text string) (*orchestrator.Result, error) {
		gotContext, gotText = contextID, text
		return &orchestrator.Result{
			SessionID:    "sess-1",
			ProposedCall: &llm.FunctionCall{Name: "add", Arguments: map[string]any{"a": float64(134), "b": float64(456)}},
			FinalText:    "The sum is 590.",
		}, nil
	}))

	rec := do(t, s, http.MethodPost, "/api/chat", `{"sessionId":"client-1","message":"What is 134 + 456?"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "client-1", gotContext)
	assert.Equal(t, "What is 134 + 456?", gotText)
	assert.JSONEq(t, `{
		"contextId": "client-1",
		"sessionId": "sess-1",
		"functionCall": {"name": "add", "arguments": {"a": 134, "b": 456}},
		"finalResponse": "The sum is 590."
	}`, rec.Body.String())
}

func TestChat_IssuesContextID(t *testing.T) {
	s, _ := newTestServer(t, processorFunc(func(ctx context.Context, contextID, text string) (*orchestrator.Result, error) {
		return &orchestrator.Result{SessionID: "sess", FinalText: "Hi there!"}, nil
	}))

	rec := do(t, s, http.MethodPost, "/api/chat", `{"message":"Hello"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp["contextId"])
	assert.NotContains(t, resp, "functionCall")
	assert.Equal(t, "Hi there!", resp["finalResponse"])
}

func TestChat_Validation(t *testing.T) {
	called := false
	s, _ := newTestServer(t, processorFunc(func(ctx context.Context, contextID, text string) (*orchestrator.Result, error) {
		called = true
		return nil, nil
	}))

	for _, body := range []string{`{"message":""}`, `{"message":"   "}`, `not json`} {
		rec := do(t, s, http.MethodPost, "/api/chat", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		assert.Contains(t, rec.Body.String(), "Invalid request data")
	}
	assert.False(t, called)
}

func TestChat_ErrorMapping(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{apperrors.New(apperrors.ErrCodeConfiguration, "Gemini API key is not configured", nil), http.StatusServiceUnavailable},
		{apperrors.New(apperrors.ErrCodeUpstreamTimeout, "timed out", nil), http.StatusGatewayTimeout},
		{apperrors.New(apperrors.ErrCodeUpstreamError, "Gemini API error (500)", nil).WithDetail("status", 500), http.StatusBadGateway},
		{apperrors.New(apperrors.ErrCodeUnknownTool, "Unknown function: x", nil), http.StatusUnprocessableEntity},
		{apperrors.New(apperrors.ErrCodeInputNotFound, "File not found", nil), http.StatusNotFound},
		{apperrors.New(apperrors.ErrCodeExecutionFailed, "failed", nil).WithDetail("stderr", "trace"), http.StatusInternalServerError},
		{errors.New("plain"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			s, _ := newTestServer(t, processorFunc(func(ctx context.Context, contextID, text string) (*orchestrator.Result, error) {
				return nil, tt.err
			}))

			rec := do(t, s, http.MethodPost, "/api/chat", `{"message":"hi"}`)
			assert.Equal(t, tt.status, rec.Code)

			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, apperrors.CodeOf(tt.err), resp.Code)
			assert.NotEmpty(t, resp.Message)
		})
	}
}

func TestChat_ErrorDetails(t *testing.T) {
	s, _ := newTestServer(t, processorFunc(func(ctx context.Context, contextID, text string) (*orchestrator.Result, error) {
		return nil, apperrors.New(apperrors.ErrCodeExecutionFailed, "analyze_excel failed", errors.New("exit status 1")).
			WithDetail("stderr", "Traceback")
	}))

	rec := do(t, s, http.MethodPost, "/api/chat", `{"sessionId":"client-1","message":"analyze"}`)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{
		"contextId": "client-1",
		"message": "analyze_excel failed",
		"code": "EXECUTION_FAILED",
		"details": {"stderr": "Traceback", "cause": "exit status 1"}
	}`, rec.Body.String())
}

func TestChat_ErrorCarriesIssuedContextID(t *testing.T) {
	var issued string
	s, _ := newTestServer(t, processorFunc(func(ctx context.Context, contextID, text string) (*orchestrator.Result, error) {
		issued = contextID
		return nil, apperrors.New(apperrors.ErrCodeUpstreamTimeout, "timed out", nil)
	}))

	rec := do(t, s, http.MethodPost, "/api/chat", `{"message":"hi"}`)
	require.Equal(t, http.StatusGatewayTimeout, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, issued)
	assert.Equal(t, issued, resp.ContextID)
}

func TestListTools(t *testing.T) {
	s, st := newTestServer(t, nil)
	require.NoError(t, st.SyncTools(context.Background(), []store.ToolRecord{
		{Name: "get_time", Description: "Get the current server time"},
		{Name: "add", Description: "Add two numbers", Parameters: []store.ToolParameter{
			{Name: "a", Type: "number"}, {Name: "b", Type: "number"},
		}},
	}))

	rec := do(t, s, http.MethodGet, "/api/tools", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[
		{"name": "get_time", "description": "Get the current server time"},
		{"name": "add", "description": "Add two numbers", "parameters": {"a": "number", "b": "number"}}
	]`, rec.Body.String())
}

func TestSessionHistoryAndDelete(t *testing.T) {
	s, st := newTestServer(t, nil)
	ctx := context.Background()

	session, err := st.EnsureSession(ctx, "client-1")
	require.NoError(t, err)
	require.NoError(t, st.AppendMessage(ctx, &store.Message{SessionID: session.ID, Role: store.RoleUser, Content: "Hello"}))
	require.NoError(t, st.AppendMessage(ctx, &store.Message{SessionID: session.ID, Role: store.RoleAssistant, Content: "Hi there!"}))

	rec := do(t, s, http.MethodGet, "/api/sessions/client-1/messages", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var history SessionHistory
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &history))
	assert.Equal(t, session.ID, history.Session.ID)
	require.Len(t, history.Messages, 2)
	assert.Equal(t, "Hi there!", history.Messages[1].Content)
	assert.Empty(t, history.FunctionCalls)

	rec = do(t, s, http.MethodDelete, "/api/sessions/client-1", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, s, http.MethodGet, "/api/sessions/client-1/messages", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, s, http.MethodDelete, "/api/sessions/client-1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	s, _ := newTestServer(t, nil)

	rec := do(t, s, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, rec.Body.String())

	rec = do(t, s, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, s, http.MethodGet, "/api/chat", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, StatusFor(apperrors.New(apperrors.ErrCodeInvalidInput, "bad", nil)))
	assert.Equal(t, http.StatusInternalServerError, StatusFor(errors.New("plain")))
}
