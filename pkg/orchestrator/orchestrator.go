// Package orchestrator turns one inbound user message into at most one tool
// invocation bracketed by two model calls, recording every step as it goes.
//
// Processing is strictly sequential within a message. There is no per-session
// lock: two concurrent messages for the same context may interleave their
// writes, and ordering in storage is by creation time only.
package orchestrator

import (
	"context"
	"time"

	"github.com/go-logr/logr"

	apperrors "github.com/kagent-dev/toolchat/pkg/errors"
	"github.com/kagent-dev/toolchat/pkg/llm"
	"github.com/kagent-dev/toolchat/pkg/metrics"
	"github.com/kagent-dev/toolchat/pkg/store"
)

// ToolCatalog supplies the declarations advertised on the first model call.
type ToolCatalog interface {
	Declarations() []llm.FunctionDeclaration
}

// ToolExecutor runs a named tool with model-supplied arguments.
type ToolExecutor interface {
	Execute(ctx context.Context, name string, args map[string]any) (any, error)
}

// Result is the client-facing outcome of a processed message.
type Result struct {
	SessionID    string            `json:"sessionId"`
	ProposedCall *llm.FunctionCall `json:"functionCall,omitempty"`
	FinalText    string            `json:"finalResponse"`
}

// Orchestrator processes chat messages.
type Orchestrator struct {
	gateway  llm.Gateway
	catalog  ToolCatalog
	executor ToolExecutor
	store    store.Store
	metrics  *metrics.Metrics
	log      logr.Logger
	now      func() time.Time
}

// New creates an Orchestrator. metrics may be nil.
func New(gateway llm.Gateway, catalog ToolCatalog, executor ToolExecutor, st store.Store, m *metrics.Metrics, log logr.Logger) *Orchestrator {
	return &Orchestrator{
		gateway:  gateway,
		catalog:  catalog,
		executor: executor,
		store:    st,
		metrics:  m,
		log:      log.WithName("orchestrator"),
		now:      time.Now,
	}
}

// ProcessMessage handles one user message for the session identified by
// contextID. text is assumed to be validated by the caller.
//
// Each artifact is persisted as soon as it exists, so a failure part way
// through leaves the user message and any tool proposal on record. Errors are
// returned as-is and never retried.
func (o *Orchestrator) ProcessMessage(ctx context.Context, contextID, text string) (result *Result, err error) {
	defer func() {
		o.metrics.CountMessage(apperrors.CodeOf(err))
	}()

	// Fail before any write when the model cannot be reached.
	if err := o.gateway.CheckCredentials(); err != nil {
		return nil, err
	}

	session, err := o.store.EnsureSession(ctx, contextID)
	if err != nil {
		return nil, err
	}
	log := o.log.WithValues("session", session.ID)

	if err := o.store.AppendMessage(ctx, &store.Message{
		SessionID: session.ID,
		Role:      store.RoleUser,
		Content:   text,
	}); err != nil {
		return nil, err
	}

	start := o.now()
	first, err := o.gateway.Converse(ctx, text, o.catalog.Declarations())
	firstDuration := o.since(start)
	o.metrics.ObserveModelCall(metrics.CallFirst, firstDuration, err)
	if err != nil {
		log.Error(err, "First model call failed")
		return nil, err
	}

	if first.ProposedCall == nil {
		if err := o.store.AppendMessage(ctx, &store.Message{
			SessionID:       session.ID,
			Role:            store.RoleAssistant,
			Content:         first.Content,
			ExecutionTimeMs: millis(firstDuration),
		}); err != nil {
			return nil, err
		}
		log.V(1).Info("Answered without tool", "durationMs", firstDuration.Milliseconds())
		return &Result{SessionID: session.ID, FinalText: first.Content}, nil
	}

	call := *first.ProposedCall
	if call.Arguments == nil {
		call.Arguments = map[string]any{}
	}
	log = log.WithValues("tool", call.Name)

	proposal := &store.Message{
		SessionID:       session.ID,
		Role:            store.RoleAssistant,
		Content:         first.Content,
		ToolCall:        &call,
		ExecutionTimeMs: millis(firstDuration),
	}
	if err := o.store.AppendMessage(ctx, proposal); err != nil {
		return nil, err
	}

	start = o.now()
	toolResult, execErr := o.executor.Execute(ctx, call.Name, call.Arguments)
	execDuration := o.since(start)
	toolLabel := call.Name
	if apperrors.IsCode(execErr, apperrors.ErrCodeUnknownTool) {
		toolLabel = metrics.ToolUnknown
	}
	o.metrics.ObserveToolExecution(toolLabel, execDuration, execErr)

	record := &store.FunctionCall{
		MessageID:       proposal.ID,
		ToolName:        call.Name,
		Arguments:       call.Arguments,
		Status:          store.CallStatusCompleted,
		ExecutionTimeMs: execDuration.Milliseconds(),
	}
	if execErr != nil {
		record.Status = store.CallStatusFailed
		record.Error = execErr.Error()
	} else {
		record.Result = toolResult
	}
	recordErr := o.store.RecordFunctionCall(ctx, record)

	if execErr != nil {
		if recordErr != nil {
			log.Error(recordErr, "Failed to record failed tool execution")
		}
		log.Error(execErr, "Tool execution failed", "durationMs", execDuration.Milliseconds())
		return nil, execErr
	}
	if recordErr != nil {
		return nil, recordErr
	}
	log.V(1).Info("Tool executed", "durationMs", execDuration.Milliseconds())

	start = o.now()
	second, err := o.gateway.ConverseWithToolResult(ctx, text, call, toolResult)
	secondDuration := o.since(start)
	o.metrics.ObserveModelCall(metrics.CallSecond, secondDuration, err)
	if err != nil {
		log.Error(err, "Follow-up model call failed")
		return nil, err
	}

	if err := o.store.AppendMessage(ctx, &store.Message{
		SessionID:       session.ID,
		Role:            store.RoleAssistant,
		Content:         second.Content,
		ExecutionTimeMs: millis(secondDuration),
	}); err != nil {
		return nil, err
	}

	return &Result{
		SessionID:    session.ID,
		ProposedCall: &call,
		FinalText:    second.Content,
	}, nil
}

func (o *Orchestrator) since(start time.Time) time.Duration {
	return o.now().Sub(start)
}

func millis(d time.Duration) *int64 {
	ms := d.Milliseconds()
	return &ms
}
