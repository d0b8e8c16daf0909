package store

import (
	"time"

	"github.com/kagent-dev/toolchat/pkg/llm"
)

// Message roles
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Function call statuses
const (
	CallStatusCompleted = "completed"
	CallStatusFailed    = "failed"
)

// Session groups the messages of one client context.
type Session struct {
	ID           string    `gorm:"primaryKey;size:36" json:"id"`
	ContextID    string    `gorm:"not null;uniqueIndex;size:255" json:"contextId"`
	UserID       *string   `gorm:"size:255" json:"userId,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	LastActiveAt time.Time `json:"lastActiveAt"`
}

// Message is an append-only conversation entry. Messages of a session are
// ordered by (created_at, id).
type Message struct {
	ID              uint              `gorm:"primaryKey" json:"id"`
	SessionID       string            `gorm:"not null;size:36;index:idx_session_created,priority:1" json:"sessionId"`
	Role            string            `gorm:"not null;size:16" json:"role"`
	Content         string            `gorm:"type:text" json:"content"`
	ToolCall        *llm.FunctionCall `gorm:"type:text;serializer:json" json:"toolCall,omitempty"`
	ExecutionTimeMs *int64            `json:"executionTimeMs,omitempty"`
	CreatedAt       time.Time         `gorm:"index:idx_session_created,priority:2" json:"createdAt"`
}

// FunctionCall records one tool execution attempt for the assistant message
// that proposed it. Result is nil when execution failed.
type FunctionCall struct {
	ID              uint           `gorm:"primaryKey" json:"id"`
	MessageID       uint           `gorm:"not null;uniqueIndex" json:"messageId"`
	ToolName        string         `gorm:"not null;size:128;index" json:"toolName"`
	Arguments       map[string]any `gorm:"type:text;serializer:json" json:"arguments"`
	Result          any            `gorm:"type:text;serializer:json" json:"result,omitempty"`
	Status          string         `gorm:"not null;size:32" json:"status"`
	Error           string         `gorm:"type:text" json:"error,omitempty"`
	ExecutionTimeMs int64          `json:"executionTimeMs"`
	CreatedAt       time.Time      `json:"createdAt"`
}

// ToolRecord mirrors a registered tool for listing.
type ToolRecord struct {
	Name        string          `gorm:"primaryKey;size:128" json:"name"`
	Description string          `gorm:"type:text" json:"description"`
	Parameters  []ToolParameter `gorm:"type:text;serializer:json" json:"parameters"`
	Position    int             `json:"-"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

func (ToolRecord) TableName() string {
	return "tools"
}

// ToolParameter is the persisted form of a tool parameter.
type ToolParameter struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description"`
}

func allModels() []any {
	return []any{&Session{}, &Message{}, &FunctionCall{}, &ToolRecord{}}
}
