package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/kagent-dev/toolchat/pkg/config"
	apperrors "github.com/kagent-dev/toolchat/pkg/errors"
)

// Store is the durable record of sessions, messages and function calls.
// Every write is an independent append; no transaction spans a whole turn.
type Store interface {
	// EnsureSession returns the session for contextID, creating it if needed.
	EnsureSession(ctx context.Context, contextID string) (*Session, error)
	// GetSession fails with NOT_FOUND when no session exists for contextID.
	GetSession(ctx context.Context, contextID string) (*Session, error)
	AppendMessage(ctx context.Context, msg *Message) error
	RecordFunctionCall(ctx context.Context, call *FunctionCall) error
	ListMessages(ctx context.Context, sessionID string) ([]Message, error)
	ListFunctionCalls(ctx context.Context, sessionID string) ([]FunctionCall, error)
	// DeleteSession removes the session with its messages and function calls.
	DeleteSession(ctx context.Context, contextID string) error
	// SyncTools replaces the tool mirror with the given records, in order.
	SyncTools(ctx context.Context, tools []ToolRecord) error
	ListTools(ctx context.Context) ([]ToolRecord, error)
	Close() error
}

// GormStore implements Store on gorm.
type GormStore struct {
	db  *gorm.DB
	log logr.Logger
	now func() time.Time
}

var _ Store = (*GormStore)(nil)

// Open connects to the configured database and migrates the schema.
func Open(cfg config.DatabaseConfig, log logr.Logger) (*GormStore, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "", "sqlite":
		dialector = sqlite.Open(cfg.DSN)
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	default:
		return nil, apperrors.New(apperrors.ErrCodeConfiguration, fmt.Sprintf("unsupported database driver %q", cfg.Driver), nil)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, apperrors.New(apperrors.ErrCodePersistence, "failed to open database", err)
	}

	if cfg.Driver != "postgres" {
		// SQLite allows a single writer.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, apperrors.New(apperrors.ErrCodePersistence, "failed to access database handle", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}

	return New(db, log)
}

// New wraps an existing connection and migrates the schema.
func New(db *gorm.DB, log logr.Logger) (*GormStore, error) {
	if err := db.AutoMigrate(allModels()...); err != nil {
		return nil, apperrors.New(apperrors.ErrCodePersistence, "failed to migrate schema", err)
	}
	return &GormStore{
		db:  db,
		log: log.WithName("store"),
		now: time.Now,
	}, nil
}

func (s *GormStore) EnsureSession(ctx context.Context, contextID string) (*Session, error) {
	if contextID == "" {
		return nil, apperrors.New(apperrors.ErrCodeInvalidInput, "context id is required", nil)
	}

	now := s.now()
	var session Session
	err := s.db.WithContext(ctx).
		Where("context_id = ?", contextID).
		Attrs(Session{ID: uuid.NewString(), ContextID: contextID, CreatedAt: now, LastActiveAt: now}).
		FirstOrCreate(&session).Error
	if err != nil {
		// A concurrent request may have created the row first.
		if existing, getErr := s.GetSession(ctx, contextID); getErr == nil {
			return existing, nil
		}
		return nil, persistenceError("failed to ensure session", err)
	}
	return &session, nil
}

func (s *GormStore) GetSession(ctx context.Context, contextID string) (*Session, error) {
	var session Session
	err := s.db.WithContext(ctx).Where("context_id = ?", contextID).First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.New(apperrors.ErrCodeNotFound, fmt.Sprintf("session %s not found", contextID), err)
		}
		return nil, persistenceError("failed to get session", err)
	}
	return &session, nil
}

func (s *GormStore) AppendMessage(ctx context.Context, msg *Message) error {
	if msg.SessionID == "" {
		return apperrors.New(apperrors.ErrCodeInvalidInput, "message has no session", nil)
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = s.now()
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(msg).Error; err != nil {
			return err
		}
		return tx.Model(&Session{}).
			Where("id = ?", msg.SessionID).
			Update("last_active_at", msg.CreatedAt).Error
	})
	if err != nil {
		return persistenceError("failed to append message", err)
	}
	return nil
}

func (s *GormStore) RecordFunctionCall(ctx context.Context, call *FunctionCall) error {
	if call.CreatedAt.IsZero() {
		call.CreatedAt = s.now()
	}
	if err := s.db.WithContext(ctx).Create(call).Error; err != nil {
		return persistenceError("failed to record function call", err)
	}
	return nil
}

func (s *GormStore) ListMessages(ctx context.Context, sessionID string) ([]Message, error) {
	var messages []Message
	err := s.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at ASC").Order("id ASC").
		Find(&messages).Error
	if err != nil {
		return nil, persistenceError("failed to list messages", err)
	}
	return messages, nil
}

func (s *GormStore) ListFunctionCalls(ctx context.Context, sessionID string) ([]FunctionCall, error) {
	var calls []FunctionCall
	err := s.db.WithContext(ctx).
		Where("message_id IN (?)", s.db.Model(&Message{}).Select("id").Where("session_id = ?", sessionID)).
		Order("id ASC").
		Find(&calls).Error
	if err != nil {
		return nil, persistenceError("failed to list function calls", err)
	}
	return calls, nil
}

func (s *GormStore) DeleteSession(ctx context.Context, contextID string) error {
	session, err := s.GetSession(ctx, contextID)
	if err != nil {
		return err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		messageIDs := tx.Model(&Message{}).Select("id").Where("session_id = ?", session.ID)
		if err := tx.Where("message_id IN (?)", messageIDs).Delete(&FunctionCall{}).Error; err != nil {
			return err
		}
		if err := tx.Where("session_id = ?", session.ID).Delete(&Message{}).Error; err != nil {
			return err
		}
		return tx.Delete(&Session{}, "id = ?", session.ID).Error
	})
	if err != nil {
		return persistenceError("failed to delete session", err)
	}

	s.log.Info("Deleted session", "session", session.ID, "context", contextID)
	return nil
}

func (s *GormStore) SyncTools(ctx context.Context, tools []ToolRecord) error {
	now := s.now()
	names := make([]string, 0, len(tools))
	for i := range tools {
		tools[i].Position = i
		tools[i].UpdatedAt = now
		names = append(names, tools[i].Name)
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(tools) > 0 {
			if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&tools).Error; err != nil {
				return err
			}
		}
		stale := tx.Model(&ToolRecord{})
		if len(names) > 0 {
			stale = stale.Where("name NOT IN ?", names)
		} else {
			stale = stale.Where("1 = 1")
		}
		return stale.Delete(&ToolRecord{}).Error
	})
	if err != nil {
		return persistenceError("failed to sync tools", err)
	}
	return nil
}

func (s *GormStore) ListTools(ctx context.Context) ([]ToolRecord, error) {
	var tools []ToolRecord
	if err := s.db.WithContext(ctx).Order("position ASC").Find(&tools).Error; err != nil {
		return nil, persistenceError("failed to list tools", err)
	}
	return tools, nil
}

func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func persistenceError(message string, err error) error {
	return apperrors.New(apperrors.ErrCodePersistence, message, err)
}
