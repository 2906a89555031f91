// Package audit persists a best-effort log of tool invocations.
package audit

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DefaultSQLiteFile is the SQLite database file created in the working
// directory when no DSN is configured.
const DefaultSQLiteFile = "mcpml.db"

// Record is a single persisted invocation outcome.
type Record struct {
	ID         string `gorm:"primaryKey"`
	ToolName   string `gorm:"index"`
	Kind       string
	Outcome    string
	ErrorKind  string
	Error      string
	DurationMs int64
	Arguments  datatypes.JSON
	Result     datatypes.JSON
	CreatedAt  time.Time `gorm:"index"`
}

// Store writes invocation records to the database.
// All writes are best-effort: a failed write is logged and dropped, it
// never affects the invocation it describes.
type Store struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewStore opens the audit database and runs its migration.
// An empty DSN selects a local SQLite file; a postgres:// DSN selects
// Postgres.
func NewStore(dsn string, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}

	var dialector gorm.Dialector
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		dialector = postgres.Open(dsn)
	} else {
		if dsn == "" {
			dsn = DefaultSQLiteFile
		}
		dialector = sqlite.Open(dsn)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open audit database: %w", err)
	}
	if err := db.AutoMigrate(&Record{}); err != nil {
		return nil, fmt.Errorf("failed to migrate audit database: %w", err)
	}

	return &Store{db: db, logger: log}, nil
}

// RecordInvocation persists one invocation outcome.
// It satisfies the invocation engine's Recorder interface.
func (s *Store) RecordInvocation(
	tool, kind, outcome, errorKind, errMsg string,
	d time.Duration,
	args map[string]any,
	result any,
) {
	rec := &Record{
		ID:         uuid.NewString(),
		ToolName:   tool,
		Kind:       kind,
		Outcome:    outcome,
		ErrorKind:  errorKind,
		Error:      errMsg,
		DurationMs: d.Milliseconds(),
		Arguments:  marshalSnapshot(args),
		Result:     marshalSnapshot(result),
		CreatedAt:  time.Now().UTC(),
	}

	if err := s.db.Create(rec).Error; err != nil {
		s.logger.Warn("failed to record invocation",
			zap.String("tool", tool), zap.Error(err),
		)
	}
}

// ListRecent returns up to limit records, newest first.
func (s *Store) ListRecent(limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}
	var records []Record
	if err := s.db.Order("created_at DESC").Limit(limit).Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to list invocation records: %w", err)
	}
	return records, nil
}

// marshalSnapshot serializes a value for storage; unserializable values
// are stored as null rather than failing the record.
func marshalSnapshot(v any) datatypes.JSON {
	if v == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return data
}
