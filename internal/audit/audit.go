// Package audit records who changed what through the admin surface.
// Writes are best-effort: a failing audit store never blocks the
// operation it describes.
package audit

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/google/uuid"
)

// Actions recorded in the audit trail.
const (
	ActionCreate     = "create"
	ActionUpdate     = "update"
	ActionDelete     = "delete"
	ActionBulkDelete = "bulk_delete"
	ActionExport     = "export"
)

// Entry is one audit record.
type Entry struct {
	ID        string         `json:"id"`
	Model     string         `json:"model"`
	RecordID  string         `json:"record_id,omitempty"`
	Action    string         `json:"action"`
	Actor     string         `json:"actor,omitempty"`
	RemoteIP  string         `json:"remote_ip,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// Store persists audit entries.
type Store interface {
	Append(ctx context.Context, entry Entry) error
	Recent(ctx context.Context, limit int) ([]Entry, error)
}

// Logger writes entries to a Store, filling in IDs and timestamps, and
// downgrades store failures to log lines.
type Logger struct {
	store Store
	log   *zap.Logger
	now   func() time.Time
}

// NewLogger creates an audit logger. A nil store disables auditing.
func NewLogger(store Store, log *zap.Logger) *Logger {
	return &Logger{store: store, log: log, now: time.Now}
}

// Record appends one entry.
func (l *Logger) Record(ctx context.Context, entry Entry) {
	if l == nil || l.store == nil {
		return
	}
	entry.ID = uuid.NewString()
	entry.CreatedAt = l.now().UTC()
	if err := l.store.Append(ctx, entry); err != nil {
		l.log.Error("audit append failed",
			zap.String("model", entry.Model),
			zap.String("action", entry.Action),
			zap.Error(err))
	}
}

// Recent returns the newest entries, or nothing when auditing is disabled.
func (l *Logger) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if l == nil || l.store == nil {
		return nil, nil
	}
	return l.store.Recent(ctx, limit)
}
