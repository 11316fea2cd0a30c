package audit

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5/pgxpool"
)

const auditSchema = `
CREATE TABLE IF NOT EXISTS admin_audit_log (
	id         TEXT PRIMARY KEY,
	model      TEXT NOT NULL,
	record_id  TEXT,
	action     TEXT NOT NULL,
	actor      TEXT,
	remote_ip  TEXT,
	data       JSONB,
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS admin_audit_log_created_at_idx
	ON admin_audit_log (created_at DESC)`

// PgStore persists audit entries in Postgres.
type PgStore struct {
	pool *pgxpool.Pool
}

// NewPgStore creates a store on the given pool.
func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

// EnsureSchema creates the audit table if it does not exist.
func (s *PgStore) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, auditSchema)
	return err
}

// Append implements Store.
func (s *PgStore) Append(ctx context.Context, entry Entry) error {
	var data []byte
	if entry.Data != nil {
		var err error
		data, err = json.Marshal(entry.Data)
		if err != nil {
			return err
		}
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO admin_audit_log (id, model, record_id, action, actor, remote_ip, data, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		entry.ID, entry.Model, entry.RecordID, entry.Action, entry.Actor, entry.RemoteIP, data, entry.CreatedAt)
	return err
}

// Recent implements Store, returning entries newest first.
func (s *PgStore) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, model, coalesce(record_id, ''), action, coalesce(actor, ''),
		       coalesce(remote_ip, ''), data, created_at
		FROM admin_audit_log
		ORDER BY created_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var data []byte
		if err := rows.Scan(&e.ID, &e.Model, &e.RecordID, &e.Action, &e.Actor, &e.RemoteIP, &data, &e.CreatedAt); err != nil {
			return nil, err
		}
		if len(data) > 0 {
			if err := json.Unmarshal(data, &e.Data); err != nil {
				return nil, err
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// HealthCheck reports whether the database is reachable.
func (s *PgStore) HealthCheck(ctx context.Context) error {
	return s.pool.Ping(ctx)
}
