package crud

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rasinmuhammed/matrix-admin/model"
)

// PgStore is the Postgres-backed Store for models with a backing table.
type PgStore struct {
	pool *pgxpool.Pool
}

// NewPgStore creates a store on the given pool.
func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

// HealthCheck reports whether the database is reachable.
func (s *PgStore) HealthCheck(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Count implements Store.
func (s *PgStore) Count(ctx context.Context, desc *model.ModelDescriptor, pred Predicate) (int64, error) {
	query, args := buildCount(desc, pred)
	var total int64
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

// Select implements Store.
func (s *PgStore) Select(ctx context.Context, desc *model.ModelDescriptor, pred Predicate, orders []Order, offset, limit int) ([]model.Record, error) {
	query, args := buildSelect(desc, pred, orders, offset, limit)
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToMap)
}

// Get implements Store, returning (nil, nil) on a missing record.
func (s *PgStore) Get(ctx context.Context, desc *model.ModelDescriptor, id any) (model.Record, error) {
	query, args := buildGet(desc, id)
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	rec, err := pgx.CollectOneRow(rows, pgx.RowToMap)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Insert implements Store.
func (s *PgStore) Insert(ctx context.Context, desc *model.ModelDescriptor, values model.Record) (model.Record, error) {
	query, args := buildInsert(desc, values)
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectOneRow(rows, pgx.RowToMap)
}

// UpdateByID implements Store, returning (nil, nil) on a missing record.
func (s *PgStore) UpdateByID(ctx context.Context, desc *model.ModelDescriptor, id any, values model.Record) (model.Record, error) {
	if len(values) == 0 {
		return s.Get(ctx, desc, id)
	}
	query, args := buildUpdate(desc, id, values)
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	rec, err := pgx.CollectOneRow(rows, pgx.RowToMap)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// DeleteByID implements Store.
func (s *PgStore) DeleteByID(ctx context.Context, desc *model.ModelDescriptor, id any) (bool, error) {
	query, args := buildDelete(desc, id)
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// DeleteManyByID implements Store.
func (s *PgStore) DeleteManyByID(ctx context.Context, desc *model.ModelDescriptor, ids []any) (int64, error) {
	query, args := buildDeleteMany(desc, ids)
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
