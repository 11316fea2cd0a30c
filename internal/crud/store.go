// Package crud executes list, read, and write operations for any
// registered model. The engine translates declarative queries into calls
// on a Store; stores own the actual record access.
package crud

import (
	"context"

	"github.com/rasinmuhammed/matrix-admin/model"
)

// Predicate is the filter set an operation applies. Count and Select are
// always driven off the same predicate so totals and pages never drift
// apart.
type Predicate struct {
	// Filters are exact-match equality conditions, ANDed together.
	Filters map[string]any
	// Search is matched case-insensitively as a substring of any one of
	// SearchFields, ORed together. Empty means no search condition.
	Search       string
	SearchFields []string
}

// Empty reports whether the predicate constrains nothing.
func (p Predicate) Empty() bool {
	return len(p.Filters) == 0 && (p.Search == "" || len(p.SearchFields) == 0)
}

// Order is one ordering term.
type Order struct {
	Field string
	Desc  bool
}

// Store is the storage handle the engine operates through. Get returns
// (nil, nil) when no record has the given primary key.
type Store interface {
	Count(ctx context.Context, desc *model.ModelDescriptor, pred Predicate) (int64, error)
	Select(ctx context.Context, desc *model.ModelDescriptor, pred Predicate, orders []Order, offset, limit int) ([]model.Record, error)
	Get(ctx context.Context, desc *model.ModelDescriptor, id any) (model.Record, error)
	Insert(ctx context.Context, desc *model.ModelDescriptor, values model.Record) (model.Record, error)
	UpdateByID(ctx context.Context, desc *model.ModelDescriptor, id any, values model.Record) (model.Record, error)
	DeleteByID(ctx context.Context, desc *model.ModelDescriptor, id any) (bool, error)
	DeleteManyByID(ctx context.Context, desc *model.ModelDescriptor, ids []any) (int64, error)
}

// DispatchStore routes each call to a database-backed store or an
// in-memory one depending on whether the descriptor has a backing
// table. Schema-only models stay usable without a database.
type DispatchStore struct {
	db  Store
	mem Store
}

// NewDispatchStore builds a router over the two stores. db may be nil
// when the process runs without a database; storable models then fall
// back to the in-memory store too.
func NewDispatchStore(db, mem Store) *DispatchStore {
	return &DispatchStore{db: db, mem: mem}
}

func (d *DispatchStore) pick(desc *model.ModelDescriptor) Store {
	if desc.Storable() && d.db != nil {
		return d.db
	}
	return d.mem
}

func (d *DispatchStore) Count(ctx context.Context, desc *model.ModelDescriptor, pred Predicate) (int64, error) {
	return d.pick(desc).Count(ctx, desc, pred)
}

func (d *DispatchStore) Select(ctx context.Context, desc *model.ModelDescriptor, pred Predicate, orders []Order, offset, limit int) ([]model.Record, error) {
	return d.pick(desc).Select(ctx, desc, pred, orders, offset, limit)
}

func (d *DispatchStore) Get(ctx context.Context, desc *model.ModelDescriptor, id any) (model.Record, error) {
	return d.pick(desc).Get(ctx, desc, id)
}

func (d *DispatchStore) Insert(ctx context.Context, desc *model.ModelDescriptor, values model.Record) (model.Record, error) {
	return d.pick(desc).Insert(ctx, desc, values)
}

func (d *DispatchStore) UpdateByID(ctx context.Context, desc *model.ModelDescriptor, id any, values model.Record) (model.Record, error) {
	return d.pick(desc).UpdateByID(ctx, desc, id, values)
}

func (d *DispatchStore) DeleteByID(ctx context.Context, desc *model.ModelDescriptor, id any) (bool, error) {
	return d.pick(desc).DeleteByID(ctx, desc, id)
}

func (d *DispatchStore) DeleteManyByID(ctx context.Context, desc *model.ModelDescriptor, ids []any) (int64, error) {
	return d.pick(desc).DeleteManyByID(ctx, desc, ids)
}
