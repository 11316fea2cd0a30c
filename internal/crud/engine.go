package crud

import (
	"context"

	"github.com/rasinmuhammed/matrix-admin/model"
)

// Engine runs CRUD operations for registered models against a Store.
// The engine is stateless; all per-model behavior comes from the
// descriptor passed to each call.
type Engine struct {
	store Store
}

// NewEngine creates an Engine on the given store.
func NewEngine(store Store) *Engine {
	return &Engine{store: store}
}

// List returns one page of records plus the total count over the same
// predicate. Unknown filter, search, and order field names are dropped
// silently so stray query parameters cannot break a listing. When the
// query names no ordering, the descriptor's default applies.
func (e *Engine) List(ctx context.Context, desc *model.ModelDescriptor, q model.ListQuery) (*model.ListPage, error) {
	q = q.Normalize()

	pred := Predicate{
		Filters:      knownFilters(desc, q.Filters),
		Search:       q.Search,
		SearchFields: knownSearchFields(desc, q.SearchFields),
	}

	total, err := e.store.Count(ctx, desc, pred)
	if err != nil {
		return nil, err
	}

	offset := (q.Page - 1) * q.PerPage
	records := []model.Record{}
	if int64(offset) < total {
		records, err = e.store.Select(ctx, desc, pred, resolveOrders(desc, q.OrderBy), offset, q.PerPage)
		if err != nil {
			return nil, err
		}
	}

	totalPages := int((total + int64(q.PerPage) - 1) / int64(q.PerPage))
	return &model.ListPage{
		Records:    records,
		Total:      total,
		Page:       q.Page,
		PerPage:    q.PerPage,
		TotalPages: totalPages,
	}, nil
}

// Count returns the total number of records for the model.
func (e *Engine) Count(ctx context.Context, desc *model.ModelDescriptor) (int64, error) {
	return e.store.Count(ctx, desc, Predicate{})
}

// Walk streams every record matching the query in chunks, using the same
// predicate resolution as List, and returns how many records were seen.
// Export-style consumers use this to avoid holding a full result set.
func (e *Engine) Walk(ctx context.Context, desc *model.ModelDescriptor, q model.ListQuery, chunk int, fn func([]model.Record) error) (int, error) {
	if chunk < 1 {
		chunk = model.MaxPerPage
	}
	pred := Predicate{
		Filters:      knownFilters(desc, q.Filters),
		Search:       q.Search,
		SearchFields: knownSearchFields(desc, q.SearchFields),
	}
	orders := resolveOrders(desc, q.OrderBy)

	seen := 0
	for offset := 0; ; offset += chunk {
		records, err := e.store.Select(ctx, desc, pred, orders, offset, chunk)
		if err != nil {
			return seen, err
		}
		if len(records) == 0 {
			return seen, nil
		}
		if err := fn(records); err != nil {
			return seen, err
		}
		seen += len(records)
		if len(records) < chunk {
			return seen, nil
		}
	}
}

// Get fetches one record by primary key, failing with NOT_FOUND when no
// such record exists.
func (e *Engine) Get(ctx context.Context, desc *model.ModelDescriptor, id any) (model.Record, error) {
	rec, err := e.store.Get(ctx, desc, id)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, model.NewNotFoundError("record not found")
	}
	return rec, nil
}

// Create inserts a record built from values. Keys that are not columns
// of the model are dropped before the insert.
func (e *Engine) Create(ctx context.Context, desc *model.ModelDescriptor, values model.Record) (model.Record, error) {
	return e.store.Insert(ctx, desc, knownColumns(desc, values))
}

// Update applies values to the record with the given primary key,
// dropping unknown keys, and returns the updated record. A missing
// record fails with NOT_FOUND.
func (e *Engine) Update(ctx context.Context, desc *model.ModelDescriptor, id any, values model.Record) (model.Record, error) {
	rec, err := e.store.UpdateByID(ctx, desc, id, knownColumns(desc, values))
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, model.NewNotFoundError("record not found")
	}
	return rec, nil
}

// Delete removes the record with the given primary key, failing with
// NOT_FOUND when no such record exists.
func (e *Engine) Delete(ctx context.Context, desc *model.ModelDescriptor, id any) error {
	deleted, err := e.store.DeleteByID(ctx, desc, id)
	if err != nil {
		return err
	}
	if !deleted {
		return model.NewNotFoundError("record not found")
	}
	return nil
}

// BulkDelete removes every record whose primary key is in ids and
// returns how many were actually deleted. IDs with no matching record
// are not an error.
func (e *Engine) BulkDelete(ctx context.Context, desc *model.ModelDescriptor, ids []any) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	return e.store.DeleteManyByID(ctx, desc, ids)
}

// knownColumns keeps only value keys that are actual columns, so stray
// input fields are dropped before a write instead of erroring.
func knownColumns(desc *model.ModelDescriptor, values model.Record) model.Record {
	out := make(model.Record, len(values))
	for name, value := range values {
		if desc.Field(name) != nil {
			out[name] = value
		}
	}
	return out
}

// knownFilters keeps only filter keys that are actual columns.
func knownFilters(desc *model.ModelDescriptor, filters map[string]any) map[string]any {
	if len(filters) == 0 {
		return nil
	}
	out := make(map[string]any, len(filters))
	for name, value := range filters {
		if desc.Field(name) != nil {
			out[name] = value
		}
	}
	return out
}

// knownSearchFields keeps requested search fields that the descriptor
// declares searchable, defaulting to the descriptor's own set.
func knownSearchFields(desc *model.ModelDescriptor, requested []string) []string {
	if len(requested) == 0 {
		return desc.SearchFields
	}
	out := make([]string, 0, len(requested))
	for _, name := range requested {
		if containsString(desc.SearchFields, name) {
			out = append(out, name)
		}
	}
	return out
}

// resolveOrders parses the query's order term, falling back to the
// descriptor's default ordering. Unknown fields are dropped.
func resolveOrders(desc *model.ModelDescriptor, orderBy string) []Order {
	terms := []string{}
	if orderBy != "" {
		terms = append(terms, orderBy)
	} else {
		terms = append(terms, desc.OrderFields...)
	}

	var orders []Order
	for _, term := range terms {
		field, descOrder := parseOrderTerm(term)
		if desc.Field(field) == nil {
			continue
		}
		orders = append(orders, Order{Field: field, Desc: descOrder})
	}
	return orders
}

func parseOrderTerm(term string) (string, bool) {
	if len(term) > 0 && term[0] == '-' {
		return term[1:], true
	}
	return term, false
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
