package crud

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rasinmuhammed/matrix-admin/model"
)

// MemStore is an in-memory Store. It backs schema-only models in
// production and every model in tests.
type MemStore struct {
	mu     sync.RWMutex
	tables map[string]*memTable
}

type memTable struct {
	records []model.Record
	nextID  int64
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{tables: map[string]*memTable{}}
}

// table returns the model's table, creating it on first use. Callers
// must hold the write lock.
func (s *MemStore) table(name string) *memTable {
	t, ok := s.tables[name]
	if !ok {
		t = &memTable{nextID: 1}
		s.tables[name] = t
	}
	return t
}

// rows returns the model's records without creating a table for unseen
// models, keeping read paths safe under the read lock.
func (s *MemStore) rows(name string) []model.Record {
	if t, ok := s.tables[name]; ok {
		return t.records
	}
	return nil
}

// Count implements Store.
func (s *MemStore) Count(_ context.Context, desc *model.ModelDescriptor, pred Predicate) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, rec := range s.rows(desc.Name) {
		if matchPredicate(rec, pred) {
			n++
		}
	}
	return n, nil
}

// Select implements Store.
func (s *MemStore) Select(_ context.Context, desc *model.ModelDescriptor, pred Predicate, orders []Order, offset, limit int) ([]model.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []model.Record
	for _, rec := range s.rows(desc.Name) {
		if matchPredicate(rec, pred) {
			matched = append(matched, cloneRecord(rec))
		}
	}

	for i := len(orders) - 1; i >= 0; i-- {
		o := orders[i]
		sort.SliceStable(matched, func(a, b int) bool {
			cmp := compareValues(matched[a][o.Field], matched[b][o.Field])
			if o.Desc {
				return cmp > 0
			}
			return cmp < 0
		})
	}

	if offset >= len(matched) {
		return []model.Record{}, nil
	}
	end := offset + limit
	if limit <= 0 || end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], nil
}

// Get implements Store, returning (nil, nil) on a missing record.
func (s *MemStore) Get(_ context.Context, desc *model.ModelDescriptor, id any) (model.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pk := desc.PrimaryKey()
	for _, rec := range s.rows(desc.Name) {
		if equalValues(rec[pk], id) {
			return cloneRecord(rec), nil
		}
	}
	return nil, nil
}

// Insert implements Store, assigning a sequential primary key when the
// values carry none.
func (s *MemStore) Insert(_ context.Context, desc *model.ModelDescriptor, values model.Record) (model.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.table(desc.Name)
	rec := cloneRecord(values)
	pk := desc.PrimaryKey()
	if _, ok := rec[pk]; !ok {
		rec[pk] = t.nextID
		t.nextID++
	}
	t.records = append(t.records, rec)
	return cloneRecord(rec), nil
}

// UpdateByID implements Store, returning (nil, nil) on a missing record.
func (s *MemStore) UpdateByID(_ context.Context, desc *model.ModelDescriptor, id any, values model.Record) (model.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pk := desc.PrimaryKey()
	for _, rec := range s.table(desc.Name).records {
		if equalValues(rec[pk], id) {
			for k, v := range values {
				if k == pk {
					continue
				}
				rec[k] = v
			}
			return cloneRecord(rec), nil
		}
	}
	return nil, nil
}

// DeleteByID implements Store.
func (s *MemStore) DeleteByID(_ context.Context, desc *model.ModelDescriptor, id any) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.table(desc.Name)
	pk := desc.PrimaryKey()
	for i, rec := range t.records {
		if equalValues(rec[pk], id) {
			t.records = append(t.records[:i], t.records[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

// DeleteManyByID implements Store.
func (s *MemStore) DeleteManyByID(_ context.Context, desc *model.ModelDescriptor, ids []any) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.table(desc.Name)
	pk := desc.PrimaryKey()
	var kept []model.Record
	var deleted int64
	for _, rec := range t.records {
		removed := false
		for _, id := range ids {
			if equalValues(rec[pk], id) {
				removed = true
				break
			}
		}
		if removed {
			deleted++
		} else {
			kept = append(kept, rec)
		}
	}
	t.records = kept
	return deleted, nil
}

func matchPredicate(rec model.Record, pred Predicate) bool {
	for col, want := range pred.Filters {
		if !equalValues(rec[col], want) {
			return false
		}
	}
	if pred.Search != "" && len(pred.SearchFields) > 0 {
		needle := strings.ToLower(pred.Search)
		found := false
		for _, col := range pred.SearchFields {
			v, ok := rec[col]
			if !ok || v == nil {
				continue
			}
			if strings.Contains(strings.ToLower(fmt.Sprint(v)), needle) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func cloneRecord(rec model.Record) model.Record {
	out := make(model.Record, len(rec))
	for k, v := range rec {
		out[k] = v
	}
	return out
}

// equalValues compares loosely across numeric widths and string forms,
// since request IDs arrive as strings while stored keys may be integers.
func equalValues(a, b any) bool {
	if a == nil || b == nil {
		return a == b
	}
	if af, aok := toFloat(a); aok {
		if bf, bok := toFloat(b); bok {
			return af == bf
		}
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

// compareValues orders mixed-type values: nil first, then numerically or
// chronologically where possible, falling back to string comparison.
func compareValues(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}

	if at, aok := a.(time.Time); aok {
		if bt, bok := b.(time.Time); bok {
			return at.Compare(bt)
		}
	}
	if af, aok := toFloat(a); aok {
		if bf, bok := toFloat(b); bok {
			switch {
			case af < bf:
				return -1
			case af > bf:
				return 1
			default:
				return 0
			}
		}
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}
