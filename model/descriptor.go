package model

import (
	"sort"
	"strings"
)

// FieldKind classifies a column for form rendering and value coercion.
type FieldKind string

// Field kinds.
const (
	KindText     FieldKind = "text"
	KindTextarea FieldKind = "textarea"
	KindNumber   FieldKind = "number"
	KindFloat    FieldKind = "float"
	KindBool     FieldKind = "bool"
	KindDatetime FieldKind = "datetime"
	KindRelation FieldKind = "relation"
)

// Textual reports whether values of this kind are free text, which makes
// the field eligible for substring search.
func (k FieldKind) Textual() bool {
	return k == KindText || k == KindTextarea
}

// FieldDescriptor describes one column of a managed model.
type FieldDescriptor struct {
	Name       string    `json:"name"`
	Kind       FieldKind `json:"kind"`
	Nullable   bool      `json:"nullable"`
	MaxLength  int       `json:"max_length,omitempty"`
	PrimaryKey bool      `json:"primary_key,omitempty"`
	References string    `json:"references,omitempty"`
}

// SubtypeSchema describes one polymorphic variant of a model. The variant
// carries the fields that only exist on that subtype.
type SubtypeSchema struct {
	Name   string            `json:"name"`
	Fields []FieldDescriptor `json:"fields,omitempty"`
}

// TableSchema is the structural description a descriptor is built from,
// whether it came from database introspection, an API document, or was
// written by hand. An empty Table means the schema has no backing table
// and records live only in memory. Abstract schemas are never exposed
// directly and exist to be subclassed.
type TableSchema struct {
	Name     string            `json:"name"`
	Table    string            `json:"table,omitempty"`
	Abstract bool              `json:"abstract,omitempty"`
	Fields   []FieldDescriptor `json:"fields"`
	Subtypes []SubtypeSchema   `json:"subtypes,omitempty"`
}

// Field returns the named field, or nil when the schema has no such column.
func (s *TableSchema) Field(name string) *FieldDescriptor {
	for i := range s.Fields {
		if s.Fields[i].Name == name {
			return &s.Fields[i]
		}
	}
	return nil
}

// ModelDescriptor is the complete admin-surface configuration for one
// managed model. Descriptors are immutable once registered.
type ModelDescriptor struct {
	Name          string   `json:"name"`
	Schema        TableSchema `json:"schema"`
	Subtypes      []string `json:"subtypes,omitempty"`
	IncludeFields []string `json:"include_fields,omitempty"`
	ExcludeFields []string `json:"exclude_fields,omitempty"`
	ListFields    []string `json:"list_fields,omitempty"`
	SearchFields  []string `json:"search_fields,omitempty"`
	OrderFields   []string `json:"order_fields,omitempty"`
	Icon          string   `json:"icon,omitempty"`
	ReadOnly      bool     `json:"read_only,omitempty"`
}

// Field returns the named field from the model's schema, falling back to
// subtype-specific fields, or nil when no such column exists anywhere.
func (d *ModelDescriptor) Field(name string) *FieldDescriptor {
	if f := d.Schema.Field(name); f != nil {
		return f
	}
	for i := range d.Schema.Subtypes {
		sub := &d.Schema.Subtypes[i]
		for j := range sub.Fields {
			if sub.Fields[j].Name == name {
				return &sub.Fields[j]
			}
		}
	}
	return nil
}

// Subtype returns the named subtype schema, or nil when the model does
// not declare it.
func (d *ModelDescriptor) Subtype(name string) *SubtypeSchema {
	for i := range d.Schema.Subtypes {
		if d.Schema.Subtypes[i].Name == name {
			return &d.Schema.Subtypes[i]
		}
	}
	return nil
}

// AllowsSubtype reports whether name is in the model's declared subtype set.
func (d *ModelDescriptor) AllowsSubtype(name string) bool {
	for _, s := range d.Subtypes {
		if s == name {
			return true
		}
	}
	return false
}

// PrimaryKey returns the primary key column name, defaulting to "id"
// when the schema marks none.
func (d *ModelDescriptor) PrimaryKey() string {
	for _, f := range d.Schema.Fields {
		if f.PrimaryKey {
			return f.Name
		}
	}
	return "id"
}

// FormFields returns the fields presented on create and edit forms in
// schema order: the include list when set, otherwise every schema field
// minus the exclude list, always minus the primary key.
func (d *ModelDescriptor) FormFields() []FieldDescriptor {
	pk := d.PrimaryKey()
	out := make([]FieldDescriptor, 0, len(d.Schema.Fields))
	for _, f := range d.Schema.Fields {
		if f.Name == pk {
			continue
		}
		if len(d.IncludeFields) > 0 {
			if !containsString(d.IncludeFields, f.Name) {
				continue
			}
		} else if containsString(d.ExcludeFields, f.Name) {
			continue
		}
		out = append(out, f)
	}
	return out
}

// Storable reports whether records of this model persist in the database.
func (d *ModelDescriptor) Storable() bool {
	return d.Schema.Table != ""
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// Record is one row of a managed model, keyed by column name.
type Record = map[string]any

// Pagination bounds.
const (
	DefaultPerPage = 25
	MaxPerPage     = 100
)

// ListQuery carries the parameters of a paginated list operation.
type ListQuery struct {
	Page         int
	PerPage      int
	Search       string
	SearchFields []string
	Filters      map[string]any
	OrderBy      string
}

// Normalize clamps the query to valid bounds: page at least 1, per-page
// within [1, MaxPerPage], defaulting to DefaultPerPage when unset.
func (q ListQuery) Normalize() ListQuery {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PerPage < 1 {
		q.PerPage = DefaultPerPage
	}
	if q.PerPage > MaxPerPage {
		q.PerPage = MaxPerPage
	}
	return q
}

// Descending reports whether the query's order field carries the "-"
// prefix, and returns the bare field name alongside.
func (q ListQuery) Descending() (field string, desc bool) {
	if strings.HasPrefix(q.OrderBy, "-") {
		return q.OrderBy[1:], true
	}
	return q.OrderBy, false
}

// ListPage is the result of a paginated list operation.
type ListPage struct {
	Records    []Record `json:"records"`
	Total      int64    `json:"total"`
	Page       int      `json:"page"`
	PerPage    int      `json:"per_page"`
	TotalPages int      `json:"total_pages"`
}

// SortedFieldNames returns the names of all schema fields in sorted
// order, for deterministic diagnostics.
func (s *TableSchema) SortedFieldNames() []string {
	names := make([]string, 0, len(s.Fields))
	for _, f := range s.Fields {
		names = append(names, f.Name)
	}
	sort.Strings(names)
	return names
}
