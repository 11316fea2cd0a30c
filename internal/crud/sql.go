package crud

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rasinmuhammed/matrix-admin/model"
)

// The SQL builders below produce parameterized statements only. Column
// and table names are always quoted identifiers drawn from descriptors,
// never from request input, and every value travels as a placeholder.

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// escapeLike quotes LIKE metacharacters in user search text.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}

// buildWhere renders the predicate as a WHERE clause. Filter columns are
// emitted in sorted order so generated SQL is deterministic. args starts
// numbering placeholders after any already allocated by the caller.
func buildWhere(pred Predicate, args []any) (string, []any) {
	var conds []string

	filterCols := make([]string, 0, len(pred.Filters))
	for col := range pred.Filters {
		filterCols = append(filterCols, col)
	}
	sort.Strings(filterCols)
	for _, col := range filterCols {
		args = append(args, pred.Filters[col])
		conds = append(conds, fmt.Sprintf("%s = $%d", quoteIdent(col), len(args)))
	}

	if pred.Search != "" && len(pred.SearchFields) > 0 {
		args = append(args, "%"+escapeLike(pred.Search)+"%")
		n := len(args)
		var ors []string
		for _, col := range pred.SearchFields {
			ors = append(ors, fmt.Sprintf("%s::text ILIKE $%d", quoteIdent(col), n))
		}
		conds = append(conds, "("+strings.Join(ors, " OR ")+")")
	}

	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func buildCount(desc *model.ModelDescriptor, pred Predicate) (string, []any) {
	where, args := buildWhere(pred, nil)
	return "SELECT count(*) FROM " + quoteIdent(desc.Schema.Table) + where, args
}

func buildSelect(desc *model.ModelDescriptor, pred Predicate, orders []Order, offset, limit int) (string, []any) {
	where, args := buildWhere(pred, nil)

	var b strings.Builder
	b.WriteString("SELECT * FROM ")
	b.WriteString(quoteIdent(desc.Schema.Table))
	b.WriteString(where)

	if len(orders) > 0 {
		var terms []string
		for _, o := range orders {
			dir := "ASC"
			if o.Desc {
				dir = "DESC"
			}
			terms = append(terms, quoteIdent(o.Field)+" "+dir)
		}
		b.WriteString(" ORDER BY ")
		b.WriteString(strings.Join(terms, ", "))
	}

	args = append(args, limit)
	b.WriteString(fmt.Sprintf(" LIMIT $%d", len(args)))
	args = append(args, offset)
	b.WriteString(fmt.Sprintf(" OFFSET $%d", len(args)))

	return b.String(), args
}

func buildGet(desc *model.ModelDescriptor, id any) (string, []any) {
	return fmt.Sprintf("SELECT * FROM %s WHERE %s = $1",
		quoteIdent(desc.Schema.Table), quoteIdent(desc.PrimaryKey())), []any{id}
}

// buildInsert renders an INSERT over the record's columns in sorted
// order, returning the full inserted row.
func buildInsert(desc *model.ModelDescriptor, values model.Record) (string, []any) {
	cols := make([]string, 0, len(values))
	for col := range values {
		cols = append(cols, col)
	}
	sort.Strings(cols)

	var args []any
	var quoted, holders []string
	for _, col := range cols {
		args = append(args, values[col])
		quoted = append(quoted, quoteIdent(col))
		holders = append(holders, fmt.Sprintf("$%d", len(args)))
	}

	if len(cols) == 0 {
		return "INSERT INTO " + quoteIdent(desc.Schema.Table) + " DEFAULT VALUES RETURNING *", nil
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING *",
		quoteIdent(desc.Schema.Table),
		strings.Join(quoted, ", "),
		strings.Join(holders, ", ")), args
}

// buildUpdate renders an UPDATE by primary key, returning the full
// updated row. Callers must not pass an empty values map.
func buildUpdate(desc *model.ModelDescriptor, id any, values model.Record) (string, []any) {
	cols := make([]string, 0, len(values))
	for col := range values {
		cols = append(cols, col)
	}
	sort.Strings(cols)

	var args []any
	var sets []string
	for _, col := range cols {
		args = append(args, values[col])
		sets = append(sets, fmt.Sprintf("%s = $%d", quoteIdent(col), len(args)))
	}
	args = append(args, id)

	return fmt.Sprintf("UPDATE %s SET %s WHERE %s = $%d RETURNING *",
		quoteIdent(desc.Schema.Table),
		strings.Join(sets, ", "),
		quoteIdent(desc.PrimaryKey()),
		len(args)), args
}

func buildDelete(desc *model.ModelDescriptor, id any) (string, []any) {
	return fmt.Sprintf("DELETE FROM %s WHERE %s = $1",
		quoteIdent(desc.Schema.Table), quoteIdent(desc.PrimaryKey())), []any{id}
}

func buildDeleteMany(desc *model.ModelDescriptor, ids []any) (string, []any) {
	return fmt.Sprintf("DELETE FROM %s WHERE %s = ANY($1)",
		quoteIdent(desc.Schema.Table), quoteIdent(desc.PrimaryKey())), []any{ids}
}
