package schema

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rasinmuhammed/matrix-admin/model"
)

const columnQuery = `
SELECT c.table_name, c.column_name, c.data_type, c.is_nullable,
       coalesce(c.character_maximum_length, 0)
FROM information_schema.columns c
JOIN information_schema.tables t
  ON t.table_schema = c.table_schema AND t.table_name = c.table_name
WHERE c.table_schema = 'public' AND t.table_type = 'BASE TABLE'
ORDER BY c.table_name, c.ordinal_position`

const primaryKeyQuery = `
SELECT tc.table_name, kcu.column_name
FROM information_schema.table_constraints tc
JOIN information_schema.key_column_usage kcu
  ON kcu.constraint_name = tc.constraint_name
 AND kcu.table_schema = tc.table_schema
WHERE tc.table_schema = 'public' AND tc.constraint_type = 'PRIMARY KEY'`

const foreignKeyQuery = `
SELECT kcu.table_name, kcu.column_name, ccu.table_name
FROM information_schema.table_constraints tc
JOIN information_schema.key_column_usage kcu
  ON kcu.constraint_name = tc.constraint_name
 AND kcu.table_schema = tc.table_schema
JOIN information_schema.constraint_column_usage ccu
  ON ccu.constraint_name = tc.constraint_name
 AND ccu.table_schema = tc.table_schema
WHERE tc.table_schema = 'public' AND tc.constraint_type = 'FOREIGN KEY'`

// IntrospectTables reads the public schema of the connected database and
// returns one TableSchema per table, in table order. The model name is
// the singular-ish lowercase table name; tables is an optional
// restriction and an empty list means every table.
func IntrospectTables(ctx context.Context, pool *pgxpool.Pool, tables []string) ([]model.TableSchema, error) {
	wanted := map[string]bool{}
	for _, t := range tables {
		wanted[t] = true
	}

	primaryKeys, err := tableColumnSet(ctx, pool, primaryKeyQuery)
	if err != nil {
		return nil, err
	}
	references, err := foreignKeys(ctx, pool)
	if err != nil {
		return nil, err
	}

	rows, err := pool.Query(ctx, columnQuery)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.TableSchema
	byTable := map[string]int{}
	for rows.Next() {
		var table, column, dataType, isNullable string
		var maxLen int
		if err := rows.Scan(&table, &column, &dataType, &isNullable, &maxLen); err != nil {
			return nil, err
		}
		if len(wanted) > 0 && !wanted[table] {
			continue
		}

		idx, ok := byTable[table]
		if !ok {
			out = append(out, model.TableSchema{Name: modelName(table), Table: table})
			idx = len(out) - 1
			byTable[table] = idx
		}

		f := model.FieldDescriptor{
			Name:       column,
			Kind:       kindFromDataType(dataType, maxLen),
			Nullable:   isNullable == "YES",
			MaxLength:  maxLen,
			PrimaryKey: primaryKeys[table][column],
			References: references[table][column],
		}
		if f.References != "" {
			f.Kind = model.KindRelation
		}
		out[idx].Fields = append(out[idx].Fields, f)
	}
	return out, rows.Err()
}

func tableColumnSet(ctx context.Context, pool *pgxpool.Pool, query string) (map[string]map[string]bool, error) {
	rows, err := pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]map[string]bool{}
	for rows.Next() {
		var table, column string
		if err := rows.Scan(&table, &column); err != nil {
			return nil, err
		}
		if out[table] == nil {
			out[table] = map[string]bool{}
		}
		out[table][column] = true
	}
	return out, rows.Err()
}

func foreignKeys(ctx context.Context, pool *pgxpool.Pool) (map[string]map[string]string, error) {
	rows, err := pool.Query(ctx, foreignKeyQuery)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]map[string]string{}
	for rows.Next() {
		var table, column, target string
		if err := rows.Scan(&table, &column, &target); err != nil {
			return nil, err
		}
		if out[table] == nil {
			out[table] = map[string]string{}
		}
		out[table][column] = modelName(target)
	}
	return out, rows.Err()
}

// modelName derives a model name from a table name: lowercase with a
// trailing plural "s" stripped.
func modelName(table string) string {
	name := strings.ToLower(table)
	if strings.HasSuffix(name, "ses") || strings.HasSuffix(name, "xes") {
		return name[:len(name)-2]
	}
	if strings.HasSuffix(name, "s") && !strings.HasSuffix(name, "ss") {
		return name[:len(name)-1]
	}
	return name
}

func kindFromDataType(dataType string, maxLen int) model.FieldKind {
	switch strings.ToLower(dataType) {
	case "smallint", "integer", "bigint", "serial", "bigserial":
		return model.KindNumber
	case "numeric", "decimal", "real", "double precision":
		return model.KindFloat
	case "boolean":
		return model.KindBool
	case "timestamp", "timestamp with time zone", "timestamp without time zone", "date":
		return model.KindDatetime
	case "text":
		return model.KindTextarea
	case "character varying", "character", "varchar", "char":
		if maxLen == 0 || maxLen > 255 {
			return model.KindTextarea
		}
		return model.KindText
	}
	return model.KindText
}
