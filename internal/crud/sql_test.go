package crud

import (
	"reflect"
	"testing"

	"github.com/rasinmuhammed/matrix-admin/model"
)

func TestBuildSelect(t *testing.T) {
	desc := orderDescriptor()
	pred := Predicate{
		Filters:      map[string]any{"status": "paid", "customer": "Alice"},
		Search:       "smith",
		SearchFields: []string{"customer", "status"},
	}
	orders := []Order{{Field: "created_at", Desc: true}, {Field: "id", Desc: false}}

	query, args := buildSelect(desc, pred, orders, 25, 25)
	want := `SELECT * FROM "orders"` +
		` WHERE "customer" = $1 AND "status" = $2` +
		` AND ("customer"::text ILIKE $3 OR "status"::text ILIKE $3)` +
		` ORDER BY "created_at" DESC, "id" ASC` +
		` LIMIT $4 OFFSET $5`
	if query != want {
		t.Errorf("query =\n%s\nwant\n%s", query, want)
	}
	wantArgs := []any{"Alice", "paid", "%smith%", 25, 25}
	if !reflect.DeepEqual(args, wantArgs) {
		t.Errorf("args = %v, want %v", args, wantArgs)
	}
}

func TestBuildSelectNoPredicate(t *testing.T) {
	desc := orderDescriptor()
	query, args := buildSelect(desc, Predicate{}, nil, 0, 25)
	want := `SELECT * FROM "orders" LIMIT $1 OFFSET $2`
	if query != want {
		t.Errorf("query = %s, want %s", query, want)
	}
	if !reflect.DeepEqual(args, []any{25, 0}) {
		t.Errorf("args = %v", args)
	}
}

func TestBuildCount(t *testing.T) {
	desc := orderDescriptor()
	query, args := buildCount(desc, Predicate{Filters: map[string]any{"status": "paid"}})
	want := `SELECT count(*) FROM "orders" WHERE "status" = $1`
	if query != want {
		t.Errorf("query = %s, want %s", query, want)
	}
	if !reflect.DeepEqual(args, []any{"paid"}) {
		t.Errorf("args = %v", args)
	}
}

func TestEscapeLike(t *testing.T) {
	query, args := buildCount(orderDescriptor(), Predicate{
		Search:       "50%_off\\",
		SearchFields: []string{"customer"},
	})
	want := `SELECT count(*) FROM "orders" WHERE ("customer"::text ILIKE $1)`
	if query != want {
		t.Errorf("query = %s", query)
	}
	if args[0] != `%50\%\_off\\%` {
		t.Errorf("args[0] = %q", args[0])
	}
}

func TestBuildInsert(t *testing.T) {
	desc := orderDescriptor()
	query, args := buildInsert(desc, model.Record{"status": "pending", "customer": "Alice"})
	want := `INSERT INTO "orders" ("customer", "status") VALUES ($1, $2) RETURNING *`
	if query != want {
		t.Errorf("query = %s, want %s", query, want)
	}
	if !reflect.DeepEqual(args, []any{"Alice", "pending"}) {
		t.Errorf("args = %v", args)
	}
}

func TestBuildUpdate(t *testing.T) {
	desc := orderDescriptor()
	query, args := buildUpdate(desc, 7, model.Record{"status": "paid"})
	want := `UPDATE "orders" SET "status" = $1 WHERE "id" = $2 RETURNING *`
	if query != want {
		t.Errorf("query = %s, want %s", query, want)
	}
	if !reflect.DeepEqual(args, []any{"paid", 7}) {
		t.Errorf("args = %v", args)
	}
}

func TestBuildDeleteMany(t *testing.T) {
	desc := orderDescriptor()
	query, args := buildDeleteMany(desc, []any{1, 2, 3})
	want := `DELETE FROM "orders" WHERE "id" = ANY($1)`
	if query != want {
		t.Errorf("query = %s, want %s", query, want)
	}
	if len(args) != 1 {
		t.Fatalf("args = %v", args)
	}
}

func TestQuoteIdent(t *testing.T) {
	if got := quoteIdent(`weird"name`); got != `"weird""name"` {
		t.Errorf("quoteIdent = %s", got)
	}
}
