package crud

import (
	"context"
	"fmt"
	"testing"

	"github.com/rasinmuhammed/matrix-admin/model"
)

func orderDescriptor() *model.ModelDescriptor {
	return &model.ModelDescriptor{
		Name: "order",
		Schema: model.TableSchema{
			Name:  "order",
			Table: "orders",
			Fields: []model.FieldDescriptor{
				{Name: "id", Kind: model.KindNumber, PrimaryKey: true},
				{Name: "customer", Kind: model.KindText, MaxLength: 100},
				{Name: "total", Kind: model.KindFloat},
				{Name: "status", Kind: model.KindText, MaxLength: 20},
			},
		},
		SearchFields: []string{"customer", "status"},
		OrderFields:  []string{"-id"},
	}
}

// seedOrders inserts n orders alternating between paid and pending.
func seedOrders(t *testing.T, e *Engine, desc *model.ModelDescriptor, n int) {
	t.Helper()
	for i := 1; i <= n; i++ {
		status := "pending"
		if i%2 == 0 {
			status = "paid"
		}
		_, err := e.Create(context.Background(), desc, model.Record{
			"customer": fmt.Sprintf("Customer %03d", i),
			"total":    float64(i) * 10,
			"status":   status,
		})
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
	}
}

func newTestEngine() *Engine {
	return NewEngine(NewMemStore())
}

func TestListPagination(t *testing.T) {
	e := newTestEngine()
	desc := orderDescriptor()
	seedOrders(t, e, desc, 60)

	page, err := e.List(context.Background(), desc, model.ListQuery{Page: 2, PerPage: 25})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(page.Records) != 25 {
		t.Errorf("len(Records) = %d, want 25", len(page.Records))
	}
	if page.Total != 60 {
		t.Errorf("Total = %d, want 60", page.Total)
	}
	if page.TotalPages != 3 {
		t.Errorf("TotalPages = %d, want 3", page.TotalPages)
	}

	// Last page holds the remainder.
	page, err = e.List(context.Background(), desc, model.ListQuery{Page: 3, PerPage: 25})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(page.Records) != 10 {
		t.Errorf("page 3 len = %d, want 10", len(page.Records))
	}
}

func TestListPaginationInvariant(t *testing.T) {
	e := newTestEngine()
	desc := orderDescriptor()
	const total = 37
	seedOrders(t, e, desc, total)

	for _, perPage := range []int{1, 7, 25, 100} {
		for page := 1; page <= 6; page++ {
			got, err := e.List(context.Background(), desc, model.ListQuery{Page: page, PerPage: perPage})
			if err != nil {
				t.Fatalf("List(page=%d, perPage=%d): %v", page, perPage, err)
			}
			want := total - (page-1)*perPage
			if want < 0 {
				want = 0
			}
			if want > perPage {
				want = perPage
			}
			if len(got.Records) != want {
				t.Errorf("page=%d perPage=%d: len = %d, want %d", page, perPage, len(got.Records), want)
			}
		}
	}
}

func TestListNormalizesQuery(t *testing.T) {
	e := newTestEngine()
	desc := orderDescriptor()
	seedOrders(t, e, desc, 3)

	page, err := e.List(context.Background(), desc, model.ListQuery{Page: -4, PerPage: 9999})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if page.Page != 1 {
		t.Errorf("Page = %d, want 1", page.Page)
	}
	if page.PerPage != model.MaxPerPage {
		t.Errorf("PerPage = %d, want %d", page.PerPage, model.MaxPerPage)
	}

	page, err = e.List(context.Background(), desc, model.ListQuery{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if page.PerPage != model.DefaultPerPage {
		t.Errorf("default PerPage = %d, want %d", page.PerPage, model.DefaultPerPage)
	}
}

func TestListFilters(t *testing.T) {
	e := newTestEngine()
	desc := orderDescriptor()
	seedOrders(t, e, desc, 10)

	page, err := e.List(context.Background(), desc, model.ListQuery{
		Filters: map[string]any{"status": "paid"},
	})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if page.Total != 5 {
		t.Errorf("Total = %d, want 5", page.Total)
	}
	for _, rec := range page.Records {
		if rec["status"] != "paid" {
			t.Errorf("record %v leaked through filter", rec["id"])
		}
	}
}

func TestListIgnoresUnknownFilterAndOrderFields(t *testing.T) {
	e := newTestEngine()
	desc := orderDescriptor()
	seedOrders(t, e, desc, 4)

	page, err := e.List(context.Background(), desc, model.ListQuery{
		Filters: map[string]any{"no_such_column": "x", "status": "paid"},
		OrderBy: "-not_a_field",
	})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if page.Total != 2 {
		t.Errorf("Total = %d, want 2", page.Total)
	}
}

func TestListSearch(t *testing.T) {
	e := newTestEngine()
	desc := orderDescriptor()
	ctx := context.Background()
	for _, rec := range []model.Record{
		{"customer": "Alice Johnson", "status": "pending", "total": 10.0},
		{"customer": "Bob Smith", "status": "paid", "total": 20.0},
		{"customer": "Carol Pending", "status": "shipped", "total": 30.0},
	} {
		if _, err := e.Create(ctx, desc, rec); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	// Case-insensitive, ORed across customer and status.
	page, err := e.List(ctx, desc, model.ListQuery{Search: "PENDING"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if page.Total != 2 {
		t.Errorf("Total = %d, want 2 (status match plus customer match)", page.Total)
	}

	page, err = e.List(ctx, desc, model.ListQuery{Search: "smith"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if page.Total != 1 || page.Records[0]["customer"] != "Bob Smith" {
		t.Errorf("search smith: %+v", page.Records)
	}
}

func TestListOrdering(t *testing.T) {
	e := newTestEngine()
	desc := orderDescriptor()
	seedOrders(t, e, desc, 5)

	page, err := e.List(context.Background(), desc, model.ListQuery{OrderBy: "-total"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	var prev float64 = 1 << 30
	for _, rec := range page.Records {
		v, _ := rec["total"].(float64)
		if v > prev {
			t.Fatalf("records not descending by total: %v", page.Records)
		}
		prev = v
	}

	// Default ordering from the descriptor: -id.
	page, err = e.List(context.Background(), desc, model.ListQuery{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	first, _ := page.Records[0]["id"].(int64)
	if first != 5 {
		t.Errorf("first id = %v, want 5", page.Records[0]["id"])
	}
}

func TestGetCreateUpdateDelete(t *testing.T) {
	e := newTestEngine()
	desc := orderDescriptor()
	ctx := context.Background()

	created, err := e.Create(ctx, desc, model.Record{
		"customer":    "Alice",
		"status":      "pending",
		"not_a_field": "dropped",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, ok := created["not_a_field"]; ok {
		t.Error("unknown column survived Create")
	}
	id := created["id"]

	got, err := e.Get(ctx, desc, id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got["customer"] != "Alice" {
		t.Errorf("customer = %v", got["customer"])
	}

	updated, err := e.Update(ctx, desc, id, model.Record{"status": "paid", "bogus": 1})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated["status"] != "paid" {
		t.Errorf("status = %v, want paid", updated["status"])
	}
	if _, ok := updated["bogus"]; ok {
		t.Error("unknown column survived Update")
	}

	if err := e.Delete(ctx, desc, id); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := e.Get(ctx, desc, id); model.CodeOf(err) != model.ErrNotFound {
		t.Errorf("Get after delete: code = %q, want %q", model.CodeOf(err), model.ErrNotFound)
	}
	if err := e.Delete(ctx, desc, id); model.CodeOf(err) != model.ErrNotFound {
		t.Errorf("second Delete: code = %q, want %q", model.CodeOf(err), model.ErrNotFound)
	}
}

func TestUpdateMissingRecord(t *testing.T) {
	e := newTestEngine()
	desc := orderDescriptor()
	_, err := e.Update(context.Background(), desc, 404, model.Record{"status": "paid"})
	if model.CodeOf(err) != model.ErrNotFound {
		t.Errorf("code = %q, want %q", model.CodeOf(err), model.ErrNotFound)
	}
}

func TestBulkDelete(t *testing.T) {
	e := newTestEngine()
	desc := orderDescriptor()
	ctx := context.Background()
	seedOrders(t, e, desc, 5)

	// Missing IDs are skipped, not errors.
	n, err := e.BulkDelete(ctx, desc, []any{int64(1), int64(3), int64(99)})
	if err != nil {
		t.Fatalf("BulkDelete: %v", err)
	}
	if n != 2 {
		t.Errorf("deleted = %d, want 2", n)
	}

	page, err := e.List(ctx, desc, model.ListQuery{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if page.Total != 3 {
		t.Errorf("Total = %d, want 3", page.Total)
	}

	n, err = e.BulkDelete(ctx, desc, nil)
	if err != nil || n != 0 {
		t.Errorf("empty BulkDelete = (%d, %v), want (0, nil)", n, err)
	}
}

func TestDispatchStoreRouting(t *testing.T) {
	db := NewMemStore()
	mem := NewMemStore()
	dispatch := NewDispatchStore(db, mem)
	ctx := context.Background()

	stored := orderDescriptor()
	virtual := &model.ModelDescriptor{
		Name: "session",
		Schema: model.TableSchema{
			Name: "session",
			Fields: []model.FieldDescriptor{
				{Name: "id", Kind: model.KindNumber, PrimaryKey: true},
				{Name: "label", Kind: model.KindText},
			},
		},
	}

	if _, err := dispatch.Insert(ctx, stored, model.Record{"customer": "A"}); err != nil {
		t.Fatalf("Insert stored: %v", err)
	}
	if _, err := dispatch.Insert(ctx, virtual, model.Record{"label": "x"}); err != nil {
		t.Fatalf("Insert virtual: %v", err)
	}

	if n, _ := db.Count(ctx, stored, Predicate{}); n != 1 {
		t.Errorf("db count = %d, want 1", n)
	}
	if n, _ := mem.Count(ctx, virtual, Predicate{}); n != 1 {
		t.Errorf("mem count = %d, want 1", n)
	}
	if n, _ := db.Count(ctx, virtual, Predicate{}); n != 0 {
		t.Errorf("virtual records reached the database store")
	}
}
