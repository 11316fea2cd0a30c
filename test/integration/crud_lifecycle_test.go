package integration

import (
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/rasinmuhammed/matrix-admin/internal/token"
)

// A full record lifecycle through the HTTP surface: form, create, list,
// detail, update, delete, using only tokens the server itself minted.

func TestLifecycle_CreateThroughDelete(t *testing.T) {
	h := NewTestHarness(t)

	// The new-record form carries the create capability.
	form := h.Get("/admin/contact/new")
	if form.StatusCode != http.StatusOK {
		t.Fatalf("form: status = %d", form.StatusCode)
	}
	createToken := h.DecodeBody(form)["token"].(string)

	created := h.PostJSON("/admin/contact", map[string]any{
		"token": createToken,
		"data": map[string]any{
			"name":  "ada",
			"email": "ada@example.com",
			"notes": "met at the analytical engine meetup",
		},
	})
	if created.StatusCode != http.StatusCreated {
		t.Fatalf("create: status = %d, body %s", created.StatusCode, h.ReadBody(created))
	}
	record := h.DecodeBody(created)["record"].(map[string]any)
	id := fmt.Sprint(record["id"])
	if record["name"] != "ada" {
		t.Errorf("created name = %v", record["name"])
	}

	list := h.Get("/admin/contact")
	page := h.DecodeBody(list)["page"].(map[string]any)
	if got := page["total"].(float64); got != 1 {
		t.Fatalf("list total = %v, want 1", got)
	}

	// The detail bundle mints record-bound update and delete tokens.
	detail := h.Get("/admin/contact/" + id)
	if detail.StatusCode != http.StatusOK {
		t.Fatalf("detail: status = %d", detail.StatusCode)
	}
	bundle := h.DecodeBody(detail)
	updateToken := bundle["update_token"].(string)
	deleteToken := bundle["delete_token"].(string)

	updated := h.PostJSON("/admin/contact/"+id, map[string]any{
		"token": updateToken,
		"data":  map[string]any{"email": "countess@example.com"},
	})
	if updated.StatusCode != http.StatusOK {
		t.Fatalf("update: status = %d, body %s", updated.StatusCode, h.ReadBody(updated))
	}
	if got := h.DecodeBody(updated)["record"].(map[string]any)["email"]; got != "countess@example.com" {
		t.Errorf("updated email = %v", got)
	}

	deleted := h.Delete("/admin/contact/" + id + "?token=" + deleteToken)
	if deleted.StatusCode != http.StatusOK {
		t.Fatalf("delete: status = %d, body %s", deleted.StatusCode, h.ReadBody(deleted))
	}
	h.ReadBody(deleted)

	gone := h.Get("/admin/contact/" + id)
	if gone.StatusCode != http.StatusNotFound {
		t.Errorf("deleted record: status = %d, want 404", gone.StatusCode)
	}
	h.ReadBody(gone)
}

func TestLifecycle_SearchAndPagination(t *testing.T) {
	h := NewTestHarness(t)
	h.SeedContacts(30)

	list := h.Get("/admin/contact?page=2&per_page=12")
	page := h.DecodeBody(list)["page"].(map[string]any)
	if got := page["total"].(float64); got != 30 {
		t.Errorf("total = %v, want 30", got)
	}
	if got := page["total_pages"].(float64); got != 3 {
		t.Errorf("total_pages = %v, want 3", got)
	}
	if got := len(page["records"].([]any)); got != 12 {
		t.Errorf("len(records) = %d, want 12", got)
	}

	search := h.Get("/admin/contact?q=grace")
	page = h.DecodeBody(search)["page"].(map[string]any)
	if got := page["total"].(float64); got != 5 {
		t.Errorf("search total = %v, want 5 graces in 30 seeded rows", got)
	}
}

func TestLifecycle_BulkDelete(t *testing.T) {
	h := NewTestHarness(t)
	h.SeedContacts(6)

	tok := h.MintToken("contact", token.ActionDelete, "")
	resp := h.PostJSON("/admin/contact/bulk-delete", map[string]any{
		"token": tok,
		"ids":   []string{"2", "4", "6"},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("bulk delete: status = %d, body %s", resp.StatusCode, h.ReadBody(resp))
	}
	if got := h.DecodeBody(resp)["deleted"].(float64); got != 3 {
		t.Errorf("deleted = %v, want 3", got)
	}
}

func TestLifecycle_PolymorphicFragmentFlow(t *testing.T) {
	h := NewTestHarness(t)

	form := h.Get("/admin/content/new")
	if form.StatusCode != http.StatusOK {
		t.Fatalf("form: status = %d", form.StatusCode)
	}
	bundle := h.DecodeBody(form)
	fragToken := bundle["fragment_token"].(string)
	if bundle["fragment_url"] != "/admin/fragments" {
		t.Errorf("fragment_url = %v", bundle["fragment_url"])
	}

	frag := h.Get("/admin/fragments?token=" + fragToken + "&subtype=article")
	if frag.StatusCode != http.StatusOK {
		t.Fatalf("fragment: status = %d", frag.StatusCode)
	}
	fields := h.DecodeBody(frag)["fields"].([]any)
	if len(fields) != 1 {
		t.Fatalf("fragment fields = %v, want only the article-specific field", fields)
	}
	if name := fields[0].(map[string]any)["name"]; name != "body" {
		t.Errorf("fragment field = %v, want body", name)
	}
}

func TestLifecycle_CSVExport(t *testing.T) {
	h := NewTestHarness(t)
	h.SeedContacts(4)

	resp := h.Get("/admin/contact/export.csv")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("export: status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Errorf("Content-Type = %q", ct)
	}
	lines := strings.Split(strings.TrimSpace(h.ReadBody(resp)), "\n")
	if len(lines) != 5 {
		t.Errorf("csv lines = %d, want header plus 4 rows", len(lines))
	}
}
