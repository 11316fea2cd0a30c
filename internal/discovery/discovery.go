// Package discovery builds sensible model descriptors straight from
// table schemas, so an admin surface over an existing database needs no
// per-model configuration to get started.
package discovery

import (
	"strings"

	"github.com/rasinmuhammed/matrix-admin/internal/registry"
	"github.com/rasinmuhammed/matrix-admin/model"
)

// maxListFields caps how many columns an inferred list view shows.
const maxListFields = 5

// longTextThreshold is the max_length above which a text column is
// considered prose and kept off list views.
const longTextThreshold = 255

// prominentFields are promoted to the front of inferred list views, in
// this order, right after the primary key.
var prominentFields = []string{"name", "title", "username", "email", "status", "is_active"}

// timestampFields follow the prominent fields on list views and double
// as default ordering candidates.
var timestampFields = []string{"created_at", "updated_at", "published_at"}

// iconKeywords maps model-name substrings to icons. Order matters: the
// first matching keyword wins.
var iconKeywords = []struct {
	keyword string
	icon    string
}{
	{"user", "users"},
	{"admin", "shield"},
	{"article", "file-text"},
	{"post", "file-text"},
	{"blog", "book"},
	{"comment", "message-square"},
	{"category", "folder"},
	{"tag", "tag"},
	{"product", "shopping-cart"},
	{"order", "shopping-bag"},
	{"customer", "user"},
	{"payment", "credit-card"},
	{"invoice", "file-text"},
	{"setting", "settings"},
	{"log", "list"},
	{"audit", "eye"},
}

const defaultIcon = "database"

// Options filters which candidate schemas discovery may register.
type Options struct {
	// Include, when non-empty, restricts discovery to the named models.
	Include []string
	// Exclude drops the named models even when included.
	Exclude []string
}

// Allows reports whether discovery may register the named model.
func (o Options) Allows(name string) bool {
	if len(o.Include) > 0 && !containsString(o.Include, name) {
		return false
	}
	return !containsString(o.Exclude, name)
}

// DiscoverAll infers a descriptor for every eligible candidate schema
// and registers it. Schemas already registered, abstract schemas,
// schemas with no backing table, and schemas filtered out by opts are
// skipped quietly. It returns how many models were added; running it
// twice therefore adds zero the second time.
func DiscoverAll(reg *registry.Registry, candidates []model.TableSchema, opts Options) int {
	added := 0
	for _, schema := range candidates {
		if schema.Abstract || schema.Table == "" || !opts.Allows(schema.Name) {
			continue
		}
		if reg.IsRegistered(schema.Name) {
			continue
		}
		if err := reg.Register(Describe(schema)); err == nil {
			added++
		}
	}
	return added
}

// Describe infers a full descriptor from one schema.
func Describe(schema model.TableSchema) *model.ModelDescriptor {
	d := &model.ModelDescriptor{
		Name:         schema.Name,
		Schema:       schema,
		ListFields:   inferListFields(schema),
		SearchFields: inferSearchFields(schema),
		OrderFields:  []string{inferDefaultOrder(schema)},
		Icon:         InferIcon(schema.Name),
	}
	for _, sub := range schema.Subtypes {
		d.Subtypes = append(d.Subtypes, sub.Name)
	}
	return d
}

// inferListFields picks the columns worth showing on a list view: the
// primary key first, then well-known identifying fields, then
// timestamps, then whatever is left that is not long text, capped at
// maxListFields.
func inferListFields(schema model.TableSchema) []string {
	var fields []string
	seen := map[string]bool{}
	take := func(name string) {
		if len(fields) >= maxListFields || seen[name] {
			return
		}
		seen[name] = true
		fields = append(fields, name)
	}

	for _, f := range schema.Fields {
		if f.PrimaryKey || f.Name == "id" {
			take(f.Name)
			break
		}
	}
	for _, name := range prominentFields {
		if schema.Field(name) != nil {
			take(name)
		}
	}
	for _, name := range timestampFields {
		if schema.Field(name) != nil {
			take(name)
		}
	}
	for _, f := range schema.Fields {
		if f.Kind.Textual() && f.MaxLength > longTextThreshold {
			continue
		}
		take(f.Name)
	}
	return fields
}

// inferSearchFields returns every free-text column; substring search
// over anything else is meaningless.
func inferSearchFields(schema model.TableSchema) []string {
	var fields []string
	for _, f := range schema.Fields {
		if f.Kind.Textual() {
			fields = append(fields, f.Name)
		}
	}
	return fields
}

// inferDefaultOrder picks newest-first ordering on the first timestamp
// column the schema has, falling back to descending primary key.
func inferDefaultOrder(schema model.TableSchema) string {
	for _, name := range timestampFields {
		if schema.Field(name) != nil {
			return "-" + name
		}
	}
	pk := "id"
	for _, f := range schema.Fields {
		if f.PrimaryKey {
			pk = f.Name
			break
		}
	}
	return "-" + pk
}

// InferIcon picks an icon from keywords in the model name.
func InferIcon(name string) string {
	lower := strings.ToLower(name)
	for _, entry := range iconKeywords {
		if strings.Contains(lower, entry.keyword) {
			return entry.icon
		}
	}
	return defaultIcon
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
