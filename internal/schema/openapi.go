// Package schema produces table schemas from the two supported sources:
// OpenAPI documents and live database introspection.
package schema

import (
	"context"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/rasinmuhammed/matrix-admin/model"
)

// LoadOpenAPIFile parses and validates an OpenAPI document and returns
// one schema per component schema, sorted by name. Schemas from an API
// document carry no backing table; their records live in memory.
func LoadOpenAPIFile(ctx context.Context, path string) ([]model.TableSchema, error) {
	loader := &openapi3.Loader{Context: ctx, IsExternalRefsAllowed: true}
	doc, err := loader.LoadFromFile(path)
	if err != nil {
		return nil, err
	}
	return schemasFromDocument(ctx, doc)
}

// LoadOpenAPIData is LoadOpenAPIFile over an in-memory document.
func LoadOpenAPIData(ctx context.Context, data []byte) ([]model.TableSchema, error) {
	loader := &openapi3.Loader{Context: ctx, IsExternalRefsAllowed: true}
	doc, err := loader.LoadFromData(data)
	if err != nil {
		return nil, err
	}
	return schemasFromDocument(ctx, doc)
}

func schemasFromDocument(ctx context.Context, doc *openapi3.T) ([]model.TableSchema, error) {
	if err := doc.Validate(ctx, openapi3.DisableExamplesValidation()); err != nil {
		return nil, err
	}
	if doc.Components == nil {
		return nil, nil
	}

	// Variants referenced through a discriminator become subtypes of
	// their parent, not standalone models.
	variantNames := map[string]bool{}
	for _, ref := range doc.Components.Schemas {
		if ref.Value == nil || ref.Value.Discriminator == nil {
			continue
		}
		for _, target := range ref.Value.Discriminator.Mapping {
			variantNames[refName(target)] = true
		}
	}

	var out []model.TableSchema
	for name, ref := range doc.Components.Schemas {
		if ref.Value == nil || variantNames[name] {
			continue
		}
		out = append(out, schemaFromComponent(doc, name, ref.Value))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func schemaFromComponent(doc *openapi3.T, name string, s *openapi3.Schema) model.TableSchema {
	out := model.TableSchema{
		Name:   strings.ToLower(name),
		Fields: fieldsFromSchema(s),
	}

	if s.Discriminator != nil {
		parentFields := map[string]bool{}
		for _, f := range out.Fields {
			parentFields[f.Name] = true
		}

		tags := make([]string, 0, len(s.Discriminator.Mapping))
		for tag := range s.Discriminator.Mapping {
			tags = append(tags, tag)
		}
		sort.Strings(tags)

		for _, tag := range tags {
			variant := resolveRef(doc, s.Discriminator.Mapping[tag])
			sub := model.SubtypeSchema{Name: tag}
			if variant != nil {
				for _, f := range fieldsFromVariant(variant) {
					if !parentFields[f.Name] {
						sub.Fields = append(sub.Fields, f)
					}
				}
			}
			out.Subtypes = append(out.Subtypes, sub)
		}
	}
	return out
}

// fieldsFromVariant flattens a variant schema, following allOf so a
// variant declared as "allOf: [parent, extra props]" yields its own
// fields.
func fieldsFromVariant(s *openapi3.Schema) []model.FieldDescriptor {
	var fields []model.FieldDescriptor
	for _, part := range s.AllOf {
		if part.Value != nil {
			fields = append(fields, fieldsFromSchema(part.Value)...)
		}
	}
	return append(fields, fieldsFromSchema(s)...)
}

func fieldsFromSchema(s *openapi3.Schema) []model.FieldDescriptor {
	required := map[string]bool{}
	for _, name := range s.Required {
		required[name] = true
	}

	names := make([]string, 0, len(s.Properties))
	for name := range s.Properties {
		names = append(names, name)
	}
	sort.Strings(names)
	// Keep the id property first when present.
	for i, name := range names {
		if name == "id" && i > 0 {
			copy(names[1:i+1], names[:i])
			names[0] = "id"
			break
		}
	}

	var fields []model.FieldDescriptor
	for _, name := range names {
		prop := s.Properties[name].Value
		if prop == nil {
			continue
		}
		f := model.FieldDescriptor{
			Name:       name,
			Kind:       kindFromProperty(prop),
			Nullable:   !required[name],
			PrimaryKey: name == "id",
		}
		if prop.MaxLength != nil {
			f.MaxLength = int(*prop.MaxLength)
		}
		fields = append(fields, f)
	}
	return fields
}

func kindFromProperty(s *openapi3.Schema) model.FieldKind {
	switch firstSchemaType(s) {
	case "integer":
		return model.KindNumber
	case "number":
		return model.KindFloat
	case "boolean":
		return model.KindBool
	case "string":
		switch s.Format {
		case "date-time", "date":
			return model.KindDatetime
		}
		if s.MaxLength == nil {
			return model.KindTextarea
		}
		return model.KindText
	}
	return model.KindText
}

func firstSchemaType(s *openapi3.Schema) string {
	if s.Type == nil {
		return ""
	}
	types := s.Type.Slice()
	if len(types) == 0 {
		return ""
	}
	return types[0]
}

func resolveRef(doc *openapi3.T, target string) *openapi3.Schema {
	name := refName(target)
	if doc.Components == nil {
		return nil
	}
	ref, ok := doc.Components.Schemas[name]
	if !ok || ref.Value == nil {
		return nil
	}
	return ref.Value
}

func refName(target string) string {
	if i := strings.LastIndex(target, "/"); i >= 0 {
		return target[i+1:]
	}
	return target
}
