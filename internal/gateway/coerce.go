package gateway

import (
	"strconv"
	"strings"
	"time"

	"github.com/rasinmuhammed/matrix-admin/model"
)

// CoerceValues converts raw string input into typed values keyed by each
// field's declared kind. Non-string values pass through untouched since
// JSON clients already send typed data. Empty strings become nil so
// optional columns clear rather than storing "".
func CoerceValues(desc *model.ModelDescriptor, values model.Record) model.Record {
	out := make(model.Record, len(values))
	for name, value := range values {
		field := desc.Field(name)
		if field == nil {
			out[name] = value
			continue
		}
		out[name] = coerceValue(field.Kind, value)
	}
	return out
}

func coerceValue(kind model.FieldKind, value any) any {
	s, ok := value.(string)
	if !ok {
		return value
	}
	if s == "" {
		return nil
	}

	switch kind {
	case model.KindBool:
		switch strings.ToLower(s) {
		case "true", "1", "on", "yes":
			return true
		default:
			return false
		}
	case model.KindNumber, model.KindRelation:
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n
		}
		return s
	case model.KindFloat:
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
		return s
	case model.KindDatetime:
		for _, layout := range []string{time.RFC3339, "2006-01-02T15:04", "2006-01-02"} {
			if t, err := time.Parse(layout, s); err == nil {
				return t
			}
		}
		return s
	}
	return s
}
