package extract

import (
	"encoding/json"
	"log/slog"
	"strconv"
	"strings"
)

type FieldType int

const (
	TypeString FieldType = iota
	TypeInt
	TypeList
	TypeObject
	TypeEnum
)

// Field declares how a field of a partial document is repaired when null.
type Field struct {
	Type FieldType

	// Default replaces null. Lists always default to [] and positional ints
	// to their 1-based index, so Default is ignored for them.
	Default any

	// Positional marks an int id that defaults to its index in the
	// enclosing list plus one.
	Positional bool

	// Tracked fields are wrapped in {"value", "state"} while streaming.
	Tracked bool

	// Nullable objects stay null instead of being replaced by {}.
	Nullable bool

	// Items is the element schema of a list of objects.
	Items *Schema

	// Object is the schema of an object field.
	Object *Schema

	// Enum lists the allowed values of an enum field.
	Enum []string
}

// Schema is the default-on-null table of one document type.
type Schema struct {
	Name   string
	Fields map[string]Field
}

// Tracked returns the names of the tracked top-level fields.
func (s *Schema) Tracked() []string {
	var names []string
	for name, f := range s.Fields {
		if f.Tracked {
			names = append(names, name)
		}
	}
	return names
}

// Normalize replaces null fields of doc with the defaults declared by s and
// returns doc. Absent fields stay absent. A tracked field in
// {"value", "state"} form is repaired inside the wrapper; its scalar value
// stays null once the state is Complete. Positional ids of 0 take their
// position, and enum values that are neither declared nor the beginning of a
// declared value fall back to the default. Normalize is idempotent.
func Normalize(doc map[string]any, s *Schema) map[string]any {
	if doc == nil || s == nil {
		return doc
	}
	normalizeObject(doc, s, 0, s.Name, false)
	return doc
}

// NormalizeFinal is Normalize for a finished document: enum values must be
// declared ones, so a value cut short also falls back to the default.
func NormalizeFinal(doc map[string]any, s *Schema) map[string]any {
	if doc == nil || s == nil {
		return doc
	}
	normalizeObject(doc, s, 0, s.Name, true)
	return doc
}

func normalizeObject(obj map[string]any, s *Schema, index int, path string, final bool) {
	for name, f := range s.Fields {
		v, ok := obj[name]
		if !ok {
			continue
		}
		fpath := path + "." + name
		if f.Tracked {
			if w, ok := asWrapper(v); ok {
				state, _ := ParseState(w["state"].(string))
				w["value"] = normalizeValue(w["value"], f, state, index, fpath, final)
				continue
			}
		}
		obj[name] = normalizeValue(v, f, Pending, index, fpath, final)
	}
}

func normalizeValue(v any, f Field, state State, index int, path string, final bool) any {
	switch f.Type {
	case TypeList:
		if v == nil {
			slog.Debug("normalize: null list", "field", path)
			return []any{}
		}
		list, ok := v.([]any)
		if !ok || f.Items == nil {
			return v
		}
		for i, el := range list {
			epath := path + "[" + strconv.Itoa(i) + "]"
			if el == nil {
				slog.Debug("normalize: null element", "field", epath)
				el = map[string]any{}
				list[i] = el
			}
			if m, ok := el.(map[string]any); ok {
				normalizeObject(m, f.Items, i+1, epath, final)
			}
		}
		return list
	case TypeObject:
		if v == nil {
			if f.Nullable || state == Complete || f.Object == nil {
				return nil
			}
			slog.Debug("normalize: null object", "field", path)
			v = map[string]any{}
		}
		if m, ok := v.(map[string]any); ok && f.Object != nil {
			normalizeObject(m, f.Object, index, path, final)
		}
		return v
	}

	if v != nil {
		switch {
		case f.Type == TypeEnum:
			return enumValue(v, f, path, final)
		case f.Positional && isZero(v):
			slog.Debug("normalize: zero id", "field", path)
			return index
		}
		return v
	}
	if state == Complete {
		return v
	}

	slog.Debug("normalize: null field", "field", path)
	switch f.Type {
	case TypeInt:
		if f.Positional {
			return index
		}
		if f.Default != nil {
			return f.Default
		}
		return 0
	case TypeEnum:
		return f.Default
	default:
		if f.Default != nil {
			return f.Default
		}
		return ""
	}
}

// enumValue maps a case-insensitive match onto the declared spelling. While
// streaming, the beginning of a declared value is kept as is. Anything else
// becomes the default.
func enumValue(v any, f Field, path string, final bool) any {
	s, ok := v.(string)
	if ok {
		for _, e := range f.Enum {
			if strings.EqualFold(s, e) {
				return e
			}
		}
		if !final {
			for _, e := range f.Enum {
				if len(s) < len(e) && strings.EqualFold(s, e[:len(s)]) {
					return v
				}
			}
		}
	}
	slog.Debug("normalize: unknown enum value", "field", path, "value", v)
	return f.Default
}

func isZero(v any) bool {
	switch n := v.(type) {
	case json.Number:
		f, err := n.Float64()
		return err == nil && f == 0
	case float64:
		return n == 0
	case int:
		return n == 0
	}
	return false
}
func asWrapper(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	if !ok || len(m) != 2 {
		return nil, false
	}
	if _, ok := m["value"]; !ok {
		return nil, false
	}
	st, ok := m["state"].(string)
	if !ok {
		return nil, false
	}
	if _, ok := ParseState(st); !ok {
		return nil, false
	}
	return m, true
}
