package extract

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// ChunkChecker validates streamed chunks against the shape implied by a
// Schema: tracked fields carry a known state, collections are arrays and
// never null.
type ChunkChecker struct {
	name   string
	schema *jsonschema.Schema
}

// NewChunkChecker compiles the chunk shape of s.
func NewChunkChecker(s *Schema) (*ChunkChecker, error) {
	url := "memoflux://chunks/" + s.Name + ".json"
	c := jsonschema.NewCompiler()
	if err := c.AddResource(url, ChunkSchema(s)); err != nil {
		return nil, fmt.Errorf("extract: add %s chunk schema: %w", s.Name, err)
	}
	sch, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("extract: compile %s chunk schema: %w", s.Name, err)
	}
	return &ChunkChecker{name: s.Name, schema: sch}, nil
}

// MustChunkChecker is NewChunkChecker for package-level tables.
func MustChunkChecker(s *Schema) *ChunkChecker {
	c, err := NewChunkChecker(s)
	if err != nil {
		panic(err)
	}
	return c
}

// Check validates the JSON encoding of chunk. Failures wrap
// ErrChunkValidation.
func (c *ChunkChecker) Check(chunk any) error {
	b, err := json.Marshal(chunk)
	if err != nil {
		return fmt.Errorf("%w: encode %s chunk: %w", ErrChunkValidation, c.name, err)
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(b))
	if err != nil {
		return fmt.Errorf("%w: decode %s chunk: %w", ErrChunkValidation, c.name, err)
	}
	if err := c.schema.Validate(inst); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrChunkValidation, c.name, err)
	}
	return nil
}

// ChunkSchema derives the JSON schema of a partial chunk from s. Fields are
// optional since a chunk may not have reached them yet.
func ChunkSchema(s *Schema) map[string]any {
	props := make(map[string]any, len(s.Fields))
	for name, f := range s.Fields {
		fs := fieldSchema(f)
		if f.Tracked {
			fs = map[string]any{
				"type": "object",
				"properties": map[string]any{
					"value": fs,
					"state": map[string]any{
						"enum": []any{"Pending", "Incomplete", "Complete", "Error"},
					},
				},
				"required": []any{"value", "state"},
			}
		}
		props[name] = fs
	}
	return map[string]any{
		"type":       "object",
		"properties": props,
	}
}

func fieldSchema(f Field) map[string]any {
	switch f.Type {
	case TypeList:
		fs := map[string]any{"type": "array"}
		if f.Items != nil {
			fs["items"] = ChunkSchema(f.Items)
		}
		return fs
	case TypeObject:
		fs := map[string]any{"type": "object"}
		if f.Object != nil {
			fs = ChunkSchema(f.Object)
		}
		if f.Nullable {
			fs["type"] = []any{"object", "null"}
		}
		return fs
	case TypeInt:
		return map[string]any{"type": []any{"integer", "null"}}
	case TypeEnum:
		return map[string]any{
			"type":    []any{"string", "null"},
			"pattern": enumPattern(f.Enum),
		}
	default:
		return map[string]any{"type": []any{"string", "null"}}
	}
}

// enumPattern matches the declared values and, case-insensitively, any
// beginning of one, which is what a chunk holds while the value streams.
func enumPattern(enum []string) string {
	var alts []string
	for _, e := range enum {
		for i := len(e); i >= 0; i-- {
			alts = append(alts, regexp.QuoteMeta(e[:i]))
		}
	}
	return "^(?i:" + strings.Join(alts, "|") + ")$"
}
