package extract

import (
	"encoding/json"
	"reflect"
	"testing"
)

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	return string(b)
}

func TestNormalize_NullDefaults(t *testing.T) {
	doc := map[string]any{
		"title": nil,
		"items": []any{
			nil,
			map[string]any{
				"id":     nil,
				"header": nil,
				"node":   map[string]any{"target_id": nil, "relationship": nil},
			},
			map[string]any{"id": 7, "node": nil},
		},
		"tags": nil,
		"kind": nil,
	}
	Normalize(doc, testSchema)

	want := `{"items":[{},{"header":"","id":2,"node":{"relationship":"CHILD","target_id":1}},{"id":7,"node":null}],"kind":"OTHER","tags":[],"title":""}`
	if got := mustJSON(t, doc); got != want {
		t.Errorf("normalized =\n%s\nwant\n%s", got, want)
	}
}

func TestNormalize_AbsentStaysAbsent(t *testing.T) {
	doc := map[string]any{"title": "x"}
	Normalize(doc, testSchema)
	if len(doc) != 1 {
		t.Errorf("doc = %v, want only title", doc)
	}
}

func TestNormalize_Wrapped(t *testing.T) {
	doc := map[string]any{
		"title": map[string]any{"value": nil, "state": "Complete"},
		"items": map[string]any{"value": nil, "state": "Complete"},
	}
	Normalize(doc, testSchema)

	title := doc["title"].(map[string]any)
	if title["value"] != nil {
		t.Errorf("complete title = %v, want null kept", title["value"])
	}
	items := doc["items"].(map[string]any)
	if !reflect.DeepEqual(items["value"], []any{}) {
		t.Errorf("complete items = %#v, want []", items["value"])
	}

	pending := map[string]any{"title": map[string]any{"value": nil, "state": "Pending"}}
	Normalize(pending, testSchema)
	if v := pending["title"].(map[string]any)["value"]; v != "" {
		t.Errorf("pending title = %#v, want \"\"", v)
	}
}

func TestNormalize_EnumCase(t *testing.T) {
	doc := map[string]any{"kind": "life"}
	Normalize(doc, testSchema)
	if doc["kind"] != "LIFE" {
		t.Errorf("kind = %v, want LIFE", doc["kind"])
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	doc := map[string]any{
		"items": []any{nil, map[string]any{"node": map[string]any{}}},
		"tags":  nil,
	}
	once := mustJSON(t, Normalize(doc, testSchema))
	twice := mustJSON(t, Normalize(doc, testSchema))
	if once != twice {
		t.Errorf("second pass changed doc:\n%s\n%s", once, twice)
	}
}

func TestNormalize_UnknownEnum(t *testing.T) {
	tests := []struct {
		in        any
		streaming any
		final     any
	}{
		{"child", "CHILD", "CHILD"},
		{"sibling", "CHILD", "CHILD"},
		{"PAR", "PAR", "CHILD"},
		{"", "", "CHILD"},
		{json.Number("2"), "CHILD", "CHILD"},
	}
	for _, tt := range tests {
		node := func() map[string]any {
			return map[string]any{"items": []any{map[string]any{"node": map[string]any{"relationship": tt.in}}}}
		}
		rel := func(doc map[string]any) any {
			return doc["items"].([]any)[0].(map[string]any)["node"].(map[string]any)["relationship"]
		}
		if got := rel(Normalize(node(), testSchema)); got != tt.streaming {
			t.Errorf("Normalize(%v) = %v, want %v", tt.in, got, tt.streaming)
		}
		if got := rel(NormalizeFinal(node(), testSchema)); got != tt.final {
			t.Errorf("NormalizeFinal(%v) = %v, want %v", tt.in, got, tt.final)
		}
	}
}

func TestNormalize_ZeroID(t *testing.T) {
	doc := map[string]any{"items": []any{
		map[string]any{"id": json.Number("0")},
		map[string]any{"id": json.Number("0")},
		map[string]any{"id": json.Number("5")},
	}}
	Normalize(doc, testSchema)
	want := `{"items":[{"id":1},{"id":2},{"id":5}]}`
	if got := mustJSON(t, doc); got != want {
		t.Errorf("normalized = %s, want %s", got, want)
	}
}
