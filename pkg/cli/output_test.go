package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type embedded struct {
	Theme string `json:"theme"`
}

type sample struct {
	ID int `json:"id"`
	embedded
	Tags []string `json:"tags"`
}

func TestOutput_JSON(t *testing.T) {
	var buf bytes.Buffer
	err := Output(sample{ID: 1, embedded: embedded{Theme: "sync"}, Tags: []string{"a"}}, OutputOptions{
		Format: FormatJSON,
		Writer: &buf,
	})
	if err != nil {
		t.Fatalf("Output error: %v", err)
	}
	var result map[string]any
	if err := json.Unmarshal(buf.Bytes(), &result); err != nil {
		t.Fatalf("Invalid JSON output: %v", err)
	}
	if result["theme"] != "sync" {
		t.Errorf("theme = %v", result["theme"])
	}
}

func TestOutput_YAML(t *testing.T) {
	var buf bytes.Buffer
	err := Output(sample{ID: 7, embedded: embedded{Theme: "sync"}, Tags: []string{}}, OutputOptions{Writer: &buf})
	if err != nil {
		t.Fatalf("Output error: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"id: 7", "theme: sync", "tags: []"} {
		if !strings.Contains(out, want) {
			t.Errorf("output lacks %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "embedded") {
		t.Errorf("embedded struct not inlined:\n%s", out)
	}
}

func TestOutput_Query(t *testing.T) {
	var buf bytes.Buffer
	err := Output(sample{ID: 3, Tags: []string{"x", "y"}}, OutputOptions{
		Format: FormatJSON,
		Query:  ".tags[]",
		Writer: &buf,
	})
	if err != nil {
		t.Fatalf("Output error: %v", err)
	}
	if got := buf.String(); got != "\"x\"\n\"y\"\n" {
		t.Fatalf("got %q", got)
	}
}

func TestOutput_QueryErrors(t *testing.T) {
	var buf bytes.Buffer
	if err := Output(sample{}, OutputOptions{Query: ".[", Writer: &buf}); err == nil {
		t.Error("expected parse error")
	}
	if err := Output(sample{}, OutputOptions{Query: ".id | error(\"bad\")", Writer: &buf}); err == nil {
		t.Error("expected runtime error")
	}
}

func TestOutput_UnsupportedFormat(t *testing.T) {
	var buf bytes.Buffer
	if err := Output(sample{}, OutputOptions{Format: "xml", Writer: &buf}); err == nil {
		t.Fatal("expected error")
	}
}

func TestOutput_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")
	if err := Output(map[string]int{"n": 1}, OutputOptions{Format: FormatJSON, File: path}); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"n": 1`) {
		t.Fatalf("file content %q", data)
	}
}
