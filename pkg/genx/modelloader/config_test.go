package modelloader

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/MemoFlux/MemoFluxServer/pkg/genx/generators"
)

func TestExpandEnv(t *testing.T) {
	t.Setenv("TEST_API_KEY", "test-key-123")

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"empty string", "", ""},
		{"plain value", "plain-api-key", "plain-api-key"},
		{"env var with $", "$TEST_API_KEY", "test-key-123"},
		{"env var with ${}", "${TEST_API_KEY}", "test-key-123"},
		{"unset env var", "$MEMOFLUX_UNSET_VAR", ""},
		{"mixed content", "prefix-$TEST_API_KEY-suffix", "prefix-$TEST_API_KEY-suffix"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := expandEnv(tt.input); got != tt.expected {
				t.Errorf("expandEnv(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestParseConfig_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "openai.yaml")
	content := `schema: openai/chat/v1
type: generator
api_key: test-key
models:
  - name: openai/gpt-4o-mini
    model: gpt-4o-mini
    support_json_output: true
    invoke_params:
      temperature: 0.2
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := parseConfig(path)
	if err != nil {
		t.Fatalf("parseConfig failed: %v", err)
	}
	if cfg.Schema != "openai/chat/v1" {
		t.Errorf("Schema = %q", cfg.Schema)
	}
	if len(cfg.Models) != 1 {
		t.Fatalf("len(Models) = %d, want 1", len(cfg.Models))
	}
	m := cfg.Models[0]
	if !m.SupportJSONOutput || m.InvokeParams == nil || m.InvokeParams.Temperature != 0.2 {
		t.Errorf("Models[0] = %+v", m)
	}
}

func TestParseConfig_UnsupportedExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "models.toml")
	if err := os.WriteFile(path, []byte(""), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := parseConfig(path); err == nil {
		t.Fatal("expected error for .toml")
	}
}

func TestRegisterConfig_MissingCredentials(t *testing.T) {
	mux := generators.NewMux()
	_, err := registerConfig(mux, ConfigFile{
		Schema: "openai/chat/v1",
		APIKey: "$MEMOFLUX_UNSET_KEY",
		Models: []Entry{{Name: "a", Model: "b", SupportJSONOutput: true}},
	})
	if !errors.Is(err, ErrMissingCredentials) {
		t.Fatalf("err = %v, want ErrMissingCredentials", err)
	}
}

func TestRegisterConfig_UnknownProvider(t *testing.T) {
	mux := generators.NewMux()
	if _, err := registerConfig(mux, ConfigFile{Schema: "acme/chat/v1", APIKey: "k"}); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}

func TestLoadInto(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"openai.yaml": `kind: openai
api_key: sk-test
base_url: http://127.0.0.1:1/v1
models:
  - name: openai/mini
    model: gpt-4o-mini
    support_json_output: true
`,
		"nokey.json": `{"schema": "gemini/chat/v1", "api_key": "$MEMOFLUX_UNSET_KEY", "models": [{"name": "gemini/flash", "model": "gemini-2.0-flash"}]}`,
		"README.md":  "ignored",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}

	mux := generators.NewMux()
	names, err := LoadInto(mux, dir)
	if err != nil {
		t.Fatalf("LoadInto: %v", err)
	}
	if !slices.Equal(names, []string{"openai/mini"}) {
		t.Errorf("names = %v", names)
	}
	if !slices.Equal(mux.Names(), []string{"openai/mini"}) {
		t.Errorf("mux names = %v", mux.Names())
	}
}
