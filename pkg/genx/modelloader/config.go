// Package modelloader registers generators described by YAML or JSON model
// files.
//
// A model file names a provider schema and lists the models it serves:
//
//	schema: openai/chat/v1
//	type: generator
//	api_key: $OPENAI_API_KEY
//	models:
//	  - name: openai/gpt-4o-mini
//	    model: gpt-4o-mini
//	    support_json_output: true
package modelloader

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/MemoFlux/MemoFluxServer/pkg/genx"
	"github.com/MemoFlux/MemoFluxServer/pkg/genx/generators"
	"github.com/goccy/go-yaml"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"google.golang.org/genai"
)

// Verbose enables request body logging for debugging
var Verbose bool

// ErrMissingCredentials is returned for a config whose API key is empty after
// environment expansion. LoadFromDir skips such files.
var ErrMissingCredentials = errors.New("modelloader: missing credentials")

type verboseTransport struct {
	base http.RoundTripper
}

func (t *verboseTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Body != nil {
		body, err := io.ReadAll(req.Body)
		if err != nil {
			return nil, err
		}
		req.Body = io.NopCloser(bytes.NewReader(body))

		var pretty bytes.Buffer
		if err := json.Indent(&pretty, body, "", "  "); err == nil {
			body = pretty.Bytes()
		}
		slog.Debug("model request", "url", req.URL.String(), "body", string(body))
	}
	return t.base.RoundTrip(req)
}

type ConfigFile struct {
	Schema string `json:"schema,omitzero" yaml:"schema,omitzero"` // e.g. "openai/chat/v1", "gemini/chat/v1"
	Type   string `json:"type,omitzero" yaml:"type,omitzero"`     // "generator"

	// Legacy form: "openai" or "gemini".
	Kind string `json:"kind,omitzero" yaml:"kind,omitzero"`

	APIKey  string `json:"api_key,omitzero" yaml:"api_key,omitzero"` // may be "$OPENAI_API_KEY"
	BaseURL string `json:"base_url,omitzero" yaml:"base_url,omitzero"`

	Models []Entry `json:"models,omitzero" yaml:"models,omitzero"`
}

type Entry struct {
	Name               string            `json:"name" yaml:"name"`
	Model              string            `json:"model" yaml:"model"`
	InvokeParams       *genx.ModelParams `json:"invoke_params,omitzero" yaml:"invoke_params,omitzero"`
	SupportJSONOutput  bool              `json:"support_json_output,omitzero" yaml:"support_json_output,omitzero"`
	SupportToolCalls   bool              `json:"support_tool_calls,omitzero" yaml:"support_tool_calls,omitzero"`
	SupportTextOnly    bool              `json:"support_text_only,omitzero" yaml:"support_text_only,omitzero"`
	UseSystemRole      bool              `json:"use_system_role,omitzero" yaml:"use_system_role,omitzero"`
	InvokeWithToolName bool              `json:"invoke_with_tool_name,omitzero" yaml:"invoke_with_tool_name,omitzero"`
	ExtraFields        map[string]any    `json:"extra_fields,omitzero" yaml:"extra_fields,omitzero"`
	Desc               string            `json:"desc,omitzero" yaml:"desc,omitzero"`
}

// LoadFromDir loads model configs from dir recursively and registers the
// generators on generators.DefaultMux. It returns the registered names.
func LoadFromDir(dir string) ([]string, error) {
	return LoadInto(generators.DefaultMux, dir)
}

// LoadInto is LoadFromDir with an explicit mux.
func LoadInto(mux *generators.Mux, dir string) ([]string, error) {
	var names []string

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext != ".json" && ext != ".yaml" && ext != ".yml" {
			return nil
		}
		cfg, err := parseConfig(path)
		if err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
		fileNames, err := registerConfig(mux, *cfg)
		if err != nil {
			if errors.Is(err, ErrMissingCredentials) {
				slog.Debug("skipping model config", "path", path, "error", err)
				return nil
			}
			return fmt.Errorf("register %s: %w", path, err)
		}
		names = append(names, fileNames...)
		return nil
	})

	return names, err
}

func parseConfig(path string) (*ConfigFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	ext := strings.ToLower(filepath.Ext(path))
	var cfg ConfigFile
	switch ext {
	case ".json":
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, err
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported extension: %s", ext)
	}
	return &cfg, nil
}

func registerConfig(mux *generators.Mux, cfg ConfigFile) ([]string, error) {
	cfg.APIKey = expandEnv(cfg.APIKey)
	cfg.BaseURL = expandEnv(cfg.BaseURL)

	provider := strings.ToLower(cfg.Kind)
	if cfg.Schema != "" {
		if cfg.Type != "" && cfg.Type != "generator" {
			return nil, fmt.Errorf("unknown type: %s", cfg.Type)
		}
		// Schema format: {provider}/{subject}/{version}
		parts := strings.Split(cfg.Schema, "/")
		if len(parts) < 2 {
			return nil, fmt.Errorf("invalid schema: %s", cfg.Schema)
		}
		provider = parts[0]
	}

	switch provider {
	case "openai":
		return registerOpenAI(mux, cfg)
	case "gemini":
		return registerGemini(mux, cfg)
	default:
		return nil, fmt.Errorf("unknown generator provider: %q", provider)
	}
}

// expandEnv expands environment variables in a string.
// Supports formats: $VAR, ${VAR}, and plain values.
// If the value starts with $ but the env var is not set, returns empty string.
func expandEnv(s string) string {
	if strings.HasPrefix(s, "$") {
		return os.ExpandEnv(s)
	}
	return s
}

func registerOpenAI(mux *generators.Mux, cfg ConfigFile) ([]string, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: api_key is required for openai", ErrMissingCredentials)
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if Verbose {
		opts = append(opts, option.WithHTTPClient(&http.Client{
			Transport: &verboseTransport{base: http.DefaultTransport},
		}))
	}
	client := openai.NewClient(opts...)

	var names []string
	for _, m := range cfg.Models {
		if m.Name == "" || m.Model == "" {
			return nil, fmt.Errorf("model entry missing name or model")
		}
		if !m.SupportJSONOutput && !m.SupportToolCalls {
			return nil, fmt.Errorf("model %q: support_json_output or support_tool_calls is required", m.Name)
		}
		if err := mux.Handle(m.Name, &genx.OpenAIGenerator{
			Client:             &client,
			Model:              m.Model,
			InvokeParams:       m.InvokeParams,
			SupportJSONOutput:  m.SupportJSONOutput,
			SupportToolCalls:   m.SupportToolCalls,
			SupportTextOnly:    m.SupportTextOnly,
			UseSystemRole:      m.UseSystemRole,
			InvokeWithToolName: m.InvokeWithToolName,
			ExtraFields:        m.ExtraFields,
		}); err != nil {
			return nil, fmt.Errorf("register generator %q: %w", m.Name, err)
		}
		names = append(names, m.Name)
	}
	return names, nil
}

func registerGemini(mux *generators.Mux, cfg ConfigFile) ([]string, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: api_key is required for gemini", ErrMissingCredentials)
	}
	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions.BaseURL = cfg.BaseURL
	}
	client, err := genai.NewClient(context.Background(), cc)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, m := range cfg.Models {
		if m.Name == "" || m.Model == "" {
			return nil, fmt.Errorf("model entry missing name or model")
		}
		if err := mux.Handle(m.Name, &genx.GeminiGenerator{
			Client:       client,
			Model:        m.Model,
			InvokeParams: m.InvokeParams,
		}); err != nil {
			return nil, fmt.Errorf("register generator %q: %w", m.Name, err)
		}
		names = append(names, m.Name)
	}
	return names, nil
}
