package genx

import (
	"context"
	"iter"

	"github.com/goccy/go-yaml"
)

// Stream yields the chunks produced by a streaming generation.
//
// Next returns a [State] error when generation ends; errors.Is(err, ErrDone)
// reports a normal completion.
type Stream interface {
	Next() (*MessageChunk, error)
	Close() error
	CloseWithError(error) error
}

type ModelParams struct {
	MaxTokens        int     `json:"max_tokens,omitzero" yaml:"max_tokens,omitzero"`
	FrequencyPenalty float32 `json:"frequency_penalty,omitzero" yaml:"frequency_penalty,omitzero"`
	Temperature      float32 `json:"temperature,omitzero" yaml:"temperature,omitzero"`
	TopP             float32 `json:"top_p,omitzero" yaml:"top_p,omitzero"`
	PresencePenalty  float32 `json:"presence_penalty,omitzero" yaml:"presence_penalty,omitzero"`
	TopK             float32 `json:"top_k,omitzero" yaml:"top_k,omitzero"`
}

type Prompt struct {
	Name string
	Text string
}

type ModelContext interface {
	Prompts() iter.Seq[*Prompt]
	Messages() iter.Seq[*Message]

	Params() *ModelParams
}

// Generator produces structured JSON output for a function tool schema.
//
// The pattern is the name the generator was registered under; routers use it
// to pick a backend and implementations may ignore it.
type Generator interface {
	Invoke(ctx context.Context, pattern string, mctx ModelContext, fn *FuncTool) (Usage, *FuncCall, error)
	InvokeStream(ctx context.Context, pattern string, mctx ModelContext, fn *FuncTool) (Stream, error)
}

type Usage struct {
	// Number of tokens in the prompt, including any cached content.
	PromptTokenCount int64

	// Number of tokens in the cached part of the prompt.
	CachedContentTokenCount int64

	// Number of tokens generated.
	GeneratedTokenCount int64
}

func (u Usage) String() string {
	b, _ := yaml.Marshal(map[string]map[string]any{
		"Usage": {
			"Prompt":    u.PromptTokenCount,
			"Cached":    u.CachedContentTokenCount,
			"Generated": u.GeneratedTokenCount,
		},
	})
	return string(b)
}

func (u Usage) Add(o Usage) Usage {
	return Usage{
		PromptTokenCount:        u.PromptTokenCount + o.PromptTokenCount,
		CachedContentTokenCount: u.CachedContentTokenCount + o.CachedContentTokenCount,
		GeneratedTokenCount:     u.GeneratedTokenCount + o.GeneratedTokenCount,
	}
}
