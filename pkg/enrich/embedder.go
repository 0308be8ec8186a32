package enrich

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// ErrEmptyInput is returned when there is nothing to embed.
var ErrEmptyInput = errors.New("enrich: empty input")

// Embedder converts text into dense vectors.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}

const (
	DefaultBaseURL = "https://api.jina.ai/v1"
	DefaultModel   = "jina-embeddings-v4"
	DefaultTask    = "text-matching"

	defaultDim = 2048
	maxBatch   = 512
)

type embedderConfig struct {
	model      string
	dim        int
	task       string
	baseURL    string
	httpClient *http.Client
}

// Option configures an OpenAIEmbedder.
type Option func(*embedderConfig)

func WithModel(model string) Option {
	return func(c *embedderConfig) { c.model = model }
}

// WithDimension sets the output dimensionality. Zero leaves it to the model.
func WithDimension(dim int) Option {
	return func(c *embedderConfig) { c.dim = dim }
}

func WithBaseURL(url string) Option {
	return func(c *embedderConfig) { c.baseURL = url }
}

// WithTask sets the Jina "task" request field. An empty task omits it.
func WithTask(task string) Option {
	return func(c *embedderConfig) { c.task = task }
}

func WithHTTPClient(client *http.Client) Option {
	return func(c *embedderConfig) { c.httpClient = client }
}

var _ Embedder = (*OpenAIEmbedder)(nil)

// OpenAIEmbedder calls an OpenAI-compatible embeddings endpoint. The
// defaults target Jina.
type OpenAIEmbedder struct {
	client *openai.Client
	model  string
	dim    int
}

func NewOpenAIEmbedder(apiKey string, opts ...Option) *OpenAIEmbedder {
	cfg := embedderConfig{
		model:      DefaultModel,
		dim:        defaultDim,
		task:       DefaultTask,
		baseURL:    DefaultBaseURL,
		httpClient: http.DefaultClient,
	}
	for _, o := range opts {
		o(&cfg)
	}

	clientOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(cfg.httpClient),
	}
	if cfg.baseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.task != "" {
		clientOpts = append(clientOpts, option.WithJSONSet("task", cfg.task))
	}
	client := openai.NewClient(clientOpts...)
	return &OpenAIEmbedder{client: &client, model: cfg.model, dim: cfg.dim}
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyInput
	}
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch splits large inputs into several requests.
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, ErrEmptyInput
	}
	out := make([][]float32, len(texts))
	for i := 0; i < len(texts); i += maxBatch {
		end := min(i+maxBatch, len(texts))
		vecs, err := e.call(ctx, texts[i:end])
		if err != nil {
			return nil, fmt.Errorf("enrich: embed batch [%d:%d]: %w", i, end, err)
		}
		copy(out[i:], vecs)
	}
	return out, nil
}

func (e *OpenAIEmbedder) Dimension() int { return e.dim }

func (e *OpenAIEmbedder) call(ctx context.Context, texts []string) ([][]float32, error) {
	params := openai.EmbeddingNewParams{
		Model:          e.model,
		Input:          openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		EncodingFormat: openai.EmbeddingNewParamsEncodingFormatFloat,
	}
	if e.dim > 0 {
		params.Dimensions = openai.Int(int64(e.dim))
	}
	resp, err := e.client.Embeddings.New(ctx, params)
	if err != nil {
		return nil, err
	}

	vecs := make([][]float32, len(texts))
	for _, item := range resp.Data {
		if item.Index < 0 || item.Index >= int64(len(texts)) {
			return nil, fmt.Errorf("unexpected embedding index %d for batch size %d", item.Index, len(texts))
		}
		v := make([]float32, len(item.Embedding))
		for i, f := range item.Embedding {
			v[i] = float32(f)
		}
		vecs[item.Index] = v
	}
	for i, v := range vecs {
		if v == nil {
			return nil, fmt.Errorf("missing embedding for index %d", i)
		}
	}
	return vecs, nil
}
