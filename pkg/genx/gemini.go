package genx

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/googleapis/gax-go/v2/apierror"
	"google.golang.org/genai"
)

var _ Generator = (*GeminiGenerator)(nil)

// GeminiGenerator implements Generator using Google Gemini API.
type GeminiGenerator struct {
	Client *genai.Client `json:"-"`

	InvokeParams *ModelParams `json:"invoke_params,omitzero"`

	// Model should not start with "models/"
	Model string `json:"model"`
}

func (g *GeminiGenerator) Invoke(ctx context.Context, _ string, mctx ModelContext, fn *FuncTool) (Usage, *FuncCall, error) {
	cfg, contents, err := g.request(mctx, fn)
	if err != nil {
		return Usage{}, nil, err
	}
	resp, err := g.Client.Models.GenerateContent(ctx, g.Model, contents, cfg)
	if err != nil {
		return Usage{}, nil, geminiUnwrap(err)
	}
	if len(resp.Candidates) == 0 {
		return Usage{}, nil, fmt.Errorf("no candidates")
	}
	usage := geminiConvUsage(resp.UsageMetadata)
	t := resp.Candidates[0]
	switch t.FinishReason {
	case genai.FinishReasonStop:
	case genai.FinishReasonMaxTokens:
		return usage, nil, Truncated(usage)
	case genai.FinishReasonSafety:
		return usage, nil, Blocked(usage, geminiBlockedBy(t))
	default:
		return usage, nil, fmt.Errorf("unexpected finish reason: %s", t.FinishReason)
	}
	if t.Content == nil {
		return usage, nil, errors.New("no content")
	}
	var sb strings.Builder
	for _, p := range t.Content.Parts {
		if p.Text != "" {
			sb.WriteString(p.Text)
		}
	}
	return usage, fn.NewFuncCall(sb.String()), nil
}

func (g *GeminiGenerator) InvokeStream(ctx context.Context, _ string, mctx ModelContext, fn *FuncTool) (Stream, error) {
	cfg, contents, err := g.request(mctx, fn)
	if err != nil {
		return nil, err
	}
	sb := NewStreamBuilder(32)
	go func() {
		if err := geminiPull(sb, g.Client.Models.GenerateContentStream(ctx, g.Model, contents, cfg)); err != nil {
			sb.Abort(err)
		}
	}()
	return sb.Stream(), nil
}

func (g *GeminiGenerator) request(mctx ModelContext, fn *FuncTool) (*genai.GenerateContentConfig, []*genai.Content, error) {
	if fn == nil {
		return nil, nil, errors.New("function tool is required")
	}
	cfg, contents, err := g.convModelContext(mctx)
	if err != nil {
		return nil, nil, err
	}
	cfg.ResponseMIMEType = "application/json"
	cfg.ResponseSchema = geminiConvSchema(fn.Argument)
	return cfg, contents, nil
}

func geminiPull(builder *StreamBuilder, itr iter.Seq2[*genai.GenerateContentResponse, error]) error {
	var (
		selIdx   int32
		selected bool
	)
	for chunk, err := range itr {
		if err != nil {
			return geminiUnwrap(err)
		}
		if len(chunk.Candidates) == 0 {
			continue
		}
		var sel *genai.Candidate
		if !selected {
			selected = true
			selIdx = chunk.Candidates[0].Index
			sel = chunk.Candidates[0]
		} else {
			for _, c := range chunk.Candidates {
				if c.Index == selIdx {
					sel = c
					break
				}
			}
			if sel == nil {
				continue
			}
		}

		if sel.Content != nil {
			var sb strings.Builder
			for _, p := range sel.Content.Parts {
				if p.Text != "" && !p.Thought {
					sb.WriteString(p.Text)
				}
			}
			if sb.Len() > 0 {
				if err := builder.Add(&MessageChunk{Role: RoleModel, Part: Text(sb.String())}); err != nil {
					return err
				}
			}
		}

		usage := geminiConvUsage(chunk.UsageMetadata)
		switch sel.FinishReason {
		default:
			return builder.Unexpected(usage, fmt.Errorf("unexpected finish reason: %s", sel.FinishReason))
		case genai.FinishReasonUnspecified, "":
			// continue
		case genai.FinishReasonStop:
			return builder.Done(usage)
		case genai.FinishReasonMaxTokens:
			return builder.Truncated(usage)
		case genai.FinishReasonSafety:
			return builder.Blocked(usage, geminiBlockedBy(sel))
		}
	}
	return errors.New("unexpected end of stream: no finish reason")
}

func geminiBlockedBy(c *genai.Candidate) string {
	var cats []string
	for _, sr := range c.SafetyRatings {
		if sr.Blocked {
			cats = append(cats, string(sr.Category))
		}
	}
	return "blocked by " + strings.Join(cats, ", ")
}

func geminiUnwrap(err error) error {
	var e *apierror.APIError
	if errors.As(err, &e) {
		if u := e.Unwrap(); u != nil {
			return u
		}
	}
	return err
}

func geminiConvMessage(last *genai.Content, msg *Message) (*genai.Content, error) {
	var role string
	switch msg.Role {
	case RoleUser:
		role = "user"
	case RoleModel:
		role = "model"
	default:
		return nil, fmt.Errorf("unexpected message role: %s", msg.Role)
	}

	var parts []*genai.Part
	for _, c := range msg.Contents {
		switch v := c.(type) {
		case Text:
			parts = append(parts, genai.NewPartFromText(string(v)))
		case *Blob:
			parts = append(parts, genai.NewPartFromBytes(v.Data, v.MIMEType))
		case *ImageURL:
			mime := v.MIMEType
			if mime == "" {
				mime = "image/jpeg"
			}
			parts = append(parts, genai.NewPartFromURI(v.URL, mime))
		default:
			return nil, fmt.Errorf("unsupported message part: %T", v)
		}
	}
	if last == nil || last.Role != role {
		return &genai.Content{
			Role:  role,
			Parts: parts,
		}, nil
	}
	last.Parts = append(last.Parts, parts...)
	return nil, nil
}

func (g *GeminiGenerator) convModelContext(mctx ModelContext) (*genai.GenerateContentConfig, []*genai.Content, error) {
	cfg := genai.GenerateContentConfig{
		SafetySettings: []*genai.SafetySetting{
			{
				Category:  genai.HarmCategoryHateSpeech,
				Threshold: genai.HarmBlockThresholdOff,
			},
			{
				Category:  genai.HarmCategoryHarassment,
				Threshold: genai.HarmBlockThresholdOff,
			},
			{
				Category:  genai.HarmCategoryDangerousContent,
				Threshold: genai.HarmBlockThresholdOff,
			},
		},
	}
	prompts := []*genai.Part{}
	for p := range mctx.Prompts() {
		prompts = append(prompts, genai.NewPartFromText(p.Text))
	}
	if len(prompts) > 0 {
		cfg.SystemInstruction = &genai.Content{Parts: prompts}
	}
	mp := g.InvokeParams
	if p := mctx.Params(); p != nil {
		mp = p
	}
	if mp != nil {
		cfg.MaxOutputTokens = int32(mp.MaxTokens)
		if mp.Temperature > 0 {
			cfg.Temperature = &mp.Temperature
		}
		if mp.TopP > 0 {
			cfg.TopP = &mp.TopP
		}
		if mp.TopK > 0 {
			cfg.TopK = &mp.TopK
		}
	}

	var (
		contents []*genai.Content
		last     *genai.Content
	)
	for msg := range mctx.Messages() {
		c, err := geminiConvMessage(last, msg)
		if err != nil {
			return nil, nil, err
		}
		if c != nil {
			contents = append(contents, c)
			last = c
		}
	}
	if len(contents) == 0 {
		return nil, nil, fmt.Errorf("no contents")
	}
	return &cfg, contents, nil
}

// geminiConvSchema converts a JSON schema into the Gemini response schema.
// Nullable unions such as ["null","string"] become a nullable string.
func geminiConvSchema(schema *jsonschema.Schema) *genai.Schema {
	if schema == nil {
		return nil
	}

	enums := make([]string, 0, len(schema.Enum))
	for _, v := range schema.Enum {
		enums = append(enums, fmt.Sprintf("%v", v))
	}

	gs := genai.Schema{
		Format:      schema.Format,
		Description: schema.Description,
		Items:       geminiConvSchema(schema.Items),
		Required:    schema.Required,
	}
	if len(enums) > 0 {
		gs.Enum = enums
	}

	if n := len(schema.Properties); n > 0 {
		gs.Properties = make(map[string]*genai.Schema, n)
		for k, prop := range schema.Properties {
			gs.Properties[k] = geminiConvSchema(prop)
		}
	}

	typ := schema.Type
	for _, t := range schema.Types {
		if t == "null" {
			gs.Nullable = genai.Ptr(true)
		} else if typ == "" {
			typ = t
		}
	}
	switch typ {
	case "object":
		gs.Type = genai.TypeObject
	case "array":
		gs.Type = genai.TypeArray
	case "string":
		gs.Type = genai.TypeString
	case "number":
		gs.Type = genai.TypeNumber
	case "integer":
		gs.Type = genai.TypeInteger
	case "boolean":
		gs.Type = genai.TypeBoolean
	}
	return &gs
}

func geminiConvUsage(usage *genai.GenerateContentResponseUsageMetadata) Usage {
	if usage == nil {
		return Usage{}
	}
	return Usage{
		PromptTokenCount:        int64(usage.PromptTokenCount),
		CachedContentTokenCount: int64(usage.CachedContentTokenCount),
		GeneratedTokenCount:     int64(usage.CandidatesTokenCount),
	}
}
