package genx

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/packages/ssestream"
)

var _ Generator = (*OpenAIGenerator)(nil)

const (
	oaiFinishReasonStop          string = "stop"
	oaiFinishReasonToolCalls     string = "tool_calls"
	oaiFinishReasonLength        string = "length"
	oaiFinishReasonFunctionCall  string = "function_call"
	oaiFinishReasonContentFilter string = "content_filter"

	oaiMaxTextContentLength = 1048576
)

// OpenAISchemaFormatter formats a JSON schema for OpenAI structured outputs.
type OpenAISchemaFormatter func(m *jsonschema.Schema) *jsonschema.Schema

// OpenAIGenerator implements Generator using an OpenAI compatible chat
// completion API.
//
// SupportJSONOutput selects the json_schema response format; otherwise
// SupportToolCalls forces a single function call whose arguments carry the
// document. One of the two is required.
type OpenAIGenerator struct {
	Client *openai.Client `json:"-"`

	Model string `json:"model"`

	InvokeParams *ModelParams `json:"invoke_params,omitzero"`

	SupportJSONOutput  bool `json:"support_json_output,omitzero"`
	SupportToolCalls   bool `json:"support_tool_calls,omitzero"`
	SupportTextOnly    bool `json:"support_text_only,omitzero"`
	UseSystemRole      bool `json:"use_system_role,omitzero"`
	InvokeWithToolName bool `json:"invoke_with_tool_name,omitzero"`

	ExtraFields map[string]any `json:"extra_fields,omitzero"`

	SchemaFormatter OpenAISchemaFormatter `json:"-"`
}

func (g *OpenAIGenerator) Invoke(ctx context.Context, _ string, mctx ModelContext, fn *FuncTool) (Usage, *FuncCall, error) {
	params, err := g.request(mctx, fn)
	if err != nil {
		return Usage{}, nil, err
	}
	resp, err := g.Client.Chat.Completions.New(ctx, params)
	if err != nil {
		return Usage{}, nil, err
	}
	if len(resp.Choices) == 0 {
		return Usage{}, nil, errors.New("no choices")
	}
	usage := oaiConvUsage(&resp.Usage)
	choice := resp.Choices[0]
	if choice.Message.Refusal != "" {
		return usage, nil, Blocked(usage, choice.Message.Refusal)
	}

	if g.SupportJSONOutput {
		switch choice.FinishReason {
		case oaiFinishReasonStop:
		case oaiFinishReasonLength:
			return usage, nil, Truncated(usage)
		default:
			return usage, nil, fmt.Errorf("want stop, got unexpected finish reason: %s", choice.FinishReason)
		}
		if len(choice.Message.Content) == 0 {
			return usage, nil, errors.New("no content")
		}
		return usage, fn.NewFuncCall(choice.Message.Content), nil
	}

	switch choice.FinishReason {
	case oaiFinishReasonToolCalls, oaiFinishReasonFunctionCall, oaiFinishReasonStop:
	case oaiFinishReasonLength:
		return usage, nil, Truncated(usage)
	default:
		return usage, nil, fmt.Errorf("want tool calls, got unexpected finish reason: %s", choice.FinishReason)
	}
	for _, tc := range choice.Message.ToolCalls {
		if tc.Function.Name == fn.Name {
			return usage, fn.NewFuncCall(tc.Function.Arguments), nil
		}
	}
	return usage, nil, errors.New("no tool calls")
}

func (g *OpenAIGenerator) InvokeStream(ctx context.Context, _ string, mctx ModelContext, fn *FuncTool) (Stream, error) {
	params, err := g.request(mctx, fn)
	if err != nil {
		return nil, err
	}
	params.StreamOptions = openai.ChatCompletionStreamOptionsParam{
		IncludeUsage: param.NewOpt(true),
	}
	sb := NewStreamBuilder(32)
	go func() {
		p := &oaiPuller{tool: fn.Name, toolCalls: !g.SupportJSONOutput}
		if err := p.pull(sb, g.Client.Chat.Completions.NewStreaming(ctx, params)); err != nil {
			sb.Abort(err)
		}
	}()
	return sb.Stream(), nil
}

// request builds the chat completion parameters for producing fn's document.
func (g *OpenAIGenerator) request(mctx ModelContext, fn *FuncTool) (openai.ChatCompletionNewParams, error) {
	if fn == nil {
		return openai.ChatCompletionNewParams{}, errors.New("function tool is required")
	}
	params, err := g.chatCompletion(mctx)
	if err != nil {
		return openai.ChatCompletionNewParams{}, err
	}
	switch {
	case g.SupportJSONOutput:
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
				JSONSchema: openai.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:        fn.Name,
					Description: param.NewOpt(fn.Description),
					Schema:      g.convSchemaForOutput(fn.Argument),
					Strict:      param.NewOpt(true),
				},
			},
		}
	case g.SupportToolCalls:
		params.Tools = []openai.ChatCompletionToolParam{{
			Function: openai.FunctionDefinitionParam{
				Name:        fn.Name,
				Description: param.NewOpt(fn.Description),
				Parameters:  g.convSchemaForFunc(fn.Argument),
				Strict:      param.NewOpt(true),
			},
		}}
		if g.InvokeWithToolName {
			params.ToolChoice = openai.ChatCompletionToolChoiceOptionUnionParam{
				OfChatCompletionNamedToolChoice: &openai.ChatCompletionNamedToolChoiceParam{
					Function: openai.ChatCompletionNamedToolChoiceFunctionParam{
						Name: fn.Name,
					},
				},
			}
		} else {
			params.ToolChoice = openai.ChatCompletionToolChoiceOptionUnionParam{
				OfAuto: param.NewOpt("required"),
			}
		}
	default:
		return openai.ChatCompletionNewParams{}, errors.New("json output or tool calls are required")
	}
	return params, nil
}

func (g *OpenAIGenerator) chatCompletion(mctx ModelContext) (openai.ChatCompletionNewParams, error) {
	msgs, err := g.convModelContext(mctx)
	if err != nil {
		return openai.ChatCompletionNewParams{}, err
	}
	params := openai.ChatCompletionNewParams{
		Messages: msgs,
		Model:    g.Model,
	}
	mp := g.InvokeParams
	if p := mctx.Params(); p != nil {
		mp = p
	}
	if mp != nil {
		if mp.FrequencyPenalty > 0 {
			params.FrequencyPenalty = param.NewOpt(float64(mp.FrequencyPenalty))
		}
		if mp.MaxTokens > 0 {
			params.MaxCompletionTokens = param.NewOpt(int64(mp.MaxTokens))
		}
		if mp.Temperature > 0 {
			params.Temperature = param.NewOpt(float64(mp.Temperature))
		}
		if mp.TopP > 0 {
			params.TopP = param.NewOpt(float64(mp.TopP))
		}
		if mp.PresencePenalty > 0 {
			params.PresencePenalty = param.NewOpt(float64(mp.PresencePenalty))
		}
	}
	if len(g.ExtraFields) > 0 {
		params.SetExtraFields(g.ExtraFields)
	}
	return params, nil
}

// oaiPuller forwards the document text of a streaming completion. In JSON
// output mode that is the message content; in tool call mode it is the
// argument text of the named tool call.
type oaiPuller struct {
	tool      string
	toolCalls bool

	index     int64
	selected  bool
	toolIndex int64
	inTool    bool
}

func (p *oaiPuller) pull(sb *StreamBuilder, stream *ssestream.Stream[openai.ChatCompletionChunk]) error {
	defer stream.Close()

	var finish string
	var usage Usage
	for stream.Next() {
		chunk := stream.Current()
		if chunk.Usage.TotalTokens > 0 {
			usage = oaiConvUsage(&chunk.Usage)
		}
		sel := p.choice(chunk.Choices)
		if sel == nil {
			continue
		}
		if s := sel.Delta.Refusal; s != "" {
			return sb.Blocked(usage, s)
		}
		if err := p.forward(sb, sel); err != nil {
			return err
		}
		if sel.FinishReason != "" {
			finish = sel.FinishReason
		}
	}
	if err := stream.Err(); err != nil {
		return err
	}
	switch finish {
	case oaiFinishReasonStop, oaiFinishReasonToolCalls, oaiFinishReasonFunctionCall:
		return sb.Done(usage)
	case oaiFinishReasonLength:
		return sb.Truncated(usage)
	case oaiFinishReasonContentFilter:
		return sb.Blocked(usage, "content filter")
	case "":
		return errors.New("unexpected end of stream: no finish reason")
	default:
		return sb.Unexpected(usage, fmt.Errorf("unexpected finish reason: %s", finish))
	}
}

func (p *oaiPuller) choice(choices []openai.ChatCompletionChunkChoice) *openai.ChatCompletionChunkChoice {
	if len(choices) == 0 {
		return nil
	}
	if !p.selected {
		p.selected = true
		p.index = choices[0].Index
		return &choices[0]
	}
	for i := range choices {
		if choices[i].Index == p.index {
			return &choices[i]
		}
	}
	return nil
}

func (p *oaiPuller) forward(sb *StreamBuilder, sel *openai.ChatCompletionChunkChoice) error {
	if !p.toolCalls {
		if s := sel.Delta.Content; s != "" {
			return sb.Add(&MessageChunk{Role: RoleModel, Part: Text(s)})
		}
		return nil
	}
	for _, t := range sel.Delta.ToolCalls {
		// The first delta of a call carries its name; later deltas only
		// carry the index and argument fragments.
		if t.Function.Name != "" {
			p.inTool = t.Function.Name == p.tool
			p.toolIndex = t.Index
		}
		if !p.inTool || t.Index != p.toolIndex || t.Function.Arguments == "" {
			continue
		}
		if err := sb.Add(&MessageChunk{Role: RoleModel, Part: Text(t.Function.Arguments)}); err != nil {
			return err
		}
	}
	return nil
}

func (g *OpenAIGenerator) convModelContext(mctx ModelContext) ([]openai.ChatCompletionMessageParamUnion, error) {
	out := []openai.ChatCompletionMessageParamUnion{}
	for p := range mctx.Prompts() {
		out = append(out, g.convPrompt(p)...)
	}
	for msg := range mctx.Messages() {
		param, err := g.convMessage(msg)
		if err != nil {
			return nil, err
		}
		out = append(out, param)
	}
	return out, nil
}

func (g *OpenAIGenerator) convPrompt(p *Prompt) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(p.Text)/oaiMaxTextContentLength+1)
	t := p.Text
	for len(t) > 0 {
		v := t
		if len(v) > oaiMaxTextContentLength {
			v, t = t[:oaiMaxTextContentLength], t[oaiMaxTextContentLength:]
		} else {
			t = ""
		}
		if g.UseSystemRole {
			mp := openai.ChatCompletionMessageParamUnion{
				OfSystem: &openai.ChatCompletionSystemMessageParam{
					Content: openai.ChatCompletionSystemMessageParamContentUnion{
						OfString: param.NewOpt(v),
					},
				},
			}
			if p.Name != "" {
				mp.OfSystem.Name = param.NewOpt(p.Name)
			}
			out = append(out, mp)
		} else {
			mp := openai.ChatCompletionMessageParamUnion{
				OfDeveloper: &openai.ChatCompletionDeveloperMessageParam{
					Content: openai.ChatCompletionDeveloperMessageParamContentUnion{
						OfString: param.NewOpt(v),
					},
				},
			}
			if p.Name != "" {
				mp.OfDeveloper.Name = param.NewOpt(p.Name)
			}
			out = append(out, mp)
		}
	}
	return out
}

func (g *OpenAIGenerator) convMessage(msg *Message) (openai.ChatCompletionMessageParamUnion, error) {
	switch msg.Role {
	case RoleUser:
		return g.convUserMessage(msg)
	case RoleModel:
		return g.convModelMessage(msg)
	default:
		return openai.ChatCompletionMessageParamUnion{}, fmt.Errorf(
			"unexpected message role: %s, a message must be a user or model message",
			msg.Role,
		)
	}
}

func (g *OpenAIGenerator) convModelMessage(msg *Message) (openai.ChatCompletionMessageParamUnion, error) {
	var text strings.Builder
	for _, c := range msg.Contents {
		v, ok := c.(Text)
		if !ok {
			return openai.ChatCompletionMessageParamUnion{}, errors.New("model message must contain text only")
		}
		text.WriteString(string(v))
	}
	if text.Len() == 0 {
		return openai.ChatCompletionMessageParamUnion{}, errors.New("model message must contain text")
	}
	mp := openai.ChatCompletionMessageParamUnion{
		OfAssistant: &openai.ChatCompletionAssistantMessageParam{
			Content: openai.ChatCompletionAssistantMessageParamContentUnion{
				OfString: param.NewOpt(text.String()),
			},
		},
	}
	if msg.Name != "" {
		mp.OfAssistant.Name = param.NewOpt(msg.Name)
	}
	return mp, nil
}

func (g *OpenAIGenerator) convUserMessage(msg *Message) (openai.ChatCompletionMessageParamUnion, error) {
	var (
		text   strings.Builder
		images []openai.ChatCompletionContentPartUnionParam
	)
	for _, c := range msg.Contents {
		switch v := c.(type) {
		case Text:
			text.WriteString(string(v))
		case *Blob:
			if !strings.HasPrefix(v.MIMEType, "image/") {
				return openai.ChatCompletionMessageParamUnion{}, fmt.Errorf("unsupported blob type: %s", v.MIMEType)
			}
			url := "data:" + v.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(v.Data)
			images = append(images, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{URL: url}))
		case *ImageURL:
			images = append(images, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{URL: v.URL}))
		default:
			return openai.ChatCompletionMessageParamUnion{}, fmt.Errorf("unsupported message part: %T", v)
		}
	}
	if len(images) > 0 && g.SupportTextOnly {
		return openai.ChatCompletionMessageParamUnion{}, fmt.Errorf("model %v supports text messages only", g.Model)
	}

	var mp openai.ChatCompletionUserMessageParam
	if len(images) == 0 {
		if text.Len() == 0 {
			return openai.ChatCompletionMessageParamUnion{}, errors.New("user message must contain text")
		}
		mp.Content = openai.ChatCompletionUserMessageParamContentUnion{
			OfString: param.NewOpt(text.String()),
		}
	} else {
		var parts []openai.ChatCompletionContentPartUnionParam
		if text.Len() > 0 {
			parts = append(parts, openai.TextContentPart(text.String()))
		}
		parts = append(parts, images...)
		mp.Content = openai.ChatCompletionUserMessageParamContentUnion{
			OfArrayOfContentParts: parts,
		}
	}
	if msg.Name != "" {
		mp.Name = param.NewOpt(msg.Name)
	}
	return openai.ChatCompletionMessageParamUnion{OfUser: &mp}, nil
}

func (g *OpenAIGenerator) convSchemaForOutput(s *jsonschema.Schema) any {
	if s == nil {
		return nil
	}
	return (any)(g.patchSchema(s))
}

func (g *OpenAIGenerator) convSchemaForFunc(s *jsonschema.Schema) openai.FunctionParameters {
	if s == nil {
		return nil
	}
	b, err := json.Marshal(g.patchSchema(s))
	if err != nil {
		return nil
	}
	var m openai.FunctionParameters
	if err := json.Unmarshal(b, &m); err != nil {
		return nil
	}
	return m
}

// FormatOpenAISchema formats a schema for OpenAI structured outputs.
//
// OpenAI strict mode requires:
//   - All objects must have additionalProperties: false
//   - All properties must be listed in required
//
// See https://platform.openai.com/docs/guides/structured-outputs
func FormatOpenAISchema(m *jsonschema.Schema) *jsonschema.Schema {
	if m == nil {
		return nil
	}

	// jsonschema may set Types: ["null", "array"] with an empty Type for
	// nullable fields; consolidate into one representation.
	if m.Type != "" && len(m.Types) > 0 {
		m.Types = append(m.Types, m.Type)
		m.Type = ""
	}

	typ := m.Type
	if typ == "" {
		for _, t := range m.Types {
			if t != "null" && t != "" {
				typ = t
				break
			}
		}
	}

	switch typ {
	case "array":
		m.Items = FormatOpenAISchema(m.Items)
	case "object":
		m.AdditionalProperties = &jsonschema.Schema{Not: &jsonschema.Schema{}} // false schema

		requires := make(map[string]struct{})
		for _, v := range m.Required {
			requires[v] = struct{}{}
		}
		for k, v := range m.Properties {
			if _, ok := requires[k]; !ok {
				requires[k] = struct{}{}
				if v.Type != "" {
					v.Types = []string{v.Type}
					v.Type = ""
				}
				if !slices.Contains(v.Types, "null") {
					v.Types = append(v.Types, "null")
				}
			}
			m.Properties[k] = FormatOpenAISchema(v)
		}
		m.Required = slices.Sorted(maps.Keys(requires))
	}
	return m
}

func (g *OpenAIGenerator) patchSchema(m *jsonschema.Schema) *jsonschema.Schema {
	if m == nil {
		return nil
	}
	s := m.CloneSchemas()
	if g.SchemaFormatter != nil {
		return g.SchemaFormatter(s)
	}
	return FormatOpenAISchema(s)
}

func oaiConvUsage(usage *openai.CompletionUsage) Usage {
	return Usage{
		PromptTokenCount:        usage.PromptTokens,
		CachedContentTokenCount: usage.PromptTokensDetails.CachedTokens,
		GeneratedTokenCount:     usage.CompletionTokens,
	}
}
