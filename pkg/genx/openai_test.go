package genx

import (
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/openai/openai-go"
)

func TestFormatOpenAISchema_StrictObject(t *testing.T) {
	tool := MustNewFuncTool[testNote]("note", "")
	s := FormatOpenAISchema(tool.Argument.CloneSchemas())

	if s.AdditionalProperties == nil || s.AdditionalProperties.Not == nil {
		t.Fatalf("additionalProperties = %+v, want false schema", s.AdditionalProperties)
	}
	if !slices.Equal(s.Required, []string{"tags", "title"}) {
		t.Errorf("required = %v", s.Required)
	}
	// tags was optional so it becomes nullable.
	if !slices.Contains(s.Properties["tags"].Types, "null") {
		t.Errorf("tags types = %v, want nullable", s.Properties["tags"].Types)
	}
}

func TestOpenAIGenerator_RequestNeedsMode(t *testing.T) {
	g := &OpenAIGenerator{Model: "m"}
	var mcb ModelContextBuilder
	mcb.UserText("", "hello")
	_, err := g.request(mcb.Build(), MustNewFuncTool[testNote]("note", ""))
	if err == nil {
		t.Fatal("expected error without json output or tool calls")
	}
}

func TestOpenAIGenerator_RequestJSONOutput(t *testing.T) {
	g := &OpenAIGenerator{Model: "m", SupportJSONOutput: true}
	var mcb ModelContextBuilder
	mcb.PromptText("", "extract")
	mcb.UserText("", "hello")
	params, err := g.request(mcb.Build(), MustNewFuncTool[testNote]("note", ""))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if params.ResponseFormat.OfJSONSchema == nil {
		t.Fatal("missing json_schema response format")
	}
	if params.ResponseFormat.OfJSONSchema.JSONSchema.Name != "note" {
		t.Errorf("schema name = %q", params.ResponseFormat.OfJSONSchema.JSONSchema.Name)
	}
	if len(params.Messages) != 2 || params.Messages[0].OfDeveloper == nil {
		t.Errorf("messages = %+v", params.Messages)
	}
}

func TestOpenAIGenerator_ConvUserMessageImages(t *testing.T) {
	g := &OpenAIGenerator{}
	msg := &Message{
		Role: RoleUser,
		Contents: Contents{
			Text("what is this"),
			&Blob{MIMEType: "image/png", Data: []byte{0x89, 'P', 'N', 'G'}},
			&ImageURL{URL: "https://example.com/a.jpg"},
		},
	}
	mp, err := g.convUserMessage(msg)
	if err != nil {
		t.Fatalf("convUserMessage: %v", err)
	}
	parts := mp.OfUser.Content.OfArrayOfContentParts
	if len(parts) != 3 {
		t.Fatalf("len(parts) = %d, want 3", len(parts))
	}
	if parts[0].OfText == nil || parts[0].OfText.Text != "what is this" {
		t.Errorf("parts[0] = %+v", parts[0])
	}
	if !strings.HasPrefix(parts[1].OfImageURL.ImageURL.URL, "data:image/png;base64,") {
		t.Errorf("blob url = %q", parts[1].OfImageURL.ImageURL.URL)
	}
	if parts[2].OfImageURL.ImageURL.URL != "https://example.com/a.jpg" {
		t.Errorf("image url = %q", parts[2].OfImageURL.ImageURL.URL)
	}
}

func TestOpenAIGenerator_TextOnlyRejectsImages(t *testing.T) {
	g := &OpenAIGenerator{Model: "text-model", SupportTextOnly: true}
	msg := &Message{Role: RoleUser, Contents: Contents{&ImageURL{URL: "https://example.com/a.jpg"}}}
	if _, err := g.convUserMessage(msg); err == nil {
		t.Fatal("expected error for image on text only model")
	}
}

func TestOAIPuller_ToolCallArguments(t *testing.T) {
	sb := NewStreamBuilder(8)
	p := &oaiPuller{tool: "note", toolCalls: true}

	deltas := []openai.ChatCompletionChunkChoiceDeltaToolCall{
		{Index: 0, Function: openai.ChatCompletionChunkChoiceDeltaToolCallFunction{Name: "note", Arguments: `{"ti`}},
		{Index: 0, Function: openai.ChatCompletionChunkChoiceDeltaToolCallFunction{Arguments: `tle":"x"}`}},
		{Index: 1, Function: openai.ChatCompletionChunkChoiceDeltaToolCallFunction{Name: "other", Arguments: `{}`}},
	}
	for _, d := range deltas {
		choice := openai.ChatCompletionChunkChoice{}
		choice.Delta.ToolCalls = []openai.ChatCompletionChunkChoiceDeltaToolCall{d}
		if err := p.forward(sb, &choice); err != nil {
			t.Fatalf("forward: %v", err)
		}
	}
	sb.Done(Usage{})

	var got strings.Builder
	s := sb.Stream()
	for {
		chunk, err := s.Next()
		if err != nil {
			if !errors.Is(err, ErrDone) {
				t.Fatalf("Next: %v", err)
			}
			break
		}
		got.WriteString(string(chunk.Part.(Text)))
	}
	if got.String() != `{"title":"x"}` {
		t.Errorf("arguments = %q", got.String())
	}
}
