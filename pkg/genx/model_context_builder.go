package genx

import (
	"iter"
	"slices"

	"github.com/goccy/go-yaml"
)

var _ ModelContext = (*modelContext)(nil)

type ModelContextBuilder struct {
	Prompts  []*Prompt
	Messages []*Message

	Params *ModelParams
}

func (mcb *ModelContextBuilder) Build() ModelContext {
	return &modelContext{
		prompts:  slices.Clone(mcb.Prompts),
		messages: slices.Clone(mcb.Messages),
		params:   mcb.Params,
	}
}

func (mcb *ModelContextBuilder) lastPrompt() (*Prompt, bool) {
	if len(mcb.Prompts) == 0 {
		return nil, false
	}
	return mcb.Prompts[len(mcb.Prompts)-1], true
}

// AddPrompt appends a system prompt. Consecutive prompts with the same name
// are merged into one.
func (mcb *ModelContextBuilder) AddPrompt(prompt *Prompt) {
	if p, ok := mcb.lastPrompt(); ok && p.Name == prompt.Name {
		if p.Text != "" {
			p.Text += "\n" + prompt.Text
		} else {
			p.Text = prompt.Text
		}
		return
	}
	mcb.Prompts = append(mcb.Prompts, prompt)
}

// AddMessage appends a message. Consecutive messages from the same role and
// name are merged so backends see a single turn.
func (mcb *ModelContextBuilder) AddMessage(msg *Message) {
	if n := len(mcb.Messages); n > 0 {
		last := mcb.Messages[n-1]
		if last.Role == msg.Role && last.Name == msg.Name {
			last.Contents = append(last.Contents, msg.Contents...)
			return
		}
	}
	mcb.Messages = append(mcb.Messages, msg)
}

// Prompt adds a YAML rendering of {key: value} as a system prompt.
func (mcb *ModelContextBuilder) Prompt(name, key string, value any) error {
	b, err := yaml.Marshal(map[string]any{key: value})
	if err != nil {
		return err
	}
	mcb.AddPrompt(&Prompt{
		Name: name,
		Text: string(b),
	})
	return nil
}

func (mcb *ModelContextBuilder) PromptText(name, text string) {
	mcb.AddPrompt(&Prompt{
		Name: name,
		Text: text,
	})
}

func (mcb *ModelContextBuilder) UserText(name, text string) {
	mcb.AddMessage(&Message{
		Role:     RoleUser,
		Name:     name,
		Contents: Contents{Text(text)},
	})
}

func (mcb *ModelContextBuilder) UserBlob(name string, mimeType string, data []byte) {
	mcb.AddMessage(&Message{
		Role:     RoleUser,
		Name:     name,
		Contents: Contents{&Blob{MIMEType: mimeType, Data: data}},
	})
}

func (mcb *ModelContextBuilder) UserImageURL(name, url, mimeType string) {
	mcb.AddMessage(&Message{
		Role:     RoleUser,
		Name:     name,
		Contents: Contents{&ImageURL{URL: url, MIMEType: mimeType}},
	})
}

type modelContext struct {
	prompts  []*Prompt
	messages []*Message

	params *ModelParams
}

func (mctx *modelContext) Prompts() iter.Seq[*Prompt] {
	return slices.Values(mctx.prompts)
}

func (mctx *modelContext) Messages() iter.Seq[*Message] {
	return slices.Values(mctx.messages)
}

func (mctx *modelContext) Params() *ModelParams {
	return mctx.params
}
