package extract

import (
	"context"
	"fmt"

	"github.com/MemoFlux/MemoFluxServer/pkg/genx"
)

// Backend invokes one generator pattern with a function tool describing the
// document to produce.
type Backend struct {
	Generator genx.Generator
	Pattern   string
}

// ModelContext builds the prompt for content c. Tags, when present, are
// rendered as a YAML prompt after the instructions.
func ModelContext(prompt string, c Content, tags []string) (genx.ModelContext, error) {
	var mcb genx.ModelContextBuilder
	mcb.PromptText("instructions", prompt)
	if len(tags) > 0 {
		if err := mcb.Prompt("context", "tags", tags); err != nil {
			return nil, err
		}
	}
	if img, ok := c.Image(); ok {
		if img.URL != "" {
			mcb.UserImageURL("", img.URL, img.MIMEType)
		} else {
			mcb.UserBlob("", img.MIMEType, img.Data)
		}
	} else {
		mcb.UserText("", c.Text())
	}
	return mcb.Build(), nil
}

// Invoke runs a blocking generation and decodes the document into out.
// Generator failures wrap ErrBackend and decode failures ErrConversion.
func (b Backend) Invoke(ctx context.Context, mctx genx.ModelContext, tool *genx.FuncTool, out any) error {
	if b.Generator == nil {
		return fmt.Errorf("%w: no generator for %s", ErrBackend, tool.Name)
	}
	_, call, err := b.Generator.Invoke(ctx, b.Pattern, mctx, tool)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBackend, err)
	}
	if call == nil {
		return fmt.Errorf("%w: %s returned no document", ErrBackend, b.Pattern)
	}
	if err := call.Unmarshal(out); err != nil {
		return fmt.Errorf("%w: %w", ErrConversion, err)
	}
	return nil
}

// Stream opens a streaming generation of tool's document, assembled with s.
func Stream[P any](ctx context.Context, b Backend, mctx genx.ModelContext, tool *genx.FuncTool, s *Schema) (ChunkStream[P], error) {
	if b.Generator == nil {
		return nil, fmt.Errorf("%w: no generator for %s", ErrBackend, tool.Name)
	}
	return StreamJSON[P](ctx, func(ctx context.Context) (genx.Stream, error) {
		return b.Generator.InvokeStream(ctx, b.Pattern, mctx, tool)
	}, s)
}
