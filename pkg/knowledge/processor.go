package knowledge

import (
	"context"
	"log/slog"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/MemoFlux/MemoFluxServer/pkg/extract"
	"github.com/MemoFlux/MemoFluxServer/pkg/genx"
)

var (
	_ extract.Hooks[*Output, *Knowledge, Partial] = (*Processor)(nil)
	_ extract.Sealer[Partial]                     = (*Processor)(nil)
)

var tool = genx.MustNewFuncTool[Output](
	"knowledge",
	"Organize the note into a knowledge structure.",
	genx.WithSchema[Relationship](&jsonschema.Schema{
		Type: "string",
		Enum: []any{string(Parent), string(Child)},
	}),
)

var checker = extract.MustChunkChecker(Schema)

const prompt = `You organize personal notes into knowledge.

Split the note into knowledge items. Give each item a 1-based id, a short
header and its content. Link an item to another item with node: target_id is
the id of the other item and relationship is PARENT when the other item is
the parent of this one, CHILD when it is a child. The first item has a null
node. List related topics in related_items and describe the note with tags.
Reuse the provided tags when they fit. Answer in the language of the note.`

// Processor implements the knowledge view hooks.
type Processor struct {
	extract.Defaults[*Knowledge, Partial]

	backend extract.Backend
}

// Config selects the generator pattern of the knowledge view.
type Config struct {
	Generator string
}

func New(cfg Config, gen genx.Generator) *Processor {
	return &Processor{backend: extract.Backend{Generator: gen, Pattern: cfg.Generator}}
}

// NewPipeline returns the knowledge pipeline.
func NewPipeline(cfg Config, gen genx.Generator, logger *slog.Logger) *extract.Pipeline[*Output, *Knowledge, Partial] {
	return extract.NewPipeline[*Output, *Knowledge, Partial](New(cfg, gen), logger)
}

func (p *Processor) View() string { return View }

func (p *Processor) Validate(c extract.Content) bool { return extract.MinRunes(c, 5) }

func (p *Processor) Preprocess(c extract.Content) extract.Content { return extract.CollapseSpace(c) }

func (p *Processor) Invoke(ctx context.Context, c extract.Content, tags []string) (*Output, error) {
	mctx, err := extract.ModelContext(prompt, c, tags)
	if err != nil {
		return nil, err
	}
	var out Output
	if err := p.backend.Invoke(ctx, mctx, tool, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (p *Processor) InvokeStream(ctx context.Context, c extract.Content, tags []string) (extract.ChunkStream[Partial], error) {
	mctx, err := extract.ModelContext(prompt, c, tags)
	if err != nil {
		return nil, err
	}
	return extract.Stream[Partial](ctx, p.backend, mctx, tool, Schema)
}

func (p *Processor) Convert(raw *Output, original extract.Content, tags []string) (*Knowledge, error) {
	items := extract.NonNil(raw.KnowledgeItems)
	for i := range items {
		if items[i].ID == 0 {
			items[i].ID = i + 1
		}
		if n := items[i].Node; n != nil && n.Relationship != Parent {
			n.Relationship = Child
		}
	}
	return &Knowledge{
		Title:          raw.Title,
		KnowledgeItems: items,
		RelatedItems:   extract.NonNil(raw.RelatedItems),
		Tags:           extract.NonNil(raw.Tags),
		Category:       extract.Category(original.String()),
	}, nil
}

// Seal completes the final chunk with the category of the original content.
func (p *Processor) Seal(last Partial, original extract.Content, _ []string) Partial {
	last.Category = extract.Category(original.String())
	return last
}

func (p *Processor) CheckChunk(chunk Partial) error { return checker.Check(chunk) }
