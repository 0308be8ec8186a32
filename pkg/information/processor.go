package information

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/MemoFlux/MemoFluxServer/pkg/extract"
	"github.com/MemoFlux/MemoFluxServer/pkg/genx"
)

var _ extract.Hooks[*Output, *Information, Partial] = (*Processor)(nil)

var tool = genx.MustNewFuncTool[Output](
	"information",
	"Summarize the content into structured information.",
	genx.WithSchema[PostType](&jsonschema.Schema{
		Type: "string",
		Enum: []any{string(LifePost), string(ScenePost), string(FoodPost), string(OtherPost)},
	}),
)

var checker = extract.MustChunkChecker(Schema)

const prompt = `You extract information from notes and screenshots of posts.

Give the content a title, then list the information worth keeping as items
with a short header and the content. Classify the post: LIFE_POST for daily
life, SCENE_POST for places and scenery, FOOD_POST for food and restaurants,
OTHER_POST for anything else. Write a short summary and describe the content
with tags, reusing the provided tags when they fit. Answer in the language of
the content.`

type Processor struct {
	extract.Defaults[*Information, Partial]

	backend extract.Backend
}

type Config struct {
	Generator string
}

func New(cfg Config, gen genx.Generator) *Processor {
	return &Processor{backend: extract.Backend{Generator: gen, Pattern: cfg.Generator}}
}

func NewPipeline(cfg Config, gen genx.Generator, logger *slog.Logger) *extract.Pipeline[*Output, *Information, Partial] {
	return extract.NewPipeline[*Output, *Information, Partial](New(cfg, gen), logger)
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

func (p *Processor) Convert(raw *Output, original extract.Content, tags []string) (*Information, error) {
	return &Information{
		Title:            raw.Title,
		InformationItems: extract.NonNil(raw.InformationItems),
		PostType:         canonicalPostType(raw.PostType),
		Summary:          raw.Summary,
		Tags:             extract.NonNil(raw.Tags),
		Category:         extract.Category(original.String()),
	}, nil
}

func (p *Processor) Seal(last Partial, original extract.Content, _ []string) Partial {
	last.Category = extract.Category(original.String())
	return last
}

func (p *Processor) CheckChunk(chunk Partial) error { return checker.Check(chunk) }

// canonicalPostType maps post types case-insensitively and unknown ones to
// OTHER_POST.
func canonicalPostType(t PostType) PostType {
	for _, e := range postTypes {
		if strings.EqualFold(e, string(t)) {
			return PostType(e)
		}
	}
	return OtherPost
}
