package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/MemoFlux/MemoFluxServer/pkg/extract"
	"github.com/MemoFlux/MemoFluxServer/pkg/genx"
)

var _ extract.Hooks[*Output, *Schedule, Partial] = (*Processor)(nil)

var tool = genx.MustNewFuncTool[Output](
	"schedule",
	"Extract the schedule described by the content.",
)

var checker = extract.MustChunkChecker(Schema)

// Zone is the time zone schedules are written in.
var Zone = time.FixedZone("UTC+8", 8*60*60)

const prompt = `You turn notes and screenshots into schedules.

Today is %s (%s, UTC+8). Resolve relative dates such as "tomorrow" or
"next Monday" against today. List every task in chronological order with
start_time and end_time as ISO 8601 times with a +08:00 offset, or empty
strings when the content does not say. Fill in the people involved, the
theme, the core tasks, the places, tags, a category and a few suggested
actions. Give the whole schedule a title and a category. Answer in the
language of the content.`

type Processor struct {
	extract.Defaults[*Schedule, Partial]

	backend extract.Backend
	now     func() time.Time
}

type Config struct {
	Generator string

	// Now returns the current time. It defaults to time.Now.
	Now func() time.Time
}

func New(cfg Config, gen genx.Generator) *Processor {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Processor{
		backend: extract.Backend{Generator: gen, Pattern: cfg.Generator},
		now:     now,
	}
}

func NewPipeline(cfg Config, gen genx.Generator, logger *slog.Logger) *extract.Pipeline[*Output, *Schedule, Partial] {
	return extract.NewPipeline[*Output, *Schedule, Partial](New(cfg, gen), logger)
}

func (p *Processor) View() string { return View }

func (p *Processor) Validate(c extract.Content) bool { return extract.MinRunes(c, 5) }

func (p *Processor) Preprocess(c extract.Content) extract.Content { return extract.CollapseSpace(c) }

// modelContext ignores request tags.
func (p *Processor) modelContext(c extract.Content) (genx.ModelContext, error) {
	today := p.now().In(Zone)
	return extract.ModelContext(fmt.Sprintf(prompt, today.Format(time.DateOnly), today.Weekday()), c, nil)
}

func (p *Processor) Invoke(ctx context.Context, c extract.Content, _ []string) (*Output, error) {
	mctx, err := p.modelContext(c)
	if err != nil {
		return nil, err
	}
	var out Output
	if err := p.backend.Invoke(ctx, mctx, tool, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (p *Processor) InvokeStream(ctx context.Context, c extract.Content, _ []string) (extract.ChunkStream[Partial], error) {
	mctx, err := p.modelContext(c)
	if err != nil {
		return nil, err
	}
	return extract.Stream[Partial](ctx, p.backend, mctx, tool, Schema)
}

func (p *Processor) Convert(raw *Output, original extract.Content, _ []string) (*Schedule, error) {
	tasks := make([]Task, len(raw.Tasks))
	for i, d := range raw.Tasks {
		d.People = extract.NonNil(d.People)
		d.CoreTasks = extract.NonNil(d.CoreTasks)
		d.Position = extract.NonNil(d.Position)
		d.Tags = extract.NonNil(d.Tags)
		d.SuggestedActions = extract.NonNil(d.SuggestedActions)
		tasks[i] = Task{ID: i, Draft: d}
	}
	return &Schedule{
		ID:       uuid.NewString(),
		Title:    raw.Title,
		Category: raw.Category,
		Text:     original.String(),
		Tasks:    tasks,
	}, nil
}

// Seal numbers the tasks of the final chunk and attaches the original text,
// as Convert does for blocking results.
func (p *Processor) Seal(last Partial, original extract.Content, _ []string) Partial {
	last.Text = original.String()
	if last.Tasks != nil {
		for i := range last.Tasks.Value {
			id := i
			last.Tasks.Value[i].ID = &id
		}
	}
	return last
}

func (p *Processor) CheckChunk(chunk Partial) error { return checker.Check(chunk) }
