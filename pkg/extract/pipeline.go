package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/MemoFlux/MemoFluxServer/pkg/extract"

// Hooks are the stages of a view extractor. R is the raw backend result, F
// the final result and P the streamed partial chunk.
//
// Implementations classify their own failures: Invoke wraps ErrBackend,
// Convert wraps ErrConversion. The pipeline returns hook errors unchanged.
type Hooks[R, F, P any] interface {
	// View names the extractor in logs, spans and envelopes.
	View() string

	Validate(c Content) bool
	Preprocess(c Content) Content

	Invoke(ctx context.Context, c Content, tags []string) (R, error)
	InvokeStream(ctx context.Context, c Content, tags []string) (ChunkStream[P], error)

	// Convert builds the final result. original is the content before
	// preprocessing.
	Convert(raw R, original Content, tags []string) (F, error)
	Postprocess(f F) F

	CheckChunk(p P) error
}

// Defaults provides the optional hooks. Embed it and override as needed.
type Defaults[F, P any] struct{}

// Validate accepts non-blank text and images with data or a URL.
func (Defaults[F, P]) Validate(c Content) bool { return !c.Empty() }

func (Defaults[F, P]) Preprocess(c Content) Content { return c }

func (Defaults[F, P]) Postprocess(f F) F { return f }

func (Defaults[F, P]) CheckChunk(P) error { return nil }

// Sealer is implemented by hooks whose final chunk carries the fields of
// the final result that the generator does not write, such as the category.
// original is the content before preprocessing.
type Sealer[P any] interface {
	Seal(last P, original Content, tags []string) P
}

// SealedStream is implemented by chunk streams that know when the chunk
// they returned last was the final one.
type SealedStream interface {
	Sealed() bool
}

// ChunkStream is a pull iterator over streamed chunks. Next returns ErrDone
// after the last chunk. Close cancels the backend request.
type ChunkStream[P any] interface {
	Next() (P, error)
	Close() error
}

// Pipeline runs Hooks in blocking or streaming mode. It is safe for
// concurrent use when the hooks are.
type Pipeline[R, F, P any] struct {
	hooks  Hooks[R, F, P]
	logger *slog.Logger
	tracer trace.Tracer
}

// NewPipeline returns a pipeline over h. A nil logger means slog.Default().
func NewPipeline[R, F, P any](h Hooks[R, F, P], logger *slog.Logger) *Pipeline[R, F, P] {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline[R, F, P]{
		hooks:  h,
		logger: logger.With("view", h.View()),
		tracer: otel.Tracer(tracerName),
	}
}

func (p *Pipeline[R, F, P]) View() string { return p.hooks.View() }

func (p *Pipeline[R, F, P]) ProcessText(ctx context.Context, text string, tags []string) (F, error) {
	return p.Process(ctx, NewText(text), tags)
}

func (p *Pipeline[R, F, P]) ProcessImage(ctx context.Context, img Image, tags []string) (F, error) {
	return p.Process(ctx, imageContent(img), tags)
}

// Process runs validate, preprocess, invoke, convert and postprocess.
func (p *Pipeline[R, F, P]) Process(ctx context.Context, c Content, tags []string) (result F, err error) {
	ctx, span := p.startSpan(ctx, "extract.process", c, "blocking")
	defer span.End()

	log := p.logger.With("mode", "blocking", "kind", c.Kind().String())
	start := time.Now()
	log.DebugContext(ctx, "process start", "tags", len(tags))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "extract failed")
			log.WarnContext(ctx, "process failed", "error", err, "duration", time.Since(start))
			return
		}
		log.InfoContext(ctx, "process done", "duration", time.Since(start))
	}()

	var zero F
	in, err := p.prepare(ctx, log, c)
	if err != nil {
		return zero, err
	}

	log.DebugContext(ctx, "stage", "stage", "invoke")
	raw, err := p.hooks.Invoke(ctx, in, tags)
	if err != nil {
		return zero, err
	}

	log.DebugContext(ctx, "stage", "stage", "convert")
	f, err := p.hooks.Convert(raw, c, tags)
	if err != nil {
		return zero, err
	}

	log.DebugContext(ctx, "stage", "stage", "postprocess")
	return p.hooks.Postprocess(f), nil
}

func (p *Pipeline[R, F, P]) ProcessTextStream(ctx context.Context, text string, tags []string) (ChunkStream[P], error) {
	return p.ProcessStream(ctx, NewText(text), tags)
}

func (p *Pipeline[R, F, P]) ProcessImageStream(ctx context.Context, img Image, tags []string) (ChunkStream[P], error) {
	return p.ProcessStream(ctx, imageContent(img), tags)
}

// ProcessStream validates and preprocesses c, then opens the backend stream.
// Every chunk passes CheckChunk; the first failing chunk fails the stream.
// The span stays open until the stream ends or is closed.
func (p *Pipeline[R, F, P]) ProcessStream(ctx context.Context, c Content, tags []string) (ChunkStream[P], error) {
	ctx, span := p.startSpan(ctx, "extract.stream", c, "stream")
	log := p.logger.With("mode", "stream", "kind", c.Kind().String())
	log.DebugContext(ctx, "stream start", "tags", len(tags))

	fail := func(err error) (ChunkStream[P], error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, "extract stream failed")
		span.End()
		log.WarnContext(ctx, "stream failed", "error", err)
		return nil, err
	}

	in, err := p.prepare(ctx, log, c)
	if err != nil {
		return fail(err)
	}
	log.DebugContext(ctx, "stage", "stage", "invoke_stream")
	inner, err := p.hooks.InvokeStream(ctx, in, tags)
	if err != nil {
		return fail(err)
	}
	cs := &checkedStream[P]{
		inner: inner,
		check: p.hooks.CheckChunk,
		span:  span,
		log:   log,
		start: time.Now(),
	}
	if sl, ok := p.hooks.(Sealer[P]); ok {
		cs.seal = func(last P) P { return sl.Seal(last, c, tags) }
	}
	return cs, nil
}

func (p *Pipeline[R, F, P]) prepare(ctx context.Context, log *slog.Logger, c Content) (Content, error) {
	log.DebugContext(ctx, "stage", "stage", "validate")
	if !p.hooks.Validate(c) {
		return Content{}, fmt.Errorf("%w: %s rejected %s content", ErrInputValidation, p.hooks.View(), c.Kind())
	}
	log.DebugContext(ctx, "stage", "stage", "preprocess")
	return p.hooks.Preprocess(c), nil
}

func (p *Pipeline[R, F, P]) startSpan(ctx context.Context, name string, c Content, mode string) (context.Context, trace.Span) {
	return p.tracer.Start(
		ctx,
		name,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("extract.view", p.hooks.View()),
			attribute.String("extract.mode", mode),
			attribute.String("extract.kind", c.Kind().String()),
		),
	)
}

func imageContent(img Image) Content {
	if img.URL != "" && len(img.Data) == 0 {
		return NewImageURL(img.URL, img.MIMEType)
	}
	return NewImage(img.MIMEType, img.Data)
}

// checkedStream applies the chunk check and records the outcome on the span.
type checkedStream[P any] struct {
	inner ChunkStream[P]
	check func(P) error
	seal  func(P) P
	span  trace.Span
	log   *slog.Logger
	start time.Time

	mu     sync.Mutex
	err    error
	chunks int
	ended  bool
}

func (s *checkedStream[P]) Next() (P, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var zero P
	if s.err != nil {
		return zero, s.err
	}
	chunk, err := s.inner.Next()
	if err != nil {
		s.end(err)
		return zero, err
	}
	if s.seal != nil {
		if ss, ok := s.inner.(SealedStream); ok && ss.Sealed() {
			chunk = s.seal(chunk)
		}
	}
	if cerr := s.check(chunk); cerr != nil {
		if !errors.Is(cerr, ErrChunkValidation) {
			cerr = fmt.Errorf("%w: %w", ErrChunkValidation, cerr)
		}
		s.inner.Close()
		s.end(cerr)
		return zero, cerr
	}
	s.chunks++
	return chunk, nil
}

func (s *checkedStream[P]) Close() error {
	err := s.inner.Close()
	s.mu.Lock()
	s.end(ErrDone)
	s.mu.Unlock()
	return err
}

// end records the terminal error and closes the span once. Callers hold mu.
func (s *checkedStream[P]) end(err error) {
	if s.err == nil {
		s.err = err
	}
	if s.ended {
		return
	}
	s.ended = true
	s.span.SetAttributes(attribute.Int("extract.chunks", s.chunks))
	if errors.Is(err, ErrDone) {
		s.log.Info("stream done", "chunks", s.chunks, "duration", time.Since(s.start))
	} else {
		s.span.RecordError(err)
		s.span.SetStatus(codes.Error, "extract stream failed")
		s.log.Warn("stream failed", "chunks", s.chunks, "error", err, "duration", time.Since(s.start))
	}
	s.span.End()
}
