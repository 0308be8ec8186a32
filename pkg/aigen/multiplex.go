package aigen

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MemoFlux/MemoFluxServer/pkg/extract"
)

// ErrSink wraps the error of a failed Sink.Send.
var ErrSink = errors.New("aigen: sink failed")

// Stream runs the schedule, knowledge and information streams one after the
// other and forwards every chunk to sink. A failing view yields one error
// envelope and the next view starts. Stream returns an error only when sink
// fails or ctx is done; in both cases no complete envelope is sent.
func (s *Service) Stream(ctx context.Context, c extract.Content, tags []string, sink Sink) error {
	send := func(e Envelope) error {
		if err := sink.Send(e); err != nil {
			return fmt.Errorf("%w: %w", ErrSink, err)
		}
		return nil
	}
	if err := send(statusEnvelope(StatusStart, "start streaming")); err != nil {
		return err
	}
	branches := []func() error{
		func() error { return streamBranch(ctx, s, s.Schedule, c, tags, send) },
		func() error { return streamBranch(ctx, s, s.Knowledge, c, tags, send) },
		func() error { return streamBranch(ctx, s, s.Information, c, tags, send) },
	}
	for _, run := range branches {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := run(); err != nil {
			return err
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return send(statusEnvelope(StatusComplete, "streaming complete"))
}

// streamBranch forwards the chunks of one view. Errors of the view itself
// become an error envelope; only sink and context errors are returned.
func streamBranch[F, P any](ctx context.Context, s *Service, e Extractor[F, P], c extract.Content, tags []string, send func(Envelope) error) error {
	view := e.View()
	log := s.logger().With("view", view)
	start := time.Now()

	fail := func(err error) error {
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		s.Metrics.observe(view, "stream", err, time.Since(start))
		log.WarnContext(ctx, "stream branch failed", "error", err)
		return send(statusEnvelope(StatusError, fmt.Sprintf("%s processing error: %v", view, err)))
	}

	stream, err := e.ProcessStream(ctx, c, tags)
	if err != nil {
		return fail(err)
	}
	defer stream.Close()

	chunks := 0
	for {
		chunk, err := stream.Next()
		if errors.Is(err, extract.ErrDone) {
			s.Metrics.observe(view, "stream", nil, time.Since(start))
			log.DebugContext(ctx, "stream branch done", "chunks", chunks, "duration", time.Since(start))
			return nil
		}
		if err != nil {
			return fail(err)
		}
		if err := send(Envelope{Type: Type(view), Status: StatusProgress, Data: chunk}); err != nil {
			log.DebugContext(ctx, "sink failed", "chunks", chunks, "error", err)
			return err
		}
		chunks++
		s.Metrics.chunk(view)
	}
}
