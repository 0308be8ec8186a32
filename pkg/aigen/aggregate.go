package aigen

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MemoFlux/MemoFluxServer/pkg/extract"
	"github.com/MemoFlux/MemoFluxServer/pkg/information"
	"github.com/MemoFlux/MemoFluxServer/pkg/knowledge"
	"github.com/MemoFlux/MemoFluxServer/pkg/schedule"
)

// Composite holds the three views of one piece of content. A view that
// failed is empty and its error message is listed in Errors.
type Composite struct {
	Schedule    *schedule.Schedule       `json:"schedule"`
	Knowledge   *knowledge.Knowledge     `json:"knowledge"`
	Information *information.Information `json:"information"`

	Errors map[string]string `json:"errors,omitempty"`
}

// Aggregate runs the three views concurrently and waits for all of them.
// It never fails: a failing view is logged and replaced by its empty result.
func (s *Service) Aggregate(ctx context.Context, c extract.Content, tags []string) *Composite {
	var (
		out Composite
		mu  sync.Mutex
		g   errgroup.Group
	)
	fail := func(view string, err error) {
		s.logger().WarnContext(ctx, "aggregate branch failed", "view", view, "error", err)
		mu.Lock()
		defer mu.Unlock()
		if out.Errors == nil {
			out.Errors = make(map[string]string)
		}
		out.Errors[view] = err.Error()
	}

	g.Go(func() error {
		out.Schedule = processBranch(ctx, s, s.Schedule, c, tags, schedule.Empty, fail)
		return nil
	})
	g.Go(func() error {
		out.Knowledge = processBranch(ctx, s, s.Knowledge, c, tags, knowledge.Empty, fail)
		return nil
	})
	g.Go(func() error {
		out.Information = processBranch(ctx, s, s.Information, c, tags, information.Empty, fail)
		return nil
	})
	g.Wait()
	return &out
}

func processBranch[F, P any](ctx context.Context, s *Service, e Extractor[F, P], c extract.Content, tags []string, empty func() F, fail func(string, error)) F {
	start := time.Now()
	f, err := e.Process(ctx, c, tags)
	s.Metrics.observe(e.View(), "blocking", err, time.Since(start))
	if err != nil {
		fail(e.View(), err)
		return empty()
	}
	return f
}
