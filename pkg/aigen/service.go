package aigen

import (
	"context"
	"log/slog"

	"github.com/MemoFlux/MemoFluxServer/pkg/extract"
	"github.com/MemoFlux/MemoFluxServer/pkg/genx"
	"github.com/MemoFlux/MemoFluxServer/pkg/information"
	"github.com/MemoFlux/MemoFluxServer/pkg/knowledge"
	"github.com/MemoFlux/MemoFluxServer/pkg/schedule"
)

// Extractor is one view as seen by the service. *extract.Pipeline
// implements it.
type Extractor[F, P any] interface {
	View() string
	Process(ctx context.Context, c extract.Content, tags []string) (F, error)
	ProcessStream(ctx context.Context, c extract.Content, tags []string) (extract.ChunkStream[P], error)
}

// Service runs the three views. The zero Logger means slog.Default() and a
// nil Metrics records nothing.
type Service struct {
	Schedule    Extractor[*schedule.Schedule, schedule.Partial]
	Knowledge   Extractor[*knowledge.Knowledge, knowledge.Partial]
	Information Extractor[*information.Information, information.Partial]

	Metrics *Metrics
	Logger  *slog.Logger
}

// Generators names the generator pattern of each view.
type Generators struct {
	Schedule    string `json:"schedule" yaml:"schedule"`
	Knowledge   string `json:"knowledge" yaml:"knowledge"`
	Information string `json:"information" yaml:"information"`
}

// NewService builds the three view pipelines over gen.
func NewService(gen genx.Generator, patterns Generators, m *Metrics, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		Schedule:    schedule.NewPipeline(schedule.Config{Generator: patterns.Schedule}, gen, logger),
		Knowledge:   knowledge.NewPipeline(knowledge.Config{Generator: patterns.Knowledge}, gen, logger),
		Information: information.NewPipeline(information.Config{Generator: patterns.Information}, gen, logger),
		Metrics:     m,
		Logger:      logger,
	}
}

func (s *Service) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}
