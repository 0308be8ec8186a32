package commands

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/MemoFlux/MemoFluxServer/cmd/memoflux/internal/config"
	"github.com/MemoFlux/MemoFluxServer/pkg/aigen"
	"github.com/MemoFlux/MemoFluxServer/pkg/enrich"
	"github.com/MemoFlux/MemoFluxServer/pkg/genx"
	"github.com/MemoFlux/MemoFluxServer/pkg/genx/generators"
	"github.com/MemoFlux/MemoFluxServer/pkg/genx/modelloader"
	"github.com/MemoFlux/MemoFluxServer/pkg/kv"
	"github.com/MemoFlux/MemoFluxServer/pkg/objects"
)

// Overrides used by tests.
var (
	testGenerator genx.Generator
	testKV        kv.Store
)

// loadGenerators registers the model files of cfg and fills in any view
// without a generator with the first registered one.
func loadGenerators(cfg *config.Config) (genx.Generator, aigen.Generators, error) {
	patterns := cfg.Generators
	if testGenerator != nil {
		return testGenerator, patterns, nil
	}

	mux := generators.NewMux()
	names, err := modelloader.LoadInto(mux, cfg.ModelsDir)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, patterns, fmt.Errorf("load models: %w", err)
	}
	if len(names) == 0 {
		return nil, patterns, fmt.Errorf("no generators registered from %q", cfg.ModelsDir)
	}
	slog.Debug("generators loaded", "dir", cfg.ModelsDir, "names", names)
	for _, p := range []*string{&patterns.Schedule, &patterns.Knowledge, &patterns.Information} {
		if *p == "" {
			*p = names[0]
		}
	}
	return mux, patterns, nil
}

func newService(cfg *config.Config, reg prometheus.Registerer) (*aigen.Service, error) {
	gen, patterns, err := loadGenerators(cfg)
	if err != nil {
		return nil, err
	}
	var m *aigen.Metrics
	if reg != nil {
		if m, err = aigen.NewMetrics(reg); err != nil {
			return nil, err
		}
	}
	return aigen.NewService(gen, patterns, m, slog.Default()), nil
}

func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// newEnricher returns nil when enrichment is not configured or its
// vocabulary cannot be embedded.
func newEnricher(ctx context.Context, cfg *config.Config) *enrich.Enricher {
	ec := cfg.Enrich
	if ec == nil || ec.APIKey == "" {
		return nil
	}
	var opts []enrich.Option
	if ec.BaseURL != "" {
		opts = append(opts, enrich.WithBaseURL(ec.BaseURL))
	}
	if ec.Model != "" {
		opts = append(opts, enrich.WithModel(ec.Model))
	}
	if ec.Task != "" {
		opts = append(opts, enrich.WithTask(ec.Task))
	}
	if ec.Dimension > 0 {
		opts = append(opts, enrich.WithDimension(ec.Dimension))
	}
	e, err := enrich.New(ctx, enrich.Config{
		Embedder: enrich.NewOpenAIEmbedder(ec.APIKey, opts...),
		TopK:     ec.TopK,
		MinScore: ec.MinScore,
	})
	if err != nil {
		slog.Warn("tag enrichment disabled", "error", err)
		return nil
	}
	return e
}

func newObjects(cfg *config.Config) *objects.Store {
	if cfg.Objects == nil || cfg.Objects.Bucket == "" {
		return nil
	}
	return objects.NewFromConfig(*cfg.Objects, slog.Default())
}

// openStore opens the configured kv store. The returned *kv.Badger is nil
// for the memory store.
func openStore(cfg *config.Config) (kv.Store, *kv.Badger, error) {
	if testKV != nil {
		return testKV, nil, nil
	}
	if cfg.Store == config.StoreMemory {
		return kv.NewMemory(nil), nil, nil
	}
	if err := os.MkdirAll(cfg.Store, 0o755); err != nil {
		return nil, nil, fmt.Errorf("create store dir: %w", err)
	}
	b, err := kv.NewBadger(kv.BadgerOptions{Dir: cfg.Store, Logger: slog.Default()})
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}
	return b, b, nil
}
