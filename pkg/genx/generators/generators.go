// Package generators routes genx.Generator calls by model name.
package generators

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/MemoFlux/MemoFluxServer/pkg/genx"
)

var _ genx.Generator = (*Mux)(nil)

// DefaultMux is the default generator multiplexer.
var DefaultMux = NewMux()

// Handle registers a generator for the given pattern to the default mux.
func Handle(pattern string, gen genx.Generator) error {
	return DefaultMux.Handle(pattern, gen)
}

// InvokeStream streams a function tool document using the default mux.
func InvokeStream(ctx context.Context, pattern string, mctx genx.ModelContext, fn *genx.FuncTool) (genx.Stream, error) {
	return DefaultMux.InvokeStream(ctx, pattern, mctx, fn)
}

// Invoke invokes a function tool using the default mux.
func Invoke(ctx context.Context, pattern string, mctx genx.ModelContext, fn *genx.FuncTool) (genx.Usage, *genx.FuncCall, error) {
	return DefaultMux.Invoke(ctx, pattern, mctx, fn)
}

// Mux is a generator multiplexer keyed by exact model name, such as
// "openai/gpt-4o-mini".
type Mux struct {
	mu   sync.RWMutex
	gens map[string]genx.Generator
}

func NewMux() *Mux {
	return &Mux{gens: make(map[string]genx.Generator)}
}

// Handle registers a generator for the given pattern.
// Returns an error if a generator is already registered for the pattern.
func (gm *Mux) Handle(name string, gen genx.Generator) error {
	if gen == nil {
		return fmt.Errorf("nil generator for %s", name)
	}
	gm.mu.Lock()
	defer gm.mu.Unlock()
	if _, ok := gm.gens[name]; ok {
		return fmt.Errorf("generator already registered for %s", name)
	}
	gm.gens[name] = gen
	return nil
}

// Names returns the registered patterns in sorted order.
func (gm *Mux) Names() []string {
	gm.mu.RLock()
	defer gm.mu.RUnlock()
	names := make([]string, 0, len(gm.gens))
	for k := range gm.gens {
		names = append(names, k)
	}
	slices.Sort(names)
	return names
}

func (gm *Mux) InvokeStream(ctx context.Context, name string, mctx genx.ModelContext, tool *genx.FuncTool) (genx.Stream, error) {
	gen, err := gm.get(name)
	if err != nil {
		return nil, err
	}
	return gen.InvokeStream(ctx, name, mctx, tool)
}

func (gm *Mux) Invoke(ctx context.Context, name string, mctx genx.ModelContext, tool *genx.FuncTool) (genx.Usage, *genx.FuncCall, error) {
	gen, err := gm.get(name)
	if err != nil {
		return genx.Usage{}, nil, err
	}
	return gen.Invoke(ctx, name, mctx, tool)
}

func (gm *Mux) get(pattern string) (genx.Generator, error) {
	gm.mu.RLock()
	gen, ok := gm.gens[pattern]
	gm.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("generator not found for %s", pattern)
	}
	return gen, nil
}
