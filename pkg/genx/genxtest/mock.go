// Package genxtest provides a scripted [genx.Generator] for tests.
package genxtest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/MemoFlux/MemoFluxServer/pkg/genx"
)

var _ genx.Generator = (*Mock)(nil)

// Call records one request seen by a Mock.
type Call struct {
	Pattern string
	Tool    string
	Stream  bool
	Context genx.ModelContext
}

// Mock answers every request for a tool with a fixed JSON document. Streams
// deliver the document in pieces of ChunkSize bytes.
type Mock struct {
	// Docs maps a tool name to the document returned for it.
	Docs map[string]string

	// Errs maps a tool name to the error returned for it.
	Errs map[string]error

	ChunkSize int

	mu    sync.Mutex
	calls []Call
}

// New returns a mock answering tool with doc.
func New(tool, doc string) *Mock {
	return &Mock{Docs: map[string]string{tool: doc}}
}

func (m *Mock) Invoke(ctx context.Context, pattern string, mctx genx.ModelContext, fn *genx.FuncTool) (genx.Usage, *genx.FuncCall, error) {
	doc, err := m.lookup(pattern, mctx, fn, false)
	if err != nil {
		return genx.Usage{}, nil, err
	}
	return genx.Usage{GeneratedTokenCount: int64(len(doc))}, fn.NewFuncCall(doc), nil
}

func (m *Mock) InvokeStream(ctx context.Context, pattern string, mctx genx.ModelContext, fn *genx.FuncTool) (genx.Stream, error) {
	doc, err := m.lookup(pattern, mctx, fn, true)
	if err != nil {
		return nil, err
	}
	size := m.ChunkSize
	if size <= 0 {
		size = 16
	}
	sb := genx.NewStreamBuilder(4)
	go func() {
		for i := 0; i < len(doc); i += size {
			end := min(i+size, len(doc))
			if err := sb.Add(&genx.MessageChunk{Role: genx.RoleModel, Part: genx.Text(doc[i:end])}); err != nil {
				return
			}
			select {
			case <-ctx.Done():
				sb.Abort(ctx.Err())
				return
			default:
			}
		}
		sb.Done(genx.Usage{GeneratedTokenCount: int64(len(doc))})
	}()
	return sb.Stream(), nil
}

func (m *Mock) lookup(pattern string, mctx genx.ModelContext, fn *genx.FuncTool, stream bool) (string, error) {
	if fn == nil {
		return "", errors.New("genxtest: function tool is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Pattern: pattern, Tool: fn.Name, Stream: stream, Context: mctx})
	if err := m.Errs[fn.Name]; err != nil {
		return "", err
	}
	doc, ok := m.Docs[fn.Name]
	if !ok {
		return "", fmt.Errorf("genxtest: no document for tool %q", fn.Name)
	}
	return doc, nil
}

// Calls returns the requests seen so far.
func (m *Mock) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Call(nil), m.calls...)
}
