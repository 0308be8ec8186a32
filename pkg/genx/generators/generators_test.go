package generators

import (
	"context"
	"slices"
	"testing"

	"github.com/MemoFlux/MemoFluxServer/pkg/genx"
)

type mockGenerator struct {
	name string
}

func (m *mockGenerator) InvokeStream(ctx context.Context, model string, mctx genx.ModelContext, tool *genx.FuncTool) (genx.Stream, error) {
	return genx.NewStreamBuilder(1).Stream(), nil
}

func (m *mockGenerator) Invoke(ctx context.Context, model string, mctx genx.ModelContext, tool *genx.FuncTool) (genx.Usage, *genx.FuncCall, error) {
	return genx.Usage{}, &genx.FuncCall{Name: m.name, Arguments: model}, nil
}

func TestMux_Handle(t *testing.T) {
	mux := NewMux()
	gen := &mockGenerator{name: "test"}

	if err := mux.Handle("openai/gpt-4o", gen); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if err := mux.Handle("openai/gpt-4o", gen); err == nil {
		t.Error("Handle() expected error for duplicate registration")
	}
	if err := mux.Handle("gemini/flash", gen); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if err := mux.Handle("nil", nil); err == nil {
		t.Error("Handle() expected error for nil generator")
	}
	if got := mux.Names(); !slices.Equal(got, []string{"gemini/flash", "openai/gpt-4o"}) {
		t.Errorf("Names() = %v", got)
	}
}

func TestMux_Invoke(t *testing.T) {
	mux := NewMux()
	if err := mux.Handle("openai/gpt-4o", &mockGenerator{name: "test"}); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	ctx := context.Background()

	_, call, err := mux.Invoke(ctx, "openai/gpt-4o", nil, nil)
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	if call.Name != "test" || call.Arguments != "openai/gpt-4o" {
		t.Errorf("Invoke() = %+v", call)
	}

	if _, _, err := mux.Invoke(ctx, "openai/gpt-4", nil, nil); err == nil {
		t.Error("Invoke() expected error for unregistered pattern")
	}
}

func TestMux_InvokeStream(t *testing.T) {
	mux := NewMux()
	if err := mux.Handle("m", &mockGenerator{}); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	s, err := mux.InvokeStream(context.Background(), "m", nil, nil)
	if err != nil || s == nil {
		t.Fatalf("InvokeStream() = %v, %v", s, err)
	}
	if _, err := mux.InvokeStream(context.Background(), "missing", nil, nil); err == nil {
		t.Error("InvokeStream() expected error for unregistered pattern")
	}
}
