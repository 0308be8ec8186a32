package knowledge

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/MemoFlux/MemoFluxServer/pkg/extract"
	"github.com/MemoFlux/MemoFluxServer/pkg/genx"
	"github.com/MemoFlux/MemoFluxServer/pkg/genx/genxtest"
)

const doc = `{
  "title": "Go concurrency",
  "knowledge_items": [
    {"id": 1, "header": "Goroutines", "content": "lightweight threads", "node": null},
    {"id": 0, "header": "Channels", "content": "typed pipes", "node": {"target_id": 1, "relationship": "sibling"}},
    {"id": 3, "header": "Select", "content": "waits on channels", "node": {"target_id": 2, "relationship": "PARENT"}}
  ],
  "related_items": ["context"],
  "tags": null
}`

const note = "Go   has goroutines\nand channels for concurrency, plus select."

func TestProcess(t *testing.T) {
	gen := genxtest.New(tool.Name, doc)
	p := NewPipeline(Config{Generator: "test/model"}, gen, nil)

	k, err := p.ProcessText(context.Background(), note, []string{"go"})
	if err != nil {
		t.Fatalf("ProcessText: %v", err)
	}
	if k.Title != "Go concurrency" {
		t.Errorf("title = %q", k.Title)
	}
	if len(k.KnowledgeItems) != 3 {
		t.Fatalf("len(items) = %d, want 3", len(k.KnowledgeItems))
	}
	if got := k.KnowledgeItems[1].ID; got != 2 {
		t.Errorf("items[1].id = %d, want 2", got)
	}
	if n := k.KnowledgeItems[0].Node; n != nil {
		t.Errorf("items[0].node = %+v, want nil", n)
	}
	if got := k.KnowledgeItems[1].Node.Relationship; got != Child {
		t.Errorf("items[1].relationship = %q, want CHILD", got)
	}
	if got := k.KnowledgeItems[2].Node.Relationship; got != Parent {
		t.Errorf("items[2].relationship = %q, want PARENT", got)
	}
	if k.Tags == nil || len(k.Tags) != 0 {
		t.Errorf("tags = %#v, want empty", k.Tags)
	}
	if k.Category != note {
		t.Errorf("category = %q, want the original text", k.Category)
	}

	calls := gen.Calls()
	if len(calls) != 1 || calls[0].Pattern != "test/model" || calls[0].Stream {
		t.Fatalf("calls = %+v", calls)
	}
	var user string
	for msg := range calls[0].Context.Messages() {
		for _, c := range msg.Contents {
			if t, ok := c.(genx.Text); ok {
				user += string(t)
			}
		}
	}
	if strings.Contains(user, "\n") || strings.Contains(user, "  ") {
		t.Errorf("user text not collapsed: %q", user)
	}
}

func TestProcess_Category(t *testing.T) {
	long := strings.Repeat("知", 60)
	k, err := New(Config{}, nil).Convert(&Output{}, extract.NewText(long), nil)
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if got := []rune(k.Category); len(got) != 50 || !strings.HasSuffix(k.Category, "...") {
		t.Errorf("category = %q", k.Category)
	}
	if k.KnowledgeItems == nil || k.RelatedItems == nil {
		t.Error("collections must not be nil")
	}

	k, err = New(Config{}, nil).Convert(&Output{}, extract.NewImage("image/png", []byte{1}), nil)
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if k.Category != "image_content" {
		t.Errorf("image category = %q", k.Category)
	}
}

func TestProcess_Validation(t *testing.T) {
	gen := genxtest.New(tool.Name, doc)
	p := NewPipeline(Config{}, gen, nil)

	if _, err := p.ProcessText(context.Background(), " 短 ", nil); !errors.Is(err, extract.ErrInputValidation) {
		t.Fatalf("err = %v, want ErrInputValidation", err)
	}
	if _, err := p.ProcessTextStream(context.Background(), "短", nil); !errors.Is(err, extract.ErrInputValidation) {
		t.Fatalf("stream err = %v, want ErrInputValidation", err)
	}
	if n := len(gen.Calls()); n != 0 {
		t.Errorf("backend called %d times", n)
	}
}

func TestProcess_BackendError(t *testing.T) {
	gen := genxtest.New(tool.Name, doc)
	gen.Errs = map[string]error{tool.Name: errors.New("quota")}
	p := NewPipeline(Config{}, gen, nil)
	if _, err := p.ProcessText(context.Background(), note, nil); !errors.Is(err, extract.ErrBackend) {
		t.Fatalf("err = %v, want ErrBackend", err)
	}
}

func TestProcessStream(t *testing.T) {
	gen := genxtest.New(tool.Name, doc)
	gen.ChunkSize = 7
	p := NewPipeline(Config{}, gen, nil)

	s, err := p.ProcessTextStream(context.Background(), note, nil)
	if err != nil {
		t.Fatalf("ProcessTextStream: %v", err)
	}
	defer s.Close()

	var chunks []Partial
	for {
		c, err := s.Next()
		if errors.Is(err, extract.ErrDone) {
			break
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		chunks = append(chunks, c)
	}
	if len(chunks) < 2 {
		t.Fatalf("len(chunks) = %d, want several", len(chunks))
	}

	var prev extract.State
	for i, c := range chunks {
		if c.Title == nil {
			continue
		}
		if c.Title.State < prev {
			t.Errorf("chunk %d: title state went back to %v", i, c.Title.State)
		}
		prev = c.Title.State
	}

	last := chunks[len(chunks)-1]
	if !last.Title.Done() || last.Title.Value != "Go concurrency" {
		t.Errorf("last title = %+v", last.Title)
	}
	if last.KnowledgeItems == nil || !last.KnowledgeItems.Done() {
		t.Fatalf("last items = %+v", last.KnowledgeItems)
	}
	items := last.KnowledgeItems.Value
	if len(items) != 3 || items[0].ID != 1 || items[0].Node != nil {
		t.Errorf("last items = %+v", items)
	}
	if last.Tags == nil || len(last.Tags) != 0 {
		t.Errorf("last tags = %#v, want empty", last.Tags)
	}
}

func TestCheckChunk(t *testing.T) {
	p := New(Config{}, nil)
	ok := Partial{
		Title:          &extract.StreamState[string]{Value: "a", State: extract.Incomplete},
		KnowledgeItems: &extract.StreamState[[]Item]{Value: []Item{{ID: 1}}, State: extract.Pending},
	}
	if err := p.CheckChunk(ok); err != nil {
		t.Errorf("CheckChunk(valid) = %v", err)
	}
	if err := p.CheckChunk(Partial{}); err != nil {
		t.Errorf("CheckChunk(empty) = %v", err)
	}
}

func lastChunk(t *testing.T, s extract.ChunkStream[Partial]) Partial {
	t.Helper()
	defer s.Close()
	var last Partial
	for {
		c, err := s.Next()
		if errors.Is(err, extract.ErrDone) {
			return last
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		last = c
	}
}

func TestProcessStream_FinalMatchesProcess(t *testing.T) {
	gen := genxtest.New(tool.Name, doc)
	gen.ChunkSize = 9
	p := NewPipeline(Config{}, gen, nil)

	want, err := p.ProcessText(context.Background(), note, nil)
	if err != nil {
		t.Fatalf("ProcessText: %v", err)
	}
	s, err := p.ProcessTextStream(context.Background(), note, nil)
	if err != nil {
		t.Fatalf("ProcessTextStream: %v", err)
	}
	last := lastChunk(t, s)

	if !last.Title.Done() || last.Title.Value != want.Title {
		t.Errorf("title = %+v, want %q", last.Title, want.Title)
	}
	if last.KnowledgeItems == nil {
		t.Fatal("last chunk has no knowledge_items")
	}
	got := last.KnowledgeItems.Value
	if len(got) != len(want.KnowledgeItems) {
		t.Fatalf("len(items) = %d, want %d", len(got), len(want.KnowledgeItems))
	}
	for i := range got {
		if !reflect.DeepEqual(got[i], want.KnowledgeItems[i]) {
			t.Errorf("items[%d] = %+v (node %+v), want %+v (node %+v)",
				i, got[i], got[i].Node, want.KnowledgeItems[i], want.KnowledgeItems[i].Node)
		}
	}
	if !reflect.DeepEqual(last.RelatedItems, want.RelatedItems) {
		t.Errorf("related_items = %#v, want %#v", last.RelatedItems, want.RelatedItems)
	}
	if !reflect.DeepEqual(last.Tags, want.Tags) {
		t.Errorf("tags = %#v, want %#v", last.Tags, want.Tags)
	}
	if last.Category != want.Category {
		t.Errorf("category = %q, want %q", last.Category, want.Category)
	}
}

func TestCheckChunk_Relationship(t *testing.T) {
	p := New(Config{}, nil)
	chunk := func(rel Relationship) Partial {
		return Partial{KnowledgeItems: &extract.StreamState[[]Item]{
			Value: []Item{{ID: 1, Node: &Node{TargetID: 1, Relationship: rel}}},
			State: extract.Incomplete,
		}}
	}
	for _, rel := range []Relationship{"PARENT", "CHILD", "CH", "par", ""} {
		if err := p.CheckChunk(chunk(rel)); err != nil {
			t.Errorf("CheckChunk(%q) = %v", rel, err)
		}
	}
	if err := p.CheckChunk(chunk("sibling")); !errors.Is(err, extract.ErrChunkValidation) {
		t.Errorf("CheckChunk(sibling) = %v, want ErrChunkValidation", err)
	}
}
