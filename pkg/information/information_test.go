package information

import (
	"context"
	"errors"
	"testing"

	"github.com/MemoFlux/MemoFluxServer/pkg/extract"
	"github.com/MemoFlux/MemoFluxServer/pkg/genx/genxtest"
)

const doc = `{"title":"Noodle shop","information_items":[{"header":"Where","content":"Near the station"},{"header":null,"content":"Open till 10pm"}],"post_type":"food_post","summary":"A good noodle shop.","tags":["food"]}`

const note = "Found a great noodle shop near the station, open till 10pm."

func TestProcess(t *testing.T) {
	gen := genxtest.New(tool.Name, doc)
	p := NewPipeline(Config{}, gen, nil)

	info, err := p.ProcessText(context.Background(), note, nil)
	if err != nil {
		t.Fatalf("ProcessText: %v", err)
	}
	if info.PostType != FoodPost {
		t.Errorf("post_type = %q, want FOOD_POST", info.PostType)
	}
	if len(info.InformationItems) != 2 || info.InformationItems[1].Content != "Open till 10pm" {
		t.Errorf("items = %+v", info.InformationItems)
	}
	if info.Category != "Found a great noodle shop near the station, ope..." {
		t.Errorf("category = %q", info.Category)
	}
}

func TestCanonicalPostType(t *testing.T) {
	tests := []struct {
		in   PostType
		want PostType
	}{
		{"LIFE_POST", LifePost},
		{"scene_post", ScenePost},
		{"", OtherPost},
		{"TRAVEL_POST", OtherPost},
	}
	for _, tt := range tests {
		if got := canonicalPostType(tt.in); got != tt.want {
			t.Errorf("canonicalPostType(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestProcess_Validation(t *testing.T) {
	gen := genxtest.New(tool.Name, doc)
	p := NewPipeline(Config{}, gen, nil)
	if _, err := p.ProcessText(context.Background(), "短", nil); !errors.Is(err, extract.ErrInputValidation) {
		t.Fatalf("err = %v, want ErrInputValidation", err)
	}
	if n := len(gen.Calls()); n != 0 {
		t.Errorf("backend called %d times", n)
	}
}

func TestProcessStream(t *testing.T) {
	gen := genxtest.New(tool.Name, `{"title":"Noodle shop","information_items":[{"header":null,"content":"x"}],"summary":"ok"}`)
	gen.ChunkSize = 5
	p := NewPipeline(Config{}, gen, nil)

	s, err := p.ProcessTextStream(context.Background(), note, nil)
	if err != nil {
		t.Fatalf("ProcessTextStream: %v", err)
	}
	defer s.Close()

	var last Partial
	n := 0
	for {
		c, err := s.Next()
		if errors.Is(err, extract.ErrDone) {
			break
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if err := checker.Check(c); err != nil {
			t.Fatalf("chunk %d: %v", n, err)
		}
		last = c
		n++
	}
	if !last.Title.Done() || !last.InformationItems.Done() || !last.Summary.Done() {
		t.Fatalf("last chunk not terminal: %+v", last)
	}
	if last.PostType == nil || *last.PostType != OtherPost {
		t.Errorf("post_type = %v, want OTHER_POST", last.PostType)
	}
	if last.Tags == nil || len(last.Tags) != 0 {
		t.Errorf("tags = %#v, want empty", last.Tags)
	}
	if items := last.InformationItems.Value; len(items) != 1 || items[0].Content != "x" {
		t.Errorf("items = %+v", items)
	}
}

func TestProcessStream_FinalMatchesProcess(t *testing.T) {
	doc := `{"title":"Noodle shop","information_items":[{"header":"Where","content":"Near the station"}],"post_type":"travel_post","summary":"Good.","tags":["food"]}`
	gen := genxtest.New(tool.Name, doc)
	gen.ChunkSize = 6
	p := NewPipeline(Config{}, gen, nil)

	want, err := p.ProcessText(context.Background(), note, nil)
	if err != nil {
		t.Fatalf("ProcessText: %v", err)
	}
	s, err := p.ProcessTextStream(context.Background(), note, nil)
	if err != nil {
		t.Fatalf("ProcessTextStream: %v", err)
	}
	defer s.Close()
	var last Partial
	for {
		c, err := s.Next()
		if errors.Is(err, extract.ErrDone) {
			break
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		last = c
	}

	if last.PostType == nil || *last.PostType != want.PostType || want.PostType != OtherPost {
		t.Errorf("post_type = %v, blocking %q, want OTHER_POST for both", last.PostType, want.PostType)
	}
	if last.Title.Get() != want.Title || last.Summary.Get() != want.Summary {
		t.Errorf("title/summary = %q/%q, want %q/%q", last.Title.Get(), last.Summary.Get(), want.Title, want.Summary)
	}
	if items := last.InformationItems.Get(); len(items) != 1 || items[0] != want.InformationItems[0] {
		t.Errorf("items = %+v, want %+v", items, want.InformationItems)
	}
	if len(last.Tags) != 1 || last.Tags[0] != "food" {
		t.Errorf("tags = %#v", last.Tags)
	}
	if last.Category != want.Category {
		t.Errorf("category = %q, want %q", last.Category, want.Category)
	}
}
