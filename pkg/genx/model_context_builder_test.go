package genx

import (
	"slices"
	"strings"
	"testing"
)

func TestModelContextBuilder_MergesPrompts(t *testing.T) {
	var mcb ModelContextBuilder
	mcb.PromptText("system", "a")
	mcb.PromptText("system", "b")
	mcb.PromptText("format", "c")

	prompts := slices.Collect(mcb.Build().Prompts())
	if len(prompts) != 2 {
		t.Fatalf("len(prompts) = %d, want 2", len(prompts))
	}
	if prompts[0].Text != "a\nb" {
		t.Errorf("merged prompt = %q", prompts[0].Text)
	}
}

func TestModelContextBuilder_MergesUserTurn(t *testing.T) {
	var mcb ModelContextBuilder
	mcb.UserText("", "describe this")
	mcb.UserBlob("", "image/png", []byte{1, 2})
	mcb.UserImageURL("", "https://example.com/a.png", "image/png")

	msgs := slices.Collect(mcb.Build().Messages())
	if len(msgs) != 1 {
		t.Fatalf("len(msgs) = %d, want 1", len(msgs))
	}
	if n := len(msgs[0].Contents); n != 3 {
		t.Fatalf("len(contents) = %d, want 3", n)
	}
	if _, ok := msgs[0].Contents[1].(*Blob); !ok {
		t.Errorf("contents[1] = %T, want *Blob", msgs[0].Contents[1])
	}
}

func TestModelContextBuilder_Prompt(t *testing.T) {
	var mcb ModelContextBuilder
	if err := mcb.Prompt("ctx", "tags", []string{"work"}); err != nil {
		t.Fatalf("Prompt: %v", err)
	}
	prompts := slices.Collect(mcb.Build().Prompts())
	if len(prompts) != 1 || !strings.Contains(prompts[0].Text, "- work") {
		t.Errorf("prompts = %+v", prompts)
	}
}
