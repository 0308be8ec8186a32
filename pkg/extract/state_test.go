package extract

import (
	"encoding/json"
	"testing"
)

func TestState_Advance(t *testing.T) {
	tests := []struct {
		from, next, want State
	}{
		{Pending, Incomplete, Incomplete},
		{Incomplete, Pending, Incomplete},
		{Complete, Incomplete, Complete},
		{Pending, Complete, Complete},
		{Complete, Error, Error},
		{Error, Complete, Error},
	}
	for _, tt := range tests {
		if got := tt.from.Advance(tt.next); got != tt.want {
			t.Errorf("%v.Advance(%v) = %v, want %v", tt.from, tt.next, got, tt.want)
		}
	}
}

func TestStreamState_JSON(t *testing.T) {
	b, err := json.Marshal(StreamState[[]string]{Value: []string{"a"}, State: Incomplete})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(b) != `{"value":["a"],"state":"Incomplete"}` {
		t.Errorf("json = %s", b)
	}

	var s StreamState[string]
	if err := json.Unmarshal([]byte(`{"value":"x","state":"Complete"}`), &s); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if s.Value != "x" || s.State != Complete || !s.Done() {
		t.Errorf("state = %+v", s)
	}

	if err := json.Unmarshal([]byte(`{"value":"x","state":"Done"}`), &s); err == nil {
		t.Error("expected error for unknown state")
	}
}

func TestStreamState_NilGet(t *testing.T) {
	var s *StreamState[string]
	if s.Get() != "" || s.Done() {
		t.Error("nil StreamState should read as zero and not done")
	}
}

func TestContent(t *testing.T) {
	txt := NewText("  hello  ")
	if txt.IsImage() || txt.String() != "  hello  " || txt.Empty() {
		t.Errorf("text content = %+v", txt)
	}
	if !NewText(" \n\t").Empty() {
		t.Error("blank text should be empty")
	}

	img := NewImage("image/png", []byte{1})
	if !img.IsImage() || img.String() != "image_content" || img.Empty() {
		t.Errorf("image content = %+v", img)
	}
	if NewImageURL("https://example.com/a.png", "image/png").Empty() {
		t.Error("image with URL should not be empty")
	}
	if !NewImage("image/png", nil).Empty() {
		t.Error("image without data or URL should be empty")
	}
	if got, ok := img.Image(); !ok || got.MIMEType != "image/png" {
		t.Errorf("Image() = %+v, %v", got, ok)
	}
}
