package schedule

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/MemoFlux/MemoFluxServer/pkg/extract"
	"github.com/MemoFlux/MemoFluxServer/pkg/genx/genxtest"
)

const doc = `{
  "title": "Weekly sync",
  "category": "work",
  "tasks": [
    {"start_time": "2025-06-10T10:00:00+08:00", "end_time": "2025-06-10T11:00:00+08:00", "people": ["Li"], "theme": "sync", "core_tasks": ["review"], "position": null, "tags": [], "category": "meeting", "suggested_actions": null},
    {"start_time": "", "end_time": "", "people": [], "theme": "report", "core_tasks": [], "position": [], "tags": [], "category": "", "suggested_actions": []}
  ]
}`

const note = "Tomorrow 10am weekly sync with Li, then write the report."

func fixedNow() time.Time {
	return time.Date(2025, 6, 9, 2, 0, 0, 0, time.UTC)
}

func TestProcess(t *testing.T) {
	gen := genxtest.New(tool.Name, doc)
	p := NewPipeline(Config{Generator: "sched", Now: fixedNow}, gen, nil)

	s, err := p.ProcessText(context.Background(), note, []string{"ignored"})
	if err != nil {
		t.Fatalf("ProcessText: %v", err)
	}
	if s.Title != "Weekly sync" || s.Category != "work" || s.Text != note {
		t.Errorf("schedule = %+v", s)
	}
	if len(s.Tasks) != 2 {
		t.Fatalf("len(tasks) = %d, want 2", len(s.Tasks))
	}
	for i, task := range s.Tasks {
		if task.ID != i {
			t.Errorf("tasks[%d].id = %d", i, task.ID)
		}
	}
	if s.Tasks[0].Position == nil || s.Tasks[0].SuggestedActions == nil {
		t.Errorf("task lists must not be nil: %+v", s.Tasks[0])
	}
	if len(s.ID) != 36 {
		t.Errorf("id = %q, want a uuid", s.ID)
	}

	calls := gen.Calls()
	if len(calls) != 1 {
		t.Fatalf("calls = %d", len(calls))
	}
	var prompts []string
	for p := range calls[0].Context.Prompts() {
		prompts = append(prompts, p.Text)
	}
	all := strings.Join(prompts, "\n")
	if !strings.Contains(all, "2025-06-09 (Monday") {
		t.Errorf("prompt misses today's date: %q", all)
	}
	if strings.Contains(all, "ignored") {
		t.Error("schedule prompt must not include request tags")
	}
}

func TestProcess_OnlyIDDiffers(t *testing.T) {
	p := NewPipeline(Config{Now: fixedNow}, genxtest.New(tool.Name, doc), nil)
	a, err := p.ProcessText(context.Background(), note, nil)
	if err != nil {
		t.Fatal(err)
	}
	b, err := p.ProcessText(context.Background(), note, nil)
	if err != nil {
		t.Fatal(err)
	}
	if a.ID == b.ID {
		t.Error("each conversion needs a fresh id")
	}
	a.ID, b.ID = "", ""
	ja, _ := json.Marshal(a)
	jb, _ := json.Marshal(b)
	if string(ja) != string(jb) {
		t.Errorf("results differ:\n%s\n%s", ja, jb)
	}
}

func TestProcess_Image(t *testing.T) {
	gen := genxtest.New(tool.Name, `{"title":"t","category":"c","tasks":null}`)
	p := NewPipeline(Config{Now: fixedNow}, gen, nil)
	s, err := p.ProcessImage(context.Background(), extract.Image{MIMEType: "image/png", Data: []byte{0x89, 'P', 'N', 'G'}}, nil)
	if err != nil {
		t.Fatalf("ProcessImage: %v", err)
	}
	if s.Text != "image_content" {
		t.Errorf("text = %q", s.Text)
	}
	if s.Tasks == nil || len(s.Tasks) != 0 {
		t.Errorf("tasks = %#v, want empty", s.Tasks)
	}
}

func TestProcessStream(t *testing.T) {
	gen := genxtest.New(tool.Name, doc)
	gen.ChunkSize = 11
	p := NewPipeline(Config{Now: fixedNow}, gen, nil)

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
	if !last.Title.Done() || !last.Tasks.Done() {
		t.Fatalf("last chunk not terminal: %+v", last)
	}
	for i, d := range last.Tasks.Value {
		if d.People == nil || d.Position == nil || d.SuggestedActions == nil {
			t.Errorf("tasks[%d] has a null list: %+v", i, d)
		}
	}
	if got := last.Tasks.Value; len(got) != 2 || got[0].Theme != "sync" {
		t.Errorf("tasks = %+v", got)
	}
	for i, d := range last.Tasks.Value {
		if d.ID == nil || *d.ID != i {
			t.Errorf("tasks[%d].id = %v, want %d", i, d.ID, i)
		}
	}
	if last.Text != note {
		t.Errorf("text = %q, want the original note", last.Text)
	}
}
