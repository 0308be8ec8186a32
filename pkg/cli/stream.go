package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/MemoFlux/MemoFluxServer/pkg/aigen"
)

// Theme defines the color scheme of rendered streams.
type Theme struct {
	Primary lipgloss.Color
	Dim     lipgloss.Color
	Error   lipgloss.Color
}

var DefaultTheme = Theme{
	Primary: lipgloss.Color("#00ff9f"),
	Dim:     lipgloss.Color("#6e7681"),
	Error:   lipgloss.Color("#ff5f5f"),
}

// Styles holds all styles derived from a theme.
type Styles struct {
	Label  lipgloss.Style
	Status lipgloss.Style
	Error  lipgloss.Style
	Body   lipgloss.Style
}

// NewStyles creates styles bound to r, so that color support is detected
// on the writer actually used.
func NewStyles(r *lipgloss.Renderer, t Theme) Styles {
	return Styles{
		Label:  r.NewStyle().Bold(true).Foreground(t.Primary).Width(13),
		Status: r.NewStyle().Bold(true).Foreground(t.Primary),
		Error:  r.NewStyle().Bold(true).Foreground(t.Error),
		Body:   r.NewStyle().Foreground(t.Dim),
	}
}

// StreamPrinter renders envelopes as one styled line each. It implements
// aigen.Sink.
type StreamPrinter struct {
	w      io.Writer
	styles Styles
	width  int
	start  time.Time
	counts map[aigen.Type]int
}

// NewStreamPrinter renders to w. Lines are cut at width runes; zero means
// 120.
func NewStreamPrinter(w io.Writer, width int) *StreamPrinter {
	if width <= 0 {
		width = 120
	}
	return &StreamPrinter{
		w:      w,
		styles: NewStyles(lipgloss.NewRenderer(w), DefaultTheme),
		width:  width,
		start:  time.Now(),
		counts: make(map[aigen.Type]int),
	}
}

func (p *StreamPrinter) Send(e aigen.Envelope) error {
	_, err := fmt.Fprintln(p.w, p.Render(e))
	return err
}

// Render formats one envelope.
func (p *StreamPrinter) Render(e aigen.Envelope) string {
	if e.Type == aigen.TypeStatus {
		switch e.Status {
		case aigen.StatusError:
			return p.styles.Error.Render("✗ " + e.Message)
		case aigen.StatusComplete:
			return p.styles.Status.Render("✓ "+e.Message) + " " +
				p.styles.Body.Render(summary(p.counts)+" in "+FormatDuration(time.Since(p.start)))
		default:
			p.start = time.Now()
			return p.styles.Status.Render("● " + e.Message)
		}
	}

	p.counts[e.Type]++
	label := p.styles.Label.Render(fmt.Sprintf("[%s]", e.Type))
	body, err := json.Marshal(e.Data)
	if err != nil {
		body = []byte(err.Error())
	}
	room := p.width - lipgloss.Width(label) - 1
	return label + " " + p.styles.Body.Render(truncateString(string(body), room))
}

func summary(counts map[aigen.Type]int) string {
	var parts []string
	for _, t := range []aigen.Type{aigen.TypeSchedule, aigen.TypeKnowledge, aigen.TypeInformation} {
		parts = append(parts, fmt.Sprintf("%s=%d", t, counts[t]))
	}
	return strings.Join(parts, " ")
}

// truncateString cuts s to at most width cells, ending with "…" when cut.
func truncateString(s string, width int) string {
	if width <= 0 {
		return ""
	}
	if lipgloss.Width(s) <= width {
		return s
	}
	runes := []rune(s)
	cur := 0
	for i, r := range runes {
		w := lipgloss.Width(string(r))
		if cur+w > width-1 {
			return string(runes[:i]) + "…"
		}
		cur += w
	}
	return s
}
