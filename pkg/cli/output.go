package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-yaml"
	"github.com/itchyny/gojq"
)

// OutputFormat represents the output format type
type OutputFormat string

const (
	FormatYAML OutputFormat = "yaml"
	FormatJSON OutputFormat = "json"
)

// OutputOptions configures output behavior
type OutputOptions struct {
	// Format is yaml (default) or json.
	Format OutputFormat

	// Query is an optional jq expression applied before formatting. Each
	// value it yields is written as its own document.
	Query string

	// File is the output file path (empty for stdout)
	File string

	// Writer overrides File.
	Writer io.Writer
}

// Output writes the result to the configured destination
func Output(result any, opts OutputOptions) error {
	var w io.Writer = os.Stdout

	if opts.Writer != nil {
		w = opts.Writer
	} else if opts.File != "" {
		f, err := os.Create(opts.File)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	values := []any{result}
	if opts.Query != "" {
		var err error
		if values, err = Query(result, opts.Query); err != nil {
			return err
		}
	}

	for _, v := range values {
		var err error
		switch opts.Format {
		case FormatJSON:
			err = outputJSON(w, v)
		case FormatYAML, "":
			err = outputYAML(w, v)
		default:
			return fmt.Errorf("unsupported output format: %s", opts.Format)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Query runs a jq expression over the JSON form of v.
func Query(v any, expr string) ([]any, error) {
	q, err := gojq.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid jq expression %q: %w", expr, err)
	}
	// gojq only walks plain JSON values.
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var doc any
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, err
	}

	var out []any
	iter := q.Run(doc)
	for {
		r, ok := iter.Next()
		if !ok {
			break
		}
		if err, isErr := r.(error); isErr {
			return nil, fmt.Errorf("jq %q: %w", expr, err)
		}
		out = append(out, r)
	}
	return out, nil
}

func outputJSON(w io.Writer, result any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(result)
}

// outputYAML goes through JSON so that field names and embedding follow the
// json tags.
func outputYAML(w io.Writer, result any) error {
	j, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to format output: %w", err)
	}
	data, err := yaml.JSONToYAML(j)
	if err != nil {
		return fmt.Errorf("failed to format output: %w", err)
	}
	_, err = w.Write(data)
	return err
}

// PrintSuccess prints a success message with checkmark
func PrintSuccess(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "✓ "+format+"\n", args...)
}
