package genx

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// unmarshalJSON unmarshals JSON data into v, attempting to repair malformed JSON.
// If the initial unmarshal fails with a syntax error, it tries to repair the JSON
// using jsonrepair before retrying.
func unmarshalJSON(data []byte, v any) error {
	err := json.Unmarshal(data, v)
	if err == nil {
		return nil
	}
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		fixed, rerr := RepairJSON(string(data))
		if rerr != nil {
			return err
		}
		return json.Unmarshal([]byte(fixed), v)
	}
	return err
}

// RepairJSON turns a truncated or slightly malformed JSON document into a
// valid one. Markdown code fences around the document are removed first.
func RepairJSON(s string) (string, error) {
	return jsonrepair.JSONRepair(StripCodeFence(s))
}

// StripCodeFence removes a leading ```json (or ```) fence and a trailing ```
// fence. The closing fence may be missing while a stream is in flight.
func StripCodeFence(s string) string {
	t := strings.TrimSpace(s)
	if !strings.HasPrefix(t, "```") {
		return s
	}
	t = strings.TrimPrefix(t, "```")
	if i := strings.IndexByte(t, '\n'); i >= 0 {
		t = t[i+1:]
	} else {
		// Only the fence header has arrived so far.
		return ""
	}
	t = strings.TrimSpace(t)
	t = strings.TrimSuffix(t, "```")
	return t
}
