package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/MemoFlux/MemoFluxServer/pkg/extract"
	"github.com/MemoFlux/MemoFluxServer/pkg/objects"
)

// flexBool accepts a JSON boolean or the integers 0 and 1.
type flexBool bool

func (b *flexBool) UnmarshalJSON(data []byte) error {
	switch string(bytes.TrimSpace(data)) {
	case "true", "1":
		*b = true
	case "false", "0", "null":
		*b = false
	default:
		return fmt.Errorf("isImage: expected boolean or 0/1, got %s", data)
	}
	return nil
}

type aigenRequest struct {
	Tags    []string `json:"tags"`
	Content string   `json:"content"`
	IsImage flexBool `json:"isImage"`
}

func decodeJSON(r io.Reader, v any) error {
	dec := json.NewDecoder(r)
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %w", errBadRequest, err)
	}
	return nil
}

func (s *Server) readRequest(w http.ResponseWriter, r *http.Request) (aigenRequest, error) {
	var req aigenRequest
	err := decodeJSON(http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes), &req)
	return req, err
}

// prepare builds the content of req and its enriched tags.
func (s *Server) prepare(ctx context.Context, req aigenRequest) (extract.Content, []string, error) {
	var c extract.Content
	if req.IsImage {
		img, err := objects.DecodeImage(req.Content)
		if err != nil {
			return c, nil, err
		}
		c = extract.NewImage(img.MIMEType, img.Data)
		if s.deps.Objects != nil {
			url, err := s.deps.Objects.Publish(ctx, img)
			if err != nil {
				return c, nil, err
			}
			c = extract.NewImageURL(url, img.MIMEType)
		}
	} else {
		c = extract.NewText(req.Content)
	}

	tags := cleanTags(req.Tags)
	if s.deps.Enricher != nil {
		tags = s.deps.Enricher.Augment(ctx, c, tags)
	}
	return c, tags, nil
}

func cleanTags(in []string) []string {
	out := make([]string, 0, len(in))
	for _, t := range in {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}
