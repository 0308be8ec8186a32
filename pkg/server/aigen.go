package server

import (
	"net/http"

	"github.com/MemoFlux/MemoFluxServer/pkg/aigen"
)

func (s *Server) handleAigen(w http.ResponseWriter, r *http.Request) {
	req, err := s.readRequest(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	c, tags, err := s.prepare(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Service.Aggregate(r.Context(), c, tags))
}

func (s *Server) handleStreaming(w http.ResponseWriter, r *http.Request) {
	req, err := s.readRequest(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	c, tags, err := s.prepare(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	sse := aigen.NewSSEWriter(w)
	if err := s.deps.Service.Stream(r.Context(), c, tags, sse); err != nil {
		s.logger.WarnContext(r.Context(), "stream ended early", "error", err)
	}
}
