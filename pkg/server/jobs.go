package server

import (
	"net/http"

	"github.com/MemoFlux/MemoFluxServer/pkg/aigen"
	"github.com/MemoFlux/MemoFluxServer/pkg/auth"
	"github.com/MemoFlux/MemoFluxServer/pkg/jobs"
)

type jobStatus struct {
	Done   bool             `json:"done"`
	Result *aigen.Composite `json:"result,omitempty"`
}

func requester(r *http.Request) string {
	if u, ok := auth.UserFrom(r.Context()); ok {
		return u.Username
	}
	return r.RemoteAddr
}

func (s *Server) handleSubmitJob(w http.ResponseWriter, r *http.Request) {
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
	v, err := s.deps.Jobs.Submit(r.Context(), jobs.Request{
		Requester: requester(r),
		Content:   c,
		Tags:      tags,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"voucher": string(v)})
}

func (s *Server) handleJobResult(w http.ResponseWriter, r *http.Request) {
	v := jobs.Voucher(r.PathValue("voucher"))
	done, err := s.deps.Jobs.Status(r.Context(), v)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	st := jobStatus{Done: done}
	if done {
		if st.Result, err = s.deps.Jobs.Result(r.Context(), v); err != nil {
			s.writeError(w, r, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleReleaseJob(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Jobs.Release(r.Context(), jobs.Voucher(r.PathValue("voucher"))); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
