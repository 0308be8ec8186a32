package server

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/MemoFlux/MemoFluxServer/pkg/auth"
)

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// readCredentials accepts a JSON body or an OAuth2 password form.
func (s *Server) readCredentials(w http.ResponseWriter, r *http.Request) (credentials, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/x-www-form-urlencoded") {
		if err := r.ParseForm(); err != nil {
			return credentials{}, fmt.Errorf("%w: %w", errBadRequest, err)
		}
		return credentials{Username: r.PostForm.Get("username"), Password: r.PostForm.Get("password")}, nil
	}
	var c credentials
	err := decodeJSON(r.Body, &c)
	return c, err
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	c, err := s.readCredentials(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	u, err := s.deps.Auth.Register(r.Context(), c.Username, c.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"username": u.Username})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	c, err := s.readCredentials(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	tok, err := s.deps.Auth.Login(r.Context(), c.Username, c.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tok)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	u, _ := auth.UserFrom(r.Context())
	writeJSON(w, http.StatusOK, struct {
		Username  string    `json:"username"`
		CreatedAt time.Time `json:"created_at"`
	}{u.Username, u.CreatedAt})
}
