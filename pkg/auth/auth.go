// Package auth registers users and issues opaque bearer tokens stored in a
// kv.Store.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/MemoFlux/MemoFluxServer/pkg/kv"
)

var (
	ErrUserExists         = errors.New("auth: username already exists")
	ErrInvalidUsername    = errors.New("auth: username must be 3-32 characters of letters, digits, '_', '.' or '-'")
	ErrWeakPassword       = errors.New("auth: password must be at least 6 characters")
	ErrInvalidCredentials = errors.New("auth: invalid username or password")
	ErrInvalidToken       = errors.New("auth: invalid or expired token")
)

// DefaultTokenTTL is how long an issued token stays valid.
const DefaultTokenTTL = time.Hour

var usernameRE = regexp.MustCompile(`^[A-Za-z0-9_.-]{3,32}$`)

type User struct {
	Username     string    `json:"username"`
	PasswordHash []byte    `json:"password_hash"`
	CreatedAt    time.Time `json:"created_at"`
}

// Token is an issued bearer token.
type Token struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

type session struct {
	Username  string    `json:"username"`
	ExpiresAt time.Time `json:"expires_at"`
}

type Config struct {
	// TokenTTL defaults to DefaultTokenTTL.
	TokenTTL time.Duration

	// Now defaults to time.Now.
	Now func() time.Time

	Logger *slog.Logger
}

// Service manages users and sessions.
type Service struct {
	store  kv.Store
	ttl    time.Duration
	now    func() time.Time
	logger *slog.Logger

	registerMu sync.Mutex
}

func New(store kv.Store, cfg Config) *Service {
	s := &Service{
		store:  store,
		ttl:    cfg.TokenTTL,
		now:    cfg.Now,
		logger: cfg.Logger,
	}
	if s.ttl <= 0 {
		s.ttl = DefaultTokenTTL
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

func userKey(name string) kv.Key   { return kv.Key{"user", name} }
func tokenKey(token string) kv.Key { return kv.Key{"token", token} }

// Register creates a user with a bcrypt password hash.
func (s *Service) Register(ctx context.Context, username, password string) (*User, error) {
	if !usernameRE.MatchString(username) {
		return nil, ErrInvalidUsername
	}
	if len(password) < 6 {
		return nil, ErrWeakPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("auth: hash password: %w", err)
	}

	s.registerMu.Lock()
	defer s.registerMu.Unlock()
	if _, err := s.store.Get(ctx, userKey(username)); err == nil {
		return nil, ErrUserExists
	} else if !errors.Is(err, kv.ErrNotFound) {
		return nil, err
	}
	u := &User{Username: username, PasswordHash: hash, CreatedAt: s.now().UTC()}
	data, err := json.Marshal(u)
	if err != nil {
		return nil, err
	}
	if err := s.store.Set(ctx, userKey(username), data); err != nil {
		return nil, fmt.Errorf("auth: store user: %w", err)
	}
	s.logger.InfoContext(ctx, "user registered", "username", username)
	return u, nil
}

// User returns the stored user.
func (s *Service) User(ctx context.Context, username string) (*User, error) {
	data, err := s.store.Get(ctx, userKey(username))
	if err != nil {
		return nil, err
	}
	var u User
	if err := json.Unmarshal(data, &u); err != nil {
		return nil, fmt.Errorf("auth: decode user %s: %w", username, err)
	}
	return &u, nil
}

// Login checks the credentials and issues a token.
func (s *Service) Login(ctx context.Context, username, password string) (*Token, error) {
	u, err := s.User(ctx, username)
	if errors.Is(err, kv.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}

	var raw [32]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return nil, fmt.Errorf("auth: generate token: %w", err)
	}
	tok := &Token{
		AccessToken: base64.RawURLEncoding.EncodeToString(raw[:]),
		TokenType:   "bearer",
		ExpiresAt:   s.now().Add(s.ttl).UTC(),
	}
	data, err := json.Marshal(session{Username: username, ExpiresAt: tok.ExpiresAt})
	if err != nil {
		return nil, err
	}
	if err := s.store.SetWithTTL(ctx, tokenKey(tok.AccessToken), data, s.ttl); err != nil {
		return nil, fmt.Errorf("auth: store token: %w", err)
	}
	return tok, nil
}

// Authenticate returns the user owning token. An expired token is deleted.
func (s *Service) Authenticate(ctx context.Context, token string) (*User, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}
	data, err := s.store.Get(ctx, tokenKey(token))
	if errors.Is(err, kv.ErrNotFound) {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, err
	}
	var sess session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, ErrInvalidToken
	}
	if !s.now().Before(sess.ExpiresAt) {
		if err := s.store.Delete(ctx, tokenKey(token)); err != nil {
			s.logger.WarnContext(ctx, "delete expired token", "error", err)
		}
		return nil, ErrInvalidToken
	}
	u, err := s.User(ctx, sess.Username)
	if errors.Is(err, kv.ErrNotFound) {
		return nil, ErrInvalidToken
	}
	return u, err
}

// Cleanup deletes expired tokens and reports how many were removed.
func (s *Service) Cleanup(ctx context.Context) (int, error) {
	now := s.now()
	var expired []kv.Key
	for e, err := range s.store.List(ctx, kv.Key{"token"}) {
		if err != nil {
			return 0, err
		}
		var sess session
		if json.Unmarshal(e.Value, &sess) != nil || !now.Before(sess.ExpiresAt) {
			expired = append(expired, e.Key)
		}
	}
	if len(expired) == 0 {
		return 0, nil
	}
	if err := s.store.BatchDelete(ctx, expired); err != nil {
		return 0, err
	}
	return len(expired), nil
}

// Run calls Cleanup every interval until ctx is done.
func (s *Service) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := s.Cleanup(ctx)
			if err != nil {
				s.logger.WarnContext(ctx, "token cleanup failed", "error", err)
				continue
			}
			if n > 0 {
				s.logger.DebugContext(ctx, "expired tokens removed", "count", n)
			}
		}
	}
}
