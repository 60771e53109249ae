package tokens

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jrsteele09/issue-tracker-client/internal/config"
	"github.com/jrsteele09/issue-tracker-client/internal/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

const (
	AccessTokenKey  = "access_token"
	RefreshTokenKey = "refresh_token"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

// Store owns the access/refresh token pair on top of a Repo. It is the only writer
// of the credential keys and notifies listeners after every change.
type Store struct {
	repo   Repo
	config config.SessionConfig
	secure bool

	mu        sync.Mutex
	listeners map[int]func(*oauth2.Token)
	nextID    int
}

type StoreOption func(*Store)

// WithSecure marks every persisted credential as secure (production deployments)
func WithSecure(secure bool) StoreOption {
	return func(s *Store) {
		s.secure = secure
	}
}

// NewStore creates a token store persisting into repo
func NewStore(repo Repo, cfg config.SessionConfig, options ...StoreOption) *Store {
	s := &Store{
		repo:      repo,
		config:    cfg,
		listeners: make(map[int]func(*oauth2.Token)),
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// Token returns the stored pair, or nil when neither token is present. Repo read
// failures are treated as absence.
func (s *Store) Token(ctx context.Context) *oauth2.Token {
	access := s.get(ctx, AccessTokenKey)
	refresh := s.get(ctx, RefreshTokenKey)
	if access == "" && refresh == "" {
		return nil
	}
	return &oauth2.Token{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
	}
}

// SetTokens persists tok.AccessToken and, when present, tok.RefreshToken. A missing
// refresh token leaves the stored one in place (backends that do not rotate).
func (s *Store) SetTokens(ctx context.Context, tok *oauth2.Token) error {
	if tok == nil || tok.AccessToken == "" {
		return fmt.Errorf("[Store SetTokens] access token is required")
	}

	now := NowTimeFunc()
	if err := s.repo.Set(ctx, AccessTokenKey, tok.AccessToken, SetOptions{
		TTL:    lifetime(tok.AccessToken, s.config.GetAccessTokenLifetime(), now),
		Secure: s.secure,
	}); err != nil {
		return errors.Wrapf(err, "[Store SetTokens] %s", AccessTokenKey)
	}

	if tok.RefreshToken != "" {
		if err := s.repo.Set(ctx, RefreshTokenKey, tok.RefreshToken, SetOptions{
			TTL:    lifetime(tok.RefreshToken, s.config.GetRefreshTokenLifetime(), now),
			Secure: s.secure,
		}); err != nil {
			return errors.Wrapf(err, "[Store SetTokens] %s", RefreshTokenKey)
		}
	}

	s.notify(s.Token(ctx))
	return nil
}

// ClearAccess removes only the access token
func (s *Store) ClearAccess(ctx context.Context) error {
	if err := s.repo.Delete(ctx, AccessTokenKey); err != nil {
		return errors.Wrapf(err, "[Store ClearAccess]")
	}
	s.notify(s.Token(ctx))
	return nil
}

// Clear removes both tokens. Listeners are notified with nil even when a delete
// fails, and both deletes are always attempted.
func (s *Store) Clear(ctx context.Context) error {
	err := errors.Join(
		s.repo.Delete(ctx, AccessTokenKey),
		s.repo.Delete(ctx, RefreshTokenKey),
	)
	s.notify(nil)
	if err != nil {
		return errors.Wrapf(err, "[Store Clear]")
	}
	return nil
}

// OnChange registers fn to be called with the new pair (nil when cleared) after each
// change. The returned func unregisters it.
func (s *Store) OnChange(fn func(*oauth2.Token)) (cancel func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

func (s *Store) get(ctx context.Context, key string) string {
	v, err := s.repo.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			log.Err(err).Str("key", key).Msg("token repo read failed")
		}
		return ""
	}
	return v
}

func (s *Store) notify(tok *oauth2.Token) {
	s.mu.Lock()
	fns := make([]func(*oauth2.Token), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(tok)
	}
}
