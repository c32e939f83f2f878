package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/tessro/sheetplayer/internal/core"
	apperrors "github.com/tessro/sheetplayer/internal/errors"
	"github.com/tessro/sheetplayer/internal/spotify/auth"
)

// Session owns the local token store and implements core.Player on top of
// a Backend.
type Session struct {
	backend *Backend
	store   *auth.TokenStore
	clock   clockwork.Clock
	logger  *zap.Logger
}

// Option configures a Session.
type Option func(*Session)

// WithClock sets the clock used to stamp token expiry.
func WithClock(c clockwork.Clock) Option {
	return func(s *Session) { s.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// New creates a Session.
func New(backend *Backend, store *auth.TokenStore, opts ...Option) *Session {
	s := &Session{
		backend: backend,
		store:   store,
		clock:   clockwork.NewRealClock(),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ core.Player = (*Session)(nil)

// Backend returns the underlying service client.
func (s *Session) Backend() *Backend {
	return s.backend
}

// Store returns the token store.
func (s *Session) Store() *auth.TokenStore {
	return s.store
}

// LoginURL asks the service for the provider consent URL.
func (s *Session) LoginURL(ctx context.Context) (string, error) {
	return s.backend.LoginURL(ctx)
}

// CompleteLogin exchanges code and stores the resulting tokens.
func (s *Session) CompleteLogin(ctx context.Context, code string) (*auth.TokenRecord, error) {
	rec, err := s.backend.ExchangeCode(ctx, code)
	if err != nil {
		return nil, err
	}
	rec.ExpiresAt = s.expiry(rec.ExpiresIn)
	if err := s.store.Save(rec); err != nil {
		return nil, fmt.Errorf("failed to save token: %w", err)
	}
	return rec, nil
}

// Logout removes the stored tokens.
func (s *Session) Logout() error {
	return s.store.Clear()
}

// EnsureToken returns a usable access token. A missing, expired or
// soon-to-expire token is refreshed first. When the provider rejects the
// refresh the store is cleared and a *errors.RefreshError is returned.
// Cancellation and transport failures leave the stored token in place.
func (s *Session) EnsureToken(ctx context.Context) (string, error) {
	rec, ok := s.store.Read()
	if !ok {
		return "", apperrors.ErrNotAuthenticated
	}
	if s.store.IsValid() && !s.store.IsExpiringSoon() {
		return rec.AccessToken, nil
	}

	if rec.RefreshToken == "" {
		_ = s.store.Clear()
		return "", &apperrors.RefreshError{Description: "no refresh token stored"}
	}

	s.logger.Debug("refreshing access token", zap.Time("expires_at", rec.ExpiresAt))

	fresh, err := s.backend.Refresh(ctx, rec.RefreshToken)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		var refreshErr *apperrors.RefreshError
		if !errors.As(err, &refreshErr) {
			return "", fmt.Errorf("refresh token: %w", err)
		}
		if clearErr := s.store.Clear(); clearErr != nil {
			s.logger.Warn("failed to clear token store", zap.Error(clearErr))
		}
		return "", err
	}

	if fresh.RefreshToken == "" {
		fresh.RefreshToken = rec.RefreshToken
	}
	fresh.ExpiresAt = s.expiry(fresh.ExpiresIn)
	if err := s.store.Save(fresh); err != nil {
		return "", fmt.Errorf("failed to save token: %w", err)
	}
	return fresh.AccessToken, nil
}

func (s *Session) CurrentlyPlaying(ctx context.Context, token string) (*core.PlaybackSnapshot, error) {
	return s.backend.CurrentlyPlaying(ctx, token)
}

func (s *Session) AudioFeatures(ctx context.Context, token, trackID string) (*core.AudioDescriptor, error) {
	return s.backend.AudioFeatures(ctx, token, trackID)
}

// Status describes the stored token without touching the network.
type Status struct {
	LoggedIn     bool
	Valid        bool
	ExpiringSoon bool
	ExpiresAt    time.Time
}

// Status reports the state of the stored token.
func (s *Session) Status() Status {
	rec, ok := s.store.Read()
	if !ok {
		return Status{}
	}
	return Status{
		LoggedIn:     true,
		Valid:        s.store.IsValid(),
		ExpiringSoon: s.store.IsExpiringSoon(),
		ExpiresAt:    rec.ExpiresAt,
	}
}

func (s *Session) expiry(expiresIn int) time.Time {
	if expiresIn <= 0 {
		expiresIn = 3600
	}
	return s.clock.Now().Add(time.Duration(expiresIn) * time.Second)
}
