// Package session is the client side of the API service: it calls the
// service's HTTP endpoints and keeps the local token store current.
package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/tessro/sheetplayer/internal/core"
	apperrors "github.com/tessro/sheetplayer/internal/errors"
	"github.com/tessro/sheetplayer/internal/spotify/auth"
	"github.com/tessro/sheetplayer/internal/spotify/client"
)

// Backend calls the API service mounted at baseURL (e.g. http://localhost:5000/api).
type Backend struct {
	httpClient *http.Client
	baseURL    string
	logger     *zap.Logger
}

// BackendOption configures a Backend.
type BackendOption func(*Backend)

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(c *http.Client) BackendOption {
	return func(b *Backend) { b.httpClient = c }
}

// WithBackendLogger sets the logger.
func WithBackendLogger(l *zap.Logger) BackendOption {
	return func(b *Backend) { b.logger = l }
}

// NewBackend creates a Backend for baseURL.
func NewBackend(baseURL string, opts ...BackendOption) *Backend {
	b := &Backend{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    strings.TrimRight(baseURL, "/"),
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// errorBody is the service's error envelope.
type errorBody struct {
	Error string `json:"error"`
}

// errorKind selects the typed error a failed call is reported as.
type errorKind int

const (
	kindUpstream errorKind = iota
	kindExchange
	kindRefresh
)

func (b *Backend) do(ctx context.Context, method, path, token string, in, out interface{}, kind errorKind) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, b.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	b.logger.Debug("backend request", zap.String("method", method), zap.String("path", path))

	resp, err := b.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			return fmt.Errorf("%w: %v", apperrors.ErrBackendDown, urlErr.Err)
		}
		return fmt.Errorf("%w: %v", apperrors.ErrBackendDown, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var eb errorBody
		_ = json.Unmarshal(raw, &eb)
		switch kind {
		case kindExchange:
			return &apperrors.AuthExchangeError{Status: resp.StatusCode, Description: eb.Error}
		case kindRefresh:
			return &apperrors.RefreshError{Status: resp.StatusCode, Description: eb.Error}
		}
		if resp.StatusCode == http.StatusUnauthorized && eb.Error == "No token provided" {
			return apperrors.ErrNoToken
		}
		return &apperrors.UpstreamError{Status: resp.StatusCode, Message: eb.Error, Body: raw}
	}

	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}
	}
	return nil
}

// LoginURL returns the provider consent URL.
func (b *Backend) LoginURL(ctx context.Context) (string, error) {
	var resp struct {
		AuthURL string `json:"authUrl"`
	}
	if err := b.do(ctx, http.MethodGet, "/auth/login", "", nil, &resp, kindUpstream); err != nil {
		return "", err
	}
	return resp.AuthURL, nil
}

// ExchangeCode trades an authorization code for tokens.
func (b *Backend) ExchangeCode(ctx context.Context, code string) (*auth.TokenRecord, error) {
	var rec auth.TokenRecord
	in := map[string]string{"code": code}
	if err := b.do(ctx, http.MethodPost, "/auth/callback", "", in, &rec, kindExchange); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Refresh exchanges a refresh token for a new access token.
func (b *Backend) Refresh(ctx context.Context, refreshToken string) (*auth.TokenRecord, error) {
	var rec auth.TokenRecord
	in := map[string]string{"refreshToken": refreshToken}
	if err := b.do(ctx, http.MethodPost, "/auth/refresh", "", in, &rec, kindRefresh); err != nil {
		return nil, err
	}
	return &rec, nil
}

// CurrentlyPlaying returns nil when nothing is playing.
func (b *Backend) CurrentlyPlaying(ctx context.Context, token string) (*core.PlaybackSnapshot, error) {
	var snap *core.PlaybackSnapshot
	if err := b.do(ctx, http.MethodGet, "/spotify/currently-playing", token, nil, &snap, kindUpstream); err != nil {
		return nil, err
	}
	return snap, nil
}

func (b *Backend) AudioFeatures(ctx context.Context, token, trackID string) (*core.AudioDescriptor, error) {
	var d core.AudioDescriptor
	if err := b.do(ctx, http.MethodGet, "/spotify/audio-features/"+url.PathEscape(trackID), token, nil, &d, kindUpstream); err != nil {
		return nil, err
	}
	return &d, nil
}

func (b *Backend) Track(ctx context.Context, token, trackID string) (*core.TrackRef, error) {
	var t core.TrackRef
	if err := b.do(ctx, http.MethodGet, "/spotify/tracks/"+url.PathEscape(trackID), token, nil, &t, kindUpstream); err != nil {
		return nil, err
	}
	return &t, nil
}

// Me returns the signed-in user's profile.
func (b *Backend) Me(ctx context.Context, token string) (*client.User, error) {
	var u client.User
	if err := b.do(ctx, http.MethodGet, "/spotify/me", token, nil, &u, kindUpstream); err != nil {
		return nil, err
	}
	return &u, nil
}

// Health checks that the service is reachable.
func (b *Backend) Health(ctx context.Context) error {
	var resp struct {
		Status string `json:"status"`
	}
	if err := b.do(ctx, http.MethodGet, "/health", "", nil, &resp, kindUpstream); err != nil {
		return err
	}
	if resp.Status != "OK" {
		return fmt.Errorf("%w: status %q", apperrors.ErrBackendDown, resp.Status)
	}
	return nil
}
