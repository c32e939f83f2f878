package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	apperrors "github.com/tessro/sheetplayer/internal/errors"
)

// defaultExpiresIn applies when the provider omits expires_in.
const defaultExpiresIn = 3600

// TokenRecord is an issued access/refresh token pair.
type TokenRecord struct {
	AccessToken  string    `json:"access_token"`
	TokenType    string    `json:"token_type,omitempty"`
	Scope        string    `json:"scope,omitempty"`
	ExpiresIn    int       `json:"expires_in"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	ExpiresAt    time.Time `json:"-"`
}

type tokenRecordAlias TokenRecord

type tokenRecordJSON struct {
	*tokenRecordAlias
	ExpiresAt int64 `json:"expires_at,omitempty"`
}

// MarshalJSON encodes ExpiresAt as epoch milliseconds under expires_at.
func (r TokenRecord) MarshalJSON() ([]byte, error) {
	out := tokenRecordJSON{tokenRecordAlias: (*tokenRecordAlias)(&r)}
	if !r.ExpiresAt.IsZero() {
		out.ExpiresAt = r.ExpiresAt.UnixMilli()
	}
	return json.Marshal(out)
}

// UnmarshalJSON reads expires_at as epoch milliseconds.
func (r *TokenRecord) UnmarshalJSON(data []byte) error {
	in := tokenRecordJSON{tokenRecordAlias: (*tokenRecordAlias)(r)}
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	r.ExpiresAt = time.Time{}
	if in.ExpiresAt > 0 {
		r.ExpiresAt = time.UnixMilli(in.ExpiresAt)
	}
	return nil
}

// Exchanger performs the authorization-code and refresh grants against the
// provider's token endpoint using HTTP Basic client authentication.
type Exchanger struct {
	cfg        *Config
	oauth      *oauth2.Config
	httpClient *http.Client
	clock      clockwork.Clock
	logger     *zap.Logger
}

// ExchangerOption configures an Exchanger.
type ExchangerOption func(*Exchanger)

// WithHTTPClient sets the HTTP client used for token requests.
func WithHTTPClient(c *http.Client) ExchangerOption {
	return func(e *Exchanger) { e.httpClient = c }
}

// WithClock sets the clock used to stamp ExpiresAt.
func WithClock(c clockwork.Clock) ExchangerOption {
	return func(e *Exchanger) { e.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) ExchangerOption {
	return func(e *Exchanger) { e.logger = l }
}

// NewExchanger creates an Exchanger for cfg.
func NewExchanger(cfg *Config, opts ...ExchangerOption) *Exchanger {
	e := &Exchanger{
		cfg:        cfg,
		oauth:      cfg.oauth2Config(),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		clock:      clockwork.NewRealClock(),
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// AuthorizationURL returns the consent URL for the configured client.
func (e *Exchanger) AuthorizationURL() string {
	return e.cfg.BuildAuthURL()
}

// ExchangeCode trades an authorization code for tokens. Failures are
// returned as *errors.AuthExchangeError and are never retried.
func (e *Exchanger) ExchangeCode(ctx context.Context, code string) (*TokenRecord, error) {
	tok, err := e.oauth.Exchange(e.withClient(ctx), code)
	if err != nil {
		status, errCode, desc := retrieveDetails(err)
		e.logger.Warn("authorization code exchange failed",
			zap.Int("status", status), zap.String("code", errCode), zap.Error(err))
		return nil, &apperrors.AuthExchangeError{Status: status, Code: errCode, Description: desc}
	}
	return e.record(tok), nil
}

// Refresh obtains a new access token. If the provider does not rotate the
// refresh token, the previous one is carried over. Failures are returned
// as *errors.RefreshError and are never retried.
func (e *Exchanger) Refresh(ctx context.Context, refreshToken string) (*TokenRecord, error) {
	src := e.oauth.TokenSource(e.withClient(ctx), &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		status, errCode, desc := retrieveDetails(err)
		e.logger.Warn("token refresh failed",
			zap.Int("status", status), zap.String("code", errCode), zap.Error(err))
		return nil, &apperrors.RefreshError{Status: status, Code: errCode, Description: desc}
	}

	rec := e.record(tok)
	if rec.RefreshToken == "" {
		rec.RefreshToken = refreshToken
	}
	return rec, nil
}

func (e *Exchanger) withClient(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, e.httpClient)
}

func (e *Exchanger) record(tok *oauth2.Token) *TokenRecord {
	now := e.clock.Now()

	expiresIn := int(tok.ExpiresIn)
	if expiresIn <= 0 && !tok.Expiry.IsZero() {
		expiresIn = int(time.Until(tok.Expiry).Round(time.Second).Seconds())
	}
	if expiresIn <= 0 {
		expiresIn = defaultExpiresIn
	}

	rec := &TokenRecord{
		AccessToken:  tok.AccessToken,
		TokenType:    tok.TokenType,
		ExpiresIn:    expiresIn,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    now.Add(time.Duration(expiresIn) * time.Second),
	}
	if scope, ok := tok.Extra("scope").(string); ok {
		rec.Scope = scope
	}
	return rec
}

// retrieveDetails extracts the provider's status and OAuth error fields.
// Transport failures carry no status.
func retrieveDetails(err error) (status int, code, desc string) {
	var re *oauth2.RetrieveError
	if !errors.As(err, &re) {
		return 0, "", ""
	}
	if re.Response != nil {
		status = re.Response.StatusCode
	}
	return status, re.ErrorCode, re.ErrorDescription
}
