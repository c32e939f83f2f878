package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Error types for common failure scenarios.
var (
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrNoToken          = errors.New("no token provided")
	ErrTrackNotFound    = errors.New("track not found")
	ErrRateLimited      = errors.New("rate limited")
	ErrNetworkError     = errors.New("network error")
	ErrTimeout          = errors.New("request timeout")
	ErrConfigNotFound   = errors.New("config file not found")
	ErrInvalidConfig    = errors.New("invalid configuration")
	ErrBackendDown      = errors.New("backend unavailable")
)

// SheetError wraps an error with a user-friendly suggestion.
type SheetError struct {
	Err        error
	Suggestion string
}

func (e *SheetError) Error() string {
	return e.Err.Error()
}

func (e *SheetError) Unwrap() error {
	return e.Err
}

// WithSuggestion wraps an error with a helpful suggestion.
func WithSuggestion(err error, suggestion string) error {
	return &SheetError{
		Err:        err,
		Suggestion: suggestion,
	}
}

// AuthExchangeError is returned when the provider rejects an authorization
// code. It is never retried.
type AuthExchangeError struct {
	Status      int
	Code        string
	Description string
}

func (e *AuthExchangeError) Error() string {
	return fmt.Sprintf("authorization code exchange failed (%d): %s", e.Status, e.Message())
}

// Message returns the provider's description, falling back to its error code.
func (e *AuthExchangeError) Message() string {
	if e.Description != "" {
		return e.Description
	}
	if e.Code != "" {
		return e.Code
	}
	return "Authentication failed"
}

// RefreshError is returned when a refresh token is rejected. Callers treat it
// as a forced logout.
type RefreshError struct {
	Status      int
	Code        string
	Description string
}

func (e *RefreshError) Error() string {
	return fmt.Sprintf("token refresh failed (%d): %s", e.Status, e.Message())
}

func (e *RefreshError) Message() string {
	if e.Description != "" {
		return e.Description
	}
	if e.Code != "" {
		return e.Code
	}
	return "Token refresh failed"
}

func (e *RefreshError) Unwrap() error {
	return ErrNotAuthenticated
}

// UpstreamError is a non-success response from the music provider's API.
type UpstreamError struct {
	Status  int
	Message string
	Body    []byte
}

func (e *UpstreamError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("upstream error (%d)", e.Status)
	}
	return fmt.Sprintf("upstream error (%d): %s", e.Status, e.Message)
}

// IsForbidden reports whether the provider refused access to the resource.
func (e *UpstreamError) IsForbidden() bool {
	return e.Status == http.StatusForbidden
}

func (e *UpstreamError) Unwrap() error {
	switch e.Status {
	case http.StatusUnauthorized:
		return ErrNotAuthenticated
	case http.StatusNotFound:
		return ErrTrackNotFound
	case http.StatusTooManyRequests:
		return ErrRateLimited
	}
	return nil
}

// IsForbidden reports whether err is an UpstreamError with status 403.
func IsForbidden(err error) bool {
	var upErr *UpstreamError
	return errors.As(err, &upErr) && upErr.IsForbidden()
}

// StatusOf returns the HTTP status carried by a typed error, or 0.
func StatusOf(err error) int {
	var (
		upErr      *UpstreamError
		exchErr    *AuthExchangeError
		refreshErr *RefreshError
	)
	switch {
	case errors.As(err, &upErr):
		return upErr.Status
	case errors.As(err, &exchErr):
		return exchErr.Status
	case errors.As(err, &refreshErr):
		return refreshErr.Status
	case errors.Is(err, ErrNoToken):
		return http.StatusUnauthorized
	}
	return 0
}

// GetSuggestion returns a suggestion for the given error.
func GetSuggestion(err error) string {
	if err == nil {
		return ""
	}

	var sheetErr *SheetError
	if errors.As(err, &sheetErr) && sheetErr.Suggestion != "" {
		return sheetErr.Suggestion
	}

	errStr := strings.ToLower(err.Error())

	// Authentication errors
	if errors.Is(err, ErrNotAuthenticated) || errors.Is(err, ErrNoToken) ||
		strings.Contains(errStr, "not authenticated") || strings.Contains(errStr, "token expired") {
		return "Run 'sheetplayer auth login' to authenticate with Spotify"
	}

	var exchErr *AuthExchangeError
	if errors.As(err, &exchErr) {
		return "Check client_id, client_secret and redirect_uri in your config"
	}

	if errors.Is(err, ErrBackendDown) {
		return "Start the API service with 'sheetplayer serve'"
	}

	if errors.Is(err, ErrTrackNotFound) {
		return "The track may have been removed from Spotify"
	}

	// Rate limiting
	if errors.Is(err, ErrRateLimited) || strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "429") {
		return "Too many requests. Wait a moment and try again"
	}

	// Network errors
	if errors.Is(err, ErrNetworkError) || errors.Is(err, ErrTimeout) ||
		strings.Contains(errStr, "network") || strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "connection refused") {
		return "Check your internet connection and try again"
	}

	// Config errors
	if errors.Is(err, ErrConfigNotFound) || errors.Is(err, ErrInvalidConfig) {
		return "Run 'sheetplayer config init' to create a configuration"
	}

	// Server errors
	if StatusOf(err) >= 500 || strings.Contains(errStr, "server error") {
		return "Spotify is having issues. Try again in a moment"
	}

	return ""
}

// Format returns a formatted error message with suggestion if available.
func Format(err error) string {
	if err == nil {
		return ""
	}

	suggestion := GetSuggestion(err)
	if suggestion != "" {
		return fmt.Sprintf("Error: %s\n\nSuggestion: %s", err.Error(), suggestion)
	}

	return fmt.Sprintf("Error: %s", err.Error())
}
