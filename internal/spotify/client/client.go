package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/tessro/sheetplayer/internal/errors"
)

const (
	// BaseURL is the Spotify Web API base URL.
	BaseURL = "https://api.spotify.com/v1"

	// Retry configuration for transient errors
	defaultMaxRetries = 3
	defaultRetryWait  = 500 * time.Millisecond

	// maxRetryAfter is the longest server-requested delay worth waiting out.
	maxRetryAfter = 30 * time.Second
)

// Client is a stateless Spotify Web API client. Every call carries the
// caller's access token.
type Client struct {
	httpClient    *http.Client
	baseURL       string
	maxRetries    int
	baseRetryWait time.Duration
	logger        *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithBaseURL points the client at a different API root.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithRetry sets how many times transient failures are retried and the
// initial backoff, which doubles on each attempt.
func WithRetry(maxRetries int, wait time.Duration) Option {
	return func(c *Client) {
		c.maxRetries = maxRetries
		c.baseRetryWait = wait
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a new Spotify client.
func New(opts ...Option) *Client {
	c := &Client{
		httpClient:    &http.Client{Timeout: 30 * time.Second},
		baseURL:       BaseURL,
		maxRetries:    defaultMaxRetries,
		baseRetryWait: defaultRetryWait,
		logger:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.maxRetries < 0 {
		c.maxRetries = 0
	}
	return c
}

// get performs a GET and decodes the body into result. It reports
// noContent for 204 responses and empty bodies.
func (c *Client) get(ctx context.Context, token, path string, result interface{}) (noContent bool, err error) {
	if token == "" {
		return false, apperrors.ErrNoToken
	}

	fullURL := c.baseURL + path
	c.logger.Debug("spotify request", zap.String("method", http.MethodGet), zap.String("url", fullURL))

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			wait := c.baseRetryWait * time.Duration(1<<(attempt-1))
			if ra := retryAfter(lastErr); ra > 0 {
				wait = min(ra, maxRetryAfter)
			}
			c.logger.Warn("retrying spotify request",
				zap.String("url", fullURL),
				zap.Int("attempt", attempt),
				zap.Int("max_retries", c.maxRetries),
				zap.Duration("wait", wait),
				zap.Error(lastErr))
			if err := sleep(ctx, wait); err != nil {
				return false, err
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
		if err != nil {
			return false, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return false, ctx.Err()
			}
			lastErr = fmt.Errorf("%w: %v", apperrors.ErrNetworkError, err)
			continue
		}

		body, err := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("%w: failed to read response: %v", apperrors.ErrNetworkError, err)
			continue
		}

		c.logger.Debug("spotify response", zap.String("url", fullURL), zap.Int("status", resp.StatusCode))

		if resp.StatusCode == http.StatusNoContent {
			return true, nil
		}

		if resp.StatusCode >= 400 {
			upErr := upstreamError(resp.StatusCode, body)
			if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
				ra := parseRetryAfter(resp.Header.Get("Retry-After"))
				if ra > maxRetryAfter {
					c.logger.Warn("spotify retry-after too long, giving up",
						zap.String("url", fullURL), zap.Duration("retry_after", ra))
					return false, upErr
				}
				lastErr = &retryableError{err: upErr, retryAfter: ra}
				continue
			}
			return false, upErr
		}

		if len(body) == 0 {
			return true, nil
		}
		if result != nil {
			if err := json.Unmarshal(body, result); err != nil {
				return false, fmt.Errorf("failed to parse response: %w", err)
			}
		}
		return false, nil
	}

	return false, unwrapRetryable(lastErr)
}

// retryableError carries the server's requested delay between attempts.
type retryableError struct {
	err        error
	retryAfter time.Duration
}

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

func retryAfter(err error) time.Duration {
	if re, ok := err.(*retryableError); ok {
		return re.retryAfter
	}
	return 0
}

func unwrapRetryable(err error) error {
	if re, ok := err.(*retryableError); ok {
		return re.err
	}
	return err
}

func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(v); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	if when, err := http.ParseTime(v); err == nil {
		if until := time.Until(when); until > 0 {
			return until
		}
	}
	return 0
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// apiErrorBody is the Spotify API error envelope.
type apiErrorBody struct {
	Error struct {
		Status  int    `json:"status"`
		Message string `json:"message"`
	} `json:"error"`
}

func upstreamError(status int, body []byte) *apperrors.UpstreamError {
	upErr := &apperrors.UpstreamError{Status: status, Body: body}

	var envelope apiErrorBody
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		upErr.Message = envelope.Error.Message
	} else {
		upErr.Message = http.StatusText(status)
	}
	return upErr
}
