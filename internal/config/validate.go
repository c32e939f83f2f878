package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
)

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	switch c.Environment {
	case "", "development", "production", "test":
	default:
		errs = append(errs, fmt.Errorf("invalid environment: %s (must be development, production, or test)", c.Environment))
	}

	if err := c.Spotify.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("spotify: %w", err))
	}
	if err := c.Server.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("server: %w", err))
	}
	if err := c.Relay.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("relay: %w", err))
	}
	if err := c.Client.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("client: %w", err))
	}
	if err := c.TUI.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("tui: %w", err))
	}
	if err := c.Log.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("log: %w", err))
	}

	return errors.Join(errs...)
}

// RequireCredentials reports an error when the Spotify application
// credentials needed by the API service are missing.
func (c *SpotifyConfig) RequireCredentials() error {
	var errs []error
	if c.ClientID == "" {
		errs = append(errs, errors.New("client_id is required (set SPOTIFY_CLIENT_ID)"))
	}
	if c.ClientSecret == "" {
		errs = append(errs, errors.New("client_secret is required (set SPOTIFY_CLIENT_SECRET)"))
	}
	return errors.Join(errs...)
}

// Validate checks SpotifyConfig for errors.
func (c *SpotifyConfig) Validate() error {
	if c.RedirectURI != "" {
		if err := validateHTTPURL(c.RedirectURI); err != nil {
			return fmt.Errorf("invalid redirect_uri: %w", err)
		}
	}
	if c.APIBaseURL != "" {
		if err := validateHTTPURL(c.APIBaseURL); err != nil {
			return fmt.Errorf("invalid api_base_url: %w", err)
		}
	}
	if c.MaxRetries < 0 {
		return errors.New("max_retries must be non-negative")
	}
	if c.RetryBackoffMS < 0 {
		return errors.New("retry_backoff_ms must be non-negative")
	}
	return nil
}

// Validate checks ServerConfig for errors.
func (c *ServerConfig) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("port out of range: %d", c.Port)
	}
	if c.RateLimitRPM < 0 {
		return errors.New("rate_limit_rpm must be non-negative")
	}
	for _, origin := range c.AllowedOrigins {
		if origin == "*" {
			continue
		}
		if err := validateHTTPURL(origin); err != nil {
			return fmt.Errorf("invalid allowed origin %q: %w", origin, err)
		}
	}
	return nil
}

// Validate checks RelayConfig for errors.
func (c *RelayConfig) Validate() error {
	if c.Listen != "" {
		if _, _, err := net.SplitHostPort(c.Listen); err != nil {
			return fmt.Errorf("invalid listen address: %w", err)
		}
	}
	if c.Target != "" {
		if err := validateHTTPURL(c.Target); err != nil {
			return fmt.Errorf("invalid target: %w", err)
		}
	}
	return nil
}

// Validate checks ClientConfig for errors.
func (c *ClientConfig) Validate() error {
	if c.APIURL != "" {
		if err := validateHTTPURL(c.APIURL); err != nil {
			return fmt.Errorf("invalid api_url: %w", err)
		}
	}
	if c.PollInterval < 0 {
		return errors.New("poll_interval must be non-negative")
	}
	if c.CallbackPort < 0 || c.CallbackPort > 65535 {
		return fmt.Errorf("callback_port out of range: %d", c.CallbackPort)
	}
	return nil
}

// Validate checks TUIConfig for errors.
func (c *TUIConfig) Validate() error {
	switch c.Theme {
	case "", "auto", "dark", "light":
		// valid
	default:
		return fmt.Errorf("invalid theme: %s (must be auto, dark, or light)", c.Theme)
	}
	return nil
}

// Validate checks LogConfig for errors.
func (c *LogConfig) Validate() error {
	switch c.Level {
	case "", "debug", "info", "warn", "error":
		// valid
	default:
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Level)
	}
	return nil
}

func validateHTTPURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("missing host")
	}
	return nil
}
