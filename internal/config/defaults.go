package config

// Default returns a Config populated with sensible defaults.
func Default() *Config {
	return &Config{
		Environment: "production",
		Spotify: SpotifyConfig{
			RedirectURI:    "http://127.0.0.1:8888/callback",
			APIBaseURL:     "https://api.spotify.com/v1",
			MaxRetries:     3,
			RetryBackoffMS: 500,
		},
		Server: ServerConfig{
			Port:           5000,
			AllowedOrigins: []string{"http://localhost:3000"},
			RateLimitRPM:   600,
		},
		Relay: RelayConfig{
			Listen: "127.0.0.1:8888",
			Target: "http://localhost:3000",
		},
		Client: ClientConfig{
			APIURL:       "http://localhost:5000/api",
			PollInterval: 10000,
			CallbackPort: 8888,
		},
		TUI: TUIConfig{
			Theme: "auto",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// ApplyDefaults fills in zero values with sensible defaults.
func (c *Config) ApplyDefaults() {
	d := Default()

	if c.Environment == "" {
		c.Environment = d.Environment
	}

	// Spotify
	if c.Spotify.RedirectURI == "" {
		c.Spotify.RedirectURI = d.Spotify.RedirectURI
	}
	if c.Spotify.APIBaseURL == "" {
		c.Spotify.APIBaseURL = d.Spotify.APIBaseURL
	}
	if c.Spotify.MaxRetries == 0 {
		c.Spotify.MaxRetries = d.Spotify.MaxRetries
	}
	if c.Spotify.RetryBackoffMS == 0 {
		c.Spotify.RetryBackoffMS = d.Spotify.RetryBackoffMS
	}

	// Server
	if c.Server.Port == 0 {
		c.Server.Port = d.Server.Port
	}
	if len(c.Server.AllowedOrigins) == 0 {
		c.Server.AllowedOrigins = d.Server.AllowedOrigins
	}
	if c.Server.RateLimitRPM == 0 {
		c.Server.RateLimitRPM = d.Server.RateLimitRPM
	}

	// Relay
	if c.Relay.Listen == "" {
		c.Relay.Listen = d.Relay.Listen
	}
	if c.Relay.Target == "" {
		c.Relay.Target = d.Relay.Target
	}

	// Client
	if c.Client.APIURL == "" {
		c.Client.APIURL = d.Client.APIURL
	}
	if c.Client.PollInterval == 0 {
		c.Client.PollInterval = d.Client.PollInterval
	}
	if c.Client.CallbackPort == 0 {
		c.Client.CallbackPort = d.Client.CallbackPort
	}

	// TUI
	if c.TUI.Theme == "" {
		c.TUI.Theme = d.TUI.Theme
	}

	// Log
	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
}
