package config

// Config is the root configuration structure.
type Config struct {
	Environment string        `toml:"environment"`
	Spotify     SpotifyConfig `toml:"spotify"`
	Server      ServerConfig  `toml:"server"`
	Relay       RelayConfig   `toml:"relay"`
	Client      ClientConfig  `toml:"client"`
	TUI         TUIConfig     `toml:"tui"`
	Log         LogConfig     `toml:"log"`
}

// SpotifyConfig holds Spotify application credentials and API tuning.
type SpotifyConfig struct {
	ClientID       string `toml:"client_id"`
	ClientSecret   string `toml:"client_secret"`
	RedirectURI    string `toml:"redirect_uri"`
	APIBaseURL     string `toml:"api_base_url"`
	MaxRetries     int    `toml:"max_retries"`
	RetryBackoffMS int    `toml:"retry_backoff_ms"`
}

// ServerConfig holds settings for the API service.
type ServerConfig struct {
	Port           int      `toml:"port"`
	FrontendURL    string   `toml:"frontend_url"`
	AllowedOrigins []string `toml:"allowed_origins"`
	RateLimitRPM   int      `toml:"rate_limit_rpm"`
}

// RelayConfig holds settings for the callback relay.
type RelayConfig struct {
	Listen string `toml:"listen"`
	Target string `toml:"target"`
}

// ClientConfig holds settings for the client-side session and poller.
type ClientConfig struct {
	APIURL       string `toml:"api_url"`
	TokenFile    string `toml:"token_file"`
	PollInterval int    `toml:"poll_interval"`
	CallbackPort int    `toml:"callback_port"`
}

// TUIConfig holds terminal UI settings.
type TUIConfig struct {
	Theme string `toml:"theme"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}

// IsDevelopment reports whether the service runs in development mode, where
// any browser origin is accepted and logs are human-readable.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// Origins returns the allowed CORS origins including the frontend URL.
func (c *ServerConfig) Origins() []string {
	origins := make([]string, 0, len(c.AllowedOrigins)+1)
	seen := make(map[string]bool, len(c.AllowedOrigins)+1)
	for _, o := range append(append([]string(nil), c.AllowedOrigins...), c.FrontendURL) {
		if o == "" || seen[o] {
			continue
		}
		seen[o] = true
		origins = append(origins, o)
	}
	return origins
}
