package auth

import (
	"golang.org/x/oauth2"

	spotifyauth "github.com/zmb3/spotify/v2/auth"
)

const (
	// DefaultRedirectURI is the default callback URI for the local server.
	DefaultRedirectURI = "http://127.0.0.1:8888/callback"
)

// DefaultScopes are the Spotify scopes requested at login.
var DefaultScopes = []string{
	spotifyauth.ScopeUserReadCurrentlyPlaying,
	spotifyauth.ScopeUserReadPlaybackState,
	spotifyauth.ScopeUserModifyPlaybackState,
	spotifyauth.ScopeUserReadPrivate,
	spotifyauth.ScopeUserReadEmail,
}

// Config holds the OAuth configuration.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Scopes       []string

	// AuthURL and TokenURL override the Spotify accounts endpoints.
	AuthURL  string
	TokenURL string
}

// NewConfig creates a new OAuth configuration with defaults.
func NewConfig(clientID, clientSecret string) *Config {
	return &Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURI:  DefaultRedirectURI,
		Scopes:       DefaultScopes,
		AuthURL:      spotifyauth.AuthURL,
		TokenURL:     spotifyauth.TokenURL,
	}
}

func (c *Config) oauth2Config() *oauth2.Config {
	authURL, tokenURL := c.AuthURL, c.TokenURL
	if authURL == "" {
		authURL = spotifyauth.AuthURL
	}
	if tokenURL == "" {
		tokenURL = spotifyauth.TokenURL
	}
	scopes := c.Scopes
	if len(scopes) == 0 {
		scopes = DefaultScopes
	}

	return &oauth2.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		RedirectURL:  c.RedirectURI,
		Scopes:       scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   authURL,
			TokenURL:  tokenURL,
			AuthStyle: oauth2.AuthStyleInHeader,
		},
	}
}

// BuildAuthURL returns the provider consent URL. It has no state parameter
// and always asks the provider to show the consent dialog, so the result
// is the same for the same configuration.
func (c *Config) BuildAuthURL() string {
	return c.oauth2Config().AuthCodeURL("", oauth2.SetAuthURLParam("show_dialog", "true"))
}
