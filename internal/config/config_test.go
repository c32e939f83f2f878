package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"NODE_ENV", "SHEETPLAYER_ENV", "SPOTIFY_CLIENT_ID", "SPOTIFY_CLIENT_SECRET",
		"SPOTIFY_REDIRECT_URI", "PORT", "FRONTEND_URL", "SHEETPLAYER_API_URL",
		"SHEETPLAYER_POLL_INTERVAL", "SHEETPLAYER_LOG_LEVEL", "SHEETPLAYER_LOG_FILE",
	} {
		t.Setenv(k, "")
	}
}

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFromAppliesDefaults(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, `
[spotify]
client_id = "abc"

[server]
port = 8080
`)

	cfg, err := LoadFrom(path)
	require.NoError(t, err)

	assert.Equal(t, "abc", cfg.Spotify.ClientID)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "production", cfg.Environment)
	assert.Equal(t, "https://api.spotify.com/v1", cfg.Spotify.APIBaseURL)
	assert.Equal(t, 600, cfg.Server.RateLimitRPM)
	assert.Equal(t, 10000, cfg.Client.PollInterval)
	assert.Equal(t, "http://localhost:3000", cfg.Relay.Target)
	assert.NoError(t, cfg.Validate())
}

func TestEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("SPOTIFY_CLIENT_ID", "env-id")
	t.Setenv("SPOTIFY_CLIENT_SECRET", "env-secret")
	t.Setenv("PORT", "7000")
	t.Setenv("FRONTEND_URL", "https://player.example.com")
	t.Setenv("NODE_ENV", "development")
	t.Setenv("SHEETPLAYER_API_URL", "http://api.local:9000/api")

	cfg, err := LoadFrom(writeFile(t, `[spotify]
client_id = "file-id"
`))
	require.NoError(t, err)

	assert.Equal(t, "env-id", cfg.Spotify.ClientID)
	assert.Equal(t, "env-secret", cfg.Spotify.ClientSecret)
	assert.Equal(t, 7000, cfg.Server.Port)
	assert.Equal(t, "http://api.local:9000/api", cfg.Client.APIURL)
	assert.True(t, cfg.IsDevelopment())
	assert.NoError(t, cfg.Spotify.RequireCredentials())
	assert.Equal(t,
		[]string{"http://localhost:3000", "https://player.example.com"},
		cfg.Server.Origins())
}

func TestSheetplayerEnvWinsOverNodeEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("NODE_ENV", "development")
	t.Setenv("SHEETPLAYER_ENV", "test")

	cfg, err := LoadFrom(writeFile(t, ""))
	require.NoError(t, err)
	assert.Equal(t, "test", cfg.Environment)
}

func TestInvalidPortIgnored(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "not-a-number")

	cfg, err := LoadFrom(writeFile(t, ""))
	require.NoError(t, err)
	assert.Equal(t, 5000, cfg.Server.Port)
}

func TestLoadFromParseError(t *testing.T) {
	clearEnv(t)
	_, err := LoadFrom(writeFile(t, "[spotify\n"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Environment = "staging"
	cfg.Server.Port = 70000
	cfg.Relay.Target = "localhost:3000"
	cfg.Log.Level = "verbose"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid environment")
	assert.Contains(t, err.Error(), "server: port out of range")
	assert.Contains(t, err.Error(), "relay: invalid target")
	assert.Contains(t, err.Error(), "log: invalid log level")
}

func TestRequireCredentials(t *testing.T) {
	cfg := Default()
	err := cfg.Spotify.RequireCredentials()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SPOTIFY_CLIENT_ID")
	assert.Contains(t, err.Error(), "SPOTIFY_CLIENT_SECRET")
}

func TestSaveWritesOwnerOnly(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	cfg := Default()
	cfg.Spotify.ClientID = "saved"

	require.NoError(t, Save(cfg, path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	loaded, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, "saved", loaded.Spotify.ClientID)
}

func TestFindConfigFileUsesXDG(t *testing.T) {
	home := t.TempDir()
	xdg := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", xdg)

	assert.Equal(t, "", FindConfigFile())
	assert.Equal(t, filepath.Join(xdg, "sheetplayer", "config.toml"), DefaultPath())

	require.NoError(t, Save(Default(), DefaultPath()))
	assert.Equal(t, DefaultPath(), FindConfigFile())

	rc := filepath.Join(home, ".sheetplayerrc")
	require.NoError(t, os.WriteFile(rc, nil, 0o600))
	assert.Equal(t, rc, FindConfigFile())
}
