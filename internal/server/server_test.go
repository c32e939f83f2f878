package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tessro/sheetplayer/internal/features"
	"github.com/tessro/sheetplayer/internal/spotify/auth"
	"github.com/tessro/sheetplayer/internal/spotify/client"
)

// fakeSpotify emulates the accounts and Web API endpoints.
type fakeSpotify struct {
	mu      sync.Mutex
	playing bool
	server  *httptest.Server
}

func newFakeSpotify(t *testing.T) *fakeSpotify {
	t.Helper()
	f := &fakeSpotify{}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/token", f.token)
	mux.HandleFunc("/v1/", f.api)
	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeSpotify) setPlaying(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.playing = v
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func (f *fakeSpotify) token(w http.ResponseWriter, r *http.Request) {
	if user, pass, ok := r.BasicAuth(); !ok || user != "cid" || pass != "csecret" {
		writeJSON(w, http.StatusUnauthorized, `{"error":"invalid_client"}`)
		return
	}
	_ = r.ParseForm()

	switch r.Form.Get("grant_type") {
	case "authorization_code":
		if r.Form.Get("code") != "good" {
			writeJSON(w, http.StatusBadRequest, `{"error":"invalid_grant","error_description":"Invalid authorization code"}`)
			return
		}
		writeJSON(w, http.StatusOK, `{"access_token":"a1","token_type":"Bearer","expires_in":3600,"refresh_token":"r1","scope":"user-read-private"}`)
	case "refresh_token":
		if r.Form.Get("refresh_token") != "r1" {
			writeJSON(w, http.StatusBadRequest, `{"error":"invalid_grant","error_description":"Refresh token revoked"}`)
			return
		}
		writeJSON(w, http.StatusOK, `{"access_token":"a2","token_type":"Bearer","expires_in":3600}`)
	default:
		writeJSON(w, http.StatusBadRequest, `{"error":"unsupported_grant_type"}`)
	}
}

func (f *fakeSpotify) api(w http.ResponseWriter, r *http.Request) {
	authz := r.Header.Get("Authorization")
	if authz != "Bearer a1" && authz != "Bearer a2" {
		writeJSON(w, http.StatusUnauthorized, `{"error":{"status":401,"message":"Invalid access token"}}`)
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/v1")
	switch {
	case path == "/me/player/currently-playing":
		f.mu.Lock()
		playing := f.playing
		f.mu.Unlock()
		if !playing {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		writeJSON(w, http.StatusOK, `{"is_playing":true,"progress_ms":1000,"item":{"id":"restricted","name":"Song","duration_ms":200000,"artists":[{"name":"Band"}],"album":{"name":"LP","images":[]}}}`)
	case path == "/audio-features/restricted":
		writeJSON(w, http.StatusForbidden, `{"error":{"status":403,"message":"Forbidden"}}`)
	case strings.HasPrefix(path, "/audio-features/"):
		writeJSON(w, http.StatusOK, `{"id":"open","key":7,"mode":0,"tempo":101.5,"time_signature":3,"danceability":0.5,"energy":0.6,"valence":0.7,"acousticness":0.1,"instrumentalness":0.0}`)
	case strings.HasPrefix(path, "/tracks/"):
		id := strings.TrimPrefix(path, "/tracks/")
		writeJSON(w, http.StatusOK, `{"id":"`+id+`","name":"Song","duration_ms":200000,"artists":[{"name":"Band"},{"name":"Guest"}]}`)
	case strings.HasPrefix(path, "/audio-analysis/"):
		writeJSON(w, http.StatusOK, `{"track":{"tempo":101.5},"bars":[]}`)
	case path == "/me":
		writeJSON(w, http.StatusOK, `{"id":"u1","display_name":"Una"}`)
	case path == "/broken":
		writeJSON(w, http.StatusBadGateway, `not json`)
	default:
		writeJSON(w, http.StatusNotFound, `{"error":{"status":404,"message":"Not found"}}`)
	}
}

type testEnv struct {
	spotify *fakeSpotify
	router  *gin.Engine
	clock   *clockwork.FakeClock
}

func newTestEnv(t *testing.T, cfg RouterConfig) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	sp := newFakeSpotify(t)
	clock := clockwork.NewFakeClockAt(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))

	authCfg := auth.NewConfig("cid", "csecret")
	authCfg.RedirectURI = "http://localhost:3000/callback"
	authCfg.TokenURL = sp.server.URL + "/api/token"
	exchanger := auth.NewExchanger(authCfg, auth.WithHTTPClient(sp.server.Client()), auth.WithClock(clock))

	upstream := client.New(
		client.WithHTTPClient(sp.server.Client()),
		client.WithBaseURL(sp.server.URL+"/v1"),
		client.WithRetry(0, time.Millisecond),
	)

	h := NewHandler(exchanger, upstream, clock, nil)
	return &testEnv{spotify: sp, router: NewRouter(cfg, h), clock: clock}
}

func (e *testEnv) do(method, path, token, body string, header ...string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t, RouterConfig{})

	w := env.do(http.MethodGet, "/api/auth/login", "", "")
	require.Equal(t, http.StatusOK, w.Code)

	authURL, ok := decode(t, w)["authUrl"].(string)
	require.True(t, ok)

	u, err := url.Parse(authURL)
	require.NoError(t, err)
	assert.Equal(t, "accounts.spotify.com", u.Host)
	assert.Equal(t, "cid", u.Query().Get("client_id"))
	assert.Equal(t, "code", u.Query().Get("response_type"))
	assert.Equal(t, "true", u.Query().Get("show_dialog"))
	assert.Contains(t, u.Query().Get("scope"), "user-read-currently-playing")

	again := env.do(http.MethodGet, "/api/auth/login", "", "")
	assert.Equal(t, w.Body.String(), again.Body.String())
}

func TestCallback(t *testing.T) {
	env := newTestEnv(t, RouterConfig{})

	w := env.do(http.MethodPost, "/api/auth/callback", "", `{"code":"good"}`)
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	assert.Equal(t, "a1", body["access_token"])
	assert.Equal(t, "r1", body["refresh_token"])
	assert.EqualValues(t, 3600, body["expires_in"])
	assert.EqualValues(t, env.clock.Now().Add(time.Hour).UnixMilli(), body["expires_at"])
	for _, field := range []string{"access_token", "refresh_token", "expires_in", "expires_at"} {
		assert.NotEmpty(t, body[field], field)
	}
}

func TestCallbackRejected(t *testing.T) {
	env := newTestEnv(t, RouterConfig{})

	w := env.do(http.MethodPost, "/api/auth/callback", "", `{"code":"bad"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid authorization code", decode(t, w)["error"])
}

func TestCallbackMissingCode(t *testing.T) {
	env := newTestEnv(t, RouterConfig{})

	w := env.do(http.MethodPost, "/api/auth/callback", "", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRefresh(t *testing.T) {
	env := newTestEnv(t, RouterConfig{})

	w := env.do(http.MethodPost, "/api/auth/refresh", "", `{"refreshToken":"r1"}`)
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	assert.Equal(t, "a2", body["access_token"])
	assert.Equal(t, "r1", body["refresh_token"])
	assert.EqualValues(t, env.clock.Now().Add(time.Hour).UnixMilli(), body["expires_at"])
	for _, field := range []string{"access_token", "refresh_token", "expires_in", "expires_at"} {
		assert.NotEmpty(t, body[field], field)
	}

	w = env.do(http.MethodPost, "/api/auth/refresh", "", `{"refreshToken":"nope"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Refresh token revoked", decode(t, w)["error"])

	w = env.do(http.MethodPost, "/api/auth/refresh", "", `not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSpotifyRoutesRequireToken(t *testing.T) {
	env := newTestEnv(t, RouterConfig{})

	for _, path := range []string{
		"/api/spotify/currently-playing",
		"/api/spotify/audio-features/x",
		"/api/spotify/audio-analysis/x",
		"/api/spotify/tracks/x",
		"/api/spotify/me",
	} {
		w := env.do(http.MethodGet, path, "", "")
		assert.Equal(t, http.StatusUnauthorized, w.Code, path)
		assert.Equal(t, "No token provided", decode(t, w)["error"], path)
	}

	w := env.do(http.MethodGet, "/api/spotify/me", "", "", "Authorization", "Bearer")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestNonBearerSchemeRejected(t *testing.T) {
	env := newTestEnv(t, RouterConfig{})

	for _, header := range []string{"Basic xyz", "Token a1", "a1 a1"} {
		w := env.do(http.MethodGet, "/api/spotify/me", "", "", "Authorization", header)
		assert.Equal(t, http.StatusUnauthorized, w.Code, header)
		assert.Equal(t, "No token provided", decode(t, w)["error"], header)
	}

	w := env.do(http.MethodGet, "/api/spotify/me", "", "", "Authorization", "bearer a1")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCurrentlyPlaying(t *testing.T) {
	env := newTestEnv(t, RouterConfig{})

	w := env.do(http.MethodGet, "/api/spotify/currently-playing", "a1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "null", strings.TrimSpace(w.Body.String()))

	env.spotify.setPlaying(true)
	w = env.do(http.MethodGet, "/api/spotify/currently-playing", "a1", "")
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	assert.Equal(t, true, body["is_playing"])
	track := body["track"].(map[string]interface{})
	assert.Equal(t, "restricted", track["id"])
}

func TestUpstreamStatusReflected(t *testing.T) {
	env := newTestEnv(t, RouterConfig{})

	w := env.do(http.MethodGet, "/api/spotify/currently-playing", "expired", "")
	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Invalid access token", decode(t, w)["error"])
}

func TestAudioFeaturesFetched(t *testing.T) {
	env := newTestEnv(t, RouterConfig{})

	w := env.do(http.MethodGet, "/api/spotify/audio-features/open", "a1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, string(features.OutcomeFetched), w.Header().Get(FeaturesSourceHeader))

	body := decode(t, w)
	assert.EqualValues(t, 7, body["key"])
	assert.EqualValues(t, 101.5, body["tempo"])
	assert.Equal(t, false, body["is_estimated"])
}

func TestAudioFeaturesEstimatedOnForbidden(t *testing.T) {
	env := newTestEnv(t, RouterConfig{})

	w := env.do(http.MethodGet, "/api/spotify/audio-features/restricted", "a1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, string(features.OutcomeEstimated), w.Header().Get(FeaturesSourceHeader))

	want := features.Synthesize("restricted")
	body := decode(t, w)
	assert.Equal(t, true, body["is_estimated"])
	assert.EqualValues(t, want.Key, body["key"])
	assert.EqualValues(t, want.Tempo, body["tempo"])
	assert.EqualValues(t, want.TimeSignature, body["time_signature"])
	assert.Equal(t, "Song", body["track_name"])
	assert.Equal(t, "Band, Guest", body["artist_name"])
	assert.EqualValues(t, 200000, body["duration_ms"])
}

func TestAudioAnalysisAndTrackAndMe(t *testing.T) {
	env := newTestEnv(t, RouterConfig{})

	w := env.do(http.MethodGet, "/api/spotify/audio-analysis/open", "a1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"track":{"tempo":101.5},"bars":[]}`, w.Body.String())

	w = env.do(http.MethodGet, "/api/spotify/tracks/open", "a1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "open", decode(t, w)["id"])

	w = env.do(http.MethodGet, "/api/spotify/me", "a1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Una", decode(t, w)["display_name"])
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, RouterConfig{})

	w := env.do(http.MethodGet, "/api/health", "", "")
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	assert.Equal(t, "OK", body["status"])
	assert.Equal(t, "2024-05-01T12:00:00.000Z", body["timestamp"])
}

func TestCORS(t *testing.T) {
	env := newTestEnv(t, RouterConfig{CORS: CORSConfig{AllowedOrigins: []string{"http://localhost:3000"}}})

	w := env.do(http.MethodGet, "/api/health", "", "", "Origin", "http://localhost:3000")
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))

	w = env.do(http.MethodOptions, "/api/spotify/me", "", "", "Origin", "http://localhost:3000")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), "Authorization")

	w = env.do(http.MethodGet, "/api/health", "", "", "Origin", "http://evil.example")
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))

	dev := newTestEnv(t, RouterConfig{CORS: CORSConfig{AllowAll: true}})
	w = dev.do(http.MethodGet, "/api/health", "", "", "Origin", "http://anything.example")
	assert.Equal(t, "http://anything.example", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRateLimit(t *testing.T) {
	env := newTestEnv(t, RouterConfig{RateLimitRPM: 10})

	// Burst is rpm/10 = 1.
	w := env.do(http.MethodGet, "/api/health", "", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(http.MethodGet, "/api/health", "", "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestRequestID(t *testing.T) {
	env := newTestEnv(t, RouterConfig{})

	w := env.do(http.MethodGet, "/api/health", "", "")
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	w = env.do(http.MethodGet, "/api/health", "", "", "X-Request-ID", "abc")
	assert.Equal(t, "abc", w.Header().Get("X-Request-ID"))
}

func TestBearerToken(t *testing.T) {
	assert.Equal(t, "tok", bearerToken("Bearer tok"))
	assert.Equal(t, "tok", bearerToken("bearer  tok "))
	assert.Equal(t, "", bearerToken("Bearer"))
	assert.Equal(t, "", bearerToken(""))
}
