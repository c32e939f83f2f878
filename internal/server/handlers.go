package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/tessro/sheetplayer/internal/core"
	apperrors "github.com/tessro/sheetplayer/internal/errors"
	"github.com/tessro/sheetplayer/internal/features"
	"github.com/tessro/sheetplayer/internal/spotify/auth"
	"github.com/tessro/sheetplayer/internal/spotify/client"
)

// Authenticator performs the OAuth grants.
type Authenticator interface {
	AuthorizationURL() string
	ExchangeCode(ctx context.Context, code string) (*auth.TokenRecord, error)
	Refresh(ctx context.Context, refreshToken string) (*auth.TokenRecord, error)
}

// Upstream is the provider API.
type Upstream interface {
	CurrentlyPlaying(ctx context.Context, token string) (*core.PlaybackSnapshot, error)
	ResolveAudioFeatures(ctx context.Context, token, id string) features.Result
	AudioAnalysis(ctx context.Context, token, id string) (json.RawMessage, error)
	Track(ctx context.Context, token, id string) (*core.TrackRef, error)
	CurrentUser(ctx context.Context, token string) (*client.User, error)
}

// FeaturesSourceHeader reports which strategy produced an audio-features
// response.
const FeaturesSourceHeader = "X-Audio-Features-Source"

// Handler serves the API routes.
type Handler struct {
	auth     Authenticator
	upstream Upstream
	clock    clockwork.Clock
	logger   *zap.Logger
}

// NewHandler creates a Handler.
func NewHandler(a Authenticator, u Upstream, clock clockwork.Clock, logger *zap.Logger) *Handler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{auth: a, upstream: u, clock: clock, logger: logger}
}

// Login returns the provider consent URL.
func (h *Handler) Login(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"authUrl": h.auth.AuthorizationURL()})
}

// Callback exchanges an authorization code for tokens.
func (h *Handler) Callback(c *gin.Context) {
	var req struct {
		Code string `json:"code"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Code) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Authorization code is required"})
		return
	}

	rec, err := h.auth.ExchangeCode(c.Request.Context(), req.Code)
	if err != nil {
		h.respondError(c, err, "Authentication failed")
		return
	}
	c.JSON(http.StatusOK, rec)
}

// Refresh exchanges a refresh token for a new access token.
func (h *Handler) Refresh(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Refresh token is required"})
		return
	}

	rec, err := h.auth.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		h.respondError(c, err, "Token refresh failed")
		return
	}
	c.JSON(http.StatusOK, rec)
}

// CurrentlyPlaying returns the playback snapshot, or null.
func (h *Handler) CurrentlyPlaying(c *gin.Context) {
	snap, err := h.upstream.CurrentlyPlaying(c.Request.Context(), c.GetString(accessTokenKey))
	if err != nil {
		h.respondError(c, err, "Failed to fetch currently playing track")
		return
	}
	if snap == nil {
		c.JSON(http.StatusOK, nil)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// AudioFeatures returns the descriptor for a track, estimated if the
// provider refuses access.
func (h *Handler) AudioFeatures(c *gin.Context) {
	id := c.Param("id")
	res := h.upstream.ResolveAudioFeatures(c.Request.Context(), c.GetString(accessTokenKey), id)
	if res.Err != nil {
		h.respondError(c, res.Err, "Failed to fetch audio features")
		return
	}
	if res.Outcome == features.OutcomeEstimated {
		h.logger.Info("serving estimated audio features", zap.String("track_id", id))
	}
	c.Header(FeaturesSourceHeader, string(res.Outcome))
	c.JSON(http.StatusOK, res.Descriptor)
}

// AudioAnalysis passes the provider's analysis through.
func (h *Handler) AudioAnalysis(c *gin.Context) {
	raw, err := h.upstream.AudioAnalysis(c.Request.Context(), c.GetString(accessTokenKey), c.Param("id"))
	if err != nil {
		h.respondError(c, err, "Failed to fetch audio analysis")
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", raw)
}

// Track returns track metadata.
func (h *Handler) Track(c *gin.Context) {
	t, err := h.upstream.Track(c.Request.Context(), c.GetString(accessTokenKey), c.Param("id"))
	if err != nil {
		h.respondError(c, err, "Failed to fetch track")
		return
	}
	c.JSON(http.StatusOK, t)
}

// Me returns the user's profile.
func (h *Handler) Me(c *gin.Context) {
	u, err := h.upstream.CurrentUser(c.Request.Context(), c.GetString(accessTokenKey))
	if err != nil {
		h.respondError(c, err, "Failed to fetch user profile")
		return
	}
	c.JSON(http.StatusOK, u)
}

// Health reports liveness.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "OK",
		"timestamp": h.clock.Now().UTC().Format("2006-01-02T15:04:05.000Z07:00"),
	})
}

// respondError reflects the provider's status and message. Errors without
// a status become 500 with fallback as the message.
func (h *Handler) respondError(c *gin.Context, err error, fallback string) {
	status := apperrors.StatusOf(err)
	if status < 400 {
		status = http.StatusInternalServerError
	}

	msg := errorMessage(err, fallback)

	if status >= 500 {
		h.logger.Error(fallback, zap.Int("status", status), zap.Error(err))
	} else {
		h.logger.Warn(fallback, zap.Int("status", status), zap.Error(err))
	}
	c.JSON(status, gin.H{"error": msg})
}

func errorMessage(err error, fallback string) string {
	var (
		upErr      *apperrors.UpstreamError
		exchErr    *apperrors.AuthExchangeError
		refreshErr *apperrors.RefreshError
	)
	switch {
	case errors.As(err, &upErr):
		if upErr.Message != "" {
			return upErr.Message
		}
	case errors.As(err, &exchErr):
		if exchErr.Description != "" || exchErr.Code != "" {
			return exchErr.Message()
		}
	case errors.As(err, &refreshErr):
		if refreshErr.Description != "" || refreshErr.Code != "" {
			return refreshErr.Message()
		}
	case errors.Is(err, apperrors.ErrNoToken):
		return "No token provided"
	case errors.Is(err, apperrors.ErrTrackNotFound):
		return "Track not found"
	}
	return fallback
}
