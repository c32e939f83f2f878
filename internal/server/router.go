package server

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RouterConfig holds middleware settings for NewRouter.
type RouterConfig struct {
	CORS         CORSConfig
	RateLimitRPM int
	Logger       *zap.Logger
}

// NewRouter wires the API routes and middleware under /api.
func NewRouter(cfg RouterConfig, h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogger(cfg.Logger))
	r.Use(CORS(cfg.CORS))
	if limiter := NewRateLimiter(cfg.RateLimitRPM); limiter != nil {
		r.Use(limiter.Handler())
	}

	api := r.Group("/api")
	{
		authGroup := api.Group("/auth")
		{
			authGroup.GET("/login", h.Login)
			authGroup.POST("/callback", h.Callback)
			authGroup.POST("/refresh", h.Refresh)
		}

		spotify := api.Group("/spotify", RequireBearer())
		{
			spotify.GET("/currently-playing", h.CurrentlyPlaying)
			spotify.GET("/audio-features/:id", h.AudioFeatures)
			spotify.GET("/audio-analysis/:id", h.AudioAnalysis)
			spotify.GET("/tracks/:id", h.Track)
			spotify.GET("/me", h.Me)
		}

		api.GET("/health", h.Health)
	}

	return r
}
