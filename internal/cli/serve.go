package cli

import (
	"fmt"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tessro/sheetplayer/internal/logging"
	"github.com/tessro/sheetplayer/internal/relay"
	"github.com/tessro/sheetplayer/internal/server"
	"github.com/tessro/sheetplayer/internal/spotify/auth"
	"github.com/tessro/sheetplayer/internal/spotify/client"
)

var (
	servePort      int
	serveWithRelay bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the API service",
	Long: `Run the HTTP API service that holds the Spotify client secret.

Routes:
  GET  /api/auth/login                    consent URL
  POST /api/auth/callback                 exchange an authorization code
  POST /api/auth/refresh                  refresh an access token
  GET  /api/spotify/currently-playing     current playback
  GET  /api/spotify/audio-features/:id    musical descriptor
  GET  /api/spotify/audio-analysis/:id    raw analysis
  GET  /api/spotify/tracks/:id            track lookup
  GET  /api/spotify/me                    current user
  GET  /api/health                        liveness

With --relay the callback relay runs in the same process.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "listen port (default from config or PORT)")
	serveCmd.Flags().BoolVar(&serveWithRelay, "relay", false, "also run the callback relay")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	if err := cfg.Spotify.RequireCredentials(); err != nil {
		return err
	}

	logger, err := logging.New(cfg.Log, logging.Options{
		Development: cfg.IsDevelopment(),
		Verbose:     verbose,
	})
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	port := cfg.Server.Port
	if servePort != 0 {
		port = servePort
	}
	httpServer := newAPIServer(logger)
	addr := ":" + strconv.Itoa(port)

	if !serveWithRelay {
		return httpServer.Run(ctx, addr)
	}

	rl, err := relay.New(cfg.Relay.Target, logger.Named("relay"))
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return httpServer.Run(gctx, addr) })
	g.Go(func() error { return rl.Run(gctx, cfg.Relay.Listen) })
	return g.Wait()
}

func newAPIServer(logger *zap.Logger) *server.HTTPServer {
	authCfg := auth.NewConfig(cfg.Spotify.ClientID, cfg.Spotify.ClientSecret)
	authCfg.RedirectURI = cfg.Spotify.RedirectURI
	exchanger := auth.NewExchanger(authCfg, auth.WithLogger(logger.Named("auth")))

	upstream := client.New(
		client.WithBaseURL(cfg.Spotify.APIBaseURL),
		client.WithRetry(cfg.Spotify.MaxRetries, time.Duration(cfg.Spotify.RetryBackoffMS)*time.Millisecond),
		client.WithLogger(logger.Named("spotify")),
	)

	handler := server.NewHandler(exchanger, upstream, nil, logger)
	router := server.NewRouter(server.RouterConfig{
		CORS: server.CORSConfig{
			AllowedOrigins: cfg.Server.Origins(),
			AllowAll:       cfg.IsDevelopment(),
		},
		RateLimitRPM: cfg.Server.RateLimitRPM,
		Logger:       logger,
	}, handler)

	return server.NewHTTPServer(router, logger)
}

// relayCmd runs the callback relay on its own.
var relayCmd = &cobra.Command{
	Use:   "relay",
	Short: "Run the callback relay",
	Long: `Forward every request on the relay address to the frontend target,
so a fixed redirect URI such as http://127.0.0.1:8888/callback reaches a
frontend on another port.`,
	RunE: runRelay,
}

var (
	relayListen string
	relayTarget string
)

func init() {
	relayCmd.Flags().StringVar(&relayListen, "listen", "", "listen address (default from config)")
	relayCmd.Flags().StringVar(&relayTarget, "target", "", "target origin (default from config)")
	rootCmd.AddCommand(relayCmd)
}

func runRelay(cmd *cobra.Command, args []string) error {
	listen := cfg.Relay.Listen
	if relayListen != "" {
		listen = relayListen
	}
	target := cfg.Relay.Target
	if relayTarget != "" {
		target = relayTarget
	}

	logger, err := logging.New(cfg.Log, logging.Options{
		Development: cfg.IsDevelopment(),
		Verbose:     verbose,
	})
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	rl, err := relay.New(target, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if !JSONOutput() {
		fmt.Printf("Relaying %s -> %s\n", listen, rl.Target())
	}
	return rl.Run(ctx, listen)
}
