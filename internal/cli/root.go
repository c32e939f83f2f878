package cli

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tessro/sheetplayer/internal/config"
	apperrors "github.com/tessro/sheetplayer/internal/errors"
	"github.com/tessro/sheetplayer/internal/logging"
	"github.com/tessro/sheetplayer/internal/poller"
	"github.com/tessro/sheetplayer/internal/session"
	"github.com/tessro/sheetplayer/internal/spotify/auth"
)

var (
	cfgFile string
	jsonOut bool
	verbose bool

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "sheetplayer",
	Short: "Show the key, tempo and meter of what Spotify is playing",
	Long: `Sheetplayer follows your Spotify playback and shows the musical
descriptor of the current track: key signature, tempo, meter and feel.

Run 'sheetplayer serve' for the API service that holds the Spotify client
secret, then 'sheetplayer auth login' and 'sheetplayer ui' on the client.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig()
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default: ~/.sheetplayerrc)")
	rootCmd.PersistentFlags().BoolVarP(&jsonOut, "json", "j", false, "output as JSON")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

func initConfig() error {
	var err error
	if cfgFile != "" {
		cfg, err = config.LoadFrom(cfgFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return apperrors.WithSuggestion(
			fmt.Errorf("%w: %v", apperrors.ErrInvalidConfig, err),
			"Fix the values above or run 'sheetplayer config show' to inspect them")
	}

	return nil
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, apperrors.Format(err))
		os.Exit(1)
	}
}

// Config returns the loaded configuration.
func Config() *config.Config {
	return cfg
}

// JSONOutput returns true if JSON output is requested.
func JSONOutput() bool {
	return jsonOut
}

// Verbose returns true if verbose output is requested.
func Verbose() bool {
	return verbose
}

// newLogger builds the logger for client-side commands, which only report
// warnings unless --verbose is set. Full-screen commands pass quiet.
func newLogger(quiet bool) *zap.Logger {
	logCfg := cfg.Log
	if !verbose {
		logCfg.Level = "warn"
	}
	logger, err := logging.New(logCfg, logging.Options{
		Development: cfg.IsDevelopment(),
		Verbose:     verbose,
		Quiet:       quiet,
	})
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

// newSession opens the token file and connects to the API service.
func newSession(logger *zap.Logger) (*session.Session, error) {
	kv, err := auth.NewFileKV(cfg.Client.TokenFile)
	if err != nil {
		return nil, fmt.Errorf("failed to open token file: %w", err)
	}

	backend := session.NewBackend(cfg.Client.APIURL, session.WithBackendLogger(logger))
	store := auth.NewTokenStore(kv)
	return session.New(backend, store, session.WithLogger(logger)), nil
}

// newPoller creates a poller over sess using the configured interval.
func newPoller(sess *session.Session, logger *zap.Logger) *poller.Poller {
	return poller.New(sess,
		poller.WithInterval(time.Duration(cfg.Client.PollInterval)*time.Millisecond),
		poller.WithLogger(logger),
	)
}

// callbackURI is the redirect URI with its port replaced by the
// configured callback port.
func callbackURI() (string, error) {
	u, err := url.Parse(cfg.Spotify.RedirectURI)
	if err != nil {
		return "", err
	}
	if cfg.Client.CallbackPort > 0 {
		u.Host = net.JoinHostPort(u.Hostname(), strconv.Itoa(cfg.Client.CallbackPort))
	}
	return u.String(), nil
}
