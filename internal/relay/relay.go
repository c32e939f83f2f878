// Package relay forwards every request on a local port to another origin,
// so the provider's fixed redirect URI can reach a frontend running
// elsewhere.
package relay

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Relay is a transparent reverse proxy to a single target.
type Relay struct {
	target *url.URL
	proxy  *httputil.ReverseProxy
	logger *zap.Logger
}

// New creates a Relay forwarding to target, e.g. http://localhost:3000.
func New(target string, logger *zap.Logger) (*Relay, error) {
	u, err := url.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("invalid relay target: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid relay target %q: scheme and host required", target)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	r := &Relay{target: u, logger: logger}
	r.proxy = &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(u)
			pr.SetXForwarded()
			// Keep the caller's Host so the target sees the public origin.
			pr.Out.Host = pr.In.Host
		},
		ErrorHandler: r.handleError,
	}
	return r, nil
}

// Target returns the upstream origin.
func (r *Relay) Target() *url.URL {
	return r.target
}

func (r *Relay) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.logger.Info("relay", zap.String("method", req.Method), zap.String("path", req.URL.RequestURI()))
	r.proxy.ServeHTTP(w, req)
}

func (r *Relay) handleError(w http.ResponseWriter, req *http.Request, err error) {
	r.logger.Error("relay error",
		zap.String("method", req.Method),
		zap.String("path", req.URL.RequestURI()),
		zap.String("target", r.target.String()),
		zap.Error(err))
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusInternalServerError)
	_, _ = w.Write([]byte("Proxy error"))
}

// Run listens on addr until ctx is done.
func (r *Relay) Run(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	srv := &http.Server{
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		r.logger.Info("relay listening",
			zap.String("addr", ln.Addr().String()),
			zap.String("target", r.target.String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
