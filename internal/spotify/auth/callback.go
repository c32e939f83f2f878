package auth

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"
)

// CallbackResult is what the provider sent to the redirect URI.
type CallbackResult struct {
	Code  string
	Error string
}

// Err returns the provider's refusal as an error, or nil when a code arrived.
func (r CallbackResult) Err() error {
	if r.Error == "" {
		return nil
	}
	return fmt.Errorf("authorization denied: %s", r.Error)
}

// CallbackServer receives the provider's redirect during CLI login. Only
// the first request to the redirect path is recorded.
type CallbackServer struct {
	ln   net.Listener
	srv  *http.Server
	once sync.Once
	got  chan CallbackResult
}

// NewCallbackServer listens on the host and port of redirectURI and serves
// its path. A port of 0 picks a free port.
func NewCallbackServer(redirectURI string) (*CallbackServer, error) {
	u, err := url.Parse(redirectURI)
	if err != nil {
		return nil, fmt.Errorf("invalid redirect uri: %w", err)
	}
	if u.Host == "" {
		return nil, errors.New("invalid redirect uri: missing host")
	}

	ln, err := net.Listen("tcp", u.Host)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", u.Host, err)
	}

	path := u.Path
	if path == "" {
		path = "/"
	}

	cs := &CallbackServer{ln: ln, got: make(chan CallbackResult, 1)}
	mux := http.NewServeMux()
	mux.HandleFunc("GET "+path, cs.receive)
	cs.srv = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      10 * time.Second,
	}
	return cs, nil
}

// Start serves in the background until Shutdown.
func (cs *CallbackServer) Start() {
	go func() { _ = cs.srv.Serve(cs.ln) }()
}

// Wait returns the first callback, or ctx's error if none arrives in time.
func (cs *CallbackServer) Wait(ctx context.Context) (CallbackResult, error) {
	select {
	case <-ctx.Done():
		return CallbackResult{}, ctx.Err()
	case res := <-cs.got:
		return res, nil
	}
}

// Shutdown stops the listener.
func (cs *CallbackServer) Shutdown(ctx context.Context) error {
	return cs.srv.Shutdown(ctx)
}

// Port is the bound TCP port.
func (cs *CallbackServer) Port() int {
	return cs.ln.Addr().(*net.TCPAddr).Port
}

func (cs *CallbackServer) receive(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	res := CallbackResult{Code: q.Get("code"), Error: q.Get("error")}
	if res.Code == "" && res.Error == "" {
		res.Error = "missing authorization code"
	}

	cs.once.Do(func() { cs.got <- res })

	status, heading, detail := http.StatusOK, "sheetplayer is connected",
		"Return to the terminal. This tab can be closed."
	if res.Error != "" {
		status, heading, detail = http.StatusBadRequest, "sheetplayer could not log in", res.Error
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	fmt.Fprintf(w, "<!DOCTYPE html>\n<html><head><title>sheetplayer</title></head>"+
		"<body><h1>%s</h1><p>%s</p></body></html>\n",
		html.EscapeString(heading), html.EscapeString(detail))
}
