package auth

import (
	"context"
	"fmt"
	"html"
	"net"
	"net/http"
	"net/url"
	"time"
)

// CallbackResult contains the query of the OAuth redirect.
type CallbackResult struct {
	Code  string
	State string
	Error string
}

// CallbackServer receives the OAuth redirect on the loopback interface.
type CallbackServer struct {
	server   *http.Server
	listener net.Listener
	result   chan CallbackResult
}

// NewCallbackServer listens on the host and port of redirectURI and serves
// its path. A port of 0 picks a free port.
func NewCallbackServer(redirectURI string) (*CallbackServer, error) {
	u, err := url.Parse(redirectURI)
	if err != nil {
		return nil, fmt.Errorf("invalid redirect URI %q: %w", redirectURI, err)
	}
	path := u.Path
	if path == "" {
		path = "/"
	}

	listener, err := net.Listen("tcp", u.Host)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", u.Host, err)
	}

	cs := &CallbackServer{
		listener: listener,
		result:   make(chan CallbackResult, 1),
	}

	mux := http.NewServeMux()
	mux.HandleFunc(path, cs.handleCallback)

	cs.server = &http.Server{
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	return cs, nil
}

// Start begins serving HTTP requests in the background.
func (cs *CallbackServer) Start() {
	go func() {
		_ = cs.server.Serve(cs.listener)
	}()
}

// Wait blocks until a callback is received or ctx is done.
func (cs *CallbackServer) Wait(ctx context.Context) (CallbackResult, error) {
	select {
	case result := <-cs.result:
		return result, nil
	case <-ctx.Done():
		return CallbackResult{}, ctx.Err()
	}
}

// WaitForCode waits for the callback and returns its code after checking
// that it answers the login identified by state.
func (cs *CallbackServer) WaitForCode(ctx context.Context, state string) (string, error) {
	result, err := cs.Wait(ctx)
	if err != nil {
		return "", err
	}
	if result.Error != "" {
		return "", fmt.Errorf("authorization denied: %s", result.Error)
	}
	if result.State != state {
		return "", fmt.Errorf("state mismatch in callback")
	}
	if result.Code == "" {
		return "", fmt.Errorf("callback carried no code")
	}
	return result.Code, nil
}

// Shutdown gracefully shuts down the server.
func (cs *CallbackServer) Shutdown(ctx context.Context) error {
	return cs.server.Shutdown(ctx)
}

// Port returns the port the server is listening on.
func (cs *CallbackServer) Port() int {
	return cs.listener.Addr().(*net.TCPAddr).Port
}

func (cs *CallbackServer) handleCallback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	result := CallbackResult{
		Code:  query.Get("code"),
		State: query.Get("state"),
		Error: query.Get("error"),
	}

	// Non-blocking in case of duplicate callbacks
	select {
	case cs.result <- result:
	default:
	}

	if result.Error != "" {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprintf(w, `<!DOCTYPE html>
<html>
<head><title>rewind: login failed</title></head>
<body>
<h1>Login failed</h1>
<p>Error: %s</p>
<p>You can close this window.</p>
</body>
</html>`, html.EscapeString(result.Error))
		return
	}

	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, `<!DOCTYPE html>
<html>
<head><title>rewind: logged in</title></head>
<body>
<h1>Logged in to Spotify</h1>
<p>You can close this window and return to the terminal.</p>
</body>
</html>`)
}
