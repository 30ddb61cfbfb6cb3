/*
redirect.go - Browser redirect login with a loopback callback server

PURPOSE:
  Opens the identity provider in an external browser with a redirect_uri
  pointing at a short-lived local HTTP server. The provider redirects back
  to /auth/callback (or /callback) with the principal in the query string.
  Login returns once that request arrives.

FLOW:
  1. Listen on ListenAddr (port 0 picks a free port)
  2. Open  <IdentityProviderURL>/?redirect_uri=http://<addr>/auth/callback
  3. Wait for ?principal=..., ctx cancellation, or Timeout
  4. Shut the server down

SEE ALSO:
  - identity.go: Provider interface
  - progression/manager.go: Login persists the principal
*/
package identity

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"
)

const (
	DefaultIdentityProviderURL = "https://identity.ic0.app"
	DefaultCallbackAddr        = "127.0.0.1:3001"
	DefaultLoginTimeout        = 5 * time.Minute
)

// RedirectProvider implements Provider with an external browser session.
type RedirectProvider struct {
	IdentityProviderURL string
	ListenAddr          string
	Timeout             time.Duration

	// Open launches the browser at authURL. Required.
	Open func(authURL string) error

	Log logrus.FieldLogger
}

// NewRedirectProvider returns a provider with default endpoints.
func NewRedirectProvider(open func(string) error, log logrus.FieldLogger) *RedirectProvider {
	return &RedirectProvider{
		IdentityProviderURL: DefaultIdentityProviderURL,
		ListenAddr:          DefaultCallbackAddr,
		Timeout:             DefaultLoginTimeout,
		Open:                open,
		Log:                 log,
	}
}

type callbackResult struct {
	principal string
	err       error
}

func (p *RedirectProvider) Login(ctx context.Context) (Identity, error) {
	if p.Open == nil {
		return Anonymous, errors.New("redirect provider: no browser opener configured")
	}
	log := p.Log
	if log == nil {
		log = logrus.StandardLogger()
	}

	addr := p.ListenAddr
	if addr == "" {
		addr = DefaultCallbackAddr
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return Anonymous, fmt.Errorf("listen for callback: %w", err)
	}

	results := make(chan callbackResult, 1)
	var once sync.Once
	deliver := func(r callbackResult) {
		once.Do(func() { results <- r })
	}

	srv := &http.Server{
		Handler:           callbackRouter(deliver),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			deliver(callbackResult{err: fmt.Errorf("callback server: %w", err)})
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	redirectURI := "http://" + ln.Addr().String() + "/auth/callback"
	authURL := strings.TrimRight(p.idpURL(), "/") + "/?redirect_uri=" + url.QueryEscape(redirectURI)
	log.WithField("redirect_uri", redirectURI).Info("starting identity provider login")

	if err := p.Open(authURL); err != nil {
		return Anonymous, fmt.Errorf("open browser: %w", err)
	}

	timeout := p.Timeout
	if timeout <= 0 {
		timeout = DefaultLoginTimeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case r := <-results:
		if r.err != nil {
			return Anonymous, r.err
		}
		log.WithField("principal", r.principal).Info("login completed")
		return Authenticated(r.principal), nil
	case <-timer.C:
		return Anonymous, ErrLoginTimeout
	case <-ctx.Done():
		return Anonymous, ctx.Err()
	}
}

func (p *RedirectProvider) Logout(context.Context) error {
	return nil
}

func (p *RedirectProvider) idpURL() string {
	if p.IdentityProviderURL == "" {
		return DefaultIdentityProviderURL
	}
	return p.IdentityProviderURL
}

func callbackRouter(deliver func(callbackResult)) http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
	}))

	handle := func(w http.ResponseWriter, req *http.Request) {
		q := req.URL.Query()
		if e := q.Get("error"); e != "" {
			deliver(callbackResult{err: fmt.Errorf("%w: %s", ErrLoginRejected, e)})
			http.Error(w, "Login failed: "+e, http.StatusBadRequest)
			return
		}
		principal := strings.TrimSpace(q.Get("principal"))
		if principal == "" {
			http.Error(w, "missing principal", http.StatusBadRequest)
			return
		}
		deliver(callbackResult{principal: principal})
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(callbackPage))
	}
	r.Get("/callback", handle)
	r.Get("/auth/callback", handle)
	return r
}

const callbackPage = `<!DOCTYPE html>
<html>
<head><title>Gami login</title></head>
<body style="font-family: system-ui; text-align: center; margin-top: 80px;">
<h1>Login complete</h1>
<p>You can close this window and return to Gami.</p>
</body>
</html>`
