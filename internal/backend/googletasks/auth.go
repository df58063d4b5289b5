package googletasks

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/dgrijalva/jwt-go"
	"golang.org/x/oauth2"

	"todo/internal/service"
)

const (
	// OAuth callback timeout
	oauthCallbackTimeout = 5 * time.Minute

	// Token exchange timeout
	tokenExchangeTimeout = 30 * time.Second

	// Starting port for OAuth callback server
	oauthStartPort = 8085

	// Max port attempts
	oauthMaxPortAttempts = 5
)

// errNoCodes is returned by VerifyEmailCode; Google sign-in completes in the browser.
var errNoCodes = service.Remote(service.KindValidation, "googletasks signs in through the browser, run login without --code")

// GetSession returns the stored session, if any.
func (c *Client) GetSession(ctx context.Context) (*service.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.loaded {
		s, err := c.store.Load()
		if err != nil {
			return nil, err
		}
		c.loaded = true
		c.session = s
	}
	return c.session, nil
}

// SignInWithEmail runs the OAuth loopback flow for email and blocks until the
// browser redirects back, the flow times out or ctx is cancelled.
func (c *Client) SignInWithEmail(ctx context.Context, email string) error {
	port, listener, err := findAvailablePort()
	if err != nil {
		return service.Transport(errors.New("could not bind to local port for OAuth callback"))
	}
	defer listener.Close()

	conf := *c.oauth
	conf.RedirectURL = fmt.Sprintf("http://localhost:%d/callback", port)

	verifier := oauth2.GenerateVerifier()
	state := oauth2.GenerateVerifier()
	authURL := conf.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.S256ChallengeOption(verifier),
		oauth2.SetAuthURLParam("login_hint", strings.TrimSpace(email)),
	)

	fmt.Fprintln(c.Prompt, "Open this URL in your browser:")
	fmt.Fprintln(c.Prompt, authURL)

	codeCh := make(chan string, 1)
	errCh := make(chan error, 1)

	mux := http.NewServeMux()
	mux.HandleFunc("/callback", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("state") != state {
			http.Error(w, "State mismatch", http.StatusBadRequest)
			return
		}
		if reason := q.Get("error"); reason != "" {
			http.Error(w, "Sign-in failed", http.StatusBadRequest)
			errCh <- service.Remote(service.KindAuth, "sign-in denied: "+reason)
			return
		}
		code := q.Get("code")
		if code == "" {
			http.Error(w, "No code in callback", http.StatusBadRequest)
			errCh <- service.Remote(service.KindAuth, "no code in callback")
			return
		}
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, "<html><body><h1>Signed in</h1><p>You may close this window.</p></body></html>")
		codeCh <- code
	})

	server := &http.Server{Handler: mux}
	go func() {
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			errCh <- service.Transport(err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	var code string
	select {
	case code = <-codeCh:
	case err := <-errCh:
		return err
	case <-time.After(oauthCallbackTimeout):
		return service.Remote(service.KindAuth, "oauth callback timed out")
	case <-ctx.Done():
		return service.Transport(ctx.Err())
	}

	exchangeCtx, cancel := context.WithTimeout(ctx, tokenExchangeTimeout)
	defer cancel()

	token, err := conf.Exchange(exchangeCtx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return wrapError(err)
	}

	user, err := userFromToken(token)
	if err != nil {
		return service.Remote(service.KindAuth, err.Error())
	}

	s := &service.Session{User: user, Token: token}
	if err := c.store.Save(s); err != nil {
		return service.Transport(err)
	}

	c.mu.Lock()
	c.loaded = true
	c.session = s
	if !c.fixed {
		c.svc = nil
	}
	c.mu.Unlock()

	c.Notify(service.SignedIn, s)
	return nil
}

// VerifyEmailCode is not supported: there is no emailed code.
func (c *Client) VerifyEmailCode(ctx context.Context, email, code string) (*service.Session, error) {
	return nil, errNoCodes
}

// SignOut forgets the stored session. The grant itself stays valid until the
// user revokes it in their Google account.
func (c *Client) SignOut(ctx context.Context) error {
	s, err := c.GetSession(ctx)
	if err != nil {
		return service.Transport(err)
	}
	if s == nil {
		return nil
	}

	c.mu.Lock()
	c.session = nil
	if !c.fixed {
		c.svc = nil
	}
	c.mu.Unlock()

	err = c.store.Remove()
	c.Notify(service.SignedOut, nil)
	if err != nil {
		return service.Transport(err)
	}
	return nil
}

// userFromToken reads the user from the id_token returned with token. The
// token comes straight from Google's token endpoint over TLS, so its
// signature is not checked again.
func userFromToken(token *oauth2.Token) (service.User, error) {
	raw, _ := token.Extra("id_token").(string)
	if raw == "" {
		return service.User{}, errors.New("token response carries no id_token")
	}

	claims := jwt.MapClaims{}
	if _, _, err := new(jwt.Parser).ParseUnverified(raw, claims); err != nil {
		return service.User{}, fmt.Errorf("invalid id_token: %w", err)
	}

	sub, _ := claims["sub"].(string)
	if sub == "" {
		return service.User{}, errors.New("id_token has no subject")
	}
	email, _ := claims["email"].(string)
	return service.User{ID: sub, Email: email}, nil
}

// findAvailablePort tries to find an available port starting from oauthStartPort.
func findAvailablePort() (int, net.Listener, error) {
	for i := 0; i < oauthMaxPortAttempts; i++ {
		port := oauthStartPort + i
		addr := fmt.Sprintf("localhost:%d", port)
		listener, err := net.Listen("tcp", addr)
		if err == nil {
			return port, listener, nil
		}
	}
	return 0, nil, fmt.Errorf("no available port found")
}
