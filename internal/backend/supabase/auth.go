package supabase

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-kit/kit/log/level"
	"golang.org/x/oauth2"

	"todo/internal/service"
)

// errSessionExpired is returned when the refresh token was rejected.
var errSessionExpired = service.Remote(service.KindAuth, "session expired (run: todo login)")

// tokenResponse is the GoTrue session payload returned by verify and token.
type tokenResponse struct {
	AccessToken  string       `json:"access_token"`
	TokenType    string       `json:"token_type"`
	ExpiresIn    int64        `json:"expires_in"`
	ExpiresAt    int64        `json:"expires_at"`
	RefreshToken string       `json:"refresh_token"`
	User         service.User `json:"user"`
}

func (r tokenResponse) token(now time.Time) *oauth2.Token {
	tok := &oauth2.Token{
		AccessToken:  r.AccessToken,
		TokenType:    r.TokenType,
		RefreshToken: r.RefreshToken,
	}
	switch {
	case r.ExpiresAt > 0:
		tok.Expiry = time.Unix(r.ExpiresAt, 0).UTC()
	case r.ExpiresIn > 0:
		tok.Expiry = now.Add(time.Duration(r.ExpiresIn) * time.Second).UTC()
	}
	return tok
}

// refresher exchanges a refresh token for a new session token.
type refresher struct {
	c            *Client
	refreshToken string
}

func (r *refresher) Token() (*oauth2.Token, error) {
	if r.refreshToken == "" {
		return nil, errSessionExpired
	}
	var resp tokenResponse
	u := r.c.baseURL + authPath + "token?grant_type=refresh_token"
	body := map[string]string{"refresh_token": r.refreshToken}
	if err := r.c.do(context.Background(), nil, http.MethodPost, u, nil, body, &resp); err != nil {
		return nil, err
	}
	return resp.token(r.c.now()), nil
}

// bearerClient returns a client that authorizes requests with tok.
func bearerClient(base *http.Client, tok *oauth2.Token) *http.Client {
	return &http.Client{
		Transport: &oauth2.Transport{
			Source: oauth2.StaticTokenSource(tok),
			Base:   base.Transport,
		},
		Timeout: base.Timeout,
	}
}

// GetSession returns the current session, reading the stored one on first use.
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

// authorized returns the current session with a usable access token,
// refreshing it first when it has expired.
func (c *Client) authorized(ctx context.Context) (*service.Session, error) {
	cur, err := c.GetSession(ctx)
	if err != nil {
		return nil, service.Transport(err)
	}
	if cur == nil {
		return nil, service.ErrNotSignedIn
	}
	if cur.Token == nil || cur.Token.Valid() {
		return cur, nil
	}

	src := oauth2.ReuseTokenSource(cur.Token, &refresher{c: c, refreshToken: cur.Token.RefreshToken})
	tok, err := src.Token()
	if err != nil {
		if e := service.AsError(err); e.Kind == service.KindAuth || e.Kind == service.KindValidation {
			level.Debug(c.logger).Log("msg", "refresh rejected, signing out", "err", err)
			c.clear()
			return nil, errSessionExpired
		}
		return nil, err
	}

	updated := &service.Session{User: cur.User, Token: tok}
	c.mu.Lock()
	if c.session != cur {
		// Someone else replaced the session meanwhile.
		s := c.session
		c.mu.Unlock()
		if s == nil {
			return nil, service.ErrNotSignedIn
		}
		return s, nil
	}
	c.session = updated
	c.mu.Unlock()

	if err := c.store.Save(updated); err != nil {
		level.Error(c.logger).Log("msg", "failed to save refreshed session", "err", err)
	}
	c.Notify(service.TokenRefreshed, updated)
	return updated, nil
}

// SignInWithEmail sends a one-time sign-in code to email.
func (c *Client) SignInWithEmail(ctx context.Context, email string) error {
	body := map[string]any{"email": strings.TrimSpace(email), "create_user": true}
	return c.do(ctx, nil, http.MethodPost, c.baseURL+authPath+"otp", nil, body, nil)
}

// VerifyEmailCode exchanges the emailed code for a session and stores it.
func (c *Client) VerifyEmailCode(ctx context.Context, email, code string) (*service.Session, error) {
	body := map[string]string{
		"type":  "email",
		"email": strings.TrimSpace(email),
		"token": strings.TrimSpace(code),
	}
	var resp tokenResponse
	if err := c.do(ctx, nil, http.MethodPost, c.baseURL+authPath+"verify", nil, body, &resp); err != nil {
		return nil, err
	}
	if resp.User.ID == "" || resp.AccessToken == "" {
		return nil, service.Remote(service.KindAuth, "verification returned no session")
	}

	s := &service.Session{User: resp.User, Token: resp.token(c.now())}
	if err := c.store.Save(s); err != nil {
		return nil, service.Transport(err)
	}

	c.mu.Lock()
	c.loaded = true
	c.session = s
	c.mu.Unlock()

	c.Notify(service.SignedIn, s)
	return s, nil
}

// SignOut revokes the session remotely and forgets it locally. A token the
// server no longer accepts is still forgotten.
func (c *Client) SignOut(ctx context.Context) error {
	s, err := c.GetSession(ctx)
	if err != nil {
		return service.Transport(err)
	}
	if s == nil {
		return nil
	}

	err = c.do(ctx, s, http.MethodPost, c.baseURL+authPath+"logout?scope=local", nil, nil, nil)
	if err != nil {
		switch service.AsError(err).Kind {
		case service.KindAuth, service.KindNotFound:
			level.Debug(c.logger).Log("msg", "remote sign-out rejected", "err", err)
		default:
			return err
		}
	}

	return c.clear()
}

// clear drops the session, removes the stored copy and notifies listeners.
func (c *Client) clear() error {
	c.mu.Lock()
	c.loaded = true
	c.session = nil
	c.mu.Unlock()

	err := c.store.Remove()
	c.Notify(service.SignedOut, nil)
	if err != nil {
		return service.Transport(err)
	}
	return nil
}
