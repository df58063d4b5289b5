// Package googletasks implements service.Backend on the Google Tasks API,
// using the user's default task list.
package googletasks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	tasks "google.golang.org/api/tasks/v1"

	"todo/internal/config"
	"todo/internal/service"
	"todo/internal/sessionstore"
)

const (
	// DefaultListID is the special ID for the default list.
	DefaultListID = "@default"

	// PageSize is the number of tasks per page.
	PageSize = 100

	// APITimeout is the timeout for API calls.
	APITimeout = 5 * time.Second

	statusCompleted   = "completed"
	statusNeedsAction = "needsAction"
)

// Scopes requested at sign-in. openid and email yield an id_token naming the user.
var Scopes = []string{"https://www.googleapis.com/auth/tasks", "openid", "email"}

// Client implements service.Backend using the Google Tasks API.
type Client struct {
	service.Notifier

	oauth  *oauth2.Config
	store  *sessionstore.File
	logger log.Logger

	// Prompt receives the sign-in URL.
	Prompt io.Writer

	mu      sync.Mutex
	svc     *tasks.Service
	fixed   bool // svc was injected and is never rebuilt
	loaded  bool
	session *service.Session
	handles *handleMap
}

// New creates a Google Tasks client. Requires oauth_client.json; the stored
// session, if any, is read on first use.
func New(ctx context.Context, cfg *config.Config, logger log.Logger) (*Client, error) {
	clientJSON, err := os.ReadFile(cfg.OAuthClientPath())
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", config.OAuthClientFile, err)
	}

	oauthConfig, err := google.ConfigFromJSON(clientJSON, Scopes...)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", config.OAuthClientFile, err)
	}

	return newClient(oauthConfig, sessionstore.New(cfg.SessionPath()), logger), nil
}

// NewWithHTTPClient creates a client with a custom HTTP client (for testing).
// Extra options such as option.WithEndpoint are passed to the tasks service.
func NewWithHTTPClient(ctx context.Context, httpClient *http.Client, store *sessionstore.File, opts ...option.ClientOption) (*Client, error) {
	svc, err := tasks.NewService(ctx, append([]option.ClientOption{option.WithHTTPClient(httpClient)}, opts...)...)
	if err != nil {
		return nil, err
	}
	c := newClient(&oauth2.Config{Scopes: Scopes, Endpoint: google.Endpoint}, store, nil)
	c.svc = svc
	c.fixed = true
	return c, nil
}

func newClient(oauthConfig *oauth2.Config, store *sessionstore.File, logger log.Logger) *Client {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Client{
		oauth:   oauthConfig,
		store:   store,
		logger:  log.With(logger, "backend", "googletasks"),
		Prompt:  os.Stderr,
		handles: newHandleMap(),
	}
}

// current returns the session and a tasks service authorized for it.
func (c *Client) current(ctx context.Context) (*service.Session, *tasks.Service, error) {
	s, err := c.GetSession(ctx)
	if err != nil {
		return nil, nil, service.Transport(err)
	}
	if s == nil || s.Token == nil {
		return nil, nil, service.ErrNotSignedIn
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.svc != nil {
		return s, c.svc, nil
	}

	// The service outlives this call, so it must not inherit ctx's deadline.
	base := context.WithoutCancel(ctx)
	src := &savingSource{
		c:    c,
		user: s.User,
		last: s.Token.AccessToken,
		src:  c.oauth.TokenSource(base, s.Token),
	}
	svc, err := tasks.NewService(base, option.WithHTTPClient(oauth2.NewClient(base, src)))
	if err != nil {
		return nil, nil, service.Transport(fmt.Errorf("failed to create tasks service: %w", err))
	}
	c.svc = svc
	return s, svc, nil
}

// ListItems returns every task of the default list in API order, including
// completed and hidden ones.
func (c *Client) ListItems(ctx context.Context) ([]service.Task, error) {
	s, svc, err := c.current(ctx)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	var result []service.Task
	err = svc.Tasks.List(DefaultListID).
		MaxResults(PageSize).
		ShowCompleted(true).
		ShowHidden(true).
		ShowDeleted(false).
		Pages(ctx, func(resp *tasks.Tasks) error {
			for _, t := range resp.Items {
				result = append(result, c.toTask(t, s.User.ID))
			}
			return nil
		})
	if err != nil {
		return nil, wrapError(err)
	}

	c.handles.markListed()
	return result, nil
}

// CreateItem inserts an open task at the top of the default list.
func (c *Client) CreateItem(ctx context.Context, title, owner string) (service.Task, error) {
	_, svc, err := c.current(ctx)
	if err != nil {
		return service.Task{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	t, err := svc.Tasks.Insert(DefaultListID, &tasks.Task{Title: title, Status: statusNeedsAction}).Context(ctx).Do()
	if err != nil {
		return service.Task{}, wrapError(err)
	}
	return c.toTask(t, owner), nil
}

// UpdateItem sets the completion status of the task with id.
func (c *Client) UpdateItem(ctx context.Context, id int64, patch service.Patch) (service.Task, error) {
	s, svc, err := c.current(ctx)
	if err != nil {
		return service.Task{}, err
	}
	taskID, ok, err := c.resolve(ctx, id)
	if err != nil {
		return service.Task{}, err
	}
	if !ok {
		return service.Task{}, service.Remote(service.KindNotFound, "task not found")
	}

	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	body := &tasks.Task{Status: statusCompleted}
	if !patch.Completed {
		// Reopening must also clear the completion date.
		body = &tasks.Task{Status: statusNeedsAction, NullFields: []string{"Completed"}}
	}
	t, err := svc.Tasks.Patch(DefaultListID, taskID, body).Context(ctx).Do()
	if err != nil {
		return service.Task{}, wrapError(err)
	}
	return c.toTask(t, s.User.ID), nil
}

// DeleteItem deletes the task with id. Unknown or already deleted tasks succeed.
func (c *Client) DeleteItem(ctx context.Context, id int64) error {
	_, svc, err := c.current(ctx)
	if err != nil {
		return err
	}
	taskID, ok, err := c.resolve(ctx, id)
	if err != nil || !ok {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	err = svc.Tasks.Delete(DefaultListID, taskID).Context(ctx).Do()
	if e := wrapError(err); e != nil && service.AsError(e).Kind != service.KindNotFound {
		return e
	}
	c.handles.forget(id)
	return nil
}

// resolve maps a handle to its Google task ID. Handles are assigned while
// listing, so the list is fetched once if that has not happened yet.
func (c *Client) resolve(ctx context.Context, id int64) (string, bool, error) {
	if taskID, ok := c.handles.taskID(id); ok || c.handles.listed() {
		return taskID, ok, nil
	}
	if _, err := c.ListItems(ctx); err != nil {
		return "", false, err
	}
	taskID, ok := c.handles.taskID(id)
	return taskID, ok, nil
}

func (c *Client) toTask(t *tasks.Task, owner string) service.Task {
	updated, _ := time.Parse(time.RFC3339, t.Updated)
	return service.Task{
		ID:        c.handles.handle(t.Id),
		Owner:     owner,
		Title:     t.Title,
		Completed: t.Status == statusCompleted,
		UpdatedAt: updated,
	}
}

// savingSource stores every refreshed token together with the session user.
type savingSource struct {
	c    *Client
	user service.User
	src  oauth2.TokenSource

	mu   sync.Mutex
	last string
}

func (s *savingSource) Token() (*oauth2.Token, error) {
	tok, err := s.src.Token()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	changed := tok.AccessToken != s.last
	s.last = tok.AccessToken
	s.mu.Unlock()
	if !changed {
		return tok, nil
	}

	session := &service.Session{User: s.user, Token: tok}
	if err := s.c.store.Save(session); err != nil {
		level.Error(s.c.logger).Log("msg", "failed to save refreshed token", "err", err)
	}
	s.c.mu.Lock()
	s.c.session = session
	s.c.mu.Unlock()
	s.c.Notify(service.TokenRefreshed, session)
	return tok, nil
}

// wrapError converts API errors into typed errors with user-friendly messages.
func wrapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return service.Transport(context.DeadlineExceeded)
	}

	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		return service.Remote(service.KindAuth, "token expired or revoked (run: todo login)")
	}

	var ge *googleapi.Error
	if !errors.As(err, &ge) {
		return service.Transport(err)
	}
	switch ge.Code {
	case http.StatusUnauthorized, http.StatusForbidden:
		return service.Remote(service.KindAuth, "token expired or revoked (run: todo login)")
	case http.StatusNotFound:
		return service.Remote(service.KindNotFound, "not found")
	case http.StatusBadRequest:
		return service.Remote(service.KindValidation, message(ge))
	case http.StatusConflict:
		return service.Remote(service.KindConflict, message(ge))
	}
	if ge.Code >= 500 {
		return service.Transport(err)
	}
	return service.Remote(service.KindRemote, message(ge))
}

func message(ge *googleapi.Error) string {
	if ge.Message != "" {
		return ge.Message
	}
	return http.StatusText(ge.Code)
}
