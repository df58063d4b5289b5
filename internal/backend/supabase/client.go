// Package supabase implements service.Backend on a Supabase project: the
// todos table through PostgREST and email sign-in through GoTrue.
package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/google/uuid"

	"todo/internal/config"
	"todo/internal/service"
	"todo/internal/sessionstore"
)

const (
	// APITimeout is the timeout for API calls.
	APITimeout = 5 * time.Second

	// Table is the PostgREST resource holding the tasks.
	Table = "todos"

	restPath = "/rest/v1/"
	authPath = "/auth/v1/"
)

// Client implements service.Backend against Supabase.
type Client struct {
	service.Notifier

	baseURL string
	anonKey string
	http    *http.Client
	store   *sessionstore.File
	logger  log.Logger
	now     func() time.Time

	mu      sync.Mutex
	loaded  bool
	session *service.Session
}

// New creates a client for the project configured in cfg. The stored
// session, if any, is read lazily on first use.
func New(cfg *config.Config, logger log.Logger) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if _, err := url.Parse(cfg.URL); err != nil {
		return nil, fmt.Errorf("invalid supabase url: %w", err)
	}
	return NewWithHTTPClient(cfg.URL, cfg.AnonKey, http.DefaultClient, sessionstore.New(cfg.SessionPath()), logger), nil
}

// NewWithHTTPClient creates a client with a custom HTTP client (for testing).
func NewWithHTTPClient(baseURL, anonKey string, httpClient *http.Client, store *sessionstore.File, logger log.Logger) *Client {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		anonKey: anonKey,
		http:    httpClient,
		store:   store,
		logger:  log.With(logger, "backend", "supabase"),
		now:     time.Now,
	}
}

// row is the wire shape of a todos row.
type row struct {
	ID         int64     `json:"id"`
	UserID     string    `json:"user_id"`
	Title      string    `json:"title"`
	Completed  bool      `json:"completed"`
	InsertedAt time.Time `json:"inserted_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (r row) task() service.Task {
	return service.Task{
		ID:        r.ID,
		Owner:     r.UserID,
		Title:     r.Title,
		Completed: r.Completed,
		CreatedAt: r.InsertedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

// ListItems returns the signed-in user's tasks, newest first.
func (c *Client) ListItems(ctx context.Context) ([]service.Task, error) {
	s, err := c.authorized(ctx)
	if err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("select", "*")
	q.Set("user_id", "eq."+s.User.ID)
	q.Set("order", "inserted_at.desc")

	var rows []row
	if err := c.rest(ctx, s, http.MethodGet, q, nil, &rows); err != nil {
		return nil, err
	}

	result := make([]service.Task, 0, len(rows))
	for _, r := range rows {
		result = append(result, r.task())
	}
	return result, nil
}

// CreateItem inserts an open task for owner.
func (c *Client) CreateItem(ctx context.Context, title, owner string) (service.Task, error) {
	s, err := c.authorized(ctx)
	if err != nil {
		return service.Task{}, err
	}

	body := []map[string]any{{"title": title, "user_id": owner, "completed": false}}
	var rows []row
	if err := c.rest(ctx, s, http.MethodPost, nil, body, &rows); err != nil {
		return service.Task{}, err
	}
	if len(rows) == 0 {
		return service.Task{}, service.Remote(service.KindRemote, "insert returned no row")
	}
	return rows[0].task(), nil
}

// UpdateItem applies patch to the task with id.
func (c *Client) UpdateItem(ctx context.Context, id int64, patch service.Patch) (service.Task, error) {
	s, err := c.authorized(ctx)
	if err != nil {
		return service.Task{}, err
	}

	q := url.Values{}
	q.Set("id", "eq."+strconv.FormatInt(id, 10))
	body := map[string]any{"completed": patch.Completed, "updated_at": patch.UpdatedAt.UTC().Format(time.RFC3339Nano)}

	var rows []row
	if err := c.rest(ctx, s, http.MethodPatch, q, body, &rows); err != nil {
		return service.Task{}, err
	}
	// Row level security hides rows of other users the same way as missing rows.
	if len(rows) == 0 {
		return service.Task{}, service.Remote(service.KindNotFound, "task not found")
	}
	return rows[0].task(), nil
}

// DeleteItem deletes the task with id. Deleting a missing row succeeds.
func (c *Client) DeleteItem(ctx context.Context, id int64) error {
	s, err := c.authorized(ctx)
	if err != nil {
		return err
	}

	q := url.Values{}
	q.Set("id", "eq."+strconv.FormatInt(id, 10))
	return c.rest(ctx, s, http.MethodDelete, q, nil, nil)
}

func (c *Client) rest(ctx context.Context, s *service.Session, method string, q url.Values, body, out any) error {
	u := c.baseURL + restPath + Table
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	hdr := http.Header{}
	if method != http.MethodGet && method != http.MethodDelete {
		hdr.Set("Prefer", "return=representation")
	}
	return c.do(ctx, s, method, u, hdr, body, out)
}

// do sends one request with the API key and, when s is set, its bearer token.
func (c *Client) do(ctx context.Context, s *service.Session, method, u string, hdr http.Header, body, out any) error {
	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return err
	}
	for k, v := range hdr {
		req.Header[k] = v
	}
	req.Header.Set("apikey", c.anonKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-Id", uuid.NewString())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	httpClient := c.http
	if s != nil && s.Token != nil {
		httpClient = bearerClient(c.http, s.Token)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return wrapError(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return wrapError(err)
	}
	level.Debug(c.logger).Log("method", method, "path", req.URL.Path, "status", resp.StatusCode, "request_id", req.Header.Get("X-Request-Id"))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp.StatusCode, data)
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return service.Transport(fmt.Errorf("invalid response body: %w", err))
	}
	return nil
}
