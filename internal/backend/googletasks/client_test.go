package googletasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/dgrijalva/jwt-go"
	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"todo/internal/service"
	"todo/internal/sessionstore"
)

// fakeTasks serves the subset of the Tasks API the client uses for the
// default list.
type fakeTasks struct {
	mu      sync.Mutex
	items   []map[string]any
	next    int
	patches []string
	lists   int
}

func (f *fakeTasks) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	const prefix = "/tasks/v1/lists/@default/tasks"
	if !strings.HasPrefix(r.URL.Path, prefix) {
		http.NotFound(w, r)
		return
	}
	id := strings.TrimPrefix(strings.TrimPrefix(r.URL.Path, prefix), "/")

	switch {
	case r.Method == http.MethodGet && id == "":
		f.lists++
		json.NewEncoder(w).Encode(map[string]any{"items": f.items})
	case r.Method == http.MethodPost && id == "":
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		f.next++
		body["id"] = fmt.Sprintf("g%d", f.next)
		body["updated"] = "2026-03-04T10:00:00.000Z"
		f.items = append([]map[string]any{body}, f.items...)
		json.NewEncoder(w).Encode(body)
	case r.Method == http.MethodPatch:
		data, _ := io.ReadAll(r.Body)
		f.patches = append(f.patches, string(data))
		var body map[string]any
		json.Unmarshal(data, &body)
		for _, it := range f.items {
			if it["id"] == id {
				it["status"] = body["status"]
				json.NewEncoder(w).Encode(it)
				return
			}
		}
		writeError(w, http.StatusNotFound, "Task not found.")
	case r.Method == http.MethodDelete:
		for i, it := range f.items {
			if it["id"] == id {
				f.items = append(f.items[:i], f.items[i+1:]...)
				w.WriteHeader(http.StatusNoContent)
				return
			}
		}
		writeError(w, http.StatusNotFound, "Task not found.")
	default:
		http.Error(w, "unexpected", http.StatusTeapot)
	}
}

func writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"code": code, "message": msg}})
}

func newTestClient(t *testing.T, f *fakeTasks, signedIn bool) *Client {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)

	store := sessionstore.New(filepath.Join(t.TempDir(), "session.json"))
	if signedIn {
		err := store.Save(&service.Session{
			User:  service.User{ID: "sub-1", Email: "u1@example.com"},
			Token: &oauth2.Token{AccessToken: "a", RefreshToken: "r"},
		})
		if err != nil {
			t.Fatalf("save session: %v", err)
		}
	}

	c, err := NewWithHTTPClient(context.Background(), srv.Client(), store, option.WithEndpoint(srv.URL+"/"))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c
}

func seeded() *fakeTasks {
	return &fakeTasks{
		next: 2,
		items: []map[string]any{
			{"id": "g2", "title": "Walk dog", "status": "completed", "updated": "2026-03-02T08:00:00.000Z"},
			{"id": "g1", "title": "Buy milk", "status": "needsAction", "updated": "2026-03-01T08:00:00.000Z"},
		},
	}
}

func TestListItems(t *testing.T) {
	c := newTestClient(t, seeded(), true)

	items, err := c.ListItems(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if items[0].ID != 1 || items[0].Title != "Walk dog" || !items[0].Completed {
		t.Errorf("unexpected first item: %+v", items[0])
	}
	if items[1].ID != 2 || items[1].Completed || items[1].Owner != "sub-1" {
		t.Errorf("unexpected second item: %+v", items[1])
	}
	if items[0].UpdatedAt.IsZero() {
		t.Error("expected updated time parsed")
	}

	again, _ := c.ListItems(context.Background())
	if again[0].ID != 1 || again[1].ID != 2 {
		t.Errorf("expected stable handles, got %d, %d", again[0].ID, again[1].ID)
	}
}

func TestListItems_NotSignedIn(t *testing.T) {
	c := newTestClient(t, seeded(), false)

	_, err := c.ListItems(context.Background())

	if !errors.Is(err, service.ErrNotSignedIn) {
		t.Errorf("expected ErrNotSignedIn, got %v", err)
	}
}

func TestCreateItem(t *testing.T) {
	f := seeded()
	c := newTestClient(t, f, true)

	task, err := c.CreateItem(context.Background(), "Read book", "sub-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if task.Title != "Read book" || task.Completed || task.ID == 0 {
		t.Errorf("unexpected task: %+v", task)
	}
	if len(f.items) != 3 || f.items[0]["title"] != "Read book" {
		t.Errorf("expected task stored first, got %v", f.items)
	}
}

func TestUpdateItem_ResolvesHandlesFirst(t *testing.T) {
	f := seeded()
	c := newTestClient(t, f, true)

	task, err := c.UpdateItem(context.Background(), 2, service.Patch{Completed: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if f.lists != 1 {
		t.Errorf("expected one list call to assign handles, got %d", f.lists)
	}
	if !task.Completed || task.Title != "Buy milk" {
		t.Errorf("unexpected task: %+v", task)
	}
	if !strings.Contains(f.patches[0], `"status":"completed"`) {
		t.Errorf("unexpected patch: %s", f.patches[0])
	}
}

func TestUpdateItem_ReopenClearsCompletion(t *testing.T) {
	f := seeded()
	c := newTestClient(t, f, true)

	if _, err := c.UpdateItem(context.Background(), 1, service.Patch{Completed: false}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(f.patches[0], `"status":"needsAction"`) || !strings.Contains(f.patches[0], `"completed":null`) {
		t.Errorf("unexpected patch: %s", f.patches[0])
	}
}

func TestUpdateItem_UnknownHandle(t *testing.T) {
	c := newTestClient(t, seeded(), true)

	_, err := c.UpdateItem(context.Background(), 42, service.Patch{Completed: true})

	if e := service.AsError(err); e.Kind != service.KindNotFound {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestDeleteItem(t *testing.T) {
	f := seeded()
	c := newTestClient(t, f, true)

	if err := c.DeleteItem(context.Background(), 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.items) != 1 || f.items[0]["id"] != "g1" {
		t.Errorf("expected g2 deleted, got %v", f.items)
	}

	if err := c.DeleteItem(context.Background(), 1); err != nil {
		t.Errorf("expected deleting twice to succeed, got %v", err)
	}
}

func TestVerifyEmailCodeUnsupported(t *testing.T) {
	c := newTestClient(t, seeded(), false)

	_, err := c.VerifyEmailCode(context.Background(), "u1@example.com", "123456")

	if e := service.AsError(err); e.Kind != service.KindValidation {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestSignOut(t *testing.T) {
	c := newTestClient(t, seeded(), true)
	var events []service.SessionEvent
	c.OnSessionChange(func(e service.SessionEvent, _ *service.Session) { events = append(events, e) })

	if err := c.SignOut(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if s, _ := c.GetSession(context.Background()); s != nil {
		t.Errorf("expected no session, got %+v", s)
	}
	if c.store.Exists() {
		t.Error("expected stored session removed")
	}
	if len(events) != 1 || events[0] != service.SignedOut {
		t.Errorf("expected one SignedOut event, got %v", events)
	}
}

func TestUserFromToken(t *testing.T) {
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   "1234567890",
		"email": "u1@example.com",
	}).SignedString([]byte("test"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	token := (&oauth2.Token{AccessToken: "a"}).WithExtra(map[string]any{"id_token": raw})

	user, err := userFromToken(token)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user.ID != "1234567890" || user.Email != "u1@example.com" {
		t.Errorf("unexpected user: %+v", user)
	}

	if _, err := userFromToken(&oauth2.Token{AccessToken: "a"}); err == nil {
		t.Error("expected error without id_token")
	}
}

func TestWrapError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantKind service.ErrorKind
		wantMsg  string
	}{
		{"unauthorized", &googleapi.Error{Code: 401}, service.KindAuth, "token expired or revoked (run: todo login)"},
		{"forbidden", &googleapi.Error{Code: 403}, service.KindAuth, "token expired or revoked (run: todo login)"},
		{"not found", &googleapi.Error{Code: 404}, service.KindNotFound, "not found"},
		{"bad request", &googleapi.Error{Code: 400, Message: "Invalid task title."}, service.KindValidation, "Invalid task title."},
		{"rate limited", &googleapi.Error{Code: 429}, service.KindRemote, "Too Many Requests"},
		{"server error", &googleapi.Error{Code: 503}, service.KindTransport, ""},
		{"refresh rejected", &oauth2.RetrieveError{}, service.KindAuth, "token expired or revoked (run: todo login)"},
		{"timeout", fmt.Errorf("get: %w", context.DeadlineExceeded), service.KindTransport, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := service.AsError(wrapError(tt.err))

			if e.Kind != tt.wantKind {
				t.Errorf("expected kind %v, got %v", tt.wantKind, e.Kind)
			}
			if e.Message != tt.wantMsg {
				t.Errorf("expected message %q, got %q", tt.wantMsg, e.Message)
			}
		})
	}
}
