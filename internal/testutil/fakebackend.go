// Package testutil provides testing utilities.
package testutil

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"todo/internal/service"
)

// FakeBackend is an in-memory implementation of service.Backend for testing.
type FakeBackend struct {
	service.Notifier

	mu      sync.RWMutex
	tasks   []service.Task
	nextID  int64
	session *service.Session
	now     time.Time

	// Error injection for testing
	ListItemsErr  error
	CreateItemErr error
	UpdateItemErr error
	DeleteItemErr error
	GetSessionErr error
	SignInErr     error
	VerifyErr     error
	SignOutErr    error

	// Codes maps email -> accepted verification code.
	Codes map[string]string

	// Calls counts store and session calls by method name.
	Calls map[string]int

	// Block, when set, is waited on by every store call before it resolves.
	Block chan struct{}
}

// NewFakeBackend creates an empty FakeBackend with no session.
func NewFakeBackend() *FakeBackend {
	return &FakeBackend{
		nextID: 1,
		now:    time.Date(2026, 1, 2, 9, 0, 0, 0, time.UTC),
		Codes:  make(map[string]string),
		Calls:  make(map[string]int),
	}
}

// SetSession signs userID in without emitting a change.
func (f *FakeBackend) SetSession(userID, email string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.session = &service.Session{User: service.User{ID: userID, Email: email}}
}

// AddTask seeds a task owned by owner and returns it.
func (f *FakeBackend) AddTask(owner, title string, completed bool) service.Task {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.insert(owner, title, completed)
}

// Tasks returns the stored tasks, newest first.
func (f *FakeBackend) Tasks() []service.Task {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.sorted()
}

// CallCount returns how often method was called.
func (f *FakeBackend) CallCount(method string) int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.Calls[method]
}

func (f *FakeBackend) record(method string) {
	f.mu.Lock()
	f.Calls[method]++
	f.mu.Unlock()
}

func (f *FakeBackend) wait(ctx context.Context) error {
	if f.Block == nil {
		return nil
	}
	select {
	case <-f.Block:
		return nil
	case <-ctx.Done():
		return service.Transport(ctx.Err())
	}
}

func (f *FakeBackend) insert(owner, title string, completed bool) service.Task {
	f.now = f.now.Add(time.Minute)
	t := service.Task{
		ID:        f.nextID,
		Owner:     owner,
		Title:     title,
		Completed: completed,
		CreatedAt: f.now,
		UpdatedAt: f.now,
	}
	f.nextID++
	f.tasks = append(f.tasks, t)
	return t
}

func (f *FakeBackend) sorted() []service.Task {
	out := make([]service.Task, len(f.tasks))
	copy(out, f.tasks)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// ListItems implements service.Store.
func (f *FakeBackend) ListItems(ctx context.Context) ([]service.Task, error) {
	f.record("ListItems")
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	if f.ListItemsErr != nil {
		return nil, f.ListItemsErr
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.session == nil {
		return nil, service.ErrNotSignedIn
	}
	var out []service.Task
	for _, t := range f.sorted() {
		if t.Owner == f.session.User.ID {
			out = append(out, t)
		}
	}
	return out, nil
}

// CreateItem implements service.Store.
func (f *FakeBackend) CreateItem(ctx context.Context, title, owner string) (service.Task, error) {
	f.record("CreateItem")
	if err := f.wait(ctx); err != nil {
		return service.Task{}, err
	}
	if f.CreateItemErr != nil {
		return service.Task{}, f.CreateItemErr
	}
	if strings.TrimSpace(title) == "" {
		return service.Task{}, service.Remote(service.KindValidation, "title must not be empty")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.insert(owner, title, false), nil
}

// UpdateItem implements service.Store.
func (f *FakeBackend) UpdateItem(ctx context.Context, id int64, patch service.Patch) (service.Task, error) {
	f.record("UpdateItem")
	if err := f.wait(ctx); err != nil {
		return service.Task{}, err
	}
	if f.UpdateItemErr != nil {
		return service.Task{}, f.UpdateItemErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, t := range f.tasks {
		if t.ID == id {
			f.tasks[i].Completed = patch.Completed
			f.tasks[i].UpdatedAt = patch.UpdatedAt
			return f.tasks[i], nil
		}
	}
	return service.Task{}, service.Remote(service.KindNotFound, "task not found")
}

// DeleteItem implements service.Store. Deleting a missing task succeeds, as
// a filtered delete does on the real store.
func (f *FakeBackend) DeleteItem(ctx context.Context, id int64) error {
	f.record("DeleteItem")
	if err := f.wait(ctx); err != nil {
		return err
	}
	if f.DeleteItemErr != nil {
		return f.DeleteItemErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, t := range f.tasks {
		if t.ID == id {
			f.tasks = append(f.tasks[:i], f.tasks[i+1:]...)
			return nil
		}
	}
	return nil
}

// GetSession implements service.Sessions.
func (f *FakeBackend) GetSession(ctx context.Context) (*service.Session, error) {
	f.record("GetSession")
	if f.GetSessionErr != nil {
		return nil, f.GetSessionErr
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.session == nil {
		return nil, nil
	}
	s := *f.session
	return &s, nil
}

// SignInWithEmail implements service.Sessions.
func (f *FakeBackend) SignInWithEmail(ctx context.Context, email string) error {
	f.record("SignInWithEmail")
	if f.SignInErr != nil {
		return f.SignInErr
	}
	if !strings.Contains(email, "@") {
		return service.Remote(service.KindValidation, "invalid email address")
	}
	return nil
}

// VerifyEmailCode implements service.Sessions. The user ID is the email's
// local part.
func (f *FakeBackend) VerifyEmailCode(ctx context.Context, email, code string) (*service.Session, error) {
	f.record("VerifyEmailCode")
	if f.VerifyErr != nil {
		return nil, f.VerifyErr
	}
	if want, ok := f.Codes[email]; !ok || want != code {
		return nil, service.Remote(service.KindAuth, "token has expired or is invalid")
	}
	s := &service.Session{User: service.User{ID: strings.SplitN(email, "@", 2)[0], Email: email}}
	f.mu.Lock()
	f.session = s
	f.mu.Unlock()

	f.Notify(service.SignedIn, s)
	return s, nil
}

// SignOut implements service.Sessions.
func (f *FakeBackend) SignOut(ctx context.Context) error {
	f.record("SignOut")
	if f.SignOutErr != nil {
		return f.SignOutErr
	}
	f.mu.Lock()
	f.session = nil
	f.mu.Unlock()

	f.Notify(service.SignedOut, nil)
	return nil
}
