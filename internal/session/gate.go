// Package session decides whether the task view or the sign-in flow is shown.
package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"

	"todo/internal/service"
)

// Status is the gate's view of the session.
type Status int

const (
	// Unknown is the state before the current session has been resolved.
	Unknown Status = iota

	// Anonymous means nobody is signed in.
	Anonymous

	// Authenticated means Session() returns the signed-in user.
	Authenticated
)

func (s Status) String() string {
	switch s {
	case Unknown:
		return "unknown"
	case Anonymous:
		return "anonymous"
	case Authenticated:
		return "authenticated"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Watcher is told about every status change.
type Watcher func(status Status, s *service.Session)

// Gate tracks the current session for the lifetime of the application.
type Gate struct {
	sessions service.Sessions
	logger   log.Logger

	mu          sync.Mutex
	status      Status
	current     *service.Session
	notified    bool
	unsubscribe func()
	watchers    []Watcher
}

// NewGate creates a gate in the Unknown state.
func NewGate(sessions service.Sessions, logger log.Logger) *Gate {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Gate{
		sessions: sessions,
		logger:   log.With(logger, "component", "gate"),
	}
}

// Watch registers w. It is called with the status in effect at the time of
// every change, outside the gate's lock.
func (g *Gate) Watch(w Watcher) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.watchers = append(g.watchers, w)
}

// Start subscribes to session changes and resolves the current session.
// On error the gate stays Unknown and the subscription is released.
func (g *Gate) Start(ctx context.Context) error {
	g.mu.Lock()
	if g.unsubscribe != nil {
		g.mu.Unlock()
		return fmt.Errorf("session gate already started")
	}
	g.unsubscribe = g.sessions.OnSessionChange(g.onChange)
	g.mu.Unlock()

	s, err := g.sessions.GetSession(ctx)
	if err != nil {
		g.Close()
		return err
	}

	g.mu.Lock()
	if g.notified {
		// A change arrived while GetSession was in flight and is newer.
		g.mu.Unlock()
		return nil
	}
	g.mu.Unlock()
	g.set(s)
	return nil
}

// Close releases the subscription. It is safe to call more than once.
func (g *Gate) Close() {
	g.mu.Lock()
	unsubscribe := g.unsubscribe
	g.unsubscribe = func() {}
	g.mu.Unlock()
	if unsubscribe != nil {
		unsubscribe()
	}
}

// Status returns the current status.
func (g *Gate) Status() Status {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.status
}

// Session returns the signed-in session, or nil.
func (g *Gate) Session() *service.Session {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.current
}

// SignOut asks the store to end the session. The change notification that
// follows moves the gate to Anonymous.
func (g *Gate) SignOut(ctx context.Context) error {
	return g.sessions.SignOut(ctx)
}

func (g *Gate) onChange(event service.SessionEvent, s *service.Session) {
	level.Debug(g.logger).Log("event", string(event), "signed_in", s != nil)
	g.mu.Lock()
	g.notified = true
	g.mu.Unlock()
	g.set(s)
}

func (g *Gate) set(s *service.Session) {
	next := Anonymous
	if s != nil {
		next = Authenticated
	}

	g.mu.Lock()
	prev, prevUser := g.status, userID(g.current)
	g.status = next
	g.current = s
	watchers := append([]Watcher(nil), g.watchers...)
	g.mu.Unlock()

	if prev == next && prevUser == userID(s) {
		return
	}
	level.Debug(g.logger).Log("from", prev, "to", next)
	for _, w := range watchers {
		w(next, s)
	}
}

func userID(s *service.Session) string {
	if s == nil {
		return ""
	}
	return s.User.ID
}
