package service

import (
	"time"

	"golang.org/x/oauth2"
)

// Task represents a single task row owned by one user.
type Task struct {
	ID        int64
	Owner     string
	Title     string
	Completed bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Patch is the only mutation sent for an existing task.
type Patch struct {
	Completed bool
	UpdatedAt time.Time
}

// User identifies the owner of a session.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Session is an authenticated user context obtained from the store.
type Session struct {
	User  User          `json:"user"`
	Token *oauth2.Token `json:"token,omitempty"`
}

// SessionEvent names the reason a session change was emitted.
type SessionEvent string

const (
	SignedIn       SessionEvent = "SIGNED_IN"
	SignedOut      SessionEvent = "SIGNED_OUT"
	TokenRefreshed SessionEvent = "TOKEN_REFRESHED"
)

// SessionListener receives session changes. s is nil after sign-out.
type SessionListener func(event SessionEvent, s *Session)
