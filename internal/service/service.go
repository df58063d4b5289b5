// Package service defines the backend-agnostic contract for the remote task store.
package service

import "context"

// Store is the CRUD surface of the remote task collection.
// Commands and the state container never import a backend SDK directly.
type Store interface {
	// ListItems returns every task of the signed-in owner, newest first.
	ListItems(ctx context.Context) ([]Task, error)

	// CreateItem inserts an open task and returns it with its assigned ID.
	CreateItem(ctx context.Context, title, owner string) (Task, error)

	// UpdateItem applies patch to the task and returns the stored row.
	UpdateItem(ctx context.Context, id int64, patch Patch) (Task, error)

	// DeleteItem removes a task.
	DeleteItem(ctx context.Context, id int64) error
}

// Sessions is the authentication surface of the remote store.
type Sessions interface {
	// GetSession returns the current session, or nil when signed out.
	GetSession(ctx context.Context) (*Session, error)

	// OnSessionChange registers l and returns a function that removes it.
	OnSessionChange(l SessionListener) (unsubscribe func())

	// SignInWithEmail starts the passwordless flow for email.
	SignInWithEmail(ctx context.Context, email string) error

	// VerifyEmailCode completes the passwordless flow with the code that was mailed.
	VerifyEmailCode(ctx context.Context, email, code string) (*Session, error)

	// SignOut ends the current session.
	SignOut(ctx context.Context) error
}

// Backend is a remote store with its session operations.
type Backend interface {
	Store
	Sessions
}
