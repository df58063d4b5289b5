// Package exitcode defines exit codes for the CLI.
package exitcode

import "todo/internal/service"

// Exit codes returned by the CLI.
const (
	// Success indicates successful completion.
	Success = 0

	// UserError indicates a user error (bad args, empty title, unknown task).
	UserError = 1

	// AuthError indicates an auth/config error.
	AuthError = 2

	// BackendError indicates a backend/API/network error.
	BackendError = 3
)

// For maps a failed store call to its exit code. Rejected input and
// missing rows are the user's to fix.
func For(err error) int {
	e := service.AsError(err)
	if e == nil {
		return Success
	}
	switch e.Kind {
	case service.KindAuth:
		return AuthError
	case service.KindValidation, service.KindNotFound:
		return UserError
	default:
		return BackendError
	}
}
