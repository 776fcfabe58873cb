// Package exitcode defines the process exit codes of tasklist.
package exitcode

import (
	"errors"

	"tasklist/internal/api"
	"tasklist/internal/service"
)

const (
	Success = 0

	// UserError covers bad arguments, invalid input and unknown task numbers.
	UserError = 1

	// AuthError means the user is not logged in or the session was rejected.
	AuthError = 2

	// BackendError covers network failures, server errors and cancellation.
	BackendError = 3
)

// For maps an error returned by the session, client or repository layers to
// an exit code. A nil error is Success.
func For(err error) int {
	switch {
	case err == nil:
		return Success
	case errors.Is(err, service.ErrInvalid):
		return UserError
	case api.IsAuthError(err):
		return AuthError
	default:
		return BackendError
	}
}
