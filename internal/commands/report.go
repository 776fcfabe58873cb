package commands

import (
	"context"
	"errors"
	"fmt"
	"io"

	"tasklist/internal/exitcode"
)

// LoginHint is appended to every auth failure.
const LoginHint = "(run: tasklist login)"

// reportError prints err and maps it to an exit code.
func reportError(errOut io.Writer, err error) int {
	code := exitcode.For(err)
	switch {
	case code == exitcode.UserError:
		fmt.Fprintf(errOut, "error: %v\n", err)
	case code == exitcode.AuthError:
		fmt.Fprintf(errOut, "error: %v %s\n", err, LoginHint)
	case errors.Is(err, context.Canceled):
		fmt.Fprintln(errOut, "error: cancelled")
	default:
		fmt.Fprintf(errOut, "error: backend error: %v\n", err)
	}
	return code
}

// reportDegraded handles a repository call that swallowed its failure. If
// the failure cost us the session the user is told to log in again.
func reportDegraded(ctx context.Context, env *Env, errOut io.Writer, what string) int {
	if !env.Auth.IsAuthenticated(ctx) {
		fmt.Fprintf(errOut, "error: session expired %s\n", LoginHint)
		return exitcode.AuthError
	}
	fmt.Fprintf(errOut, "error: failed to %s\n", what)
	return exitcode.BackendError
}
