package commands

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"tasklist/internal/api"
	"tasklist/internal/exitcode"
	"tasklist/internal/service"
)

// errPasswordRequired is returned when no password was given or piped in.
var errPasswordRequired = errors.New("password required")

// readPassword returns the --password value, or reads one line from stdin.
func readPassword(env *Env, flagValue string, quiet bool, errOut io.Writer) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	if env.Stdin == nil {
		return "", errPasswordRequired
	}
	if !quiet {
		fmt.Fprint(errOut, "password: ")
	}
	line, err := bufio.NewReader(env.Stdin).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", errPasswordRequired
	}
	return line, nil
}

// credentialArgs checks the positional args of login and register.
func credentialArgs(args []string, errOut io.Writer) (string, bool) {
	if len(args) == 0 {
		fmt.Fprintln(errOut, "error: email required")
		return "", false
	}
	if len(args) > 1 {
		fmt.Fprintf(errOut, "error: unexpected argument: %s\n", args[1])
		return "", false
	}
	return strings.TrimSpace(args[0]), true
}

// reportAuthFailure prints a failed login or registration. The server's
// reason is shown without the refresh detail.
func reportAuthFailure(errOut io.Writer, action string, err error) int {
	if errors.Is(err, service.ErrInvalid) || errors.Is(err, errPasswordRequired) {
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.UserError
	}

	var authErr *api.AuthenticationError
	if errors.As(err, &authErr) && authErr.Message != "" {
		fmt.Fprintf(errOut, "error: %s failed: %s\n", action, authErr.Message)
		return exitcode.AuthError
	}
	var reqErr *api.RequestError
	if errors.As(err, &reqErr) && reqErr.Status < 500 {
		fmt.Fprintf(errOut, "error: %s failed: %s\n", action, reqErr.Message)
		return exitcode.AuthError
	}
	return reportError(errOut, err)
}
