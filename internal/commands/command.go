// Package commands provides the command interface and implementations.
package commands

import (
	"context"
	"io"
	"log/slog"

	"github.com/spf13/pflag"

	"tasklist/internal/auth"
	"tasklist/internal/config"
	"tasklist/internal/tasks"
)

// Command defines the interface for CLI commands.
type Command interface {
	// Name returns the primary command name.
	Name() string

	// Aliases returns alternative names for the command.
	Aliases() []string

	// Synopsis returns a short description for help output.
	Synopsis() string

	// Usage returns the usage string for help output.
	Usage() string

	// NeedsAuth returns true if the command requires a logged-in session.
	// Commands like help, version, login, logout return false.
	NeedsAuth() bool

	// RegisterFlags registers command-specific flags.
	RegisterFlags(fs *pflag.FlagSet)

	// Run executes the command.
	// cfg is always provided. env is nil for help and version.
	// args contains positional arguments after flag parsing.
	// Returns exit code.
	Run(ctx context.Context, cfg *config.Config, env *Env, args []string, out, errOut io.Writer) int
}

// Env is what commands run against: the session manager and the task
// repository, both sharing one API client and credential store.
type Env struct {
	Auth   *auth.Manager
	Tasks  *tasks.Repository
	Logger *slog.Logger

	// Stdin is read for passwords not given as flags.
	Stdin io.Reader

	// Cleanup releases clients. May be nil.
	Cleanup func()
}

// Close runs Cleanup if set.
func (e *Env) Close() {
	if e != nil && e.Cleanup != nil {
		e.Cleanup()
	}
}

// noEnv is implemented by commands that run without an Env.
type noEnv interface {
	withoutEnv()
}

// NeedsEnv reports whether cmd needs the API client and session.
func NeedsEnv(cmd Command) bool {
	_, ok := cmd.(noEnv)
	return !ok
}
