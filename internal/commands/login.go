package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/pflag"

	"tasklist/internal/config"
	"tasklist/internal/exitcode"
)

func init() {
	Register(&LoginCmd{})
	Register(&RegisterCmd{})
}

// LoginCmd implements the login command.
type LoginCmd struct {
	password string
}

func (c *LoginCmd) Name() string      { return "login" }
func (c *LoginCmd) Aliases() []string { return nil }
func (c *LoginCmd) Synopsis() string  { return "Log in with email and password" }
func (c *LoginCmd) Usage() string     { return "tasklist login <email> [--password <pw>]" }
func (c *LoginCmd) NeedsAuth() bool   { return false }

func (c *LoginCmd) RegisterFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&c.password, "password", "p", "", "password (read from stdin if omitted)")
}

func (c *LoginCmd) Run(ctx context.Context, cfg *config.Config, env *Env, args []string, out, errOut io.Writer) int {
	email, ok := credentialArgs(args, errOut)
	if !ok {
		return exitcode.UserError
	}
	password, err := readPassword(env, c.password, cfg.Quiet, errOut)
	if err != nil {
		return reportAuthFailure(errOut, "login", err)
	}

	ok, err = env.Auth.Login(ctx, email, password)
	if err != nil {
		return reportAuthFailure(errOut, "login", err)
	}
	if !ok {
		fmt.Fprintln(errOut, "error: login failed: server returned no tokens")
		return exitcode.AuthError
	}

	if !cfg.Quiet {
		fmt.Fprintf(out, "logged in as %s\n", env.Auth.CurrentUser(ctx))
	}
	return exitcode.Success
}

// RegisterCmd implements the register command.
type RegisterCmd struct {
	password string
}

func (c *RegisterCmd) Name() string      { return "register" }
func (c *RegisterCmd) Aliases() []string { return []string{"signup"} }
func (c *RegisterCmd) Synopsis() string  { return "Create an account and log in" }
func (c *RegisterCmd) Usage() string     { return "tasklist register <email> [--password <pw>]" }
func (c *RegisterCmd) NeedsAuth() bool   { return false }

func (c *RegisterCmd) RegisterFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&c.password, "password", "p", "", "password, at least 6 characters (read from stdin if omitted)")
}

func (c *RegisterCmd) Run(ctx context.Context, cfg *config.Config, env *Env, args []string, out, errOut io.Writer) int {
	email, ok := credentialArgs(args, errOut)
	if !ok {
		return exitcode.UserError
	}
	password, err := readPassword(env, c.password, cfg.Quiet, errOut)
	if err != nil {
		return reportAuthFailure(errOut, "registration", err)
	}

	ok, err = env.Auth.Register(ctx, email, password)
	if err != nil {
		return reportAuthFailure(errOut, "registration", err)
	}
	if !ok {
		fmt.Fprintln(errOut, "error: registration failed: server returned no tokens")
		return exitcode.AuthError
	}

	if !cfg.Quiet {
		fmt.Fprintf(out, "registered and logged in as %s\n", env.Auth.CurrentUser(ctx))
	}
	return exitcode.Success
}
