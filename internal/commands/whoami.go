package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/pflag"

	"tasklist/internal/config"
	"tasklist/internal/exitcode"
	"tasklist/internal/output"
)

func init() {
	Register(&WhoamiCmd{})
	Register(&VerifyCmd{})
	Register(&ProfileCmd{})
}

// WhoamiCmd prints the logged-in user from local credentials only.
type WhoamiCmd struct{}

func (c *WhoamiCmd) Name() string      { return "whoami" }
func (c *WhoamiCmd) Aliases() []string { return nil }
func (c *WhoamiCmd) Synopsis() string  { return "Print the logged-in user" }
func (c *WhoamiCmd) Usage() string     { return "tasklist whoami" }
func (c *WhoamiCmd) NeedsAuth() bool   { return true }

func (c *WhoamiCmd) RegisterFlags(fs *pflag.FlagSet) {}

func (c *WhoamiCmd) Run(ctx context.Context, cfg *config.Config, env *Env, args []string, out, errOut io.Writer) int {
	user := env.Auth.CurrentUser(ctx)
	if user == "" {
		user = "(unknown)"
	}
	fmt.Fprintln(out, user)
	return exitcode.Success
}

// VerifyCmd asks the server whether the stored session is still valid.
type VerifyCmd struct{}

func (c *VerifyCmd) Name() string      { return "verify" }
func (c *VerifyCmd) Aliases() []string { return nil }
func (c *VerifyCmd) Synopsis() string  { return "Check the session with the server" }
func (c *VerifyCmd) Usage() string     { return "tasklist verify" }
func (c *VerifyCmd) NeedsAuth() bool   { return false }

func (c *VerifyCmd) RegisterFlags(fs *pflag.FlagSet) {}

func (c *VerifyCmd) Run(ctx context.Context, cfg *config.Config, env *Env, args []string, out, errOut io.Writer) int {
	if !env.Auth.IsAuthenticated(ctx) {
		fmt.Fprintf(errOut, "error: not logged in %s\n", LoginHint)
		return exitcode.AuthError
	}

	valid, err := env.Auth.Verify(ctx)
	if err != nil {
		return reportError(errOut, err)
	}
	if !valid {
		fmt.Fprintf(errOut, "error: session is no longer valid %s\n", LoginHint)
		return exitcode.AuthError
	}

	if !cfg.Quiet {
		fmt.Fprintln(out, "ok")
	}
	return exitcode.Success
}

// ProfileCmd prints the account profile from the server.
type ProfileCmd struct{}

func (c *ProfileCmd) Name() string      { return "profile" }
func (c *ProfileCmd) Aliases() []string { return nil }
func (c *ProfileCmd) Synopsis() string  { return "Show the account profile" }
func (c *ProfileCmd) Usage() string     { return "tasklist profile" }
func (c *ProfileCmd) NeedsAuth() bool   { return true }

func (c *ProfileCmd) RegisterFlags(fs *pflag.FlagSet) {}

func (c *ProfileCmd) Run(ctx context.Context, cfg *config.Config, env *Env, args []string, out, errOut io.Writer) int {
	p, err := env.Auth.Profile(ctx)
	if err != nil {
		return reportError(errOut, err)
	}
	output.FormatProfile(out, p.ID, p.Email, p.CreatedAt.Time)
	return exitcode.Success
}
