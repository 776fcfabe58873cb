package commands

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/pflag"

	"tasklist/internal/config"
	"tasklist/internal/exitcode"
)

func init() {
	Register(&HelpCmd{})
}

// HelpCmd implements the help command.
type HelpCmd struct{}

func (c *HelpCmd) Name() string      { return "help" }
func (c *HelpCmd) Aliases() []string { return nil }
func (c *HelpCmd) Synopsis() string  { return "Print usage" }
func (c *HelpCmd) Usage() string     { return "tasklist help" }
func (c *HelpCmd) NeedsAuth() bool   { return false }
func (c *HelpCmd) withoutEnv()       {}

func (c *HelpCmd) RegisterFlags(fs *pflag.FlagSet) {}

func (c *HelpCmd) Run(ctx context.Context, cfg *config.Config, env *Env, args []string, out, errOut io.Writer) int {
	fmt.Fprint(out, HelpText(DefaultRegistry))
	return exitcode.Success
}

// HelpText renders usage for every command in r.
func HelpText(r *Registry) string {
	var b strings.Builder
	b.WriteString("Usage:\n")
	b.WriteString("  tasklist                 List tasks (same as list)\n")
	for _, cmd := range r.All() {
		fmt.Fprintf(&b, "  %-48s %s\n", cmd.Usage(), cmd.Synopsis())
	}
	b.WriteString(commonFlags)
	return b.String()
}

const commonFlags = `
Common flags:
  --config <dir>    Override config directory
  --api-url <url>   Override the API base URL
  --quiet           Suppress informational output
  --debug           Print debug logs to stderr

Task numbers are the ones printed by list.
`
