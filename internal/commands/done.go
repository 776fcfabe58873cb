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
	Register(&DoneCmd{})
}

// DoneCmd implements the done command. It flips the completed flag, so
// running it on a completed task reopens it.
type DoneCmd struct{}

func (c *DoneCmd) Name() string      { return "done" }
func (c *DoneCmd) Aliases() []string { return []string{"toggle"} }
func (c *DoneCmd) Synopsis() string  { return "Toggle a task's completed state" }
func (c *DoneCmd) Usage() string     { return "tasklist done <n>" }
func (c *DoneCmd) NeedsAuth() bool   { return true }

func (c *DoneCmd) RegisterFlags(fs *pflag.FlagSet) {}

func (c *DoneCmd) Run(ctx context.Context, cfg *config.Config, env *Env, args []string, out, errOut io.Writer) int {
	task, code, ok := resolveTask(ctx, env, args, errOut)
	if !ok {
		return code
	}

	toggled, err := env.Tasks.Toggle(ctx, task.ID)
	if err != nil {
		return reportError(errOut, err)
	}
	if !toggled {
		return reportDegraded(ctx, env, errOut, "toggle task")
	}

	if !cfg.Quiet {
		state := "completed"
		if task.Completed {
			state = "reopened"
		}
		fmt.Fprintln(out, state)
	}
	return exitcode.Success
}
