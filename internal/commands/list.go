package commands

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/pflag"

	"tasklist/internal/config"
	"tasklist/internal/exitcode"
	"tasklist/internal/output"
	"tasklist/internal/service"
)

// Filters accepted by list --filter.
const (
	FilterAll       = "all"
	FilterActive    = "active"
	FilterCompleted = "completed"
)

func init() {
	Register(&ListCmd{})
}

// ListCmd implements the list command.
// Handles both `tasklist` (no args) and `tasklist list`.
type ListCmd struct {
	filter string
	search string
}

func (c *ListCmd) Name() string      { return "list" }
func (c *ListCmd) Aliases() []string { return []string{"ls"} }
func (c *ListCmd) Synopsis() string  { return "List tasks" }
func (c *ListCmd) Usage() string {
	return "tasklist list [--filter all|active|completed] [--search <text>]"
}
func (c *ListCmd) NeedsAuth() bool { return true }

func (c *ListCmd) RegisterFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&c.filter, "filter", "f", FilterAll, "show all, active or completed tasks")
	fs.StringVarP(&c.search, "search", "s", "", "only show tasks containing text")
}

func (c *ListCmd) Run(ctx context.Context, cfg *config.Config, env *Env, args []string, out, errOut io.Writer) int {
	if len(args) > 0 {
		fmt.Fprintf(errOut, "error: unexpected argument: %s\n", args[0])
		return exitcode.UserError
	}
	switch c.filter {
	case FilterAll, FilterActive, FilterCompleted:
	default:
		fmt.Fprintf(errOut, "error: invalid filter: %s\n", c.filter)
		return exitcode.UserError
	}

	tasks, err := env.Tasks.List(ctx)
	if err != nil {
		return reportError(errOut, err)
	}
	if len(tasks) == 0 && !env.Auth.IsAuthenticated(ctx) {
		return reportDegraded(ctx, env, errOut, "list tasks")
	}

	search := strings.ToLower(strings.TrimSpace(c.search))
	shown := 0
	for i, task := range tasks {
		if !matches(task, c.filter, search) {
			continue
		}
		// numbers stay stable across filters so they can be passed to done/rm
		output.FormatTask(out, i+1, task)
		shown++
	}

	if cfg.Quiet {
		return exitcode.Success
	}
	if shown == 0 {
		fmt.Fprintln(out, "no tasks found")
		return exitcode.Success
	}
	output.FormatSummary(out, tasks)
	return exitcode.Success
}

func matches(task service.Task, filter, search string) bool {
	switch filter {
	case FilterActive:
		if task.Completed {
			return false
		}
	case FilterCompleted:
		if !task.Completed {
			return false
		}
	}
	return search == "" || strings.Contains(strings.ToLower(task.Text), search)
}
