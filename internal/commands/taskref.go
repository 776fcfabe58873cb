package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"unicode"

	"tasklist/internal/exitcode"
	"tasklist/internal/service"
	"tasklist/internal/tasks"
)

// ErrTaskRefRequired indicates no task reference was provided.
var ErrTaskRefRequired = errors.New("task reference required")

// ErrOutOfRange indicates a task number with no matching task.
var ErrOutOfRange = errors.New("task number out of range")

// ParseTaskRef parses the task number from the first arg. Task numbers are
// the 1-based positions printed by list, in unfiltered order.
func ParseTaskRef(args []string) (int, error) {
	if len(args) == 0 {
		return 0, ErrTaskRefRequired
	}

	ref := args[0]
	if !isAllDigits(ref) {
		return 0, fmt.Errorf("invalid task reference: %s", ref)
	}
	num, err := strconv.Atoi(ref)
	if err != nil {
		return 0, fmt.Errorf("invalid task reference: %s", ref)
	}
	if num < 1 {
		return 0, fmt.Errorf("%w: %d", ErrOutOfRange, num)
	}
	return num, nil
}

// isAllDigits returns true if s consists only of ASCII digits and is non-empty.
func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r > unicode.MaxASCII || !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// findTaskByNumber fetches the tasks and returns the num-th one.
func findTaskByNumber(ctx context.Context, repo *tasks.Repository, num int) (service.Task, error) {
	list, err := repo.Fetch(ctx)
	if err != nil {
		return service.Task{}, err
	}
	if num > len(list) {
		return service.Task{}, fmt.Errorf("%w: %d", ErrOutOfRange, num)
	}
	return list[num-1], nil
}

// resolveTask parses the task reference in args and looks the task up.
// When ok is false the error has been printed and code should be returned.
func resolveTask(ctx context.Context, env *Env, args []string, errOut io.Writer) (task service.Task, code int, ok bool) {
	num, err := ParseTaskRef(args)
	if err != nil {
		fmt.Fprintf(errOut, "error: %v\n", err)
		return service.Task{}, exitcode.UserError, false
	}

	task, err = findTaskByNumber(ctx, env.Tasks, num)
	switch {
	case errors.Is(err, ErrOutOfRange):
		fmt.Fprintf(errOut, "error: %v\n", err)
		return service.Task{}, exitcode.UserError, false
	case err != nil:
		return service.Task{}, reportError(errOut, err), false
	}
	return task, exitcode.Success, true
}
