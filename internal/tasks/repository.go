// Package tasks is the task repository the CLI works against. It forwards
// each operation to one backend call and applies the failure policy.
package tasks

import (
	"context"
	"log/slog"
	"strings"

	"tasklist/internal/service"
)

// Policy controls how the repository reports backend failures.
type Policy struct {
	// DegradeOnFailure makes List, Create and Toggle log a backend failure
	// and return an empty list, nil task or false with a nil error, so the
	// task list shows an empty state instead of failing. Update and Delete
	// always return their errors.
	DegradeOnFailure bool
}

// DefaultPolicy degrades on failure.
var DefaultPolicy = Policy{DegradeOnFailure: true}

// Repository is the task CRUD façade.
type Repository struct {
	svc    service.Service
	policy Policy
	logger *slog.Logger
}

// NewRepository creates a repository over svc. A nil logger uses slog.Default().
func NewRepository(svc service.Service, policy Policy, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{svc: svc, policy: policy, logger: logger}
}

// Policy returns the repository's failure policy.
func (r *Repository) Policy() Policy { return r.policy }

// List returns all tasks.
func (r *Repository) List(ctx context.Context) ([]service.Task, error) {
	tasks, err := r.svc.ListTasks(ctx)
	if err != nil {
		if r.policy.DegradeOnFailure {
			r.logger.Warn("failed to fetch tasks", "error", err)
			return []service.Task{}, nil
		}
		return nil, err
	}
	return tasks, nil
}

// Fetch returns all tasks and always reports a backend failure. Commands that
// act on a task number use it, so an outage is not read as an empty list.
func (r *Repository) Fetch(ctx context.Context) ([]service.Task, error) {
	return r.svc.ListTasks(ctx)
}

// Create adds an open task with the given text and returns the server's copy.
// Invalid text is rejected before any call, whatever the policy.
func (r *Repository) Create(ctx context.Context, text string) (*service.Task, error) {
	text = strings.TrimSpace(text)
	if err := service.ValidateText(text); err != nil {
		return nil, err
	}

	task, err := r.svc.CreateTask(ctx, text)
	if err != nil {
		if r.policy.DegradeOnFailure {
			r.logger.Warn("failed to create task", "error", err)
			return nil, nil
		}
		return nil, err
	}
	return task, nil
}

// Update applies a partial update.
func (r *Repository) Update(ctx context.Context, id string, upd service.TaskUpdate) (*service.Task, error) {
	if upd.Text != nil {
		text := strings.TrimSpace(*upd.Text)
		if err := service.ValidateText(text); err != nil {
			return nil, err
		}
		upd.Text = &text
	}

	task, err := r.svc.UpdateTask(ctx, id, upd)
	if err != nil {
		r.logger.Debug("failed to update task", "id", id, "error", err)
		return nil, err
	}
	return task, nil
}

// Delete removes a task.
func (r *Repository) Delete(ctx context.Context, id string) error {
	if err := r.svc.DeleteTask(ctx, id); err != nil {
		r.logger.Debug("failed to delete task", "id", id, "error", err)
		return err
	}
	return nil
}

// Toggle flips a task's completed flag and reports whether it succeeded.
func (r *Repository) Toggle(ctx context.Context, id string) (bool, error) {
	if _, err := r.svc.ToggleTask(ctx, id); err != nil {
		if r.policy.DegradeOnFailure {
			r.logger.Warn("failed to toggle task", "id", id, "error", err)
			return false, nil
		}
		return false, err
	}
	return true, nil
}
