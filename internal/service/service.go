package service

import "context"

// Service defines the interface for task backend operations.
// Commands and the task repository never talk HTTP directly.
type Service interface {
	// ListTasks returns the user's tasks in server order.
	ListTasks(ctx context.Context) ([]Task, error)

	// CreateTask creates an open task and returns the server's copy.
	CreateTask(ctx context.Context, text string) (*Task, error)

	// UpdateTask applies a partial update.
	UpdateTask(ctx context.Context, id string, upd TaskUpdate) (*Task, error)

	// DeleteTask deletes a task.
	DeleteTask(ctx context.Context, id string) error

	// ToggleTask flips the completed flag.
	ToggleTask(ctx context.Context, id string) (*Task, error)
}
