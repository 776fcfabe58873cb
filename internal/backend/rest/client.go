// Package rest implements the service.Service interface over the task-list
// REST API.
package rest

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"tasklist/internal/api"
	"tasklist/internal/service"
)

const (
	// TasksPath is the task collection resource.
	TasksPath = "/tasks/"
)

// errEmptyResponse is returned when the server answers 2xx without a task.
var errEmptyResponse = errors.New("empty response from server")

// Client implements service.Service using the API client.
type Client struct {
	api *api.Client
}

// New creates a REST task backend.
func New(c *api.Client) *Client {
	return &Client{api: c}
}

// ListTasks implements service.Service.
func (c *Client) ListTasks(ctx context.Context) ([]service.Task, error) {
	var tasks []service.Task
	if err := c.api.Do(ctx, http.MethodGet, TasksPath, nil, &tasks); err != nil {
		return nil, err
	}
	if tasks == nil {
		tasks = []service.Task{}
	}
	return tasks, nil
}

// CreateTask implements service.Service.
func (c *Client) CreateTask(ctx context.Context, text string) (*service.Task, error) {
	return c.doTask(ctx, http.MethodPost, TasksPath, service.NewTask{Text: text, Completed: false})
}

// UpdateTask implements service.Service.
func (c *Client) UpdateTask(ctx context.Context, id string, upd service.TaskUpdate) (*service.Task, error) {
	return c.doTask(ctx, http.MethodPut, taskPath(id), upd)
}

// DeleteTask implements service.Service.
func (c *Client) DeleteTask(ctx context.Context, id string) error {
	return c.api.Do(ctx, http.MethodDelete, taskPath(id), nil, nil)
}

// ToggleTask implements service.Service.
func (c *Client) ToggleTask(ctx context.Context, id string) (*service.Task, error) {
	return c.doTask(ctx, http.MethodPatch, taskPath(id)+"/toggle", nil)
}

func (c *Client) doTask(ctx context.Context, method, path string, body any) (*service.Task, error) {
	var task *service.Task
	if err := c.api.Do(ctx, method, path, body, &task); err != nil {
		return nil, err
	}
	if task == nil {
		return nil, errEmptyResponse
	}
	return task, nil
}

func taskPath(id string) string {
	return TasksPath + url.PathEscape(id)
}
