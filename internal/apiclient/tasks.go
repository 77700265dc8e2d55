package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/benvon/matrix-todo/internal/apperr"
	"github.com/benvon/matrix-todo/internal/models"
)

// ListTasks returns one page of the user's tasks, filtered and sorted by the server
func (c *Client) ListTasks(ctx context.Context, spec models.FilterSpec) (*models.TaskPage, error) {
	var raw json.RawMessage
	if err := c.do(ctx, call{method: http.MethodGet, path: "/tasks", query: spec.Query(), authed: true}, &raw); err != nil {
		return nil, err
	}

	var page models.TaskPage
	// older servers return a bare array
	if trimmed := bytes.TrimSpace(raw); len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &page.Tasks); err != nil {
			return nil, apperr.Transport("Invalid response from server", apperr.CodeBadResponse, 0, err)
		}
		page.TotalCount = len(page.Tasks)
		page.Limit = len(page.Tasks)
		return &page, nil
	}
	if err := json.Unmarshal(raw, &page); err != nil {
		return nil, apperr.Transport("Invalid response from server", apperr.CodeBadResponse, 0, err)
	}
	if page.Tasks == nil {
		page.Tasks = []*models.Task{}
	}
	return &page, nil
}

// GetTask returns one task by id
func (c *Client) GetTask(ctx context.Context, id string) (*models.Task, error) {
	path, err := taskPath(id)
	if err != nil {
		return nil, err
	}
	var t models.Task
	if err := c.do(ctx, call{method: http.MethodGet, path: path, route: taskRoute, authed: true}, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// CreateTask creates a task and returns the server's record
func (c *Client) CreateTask(ctx context.Context, req models.CreateTaskRequest) (*models.Task, error) {
	var t models.Task
	if err := c.do(ctx, call{method: http.MethodPost, path: "/tasks", body: req, authed: true}, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// UpdateTask sends only the fields set in req and returns the server's record
func (c *Client) UpdateTask(ctx context.Context, id string, req models.UpdateTaskRequest) (*models.Task, error) {
	path, err := taskPath(id)
	if err != nil {
		return nil, err
	}
	var t models.Task
	if err := c.do(ctx, call{method: http.MethodPatch, path: path, route: taskRoute, body: req, authed: true}, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// DeleteTask deletes a task
func (c *Client) DeleteTask(ctx context.Context, id string) error {
	path, err := taskPath(id)
	if err != nil {
		return err
	}
	return c.do(ctx, call{method: http.MethodDelete, path: path, route: taskRoute, authed: true}, nil)
}

const taskRoute = "/tasks/{id}"

// taskPath rejects ids that would not address a single task once the URL path is cleaned
func taskPath(id string) (string, error) {
	switch {
	case strings.TrimSpace(id) == "":
		return "", apperr.Validation("task id is required")
	case id == "." || id == ".." || strings.ContainsAny(id, "/\\"):
		return "", apperr.Validation(fmt.Sprintf("invalid task id %q", id))
	}
	return "/tasks/" + url.PathEscape(id), nil
}
