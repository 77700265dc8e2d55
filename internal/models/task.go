package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Priority is a quadrant of the Eisenhower matrix
type Priority string

const (
	PriorityUrgentImportant       Priority = "urgent_important"
	PriorityUrgentNotImportant    Priority = "urgent_not_important"
	PriorityNotUrgentImportant    Priority = "not_urgent_important"
	PriorityNotUrgentNotImportant Priority = "not_urgent_not_important"

	// DefaultPriority is applied to new tasks that do not name a priority
	DefaultPriority = PriorityNotUrgentNotImportant
)

// Priorities lists every priority in matrix order (do first, schedule, delegate, eliminate)
var Priorities = []Priority{
	PriorityUrgentImportant,
	PriorityNotUrgentImportant,
	PriorityUrgentNotImportant,
	PriorityNotUrgentNotImportant,
}

// Valid reports whether p is one of the four known priorities
func (p Priority) Valid() bool {
	switch p {
	case PriorityUrgentImportant, PriorityUrgentNotImportant, PriorityNotUrgentImportant, PriorityNotUrgentNotImportant:
		return true
	default:
		return false
	}
}

// ParsePriority returns the priority named by s, ignoring surrounding space and case
func ParsePriority(s string) (Priority, error) {
	p := Priority(strings.ToLower(strings.TrimSpace(s)))
	if !p.Valid() {
		return "", fmt.Errorf("invalid priority %q", s)
	}
	return p, nil
}

// Urgent reports whether the priority sits on the urgent half of the matrix
func (p Priority) Urgent() bool {
	return p == PriorityUrgentImportant || p == PriorityUrgentNotImportant
}

// Important reports whether the priority sits on the important half of the matrix
func (p Priority) Important() bool {
	return p == PriorityUrgentImportant || p == PriorityNotUrgentImportant
}

// Rank orders priorities by the matrix: 1 is handled first, 4 last.
// Unknown values rank after every known priority.
func (p Priority) Rank() int {
	switch p {
	case PriorityUrgentImportant:
		return 1
	case PriorityNotUrgentImportant:
		return 2
	case PriorityUrgentNotImportant:
		return 3
	case PriorityNotUrgentNotImportant:
		return 4
	default:
		return 5
	}
}

// Label returns a human-readable name for the priority
func (p Priority) Label() string {
	switch p {
	case PriorityUrgentImportant:
		return "Urgent & Important"
	case PriorityUrgentNotImportant:
		return "Urgent & Not Important"
	case PriorityNotUrgentImportant:
		return "Not Urgent & Important"
	case PriorityNotUrgentNotImportant:
		return "Not Urgent & Not Important"
	default:
		return string(p)
	}
}

// Task represents one user-owned task
type Task struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	DueDatetime *time.Time `json:"due_datetime,omitempty"`
	Priority    Priority   `json:"priority"`
	IsCompleted bool       `json:"is_completed"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Overdue reports whether an open task's due time has passed
func (t *Task) Overdue(now time.Time) bool {
	return !t.IsCompleted && t.DueDatetime != nil && t.DueDatetime.Before(now)
}

// CreateTaskRequest is the body of POST /tasks
type CreateTaskRequest struct {
	Title       string     `json:"title" validate:"required,max=255"`
	Description string     `json:"description,omitempty" validate:"max=5000"`
	DueDatetime *time.Time `json:"due_datetime,omitempty"`
	Priority    Priority   `json:"priority" validate:"required,priority"`
}

// UpdateTaskRequest is the body of PATCH /tasks/{id}.
// Only non-nil fields are sent; ClearDueDatetime sends an explicit null.
type UpdateTaskRequest struct {
	Title            *string    `json:"title,omitempty" validate:"omitempty,max=255"`
	Description      *string    `json:"description,omitempty" validate:"omitempty,max=5000"`
	DueDatetime      *time.Time `json:"due_datetime,omitempty"`
	Priority         *Priority  `json:"priority,omitempty" validate:"omitempty,priority"`
	IsCompleted      *bool      `json:"is_completed,omitempty"`
	ClearDueDatetime bool       `json:"-"`
}

// Empty reports whether the request would change nothing
func (r UpdateTaskRequest) Empty() bool {
	return r.Title == nil && r.Description == nil && r.DueDatetime == nil &&
		r.Priority == nil && r.IsCompleted == nil && !r.ClearDueDatetime
}

// MarshalJSON emits only the fields that were set
func (r UpdateTaskRequest) MarshalJSON() ([]byte, error) {
	body := make(map[string]any)
	if r.Title != nil {
		body["title"] = *r.Title
	}
	if r.Description != nil {
		body["description"] = *r.Description
	}
	if r.ClearDueDatetime {
		body["due_datetime"] = nil
	} else if r.DueDatetime != nil {
		body["due_datetime"] = r.DueDatetime.Format(time.RFC3339Nano)
	}
	if r.Priority != nil {
		body["priority"] = *r.Priority
	}
	if r.IsCompleted != nil {
		body["is_completed"] = *r.IsCompleted
	}
	return json.Marshal(body)
}

// TaskPage is the data payload of GET /tasks
type TaskPage struct {
	Tasks      []*Task `json:"tasks"`
	TotalCount int     `json:"total_count"`
	Limit      int     `json:"limit"`
	Offset     int     `json:"offset"`
}
