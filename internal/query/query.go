// Package query projects a task list through a FilterSpec without touching the input.
package query

import (
	"slices"
	"strings"
	"time"

	"github.com/benvon/matrix-todo/internal/models"
)

// Apply returns the tasks matching spec, ordered by spec.SortBy.
// The input slice is never reordered; the returned slice is always new.
// Limit and Offset are ignored here; see Page.
func Apply(tasks []*models.Task, spec models.FilterSpec) []*models.Task {
	out := make([]*models.Task, 0, len(tasks))
	for _, t := range tasks {
		if t == nil {
			continue
		}
		if spec.Priority != nil && t.Priority != *spec.Priority {
			continue
		}
		if spec.IsCompleted != nil && t.IsCompleted != *spec.IsCompleted {
			continue
		}
		out = append(out, t)
	}

	if spec.SortBy == "" {
		return out
	}

	sign := 1
	if spec.Descending() {
		sign = -1
	}
	// desc flips the comparator, not the result, so ties keep their input order
	slices.SortStableFunc(out, func(a, b *models.Task) int {
		return sign * Compare(a, b, spec.SortBy)
	})
	return out
}

// Page returns the window [offset, offset+limit) of tasks. A non-positive limit means no upper bound.
func Page(tasks []*models.Task, limit, offset int) []*models.Task {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(tasks) {
		return []*models.Task{}
	}
	end := len(tasks)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return slices.Clone(tasks[offset:end])
}

// Compare orders a and b by field in ascending order.
// Date-like fields compare as timestamps with missing values after present ones,
// strings compare case-insensitively, and unknown fields compare equal.
func Compare(a, b *models.Task, field string) int {
	if IsDateField(field) {
		return compareTimes(timeField(a, field), timeField(b, field))
	}

	switch field {
	case "is_completed":
		return compareBools(a.IsCompleted, b.IsCompleted)
	}

	sa, okA := stringField(a, field)
	sb, okB := stringField(b, field)
	if !okA || !okB {
		return 0
	}
	return strings.Compare(strings.ToLower(sa), strings.ToLower(sb))
}

// IsDateField reports whether field holds a timestamp
func IsDateField(field string) bool {
	return strings.Contains(field, "datetime") || strings.HasSuffix(field, "_at")
}

func timeField(t *models.Task, field string) *time.Time {
	switch field {
	case models.SortByCreatedAt:
		if t.CreatedAt.IsZero() {
			return nil
		}
		return &t.CreatedAt
	case models.SortByUpdatedAt:
		if t.UpdatedAt.IsZero() {
			return nil
		}
		return &t.UpdatedAt
	case models.SortByDueDatetime:
		return t.DueDatetime
	default:
		return nil
	}
}

func stringField(t *models.Task, field string) (string, bool) {
	switch field {
	case models.SortByTitle:
		return t.Title, true
	case models.SortByPriority:
		return string(t.Priority), true
	case "description":
		return t.Description, true
	case "id":
		return t.ID, true
	case "user_id":
		return t.UserID, true
	default:
		return "", false
	}
}

func compareTimes(a, b *time.Time) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	default:
		return a.Compare(*b)
	}
}

func compareBools(a, b bool) int {
	switch {
	case a == b:
		return 0
	case !a:
		return -1
	default:
		return 1
	}
}
