package commands

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/benvon/matrix-todo/internal/models"
)

const timeLayout = "2006-01-02 15:04"

func printTasks(w io.Writer, tasks []*models.Task, total int) {
	if len(tasks) == 0 {
		fmt.Fprintln(w, "No tasks found")
		return
	}

	now := time.Now()
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDONE\tPRIORITY\tDUE\tTITLE")
	for _, t := range tasks {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", t.ID, checkbox(t.IsCompleted), t.Priority.Label(), due(t, now), t.Title)
	}
	_ = tw.Flush()

	if total > len(tasks) {
		fmt.Fprintf(w, "Showing %d of %d tasks\n", len(tasks), total)
	}
}

func printTask(w io.Writer, t *models.Task) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "ID:\t%s\n", t.ID)
	fmt.Fprintf(tw, "Title:\t%s\n", t.Title)
	if t.Description != "" {
		fmt.Fprintf(tw, "Description:\t%s\n", t.Description)
	}
	fmt.Fprintf(tw, "Priority:\t%s\n", t.Priority.Label())
	fmt.Fprintf(tw, "Due:\t%s\n", due(t, time.Now()))
	fmt.Fprintf(tw, "Completed:\t%t\n", t.IsCompleted)
	if !t.CreatedAt.IsZero() {
		fmt.Fprintf(tw, "Created:\t%s\n", t.CreatedAt.Local().Format(timeLayout))
	}
	if !t.UpdatedAt.IsZero() {
		fmt.Fprintf(tw, "Updated:\t%s\n", t.UpdatedAt.Local().Format(timeLayout))
	}
	_ = tw.Flush()
}

func checkbox(done bool) string {
	if done {
		return "[x]"
	}
	return "[ ]"
}

func due(t *models.Task, now time.Time) string {
	if t.DueDatetime == nil {
		return "-"
	}
	s := t.DueDatetime.Local().Format(timeLayout)
	if t.Overdue(now) {
		s += " (overdue)"
	}
	return s
}

// parseDue accepts RFC 3339 timestamps, "YYYY-MM-DD HH:MM" or a bare date in local time
func parseDue(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	for _, layout := range []string{timeLayout, "2006-01-02"} {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid due date %q (use YYYY-MM-DD, \"YYYY-MM-DD HH:MM\" or RFC 3339)", s)
}

// parsePriority accepts the API value or a quadrant shorthand (q1..q4, do, schedule, delegate, eliminate)
func parsePriority(s string) (models.Priority, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "q1", "do":
		return models.PriorityUrgentImportant, nil
	case "q2", "schedule":
		return models.PriorityNotUrgentImportant, nil
	case "q3", "delegate":
		return models.PriorityUrgentNotImportant, nil
	case "q4", "eliminate":
		return models.PriorityNotUrgentNotImportant, nil
	}
	return models.ParsePriority(s)
}
