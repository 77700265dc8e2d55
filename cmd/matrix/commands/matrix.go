package commands

import (
	"fmt"
	"io"
	"time"

	"github.com/benvon/matrix-todo/internal/models"
	"github.com/benvon/matrix-todo/internal/tasks"
	"github.com/spf13/cobra"
)

// NewMatrixCmd creates the matrix command
func NewMatrixCmd(d *Deps) *cobra.Command {
	var showCompleted bool

	cmd := &cobra.Command{
		Use:   "matrix",
		Short: "Show tasks grouped into the four quadrants",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := d.App(cmd.Context())
			if err != nil {
				return err
			}
			spec := models.FilterSpec{SortBy: models.SortByDueDatetime, SortOrder: models.SortAsc}
			if !showCompleted {
				open := false
				spec.IsCompleted = &open
			}
			if _, err := a.Tasks.FetchAll(cmd.Context(), spec); err != nil {
				return err
			}
			printMatrix(cmd.OutOrStdout(), a.Tasks.Quadrants())
			return nil
		},
	}

	cmd.Flags().BoolVar(&showCompleted, "completed", false, "Include completed tasks")
	return cmd
}

func printMatrix(w io.Writer, quadrants []tasks.Quadrant) {
	now := time.Now()
	for i, q := range quadrants {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "Q%d %s: %s (%d)\n", q.Priority.Rank(), action(q.Priority), q.Priority.Label(), len(q.Tasks))
		for _, t := range q.Tasks {
			line := fmt.Sprintf("  %s %s", checkbox(t.IsCompleted), t.Title)
			if t.DueDatetime != nil {
				line += fmt.Sprintf("  due %s", due(t, now))
			}
			fmt.Fprintf(w, "%s  [%s]\n", line, t.ID)
		}
	}
}

// action names what to do with a quadrant from its position on the two axes
func action(p models.Priority) string {
	switch {
	case p.Urgent() && p.Important():
		return "Do"
	case p.Important():
		return "Schedule"
	case p.Urgent():
		return "Delegate"
	default:
		return "Eliminate"
	}
}
