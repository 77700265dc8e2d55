package commands

import (
	"fmt"
	"strconv"

	"github.com/benvon/matrix-todo/internal/models"
	"github.com/spf13/cobra"
)

// NewListCmd creates the list command
func NewListCmd(d *Deps) *cobra.Command {
	var (
		priority  string
		completed string
		sortBy    string
		sortOrder string
		limit     int
		offset    int
		all       bool
		local     bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		Long: `List tasks from the API.

By default filtering, sorting and paging happen on the server. With --local every
task is fetched first and the filter is applied to the cached copy.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			spec := models.FilterSpec{
				SortBy:    sortBy,
				SortOrder: models.SortOrder(sortOrder),
				Limit:     limit,
				Offset:    offset,
			}
			if priority != "" {
				p, err := parsePriority(priority)
				if err != nil {
					return err
				}
				spec.Priority = &p
			}
			if completed != "" {
				b, err := strconv.ParseBool(completed)
				if err != nil {
					return fmt.Errorf("invalid --completed value %q: %w", completed, err)
				}
				spec.IsCompleted = &b
			}

			a, err := d.App(cmd.Context())
			if err != nil {
				return err
			}

			switch {
			case local:
				if _, err := a.Tasks.FetchAll(cmd.Context(), models.FilterSpec{}); err != nil {
					return err
				}
				tasks := a.Tasks.ApplyFilter(spec)
				printTasks(cmd.OutOrStdout(), tasks, len(tasks))
			case all:
				spec.Limit, spec.Offset = 0, 0
				tasks, err := a.Tasks.FetchAll(cmd.Context(), spec)
				if err != nil {
					return err
				}
				printTasks(cmd.OutOrStdout(), tasks, len(tasks))
			default:
				tasks, err := a.Tasks.Fetch(cmd.Context(), &spec)
				if err != nil {
					return err
				}
				printTasks(cmd.OutOrStdout(), tasks, a.Tasks.Total())
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&priority, "priority", "", "Only tasks with this priority (value or q1..q4)")
	cmd.Flags().StringVar(&completed, "completed", "", "Only completed (true) or open (false) tasks")
	cmd.Flags().StringVar(&sortBy, "sort-by", "", "Sort field: created_at, updated_at, due_datetime, priority, title")
	cmd.Flags().StringVar(&sortOrder, "sort-order", "", "Sort order: asc or desc")
	cmd.Flags().IntVar(&limit, "limit", 0, "Page size (max 100)")
	cmd.Flags().IntVar(&offset, "offset", 0, "Number of tasks to skip")
	cmd.Flags().BoolVar(&all, "all", false, "Fetch every page")
	cmd.Flags().BoolVar(&local, "local", false, "Fetch every task and filter locally")
	return cmd
}
