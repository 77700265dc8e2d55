package commands

import (
	"fmt"

	"github.com/benvon/matrix-todo/internal/models"
	"github.com/spf13/cobra"
)

// NewShowCmd creates the show command
func NewShowCmd(d *Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := d.App(cmd.Context())
			if err != nil {
				return err
			}
			t, err := a.Tasks.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printTask(cmd.OutOrStdout(), t)
			return nil
		},
	}
}

// NewAddCmd creates the add command
func NewAddCmd(d *Deps) *cobra.Command {
	var description, dueAt, priority string

	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Create a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := models.CreateTaskRequest{Title: args[0], Description: description}
			if priority != "" {
				p, err := parsePriority(priority)
				if err != nil {
					return err
				}
				req.Priority = p
			}
			if dueAt != "" {
				t, err := parseDue(dueAt)
				if err != nil {
					return err
				}
				req.DueDatetime = &t
			}

			a, err := d.App(cmd.Context())
			if err != nil {
				return err
			}
			t, err := a.Tasks.Create(cmd.Context(), req)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created task %s\n", t.ID)
			printTask(cmd.OutOrStdout(), t)
			return nil
		},
	}

	cmd.Flags().StringVar(&description, "description", "", "Task description")
	cmd.Flags().StringVar(&dueAt, "due", "", "Due date")
	cmd.Flags().StringVar(&priority, "priority", "", "Priority (value or q1..q4); defaults to not urgent, not important")
	return cmd
}

// NewEditCmd creates the edit command
func NewEditCmd(d *Deps) *cobra.Command {
	var (
		title, description, dueAt, priority string
		clearDue, completed                 bool
	)

	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Change fields of a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			var req models.UpdateTaskRequest
			if flags.Changed("title") {
				req.Title = &title
			}
			if flags.Changed("description") {
				req.Description = &description
			}
			if flags.Changed("priority") {
				p, err := parsePriority(priority)
				if err != nil {
					return err
				}
				req.Priority = &p
			}
			if flags.Changed("completed") {
				req.IsCompleted = &completed
			}
			switch {
			case clearDue && flags.Changed("due"):
				return fmt.Errorf("--due and --clear-due cannot be combined")
			case clearDue:
				req.ClearDueDatetime = true
			case flags.Changed("due"):
				t, err := parseDue(dueAt)
				if err != nil {
					return err
				}
				req.DueDatetime = &t
			}

			a, err := d.App(cmd.Context())
			if err != nil {
				return err
			}
			t, err := a.Tasks.Update(cmd.Context(), args[0], req)
			if err != nil {
				return err
			}
			printTask(cmd.OutOrStdout(), t)
			return nil
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "New title")
	cmd.Flags().StringVar(&description, "description", "", "New description")
	cmd.Flags().StringVar(&dueAt, "due", "", "New due date")
	cmd.Flags().BoolVar(&clearDue, "clear-due", false, "Remove the due date")
	cmd.Flags().StringVar(&priority, "priority", "", "New priority (value or q1..q4)")
	cmd.Flags().BoolVar(&completed, "completed", false, "Mark completed (--completed=false reopens)")
	return cmd
}

// NewToggleCmd creates the toggle command
func NewToggleCmd(d *Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "toggle <id>",
		Short: "Flip the completion state of a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := d.App(cmd.Context())
			if err != nil {
				return err
			}
			// toggling reads the cached task, so load the list first
			if _, err := a.Tasks.FetchAll(cmd.Context(), models.FilterSpec{}); err != nil {
				return err
			}
			t, err := a.Tasks.ToggleCompletion(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			state := "open"
			if t.IsCompleted {
				state = "completed"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Task %s is now %s\n", t.ID, state)
			return nil
		},
	}
}

// NewRemoveCmd creates the rm command
func NewRemoveCmd(d *Deps) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"delete"},
		Short:   "Delete a task",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := d.App(cmd.Context())
			if err != nil {
				return err
			}
			if err := a.Tasks.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted task %s\n", args[0])
			return nil
		},
	}
}
