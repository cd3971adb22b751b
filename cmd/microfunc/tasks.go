package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/microfunc/microfunc/internal/core/domain"
)

func newSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Sync task definitions from the project manifest into the store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context(), appOptions{})
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.requireTaskManager(); err != nil {
				return err
			}

			tasks, err := a.manifestTasks()
			if err != nil {
				return err
			}
			if err := a.engine.Sync(cmd.Context(), tasks); err != nil {
				return err
			}
			fmt.Printf("Synced %d tasks\n", len(tasks))
			return nil
		},
	}
}

func newTasksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "Inspect and manage tracked tasks",
	}
	cmd.AddCommand(newTasksListCmd(), newTasksShowCmd(), newTasksUpdateCmd(), newTasksExecuteCmd())
	return cmd
}

func newTasksListCmd() *cobra.Command {
	var status, taskType, assignee, priority string
	var tags []string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks, optionally filtered",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context(), appOptions{})
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.requireTaskManager(); err != nil {
				return err
			}

			filter := domain.TaskFilter{
				Status:   domain.TaskStatus(status),
				Type:     domain.TaskType(taskType),
				Assignee: assignee,
				Priority: domain.TaskPriority(priority),
				Tags:     tags,
			}
			tasks, err := a.engine.List(cmd.Context(), filter)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTITLE\tSTATUS\tPRIORITY\tASSIGNEE")
			for _, t := range tasks {
				who := t.Assignee
				if who == "" {
					who = t.Executor
				}
				if who == "" {
					who = "-"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", t.ID, t.Title, t.Status, t.Priority, who)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "filter by status")
	cmd.Flags().StringVar(&taskType, "type", "", "filter by task type (manual|automated)")
	cmd.Flags().StringVar(&assignee, "assignee", "", "filter by assignee")
	cmd.Flags().StringVar(&priority, "priority", "", "filter by priority")
	cmd.Flags().StringSliceVar(&tags, "tag", nil, "filter by tag (repeatable, all must match)")
	return cmd
}

func newTasksShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one task with its history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), appOptions{})
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.requireTaskManager(); err != nil {
				return err
			}

			task, err := a.engine.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printTask(task)
			return nil
		},
	}
}

func newTasksUpdateCmd() *cobra.Command {
	var comment string

	cmd := &cobra.Command{
		Use:   "update <id> <status>",
		Short: "Set a task's status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), appOptions{})
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.requireTaskManager(); err != nil {
				return err
			}

			if err := a.engine.RequestStatusChange(cmd.Context(), args[0], args[1], "user", comment); err != nil {
				return err
			}
			fmt.Printf("Task %s status set to %s\n", args[0], args[1])
			return nil
		},
	}

	cmd.Flags().StringVar(&comment, "comment", "", "comment recorded with the transition")
	return cmd
}

func newTasksExecuteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "execute <id>",
		Short: "Run an automated task's script now",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), appOptions{})
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.requireTaskManager(); err != nil {
				return err
			}

			ok, err := a.executor.Execute(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("task %s failed; see 'tasks show %s' for details", args[0], args[0])
			}
			fmt.Printf("Task %s executed successfully\n", args[0])
			return nil
		},
	}
}

func printTask(t *domain.Task) {
	fmt.Printf("Task %s:\n", t.ID)
	fmt.Printf("  Title:    %s\n", t.Title)
	fmt.Printf("  Desc:     %s\n", t.Description)
	fmt.Printf("  Type:     %s\n", t.Type)
	fmt.Printf("  Status:   %s\n", t.Status)
	fmt.Printf("  Priority: %s\n", t.Priority)

	if t.Type == domain.TaskTypeManual {
		fmt.Printf("  Assignee: %s\n", valueOrDash(t.Assignee))
		fmt.Printf("  Due:      %s\n", valueOrDash(t.DueDate))
	} else {
		fmt.Printf("  Executor: %s\n", valueOrDash(t.Executor))
		fmt.Printf("  Trigger:  %s\n", valueOrDash(string(t.Trigger)))
		fmt.Printf("  Script:   %s\n", valueOrDash(t.Script))
		fmt.Printf("  Schedule: %s\n", valueOrDash(t.Schedule))
	}
	fmt.Printf("  Tags:     %s\n", valueOrDash(strings.Join(t.Tags, ", ")))

	if len(t.History) > 0 {
		fmt.Println("\nHistory:")
		for _, e := range t.History {
			old := "-"
			if e.OldStatus != nil {
				old = string(*e.OldStatus)
			}
			fmt.Printf("  [%s] %s: %s -> %s\n", e.Timestamp.Format("2006-01-02 15:04:05"), e.ChangedBy, old, e.NewStatus)
			if e.Comment != "" {
				fmt.Printf("    Comment: %s\n", e.Comment)
			}
		}
	}
}

func valueOrDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
