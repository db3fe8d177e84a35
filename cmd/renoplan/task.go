package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"renoplan/internal/task"
)

func newTaskCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Manage renovation tasks",
	}
	cmd.AddCommand(newTaskAddCmd(configPath))
	cmd.AddCommand(newTaskListCmd(configPath))
	cmd.AddCommand(newTaskShowCmd(configPath))
	cmd.AddCommand(newTaskRmCmd(configPath))
	return cmd
}

func newTaskAddCmd(configPath *string) *cobra.Command {
	var (
		projectID string
		room      string
		priority  int
	)
	cmd := &cobra.Command{
		Use:   "add TITLE",
		Short: "Add a task to a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEngine(*configPath)
			if err != nil {
				return err
			}
			defer e.Close()

			p, err := e.loadProject(projectID)
			if err != nil {
				return err
			}
			t, err := e.orch.CreateTask(p, args[0], room, priority)
			if err != nil {
				return err
			}
			fmt.Printf("created task %s (%s)\n", t.Title, t.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&projectID, "project", "", "project id")
	cmd.Flags().StringVar(&room, "room", "", "room the task belongs to")
	cmd.Flags().IntVar(&priority, "priority", 0, "task priority (higher sorts first)")
	return cmd
}

func newTaskListCmd(configPath *string) *cobra.Command {
	var projectID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks in a project",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEngine(*configPath)
			if err != nil {
				return err
			}
			defer e.Close()

			p, err := e.loadProject(projectID)
			if err != nil {
				return err
			}
			if len(p.Tasks) == 0 {
				fmt.Println("no tasks yet")
				return nil
			}
			for _, t := range p.Tasks {
				fmt.Printf("%s  [%-11s]  %s", t.ID, t.Status, t.Title)
				if t.Room != "" {
					fmt.Printf("  (%s)", t.Room)
				}
				fmt.Println()
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&projectID, "project", "", "project id")
	return cmd
}

func newTaskShowCmd(configPath *string) *cobra.Command {
	var projectID string
	cmd := &cobra.Command{
		Use:   "show TASK_ID",
		Short: "Show a task and its plan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEngine(*configPath)
			if err != nil {
				return err
			}
			defer e.Close()

			p, err := e.loadProject(projectID)
			if err != nil {
				return err
			}
			t := p.FindTask(args[0])
			if t == nil {
				return fmt.Errorf("task not found: %s", args[0])
			}
			printTask(t)
			return nil
		},
	}
	cmd.Flags().StringVar(&projectID, "project", "", "project id")
	return cmd
}

func newTaskRmCmd(configPath *string) *cobra.Command {
	var projectID string
	cmd := &cobra.Command{
		Use:   "rm TASK_ID",
		Short: "Delete a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEngine(*configPath)
			if err != nil {
				return err
			}
			defer e.Close()

			p, err := e.loadProject(projectID)
			if err != nil {
				return err
			}
			if err := e.orch.DeleteTask(p, args[0]); err != nil {
				return err
			}
			fmt.Println("deleted")
			return nil
		},
	}
	cmd.Flags().StringVar(&projectID, "project", "", "project id")
	return cmd
}

func printTask(t *task.Task) {
	fmt.Printf("%s (%s)\n", t.Title, t.ID)
	if t.Room != "" {
		fmt.Printf("room: %s\n", t.Room)
	}
	fmt.Printf("status: %s\n", t.Status)
	if !t.HasPlan() {
		fmt.Println("no plan yet")
		return
	}
	if t.CostRange != "" || t.TimeEstimate != "" {
		fmt.Printf("estimate: %s, %s\n", t.CostRange, t.TimeEstimate)
	}
	fmt.Println("steps:")
	for i, e := range t.Guide {
		mark := " "
		if e.Done {
			mark = "x"
		}
		fmt.Printf("  %2d. [%s] %s\n", i+1, mark, e.Text)
	}
	if len(t.Materials) > 0 {
		fmt.Println("materials:")
		for _, m := range t.Materials {
			mark := " "
			if m.Done {
				mark = "x"
			}
			fmt.Printf("  [%s] %s", mark, m.Text)
			if m.Cost != "" {
				fmt.Printf(" (%s)", m.Cost)
			}
			if m.PurchaseLink != "" {
				fmt.Printf("  %s", m.PurchaseLink)
			}
			fmt.Println()
		}
	}
	if len(t.Tools) > 0 {
		fmt.Println("tools:")
		for _, tool := range t.Tools {
			mark := " "
			if tool.Owned {
				mark = "x"
			}
			fmt.Printf("  [%s] %s\n", mark, tool.Text)
		}
	}
	for _, n := range t.SafetyNotes {
		fmt.Printf("safety: %s\n", n)
	}
	if t.ProNote != "" {
		fmt.Printf("pro: %s\n", t.ProNote)
	}
}
