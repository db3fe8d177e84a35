package main

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"renoplan/internal/contextmgr"
	"renoplan/internal/task"
)

func newProjectCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "project",
		Short: "Manage renovation projects",
	}
	cmd.AddCommand(newProjectNewCmd(configPath))
	cmd.AddCommand(newProjectListCmd(configPath))
	cmd.AddCommand(newProjectShowCmd(configPath))
	return cmd
}

func newProjectNewCmd(configPath *string) *cobra.Command {
	var (
		vision string
		rooms  []string
	)
	cmd := &cobra.Command{
		Use:   "new NAME",
		Short: "Create a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEngine(*configPath)
			if err != nil {
				return err
			}
			defer e.Close()

			p := &task.Project{
				ID:     uuid.NewString(),
				Name:   strings.TrimSpace(args[0]),
				Vision: strings.TrimSpace(vision),
				Rooms:  rooms,
			}
			if p.Name == "" {
				return fmt.Errorf("project name is empty")
			}
			if err := e.store.CreateProject(p); err != nil {
				return err
			}
			fmt.Printf("created project %s (%s)\n", p.Name, p.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&vision, "vision", "", "free-text vision for the property")
	cmd.Flags().StringSliceVar(&rooms, "rooms", nil, "comma-separated room names")
	return cmd
}

func newProjectListCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List projects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEngine(*configPath)
			if err != nil {
				return err
			}
			defer e.Close()

			projects, err := e.store.ListProjects()
			if err != nil {
				return err
			}
			if len(projects) == 0 {
				fmt.Println("no projects yet")
				return nil
			}
			for _, p := range projects {
				fmt.Printf("%s  %s", p.ID, p.Name)
				if len(p.Rooms) > 0 {
					fmt.Printf("  (%s)", strings.Join(p.Rooms, ", "))
				}
				fmt.Println()
			}
			return nil
		},
	}
}

func newProjectShowCmd(configPath *string) *cobra.Command {
	var projectID string
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show a project and its task progress",
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
			fmt.Printf("%s (%s)\n", p.Name, p.ID)
			if p.Vision != "" {
				fmt.Printf("vision: %s\n", p.Vision)
			}
			if len(p.Rooms) > 0 {
				fmt.Printf("rooms: %s\n", strings.Join(p.Rooms, ", "))
			}
			fmt.Println(contextmgr.StatusDigest(p))
			return nil
		},
	}
	cmd.Flags().StringVar(&projectID, "project", "", "project id")
	return cmd
}
