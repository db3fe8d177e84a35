package main

import (
	"github.com/spf13/cobra"

	"renoplan/internal/tui"
)

func newBoardCmd(configPath *string) *cobra.Command {
	var projectID string
	cmd := &cobra.Command{
		Use:   "board",
		Short: "Open the interactive task board",
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
			return tui.Run(p, e.orch)
		},
	}
	cmd.Flags().StringVar(&projectID, "project", "", "project id")
	return cmd
}
