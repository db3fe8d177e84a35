package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"renoplan/internal/config"
	"renoplan/internal/provider"
)

func newModelsCmd(configPath *string) *cobra.Command {
	var save string
	cmd := &cobra.Command{
		Use:   "models",
		Short: "List available models or save a default",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}

			if save != "" {
				if err := config.WriteProviderModel(".", save); err != nil {
					return err
				}
				fmt.Printf("saved default model %q to project config\n", save)
				return nil
			}

			p := provider.NewOpenAIProvider(provider.OpenAIConfig{
				BaseURL:   cfg.Provider.BaseURL,
				APIKey:    cfg.Provider.APIKey,
				Model:     cfg.Provider.Model,
				TimeoutMS: cfg.Provider.TimeoutMS,
			})
			models, err := p.ListModels(context.Background())
			if err != nil {
				return err
			}
			for _, m := range models {
				marker := "  "
				if m.ID == cfg.Provider.Model {
					marker = "* "
				}
				fmt.Printf("%s%s\n", marker, m.ID)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&save, "save", "", "write the given model to the project config")
	return cmd
}
