package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"renoplan/internal/config"
	"renoplan/internal/contextmgr"
	"renoplan/internal/orchestrator"
	"renoplan/internal/provider"
	"renoplan/internal/storage"
	"renoplan/internal/task"
)

// engine 组合期装配的运行时依赖
// engine holds the runtime dependencies wired at composition time.
type engine struct {
	cfg   config.Config
	store storage.Store
	orch  *orchestrator.Orchestrator
}

func (e *engine) Close() {
	if e.store != nil {
		_ = e.store.Close()
	}
}

func newEngine(configPath string) (*engine, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	store, err := storage.NewSQLiteStore(cfg.Storage.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	p := provider.NewOpenAIProvider(provider.OpenAIConfig{
		BaseURL:    cfg.Provider.BaseURL,
		APIKey:     cfg.Provider.APIKey,
		Model:      cfg.Provider.Model,
		TimeoutMS:  cfg.Provider.TimeoutMS,
		MaxRetries: cfg.Provider.MaxRetries,
	})

	asm := contextmgr.New(
		contextmgr.NewTokenizerForModel(cfg.Provider.Model),
		cfg.Context.TokenBudget,
		cfg.Context.MaxTurns,
	)

	orch := orchestrator.New(p, store, asm, orchestrator.Options{
		Temperature: cfg.Sampling.Temperature,
		TopP:        cfg.Sampling.TopP,
		MaxTokens:   cfg.Sampling.MaxTokens,
	})

	return &engine{cfg: cfg, store: store, orch: orch}, nil
}

// loadProject 解析项目：优先显式 ID，单项目时自动选中
// loadProject resolves a project: an explicit id wins; with exactly one
// project on disk it is selected automatically.
func (e *engine) loadProject(id string) (*task.Project, error) {
	if id != "" {
		return e.store.LoadProject(id)
	}
	projects, err := e.store.ListProjects()
	if err != nil {
		return nil, err
	}
	switch len(projects) {
	case 0:
		return nil, fmt.Errorf("no projects yet, create one with: renoplan project new")
	case 1:
		return e.store.LoadProject(projects[0].ID)
	default:
		return nil, fmt.Errorf("multiple projects exist, pass --project")
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "renoplan",
		Short:         "Conversational home renovation planner",
		Long:          "renoplan turns conversations about your home into concrete, trackable renovation plans.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to config JSON")

	root.AddCommand(newProjectCmd(&configPath))
	root.AddCommand(newTaskCmd(&configPath))
	root.AddCommand(newChatCmd(&configPath))
	root.AddCommand(newBoardCmd(&configPath))
	root.AddCommand(newModelsCmd(&configPath))
	return root
}
