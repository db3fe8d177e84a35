package tui

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"renoplan/internal/contextmgr"
	"renoplan/internal/orchestrator"
	"renoplan/internal/provider"
	"renoplan/internal/storage"
	"renoplan/internal/task"
)

type nullProvider struct{}

func (nullProvider) Chat(ctx context.Context, req provider.ChatRequest, cb *provider.StreamCallbacks) (provider.ChatResponse, error) {
	return provider.ChatResponse{}, nil
}
func (nullProvider) ListModels(ctx context.Context) ([]provider.ModelInfo, error) { return nil, nil }
func (nullProvider) Name() string                                                 { return "null" }
func (nullProvider) CurrentModel() string                                         { return "null" }
func (nullProvider) SetModel(m string) error                                      { return nil }

func newTestBoard(t *testing.T) (Board, *task.Task) {
	t.Helper()
	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "board.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	p := &task.Project{ID: "p", Name: "Maple St"}
	if err := store.CreateProject(p); err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	tk := &task.Task{
		ID: "t", ProjectID: "p", Title: "Paint ceiling", Room: "Kitchen",
		Status: task.StatusTodo,
		Guide: []task.ChecklistEntry{
			{Text: "cover the floor"},
			{Text: "paint"},
		},
		Materials: []task.MaterialEntry{{Text: "ceiling paint"}},
	}
	if err := store.CreateTask(tk); err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	p.Tasks = append(p.Tasks, tk)

	asm := contextmgr.New(contextmgr.DefaultTokenizer(), 0, 0)
	orch := orchestrator.New(nullProvider{}, store, asm, orchestrator.Options{})
	b := NewBoard(p, orch)
	b.width = 100
	b.height = 30
	return b, tk
}

func keyMsg(s string) tea.KeyMsg {
	switch s {
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEscape}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func update(b Board, msgs ...tea.Msg) Board {
	for _, m := range msgs {
		model, _ := b.Update(m)
		b = model.(Board)
	}
	return b
}

func TestBoard_ToggleFirstStepShowsPhotoPrompt(t *testing.T) {
	b, tk := newTestBoard(t)

	b = update(b, keyMsg("tab"), keyMsg("enter"))
	if !tk.Guide[0].Done {
		t.Fatal("first step should be toggled")
	}
	if tk.Status != task.StatusInProgress {
		t.Fatalf("status = %q", tk.Status)
	}
	if !strings.Contains(b.photoMsg, "before photo") {
		t.Fatalf("photoMsg = %q", b.photoMsg)
	}

	b = update(b, keyMsg("esc"))
	if b.photoMsg != "" {
		t.Fatal("esc should dismiss the prompt")
	}
}

func TestBoard_CompletionPrompt(t *testing.T) {
	b, tk := newTestBoard(t)

	b = update(b, keyMsg("tab"), keyMsg("enter"), keyMsg("down"), keyMsg("enter"))
	if tk.Status != task.StatusComplete {
		t.Fatalf("status = %q", tk.Status)
	}
	if !strings.Contains(b.photoMsg, "after photo") {
		t.Fatalf("photoMsg = %q", b.photoMsg)
	}
}

func TestBoard_MaterialToggleKeepsStatus(t *testing.T) {
	b, tk := newTestBoard(t)

	// tasks → guide → materials
	b = update(b, keyMsg("tab"), keyMsg("tab"), keyMsg("enter"))
	if !tk.Materials[0].Done {
		t.Fatal("material should be toggled")
	}
	if tk.Status != task.StatusTodo {
		t.Fatalf("status = %q", tk.Status)
	}
	if b.photoMsg != "" {
		t.Fatalf("material toggles never prompt: %q", b.photoMsg)
	}
}

func TestBoard_SwitchPaneSkipsEmpty(t *testing.T) {
	b, tk := newTestBoard(t)
	tk.Tools = nil

	b = update(b, keyMsg("tab"), keyMsg("tab"), keyMsg("tab"))
	if b.pane != PaneTasks {
		t.Fatalf("pane = %d, empty tools pane should be skipped", b.pane)
	}
}

func TestBoard_ViewShowsPlan(t *testing.T) {
	b, _ := newTestBoard(t)
	view := b.View()
	if !strings.Contains(view, "Paint ceiling") {
		t.Fatal("view missing task title")
	}
	if !strings.Contains(view, "cover the floor") {
		t.Fatal("view missing guide step")
	}
	if !strings.Contains(view, "ceiling paint") {
		t.Fatal("view missing material")
	}
}

func TestBoard_QuitKey(t *testing.T) {
	b, _ := newTestBoard(t)
	_, cmd := b.Update(keyMsg("q"))
	if cmd == nil {
		t.Fatal("q should quit")
	}
}
