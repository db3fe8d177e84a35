// Package tui renders the interactive task board: a task list on the
// left and the selected task's plan (steps, materials, tools) on the
// right, with checklist toggling routed through the engine.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"renoplan/internal/orchestrator"
	"renoplan/internal/task"
)

// Pane 看板区域 / Pane identifies a board pane
type Pane int

const (
	PaneTasks Pane = iota
	PaneGuide
	PaneMaterials
	PaneTools
)

// Board Bubble Tea 主 Model
// Board is the main Bubble Tea model
type Board struct {
	project *task.Project
	orch    *orchestrator.Orchestrator

	width  int
	height int

	pane     Pane
	taskIdx  int
	itemIdx  int
	lastErr  string
	photoMsg string

	theme Theme
	keys  KeyMap
}

// NewBoard 创建任务看板
// NewBoard creates the task board for a project
func NewBoard(p *task.Project, orch *orchestrator.Orchestrator) Board {
	return Board{
		project: p,
		orch:    orch,
		pane:    PaneTasks,
		theme:   DarkTheme(),
		keys:    DefaultKeyMap(),
	}
}

func (b Board) Init() tea.Cmd {
	return nil
}

func (b Board) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		b.width = msg.Width
		b.height = msg.Height
		return b, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, b.keys.Quit):
			return b, tea.Quit
		case key.Matches(msg, b.keys.DismissNote):
			b.photoMsg = ""
			b.lastErr = ""
			return b, nil
		case key.Matches(msg, b.keys.Up):
			b.move(-1)
			return b, nil
		case key.Matches(msg, b.keys.Down):
			b.move(1)
			return b, nil
		case key.Matches(msg, b.keys.SwitchPane):
			b.switchPane()
			return b, nil
		case key.Matches(msg, b.keys.Toggle):
			b.toggle()
			return b, nil
		}
	}
	return b, nil
}

func (b *Board) currentTask() *task.Task {
	if b.taskIdx < 0 || b.taskIdx >= len(b.project.Tasks) {
		return nil
	}
	return b.project.Tasks[b.taskIdx]
}

func (b *Board) move(delta int) {
	if b.pane == PaneTasks {
		b.taskIdx = clamp(b.taskIdx+delta, 0, len(b.project.Tasks)-1)
		b.itemIdx = 0
		return
	}
	t := b.currentTask()
	if t == nil {
		return
	}
	b.itemIdx = clamp(b.itemIdx+delta, 0, b.paneLen(t)-1)
}

func (b *Board) paneLen(t *task.Task) int {
	switch b.pane {
	case PaneGuide:
		return len(t.Guide)
	case PaneMaterials:
		return len(t.Materials)
	case PaneTools:
		return len(t.Tools)
	}
	return len(b.project.Tasks)
}

// switchPane 轮换焦点，跳过空区域
// switchPane cycles focus, skipping empty panes.
func (b *Board) switchPane() {
	t := b.currentTask()
	if t == nil {
		b.pane = PaneTasks
		return
	}
	order := []Pane{PaneTasks, PaneGuide, PaneMaterials, PaneTools}
	cur := 0
	for i, p := range order {
		if p == b.pane {
			cur = i
			break
		}
	}
	for i := 1; i <= len(order); i++ {
		next := order[(cur+i)%len(order)]
		b.pane = next
		if next == PaneTasks || b.paneLen(t) > 0 {
			break
		}
	}
	b.itemIdx = 0
}

// toggle 切换当前条目；步骤边沿触发拍照提示
// toggle flips the current item; guide edges raise the photo prompt.
func (b *Board) toggle() {
	t := b.currentTask()
	if t == nil {
		return
	}
	b.lastErr = ""
	var err error
	switch b.pane {
	case PaneGuide:
		if b.itemIdx >= len(t.Guide) {
			return
		}
		var sig task.ToggleSignal
		sig, err = b.orch.ToggleGuideItem(b.project, t.ID, b.itemIdx, !t.Guide[b.itemIdx].Done)
		switch {
		case sig.Completed:
			b.photoMsg = "Task complete! Take an after photo to remember the transformation."
		case sig.FirstStep:
			b.photoMsg = "First step done! Take a before photo while the room still shows its old state."
		}
	case PaneMaterials:
		if b.itemIdx >= len(t.Materials) {
			return
		}
		err = b.orch.ToggleMaterial(b.project, t.ID, b.itemIdx, !t.Materials[b.itemIdx].Done)
	case PaneTools:
		if b.itemIdx >= len(t.Tools) {
			return
		}
		err = b.orch.ToggleTool(b.project, t.ID, b.itemIdx, !t.Tools[b.itemIdx].Owned)
	}
	if err != nil {
		b.lastErr = err.Error()
	}
}

func (b Board) View() string {
	if b.width == 0 || b.height == 0 {
		return "Loading board..."
	}

	listWidth := b.width * 35 / 100
	if listWidth < 24 {
		listWidth = 24
	}
	detailWidth := b.width - listWidth - 1

	list := b.renderTaskList(listWidth)
	detail := b.renderDetail(detailWidth)
	body := lipgloss.JoinHorizontal(lipgloss.Top, list, b.theme.DetailStyle.Render(detail))

	status := b.renderStatusLine()
	return lipgloss.JoinVertical(lipgloss.Left, body, status)
}

func (b Board) renderTaskList(width int) string {
	var lines []string
	lines = append(lines, b.theme.TitleStyle.Render(" "+b.project.Name))
	lines = append(lines, "")
	if len(b.project.Tasks) == 0 {
		lines = append(lines, b.theme.MutedStyle.Render("  no tasks yet"))
	}
	for i, t := range b.project.Tasks {
		line := fmt.Sprintf(" %s %s", statusGlyph(t.Status), t.Title)
		if t.Room != "" {
			line += b.theme.MutedStyle.Render(" · " + t.Room)
		}
		if i == b.taskIdx && b.pane == PaneTasks {
			line = b.theme.SelectedStyle.Render(line)
		}
		lines = append(lines, line)
	}
	return lipgloss.NewStyle().Width(width).Render(strings.Join(lines, "\n"))
}

func (b Board) renderDetail(width int) string {
	t := b.currentTask()
	if t == nil {
		return b.theme.MutedStyle.Render("  select a task")
	}

	var lines []string
	lines = append(lines, b.theme.TitleStyle.Render(" "+t.Title))
	if !t.HasPlan() {
		lines = append(lines, "")
		lines = append(lines, b.theme.MutedStyle.Render("  no plan yet — chat with the assistant to create one"))
		return lipgloss.NewStyle().Width(width).Render(strings.Join(lines, "\n"))
	}

	lines = append(lines, b.theme.MutedStyle.Render(fmt.Sprintf("  %s · %s", t.CostRange, t.TimeEstimate)))
	lines = append(lines, "")
	lines = append(lines, b.theme.TitleStyle.Render(" Steps"))
	for i, e := range t.Guide {
		lines = append(lines, b.checkLine(e.Text, e.Done, b.pane == PaneGuide && i == b.itemIdx))
	}
	if len(t.Materials) > 0 {
		lines = append(lines, "")
		lines = append(lines, b.theme.TitleStyle.Render(" Materials"))
		for i, e := range t.Materials {
			text := e.Text
			if e.Cost != "" {
				text += " (" + e.Cost + ")"
			}
			lines = append(lines, b.checkLine(text, e.Done, b.pane == PaneMaterials && i == b.itemIdx))
		}
	}
	if len(t.Tools) > 0 {
		lines = append(lines, "")
		lines = append(lines, b.theme.TitleStyle.Render(" Tools"))
		for i, e := range t.Tools {
			lines = append(lines, b.checkLine(e.Text, e.Owned, b.pane == PaneTools && i == b.itemIdx))
		}
	}
	if len(t.SafetyNotes) > 0 {
		lines = append(lines, "")
		lines = append(lines, b.theme.TitleStyle.Render(" Safety"))
		for _, n := range t.SafetyNotes {
			lines = append(lines, b.theme.ProgressStyle.Render("  ⚠ "+n))
		}
	}
	if t.ProNote != "" {
		lines = append(lines, "")
		lines = append(lines, b.theme.MutedStyle.Render("  pro: "+t.ProNote))
	}
	return lipgloss.NewStyle().Width(width).Render(strings.Join(lines, "\n"))
}

func (b Board) checkLine(text string, done, selected bool) string {
	mark := "[ ]"
	style := b.theme.TodoStyle
	if done {
		mark = "[x]"
		style = b.theme.DoneStyle
	}
	line := fmt.Sprintf("  %s %s", mark, text)
	if selected {
		return b.theme.SelectedStyle.Render(line)
	}
	return style.Render(line)
}

func (b Board) renderStatusLine() string {
	switch {
	case b.lastErr != "":
		return b.theme.StatusStyle.Width(b.width).Render(" ✗ " + b.lastErr)
	case b.photoMsg != "":
		return b.theme.PromptStyle.Width(b.width).Render(" 📷 " + b.photoMsg + " (esc to dismiss)")
	}
	help := " ↑/↓ move · tab switch pane · enter toggle · q quit"
	return b.theme.StatusStyle.Width(b.width).Render(help)
}

func statusGlyph(s task.Status) string {
	switch s {
	case task.StatusComplete:
		return "✓"
	case task.StatusInProgress:
		return "◐"
	default:
		return "○"
	}
}

func clamp(v, lo, hi int) int {
	if hi < lo {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Run 启动任务看板 / Run starts the task board
func Run(p *task.Project, orch *orchestrator.Orchestrator) error {
	board := NewBoard(p, orch)
	prog := tea.NewProgram(board, tea.WithAltScreen())
	_, err := prog.Run()
	return err
}
