package main

import (
	"fmt"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
)

var (
	assistantLabel = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#7C3AED")).
			Bold(true).
			Render("assistant")
	noticeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F59E0B")).
			Bold(true)
	suggestionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#06B6D4"))
)

// markdownRenderer 终端 Markdown 渲染器；初始化失败时退化为原文输出
// markdownRenderer renders assistant prose as terminal markdown and
// degrades to plain text when the renderer cannot initialize.
type markdownRenderer struct {
	renderer *glamour.TermRenderer
}

func newMarkdownRenderer() *markdownRenderer {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return &markdownRenderer{}
	}
	return &markdownRenderer{renderer: r}
}

func (m *markdownRenderer) Render(text string) string {
	if m.renderer == nil {
		return text
	}
	out, err := m.renderer.Render(text)
	if err != nil {
		return text
	}
	return out
}

func printNotice(format string, args ...any) {
	fmt.Println(noticeStyle.Render(fmt.Sprintf(format, args...)))
}
