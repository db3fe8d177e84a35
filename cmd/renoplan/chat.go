package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"renoplan/internal/chat"
	"renoplan/internal/directive"
	"renoplan/internal/orchestrator"
	"renoplan/internal/task"
)

func newChatCmd(configPath *string) *cobra.Command {
	var (
		projectID string
		taskID    string
	)
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with the planning assistant",
		Long: "Without --task, chat at the project level: discuss the renovation as a\n" +
			"whole and accept suggested tasks. With --task, discuss one task; the\n" +
			"assistant gathers details and generates or updates its plan.",
		Args: cobra.NoArgs,
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
			return runChatREPL(e, p, taskID)
		},
	}
	cmd.Flags().StringVar(&projectID, "project", "", "project id")
	cmd.Flags().StringVar(&taskID, "task", "", "task id (omit for project-level chat)")
	return cmd
}

func runChatREPL(e *engine, p *task.Project, taskID string) error {
	home, _ := os.UserHomeDir()
	input, inputErr := newLineInput(filepath.Join(home, ".renoplan", "chat.history"))
	if inputErr != nil {
		fmt.Fprintf(os.Stderr, "line editor unavailable, fallback to basic input: %v\n", inputErr)
	}
	defer input.Close()

	md := newMarkdownRenderer()

	if taskID != "" {
		t := p.FindTask(taskID)
		if t == nil {
			return fmt.Errorf("task not found: %s", taskID)
		}
		fmt.Printf("chatting about %q in %s (ctrl+d to leave)\n", t.Title, p.Name)
		if len(t.Conversation) == 0 {
			intro, err := e.orch.IntroduceTask(context.Background(), p, taskID)
			if err != nil {
				return err
			}
			if intro != "" {
				fmt.Printf("\n%s\n%s\n", assistantLabel, md.Render(intro))
			}
		}
	} else {
		fmt.Printf("chatting about project %q (ctrl+d to leave)\n", p.Name)
	}

	var pending []directive.SuggestTask

	for {
		line, err := input.ReadLine("> ")
		if err != nil {
			switch {
			case errors.Is(err, readline.ErrInterrupt):
				fmt.Println()
				continue
			case errors.Is(err, io.EOF):
				fmt.Println("\nbye")
				return nil
			default:
				return fmt.Errorf("read input: %w", err)
			}
		}
		text := strings.TrimSpace(line)
		if text == "" {
			continue
		}

		// /accept N 接受上一轮的任务建议
		// /accept N accepts a suggestion from the previous turn.
		if strings.HasPrefix(text, "/accept") {
			if err := acceptPending(e, p, text, pending); err != nil {
				fmt.Fprintf(os.Stderr, "%v\n", err)
			}
			continue
		}

		reply, err := dispatchTurn(e, p, taskID, chat.Text(chat.RoleUser, text))
		if err != nil {
			fmt.Fprintf(os.Stderr, "turn failed: %v\n", err)
			continue
		}

		fmt.Printf("\n%s\n%s\n", assistantLabel, md.Render(reply.DisplayText))
		reportSideEffects(p, taskID, reply)
		pending = reply.Suggestions
	}
}

// dispatchTurn 支持 Ctrl+C 取消当前轮次而不影响已存状态
// dispatchTurn wires Ctrl+C to cancel the in-flight turn; a cancelled
// turn leaves stored state untouched.
func dispatchTurn(e *engine, p *task.Project, taskID string, userTurn chat.Message) (orchestrator.Reply, error) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	if taskID != "" {
		return e.orch.RunTaskChat(ctx, p, taskID, userTurn, nil)
	}
	return e.orch.RunProjectChat(ctx, p, userTurn, nil)
}

func reportSideEffects(p *task.Project, taskID string, reply orchestrator.Reply) {
	if reply.PlanGenerated {
		printNotice("✦ plan generated")
		if t := p.FindTask(taskID); t != nil {
			printTask(t)
		}
	}
	if reply.PlanUpdated {
		printNotice("✦ plan updated")
	}
	if reply.PlanErr != nil {
		fmt.Fprintf(os.Stderr, "plan step failed: %v\n", reply.PlanErr)
	}
	for i, s := range reply.Suggestions {
		line := fmt.Sprintf("suggested task %d: %s", i+1, s.Title)
		if s.Room != "" {
			line += " (" + s.Room + ")"
		}
		fmt.Println(suggestionStyle.Render(line))
	}
	if len(reply.Suggestions) > 0 {
		fmt.Println(suggestionStyle.Render("accept with: /accept N"))
	}
}

func acceptPending(e *engine, p *task.Project, text string, pending []directive.SuggestTask) error {
	if len(pending) == 0 {
		return fmt.Errorf("no pending suggestions")
	}
	fields := strings.Fields(text)
	n := 1
	if len(fields) > 1 {
		parsed, err := strconv.Atoi(fields[1])
		if err != nil {
			return fmt.Errorf("usage: /accept N")
		}
		n = parsed
	}
	if n < 1 || n > len(pending) {
		return fmt.Errorf("suggestion %d out of range (1-%d)", n, len(pending))
	}
	t, err := e.orch.AcceptSuggestion(p, pending[n-1])
	if err != nil {
		return err
	}
	printNotice("✦ created task %q (%s)", t.Title, t.ID)
	return nil
}
