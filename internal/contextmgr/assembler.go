package contextmgr

import (
	"fmt"
	"strings"

	"renoplan/internal/chat"
	"renoplan/internal/task"
)

// Assembler 为四个调用点构造模型输入：任务计划生成、任务对话、
// 项目对话、任务引导。只读，从不修改任何对话回合。
// Assembler builds the exact message sequence and framing for each of
// the four model call sites: plan generation, task chat, project chat,
// and task introduction. It only reads conversation state and never
// mutates a turn.
type Assembler struct {
	Tokenizer   *Tokenizer
	TokenBudget int // conversation token budget for chat call sites; <=0 disables
	MaxTurns    int // hard turn cap for chat call sites; <=0 disables
}

func New(tok *Tokenizer, tokenBudget, maxTurns int) *Assembler {
	return &Assembler{
		Tokenizer:   tok,
		TokenBudget: tokenBudget,
		MaxTurns:    maxTurns,
	}
}

// PlanGeneration frames the structured plan-generation call with the
// enclosing project name, task title/room and the project vision. The
// full task conversation is passed; this call site never truncates.
func (a *Assembler) PlanGeneration(p *task.Project, t *task.Task) []chat.Message {
	framing := fmt.Sprintf(
		"You are a home renovation planning assistant for the project %q.\n"+
			"Produce a complete, practical plan for the task %q in the %s.\n"+
			"%s"+
			"Base the plan strictly on what the homeowner described in the conversation.\n"+
			"Respond only with the requested structured plan.",
		p.Name, t.Title, roomOrUnspecified(t.Room), visionLine(p.Vision))

	out := []chat.Message{chat.Text(chat.RoleSystem, framing)}
	return append(out, chat.CloneAll(t.Conversation)...)
}

// TaskChat frames the task conversation. Before a plan exists the
// assistant gathers information and terminates with the plan-generation
// marker once detail is sufficient (a model judgment call, not checked
// mechanically). Once a plan exists the dialogue is supervisory and the
// update marker may be emitted only after the user agreed to a change.
func (a *Assembler) TaskChat(p *task.Project, t *task.Task) []chat.Message {
	var framing string
	if !t.HasPlan() {
		framing = fmt.Sprintf(
			"You are a home renovation planning assistant for the project %q.\n"+
				"%s"+
				"You are discussing the task %q in the %s. No plan exists yet.\n"+
				"Ask focused questions to gather the details needed for a plan: room\n"+
				"condition, dimensions, desired finish, budget and skill level.\n"+
				"When you judge that you have sufficient detail, end your reply with\n"+
				"the marker [GENERATE_PLAN] on its own at the very end. Do not emit\n"+
				"the marker before then, and never describe the plan in prose.",
			p.Name, visionLine(p.Vision), t.Title, roomOrUnspecified(t.Room))
	} else {
		framing = fmt.Sprintf(
			"You are a home renovation planning assistant for the project %q.\n"+
				"%s"+
				"You are supervising the task %q in the %s, which already has a plan:\n\n%s\n"+
				"Answer questions and advise on the work. If — and only if — the user\n"+
				"has explicitly agreed to change the plan, append a single directive of\n"+
				"the form [UPDATE_PLAN:{...}] containing only the changed arrays\n"+
				"(\"guide\", \"materials\", \"tools\") as compact single-line JSON.",
			p.Name, visionLine(p.Vision), t.Title, roomOrUnspecified(t.Room), planSummary(t))
	}

	out := []chat.Message{chat.Text(chat.RoleSystem, framing)}
	turns := TruncateTurns(t.Conversation, a.Tokenizer, a.TokenBudget, a.MaxTurns)
	return append(out, chat.CloneAll(turns)...)
}

// ProjectChat frames the project-level conversation with a live task
// status digest so the assistant can reference real progress, and
// instructs it to propose chronologically sensible next tasks.
func (a *Assembler) ProjectChat(p *task.Project) []chat.Message {
	framing := fmt.Sprintf(
		"You are a home renovation planning assistant for the project %q.\n"+
			"%s"+
			"Current tasks and progress:\n%s\n"+
			"Discuss the renovation as a whole. When proposing a next task, emit one\n"+
			"directive per proposal of the form [SUGGEST_TASK:{\"title\":\"...\",\"room\":\"...\"}]\n"+
			"inline in your reply. Propose only work that is chronologically sensible:\n"+
			"never suggest a finishing step before its preparation step for the same\n"+
			"surface (e.g. no painting before plastering has been planned).",
		p.Name, visionLine(p.Vision), StatusDigest(p))

	out := []chat.Message{chat.Text(chat.RoleSystem, framing)}
	turns := TruncateTurns(p.Conversation, a.Tokenizer, a.TokenBudget, a.MaxTurns)
	return append(out, chat.CloneAll(turns)...)
}

// TaskIntro frames the one-shot introduction produced the first time a
// task is opened.
func (a *Assembler) TaskIntro(p *task.Project, t *task.Task) []chat.Message {
	framing := fmt.Sprintf(
		"You are a home renovation planning assistant for the project %q.\n"+
			"%s"+
			"The homeowner just opened the task %q in the %s for the first time.\n"+
			"Introduce the task in two or three friendly sentences and ask the first\n"+
			"question you need answered to start planning. Plain prose only, no\n"+
			"directives or markers.",
		p.Name, visionLine(p.Vision), t.Title, roomOrUnspecified(t.Room))
	return []chat.Message{chat.Text(chat.RoleSystem, framing)}
}

// StatusDigest 每个任务一行：标题、状态、done/total 步数
// StatusDigest renders one line per task: title, status, and the
// done/total step fraction.
func StatusDigest(p *task.Project) string {
	if p == nil || len(p.Tasks) == 0 {
		return "- (no tasks yet)"
	}
	var b strings.Builder
	for _, t := range p.Tasks {
		if t == nil {
			continue
		}
		done := 0
		for _, e := range t.Guide {
			if e.Done {
				done++
			}
		}
		fraction := "no plan yet"
		if len(t.Guide) > 0 {
			fraction = fmt.Sprintf("%d/%d steps", done, len(t.Guide))
		}
		fmt.Fprintf(&b, "- %s [%s]: %s, %s\n", t.Title, roomOrUnspecified(t.Room), statusLabel(t.Status), fraction)
	}
	return strings.TrimRight(b.String(), "\n")
}

// planSummary renders the current plan compactly for supervisory framing.
func planSummary(t *task.Task) string {
	var b strings.Builder
	b.WriteString("Steps:\n")
	for _, e := range t.Guide {
		mark := " "
		if e.Done {
			mark = "x"
		}
		fmt.Fprintf(&b, "  [%s] %s\n", mark, e.Text)
	}
	if len(t.Materials) > 0 {
		b.WriteString("Materials:\n")
		for _, e := range t.Materials {
			fmt.Fprintf(&b, "  - %s\n", e.Text)
		}
	}
	if len(t.Tools) > 0 {
		b.WriteString("Tools:\n")
		for _, e := range t.Tools {
			fmt.Fprintf(&b, "  - %s\n", e.Text)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func statusLabel(s task.Status) string {
	switch s {
	case task.StatusInProgress:
		return "in progress"
	case task.StatusComplete:
		return "complete"
	default:
		return "to do"
	}
}

func visionLine(vision string) string {
	vision = strings.TrimSpace(vision)
	if vision == "" {
		return ""
	}
	return fmt.Sprintf("The homeowner's vision for the property: %s\n", vision)
}

func roomOrUnspecified(room string) string {
	room = strings.TrimSpace(room)
	if room == "" {
		return "unspecified room"
	}
	return room
}
