package contextmgr

import (
	"strings"
	"testing"

	"renoplan/internal/chat"
	"renoplan/internal/task"
)

func fixtureProject() (*task.Project, *task.Task) {
	t1 := &task.Task{
		ID:     "t1",
		Title:  "Refinish floors",
		Room:   "Hallway",
		Status: task.StatusInProgress,
		Guide: []task.ChecklistEntry{
			{Text: "Sand", Done: true},
			{Text: "Varnish", Done: false},
		},
		Conversation: []chat.Message{
			chat.Text(chat.RoleUser, "The boards are oak, quite scratched."),
			chat.Text(chat.RoleAssistant, "Good to know. What finish do you want?"),
		},
	}
	t2 := &task.Task{ID: "t2", Title: "Paint ceiling", Room: "Kitchen", Status: task.StatusTodo}
	p := &task.Project{
		ID:     "p1",
		Name:   "Maple Street House",
		Vision: "bright scandinavian feel",
		Tasks:  []*task.Task{t1, t2},
	}
	return p, t1
}

func TestTaskChat_PrePlanFraming(t *testing.T) {
	p, _ := fixtureProject()
	fresh := &task.Task{Title: "Tile splashback", Room: "Kitchen", Conversation: []chat.Message{
		chat.Text(chat.RoleUser, "hello"),
	}}
	a := New(nil, 0, 0)
	msgs := a.TaskChat(p, fresh)
	if msgs[0].Role != chat.RoleSystem {
		t.Fatalf("first message role = %q", msgs[0].Role)
	}
	if !strings.Contains(msgs[0].Content, "[GENERATE_PLAN]") {
		t.Fatal("pre-plan framing must instruct the generation marker")
	}
	if strings.Contains(msgs[0].Content, "[UPDATE_PLAN:") {
		t.Fatal("pre-plan framing must not mention the update marker")
	}
	if len(msgs) != 2 || msgs[1].Content != "hello" {
		t.Fatalf("conversation not carried: %+v", msgs)
	}
}

func TestTaskChat_PostPlanFraming(t *testing.T) {
	p, t1 := fixtureProject()
	a := New(nil, 0, 0)
	msgs := a.TaskChat(p, t1)
	if !strings.Contains(msgs[0].Content, "[UPDATE_PLAN:") {
		t.Fatal("post-plan framing must instruct the update marker")
	}
	if strings.Contains(msgs[0].Content, "[GENERATE_PLAN]") {
		t.Fatal("post-plan framing must not instruct generation")
	}
	if !strings.Contains(msgs[0].Content, "Varnish") {
		t.Fatal("framing should carry the current plan summary")
	}
}

func TestPlanGeneration_FullConversationNoTruncation(t *testing.T) {
	p, t1 := fixtureProject()
	for i := 0; i < 50; i++ {
		t1.Conversation = append(t1.Conversation, chat.Text(chat.RoleUser, strings.Repeat("detail ", 40)))
	}
	// 即使预算极小，生成调用也不截断
	// A tiny budget must not truncate the generation call site.
	a := New(&Tokenizer{fallback: true}, 10, 3)
	msgs := a.PlanGeneration(p, t1)
	if len(msgs) != 1+len(t1.Conversation) {
		t.Fatalf("generation call truncated: %d messages for %d turns", len(msgs), len(t1.Conversation))
	}
	if !strings.Contains(msgs[0].Content, "Maple Street House") || !strings.Contains(msgs[0].Content, "scandinavian") {
		t.Fatal("generation framing must carry project name and vision")
	}
}

func TestProjectChat_DigestAndSuggestInstruction(t *testing.T) {
	p, _ := fixtureProject()
	a := New(nil, 0, 0)
	msgs := a.ProjectChat(p)
	framing := msgs[0].Content
	if !strings.Contains(framing, "Refinish floors [Hallway]: in progress, 1/2 steps") {
		t.Fatalf("digest missing or wrong:\n%s", framing)
	}
	if !strings.Contains(framing, "Paint ceiling [Kitchen]: to do, no plan yet") {
		t.Fatalf("planless task digest wrong:\n%s", framing)
	}
	if !strings.Contains(framing, "[SUGGEST_TASK:") {
		t.Fatal("framing must instruct the suggest marker")
	}
}

func TestAssembler_DoesNotMutateTurns(t *testing.T) {
	p, t1 := fixtureProject()
	before := t1.Conversation[0].Content
	a := New(nil, 0, 0)
	msgs := a.TaskChat(p, t1)
	msgs[1].Content = "mutated"
	if t1.Conversation[0].Content != before {
		t.Fatal("assembler output must not alias conversation state")
	}
}

func TestStatusDigest_Empty(t *testing.T) {
	if got := StatusDigest(&task.Project{}); got != "- (no tasks yet)" {
		t.Fatalf("digest = %q", got)
	}
}
