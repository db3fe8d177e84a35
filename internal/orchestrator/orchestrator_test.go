package orchestrator

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"renoplan/internal/chat"
	"renoplan/internal/contextmgr"
	"renoplan/internal/provider"
	"renoplan/internal/storage"
	"renoplan/internal/task"
)

type scripted struct {
	content string
	err     error
}

type scriptedProvider struct {
	mu        sync.Mutex
	responses []scripted
	requests  []provider.ChatRequest
}

func (s *scriptedProvider) push(content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses = append(s.responses, scripted{content: content})
}

func (s *scriptedProvider) pushErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses = append(s.responses, scripted{err: err})
}

func (s *scriptedProvider) Chat(ctx context.Context, req provider.ChatRequest, cb *provider.StreamCallbacks) (provider.ChatResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	if len(s.responses) == 0 {
		return provider.ChatResponse{}, fmt.Errorf("no scripted response")
	}
	next := s.responses[0]
	s.responses = s.responses[1:]
	if next.err != nil {
		return provider.ChatResponse{}, next.err
	}
	return provider.ChatResponse{Content: next.content, FinishReason: "stop"}, nil
}

func (s *scriptedProvider) ListModels(ctx context.Context) ([]provider.ModelInfo, error) {
	return nil, nil
}
func (s *scriptedProvider) Name() string            { return "scripted" }
func (s *scriptedProvider) CurrentModel() string    { return "scripted-model" }
func (s *scriptedProvider) SetModel(m string) error { return nil }

func (s *scriptedProvider) requestCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

func (s *scriptedProvider) lastRequest() provider.ChatRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[len(s.requests)-1]
}

func newTestEnv(t *testing.T) (*Orchestrator, storage.Store, *scriptedProvider, *task.Project, *task.Task) {
	t.Helper()
	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	p := &task.Project{ID: "p1", Name: "Maple St", Vision: "bright and airy"}
	if err := store.CreateProject(p); err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	tk := &task.Task{ID: "t1", ProjectID: "p1", Title: "Refinish floors", Room: "Hallway", Status: task.StatusTodo}
	if err := store.CreateTask(tk); err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	p.Tasks = append(p.Tasks, tk)

	sp := &scriptedProvider{}
	asm := contextmgr.New(contextmgr.DefaultTokenizer(), 0, 0)
	o := New(sp, store, asm, Options{Temperature: 0.7, TopP: 1.0, MaxTokens: 1024})
	return o, store, sp, p, tk
}

const validPlanJSON = `{
	"guide": [{"text": "sand the boards", "done": false}, {"text": "apply varnish", "done": false}],
	"materials": [{"text": "varnish 1L", "cost": "25.00", "purchaseLink": "https://www.homedepot.com/p/varnish"}],
	"tools": [{"text": "orbital sander", "owned": false}],
	"safetyNotes": ["ventilate the room"],
	"costRange": "$40-$80",
	"timeEstimate": "one weekend"
}`

func TestRunTaskChat_GenerateFlow(t *testing.T) {
	o, store, sp, p, tk := newTestEnv(t)
	sp.push("Great, I have what I need. [GENERATE_PLAN]")
	sp.push(validPlanJSON)

	reply, err := o.RunTaskChat(context.Background(), p, "t1", chat.Text(chat.RoleUser, "pine boards, worn finish"), nil)
	if err != nil {
		t.Fatalf("RunTaskChat: %v", err)
	}
	if !reply.PlanGenerated || reply.PlanErr != nil {
		t.Fatalf("reply = %+v", reply)
	}
	if reply.DisplayText != "Great, I have what I need. " {
		t.Fatalf("display = %q", reply.DisplayText)
	}
	if len(tk.Guide) != 2 || tk.Status != task.StatusTodo {
		t.Fatalf("plan not applied: %+v", tk)
	}
	if tk.Materials[0].PurchaseLink != "https://www.homedepot.com/p/varnish?ref=renoplan" {
		t.Fatalf("link not normalized: %q", tk.Materials[0].PurchaseLink)
	}
	if sp.requestCount() != 2 {
		t.Fatalf("requests = %d", sp.requestCount())
	}
	if sp.lastRequest().Schema == nil {
		t.Fatal("generation call missing schema")
	}

	// 持久化核对 / Verify persistence
	got, err := store.LoadTask("t1")
	if err != nil {
		t.Fatalf("LoadTask: %v", err)
	}
	if len(got.Guide) != 2 || len(got.Conversation) != 2 {
		t.Fatalf("persisted wrong: guide=%d turns=%d", len(got.Guide), len(got.Conversation))
	}
	if !strings.Contains(got.Conversation[1].Content, "[GENERATE_PLAN]") {
		t.Fatal("raw assistant turn should keep the marker")
	}
}

func TestRunTaskChat_UpdateIgnoredBeforePlan(t *testing.T) {
	o, _, sp, p, tk := newTestEnv(t)
	sp.push(`Sure. [UPDATE_PLAN:{"guide":[{"text":"new step","done":false}]}]`)

	reply, err := o.RunTaskChat(context.Background(), p, "t1", chat.Text(chat.RoleUser, "change the plan"), nil)
	if err != nil {
		t.Fatalf("RunTaskChat: %v", err)
	}
	if reply.PlanUpdated || reply.PlanGenerated {
		t.Fatalf("no side effect expected: %+v", reply)
	}
	if len(tk.Guide) != 0 {
		t.Fatalf("guide should stay empty: %+v", tk.Guide)
	}
	if reply.DisplayText != "Sure. " {
		t.Fatalf("display = %q", reply.DisplayText)
	}
}

func TestRunTaskChat_GenerateIgnoredAfterPlan(t *testing.T) {
	o, _, sp, p, tk := newTestEnv(t)
	tk.Guide = []task.ChecklistEntry{{Text: "sand"}}
	tk.Rederive()
	sp.push("Let me redo it. [GENERATE_PLAN]")

	reply, err := o.RunTaskChat(context.Background(), p, "t1", chat.Text(chat.RoleUser, "hello"), nil)
	if err != nil {
		t.Fatalf("RunTaskChat: %v", err)
	}
	if reply.PlanGenerated || reply.PlanErr != nil {
		t.Fatalf("generation must not run once a plan exists: %+v", reply)
	}
	if sp.requestCount() != 1 {
		t.Fatalf("requests = %d", sp.requestCount())
	}
}

func TestRunTaskChat_UpdateFlow(t *testing.T) {
	o, store, sp, p, tk := newTestEnv(t)
	tk.Guide = []task.ChecklistEntry{{Text: "sand", Done: true}, {Text: "varnish"}}
	tk.Rederive()
	sp.push(`Done, swapped the varnish. [UPDATE_PLAN:{"materials":[{"text":"water-based varnish","done":false}]}]`)

	reply, err := o.RunTaskChat(context.Background(), p, "t1", chat.Text(chat.RoleUser, "use water-based instead"), nil)
	if err != nil {
		t.Fatalf("RunTaskChat: %v", err)
	}
	if !reply.PlanUpdated {
		t.Fatalf("update should apply: %+v", reply)
	}
	if len(tk.Materials) != 1 || tk.Materials[0].Text != "water-based varnish" {
		t.Fatalf("materials wrong: %+v", tk.Materials)
	}
	// 更新未触及 guide，状态保持 / Guide untouched, status preserved
	if tk.Status != task.StatusInProgress {
		t.Fatalf("status = %q", tk.Status)
	}
	got, err := store.LoadTask("t1")
	if err != nil {
		t.Fatalf("LoadTask: %v", err)
	}
	if len(got.Materials) != 1 {
		t.Fatalf("update not persisted: %+v", got.Materials)
	}
}

func TestRunTaskChat_AfterReloadKeepsStoredHistory(t *testing.T) {
	o, store, sp, _, tk := newTestEnv(t)
	tk.Conversation = []chat.Message{
		chat.Text(chat.RoleUser, "what wood is this?"),
		chat.Text(chat.RoleAssistant, "looks like pine."),
		chat.Text(chat.RoleUser, "any prep needed?"),
		chat.Text(chat.RoleAssistant, "clear the room first."),
	}
	if err := store.SaveTask(tk); err != nil {
		t.Fatalf("SaveTask: %v", err)
	}

	// 新会话从磁盘重载项目再继续聊
	// A fresh session reloads the project from disk before chatting.
	p, err := store.LoadProject("p1")
	if err != nil {
		t.Fatalf("LoadProject: %v", err)
	}
	loaded := p.FindTask("t1")
	if loaded == nil || len(loaded.Conversation) != 4 {
		t.Fatalf("reloaded task not hydrated: %+v", loaded)
	}

	sp.push("A sander and some patience.")
	if _, err := o.RunTaskChat(context.Background(), p, "t1", chat.Text(chat.RoleUser, "what tools?"), nil); err != nil {
		t.Fatalf("RunTaskChat: %v", err)
	}

	// 模型必须看到完整历史 / The model must see the full history
	var sawOldest bool
	for _, m := range sp.lastRequest().Messages {
		if strings.Contains(m.PlainText(), "what wood is this?") {
			sawOldest = true
		}
	}
	if !sawOldest {
		t.Fatal("dispatched request missing the stored history")
	}

	got, err := store.LoadTask("t1")
	if err != nil {
		t.Fatalf("LoadTask: %v", err)
	}
	if len(got.Conversation) != 6 {
		t.Fatalf("turns = %d, want 6 (stored history must survive the save)", len(got.Conversation))
	}
	if got.Conversation[0].Content != "what wood is this?" {
		t.Fatalf("oldest turn lost: %+v", got.Conversation[0])
	}
}

func TestRunTaskChat_DispatchFailureLeavesStateUntouched(t *testing.T) {
	o, store, sp, p, tk := newTestEnv(t)
	sp.pushErr(context.Canceled)

	_, err := o.RunTaskChat(context.Background(), p, "t1", chat.Text(chat.RoleUser, "hello"), nil)
	if err == nil {
		t.Fatal("expected dispatch error")
	}
	if len(tk.Conversation) != 0 {
		t.Fatalf("user turn must not be staged on failure: %+v", tk.Conversation)
	}
	got, err := store.LoadTask("t1")
	if err != nil {
		t.Fatalf("LoadTask: %v", err)
	}
	if len(got.Conversation) != 0 {
		t.Fatal("nothing should be persisted on failure")
	}
}

func TestRunTaskChat_MalformedPlanPayloadLeavesTaskUntouched(t *testing.T) {
	o, store, sp, p, tk := newTestEnv(t)
	sp.push("Ready. [GENERATE_PLAN]")
	sp.push(`{"guide": []}`)

	reply, err := o.RunTaskChat(context.Background(), p, "t1", chat.Text(chat.RoleUser, "go ahead"), nil)
	if err != nil {
		t.Fatalf("RunTaskChat: %v", err)
	}
	if reply.PlanGenerated {
		t.Fatal("nonconforming payload must not mark success")
	}
	if reply.PlanErr == nil {
		t.Fatal("expected PlanErr")
	}
	if len(tk.Guide) != 0 {
		t.Fatalf("guide must stay empty: %+v", tk.Guide)
	}
	// 对话回合仍然落盘 / The chat turns still persist
	got, err := store.LoadTask("t1")
	if err != nil {
		t.Fatalf("LoadTask: %v", err)
	}
	if len(got.Conversation) != 2 {
		t.Fatalf("turns = %d", len(got.Conversation))
	}
}

func TestRunProjectChat_SuggestionsNotAutoCreated(t *testing.T) {
	o, store, sp, p, _ := newTestEnv(t)
	sp.push(`Next I'd tackle the walls. [SUGGEST_TASK:{"title":"Plaster hallway walls","room":"Hallway"}]`)

	reply, err := o.RunProjectChat(context.Background(), p, chat.Text(chat.RoleUser, "what next?"), nil)
	if err != nil {
		t.Fatalf("RunProjectChat: %v", err)
	}
	if len(reply.Suggestions) != 1 || reply.Suggestions[0].Title != "Plaster hallway walls" {
		t.Fatalf("suggestions wrong: %+v", reply.Suggestions)
	}
	if len(p.Tasks) != 1 {
		t.Fatal("suggestion must not create a task")
	}
	if len(p.Conversation) != 2 {
		t.Fatalf("conversation = %d turns", len(p.Conversation))
	}

	created, err := o.AcceptSuggestion(p, reply.Suggestions[0])
	if err != nil {
		t.Fatalf("AcceptSuggestion: %v", err)
	}
	if created.Status != task.StatusTodo || created.Room != "Hallway" {
		t.Fatalf("created wrong: %+v", created)
	}
	if len(p.Tasks) != 2 {
		t.Fatalf("tasks = %d", len(p.Tasks))
	}
	got, err := store.LoadTask(created.ID)
	if err != nil {
		t.Fatalf("LoadTask: %v", err)
	}
	if got.Title != "Plaster hallway walls" {
		t.Fatalf("persisted title = %q", got.Title)
	}
}

func TestIntroduceTask_FallbackOnDispatchError(t *testing.T) {
	o, store, sp, p, tk := newTestEnv(t)
	sp.pushErr(fmt.Errorf("network down"))

	intro, err := o.IntroduceTask(context.Background(), p, "t1")
	if err != nil {
		t.Fatalf("IntroduceTask: %v", err)
	}
	if !strings.Contains(intro, "Refinish floors") {
		t.Fatalf("fallback intro = %q", intro)
	}
	if len(tk.Conversation) != 1 || tk.Conversation[0].Role != chat.RoleAssistant {
		t.Fatalf("intro turn wrong: %+v", tk.Conversation)
	}
	got, err := store.LoadTask("t1")
	if err != nil {
		t.Fatalf("LoadTask: %v", err)
	}
	if len(got.Conversation) != 1 {
		t.Fatal("intro turn not persisted")
	}

	// 二次打开不再生成 / A second open is a no-op
	intro2, err := o.IntroduceTask(context.Background(), p, "t1")
	if err != nil {
		t.Fatalf("IntroduceTask second: %v", err)
	}
	if intro2 != "" {
		t.Fatalf("second intro = %q", intro2)
	}
}

func TestToggleGuideItem_SignalsAndPersistence(t *testing.T) {
	o, store, _, p, tk := newTestEnv(t)
	tk.Guide = []task.ChecklistEntry{{Text: "sand"}, {Text: "varnish"}}
	tk.Rederive()

	sig, err := o.ToggleGuideItem(p, "t1", 0, true)
	if err != nil {
		t.Fatalf("ToggleGuideItem: %v", err)
	}
	if !sig.FirstStep || sig.Completed {
		t.Fatalf("sig = %+v", sig)
	}
	if !tk.OpenedOnce {
		t.Fatal("FirstStep must mark the task opened")
	}

	sig, err = o.ToggleGuideItem(p, "t1", 1, true)
	if err != nil {
		t.Fatalf("ToggleGuideItem: %v", err)
	}
	if !sig.Completed || sig.FirstStep {
		t.Fatalf("sig = %+v", sig)
	}

	got, err := store.LoadTask("t1")
	if err != nil {
		t.Fatalf("LoadTask: %v", err)
	}
	if got.Status != task.StatusComplete || !got.OpenedOnce {
		t.Fatalf("persisted wrong: %+v", got)
	}
}

func TestToggleMaterial_NeverAffectsStatus(t *testing.T) {
	o, _, _, p, tk := newTestEnv(t)
	tk.Guide = []task.ChecklistEntry{{Text: "sand"}}
	tk.Materials = []task.MaterialEntry{{Text: "varnish"}}
	tk.Rederive()

	if err := o.ToggleMaterial(p, "t1", 0, true); err != nil {
		t.Fatalf("ToggleMaterial: %v", err)
	}
	if tk.Status != task.StatusTodo {
		t.Fatalf("status = %q", tk.Status)
	}
	if !tk.Materials[0].Done {
		t.Fatal("material not toggled")
	}
}

func TestDeleteTask_ExplicitOnly(t *testing.T) {
	o, store, _, p, _ := newTestEnv(t)
	if err := o.DeleteTask(p, "t1"); err != nil {
		t.Fatalf("DeleteTask: %v", err)
	}
	if len(p.Tasks) != 0 {
		t.Fatalf("tasks = %d", len(p.Tasks))
	}
	if _, err := store.LoadTask("t1"); err == nil {
		t.Fatal("task should be gone from the store")
	}
}
