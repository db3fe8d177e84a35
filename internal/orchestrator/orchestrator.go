// Package orchestrator sequences conversation turns, directive handling,
// plan generation and persistence for one renovation engine instance.
package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"renoplan/internal/chat"
	"renoplan/internal/contextmgr"
	"renoplan/internal/directive"
	"renoplan/internal/plan"
	"renoplan/internal/provider"
	"renoplan/internal/storage"
	"renoplan/internal/task"
)

// Options 采样参数，透传给每次模型调用
// Options are the sampling parameters passed through to every model call.
type Options struct {
	Temperature float64
	TopP        float64
	MaxTokens   int
}

// Reply 一轮对话的结果：展示文本、建议与计划副作用
// Reply is the outcome of one conversation turn: the prose to display,
// any task suggestions awaiting explicit user acceptance, and whether a
// plan side effect ran. PlanErr reports a failed generation or update;
// the conversation turns are persisted regardless.
type Reply struct {
	DisplayText   string
	Suggestions   []directive.SuggestTask
	PlanGenerated bool
	PlanUpdated   bool
	PlanErr       error
}

// Orchestrator 装修计划引擎的编排核心。同一会话内的轮次严格串行，
// 不同会话可并发。
// Orchestrator is the engine core. Turns within one conversation are
// strictly serialized; distinct conversations may run concurrently.
type Orchestrator struct {
	provider provider.Provider
	store    storage.Store
	asm      *contextmgr.Assembler
	opts     Options

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func New(p provider.Provider, store storage.Store, asm *contextmgr.Assembler, opts Options) *Orchestrator {
	return &Orchestrator{
		provider: p,
		store:    store,
		asm:      asm,
		opts:     opts,
		locks:    map[string]*sync.Mutex{},
	}
}

// convLock 返回会话级互斥锁（按归属 ID）
// convLock returns the per-conversation mutex for an owner id.
func (o *Orchestrator) convLock(id string) *sync.Mutex {
	o.mu.Lock()
	defer o.mu.Unlock()
	l, ok := o.locks[id]
	if !ok {
		l = &sync.Mutex{}
		o.locks[id] = l
	}
	return l
}

// RunTaskChat 执行任务会话的一轮：派发、解析指令、按阶段执行副作用并
// 持久化。用户回合先本地暂存，派发失败（含取消）时不落任何状态。
// RunTaskChat runs one turn of a task conversation. The user turn is
// staged locally and only appended and persisted after the dispatch
// succeeds, so a cancelled or failed call leaves task state untouched.
// A fully received response is applied even if ctx is cancelled
// afterwards.
func (o *Orchestrator) RunTaskChat(ctx context.Context, p *task.Project, taskID string, userTurn chat.Message, cb *provider.StreamCallbacks) (Reply, error) {
	t := p.FindTask(taskID)
	if t == nil {
		return Reply{}, fmt.Errorf("task not found: %s", taskID)
	}

	lock := o.convLock(t.ID)
	lock.Lock()
	defer lock.Unlock()

	// 暂存用户回合后组装输入，不改动任务本身
	// Assemble input over a staged copy; the task itself is not touched yet.
	staged := *t
	staged.Conversation = append(chat.CloneAll(t.Conversation), userTurn)
	msgs := o.asm.TaskChat(p, &staged)

	resp, err := o.chat(ctx, msgs, cb)
	if err != nil {
		return Reply{}, err
	}

	result := directive.Parse(resp.Content)

	// 原文入会话历史，展示文本由解析结果提供
	// The raw reply goes into history; DisplayText carries the stripped prose.
	t.Conversation = append(t.Conversation, userTurn, chat.Text(chat.RoleAssistant, resp.Content))

	reply := Reply{
		DisplayText: result.DisplayText,
		Suggestions: result.Suggestions(),
	}

	// 阶段相关的指令才生效：无计划阶段只认生成，有计划阶段只认更新
	// Only the phase-relevant directive takes effect: generation before a
	// plan exists, update once one does.
	hadPlan := t.HasPlan()
	switch {
	case !hadPlan && result.HasGeneratePlan():
		if err := o.generatePlan(ctx, p, t); err != nil {
			reply.PlanErr = err
		} else {
			reply.PlanGenerated = true
		}
	case hadPlan:
		if up, ok := result.FirstUpdate(); ok && !up.Patch.Empty() {
			t.ApplyUpdate(up.Patch)
			reply.PlanUpdated = true
		}
	}

	if err := o.store.SaveTask(t); err != nil {
		return reply, fmt.Errorf("persist task: %w", err)
	}
	return reply, nil
}

// RunProjectChat 执行项目会话的一轮；建议任务只返回给调用方，
// 绝不自动创建。
// RunProjectChat runs one turn of the project conversation. Suggested
// tasks are returned to the caller and never created automatically.
func (o *Orchestrator) RunProjectChat(ctx context.Context, p *task.Project, userTurn chat.Message, cb *provider.StreamCallbacks) (Reply, error) {
	lock := o.convLock(p.ID)
	lock.Lock()
	defer lock.Unlock()

	staged := *p
	staged.Conversation = append(chat.CloneAll(p.Conversation), userTurn)
	msgs := o.asm.ProjectChat(&staged)

	resp, err := o.chat(ctx, msgs, cb)
	if err != nil {
		return Reply{}, err
	}

	result := directive.Parse(resp.Content)

	startSeq := len(p.Conversation)
	newTurns := []chat.Message{userTurn, chat.Text(chat.RoleAssistant, resp.Content)}
	if err := o.store.AppendTurns(storage.OwnerProject, p.ID, startSeq, newTurns); err != nil {
		return Reply{}, fmt.Errorf("persist project turns: %w", err)
	}
	p.Conversation = append(p.Conversation, newTurns...)

	return Reply{
		DisplayText: result.DisplayText,
		Suggestions: result.Suggestions(),
	}, nil
}

// GeneratePlan 对任务执行结构化计划生成；失败时任务保持原状
// GeneratePlan runs the structured generation call for a task. On any
// failure the task is left exactly as it was.
func (o *Orchestrator) GeneratePlan(ctx context.Context, p *task.Project, taskID string) error {
	t := p.FindTask(taskID)
	if t == nil {
		return fmt.Errorf("task not found: %s", taskID)
	}
	lock := o.convLock(t.ID)
	lock.Lock()
	defer lock.Unlock()

	if err := o.generatePlan(ctx, p, t); err != nil {
		return err
	}
	return o.store.SaveTask(t)
}

func (o *Orchestrator) generatePlan(ctx context.Context, p *task.Project, t *task.Task) error {
	req := provider.ChatRequest{
		Messages: o.asm.PlanGeneration(p, t),
		Schema: &provider.ResponseSchema{
			Name:   "renovation_plan",
			Schema: plan.JSONSchema(),
			Strict: true,
		},
		Temperature: &o.opts.Temperature,
		TopP:        &o.opts.TopP,
		MaxTokens:   o.opts.MaxTokens,
	}
	resp, err := o.provider.Chat(ctx, req, nil)
	if err != nil {
		return fmt.Errorf("plan generation dispatch: %w", err)
	}

	// schema 不符即整体拒绝，绝不合并半成品
	// A nonconforming payload is rejected wholesale; nothing is merged.
	payload, err := plan.Decode(resp.Content)
	if err != nil {
		return err
	}
	payload.Normalize()
	payload.ApplyToTask(t)
	return nil
}

// IntroduceTask 任务首次打开时生成引导语；派发失败时退化为固定文案,
// 保证打开任务永远有开场白。
// IntroduceTask produces the one-shot introduction when a task is opened
// with an empty conversation. A dispatch failure degrades to a canned
// line so opening a task always yields an opener.
func (o *Orchestrator) IntroduceTask(ctx context.Context, p *task.Project, taskID string) (string, error) {
	t := p.FindTask(taskID)
	if t == nil {
		return "", fmt.Errorf("task not found: %s", taskID)
	}
	lock := o.convLock(t.ID)
	lock.Lock()
	defer lock.Unlock()

	if len(t.Conversation) > 0 {
		return "", nil
	}

	intro := ""
	resp, err := o.chat(ctx, o.asm.TaskIntro(p, t), nil)
	if err == nil {
		// 引导语不应带指令，解析后只保留文本
		// The intro must be plain prose; parsing keeps only the text.
		intro = strings.TrimSpace(directive.Parse(resp.Content).DisplayText)
	}
	if intro == "" {
		intro = fmt.Sprintf("Let's plan %q together. Tell me about the current state of the %s and what you'd like it to become.",
			t.Title, roomOrSpace(t.Room))
	}

	t.Conversation = append(t.Conversation, chat.Text(chat.RoleAssistant, intro))
	if err := o.store.SaveTask(t); err != nil {
		return "", fmt.Errorf("persist task: %w", err)
	}
	return intro, nil
}

// AcceptSuggestion 显式接受一个任务建议并创建任务
// AcceptSuggestion creates a task from a suggestion. Creation is always
// this explicit call, never a side effect of parsing.
func (o *Orchestrator) AcceptSuggestion(p *task.Project, s directive.SuggestTask) (*task.Task, error) {
	title := strings.TrimSpace(s.Title)
	if title == "" {
		return nil, fmt.Errorf("suggestion title is empty")
	}
	t := &task.Task{
		ID:        uuid.NewString(),
		ProjectID: p.ID,
		Title:     title,
		Room:      strings.TrimSpace(s.Room),
		Status:    task.StatusTodo,
	}
	if err := o.store.CreateTask(t); err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	p.Tasks = append(p.Tasks, t)
	return t, nil
}

// CreateTask 用户手动创建任务
// CreateTask creates a task from explicit user input.
func (o *Orchestrator) CreateTask(p *task.Project, title, room string, priority int) (*task.Task, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, fmt.Errorf("task title is empty")
	}
	t := &task.Task{
		ID:        uuid.NewString(),
		ProjectID: p.ID,
		Title:     title,
		Room:      strings.TrimSpace(room),
		Status:    task.StatusTodo,
		Priority:  priority,
	}
	if err := o.store.CreateTask(t); err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	p.Tasks = append(p.Tasks, t)
	return t, nil
}

// ToggleGuideItem 切换步骤完成并持久化；FirstStep 边沿同时标记任务已打开,
// 使拍照提示只出现一次。
// ToggleGuideItem flips one step and persists. The FirstStep edge also
// marks the task opened so the photo prompt fires at most once.
func (o *Orchestrator) ToggleGuideItem(p *task.Project, taskID string, index int, done bool) (task.ToggleSignal, error) {
	t := p.FindTask(taskID)
	if t == nil {
		return task.ToggleSignal{}, fmt.Errorf("task not found: %s", taskID)
	}
	lock := o.convLock(t.ID)
	lock.Lock()
	defer lock.Unlock()

	sig := t.ToggleGuideItem(index, done)
	if sig.FirstStep {
		t.OpenedOnce = true
	}
	if err := o.store.SaveTask(t); err != nil {
		return sig, fmt.Errorf("persist task: %w", err)
	}
	return sig, nil
}

// ToggleMaterial 切换材料勾选，从不影响任务状态
// ToggleMaterial flips one material entry; task status is never affected.
func (o *Orchestrator) ToggleMaterial(p *task.Project, taskID string, index int, done bool) error {
	t := p.FindTask(taskID)
	if t == nil {
		return fmt.Errorf("task not found: %s", taskID)
	}
	lock := o.convLock(t.ID)
	lock.Lock()
	defer lock.Unlock()

	t.ToggleMaterial(index, done)
	if err := o.store.SaveTask(t); err != nil {
		return fmt.Errorf("persist task: %w", err)
	}
	return nil
}

// ToggleTool 切换工具持有标记，从不影响任务状态
// ToggleTool flips one tool entry; task status is never affected.
func (o *Orchestrator) ToggleTool(p *task.Project, taskID string, index int, owned bool) error {
	t := p.FindTask(taskID)
	if t == nil {
		return fmt.Errorf("task not found: %s", taskID)
	}
	lock := o.convLock(t.ID)
	lock.Lock()
	defer lock.Unlock()

	t.ToggleTool(index, owned)
	if err := o.store.SaveTask(t); err != nil {
		return fmt.Errorf("persist task: %w", err)
	}
	return nil
}

// DeleteTask 删除任务（仅限用户显式操作）
// DeleteTask removes a task. Explicit user action only.
func (o *Orchestrator) DeleteTask(p *task.Project, taskID string) error {
	t := p.FindTask(taskID)
	if t == nil {
		return fmt.Errorf("task not found: %s", taskID)
	}
	if err := o.store.DeleteTask(taskID); err != nil {
		return err
	}
	kept := p.Tasks[:0]
	for _, existing := range p.Tasks {
		if existing.ID != taskID {
			kept = append(kept, existing)
		}
	}
	p.Tasks = kept
	return nil
}

func (o *Orchestrator) chat(ctx context.Context, msgs []chat.Message, cb *provider.StreamCallbacks) (provider.ChatResponse, error) {
	req := provider.ChatRequest{
		Messages:    msgs,
		Temperature: &o.opts.Temperature,
		TopP:        &o.opts.TopP,
		MaxTokens:   o.opts.MaxTokens,
	}
	return o.provider.Chat(ctx, req, cb)
}

func roomOrSpace(room string) string {
	room = strings.TrimSpace(room)
	if room == "" {
		return "space"
	}
	return room
}
