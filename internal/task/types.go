package task

import (
	"renoplan/internal/chat"
)

// Status 任务生命周期状态，由清单完成度推导
// Status is the task lifecycle state, derived from checklist completion.
// Ordered by completion fraction, not by time.
type Status string

const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in_progress"
	StatusComplete   Status = "complete"
)

// ValidStatus reports whether s is one of the known states.
func ValidStatus(s Status) bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusComplete:
		return true
	}
	return false
}

// ChecklistEntry 计划步骤条目 / ChecklistEntry is one plan step
type ChecklistEntry struct {
	Text string `json:"text"`
	Done bool   `json:"done"`
}

// MaterialEntry extends ChecklistEntry with shopping metadata.
type MaterialEntry struct {
	Text         string `json:"text"`
	Done         bool   `json:"done"`
	Cost         string `json:"cost,omitempty"`
	PurchaseLink string `json:"purchase_link,omitempty"`
}

// ToolEntry is a required tool; Owned means "already owned", not "done".
type ToolEntry struct {
	Text  string `json:"text"`
	Owned bool   `json:"owned"`
}

// Task 一个装修任务：对话、生成的计划与派生状态
// Task is a single renovation task: its conversation, the generated plan
// fields, and the derived lifecycle status.
//
// Invariant: while Guide is non-empty, Status always equals
// DeriveStatus(Guide, Status) — it is never set independently.
type Task struct {
	ID           string           `json:"id"`
	ProjectID    string           `json:"project_id"`
	Title        string           `json:"title"`
	Room         string           `json:"room"`
	Status       Status           `json:"status"`
	Priority     int              `json:"priority"`
	Conversation []chat.Message   `json:"-"`
	Guide        []ChecklistEntry `json:"guide,omitempty"`
	Materials    []MaterialEntry  `json:"materials,omitempty"`
	Tools        []ToolEntry      `json:"tools,omitempty"`
	SafetyNotes  []string         `json:"safety_notes,omitempty"`
	CostRange    string           `json:"cost_range,omitempty"`
	TimeEstimate string           `json:"time_estimate,omitempty"`
	ProNote      string           `json:"pro_note,omitempty"`
	OpenedOnce   bool             `json:"opened_once"`
	CreatedAt    string           `json:"created_at"`
	UpdatedAt    string           `json:"updated_at"`
}

// HasPlan reports whether a guide has been generated for this task.
func (t *Task) HasPlan() bool {
	return len(t.Guide) > 0
}

// Project 房产项目：房间、愿景与项目级对话，独占拥有其任务
// Project owns rooms, a free-text vision statement, the project-level
// conversation, and zero or more tasks. Ownership is exclusive: a task
// belongs to one project for its lifetime.
type Project struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	Vision       string         `json:"vision,omitempty"`
	Rooms        []string       `json:"rooms,omitempty"`
	Conversation []chat.Message `json:"-"`
	Tasks        []*Task        `json:"-"`
	CreatedAt    string         `json:"created_at"`
	UpdatedAt    string         `json:"updated_at"`
}

// FindTask returns the owned task with the given id, or nil.
func (p *Project) FindTask(id string) *Task {
	for _, t := range p.Tasks {
		if t != nil && t.ID == id {
			return t
		}
	}
	return nil
}
