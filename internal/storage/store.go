package storage

import (
	"renoplan/internal/chat"
	"renoplan/internal/task"
)

// 对话归属类型 / Conversation owner kinds
const (
	OwnerTask    = "task"
	OwnerProject = "project"
)

// Store 持久化接口；引擎视每次调用为原子的全量写入，绝不依赖部分
// 可见的写入。组合期选定唯一实现，业务逻辑内不做后端分支。
// Store is the persistence interface. The engine treats every call as
// atomic and all-or-nothing; partial writes are never assumed visible.
// One implementation is selected at composition time — business logic
// never branches on a storage strategy flag.
type Store interface {
	// Project 操作 / Project operations
	CreateProject(p *task.Project) error
	SaveProject(p *task.Project) error
	LoadProject(id string) (*task.Project, error)
	ListProjects() ([]*task.Project, error)

	// Task 操作 / Task operations
	CreateTask(t *task.Task) error
	SaveTask(t *task.Task) error
	LoadTask(id string) (*task.Task, error)
	ListTasks(projectID string) ([]*task.Task, error)
	// DeleteTask 仅限用户显式操作调用，引擎绝不自主删除
	// DeleteTask serves explicit user actions only; the engine never
	// deletes autonomously.
	DeleteTask(id string) error

	// 对话回合 / Conversation turns
	AppendTurns(ownerKind, ownerID string, startSeq int, turns []chat.Message) error
	LoadTurns(ownerKind, ownerID string) ([]chat.Message, error)

	// 生命周期 / Lifecycle
	Close() error
}
