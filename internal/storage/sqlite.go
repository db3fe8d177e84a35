package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"renoplan/internal/chat"
	"renoplan/internal/task"

	_ "modernc.org/sqlite"
)

// SQLiteStore 基于 SQLite (WAL 模式) 的持久化实现
// SQLiteStore implements Store using SQLite with WAL mode
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// NewSQLiteStore 创建并初始化 SQLite 数据库
// NewSQLiteStore creates and initializes a SQLite database
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dbPath = strings.TrimSpace(dbPath)
	if dbPath == "" {
		return nil, fmt.Errorf("sqlite db path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// 启用 WAL 模式和优化 PRAGMA / Enable WAL and performance PRAGMAs
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
		"PRAGMA synchronous=NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("exec %q: %w", p, err)
		}
	}

	store := &SQLiteStore{db: db, path: dbPath}
	if err := store.ensureSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) ensureSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS projects (
		id         TEXT PRIMARY KEY,
		name       TEXT NOT NULL DEFAULT '',
		vision     TEXT NOT NULL DEFAULT '',
		rooms      TEXT NOT NULL DEFAULT '[]',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS tasks (
		id            TEXT PRIMARY KEY,
		project_id    TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
		title         TEXT NOT NULL DEFAULT '',
		room          TEXT NOT NULL DEFAULT '',
		status        TEXT NOT NULL DEFAULT 'todo',
		priority      INTEGER NOT NULL DEFAULT 0,
		guide         TEXT NOT NULL DEFAULT '[]',
		materials     TEXT NOT NULL DEFAULT '[]',
		tools         TEXT NOT NULL DEFAULT '[]',
		safety_notes  TEXT NOT NULL DEFAULT '[]',
		cost_range    TEXT NOT NULL DEFAULT '',
		time_estimate TEXT NOT NULL DEFAULT '',
		pro_note      TEXT NOT NULL DEFAULT '',
		opened_once   INTEGER NOT NULL DEFAULT 0,
		created_at    TEXT NOT NULL,
		updated_at    TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS turns (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		owner_kind TEXT NOT NULL,
		owner_id   TEXT NOT NULL,
		seq        INTEGER NOT NULL,
		role       TEXT NOT NULL,
		content    TEXT NOT NULL DEFAULT '',
		segments   TEXT NOT NULL DEFAULT '[]',
		created_at TEXT NOT NULL,
		UNIQUE(owner_kind, owner_id, seq)
	);

	CREATE INDEX IF NOT EXISTS idx_tasks_project ON tasks(project_id);
	CREATE INDEX IF NOT EXISTS idx_turns_owner ON turns(owner_kind, owner_id, seq);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close 关闭数据库连接 / Close the database connection
func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// --- Project Operations ---

func (s *SQLiteStore) CreateProject(p *task.Project) error {
	if p == nil || strings.TrimSpace(p.ID) == "" {
		return fmt.Errorf("project id is empty")
	}
	now := nowUTC()
	if strings.TrimSpace(p.CreatedAt) == "" {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	rooms, err := json.Marshal(p.Rooms)
	if err != nil {
		return fmt.Errorf("marshal rooms: %w", err)
	}
	_, err = s.db.Exec(`
		INSERT INTO projects (id, name, vision, rooms, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.Vision, string(rooms), p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert project: %w", err)
	}
	return nil
}

func (s *SQLiteStore) SaveProject(p *task.Project) error {
	if p == nil || strings.TrimSpace(p.ID) == "" {
		return fmt.Errorf("project id is empty")
	}
	p.UpdatedAt = nowUTC()
	rooms, err := json.Marshal(p.Rooms)
	if err != nil {
		return fmt.Errorf("marshal rooms: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`
		UPDATE projects SET name=?, vision=?, rooms=?, updated_at=? WHERE id=?`,
		p.Name, p.Vision, string(rooms), p.UpdatedAt, p.ID); err != nil {
		return fmt.Errorf("update project: %w", err)
	}
	if err := replaceTurnsTx(tx, OwnerProject, p.ID, p.Conversation); err != nil {
		return err
	}
	return tx.Commit()
}

// LoadProject 加载项目全量状态：项目对话、任务字段与各任务自己的对话。
// LoadProject loads the full project state: the project conversation,
// its tasks, and each task's own conversation. Tasks come back fully
// hydrated because SaveTask replaces stored turns wholesale; a task
// loaded without its turns would lose its history on the next save.
func (s *SQLiteStore) LoadProject(id string) (*task.Project, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("project id is empty")
	}
	row := s.db.QueryRow(`
		SELECT id, name, vision, rooms, created_at, updated_at
		FROM projects WHERE id=?`, id)

	p := &task.Project{}
	var rooms string
	err := row.Scan(&p.ID, &p.Name, &p.Vision, &rooms, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("project not found: %s", id)
		}
		return nil, fmt.Errorf("load project: %w", err)
	}
	if rooms != "" && rooms != "[]" {
		if err := json.Unmarshal([]byte(rooms), &p.Rooms); err != nil {
			return nil, fmt.Errorf("unmarshal rooms: %w", err)
		}
	}

	p.Conversation, err = s.LoadTurns(OwnerProject, p.ID)
	if err != nil {
		return nil, err
	}
	p.Tasks, err = s.ListTasks(p.ID)
	if err != nil {
		return nil, err
	}
	for _, t := range p.Tasks {
		t.Conversation, err = s.LoadTurns(OwnerTask, t.ID)
		if err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (s *SQLiteStore) ListProjects() ([]*task.Project, error) {
	rows, err := s.db.Query(`
		SELECT id, name, vision, rooms, created_at, updated_at
		FROM projects ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	var projects []*task.Project
	for rows.Next() {
		p := &task.Project{}
		var rooms string
		if err := rows.Scan(&p.ID, &p.Name, &p.Vision, &rooms, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		if rooms != "" && rooms != "[]" {
			if err := json.Unmarshal([]byte(rooms), &p.Rooms); err != nil {
				return nil, fmt.Errorf("unmarshal rooms for %s: %w", p.ID, err)
			}
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// --- Task Operations ---

func (s *SQLiteStore) CreateTask(t *task.Task) error {
	if t == nil || strings.TrimSpace(t.ID) == "" {
		return fmt.Errorf("task id is empty")
	}
	if strings.TrimSpace(t.ProjectID) == "" {
		return fmt.Errorf("task project id is empty")
	}
	now := nowUTC()
	if strings.TrimSpace(t.CreatedAt) == "" {
		t.CreatedAt = now
	}
	t.UpdatedAt = now
	cols, err := taskJSONColumns(t)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`
		INSERT INTO tasks (id, project_id, title, room, status, priority, guide, materials,
			tools, safety_notes, cost_range, time_estimate, pro_note, opened_once, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.ProjectID, t.Title, t.Room, string(t.Status), t.Priority,
		cols.guide, cols.materials, cols.tools, cols.safetyNotes,
		t.CostRange, t.TimeEstimate, t.ProNote, boolToInt(t.OpenedOnce),
		t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

// SaveTask 在一个事务内写任务字段并整体替换其对话回合
// SaveTask writes the task fields and replaces its conversation turns in
// a single transaction.
func (s *SQLiteStore) SaveTask(t *task.Task) error {
	if t == nil || strings.TrimSpace(t.ID) == "" {
		return fmt.Errorf("task id is empty")
	}
	t.UpdatedAt = nowUTC()
	cols, err := taskJSONColumns(t)
	if err != nil {
		return err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`
		UPDATE tasks SET title=?, room=?, status=?, priority=?, guide=?, materials=?,
			tools=?, safety_notes=?, cost_range=?, time_estimate=?, pro_note=?,
			opened_once=?, updated_at=?
		WHERE id=?`,
		t.Title, t.Room, string(t.Status), t.Priority,
		cols.guide, cols.materials, cols.tools, cols.safetyNotes,
		t.CostRange, t.TimeEstimate, t.ProNote, boolToInt(t.OpenedOnce),
		t.UpdatedAt, t.ID); err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	if err := replaceTurnsTx(tx, OwnerTask, t.ID, t.Conversation); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) LoadTask(id string) (*task.Task, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("task id is empty")
	}
	row := s.db.QueryRow(`
		SELECT id, project_id, title, room, status, priority, guide, materials,
			tools, safety_notes, cost_range, time_estimate, pro_note, opened_once, created_at, updated_at
		FROM tasks WHERE id=?`, id)

	t, err := scanTask(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("task not found: %s", id)
		}
		return nil, err
	}
	t.Conversation, err = s.LoadTurns(OwnerTask, t.ID)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (s *SQLiteStore) ListTasks(projectID string) ([]*task.Task, error) {
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return nil, fmt.Errorf("project id is empty")
	}
	rows, err := s.db.Query(`
		SELECT id, project_id, title, room, status, priority, guide, materials,
			tools, safety_notes, cost_range, time_estimate, pro_note, opened_once, created_at, updated_at
		FROM tasks WHERE project_id=? ORDER BY priority DESC, created_at`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*task.Task
	for rows.Next() {
		t, err := scanTask(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func (s *SQLiteStore) DeleteTask(id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("task id is empty")
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec("DELETE FROM turns WHERE owner_kind=? AND owner_id=?", OwnerTask, id); err != nil {
		return fmt.Errorf("delete task turns: %w", err)
	}
	if _, err := tx.Exec("DELETE FROM tasks WHERE id=?", id); err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return tx.Commit()
}

// --- Turn Operations ---

func (s *SQLiteStore) AppendTurns(ownerKind, ownerID string, startSeq int, turns []chat.Message) error {
	if len(turns) == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(`
		INSERT INTO turns (owner_kind, owner_id, seq, role, content, segments, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	now := nowUTC()
	for i, turn := range turns {
		segJSON, err := segmentsToJSON(turn.Segments)
		if err != nil {
			return err
		}
		if _, err := stmt.Exec(ownerKind, ownerID, startSeq+i, turn.Role, turn.Content, segJSON, now); err != nil {
			return fmt.Errorf("insert turn %d: %w", startSeq+i, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) LoadTurns(ownerKind, ownerID string) ([]chat.Message, error) {
	rows, err := s.db.Query(`
		SELECT role, content, segments FROM turns
		WHERE owner_kind=? AND owner_id=? ORDER BY seq`, ownerKind, ownerID)
	if err != nil {
		return nil, fmt.Errorf("query turns: %w", err)
	}
	defer rows.Close()

	var turns []chat.Message
	for rows.Next() {
		var turn chat.Message
		var segJSON string
		if err := rows.Scan(&turn.Role, &turn.Content, &segJSON); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		turn.Segments, err = segmentsFromJSON(segJSON)
		if err != nil {
			return nil, err
		}
		turns = append(turns, turn)
	}
	return turns, rows.Err()
}

func replaceTurnsTx(tx *sql.Tx, ownerKind, ownerID string, turns []chat.Message) error {
	if _, err := tx.Exec("DELETE FROM turns WHERE owner_kind=? AND owner_id=?", ownerKind, ownerID); err != nil {
		return fmt.Errorf("delete old turns: %w", err)
	}
	if len(turns) == 0 {
		return nil
	}
	stmt, err := tx.Prepare(`
		INSERT INTO turns (owner_kind, owner_id, seq, role, content, segments, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	now := nowUTC()
	for i, turn := range turns {
		segJSON, err := segmentsToJSON(turn.Segments)
		if err != nil {
			return err
		}
		if _, err := stmt.Exec(ownerKind, ownerID, i, turn.Role, turn.Content, segJSON, now); err != nil {
			return fmt.Errorf("insert turn %d: %w", i, err)
		}
	}
	return nil
}

// --- Helpers ---

type taskColumns struct {
	guide       string
	materials   string
	tools       string
	safetyNotes string
}

func taskJSONColumns(t *task.Task) (taskColumns, error) {
	guide, err := marshalOrEmptyArray(t.Guide)
	if err != nil {
		return taskColumns{}, fmt.Errorf("marshal guide: %w", err)
	}
	materials, err := marshalOrEmptyArray(t.Materials)
	if err != nil {
		return taskColumns{}, fmt.Errorf("marshal materials: %w", err)
	}
	tools, err := marshalOrEmptyArray(t.Tools)
	if err != nil {
		return taskColumns{}, fmt.Errorf("marshal tools: %w", err)
	}
	notes, err := marshalOrEmptyArray(t.SafetyNotes)
	if err != nil {
		return taskColumns{}, fmt.Errorf("marshal safety notes: %w", err)
	}
	return taskColumns{guide: guide, materials: materials, tools: tools, safetyNotes: notes}, nil
}

func marshalOrEmptyArray(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	out := string(data)
	if out == "null" {
		out = "[]"
	}
	return out, nil
}

func scanTask(scan func(dest ...any) error) (*task.Task, error) {
	t := &task.Task{}
	var status string
	var guide, materials, tools, notes string
	var openedOnce int
	err := scan(&t.ID, &t.ProjectID, &t.Title, &t.Room, &status, &t.Priority,
		&guide, &materials, &tools, &notes,
		&t.CostRange, &t.TimeEstimate, &t.ProNote, &openedOnce, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	t.Status = task.Status(status)
	if !task.ValidStatus(t.Status) {
		t.Status = task.StatusTodo
	}
	t.OpenedOnce = openedOnce != 0
	if guide != "" && guide != "[]" {
		if err := json.Unmarshal([]byte(guide), &t.Guide); err != nil {
			return nil, fmt.Errorf("unmarshal guide: %w", err)
		}
	}
	if materials != "" && materials != "[]" {
		if err := json.Unmarshal([]byte(materials), &t.Materials); err != nil {
			return nil, fmt.Errorf("unmarshal materials: %w", err)
		}
	}
	if tools != "" && tools != "[]" {
		if err := json.Unmarshal([]byte(tools), &t.Tools); err != nil {
			return nil, fmt.Errorf("unmarshal tools: %w", err)
		}
	}
	if notes != "" && notes != "[]" {
		if err := json.Unmarshal([]byte(notes), &t.SafetyNotes); err != nil {
			return nil, fmt.Errorf("unmarshal safety notes: %w", err)
		}
	}
	return t, nil
}

func nowUTC() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
