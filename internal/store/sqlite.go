package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver

	"github.com/promptliano/promptliano/internal/ident"
	"github.com/promptliano/promptliano/internal/models"
)

// SQLiteStore implements Store on a single SQLite database.
//
// Slice-valued columns (suggested ids, dependencies, tags) are stored
// as JSON text. Queue attachment fields live directly on the ticket
// and task rows so a single read yields the full queue state.
type SQLiteStore struct {
	db    *sql.DB
	clock ident.Clock
	ids   ident.IDGenerator
}

// Config for the SQLite store.
type Config struct {
	Path string // database file, ":memory:" for tests
}

// NewSQLite opens (and migrates) the database.
func NewSQLite(cfg Config, clock ident.Clock, ids ident.IDGenerator) (*SQLiteStore, error) {
	if cfg.Path == "" {
		cfg.Path = ":memory:"
	}
	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single writer avoids SQLITE_BUSY under concurrent sessions.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db, clock: clock, ids: ids}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS projects (
			id INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			path TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			created INTEGER NOT NULL,
			updated INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS files (
			id INTEGER PRIMARY KEY,
			project_id INTEGER NOT NULL,
			path TEXT NOT NULL,
			name TEXT NOT NULL,
			extension TEXT NOT NULL DEFAULT '',
			size INTEGER NOT NULL DEFAULT 0,
			content TEXT NOT NULL DEFAULT '',
			summary TEXT NOT NULL DEFAULT '',
			UNIQUE(project_id, path)
		)`,
		`CREATE TABLE IF NOT EXISTS tickets (
			id INTEGER PRIMARY KEY,
			project_id INTEGER NOT NULL,
			title TEXT NOT NULL,
			overview TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'open',
			priority TEXT NOT NULL DEFAULT 'normal',
			suggested_file_ids TEXT NOT NULL DEFAULT '[]',
			suggested_agent_ids TEXT NOT NULL DEFAULT '[]',
			suggested_prompt_ids TEXT NOT NULL DEFAULT '[]',
			queue_id INTEGER,
			queue_status TEXT,
			queue_priority INTEGER NOT NULL DEFAULT 0,
			queued_at INTEGER NOT NULL DEFAULT 0,
			queue_started_at INTEGER NOT NULL DEFAULT 0,
			queue_ended_at INTEGER NOT NULL DEFAULT 0,
			queue_error TEXT NOT NULL DEFAULT '',
			queue_agent_id TEXT NOT NULL DEFAULT '',
			created INTEGER NOT NULL,
			updated INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS tasks (
			id INTEGER PRIMARY KEY,
			ticket_id INTEGER NOT NULL,
			content TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			done INTEGER NOT NULL DEFAULT 0,
			order_index INTEGER NOT NULL DEFAULT 0,
			suggested_file_ids TEXT NOT NULL DEFAULT '[]',
			estimated_hours REAL NOT NULL DEFAULT 0,
			dependencies TEXT NOT NULL DEFAULT '[]',
			tags TEXT NOT NULL DEFAULT '[]',
			agent_id TEXT NOT NULL DEFAULT '',
			queue_id INTEGER,
			queue_status TEXT,
			queue_priority INTEGER NOT NULL DEFAULT 0,
			queued_at INTEGER NOT NULL DEFAULT 0,
			queue_started_at INTEGER NOT NULL DEFAULT 0,
			queue_ended_at INTEGER NOT NULL DEFAULT 0,
			queue_error TEXT NOT NULL DEFAULT '',
			queue_agent_id TEXT NOT NULL DEFAULT '',
			created INTEGER NOT NULL,
			updated INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS queues (
			id INTEGER PRIMARY KEY,
			project_id INTEGER NOT NULL,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'active',
			max_parallel_items INTEGER NOT NULL DEFAULT 1,
			created INTEGER NOT NULL,
			updated INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS prompts (
			id INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			content TEXT NOT NULL DEFAULT '',
			project_id INTEGER,
			created INTEGER NOT NULL,
			updated INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS project_prompts (
			project_id INTEGER NOT NULL,
			prompt_id INTEGER NOT NULL,
			PRIMARY KEY(project_id, prompt_id)
		)`,
		`CREATE TABLE IF NOT EXISTS tool_executions (
			id INTEGER PRIMARY KEY,
			tool_name TEXT NOT NULL,
			project_id INTEGER,
			session_id TEXT NOT NULL,
			started_at INTEGER NOT NULL,
			ended_at INTEGER NOT NULL DEFAULT 0,
			status TEXT NOT NULL DEFAULT '',
			input_size INTEGER NOT NULL DEFAULT 0,
			output_size INTEGER NOT NULL DEFAULT 0,
			error_message TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_files_project ON files(project_id)`,
		`CREATE INDEX IF NOT EXISTS idx_tickets_project ON tickets(project_id)`,
		`CREATE INDEX IF NOT EXISTS idx_tickets_queue ON tickets(queue_id)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_ticket ON tasks(ticket_id)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_queue ON tasks(queue_id)`,
		`CREATE INDEX IF NOT EXISTS idx_queues_project ON queues(project_id)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) now() int64 { return s.clock.Now().UnixMilli() }

func encodeJSON(v any) string {
	b, _ := json.Marshal(v)
	return string(b)
}

func decodeInt64s(raw string) []int64 {
	out := []int64{}
	_ = json.Unmarshal([]byte(raw), &out)
	return out
}

func decodeStrings(raw string) []string {
	out := []string{}
	_ = json.Unmarshal([]byte(raw), &out)
	return out
}

// ----- Projects -----

func (s *SQLiteStore) CreateProject(ctx context.Context, p *models.Project) error {
	if p.ID == 0 {
		p.ID = s.ids.NextID()
	}
	p.Created = s.now()
	p.Updated = p.Created
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO projects (id, name, path, description, created, updated) VALUES (?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.Path, p.Description, p.Created, p.Updated)
	if err != nil {
		return fmt.Errorf("create project: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetProject(ctx context.Context, id int64) (*models.Project, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, path, description, created, updated FROM projects WHERE id = ?`, id)
	var p models.Project
	if err := row.Scan(&p.ID, &p.Name, &p.Path, &p.Description, &p.Created, &p.Updated); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (s *SQLiteStore) ListProjects(ctx context.Context) ([]*models.Project, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, path, description, created, updated FROM projects ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*models.Project
	for rows.Next() {
		var p models.Project
		if err := rows.Scan(&p.ID, &p.Name, &p.Path, &p.Description, &p.Created, &p.Updated); err != nil {
			return nil, err
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) UpdateProject(ctx context.Context, p *models.Project) error {
	p.Updated = s.now()
	res, err := s.db.ExecContext(ctx,
		`UPDATE projects SET name = ?, path = ?, description = ?, updated = ? WHERE id = ?`,
		p.Name, p.Path, p.Description, p.Updated, p.ID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *SQLiteStore) DeleteProject(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if err := requireRow(res); err != nil {
		return err
	}
	_, _ = s.db.ExecContext(ctx, `DELETE FROM files WHERE project_id = ?`, id)
	_, _ = s.db.ExecContext(ctx, `DELETE FROM project_prompts WHERE project_id = ?`, id)
	return nil
}

// ----- Files -----

func (s *SQLiteStore) CreateFile(ctx context.Context, f *models.File) error {
	if f.ID == 0 {
		f.ID = s.ids.NextID()
	}
	if f.Name == "" {
		f.Name = filepath.Base(f.Path)
	}
	if f.Extension == "" {
		f.Extension = strings.TrimPrefix(filepath.Ext(f.Path), ".")
	}
	f.Size = len(f.Content)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO files (id, project_id, path, name, extension, size, content, summary)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		f.ID, f.ProjectID, f.Path, f.Name, f.Extension, f.Size, f.Content, f.Summary)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return ErrConflict
		}
		return err
	}
	return nil
}

const fileCols = `id, project_id, path, name, extension, size, content, summary`

func scanFile(row interface{ Scan(...any) error }) (*models.File, error) {
	var f models.File
	err := row.Scan(&f.ID, &f.ProjectID, &f.Path, &f.Name, &f.Extension, &f.Size, &f.Content, &f.Summary)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &f, nil
}

func (s *SQLiteStore) GetFile(ctx context.Context, projectID, fileID int64) (*models.File, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+fileCols+` FROM files WHERE project_id = ? AND id = ?`, projectID, fileID)
	return scanFile(row)
}

func (s *SQLiteStore) GetFileByPath(ctx context.Context, projectID int64, path string) (*models.File, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+fileCols+` FROM files WHERE project_id = ? AND path = ?`, projectID, path)
	return scanFile(row)
}

func (s *SQLiteStore) ListFiles(ctx context.Context, projectID int64) ([]*models.File, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+fileCols+` FROM files WHERE project_id = ? ORDER BY path`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*models.File
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) UpdateFile(ctx context.Context, f *models.File) error {
	f.Size = len(f.Content)
	res, err := s.db.ExecContext(ctx,
		`UPDATE files SET path = ?, name = ?, extension = ?, size = ?, content = ?, summary = ?
		 WHERE project_id = ? AND id = ?`,
		f.Path, f.Name, f.Extension, f.Size, f.Content, f.Summary, f.ProjectID, f.ID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *SQLiteStore) DeleteFile(ctx context.Context, projectID, fileID int64) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM files WHERE project_id = ? AND id = ?`, projectID, fileID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// ----- Tickets -----

const ticketCols = `id, project_id, title, overview, status, priority,
	suggested_file_ids, suggested_agent_ids, suggested_prompt_ids,
	queue_id, queue_status, queue_priority, queued_at, queue_started_at,
	queue_ended_at, queue_error, queue_agent_id, created, updated`

func scanTicket(row interface{ Scan(...any) error }) (*models.Ticket, error) {
	var t models.Ticket
	var fileIDs, agentIDs, promptIDs string
	var queueID sql.NullInt64
	var queueStatus sql.NullString
	err := row.Scan(&t.ID, &t.ProjectID, &t.Title, &t.Overview, &t.Status, &t.Priority,
		&fileIDs, &agentIDs, &promptIDs,
		&queueID, &queueStatus, &t.QueuePriority, &t.QueuedAt, &t.QueueStartedAt,
		&t.QueueEndedAt, &t.QueueErrorMsg, &t.QueueAgentID, &t.Created, &t.Updated)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	t.SuggestedFileIDs = decodeInt64s(fileIDs)
	t.SuggestedAgentIDs = decodeStrings(agentIDs)
	t.SuggestedPromptIDs = decodeInt64s(promptIDs)
	if queueID.Valid {
		t.QueueID = &queueID.Int64
	}
	if queueStatus.Valid {
		t.QueueStatus = &queueStatus.String
	}
	return &t, nil
}

func (s *SQLiteStore) CreateTicket(ctx context.Context, t *models.Ticket) error {
	if t.ID == 0 {
		t.ID = s.ids.NextID()
	}
	if t.Status == "" {
		t.Status = models.TicketStatusOpen
	}
	if t.Priority == "" {
		t.Priority = models.PriorityNormal
	}
	t.Created = s.now()
	t.Updated = t.Created
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tickets (id, project_id, title, overview, status, priority,
			suggested_file_ids, suggested_agent_ids, suggested_prompt_ids, created, updated)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.ProjectID, t.Title, t.Overview, t.Status, t.Priority,
		encodeJSON(t.SuggestedFileIDs), encodeJSON(t.SuggestedAgentIDs),
		encodeJSON(t.SuggestedPromptIDs), t.Created, t.Updated)
	return err
}

func (s *SQLiteStore) GetTicket(ctx context.Context, id int64) (*models.Ticket, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+ticketCols+` FROM tickets WHERE id = ?`, id)
	return scanTicket(row)
}

func (s *SQLiteStore) queryTickets(ctx context.Context, where string, args ...any) ([]*models.Ticket, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+ticketCols+` FROM tickets `+where, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*models.Ticket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) ListTickets(ctx context.Context, projectID int64, status string) ([]*models.Ticket, error) {
	if status != "" {
		return s.queryTickets(ctx, `WHERE project_id = ? AND status = ? ORDER BY id`, projectID, status)
	}
	return s.queryTickets(ctx, `WHERE project_id = ? ORDER BY id`, projectID)
}

func (s *SQLiteStore) ListTicketsByQueue(ctx context.Context, queueID int64) ([]*models.Ticket, error) {
	return s.queryTickets(ctx, `WHERE queue_id = ? ORDER BY id`, queueID)
}

func (s *SQLiteStore) UpdateTicket(ctx context.Context, t *models.Ticket) error {
	t.Updated = s.now()
	var queueID any
	if t.QueueID != nil {
		queueID = *t.QueueID
	}
	var queueStatus any
	if t.QueueStatus != nil {
		queueStatus = *t.QueueStatus
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE tickets SET title = ?, overview = ?, status = ?, priority = ?,
			suggested_file_ids = ?, suggested_agent_ids = ?, suggested_prompt_ids = ?,
			queue_id = ?, queue_status = ?, queue_priority = ?, queued_at = ?,
			queue_started_at = ?, queue_ended_at = ?, queue_error = ?, queue_agent_id = ?,
			updated = ?
		 WHERE id = ?`,
		t.Title, t.Overview, t.Status, t.Priority,
		encodeJSON(t.SuggestedFileIDs), encodeJSON(t.SuggestedAgentIDs), encodeJSON(t.SuggestedPromptIDs),
		queueID, queueStatus, t.QueuePriority, t.QueuedAt,
		t.QueueStartedAt, t.QueueEndedAt, t.QueueErrorMsg, t.QueueAgentID,
		t.Updated, t.ID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *SQLiteStore) DeleteTicket(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tickets WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if err := requireRow(res); err != nil {
		return err
	}
	_, _ = s.db.ExecContext(ctx, `DELETE FROM tasks WHERE ticket_id = ?`, id)
	return nil
}

// ----- Tasks -----

const taskCols = `id, ticket_id, content, description, done, order_index,
	suggested_file_ids, estimated_hours, dependencies, tags, agent_id,
	queue_id, queue_status, queue_priority, queued_at, queue_started_at,
	queue_ended_at, queue_error, queue_agent_id, created, updated`

func scanTask(row interface{ Scan(...any) error }) (*models.Task, error) {
	var t models.Task
	var fileIDs, deps, tags string
	var queueID sql.NullInt64
	var queueStatus sql.NullString
	err := row.Scan(&t.ID, &t.TicketID, &t.Content, &t.Description, &t.Done, &t.OrderIndex,
		&fileIDs, &t.EstimatedHours, &deps, &tags, &t.AgentID,
		&queueID, &queueStatus, &t.QueuePriority, &t.QueuedAt, &t.QueueStartedAt,
		&t.QueueEndedAt, &t.QueueErrorMsg, &t.QueueAgentID, &t.Created, &t.Updated)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	t.SuggestedFileIDs = decodeInt64s(fileIDs)
	t.Dependencies = decodeInt64s(deps)
	t.Tags = decodeStrings(tags)
	if queueID.Valid {
		t.QueueID = &queueID.Int64
	}
	if queueStatus.Valid {
		t.QueueStatus = &queueStatus.String
	}
	return &t, nil
}

func (s *SQLiteStore) CreateTask(ctx context.Context, t *models.Task) error {
	if t.ID == 0 {
		t.ID = s.ids.NextID()
	}
	t.Created = s.now()
	t.Updated = t.Created
	if t.OrderIndex == 0 {
		// Append to the end of the ticket: order indexes stay dense.
		row := s.db.QueryRowContext(ctx,
			`SELECT COALESCE(MAX(order_index), -1) + 1 FROM tasks WHERE ticket_id = ?`, t.TicketID)
		if err := row.Scan(&t.OrderIndex); err != nil {
			return err
		}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tasks (id, ticket_id, content, description, done, order_index,
			suggested_file_ids, estimated_hours, dependencies, tags, agent_id, created, updated)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.TicketID, t.Content, t.Description, t.Done, t.OrderIndex,
		encodeJSON(t.SuggestedFileIDs), t.EstimatedHours, encodeJSON(t.Dependencies),
		encodeJSON(t.Tags), t.AgentID, t.Created, t.Updated)
	return err
}

func (s *SQLiteStore) GetTask(ctx context.Context, ticketID, taskID int64) (*models.Task, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+taskCols+` FROM tasks WHERE ticket_id = ? AND id = ?`, ticketID, taskID)
	return scanTask(row)
}

func (s *SQLiteStore) queryTasks(ctx context.Context, where string, args ...any) ([]*models.Task, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+taskCols+` FROM tasks `+where, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*models.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) ListTasks(ctx context.Context, ticketID int64) ([]*models.Task, error) {
	return s.queryTasks(ctx, `WHERE ticket_id = ? ORDER BY order_index`, ticketID)
}

func (s *SQLiteStore) ListTasksByQueue(ctx context.Context, queueID int64) ([]*models.Task, error) {
	return s.queryTasks(ctx, `WHERE queue_id = ? ORDER BY id`, queueID)
}

func (s *SQLiteStore) UpdateTask(ctx context.Context, t *models.Task) error {
	t.Updated = s.now()
	var queueID any
	if t.QueueID != nil {
		queueID = *t.QueueID
	}
	var queueStatus any
	if t.QueueStatus != nil {
		queueStatus = *t.QueueStatus
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET ticket_id = ?, content = ?, description = ?, done = ?, order_index = ?,
			suggested_file_ids = ?, estimated_hours = ?, dependencies = ?, tags = ?, agent_id = ?,
			queue_id = ?, queue_status = ?, queue_priority = ?, queued_at = ?,
			queue_started_at = ?, queue_ended_at = ?, queue_error = ?, queue_agent_id = ?,
			updated = ?
		 WHERE id = ?`,
		t.TicketID, t.Content, t.Description, t.Done, t.OrderIndex,
		encodeJSON(t.SuggestedFileIDs), t.EstimatedHours, encodeJSON(t.Dependencies),
		encodeJSON(t.Tags), t.AgentID,
		queueID, queueStatus, t.QueuePriority, t.QueuedAt,
		t.QueueStartedAt, t.QueueEndedAt, t.QueueErrorMsg, t.QueueAgentID,
		t.Updated, t.ID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *SQLiteStore) DeleteTask(ctx context.Context, ticketID, taskID int64) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM tasks WHERE ticket_id = ? AND id = ?`, ticketID, taskID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// ----- Queues -----

func (s *SQLiteStore) CreateQueue(ctx context.Context, q *models.Queue) error {
	if q.ID == 0 {
		q.ID = s.ids.NextID()
	}
	if q.Status == "" {
		q.Status = models.QueueStatusActive
	}
	if q.MaxParallelItems == 0 {
		q.MaxParallelItems = 1
	}
	q.Created = s.now()
	q.Updated = q.Created
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO queues (id, project_id, name, description, status, max_parallel_items, created, updated)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		q.ID, q.ProjectID, q.Name, q.Description, q.Status, q.MaxParallelItems, q.Created, q.Updated)
	return err
}

func scanQueue(row interface{ Scan(...any) error }) (*models.Queue, error) {
	var q models.Queue
	err := row.Scan(&q.ID, &q.ProjectID, &q.Name, &q.Description, &q.Status,
		&q.MaxParallelItems, &q.Created, &q.Updated)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &q, nil
}

const queueCols = `id, project_id, name, description, status, max_parallel_items, created, updated`

func (s *SQLiteStore) GetQueue(ctx context.Context, id int64) (*models.Queue, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+queueCols+` FROM queues WHERE id = ?`, id)
	return scanQueue(row)
}

func (s *SQLiteStore) ListQueues(ctx context.Context, projectID int64) ([]*models.Queue, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+queueCols+` FROM queues WHERE project_id = ? ORDER BY id`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*models.Queue
	for rows.Next() {
		q, err := scanQueue(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) UpdateQueue(ctx context.Context, q *models.Queue) error {
	q.Updated = s.now()
	res, err := s.db.ExecContext(ctx,
		`UPDATE queues SET name = ?, description = ?, status = ?, max_parallel_items = ?, updated = ?
		 WHERE id = ?`,
		q.Name, q.Description, q.Status, q.MaxParallelItems, q.Updated, q.ID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *SQLiteStore) DeleteQueue(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM queues WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// ----- Prompts -----

func (s *SQLiteStore) CreatePrompt(ctx context.Context, p *models.Prompt) error {
	if p.ID == 0 {
		p.ID = s.ids.NextID()
	}
	p.Created = s.now()
	p.Updated = p.Created
	var projectID any
	if p.ProjectID != nil {
		projectID = *p.ProjectID
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO prompts (id, name, content, project_id, created, updated) VALUES (?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.Content, projectID, p.Created, p.Updated)
	return err
}

func scanPrompt(row interface{ Scan(...any) error }) (*models.Prompt, error) {
	var p models.Prompt
	var projectID sql.NullInt64
	err := row.Scan(&p.ID, &p.Name, &p.Content, &projectID, &p.Created, &p.Updated)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if projectID.Valid {
		p.ProjectID = &projectID.Int64
	}
	return &p, nil
}

func (s *SQLiteStore) GetPrompt(ctx context.Context, id int64) (*models.Prompt, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, content, project_id, created, updated FROM prompts WHERE id = ?`, id)
	return scanPrompt(row)
}

func (s *SQLiteStore) ListPrompts(ctx context.Context) ([]*models.Prompt, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, content, project_id, created, updated FROM prompts ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*models.Prompt
	for rows.Next() {
		p, err := scanPrompt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) ListPromptsByProject(ctx context.Context, projectID int64) ([]*models.Prompt, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT p.id, p.name, p.content, p.project_id, p.created, p.updated
		 FROM prompts p JOIN project_prompts pp ON pp.prompt_id = p.id
		 WHERE pp.project_id = ? ORDER BY p.id`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*models.Prompt
	for rows.Next() {
		p, err := scanPrompt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) UpdatePrompt(ctx context.Context, p *models.Prompt) error {
	p.Updated = s.now()
	var projectID any
	if p.ProjectID != nil {
		projectID = *p.ProjectID
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE prompts SET name = ?, content = ?, project_id = ?, updated = ? WHERE id = ?`,
		p.Name, p.Content, projectID, p.Updated, p.ID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *SQLiteStore) DeletePrompt(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM prompts WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if err := requireRow(res); err != nil {
		return err
	}
	_, _ = s.db.ExecContext(ctx, `DELETE FROM project_prompts WHERE prompt_id = ?`, id)
	return nil
}

func (s *SQLiteStore) AddPromptToProject(ctx context.Context, promptID, projectID int64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO project_prompts (project_id, prompt_id) VALUES (?, ?)`,
		projectID, promptID)
	return err
}

func (s *SQLiteStore) RemovePromptFromProject(ctx context.Context, promptID, projectID int64) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM project_prompts WHERE project_id = ? AND prompt_id = ?`,
		projectID, promptID)
	return err
}

// ----- Tool executions -----

func (s *SQLiteStore) BeginToolExecution(ctx context.Context, e *models.ToolExecution) error {
	if e.ID == 0 {
		e.ID = s.ids.NextID()
	}
	var projectID any
	if e.ProjectID != nil {
		projectID = *e.ProjectID
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tool_executions (id, tool_name, project_id, session_id, started_at, input_size)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, e.ToolName, projectID, e.SessionID, e.StartedAt, e.InputSize)
	return err
}

func (s *SQLiteStore) FinishToolExecution(ctx context.Context, e *models.ToolExecution) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE tool_executions SET ended_at = ?, status = ?, output_size = ?, error_message = ?
		 WHERE id = ?`,
		e.EndedAt, e.Status, e.OutputSize, e.ErrorMessage, e.ID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *SQLiteStore) ListToolExecutions(ctx context.Context, limit int) ([]*models.ToolExecution, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, tool_name, project_id, session_id, started_at, ended_at, status,
			input_size, output_size, error_message
		 FROM tool_executions ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*models.ToolExecution
	for rows.Next() {
		var e models.ToolExecution
		var projectID sql.NullInt64
		if err := rows.Scan(&e.ID, &e.ToolName, &projectID, &e.SessionID, &e.StartedAt,
			&e.EndedAt, &e.Status, &e.InputSize, &e.OutputSize, &e.ErrorMessage); err != nil {
			return nil, err
		}
		if projectID.Valid {
			e.ProjectID = &projectID.Int64
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
