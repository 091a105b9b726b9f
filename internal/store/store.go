// Package store provides durable persistence for projects, files,
// tickets, tasks, queues, prompts and tool-execution records.
//
// The Store interface is the capability handed to the MCP runtime;
// the SQLite implementation in sqlite.go is the production backend.
package store

import (
	"context"
	"errors"

	"github.com/promptliano/promptliano/internal/models"
)

// ErrNotFound is returned when a row does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a uniqueness constraint is violated,
// e.g. duplicate file path within a project.
var ErrConflict = errors.New("conflict")

// Store is the persistence capability consumed by the MCP core.
type Store interface {
	// Projects
	CreateProject(ctx context.Context, p *models.Project) error
	GetProject(ctx context.Context, id int64) (*models.Project, error)
	ListProjects(ctx context.Context) ([]*models.Project, error)
	UpdateProject(ctx context.Context, p *models.Project) error
	DeleteProject(ctx context.Context, id int64) error

	// Files
	CreateFile(ctx context.Context, f *models.File) error
	GetFile(ctx context.Context, projectID, fileID int64) (*models.File, error)
	GetFileByPath(ctx context.Context, projectID int64, path string) (*models.File, error)
	ListFiles(ctx context.Context, projectID int64) ([]*models.File, error)
	UpdateFile(ctx context.Context, f *models.File) error
	DeleteFile(ctx context.Context, projectID, fileID int64) error

	// Tickets
	CreateTicket(ctx context.Context, t *models.Ticket) error
	GetTicket(ctx context.Context, id int64) (*models.Ticket, error)
	ListTickets(ctx context.Context, projectID int64, status string) ([]*models.Ticket, error)
	ListTicketsByQueue(ctx context.Context, queueID int64) ([]*models.Ticket, error)
	UpdateTicket(ctx context.Context, t *models.Ticket) error
	DeleteTicket(ctx context.Context, id int64) error

	// Tasks
	CreateTask(ctx context.Context, t *models.Task) error
	GetTask(ctx context.Context, ticketID, taskID int64) (*models.Task, error)
	ListTasks(ctx context.Context, ticketID int64) ([]*models.Task, error)
	ListTasksByQueue(ctx context.Context, queueID int64) ([]*models.Task, error)
	UpdateTask(ctx context.Context, t *models.Task) error
	DeleteTask(ctx context.Context, ticketID, taskID int64) error

	// Queues
	CreateQueue(ctx context.Context, q *models.Queue) error
	GetQueue(ctx context.Context, id int64) (*models.Queue, error)
	ListQueues(ctx context.Context, projectID int64) ([]*models.Queue, error)
	UpdateQueue(ctx context.Context, q *models.Queue) error
	DeleteQueue(ctx context.Context, id int64) error

	// Prompts
	CreatePrompt(ctx context.Context, p *models.Prompt) error
	GetPrompt(ctx context.Context, id int64) (*models.Prompt, error)
	ListPrompts(ctx context.Context) ([]*models.Prompt, error)
	ListPromptsByProject(ctx context.Context, projectID int64) ([]*models.Prompt, error)
	UpdatePrompt(ctx context.Context, p *models.Prompt) error
	DeletePrompt(ctx context.Context, id int64) error
	AddPromptToProject(ctx context.Context, promptID, projectID int64) error
	RemovePromptFromProject(ctx context.Context, promptID, projectID int64) error

	// Tool executions
	BeginToolExecution(ctx context.Context, e *models.ToolExecution) error
	FinishToolExecution(ctx context.Context, e *models.ToolExecution) error
	ListToolExecutions(ctx context.Context, limit int) ([]*models.ToolExecution, error)

	Close() error
}
