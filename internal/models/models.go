// Package models defines the persistent entities owned by the store:
// projects, files, tickets, tasks, queues, prompts, and the
// tool-execution audit records written by the MCP invoker.
package models

// Ticket status values.
const (
	TicketStatusOpen       = "open"
	TicketStatusInProgress = "in_progress"
	TicketStatusClosed     = "closed"
)

// Ticket priority values.
const (
	PriorityLow    = "low"
	PriorityNormal = "normal"
	PriorityHigh   = "high"
)

// Queue status values.
const (
	QueueStatusActive = "active"
	QueueStatusPaused = "paused"
)

// Queue item status values. An item is a ticket or task attached to a
// queue; the status lives on the ticket/task row itself.
const (
	ItemStatusQueued     = "queued"
	ItemStatusInProgress = "in_progress"
	ItemStatusCompleted  = "completed"
	ItemStatusFailed     = "failed"
	ItemStatusCancelled  = "cancelled"
)

// Queue item types.
const (
	ItemTypeTicket = "ticket"
	ItemTypeTask   = "task"
)

// Project is a registered codebase with an absolute filesystem path.
type Project struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Path        string `json:"path"`
	Description string `json:"description"`
	Created     int64  `json:"created"`
	Updated     int64  `json:"updated"`
}

// File is a project file tracked by the store. Path is relative to the
// project root and unique within the project.
type File struct {
	ID        int64  `json:"id"`
	ProjectID int64  `json:"projectId"`
	Path      string `json:"path"`
	Name      string `json:"name"`
	Extension string `json:"extension"`
	Size      int    `json:"size"`
	Content   string `json:"content"`
	Summary   string `json:"summary,omitempty"`
}

// QueueFields carries the queue attachment shared by tickets and
// tasks. QueueID != nil iff QueueStatus != nil.
type QueueFields struct {
	QueueID         *int64  `json:"queueId,omitempty"`
	QueueStatus     *string `json:"queueStatus,omitempty"`
	QueuePriority   int     `json:"queuePriority,omitempty"`
	QueuedAt        int64   `json:"queuedAt,omitempty"`
	QueueStartedAt  int64   `json:"queueStartedAt,omitempty"`
	QueueEndedAt    int64   `json:"queueEndedAt,omitempty"`
	QueueErrorMsg   string  `json:"queueErrorMessage,omitempty"`
	QueueAgentID    string  `json:"queueAgentId,omitempty"`
}

// Queued reports whether the item is attached to a queue.
func (q *QueueFields) Queued() bool { return q.QueueID != nil }

// InProgress reports whether an agent currently holds the item.
func (q *QueueFields) InProgress() bool {
	return q.QueueID != nil && q.QueueStatus != nil && *q.QueueStatus == ItemStatusInProgress
}

// Ticket is a unit of work with AI-suggested associations.
type Ticket struct {
	ID                int64    `json:"id"`
	ProjectID         int64    `json:"projectId"`
	Title             string   `json:"title"`
	Overview          string   `json:"overview"`
	Status            string   `json:"status"`
	Priority          string   `json:"priority"`
	SuggestedFileIDs  []int64  `json:"suggestedFileIds"`
	SuggestedAgentIDs []string `json:"suggestedAgentIds"`
	SuggestedPromptIDs []int64 `json:"suggestedPromptIds"`
	QueueFields
	Created int64 `json:"created"`
	Updated int64 `json:"updated"`
}

// Task is a step within a ticket. OrderIndex is unique and dense
// within the ticket.
type Task struct {
	ID               int64    `json:"id"`
	TicketID         int64    `json:"ticketId"`
	Content          string   `json:"content"`
	Description      string   `json:"description,omitempty"`
	Done             bool     `json:"done"`
	OrderIndex       int      `json:"orderIndex"`
	SuggestedFileIDs []int64  `json:"suggestedFileIds"`
	EstimatedHours   float64  `json:"estimatedHours,omitempty"`
	Dependencies     []int64  `json:"dependencies"`
	Tags             []string `json:"tags"`
	AgentID          string   `json:"agentId,omitempty"`
	QueueFields
	Created int64 `json:"created"`
	Updated int64 `json:"updated"`
}

// Queue arbitrates work distribution for a project.
type Queue struct {
	ID               int64  `json:"id"`
	ProjectID        int64  `json:"projectId"`
	Name             string `json:"name"`
	Description      string `json:"description"`
	Status           string `json:"status"`
	MaxParallelItems int    `json:"maxParallelItems"`
	Created          int64  `json:"created"`
	Updated          int64  `json:"updated"`
}

// Prompt is a reusable prompt, optionally bound to a project through a
// many-to-many association.
type Prompt struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Content   string `json:"content"`
	ProjectID *int64 `json:"projectId,omitempty"`
	Created   int64  `json:"created"`
	Updated   int64  `json:"updated"`
}

// ToolExecution statuses.
const (
	ExecStatusSuccess = "success"
	ExecStatusError   = "error"
)

// ToolExecution is the audit record the invoker writes around every
// tool call. Records outlive the session that produced them.
type ToolExecution struct {
	ID           int64  `json:"id"`
	ToolName     string `json:"toolName"`
	ProjectID    *int64 `json:"projectId,omitempty"`
	SessionID    string `json:"sessionId"`
	StartedAt    int64  `json:"startedAt"`
	EndedAt      int64  `json:"endedAt,omitempty"`
	Status       string `json:"status"`
	InputSize    int    `json:"inputSize"`
	OutputSize   int    `json:"outputSize,omitempty"`
	ErrorMessage string `json:"errorMessage,omitempty"`
}
