// Package queue arbitrates work distribution for AI agent consumers.
//
// The engine exclusively owns queue-status transitions on tickets and
// tasks: everything else in the process routes queue mutations through
// here. Selection is priority-ordered (lower queuePriority wins), FIFO
// within a priority by (enqueuedAt, id), tasks preferred over tickets
// at equal rank. A per-queue mutex keeps the maxParallelItems
// invariant and claim linearizability under real parallelism.
package queue

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/promptliano/promptliano/internal/ident"
	"github.com/promptliano/promptliano/internal/models"
	"github.com/promptliano/promptliano/internal/store"
)

// NextItem is the result of a dequeue attempt. Type is "task",
// "ticket" or "none"; Message carries the human-readable reason when
// nothing is dispensed.
type NextItem struct {
	Type    string         `json:"type"`
	Ticket  *models.Ticket `json:"ticket,omitempty"`
	Task    *models.Task   `json:"task,omitempty"`
	Message string         `json:"message,omitempty"`
}

// Stats summarizes a queue's item population.
type Stats struct {
	QueueName             string   `json:"queueName"`
	TotalItems            int      `json:"totalItems"`
	QueuedItems           int      `json:"queuedItems"`
	InProgressItems       int      `json:"inProgressItems"`
	CompletedItems        int      `json:"completedItems"`
	FailedItems           int      `json:"failedItems"`
	CancelledItems        int      `json:"cancelledItems"`
	AverageProcessingTime *float64 `json:"averageProcessingTime,omitempty"`
	CurrentAgents         []string `json:"currentAgents"`
}

// QueueWithStats pairs a queue with its stats for project overviews.
type QueueWithStats struct {
	Queue *models.Queue `json:"queue"`
	Stats *Stats        `json:"stats"`
}

// Engine owns queues and the per-item queue state attached to tickets
// and tasks.
type Engine struct {
	store  store.Store
	clock  ident.Clock
	logger *zap.Logger

	mu    sync.Mutex
	locks map[int64]*sync.Mutex // one lock per queue
}

// NewEngine creates a queue engine over the given store.
func NewEngine(st store.Store, clock ident.Clock, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		store:  st,
		clock:  clock,
		logger: logger,
		locks:  map[int64]*sync.Mutex{},
	}
}

// lockFor returns the mutex serializing transitions on one queue.
func (e *Engine) lockFor(queueID int64) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.locks[queueID]
	if !ok {
		l = &sync.Mutex{}
		e.locks[queueID] = l
	}
	return l
}

// CreateQueue creates a queue. MaxParallelItems must be >= 1.
func (e *Engine) CreateQueue(ctx context.Context, q *models.Queue) (*models.Queue, error) {
	if q.MaxParallelItems < 1 {
		return nil, fmt.Errorf("maxParallelItems must be >= 1, got %d", q.MaxParallelItems)
	}
	if q.Status == "" {
		q.Status = models.QueueStatusActive
	}
	if err := e.store.CreateQueue(ctx, q); err != nil {
		return nil, err
	}
	return q, nil
}

// ListQueuesByProject returns every queue of the project.
func (e *Engine) ListQueuesByProject(ctx context.Context, projectID int64) ([]*models.Queue, error) {
	return e.store.ListQueues(ctx, projectID)
}

// GetQueueByID returns a queue or store.ErrNotFound.
func (e *Engine) GetQueueByID(ctx context.Context, id int64) (*models.Queue, error) {
	return e.store.GetQueue(ctx, id)
}

// QueueUpdate holds the optional fields of UpdateQueue.
type QueueUpdate struct {
	Name             *string
	Description      *string
	Status           *string
	MaxParallelItems *int
}

// UpdateQueue applies a partial update. Pausing halts new dequeues but
// leaves in-flight items alone.
func (e *Engine) UpdateQueue(ctx context.Context, id int64, upd QueueUpdate) (*models.Queue, error) {
	lock := e.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	q, err := e.store.GetQueue(ctx, id)
	if err != nil {
		return nil, err
	}
	if upd.Name != nil {
		q.Name = *upd.Name
	}
	if upd.Description != nil {
		q.Description = *upd.Description
	}
	if upd.Status != nil {
		if *upd.Status != models.QueueStatusActive && *upd.Status != models.QueueStatusPaused {
			return nil, fmt.Errorf("invalid queue status %q", *upd.Status)
		}
		q.Status = *upd.Status
	}
	if upd.MaxParallelItems != nil {
		if *upd.MaxParallelItems < 1 {
			return nil, fmt.Errorf("maxParallelItems must be >= 1, got %d", *upd.MaxParallelItems)
		}
		q.MaxParallelItems = *upd.MaxParallelItems
	}
	if err := e.store.UpdateQueue(ctx, q); err != nil {
		return nil, err
	}
	return q, nil
}

// DeleteQueue removes the queue and detaches every item. Items still
// queued or in progress become cancelled before detachment.
func (e *Engine) DeleteQueue(ctx context.Context, id int64) error {
	lock := e.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	if _, err := e.store.GetQueue(ctx, id); err != nil {
		return err
	}
	tickets, err := e.store.ListTicketsByQueue(ctx, id)
	if err != nil {
		return err
	}
	for _, t := range tickets {
		t.QueueFields = models.QueueFields{}
		if err := e.store.UpdateTicket(ctx, t); err != nil {
			return err
		}
	}
	tasks, err := e.store.ListTasksByQueue(ctx, id)
	if err != nil {
		return err
	}
	for _, t := range tasks {
		t.QueueFields = models.QueueFields{}
		if err := e.store.UpdateTask(ctx, t); err != nil {
			return err
		}
	}
	return e.store.DeleteQueue(ctx, id)
}

// EnqueueTicket attaches a ticket to a queue. The ticket must not
// already be enqueued.
func (e *Engine) EnqueueTicket(ctx context.Context, ticketID, queueID int64, priority int) (*models.Ticket, error) {
	lock := e.lockFor(queueID)
	lock.Lock()
	defer lock.Unlock()
	return e.enqueueTicketLocked(ctx, ticketID, queueID, priority)
}

func (e *Engine) enqueueTicketLocked(ctx context.Context, ticketID, queueID int64, priority int) (*models.Ticket, error) {
	if _, err := e.store.GetQueue(ctx, queueID); err != nil {
		return nil, err
	}
	t, err := e.store.GetTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if t.Queued() {
		return nil, fmt.Errorf("ticket %d is already in queue %d", ticketID, *t.QueueID)
	}
	status := models.ItemStatusQueued
	t.QueueFields = models.QueueFields{
		QueueID:       &queueID,
		QueueStatus:   &status,
		QueuePriority: priority,
		QueuedAt:      e.clock.Now().UnixMilli(),
	}
	if err := e.store.UpdateTicket(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// EnqueueTask attaches a single task to a queue.
func (e *Engine) EnqueueTask(ctx context.Context, ticketID, taskID, queueID int64, priority int) (*models.Task, error) {
	lock := e.lockFor(queueID)
	lock.Lock()
	defer lock.Unlock()
	return e.enqueueTaskLocked(ctx, ticketID, taskID, queueID, priority)
}

func (e *Engine) enqueueTaskLocked(ctx context.Context, ticketID, taskID, queueID int64, priority int) (*models.Task, error) {
	if _, err := e.store.GetQueue(ctx, queueID); err != nil {
		return nil, err
	}
	t, err := e.store.GetTask(ctx, ticketID, taskID)
	if err != nil {
		return nil, err
	}
	if t.Queued() {
		return nil, fmt.Errorf("task %d is already in queue %d", taskID, *t.QueueID)
	}
	status := models.ItemStatusQueued
	t.QueueFields = models.QueueFields{
		QueueID:       &queueID,
		QueueStatus:   &status,
		QueuePriority: priority,
		QueuedAt:      e.clock.Now().UnixMilli(),
	}
	if err := e.store.UpdateTask(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// EnqueueTicketWithAllTasks enqueues the ticket and every one of its
// tasks with the same priority. Already-enqueued tasks fail the whole
// operation before anything is written.
func (e *Engine) EnqueueTicketWithAllTasks(ctx context.Context, queueID, ticketID int64, priority int) (*models.Ticket, []*models.Task, error) {
	lock := e.lockFor(queueID)
	lock.Lock()
	defer lock.Unlock()

	tasks, err := e.store.ListTasks(ctx, ticketID)
	if err != nil {
		return nil, nil, err
	}
	for _, t := range tasks {
		if t.Queued() {
			return nil, nil, fmt.Errorf("task %d is already in queue %d", t.ID, *t.QueueID)
		}
	}
	ticket, err := e.enqueueTicketLocked(ctx, ticketID, queueID, priority)
	if err != nil {
		return nil, nil, err
	}
	enqueued := make([]*models.Task, 0, len(tasks))
	for _, t := range tasks {
		et, err := e.enqueueTaskLocked(ctx, ticketID, t.ID, queueID, priority)
		if err != nil {
			return nil, nil, err
		}
		enqueued = append(enqueued, et)
	}
	return ticket, enqueued, nil
}

// DequeueTicket detaches a ticket from its queue. In-progress items
// must be completed or failed first.
func (e *Engine) DequeueTicket(ctx context.Context, ticketID int64) (*models.Ticket, error) {
	t, err := e.store.GetTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if !t.Queued() {
		return nil, fmt.Errorf("ticket %d is not in a queue", ticketID)
	}
	lock := e.lockFor(*t.QueueID)
	lock.Lock()
	defer lock.Unlock()

	// Re-read under the lock; a worker may have claimed it meanwhile.
	t, err = e.store.GetTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if !t.Queued() {
		return nil, fmt.Errorf("ticket %d is not in a queue", ticketID)
	}
	if *t.QueueStatus == models.ItemStatusInProgress {
		return nil, fmt.Errorf("ticket %d is in progress and cannot be dequeued", ticketID)
	}
	t.QueueFields = models.QueueFields{}
	if err := e.store.UpdateTicket(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// DequeueTask detaches a task from its queue.
func (e *Engine) DequeueTask(ctx context.Context, ticketID, taskID int64) (*models.Task, error) {
	t, err := e.store.GetTask(ctx, ticketID, taskID)
	if err != nil {
		return nil, err
	}
	if !t.Queued() {
		return nil, fmt.Errorf("task %d is not in a queue", taskID)
	}
	lock := e.lockFor(*t.QueueID)
	lock.Lock()
	defer lock.Unlock()

	t, err = e.store.GetTask(ctx, ticketID, taskID)
	if err != nil {
		return nil, err
	}
	if !t.Queued() {
		return nil, fmt.Errorf("task %d is not in a queue", taskID)
	}
	if *t.QueueStatus == models.ItemStatusInProgress {
		return nil, fmt.Errorf("task %d is in progress and cannot be dequeued", taskID)
	}
	t.QueueFields = models.QueueFields{}
	if err := e.store.UpdateTask(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// candidate is a queued item under selection.
type candidate struct {
	isTask   bool
	priority int
	queuedAt int64
	id       int64
	ticket   *models.Ticket
	task     *models.Task
}

// GetNextTaskFromQueue claims the next work item for an agent.
//
// Selection order: smallest queuePriority, then earliest enqueue time,
// then smallest id; tasks win ties against tickets since they are the
// finer-grained unit. The claim transition is atomic under the
// per-queue lock so two concurrent callers never receive the same
// item.
func (e *Engine) GetNextTaskFromQueue(ctx context.Context, queueID int64, agentID string) (*NextItem, error) {
	lock := e.lockFor(queueID)
	lock.Lock()
	defer lock.Unlock()

	q, err := e.store.GetQueue(ctx, queueID)
	if err != nil {
		return nil, err
	}
	if q.Status == models.QueueStatusPaused {
		return &NextItem{Type: "none", Message: fmt.Sprintf("queue %q is paused", q.Name)}, nil
	}

	tickets, err := e.store.ListTicketsByQueue(ctx, queueID)
	if err != nil {
		return nil, err
	}
	tasks, err := e.store.ListTasksByQueue(ctx, queueID)
	if err != nil {
		return nil, err
	}

	inProgress := 0
	var cands []candidate
	for _, t := range tickets {
		switch *t.QueueStatus {
		case models.ItemStatusInProgress:
			inProgress++
		case models.ItemStatusQueued:
			cands = append(cands, candidate{priority: t.QueuePriority, queuedAt: t.QueuedAt, id: t.ID, ticket: t})
		}
	}
	for _, t := range tasks {
		switch *t.QueueStatus {
		case models.ItemStatusInProgress:
			inProgress++
		case models.ItemStatusQueued:
			cands = append(cands, candidate{isTask: true, priority: t.QueuePriority, queuedAt: t.QueuedAt, id: t.ID, task: t})
		}
	}

	if inProgress >= q.MaxParallelItems {
		return &NextItem{
			Type: "none",
			Message: fmt.Sprintf("queue %q is at its parallel limit (%d of %d items in progress)",
				q.Name, inProgress, q.MaxParallelItems),
		}, nil
	}
	if len(cands) == 0 {
		return &NextItem{Type: "none", Message: fmt.Sprintf("queue %q has no queued items", q.Name)}, nil
	}

	sort.Slice(cands, func(i, j int) bool {
		a, b := cands[i], cands[j]
		if a.priority != b.priority {
			return a.priority < b.priority
		}
		if a.queuedAt != b.queuedAt {
			return a.queuedAt < b.queuedAt
		}
		if a.isTask != b.isTask {
			return a.isTask
		}
		return a.id < b.id
	})
	chosen := cands[0]

	now := e.clock.Now().UnixMilli()
	status := models.ItemStatusInProgress
	if chosen.isTask {
		t := chosen.task
		t.QueueStatus = &status
		t.QueueStartedAt = now
		t.QueueAgentID = agentID
		if err := e.store.UpdateTask(ctx, t); err != nil {
			return nil, err
		}
		e.logger.Debug("claimed task from queue",
			zap.Int64("queue_id", queueID), zap.Int64("task_id", t.ID), zap.String("agent_id", agentID))
		return &NextItem{Type: models.ItemTypeTask, Task: t}, nil
	}
	t := chosen.ticket
	t.QueueStatus = &status
	t.QueueStartedAt = now
	t.QueueAgentID = agentID
	if err := e.store.UpdateTicket(ctx, t); err != nil {
		return nil, err
	}
	e.logger.Debug("claimed ticket from queue",
		zap.Int64("queue_id", queueID), zap.Int64("ticket_id", t.ID), zap.String("agent_id", agentID))
	return &NextItem{Type: models.ItemTypeTicket, Ticket: t}, nil
}

// CompleteQueueItem transitions an in-progress item to completed.
func (e *Engine) CompleteQueueItem(ctx context.Context, itemType string, itemID int64, ticketID int64) error {
	return e.finishItem(ctx, itemType, itemID, ticketID, models.ItemStatusCompleted, "")
}

// FailQueueItem transitions an in-progress item to failed, recording
// the error message on the item.
func (e *Engine) FailQueueItem(ctx context.Context, itemType string, itemID int64, errorMessage string, ticketID int64) error {
	return e.finishItem(ctx, itemType, itemID, ticketID, models.ItemStatusFailed, errorMessage)
}

func (e *Engine) finishItem(ctx context.Context, itemType string, itemID, ticketID int64, status, errMsg string) error {
	switch itemType {
	case models.ItemTypeTicket:
		t, err := e.store.GetTicket(ctx, itemID)
		if err != nil {
			return err
		}
		if !t.Queued() {
			return fmt.Errorf("ticket %d is not in a queue", itemID)
		}
		lock := e.lockFor(*t.QueueID)
		lock.Lock()
		defer lock.Unlock()
		t, err = e.store.GetTicket(ctx, itemID)
		if err != nil {
			return err
		}
		if t.QueueStatus == nil || *t.QueueStatus != models.ItemStatusInProgress {
			return fmt.Errorf("ticket %d is not in progress", itemID)
		}
		t.QueueStatus = &status
		t.QueueEndedAt = e.clock.Now().UnixMilli()
		t.QueueErrorMsg = errMsg
		return e.store.UpdateTicket(ctx, t)

	case models.ItemTypeTask:
		t, err := e.store.GetTask(ctx, ticketID, itemID)
		if err != nil {
			return err
		}
		if !t.Queued() {
			return fmt.Errorf("task %d is not in a queue", itemID)
		}
		lock := e.lockFor(*t.QueueID)
		lock.Lock()
		defer lock.Unlock()
		t, err = e.store.GetTask(ctx, ticketID, itemID)
		if err != nil {
			return err
		}
		if t.QueueStatus == nil || *t.QueueStatus != models.ItemStatusInProgress {
			return fmt.Errorf("task %d is not in progress", itemID)
		}
		t.QueueStatus = &status
		t.QueueEndedAt = e.clock.Now().UnixMilli()
		t.QueueErrorMsg = errMsg
		return e.store.UpdateTask(ctx, t)

	default:
		return fmt.Errorf("unknown item type %q", itemType)
	}
}

// GetQueueStats computes item counts, current agents, and the average
// processing time over completed items.
func (e *Engine) GetQueueStats(ctx context.Context, queueID int64) (*Stats, error) {
	q, err := e.store.GetQueue(ctx, queueID)
	if err != nil {
		return nil, err
	}
	tickets, err := e.store.ListTicketsByQueue(ctx, queueID)
	if err != nil {
		return nil, err
	}
	tasks, err := e.store.ListTasksByQueue(ctx, queueID)
	if err != nil {
		return nil, err
	}

	stats := &Stats{QueueName: q.Name, CurrentAgents: []string{}}
	var totalProcessing int64
	var completed int
	agents := map[string]bool{}

	tally := func(status string, startedAt, endedAt int64, agentID string) {
		stats.TotalItems++
		switch status {
		case models.ItemStatusQueued:
			stats.QueuedItems++
		case models.ItemStatusInProgress:
			stats.InProgressItems++
			if agentID != "" && !agents[agentID] {
				agents[agentID] = true
				stats.CurrentAgents = append(stats.CurrentAgents, agentID)
			}
		case models.ItemStatusCompleted:
			stats.CompletedItems++
			if endedAt > startedAt {
				totalProcessing += endedAt - startedAt
				completed++
			}
		case models.ItemStatusFailed:
			stats.FailedItems++
		case models.ItemStatusCancelled:
			stats.CancelledItems++
		}
	}
	for _, t := range tickets {
		tally(*t.QueueStatus, t.QueueStartedAt, t.QueueEndedAt, t.QueueAgentID)
	}
	for _, t := range tasks {
		tally(*t.QueueStatus, t.QueueStartedAt, t.QueueEndedAt, t.QueueAgentID)
	}
	if completed > 0 {
		avg := float64(totalProcessing) / float64(completed)
		stats.AverageProcessingTime = &avg
	}
	sort.Strings(stats.CurrentAgents)
	return stats, nil
}

// GetQueuesWithStats returns every queue of the project with stats.
func (e *Engine) GetQueuesWithStats(ctx context.Context, projectID int64) ([]*QueueWithStats, error) {
	queues, err := e.store.ListQueues(ctx, projectID)
	if err != nil {
		return nil, err
	}
	out := make([]*QueueWithStats, 0, len(queues))
	for _, q := range queues {
		stats, err := e.GetQueueStats(ctx, q.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, &QueueWithStats{Queue: q, Stats: stats})
	}
	return out, nil
}
