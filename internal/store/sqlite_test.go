package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/promptliano/promptliano/internal/models"
)

// stepClock advances one millisecond per call so ordering by
// timestamp is deterministic.
type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func newStepClock() *stepClock {
	return &stepClock{now: time.UnixMilli(1_700_000_000_000)}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Millisecond)
	return c.now
}

// seqIDs hands out 1, 2, 3, ...
type seqIDs struct {
	mu   sync.Mutex
	next int64
}

func (g *seqIDs) NextID() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.next++
	return g.next
}

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	st, err := NewSQLite(Config{Path: ":memory:"}, newStepClock(), &seqIDs{})
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func TestProjectCRUD(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	p := &models.Project{Name: "demo", Path: "/tmp/demo", Description: "a demo"}
	require.NoError(t, st.CreateProject(ctx, p))
	require.NotZero(t, p.ID)
	require.NotZero(t, p.Created)

	got, err := st.GetProject(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "demo", got.Name)
	assert.Equal(t, "/tmp/demo", got.Path)

	got.Description = "updated"
	require.NoError(t, st.UpdateProject(ctx, got))
	got2, err := st.GetProject(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "updated", got2.Description)
	assert.Greater(t, got2.Updated, got2.Created)

	require.NoError(t, st.DeleteProject(ctx, p.ID))
	_, err = st.GetProject(ctx, p.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFilePathUniqueWithinProject(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	p := &models.Project{Name: "demo", Path: "/tmp/demo"}
	require.NoError(t, st.CreateProject(ctx, p))

	f := &models.File{ProjectID: p.ID, Path: "src/main.go", Content: "package main"}
	require.NoError(t, st.CreateFile(ctx, f))
	assert.Equal(t, "main.go", f.Name)
	assert.Equal(t, "go", f.Extension)
	assert.Equal(t, len("package main"), f.Size)

	dup := &models.File{ProjectID: p.ID, Path: "src/main.go"}
	assert.ErrorIs(t, st.CreateFile(ctx, dup), ErrConflict)

	// Same path in a different project is fine.
	p2 := &models.Project{Name: "other", Path: "/tmp/other"}
	require.NoError(t, st.CreateProject(ctx, p2))
	other := &models.File{ProjectID: p2.ID, Path: "src/main.go"}
	assert.NoError(t, st.CreateFile(ctx, other))

	byPath, err := st.GetFileByPath(ctx, p.ID, "src/main.go")
	require.NoError(t, err)
	assert.Equal(t, f.ID, byPath.ID)
}

func TestTaskOrderIndexStaysDense(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	ticket := &models.Ticket{ProjectID: 1, Title: "t"}
	require.NoError(t, st.CreateTicket(ctx, ticket))

	for i := 0; i < 3; i++ {
		task := &models.Task{TicketID: ticket.ID, Content: "step"}
		require.NoError(t, st.CreateTask(ctx, task))
	}
	tasks, err := st.ListTasks(ctx, ticket.ID)
	require.NoError(t, err)
	require.Len(t, tasks, 3)
	for i, task := range tasks {
		assert.Equal(t, i, task.OrderIndex)
	}
}

func TestTicketQueueFieldsRoundTrip(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	ticket := &models.Ticket{ProjectID: 1, Title: "queued work"}
	require.NoError(t, st.CreateTicket(ctx, ticket))

	got, err := st.GetTicket(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Nil(t, got.QueueID)
	assert.Nil(t, got.QueueStatus)
	assert.False(t, got.Queued())

	queueID := int64(77)
	status := models.ItemStatusQueued
	got.QueueFields = models.QueueFields{
		QueueID:       &queueID,
		QueueStatus:   &status,
		QueuePriority: 3,
		QueuedAt:      123,
	}
	require.NoError(t, st.UpdateTicket(ctx, got))

	back, err := st.GetTicket(ctx, ticket.ID)
	require.NoError(t, err)
	require.NotNil(t, back.QueueID)
	assert.Equal(t, int64(77), *back.QueueID)
	assert.Equal(t, models.ItemStatusQueued, *back.QueueStatus)
	assert.Equal(t, 3, back.QueuePriority)

	byQueue, err := st.ListTicketsByQueue(ctx, 77)
	require.NoError(t, err)
	require.Len(t, byQueue, 1)
}

func TestDeleteTicketCascadesTasks(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	ticket := &models.Ticket{ProjectID: 1, Title: "t"}
	require.NoError(t, st.CreateTicket(ctx, ticket))
	task := &models.Task{TicketID: ticket.ID, Content: "step"}
	require.NoError(t, st.CreateTask(ctx, task))

	require.NoError(t, st.DeleteTicket(ctx, ticket.ID))
	tasks, err := st.ListTasks(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestPromptProjectAssociation(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	p := &models.Project{Name: "demo", Path: "/tmp/demo"}
	require.NoError(t, st.CreateProject(ctx, p))
	prompt := &models.Prompt{Name: "review", Content: "Review this."}
	require.NoError(t, st.CreatePrompt(ctx, prompt))

	require.NoError(t, st.AddPromptToProject(ctx, prompt.ID, p.ID))
	// Adding twice is a no-op.
	require.NoError(t, st.AddPromptToProject(ctx, prompt.ID, p.ID))

	got, err := st.ListPromptsByProject(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "review", got[0].Name)

	require.NoError(t, st.RemovePromptFromProject(ctx, prompt.ID, p.ID))
	got, err = st.ListPromptsByProject(ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestToolExecutionLifecycle(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	e := &models.ToolExecution{ToolName: "project_manager", SessionID: "s1", StartedAt: 10, InputSize: 42}
	require.NoError(t, st.BeginToolExecution(ctx, e))

	e.EndedAt = 20
	e.Status = models.ExecStatusSuccess
	e.OutputSize = 7
	require.NoError(t, st.FinishToolExecution(ctx, e))

	execs, err := st.ListToolExecutions(ctx, 10)
	require.NoError(t, err)
	require.Len(t, execs, 1)
	assert.Equal(t, models.ExecStatusSuccess, execs[0].Status)
	assert.Equal(t, int64(20), execs[0].EndedAt)
	assert.Equal(t, 42, execs[0].InputSize)
}
