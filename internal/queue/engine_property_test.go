package queue

import (
	"context"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"go.uber.org/zap"

	"github.com/promptliano/promptliano/internal/models"
	"github.com/promptliano/promptliano/internal/store"
)

// queueModel drives the engine with a random op sequence and checks
// the invariants after every step.
type queueModel struct {
	ctx     context.Context
	engine  *Engine
	store   store.Store
	queueID int64
	maxPar  int

	tickets    []int64 // every ticket ever created
	inProgress map[int64]bool
}

func newQueueModel() (*queueModel, error) {
	clock := newStepClock()
	st, err := store.NewSQLite(store.Config{Path: ":memory:"}, clock, &seqIDs{})
	if err != nil {
		return nil, err
	}
	engine := NewEngine(st, clock, zap.NewNop())
	ctx := context.Background()
	q, err := engine.CreateQueue(ctx, &models.Queue{ProjectID: 1, Name: "prop", MaxParallelItems: 2})
	if err != nil {
		return nil, err
	}
	return &queueModel{
		ctx:        ctx,
		engine:     engine,
		store:      st,
		queueID:    q.ID,
		maxPar:     q.MaxParallelItems,
		inProgress: map[int64]bool{},
	}, nil
}

func (m *queueModel) close() {
	if c, ok := m.store.(*store.SQLiteStore); ok {
		c.Close()
	}
}

// step applies one encoded operation. Operations that are invalid in
// the current state (completing with nothing claimed, dequeuing an
// unqueued ticket) are allowed to fail; what matters is the state the
// engine leaves behind.
func (m *queueModel) step(op int) error {
	switch op % 5 {
	case 0: // enqueue a fresh ticket
		tk := &models.Ticket{ProjectID: 1, Title: "generated"}
		if err := m.store.CreateTicket(m.ctx, tk); err != nil {
			return err
		}
		if _, err := m.engine.EnqueueTicket(m.ctx, tk.ID, m.queueID, op%7); err != nil {
			return err
		}
		m.tickets = append(m.tickets, tk.ID)
	case 1: // claim
		next, err := m.engine.GetNextTaskFromQueue(m.ctx, m.queueID, "prop-agent")
		if err != nil {
			return err
		}
		if next.Type == models.ItemTypeTicket {
			if m.inProgress[next.Ticket.ID] {
				return errDoubleClaim
			}
			m.inProgress[next.Ticket.ID] = true
		}
	case 2: // complete one claimed item
		for id := range m.inProgress {
			if err := m.engine.CompleteQueueItem(m.ctx, models.ItemTypeTicket, id, 0); err != nil {
				return err
			}
			delete(m.inProgress, id)
			break
		}
	case 3: // fail one claimed item
		for id := range m.inProgress {
			if err := m.engine.FailQueueItem(m.ctx, models.ItemTypeTicket, id, "prop failure", 0); err != nil {
				return err
			}
			delete(m.inProgress, id)
			break
		}
	case 4: // try to dequeue the oldest ticket; rejection is fine
		if len(m.tickets) > 0 {
			_, _ = m.engine.DequeueTicket(m.ctx, m.tickets[0])
		}
	}
	return nil
}

var errDoubleClaim = contextError("item claimed while already in progress")

type contextError string

func (e contextError) Error() string { return string(e) }

// check verifies the parallel limit and the stats bookkeeping.
func (m *queueModel) check() bool {
	stats, err := m.engine.GetQueueStats(m.ctx, m.queueID)
	if err != nil {
		return false
	}
	if stats.InProgressItems > m.maxPar {
		return false
	}
	if stats.InProgressItems != len(m.inProgress) {
		return false
	}
	sum := stats.QueuedItems + stats.InProgressItems + stats.CompletedItems +
		stats.FailedItems + stats.CancelledItems
	return sum == stats.TotalItems
}

func TestQueueInvariantsHoldUnderRandomOps(t *testing.T) {
	params := gopter.DefaultTestParameters()
	params.MinSuccessfulTests = 50
	properties := gopter.NewProperties(params)

	properties.Property("parallel limit and stats consistency survive any op sequence",
		prop.ForAll(
			func(ops []int) bool {
				m, err := newQueueModel()
				if err != nil {
					return false
				}
				defer m.close()
				for _, op := range ops {
					if err := m.step(op); err != nil {
						return false
					}
					if !m.check() {
						return false
					}
				}
				return true
			},
			gen.SliceOf(gen.IntRange(0, 99)),
		))

	properties.TestingRun(t)
}
