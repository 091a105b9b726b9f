package mcp

import (
	"context"
	"errors"
	"fmt"

	"github.com/promptliano/promptliano/internal/models"
	"github.com/promptliano/promptliano/internal/queue"
	"github.com/promptliano/promptliano/internal/store"
)

var queueManagerActions = []string{
	"create_queue", "list_queues", "get_queue", "update_queue", "delete_queue",
	"enqueue_ticket", "enqueue_task", "enqueue_ticket_with_all_tasks",
	"dequeue_ticket", "dequeue_task",
	"get_queue_stats", "get_queues_with_stats",
}

func (s *Server) queueManagerTool() *Tool {
	return &Tool{
		Name:        "queue_manager",
		Description: "Manage task queues: lifecycle, enqueue/dequeue and statistics.",
		Actions:     queueManagerActions,
		IDFields:    []string{"projectId", "queueId", "ticketId", "taskId"},
		Handler:     s.handleQueueManager,
	}
}

func (s *Server) handleQueueManager(ctx context.Context, args Args) (*ToolResult, error) {
	action, err := args.Action()
	if err != nil {
		return nil, err
	}
	switch action {
	case "create_queue":
		pid, ok := s.sessionProjectID(ctx, args)
		if !ok {
			return nil, MissingFieldError("projectId", "number", "42")
		}
		data, err := args.RequireData()
		if err != nil {
			return nil, err
		}
		name, err := data.String("name", `"main-queue"`)
		if err != nil {
			return nil, err
		}
		q := &models.Queue{
			ProjectID:        pid,
			Name:             name,
			Description:      data.OptionalString("description"),
			MaxParallelItems: data.OptionalInt("maxParallelItems", 1),
		}
		created, err := s.queue.CreateQueue(ctx, q)
		if err != nil {
			return nil, err
		}
		return JSONResult(created)

	case "list_queues":
		pid, ok := s.sessionProjectID(ctx, args)
		if !ok {
			return nil, MissingFieldError("projectId", "number", "42")
		}
		queues, err := s.queue.ListQueuesByProject(ctx, pid)
		if err != nil {
			return nil, err
		}
		return JSONResult(queues)

	case "get_queue":
		q, err := s.requireQueue(ctx, args)
		if err != nil {
			return nil, err
		}
		return JSONResult(q)

	case "update_queue":
		queueID, err := args.Int64("queueId", "3")
		if err != nil {
			return nil, err
		}
		data, err := args.RequireData()
		if err != nil {
			return nil, err
		}
		var upd queue.QueueUpdate
		if v := data.OptionalString("name"); v != "" {
			upd.Name = &v
		}
		if v, ok := data["description"].(string); ok {
			upd.Description = &v
		}
		if v := data.OptionalString("status"); v != "" {
			if v != models.QueueStatusActive && v != models.QueueStatusPaused {
				return nil, NewDomainError(ErrValidationFailed,
					"invalid queue status %q: expected active or paused", v)
			}
			upd.Status = &v
		}
		if v, ok := data["maxParallelItems"].(float64); ok {
			n := int(v)
			upd.MaxParallelItems = &n
		}
		q, err := s.queue.UpdateQueue(ctx, queueID, upd)
		if err != nil {
			return nil, s.mapQueueError(err, queueID)
		}
		return JSONResult(q)

	case "delete_queue":
		queueID, err := args.Int64("queueId", "3")
		if err != nil {
			return nil, err
		}
		if err := s.queue.DeleteQueue(ctx, queueID); err != nil {
			return nil, s.mapQueueError(err, queueID)
		}
		return TextResult(fmt.Sprintf("Deleted queue %d and detached its items", queueID)), nil

	case "enqueue_ticket":
		queueID, err := args.Int64("queueId", "3")
		if err != nil {
			return nil, err
		}
		ticketID, err := args.Int64("ticketId", "100")
		if err != nil {
			return nil, err
		}
		t, err := s.queue.EnqueueTicket(ctx, ticketID, queueID, args.Data().OptionalInt("priority", 0))
		if err != nil {
			return nil, err
		}
		return JSONResult(t)

	case "enqueue_task":
		queueID, err := args.Int64("queueId", "3")
		if err != nil {
			return nil, err
		}
		ticketID, err := args.Int64("ticketId", "100")
		if err != nil {
			return nil, err
		}
		taskID, err := args.Int64("taskId", "5")
		if err != nil {
			return nil, err
		}
		t, err := s.queue.EnqueueTask(ctx, ticketID, taskID, queueID, args.Data().OptionalInt("priority", 0))
		if err != nil {
			return nil, err
		}
		return JSONResult(t)

	case "enqueue_ticket_with_all_tasks":
		queueID, err := args.Int64("queueId", "3")
		if err != nil {
			return nil, err
		}
		ticketID, err := args.Int64("ticketId", "100")
		if err != nil {
			return nil, err
		}
		ticket, tasks, err := s.queue.EnqueueTicketWithAllTasks(ctx, queueID, ticketID, args.Data().OptionalInt("priority", 0))
		if err != nil {
			return nil, err
		}
		return JSONResult(map[string]interface{}{"ticket": ticket, "tasks": tasks})

	case "dequeue_ticket":
		ticketID, err := args.Int64("ticketId", "100")
		if err != nil {
			return nil, err
		}
		t, err := s.queue.DequeueTicket(ctx, ticketID)
		if err != nil {
			return nil, err
		}
		return JSONResult(t)

	case "dequeue_task":
		ticketID, err := args.Int64("ticketId", "100")
		if err != nil {
			return nil, err
		}
		taskID, err := args.Int64("taskId", "5")
		if err != nil {
			return nil, err
		}
		t, err := s.queue.DequeueTask(ctx, ticketID, taskID)
		if err != nil {
			return nil, err
		}
		return JSONResult(t)

	case "get_queue_stats":
		queueID, err := args.Int64("queueId", "3")
		if err != nil {
			return nil, err
		}
		stats, err := s.queue.GetQueueStats(ctx, queueID)
		if err != nil {
			return nil, s.mapQueueError(err, queueID)
		}
		return JSONResult(stats)

	case "get_queues_with_stats":
		pid, ok := s.sessionProjectID(ctx, args)
		if !ok {
			return nil, MissingFieldError("projectId", "number", "42")
		}
		out, err := s.queue.GetQueuesWithStats(ctx, pid)
		if err != nil {
			return nil, err
		}
		return JSONResult(out)

	default:
		return nil, UnknownActionError("queue_manager", action, queueManagerActions)
	}
}

func (s *Server) requireQueue(ctx context.Context, args Args) (*models.Queue, error) {
	id, err := args.Int64("queueId", "3")
	if err != nil {
		return nil, err
	}
	q, err := s.queue.GetQueueByID(ctx, id)
	if err != nil {
		return nil, s.mapQueueError(err, id)
	}
	return q, nil
}

func (s *Server) mapQueueError(err error, queueID int64) error {
	if errors.Is(err, store.ErrNotFound) {
		return NewDomainError(ErrNotFound, "queue %d not found", queueID).
			WithSuggestion("Use the list_queues action of queue_manager to see available queues")
	}
	return err
}

var queueProcessorActions = []string{
	"get_next_task", "complete_task", "fail_task", "check_queue_status",
}

func (s *Server) queueProcessorTool() *Tool {
	return &Tool{
		Name:        "queue_processor",
		Description: "Agent-facing queue consumption: claim the next work item, report completion or failure.",
		Actions:     queueProcessorActions,
		IDFields:    []string{"queueId", "ticketId", "taskId"},
		Handler:     s.handleQueueProcessor,
	}
}

func (s *Server) handleQueueProcessor(ctx context.Context, args Args) (*ToolResult, error) {
	action, err := args.Action()
	if err != nil {
		return nil, err
	}
	switch action {
	case "get_next_task":
		queueID, err := args.Int64("queueId", "3")
		if err != nil {
			return nil, err
		}
		next, err := s.queue.GetNextTaskFromQueue(ctx, queueID, args.Data().OptionalString("agentId"))
		if err != nil {
			return nil, s.mapQueueError(err, queueID)
		}
		return JSONResult(next)

	case "complete_task", "fail_task":
		itemType, itemID, ticketID, err := queueItemRef(args)
		if err != nil {
			return nil, err
		}
		if action == "complete_task" {
			err = s.queue.CompleteQueueItem(ctx, itemType, itemID, ticketID)
		} else {
			msg, merr := args.Data().String("errorMessage", `"build failed on step 3"`)
			if merr != nil {
				return nil, merr
			}
			err = s.queue.FailQueueItem(ctx, itemType, itemID, msg, ticketID)
		}
		if err != nil {
			return nil, err
		}
		return TextResult(fmt.Sprintf("%s %d marked %s", itemType, itemID,
			map[string]string{"complete_task": "completed", "fail_task": "failed"}[action])), nil

	case "check_queue_status":
		queueID, err := args.Int64("queueId", "3")
		if err != nil {
			return nil, err
		}
		q, err := s.queue.GetQueueByID(ctx, queueID)
		if err != nil {
			return nil, s.mapQueueError(err, queueID)
		}
		stats, err := s.queue.GetQueueStats(ctx, queueID)
		if err != nil {
			return nil, err
		}
		return JSONResult(map[string]interface{}{"queue": q, "stats": stats})

	default:
		return nil, UnknownActionError("queue_processor", action, queueProcessorActions)
	}
}

// queueItemRef extracts (itemType, itemId, ticketId) for complete and
// fail transitions. A taskId implies a task item; otherwise the
// ticket itself is the item.
func queueItemRef(args Args) (itemType string, itemID, ticketID int64, err error) {
	ticketID, err = args.Int64("ticketId", "100")
	if err != nil {
		return "", 0, 0, err
	}
	if taskID, ok, terr := args.OptionalInt64("taskId"); terr != nil {
		return "", 0, 0, terr
	} else if ok {
		return models.ItemTypeTask, taskID, ticketID, nil
	}
	return models.ItemTypeTicket, ticketID, ticketID, nil
}
