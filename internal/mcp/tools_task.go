package mcp

import (
	"context"
	"errors"
	"fmt"

	"github.com/promptliano/promptliano/internal/models"
	"github.com/promptliano/promptliano/internal/store"
)

var taskManagerActions = []string{
	"list", "get", "create", "update", "delete", "reorder",
	"suggest_files", "update_context",
	"batch_create", "batch_update", "batch_delete", "batch_move",
}

func (s *Server) taskManagerTool() *Tool {
	return &Tool{
		Name:        "task_manager",
		Description: "Manage tasks within tickets: CRUD, ordering, context and batch operations.",
		Actions:     taskManagerActions,
		IDFields:    []string{"ticketId", "taskId"},
		LLMBound:    true,
		Handler:     s.handleTaskManager,
	}
}

func (s *Server) handleTaskManager(ctx context.Context, args Args) (*ToolResult, error) {
	action, err := args.Action()
	if err != nil {
		return nil, err
	}
	switch action {
	case "list":
		ticketID, err := args.Int64("ticketId", "100")
		if err != nil {
			return nil, err
		}
		tasks, err := s.store.ListTasks(ctx, ticketID)
		if err != nil {
			return nil, err
		}
		return JSONResult(tasks)

	case "get":
		t, err := s.requireTask(ctx, args)
		if err != nil {
			return nil, err
		}
		return JSONResult(t)

	case "create":
		ticketID, err := args.Int64("ticketId", "100")
		if err != nil {
			return nil, err
		}
		data, err := args.RequireData()
		if err != nil {
			return nil, err
		}
		return s.createTask(ctx, ticketID, data)

	case "update", "update_context":
		t, err := s.requireTask(ctx, args)
		if err != nil {
			return nil, err
		}
		data, err := args.RequireData()
		if err != nil {
			return nil, err
		}
		if err := applyTaskUpdate(t, data); err != nil {
			return nil, err
		}
		if err := s.store.UpdateTask(ctx, t); err != nil {
			return nil, err
		}
		return JSONResult(t)

	case "delete":
		t, err := s.requireTask(ctx, args)
		if err != nil {
			return nil, err
		}
		if err := s.deleteTaskChecked(ctx, t); err != nil {
			return nil, err
		}
		return TextResult(fmt.Sprintf("Deleted task %d from ticket %d", t.ID, t.TicketID)), nil

	case "reorder":
		ticketID, err := args.Int64("ticketId", "100")
		if err != nil {
			return nil, err
		}
		data, err := args.RequireData()
		if err != nil {
			return nil, err
		}
		order, err := data.Int64Slice("taskIds")
		if err != nil {
			return nil, err
		}
		if order == nil {
			return nil, MissingFieldError("taskIds", "number array", "[3, 1, 2]")
		}
		return s.reorderTasks(ctx, ticketID, order)

	case "suggest_files":
		t, err := s.requireTask(ctx, args)
		if err != nil {
			return nil, err
		}
		ticket, err := s.store.GetTicket(ctx, t.TicketID)
		if err != nil {
			return nil, err
		}
		files, err := s.llm.SuggestFiles(ctx, ticket.ProjectID, t.Content+" "+t.Description, args.Data().OptionalInt("limit", 10))
		if err != nil {
			return nil, err
		}
		ids := make([]int64, 0, len(files))
		for _, f := range files {
			ids = append(ids, f.ID)
		}
		t.SuggestedFileIDs = ids
		if err := s.store.UpdateTask(ctx, t); err != nil {
			return nil, err
		}
		return JSONResult(files)

	case "batch_create":
		ticketID, err := args.Int64("ticketId", "100")
		if err != nil {
			return nil, err
		}
		items, err := args.Data().ObjectSlice("items")
		if err != nil {
			return nil, err
		}
		return runBatch(ctx, items, func(ctx context.Context, item Args) error {
			_, err := s.createTask(ctx, ticketID, item)
			return err
		})

	case "batch_update":
		items, err := args.Data().ObjectSlice("items")
		if err != nil {
			return nil, err
		}
		return runBatch(ctx, items, func(ctx context.Context, item Args) error {
			t, err := s.requireTask(ctx, Args{"ticketId": item["ticketId"], "taskId": item["taskId"]})
			if err != nil {
				return err
			}
			if err := applyTaskUpdate(t, item); err != nil {
				return err
			}
			return s.store.UpdateTask(ctx, t)
		})

	case "batch_delete":
		items, err := args.Data().ObjectSlice("items")
		if err != nil {
			return nil, err
		}
		return runBatch(ctx, items, func(ctx context.Context, item Args) error {
			t, err := s.requireTask(ctx, Args{"ticketId": item["ticketId"], "taskId": item["taskId"]})
			if err != nil {
				return err
			}
			return s.deleteTaskChecked(ctx, t)
		})

	case "batch_move":
		items, err := args.Data().ObjectSlice("items")
		if err != nil {
			return nil, err
		}
		return runBatch(ctx, items, func(ctx context.Context, item Args) error {
			t, err := s.requireTask(ctx, Args{"ticketId": item["ticketId"], "taskId": item["taskId"]})
			if err != nil {
				return err
			}
			target, err := item.Int64("targetTicketId", "101")
			if err != nil {
				return err
			}
			if t.InProgress() {
				return NewDomainError(ErrValidationFailed,
					"task %d is in progress on queue %d; complete or fail it first", t.ID, *t.QueueID)
			}
			if target == t.TicketID {
				return nil
			}
			if _, err := s.store.GetTicket(ctx, target); err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return NewDomainError(ErrTicketNotFound, "target ticket %d not found", target)
				}
				return err
			}
			siblings, err := s.store.ListTasks(ctx, target)
			if err != nil {
				return err
			}
			// The task keeps its id and queue attachment across the
			// move; only the queue engine changes queue state.
			source := t.TicketID
			t.TicketID = target
			t.OrderIndex = len(siblings)
			if err := s.store.UpdateTask(ctx, t); err != nil {
				return err
			}
			return s.compactTaskOrder(ctx, source)
		})

	default:
		return nil, UnknownActionError("task_manager", action, taskManagerActions)
	}
}

func (s *Server) createTask(ctx context.Context, ticketID int64, data Args) (*ToolResult, error) {
	if _, err := s.store.GetTicket(ctx, ticketID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, NewDomainError(ErrTicketNotFound, "ticket %d not found", ticketID)
		}
		return nil, err
	}
	content, err := data.String("content", `"Write the migration script"`)
	if err != nil {
		return nil, err
	}
	t := &models.Task{
		TicketID:    ticketID,
		Content:     content,
		Description: data.OptionalString("description"),
		AgentID:     data.OptionalString("agentId"),
	}
	if deps, err := data.Int64Slice("dependencies"); err != nil {
		return nil, err
	} else {
		t.Dependencies = deps
	}
	if tags, err := data.StringSlice("tags"); err != nil {
		return nil, err
	} else {
		t.Tags = tags
	}
	if v, ok := data["estimatedHours"].(float64); ok {
		t.EstimatedHours = v
	}
	if err := s.store.CreateTask(ctx, t); err != nil {
		return nil, err
	}
	return JSONResult(t)
}

func applyTaskUpdate(t *models.Task, data Args) error {
	if v := data.OptionalString("content"); v != "" {
		t.Content = v
	}
	if v, ok := data["description"].(string); ok {
		t.Description = v
	}
	if v, ok := data["done"].(bool); ok {
		t.Done = v
	}
	if v := data.OptionalString("agentId"); v != "" {
		t.AgentID = v
	}
	if v, ok := data["estimatedHours"].(float64); ok {
		t.EstimatedHours = v
	}
	if deps, err := data.Int64Slice("dependencies"); err != nil {
		return err
	} else if deps != nil {
		t.Dependencies = deps
	}
	if tags, err := data.StringSlice("tags"); err != nil {
		return err
	} else if tags != nil {
		t.Tags = tags
	}
	if ids, err := data.Int64Slice("suggestedFileIds"); err != nil {
		return err
	} else if ids != nil {
		t.SuggestedFileIDs = ids
	}
	return nil
}

func (s *Server) requireTask(ctx context.Context, args Args) (*models.Task, error) {
	ticketID, err := args.Int64("ticketId", "100")
	if err != nil {
		return nil, err
	}
	taskID, err := args.Int64("taskId", "5")
	if err != nil {
		return nil, err
	}
	t, err := s.store.GetTask(ctx, ticketID, taskID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, NewDomainError(ErrNotFound, "task %d not found in ticket %d", taskID, ticketID).
				WithSuggestion("Use the list action of task_manager to see the ticket's tasks")
		}
		return nil, err
	}
	return t, nil
}

// deleteTaskChecked removes a task unless an agent holds it, then
// closes the orderIndex gap the removal leaves.
func (s *Server) deleteTaskChecked(ctx context.Context, t *models.Task) error {
	if t.InProgress() {
		return NewDomainError(ErrValidationFailed,
			"task %d is in progress on queue %d; complete or fail it first", t.ID, *t.QueueID)
	}
	if err := s.store.DeleteTask(ctx, t.TicketID, t.ID); err != nil {
		return err
	}
	return s.compactTaskOrder(ctx, t.TicketID)
}

// compactTaskOrder rewrites the ticket's orderIndex values back to
// 0..n-1 after a removal.
func (s *Server) compactTaskOrder(ctx context.Context, ticketID int64) error {
	tasks, err := s.store.ListTasks(ctx, ticketID)
	if err != nil {
		return err
	}
	for i, t := range tasks {
		if t.OrderIndex != i {
			t.OrderIndex = i
			if err := s.store.UpdateTask(ctx, t); err != nil {
				return err
			}
		}
	}
	return nil
}

// reorderTasks rewrites orderIndex to match the given id order. Ids
// must cover exactly the ticket's tasks.
func (s *Server) reorderTasks(ctx context.Context, ticketID int64, order []int64) (*ToolResult, error) {
	tasks, err := s.store.ListTasks(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]*models.Task, len(tasks))
	for _, t := range tasks {
		byID[t.ID] = t
	}
	if len(order) != len(tasks) {
		return nil, NewDomainError(ErrValidationFailed,
			"reorder requires all %d task ids, got %d", len(tasks), len(order))
	}
	for idx, id := range order {
		t, ok := byID[id]
		if !ok {
			return nil, NewDomainError(ErrValidationFailed,
				"task %d does not belong to ticket %d", id, ticketID)
		}
		t.OrderIndex = idx
		if err := s.store.UpdateTask(ctx, t); err != nil {
			return nil, err
		}
	}
	updated, err := s.store.ListTasks(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	return JSONResult(updated)
}
