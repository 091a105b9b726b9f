package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/promptliano/promptliano/internal/models"
	"github.com/promptliano/promptliano/internal/store"
)

var ticketManagerActions = []string{
	"list", "get", "create", "update", "delete",
	"suggest_tasks", "auto_generate_tasks", "suggest_files", "search",
	"batch_create", "batch_update", "batch_delete",
}

func (s *Server) ticketManagerTool() *Tool {
	return &Tool{
		Name:        "ticket_manager",
		Description: "Manage tickets: CRUD, search, AI task suggestions and batch operations.",
		Actions:     ticketManagerActions,
		IDFields:    []string{"projectId", "ticketId"},
		LLMBound:    true,
		Handler:     s.handleTicketManager,
	}
}

func (s *Server) handleTicketManager(ctx context.Context, args Args) (*ToolResult, error) {
	action, err := args.Action()
	if err != nil {
		return nil, err
	}
	switch action {
	case "list":
		pid, ok := s.sessionProjectID(ctx, args)
		if !ok {
			return nil, MissingFieldError("projectId", "number", "42")
		}
		tickets, err := s.store.ListTickets(ctx, pid, args.Data().OptionalString("status"))
		if err != nil {
			return nil, err
		}
		return JSONResult(tickets)

	case "get":
		t, err := s.requireTicket(ctx, args)
		if err != nil {
			return nil, err
		}
		return JSONResult(t)

	case "create":
		pid, ok := s.sessionProjectID(ctx, args)
		if !ok {
			return nil, MissingFieldError("projectId", "number", "42")
		}
		data, err := args.RequireData()
		if err != nil {
			return nil, err
		}
		return s.createTicket(ctx, pid, data)

	case "update":
		t, err := s.requireTicket(ctx, args)
		if err != nil {
			return nil, err
		}
		data, err := args.RequireData()
		if err != nil {
			return nil, err
		}
		if err := applyTicketUpdate(t, data); err != nil {
			return nil, err
		}
		if err := s.store.UpdateTicket(ctx, t); err != nil {
			return nil, err
		}
		return JSONResult(t)

	case "delete":
		t, err := s.requireTicket(ctx, args)
		if err != nil {
			return nil, err
		}
		if err := s.deleteTicketChecked(ctx, t); err != nil {
			return nil, err
		}
		return TextResult(fmt.Sprintf("Deleted ticket %d and its tasks", t.ID)), nil

	case "suggest_tasks":
		t, err := s.requireTicket(ctx, args)
		if err != nil {
			return nil, err
		}
		suggestions, err := s.llm.SuggestTasks(ctx, t.ID, args.Data().OptionalString("context"))
		if err != nil {
			return nil, err
		}
		return JSONResult(suggestions)

	case "auto_generate_tasks":
		t, err := s.requireTicket(ctx, args)
		if err != nil {
			return nil, err
		}
		tasks, err := s.llm.AutoGenerateTasks(ctx, t.ID)
		if err != nil {
			return nil, err
		}
		return JSONResult(tasks)

	case "suggest_files":
		t, err := s.requireTicket(ctx, args)
		if err != nil {
			return nil, err
		}
		files, err := s.llm.SuggestFiles(ctx, t.ProjectID, t.Title+" "+t.Overview, args.Data().OptionalInt("limit", 10))
		if err != nil {
			return nil, err
		}
		ids := make([]int64, 0, len(files))
		for _, f := range files {
			ids = append(ids, f.ID)
		}
		t.SuggestedFileIDs = ids
		if err := s.store.UpdateTicket(ctx, t); err != nil {
			return nil, err
		}
		return JSONResult(files)

	case "search":
		pid, ok := s.sessionProjectID(ctx, args)
		if !ok {
			return nil, MissingFieldError("projectId", "number", "42")
		}
		data, err := args.RequireData()
		if err != nil {
			return nil, err
		}
		query, err := data.String("query", `"login bug"`)
		if err != nil {
			return nil, err
		}
		return s.searchTickets(ctx, pid, query)

	case "batch_create":
		pid, ok := s.sessionProjectID(ctx, args)
		if !ok {
			return nil, MissingFieldError("projectId", "number", "42")
		}
		items, err := args.Data().ObjectSlice("items")
		if err != nil {
			return nil, err
		}
		return runBatch(ctx, items, func(ctx context.Context, item Args) error {
			_, err := s.createTicket(ctx, pid, item)
			return err
		})

	case "batch_update":
		items, err := args.Data().ObjectSlice("items")
		if err != nil {
			return nil, err
		}
		return runBatch(ctx, items, func(ctx context.Context, item Args) error {
			t, err := s.requireTicket(ctx, Args{"ticketId": item["ticketId"]})
			if err != nil {
				return err
			}
			if err := applyTicketUpdate(t, item); err != nil {
				return err
			}
			return s.store.UpdateTicket(ctx, t)
		})

	case "batch_delete":
		items, err := args.Data().ObjectSlice("items")
		if err != nil {
			return nil, err
		}
		return runBatch(ctx, items, func(ctx context.Context, item Args) error {
			t, err := s.requireTicket(ctx, Args{"ticketId": item["ticketId"]})
			if err != nil {
				return err
			}
			return s.deleteTicketChecked(ctx, t)
		})

	default:
		return nil, UnknownActionError("ticket_manager", action, ticketManagerActions)
	}
}

func (s *Server) createTicket(ctx context.Context, projectID int64, data Args) (*ToolResult, error) {
	title, err := data.String("title", `"Fix login redirect"`)
	if err != nil {
		return nil, err
	}
	t := &models.Ticket{
		ProjectID: projectID,
		Title:     title,
		Overview:  data.OptionalString("overview"),
		Status:    models.TicketStatusOpen,
		Priority:  models.PriorityNormal,
	}
	if v := data.OptionalString("status"); v != "" {
		if err := validateTicketStatus(v); err != nil {
			return nil, err
		}
		t.Status = v
	}
	if v := data.OptionalString("priority"); v != "" {
		if err := validateTicketPriority(v); err != nil {
			return nil, err
		}
		t.Priority = v
	}
	if err := s.store.CreateTicket(ctx, t); err != nil {
		return nil, err
	}
	return JSONResult(t)
}

func applyTicketUpdate(t *models.Ticket, data Args) error {
	if v := data.OptionalString("title"); v != "" {
		t.Title = v
	}
	if v, ok := data["overview"].(string); ok {
		t.Overview = v
	}
	if v := data.OptionalString("status"); v != "" {
		if err := validateTicketStatus(v); err != nil {
			return err
		}
		t.Status = v
	}
	if v := data.OptionalString("priority"); v != "" {
		if err := validateTicketPriority(v); err != nil {
			return err
		}
		t.Priority = v
	}
	if ids, err := data.Int64Slice("suggestedFileIds"); err != nil {
		return err
	} else if ids != nil {
		t.SuggestedFileIDs = ids
	}
	if ids, err := data.StringSlice("suggestedAgentIds"); err != nil {
		return err
	} else if ids != nil {
		t.SuggestedAgentIDs = ids
	}
	if ids, err := data.Int64Slice("suggestedPromptIds"); err != nil {
		return err
	} else if ids != nil {
		t.SuggestedPromptIDs = ids
	}
	return nil
}

func validateTicketStatus(v string) error {
	switch v {
	case models.TicketStatusOpen, models.TicketStatusInProgress, models.TicketStatusClosed:
		return nil
	}
	return NewDomainError(ErrValidationFailed,
		"invalid ticket status %q: expected open, in_progress or closed", v)
}

func validateTicketPriority(v string) error {
	switch v {
	case models.PriorityLow, models.PriorityNormal, models.PriorityHigh:
		return nil
	}
	return NewDomainError(ErrValidationFailed,
		"invalid ticket priority %q: expected low, normal or high", v)
}

// deleteTicketChecked removes a ticket and its tasks unless the ticket
// or one of its tasks is held by an agent.
func (s *Server) deleteTicketChecked(ctx context.Context, t *models.Ticket) error {
	if t.InProgress() {
		return NewDomainError(ErrValidationFailed,
			"ticket %d is in progress on queue %d; complete or fail it first", t.ID, *t.QueueID)
	}
	tasks, err := s.store.ListTasks(ctx, t.ID)
	if err != nil {
		return err
	}
	for _, task := range tasks {
		if task.InProgress() {
			return NewDomainError(ErrValidationFailed,
				"task %d of ticket %d is in progress on queue %d; complete or fail it first",
				task.ID, t.ID, *task.QueueID)
		}
	}
	return s.store.DeleteTicket(ctx, t.ID)
}

func (s *Server) requireTicket(ctx context.Context, args Args) (*models.Ticket, error) {
	id, err := args.Int64("ticketId", "100")
	if err != nil {
		return nil, err
	}
	t, err := s.store.GetTicket(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, NewDomainError(ErrTicketNotFound, "ticket %d not found", id).
				WithSuggestion("Use the list action of ticket_manager to see available tickets")
		}
		return nil, err
	}
	return t, nil
}

func (s *Server) searchTickets(ctx context.Context, projectID int64, query string) (*ToolResult, error) {
	tickets, err := s.store.ListTickets(ctx, projectID, "")
	if err != nil {
		return nil, NewDomainError(ErrSearchFailed, "ticket search failed: %v", err)
	}
	needle := strings.ToLower(query)
	var hits []*models.Ticket
	for _, t := range tickets {
		if strings.Contains(strings.ToLower(t.Title), needle) || strings.Contains(strings.ToLower(t.Overview), needle) {
			hits = append(hits, t)
		}
	}
	if len(hits) == 0 {
		return nil, NewDomainError(ErrNoSearchResults, "no tickets match %q", query)
	}
	return JSONResult(hits)
}
