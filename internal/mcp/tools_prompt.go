package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/promptliano/promptliano/internal/models"
	"github.com/promptliano/promptliano/internal/store"
)

var promptManagerActions = []string{
	"list", "get", "create", "update", "delete",
	"list_by_project", "add_to_project", "remove_from_project",
}

func (s *Server) promptManagerTool() *Tool {
	return &Tool{
		Name:        "prompt_manager",
		Description: "Manage the prompt library and project associations.",
		Actions:     promptManagerActions,
		IDFields:    []string{"promptId", "projectId"},
		Handler:     s.handlePromptManager,
	}
}

func (s *Server) handlePromptManager(ctx context.Context, args Args) (*ToolResult, error) {
	action, err := args.Action()
	if err != nil {
		return nil, err
	}
	switch action {
	case "list":
		prompts, err := s.store.ListPrompts(ctx)
		if err != nil {
			return nil, err
		}
		return JSONResult(prompts)

	case "get":
		p, err := s.requirePrompt(ctx, args)
		if err != nil {
			return nil, err
		}
		return JSONResult(p)

	case "create":
		data, err := args.RequireData()
		if err != nil {
			return nil, err
		}
		name, err := data.String("name", `"Code Review Checklist"`)
		if err != nil {
			return nil, err
		}
		content, err := data.String("content", `"Review the following code for..."`)
		if err != nil {
			return nil, err
		}
		p := &models.Prompt{Name: name, Content: content}
		if pid, ok, err := data.OptionalInt64("projectId"); err != nil {
			return nil, err
		} else if ok {
			p.ProjectID = &pid
		}
		if err := s.store.CreatePrompt(ctx, p); err != nil {
			return nil, err
		}
		if p.ProjectID != nil {
			if err := s.store.AddPromptToProject(ctx, p.ID, *p.ProjectID); err != nil {
				return nil, err
			}
		}
		return JSONResult(p)

	case "update":
		p, err := s.requirePrompt(ctx, args)
		if err != nil {
			return nil, err
		}
		data := args.Data()
		if v := data.OptionalString("name"); v != "" {
			p.Name = v
		}
		if v := data.OptionalString("content"); v != "" {
			p.Content = v
		}
		if err := s.store.UpdatePrompt(ctx, p); err != nil {
			return nil, err
		}
		return JSONResult(p)

	case "delete":
		p, err := s.requirePrompt(ctx, args)
		if err != nil {
			return nil, err
		}
		if err := s.store.DeletePrompt(ctx, p.ID); err != nil {
			return nil, err
		}
		return TextResult(fmt.Sprintf("Deleted prompt %d (%s)", p.ID, p.Name)), nil

	case "list_by_project":
		pid, ok := s.sessionProjectID(ctx, args)
		if !ok {
			return nil, MissingFieldError("projectId", "number", "42")
		}
		prompts, err := s.store.ListPromptsByProject(ctx, pid)
		if err != nil {
			return nil, err
		}
		return JSONResult(prompts)

	case "add_to_project", "remove_from_project":
		p, err := s.requirePrompt(ctx, args)
		if err != nil {
			return nil, err
		}
		pid, ok := s.sessionProjectID(ctx, args)
		if !ok {
			return nil, MissingFieldError("projectId", "number", "42")
		}
		if action == "add_to_project" {
			err = s.store.AddPromptToProject(ctx, p.ID, pid)
		} else {
			err = s.store.RemovePromptFromProject(ctx, p.ID, pid)
		}
		if err != nil {
			return nil, err
		}
		return TextResult(fmt.Sprintf("Prompt %d association with project %d updated", p.ID, pid)), nil

	default:
		return nil, UnknownActionError("prompt_manager", action, promptManagerActions)
	}
}

func (s *Server) requirePrompt(ctx context.Context, args Args) (*models.Prompt, error) {
	id, err := args.Int64("promptId", "7")
	if err != nil {
		return nil, err
	}
	p, err := s.store.GetPrompt(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, NewDomainError(ErrPromptNotFound, "prompt %d not found", id).
				WithSuggestion("Use the list action of prompt_manager to see available prompts")
		}
		return nil, err
	}
	return p, nil
}

var markdownPromptManagerActions = []string{
	"export", "export_all", "import", "validate",
}

func (s *Server) markdownPromptManagerTool() *Tool {
	return &Tool{
		Name:        "markdown_prompt_manager",
		Description: "Import and export prompts as markdown documents with frontmatter.",
		Actions:     markdownPromptManagerActions,
		IDFields:    []string{"promptId"},
		Handler:     s.handleMarkdownPromptManager,
	}
}

func (s *Server) handleMarkdownPromptManager(ctx context.Context, args Args) (*ToolResult, error) {
	action, err := args.Action()
	if err != nil {
		return nil, err
	}
	switch action {
	case "export":
		p, err := s.requirePrompt(ctx, args)
		if err != nil {
			return nil, err
		}
		return TextResult(promptToMarkdown(p)), nil

	case "export_all":
		prompts, err := s.store.ListPrompts(ctx)
		if err != nil {
			return nil, err
		}
		var b strings.Builder
		for i, p := range prompts {
			if i > 0 {
				b.WriteString("\n")
			}
			b.WriteString(promptToMarkdown(p))
		}
		return TextResult(b.String()), nil

	case "import":
		data, err := args.RequireData()
		if err != nil {
			return nil, err
		}
		markdown, err := data.String("markdown", "\"---\\nname: My Prompt\\n---\\nContent\"")
		if err != nil {
			return nil, err
		}
		name, content, verr := parsePromptMarkdown(markdown)
		if verr != nil {
			return nil, verr
		}
		p := &models.Prompt{Name: name, Content: content}
		if err := s.store.CreatePrompt(ctx, p); err != nil {
			return nil, err
		}
		return JSONResult(p)

	case "validate":
		data, err := args.RequireData()
		if err != nil {
			return nil, err
		}
		markdown, err := data.String("markdown", "\"---\\nname: My Prompt\\n---\\nContent\"")
		if err != nil {
			return nil, err
		}
		name, _, verr := parsePromptMarkdown(markdown)
		if verr != nil {
			return JSONResult(map[string]interface{}{"valid": false, "error": verr.Error()})
		}
		return JSONResult(map[string]interface{}{"valid": true, "name": name})

	default:
		return nil, UnknownActionError("markdown_prompt_manager", action, markdownPromptManagerActions)
	}
}

func promptToMarkdown(p *models.Prompt) string {
	var b strings.Builder
	b.WriteString("---\n")
	fmt.Fprintf(&b, "name: %s\n", p.Name)
	fmt.Fprintf(&b, "id: %d\n", p.ID)
	if p.ProjectID != nil {
		fmt.Fprintf(&b, "projectId: %d\n", *p.ProjectID)
	}
	b.WriteString("---\n")
	b.WriteString(p.Content)
	if !strings.HasSuffix(p.Content, "\n") {
		b.WriteString("\n")
	}
	return b.String()
}

// parsePromptMarkdown extracts the name from a YAML-ish frontmatter
// block and returns the body as content.
func parsePromptMarkdown(markdown string) (name, content string, err error) {
	trimmed := strings.TrimSpace(markdown)
	if !strings.HasPrefix(trimmed, "---") {
		return "", "", NewDomainError(ErrValidationFailed,
			"markdown must start with a --- frontmatter block")
	}
	rest := strings.TrimPrefix(trimmed, "---")
	idx := strings.Index(rest, "---")
	if idx < 0 {
		return "", "", NewDomainError(ErrValidationFailed,
			"unterminated frontmatter block")
	}
	front, body := rest[:idx], strings.TrimSpace(rest[idx+3:])
	for _, line := range strings.Split(front, "\n") {
		line = strings.TrimSpace(line)
		if after, ok := strings.CutPrefix(line, "name:"); ok {
			name = strings.TrimSpace(after)
		}
	}
	if name == "" {
		return "", "", NewDomainError(ErrValidationFailed,
			"frontmatter is missing the name field")
	}
	if body == "" {
		return "", "", NewDomainError(ErrValidationFailed,
			"prompt body is empty")
	}
	return name, body, nil
}
