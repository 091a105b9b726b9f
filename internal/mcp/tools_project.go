package mcp

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/promptliano/promptliano/internal/llm"
	"github.com/promptliano/promptliano/internal/models"
	"github.com/promptliano/promptliano/internal/store"
)

var projectManagerActions = []string{
	"list", "get", "create", "update", "delete", "delete_file",
	"get_summary", "get_summary_advanced", "get_summary_metrics",
	"browse_files", "get_file_content", "get_file_content_partial",
	"update_file_content", "suggest_files", "get_selection_context",
	"search", "create_file", "get_file_tree", "overview",
}

func (s *Server) projectManagerTool() *Tool {
	return &Tool{
		Name:        "project_manager",
		Description: "Manage projects and their files: CRUD, content access, search, summaries and AI file suggestions.",
		Actions:     projectManagerActions,
		IDFields:    []string{"projectId"},
		LLMBound:    true,
		Handler:     s.handleProjectManager,
	}
}

func (s *Server) handleProjectManager(ctx context.Context, args Args) (*ToolResult, error) {
	action, err := args.Action()
	if err != nil {
		return nil, err
	}
	switch action {
	case "list":
		projects, err := s.store.ListProjects(ctx)
		if err != nil {
			return nil, err
		}
		return JSONResult(projects)

	case "get", "overview":
		p, err := s.requireProject(ctx, args)
		if err != nil {
			return nil, err
		}
		if action == "get" {
			return JSONResult(p)
		}
		return s.projectOverview(ctx, p)

	case "create":
		data, err := args.RequireData()
		if err != nil {
			return nil, err
		}
		name, err := data.String("name", `"My Project"`)
		if err != nil {
			return nil, err
		}
		path, err := data.String("path", `"/home/user/projects/my-project"`)
		if err != nil {
			return nil, err
		}
		if !filepath.IsAbs(path) {
			return nil, NewDomainError(ErrValidationFailed,
				"project path must be absolute, got %q", path)
		}
		p := &models.Project{Name: name, Path: path, Description: data.OptionalString("description")}
		if err := s.store.CreateProject(ctx, p); err != nil {
			return nil, err
		}
		return JSONResult(p)

	case "update":
		p, err := s.requireProject(ctx, args)
		if err != nil {
			return nil, err
		}
		data := args.Data()
		if v := data.OptionalString("name"); v != "" {
			p.Name = v
		}
		if v := data.OptionalString("description"); v != "" {
			p.Description = v
		}
		if v := data.OptionalString("path"); v != "" {
			if !filepath.IsAbs(v) {
				return nil, NewDomainError(ErrValidationFailed,
					"project path must be absolute, got %q", v)
			}
			p.Path = v
		}
		if err := s.store.UpdateProject(ctx, p); err != nil {
			return nil, err
		}
		return JSONResult(p)

	case "delete":
		p, err := s.requireProject(ctx, args)
		if err != nil {
			return nil, err
		}
		if err := s.store.DeleteProject(ctx, p.ID); err != nil {
			return nil, err
		}
		return TextResult(fmt.Sprintf("Deleted project %d (%s)", p.ID, p.Name)), nil

	case "create_file":
		p, err := s.requireProject(ctx, args)
		if err != nil {
			return nil, err
		}
		data, err := args.RequireData()
		if err != nil {
			return nil, err
		}
		path, err := data.String("path", `"src/index.ts"`)
		if err != nil {
			return nil, err
		}
		f := &models.File{
			ProjectID: p.ID,
			Path:      path,
			Name:      filepath.Base(path),
			Extension: strings.TrimPrefix(filepath.Ext(path), "."),
			Content:   data.OptionalString("content"),
		}
		f.Size = len(f.Content)
		if err := s.store.CreateFile(ctx, f); err != nil {
			if errors.Is(err, store.ErrConflict) {
				return nil, NewDomainError(ErrValidationFailed,
					"file %q already exists in project %d", path, p.ID)
			}
			return nil, err
		}
		return JSONResult(f)

	case "delete_file":
		p, err := s.requireProject(ctx, args)
		if err != nil {
			return nil, err
		}
		fileID, err := args.Data().Int64("fileId", "7")
		if err != nil {
			return nil, err
		}
		if err := s.store.DeleteFile(ctx, p.ID, fileID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, s.fileNotFound(ctx, p.ID, fmt.Sprintf("file %d", fileID))
			}
			return nil, err
		}
		return TextResult(fmt.Sprintf("Deleted file %d from project %d", fileID, p.ID)), nil

	case "browse_files":
		p, err := s.requireProject(ctx, args)
		if err != nil {
			return nil, err
		}
		files, err := s.store.ListFiles(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		meta := make([]map[string]interface{}, 0, len(files))
		for _, f := range files {
			meta = append(meta, map[string]interface{}{
				"id": f.ID, "path": f.Path, "name": f.Name,
				"extension": f.Extension, "size": f.Size,
			})
		}
		return JSONResult(meta)

	case "get_file_tree":
		p, err := s.requireProject(ctx, args)
		if err != nil {
			return nil, err
		}
		files, err := s.store.ListFiles(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		return TextResult(renderFileTree(files)), nil

	case "get_file_content":
		f, err := s.requireFile(ctx, args)
		if err != nil {
			return nil, err
		}
		return TextResult(f.Content), nil

	case "get_file_content_partial":
		f, err := s.requireFile(ctx, args)
		if err != nil {
			return nil, err
		}
		data := args.Data()
		start := data.OptionalInt("startLine", 1)
		end := data.OptionalInt("endLine", 0)
		return TextResult(sliceLines(f.Content, start, end)), nil

	case "update_file_content":
		f, err := s.requireFile(ctx, args)
		if err != nil {
			return nil, err
		}
		data, err := args.RequireData()
		if err != nil {
			return nil, err
		}
		content, ok := data["content"].(string)
		if !ok {
			return nil, MissingFieldError("content", "string", `"export const x = 1"`)
		}
		f.Content = content
		f.Size = len(content)
		if err := s.store.UpdateFile(ctx, f); err != nil {
			return nil, err
		}
		return JSONResult(map[string]interface{}{"id": f.ID, "path": f.Path, "size": f.Size})

	case "get_summary":
		p, err := s.requireProject(ctx, args)
		if err != nil {
			return nil, err
		}
		text, err := s.projectSummary(ctx, p.ID, llm.SummaryOptions{})
		if err != nil {
			return nil, err
		}
		return TextResult(text), nil

	case "get_summary_advanced":
		p, err := s.requireProject(ctx, args)
		if err != nil {
			return nil, err
		}
		data := args.Data()
		opts := llm.SummaryOptions{
			Depth:    data.OptionalString("depth"),
			Focus:    data.OptionalString("focus"),
			MaxFiles: data.OptionalInt("maxFiles", 0),
		}
		text, err := s.projectSummary(ctx, p.ID, opts)
		if err != nil {
			return nil, err
		}
		return TextResult(text), nil

	case "get_summary_metrics":
		p, err := s.requireProject(ctx, args)
		if err != nil {
			return nil, err
		}
		files, err := s.store.ListFiles(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		summarized, totalSize := 0, 0
		for _, f := range files {
			totalSize += f.Size
			if f.Summary != "" {
				summarized++
			}
		}
		return JSONResult(map[string]interface{}{
			"projectId":       p.ID,
			"totalFiles":      len(files),
			"summarizedFiles": summarized,
			"totalSizeBytes":  totalSize,
		})

	case "suggest_files":
		p, err := s.requireProject(ctx, args)
		if err != nil {
			return nil, err
		}
		data, err := args.RequireData()
		if err != nil {
			return nil, err
		}
		prompt, err := data.String("prompt", `"authentication middleware"`)
		if err != nil {
			return nil, err
		}
		files, err := s.llm.SuggestFiles(ctx, p.ID, prompt, data.OptionalInt("limit", 10))
		if err != nil {
			return nil, err
		}
		return JSONResult(files)

	case "get_selection_context":
		p, err := s.requireProject(ctx, args)
		if err != nil {
			return nil, err
		}
		data := args.Data()
		fileIDs, err := data.Int64Slice("fileIds")
		if err != nil {
			return nil, err
		}
		var b strings.Builder
		for _, id := range fileIDs {
			f, err := s.store.GetFile(ctx, p.ID, id)
			if err != nil {
				continue
			}
			fmt.Fprintf(&b, "=== %s ===\n%s\n\n", f.Path, f.Content)
		}
		if b.Len() == 0 {
			return nil, s.fileNotFound(ctx, p.ID, "any of the selected files")
		}
		return TextResult(b.String()), nil

	case "search":
		p, err := s.requireProject(ctx, args)
		if err != nil {
			return nil, err
		}
		data, err := args.RequireData()
		if err != nil {
			return nil, err
		}
		query, err := data.String("query", `"TODO"`)
		if err != nil {
			return nil, err
		}
		return s.searchProjectFiles(ctx, p.ID, query, data.OptionalInt("limit", 20))

	default:
		return nil, UnknownActionError("project_manager", action, projectManagerActions)
	}
}

// requireProject resolves the project from explicit arguments or the
// session binding.
func (s *Server) requireProject(ctx context.Context, args Args) (*models.Project, error) {
	id, ok := s.sessionProjectID(ctx, args)
	if !ok {
		return nil, MissingFieldError("projectId", "number", "42")
	}
	p, err := s.store.GetProject(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, NewDomainError(ErrProjectNotFound, "project %d not found", id).
				WithSuggestion("Use the list action of project_manager to see available projects")
		}
		return nil, err
	}
	return p, nil
}

// requireFile resolves a file by id or path within the project.
func (s *Server) requireFile(ctx context.Context, args Args) (*models.File, error) {
	p, err := s.requireProject(ctx, args)
	if err != nil {
		return nil, err
	}
	data := args.Data()
	if fileID, ok, err := data.OptionalInt64("fileId"); err != nil {
		return nil, err
	} else if ok {
		f, err := s.store.GetFile(ctx, p.ID, fileID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, s.fileNotFound(ctx, p.ID, fmt.Sprintf("file %d", fileID))
			}
			return nil, err
		}
		return f, nil
	}
	path, ok := data["path"].(string)
	if !ok || path == "" {
		return nil, MissingFieldError("path", "string", `"src/index.ts"`)
	}
	f, err := s.store.GetFileByPath(ctx, p.ID, path)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, s.fileNotFound(ctx, p.ID, path)
		}
		return nil, err
	}
	return f, nil
}

// fileNotFound builds a FILE_NOT_FOUND error carrying up to 5 of the
// project's file paths as alternatives.
func (s *Server) fileNotFound(ctx context.Context, projectID int64, what string) error {
	e := NewDomainError(ErrFileNotFound, "%s not found in project %d", what, projectID).
		WithSuggestion("Use the browse_files action to explore available files")
	if files, err := s.store.ListFiles(ctx, projectID); err == nil {
		paths := make([]string, 0, len(files))
		for _, f := range files {
			paths = append(paths, f.Path)
		}
		sort.Strings(paths)
		e.WithAlternatives(paths)
	}
	return e
}

func (s *Server) searchProjectFiles(ctx context.Context, projectID int64, query string, limit int) (*ToolResult, error) {
	files, err := s.store.ListFiles(ctx, projectID)
	if err != nil {
		return nil, NewDomainError(ErrSearchFailed, "search failed: %v", err)
	}
	needle := strings.ToLower(query)
	type hit struct {
		Path string `json:"path"`
		Line int    `json:"line"`
		Text string `json:"text"`
	}
	var hits []hit
	for _, f := range files {
		for i, line := range strings.Split(f.Content, "\n") {
			if strings.Contains(strings.ToLower(line), needle) {
				hits = append(hits, hit{Path: f.Path, Line: i + 1, Text: strings.TrimSpace(line)})
				if len(hits) >= limit {
					break
				}
			}
		}
		if len(hits) >= limit {
			break
		}
	}
	if len(hits) == 0 {
		return nil, NewDomainError(ErrNoSearchResults, "no results for %q in project %d", query, projectID).
			WithSuggestion("Try a shorter or less specific query")
	}
	return JSONResult(hits)
}

func (s *Server) projectOverview(ctx context.Context, p *models.Project) (*ToolResult, error) {
	files, err := s.store.ListFiles(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	tickets, err := s.store.ListTickets(ctx, p.ID, "")
	if err != nil {
		return nil, err
	}
	queues, err := s.queue.ListQueuesByProject(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	prompts, err := s.store.ListPromptsByProject(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	open := 0
	for _, t := range tickets {
		if t.Status == models.TicketStatusOpen {
			open++
		}
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Project: %s (id %d)\nPath: %s\n", p.Name, p.ID, p.Path)
	if p.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", p.Description)
	}
	fmt.Fprintf(&b, "Files: %d\nTickets: %d (%d open)\nQueues: %d\nPrompts: %d\n",
		len(files), len(tickets), open, len(queues), len(prompts))
	return TextResult(b.String()), nil
}

// renderFileTree prints a directory tree from the relative paths.
func renderFileTree(files []*models.File) string {
	paths := make([]string, 0, len(files))
	for _, f := range files {
		paths = append(paths, f.Path)
	}
	sort.Strings(paths)
	var b strings.Builder
	var lastDirs []string
	for _, p := range paths {
		parts := strings.Split(p, "/")
		dirs := parts[:len(parts)-1]
		common := 0
		for common < len(dirs) && common < len(lastDirs) && dirs[common] == lastDirs[common] {
			common++
		}
		for i := common; i < len(dirs); i++ {
			fmt.Fprintf(&b, "%s%s/\n", strings.Repeat("  ", i), dirs[i])
		}
		fmt.Fprintf(&b, "%s%s\n", strings.Repeat("  ", len(dirs)), parts[len(parts)-1])
		lastDirs = dirs
	}
	return b.String()
}

// sliceLines returns lines [start, end] 1-based; end 0 means EOF.
func sliceLines(content string, start, end int) string {
	lines := strings.Split(content, "\n")
	if start < 1 {
		start = 1
	}
	if end <= 0 || end > len(lines) {
		end = len(lines)
	}
	if start > len(lines) {
		return ""
	}
	return strings.Join(lines[start-1:end], "\n")
}
