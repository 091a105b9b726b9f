package mcp

import (
	"context"
	"fmt"
	"os/exec"
	"sort"
	"strings"
	"sync"

	"github.com/promptliano/promptliano/internal/llm"
)

var aiAssistantActions = []string{
	"optimize_prompt", "get_compact_summary", "get_compact_summary_with_options",
}

func (s *Server) aiAssistantTool() *Tool {
	return &Tool{
		Name:        "ai_assistant",
		Description: "AI-backed helpers: prompt optimization and compact project summaries.",
		Actions:     aiAssistantActions,
		IDFields:    []string{"projectId"},
		LLMBound:    true,
		Handler:     s.handleAIAssistant,
	}
}

func (s *Server) handleAIAssistant(ctx context.Context, args Args) (*ToolResult, error) {
	action, err := args.Action()
	if err != nil {
		return nil, err
	}
	p, err := s.requireProject(ctx, args)
	if err != nil {
		return nil, err
	}
	switch action {
	case "optimize_prompt":
		data, err := args.RequireData()
		if err != nil {
			return nil, err
		}
		prompt, err := data.String("prompt", `"make the login faster"`)
		if err != nil {
			return nil, err
		}
		optimized, err := s.llm.OptimizeUserInput(ctx, p.ID, prompt)
		if err != nil {
			return nil, err
		}
		return TextResult(optimized), nil

	case "get_compact_summary":
		text, err := s.projectSummary(ctx, p.ID, llm.SummaryOptions{})
		if err != nil {
			return nil, err
		}
		return TextResult(text), nil

	case "get_compact_summary_with_options":
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

	default:
		return nil, UnknownActionError("ai_assistant", action, aiAssistantActions)
	}
}

var documentationSearchActions = []string{"search"}

func (s *Server) documentationSearchTool() *Tool {
	return &Tool{
		Name:        "documentation_search",
		Description: "Search markdown documentation files tracked in the project.",
		Actions:     documentationSearchActions,
		IDFields:    []string{"projectId"},
		Handler:     s.handleDocumentationSearch,
	}
}

func (s *Server) handleDocumentationSearch(ctx context.Context, args Args) (*ToolResult, error) {
	action, err := args.Action()
	if err != nil {
		return nil, err
	}
	if action != "search" {
		return nil, UnknownActionError("documentation_search", action, documentationSearchActions)
	}
	p, err := s.requireProject(ctx, args)
	if err != nil {
		return nil, err
	}
	data, err := args.RequireData()
	if err != nil {
		return nil, err
	}
	query, err := data.String("query", `"queue processing"`)
	if err != nil {
		return nil, err
	}
	files, err := s.store.ListFiles(ctx, p.ID)
	if err != nil {
		return nil, NewDomainError(ErrSearchFailed, "documentation search failed: %v", err)
	}
	terms := strings.Fields(strings.ToLower(query))
	type hit struct {
		Path    string `json:"path"`
		Score   int    `json:"score"`
		Snippet string `json:"snippet"`
	}
	var hits []hit
	for _, f := range files {
		if f.Extension != "md" && f.Extension != "markdown" {
			continue
		}
		hay := strings.ToLower(f.Content)
		score, first := 0, -1
		for _, t := range terms {
			if idx := strings.Index(hay, t); idx >= 0 {
				score++
				if first < 0 || idx < first {
					first = idx
				}
			}
		}
		if score == 0 {
			continue
		}
		snippet := f.Content
		if first > 0 {
			start := first - 80
			if start < 0 {
				start = 0
			}
			snippet = snippet[start:]
		}
		if len(snippet) > 240 {
			snippet = snippet[:240]
		}
		hits = append(hits, hit{Path: f.Path, Score: score, Snippet: strings.TrimSpace(snippet)})
	}
	if len(hits) == 0 {
		return nil, NewDomainError(ErrNoSearchResults, "no documentation matches %q", query).
			WithSuggestion("Only markdown files are searched; try broader terms")
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	limit := data.OptionalInt("limit", 10)
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return JSONResult(hits)
}

var websiteDemoRunnerActions = []string{"start", "stop", "status"}

// demoRegistry tracks one demo process per project.
type demoRegistry struct {
	mu    sync.Mutex
	procs map[int64]*exec.Cmd
}

func newDemoRegistry() *demoRegistry {
	return &demoRegistry{procs: make(map[int64]*exec.Cmd)}
}

func (s *Server) websiteDemoRunnerTool() *Tool {
	return &Tool{
		Name:        "website_demo_runner",
		Description: "Start, stop and inspect the project's demo site process.",
		Actions:     websiteDemoRunnerActions,
		IDFields:    []string{"projectId"},
		Handler:     s.handleWebsiteDemoRunner,
	}
}

func (s *Server) handleWebsiteDemoRunner(ctx context.Context, args Args) (*ToolResult, error) {
	action, err := args.Action()
	if err != nil {
		return nil, err
	}
	p, err := s.requireProject(ctx, args)
	if err != nil {
		return nil, err
	}
	switch action {
	case "start":
		data, err := args.RequireData()
		if err != nil {
			return nil, err
		}
		script, err := data.String("script", `"npm run dev"`)
		if err != nil {
			return nil, err
		}
		s.demos.mu.Lock()
		defer s.demos.mu.Unlock()
		if existing, ok := s.demos.procs[p.ID]; ok && existing.ProcessState == nil {
			return nil, NewDomainError(ErrValidationFailed,
				"a demo is already running for project %d (pid %d)", p.ID, existing.Process.Pid)
		}
		parts := strings.Fields(script)
		cmd := exec.Command(parts[0], parts[1:]...)
		cmd.Dir = p.Path
		if err := cmd.Start(); err != nil {
			return nil, NewDomainError(ErrServiceError, "failed to start demo: %v", err)
		}
		go cmd.Wait()
		s.demos.procs[p.ID] = cmd
		return JSONResult(map[string]interface{}{"projectId": p.ID, "pid": cmd.Process.Pid, "script": script})

	case "stop":
		s.demos.mu.Lock()
		defer s.demos.mu.Unlock()
		cmd, ok := s.demos.procs[p.ID]
		if !ok || cmd.ProcessState != nil {
			return nil, NewDomainError(ErrNotFound, "no running demo for project %d", p.ID)
		}
		if err := cmd.Process.Kill(); err != nil {
			return nil, NewDomainError(ErrServiceError, "failed to stop demo: %v", err)
		}
		delete(s.demos.procs, p.ID)
		return TextResult(fmt.Sprintf("Stopped demo for project %d", p.ID)), nil

	case "status":
		s.demos.mu.Lock()
		defer s.demos.mu.Unlock()
		cmd, ok := s.demos.procs[p.ID]
		running := ok && cmd.ProcessState == nil
		out := map[string]interface{}{"projectId": p.ID, "running": running}
		if running {
			out["pid"] = cmd.Process.Pid
		}
		return JSONResult(out)

	default:
		return nil, UnknownActionError("website_demo_runner", action, websiteDemoRunnerActions)
	}
}
