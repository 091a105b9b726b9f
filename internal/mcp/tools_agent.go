package mcp

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Agents and commands are markdown definition files stored inside the
// project tree.
const (
	agentsDir   = ".promptliano/agents"
	commandsDir = ".promptliano/commands"
)

var agentManagerActions = []string{
	"list", "get", "create", "update", "delete", "suggest_agents",
}

func (s *Server) agentManagerTool() *Tool {
	return &Tool{
		Name:        "agent_manager",
		Description: "Manage agent definition files stored in the project tree.",
		Actions:     agentManagerActions,
		IDFields:    []string{"projectId"},
		Handler: func(ctx context.Context, args Args) (*ToolResult, error) {
			return s.handleDefinitionFiles(ctx, args, "agent_manager", agentsDir, agentManagerActions)
		},
	}
}

var commandManagerActions = []string{
	"list", "get", "create", "update", "delete", "suggest_commands",
}

func (s *Server) commandManagerTool() *Tool {
	return &Tool{
		Name:        "command_manager",
		Description: "Manage slash-command definition files stored in the project tree.",
		Actions:     commandManagerActions,
		IDFields:    []string{"projectId"},
		Handler: func(ctx context.Context, args Args) (*ToolResult, error) {
			return s.handleDefinitionFiles(ctx, args, "command_manager", commandsDir, commandManagerActions)
		},
	}
}

// handleDefinitionFiles backs both agent_manager and command_manager;
// the two tools differ only in directory and suggestion action name.
func (s *Server) handleDefinitionFiles(ctx context.Context, args Args, tool, dir string, actions []string) (*ToolResult, error) {
	action, err := args.Action()
	if err != nil {
		return nil, err
	}
	p, err := s.requireProject(ctx, args)
	if err != nil {
		return nil, err
	}
	root := filepath.Join(p.Path, dir)

	switch action {
	case "list":
		names, err := listDefinitions(root)
		if err != nil {
			return nil, err
		}
		return JSONResult(names)

	case "get":
		name, err := args.Data().String("name", `"code-reviewer"`)
		if err != nil {
			return nil, err
		}
		path, err := definitionPath(root, name)
		if err != nil {
			return nil, err
		}
		content, rerr := os.ReadFile(path)
		if rerr != nil {
			names, _ := listDefinitions(root)
			return nil, NewDomainError(ErrNotFound, "%s definition %q not found", strings.TrimSuffix(tool, "_manager"), name).
				WithAlternatives(names).
				WithSuggestion(fmt.Sprintf("Use the list action of %s to see available definitions", tool))
		}
		return TextResult(string(content)), nil

	case "create", "update":
		data, err := args.RequireData()
		if err != nil {
			return nil, err
		}
		name, err := data.String("name", `"code-reviewer"`)
		if err != nil {
			return nil, err
		}
		content, err := data.String("content", `"# Code Reviewer\nReviews pull requests..."`)
		if err != nil {
			return nil, err
		}
		path, err := definitionPath(root, name)
		if err != nil {
			return nil, err
		}
		if action == "create" {
			if _, serr := os.Stat(path); serr == nil {
				return nil, NewDomainError(ErrValidationFailed, "definition %q already exists", name)
			}
		}
		if err := os.MkdirAll(root, 0o755); err != nil {
			return nil, err
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return nil, err
		}
		return TextResult(fmt.Sprintf("Wrote %s", filepath.Join(dir, name+".md"))), nil

	case "delete":
		name, err := args.Data().String("name", `"code-reviewer"`)
		if err != nil {
			return nil, err
		}
		path, err := definitionPath(root, name)
		if err != nil {
			return nil, err
		}
		if err := os.Remove(path); err != nil {
			return nil, NewDomainError(ErrNotFound, "definition %q not found", name)
		}
		return TextResult(fmt.Sprintf("Deleted %s", name)), nil

	case "suggest_agents", "suggest_commands":
		data, err := args.RequireData()
		if err != nil {
			return nil, err
		}
		prompt, err := data.String("prompt", `"review this change for security issues"`)
		if err != nil {
			return nil, err
		}
		return suggestDefinitions(root, prompt)

	default:
		return nil, UnknownActionError(tool, action, actions)
	}
}

func listDefinitions(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".md") {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), ".md"))
	}
	sort.Strings(names)
	return names, nil
}

// definitionPath rejects names that escape the definitions directory.
func definitionPath(root, name string) (string, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return "", NewDomainError(ErrValidationFailed,
			"invalid definition name %q: must be a bare file name", name)
	}
	return filepath.Join(root, name+".md"), nil
}

// suggestDefinitions ranks definition files by keyword overlap with
// the prompt.
func suggestDefinitions(root, prompt string) (*ToolResult, error) {
	names, err := listDefinitions(root)
	if err != nil {
		return nil, err
	}
	terms := strings.Fields(strings.ToLower(prompt))
	type scored struct {
		Name  string `json:"name"`
		Score int    `json:"score"`
	}
	var ranked []scored
	for _, name := range names {
		content, rerr := os.ReadFile(filepath.Join(root, name+".md"))
		if rerr != nil {
			continue
		}
		hay := strings.ToLower(name + " " + string(content))
		score := 0
		for _, t := range terms {
			if strings.Contains(hay, t) {
				score++
			}
		}
		if score > 0 {
			ranked = append(ranked, scored{Name: name, Score: score})
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Score > ranked[j].Score })
	return JSONResult(ranked)
}

var tabManagerActions = []string{
	"get_active", "set_active", "clear_active", "list",
}

// tabState tracks the client's active tab per project. Purely
// session-facing state, not persisted.
type tabState struct {
	mu   sync.Mutex
	tabs map[int64]string
}

func newTabState() *tabState {
	return &tabState{tabs: make(map[int64]string)}
}

func (s *Server) tabManagerTool() *Tool {
	return &Tool{
		Name:        "tab_manager",
		Description: "Track the client's active tab per project.",
		Actions:     tabManagerActions,
		IDFields:    []string{"projectId"},
		Handler:     s.handleTabManager,
	}
}

func (s *Server) handleTabManager(ctx context.Context, args Args) (*ToolResult, error) {
	action, err := args.Action()
	if err != nil {
		return nil, err
	}
	pid, ok := s.sessionProjectID(ctx, args)
	if !ok && action != "list" {
		return nil, MissingFieldError("projectId", "number", "42")
	}
	switch action {
	case "get_active":
		s.tabs.mu.Lock()
		tab, ok := s.tabs.tabs[pid]
		s.tabs.mu.Unlock()
		if !ok {
			return JSONResult(map[string]interface{}{"projectId": pid, "activeTab": nil})
		}
		return JSONResult(map[string]interface{}{"projectId": pid, "activeTab": tab})

	case "set_active":
		data, err := args.RequireData()
		if err != nil {
			return nil, err
		}
		tab, err := data.String("tab", `"tickets"`)
		if err != nil {
			return nil, err
		}
		s.tabs.mu.Lock()
		s.tabs.tabs[pid] = tab
		s.tabs.mu.Unlock()
		return TextResult(fmt.Sprintf("Active tab for project %d set to %q", pid, tab)), nil

	case "clear_active":
		s.tabs.mu.Lock()
		delete(s.tabs.tabs, pid)
		s.tabs.mu.Unlock()
		return TextResult(fmt.Sprintf("Cleared active tab for project %d", pid)), nil

	case "list":
		s.tabs.mu.Lock()
		out := make(map[string]string, len(s.tabs.tabs))
		for id, tab := range s.tabs.tabs {
			out[fmt.Sprintf("%d", id)] = tab
		}
		s.tabs.mu.Unlock()
		return JSONResult(out)

	default:
		return nil, UnknownActionError("tab_manager", action, tabManagerActions)
	}
}
