package mcp

import (
	"context"
	"fmt"
	"strings"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

var gitManagerActions = []string{
	"status", "log", "branches", "current_branch",
	"create_branch", "switch_branch", "stage_all", "commit",
}

func (s *Server) gitManagerTool() *Tool {
	return &Tool{
		Name:        "git_manager",
		Description: "Inspect and mutate the project's git repository: status, history, branches, staging and commits.",
		Actions:     gitManagerActions,
		IDFields:    []string{"projectId"},
		Handler:     s.handleGitManager,
	}
}

func (s *Server) handleGitManager(ctx context.Context, args Args) (*ToolResult, error) {
	action, err := args.Action()
	if err != nil {
		return nil, err
	}
	p, err := s.requireProject(ctx, args)
	if err != nil {
		return nil, err
	}
	repo, err := git.PlainOpen(p.Path)
	if err != nil {
		return nil, NewDomainError(ErrServiceError,
			"project %d at %s is not a git repository: %v", p.ID, p.Path, err)
	}

	switch action {
	case "status":
		wt, err := repo.Worktree()
		if err != nil {
			return nil, NewDomainError(ErrServiceError, "failed to open worktree: %v", err)
		}
		status, err := wt.Status()
		if err != nil {
			return nil, NewDomainError(ErrServiceError, "git status failed: %v", err)
		}
		if status.IsClean() {
			return TextResult("Working tree clean"), nil
		}
		var b strings.Builder
		for path, st := range status {
			fmt.Fprintf(&b, "%c%c %s\n", st.Staging, st.Worktree, path)
		}
		return TextResult(b.String()), nil

	case "log":
		limit := args.Data().OptionalInt("limit", 20)
		iter, err := repo.Log(&git.LogOptions{})
		if err != nil {
			return nil, NewDomainError(ErrServiceError, "git log failed: %v", err)
		}
		defer iter.Close()
		type entry struct {
			Hash    string `json:"hash"`
			Author  string `json:"author"`
			Date    string `json:"date"`
			Message string `json:"message"`
		}
		var entries []entry
		err = iter.ForEach(func(c *object.Commit) error {
			if len(entries) >= limit {
				return fmt.Errorf("done")
			}
			entries = append(entries, entry{
				Hash:    c.Hash.String()[:12],
				Author:  c.Author.Name,
				Date:    c.Author.When.Format(time.RFC3339),
				Message: firstLine(c.Message),
			})
			return nil
		})
		if err != nil && len(entries) < limit {
			return nil, NewDomainError(ErrServiceError, "git log iteration failed: %v", err)
		}
		return JSONResult(entries)

	case "branches":
		iter, err := repo.Branches()
		if err != nil {
			return nil, NewDomainError(ErrServiceError, "failed to list branches: %v", err)
		}
		var names []string
		_ = iter.ForEach(func(ref *plumbing.Reference) error {
			names = append(names, ref.Name().Short())
			return nil
		})
		return JSONResult(names)

	case "current_branch":
		head, err := repo.Head()
		if err != nil {
			return nil, NewDomainError(ErrServiceError, "failed to resolve HEAD: %v", err)
		}
		return JSONResult(map[string]interface{}{
			"branch": head.Name().Short(),
			"hash":   head.Hash().String(),
		})

	case "create_branch", "switch_branch":
		data, err := args.RequireData()
		if err != nil {
			return nil, err
		}
		name, err := data.String("name", `"feature/login"`)
		if err != nil {
			return nil, err
		}
		wt, err := repo.Worktree()
		if err != nil {
			return nil, NewDomainError(ErrServiceError, "failed to open worktree: %v", err)
		}
		err = wt.Checkout(&git.CheckoutOptions{
			Branch: plumbing.NewBranchReferenceName(name),
			Create: action == "create_branch",
		})
		if err != nil {
			return nil, NewDomainError(ErrServiceError, "git checkout failed: %v", err)
		}
		return JSONResult(map[string]interface{}{"branch": name})

	case "stage_all":
		wt, err := repo.Worktree()
		if err != nil {
			return nil, NewDomainError(ErrServiceError, "failed to open worktree: %v", err)
		}
		if err := wt.AddGlob("."); err != nil {
			return nil, NewDomainError(ErrServiceError, "git add failed: %v", err)
		}
		return TextResult("Staged all changes"), nil

	case "commit":
		data, err := args.RequireData()
		if err != nil {
			return nil, err
		}
		message, err := data.String("message", `"Fix login redirect"`)
		if err != nil {
			return nil, err
		}
		wt, err := repo.Worktree()
		if err != nil {
			return nil, NewDomainError(ErrServiceError, "failed to open worktree: %v", err)
		}
		author := &object.Signature{
			Name:  data.OptionalString("authorName"),
			Email: data.OptionalString("authorEmail"),
			When:  s.clock.Now(),
		}
		if author.Name == "" {
			author.Name = "promptliano"
		}
		if author.Email == "" {
			author.Email = "promptliano@localhost"
		}
		hash, err := wt.Commit(message, &git.CommitOptions{Author: author})
		if err != nil {
			return nil, NewDomainError(ErrServiceError, "git commit failed: %v", err)
		}
		return JSONResult(map[string]interface{}{"hash": hash.String(), "message": message})

	default:
		return nil, UnknownActionError("git_manager", action, gitManagerActions)
	}
}
