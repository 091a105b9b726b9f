package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/promptliano/promptliano/internal/models"
)

// gitFixture creates a project whose path is a real repository with
// one commit on the default branch.
func gitFixture(t *testing.T, s *Server) *models.Project {
	t.Helper()
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("hello\n"), 0o644))
	wt, err := repo.Worktree()
	require.NoError(t, err)
	_, err = wt.Add("a.txt")
	require.NoError(t, err)
	_, err = wt.Commit("initial import", &git.CommitOptions{
		Author: &object.Signature{Name: "tester", Email: "tester@localhost", When: time.Now()},
	})
	require.NoError(t, err)

	p := &models.Project{Name: "repo", Path: dir}
	require.NoError(t, s.store.CreateProject(context.Background(), p))
	return p
}

func TestGitStatusCleanAfterCommit(t *testing.T) {
	s, _ := newTestServer(t)
	p := gitFixture(t, s)

	result := callTool(t, s, "git_manager", fmt.Sprintf(`{"action":"status","projectId":%d}`, p.ID))
	require.False(t, result.IsError, toolText(t, result))
	assert.Contains(t, toolText(t, result), "clean")
}

func TestGitLogListsCommits(t *testing.T) {
	s, _ := newTestServer(t)
	p := gitFixture(t, s)

	result := callTool(t, s, "git_manager", fmt.Sprintf(`{"action":"log","projectId":%d}`, p.ID))
	require.False(t, result.IsError, toolText(t, result))

	var entries []struct {
		Hash    string `json:"hash"`
		Author  string `json:"author"`
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal([]byte(toolText(t, result)), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "tester", entries[0].Author)
	assert.Equal(t, "initial import", entries[0].Message)
	assert.Len(t, entries[0].Hash, 12)
}

func TestGitBranchLifecycle(t *testing.T) {
	s, _ := newTestServer(t)
	p := gitFixture(t, s)

	result := callTool(t, s, "git_manager",
		fmt.Sprintf(`{"action":"create_branch","projectId":%d,"data":{"name":"feature"}}`, p.ID))
	require.False(t, result.IsError, toolText(t, result))

	result = callTool(t, s, "git_manager", fmt.Sprintf(`{"action":"current_branch","projectId":%d}`, p.ID))
	require.False(t, result.IsError, toolText(t, result))
	var head struct {
		Branch string `json:"branch"`
		Hash   string `json:"hash"`
	}
	require.NoError(t, json.Unmarshal([]byte(toolText(t, result)), &head))
	assert.Equal(t, "feature", head.Branch)
	assert.NotEmpty(t, head.Hash)

	result = callTool(t, s, "git_manager", fmt.Sprintf(`{"action":"branches","projectId":%d}`, p.ID))
	require.False(t, result.IsError, toolText(t, result))
	var branches []string
	require.NoError(t, json.Unmarshal([]byte(toolText(t, result)), &branches))
	assert.Contains(t, branches, "feature")

	result = callTool(t, s, "git_manager",
		fmt.Sprintf(`{"action":"switch_branch","projectId":%d,"data":{"name":"master"}}`, p.ID))
	require.False(t, result.IsError, toolText(t, result))
}

func TestGitCommitRequiresMessage(t *testing.T) {
	s, _ := newTestServer(t)
	p := gitFixture(t, s)

	result := callTool(t, s, "git_manager",
		fmt.Sprintf(`{"action":"commit","projectId":%d,"data":{}}`, p.ID))
	assert.True(t, result.IsError)
	assert.Contains(t, toolText(t, result), `"message"`)
}

func TestGitManagerRejectsNonRepository(t *testing.T) {
	s, _ := newTestServer(t)
	p := &models.Project{Name: "plain", Path: t.TempDir()}
	require.NoError(t, s.store.CreateProject(context.Background(), p))

	result := callTool(t, s, "git_manager", fmt.Sprintf(`{"action":"status","projectId":%d}`, p.ID))
	assert.True(t, result.IsError)
	assert.Contains(t, toolText(t, result), "not a git repository")
}
