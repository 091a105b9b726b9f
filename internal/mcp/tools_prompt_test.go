package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/promptliano/promptliano/internal/models"
)

func TestPromptMarkdownRoundTrip(t *testing.T) {
	s, _ := newTestServer(t)
	ctx := context.Background()

	p := &models.Prompt{Name: "refactor-plan", Content: "Plan the refactor of {{package}}."}
	require.NoError(t, s.store.CreatePrompt(ctx, p))

	result := callTool(t, s, "markdown_prompt_manager", fmt.Sprintf(
		`{"action":"export","promptId":%d}`, p.ID))
	require.False(t, result.IsError)
	markdown := toolText(t, result)
	assert.Contains(t, markdown, "---\nname: refactor-plan\n")
	assert.Contains(t, markdown, "Plan the refactor of {{package}}.")

	// Import the exported document back as a new prompt.
	payload, _ := json.Marshal(map[string]interface{}{
		"action": "import",
		"data":   map[string]string{"markdown": markdown},
	})
	imported, rpcErr := s.CallTool(ctx, "markdown_prompt_manager", payload)
	require.Nil(t, rpcErr)
	require.False(t, imported.IsError, toolText(t, imported))

	var back models.Prompt
	require.NoError(t, json.Unmarshal([]byte(toolText(t, imported)), &back))
	assert.Equal(t, "refactor-plan", back.Name)
	assert.Equal(t, "Plan the refactor of {{package}}.", back.Content)
	assert.NotEqual(t, p.ID, back.ID)
}

func TestPromptMarkdownValidate(t *testing.T) {
	s, _ := newTestServer(t)

	result := callTool(t, s, "markdown_prompt_manager",
		`{"action":"validate","data":{"markdown":"---\nname: good\n---\nBody text"}}`)
	require.False(t, result.IsError)
	var verdict struct {
		Valid bool   `json:"valid"`
		Name  string `json:"name"`
		Error string `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(toolText(t, result)), &verdict))
	assert.True(t, verdict.Valid)
	assert.Equal(t, "good", verdict.Name)

	for _, bad := range []string{
		"no frontmatter at all",
		"---\nname: broken",
		"---\ntitle: wrong key\n---\nBody",
		"---\nname: empty\n---\n",
	} {
		payload, _ := json.Marshal(map[string]interface{}{
			"action": "validate",
			"data":   map[string]string{"markdown": bad},
		})
		result, rpcErr := s.CallTool(context.Background(), "markdown_prompt_manager", payload)
		require.Nil(t, rpcErr)
		require.False(t, result.IsError)
		require.NoError(t, json.Unmarshal([]byte(toolText(t, result)), &verdict))
		assert.False(t, verdict.Valid, "markdown %q", bad)
		assert.NotEmpty(t, verdict.Error)
	}
}

func TestPromptManagerProjectAssociation(t *testing.T) {
	s, _ := newTestServer(t)
	ctx := context.Background()
	p := seedProject(t, s)

	result := callTool(t, s, "prompt_manager",
		`{"action":"create","data":{"name":"greeting","content":"Say hello."}}`)
	require.False(t, result.IsError)
	var prompt models.Prompt
	require.NoError(t, json.Unmarshal([]byte(toolText(t, result)), &prompt))

	callTool(t, s, "prompt_manager", fmt.Sprintf(
		`{"action":"add_to_project","promptId":%d,"projectId":%d}`, prompt.ID, p.ID))

	result = callTool(t, s, "prompt_manager", fmt.Sprintf(
		`{"action":"list_by_project","projectId":%d}`, p.ID))
	require.False(t, result.IsError)
	var prompts []*models.Prompt
	require.NoError(t, json.Unmarshal([]byte(toolText(t, result)), &prompts))
	require.Len(t, prompts, 1)
	assert.Equal(t, "greeting", prompts[0].Name)

	callTool(t, s, "prompt_manager", fmt.Sprintf(
		`{"action":"remove_from_project","promptId":%d,"projectId":%d}`, prompt.ID, p.ID))
	got, err := s.store.ListPromptsByProject(ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestPromptManagerNotFound(t *testing.T) {
	s, _ := newTestServer(t)
	result := callTool(t, s, "prompt_manager", `{"action":"get","promptId":404}`)
	assert.True(t, result.IsError)
	assert.Contains(t, toolText(t, result), "PROMPT_NOT_FOUND")
}
