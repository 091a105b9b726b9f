package mcp

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/promptliano/promptliano/internal/models"
)

func TestUnknownMethodReturnsMethodNotFound(t *testing.T) {
	s, _ := newTestServer(t)
	responses := rpc(t, s, "", `{"jsonrpc":"2.0","id":1,"method":"bogus/method"}`)
	require.Len(t, responses, 1)
	require.NotNil(t, responses[0].Error)
	assert.Equal(t, CodeMethodNotFound, responses[0].Error.Code)
	assert.Contains(t, responses[0].Error.Message, "bogus/method")
}

func TestMissingJSONRPCVersionRejected(t *testing.T) {
	s, _ := newTestServer(t)
	responses := rpc(t, s, "", `{"id":1,"method":"ping"}`)
	require.Len(t, responses, 1)
	require.NotNil(t, responses[0].Error)
	assert.Equal(t, CodeInvalidRequest, responses[0].Error.Code)
}

func TestMalformedJSONReturnsParseError(t *testing.T) {
	s, _ := newTestServer(t)
	responses := rpc(t, s, "", `{"jsonrpc":"2.0","id":`)
	require.Len(t, responses, 1)
	require.NotNil(t, responses[0].Error)
	assert.Equal(t, CodeParseError, responses[0].Error.Code)
}

func TestNotificationProducesNoResponse(t *testing.T) {
	s, _ := newTestServer(t)
	responses := rpc(t, s, "", `{"jsonrpc":"2.0","method":"notifications/initialized"}`)
	assert.Empty(t, responses)

	// Unknown notifications are dropped, not answered.
	responses = rpc(t, s, "", `{"jsonrpc":"2.0","method":"notifications/whatever"}`)
	assert.Empty(t, responses)
}

func TestPing(t *testing.T) {
	s, _ := newTestServer(t)
	responses := rpc(t, s, "", `{"jsonrpc":"2.0","id":7,"method":"ping"}`)
	require.Len(t, responses, 1)
	require.Nil(t, responses[0].Error)
	assert.Equal(t, json.RawMessage("7"), responses[0].ID)
	assert.Equal(t, map[string]interface{}{}, responses[0].Result)
}

func TestInitializeCreatesSession(t *testing.T) {
	s, _ := newTestServer(t)
	responses := rpc(t, s, "", `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2024-11-05","clientInfo":{"name":"claude-desktop","version":"0.5"}}}`)
	require.Len(t, responses, 1)
	require.Nil(t, responses[0].Error)

	init, ok := responses[0].Result.(*InitializeResult)
	require.True(t, ok)
	assert.Equal(t, ProtocolVersion, init.ProtocolVersion)
	assert.Equal(t, ServerName, init.ServerInfo.Name)
	assert.Contains(t, init.Capabilities, "tools")
	assert.Contains(t, init.Capabilities, "logging")

	sid, ok := init.Meta["sessionId"].(string)
	require.True(t, ok)
	require.NotEmpty(t, sid)

	sess, ok := s.Sessions().Get(sid)
	require.True(t, ok)
	assert.Equal(t, TransportStdio, sess.Transport)
	assert.Equal(t, "claude-desktop", sess.ClientInfo.Name)
}

func TestInitializeBindsPathProject(t *testing.T) {
	s, _ := newTestServer(t)
	ctx := WithPathProject(context.Background(), 42)
	responses, _ := s.HandleData(ctx, []byte(`{"jsonrpc":"2.0","id":1,"method":"initialize"}`), TransportHTTP, "")
	require.Len(t, responses, 1)
	init := responses[0].Result.(*InitializeResult)
	sess, ok := s.Sessions().Get(init.Meta["sessionId"].(string))
	require.True(t, ok)
	require.NotNil(t, sess.ProjectID)
	assert.Equal(t, int64(42), *sess.ProjectID)
}

func TestBatchRequestKeepsFraming(t *testing.T) {
	s, _ := newTestServer(t)
	body := `[{"jsonrpc":"2.0","id":1,"method":"ping"},{"jsonrpc":"2.0","method":"notifications/initialized"},{"jsonrpc":"2.0","id":2,"method":"nope"}]`
	responses, batch := s.HandleData(context.Background(), []byte(body), TransportStdio, "")
	assert.True(t, batch)
	// The notification contributes no response.
	require.Len(t, responses, 2)
	assert.Nil(t, responses[0].Error)
	require.NotNil(t, responses[1].Error)
	assert.Equal(t, CodeMethodNotFound, responses[1].Error.Code)
}

func TestToolsListReturnsFullCatalog(t *testing.T) {
	s, _ := newTestServer(t)
	responses := rpc(t, s, "", `{"jsonrpc":"2.0","id":1,"method":"tools/list"}`)
	require.Len(t, responses, 1)
	require.Nil(t, responses[0].Error)
	result := responses[0].Result.(map[string]interface{})
	tools := result["tools"].([]ToolDescriptor)
	assert.Len(t, tools, s.Registry().Len())
	assert.Equal(t, "project_manager", tools[0].Name)
}

func TestToolsCallRequiresName(t *testing.T) {
	s, _ := newTestServer(t)
	responses := rpc(t, s, "", `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"arguments":{}}}`)
	require.Len(t, responses, 1)
	require.NotNil(t, responses[0].Error)
	assert.Equal(t, CodeInvalidParams, responses[0].Error.Code)
}

func TestSetLevelValidatesLevel(t *testing.T) {
	s, _ := newTestServer(t)
	responses := rpc(t, s, "", `{"jsonrpc":"2.0","id":1,"method":"logging/setLevel","params":{"level":"verbose"}}`)
	require.Len(t, responses, 1)
	require.NotNil(t, responses[0].Error)
	assert.Equal(t, CodeInvalidParams, responses[0].Error.Code)
	assert.Equal(t, "info", s.LogLevel())

	responses = rpc(t, s, "", `{"jsonrpc":"2.0","id":2,"method":"logging/setLevel","params":{"level":"debug"}}`)
	require.Len(t, responses, 1)
	require.Nil(t, responses[0].Error)
	assert.Equal(t, "debug", s.LogLevel())
}

func TestPromptsGetExpandsPlaceholders(t *testing.T) {
	s, _ := newTestServer(t)
	prompt := &models.Prompt{
		Name:    "code-review",
		Content: "Review the code in {{file}}\nFocus on {{aspect}}.",
	}
	require.NoError(t, s.store.CreatePrompt(context.Background(), prompt))

	responses := rpc(t, s, "", `{"jsonrpc":"2.0","id":1,"method":"prompts/get","params":{"name":"code-review","arguments":{"file":"main.go","aspect":"errors"}}}`)
	require.Len(t, responses, 1)
	require.Nil(t, responses[0].Error)

	result := responses[0].Result.(map[string]interface{})
	messages := result["messages"].([]PromptMessage)
	require.Len(t, messages, 1)
	assert.Equal(t, "user", messages[0].Role)
	assert.Equal(t, "Review the code in main.go\nFocus on errors.", messages[0].Content.Text)
	assert.Equal(t, "Review the code in {{file}}", result["description"])
}

func TestPromptsGetUnknownName(t *testing.T) {
	s, _ := newTestServer(t)
	responses := rpc(t, s, "", `{"jsonrpc":"2.0","id":1,"method":"prompts/get","params":{"name":"nope"}}`)
	require.Len(t, responses, 1)
	require.NotNil(t, responses[0].Error)
	assert.Equal(t, CodeInvalidParams, responses[0].Error.Code)
}

func TestPromptsListDescribesByFirstLine(t *testing.T) {
	s, _ := newTestServer(t)
	require.NoError(t, s.store.CreatePrompt(context.Background(), &models.Prompt{
		Name:    "summarize",
		Content: "Summarize the diff\nwith attention to breaking changes.",
	}))

	responses := rpc(t, s, "", `{"jsonrpc":"2.0","id":1,"method":"prompts/list"}`)
	require.Len(t, responses, 1)
	require.Nil(t, responses[0].Error)
	result := responses[0].Result.(map[string]interface{})
	prompts := result["prompts"].([]PromptDescriptor)
	require.Len(t, prompts, 1)
	assert.Equal(t, "summarize", prompts[0].Name)
	assert.Equal(t, "Summarize the diff", prompts[0].Description)
}
