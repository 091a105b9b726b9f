package mcp

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func callTool(t *testing.T, s *Server, name, args string) *ToolResult {
	t.Helper()
	result, rpcErr := s.CallTool(context.Background(), name, json.RawMessage(args))
	require.Nil(t, rpcErr)
	require.NotNil(t, result)
	return result
}

func TestConfigGeneratorStdio(t *testing.T) {
	s, _ := newTestServer(t)
	result := callTool(t, s, "mcp_config_generator",
		`{"action":"generate","data":{"editor":"claude-desktop"}}`)
	require.False(t, result.IsError)

	var out struct {
		Editor     string `json:"editor"`
		ConfigFile string `json:"configFile"`
		Config     struct {
			MCPServers map[string]struct {
				Command string   `json:"command"`
				Args    []string `json:"args"`
			} `json:"mcpServers"`
		} `json:"config"`
	}
	require.NoError(t, json.Unmarshal([]byte(toolText(t, result)), &out))
	assert.Equal(t, "claude-desktop", out.Editor)
	assert.Equal(t, "claude_desktop_config.json", out.ConfigFile)
	entry, ok := out.Config.MCPServers["promptliano"]
	require.True(t, ok)
	assert.Equal(t, "promptlianod", entry.Command)
	assert.Equal(t, []string{"--mcp-stdio"}, entry.Args)
}

func TestConfigGeneratorHTTPUsesServerAddress(t *testing.T) {
	s, _ := newTestServer(t)
	result := callTool(t, s, "mcp_config_generator",
		`{"action":"generate","data":{"editor":"cursor","transport":"http"}}`)
	require.False(t, result.IsError)
	assert.Contains(t, toolText(t, result), "http://localhost:3147/mcp")
}

func TestConfigGeneratorRejectsUnknownEditor(t *testing.T) {
	s, _ := newTestServer(t)
	result := callTool(t, s, "mcp_config_generator",
		`{"action":"generate","data":{"editor":"emacs"}}`)
	assert.True(t, result.IsError)
	text := toolText(t, result)
	assert.Contains(t, text, "VALIDATION_FAILED")
	assert.Contains(t, text, "Available alternatives:")
}

func TestCompatibilityChecker(t *testing.T) {
	s, _ := newTestServer(t)

	result := callTool(t, s, "mcp_compatibility_checker",
		`{"action":"check","data":{"protocolVersion":"2024-11-05"}}`)
	require.False(t, result.IsError)
	var report struct {
		Compatible bool     `json:"compatible"`
		Notes      []string `json:"notes"`
	}
	require.NoError(t, json.Unmarshal([]byte(toolText(t, result)), &report))
	assert.True(t, report.Compatible)
	assert.Empty(t, report.Notes)

	result = callTool(t, s, "mcp_compatibility_checker",
		`{"action":"check","data":{"protocolVersion":"2023-01-01"}}`)
	require.NoError(t, json.Unmarshal([]byte(toolText(t, result)), &report))
	assert.False(t, report.Compatible)
	assert.NotEmpty(t, report.Notes)
}

func TestSetupValidatorAcceptsGeneratedConfig(t *testing.T) {
	s, _ := newTestServer(t)
	result := callTool(t, s, "mcp_setup_validator",
		`{"action":"validate","data":{"config":"{\"mcpServers\":{\"promptliano\":{\"command\":\"promptlianod\",\"args\":[\"--mcp-stdio\"]}}}"}}`)
	require.False(t, result.IsError)
	var verdict struct {
		Valid bool   `json:"valid"`
		Error string `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(toolText(t, result)), &verdict))
	assert.True(t, verdict.Valid, verdict.Error)
}

func TestSetupValidatorRejectsBadShapes(t *testing.T) {
	s, _ := newTestServer(t)
	var verdict struct {
		Valid bool   `json:"valid"`
		Error string `json:"error"`
	}

	// A server entry with neither command nor url.
	result := callTool(t, s, "mcp_setup_validator",
		`{"action":"validate","data":{"config":"{\"mcpServers\":{\"broken\":{\"env\":{}}}}"}}`)
	require.NoError(t, json.Unmarshal([]byte(toolText(t, result)), &verdict))
	assert.False(t, verdict.Valid)
	assert.NotEmpty(t, verdict.Error)

	// Not JSON at all.
	result = callTool(t, s, "mcp_setup_validator",
		`{"action":"validate","data":{"config":"not json"}}`)
	require.NoError(t, json.Unmarshal([]byte(toolText(t, result)), &verdict))
	assert.False(t, verdict.Valid)
	assert.Contains(t, verdict.Error, "invalid JSON")
}

func TestSetupValidatorReadsFile(t *testing.T) {
	s, _ := newTestServer(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "mcp.json")
	require.NoError(t, os.WriteFile(path,
		[]byte(`{"mcpServers":{"promptliano":{"url":"http://localhost:3147/mcp"}}}`), 0o644))

	result := callTool(t, s, "mcp_setup_validator",
		`{"action":"validate_file","data":{"path":"`+path+`"}}`)
	require.False(t, result.IsError)
	assert.Contains(t, toolText(t, result), `"valid": true`)

	result = callTool(t, s, "mcp_setup_validator",
		`{"action":"validate_file","data":{"path":"`+filepath.Join(dir, "missing.json")+`"}}`)
	assert.True(t, result.IsError)
	assert.Contains(t, toolText(t, result), "FILE_NOT_FOUND")
}

func TestListEditors(t *testing.T) {
	s, _ := newTestServer(t)
	result := callTool(t, s, "mcp_config_generator", `{"action":"list_editors"}`)
	require.False(t, result.IsError)
	var editors []map[string]string
	require.NoError(t, json.Unmarshal([]byte(toolText(t, result)), &editors))
	assert.Len(t, editors, len(supportedEditors))
}
