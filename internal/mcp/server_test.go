package mcp

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/promptliano/promptliano/internal/config"
	"github.com/promptliano/promptliano/internal/llm"
	"github.com/promptliano/promptliano/internal/models"
	"github.com/promptliano/promptliano/internal/queue"
	"github.com/promptliano/promptliano/internal/store"
)

// testClock advances one millisecond per read and supports manual
// jumps for TTL tests.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.UnixMilli(1_700_000_000_000)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Millisecond)
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type seqIDs struct {
	mu   sync.Mutex
	next int64
}

func (g *seqIDs) NextID() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.next++
	return g.next
}

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{Port: 3147, BasePath: "/mcp", ShutdownTimeout: time.Second},
		MCP: config.MCPConfig{
			SessionTTLStdio:      30 * time.Minute,
			SessionTTLHTTP:       60 * time.Minute,
			SessionSweepInterval: 5 * time.Minute,
			InflightLimit:        2,
			ToolTimeout:          5 * time.Second,
			LLMToolTimeout:       10 * time.Second,
		},
	}
}

func newTestServer(t *testing.T) (*Server, *testClock) {
	t.Helper()
	clock := newTestClock()
	st, err := store.NewSQLite(store.Config{Path: ":memory:"}, clock, &seqIDs{})
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	engine := queue.NewEngine(st, clock, zap.NewNop())
	return NewServer(testConfig(), zap.NewNop(), st, engine, llm.NewHeuristic(st), clock), clock
}

// seedProject inserts a project with a couple of files.
func seedProject(t *testing.T, s *Server) *models.Project {
	t.Helper()
	ctx := context.Background()
	p := &models.Project{Name: "demo", Path: "/tmp/demo"}
	require.NoError(t, s.store.CreateProject(ctx, p))
	for _, f := range []*models.File{
		{ProjectID: p.ID, Path: "src/index.ts", Content: "export const x = 1\n// TODO clean up\n"},
		{ProjectID: p.ID, Path: "README.md", Content: "# Demo\n"},
	} {
		require.NoError(t, s.store.CreateFile(ctx, f))
	}
	return p
}

// rpc runs one JSON-RPC message through the router.
func rpc(t *testing.T, s *Server, sessionID, raw string) []*Response {
	t.Helper()
	responses, _ := s.HandleData(context.Background(), []byte(raw), TransportStdio, sessionID)
	return responses
}

// toolText extracts the concatenated text content of a tool result.
func toolText(t *testing.T, result *ToolResult) string {
	t.Helper()
	require.NotNil(t, result)
	var out string
	for _, c := range result.Content {
		out += c.Text
	}
	return out
}

func TestCatalogOrderIsStable(t *testing.T) {
	s, _ := newTestServer(t)
	want := []string{
		"project_manager",
		"prompt_manager",
		"markdown_prompt_manager",
		"ticket_manager",
		"task_manager",
		"queue_manager",
		"queue_processor",
		"agent_manager",
		"command_manager",
		"ai_assistant",
		"git_manager",
		"documentation_search",
		"website_demo_runner",
		"mcp_config_generator",
		"mcp_compatibility_checker",
		"mcp_setup_validator",
		"tab_manager",
	}
	assert.Equal(t, want, s.Registry().Names())
	assert.Equal(t, len(want), s.Registry().Len())
}

func TestToolDescriptorShape(t *testing.T) {
	s, _ := newTestServer(t)
	tool, ok := s.Registry().Get("project_manager")
	require.True(t, ok)

	d := tool.Descriptor()
	assert.Equal(t, "object", d.InputSchema["type"])
	assert.Equal(t, []string{"action"}, d.InputSchema["required"])

	props, ok := d.InputSchema["properties"].(map[string]interface{})
	require.True(t, ok)
	action, ok := props["action"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, projectManagerActions, action["enum"])
	assert.Contains(t, props, "projectId")
	assert.Contains(t, props, "data")

	// Descriptors must round-trip to JSON for tools/list.
	_, err := json.Marshal(d)
	require.NoError(t, err)
}
