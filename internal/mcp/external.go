package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/promptliano/promptliano/internal/config"
)

// ExternalTool is a tool advertised by a remote MCP server.
type ExternalTool struct {
	ServerID    string
	Name        string
	Description string
	InputSchema map[string]interface{}
}

// ExternalResource is a resource advertised by a remote MCP server.
type ExternalResource struct {
	ServerID    string
	URI         string
	Name        string
	Description string
	MimeType    string
}

// ExternalManager proxies tools and resources from declared remote
// MCP servers, grouped per project. A dead peer contributes nothing
// and is logged; it never surfaces as a top-level error.
type ExternalManager struct {
	log     *zap.Logger
	clients map[int64][]*externalClient // projectID -> clients
	cap     int

	stop chan struct{}
}

// NewExternalManager builds clients for the declared servers.
func NewExternalManager(cfg config.ExternalConfig, log *zap.Logger) *ExternalManager {
	m := &ExternalManager{
		log:     log.Named("external"),
		clients: make(map[int64][]*externalClient),
		cap:     cfg.ConnectionCap,
		stop:    make(chan struct{}),
	}
	for _, decl := range cfg.Servers {
		if m.total() >= m.cap {
			m.log.Warn("external connection cap reached, skipping server",
				zap.String("id", decl.ID), zap.Int("cap", m.cap))
			break
		}
		c := newExternalClient(decl, m.log)
		m.clients[decl.ProjectID] = append(m.clients[decl.ProjectID], c)
	}
	return m
}

func (m *ExternalManager) total() int {
	n := 0
	for _, cs := range m.clients {
		n += len(cs)
	}
	return n
}

// Start launches the periodic health check.
func (m *ExternalManager) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				for _, cs := range m.clients {
					for _, c := range cs {
						c.healthCheck(ctx)
					}
				}
			case <-m.stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop halts the health check loop.
func (m *ExternalManager) Stop() {
	close(m.stop)
}

// ListAllTools returns the deduplicated union of tools from all live
// servers bound to the project.
func (m *ExternalManager) ListAllTools(ctx context.Context, projectID int64) []ExternalTool {
	var out []ExternalTool
	seen := map[string]bool{}
	for _, c := range m.clients[projectID] {
		tools, err := c.listTools(ctx)
		if err != nil {
			m.log.Warn("external tools/list failed",
				zap.String("server", c.decl.ID), zap.Error(err))
			continue
		}
		for _, t := range tools {
			if seen[t.Name] {
				continue
			}
			seen[t.Name] = true
			t.ServerID = c.decl.ID
			out = append(out, t)
		}
	}
	return out
}

// ListAllResources returns the deduplicated union of resources from
// all live servers bound to the project.
func (m *ExternalManager) ListAllResources(ctx context.Context, projectID int64) []ExternalResource {
	var out []ExternalResource
	seen := map[string]bool{}
	for _, c := range m.clients[projectID] {
		resources, err := c.listResources(ctx)
		if err != nil {
			m.log.Warn("external resources/list failed",
				zap.String("server", c.decl.ID), zap.Error(err))
			continue
		}
		for _, r := range resources {
			if seen[r.URI] {
				continue
			}
			seen[r.URI] = true
			r.ServerID = c.decl.ID
			out = append(out, r)
		}
	}
	return out
}

// ExecuteTool routes a stripped-prefix tool name to whichever bound
// server advertises it.
func (m *ExternalManager) ExecuteTool(ctx context.Context, projectID int64, name string, args json.RawMessage) (*ToolResult, error) {
	for _, c := range m.clients[projectID] {
		tools, err := c.listTools(ctx)
		if err != nil {
			continue
		}
		for _, t := range tools {
			if t.Name == name {
				return c.callTool(ctx, name, args)
			}
		}
	}
	return nil, fmt.Errorf("no external server provides tool %q", name)
}

// ReadResource routes a stripped-prefix URI to whichever bound server
// advertises it.
func (m *ExternalManager) ReadResource(ctx context.Context, projectID int64, uri string) (*ResourceContent, error) {
	for _, c := range m.clients[projectID] {
		resources, err := c.listResources(ctx)
		if err != nil {
			continue
		}
		for _, r := range resources {
			if r.URI == uri {
				return c.readResource(ctx, uri)
			}
		}
	}
	return nil, fmt.Errorf("no external server provides resource %q", uri)
}

// externalClient is one outbound JSON-RPC-over-HTTP peer.
type externalClient struct {
	decl config.ExternalServer
	log  *zap.Logger
	http *http.Client

	mu        sync.Mutex
	sessionID string
	healthy   bool

	nextID atomic.Int64
}

func newExternalClient(decl config.ExternalServer, log *zap.Logger) *externalClient {
	return &externalClient{
		decl:    decl,
		log:     log,
		http:    &http.Client{Timeout: 30 * time.Second},
		healthy: true,
	}
}

// ensureSession performs the initialize handshake lazily.
func (c *externalClient) ensureSession(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sessionID != "" {
		return nil
	}
	var result struct {
		Meta map[string]interface{} `json:"_meta"`
	}
	header, err := c.rpcLocked(ctx, "initialize", map[string]interface{}{
		"protocolVersion": ProtocolVersion,
		"capabilities":    map[string]interface{}{},
		"clientInfo":      map[string]interface{}{"name": ServerName, "version": ServerVersion},
	}, &result)
	if err != nil {
		return err
	}
	if header != "" {
		c.sessionID = header
	} else if sid, ok := result.Meta["sessionId"].(string); ok {
		c.sessionID = sid
	}
	return nil
}

func (c *externalClient) healthCheck(ctx context.Context) {
	var out map[string]interface{}
	err := c.rpc(ctx, "ping", map[string]interface{}{}, &out)
	c.mu.Lock()
	wasHealthy := c.healthy
	c.healthy = err == nil
	if err != nil {
		// Force a fresh handshake on recovery.
		c.sessionID = ""
	}
	c.mu.Unlock()
	if wasHealthy && err != nil {
		c.log.Warn("external server unhealthy",
			zap.String("server", c.decl.ID), zap.Error(err))
	}
}

func (c *externalClient) listTools(ctx context.Context) ([]ExternalTool, error) {
	if err := c.ensureSession(ctx); err != nil {
		return nil, err
	}
	var result struct {
		Tools []struct {
			Name        string                 `json:"name"`
			Description string                 `json:"description"`
			InputSchema map[string]interface{} `json:"inputSchema"`
		} `json:"tools"`
	}
	if err := c.rpc(ctx, "tools/list", nil, &result); err != nil {
		return nil, err
	}
	out := make([]ExternalTool, 0, len(result.Tools))
	for _, t := range result.Tools {
		out = append(out, ExternalTool{Name: t.Name, Description: t.Description, InputSchema: t.InputSchema})
	}
	return out, nil
}

func (c *externalClient) listResources(ctx context.Context) ([]ExternalResource, error) {
	if err := c.ensureSession(ctx); err != nil {
		return nil, err
	}
	var result struct {
		Resources []struct {
			URI         string `json:"uri"`
			Name        string `json:"name"`
			Description string `json:"description"`
			MimeType    string `json:"mimeType"`
		} `json:"resources"`
	}
	if err := c.rpc(ctx, "resources/list", nil, &result); err != nil {
		return nil, err
	}
	out := make([]ExternalResource, 0, len(result.Resources))
	for _, r := range result.Resources {
		out = append(out, ExternalResource{URI: r.URI, Name: r.Name, Description: r.Description, MimeType: r.MimeType})
	}
	return out, nil
}

func (c *externalClient) callTool(ctx context.Context, name string, args json.RawMessage) (*ToolResult, error) {
	if err := c.ensureSession(ctx); err != nil {
		return nil, err
	}
	var result ToolResult
	params := map[string]interface{}{"name": name}
	if len(args) > 0 {
		params["arguments"] = json.RawMessage(args)
	}
	if err := c.rpc(ctx, "tools/call", params, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *externalClient) readResource(ctx context.Context, uri string) (*ResourceContent, error) {
	if err := c.ensureSession(ctx); err != nil {
		return nil, err
	}
	var result struct {
		Contents []ResourceContent `json:"contents"`
	}
	if err := c.rpc(ctx, "resources/read", map[string]interface{}{"uri": uri}, &result); err != nil {
		return nil, err
	}
	if len(result.Contents) == 0 {
		return nil, fmt.Errorf("empty contents for %q", uri)
	}
	return &result.Contents[0], nil
}

func (c *externalClient) rpc(ctx context.Context, method string, params interface{}, out interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := c.rpcLocked(ctx, method, params, out)
	return err
}

// rpcLocked performs one JSON-RPC round trip. Returns the
// Mcp-Session-Id response header, which only initialize sets.
func (c *externalClient) rpcLocked(ctx context.Context, method string, params interface{}, out interface{}) (string, error) {
	req := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      c.nextID.Add(1),
		"method":  method,
	}
	if params != nil {
		req["params"] = params
	}
	body, err := json.Marshal(req)
	if err != nil {
		return "", err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.decl.URL, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.sessionID != "" {
		httpReq.Header.Set("Mcp-Session-Id", c.sessionID)
	}
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return "", err
	}
	var envelope struct {
		Result json.RawMessage `json:"result"`
		Error  *RPCError       `json:"error"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return "", fmt.Errorf("invalid response from %s: %w", c.decl.ID, err)
	}
	if envelope.Error != nil {
		return "", fmt.Errorf("%s returned %d: %s", c.decl.ID, envelope.Error.Code, envelope.Error.Message)
	}
	if out != nil && len(envelope.Result) > 0 {
		if err := json.Unmarshal(envelope.Result, out); err != nil {
			return "", err
		}
	}
	return resp.Header.Get("Mcp-Session-Id"), nil
}
