package mcp

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/promptliano/promptliano/internal/config"
)

func newTestHTTPServer(t *testing.T) (*HTTPServer, *Server) {
	t.Helper()
	s, _ := newTestServer(t)
	h := NewHTTPServer(s, config.ServerConfig{Port: 3147, BasePath: "/mcp"}, 2, zap.NewNop())
	return h, s
}

func post(t *testing.T, h *HTTPServer, path, sessionID, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if sessionID != "" {
		req.Header.Set("Mcp-Session-Id", sessionID)
	}
	rec := httptest.NewRecorder()
	h.echo.ServeHTTP(rec, req)
	return rec
}

func TestInitializeSetsSessionHeader(t *testing.T) {
	h, s := newTestHTTPServer(t)

	rec := post(t, h, "/mcp", "", `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"clientInfo":{"name":"cursor"}}}`)
	require.Equal(t, http.StatusOK, rec.Code)

	sid := rec.Header().Get("Mcp-Session-Id")
	require.NotEmpty(t, sid)

	var resp struct {
		Result struct {
			ProtocolVersion string                 `json:"protocolVersion"`
			Meta            map[string]interface{} `json:"_meta"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, ProtocolVersion, resp.Result.ProtocolVersion)
	assert.Equal(t, sid, resp.Result.Meta["sessionId"])

	// The session is live and usable for follow-up calls.
	_, ok := s.Sessions().Get(sid)
	assert.True(t, ok)

	rec = post(t, h, "/mcp", sid, `{"jsonrpc":"2.0","id":2,"method":"tools/list"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var listResp struct {
		Result struct {
			Tools []json.RawMessage `json:"tools"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listResp))
	assert.Len(t, listResp.Result.Tools, s.Registry().Len())
}

func TestPathProjectScopesSession(t *testing.T) {
	h, s := newTestHTTPServer(t)

	rec := post(t, h, "/mcp/projects/42", "", `{"jsonrpc":"2.0","id":1,"method":"initialize"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	sid := rec.Header().Get("Mcp-Session-Id")
	require.NotEmpty(t, sid)
	sess, ok := s.Sessions().Get(sid)
	require.True(t, ok)
	require.NotNil(t, sess.ProjectID)
	assert.Equal(t, int64(42), *sess.ProjectID)
}

func TestNotificationOnlyPostReturnsAccepted(t *testing.T) {
	h, _ := newTestHTTPServer(t)
	rec := post(t, h, "/mcp", "", `{"jsonrpc":"2.0","method":"notifications/initialized"}`)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestBatchPostReturnsArray(t *testing.T) {
	h, _ := newTestHTTPServer(t)
	rec := post(t, h, "/mcp", "", `[{"jsonrpc":"2.0","id":1,"method":"ping"},{"jsonrpc":"2.0","id":2,"method":"ping"}]`)
	require.Equal(t, http.StatusOK, rec.Code)
	var arr []json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &arr))
	assert.Len(t, arr, 2)
}

func TestInflightAccounting(t *testing.T) {
	h, _ := newTestHTTPServer(t)

	// Anonymous requests are never capped.
	assert.True(t, h.acquire(""))

	assert.True(t, h.acquire("sess-1"))
	assert.True(t, h.acquire("sess-1"))
	assert.False(t, h.acquire("sess-1"))

	h.release("sess-1")
	assert.True(t, h.acquire("sess-1"))

	// Other sessions have their own budget.
	assert.True(t, h.acquire("sess-2"))
}

func TestInflightCapReportedAsInternalError(t *testing.T) {
	h, _ := newTestHTTPServer(t)
	require.True(t, h.acquire("busy"))
	require.True(t, h.acquire("busy"))

	rec := post(t, h, "/mcp", "busy", `{"jsonrpc":"2.0","id":1,"method":"ping"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeInternalError, resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "in-flight")
}

func TestHealthEndpoint(t *testing.T) {
	h, s := newTestHTTPServer(t)
	s.Sessions().Create(TransportHTTP, nil, nil, ClientInfo{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	h.echo.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Status   string `json:"status"`
		Sessions int    `json:"sessions"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, 1, body.Sessions)
}
