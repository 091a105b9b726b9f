package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestStdioRunProcessesLines(t *testing.T) {
	s, _ := newTestServer(t)

	in := strings.NewReader(
		`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"clientInfo":{"name":"cli"}}}` + "\n" +
			`{"jsonrpc":"2.0","method":"notifications/initialized"}` + "\n" +
			`{"jsonrpc":"2.0","id":2,"method":"ping"}` + "\n")
	var out bytes.Buffer

	tr := NewStdioTransport(s, in, &out, zap.NewNop())
	require.NoError(t, tr.Run(context.Background()))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	// The notification produces no output line.
	require.Len(t, lines, 2)

	var init struct {
		ID     int `json:"id"`
		Result struct {
			ServerInfo ServerInfo             `json:"serverInfo"`
			Meta       map[string]interface{} `json:"_meta"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &init))
	assert.Equal(t, 1, init.ID)
	assert.Equal(t, ServerName, init.Result.ServerInfo.Name)
	assert.NotEmpty(t, init.Result.Meta["sessionId"])

	var pong struct {
		ID int `json:"id"`
	}
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &pong))
	assert.Equal(t, 2, pong.ID)

	// EOF tears the implicit session down.
	assert.Equal(t, 0, s.Sessions().Count())
}

func TestStdioSkipsBlankLines(t *testing.T) {
	s, _ := newTestServer(t)
	in := strings.NewReader("\n\n" + `{"jsonrpc":"2.0","id":1,"method":"ping"}` + "\n")
	var out bytes.Buffer

	tr := NewStdioTransport(s, in, &out, zap.NewNop())
	require.NoError(t, tr.Run(context.Background()))
	assert.Equal(t, 1, strings.Count(out.String(), "\n"))
}

func TestStdioBatchStaysOneLine(t *testing.T) {
	s, _ := newTestServer(t)
	in := strings.NewReader(`[{"jsonrpc":"2.0","id":1,"method":"ping"},{"jsonrpc":"2.0","id":2,"method":"ping"}]` + "\n")
	var out bytes.Buffer

	tr := NewStdioTransport(s, in, &out, zap.NewNop())
	require.NoError(t, tr.Run(context.Background()))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 1)
	var arr []json.RawMessage
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &arr))
	assert.Len(t, arr, 2)
}
