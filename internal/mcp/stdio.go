package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"io"

	"go.uber.org/zap"
)

// StdioTransport processes newline-framed JSON-RPC messages from a
// reader and writes newline-framed responses. One message is in
// flight at a time; handlers may fan out internally. The loop returns
// on EOF.
type StdioTransport struct {
	server *Server
	in     io.Reader
	out    io.Writer
	log    *zap.Logger

	sessionID string
}

// NewStdioTransport wires the transport over the given streams.
func NewStdioTransport(s *Server, in io.Reader, out io.Writer, log *zap.Logger) *StdioTransport {
	return &StdioTransport{server: s, in: in, out: out, log: log.Named("stdio")}
}

// Run processes messages serially until EOF or context cancellation.
func (t *StdioTransport) Run(ctx context.Context) error {
	scanner := bufio.NewScanner(t.in)
	scanner.Buffer(make([]byte, 0, 64*1024), 32<<20)
	writer := bufio.NewWriter(t.out)

	for scanner.Scan() {
		if ctx.Err() != nil {
			break
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		responses, batch := t.server.HandleData(ctx, line, TransportStdio, t.sessionID)

		// The stdio session is implicit: remember the id from the
		// first initialize so later requests update activity.
		for _, resp := range responses {
			if init, ok := resp.Result.(*InitializeResult); ok {
				if sid, ok := init.Meta["sessionId"].(string); ok {
					t.sessionID = sid
				}
			}
		}

		if len(responses) == 0 {
			continue
		}
		var payload interface{} = responses[0]
		if batch {
			payload = responses
		}
		data, err := json.Marshal(payload)
		if err != nil {
			t.log.Error("failed to marshal response", zap.Error(err))
			continue
		}
		if _, err := writer.Write(data); err != nil {
			return err
		}
		if err := writer.WriteByte('\n'); err != nil {
			return err
		}
		if err := writer.Flush(); err != nil {
			return err
		}
	}

	if t.sessionID != "" {
		t.server.Sessions().Remove(t.sessionID)
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	t.log.Info("stdin closed, shutting down")
	return nil
}
