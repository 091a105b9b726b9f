package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

type pathProjectKeyType struct{}

var pathProjectKey pathProjectKeyType

// WithPathProject binds a project id taken from the transport path.
func WithPathProject(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, pathProjectKey, id)
}

func pathProjectFrom(ctx context.Context) *int64 {
	if id, ok := ctx.Value(pathProjectKey).(int64); ok {
		return &id
	}
	return nil
}

// HandleData parses a single JSON-RPC message or an array and
// dispatches each element. Returned responses exclude notifications;
// batch reports whether the input was an array so the transport can
// frame the reply the same way.
func (s *Server) HandleData(ctx context.Context, data []byte, transport Transport, sessionID string) (responses []*Response, batch bool) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var elems []json.RawMessage
		if err := json.Unmarshal(trimmed, &elems); err != nil {
			return []*Response{NewErrorResponse(nil, CodeParseError, "parse error", err.Error())}, false
		}
		for _, e := range elems {
			if resp := s.handleSingle(ctx, e, transport, sessionID); resp != nil {
				responses = append(responses, resp)
			}
		}
		return responses, true
	}
	if resp := s.handleSingle(ctx, trimmed, transport, sessionID); resp != nil {
		responses = append(responses, resp)
	}
	return responses, false
}

func (s *Server) handleSingle(ctx context.Context, data []byte, transport Transport, sessionID string) *Response {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return NewErrorResponse(nil, CodeParseError, "parse error", err.Error())
	}
	return s.Dispatch(ctx, &req, transport, sessionID)
}

// Dispatch routes one parsed message. Notifications return nil.
func (s *Server) Dispatch(ctx context.Context, req *Request, transport Transport, sessionID string) (resp *Response) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("handler panicked", zap.String("method", req.Method), zap.Any("panic", r))
			if req.IsNotification() {
				resp = nil
				return
			}
			resp = NewErrorResponse(req.ID, CodeInternalError, "internal error", fmt.Sprint(r))
		}
	}()

	if req.JSONRPC != "2.0" {
		if req.IsNotification() {
			return nil
		}
		return NewErrorResponse(req.ID, CodeInvalidRequest, "invalid request: jsonrpc must be \"2.0\"", nil)
	}

	if sessionID != "" {
		if sess, ok := s.sessions.Touch(sessionID); ok {
			ctx = WithSession(ctx, sess)
		}
	}

	requestsTotal.WithLabelValues(req.Method).Inc()
	if s.log.Core().Enabled(zap.DebugLevel) {
		s.log.Debug("rpc request",
			zap.String("method", req.Method),
			zap.ByteString("id", req.ID),
			zap.Int("params_bytes", len(req.Params)))
	}

	if req.IsNotification() {
		s.handleNotification(req)
		return nil
	}

	result, rpcErr := s.dispatchMethod(ctx, req, transport)
	if rpcErr != nil {
		return NewErrorResponse(req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
	}
	return NewResponse(req.ID, result)
}

func (s *Server) handleNotification(req *Request) {
	switch req.Method {
	case "initialized", "notifications/initialized":
		s.log.Debug("client initialized")
	case "notifications/message":
		s.log.Debug("client message notification")
	default:
		s.log.Debug("dropping unknown notification", zap.String("method", req.Method))
	}
}

func (s *Server) dispatchMethod(ctx context.Context, req *Request, transport Transport) (interface{}, *RPCError) {
	switch req.Method {
	case "initialize":
		return s.handleInitialize(ctx, req.Params, transport)
	case "tools/list":
		return s.handleToolsList(ctx), nil
	case "tools/call":
		return s.handleToolsCall(ctx, req.Params)
	case "resources/list":
		return s.handleResourcesList(ctx), nil
	case "resources/read":
		return s.handleResourcesRead(ctx, req.Params)
	case "prompts/list":
		return s.handlePromptsList(ctx)
	case "prompts/get":
		return s.handlePromptsGet(ctx, req.Params)
	case "logging/setLevel":
		return s.handleSetLevel(req.Params)
	case "ping":
		return map[string]interface{}{}, nil
	default:
		return nil, &RPCError{Code: CodeMethodNotFound, Message: fmt.Sprintf("method not found: %s", req.Method)}
	}
}

func (s *Server) handleInitialize(ctx context.Context, params json.RawMessage, transport Transport) (interface{}, *RPCError) {
	var p InitializeParams
	if len(params) > 0 {
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, &RPCError{Code: CodeInvalidParams, Message: "invalid initialize params", Data: err.Error()}
		}
	}
	sess := s.sessions.Create(transport, pathProjectFrom(ctx), p.Capabilities, p.ClientInfo)
	return &InitializeResult{
		ProtocolVersion: ProtocolVersion,
		Capabilities: map[string]interface{}{
			"tools":     map[string]interface{}{},
			"resources": map[string]interface{}{},
			"prompts":   map[string]interface{}{},
			"logging":   map[string]interface{}{},
		},
		ServerInfo: ServerInfo{Name: ServerName, Version: ServerVersion},
		Meta:       map[string]interface{}{"sessionId": sess.ID},
	}, nil
}

func (s *Server) handleToolsList(ctx context.Context) interface{} {
	tools := s.registry.List()
	if sess := SessionFrom(ctx); sess != nil && sess.ProjectID != nil {
		for _, et := range s.external.ListAllTools(ctx, *sess.ProjectID) {
			tools = append(tools, ToolDescriptor{
				Name:        externalPrefix + et.Name,
				Description: et.Description,
				InputSchema: et.InputSchema,
			})
		}
	}
	return map[string]interface{}{"tools": tools}
}

func (s *Server) handleToolsCall(ctx context.Context, params json.RawMessage) (interface{}, *RPCError) {
	var p struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	}
	if err := json.Unmarshal(params, &p); err != nil || p.Name == "" {
		return nil, &RPCError{Code: CodeInvalidParams, Message: "tools/call requires a name"}
	}
	result, rpcErr := s.CallTool(ctx, p.Name, p.Arguments)
	if rpcErr != nil {
		return nil, rpcErr
	}
	return result, nil
}

func (s *Server) handlePromptsList(ctx context.Context) (interface{}, *RPCError) {
	prompts, err := s.store.ListPrompts(ctx)
	if err != nil {
		return nil, &RPCError{Code: CodeInternalError, Message: "failed to list prompts", Data: err.Error()}
	}
	out := make([]PromptDescriptor, 0, len(prompts))
	for _, p := range prompts {
		out = append(out, PromptDescriptor{
			Name:        p.Name,
			Description: firstLine(p.Content),
		})
	}
	return map[string]interface{}{"prompts": out}, nil
}

func (s *Server) handlePromptsGet(ctx context.Context, params json.RawMessage) (interface{}, *RPCError) {
	var p struct {
		Name      string            `json:"name"`
		Arguments map[string]string `json:"arguments"`
	}
	if err := json.Unmarshal(params, &p); err != nil || p.Name == "" {
		return nil, &RPCError{Code: CodeInvalidParams, Message: "prompts/get requires a name"}
	}
	prompts, err := s.store.ListPrompts(ctx)
	if err != nil {
		return nil, &RPCError{Code: CodeInternalError, Message: "failed to list prompts", Data: err.Error()}
	}
	for _, pr := range prompts {
		if pr.Name == p.Name {
			text := expandPrompt(pr.Content, p.Arguments)
			return map[string]interface{}{
				"description": firstLine(pr.Content),
				"messages": []PromptMessage{
					{Role: "user", Content: ContentItem{Type: "text", Text: text}},
				},
			}, nil
		}
	}
	return nil, &RPCError{Code: CodeInvalidParams, Message: fmt.Sprintf("unknown prompt: %s", p.Name)}
}

func (s *Server) handleSetLevel(params json.RawMessage) (interface{}, *RPCError) {
	var p struct {
		Level string `json:"level"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, &RPCError{Code: CodeInvalidParams, Message: "invalid logging/setLevel params"}
	}
	switch p.Level {
	case "error", "warn", "info", "debug":
		s.SetLogLevel(p.Level)
		return map[string]interface{}{}, nil
	default:
		return nil, &RPCError{Code: CodeInvalidParams, Message: fmt.Sprintf("invalid level: %s", p.Level)}
	}
}

func firstLine(s string) string {
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			return s[:i]
		}
	}
	return s
}

// expandPrompt substitutes {{name}} placeholders from arguments.
func expandPrompt(content string, args map[string]string) string {
	out := content
	for k, v := range args {
		out = strings.ReplaceAll(out, "{{"+k+"}}", v)
	}
	return out
}
