package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/promptliano/promptliano/internal/models"
)

const externalPrefix = "external_"

var tracer = otel.Tracer("github.com/promptliano/promptliano/internal/mcp")

// CallTool runs one tool invocation end to end: lookup, execution
// tracking, deadline, panic recovery and domain-error formatting.
// A non-nil *RPCError means a wire-level failure (unknown tool name);
// everything else, including handler failures, comes back as a
// ToolResult.
//
// The invoker is single-shot. Retries are the caller's policy.
func (s *Server) CallTool(ctx context.Context, name string, rawArgs json.RawMessage) (*ToolResult, *RPCError) {
	if strings.HasPrefix(name, externalPrefix) {
		return s.callExternalTool(ctx, strings.TrimPrefix(name, externalPrefix), rawArgs), nil
	}

	tool, ok := s.registry.Get(name)
	if !ok {
		return nil, &RPCError{Code: CodeInvalidParams, Message: fmt.Sprintf("unknown tool: %s", name)}
	}

	args, err := DecodeArgs(rawArgs)
	if err != nil {
		return FormatError(err), nil
	}

	exec := &models.ToolExecution{
		ToolName:  name,
		StartedAt: s.clock.Now().UnixMilli(),
		InputSize: len(rawArgs),
	}
	if sess := SessionFrom(ctx); sess != nil {
		exec.SessionID = sess.ID
	}
	if pid, ok := s.sessionProjectID(ctx, args); ok {
		exec.ProjectID = &pid
	}
	if err := s.store.BeginToolExecution(ctx, exec); err != nil {
		s.log.Warn("failed to open tool execution record",
			zap.String("tool", name), zap.Error(err))
	}

	timeout := s.cfg.MCP.ToolTimeout
	if tool.LLMBound {
		timeout = s.cfg.MCP.LLMToolTimeout
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	callCtx, span := tracer.Start(callCtx, "mcp.tools.call",
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(attribute.String("tool", name)))
	defer span.End()

	start := time.Now()
	result, handlerErr := s.runHandler(callCtx, tool, args)
	elapsed := time.Since(start)

	status := models.ExecStatusSuccess
	if handlerErr != nil {
		status = models.ExecStatusError
		// The record keeps the bare message; the code prefix belongs
		// to the formatted tool result only.
		exec.ErrorMessage = AsDomainError(handlerErr).Message
		result = FormatError(handlerErr)
	} else if result == nil {
		result = TextResult("ok")
	}
	exec.Status = status
	exec.EndedAt = s.clock.Now().UnixMilli()
	exec.OutputSize = SizeOf(result)
	if err := s.store.FinishToolExecution(ctx, exec); err != nil {
		s.log.Warn("failed to close tool execution record",
			zap.String("tool", name), zap.Error(err))
	}

	toolExecutions.WithLabelValues(name, status).Inc()
	toolDuration.WithLabelValues(name).Observe(elapsed.Seconds())
	s.log.Debug("tool invocation",
		zap.String("tool", name),
		zap.String("status", status),
		zap.Duration("elapsed", elapsed))
	return result, nil
}

// runHandler executes the handler with panic containment. A panic is
// wrapped as INTERNAL_ERROR so the execution record still closes.
func (s *Server) runHandler(ctx context.Context, tool *Tool, args Args) (result *ToolResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("tool handler panicked",
				zap.String("tool", tool.Name), zap.Any("panic", r))
			result = nil
			err = NewDomainError(ErrInternalError, "tool handler panicked: %v", r)
		}
	}()
	type outcome struct {
		result *ToolResult
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{nil, NewDomainError(ErrInternalError, "tool handler panicked: %v", r)}
			}
		}()
		res, herr := tool.Handler(ctx, args)
		done <- outcome{res, herr}
	}()
	select {
	case o := <-done:
		return o.result, o.err
	case <-ctx.Done():
		if ctx.Err() == context.DeadlineExceeded {
			return nil, NewDomainError(ErrServiceError, "deadline exceeded")
		}
		return nil, NewDomainError(ErrServiceError, "request cancelled")
	}
}

// callExternalTool proxies an invocation to a remote MCP server.
// Remote failures surface as SERVICE_ERROR domain results.
func (s *Server) callExternalTool(ctx context.Context, name string, rawArgs json.RawMessage) *ToolResult {
	pid := int64(0)
	if sess := SessionFrom(ctx); sess != nil && sess.ProjectID != nil {
		pid = *sess.ProjectID
	}
	result, err := s.external.ExecuteTool(ctx, pid, name, rawArgs)
	if err != nil {
		return FormatError(NewDomainError(ErrServiceError,
			"external tool %s failed: %v", name, err))
	}
	return result
}
