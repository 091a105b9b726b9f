package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/promptliano/promptliano/internal/config"
)

// HTTPServer serves the JSON-RPC POST endpoint, the SSE event stream
// and the operational endpoints (/health, /metrics).
type HTTPServer struct {
	echo   *echo.Echo
	server *Server
	cfg    config.ServerConfig
	log    *zap.Logger

	inflightLimit int
	inflightMu    sync.Mutex
	inflight      map[string]int
}

// NewHTTPServer wires the routes. Start binds the listener.
func NewHTTPServer(s *Server, cfg config.ServerConfig, inflightLimit int, log *zap.Logger) *HTTPServer {
	h := &HTTPServer{
		echo:          echo.New(),
		server:        s,
		cfg:           cfg,
		log:           log.Named("http"),
		inflightLimit: inflightLimit,
		inflight:      make(map[string]int),
	}
	h.echo.HideBanner = true
	h.echo.HidePort = true
	h.echo.Use(middleware.Recover())
	h.echo.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{"Content-Type", "Mcp-Session-Id"},
	}))

	base := cfg.BasePath
	for _, path := range []string{base, base + "/projects/:projectId"} {
		h.echo.POST(path, h.handlePost)
		h.echo.GET(path, h.handleSSE)
		h.echo.OPTIONS(path, func(c echo.Context) error {
			return c.NoContent(http.StatusNoContent)
		})
	}
	h.echo.GET("/health", h.handleHealth)
	h.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	return h
}

// Start blocks serving HTTP until Shutdown.
func (h *HTTPServer) Start() error {
	addr := fmt.Sprintf(":%d", h.cfg.Port)
	h.log.Info("http transport listening", zap.String("addr", addr), zap.String("base_path", h.cfg.BasePath))
	err := h.echo.Start(addr)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown drains the listener.
func (h *HTTPServer) Shutdown(ctx context.Context) error {
	return h.echo.Shutdown(ctx)
}

func (h *HTTPServer) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":   "ok",
		"sessions": h.server.Sessions().Count(),
	})
}

// acquire reserves an in-flight slot for the session; false means the
// cap is hit.
func (h *HTTPServer) acquire(sessionID string) bool {
	if sessionID == "" {
		return true
	}
	h.inflightMu.Lock()
	defer h.inflightMu.Unlock()
	if h.inflight[sessionID] >= h.inflightLimit {
		return false
	}
	h.inflight[sessionID]++
	return true
}

func (h *HTTPServer) release(sessionID string) {
	if sessionID == "" {
		return
	}
	h.inflightMu.Lock()
	defer h.inflightMu.Unlock()
	if h.inflight[sessionID] <= 1 {
		delete(h.inflight, sessionID)
	} else {
		h.inflight[sessionID]--
	}
}

func (h *HTTPServer) handlePost(c echo.Context) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, 32<<20))
	if err != nil {
		return c.JSON(http.StatusOK, NewErrorResponse(nil, CodeParseError, "failed to read body", err.Error()))
	}

	sessionID := c.Request().Header.Get("Mcp-Session-Id")
	if !h.acquire(sessionID) {
		return c.JSON(http.StatusOK, NewErrorResponse(nil, CodeInternalError, "too many in-flight requests", nil))
	}
	defer h.release(sessionID)

	ctx := c.Request().Context()
	if raw := c.Param("projectId"); raw != "" {
		if pid, perr := strconv.ParseInt(raw, 10, 64); perr == nil {
			ctx = WithPathProject(ctx, pid)
		}
	}

	responses, batch := h.server.HandleData(ctx, body, TransportHTTP, sessionID)

	// Surface the new session id as a header on initialize.
	for _, resp := range responses {
		if init, ok := resp.Result.(*InitializeResult); ok {
			if sid, ok := init.Meta["sessionId"].(string); ok {
				c.Response().Header().Set("Mcp-Session-Id", sid)
			}
		}
	}

	if len(responses) == 0 {
		// All notifications: no response bytes.
		return c.NoContent(http.StatusAccepted)
	}
	if batch {
		return c.JSON(http.StatusOK, responses)
	}
	return c.JSON(http.StatusOK, responses[0])
}

// handleSSE opens the server-sent-events stream. The welcome frame
// mirrors the JSON-RPC envelope so clients can reuse their decoder.
func (h *HTTPServer) handleSSE(c echo.Context) error {
	w := c.Response()
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	welcome := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      "welcome",
		"result": map[string]interface{}{
			"serverInfo": ServerInfo{Name: ServerName, Version: ServerVersion},
			"transport":  "sse",
		},
	}
	frame, err := json.Marshal(welcome)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", frame); err != nil {
		return err
	}
	w.Flush()

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-c.Request().Context().Done():
			return nil
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return nil
			}
			w.Flush()
		}
	}
}
