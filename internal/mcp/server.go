package mcp

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/promptliano/promptliano/internal/config"
	"github.com/promptliano/promptliano/internal/ident"
	"github.com/promptliano/promptliano/internal/llm"
	"github.com/promptliano/promptliano/internal/queue"
	"github.com/promptliano/promptliano/internal/store"
)

// Server bundles the MCP method handlers with their collaborators.
// One Server backs both transports.
type Server struct {
	cfg      *config.Config
	log      *zap.Logger
	store    store.Store
	queue    *queue.Engine
	llm      llm.Client
	clock    ident.Clock
	sessions *SessionManager
	registry *Registry
	external *ExternalManager

	summaries *summaryCache
	tabs      *tabState
	demos     *demoRegistry

	levelMu  sync.RWMutex
	logLevel string
}

// NewServer wires the method handlers, tool catalog and session
// manager.
func NewServer(cfg *config.Config, log *zap.Logger, st store.Store, qe *queue.Engine, lc llm.Client, clock ident.Clock) *Server {
	s := &Server{
		cfg:       cfg,
		log:       log.Named("mcp"),
		store:     st,
		queue:     qe,
		llm:       lc,
		clock:     clock,
		summaries: newSummaryCache(),
		tabs:      newTabState(),
		demos:     newDemoRegistry(),
		logLevel:  "info",
	}
	s.sessions = NewSessionManager(clock, log,
		cfg.MCP.SessionTTLStdio, cfg.MCP.SessionTTLHTTP, cfg.MCP.SessionSweepInterval)
	s.external = NewExternalManager(cfg.External, log)
	s.registry = NewRegistry(
		s.projectManagerTool(),
		s.promptManagerTool(),
		s.markdownPromptManagerTool(),
		s.ticketManagerTool(),
		s.taskManagerTool(),
		s.queueManagerTool(),
		s.queueProcessorTool(),
		s.agentManagerTool(),
		s.commandManagerTool(),
		s.aiAssistantTool(),
		s.gitManagerTool(),
		s.documentationSearchTool(),
		s.websiteDemoRunnerTool(),
		s.mcpConfigGeneratorTool(),
		s.mcpCompatibilityCheckerTool(),
		s.mcpSetupValidatorTool(),
		s.tabManagerTool(),
	)
	return s
}

// Start launches background workers (session sweep, external
// connections).
func (s *Server) Start(ctx context.Context) {
	s.sessions.Start()
	s.external.Start(ctx)
}

// Stop halts background workers.
func (s *Server) Stop() {
	s.sessions.Stop()
	s.external.Stop()
}

// Sessions exposes the session manager to the transports.
func (s *Server) Sessions() *SessionManager { return s.sessions }

// Registry exposes the tool catalog.
func (s *Server) Registry() *Registry { return s.registry }

// SetLogLevel records the client-requested logging level.
func (s *Server) SetLogLevel(level string) {
	s.levelMu.Lock()
	s.logLevel = level
	s.levelMu.Unlock()
}

// LogLevel returns the client-requested logging level.
func (s *Server) LogLevel() string {
	s.levelMu.RLock()
	defer s.levelMu.RUnlock()
	return s.logLevel
}

type sessionKeyType struct{}

var sessionKey sessionKeyType

// WithSession binds the resolved session to the request context.
func WithSession(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, sessionKey, sess)
}

// SessionFrom extracts the bound session, nil when absent.
func SessionFrom(ctx context.Context) *Session {
	s, _ := ctx.Value(sessionKey).(*Session)
	return s
}

// sessionProjectID resolves the active project: explicit projectId in
// the arguments wins, then the session binding.
func (s *Server) sessionProjectID(ctx context.Context, args Args) (int64, bool) {
	if id, ok, err := args.OptionalInt64("projectId"); err == nil && ok {
		return id, true
	}
	if sess := SessionFrom(ctx); sess != nil && sess.ProjectID != nil {
		return *sess.ProjectID, true
	}
	return 0, false
}
