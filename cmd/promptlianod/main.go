// promptlianod is the Promptliano MCP server daemon. It serves the
// Model Context Protocol over HTTP/SSE by default and over stdio with
// --mcp-stdio.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/promptliano/promptliano/internal/config"
	"github.com/promptliano/promptliano/internal/ident"
	"github.com/promptliano/promptliano/internal/llm"
	"github.com/promptliano/promptliano/internal/logging"
	"github.com/promptliano/promptliano/internal/mcp"
	"github.com/promptliano/promptliano/internal/queue"
	"github.com/promptliano/promptliano/internal/store"
	"github.com/promptliano/promptliano/internal/telemetry"
)

func main() {
	var (
		configPath string
		mcpStdio   bool
	)

	root := &cobra.Command{
		Use:   "promptlianod",
		Short: "Promptliano MCP server",
		Long: "Serves projects, tickets, tasks, prompts and task queues to AI clients " +
			"over the Model Context Protocol (JSON-RPC 2.0 over stdio or HTTP/SSE).",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), configPath, mcpStdio)
		},
	}
	root.Flags().StringVar(&configPath, "config", "", "path to config file (default ~/.config/promptliano/config.yaml)")
	root.Flags().BoolVar(&mcpStdio, "mcp-stdio", false, "serve MCP over stdio instead of HTTP")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string, mcpStdio bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	shutdownTelemetry, err := telemetry.Setup(ctx, cfg.Telemetry, mcp.ServerVersion)
	if err != nil {
		return fmt.Errorf("setting up telemetry: %w", err)
	}
	defer shutdownTelemetry(context.Background()) //nolint:errcheck

	clock := ident.SystemClock{}
	ids := ident.NewMonotonicIDGenerator()

	st, err := store.NewSQLite(store.Config{Path: cfg.Store.Path}, clock, ids)
	if err != nil {
		return fmt.Errorf("opening store at %s: %w", cfg.Store.Path, err)
	}
	defer st.Close()

	engine := queue.NewEngine(st, clock, logger)
	llmClient := llm.NewHeuristic(st)

	server := mcp.NewServer(cfg, logger, st, engine, llmClient, clock)
	server.Start(ctx)
	defer server.Stop()

	if mcpStdio {
		logger.Info("stdio transport starting")
		transport := mcp.NewStdioTransport(server, os.Stdin, os.Stdout, logger)
		return transport.Run(ctx)
	}

	httpServer := mcp.NewHTTPServer(server, cfg.Server, cfg.MCP.InflightLimit, logger)
	errCh := make(chan error, 1)
	go func() { errCh <- httpServer.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	}
}
