package mcp

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	toolExecutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "promptliano",
		Subsystem: "mcp",
		Name:      "tool_executions_total",
		Help:      "Tool invocations by tool name and outcome.",
	}, []string{"tool", "status"})

	toolDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "promptliano",
		Subsystem: "mcp",
		Name:      "tool_execution_seconds",
		Help:      "Tool invocation latency.",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0, 60.0},
	}, []string{"tool"})

	sessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "promptliano",
		Subsystem: "mcp",
		Name:      "sessions_active",
		Help:      "Live MCP sessions.",
	})

	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "promptliano",
		Subsystem: "mcp",
		Name:      "requests_total",
		Help:      "JSON-RPC requests by method.",
	}, []string{"method"})
)
