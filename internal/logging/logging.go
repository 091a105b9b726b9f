// Package logging builds the zap logger used across promptlianod.
package logging

import (
	"fmt"
	"os"
	"strconv"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/promptliano/promptliano/internal/config"
)

// New creates a logger from config. The MCP_DEBUG environment variable
// forces debug level so every JSON-RPC request and response is logged
// regardless of the configured level.
func New(cfg config.LoggingConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}
	if DebugEnabled() {
		level = zapcore.DebugLevel
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	if cfg.Format == "console" {
		encoder = zapcore.NewConsoleEncoder(encoderCfg)
	} else {
		encoder = zapcore.NewJSONEncoder(encoderCfg)
	}

	// Logs go to stderr: the stdio transport owns stdout.
	core := zapcore.NewCore(encoder, zapcore.Lock(os.Stderr), level)
	logger := zap.New(core, zap.AddCaller())
	return logger.With(zap.String("service", "promptliano-mcp")), nil
}

// DebugEnabled reports whether MCP_DEBUG is set to a truthy value.
func DebugEnabled() bool {
	v := os.Getenv("MCP_DEBUG")
	if v == "" {
		return false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		// Any non-empty, non-boolean value counts as enabled ("yes").
		return true
	}
	return b
}
