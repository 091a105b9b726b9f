// Package config provides configuration loading for promptlianod.
//
// Configuration is loaded from a YAML file and overridden by
// environment variables, with hardcoded defaults as the base layer.
package config

import (
	"fmt"
	"time"
)

// Config holds the complete promptlianod configuration.
type Config struct {
	Server   ServerConfig    `koanf:"server"`
	MCP      MCPConfig       `koanf:"mcp"`
	Store    StoreConfig     `koanf:"store"`
	Logging  LoggingConfig   `koanf:"logging"`
	External ExternalConfig  `koanf:"external"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            int           `koanf:"http_port"`
	BasePath        string        `koanf:"base_path"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// MCPConfig holds protocol runtime configuration.
type MCPConfig struct {
	SessionTTLStdio      time.Duration `koanf:"session_ttl_stdio"`
	SessionTTLHTTP       time.Duration `koanf:"session_ttl_http"`
	SessionSweepInterval time.Duration `koanf:"session_sweep_interval"`
	InflightLimit        int           `koanf:"inflight_limit"`
	ToolTimeout          time.Duration `koanf:"tool_timeout"`
	LLMToolTimeout       time.Duration `koanf:"llm_tool_timeout"`
}

// StoreConfig holds persistence configuration.
type StoreConfig struct {
	Path string `koanf:"path"`
}

// LoggingConfig holds logger configuration.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // "json" or "console"
}

// ExternalConfig declares outbound MCP servers proxied per project.
type ExternalConfig struct {
	Servers       []ExternalServer `koanf:"servers"`
	ConnectionCap int              `koanf:"connection_cap"`
}

// ExternalServer is one declared remote MCP server.
type ExternalServer struct {
	ID        string `koanf:"id"`
	Name      string `koanf:"name"`
	URL       string `koanf:"url"`
	ProjectID int64  `koanf:"project_id"`
}

// TelemetryConfig holds OpenTelemetry configuration.
type TelemetryConfig struct {
	Enabled     bool   `koanf:"enabled"`
	Endpoint    string `koanf:"endpoint"`
	ServiceName string `koanf:"service_name"`
}

// applyDefaults fills zero values with production defaults.
func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 3147
	}
	if cfg.Server.BasePath == "" {
		cfg.Server.BasePath = "/mcp"
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}
	if cfg.MCP.SessionTTLStdio == 0 {
		cfg.MCP.SessionTTLStdio = 30 * time.Minute
	}
	if cfg.MCP.SessionTTLHTTP == 0 {
		cfg.MCP.SessionTTLHTTP = 60 * time.Minute
	}
	if cfg.MCP.SessionSweepInterval == 0 {
		cfg.MCP.SessionSweepInterval = 5 * time.Minute
	}
	if cfg.MCP.InflightLimit == 0 {
		cfg.MCP.InflightLimit = 16
	}
	if cfg.MCP.ToolTimeout == 0 {
		cfg.MCP.ToolTimeout = 60 * time.Second
	}
	if cfg.MCP.LLMToolTimeout == 0 {
		cfg.MCP.LLMToolTimeout = 180 * time.Second
	}
	if cfg.Store.Path == "" {
		cfg.Store.Path = "promptliano.db"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.External.ConnectionCap == 0 {
		cfg.External.ConnectionCap = 8
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "promptliano-mcp"
	}
}

// Validate checks configuration consistency.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.http_port out of range: %d", c.Server.Port)
	}
	if c.MCP.InflightLimit < 1 {
		return fmt.Errorf("mcp.inflight_limit must be >= 1, got %d", c.MCP.InflightLimit)
	}
	if c.MCP.ToolTimeout <= 0 || c.MCP.LLMToolTimeout <= 0 {
		return fmt.Errorf("tool timeouts must be positive")
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logging.format must be json or console, got %q", c.Logging.Format)
	}
	for _, s := range c.External.Servers {
		if s.ID == "" || s.URL == "" {
			return fmt.Errorf("external server entries require id and url")
		}
	}
	return nil
}
