package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

var mcpConfigGeneratorActions = []string{"generate", "list_editors"}

// supportedEditors maps editor ids to the config file the generated
// snippet belongs in.
var supportedEditors = map[string]string{
	"claude-desktop": "claude_desktop_config.json",
	"claude-code":    ".mcp.json",
	"cursor":         ".cursor/mcp.json",
	"vscode":         ".vscode/mcp.json",
	"windsurf":       "~/.codeium/windsurf/mcp_config.json",
}

func (s *Server) mcpConfigGeneratorTool() *Tool {
	return &Tool{
		Name:        "mcp_config_generator",
		Description: "Generate MCP client configuration snippets for supported editors.",
		Actions:     mcpConfigGeneratorActions,
		IDFields:    []string{"projectId"},
		Handler:     s.handleMCPConfigGenerator,
	}
}

func (s *Server) handleMCPConfigGenerator(ctx context.Context, args Args) (*ToolResult, error) {
	action, err := args.Action()
	if err != nil {
		return nil, err
	}
	switch action {
	case "list_editors":
		out := make([]map[string]string, 0, len(supportedEditors))
		for id, file := range supportedEditors {
			out = append(out, map[string]string{"editor": id, "configFile": file})
		}
		return JSONResult(out)

	case "generate":
		data, err := args.RequireData()
		if err != nil {
			return nil, err
		}
		editor, err := data.String("editor", `"claude-desktop"`)
		if err != nil {
			return nil, err
		}
		configFile, ok := supportedEditors[editor]
		if !ok {
			editors := make([]string, 0, len(supportedEditors))
			for id := range supportedEditors {
				editors = append(editors, id)
			}
			return nil, NewDomainError(ErrValidationFailed, "unsupported editor %q", editor).
				WithAlternatives(editors)
		}
		serverEntry := map[string]interface{}{
			"command": data.OptionalString("binaryPath"),
			"args":    []string{"--mcp-stdio"},
		}
		if serverEntry["command"] == "" {
			serverEntry["command"] = "promptlianod"
		}
		if transport := data.OptionalString("transport"); transport == "http" {
			serverEntry = map[string]interface{}{
				"url": fmt.Sprintf("http://localhost:%d%s", s.cfg.Server.Port, s.cfg.Server.BasePath),
			}
		}
		snippet := map[string]interface{}{
			"mcpServers": map[string]interface{}{
				"promptliano": serverEntry,
			},
		}
		rendered, merr := json.MarshalIndent(snippet, "", "  ")
		if merr != nil {
			return nil, merr
		}
		return JSONResult(map[string]interface{}{
			"editor":     editor,
			"configFile": configFile,
			"config":     json.RawMessage(rendered),
		})

	default:
		return nil, UnknownActionError("mcp_config_generator", action, mcpConfigGeneratorActions)
	}
}

var mcpCompatibilityCheckerActions = []string{"check"}

func (s *Server) mcpCompatibilityCheckerTool() *Tool {
	return &Tool{
		Name:        "mcp_compatibility_checker",
		Description: "Check a client's protocol version and capabilities against this server.",
		Actions:     mcpCompatibilityCheckerActions,
		Handler:     s.handleMCPCompatibilityChecker,
	}
}

func (s *Server) handleMCPCompatibilityChecker(ctx context.Context, args Args) (*ToolResult, error) {
	action, err := args.Action()
	if err != nil {
		return nil, err
	}
	if action != "check" {
		return nil, UnknownActionError("mcp_compatibility_checker", action, mcpCompatibilityCheckerActions)
	}
	data, err := args.RequireData()
	if err != nil {
		return nil, err
	}
	version, err := data.String("protocolVersion", `"2024-11-05"`)
	if err != nil {
		return nil, err
	}
	report := map[string]interface{}{
		"serverProtocolVersion": ProtocolVersion,
		"clientProtocolVersion": version,
		"compatible":            version == ProtocolVersion,
	}
	var notes []string
	if version != ProtocolVersion {
		notes = append(notes, fmt.Sprintf(
			"client speaks %s, server speaks %s; initialize negotiation may downgrade features", version, ProtocolVersion))
	}
	caps, _ := data["capabilities"].(map[string]interface{})
	for _, required := range []string{"tools"} {
		if _, ok := caps[required]; !ok && caps != nil {
			notes = append(notes, fmt.Sprintf("client does not advertise the %s capability", required))
		}
	}
	report["notes"] = notes
	return JSONResult(report)
}

var mcpSetupValidatorActions = []string{"validate", "validate_file"}

// clientConfigSchema validates the mcpServers config shape this
// server generates and that editors consume.
const clientConfigSchema = `{
  "type": "object",
  "required": ["mcpServers"],
  "properties": {
    "mcpServers": {
      "type": "object",
      "minProperties": 1,
      "additionalProperties": {
        "type": "object",
        "properties": {
          "command": {"type": "string", "minLength": 1},
          "args": {"type": "array", "items": {"type": "string"}},
          "url": {"type": "string", "minLength": 1},
          "env": {"type": "object", "additionalProperties": {"type": "string"}}
        },
        "anyOf": [
          {"required": ["command"]},
          {"required": ["url"]}
        ]
      }
    }
  }
}`

func (s *Server) mcpSetupValidatorTool() *Tool {
	return &Tool{
		Name:        "mcp_setup_validator",
		Description: "Validate MCP client configuration documents against the expected schema.",
		Actions:     mcpSetupValidatorActions,
		Handler:     s.handleMCPSetupValidator,
	}
}

func (s *Server) handleMCPSetupValidator(ctx context.Context, args Args) (*ToolResult, error) {
	action, err := args.Action()
	if err != nil {
		return nil, err
	}
	data, err := args.RequireData()
	if err != nil {
		return nil, err
	}

	var raw string
	switch action {
	case "validate":
		raw, err = data.String("config", `"{\"mcpServers\": {\"promptliano\": {\"command\": \"promptlianod\"}}}"`)
		if err != nil {
			return nil, err
		}
	case "validate_file":
		path, perr := data.String("path", `"/home/user/.mcp.json"`)
		if perr != nil {
			return nil, perr
		}
		content, rerr := os.ReadFile(path)
		if rerr != nil {
			return nil, NewDomainError(ErrFileNotFound, "cannot read config file %s: %v", path, rerr)
		}
		raw = string(content)
	default:
		return nil, UnknownActionError("mcp_setup_validator", action, mcpSetupValidatorActions)
	}

	schema, err := compileClientConfigSchema()
	if err != nil {
		return nil, NewDomainError(ErrInternalError, "schema compilation failed: %v", err)
	}
	instance, err := jsonschema.UnmarshalJSON(strings.NewReader(raw))
	if err != nil {
		return JSONResult(map[string]interface{}{
			"valid": false,
			"error": fmt.Sprintf("invalid JSON: %v", err),
		})
	}
	if err := schema.Validate(instance); err != nil {
		return JSONResult(map[string]interface{}{
			"valid": false,
			"error": err.Error(),
		})
	}
	return JSONResult(map[string]interface{}{"valid": true})
}

func compileClientConfigSchema() (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(clientConfigSchema))
	if err != nil {
		return nil, err
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("mcp-client-config.json", doc); err != nil {
		return nil, err
	}
	return compiler.Compile("mcp-client-config.json")
}
