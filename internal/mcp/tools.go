package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/volkan-m/ssh-mcp-server/internal/printer"
)

// Tool names.
const (
	ToolExec           = "ssh_exec"
	ToolListAllowed    = "ssh_list_allowed"
	ToolTestConnection = "ssh_test_connection"
	ToolGetConfig      = "ssh_get_config"
)

type toolInfo struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
}

type textContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type toolResult struct {
	Content []textContent `json:"content"`
	IsError bool          `json:"isError,omitempty"`
}

func noArgsSchema() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{},
	}
}

var tools = []toolInfo{
	{
		Name: ToolExec,
		Description: "Executes an allowed command on the remote server via SSH. " +
			"Only commands fully matching one of the allowlist patterns run, " +
			"with timeout protection and SSH key authentication.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"command": map[string]any{
					"type":        "string",
					"description": "Command to execute (must be in allowlist)",
				},
			},
			"required": []string{"command"},
		},
	},
	{
		Name:        ToolListAllowed,
		Description: "Shows the allowlist of permitted command patterns.",
		InputSchema: noArgsSchema(),
	},
	{
		Name:        ToolTestConnection,
		Description: "Tests the SSH connection and returns server information.",
		InputSchema: noArgsSchema(),
	},
	{
		Name:        ToolGetConfig,
		Description: "Shows the current SSH configuration.",
		InputSchema: noArgsSchema(),
	},
}

type execArgs struct {
	Command *string `json:"command"`
}

// errInvalidArgs is returned by tool handlers when the arguments are wrong.
type errInvalidArgs struct{ msg string }

func (e errInvalidArgs) Error() string { return e.msg }

// callTool runs the tool and renders its result as text.
func (s *Server) callTool(ctx context.Context, name string, rawArgs json.RawMessage) (toolResult, error) {
	var buf bytes.Buffer
	p := printer.NewTextPrinter(&buf)
	isError := false

	switch name {
	case ToolExec:
		var args execArgs
		if len(rawArgs) > 0 {
			if err := json.Unmarshal(rawArgs, &args); err != nil {
				return toolResult{}, errInvalidArgs{msg: fmt.Sprintf("invalid arguments: %s", err)}
			}
		}
		if args.Command == nil {
			return toolResult{}, errInvalidArgs{msg: "missing required argument: command"}
		}

		res := s.gateway.Execute(ctx, *args.Command)
		isError = !res.Completed()
		if err := p.PrintResult(res); err != nil {
			return toolResult{}, err
		}

	case ToolListAllowed:
		if err := p.PrintAllowlist(s.gateway.ListAllowed()); err != nil {
			return toolResult{}, err
		}

	case ToolTestConnection:
		res := s.gateway.TestConnection(ctx)
		isError = !res.OK()
		if err := p.PrintConnectionTest(res); err != nil {
			return toolResult{}, err
		}

	case ToolGetConfig:
		if err := p.PrintConfig(s.gateway.DescribeConfig()); err != nil {
			return toolResult{}, err
		}

	default:
		return toolResult{}, errInvalidArgs{msg: fmt.Sprintf("unknown tool: %s", name)}
	}

	return toolResult{
		Content: []textContent{{Type: "text", Text: buf.String()}},
		IsError: isError,
	}, nil
}
