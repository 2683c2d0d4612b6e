// Package mcp serves the gateway operations as MCP tools over line delimited
// JSON-RPC 2.0 (the MCP stdio transport).
package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/volkan-m/ssh-mcp-server/internal/log"
	"github.com/volkan-m/ssh-mcp-server/internal/model"
)

// ProtocolVersion is the MCP protocol version implemented by the server.
const ProtocolVersion = "2024-11-05"

// Gateway is the set of operations exposed as tools.
type Gateway interface {
	Execute(ctx context.Context, command string) model.ExecutionResult
	TestConnection(ctx context.Context) model.ExecutionResult
	ListAllowed() model.AllowlistSnapshot
	DescribeConfig() model.ConfigSnapshot
}

// ServerConfig is the configuration of the MCP server.
type ServerConfig struct {
	Gateway Gateway
	Name    string
	Version string
	Logger  log.Logger
}

func (c *ServerConfig) defaults() error {
	if c.Gateway == nil {
		return fmt.Errorf("gateway is required")
	}
	if c.Name == "" {
		c.Name = "sshmcp"
	}
	if c.Version == "" {
		c.Version = "dev"
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "mcp.Server"})
	return nil
}

// Server is an MCP server.
type Server struct {
	gateway Gateway
	name    string
	version string
	logger  log.Logger
}

// NewServer returns a new MCP server.
func NewServer(cfg ServerConfig) (*Server, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Server{
		gateway: cfg.Gateway,
		name:    cfg.Name,
		version: cfg.Version,
		logger:  cfg.Logger,
	}, nil
}

// Serve reads one JSON-RPC message per line from r and writes the responses to
// w. Requests are handled concurrently. It returns when r is exhausted or ctx
// is done, after the in flight requests have answered.
//
// A read blocked on r is not interrupted by ctx, callers that stop the server
// before r is exhausted must close r to release it.
func (s *Server) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	out := &lineWriter{w: w}
	lines := make(chan []byte)
	readErr := make(chan error, 1)

	go func() {
		defer close(lines)
		reader := bufio.NewReader(r)
		for {
			line, err := reader.ReadBytes('\n')
			if len(line) > 0 {
				select {
				case lines <- line:
				case <-ctx.Done():
					return
				}
			}
			if err != nil {
				if !errors.Is(err, io.EOF) {
					readErr <- err
				}
				return
			}
		}
	}()

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-readErr:
					return fmt.Errorf("could not read request: %w", err)
				default:
					s.logger.Debugf("Input closed, stopping MCP server")
					return nil
				}
			}

			line = bytes.TrimSpace(line)
			if len(line) == 0 {
				continue
			}

			var req Request
			if err := json.Unmarshal(line, &req); err != nil {
				out.send(s.logger, errorResponse(nullID, codeParseError, "Parse error", err.Error()))
				continue
			}

			wg.Add(1)
			go func() {
				defer wg.Done()
				resp, ok := s.handle(ctx, req)
				if ok {
					out.send(s.logger, resp)
				}
			}()
		}
	}
}

// handle dispatches a request, it returns false when there is nothing to answer.
func (s *Server) handle(ctx context.Context, req Request) (resp Response, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Errorf("Panic handling %q request: %v", req.Method, r)
			resp, ok = errorResponse(req.ID, codeInternalError, "Internal error", fmt.Sprint(r)), !req.isNotification()
		}
	}()

	if req.JSONRPC != "2.0" || req.Method == "" {
		if req.isNotification() {
			return Response{}, false
		}
		return errorResponse(req.ID, codeInvalidRequest, "Invalid Request", "jsonrpc must be 2.0 and method is required"), true
	}

	if req.isNotification() {
		s.logger.Debugf("Notification received: %s", req.Method)
		return Response{}, false
	}

	switch req.Method {
	case "initialize":
		return resultResponse(req.ID, map[string]any{
			"protocolVersion": ProtocolVersion,
			"capabilities": map[string]any{
				"tools": map[string]any{},
			},
			"serverInfo": map[string]any{
				"name":    s.name,
				"version": s.version,
			},
		}), true

	case "ping":
		return resultResponse(req.ID, map[string]any{}), true

	case "tools/list":
		return resultResponse(req.ID, map[string]any{"tools": tools}), true

	case "tools/call":
		return s.handleToolsCall(ctx, req), true

	default:
		return errorResponse(req.ID, codeMethodNotFound, "Method not found", req.Method), true
	}
}

func (s *Server) handleToolsCall(ctx context.Context, req Request) Response {
	var params struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errorResponse(req.ID, codeInvalidParams, "Invalid params", err.Error())
	}

	logger := s.logger.WithValues(log.Kv{"tool": params.Name})
	logger.Infof("MCP tool call")

	res, err := s.safeCallTool(ctx, params.Name, params.Arguments)
	if err != nil {
		var argsErr errInvalidArgs
		if errors.As(err, &argsErr) {
			logger.Warningf("Invalid tool call: %s", err)
			return errorResponse(req.ID, codeInvalidParams, "Invalid params", err.Error())
		}

		// Returned as a tool result so the client can see it.
		logger.Errorf("Tool failed: %s", err)
		return resultResponse(req.ID, toolResult{
			Content: []textContent{{Type: "text", Text: fmt.Sprintf("ERROR: %s\n", err)}},
			IsError: true,
		})
	}

	logger.Debugf("Tool finished (error: %t)", res.IsError)
	return resultResponse(req.ID, res)
}

// safeCallTool converts tool panics into errors so the server keeps serving.
func (s *Server) safeCallTool(ctx context.Context, name string, args json.RawMessage) (res toolResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("unexpected error: %v", r)
		}
	}()
	return s.callTool(ctx, name, args)
}

func resultResponse(id json.RawMessage, result any) Response {
	return Response{JSONRPC: "2.0", ID: id, Result: result}
}

func errorResponse(id json.RawMessage, code int, message, data string) Response {
	if len(id) == 0 {
		id = nullID
	}
	return Response{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &Error{Code: code, Message: message, Data: data},
	}
}

// lineWriter writes line delimited JSON messages, one at a time.
type lineWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lineWriter) send(logger log.Logger, resp Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		logger.Errorf("Could not marshal response: %s", err)
		return
	}
	data = append(data, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := l.w.Write(data); err != nil {
		logger.Warningf("Could not write response: %s", err)
	}
}
