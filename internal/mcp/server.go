package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/kb2mcp/kb2mcp/internal/extract"
	"github.com/kb2mcp/kb2mcp/internal/log"
	"github.com/kb2mcp/kb2mcp/internal/model"
	"github.com/kb2mcp/kb2mcp/internal/protocol"
)

const (
	// A 20 MB document is ~27 MB of base64 inside a single frame, so the
	// scanner needs far more headroom than the bufio default.
	initialScanBufferSize = 1 << 20
	maxScanBufferSize     = 64 << 20

	defaultMaxUploadBytes = 20 << 20
)

// ServerOptions configures the stdio bridge.
type ServerOptions struct {
	Backend model.KnowledgeBase
	Journal model.Journal
	Logger  *log.Logger

	// BackendURL is reported by the status tool; the Backend client holds
	// the live connection.
	BackendURL      string
	MaxUploadBytes  int64
	ProtocolVersion string
	Version         string
}

// Server owns the JSON-RPC frame loop and the tool registry. One instance
// serves one stdio session.
type Server struct {
	kb        model.KnowledgeBase
	journal   model.Journal
	logger    *log.Logger
	extractor *extract.Extractor

	backendURL      string
	maxUploadBytes  int64
	protocolVersion string
	version         string

	tools map[string]toolDefinition

	writeMu sync.Mutex
	closed  bool
}

func NewServer(opts ServerOptions) (*Server, error) {
	if opts.Backend == nil {
		return nil, errors.New("mcp: backend client is required")
	}
	if opts.Logger == nil {
		opts.Logger = log.NewNop()
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = defaultMaxUploadBytes
	}
	if opts.ProtocolVersion == "" {
		opts.ProtocolVersion = protocol.DefaultVersion
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}

	s := &Server{
		kb:              opts.Backend,
		journal:         opts.Journal,
		logger:          opts.Logger,
		extractor:       extract.NewExtractor(opts.Logger),
		backendURL:      opts.BackendURL,
		maxUploadBytes:  opts.MaxUploadBytes,
		protocolVersion: opts.ProtocolVersion,
		version:         opts.Version,
	}
	s.tools = s.buildToolRegistry()
	return s, nil
}

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type rpcResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *rpcError   `json:"error,omitempty"`
}

type rpcError struct {
	Code    int           `json:"code"`
	Message string        `json:"message"`
	Data    *rpcErrorData `json:"data,omitempty"`
}

type rpcErrorData struct {
	Code      string `json:"code"`
	Retryable bool   `json:"retryable"`
}

// Serve reads newline-delimited JSON-RPC frames from r until EOF or ctx
// cancellation, writing exactly one response frame per request to w. w is
// reserved for frames; diagnostics go to the logger. Tool calls run in their
// own goroutines so a slow backend exchange does not stall the frame loop;
// any handler still in flight when Serve returns has its context canceled
// and its response dropped.
func (s *Server) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer func() {
		s.writeMu.Lock()
		s.closed = true
		s.writeMu.Unlock()
	}()

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, initialScanBufferSize), maxScanBufferSize)

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var req rpcRequest
		if err := json.Unmarshal(line, &req); err != nil {
			s.logger.Warn("discarding malformed frame", map[string]any{"error": err.Error()})
			s.writeFrame(w, rpcResponse{
				JSONRPC: protocol.JSONRPCVersion,
				ID:      nil,
				Error:   &rpcError{Code: protocol.RPCCodeParseError, Message: "parse error"},
			})
			continue
		}

		s.dispatch(ctx, w, req)
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read frames: %w", err)
	}
	return nil
}

// dispatch answers protocol methods inline and hands tools/call to a
// goroutine. Notifications never produce a response frame.
func (s *Server) dispatch(ctx context.Context, w io.Writer, req rpcRequest) {
	switch req.Method {
	case protocol.MethodInitialize:
		s.writeResult(w, req.ID, s.initializeResult(req.Params))
	case protocol.MethodPing:
		s.writeResult(w, req.ID, map[string]interface{}{})
	case protocol.MethodToolsList:
		s.writeResult(w, req.ID, s.toolsListResult())
	case protocol.MethodToolsCall:
		go s.handleToolsCall(ctx, w, req)
	default:
		if strings.HasPrefix(req.Method, "notifications/") {
			s.logger.Debug("notification received", map[string]any{"method": req.Method})
			return
		}
		s.writeFrame(w, rpcResponse{
			JSONRPC: protocol.JSONRPCVersion,
			ID:      req.ID,
			Error:   &rpcError{Code: protocol.RPCCodeMethodNotFound, Message: "method not found: " + req.Method},
		})
	}
}

type initializeParams struct {
	ProtocolVersion string `json:"protocolVersion"`
	ClientInfo      struct {
		Name    string `json:"name"`
		Version string `json:"version"`
	} `json:"clientInfo"`
}

// initializeResult negotiates the protocol revision: the client's request is
// echoed when the bridge speaks it, otherwise the configured default wins.
func (s *Server) initializeResult(raw json.RawMessage) map[string]interface{} {
	version := s.protocolVersion
	var params initializeParams
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &params); err != nil {
			s.logger.Warn("unreadable initialize params", map[string]any{"error": err.Error()})
		} else if params.ProtocolVersion != "" {
			for _, supported := range protocol.SupportedVersions {
				if params.ProtocolVersion == supported {
					version = params.ProtocolVersion
					break
				}
			}
		}
	}

	s.logger.Info("session initialized", map[string]any{
		"client":           params.ClientInfo.Name,
		"client_version":   params.ClientInfo.Version,
		"protocol_version": version,
	})

	return map[string]interface{}{
		"protocolVersion": version,
		"capabilities": map[string]interface{}{
			"tools": map[string]interface{}{"listChanged": false},
		},
		"serverInfo": map[string]interface{}{
			"name":    "kb2mcp",
			"version": s.version,
		},
	}
}

func (s *Server) toolsListResult() map[string]interface{} {
	tools := make([]toolDefinition, 0, len(s.tools))
	for _, name := range toolOrder {
		if tool, ok := s.tools[name]; ok {
			tools = append(tools, tool)
		}
	}
	return map[string]interface{}{"tools": tools}
}

// handleToolsCall runs one tool invocation to completion. A panic inside a
// handler becomes an INTERNAL_ERROR tool result rather than killing the
// process.
func (s *Server) handleToolsCall(ctx context.Context, w io.Writer, req rpcRequest) {
	var result toolCallResult
	var rpcErr *rpcError

	func() {
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("tool handler panic", map[string]any{"panic": fmt.Sprint(r)})
				result = newToolErrorResult(toolExecutionError{
					Code:    protocol.ErrorCodeInternal,
					Message: "internal error while handling the call",
				})
				rpcErr = nil
			}
		}()
		result, rpcErr = s.processToolsCall(ctx, req.Params)
	}()

	if rpcErr != nil {
		s.writeFrame(w, rpcResponse{JSONRPC: protocol.JSONRPCVersion, ID: req.ID, Error: rpcErr})
		return
	}
	s.writeResult(w, req.ID, result)
}

func (s *Server) writeResult(w io.Writer, id interface{}, result interface{}) {
	s.writeFrame(w, rpcResponse{JSONRPC: protocol.JSONRPCVersion, ID: id, Result: result})
}

// writeFrame marshals and writes one complete frame under the write mutex,
// so concurrent handlers never interleave bytes on the transport. Frames
// arriving after Serve has returned are dropped.
func (s *Server) writeFrame(w io.Writer, resp rpcResponse) {
	data, err := json.Marshal(resp)
	if err != nil {
		s.logger.Error("marshal response", map[string]any{"error": err.Error()})
		return
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.closed {
		s.logger.Debug("dropping response after transport close", nil)
		return
	}
	if _, err := fmt.Fprintf(w, "%s\n", data); err != nil {
		s.logger.Warn("write frame", map[string]any{"error": err.Error()})
	}
}

// nowRFC3339 is the timestamp format used in submit metadata and status
// output.
func nowRFC3339() string {
	return time.Now().UTC().Format(time.RFC3339)
}
