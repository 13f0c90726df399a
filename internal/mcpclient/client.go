// Package mcpclient drives an MCP bridge subprocess over stdio using
// newline-delimited JSON-RPC frames. It keeps a single request in flight
// and checks each response against the protocol, which makes it suitable
// for conformance probing as well as plain scripting.
package mcpclient

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/kb2mcp/kb2mcp/internal/protocol"
)

// Client spawns and talks to one bridge process. Safe for sequential use;
// calls are serialized internally.
type Client struct {
	command []string
	verbose bool

	mu     sync.Mutex
	nextID int

	proc *process
}

type process struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Reader
	kill   func()
	callMu sync.Mutex
}

// InitializeResult is the server identity returned by the handshake.
type InitializeResult struct {
	ProtocolVersion string
	ServerName      string
	ServerVersion   string
}

// Tool is one entry of the tools/list result.
type Tool struct {
	Name        string
	Description string
	InputSchema map[string]interface{}
}

// ContentItem is one text block of a tool result.
type ContentItem struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// ToolCallResult is the parsed tools/call result.
type ToolCallResult struct {
	Content           []ContentItem
	StructuredContent map[string]interface{}
	IsError           bool
	Elapsed           time.Duration
}

// RPCError is a JSON-RPC error the bridge returned as a response envelope.
type RPCError struct {
	Code    int
	Message string
	Data    map[string]interface{}
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("json-rpc error %d: %s", e.Code, e.Message)
}

type rpcRequest struct {
	JSONRPC string                 `json:"jsonrpc"`
	ID      *int                   `json:"id,omitempty"`
	Method  string                 `json:"method"`
	Params  map[string]interface{} `json:"params,omitempty"`
}

type rpcResponse struct {
	JSONRPC string                 `json:"jsonrpc"`
	ID      interface{}            `json:"id"`
	Result  map[string]interface{} `json:"result"`
	Error   *struct {
		Code    int                    `json:"code"`
		Message string                 `json:"message"`
		Data    map[string]interface{} `json:"data"`
	} `json:"error"`
}

// New builds a client for the given bridge command line, e.g.
// []string{"kb2mcp", "up", "--quiet"}. The process starts lazily.
func New(command []string, verbose bool) *Client {
	return &Client{command: command, verbose: verbose, nextID: 1}
}

// newPipeClient wires a client directly to a frame stream, for tests.
func newPipeClient(stdin io.WriteCloser, stdout io.Reader) *Client {
	return &Client{
		nextID: 1,
		proc: &process{
			stdin:  stdin,
			stdout: bufio.NewReader(stdout),
			kill:   func() {},
		},
	}
}

// Start launches the bridge process. The bridge's stderr passes through so
// its logs stay visible. Calling Start twice is a no-op.
func (c *Client) Start(ctx context.Context) error {
	if c.proc != nil {
		return nil
	}
	if len(c.command) == 0 {
		return fmt.Errorf("bridge command is empty")
	}
	cmd := exec.CommandContext(ctx, c.command[0], c.command[1:]...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", c.command[0], err)
	}
	c.proc = &process{
		cmd:    cmd,
		stdin:  stdin,
		stdout: bufio.NewReaderSize(stdout, 1<<20),
		kill: func() {
			if cmd.Process != nil {
				_ = cmd.Process.Kill()
			}
		},
	}
	return nil
}

// Close shuts the bridge down by closing its stdin and waiting for exit.
func (c *Client) Close() error {
	if c.proc == nil {
		return nil
	}
	proc := c.proc
	c.proc = nil
	if proc.stdin != nil {
		_ = proc.stdin.Close()
	}
	if proc.cmd == nil {
		return nil
	}
	err := proc.cmd.Wait()
	if err == nil {
		return nil
	}
	if exitErr, ok := err.(*exec.ExitError); ok && exitErr.ExitCode() == 0 {
		return nil
	}
	return err
}

// Initialize performs the MCP handshake: initialize, then the
// notifications/initialized notification.
func (c *Client) Initialize(ctx context.Context) (*InitializeResult, error) {
	params := map[string]interface{}{
		"protocolVersion": protocol.DefaultVersion,
		"capabilities":    map[string]interface{}{"tools": map[string]interface{}{}},
		"clientInfo":      map[string]interface{}{"name": "kbprobe", "version": "0.3.0"},
	}
	result, err := c.roundTrip(ctx, protocol.MethodInitialize, params)
	if err != nil {
		return nil, err
	}
	info := &InitializeResult{ProtocolVersion: asString(result["protocolVersion"])}
	if server := asMap(result["serverInfo"]); server != nil {
		info.ServerName = asString(server["name"])
		info.ServerVersion = asString(server["version"])
	}
	if info.ProtocolVersion == "" {
		return nil, fmt.Errorf("initialize result missing protocolVersion")
	}
	if err := c.notify(ctx, protocol.MethodInitialized); err != nil {
		return nil, fmt.Errorf("notifications/initialized failed: %w", err)
	}
	return info, nil
}

// Ping checks liveness; the bridge answers with an empty result.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.roundTrip(ctx, protocol.MethodPing, nil)
	return err
}

// ListTools fetches the tool catalog in advertised order.
func (c *Client) ListTools(ctx context.Context) ([]Tool, error) {
	result, err := c.roundTrip(ctx, protocol.MethodToolsList, map[string]interface{}{})
	if err != nil {
		return nil, err
	}
	items, ok := result["tools"].([]interface{})
	if !ok {
		return nil, fmt.Errorf("tools/list result missing tools array")
	}
	tools := make([]Tool, 0, len(items))
	for _, it := range items {
		m, ok := it.(map[string]interface{})
		if !ok {
			continue
		}
		tools = append(tools, Tool{
			Name:        asString(m["name"]),
			Description: asString(m["description"]),
			InputSchema: asMap(m["inputSchema"]),
		})
	}
	return tools, nil
}

// CallTool invokes one tool and parses the result envelope. Tool failures
// come back as IsError results, not Go errors.
func (c *Client) CallTool(ctx context.Context, name string, args map[string]interface{}) (*ToolCallResult, error) {
	params := map[string]interface{}{
		"name":      name,
		"arguments": args,
	}
	start := time.Now()
	result, err := c.roundTrip(ctx, protocol.MethodToolsCall, params)
	if err != nil {
		return nil, err
	}
	out := &ToolCallResult{
		StructuredContent: asMap(result["structuredContent"]),
		IsError:           asBool(result["isError"]),
		Elapsed:           time.Since(start),
	}
	if items, ok := result["content"].([]interface{}); ok {
		for _, it := range items {
			m, ok := it.(map[string]interface{})
			if !ok {
				continue
			}
			out.Content = append(out.Content, ContentItem{Type: asString(m["type"]), Text: asString(m["text"])})
		}
	}
	return out, nil
}

// roundTrip sends one request and reads its response frame. The response
// id must match the request id; with one request in flight anything else
// is a protocol violation.
func (c *Client) roundTrip(ctx context.Context, method string, params map[string]interface{}) (map[string]interface{}, error) {
	if err := c.Start(ctx); err != nil {
		return nil, err
	}
	c.proc.callMu.Lock()
	defer c.proc.callMu.Unlock()

	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.mu.Unlock()

	frame, err := json.Marshal(rpcRequest{JSONRPC: protocol.JSONRPCVersion, ID: &id, Method: method, Params: params})
	if err != nil {
		return nil, err
	}
	if c.verbose {
		fmt.Fprintf(os.Stderr, "[mcp] -> %s\n", method)
	}
	if _, err := fmt.Fprintf(c.proc.stdin, "%s\n", frame); err != nil {
		return nil, fmt.Errorf("write frame: %w", err)
	}

	type readResult struct {
		line []byte
		err  error
	}
	readCh := make(chan readResult, 1)
	stdout := c.proc.stdout
	go func() {
		line, readErr := stdout.ReadBytes('\n')
		readCh <- readResult{line: line, err: readErr}
	}()

	var line []byte
	select {
	case <-ctx.Done():
		c.proc.kill()
		<-readCh
		return nil, ctx.Err()
	case r := <-readCh:
		if r.err != nil {
			return nil, fmt.Errorf("read frame: %w", r.err)
		}
		line = r.line
	}

	var envelope rpcResponse
	if err := json.Unmarshal(line, &envelope); err != nil {
		return nil, fmt.Errorf("malformed response frame: %w", err)
	}
	if envelope.JSONRPC != protocol.JSONRPCVersion {
		return nil, fmt.Errorf("response jsonrpc = %q, want %q", envelope.JSONRPC, protocol.JSONRPCVersion)
	}
	if got := fmt.Sprintf("%v", envelope.ID); got != fmt.Sprintf("%v", id) {
		return nil, fmt.Errorf("response id %v does not match request id %d", envelope.ID, id)
	}
	if envelope.Error != nil {
		return nil, &RPCError{Code: envelope.Error.Code, Message: envelope.Error.Message, Data: envelope.Error.Data}
	}
	if envelope.Result == nil {
		return nil, fmt.Errorf("response carries neither result nor error")
	}
	if c.verbose {
		fmt.Fprintf(os.Stderr, "[mcp] <- %s\n", method)
	}
	return envelope.Result, nil
}

// notify sends a fire-and-forget notification; no response is read.
func (c *Client) notify(ctx context.Context, method string) error {
	if err := c.Start(ctx); err != nil {
		return err
	}
	c.proc.callMu.Lock()
	defer c.proc.callMu.Unlock()

	frame, err := json.Marshal(rpcRequest{JSONRPC: protocol.JSONRPCVersion, Method: method, Params: map[string]interface{}{}})
	if err != nil {
		return err
	}
	if c.verbose {
		fmt.Fprintf(os.Stderr, "[mcp] -> %s\n", method)
	}
	_, err = fmt.Fprintf(c.proc.stdin, "%s\n", frame)
	return err
}

func asString(v interface{}) string {
	s, _ := v.(string)
	return s
}

func asBool(v interface{}) bool {
	b, _ := v.(bool)
	return b
}

func asMap(v interface{}) map[string]interface{} {
	m, _ := v.(map[string]interface{})
	return m
}
