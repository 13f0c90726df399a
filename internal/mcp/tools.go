package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/kb2mcp/kb2mcp/internal/extract"
	"github.com/kb2mcp/kb2mcp/internal/model"
	"github.com/kb2mcp/kb2mcp/internal/payload"
	"github.com/kb2mcp/kb2mcp/internal/protocol"
)

// toolOrder fixes the listing order for tools/list.
var toolOrder = []string{
	protocol.ToolNameUpload,
	protocol.ToolNameQuery,
	protocol.ToolNameStatus,
}

const (
	defaultMaxResults = 5
	queryMinLength    = 3
	queryMaxLength    = 500
)

var filenamePattern = regexp.MustCompile(`^[A-Za-z0-9._-]+\.(pdf|md)$`)

type toolHandler func(context.Context, map[string]interface{}) (toolCallResult, *toolExecutionError)

type toolDefinition struct {
	Name         string                 `json:"name"`
	Description  string                 `json:"description"`
	InputSchema  map[string]interface{} `json:"inputSchema"`
	OutputSchema map[string]interface{} `json:"outputSchema,omitempty"`
	handler      toolHandler            `json:"-"`
	schema       *argSchema             `json:"-"`
}

type toolsCallParams struct {
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments,omitempty"`
}

type toolCallResult struct {
	Content           []toolContentItem `json:"content"`
	StructuredContent interface{}       `json:"structuredContent,omitempty"`
	IsError           bool              `json:"isError,omitempty"`
}

type toolContentItem struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// toolExecutionError is a tool failure the calling agent should read: it
// renders as an isError result, not a transport error.
type toolExecutionError struct {
	Code      string
	Message   string
	Retryable bool
}

type validationError struct {
	message       string
	canonicalCode string
}

func (e validationError) Error() string { return e.message }

func (s *Server) buildToolRegistry() map[string]toolDefinition {
	uploadSchema := uploadArgSchema()
	querySchema := queryArgSchema()
	statusSchema := statusArgSchema()

	return map[string]toolDefinition{
		protocol.ToolNameUpload: {
			Name:         protocol.ToolNameUpload,
			Description:  "Ingest a base64-encoded PDF or markdown document into the knowledge base.",
			InputSchema:  uploadSchema.jsonSchema(),
			OutputSchema: uploadOutputSchema(),
			handler:      s.handleUploadTool,
			schema:       uploadSchema,
		},
		protocol.ToolNameQuery: {
			Name:         protocol.ToolNameQuery,
			Description:  "Search previously ingested documents and return the most relevant excerpts.",
			InputSchema:  querySchema.jsonSchema(),
			OutputSchema: queryOutputSchema(),
			handler:      s.handleQueryTool,
			schema:       querySchema,
		},
		protocol.ToolNameStatus: {
			Name:         protocol.ToolNameStatus,
			Description:  "Report bridge configuration and upload totals.",
			InputSchema:  statusSchema.jsonSchema(),
			OutputSchema: statusOutputSchema(),
			handler:      s.handleStatusTool,
			schema:       statusSchema,
		},
	}
}

func uploadArgSchema() *argSchema {
	return &argSchema{
		properties: []argProperty{
			{
				name:          "filename",
				typ:           "string",
				description:   "Name of the document, ending in .pdf or .md.",
				pattern:       filenamePattern,
				patternReason: "filename must use only letters, digits, dots, hyphens, or underscores and end in .pdf or .md",
			},
			{
				name:        "content",
				typ:         "string",
				description: "Base64-encoded document bytes (standard alphabet, padded).",
			},
			{
				name:        "contentKind",
				typ:         "string",
				description: "MIME type of the decoded document.",
				enum:        []string{"application/pdf", "text/markdown", "text/x-markdown"},
			},
			{
				name:        "metadata",
				typ:         "object",
				description: "Optional caller metadata stored alongside the document.",
			},
		},
		required: map[string]struct{}{
			"filename":    {},
			"content":     {},
			"contentKind": {},
		},
	}
}

func queryArgSchema() *argSchema {
	return &argSchema{
		properties: []argProperty{
			{
				name:        "query",
				typ:         "string",
				description: "Natural-language question to search for.",
				minLen:      queryMinLength,
				maxLen:      queryMaxLength,
			},
			{
				name:         "maxResults",
				typ:          "integer",
				description:  "Maximum number of excerpts to return.",
				minimum:      intPtr(1),
				maximum:      intPtr(20),
				defaultValue: defaultMaxResults,
			},
			{
				name:         "includeSources",
				typ:          "boolean",
				description:  "Append a source annotation to each excerpt.",
				defaultValue: true,
			},
		},
		required: map[string]struct{}{
			"query": {},
		},
	}
}

func statusArgSchema() *argSchema {
	return &argSchema{required: map[string]struct{}{}}
}

func uploadOutputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"filename":    map[string]interface{}{"type": "string"},
			"contentKind": map[string]interface{}{"type": "string"},
			"words":       map[string]interface{}{"type": "integer"},
			"chunks":      map[string]interface{}{"type": "integer"},
		},
		"required": []string{"filename", "contentKind", "words", "chunks"},
	}
}

func queryOutputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"count": map[string]interface{}{"type": "integer"},
			"results": map[string]interface{}{
				"type": "array",
				"items": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"excerpt": map[string]interface{}{"type": "string"},
						"source":  map[string]interface{}{"type": "string"},
					},
					"required": []string{"excerpt"},
				},
			},
		},
		"required": []string{"count", "results"},
	}
}

func statusOutputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"backendUrl":     map[string]interface{}{"type": "string"},
			"maxUploadBytes": map[string]interface{}{"type": "integer"},
			"uploads":        map[string]interface{}{"type": "integer"},
			"words":          map[string]interface{}{"type": "integer"},
			"chunks":         map[string]interface{}{"type": "integer"},
			"lastUpload":     map[string]interface{}{"type": "string"},
		},
		"required": []string{"backendUrl", "maxUploadBytes", "uploads", "words", "chunks"},
	}
}

// processToolsCall resolves the tool, validates arguments against its
// schema, and runs the handler. Malformed params are a protocol error;
// everything past that point is reported as a tool result so the agent can
// read it.
func (s *Server) processToolsCall(ctx context.Context, rawParams json.RawMessage) (toolCallResult, *rpcError) {
	params, err := parseToolsCallParams(rawParams)
	if err != nil {
		canonicalCode := protocol.ErrorCodeInvalidField
		var vErr validationError
		if errors.As(err, &vErr) && vErr.canonicalCode != "" {
			canonicalCode = vErr.canonicalCode
		}
		return toolCallResult{}, &rpcError{
			Code:    protocol.RPCCodeInvalidParams,
			Message: err.Error(),
			Data: &rpcErrorData{
				Code:      canonicalCode,
				Retryable: false,
			},
		}
	}

	tool, ok := s.tools[params.Name]
	if !ok {
		return newToolErrorResult(toolExecutionError{
			Code:    protocol.ErrorCodeMethodNotFound,
			Message: fmt.Sprintf("unknown tool: %s", params.Name),
		}), nil
	}

	if toolErr := tool.schema.validate(params.Arguments); toolErr != nil {
		s.logger.Debug("rejected tool arguments", map[string]any{
			"tool":  params.Name,
			"code":  toolErr.Code,
			"error": toolErr.Message,
		})
		return newToolErrorResult(*toolErr), nil
	}

	start := time.Now()
	result, toolErr := tool.handler(ctx, params.Arguments)
	outcome := "ok"
	if toolErr != nil {
		outcome = toolErr.Code
	} else if result.IsError {
		outcome = "error"
	}
	s.logger.Info("tool call finished", map[string]any{
		"tool":        params.Name,
		"outcome":     outcome,
		"duration_ms": time.Since(start).Milliseconds(),
	})

	if toolErr != nil {
		return newToolErrorResult(*toolErr), nil
	}
	return result, nil
}

func parseToolsCallParams(raw json.RawMessage) (toolsCallParams, error) {
	if len(raw) == 0 {
		return toolsCallParams{}, validationError{
			message:       "params is required",
			canonicalCode: protocol.ErrorCodeMissingField,
		}
	}

	var params toolsCallParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return toolsCallParams{}, validationError{
			message:       "invalid tools/call params",
			canonicalCode: protocol.ErrorCodeInvalidField,
		}
	}

	params.Name = strings.TrimSpace(params.Name)
	if params.Name == "" {
		return toolsCallParams{}, validationError{
			message:       "tools/call params.name is required",
			canonicalCode: protocol.ErrorCodeMissingField,
		}
	}
	if params.Arguments == nil {
		params.Arguments = map[string]interface{}{}
	}

	return params, nil
}

func newToolErrorResult(toolErr toolExecutionError) toolCallResult {
	text := fmt.Sprintf("ERROR: %s: %s", toolErr.Code, toolErr.Message)
	return toolCallResult{
		IsError: true,
		Content: []toolContentItem{
			{Type: "text", Text: text},
		},
		StructuredContent: map[string]interface{}{
			"error": map[string]interface{}{
				"code":      toolErr.Code,
				"message":   toolErr.Message,
				"retryable": toolErr.Retryable,
			},
		},
	}
}

// handleUploadTool decodes, extracts, and submits one document. Schema
// validation has already checked types and formats, so failures here are
// content-level: bad encoding, oversize payloads, undecodable documents, or
// a backend exchange gone wrong.
func (s *Server) handleUploadTool(ctx context.Context, args map[string]interface{}) (toolCallResult, *toolExecutionError) {
	filename, _, err := parseRequiredString(args, "filename")
	if err != nil {
		return toolCallResult{}, &toolExecutionError{Code: protocol.ErrorCodeInvalidField, Message: err.Error()}
	}
	contentKind, _, err := parseRequiredString(args, "contentKind")
	if err != nil {
		return toolCallResult{}, &toolExecutionError{Code: protocol.ErrorCodeInvalidField, Message: err.Error()}
	}
	metadata, _, err := parseOptionalObject(args, "metadata")
	if err != nil {
		return toolCallResult{}, &toolExecutionError{Code: protocol.ErrorCodeInvalidField, Message: err.Error()}
	}

	// The payload codec owns whitespace and padding policy, so the encoded
	// content is passed through untouched.
	encoded, _ := args["content"].(string)

	kind, ok := extract.KindForContentType(contentKind)
	if !ok {
		return toolCallResult{}, &toolExecutionError{
			Code:    protocol.ErrorCodeInvalidField,
			Message: "contentKind must be application/pdf, text/markdown, or text/x-markdown",
		}
	}

	data, err := payload.Decode(encoded, s.maxUploadBytes)
	if err != nil {
		return toolCallResult{}, s.mapToolError(err)
	}

	doc, err := s.extractor.Extract(data, kind)
	if err != nil {
		return toolCallResult{}, s.mapToolError(err)
	}

	submitMeta := map[string]interface{}{
		"filename":     filename,
		"content_kind": contentKind,
		"words":        doc.Words,
		"uploaded_at":  nowRFC3339(),
	}
	for key, value := range metadata {
		if _, reserved := submitMeta[key]; reserved {
			continue
		}
		submitMeta[key] = value
	}

	receipt, err := s.kb.Submit(ctx, doc.Text, submitMeta)
	if err != nil {
		return toolCallResult{}, s.mapToolError(err)
	}

	if s.journal != nil {
		rec := model.UploadRecord{
			Filename:    filename,
			ContentKind: contentKind,
			Words:       doc.Words,
			Chunks:      receipt.ChunkCount,
			CreatedAt:   time.Now().UTC(),
		}
		if jerr := s.journal.RecordUpload(ctx, rec); jerr != nil {
			// The document is indexed; a journal miss only skews status totals.
			s.logger.Warn("journal write failed", map[string]any{
				"filename": filename,
				"error":    jerr.Error(),
			})
		}
	}

	text := fmt.Sprintf("Ingested '%s': %d words across %d chunks.", filename, doc.Words, receipt.ChunkCount)
	return toolCallResult{
		Content: []toolContentItem{{Type: "text", Text: text}},
		StructuredContent: map[string]interface{}{
			"filename":    filename,
			"contentKind": contentKind,
			"words":       doc.Words,
			"chunks":      receipt.ChunkCount,
		},
	}, nil
}

func (s *Server) handleQueryTool(ctx context.Context, args map[string]interface{}) (toolCallResult, *toolExecutionError) {
	query, _, err := parseRequiredString(args, "query")
	if err != nil {
		return toolCallResult{}, &toolExecutionError{Code: protocol.ErrorCodeInvalidField, Message: err.Error()}
	}
	maxResults, present, err := parseOptionalIntegerWithPresence(args, "maxResults")
	if err != nil {
		return toolCallResult{}, &toolExecutionError{Code: protocol.ErrorCodeInvalidField, Message: err.Error()}
	}
	if !present {
		maxResults = defaultMaxResults
	}
	includeSources, err := parseOptionalBool(args, "includeSources", true)
	if err != nil {
		return toolCallResult{}, &toolExecutionError{Code: protocol.ErrorCodeInvalidField, Message: err.Error()}
	}

	hits, err := s.kb.Query(ctx, query, maxResults)
	if err != nil {
		return toolCallResult{}, s.mapToolError(err)
	}

	if len(hits) == 0 {
		return toolCallResult{
			Content: []toolContentItem{{Type: "text", Text: "No relevant documents found for this query."}},
			StructuredContent: map[string]interface{}{
				"count":   0,
				"results": []interface{}{},
			},
		}, nil
	}

	// The backend is trusted to rank but not to count.
	if len(hits) > maxResults {
		hits = hits[:maxResults]
	}

	var b strings.Builder
	results := make([]map[string]interface{}, 0, len(hits))
	for i, hit := range hits {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "%d. %s", i+1, hit.Text)

		entry := map[string]interface{}{"excerpt": hit.Text}
		if includeSources {
			if name := hit.SourceName(); name != "" {
				fmt.Fprintf(&b, "\n   Source: %s", name)
				entry["source"] = name
			}
		}
		results = append(results, entry)
	}

	return toolCallResult{
		Content: []toolContentItem{{Type: "text", Text: b.String()}},
		StructuredContent: map[string]interface{}{
			"count":   len(hits),
			"results": results,
		},
	}, nil
}

// handleStatusTool reports configuration and journal totals. A missing or
// failing journal degrades to zeros rather than failing the call.
func (s *Server) handleStatusTool(ctx context.Context, _ map[string]interface{}) (toolCallResult, *toolExecutionError) {
	stats := model.JournalStats{}
	if s.journal != nil {
		got, err := s.journal.Stats(ctx)
		if err != nil {
			s.logger.Warn("journal stats failed", map[string]any{"error": err.Error()})
		} else {
			stats = got
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Backend: %s\n", s.backendURL)
	fmt.Fprintf(&b, "Max upload size: %d MB\n", s.maxUploadBytes>>20)
	fmt.Fprintf(&b, "Uploads: %d (%d words, %d chunks)", stats.Uploads, stats.Words, stats.Chunks)
	if !stats.LastUpload.IsZero() {
		fmt.Fprintf(&b, "\nLast upload: %s", stats.LastUpload.UTC().Format(time.RFC3339))
	}

	structured := map[string]interface{}{
		"backendUrl":     s.backendURL,
		"maxUploadBytes": s.maxUploadBytes,
		"uploads":        stats.Uploads,
		"words":          stats.Words,
		"chunks":         stats.Chunks,
	}
	if !stats.LastUpload.IsZero() {
		structured["lastUpload"] = stats.LastUpload.UTC().Format(time.RFC3339)
	}

	return toolCallResult{
		Content:           []toolContentItem{{Type: "text", Text: b.String()}},
		StructuredContent: structured,
	}, nil
}

// mapToolError converts the typed pipeline errors into agent-facing tool
// errors. Anything unrecognized is logged in full and surfaced as a generic
// internal failure.
func (s *Server) mapToolError(err error) *toolExecutionError {
	var sizeErr *model.SizeLimitError
	if errors.As(err, &sizeErr) {
		return &toolExecutionError{
			Code:    model.CodeSizeLimit,
			Message: fmt.Sprintf("decoded payload is %d bytes, limit is %d bytes", sizeErr.Size, sizeErr.Limit),
		}
	}

	var encErr *model.EncodingError
	if errors.As(err, &encErr) {
		return &toolExecutionError{Code: model.CodeEncodingInvalid, Message: encErr.Message}
	}

	var docErr *model.DocumentError
	if errors.As(err, &docErr) {
		return &toolExecutionError{Code: docErr.Code, Message: docErr.Message}
	}

	var backendErr *model.BackendError
	if errors.As(err, &backendErr) {
		return &toolExecutionError{
			Code:      backendErr.Code,
			Message:   backendErr.Message,
			Retryable: backendErr.Retryable,
		}
	}

	s.logger.Error("unexpected tool failure", map[string]any{"error": err.Error()})
	return &toolExecutionError{
		Code:    protocol.ErrorCodeInternal,
		Message: "unexpected failure while handling the call",
	}
}

func assertNoUnknownArguments(args map[string]interface{}, allowed map[string]struct{}) error {
	for key := range args {
		if _, ok := allowed[key]; !ok {
			return fmt.Errorf("unknown argument: %s", key)
		}
	}
	return nil
}

func parseRequiredString(args map[string]interface{}, key string) (string, bool, error) {
	raw, ok := args[key]
	if !ok {
		return "", false, nil
	}
	value, ok := raw.(string)
	if !ok {
		return "", true, fmt.Errorf("%s must be a string", key)
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return "", true, fmt.Errorf("%s must be a non-empty string", key)
	}
	return value, true, nil
}

func parseOptionalBool(args map[string]interface{}, key string, defaultValue bool) (bool, error) {
	raw, ok := args[key]
	if !ok {
		return defaultValue, nil
	}
	v, ok := raw.(bool)
	if !ok {
		return false, fmt.Errorf("%s must be a boolean", key)
	}
	return v, nil
}

func parseOptionalObject(args map[string]interface{}, key string) (map[string]interface{}, bool, error) {
	raw, ok := args[key]
	if !ok {
		return nil, false, nil
	}
	obj, ok := raw.(map[string]interface{})
	if !ok {
		return nil, true, fmt.Errorf("%s must be an object", key)
	}
	return obj, true, nil
}

func parseInteger(value interface{}, field string) (int, error) {
	switch v := value.(type) {
	case float64:
		if math.Trunc(v) != v {
			return 0, fmt.Errorf("%s must be an integer", field)
		}
		if v < math.MinInt || v > math.MaxInt {
			return 0, fmt.Errorf("%s is out of range", field)
		}
		return int(v), nil
	case int:
		return v, nil
	case int64:
		if v < math.MinInt || v > math.MaxInt {
			return 0, fmt.Errorf("%s is out of range", field)
		}
		return int(v), nil
	default:
		return 0, fmt.Errorf("%s must be an integer", field)
	}
}

func parseOptionalIntegerWithPresence(args map[string]interface{}, key string) (int, bool, error) {
	raw, ok := args[key]
	if !ok {
		return 0, false, nil
	}
	v, err := parseInteger(raw, key)
	if err != nil {
		return 0, true, err
	}
	return v, true, nil
}
