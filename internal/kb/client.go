// Package kb is the HTTP client for the knowledge-base service. Submit and
// Query are each a single request/response exchange; neither retries.
package kb

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/kb2mcp/kb2mcp/internal/model"
)

const (
	defaultSubmitTimeout = 30 * time.Second
	defaultQueryTimeout  = 10 * time.Second
)

type Client struct {
	BaseURL       string
	Token         string
	HTTPClient    *http.Client
	SubmitTimeout time.Duration
	QueryTimeout  time.Duration
}

// NewClient builds a client for the service at baseURL. token may be empty;
// when set it is sent as a bearer credential on every request.
func NewClient(baseURL, token string) *Client {
	return &Client{
		BaseURL:       strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		Token:         strings.TrimSpace(token),
		HTTPClient:    &http.Client{},
		SubmitTimeout: defaultSubmitTimeout,
		QueryTimeout:  defaultQueryTimeout,
	}
}

type submitRequest struct {
	Content  string                 `json:"content"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

type submitResponse struct {
	ChunkCount int `json:"chunk_count"`
}

type queryRequest struct {
	Query      string `json:"query"`
	MaxResults int    `json:"max_results"`
}

type hitResponse struct {
	Text     string                 `json:"text"`
	Metadata map[string]interface{} `json:"metadata"`
}

// Submit sends extracted text for indexing and returns the backend's chunk
// count for the document.
func (c *Client) Submit(ctx context.Context, text string, metadata map[string]interface{}) (model.SubmitReceipt, error) {
	timeout := c.SubmitTimeout
	if timeout <= 0 {
		timeout = defaultSubmitTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	body, err := c.post(ctx, "/index", submitRequest{Content: text, Metadata: metadata}, "submission")
	if err != nil {
		return model.SubmitReceipt{}, err
	}

	var parsed submitResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return model.SubmitReceipt{}, &model.BackendError{
			Code:      model.CodeBackendUnavailable,
			Message:   "malformed indexing response from the knowledge base",
			Retryable: false,
			Cause:     err,
		}
	}
	return model.SubmitReceipt{ChunkCount: parsed.ChunkCount}, nil
}

// Query retrieves up to maxResults excerpts for the query text.
func (c *Client) Query(ctx context.Context, query string, maxResults int) ([]model.Hit, error) {
	timeout := c.QueryTimeout
	if timeout <= 0 {
		timeout = defaultQueryTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	body, err := c.post(ctx, "/query", queryRequest{Query: query, MaxResults: maxResults}, "query")
	if err != nil {
		return nil, err
	}

	var parsed []hitResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, &model.BackendError{
			Code:      model.CodeBackendUnavailable,
			Message:   "malformed query response from the knowledge base",
			Retryable: false,
			Cause:     err,
		}
	}

	hits := make([]model.Hit, 0, len(parsed))
	for _, h := range parsed {
		hits = append(hits, model.Hit{Text: h.Text, Metadata: h.Metadata})
	}
	return hits, nil
}

// post performs one JSON exchange and returns the raw response body for a
// 2xx status. op names the operation in error messages.
func (c *Client) post(ctx context.Context, path string, payload interface{}, op string) ([]byte, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, &model.BackendError{
			Code:      model.CodeBackendUnavailable,
			Message:   "failed to encode " + op + " request",
			Retryable: false,
			Cause:     err,
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return nil, &model.BackendError{
			Code:      model.CodeBackendUnavailable,
			Message:   "failed to build " + op + " request",
			Retryable: false,
			Cause:     err,
		}
	}
	req.Header.Set("Content-Type", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, classifyTransportError(err, op)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &model.BackendError{
			Code:       model.CodeBackendUnavailable,
			Message:    "failed to read " + op + " response",
			Retryable:  true,
			StatusCode: resp.StatusCode,
			Cause:      err,
		}
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		message := strings.TrimSpace(string(body))
		if message == "" {
			message = fmt.Sprintf("knowledge base returned status %d for %s", resp.StatusCode, op)
		}
		return nil, &model.BackendError{
			Code:       model.CodeBackendUnavailable,
			Message:    message,
			Retryable:  resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests,
			StatusCode: resp.StatusCode,
		}
	}
	return body, nil
}

// classifyTransportError separates deadline expiry from connection failure
// so the caller can tell a slow backend from an absent one.
func classifyTransportError(err error, op string) *model.BackendError {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &model.BackendError{
			Code:      model.CodeBackendTimeout,
			Message:   op + " timed out waiting for the knowledge base; try again later",
			Retryable: true,
			Cause:     err,
		}
	}
	return &model.BackendError{
		Code:      model.CodeBackendUnavailable,
		Message:   "cannot reach the knowledge base; try again later",
		Retryable: true,
		Cause:     err,
	}
}
