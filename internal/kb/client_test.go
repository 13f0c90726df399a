package kb

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kb2mcp/kb2mcp/internal/model"
)

func TestSubmit_SendsContentAndBearer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/index" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Fatalf("unexpected method: %s", r.Method)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Fatalf("unexpected auth header: %q", got)
		}
		if got := r.Header.Get("Content-Type"); got != "application/json" {
			t.Fatalf("unexpected content type: %q", got)
		}

		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode request body: %v", err)
		}
		if body["content"] != "Hello world." {
			t.Fatalf("unexpected content: %v", body["content"])
		}
		metadata, ok := body["metadata"].(map[string]any)
		if !ok || metadata["filename"] != "notes.md" {
			t.Fatalf("unexpected metadata: %v", body["metadata"])
		}

		_ = json.NewEncoder(w).Encode(map[string]any{"chunk_count": 5, "document_id": "d-1"})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "test-token")
	receipt, err := client.Submit(context.Background(), "Hello world.", map[string]interface{}{"filename": "notes.md"})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if receipt.ChunkCount != 5 {
		t.Fatalf("chunk count=%d want 5", receipt.ChunkCount)
	}
}

func TestSubmit_NoBearerWithoutToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "" {
			t.Fatalf("unexpected auth header on credential-less client: %q", got)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"chunk_count": 1})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "")
	if _, err := client.Submit(context.Background(), "text", nil); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
}

func TestSubmit_ServerErrorIsRetryableUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("index shard down"))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "")
	_, err := client.Submit(context.Background(), "text", nil)

	var backendErr *model.BackendError
	if !errors.As(err, &backendErr) {
		t.Fatalf("got %T, want *model.BackendError", err)
	}
	if backendErr.Code != model.CodeBackendUnavailable {
		t.Fatalf("code=%s want %s", backendErr.Code, model.CodeBackendUnavailable)
	}
	if !backendErr.Retryable {
		t.Fatal("5xx should be retryable")
	}
	if backendErr.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status=%d", backendErr.StatusCode)
	}
}

func TestSubmit_ClientErrorIsNotRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "")
	_, err := client.Submit(context.Background(), "text", nil)

	var backendErr *model.BackendError
	if !errors.As(err, &backendErr) {
		t.Fatalf("got %T, want *model.BackendError", err)
	}
	if backendErr.Retryable {
		t.Fatal("4xx should not be retryable")
	}
}

func TestSubmit_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close()

	client := NewClient(srv.URL, "")
	_, err := client.Submit(context.Background(), "text", nil)

	var backendErr *model.BackendError
	if !errors.As(err, &backendErr) || backendErr.Code != model.CodeBackendUnavailable {
		t.Fatalf("got %v, want BackendError %s", err, model.CodeBackendUnavailable)
	}
}

func TestQuery_PassesMaxResultsAndMapsHits(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/query" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode request body: %v", err)
		}
		if body["query"] != "climate" {
			t.Fatalf("unexpected query: %v", body["query"])
		}
		if body["max_results"] != float64(2) {
			t.Fatalf("unexpected max_results: %v", body["max_results"])
		}

		_ = json.NewEncoder(w).Encode([]map[string]any{
			{"text": "warming trends", "metadata": map[string]any{"filename": "report.pdf"}},
			{"text": "sea levels"},
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "")
	hits, err := client.Query(context.Background(), "climate", 2)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("got %d hits, want 2", len(hits))
	}
	if hits[0].Text != "warming trends" {
		t.Fatalf("hit[0]=%q", hits[0].Text)
	}
	if hits[0].SourceName() != "report.pdf" {
		t.Fatalf("hit[0] source=%q", hits[0].SourceName())
	}
	if hits[1].Metadata != nil {
		t.Fatalf("hit[1] metadata should be absent, got %v", hits[1].Metadata)
	}
	if hits[1].SourceName() != "" {
		t.Fatalf("hit[1] source=%q want empty", hits[1].SourceName())
	}
}

func TestQuery_EmptyResultSet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("[]"))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "")
	hits, err := client.Query(context.Background(), "nothing matches", 5)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(hits) != 0 {
		t.Fatalf("got %d hits, want 0", len(hits))
	}
}

func TestQuery_TimeoutIsDistinctFromUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(500 * time.Millisecond):
		}
		_, _ = w.Write([]byte("[]"))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "")
	client.QueryTimeout = 20 * time.Millisecond
	_, err := client.Query(context.Background(), "slow", 5)

	var backendErr *model.BackendError
	if !errors.As(err, &backendErr) {
		t.Fatalf("got %T, want *model.BackendError", err)
	}
	if backendErr.Code != model.CodeBackendTimeout {
		t.Fatalf("code=%s want %s", backendErr.Code, model.CodeBackendTimeout)
	}
	if !backendErr.Retryable {
		t.Fatal("timeouts should be retryable")
	}
}

func TestQuery_MalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("{not json"))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "")
	_, err := client.Query(context.Background(), "q", 5)

	var backendErr *model.BackendError
	if !errors.As(err, &backendErr) {
		t.Fatalf("got %T, want *model.BackendError", err)
	}
	if backendErr.Retryable {
		t.Fatal("malformed body is not retryable")
	}
}
