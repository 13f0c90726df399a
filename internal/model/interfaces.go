package model

import "context"

// KnowledgeBase is the outbound contract to the indexing service. Both
// operations are single-shot HTTP exchanges; neither retries.
type KnowledgeBase interface {
	Submit(ctx context.Context, text string, metadata map[string]interface{}) (SubmitReceipt, error)
	Query(ctx context.Context, query string, maxResults int) ([]Hit, error)
}

// Journal records completed uploads locally so status surfaces can report
// totals without a backend round-trip.
type Journal interface {
	RecordUpload(ctx context.Context, rec UploadRecord) error
	Stats(ctx context.Context) (JournalStats, error)
	Close() error
}
