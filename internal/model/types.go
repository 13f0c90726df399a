package model

import "time"

// Hit is a single retrieval result returned by the knowledge base.
// Metadata carries whatever the backend stored alongside the excerpt
// (filename, content kind, word count); it may be nil.
type Hit struct {
	Text     string
	Metadata map[string]interface{}
}

// SourceName extracts a display name for the hit's origin, preferring the
// filename recorded at upload time. Empty when the backend sent no metadata.
func (h Hit) SourceName() string {
	for _, key := range []string{"filename", "source", "title"} {
		if v, ok := h.Metadata[key]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}

// SubmitReceipt is the backend's acknowledgement of an indexing submission.
type SubmitReceipt struct {
	ChunkCount int
}

// UploadRecord is one row of the local upload journal.
type UploadRecord struct {
	ID          int64
	Filename    string
	ContentKind string
	Words       int
	Chunks      int
	CreatedAt   time.Time
}

// JournalStats aggregates the upload journal for the status surfaces.
type JournalStats struct {
	Uploads    int64     `json:"uploads"`
	Words      int64     `json:"words"`
	Chunks     int64     `json:"chunks"`
	LastUpload time.Time `json:"last_upload,omitzero"`
}
