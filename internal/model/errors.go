package model

import "fmt"

// Error codes surfaced to the calling agent inside structured tool errors.
// Codec and extraction codes are fixed per error type; backend codes depend
// on how the HTTP exchange failed.
const (
	CodeEncodingInvalid = "ENCODING_INVALID"
	CodeSizeLimit       = "SIZE_LIMIT"

	CodeDocDecode  = "DOC_DECODE"
	CodeDocCorrupt = "DOC_CORRUPT"
	CodeDocEmpty   = "DOC_EMPTY"

	CodeBackendUnavailable = "BACKEND_UNAVAILABLE"
	CodeBackendTimeout     = "BACKEND_TIMEOUT"
)

// BackendError describes a failed exchange with the knowledge-base service.
type BackendError struct {
	Code       string
	Message    string
	Retryable  bool
	StatusCode int
	Cause      error
}

func (e *BackendError) Error() string {
	if e == nil {
		return ""
	}
	return e.Code + ": " + e.Message
}

func (e *BackendError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// EncodingError reports payload text that is not valid under the transport
// encoding (base64).
type EncodingError struct {
	Message string
	Cause   error
}

func (e *EncodingError) Error() string {
	if e == nil {
		return ""
	}
	return CodeEncodingInvalid + ": " + e.Message
}

func (e *EncodingError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// SizeLimitError reports a payload whose decoded size exceeds the configured
// ceiling. Size is the decoded length computed before materialization.
type SizeLimitError struct {
	Size  int64
	Limit int64
}

func (e *SizeLimitError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: decoded payload is %d bytes, limit is %d bytes", CodeSizeLimit, e.Size, e.Limit)
}

// DocumentError describes a text-extraction failure. Code is one of
// CodeDocDecode, CodeDocCorrupt, CodeDocEmpty.
type DocumentError struct {
	Code    string
	Message string
	Cause   error
}

func (e *DocumentError) Error() string {
	if e == nil {
		return ""
	}
	return e.Code + ": " + e.Message
}

func (e *DocumentError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}
