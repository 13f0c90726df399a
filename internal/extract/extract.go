// Package extract turns decoded document bytes into normalized plain text.
// Markdown passes through unchanged apart from trimming; PDF containers are
// walked page by page with unreadable pages skipped.
package extract

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/kb2mcp/kb2mcp/internal/log"
	"github.com/kb2mcp/kb2mcp/internal/model"
)

// Kind identifies the declared document format of an upload.
type Kind string

const (
	KindPDF      Kind = "pdf"
	KindMarkdown Kind = "markdown"
)

// KindForContentType maps a declared MIME value to an extraction kind.
// The bool is false for content types the bridge does not accept.
func KindForContentType(contentType string) (Kind, bool) {
	switch strings.ToLower(strings.TrimSpace(contentType)) {
	case "application/pdf":
		return KindPDF, true
	case "text/markdown", "text/x-markdown":
		return KindMarkdown, true
	default:
		return "", false
	}
}

// Result is the normalized text produced from one document.
type Result struct {
	Text  string
	Pages int
	Words int
}

// Extractor produces plain text from decoded document bytes.
type Extractor struct {
	logger *log.Logger
}

func NewExtractor(logger *log.Logger) *Extractor {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Extractor{logger: logger}
}

// Extract normalizes data according to its declared kind. Failures are
// *model.DocumentError values distinguishing undecodable text, corrupt
// containers, and documents with no extractable text.
func (e *Extractor) Extract(data []byte, kind Kind) (Result, error) {
	switch kind {
	case KindMarkdown:
		return e.extractMarkdown(data)
	case KindPDF:
		return e.extractPDF(data)
	default:
		return Result{}, &model.DocumentError{
			Code:    model.CodeDocDecode,
			Message: "unsupported document kind " + string(kind),
		}
	}
}

func (e *Extractor) extractMarkdown(data []byte) (Result, error) {
	if !utf8.Valid(data) {
		return Result{}, &model.DocumentError{
			Code:    model.CodeDocDecode,
			Message: "markdown content is not valid UTF-8 text",
		}
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return Result{}, &model.DocumentError{
			Code:    model.CodeDocEmpty,
			Message: "document contains no text",
		}
	}
	return Result{Text: text, Pages: 1, Words: wordCount(text)}, nil
}

// wordCount counts whitespace-delimited tokens, skipping tokens that carry
// no letters or digits so markup punctuation such as a bare "#" is not
// reported as a word.
func wordCount(text string) int {
	count := 0
	for _, field := range strings.Fields(text) {
		if strings.ContainsFunc(field, func(r rune) bool {
			return unicode.IsLetter(r) || unicode.IsDigit(r)
		}) {
			count++
		}
	}
	return count
}
