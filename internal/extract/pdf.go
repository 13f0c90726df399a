package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/kb2mcp/kb2mcp/internal/model"
)

func (e *Extractor) extractPDF(data []byte) (Result, error) {
	reader, err := openPDF(data)
	if err != nil {
		return Result{}, &model.DocumentError{
			Code:    model.CodeDocCorrupt,
			Message: "file cannot be opened as a PDF document",
			Cause:   err,
		}
	}

	total := reader.NumPage()
	if total == 0 {
		return Result{}, &model.DocumentError{
			Code:    model.CodeDocEmpty,
			Message: "PDF document has no pages",
		}
	}

	parts := make([]string, 0, total)
	for pageNum := 1; pageNum <= total; pageNum++ {
		text, err := extractPage(reader, pageNum)
		if err != nil {
			e.logger.Warn("skipping unreadable PDF page", map[string]any{
				"page":  pageNum,
				"error": err.Error(),
			})
			continue
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		parts = append(parts, text)
	}

	if len(parts) == 0 {
		return Result{}, &model.DocumentError{
			Code:    model.CodeDocEmpty,
			Message: "no extractable text on any page; the document may contain only scanned images",
		}
	}

	text := strings.Join(parts, "\n\n")
	return Result{Text: text, Pages: total, Words: wordCount(text)}, nil
}

// openPDF wraps pdf.NewReader. The parser panics on some malformed inputs,
// so the panic is converted into an ordinary error.
func openPDF(data []byte) (reader *pdf.Reader, err error) {
	defer func() {
		if r := recover(); r != nil {
			reader = nil
			err = fmt.Errorf("pdf reader: %v", r)
		}
	}()
	return pdf.NewReader(bytes.NewReader(data), int64(len(data)))
}

// extractPage pulls the plain text of a single page, converting parser
// panics into errors so one bad page cannot abort the whole document.
func extractPage(reader *pdf.Reader, pageNum int) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = fmt.Errorf("page %d: %v", pageNum, r)
		}
	}()

	page := reader.Page(pageNum)
	if page.V.IsNull() {
		return "", fmt.Errorf("page %d is missing from the page tree", pageNum)
	}
	return page.GetPlainText(nil)
}
