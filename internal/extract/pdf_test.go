package extract

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/kb2mcp/kb2mcp/internal/model"
)

// buildPDF assembles a minimal but structurally valid PDF with one page per
// entry in pageTexts. An empty entry produces a page with an empty content
// stream. Cross-reference offsets are computed from the buffer, so the
// fixture stays valid whatever the page texts are.
func buildPDF(t *testing.T, pageTexts []string) []byte {
	t.Helper()

	var buf bytes.Buffer
	var offsets []int
	writeObj := func(body string) {
		offsets = append(offsets, buf.Len())
		buf.WriteString(body)
	}

	buf.WriteString("%PDF-1.4\n")

	kids := make([]string, len(pageTexts))
	for i := range pageTexts {
		kids[i] = fmt.Sprintf("%d 0 R", 4+2*i)
	}
	writeObj("1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n")
	writeObj(fmt.Sprintf("2 0 obj\n<< /Type /Pages /Kids [%s] /Count %d >>\nendobj\n",
		strings.Join(kids, " "), len(pageTexts)))
	writeObj("3 0 obj\n<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>\nendobj\n")

	for i, text := range pageTexts {
		pageNum := 4 + 2*i
		streamNum := 5 + 2*i
		writeObj(fmt.Sprintf("%d 0 obj\n<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] "+
			"/Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>\nendobj\n", pageNum, streamNum))

		var stream string
		if text != "" {
			stream = fmt.Sprintf("BT /F1 12 Tf 72 720 Td (%s) Tj ET", text)
		}
		writeObj(fmt.Sprintf("%d 0 obj\n<< /Length %d >>\nstream\n%s\nendstream\nendobj\n",
			streamNum, len(stream), stream))
	}

	xrefOffset := buf.Len()
	buf.WriteString(fmt.Sprintf("xref\n0 %d\n", len(offsets)+1))
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		buf.WriteString(fmt.Sprintf("%010d 00000 n \n", off))
	}
	buf.WriteString(fmt.Sprintf("trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n",
		len(offsets)+1, xrefOffset))

	return buf.Bytes()
}

func TestExtractPDFSinglePage(t *testing.T) {
	e := NewExtractor(nil)
	data := buildPDF(t, []string{"Hello world"})

	res, err := e.Extract(data, KindPDF)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if !strings.Contains(res.Text, "Hello world") {
		t.Fatalf("text %q missing page content", res.Text)
	}
	if res.Pages != 1 {
		t.Fatalf("pages=%d want 1", res.Pages)
	}
	if res.Words != 2 {
		t.Fatalf("words=%d want 2", res.Words)
	}
}

func TestExtractPDFPreservesPageOrder(t *testing.T) {
	e := NewExtractor(nil)
	data := buildPDF(t, []string{"first page text", "second page text"})

	res, err := e.Extract(data, KindPDF)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	firstAt := strings.Index(res.Text, "first page text")
	secondAt := strings.Index(res.Text, "second page text")
	if firstAt < 0 || secondAt < 0 {
		t.Fatalf("missing page content in %q", res.Text)
	}
	if firstAt > secondAt {
		t.Fatalf("pages out of order in %q", res.Text)
	}
	if !strings.Contains(res.Text, "\n\n") {
		t.Fatalf("pages not separated by a blank line: %q", res.Text)
	}
}

func TestExtractPDFZeroPages(t *testing.T) {
	e := NewExtractor(nil)
	data := buildPDF(t, nil)

	_, err := e.Extract(data, KindPDF)
	var docErr *model.DocumentError
	if !errors.As(err, &docErr) {
		t.Fatalf("got %T, want *model.DocumentError", err)
	}
	if docErr.Code != model.CodeDocEmpty {
		t.Fatalf("code=%s want %s", docErr.Code, model.CodeDocEmpty)
	}
}

func TestExtractPDFSkipsEmptyPage(t *testing.T) {
	e := NewExtractor(nil)
	data := buildPDF(t, []string{"", "only real content"})

	res, err := e.Extract(data, KindPDF)
	if err != nil {
		t.Fatalf("a blank page must not fail extraction: %v", err)
	}
	if !strings.Contains(res.Text, "only real content") {
		t.Fatalf("text %q missing second page", res.Text)
	}
	if strings.Contains(res.Text, "\n\n") {
		t.Fatalf("blank page produced a separator: %q", res.Text)
	}
	if res.Pages != 2 {
		t.Fatalf("pages=%d want 2 (container page count)", res.Pages)
	}
}

func TestExtractPDFAllPagesEmpty(t *testing.T) {
	e := NewExtractor(nil)
	data := buildPDF(t, []string{"", ""})

	_, err := e.Extract(data, KindPDF)
	var docErr *model.DocumentError
	if !errors.As(err, &docErr) || docErr.Code != model.CodeDocEmpty {
		t.Fatalf("got %v, want DocumentError %s", err, model.CodeDocEmpty)
	}
}

func TestExtractPDFCorrupt(t *testing.T) {
	e := NewExtractor(nil)
	for _, data := range [][]byte{
		[]byte("this is not a pdf at all"),
		[]byte("%PDF-1.4\ntruncated before any structure"),
		{},
	} {
		_, err := e.Extract(data, KindPDF)
		var docErr *model.DocumentError
		if !errors.As(err, &docErr) {
			t.Fatalf("Extract(%q)=%v, want *model.DocumentError", data, err)
		}
		if docErr.Code != model.CodeDocCorrupt {
			t.Fatalf("code=%s want %s", docErr.Code, model.CodeDocCorrupt)
		}
	}
}
