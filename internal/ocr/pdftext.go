package ocr

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/ledongthuc/pdf"
)

// PDFText reads the embedded text layer of a PDF locally. Scanned documents
// without a text layer come back empty.
type PDFText struct{}

func NewPDFText() *PDFText { return &PDFText{} }

func (p *PDFText) ExtractText(ctx context.Context, data []byte) (text string, err error) {
	if err := ctx.Err(); err != nil {
		return "", &ExtractionError{Backend: BackendPDFText, Err: err}
	}
	if len(data) == 0 {
		return "", &ExtractionError{Backend: BackendPDFText, Err: errEmptyDocument}
	}

	// The parser panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			text, err = "", &ExtractionError{Backend: BackendPDFText, Err: fmt.Errorf("malformed pdf: %v", r)}
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", &ExtractionError{Backend: BackendPDFText, Err: err}
	}
	plain, err := reader.GetPlainText()
	if err != nil {
		return "", &ExtractionError{Backend: BackendPDFText, Err: err}
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", &ExtractionError{Backend: BackendPDFText, Err: err}
	}
	return buf.String(), nil
}

func (p *PDFText) Close() error { return nil }
