package ocr

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	BackendDocumentAI = "documentai"
	BackendPDFText    = "pdftext"

	mimePDF = "application/pdf"
)

// Extractor turns the bytes of a PDF into plain text.
type Extractor interface {
	ExtractText(ctx context.Context, pdf []byte) (string, error)
	// Close releases any client connections held by the backend.
	Close() error
}

// ErrExtraction matches every failure reported by an Extractor backend.
var ErrExtraction = errors.New("ocr extraction failed")

var errEmptyDocument = errors.New("empty document")

// ExtractionError carries the backend name alongside the underlying cause.
type ExtractionError struct {
	Backend string
	Err     error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrExtraction.Error(), e.Backend, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

func (e *ExtractionError) Is(target error) bool { return target == ErrExtraction }

// Config selects and configures a backend.
type Config struct {
	Backend         string
	ProjectID       string
	Location        string
	ProcessorID     string
	CredentialsFile string
	Timeout         time.Duration
}

// New builds the configured backend. An empty Backend means Document AI.
func New(ctx context.Context, cfg Config) (Extractor, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", BackendDocumentAI:
		return NewDocumentAI(ctx, cfg)
	case BackendPDFText:
		return NewPDFText(), nil
	default:
		return nil, fmt.Errorf("unknown OCR_BACKEND %q", cfg.Backend)
	}
}
