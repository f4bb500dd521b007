package ocr

import (
	"context"
	"fmt"
	"strings"
	"time"

	documentai "cloud.google.com/go/documentai/apiv1"
	"cloud.google.com/go/documentai/apiv1/documentaipb"
	gax "github.com/googleapis/gax-go/v2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
)

const defaultLocation = "us"

type processorClient interface {
	ProcessDocument(ctx context.Context, req *documentaipb.ProcessRequest, opts ...gax.CallOption) (*documentaipb.ProcessResponse, error)
	Close() error
}

// DocumentAI sends PDFs to a Google Document AI OCR processor.
type DocumentAI struct {
	client  processorClient
	name    string
	timeout time.Duration
}

// NewDocumentAI dials the regional Document AI endpoint. Credentials come from
// CredentialsFile when set, otherwise from Application Default Credentials.
func NewDocumentAI(ctx context.Context, cfg Config) (*DocumentAI, error) {
	if strings.TrimSpace(cfg.ProjectID) == "" {
		return nil, fmt.Errorf("DOCAI_PROJECT_ID is required for document ai")
	}
	if strings.TrimSpace(cfg.ProcessorID) == "" {
		return nil, fmt.Errorf("DOCAI_PROCESSOR_ID is required for document ai")
	}
	location := strings.TrimSpace(cfg.Location)
	if location == "" {
		location = defaultLocation
	}

	opts := []option.ClientOption{
		option.WithEndpoint(fmt.Sprintf("%s-documentai.googleapis.com:443", location)),
	}
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	} else {
		ts, err := google.DefaultTokenSource(ctx, documentai.DefaultAuthScopes()...)
		if err != nil {
			return nil, fmt.Errorf("document ai credentials: %w", err)
		}
		opts = append(opts, option.WithTokenSource(ts))
	}

	client, err := documentai.NewDocumentProcessorClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating document ai client: %w", err)
	}
	name := processorName(cfg.ProjectID, location, cfg.ProcessorID)
	return newDocumentAI(client, name, cfg.Timeout), nil
}

func newDocumentAI(client processorClient, name string, timeout time.Duration) *DocumentAI {
	return &DocumentAI{client: client, name: name, timeout: timeout}
}

func processorName(project, location, processor string) string {
	return fmt.Sprintf("projects/%s/locations/%s/processors/%s", project, location, processor)
}

// ExtractText runs a synchronous process request and returns the document text.
func (d *DocumentAI) ExtractText(ctx context.Context, pdf []byte) (string, error) {
	if len(pdf) == 0 {
		return "", &ExtractionError{Backend: BackendDocumentAI, Err: errEmptyDocument}
	}
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	resp, err := d.client.ProcessDocument(ctx, &documentaipb.ProcessRequest{
		Name: d.name,
		Source: &documentaipb.ProcessRequest_RawDocument{
			RawDocument: &documentaipb.RawDocument{
				Content:  pdf,
				MimeType: mimePDF,
			},
		},
	})
	if err != nil {
		return "", &ExtractionError{Backend: BackendDocumentAI, Err: err}
	}
	return resp.GetDocument().GetText(), nil
}

func (d *DocumentAI) Close() error {
	return d.client.Close()
}
