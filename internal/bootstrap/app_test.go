package bootstrap

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"invoice-backend/internal/ocr"
	"invoice-backend/internal/records"
	"invoice-backend/internal/shared/config"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
		Port:               "0",
		Env:                "dev",
		DBAutoMigrate:      true,
		CORSAllowOrigin:    []string{"*"},
		LogLevel:           "error",
		OCRBackend:         ocr.BackendPDFText,
		EventsPollInterval: 10 * time.Millisecond,
		MaxUploadBytes:     1 << 20,
		UploadRatePerSec:   100,
		UploadRateBurst:    100,
		ArchiveStore:       "local",
		LocalStoreDir:      t.TempDir(),
	}
}

func upload(t *testing.T, router http.Handler, name string, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	fw, err := writer.CreateFormFile("file", name)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := fw.Write(content); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func TestBuildInMemoryUploadAndList(t *testing.T) {
	gin.SetMode(gin.TestMode)

	app, err := Build(context.Background(), testConfig(t))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(func() { _ = app.Close() })

	if _, ok := app.RecordsRepo.(*records.MemoryRepo); !ok {
		t.Fatalf("expected memory repo without DATABASE_URL, got %T", app.RecordsRepo)
	}

	// Not a real PDF: OCR fails but the upload is still stored.
	resp := upload(t, app.Router, "recibo.pdf", []byte("not really a pdf"))
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.Code, resp.Body.String())
	}
	if resp.Header().Get("X-Request-Id") == "" {
		t.Fatalf("expected request id header")
	}

	resp = httptest.NewRecorder()
	app.Router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/files", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var listed []records.RecordResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &listed); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(listed) != 1 || listed[0].Filename != "recibo.pdf" {
		t.Fatalf("unexpected list %+v", listed)
	}
	if listed[0].ExtractedFields.TotalAmount != nil {
		t.Fatalf("expected absent fields after OCR failure")
	}

	resp = httptest.NewRecorder()
	app.Router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("healthz = %d", resp.Code)
	}

	resp = httptest.NewRecorder()
	app.Router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(resp.Body.String(), "uploads_total") {
		t.Fatalf("expected upload counter in metrics output")
	}
}

func TestBuildWithSQLite(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cfg := testConfig(t)
	cfg.Env = "production"
	cfg.ArchiveStore = "none"
	cfg.DatabaseURL = "sqlite://" + filepath.Join(t.TempDir(), "invoices.db")

	app, err := Build(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(func() { _ = app.Close() })

	if _, ok := app.RecordsRepo.(*records.SQLRepo); !ok {
		t.Fatalf("expected SQL repo, got %T", app.RecordsRepo)
	}

	resp := upload(t, app.Router, "uno.pdf", []byte("%PDF-garbage"))
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.Code, resp.Body.String())
	}

	resp = httptest.NewRecorder()
	app.Router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/files/1/content", nil))
	if resp.Code != http.StatusOK || resp.Body.String() != "%PDF-garbage" {
		t.Fatalf("unexpected content response %d %q", resp.Code, resp.Body.String())
	}
}

func TestBuildRequiresDatabaseOutsideDev(t *testing.T) {
	cfg := testConfig(t)
	cfg.Env = "production"
	if _, err := Build(context.Background(), cfg); err == nil {
		t.Fatalf("expected error without DATABASE_URL in production")
	}
}

func TestBuildRejectsBrokenRulesFile(t *testing.T) {
	cfg := testConfig(t)
	cfg.RulesFile = filepath.Join(t.TempDir(), "missing.yaml")
	if _, err := Build(context.Background(), cfg); err == nil {
		t.Fatalf("expected error for missing rules file")
	}
}

func TestBuildFallsBackToPDFTextInDev(t *testing.T) {
	cfg := testConfig(t)
	cfg.OCRBackend = ocr.BackendDocumentAI

	app, err := Build(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(func() { _ = app.Close() })
	if _, ok := app.Extractor.(*ocr.PDFText); !ok {
		t.Fatalf("expected pdftext fallback, got %T", app.Extractor)
	}
}
