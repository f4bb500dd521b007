package records

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"
)

func newTestRouter(t *testing.T, svc *Service, maxBytes int64) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHandler(svc, maxBytes).RegisterRoutes(r)
	return r
}

func multipartBody(t *testing.T, field, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	fw, err := writer.CreateFormFile(field, filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := fw.Write(content); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return body, writer.FormDataContentType()
}

func TestUploadThenList(t *testing.T) {
	svc := &Service{
		Repo:      NewMemoryRepo(),
		Extractor: &fakeExtractor{text: "Razón Social: ACME SA\nTOTAL A PAGAR: $1,200.00\n"},
	}
	router := newTestRouter(t, svc, 0)

	body, contentType := multipartBody(t, "file", "recibo.pdf", []byte("%PDF-1.4"))
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", contentType)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.Code, resp.Body.String())
	}
	var created struct {
		Message string         `json:"message"`
		Record  RecordResponse `json:"record"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode upload response: %v", err)
	}
	if created.Message == "" || created.Record.ID != 1 {
		t.Fatalf("unexpected upload response %s", resp.Body.String())
	}

	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/files", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}

	var listed []map[string]any
	if err := json.Unmarshal(resp.Body.Bytes(), &listed); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(listed) != 1 {
		t.Fatalf("expected one record, got %d", len(listed))
	}
	fieldsJSON, ok := listed[0]["extractedFields"].(map[string]any)
	if !ok {
		t.Fatalf("missing extractedFields in %v", listed[0])
	}
	if fieldsJSON["entityName"] != "ACME SA" {
		t.Fatalf("entityName = %v", fieldsJSON["entityName"])
	}
	if fieldsJSON["totalAmount"] != float64(1200) {
		t.Fatalf("totalAmount = %v (%T)", fieldsJSON["totalAmount"], fieldsJSON["totalAmount"])
	}
	if v, present := fieldsJSON["referenceCode"]; !present || v != nil {
		t.Fatalf("absent fields must be null, got %v", fieldsJSON)
	}
	if !strings.Contains(resp.Body.String(), `"totalAmount":1200.00`) {
		t.Fatalf("expected two-decimal total in %s", resp.Body.String())
	}
	if _, ok := listed[0]["content"]; ok {
		t.Fatalf("list must not include content")
	}
}

func TestListEmptyIsArray(t *testing.T) {
	router := newTestRouter(t, &Service{Repo: NewMemoryRepo()}, 0)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/files", nil))
	if resp.Code != http.StatusOK || strings.TrimSpace(resp.Body.String()) != "[]" {
		t.Fatalf("expected empty array, got %d %s", resp.Code, resp.Body.String())
	}
}

func TestUploadValidation(t *testing.T) {
	router := newTestRouter(t, &Service{Repo: NewMemoryRepo()}, 0)

	t.Run("missing file part", func(t *testing.T) {
		body, contentType := multipartBody(t, "other", "x.pdf", []byte("%PDF"))
		req := httptest.NewRequest(http.MethodPost, "/upload", body)
		req.Header.Set("Content-Type", contentType)
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)
		if resp.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", resp.Code)
		}
		assertErrorBody(t, resp)
	})

	t.Run("blank filename", func(t *testing.T) {
		body, contentType := multipartBody(t, "file", "   ", []byte("%PDF"))
		req := httptest.NewRequest(http.MethodPost, "/upload", body)
		req.Header.Set("Content-Type", contentType)
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)
		if resp.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", resp.Code)
		}
		assertErrorBody(t, resp)
	})

	t.Run("not multipart", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader("{}"))
		req.Header.Set("Content-Type", "application/json")
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)
		if resp.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", resp.Code)
		}
	})
}

func TestUploadStoreFailureIs500(t *testing.T) {
	router := newTestRouter(t, &Service{Repo: failingRepo{NewMemoryRepo()}}, 0)
	body, contentType := multipartBody(t, "file", "a.pdf", []byte("%PDF"))
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", contentType)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.Code)
	}
	assertErrorBody(t, resp)
}

func TestUploadTooLarge(t *testing.T) {
	router := newTestRouter(t, &Service{Repo: NewMemoryRepo()}, 1024)
	body, contentType := multipartBody(t, "file", "big.pdf", bytes.Repeat([]byte("a"), 4096))
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", contentType)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusRequestEntityTooLarge && resp.Code != http.StatusBadRequest {
		t.Fatalf("expected upload to be rejected, got %d", resp.Code)
	}
}

func TestUploadPreflight(t *testing.T) {
	router := newTestRouter(t, &Service{Repo: NewMemoryRepo()}, 0)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodOptions, "/upload", nil))
	if resp.Code != http.StatusOK || resp.Body.Len() != 0 {
		t.Fatalf("expected empty 200, got %d %q", resp.Code, resp.Body.String())
	}
}

func TestContentEndpoint(t *testing.T) {
	repo := NewMemoryRepo()
	rec, _ := repo.Create(context.Background(), NewRecord{Filename: "recibo.pdf", Content: []byte("%PDF-1.4 body"), UploadedAt: time.Now().UTC()})
	router := newTestRouter(t, &Service{Repo: repo}, 0)

	tests := []struct {
		name   string
		path   string
		status int
	}{
		{name: "found", path: "/files/1/content", status: http.StatusOK},
		{name: "missing", path: "/files/99/content", status: http.StatusNotFound},
		{name: "bad id", path: "/files/abc/content", status: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := httptest.NewRecorder()
			router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, tt.path, nil))
			if resp.Code != tt.status {
				t.Fatalf("expected %d, got %d", tt.status, resp.Code)
			}
			if tt.status != http.StatusOK {
				return
			}
			if resp.Header().Get("Content-Type") != "application/pdf" {
				t.Fatalf("content type = %q", resp.Header().Get("Content-Type"))
			}
			if resp.Body.String() != string(rec.Content) {
				t.Fatalf("unexpected body %q", resp.Body.String())
			}
		})
	}
}

func TestExportWorkbook(t *testing.T) {
	repo := NewMemoryRepo()
	svc := &Service{Repo: repo, Extractor: &fakeExtractor{text: "RMU: 12345 01-02-03 CFE\nTOTAL A PAGAR: $75.50\n"}}
	if _, err := svc.Ingest(context.Background(), "recibo.pdf", []byte("%PDF")); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	router := newTestRouter(t, svc, 0)

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/export/files.xlsx", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}

	book, err := excelize.OpenReader(bytes.NewReader(resp.Body.Bytes()))
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer book.Close()

	rows, err := book.GetRows(exportSheet)
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected header plus one row, got %d", len(rows))
	}
	if rows[0][0] != "ID" || rows[1][1] != "recibo.pdf" {
		t.Fatalf("unexpected rows %v", rows)
	}
	if rows[1][4] != "75.5" {
		t.Fatalf("total cell = %q", rows[1][4])
	}
	if rows[1][5] != "12345 01-02-03 CFE" {
		t.Fatalf("reference cell = %q", rows[1][5])
	}
}

func assertErrorBody(t *testing.T, resp *httptest.ResponseRecorder) {
	t.Helper()
	var body map[string]string
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body %q: %v", resp.Body.String(), err)
	}
	if body["error"] == "" {
		t.Fatalf("expected error message, got %v", body)
	}
}
