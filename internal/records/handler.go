package records

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"invoice-backend/internal/shared/server/middleware"
	"invoice-backend/internal/shared/server/respond"
)

const (
	defaultMaxUploadBytes = 20 << 20
	xlsxContentType       = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// Handler wires HTTP handlers to the service.
type Handler struct {
	Svc            *Service
	MaxUploadBytes int64
}

// NewHandler constructs a Handler. A non-positive limit uses 20 MiB.
func NewHandler(svc *Service, maxUploadBytes int64) *Handler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = defaultMaxUploadBytes
	}
	return &Handler{Svc: svc, MaxUploadBytes: maxUploadBytes}
}

// RegisterRoutes attaches record routes to the router.
func (h *Handler) RegisterRoutes(r gin.IRoutes) {
	r.GET("/files", h.list)
	r.GET("/files/:id/content", h.content)
	r.POST("/upload", h.upload)
	r.OPTIONS("/upload", h.preflight)
	r.GET("/export/files.xlsx", h.export)
}

func (h *Handler) list(c *gin.Context) {
	recs, err := h.Svc.List(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		respond.Error(c, http.StatusInternalServerError, "Failed to fetch files")
		return
	}
	respond.OK(c, ToResponses(recs))
}

func (h *Handler) upload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.MaxUploadBytes)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respond.Error(c, http.StatusRequestEntityTooLarge, "File too large")
			return
		}
		respond.Error(c, http.StatusBadRequest, "No file provided")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		_ = c.Error(err)
		respond.Error(c, http.StatusBadRequest, "Unable to read file")
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		_ = c.Error(err)
		respond.Error(c, http.StatusBadRequest, "Unable to read file")
		return
	}

	rec, err := h.Svc.Ingest(c.Request.Context(), fileHeader.Filename, content)
	if err != nil {
		_ = c.Error(err)
		switch {
		case errors.Is(err, ErrInvalidInput):
			respond.Error(c, http.StatusBadRequest, "No file selected")
		default:
			respond.Error(c, http.StatusInternalServerError, "Upload failed")
		}
		return
	}

	c.Set(middleware.RecordIDKey, rec.ID)
	respond.Created(c, gin.H{
		"message": "File uploaded and processed",
		"record":  ToResponse(rec),
	})
}

func (h *Handler) preflight(c *gin.Context) {
	c.Status(http.StatusOK)
}

func (h *Handler) content(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		respond.Error(c, http.StatusBadRequest, "Invalid record id")
		return
	}

	rec, err := h.Svc.Get(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(err)
		if errors.Is(err, ErrNotFound) {
			respond.Error(c, http.StatusNotFound, "File not found")
			return
		}
		respond.Error(c, http.StatusInternalServerError, "Failed to fetch file")
		return
	}

	c.Set(middleware.RecordIDKey, rec.ID)
	disposition := mime.FormatMediaType("inline", map[string]string{"filename": rec.Filename})
	if disposition == "" {
		disposition = "inline"
	}
	c.Header("Content-Disposition", disposition)
	c.Data(http.StatusOK, contentTypePDF, rec.Content)
}

func (h *Handler) export(c *gin.Context) {
	data, err := h.Svc.ExportXLSX(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		respond.Error(c, http.StatusInternalServerError, "Export failed")
		return
	}
	c.Header("Content-Disposition", `attachment; filename="files.xlsx"`)
	c.Data(http.StatusOK, xlsxContentType, data)
}
