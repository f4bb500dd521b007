package records

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"invoice-backend/internal/fields"
	"invoice-backend/internal/ocr"
	"invoice-backend/internal/shared/metrics"
	"invoice-backend/internal/shared/storage/object"
	"invoice-backend/internal/shared/telemetry"
	"invoice-backend/internal/shared/util"
)

const contentTypePDF = "application/pdf"

// Service ingests uploads: OCR, field extraction, then persistence.
type Service struct {
	Repo      Repo
	Extractor ocr.Extractor
	Engine    *fields.Engine
	// Archive optionally receives a copy of each stored upload.
	Archive object.Store
	Now     func() time.Time
}

// Ingest stores content under filename with whatever fields could be read.
// OCR failures never fail the upload; only a store failure does.
func (s *Service) Ingest(ctx context.Context, filename string, content []byte) (Record, error) {
	if strings.TrimSpace(filename) == "" {
		return Record{}, fmt.Errorf("%w: filename is required", ErrInvalidInput)
	}

	checksum := util.Checksum(content)
	res := s.extract(ctx, filename, checksum, content)

	rec, err := s.Repo.Create(ctx, NewRecord{
		Filename:   filename,
		Content:    content,
		UploadedAt: s.now(),
		Fields:     res.Fields,
	})
	if err != nil {
		metrics.IncUploadsFailed()
		return Record{}, err
	}
	metrics.IncUploads()

	telemetry.Info("ingest.persisted", map[string]any{
		"record_id":  rec.ID,
		"filename":   filename,
		"sha256":     checksum,
		"size_bytes": len(content),
		"fields":     len(res.Matches),
	})

	s.archive(ctx, rec)
	return rec, nil
}

// List returns record summaries, newest first.
func (s *Service) List(ctx context.Context) ([]Record, error) {
	return s.Repo.List(ctx)
}

// Get returns a record including its content.
func (s *Service) Get(ctx context.Context, id int64) (Record, error) {
	return s.Repo.Get(ctx, id)
}

func (s *Service) extract(ctx context.Context, filename, checksum string, content []byte) fields.Result {
	if s.Extractor == nil {
		return fields.Result{}
	}

	start := time.Now()
	text, err := s.Extractor.ExtractText(ctx, content)
	metrics.ObserveOCRDurationMs(float64(time.Since(start).Milliseconds()))
	if err != nil {
		metrics.IncOCRFailures()
		telemetry.Warn("ingest.ocr_failed", map[string]any{
			"filename": filename,
			"sha256":   checksum,
			"err":      err,
		})
		return fields.Result{}
	}

	res := s.engine().Extract(text)
	rules := make(map[string]string, len(res.Matches))
	for _, m := range res.Matches {
		rules[string(m.Field)] = m.Rule
	}
	telemetry.Info("ingest.extracted", map[string]any{
		"filename":   filename,
		"sha256":     checksum,
		"text_chars": len(text),
		"rules":      rules,
	})
	return res
}

func (s *Service) archive(ctx context.Context, rec Record) {
	if s.Archive == nil {
		return
	}
	key, err := object.RecordKey(rec.ID, rec.Filename)
	if err != nil {
		telemetry.Warn("ingest.archive_failed", map[string]any{"record_id": rec.ID, "err": err})
		return
	}
	if _, err := s.Archive.Put(ctx, key, contentTypePDF, bytes.NewReader(rec.Content)); err != nil {
		telemetry.Warn("ingest.archive_failed", map[string]any{"record_id": rec.ID, "key": key, "err": err})
		return
	}
	telemetry.Debug("ingest.archived", map[string]any{"record_id": rec.ID, "key": key})
}

func (s *Service) engine() *fields.Engine {
	if s.Engine == nil {
		return fields.NewEngine(nil)
	}
	return s.Engine
}

func (s *Service) now() time.Time {
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	return now().UTC().Truncate(time.Microsecond)
}
