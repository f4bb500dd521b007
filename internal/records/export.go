package records

import (
	"context"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"invoice-backend/internal/shared/metrics"
	"invoice-backend/internal/shared/telemetry"
)

const exportSheet = "Records"

var exportHeaders = []string{
	"ID",
	"Filename",
	"Uploaded At",
	"Entity Name",
	"Total Amount",
	"Reference Code",
	"Secondary Code",
}

// ExportXLSX renders every record summary as a single-sheet workbook.
func (s *Service) ExportXLSX(ctx context.Context) ([]byte, error) {
	start := time.Now()
	recs, err := s.Repo.List(ctx)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer f.Close()

	// Rename the default sheet rather than adding a second one.
	if err := f.SetSheetName(f.GetSheetName(0), exportSheet); err != nil {
		return nil, fmt.Errorf("xlsx sheet: %w", err)
	}

	sheet := &sheetWriter{f: f, name: exportSheet}
	for i, h := range exportHeaders {
		sheet.set(i+1, 1, h)
	}

	for i, rec := range recs {
		row := i + 2
		sheet.set(1, row, rec.ID)
		sheet.set(2, row, rec.Filename)
		sheet.set(3, row, rec.UploadedAt.UTC().Format(time.RFC3339))
		sheet.set(4, row, deref(rec.Fields.EntityName))
		if rec.Fields.TotalAmount != nil {
			sheet.set(5, row, rec.Fields.TotalAmount.InexactFloat64())
		}
		sheet.set(6, row, deref(rec.Fields.ReferenceCode))
		sheet.set(7, row, deref(rec.Fields.SecondaryCode))
	}

	sheet.width("A", "A", 8)
	sheet.width("B", "B", 36)
	sheet.width("C", "C", 22)
	sheet.width("D", "D", 40)
	sheet.width("E", "E", 14)
	sheet.width("F", "G", 26)
	if sheet.err != nil {
		return nil, fmt.Errorf("xlsx cells: %w", sheet.err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	metrics.IncExports()
	telemetry.Info("export.xlsx.ok", map[string]any{
		"rows":       len(recs),
		"elapsed_ms": time.Since(start).Milliseconds(),
	})
	return buf.Bytes(), nil
}

// sheetWriter keeps the first excelize error and skips writes after it.
type sheetWriter struct {
	f    *excelize.File
	name string
	err  error
}

func (w *sheetWriter) set(col, row int, v any) {
	if w.err != nil {
		return
	}
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		w.err = err
		return
	}
	w.err = w.f.SetCellValue(w.name, cell, v)
}

func (w *sheetWriter) width(start, end string, width float64) {
	if w.err != nil {
		return
	}
	w.err = w.f.SetColWidth(w.name, start, end, width)
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
