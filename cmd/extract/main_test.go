package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestRunExtractsFromText(t *testing.T) {
	path := filepath.Join(t.TempDir(), "recibo.txt")
	text := "RMU: 12345 01-02-03 CFE\nRazón Social: ACME SA\nTOTAL A PAGAR: $1,200.00\n"
	if err := os.WriteFile(path, []byte(text), 0o600); err != nil {
		t.Fatalf("write input: %v", err)
	}

	var stdout bytes.Buffer
	if err := run(context.Background(), []string{"--text", path}, &stdout, io.Discard); err != nil {
		t.Fatalf("run: %v", err)
	}

	var out struct {
		ExtractedFields map[string]any   `json:"extractedFields"`
		Matches         []map[string]any `json:"matches"`
	}
	if err := json.Unmarshal(stdout.Bytes(), &out); err != nil {
		t.Fatalf("decode output %q: %v", stdout.String(), err)
	}
	if out.ExtractedFields["entityName"] != "ACME SA" {
		t.Fatalf("entityName = %v", out.ExtractedFields["entityName"])
	}
	if out.ExtractedFields["totalAmount"] != float64(1200) {
		t.Fatalf("totalAmount = %v", out.ExtractedFields["totalAmount"])
	}
	if len(out.Matches) != 3 {
		t.Fatalf("expected 3 matches, got %d", len(out.Matches))
	}
}

func TestRunRequiresOneInput(t *testing.T) {
	if err := run(context.Background(), nil, io.Discard, io.Discard); err == nil {
		t.Fatalf("expected error without input file")
	}
}

func TestRunUnknownBackend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "recibo.pdf")
	if err := os.WriteFile(path, []byte("%PDF"), 0o600); err != nil {
		t.Fatalf("write input: %v", err)
	}
	if err := run(context.Background(), []string{"--backend", "tesseract", path}, io.Discard, io.Discard); err == nil {
		t.Fatalf("expected unknown backend error")
	}
}
