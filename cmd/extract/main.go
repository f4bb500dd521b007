package main

// Run OCR and field extraction on one file without touching the database:
//   go run ./cmd/extract --backend pdftext recibo.pdf
//   go run ./cmd/extract --text recibo.txt --rules rules.yaml

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"invoice-backend/internal/fields"
	"invoice-backend/internal/ocr"
	"invoice-backend/internal/records"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, ff.ErrHelp) {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(1)
	}
}

type output struct {
	Text    string                          `json:"text,omitempty"`
	Fields  records.ExtractedFieldsResponse `json:"extractedFields"`
	Matches []fields.Match                  `json:"matches"`
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := ff.NewFlagSet("extract")
	var (
		backend     = fs.StringLong("backend", ocr.BackendDocumentAI, "OCR backend: documentai or pdftext")
		projectID   = fs.StringLong("docai-project-id", "", "Document AI project id")
		location    = fs.StringLong("docai-location", "us", "Document AI location")
		processorID = fs.StringLong("docai-processor-id", "", "Document AI processor id")
		credentials = fs.StringLong("docai-credentials-file", "", "service account JSON (default: application default credentials)")
		timeout     = fs.DurationLong("ocr-timeout", 0, "OCR call timeout")
		rulesFile   = fs.StringLong("rules", "", "extraction rules YAML (default: built-in rules)")
		textInput   = fs.BoolLong("text", "treat the input as already-extracted plain text")
		showText    = fs.BoolLong("show-text", "include the OCR text in the output")
	)

	if err := ff.Parse(fs, args, ff.WithEnvVarPrefix("INVOICE")); err != nil {
		fmt.Fprintf(stderr, "%s\n", ffhelp.Flags(fs))
		return err
	}
	if len(fs.GetArgs()) != 1 {
		fmt.Fprintf(stderr, "%s\n", ffhelp.Flags(fs))
		return fmt.Errorf("expected exactly one input file")
	}

	data, err := os.ReadFile(fs.GetArgs()[0])
	if err != nil {
		return err
	}

	rules := fields.DefaultRules()
	if *rulesFile != "" {
		if rules, err = fields.LoadRulesFile(*rulesFile); err != nil {
			return err
		}
	}

	text := string(data)
	if !*textInput {
		ext, err := ocr.New(ctx, ocr.Config{
			Backend:         *backend,
			ProjectID:       *projectID,
			Location:        *location,
			ProcessorID:     *processorID,
			CredentialsFile: *credentials,
			Timeout:         *timeout,
		})
		if err != nil {
			return err
		}
		defer ext.Close()

		if text, err = ext.ExtractText(ctx, data); err != nil {
			return err
		}
	}

	res := fields.NewEngine(rules).Extract(text)
	out := output{
		Fields:  records.ToResponse(records.Record{Fields: res.Fields}).ExtractedFields,
		Matches: res.Matches,
	}
	if out.Matches == nil {
		out.Matches = []fields.Match{}
	}
	if *showText {
		out.Text = text
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
