package records

import (
	"encoding/json"
	"time"
)

// RecordResponse is the JSON shape of a record summary.
type RecordResponse struct {
	ID              int64                   `json:"id"`
	Filename        string                  `json:"filename"`
	UploadedAt      string                  `json:"uploadedAt"`
	ExtractedFields ExtractedFieldsResponse `json:"extractedFields"`
}

// ExtractedFieldsResponse renders absent fields as null. Totals keep two
// decimal places and stay JSON numbers.
type ExtractedFieldsResponse struct {
	EntityName    *string      `json:"entityName"`
	TotalAmount   *json.Number `json:"totalAmount"`
	ReferenceCode *string      `json:"referenceCode"`
	SecondaryCode *string      `json:"secondaryCode"`
}

// ToResponse converts a record to its summary shape.
func ToResponse(rec Record) RecordResponse {
	out := RecordResponse{
		ID:         rec.ID,
		Filename:   rec.Filename,
		UploadedAt: rec.UploadedAt.UTC().Format(time.RFC3339),
		ExtractedFields: ExtractedFieldsResponse{
			EntityName:    rec.Fields.EntityName,
			ReferenceCode: rec.Fields.ReferenceCode,
			SecondaryCode: rec.Fields.SecondaryCode,
		},
	}
	if rec.Fields.TotalAmount != nil {
		n := json.Number(rec.Fields.TotalAmount.StringFixed(2))
		out.ExtractedFields.TotalAmount = &n
	}
	return out
}

// ToResponses converts a list, never returning nil.
func ToResponses(recs []Record) []RecordResponse {
	out := make([]RecordResponse, 0, len(recs))
	for _, rec := range recs {
		out = append(out, ToResponse(rec))
	}
	return out
}
