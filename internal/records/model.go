package records

import (
	"time"

	"invoice-backend/internal/fields"
)

// Record is one ingested PDF with whatever fields could be extracted from it.
// Content is only populated by Repo.Get.
type Record struct {
	ID         int64
	Filename   string
	Content    []byte
	UploadedAt time.Time
	Fields     fields.Fields
}

// NewRecord is the insert payload; the store assigns the ID.
type NewRecord struct {
	Filename   string
	Content    []byte
	UploadedAt time.Time
	Fields     fields.Fields
}
