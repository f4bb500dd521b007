package object

import (
	"context"
	"fmt"
	"io"
	"path"
	"strconv"

	"github.com/google/uuid"

	"invoice-backend/internal/shared/util"
)

// Store archives raw uploads outside the record database.
type Store interface {
	Put(ctx context.Context, key string, contentType string, r io.Reader) (int64, error)
}

// RecordKey builds the archive key for a record's original file. The random
// segment keeps re-uploads of the same name from overwriting each other.
func RecordKey(recordID int64, fileName string) (string, error) {
	name, err := util.SanitizeFileName(fileName)
	if err != nil {
		return "", fmt.Errorf("sanitize file name: %w", err)
	}
	return path.Join("records", strconv.FormatInt(recordID, 10), uuid.NewString()+"_"+name), nil
}
