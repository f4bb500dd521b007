package records

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"invoice-backend/internal/fields"
)

// SQLRepo implements Repo on database/sql. The queries run unchanged on
// Postgres (pgx) and SQLite (modernc).
type SQLRepo struct {
	DB *sql.DB
}

// Create inserts rec inside a transaction and returns it with its new ID.
func (r *SQLRepo) Create(ctx context.Context, rec NewRecord) (Record, error) {
	const query = `
INSERT INTO records (
    filename,
    content,
    uploaded_at,
    entity_name,
    total_amount,
    reference_code,
    secondary_code
) VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id`

	content := rec.Content
	if content == nil {
		content = []byte{}
	}

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return Record{}, fmt.Errorf("%w: begin insert: %v", ErrStore, err)
	}

	var id int64
	err = tx.QueryRowContext(
		ctx,
		query,
		rec.Filename,
		content,
		rec.UploadedAt,
		nullString(rec.Fields.EntityName),
		nullDecimal(rec.Fields.TotalAmount),
		nullString(rec.Fields.ReferenceCode),
		nullString(rec.Fields.SecondaryCode),
	).Scan(&id)
	if err != nil {
		_ = tx.Rollback()
		return Record{}, fmt.Errorf("%w: insert record: %v", ErrStore, err)
	}
	if err := tx.Commit(); err != nil {
		return Record{}, fmt.Errorf("%w: commit record: %v", ErrStore, err)
	}

	return Record{
		ID:         id,
		Filename:   rec.Filename,
		Content:    content,
		UploadedAt: rec.UploadedAt,
		Fields:     rec.Fields,
	}, nil
}

// List returns every record, newest first, without content.
func (r *SQLRepo) List(ctx context.Context) ([]Record, error) {
	const query = `
SELECT id, filename, uploaded_at, entity_name, total_amount, reference_code, secondary_code
FROM records
ORDER BY uploaded_at DESC, id DESC`

	rows, err := r.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: list records: %v", ErrStore, err)
	}
	defer rows.Close()

	out := make([]Record, 0)
	for rows.Next() {
		var rec Record
		var cols fieldColumns
		if err := rows.Scan(&rec.ID, &rec.Filename, &rec.UploadedAt, &cols.entity, &cols.total, &cols.reference, &cols.secondary); err != nil {
			return nil, fmt.Errorf("%w: scan record: %v", ErrStore, err)
		}
		rec.UploadedAt = rec.UploadedAt.UTC()
		rec.Fields = cols.fields()
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list records: %v", ErrStore, err)
	}
	return out, nil
}

// IDs returns the identity of every stored record in ascending order.
func (r *SQLRepo) IDs(ctx context.Context) ([]int64, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id FROM records ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("%w: list record ids: %v", ErrStore, err)
	}
	defer rows.Close()

	out := make([]int64, 0)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("%w: scan record id: %v", ErrStore, err)
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list record ids: %v", ErrStore, err)
	}
	return out, nil
}

// Get loads one record including its content.
func (r *SQLRepo) Get(ctx context.Context, id int64) (Record, error) {
	const query = `
SELECT id, filename, content, uploaded_at, entity_name, total_amount, reference_code, secondary_code
FROM records
WHERE id = $1`

	var rec Record
	var cols fieldColumns
	err := r.DB.QueryRowContext(ctx, query, id).Scan(
		&rec.ID,
		&rec.Filename,
		&rec.Content,
		&rec.UploadedAt,
		&cols.entity,
		&cols.total,
		&cols.reference,
		&cols.secondary,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("%w: get record: %v", ErrStore, err)
	}
	rec.UploadedAt = rec.UploadedAt.UTC()
	rec.Fields = cols.fields()
	return rec, nil
}

// Ping reports whether the database is reachable.
func (r *SQLRepo) Ping(ctx context.Context) error {
	return r.DB.PingContext(ctx)
}

type fieldColumns struct {
	entity    sql.NullString
	total     decimal.NullDecimal
	reference sql.NullString
	secondary sql.NullString
}

func (c fieldColumns) fields() fields.Fields {
	var f fields.Fields
	f.EntityName = stringPtr(c.entity)
	f.ReferenceCode = stringPtr(c.reference)
	f.SecondaryCode = stringPtr(c.secondary)
	if c.total.Valid {
		amount := c.total.Decimal
		f.TotalAmount = &amount
	}
	return f
}

func nullString(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}

func nullDecimal(v *decimal.Decimal) decimal.NullDecimal {
	if v == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *v, Valid: true}
}

func stringPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}
