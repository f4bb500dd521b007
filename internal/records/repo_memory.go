package records

import (
	"context"
	"slices"
	"sync"
)

// MemoryRepo is an in-memory Repo used when no database is configured.
type MemoryRepo struct {
	mu      sync.RWMutex
	nextID  int64
	records []Record
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{nextID: 1}
}

// Create stores rec under the next sequential ID.
func (r *MemoryRepo) Create(ctx context.Context, rec NewRecord) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := Record{
		ID:         r.nextID,
		Filename:   rec.Filename,
		Content:    append([]byte{}, rec.Content...),
		UploadedAt: rec.UploadedAt,
		Fields:     rec.Fields,
	}
	r.nextID++
	r.records = append(r.records, stored)
	return stored, nil
}

// List returns records newest first, without content.
func (r *MemoryRepo) List(ctx context.Context) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	out := make([]Record, 0, len(r.records))
	for _, rec := range r.records {
		rec.Content = nil
		out = append(out, rec)
	}
	r.mu.RUnlock()

	slices.SortStableFunc(out, func(a, b Record) int {
		if c := b.UploadedAt.Compare(a.UploadedAt); c != 0 {
			return c
		}
		switch {
		case a.ID > b.ID:
			return -1
		case a.ID < b.ID:
			return 1
		}
		return 0
	})
	return out, nil
}

// IDs returns every record ID in ascending order.
func (r *MemoryRepo) IDs(ctx context.Context) ([]int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]int64, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, rec.ID)
	}
	return out, nil
}

// Get returns a copy of the record including content.
func (r *MemoryRepo) Get(ctx context.Context, id int64) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, rec := range r.records {
		if rec.ID == id {
			rec.Content = append([]byte{}, rec.Content...)
			return rec, nil
		}
	}
	return Record{}, ErrNotFound
}

// Ping always succeeds.
func (r *MemoryRepo) Ping(context.Context) error {
	return nil
}
