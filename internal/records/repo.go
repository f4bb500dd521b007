package records

import "context"

// Repo persists records. List and IDs never load file content.
type Repo interface {
	Create(ctx context.Context, rec NewRecord) (Record, error)
	List(ctx context.Context) ([]Record, error)
	IDs(ctx context.Context) ([]int64, error)
	Get(ctx context.Context, id int64) (Record, error)
	Ping(ctx context.Context) error
}
