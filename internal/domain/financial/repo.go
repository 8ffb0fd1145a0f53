package financial

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, r *Record) error
	GetByID(ctx context.Context, id uuid.UUID) (*Record, error)
	Update(ctx context.Context, r *Record) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, f Filter, limit, offset int) ([]*Record, int, error)

	Summary(ctx context.Context, from, to time.Time) (*Totals, error)
	ByCategory(ctx context.Context, from, to time.Time) ([]CategoryTotal, error)
	Monthly(ctx context.Context, from, to time.Time) ([]MonthTotal, error)
}
