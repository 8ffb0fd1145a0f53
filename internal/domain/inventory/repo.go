package inventory

import (
	"context"

	"github.com/google/uuid"
)

// Lookups and conditional updates return pgx.ErrNoRows when no row matched.

type VendorRepository interface {
	Create(ctx context.Context, v *Vendor) error
	GetByID(ctx context.Context, id uuid.UUID) (*Vendor, error)
	Update(ctx context.Context, v *Vendor) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, limit, offset int) ([]*Vendor, int, error)
}

type StockRepository interface {
	Create(ctx context.Context, item *StockItem) error
	GetByID(ctx context.Context, id uuid.UUID) (*StockItem, error)
	// Update writes the editable fields. Status is left alone.
	Update(ctx context.Context, item *StockItem) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, lowOnly bool, limit, offset int) ([]*StockItem, int, error)
	ListAll(ctx context.Context) ([]*StockItem, error)
	// MarkPending flips an item to PENDING only while it has no open order,
	// is still at or below its minimum and is still supplied by vendorID.
	MarkPending(ctx context.Context, id, vendorID uuid.UUID) (*StockItem, error)
	// Restock adds quantity and marks the item COMPLETED.
	Restock(ctx context.Context, id uuid.UUID, quantity int) (*StockItem, error)
	SetStatus(ctx context.Context, id uuid.UUID, status StockStatus) (*StockItem, error)
}

type OrderRepository interface {
	Create(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id uuid.UUID) (*Order, error)
	List(ctx context.Context, status OrderStatus, limit, offset int) ([]*Order, int, error)
	// Resolve moves a PENDING order to status.
	Resolve(ctx context.Context, id uuid.UUID, status OrderStatus, reason string) (*Order, error)
}
