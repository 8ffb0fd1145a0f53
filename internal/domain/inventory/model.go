package inventory

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Vendor struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone,omitempty"`
	Address   string    `json:"address,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// StockStatus mirrors the state of the item's most recent order. Items that
// were never reordered are COMPLETED.
type StockStatus string

const (
	StockPending   StockStatus = "PENDING"
	StockCompleted StockStatus = "COMPLETED"
	StockRejected  StockStatus = "REJECTED"
)

type StockItem struct {
	ID              uuid.UUID       `json:"id"`
	Name            string          `json:"name"`
	Quantity        int             `json:"quantity"`
	MinimumQuantity int             `json:"minimum_quantity"`
	ReorderQuantity int             `json:"reorder_quantity"`
	PricePerUnit    decimal.Decimal `json:"price_per_unit"`
	VendorID        uuid.UUID       `json:"vendor_id"`
	Status          StockStatus     `json:"status"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// IsLowStock reports whether the item is at or below its minimum.
func IsLowStock(item *StockItem) bool {
	return item.Quantity <= item.MinimumQuantity
}

type OrderStatus string

const (
	OrderPending   OrderStatus = "PENDING"
	OrderCompleted OrderStatus = "COMPLETED"
	OrderRejected  OrderStatus = "REJECTED"
)

type Order struct {
	ID              uuid.UUID   `json:"id"`
	StockItemID     uuid.UUID   `json:"stock_item_id"`
	VendorID        uuid.UUID   `json:"vendor_id"`
	Quantity        int         `json:"quantity"`
	Status          OrderStatus `json:"status"`
	RejectionReason string      `json:"rejection_reason,omitempty"`
	RequestedBy     uuid.UUID   `json:"requested_by"`
	CreatedAt       time.Time   `json:"created_at"`
	ResolvedAt      *time.Time  `json:"resolved_at,omitempty"`

	// AlreadyResolved is set when a confirm or reject found the order in the
	// requested state and changed nothing.
	AlreadyResolved bool `json:"already_resolved,omitempty"`
}

// ItemResult is the outcome of one element of a batch operation.
type ItemResult struct {
	ID              uuid.UUID  `json:"id"`
	Success         bool       `json:"success"`
	OrderID         *uuid.UUID `json:"order_id,omitempty"`
	AlreadyResolved bool       `json:"already_resolved,omitempty"`
	Error           string     `json:"error,omitempty"`
}

type BatchResult struct {
	Total     int          `json:"total"`
	Succeeded int          `json:"succeeded"`
	Failed    int          `json:"failed"`
	Summary   string       `json:"summary"`
	Items     []ItemResult `json:"items"`
}

type ReorderResult struct {
	BatchResult
	VendorID  uuid.UUID `json:"vendor_id"`
	EmailSent bool      `json:"email_sent"`
}
