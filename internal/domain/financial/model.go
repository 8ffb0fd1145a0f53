package financial

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Kind string

const (
	KindIncome  Kind = "INCOME"
	KindExpense Kind = "EXPENSE"
)

// CategoryInventory is used for expenses booked by confirmed stock orders.
const CategoryInventory = "inventory"

type Record struct {
	ID          uuid.UUID       `json:"id"`
	Kind        Kind            `json:"kind"`
	Category    string          `json:"category"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description,omitempty"`
	PatientID   *uuid.UUID      `json:"patient_id,omitempty"`
	OrderID     *uuid.UUID      `json:"order_id,omitempty"`
	OccurredOn  time.Time       `json:"occurred_on"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Filter narrows List. Zero values are ignored.
type Filter struct {
	Kind     Kind
	Category string
	From     time.Time
	To       time.Time
}

type Totals struct {
	Income  decimal.Decimal `json:"income"`
	Expense decimal.Decimal `json:"expense"`
	Net     decimal.Decimal `json:"net"`
	Count   int             `json:"count"`
}

type CategoryTotal struct {
	Kind     Kind            `json:"kind"`
	Category string          `json:"category"`
	Total    decimal.Decimal `json:"total"`
	Count    int             `json:"count"`
}

type MonthTotal struct {
	Month   string          `json:"month"`
	Income  decimal.Decimal `json:"income"`
	Expense decimal.Decimal `json:"expense"`
	Net     decimal.Decimal `json:"net"`
}
