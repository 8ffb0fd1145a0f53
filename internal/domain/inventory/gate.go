package inventory

import (
	"fmt"

	"github.com/google/uuid"
)

type Decision string

const (
	DecisionEnabled        Decision = "ENABLED"
	DecisionNoLowStock     Decision = "DISABLED_NO_LOW_STOCK"
	DecisionEmptySelection Decision = "DISABLED_EMPTY_SELECTION"
	DecisionNotAllLowStock Decision = "DISABLED_NOT_ALL_LOW_STOCK"
	DecisionMixedVendor    Decision = "DISABLED_MIXED_VENDOR"
)

// ReorderGate says whether the bulk reorder action applies to a selection.
// Offered is false when the inventory has nothing to reorder at all, in which
// case the action should not be shown.
type ReorderGate struct {
	Decision Decision   `json:"decision"`
	Offered  bool       `json:"offered"`
	VendorID *uuid.UUID `json:"vendor_id,omitempty"`
}

func (g ReorderGate) Enabled() bool { return g.Decision == DecisionEnabled }

// EvaluateReorder decides whether the selected ids out of items may be
// reordered together. Selected ids must all be low-stock items that share one
// vendor.
func EvaluateReorder(selected []uuid.UUID, items []*StockItem) ReorderGate {
	byID := make(map[uuid.UUID]*StockItem, len(items))
	anyLow := false
	for _, item := range items {
		byID[item.ID] = item
		if IsLowStock(item) {
			anyLow = true
		}
	}
	if !anyLow {
		return ReorderGate{Decision: DecisionNoLowStock}
	}
	if len(selected) == 0 {
		return ReorderGate{Decision: DecisionEmptySelection, Offered: true}
	}

	vendors := make(map[uuid.UUID]struct{})
	var vendor uuid.UUID
	for _, id := range selected {
		item, ok := byID[id]
		if !ok || !IsLowStock(item) {
			return ReorderGate{Decision: DecisionNotAllLowStock, Offered: true}
		}
		vendors[item.VendorID] = struct{}{}
		vendor = item.VendorID
	}
	if len(vendors) > 1 {
		return ReorderGate{Decision: DecisionMixedVendor, Offered: true}
	}
	return ReorderGate{Decision: DecisionEnabled, Offered: true, VendorID: &vendor}
}

// ReorderBlockedError is returned, wrapped in a validation error, when a
// reorder is attempted on a selection the gate does not allow.
type ReorderBlockedError struct {
	Gate ReorderGate
}

func (e *ReorderBlockedError) Error() string {
	return fmt.Sprintf("reorder not allowed: %s", e.Gate.Decision)
}

var blockedMessages = map[Decision]string{
	DecisionNoLowStock:     "no stock item is at or below its minimum quantity",
	DecisionEmptySelection: "select at least one stock item to reorder",
	DecisionNotAllLowStock: "every selected item must be at or below its minimum quantity",
	DecisionMixedVendor:    "selected items must all come from the same vendor",
}
