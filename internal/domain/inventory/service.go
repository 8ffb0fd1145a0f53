package inventory

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/clinic/dashboard/internal/domain/notification"
	"github.com/clinic/dashboard/internal/platform/apperr"
	"github.com/clinic/dashboard/internal/platform/linktoken"
	"github.com/clinic/dashboard/internal/platform/metrics"
)

// TxRunner runs fn inside one database transaction carried by ctx.
type TxRunner interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// ExpenseRecorder books the cost of a delivered order. It runs inside the
// confirming transaction.
type ExpenseRecorder interface {
	RecordOrderExpense(ctx context.Context, orderID uuid.UUID, amount decimal.Decimal, description string, occurredOn time.Time) error
}

type Notifier interface {
	Notify(ctx context.Context, userID uuid.UUID, title, message string, kind notification.Type) (*notification.Notification, error)
}

type MailSender interface {
	SendTemplate(ctx context.Context, to, templateID string, data, metadata map[string]string) error
}

type Deps struct {
	Vendors  VendorRepository
	Stock    StockRepository
	Orders   OrderRepository
	Tx       TxRunner
	Expenses ExpenseRecorder
	Notifier Notifier
	Mailer   MailSender
	Links    *linktoken.Issuer
	Metrics  *metrics.Metrics
	Logger   zerolog.Logger

	// PracticeName signs purchase-order emails. PublicBaseURL is the
	// externally reachable root used to build the confirm and reject links.
	PracticeName  string
	PublicBaseURL string
}

type Service struct {
	vendors  VendorRepository
	stock    StockRepository
	orders   OrderRepository
	tx       TxRunner
	expenses ExpenseRecorder
	notifier Notifier
	mailer   MailSender
	links    *linktoken.Issuer
	metrics  *metrics.Metrics
	logger   zerolog.Logger

	practice string
	baseURL  string
	now      func() time.Time
}

func NewService(d Deps) *Service {
	return &Service{
		vendors:  d.Vendors,
		stock:    d.Stock,
		orders:   d.Orders,
		tx:       d.Tx,
		expenses: d.Expenses,
		notifier: d.Notifier,
		mailer:   d.Mailer,
		links:    d.Links,
		metrics:  d.Metrics,
		logger:   d.Logger,
		practice: d.PracticeName,
		baseURL:  strings.TrimRight(d.PublicBaseURL, "/"),
		now:      time.Now,
	}
}

// -- Vendors --

func validateVendor(v *Vendor) error {
	v.Name = strings.TrimSpace(v.Name)
	v.Email = strings.TrimSpace(v.Email)
	if v.Name == "" {
		return apperr.Validation("name is required")
	}
	if !strings.Contains(v.Email, "@") {
		return apperr.Validation("a valid email is required")
	}
	return nil
}

func (s *Service) CreateVendor(ctx context.Context, v *Vendor) error {
	if err := validateVendor(v); err != nil {
		return err
	}
	if err := s.vendors.Create(ctx, v); err != nil {
		return apperr.Dependency(err, "could not create vendor")
	}
	return nil
}

func (s *Service) GetVendor(ctx context.Context, id uuid.UUID) (*Vendor, error) {
	v, err := s.vendors.GetByID(ctx, id)
	if apperr.IsNoRows(err) {
		return nil, apperr.NotFound("vendor %s not found", id)
	}
	if err != nil {
		return nil, apperr.Dependency(err, "could not load vendor")
	}
	return v, nil
}

func (s *Service) UpdateVendor(ctx context.Context, v *Vendor) error {
	if err := validateVendor(v); err != nil {
		return err
	}
	err := s.vendors.Update(ctx, v)
	if apperr.IsNoRows(err) {
		return apperr.NotFound("vendor %s not found", v.ID)
	}
	if err != nil {
		return apperr.Dependency(err, "could not update vendor")
	}
	return nil
}

func (s *Service) DeleteVendor(ctx context.Context, id uuid.UUID) error {
	err := s.vendors.Delete(ctx, id)
	if apperr.IsNoRows(err) {
		return apperr.NotFound("vendor %s not found", id)
	}
	if apperr.IsForeignKeyViolation(err) {
		return apperr.Conflict("vendor %s still supplies stock items or orders", id)
	}
	if err != nil {
		return apperr.Dependency(err, "could not delete vendor")
	}
	return nil
}

func (s *Service) ListVendors(ctx context.Context, limit, offset int) ([]*Vendor, int, error) {
	items, total, err := s.vendors.List(ctx, limit, offset)
	if err != nil {
		return nil, 0, apperr.Dependency(err, "could not list vendors")
	}
	return items, total, nil
}

// -- Stock items --

func (s *Service) validateStockItem(ctx context.Context, item *StockItem) error {
	item.Name = strings.TrimSpace(item.Name)
	switch {
	case item.Name == "":
		return apperr.Validation("name is required")
	case item.Quantity < 0 || item.MinimumQuantity < 0:
		return apperr.Validation("quantity and minimum_quantity cannot be negative")
	case item.ReorderQuantity <= 0:
		return apperr.Validation("reorder_quantity must be positive")
	case item.PricePerUnit.IsNegative():
		return apperr.Validation("price_per_unit cannot be negative")
	case !item.PricePerUnit.Equal(item.PricePerUnit.Round(2)):
		return apperr.Validation("price_per_unit has more than two decimal places")
	case item.VendorID == uuid.Nil:
		return apperr.Validation("vendor_id is required")
	}
	if _, err := s.vendors.GetByID(ctx, item.VendorID); err != nil {
		if apperr.IsNoRows(err) {
			return apperr.Validation("vendor %s does not exist", item.VendorID)
		}
		return apperr.Dependency(err, "could not load vendor")
	}
	return nil
}

func (s *Service) CreateStockItem(ctx context.Context, item *StockItem) error {
	if err := s.validateStockItem(ctx, item); err != nil {
		return err
	}
	item.Status = StockCompleted
	if err := s.stock.Create(ctx, item); err != nil {
		return apperr.Dependency(err, "could not create stock item")
	}
	return nil
}

func (s *Service) GetStockItem(ctx context.Context, id uuid.UUID) (*StockItem, error) {
	item, err := s.stock.GetByID(ctx, id)
	if apperr.IsNoRows(err) {
		return nil, apperr.NotFound("stock item %s not found", id)
	}
	if err != nil {
		return nil, apperr.Dependency(err, "could not load stock item")
	}
	return item, nil
}

// UpdateStockItem edits an item. Status only changes through orders, so any
// status on item is overwritten with the stored one.
func (s *Service) UpdateStockItem(ctx context.Context, item *StockItem) error {
	if err := s.validateStockItem(ctx, item); err != nil {
		return err
	}
	err := s.stock.Update(ctx, item)
	if apperr.IsNoRows(err) {
		return apperr.NotFound("stock item %s not found", item.ID)
	}
	if err != nil {
		return apperr.Dependency(err, "could not update stock item")
	}
	return nil
}

func (s *Service) DeleteStockItem(ctx context.Context, id uuid.UUID) error {
	err := s.stock.Delete(ctx, id)
	if apperr.IsNoRows(err) {
		return apperr.NotFound("stock item %s not found", id)
	}
	if apperr.IsForeignKeyViolation(err) {
		return apperr.Conflict("stock item %s has orders and cannot be deleted", id)
	}
	if err != nil {
		return apperr.Dependency(err, "could not delete stock item")
	}
	return nil
}

func (s *Service) ListStockItems(ctx context.Context, lowOnly bool, limit, offset int) ([]*StockItem, int, error) {
	items, total, err := s.stock.List(ctx, lowOnly, limit, offset)
	if err != nil {
		return nil, 0, apperr.Dependency(err, "could not list stock items")
	}
	return items, total, nil
}

// dedupe drops repeated ids, keeping first-seen order.
func dedupe(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
