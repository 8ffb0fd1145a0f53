package inventory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/clinic/dashboard/internal/domain/notification"
)

// -- Mock repositories --

type mockVendorRepo struct {
	mu      sync.Mutex
	vendors map[uuid.UUID]*Vendor
}

func (m *mockVendorRepo) Create(_ context.Context, v *Vendor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	v.ID = uuid.New()
	v.CreatedAt = time.Now()
	cp := *v
	m.vendors[v.ID] = &cp
	return nil
}

func (m *mockVendorRepo) GetByID(_ context.Context, id uuid.UUID) (*Vendor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.vendors[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *v
	return &cp, nil
}

func (m *mockVendorRepo) Update(_ context.Context, v *Vendor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.vendors[v.ID]; !ok {
		return pgx.ErrNoRows
	}
	cp := *v
	m.vendors[v.ID] = &cp
	return nil
}

func (m *mockVendorRepo) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.vendors[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(m.vendors, id)
	return nil
}

func (m *mockVendorRepo) List(_ context.Context, limit, offset int) ([]*Vendor, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Vendor
	for _, v := range m.vendors {
		out = append(out, v)
	}
	return out, len(out), nil
}

type mockStockRepo struct {
	mu    sync.Mutex
	items map[uuid.UUID]*StockItem

	// beforeMarkPending runs before each MarkPending, outside the lock.
	beforeMarkPending func(id uuid.UUID)
}

func (m *mockStockRepo) Create(_ context.Context, item *StockItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	item.ID = uuid.New()
	item.CreatedAt = time.Now()
	item.UpdatedAt = item.CreatedAt
	cp := *item
	m.items[item.ID] = &cp
	return nil
}

func (m *mockStockRepo) GetByID(_ context.Context, id uuid.UUID) (*StockItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *item
	return &cp, nil
}

func (m *mockStockRepo) Update(_ context.Context, item *StockItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.items[item.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	item.Status = stored.Status
	cp := *item
	m.items[item.ID] = &cp
	return nil
}

func (m *mockStockRepo) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(m.items, id)
	return nil
}

func (m *mockStockRepo) List(ctx context.Context, lowOnly bool, limit, offset int) ([]*StockItem, int, error) {
	all, _ := m.ListAll(ctx)
	var out []*StockItem
	for _, item := range all {
		if !lowOnly || IsLowStock(item) {
			out = append(out, item)
		}
	}
	return out, len(out), nil
}

func (m *mockStockRepo) ListAll(_ context.Context) ([]*StockItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*StockItem
	for _, item := range m.items {
		cp := *item
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *mockStockRepo) MarkPending(_ context.Context, id, vendorID uuid.UUID) (*StockItem, error) {
	if m.beforeMarkPending != nil {
		m.beforeMarkPending(id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[id]
	if !ok || item.Status == StockPending || item.VendorID != vendorID || !IsLowStock(item) {
		return nil, pgx.ErrNoRows
	}
	item.Status = StockPending
	cp := *item
	return &cp, nil
}

func (m *mockStockRepo) Restock(_ context.Context, id uuid.UUID, quantity int) (*StockItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	item.Quantity += quantity
	item.Status = StockCompleted
	cp := *item
	return &cp, nil
}

func (m *mockStockRepo) SetStatus(_ context.Context, id uuid.UUID, status StockStatus) (*StockItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	item.Status = status
	cp := *item
	return &cp, nil
}

type mockOrderRepo struct {
	mu     sync.Mutex
	orders map[uuid.UUID]*Order
}

func (m *mockOrderRepo) Create(_ context.Context, o *Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.orders {
		if existing.StockItemID == o.StockItemID && existing.Status == OrderPending {
			return &pgconn.PgError{Code: "23505"}
		}
	}
	o.ID = uuid.New()
	o.CreatedAt = time.Now()
	cp := *o
	m.orders[o.ID] = &cp
	return nil
}

func (m *mockOrderRepo) GetByID(_ context.Context, id uuid.UUID) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *o
	return &cp, nil
}

func (m *mockOrderRepo) List(_ context.Context, status OrderStatus, limit, offset int) ([]*Order, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Order
	for _, o := range m.orders {
		if status == "" || o.Status == status {
			out = append(out, o)
		}
	}
	return out, len(out), nil
}

func (m *mockOrderRepo) Resolve(_ context.Context, id uuid.UUID, status OrderStatus, reason string) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok || o.Status != OrderPending {
		return nil, pgx.ErrNoRows
	}
	now := time.Now()
	o.Status = status
	o.RejectionReason = reason
	o.ResolvedAt = &now
	cp := *o
	return &cp, nil
}

func (m *mockOrderRepo) pending() []*Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Order
	for _, o := range m.orders {
		if o.Status == OrderPending {
			cp := *o
			out = append(out, &cp)
		}
	}
	return out
}

// -- Collaborators --

type directTx struct{}

func (directTx) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type expense struct {
	orderID uuid.UUID
	amount  decimal.Decimal
}

type recordingExpenses struct {
	mu       sync.Mutex
	recorded []expense
}

func (r *recordingExpenses) RecordOrderExpense(_ context.Context, orderID uuid.UUID, amount decimal.Decimal, _ string, _ time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recorded = append(r.recorded, expense{orderID, amount})
	return nil
}

type sentNotification struct {
	userID uuid.UUID
	title  string
	msg    string
	kind   notification.Type
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentNotification
}

func (n *recordingNotifier) Notify(_ context.Context, userID uuid.UUID, title, msg string, kind notification.Type) (*notification.Notification, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentNotification{userID, title, msg, kind})
	return &notification.Notification{ID: uuid.New(), UserID: userID, Title: title, Message: msg, Type: kind}, nil
}

func (n *recordingNotifier) all() []sentNotification {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]sentNotification, len(n.sent))
	copy(out, n.sent)
	return out
}
