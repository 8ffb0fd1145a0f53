package inventory

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinic/dashboard/internal/platform/db"
)

// -- Vendors --

type vendorRepoPG struct {
	pool *pgxpool.Pool
}

func NewVendorRepo(pool *pgxpool.Pool) VendorRepository {
	return &vendorRepoPG{pool: pool}
}

const vendorCols = `id, name, email, phone, address, created_at`

func (r *vendorRepoPG) Create(ctx context.Context, v *Vendor) error {
	v.ID = uuid.New()
	return db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO vendors (id, name, email, phone, address)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING created_at`,
		v.ID, v.Name, v.Email, v.Phone, v.Address,
	).Scan(&v.CreatedAt)
}

func (r *vendorRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Vendor, error) {
	return scanVendor(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+vendorCols+` FROM vendors WHERE id = $1`, id))
}

func (r *vendorRepoPG) Update(ctx context.Context, v *Vendor) error {
	return db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE vendors SET name=$2, email=$3, phone=$4, address=$5
		WHERE id = $1
		RETURNING created_at`,
		v.ID, v.Name, v.Email, v.Phone, v.Address,
	).Scan(&v.CreatedAt)
}

func (r *vendorRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM vendors WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *vendorRepoPG) List(ctx context.Context, limit, offset int) ([]*Vendor, int, error) {
	q := db.Conn(ctx, r.pool)
	var total int
	if err := q.QueryRow(ctx, `SELECT COUNT(*) FROM vendors`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := q.Query(ctx, `SELECT `+vendorCols+` FROM vendors ORDER BY name LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	items := []*Vendor{}
	for rows.Next() {
		v, err := scanVendor(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, v)
	}
	return items, total, rows.Err()
}

func scanVendor(row pgx.Row) (*Vendor, error) {
	var v Vendor
	if err := row.Scan(&v.ID, &v.Name, &v.Email, &v.Phone, &v.Address, &v.CreatedAt); err != nil {
		return nil, err
	}
	return &v, nil
}

// -- Stock items --

type stockRepoPG struct {
	pool *pgxpool.Pool
}

func NewStockRepo(pool *pgxpool.Pool) StockRepository {
	return &stockRepoPG{pool: pool}
}

const stockCols = `id, name, quantity, minimum_quantity, reorder_quantity, price_per_unit, vendor_id, status, created_at, updated_at`

func (r *stockRepoPG) Create(ctx context.Context, item *StockItem) error {
	item.ID = uuid.New()
	return db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO stock_items (id, name, quantity, minimum_quantity, reorder_quantity, price_per_unit, vendor_id, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING created_at, updated_at`,
		item.ID, item.Name, item.Quantity, item.MinimumQuantity, item.ReorderQuantity, item.PricePerUnit, item.VendorID, item.Status,
	).Scan(&item.CreatedAt, &item.UpdatedAt)
}

func (r *stockRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*StockItem, error) {
	return scanStockItem(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+stockCols+` FROM stock_items WHERE id = $1`, id))
}

func (r *stockRepoPG) Update(ctx context.Context, item *StockItem) error {
	return db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE stock_items
		SET name=$2, quantity=$3, minimum_quantity=$4, reorder_quantity=$5, price_per_unit=$6, vendor_id=$7, updated_at=now()
		WHERE id = $1
		RETURNING status, created_at, updated_at`,
		item.ID, item.Name, item.Quantity, item.MinimumQuantity, item.ReorderQuantity, item.PricePerUnit, item.VendorID,
	).Scan(&item.Status, &item.CreatedAt, &item.UpdatedAt)
}

func (r *stockRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM stock_items WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *stockRepoPG) List(ctx context.Context, lowOnly bool, limit, offset int) ([]*StockItem, int, error) {
	where := ""
	if lowOnly {
		where = " WHERE quantity <= minimum_quantity"
	}
	q := db.Conn(ctx, r.pool)
	var total int
	if err := q.QueryRow(ctx, `SELECT COUNT(*) FROM stock_items`+where).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := q.Query(ctx, `SELECT `+stockCols+` FROM stock_items`+where+` ORDER BY name LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	items, err := collectStockItems(rows)
	return items, total, err
}

func (r *stockRepoPG) ListAll(ctx context.Context) ([]*StockItem, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `SELECT `+stockCols+` FROM stock_items ORDER BY name`)
	if err != nil {
		return nil, err
	}
	return collectStockItems(rows)
}

func (r *stockRepoPG) MarkPending(ctx context.Context, id, vendorID uuid.UUID) (*StockItem, error) {
	return scanStockItem(db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE stock_items SET status = 'PENDING', updated_at = now()
		WHERE id = $1 AND vendor_id = $2 AND quantity <= minimum_quantity AND status <> 'PENDING'
		RETURNING `+stockCols, id, vendorID))
}

func (r *stockRepoPG) Restock(ctx context.Context, id uuid.UUID, quantity int) (*StockItem, error) {
	return scanStockItem(db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE stock_items SET quantity = quantity + $2, status = 'COMPLETED', updated_at = now()
		WHERE id = $1
		RETURNING `+stockCols, id, quantity))
}

func (r *stockRepoPG) SetStatus(ctx context.Context, id uuid.UUID, status StockStatus) (*StockItem, error) {
	return scanStockItem(db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE stock_items SET status = $2, updated_at = now()
		WHERE id = $1
		RETURNING `+stockCols, id, status))
}

func collectStockItems(rows pgx.Rows) ([]*StockItem, error) {
	defer rows.Close()
	items := []*StockItem{}
	for rows.Next() {
		item, err := scanStockItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func scanStockItem(row pgx.Row) (*StockItem, error) {
	var s StockItem
	err := row.Scan(&s.ID, &s.Name, &s.Quantity, &s.MinimumQuantity, &s.ReorderQuantity, &s.PricePerUnit,
		&s.VendorID, &s.Status, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// -- Orders --

type orderRepoPG struct {
	pool *pgxpool.Pool
}

func NewOrderRepo(pool *pgxpool.Pool) OrderRepository {
	return &orderRepoPG{pool: pool}
}

const orderCols = `id, stock_item_id, vendor_id, quantity, status, rejection_reason, requested_by, created_at, resolved_at`

func (r *orderRepoPG) Create(ctx context.Context, o *Order) error {
	o.ID = uuid.New()
	return db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO orders (id, stock_item_id, vendor_id, quantity, status, requested_by)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING created_at`,
		o.ID, o.StockItemID, o.VendorID, o.Quantity, o.Status, o.RequestedBy,
	).Scan(&o.CreatedAt)
}

func (r *orderRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Order, error) {
	return scanOrder(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+orderCols+` FROM orders WHERE id = $1`, id))
}

func (r *orderRepoPG) List(ctx context.Context, status OrderStatus, limit, offset int) ([]*Order, int, error) {
	q := db.Conn(ctx, r.pool)
	var total int
	if err := q.QueryRow(ctx, `SELECT COUNT(*) FROM orders WHERE ($1 = '' OR status = $1)`, string(status)).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := q.Query(ctx, `SELECT `+orderCols+` FROM orders
		WHERE ($1 = '' OR status = $1)
		ORDER BY created_at DESC LIMIT $2 OFFSET $3`, string(status), limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	items := []*Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, o)
	}
	return items, total, rows.Err()
}

func (r *orderRepoPG) Resolve(ctx context.Context, id uuid.UUID, status OrderStatus, reason string) (*Order, error) {
	return scanOrder(db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE orders SET status = $2, rejection_reason = $3, resolved_at = now()
		WHERE id = $1 AND status = 'PENDING'
		RETURNING `+orderCols, id, status, reason))
}

func scanOrder(row pgx.Row) (*Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.StockItemID, &o.VendorID, &o.Quantity, &o.Status, &o.RejectionReason,
		&o.RequestedBy, &o.CreatedAt, &o.ResolvedAt)
	if err != nil {
		return nil, err
	}
	return &o, nil
}
