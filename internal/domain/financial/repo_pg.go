package financial

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinic/dashboard/internal/platform/db"
)

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

const recordCols = `id, kind, category, amount, description, patient_id, order_id, occurred_on, created_at`

func (r *repoPG) Create(ctx context.Context, rec *Record) error {
	rec.ID = uuid.New()
	return db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO financial_records (id, kind, category, amount, description, patient_id, order_id, occurred_on)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING created_at`,
		rec.ID, rec.Kind, rec.Category, rec.Amount, rec.Description, rec.PatientID, rec.OrderID, rec.OccurredOn,
	).Scan(&rec.CreatedAt)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Record, error) {
	return scanRecord(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+recordCols+` FROM financial_records WHERE id = $1`, id))
}

func (r *repoPG) Update(ctx context.Context, rec *Record) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE financial_records SET kind=$2, category=$3, amount=$4, description=$5, patient_id=$6, occurred_on=$7
		WHERE id = $1`,
		rec.ID, rec.Kind, rec.Category, rec.Amount, rec.Description, rec.PatientID, rec.OccurredOn)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM financial_records WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// filterSQL renders f as a WHERE clause with positional arguments.
func filterSQL(f Filter) (string, []interface{}) {
	var conds []string
	var args []interface{}
	add := func(cond string, v interface{}) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.Kind != "" {
		add("kind = $%d", f.Kind)
	}
	if f.Category != "" {
		add("category = $%d", f.Category)
	}
	if !f.From.IsZero() {
		add("occurred_on >= $%d", f.From)
	}
	if !f.To.IsZero() {
		add("occurred_on <= $%d", f.To)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (r *repoPG) List(ctx context.Context, f Filter, limit, offset int) ([]*Record, int, error) {
	q := db.Conn(ctx, r.pool)
	where, args := filterSQL(f)

	var total int
	if err := q.QueryRow(ctx, `SELECT COUNT(*) FROM financial_records`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	n := len(args)
	args = append(args, limit, offset)
	rows, err := q.Query(ctx, fmt.Sprintf(`SELECT %s FROM financial_records%s
		ORDER BY occurred_on DESC, created_at DESC LIMIT $%d OFFSET $%d`, recordCols, where, n+1, n+2), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	records := []*Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, 0, err
		}
		records = append(records, rec)
	}
	return records, total, rows.Err()
}

func (r *repoPG) Summary(ctx context.Context, from, to time.Time) (*Totals, error) {
	var t Totals
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		SELECT
			COALESCE(SUM(amount) FILTER (WHERE kind = 'INCOME'), 0),
			COALESCE(SUM(amount) FILTER (WHERE kind = 'EXPENSE'), 0),
			COUNT(*)
		FROM financial_records
		WHERE occurred_on BETWEEN $1 AND $2`, from, to,
	).Scan(&t.Income, &t.Expense, &t.Count)
	if err != nil {
		return nil, err
	}
	t.Net = t.Income.Sub(t.Expense)
	return &t, nil
}

func (r *repoPG) ByCategory(ctx context.Context, from, to time.Time) ([]CategoryTotal, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `
		SELECT kind, category, SUM(amount), COUNT(*)
		FROM financial_records
		WHERE occurred_on BETWEEN $1 AND $2
		GROUP BY kind, category
		ORDER BY kind, SUM(amount) DESC`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []CategoryTotal{}
	for rows.Next() {
		var ct CategoryTotal
		if err := rows.Scan(&ct.Kind, &ct.Category, &ct.Total, &ct.Count); err != nil {
			return nil, err
		}
		out = append(out, ct)
	}
	return out, rows.Err()
}

func (r *repoPG) Monthly(ctx context.Context, from, to time.Time) ([]MonthTotal, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `
		SELECT
			to_char(date_trunc('month', occurred_on), 'YYYY-MM'),
			COALESCE(SUM(amount) FILTER (WHERE kind = 'INCOME'), 0),
			COALESCE(SUM(amount) FILTER (WHERE kind = 'EXPENSE'), 0)
		FROM financial_records
		WHERE occurred_on BETWEEN $1 AND $2
		GROUP BY 1
		ORDER BY 1`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []MonthTotal{}
	for rows.Next() {
		var m MonthTotal
		if err := rows.Scan(&m.Month, &m.Income, &m.Expense); err != nil {
			return nil, err
		}
		m.Net = m.Income.Sub(m.Expense)
		out = append(out, m)
	}
	return out, rows.Err()
}

func scanRecord(row pgx.Row) (*Record, error) {
	var rec Record
	err := row.Scan(&rec.ID, &rec.Kind, &rec.Category, &rec.Amount, &rec.Description,
		&rec.PatientID, &rec.OrderID, &rec.OccurredOn, &rec.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}
