package scheduling

import (
	"context"
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

const appointmentCols = `id, patient_id, requested_by, staff_id, scheduled_at, duration_minutes,
	reason, status, response_note, created_at, updated_at`

func (r *repoPG) Create(ctx context.Context, a *Appointment) error {
	a.ID = uuid.New()
	return db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO appointments (id, patient_id, requested_by, staff_id, scheduled_at, duration_minutes, reason, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING created_at, updated_at`,
		a.ID, a.PatientID, a.RequestedBy, a.StaffID, a.ScheduledAt, a.DurationMinutes, a.Reason, a.Status,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return scanAppointment(db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+appointmentCols+` FROM appointments WHERE id = $1`, id))
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	q := db.Conn(ctx, r.pool)
	var total int
	if err := q.QueryRow(ctx, `SELECT COUNT(*) FROM appointments WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := q.Query(ctx, `SELECT `+appointmentCols+` FROM appointments
		WHERE patient_id = $1 ORDER BY scheduled_at DESC LIMIT $2 OFFSET $3`, patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	items, err := collect(rows)
	return items, total, err
}

func (r *repoPG) ListUpcoming(ctx context.Context, from time.Time, limit, offset int) ([]*Appointment, int, error) {
	q := db.Conn(ctx, r.pool)
	const where = `WHERE scheduled_at >= $1 AND status IN ('REQUESTED', 'CONFIRMED')`
	var total int
	if err := q.QueryRow(ctx, `SELECT COUNT(*) FROM appointments `+where, from).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := q.Query(ctx, `SELECT `+appointmentCols+` FROM appointments `+where+`
		ORDER BY scheduled_at LIMIT $2 OFFSET $3`, from, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	items, err := collect(rows)
	return items, total, err
}

func (r *repoPG) Transition(ctx context.Context, t Transition) (*Appointment, error) {
	from := make([]string, len(t.From))
	for i, s := range t.From {
		from[i] = string(s)
	}
	return scanAppointment(db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE appointments SET
			status = $3,
			staff_id = COALESCE($4, staff_id),
			response_note = CASE WHEN $5 = '' THEN response_note ELSE $5 END,
			updated_at = now()
		WHERE id = $1 AND status = ANY($2)
		RETURNING `+appointmentCols,
		t.ID, from, t.To, t.StaffID, t.Note))
}

func collect(rows pgx.Rows) ([]*Appointment, error) {
	defer rows.Close()
	items := []*Appointment{}
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(&a.ID, &a.PatientID, &a.RequestedBy, &a.StaffID, &a.ScheduledAt, &a.DurationMinutes,
		&a.Reason, &a.Status, &a.ResponseNote, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}
