package scheduling

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Appointment, int, error)
	ListUpcoming(ctx context.Context, from time.Time, limit, offset int) ([]*Appointment, int, error)
	// Transition applies t only while the appointment is in one of t.From and
	// returns the updated row, or pgx.ErrNoRows when nothing matched.
	Transition(ctx context.Context, t Transition) (*Appointment, error)
}
