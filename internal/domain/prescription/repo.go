package prescription

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, p *Prescription) error
	GetByID(ctx context.Context, id uuid.UUID) (*Prescription, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Prescription, int, error)
	// UpdateStatus moves an ACTIVE prescription to status. It returns
	// pgx.ErrNoRows when the prescription is missing or no longer active.
	UpdateStatus(ctx context.Context, id uuid.UUID, status Status) (*Prescription, error)
}
