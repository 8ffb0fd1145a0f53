package identity

import (
	"context"

	"github.com/google/uuid"
)

type UserRepository interface {
	// Upsert inserts the user or refreshes name, email and role of the
	// existing row with the same subject.
	Upsert(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
}

type PatientRepository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	Update(ctx context.Context, p *Patient) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, limit, offset int) ([]*Patient, int, error)
	Search(ctx context.Context, name string, limit, offset int) ([]*Patient, int, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*Patient, error)
}
