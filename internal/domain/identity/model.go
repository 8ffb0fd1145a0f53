package identity

import (
	"time"

	"github.com/google/uuid"

	"github.com/clinic/dashboard/internal/platform/auth"
)

// User is a provisioned account. Subject is the auth provider's subject.
type User struct {
	ID        uuid.UUID `json:"id"`
	Subject   string    `json:"subject"`
	FullName  string    `json:"full_name"`
	Email     string    `json:"email"`
	Role      auth.Role `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

type Patient struct {
	ID          uuid.UUID  `json:"id"`
	UserID      *uuid.UUID `json:"user_id,omitempty"`
	FirstName   string     `json:"first_name"`
	LastName    string     `json:"last_name"`
	DateOfBirth *time.Time `json:"date_of_birth,omitempty"`
	Gender      string     `json:"gender,omitempty"`
	Email       string     `json:"email,omitempty"`
	Phone       string     `json:"phone,omitempty"`
	Address     string     `json:"address,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (p *Patient) FullName() string {
	return p.FirstName + " " + p.LastName
}

// OwnedBy reports whether userID is the patient's portal account.
func (p *Patient) OwnedBy(userID uuid.UUID) bool {
	return p.UserID != nil && *p.UserID == userID
}
