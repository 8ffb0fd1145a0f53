package notification

import (
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	TypeAppointment  Type = "APPOINTMENT"
	TypePrescription Type = "PRESCRIPTION"
	TypeOrder        Type = "ORDER"
	TypeSystem       Type = "SYSTEM"
)

func (t Type) Valid() bool {
	switch t {
	case TypeAppointment, TypePrescription, TypeOrder, TypeSystem:
		return true
	}
	return false
}

// Notification is immutable once written apart from Read.
type Notification struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Type      Type      `json:"type"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

// EventCreated is the realtime event carrying a new notification.
const EventCreated = "notification.created"
