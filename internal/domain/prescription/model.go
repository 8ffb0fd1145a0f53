package prescription

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusActive    Status = "ACTIVE"
	StatusCompleted Status = "COMPLETED"
	StatusCancelled Status = "CANCELLED"
)

type Prescription struct {
	ID           uuid.UUID `json:"id"`
	PatientID    uuid.UUID `json:"patient_id"`
	PrescriberID uuid.UUID `json:"prescriber_id"`
	Medication   string    `json:"medication"`
	Dosage       string    `json:"dosage"`
	Frequency    string    `json:"frequency,omitempty"`
	DurationDays int       `json:"duration_days,omitempty"`
	Instructions string    `json:"instructions,omitempty"`
	Status       Status    `json:"status"`
	IssuedAt     time.Time `json:"issued_at"`
}
