package scheduling

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusRequested Status = "REQUESTED"
	StatusConfirmed Status = "CONFIRMED"
	StatusDeclined  Status = "DECLINED"
	StatusCancelled Status = "CANCELLED"
	StatusCompleted Status = "COMPLETED"
)

const (
	DefaultDurationMinutes = 30
	MaxDurationMinutes     = 480
)

type Appointment struct {
	ID              uuid.UUID  `json:"id"`
	PatientID       uuid.UUID  `json:"patient_id"`
	RequestedBy     uuid.UUID  `json:"requested_by"`
	StaffID         *uuid.UUID `json:"staff_id,omitempty"`
	ScheduledAt     time.Time  `json:"scheduled_at"`
	DurationMinutes int        `json:"duration_minutes"`
	Reason          string     `json:"reason"`
	Status          Status     `json:"status"`
	ResponseNote    string     `json:"response_note,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// Transition is a conditional status change.
type Transition struct {
	ID      uuid.UUID
	From    []Status
	To      Status
	StaffID *uuid.UUID
	Note    string
}
