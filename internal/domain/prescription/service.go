package prescription

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinic/dashboard/internal/domain/notification"
	"github.com/clinic/dashboard/internal/platform/apperr"
	"github.com/clinic/dashboard/internal/platform/auth"
)

type PatientDirectory interface {
	PatientAccount(ctx context.Context, patientID uuid.UUID) (*uuid.UUID, error)
}

type Notifier interface {
	Notify(ctx context.Context, userID uuid.UUID, title, message string, kind notification.Type) (*notification.Notification, error)
}

type Service struct {
	repo     Repository
	patients PatientDirectory
	notifier Notifier
	logger   zerolog.Logger
}

func NewService(repo Repository, patients PatientDirectory, notifier Notifier, logger zerolog.Logger) *Service {
	return &Service{repo: repo, patients: patients, notifier: notifier, logger: logger}
}

// Create issues a prescription and notifies the patient's portal account, if
// the patient has one.
func (s *Service) Create(ctx context.Context, actor auth.Actor, p *Prescription) error {
	p.Medication = strings.TrimSpace(p.Medication)
	p.Dosage = strings.TrimSpace(p.Dosage)
	if p.PatientID == uuid.Nil {
		return apperr.Validation("patient_id is required")
	}
	if p.Medication == "" || p.Dosage == "" {
		return apperr.Validation("medication and dosage are required")
	}
	if p.DurationDays < 0 {
		return apperr.Validation("duration_days cannot be negative")
	}
	account, err := s.patients.PatientAccount(ctx, p.PatientID)
	if err != nil {
		return err
	}

	p.PrescriberID = actor.UserID
	p.Status = StatusActive
	if err := s.repo.Create(ctx, p); err != nil {
		return apperr.Dependency(err, "could not create prescription")
	}

	if account != nil {
		msg := fmt.Sprintf("%s %s", p.Medication, p.Dosage)
		if p.Frequency != "" {
			msg += ", " + p.Frequency
		}
		if _, err := s.notifier.Notify(ctx, *account, "New prescription", msg, notification.TypePrescription); err != nil {
			s.logger.Error().Err(err).Str("prescription_id", p.ID.String()).Msg("prescription notification failed")
		}
	}
	return nil
}

func (s *Service) canSee(ctx context.Context, actor auth.Actor, patientID uuid.UUID) (bool, error) {
	if actor.IsStaff() {
		return true, nil
	}
	account, err := s.patients.PatientAccount(ctx, patientID)
	if err != nil {
		return false, err
	}
	return account != nil && *account == actor.UserID, nil
}

func (s *Service) Get(ctx context.Context, actor auth.Actor, id uuid.UUID) (*Prescription, error) {
	p, err := s.repo.GetByID(ctx, id)
	if apperr.IsNoRows(err) {
		return nil, apperr.NotFound("prescription %s not found", id)
	}
	if err != nil {
		return nil, apperr.Dependency(err, "could not load prescription")
	}
	ok, err := s.canSee(ctx, actor, p.PatientID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.NotFound("prescription %s not found", id)
	}
	return p, nil
}

func (s *Service) ListByPatient(ctx context.Context, actor auth.Actor, patientID uuid.UUID, limit, offset int) ([]*Prescription, int, error) {
	ok, err := s.canSee(ctx, actor, patientID)
	if err != nil {
		return nil, 0, err
	}
	if !ok {
		return nil, 0, apperr.NotFound("patient %s not found", patientID)
	}
	items, total, err := s.repo.ListByPatient(ctx, patientID, limit, offset)
	if err != nil {
		return nil, 0, apperr.Dependency(err, "could not list prescriptions")
	}
	return items, total, nil
}

// UpdateStatus ends an ACTIVE prescription as COMPLETED or CANCELLED.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, status Status) (*Prescription, error) {
	if status != StatusCompleted && status != StatusCancelled {
		return nil, apperr.Validation("status must be COMPLETED or CANCELLED")
	}
	p, err := s.repo.UpdateStatus(ctx, id, status)
	if err == nil {
		return p, nil
	}
	if !apperr.IsNoRows(err) {
		return nil, apperr.Dependency(err, "could not update prescription")
	}
	current, err := s.repo.GetByID(ctx, id)
	if apperr.IsNoRows(err) {
		return nil, apperr.NotFound("prescription %s not found", id)
	}
	if err != nil {
		return nil, apperr.Dependency(err, "could not load prescription")
	}
	return nil, apperr.Conflict("prescription is already %s", current.Status)
}
