package scheduling

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinic/dashboard/internal/domain/notification"
	"github.com/clinic/dashboard/internal/platform/apperr"
	"github.com/clinic/dashboard/internal/platform/auth"
)

// PatientDirectory resolves the portal account linked to a patient.
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
	now      func() time.Time
}

func NewService(repo Repository, patients PatientDirectory, notifier Notifier, logger zerolog.Logger) *Service {
	return &Service{repo: repo, patients: patients, notifier: notifier, logger: logger, now: time.Now}
}

// checkPatientAccess fails with NotFound unless actor is staff or owns the
// patient's portal account.
func (s *Service) checkPatientAccess(ctx context.Context, actor auth.Actor, patientID uuid.UUID) error {
	account, err := s.patients.PatientAccount(ctx, patientID)
	if err != nil {
		return err
	}
	if actor.IsStaff() {
		return nil
	}
	if account == nil || *account != actor.UserID {
		return apperr.NotFound("patient %s not found", patientID)
	}
	return nil
}

// Request creates an appointment in REQUESTED. Patients may only request for
// their own record; staff may request for anyone.
func (s *Service) Request(ctx context.Context, actor auth.Actor, a *Appointment) error {
	if a.PatientID == uuid.Nil {
		return apperr.Validation("patient_id is required")
	}
	if !a.ScheduledAt.After(s.now()) {
		return apperr.Validation("scheduled_at must be in the future")
	}
	if a.DurationMinutes == 0 {
		a.DurationMinutes = DefaultDurationMinutes
	}
	if a.DurationMinutes < 0 || a.DurationMinutes > MaxDurationMinutes {
		return apperr.Validation("duration_minutes must be between 1 and %d", MaxDurationMinutes)
	}
	if err := s.checkPatientAccess(ctx, actor, a.PatientID); err != nil {
		return err
	}

	a.Reason = strings.TrimSpace(a.Reason)
	a.RequestedBy = actor.UserID
	a.StaffID = nil
	a.Status = StatusRequested
	a.ResponseNote = ""
	if err := s.repo.Create(ctx, a); err != nil {
		return apperr.Dependency(err, "could not create appointment")
	}
	return nil
}

func (s *Service) load(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	a, err := s.repo.GetByID(ctx, id)
	if apperr.IsNoRows(err) {
		return nil, apperr.NotFound("appointment %s not found", id)
	}
	if err != nil {
		return nil, apperr.Dependency(err, "could not load appointment")
	}
	return a, nil
}

func (s *Service) Get(ctx context.Context, actor auth.Actor, id uuid.UUID) (*Appointment, error) {
	a, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.IsStaff() || a.RequestedBy == actor.UserID {
		return a, nil
	}
	if err := s.checkPatientAccess(ctx, actor, a.PatientID); err != nil {
		return nil, apperr.NotFound("appointment %s not found", id)
	}
	return a, nil
}

func (s *Service) ListByPatient(ctx context.Context, actor auth.Actor, patientID uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	if err := s.checkPatientAccess(ctx, actor, patientID); err != nil {
		return nil, 0, err
	}
	items, total, err := s.repo.ListByPatient(ctx, patientID, limit, offset)
	if err != nil {
		return nil, 0, apperr.Dependency(err, "could not list appointments")
	}
	return items, total, nil
}

func (s *Service) ListUpcoming(ctx context.Context, limit, offset int) ([]*Appointment, int, error) {
	items, total, err := s.repo.ListUpcoming(ctx, s.now(), limit, offset)
	if err != nil {
		return nil, 0, apperr.Dependency(err, "could not list appointments")
	}
	return items, total, nil
}

// Respond confirms or declines a REQUESTED appointment on behalf of staff and
// tells the requester. Declining needs a note.
func (s *Service) Respond(ctx context.Context, actor auth.Actor, id uuid.UUID, confirm bool, note string) (*Appointment, error) {
	note = strings.TrimSpace(note)
	to := StatusConfirmed
	if !confirm {
		to = StatusDeclined
		if note == "" {
			return nil, apperr.Validation("a note is required when declining")
		}
	}
	staffID := actor.UserID
	a, err := s.transition(ctx, Transition{ID: id, From: []Status{StatusRequested}, To: to, StaffID: &staffID, Note: note})
	if err != nil {
		return nil, err
	}

	title := "Appointment confirmed"
	if !confirm {
		title = "Appointment declined"
	}
	msg := fmt.Sprintf("Your appointment on %s was %s.", a.ScheduledAt.Format("Mon 2 Jan 2006 15:04"), strings.ToLower(string(to)))
	if note != "" {
		msg += " Note: " + note
	}
	s.notify(ctx, a.RequestedBy, title, msg)
	return a, nil
}

// Cancel is allowed to staff and to the requester while the appointment is
// still open. The other party is notified.
func (s *Service) Cancel(ctx context.Context, actor auth.Actor, id uuid.UUID, note string) (*Appointment, error) {
	current, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsStaff() && current.RequestedBy != actor.UserID {
		return nil, apperr.NotFound("appointment %s not found", id)
	}
	a, err := s.transition(ctx, Transition{
		ID:   id,
		From: []Status{StatusRequested, StatusConfirmed},
		To:   StatusCancelled,
		Note: strings.TrimSpace(note),
	})
	if err != nil {
		return nil, err
	}

	msg := fmt.Sprintf("The appointment on %s was cancelled.", a.ScheduledAt.Format("Mon 2 Jan 2006 15:04"))
	switch {
	case a.RequestedBy != actor.UserID:
		s.notify(ctx, a.RequestedBy, "Appointment cancelled", msg)
	case a.StaffID != nil && *a.StaffID != actor.UserID:
		s.notify(ctx, *a.StaffID, "Appointment cancelled", msg)
	}
	return a, nil
}

func (s *Service) Complete(ctx context.Context, actor auth.Actor, id uuid.UUID) (*Appointment, error) {
	staffID := actor.UserID
	return s.transition(ctx, Transition{ID: id, From: []Status{StatusConfirmed}, To: StatusCompleted, StaffID: &staffID})
}

func (s *Service) transition(ctx context.Context, t Transition) (*Appointment, error) {
	a, err := s.repo.Transition(ctx, t)
	if err == nil {
		return a, nil
	}
	if !apperr.IsNoRows(err) {
		return nil, apperr.Dependency(err, "could not update appointment")
	}
	current, err := s.load(ctx, t.ID)
	if err != nil {
		return nil, err
	}
	return nil, apperr.Conflict("appointment is %s and cannot become %s", current.Status, t.To)
}

func (s *Service) notify(ctx context.Context, userID uuid.UUID, title, msg string) {
	if _, err := s.notifier.Notify(ctx, userID, title, msg, notification.TypeAppointment); err != nil {
		s.logger.Error().Err(err).Str("user_id", userID.String()).Msg("appointment notification failed")
	}
}
