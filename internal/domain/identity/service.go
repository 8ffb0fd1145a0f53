package identity

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/clinic/dashboard/internal/platform/apperr"
	"github.com/clinic/dashboard/internal/platform/auth"
)

type Service struct {
	users    UserRepository
	patients PatientRepository
}

func NewService(users UserRepository, patients PatientRepository) *Service {
	return &Service{users: users, patients: patients}
}

// -- User --

// EnsureUser provisions the user behind a token identity on first sight and
// keeps name, email and role in step with the token afterwards.
func (s *Service) EnsureUser(ctx context.Context, id auth.Identity) (auth.Actor, error) {
	if strings.TrimSpace(id.Subject) == "" {
		return auth.Actor{}, apperr.Validation("token subject is required")
	}
	role := id.Role
	if role != auth.RoleStaff {
		role = auth.RolePatient
	}
	u := &User{Subject: id.Subject, FullName: id.Name, Email: id.Email, Role: role}
	if err := s.users.Upsert(ctx, u); err != nil {
		return auth.Actor{}, apperr.Dependency(err, "could not provision user")
	}
	return auth.Actor{UserID: u.ID, Subject: u.Subject, Name: u.FullName, Role: u.Role}, nil
}

func (s *Service) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	u, err := s.users.GetByID(ctx, id)
	if apperr.IsNoRows(err) {
		return nil, apperr.NotFound("user %s not found", id)
	}
	if err != nil {
		return nil, apperr.Dependency(err, "could not load user")
	}
	return u, nil
}

// -- Patient --

func validatePatient(p *Patient) error {
	p.FirstName = strings.TrimSpace(p.FirstName)
	p.LastName = strings.TrimSpace(p.LastName)
	if p.FirstName == "" || p.LastName == "" {
		return apperr.Validation("first_name and last_name are required")
	}
	if p.DateOfBirth != nil && p.DateOfBirth.After(time.Now()) {
		return apperr.Validation("date_of_birth cannot be in the future")
	}
	if p.Email != "" && !strings.Contains(p.Email, "@") {
		return apperr.Validation("email is invalid")
	}
	return nil
}

func (s *Service) CreatePatient(ctx context.Context, p *Patient) error {
	if err := validatePatient(p); err != nil {
		return err
	}
	if err := s.patients.Create(ctx, p); err != nil {
		if apperr.IsForeignKeyViolation(err) {
			return apperr.Validation("user_id does not name a user")
		}
		return apperr.Dependency(err, "could not create patient")
	}
	return nil
}

func (s *Service) loadPatient(ctx context.Context, id uuid.UUID) (*Patient, error) {
	p, err := s.patients.GetByID(ctx, id)
	if apperr.IsNoRows(err) {
		return nil, apperr.NotFound("patient %s not found", id)
	}
	if err != nil {
		return nil, apperr.Dependency(err, "could not load patient")
	}
	return p, nil
}

// GetPatient returns the patient if actor may see it. Patients only see
// records linked to their own account; anything else is reported as not
// found.
func (s *Service) GetPatient(ctx context.Context, actor auth.Actor, id uuid.UUID) (*Patient, error) {
	p, err := s.loadPatient(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsStaff() && !p.OwnedBy(actor.UserID) {
		return nil, apperr.NotFound("patient %s not found", id)
	}
	return p, nil
}

func (s *Service) UpdatePatient(ctx context.Context, p *Patient) error {
	if err := validatePatient(p); err != nil {
		return err
	}
	err := s.patients.Update(ctx, p)
	if apperr.IsNoRows(err) {
		return apperr.NotFound("patient %s not found", p.ID)
	}
	if apperr.IsForeignKeyViolation(err) {
		return apperr.Validation("user_id does not name a user")
	}
	if err != nil {
		return apperr.Dependency(err, "could not update patient")
	}
	return nil
}

func (s *Service) DeletePatient(ctx context.Context, id uuid.UUID) error {
	err := s.patients.Delete(ctx, id)
	if apperr.IsNoRows(err) {
		return apperr.NotFound("patient %s not found", id)
	}
	if apperr.IsForeignKeyViolation(err) {
		return apperr.Conflict("patient %s still has dependent records", id)
	}
	if err != nil {
		return apperr.Dependency(err, "could not delete patient")
	}
	return nil
}

// ListPatients lists every patient for staff, optionally filtered by name,
// and only the actor's own records for patients.
func (s *Service) ListPatients(ctx context.Context, actor auth.Actor, name string, limit, offset int) ([]*Patient, int, error) {
	if !actor.IsStaff() {
		own, err := s.patients.ListByUser(ctx, actor.UserID)
		if err != nil {
			return nil, 0, apperr.Dependency(err, "could not list patients")
		}
		return own, len(own), nil
	}
	patients, total, err := s.patients.Search(ctx, strings.TrimSpace(name), limit, offset)
	if err != nil {
		return nil, 0, apperr.Dependency(err, "could not list patients")
	}
	return patients, total, nil
}

// PatientAccount returns the portal account linked to patientID, or nil if it
// has none. It fails with NotFound when the patient does not exist.
func (s *Service) PatientAccount(ctx context.Context, patientID uuid.UUID) (*uuid.UUID, error) {
	p, err := s.loadPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	return p.UserID, nil
}
