package prescription

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/clinic/dashboard/internal/domain/notification"
	"github.com/clinic/dashboard/internal/platform/apperr"
	"github.com/clinic/dashboard/internal/platform/auth"
)

type mockRepo struct {
	mu    sync.Mutex
	items map[uuid.UUID]*Prescription
}

func newMockRepo() *mockRepo {
	return &mockRepo{items: make(map[uuid.UUID]*Prescription)}
}

func (m *mockRepo) Create(_ context.Context, p *Prescription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p.ID = uuid.New()
	p.IssuedAt = time.Now()
	cp := *p
	m.items[p.ID] = &cp
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Prescription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.items[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *p
	return &cp, nil
}

func (m *mockRepo) ListByPatient(_ context.Context, patientID uuid.UUID, limit, offset int) ([]*Prescription, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Prescription
	for _, p := range m.items {
		if p.PatientID == patientID {
			out = append(out, p)
		}
	}
	return out, len(out), nil
}

func (m *mockRepo) UpdateStatus(_ context.Context, id uuid.UUID, status Status) (*Prescription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.items[id]
	if !ok || p.Status != StatusActive {
		return nil, pgx.ErrNoRows
	}
	p.Status = status
	cp := *p
	return &cp, nil
}

type mockDirectory map[uuid.UUID]*uuid.UUID

func (d mockDirectory) PatientAccount(_ context.Context, patientID uuid.UUID) (*uuid.UUID, error) {
	account, ok := d[patientID]
	if !ok {
		return nil, apperr.NotFound("patient %s not found", patientID)
	}
	return account, nil
}

type recordingNotifier struct {
	mu    sync.Mutex
	users []uuid.UUID
	kinds []notification.Type
}

func (n *recordingNotifier) Notify(_ context.Context, userID uuid.UUID, title, _ string, kind notification.Type) (*notification.Notification, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.users = append(n.users, userID)
	n.kinds = append(n.kinds, kind)
	return &notification.Notification{ID: uuid.New(), UserID: userID, Title: title, Type: kind}, nil
}

type fixture struct {
	svc          *Service
	notifier     *recordingNotifier
	patientID    uuid.UUID
	offlineID    uuid.UUID
	patient      auth.Actor
	otherPatient auth.Actor
	staff        auth.Actor
}

func newFixture() *fixture {
	patientUser := uuid.New()
	patientID := uuid.New()
	offlineID := uuid.New()
	notifier := &recordingNotifier{}
	dir := mockDirectory{patientID: &patientUser, offlineID: nil}
	return &fixture{
		svc:          NewService(newMockRepo(), dir, notifier, zerolog.Nop()),
		notifier:     notifier,
		patientID:    patientID,
		offlineID:    offlineID,
		patient:      auth.Actor{UserID: patientUser, Role: auth.RolePatient},
		otherPatient: auth.Actor{UserID: uuid.New(), Role: auth.RolePatient},
		staff:        auth.Actor{UserID: uuid.New(), Role: auth.RoleStaff},
	}
}

func (f *fixture) issue(t *testing.T, patientID uuid.UUID) *Prescription {
	t.Helper()
	p := &Prescription{PatientID: patientID, Medication: " Amoxicillin ", Dosage: "500mg", Frequency: "3x daily", DurationDays: 7}
	if err := f.svc.Create(context.Background(), f.staff, p); err != nil {
		t.Fatalf("create: %v", err)
	}
	return p
}

func TestCreate_NotifiesPatientAccount(t *testing.T) {
	f := newFixture()
	p := f.issue(t, f.patientID)

	if p.Status != StatusActive || p.PrescriberID != f.staff.UserID || p.Medication != "Amoxicillin" {
		t.Errorf("unexpected prescription %+v", p)
	}
	if len(f.notifier.users) != 1 || f.notifier.users[0] != f.patient.UserID {
		t.Fatalf("expected one notification to the patient, got %v", f.notifier.users)
	}
	if f.notifier.kinds[0] != notification.TypePrescription {
		t.Errorf("expected PRESCRIPTION, got %s", f.notifier.kinds[0])
	}
}

func TestCreate_PatientWithoutAccount(t *testing.T) {
	f := newFixture()
	f.issue(t, f.offlineID)
	if len(f.notifier.users) != 0 {
		t.Errorf("expected no notification, got %d", len(f.notifier.users))
	}
}

func TestCreate_Validation(t *testing.T) {
	f := newFixture()
	tests := []struct {
		name string
		p    Prescription
	}{
		{"no patient", Prescription{Medication: "x", Dosage: "y"}},
		{"no medication", Prescription{PatientID: f.patientID, Dosage: "y"}},
		{"blank dosage", Prescription{PatientID: f.patientID, Medication: "x", Dosage: "  "}},
		{"negative duration", Prescription{PatientID: f.patientID, Medication: "x", Dosage: "y", DurationDays: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := tt.p
			if err := f.svc.Create(context.Background(), f.staff, &p); !apperr.Is(err, apperr.KindValidation) {
				t.Errorf("expected validation error, got %v", err)
			}
		})
	}
}

func TestCreate_UnknownPatient(t *testing.T) {
	f := newFixture()
	p := &Prescription{PatientID: uuid.New(), Medication: "x", Dosage: "y"}
	if err := f.svc.Create(context.Background(), f.staff, p); !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestGet_Access(t *testing.T) {
	f := newFixture()
	p := f.issue(t, f.patientID)
	ctx := context.Background()

	if _, err := f.svc.Get(ctx, f.patient, p.ID); err != nil {
		t.Errorf("owner should see prescription: %v", err)
	}
	if _, err := f.svc.Get(ctx, f.staff, p.ID); err != nil {
		t.Errorf("staff should see prescription: %v", err)
	}
	if _, err := f.svc.Get(ctx, f.otherPatient, p.ID); !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("expected not found for other patient, got %v", err)
	}
	if _, err := f.svc.Get(ctx, f.staff, uuid.New()); !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestListByPatient(t *testing.T) {
	f := newFixture()
	f.issue(t, f.patientID)
	f.issue(t, f.patientID)
	f.issue(t, f.offlineID)

	items, total, err := f.svc.ListByPatient(context.Background(), f.patient, f.patientID, 20, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 2 || len(items) != 2 {
		t.Errorf("expected 2 prescriptions, got %d", total)
	}
	if _, _, err := f.svc.ListByPatient(context.Background(), f.otherPatient, f.patientID, 20, 0); !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestUpdateStatus(t *testing.T) {
	f := newFixture()
	p := f.issue(t, f.patientID)
	ctx := context.Background()

	if _, err := f.svc.UpdateStatus(ctx, p.ID, StatusActive); !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
	got, err := f.svc.UpdateStatus(ctx, p.ID, StatusCompleted)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != StatusCompleted {
		t.Errorf("expected COMPLETED, got %s", got.Status)
	}
	if _, err := f.svc.UpdateStatus(ctx, p.ID, StatusCancelled); !apperr.Is(err, apperr.KindConflict) {
		t.Errorf("expected conflict, got %v", err)
	}
	if _, err := f.svc.UpdateStatus(ctx, uuid.New(), StatusCancelled); !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}
