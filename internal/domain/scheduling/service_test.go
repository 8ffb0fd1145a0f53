package scheduling

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

// -- Mock Repository --

type mockRepo struct {
	mu    sync.Mutex
	items map[uuid.UUID]*Appointment
}

func newMockRepo() *mockRepo {
	return &mockRepo{items: make(map[uuid.UUID]*Appointment)}
}

func (m *mockRepo) Create(_ context.Context, a *Appointment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a.ID = uuid.New()
	a.CreatedAt = time.Now()
	a.UpdatedAt = a.CreatedAt
	cp := *a
	m.items[a.ID] = &cp
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.items[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *a
	return &cp, nil
}

func (m *mockRepo) ListByPatient(_ context.Context, patientID uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Appointment
	for _, a := range m.items {
		if a.PatientID == patientID {
			out = append(out, a)
		}
	}
	return out, len(out), nil
}

func (m *mockRepo) ListUpcoming(_ context.Context, from time.Time, limit, offset int) ([]*Appointment, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Appointment
	for _, a := range m.items {
		if !a.ScheduledAt.Before(from) && (a.Status == StatusRequested || a.Status == StatusConfirmed) {
			out = append(out, a)
		}
	}
	return out, len(out), nil
}

func (m *mockRepo) Transition(_ context.Context, t Transition) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.items[t.ID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	for _, from := range t.From {
		if a.Status == from {
			a.Status = t.To
			if t.StaffID != nil {
				a.StaffID = t.StaffID
			}
			if t.Note != "" {
				a.ResponseNote = t.Note
			}
			cp := *a
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

// -- Collaborators --

type mockDirectory map[uuid.UUID]*uuid.UUID

func (d mockDirectory) PatientAccount(_ context.Context, patientID uuid.UUID) (*uuid.UUID, error) {
	account, ok := d[patientID]
	if !ok {
		return nil, apperr.NotFound("patient %s not found", patientID)
	}
	return account, nil
}

type sentNotification struct {
	userID uuid.UUID
	title  string
	kind   notification.Type
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentNotification
}

func (n *recordingNotifier) Notify(_ context.Context, userID uuid.UUID, title, _ string, kind notification.Type) (*notification.Notification, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentNotification{userID, title, kind})
	return &notification.Notification{ID: uuid.New(), UserID: userID, Title: title, Type: kind}, nil
}

type fixture struct {
	svc       *Service
	repo      *mockRepo
	notifier  *recordingNotifier
	patientID uuid.UUID
	patient   auth.Actor
	staff     auth.Actor
}

var testNow = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func newFixture() *fixture {
	patientUser := uuid.New()
	patientID := uuid.New()
	repo := newMockRepo()
	notifier := &recordingNotifier{}
	svc := NewService(repo, mockDirectory{patientID: &patientUser, uuid.New(): nil}, notifier, zerolog.Nop())
	svc.now = func() time.Time { return testNow }
	return &fixture{
		svc:       svc,
		repo:      repo,
		notifier:  notifier,
		patientID: patientID,
		patient:   auth.Actor{UserID: patientUser, Role: auth.RolePatient},
		staff:     auth.Actor{UserID: uuid.New(), Role: auth.RoleStaff},
	}
}

func (f *fixture) request(t *testing.T) *Appointment {
	t.Helper()
	a := &Appointment{PatientID: f.patientID, ScheduledAt: testNow.Add(48 * time.Hour), Reason: " check-up "}
	if err := f.svc.Request(context.Background(), f.patient, a); err != nil {
		t.Fatalf("request: %v", err)
	}
	return a
}

func TestRequest_Defaults(t *testing.T) {
	f := newFixture()
	a := f.request(t)

	if a.Status != StatusRequested {
		t.Errorf("expected REQUESTED, got %s", a.Status)
	}
	if a.DurationMinutes != DefaultDurationMinutes {
		t.Errorf("expected default duration, got %d", a.DurationMinutes)
	}
	if a.RequestedBy != f.patient.UserID || a.Reason != "check-up" {
		t.Errorf("unexpected appointment %+v", a)
	}
}

func TestRequest_Validation(t *testing.T) {
	f := newFixture()
	tests := []struct {
		name string
		a    Appointment
	}{
		{"no patient", Appointment{ScheduledAt: testNow.Add(time.Hour)}},
		{"in the past", Appointment{PatientID: f.patientID, ScheduledAt: testNow.Add(-time.Hour)}},
		{"too long", Appointment{PatientID: f.patientID, ScheduledAt: testNow.Add(time.Hour), DurationMinutes: 600}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := tt.a
			if err := f.svc.Request(context.Background(), f.patient, &a); !apperr.Is(err, apperr.KindValidation) {
				t.Errorf("expected validation error, got %v", err)
			}
		})
	}
}

func TestRequest_PatientCannotBookForOthers(t *testing.T) {
	f := newFixture()
	other := auth.Actor{UserID: uuid.New(), Role: auth.RolePatient}
	a := &Appointment{PatientID: f.patientID, ScheduledAt: testNow.Add(time.Hour)}

	if err := f.svc.Request(context.Background(), other, a); !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
	if err := f.svc.Request(context.Background(), f.staff, a); err != nil {
		t.Errorf("expected staff to book on behalf, got %v", err)
	}
}

func TestRespond_ConfirmNotifiesRequester(t *testing.T) {
	f := newFixture()
	a := f.request(t)

	got, err := f.svc.Respond(context.Background(), f.staff, a.ID, true, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != StatusConfirmed || got.StaffID == nil || *got.StaffID != f.staff.UserID {
		t.Errorf("unexpected appointment %+v", got)
	}
	if len(f.notifier.sent) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(f.notifier.sent))
	}
	n := f.notifier.sent[0]
	if n.userID != f.patient.UserID || n.kind != notification.TypeAppointment || n.title != "Appointment confirmed" {
		t.Errorf("unexpected notification %+v", n)
	}
}

func TestRespond_DeclineRequiresNote(t *testing.T) {
	f := newFixture()
	a := f.request(t)

	if _, err := f.svc.Respond(context.Background(), f.staff, a.ID, false, "  "); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	got, err := f.svc.Respond(context.Background(), f.staff, a.ID, false, "Fully booked")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != StatusDeclined || got.ResponseNote != "Fully booked" {
		t.Errorf("unexpected appointment %+v", got)
	}
}

func TestRespond_OnlyFromRequested(t *testing.T) {
	f := newFixture()
	a := f.request(t)
	f.svc.Respond(context.Background(), f.staff, a.ID, true, "")

	if _, err := f.svc.Respond(context.Background(), f.staff, a.ID, false, "late"); !apperr.Is(err, apperr.KindConflict) {
		t.Errorf("expected conflict, got %v", err)
	}
	if _, err := f.svc.Respond(context.Background(), f.staff, uuid.New(), true, ""); !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
	if len(f.notifier.sent) != 1 {
		t.Errorf("expected no notification for failed responses, got %d", len(f.notifier.sent))
	}
}

func TestCancel_ByRequesterNotifiesStaff(t *testing.T) {
	f := newFixture()
	a := f.request(t)
	f.svc.Respond(context.Background(), f.staff, a.ID, true, "")

	got, err := f.svc.Cancel(context.Background(), f.patient, a.ID, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != StatusCancelled {
		t.Errorf("expected CANCELLED, got %s", got.Status)
	}
	last := f.notifier.sent[len(f.notifier.sent)-1]
	if last.userID != f.staff.UserID {
		t.Errorf("expected staff notified, got %s", last.userID)
	}
}

func TestCancel_StrangerCannotCancel(t *testing.T) {
	f := newFixture()
	a := f.request(t)
	stranger := auth.Actor{UserID: uuid.New(), Role: auth.RolePatient}

	if _, err := f.svc.Cancel(context.Background(), stranger, a.ID, ""); !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestComplete_RequiresConfirmed(t *testing.T) {
	f := newFixture()
	a := f.request(t)

	if _, err := f.svc.Complete(context.Background(), f.staff, a.ID); !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict completing a request, got %v", err)
	}
	f.svc.Respond(context.Background(), f.staff, a.ID, true, "")
	got, err := f.svc.Complete(context.Background(), f.staff, a.ID)
	if err != nil || got.Status != StatusCompleted {
		t.Errorf("expected COMPLETED, got %v (%v)", got, err)
	}
}

func TestGet_Access(t *testing.T) {
	f := newFixture()
	a := f.request(t)

	if _, err := f.svc.Get(context.Background(), f.patient, a.ID); err != nil {
		t.Errorf("requester should see the appointment: %v", err)
	}
	if _, err := f.svc.Get(context.Background(), auth.Actor{UserID: uuid.New(), Role: auth.RolePatient}, a.ID); !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("expected not found for a stranger, got %v", err)
	}
}

func TestListUpcoming(t *testing.T) {
	f := newFixture()
	f.request(t)
	b := f.request(t)
	f.svc.Cancel(context.Background(), f.staff, b.ID, "")

	_, total, err := f.svc.ListUpcoming(context.Background(), 20, 0)
	if err != nil || total != 1 {
		t.Errorf("expected 1 open appointment, got %d (%v)", total, err)
	}
}
