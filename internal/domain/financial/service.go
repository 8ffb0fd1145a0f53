package financial

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/clinic/dashboard/internal/platform/apperr"
)

type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

func validateRecord(r *Record) error {
	if r.Kind != KindIncome && r.Kind != KindExpense {
		return apperr.Validation("kind must be INCOME or EXPENSE")
	}
	r.Category = strings.TrimSpace(r.Category)
	if r.Category == "" {
		return apperr.Validation("category is required")
	}
	if !r.Amount.IsPositive() {
		return apperr.Validation("amount must be greater than zero")
	}
	if !r.Amount.Equal(r.Amount.Round(2)) {
		return apperr.Validation("amount has more than two decimal places")
	}
	if r.OccurredOn.IsZero() {
		return apperr.Validation("occurred_on is required")
	}
	return nil
}

func (s *Service) CreateRecord(ctx context.Context, r *Record) error {
	r.OrderID = nil
	if r.OccurredOn.IsZero() {
		r.OccurredOn = dateOf(s.now())
	}
	if err := validateRecord(r); err != nil {
		return err
	}
	if err := s.repo.Create(ctx, r); err != nil {
		if apperr.IsForeignKeyViolation(err) {
			return apperr.Validation("patient_id does not name a patient")
		}
		return apperr.Dependency(err, "could not create financial record")
	}
	return nil
}

// RecordOrderExpense books the cost of a confirmed order. It runs on the
// caller's transaction when ctx carries one; a second expense for the same
// order is a conflict.
func (s *Service) RecordOrderExpense(ctx context.Context, orderID uuid.UUID, amount decimal.Decimal, description string, occurredOn time.Time) error {
	r := &Record{
		Kind:        KindExpense,
		Category:    CategoryInventory,
		Amount:      amount.Round(2),
		Description: description,
		OrderID:     &orderID,
		OccurredOn:  dateOf(occurredOn),
	}
	if !r.Amount.IsPositive() {
		// Free items cost nothing to book.
		return nil
	}
	if err := s.repo.Create(ctx, r); err != nil {
		if apperr.IsUniqueViolation(err) {
			return apperr.Conflict("expense for order %s already recorded", orderID)
		}
		return apperr.Dependency(err, "could not record order expense")
	}
	return nil
}

func (s *Service) GetRecord(ctx context.Context, id uuid.UUID) (*Record, error) {
	r, err := s.repo.GetByID(ctx, id)
	if apperr.IsNoRows(err) {
		return nil, apperr.NotFound("financial record %s not found", id)
	}
	if err != nil {
		return nil, apperr.Dependency(err, "could not load financial record")
	}
	return r, nil
}

// UpdateRecord edits a manual record. Order expenses are owned by the order
// workflow and cannot be edited.
func (s *Service) UpdateRecord(ctx context.Context, r *Record) error {
	existing, err := s.GetRecord(ctx, r.ID)
	if err != nil {
		return err
	}
	if existing.OrderID != nil {
		return apperr.Conflict("financial record %s belongs to order %s", r.ID, existing.OrderID)
	}
	if err := validateRecord(r); err != nil {
		return err
	}
	r.OrderID = nil
	r.CreatedAt = existing.CreatedAt
	err = s.repo.Update(ctx, r)
	if apperr.IsNoRows(err) {
		return apperr.NotFound("financial record %s not found", r.ID)
	}
	if err != nil {
		return apperr.Dependency(err, "could not update financial record")
	}
	return nil
}

func (s *Service) DeleteRecord(ctx context.Context, id uuid.UUID) error {
	existing, err := s.GetRecord(ctx, id)
	if err != nil {
		return err
	}
	if existing.OrderID != nil {
		return apperr.Conflict("financial record %s belongs to order %s", id, existing.OrderID)
	}
	err = s.repo.Delete(ctx, id)
	if apperr.IsNoRows(err) {
		return apperr.NotFound("financial record %s not found", id)
	}
	if err != nil {
		return apperr.Dependency(err, "could not delete financial record")
	}
	return nil
}

func (s *Service) ListRecords(ctx context.Context, f Filter, limit, offset int) ([]*Record, int, error) {
	if f.Kind != "" && f.Kind != KindIncome && f.Kind != KindExpense {
		return nil, 0, apperr.Validation("kind must be INCOME or EXPENSE")
	}
	records, total, err := s.repo.List(ctx, f, limit, offset)
	if err != nil {
		return nil, 0, apperr.Dependency(err, "could not list financial records")
	}
	return records, total, nil
}

// Period resolves an inclusive date range. A zero from defaults to the first
// day of the month eleven months before to; a zero to defaults to today.
func (s *Service) Period(from, to time.Time) (time.Time, time.Time, error) {
	if to.IsZero() {
		to = dateOf(s.now())
	}
	if from.IsZero() {
		from = time.Date(to.Year(), to.Month()-11, 1, 0, 0, 0, 0, time.UTC)
	}
	if from.After(to) {
		return time.Time{}, time.Time{}, apperr.Validation("from must not be after to")
	}
	return from, to, nil
}

func (s *Service) Summary(ctx context.Context, from, to time.Time) (*Totals, error) {
	from, to, err := s.Period(from, to)
	if err != nil {
		return nil, err
	}
	t, err := s.repo.Summary(ctx, from, to)
	if err != nil {
		return nil, apperr.Dependency(err, "could not compute summary")
	}
	return t, nil
}

func (s *Service) ByCategory(ctx context.Context, from, to time.Time) ([]CategoryTotal, error) {
	from, to, err := s.Period(from, to)
	if err != nil {
		return nil, err
	}
	out, err := s.repo.ByCategory(ctx, from, to)
	if err != nil {
		return nil, apperr.Dependency(err, "could not compute category totals")
	}
	return out, nil
}

func (s *Service) Monthly(ctx context.Context, from, to time.Time) ([]MonthTotal, error) {
	from, to, err := s.Period(from, to)
	if err != nil {
		return nil, err
	}
	out, err := s.repo.Monthly(ctx, from, to)
	if err != nil {
		return nil, apperr.Dependency(err, "could not compute monthly totals")
	}
	return out, nil
}

func dateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
