package visit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var ErrValidation = errors.New("validation failed")

type Service struct {
	visits Repository
}

func NewService(visits Repository) *Service {
	return &Service{visits: visits}
}

// CreateVisit validates and stores a submitted bill.
func (s *Service) CreateVisit(ctx context.Context, v *Visit) error {
	v.PatientName = strings.TrimSpace(v.PatientName)
	if v.PatientName == "" {
		return fmt.Errorf("%w: patient name is required", ErrValidation)
	}
	if v.Age != nil && (*v.Age < 0 || *v.Age > 150) {
		return fmt.Errorf("%w: age out of range", ErrValidation)
	}
	if len(v.Lines) == 0 {
		return fmt.Errorf("%w: a visit needs at least one bill line", ErrValidation)
	}
	if err := s.visits.Create(ctx, v); err != nil {
		return fmt.Errorf("create visit: %w", err)
	}
	return nil
}

func (s *Service) GetVisit(ctx context.Context, id uuid.UUID) (*Visit, error) {
	return s.visits.GetByID(ctx, id)
}

func (s *Service) ListVisits(ctx context.Context, limit, offset int) ([]*Visit, int, error) {
	return s.visits.List(ctx, limit, offset)
}

func (s *Service) ListDues(ctx context.Context, limit, offset int) ([]*Visit, int, error) {
	return s.visits.ListDues(ctx, limit, offset)
}

// AccountReport returns per-referrer sums for visits created in [from, to)
// plus an overall row.
func (s *Service) AccountReport(ctx context.Context, from, to *time.Time) (*AccountReport, error) {
	if from != nil && to != nil && !from.Before(*to) {
		return nil, fmt.Errorf("%w: from must be before to", ErrValidation)
	}
	rows, err := s.visits.AccountRows(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("account rows: %w", err)
	}

	report := &AccountReport{
		From: from,
		To:   to,
		Rows: rows,
		Overall: AccountRow{
			BaseTotal: decimal.Zero,
			Discount:  decimal.Zero,
			Total:     decimal.Zero,
			Paid:      decimal.Zero,
			Due:       decimal.Zero,
		},
	}
	if report.Rows == nil {
		report.Rows = []AccountRow{}
	}
	for _, r := range rows {
		o := &report.Overall
		o.Visits += r.Visits
		o.BaseTotal = o.BaseTotal.Add(r.BaseTotal)
		o.Discount = o.Discount.Add(r.Discount)
		o.Total = o.Total.Add(r.Total)
		o.Paid = o.Paid.Add(r.Paid)
		o.Due = o.Due.Add(r.Due)
	}
	return report, nil
}
