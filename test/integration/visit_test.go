//go:build integration

package integration

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/labdesk/labdesk/internal/domain/visit"
)

func newVisit(name string, referredBy *string, total, paid string) *visit.Visit {
	t := decimal.RequireFromString(total)
	p := decimal.RequireFromString(paid)
	groupID := int64(7)
	return &visit.Visit{
		PatientName: name,
		Age:         ptrInt(41),
		ReferredBy:  referredBy,
		BaseTotal:   t,
		Discount:    decimal.Zero,
		Total:       t,
		Paid:        p,
		Due:         t.Sub(p),
		CreatedBy:   "desk-1",
		Lines: []visit.Line{
			{Label: "CBC (Group)", Cost: t, GroupID: &groupID, TestIDs: []int64{1, 2}},
		},
	}
}

func TestVisitRepository(t *testing.T) {
	ctx := context.Background()
	pool := newSchemaPool(t, "visit")
	svc := visit.NewService(visit.NewRepoPG(pool))
	rao := "Dr. Rao"

	first := newVisit("Asha", &rao, "500", "500")
	if err := svc.CreateVisit(ctx, first); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := svc.CreateVisit(ctx, newVisit("Ravi", &rao, "300", "100")); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := svc.CreateVisit(ctx, newVisit("Meena", nil, "200", "250")); err != nil {
		t.Fatalf("create: %v", err)
	}

	t.Run("GetByIDWithLines", func(t *testing.T) {
		got, err := svc.GetVisit(ctx, first.ID)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if len(got.Lines) != 1 || got.Lines[0].GroupID == nil || len(got.Lines[0].TestIDs) != 2 {
			t.Errorf("unexpected lines %+v", got.Lines)
		}
		if got.Age == nil || *got.Age != 41 {
			t.Errorf("expected age 41, got %v", got.Age)
		}
		if _, err := svc.GetVisit(ctx, uuid.New()); !errors.Is(err, visit.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("ListAndDues", func(t *testing.T) {
		items, total, err := svc.ListVisits(ctx, 2, 0)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if total != 3 || len(items) != 2 {
			t.Errorf("expected page of 2 out of 3, got %d/%d", len(items), total)
		}

		dues, total, err := svc.ListDues(ctx, 20, 0)
		if err != nil {
			t.Fatalf("dues: %v", err)
		}
		if total != 2 || len(dues) != 2 {
			t.Errorf("expected 2 visits with a due, got %d", total)
		}
	})

	t.Run("AccountReport", func(t *testing.T) {
		from := time.Now().Add(-time.Hour)
		to := time.Now().Add(time.Hour)
		report, err := svc.AccountReport(ctx, &from, &to)
		if err != nil {
			t.Fatalf("report: %v", err)
		}
		if len(report.Rows) != 2 {
			t.Fatalf("expected 2 rows, got %d", len(report.Rows))
		}
		if report.Overall.Visits != 3 || report.Overall.Due.StringFixed(2) != "150.00" {
			t.Errorf("unexpected overall %+v", report.Overall)
		}

		empty, err := svc.AccountReport(ctx, &to, ptrTime(to.Add(time.Hour)))
		if err != nil {
			t.Fatalf("report: %v", err)
		}
		if len(empty.Rows) != 0 {
			t.Errorf("expected no rows, got %d", len(empty.Rows))
		}
	})
}

func ptrTime(t time.Time) *time.Time { return &t }
