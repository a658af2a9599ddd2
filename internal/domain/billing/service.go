package billing

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/labdesk/labdesk/internal/domain/catalog"
	"github.com/labdesk/labdesk/internal/domain/visit"
)

// ErrEmptyBill is returned when submitting a session with nothing selected.
var ErrEmptyBill = errors.New("cannot submit an empty bill")

// VisitCreator persists a submitted bill.
type VisitCreator interface {
	CreateVisit(ctx context.Context, v *visit.Visit) error
}

// View is the externally visible state of a session.
type View struct {
	ID       uuid.UUID `json:"id"`
	Selected []int64   `json:"selected"`
	Bill     Bill      `json:"bill"`
	Totals   Totals    `json:"totals"`
}

func viewOf(s *Session) *View {
	return &View{
		ID:       s.ID,
		Selected: s.Selected(),
		Bill:     s.BillLines(),
		Totals:   s.Totals(),
	}
}

type Service struct {
	catalog catalog.SnapshotLoader
	visits  VisitCreator
	store   *Store
	logger  zerolog.Logger
}

func NewService(loader catalog.SnapshotLoader, visits VisitCreator, store *Store, logger zerolog.Logger) *Service {
	return &Service{catalog: loader, visits: visits, store: store, logger: logger}
}

// StartSession loads a fresh catalog snapshot and opens an empty bill.
func (s *Service) StartSession(ctx context.Context) (*View, error) {
	snap, err := s.catalog.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	sess := NewSession(snap)
	s.store.Put(sess)
	s.logger.Debug().Str("session_id", sess.ID.String()).Msg("billing session started")
	return viewOf(sess), nil
}

func (s *Service) GetSession(id uuid.UUID) (*View, error) {
	var v *View
	err := s.store.With(id, func(sess *Session) error {
		v = viewOf(sess)
		return nil
	})
	return v, err
}

// Apply dispatches cmd to the session. Commands naming ids that are not in
// the session's catalog leave the bill unchanged.
func (s *Service) Apply(id uuid.UUID, cmd Command) (*View, error) {
	var v *View
	err := s.store.With(id, func(sess *Session) error {
		sess.Dispatch(cmd)
		if stale := staleReference(sess, cmd); stale != "" {
			s.logger.Debug().
				Str("session_id", id.String()).
				Str("reference", stale).
				Msg("ignoring stale catalog reference")
		}
		v = viewOf(sess)
		return nil
	})
	return v, err
}

func staleReference(sess *Session, cmd Command) string {
	switch c := cmd.(type) {
	case AddTest:
		if _, ok := sess.catalog.Test(c.ID); !ok {
			return fmt.Sprintf("test %d", c.ID)
		}
	case AddGroup:
		if _, ok := sess.catalog.Group(c.ID); !ok {
			return fmt.Sprintf("group %d", c.ID)
		}
	case RemoveGroup:
		if _, ok := sess.catalog.Group(c.ID); !ok {
			return fmt.Sprintf("group %d", c.ID)
		}
	}
	return ""
}

// Submit turns the session into a persisted visit and closes it in the same
// critical section, so a session is submitted at most once. On failure the
// session stays open so the desk can retry.
func (s *Service) Submit(ctx context.Context, id uuid.UUID, patient visit.Patient, createdBy string) (*visit.Visit, error) {
	var out *visit.Visit
	err := s.store.Take(id, func(sess *Session) error {
		bill := sess.BillLines()
		if len(bill.Lines) == 0 {
			return ErrEmptyBill
		}
		totals := sess.Totals()

		v := &visit.Visit{
			PatientName: patient.Name,
			Age:         patient.Age,
			Gender:      patient.Gender,
			Phone:       patient.Phone,
			ReferredBy:  patient.ReferredBy,
			BaseTotal:   totals.BaseTotal,
			Discount:    totals.Discount,
			Total:       totals.Total,
			Paid:        decimal.Zero,
			Due:         totals.Due,
			CreatedBy:   createdBy,
		}
		if sess.paid.HasUserInput {
			v.Paid = totals.Paid
		}
		for _, l := range bill.Lines {
			v.Lines = append(v.Lines, visit.Line{
				Label:   l.Label,
				Cost:    l.Cost,
				GroupID: l.GroupID,
				TestIDs: l.TestIDs,
			})
		}
		if err := s.visits.CreateVisit(ctx, v); err != nil {
			return err
		}
		out = v
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("session_id", id.String()).
		Str("visit_id", out.ID.String()).
		Str("total", out.Total.StringFixed(moneyPlaces)).
		Str("due", out.Due.StringFixed(moneyPlaces)).
		Msg("bill submitted")
	return out, nil
}

func (s *Service) Discard(id uuid.UUID) error {
	return s.store.Delete(id)
}
