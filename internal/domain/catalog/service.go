package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// ErrValidation marks errors caused by bad input rather than storage.
var ErrValidation = errors.New("validation failed")

type Service struct {
	tests  TestRepository
	groups GroupRepository
	logger zerolog.Logger
}

func NewService(tests TestRepository, groups GroupRepository, logger zerolog.Logger) *Service {
	return &Service{tests: tests, groups: groups, logger: logger}
}

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func trimShortcut(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

// -- Tests --

func validateTest(t *Test) error {
	t.TestName = strings.TrimSpace(t.TestName)
	t.Shortcut = trimShortcut(t.Shortcut)
	if t.TestName == "" {
		return invalid("testName is required")
	}
	if t.Price.IsNegative() {
		return invalid("price must not be negative")
	}
	t.Price = t.Price.Round(2)
	return nil
}

func (s *Service) CreateTest(ctx context.Context, in TestInput) (*Test, error) {
	t := &Test{}
	in.apply(t)
	if err := validateTest(t); err != nil {
		return nil, err
	}
	if err := s.tests.Create(ctx, t); err != nil {
		return nil, fmt.Errorf("create test: %w", err)
	}
	return t, nil
}

func (s *Service) GetTest(ctx context.Context, id int64) (*Test, error) {
	return s.tests.GetByID(ctx, id)
}

func (s *Service) UpdateTest(ctx context.Context, id int64, in TestInput) (*Test, error) {
	t, err := s.tests.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	in.apply(t)
	if err := validateTest(t); err != nil {
		return nil, err
	}
	if err := s.tests.Update(ctx, t); err != nil {
		return nil, fmt.Errorf("update test: %w", err)
	}
	return t, nil
}

func (s *Service) DeleteTest(ctx context.Context, id int64) error {
	return s.tests.Delete(ctx, id)
}

func (s *Service) ListTests(ctx context.Context, activeOnly bool) ([]*Test, error) {
	return s.tests.List(ctx, activeOnly)
}

// -- Groups --

func (s *Service) validateGroup(ctx context.Context, g *Group) error {
	g.GroupName = strings.TrimSpace(g.GroupName)
	g.Shortcut = trimShortcut(g.Shortcut)
	if g.GroupName == "" {
		return invalid("groupName is required")
	}
	if g.Price != nil {
		if g.Price.IsNegative() {
			return invalid("price must not be negative")
		}
		p := g.Price.Round(2)
		g.Price = &p
	}
	g.TestIDs = g.Members()
	if len(g.TestIDs) == 0 {
		return invalid("testIds must not be empty")
	}

	found, err := s.tests.ExistingIDs(ctx, g.TestIDs)
	if err != nil {
		return fmt.Errorf("check group members: %w", err)
	}
	var missing []string
	for _, id := range g.TestIDs {
		if !found[id] {
			missing = append(missing, fmt.Sprint(id))
		}
	}
	if len(missing) > 0 {
		return invalid("unknown test ids: %s", strings.Join(missing, ", "))
	}
	return nil
}

func (s *Service) CreateGroup(ctx context.Context, g *Group) error {
	if err := s.validateGroup(ctx, g); err != nil {
		return err
	}
	if err := s.groups.Create(ctx, g); err != nil {
		return fmt.Errorf("create group: %w", err)
	}
	return nil
}

func (s *Service) GetGroup(ctx context.Context, id int64) (*Group, error) {
	return s.groups.GetByID(ctx, id)
}

func (s *Service) UpdateGroup(ctx context.Context, g *Group) error {
	if _, err := s.groups.GetByID(ctx, g.ID); err != nil {
		return err
	}
	if err := s.validateGroup(ctx, g); err != nil {
		return err
	}
	if err := s.groups.Update(ctx, g); err != nil {
		return fmt.Errorf("update group: %w", err)
	}
	return nil
}

func (s *Service) DeleteGroup(ctx context.Context, id int64) error {
	return s.groups.Delete(ctx, id)
}

func (s *Service) ListGroups(ctx context.Context) ([]*Group, error) {
	return s.groups.List(ctx)
}

// Snapshot loads tests and groups concurrently and joins them into one
// immutable catalog.
func (s *Service) Snapshot(ctx context.Context) (*Snapshot, error) {
	var tests []*Test
	var groups []*Group

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		tests, err = s.tests.List(gctx, false)
		if err != nil {
			return fmt.Errorf("load tests: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		groups, err = s.groups.List(gctx)
		if err != nil {
			return fmt.Errorf("load groups: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	snap := NewSnapshot(tests, groups)
	s.logger.Debug().
		Int("tests", snap.TestCount()).
		Int("groups", snap.GroupCount()).
		Msg("catalog snapshot loaded")
	return snap, nil
}
