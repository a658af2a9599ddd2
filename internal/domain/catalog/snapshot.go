package catalog

import (
	"context"
	"time"
)

// SnapshotLoader produces an immutable catalog snapshot. Both the database
// backed Service and the remote Client implement it.
type SnapshotLoader interface {
	Snapshot(ctx context.Context) (*Snapshot, error)
}

// Snapshot is the read-only catalog a billing session works against. It is
// never mutated after construction and is safe to share between sessions.
type Snapshot struct {
	tests      map[int64]*Test
	testOrder  map[int64]int
	groups     []*Group
	groupByID  map[int64]*Group
	groupOrder map[int64]int
	loadedAt   time.Time
}

// NewSnapshot indexes tests and groups. Slice position is the catalog order;
// on duplicate ids the first entry wins. Nil entries are skipped.
func NewSnapshot(tests []*Test, groups []*Group) *Snapshot {
	s := &Snapshot{
		tests:      make(map[int64]*Test, len(tests)),
		testOrder:  make(map[int64]int, len(tests)),
		groupByID:  make(map[int64]*Group, len(groups)),
		groupOrder: make(map[int64]int, len(groups)),
		loadedAt:   time.Now(),
	}
	for _, t := range tests {
		if t == nil {
			continue
		}
		if _, dup := s.tests[t.ID]; dup {
			continue
		}
		s.testOrder[t.ID] = len(s.tests)
		s.tests[t.ID] = t
	}
	for _, g := range groups {
		if g == nil {
			continue
		}
		if _, dup := s.groupByID[g.ID]; dup {
			continue
		}
		s.groupOrder[g.ID] = len(s.groups)
		s.groupByID[g.ID] = g
		s.groups = append(s.groups, g)
	}
	return s
}

func (s *Snapshot) Test(id int64) (*Test, bool) {
	t, ok := s.tests[id]
	return t, ok
}

func (s *Snapshot) Group(id int64) (*Group, bool) {
	g, ok := s.groupByID[id]
	return g, ok
}

// Groups returns the groups in catalog order. The slice is a copy.
func (s *Snapshot) Groups() []*Group {
	out := make([]*Group, len(s.groups))
	copy(out, s.groups)
	return out
}

// GroupOrder is the group's position in the catalog, or -1 if unknown.
func (s *Snapshot) GroupOrder(id int64) int {
	if i, ok := s.groupOrder[id]; ok {
		return i
	}
	return -1
}

// TestOrder is the test's position in the catalog, or -1 if unknown.
func (s *Snapshot) TestOrder(id int64) int {
	if i, ok := s.testOrder[id]; ok {
		return i
	}
	return -1
}

func (s *Snapshot) TestCount() int  { return len(s.tests) }
func (s *Snapshot) GroupCount() int { return len(s.groups) }

func (s *Snapshot) LoadedAt() time.Time { return s.loadedAt }
