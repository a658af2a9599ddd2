package billing

import "sort"

// Selection is the set of test ids chosen for a visit. Each id remembers when
// it was first selected so standalone tests keep a stable display order.
type Selection struct {
	seq  map[int64]uint64
	next uint64
}

func NewSelection() *Selection {
	return &Selection{seq: make(map[int64]uint64)}
}

// Add inserts id and reports whether it was newly added. Re-adding an
// existing id keeps its original position.
func (s *Selection) Add(id int64) bool {
	if _, ok := s.seq[id]; ok {
		return false
	}
	s.next++
	s.seq[id] = s.next
	return true
}

// Remove deletes id and reports whether it was present.
func (s *Selection) Remove(id int64) bool {
	if _, ok := s.seq[id]; !ok {
		return false
	}
	delete(s.seq, id)
	return true
}

func (s *Selection) Contains(id int64) bool {
	_, ok := s.seq[id]
	return ok
}

func (s *Selection) Len() int { return len(s.seq) }

// IDs returns the selected ids in first-selected order.
func (s *Selection) IDs() []int64 {
	ids := make([]int64, 0, len(s.seq))
	for id := range s.seq {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return s.seq[ids[i]] < s.seq[ids[j]] })
	return ids
}
