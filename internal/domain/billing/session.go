package billing

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/labdesk/labdesk/internal/domain/catalog"
)

// FieldName identifies a monetary field the engine writes to.
type FieldName string

const (
	FieldDiscount FieldName = "discount"
	FieldTotal    FieldName = "total"
	FieldDue      FieldName = "due"
)

// FieldChange is published to observers when the engine rewrites a field.
type FieldChange struct {
	Field FieldName       `json:"field"`
	Value decimal.Decimal `json:"value"`
}

// Observer is notified of engine writes. It may call back into the session:
// edits made while the engine is writing are ignored, and selection changes
// are recomputed once the current write finishes.
type Observer func(FieldChange)

// Totals is the reconciled state of a bill.
type Totals struct {
	BaseTotal  decimal.Decimal `json:"baseTotal"`
	Discount   decimal.Decimal `json:"discount"`
	Total      decimal.Decimal `json:"total"`
	Paid       decimal.Decimal `json:"paid"`
	Due        decimal.Decimal `json:"due"`
	LastEdited EditedField     `json:"lastEdited"`
}

// Session is the billing state of one visit being registered. It is owned by
// a single caller at a time; Store serialises access for the HTTP layer.
type Session struct {
	ID        uuid.UUID
	CreatedAt time.Time

	catalog   *catalog.Snapshot
	selection *Selection

	discount   Field
	total      Field
	paid       Field
	due        decimal.Decimal
	lastEdited EditedField
	bill       Bill

	observers    []Observer
	programmatic bool
	// stale is set when the selection changed during a programmatic write.
	stale bool
}

// NewSession starts an empty bill against snap.
func NewSession(snap *catalog.Snapshot) *Session {
	s := &Session{
		ID:        uuid.New(),
		CreatedAt: time.Now(),
		catalog:   snap,
		selection: NewSelection(),
	}
	s.recompute()
	return s
}

func (s *Session) Catalog() *catalog.Snapshot { return s.catalog }

// Selected returns the selected test ids in first-selected order.
func (s *Session) Selected() []int64 { return s.selection.IDs() }

func (s *Session) Subscribe(o Observer) {
	s.observers = append(s.observers, o)
}

// AddTest selects a catalog test. Unknown ids are ignored.
func (s *Session) AddTest(id int64) bool {
	if _, ok := s.catalog.Test(id); !ok {
		return false
	}
	if !s.selection.Add(id) {
		return false
	}
	s.recompute()
	return true
}

func (s *Session) RemoveTest(id int64) bool {
	if !s.selection.Remove(id) {
		return false
	}
	s.recompute()
	return true
}

// AddGroup selects every known member of the group. Unknown groups are ignored.
func (s *Session) AddGroup(id int64) bool {
	g, ok := s.catalog.Group(id)
	if !ok {
		return false
	}
	changed := false
	for _, tid := range g.Members() {
		if _, known := s.catalog.Test(tid); known && s.selection.Add(tid) {
			changed = true
		}
	}
	if changed {
		s.recompute()
	}
	return changed
}

// RemoveGroup deselects every member of the group, including members that
// were also selected on their own.
func (s *Session) RemoveGroup(id int64) bool {
	g, ok := s.catalog.Group(id)
	if !ok {
		return false
	}
	changed := false
	for _, tid := range g.Members() {
		if s.selection.Remove(tid) {
			changed = true
		}
	}
	if changed {
		s.recompute()
	}
	return changed
}

// BillLines returns the current bill. The line slice is a copy.
func (s *Session) BillLines() Bill {
	return Bill{
		Lines:     append([]BillLine{}, s.bill.Lines...),
		BaseTotal: s.bill.BaseTotal,
	}
}

func (s *Session) OnDiscountEdited(raw string) {
	s.edit(&s.discount, EditedDiscount, raw)
}

func (s *Session) OnTotalEdited(raw string) {
	s.edit(&s.total, EditedTotal, raw)
}

// OnPaidEdited updates the paid amount. It never changes which of discount
// and total was edited last.
func (s *Session) OnPaidEdited(raw string) {
	s.edit(&s.paid, EditedNone, raw)
}

func (s *Session) edit(f *Field, which EditedField, raw string) {
	if s.programmatic {
		return
	}
	f.Value, f.HasUserInput = ParseAmount(raw)
	if which != EditedNone {
		s.lastEdited = which
	}
	s.recompute()
}

func (s *Session) Totals() Totals {
	return Totals{
		BaseTotal:  s.bill.BaseTotal,
		Discount:   s.discount.Value,
		Total:      s.total.Value,
		Paid:       s.paid.Value,
		Due:        s.due,
		LastEdited: s.lastEdited,
	}
}

// recompute rebuilds the bill and writes the derived values back. Called
// from inside a write, it only marks the bill stale; the outermost call
// repeats until the selection stops changing.
func (s *Session) recompute() {
	if s.programmatic {
		s.stale = true
		return
	}
	for {
		s.stale = false
		s.bill = BuildBillLines(s.selection, s.catalog)
		r := Reconcile(s.bill.BaseTotal, s.discount, s.total, s.lastEdited)
		due := SyncDue(r.Total, s.paid)

		s.programmaticUpdate(func() {
			s.write(FieldDiscount, &s.discount.Value, r.Discount)
			s.write(FieldTotal, &s.total.Value, r.Total)
			s.write(FieldDue, &s.due, due)
		})
		if !s.stale {
			return
		}
	}
}

// programmaticUpdate runs fn with user edits suppressed. The previous state
// is restored on every exit path, panics included, so nested scopes keep
// the outer one open.
func (s *Session) programmaticUpdate(fn func()) {
	prev := s.programmatic
	s.programmatic = true
	defer func() { s.programmatic = prev }()
	fn()
}

func (s *Session) write(name FieldName, dst *decimal.Decimal, v decimal.Decimal) {
	if dst.Equal(v) {
		*dst = v
		return
	}
	*dst = v
	for _, o := range s.observers {
		o(FieldChange{Field: name, Value: v})
	}
}
