package catalog

import (
	"time"

	"github.com/shopspring/decimal"
)

// Test is a single billable lab test.
type Test struct {
	ID        int64           `db:"id" json:"id"`
	TestName  string          `db:"test_name" json:"testName"`
	Shortcut  *string         `db:"shortcut" json:"shortcut,omitempty"`
	Price     decimal.Decimal `db:"price" json:"price"`
	IsActive  bool            `db:"is_active" json:"isActive"`
	CreatedAt time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time       `db:"updated_at" json:"updatedAt"`
}

// Group bundles tests that are billed together. A nil Price means the group
// costs the sum of its member tests.
type Group struct {
	ID        int64            `db:"id" json:"id"`
	GroupName string           `db:"group_name" json:"groupName"`
	Shortcut  *string          `db:"shortcut" json:"shortcut,omitempty"`
	Price     *decimal.Decimal `db:"price" json:"price,omitempty"`
	TestIDs   []int64          `json:"testIds"`
	CreatedAt time.Time        `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time        `db:"updated_at" json:"updatedAt"`
}

// Members returns the group's test ids in order with duplicates removed.
func (g *Group) Members() []int64 {
	seen := make(map[int64]bool, len(g.TestIDs))
	out := make([]int64, 0, len(g.TestIDs))
	for _, id := range g.TestIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// TestInput is the create/update payload for a test. IsActive defaults to
// true when omitted.
type TestInput struct {
	TestName string          `json:"testName"`
	Shortcut *string         `json:"shortcut,omitempty"`
	Price    decimal.Decimal `json:"price"`
	IsActive *bool           `json:"isActive,omitempty"`
}

func (in TestInput) apply(t *Test) {
	t.TestName = in.TestName
	t.Shortcut = in.Shortcut
	t.Price = in.Price
	t.IsActive = true
	if in.IsActive != nil {
		t.IsActive = *in.IsActive
	}
}
