package billing

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/labdesk/labdesk/internal/domain/catalog"
)

// Resolution partitions a selection into groups billed as a unit and the
// tests those groups cover.
type Resolution struct {
	SelectedGroups []*catalog.Group
	Covered        map[int64]bool
}

// BillLine is one row of the bill: a whole group or a standalone test.
type BillLine struct {
	Label   string          `json:"label"`
	Cost    decimal.Decimal `json:"cost"`
	GroupID *int64          `json:"groupId,omitempty"`
	TestIDs []int64         `json:"testIds"`
}

// Bill is the ordered line list and its rounded sum.
type Bill struct {
	Lines     []BillLine      `json:"lines"`
	BaseTotal decimal.Decimal `json:"baseTotal"`
}

// ResolveSelection picks the groups whose every member is selected. Larger
// groups are considered first and a test claimed by an accepted group cannot
// be claimed again, so overlapping smaller groups lose. Groups that are empty
// or reference tests missing from the catalog are never candidates. Neither
// input is modified.
func ResolveSelection(sel *Selection, snap *catalog.Snapshot) Resolution {
	res := Resolution{Covered: make(map[int64]bool)}

	type candidate struct {
		group   *catalog.Group
		members []int64
	}
	var candidates []candidate
	for _, g := range snap.Groups() {
		members := g.Members()
		if len(members) == 0 {
			continue
		}
		known := true
		for _, id := range members {
			if _, ok := snap.Test(id); !ok {
				known = false
				break
			}
		}
		if known {
			candidates = append(candidates, candidate{group: g, members: members})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return len(candidates[i].members) > len(candidates[j].members)
	})

	for _, c := range candidates {
		accept := true
		for _, id := range c.members {
			if !sel.Contains(id) || res.Covered[id] {
				accept = false
				break
			}
		}
		if !accept {
			continue
		}
		res.SelectedGroups = append(res.SelectedGroups, c.group)
		for _, id := range c.members {
			res.Covered[id] = true
		}
	}
	return res
}

// GroupPrice is the group's fixed price, or the rounded sum of the current
// prices of its members when no fixed price is set.
func GroupPrice(g *catalog.Group, snap *catalog.Snapshot) decimal.Decimal {
	if g.Price != nil {
		return round(*g.Price)
	}
	sum := decimal.Zero
	for _, id := range g.Members() {
		if t, ok := snap.Test(id); ok {
			sum = round(sum.Add(t.Price))
		}
	}
	return sum
}

// BuildBillLines emits one line per accepted group (catalog order), then one
// line per standalone test (selection order). Selected ids missing from the
// catalog are dropped.
func BuildBillLines(sel *Selection, snap *catalog.Snapshot) Bill {
	res := ResolveSelection(sel, snap)
	bill := Bill{Lines: []BillLine{}, BaseTotal: decimal.Zero}

	groups := append([]*catalog.Group(nil), res.SelectedGroups...)
	sort.SliceStable(groups, func(i, j int) bool {
		oi, oj := snap.GroupOrder(groups[i].ID), snap.GroupOrder(groups[j].ID)
		if oi != oj {
			return oi < oj
		}
		return groups[i].GroupName < groups[j].GroupName
	})
	for _, g := range groups {
		id := g.ID
		bill.Lines = append(bill.Lines, BillLine{
			Label:   g.GroupName + " (Group)",
			Cost:    GroupPrice(g, snap),
			GroupID: &id,
			TestIDs: g.Members(),
		})
	}

	var standalone []*catalog.Test
	for _, id := range sel.IDs() {
		if res.Covered[id] {
			continue
		}
		if t, ok := snap.Test(id); ok {
			standalone = append(standalone, t)
		}
	}
	for _, t := range standalone {
		bill.Lines = append(bill.Lines, BillLine{
			Label:   t.TestName,
			Cost:    round(t.Price),
			TestIDs: []int64{t.ID},
		})
	}

	for _, l := range bill.Lines {
		bill.BaseTotal = round(bill.BaseTotal.Add(l.Cost))
	}
	return bill
}
