//go:build integration

package integration

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/labdesk/labdesk/internal/domain/catalog"
)

func TestCatalogRepositories(t *testing.T) {
	ctx := context.Background()
	pool := newSchemaPool(t, "catalog")
	svc := catalog.NewService(catalog.NewTestRepoPG(pool), catalog.NewGroupRepoPG(pool), zerolog.Nop())

	hb, err := svc.CreateTest(ctx, catalog.TestInput{TestName: "Haemoglobin", Shortcut: ptrStr("HB"), Price: decimal.RequireFromString("120.50")})
	if err != nil {
		t.Fatalf("create test: %v", err)
	}
	wbc, err := svc.CreateTest(ctx, catalog.TestInput{TestName: "WBC Count", Price: decimal.RequireFromString("200")})
	if err != nil {
		t.Fatalf("create test: %v", err)
	}

	t.Run("GetTest", func(t *testing.T) {
		got, err := svc.GetTest(ctx, hb.ID)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if got.Price.StringFixed(2) != "120.50" || got.Shortcut == nil || *got.Shortcut != "HB" || !got.IsActive {
			t.Errorf("unexpected test %+v", got)
		}
		if _, err := svc.GetTest(ctx, 999999); !errors.Is(err, catalog.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("GroupMembersKeepOrder", func(t *testing.T) {
		g := &catalog.Group{GroupName: "CBC", TestIDs: []int64{wbc.ID, hb.ID}}
		if err := svc.CreateGroup(ctx, g); err != nil {
			t.Fatalf("create group: %v", err)
		}
		got, err := svc.GetGroup(ctx, g.ID)
		if err != nil {
			t.Fatalf("get group: %v", err)
		}
		if len(got.TestIDs) != 2 || got.TestIDs[0] != wbc.ID || got.TestIDs[1] != hb.ID {
			t.Errorf("expected members [%d %d], got %v", wbc.ID, hb.ID, got.TestIDs)
		}
		if got.Price != nil {
			t.Errorf("expected NULL price, got %s", got.Price)
		}

		price := decimal.RequireFromString("280")
		got.Price = &price
		got.TestIDs = []int64{hb.ID}
		if err := svc.UpdateGroup(ctx, got); err != nil {
			t.Fatalf("update group: %v", err)
		}
		again, _ := svc.GetGroup(ctx, g.ID)
		if len(again.TestIDs) != 1 || again.Price == nil || again.Price.StringFixed(2) != "280.00" {
			t.Errorf("unexpected updated group %+v", again)
		}
	})

	t.Run("SnapshotSeesInactiveTests", func(t *testing.T) {
		inactive := false
		if _, err := svc.UpdateTest(ctx, wbc.ID, catalog.TestInput{TestName: "WBC Count", Price: wbc.Price, IsActive: &inactive}); err != nil {
			t.Fatalf("deactivate: %v", err)
		}
		active, err := svc.ListTests(ctx, true)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(active) != 1 {
			t.Errorf("expected 1 active test, got %d", len(active))
		}

		snap, err := svc.Snapshot(ctx)
		if err != nil {
			t.Fatalf("snapshot: %v", err)
		}
		if snap.TestCount() != 2 || snap.GroupCount() != 1 {
			t.Errorf("expected 2 tests and 1 group, got %d/%d", snap.TestCount(), snap.GroupCount())
		}
	})

	t.Run("DeleteTestLeavesStaleMember", func(t *testing.T) {
		if err := svc.DeleteTest(ctx, hb.ID); err != nil {
			t.Fatalf("delete: %v", err)
		}
		groups, err := svc.ListGroups(ctx)
		if err != nil {
			t.Fatalf("list groups: %v", err)
		}
		if len(groups) != 1 || len(groups[0].TestIDs) != 1 || groups[0].TestIDs[0] != hb.ID {
			t.Errorf("expected group to keep the deleted member id, got %+v", groups)
		}
	})
}
