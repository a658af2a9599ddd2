package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/labdesk/labdesk/internal/domain/catalog"
)

type staticLoader struct {
	snap *catalog.Snapshot
	err  error
}

func (l staticLoader) Snapshot(ctx context.Context) (*catalog.Snapshot, error) {
	return l.snap, l.err
}

func testCatalog() *catalog.Snapshot {
	return catalog.NewSnapshot(
		[]*catalog.Test{
			{ID: 1, TestName: "CBC", Price: decimal.RequireFromString("300")},
			{ID: 2, TestName: "ESR", Price: decimal.RequireFromString("100")},
			{ID: 3, TestName: "Lipid Profile", Price: decimal.RequireFromString("650.50")},
		},
		[]*catalog.Group{
			{ID: 10, GroupName: "Hemogram", TestIDs: []int64{1, 2}},
		},
	)
}

func strPtr(s string) *string { return &s }

func TestRunBill_GroupAndStandalone(t *testing.T) {
	var out bytes.Buffer
	opts := billOptions{
		Groups:   []int64{10},
		Tests:    []int64{3},
		Discount: strPtr("50.50"),
		Paid:     strPtr("500"),
	}

	if err := runBill(context.Background(), &out, staticLoader{snap: testCatalog()}, opts, zerolog.Nop()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := out.String()
	for _, want := range []string{
		"Hemogram (Group)",
		"Lipid Profile",
		"1050.50",
		"50.50",
		"1000.00",
		"500.00",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
	if strings.Index(got, "Hemogram (Group)") > strings.Index(got, "Lipid Profile") {
		t.Errorf("expected group line before standalone line:\n%s", got)
	}
}

func TestRunBill_TotalWinsOverDiscount(t *testing.T) {
	var out bytes.Buffer
	opts := billOptions{
		Tests:    []int64{1, 2},
		Discount: strPtr("10"),
		Total:    strPtr("350"),
	}

	if err := runBill(context.Background(), &out, staticLoader{snap: testCatalog()}, opts, zerolog.Nop()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	lines := strings.Split(out.String(), "\n")
	var discountLine string
	for _, l := range lines {
		if strings.HasPrefix(l, "Discount") {
			discountLine = l
		}
	}
	if !strings.HasSuffix(discountLine, "50.00") {
		t.Errorf("expected discount derived from total, got %q", discountLine)
	}
}

func TestRunBill_EmptySelection(t *testing.T) {
	var out bytes.Buffer
	if err := runBill(context.Background(), &out, staticLoader{snap: testCatalog()}, billOptions{}, zerolog.Nop()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out.String(), "No tests selected.") {
		t.Errorf("expected empty bill notice, got:\n%s", out.String())
	}
}

func TestRunBill_LoaderError(t *testing.T) {
	var out bytes.Buffer
	err := runBill(context.Background(), &out, staticLoader{err: errors.New("connection refused")}, billOptions{}, zerolog.Nop())
	if err == nil || !strings.Contains(err.Error(), "load catalog") {
		t.Fatalf("expected wrapped load error, got %v", err)
	}
}

func TestRootCmd_Subcommands(t *testing.T) {
	root := newRootCmd()
	want := map[string]bool{"serve": false, "migrate": false, "bill": false}
	for _, c := range root.Commands() {
		if _, ok := want[c.Name()]; ok {
			want[c.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("expected subcommand %q", name)
		}
	}
}

func TestSweepInterval(t *testing.T) {
	if got := sweepInterval(2 * time.Hour); got != 30*time.Minute {
		t.Errorf("expected 30m, got %s", got)
	}
	if got := sweepInterval(2 * time.Minute); got != time.Minute {
		t.Errorf("expected 1m floor, got %s", got)
	}
}
