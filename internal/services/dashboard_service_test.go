package services

import (
	"context"
	"errors"
	"testing"

	"expensebook/internal/core"
	"expensebook/internal/memory"
	"expensebook/internal/navigation"
	"expensebook/internal/store"
)

type countingLister struct {
	*store.Versioned
	lists int
}

func (c *countingLister) ListRecords(ctx context.Context, owner string) ([]core.Record, error) {
	c.lists++
	return c.Versioned.ListRecords(ctx, owner)
}

func seed(t *testing.T, s interface {
	InsertRecord(context.Context, string, core.NewRecord) (core.Record, error)
}, owner string, recs ...core.NewRecord) {
	t.Helper()
	for _, r := range recs {
		if _, err := s.InsertRecord(context.Background(), owner, r); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
}

func rec(date, desc string, amount float64) core.NewRecord {
	return core.NewRecord{Date: core.MustParseDate(date), Description: desc, Amount: amount}
}

func TestDashboard_Build(t *testing.T) {
	ctx := context.Background()
	mem := memory.New()
	seed(t, mem, ann.Owner,
		rec("2024-02-10", "Rent", 500),
		rec("2024-03-01", "Lunch", 10),
		rec("2024-03-01", "Coffee", 2),
		rec("2024-03-05", "Lunch", 15),
	)
	seed(t, mem, "bob@example.com", rec("2024-03-05", "Lunch", 99))

	svc := NewDashboardService(mem, DashboardOptions{})
	today := core.MustParseDate("2024-03-05")

	d, err := svc.Build(ctx, ann, "", today)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if d.Month != "2024-03" {
		t.Errorf("Month = %s, want today's month", d.Month)
	}
	if d.State != navigation.AtEnd || d.PrevMonth != "2024-02" || d.NextMonth != "" {
		t.Errorf("navigation = %v prev=%q next=%q", d.State, d.PrevMonth, d.NextMonth)
	}

	if d.Monthly.Len() != 31 || d.Monthly.Sum() != 27 {
		t.Errorf("monthly len=%d sum=%v", d.Monthly.Len(), d.Monthly.Sum())
	}
	if d.Monthly.Totals[0] != 12 || d.Monthly.Totals[4] != 15 {
		t.Errorf("monthly totals = %v", d.Monthly.Totals)
	}

	if d.Weekly.Len() != DefaultTrailingDays {
		t.Fatalf("weekly len = %d", d.Weekly.Len())
	}
	if last := d.Weekly.Dates[d.Weekly.Len()-1]; last != today {
		t.Errorf("weekly must end today, got %s", last)
	}
	if d.Weekly.Sum() != 27 {
		t.Errorf("weekly sum = %v", d.Weekly.Sum())
	}

	if got, _ := d.Breakdown.Get("Lunch"); got != 25 {
		t.Errorf("Lunch = %v", got)
	}
	if keys := d.Breakdown.Keys(); len(keys) != 2 || keys[0] != "Lunch" || keys[1] != "Coffee" {
		t.Errorf("breakdown keys = %v", keys)
	}
	if d.MonthTotal != 27 {
		t.Errorf("MonthTotal = %v", d.MonthTotal)
	}

	if len(d.TodayRecords) != 1 || d.TodayTotal != 15 {
		t.Errorf("today = %v total %v", d.TodayRecords, d.TodayTotal)
	}
	if len(d.ByDate) != 3 || d.ByDate[0].Date != today {
		t.Errorf("ByDate = %+v", d.ByDate)
	}
	if d.RecordCount != 4 || d.Total != 527 {
		t.Errorf("count=%d total=%v", d.RecordCount, d.Total)
	}
}

func TestDashboard_NoData(t *testing.T) {
	svc := NewDashboardService(memory.New(), DashboardOptions{TrailingDays: 3})
	today := core.MustParseDate("2024-03-05")

	d, err := svc.Build(context.Background(), ann, "", today)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if d.State != navigation.NoData {
		t.Errorf("State = %v", d.State)
	}
	if d.Weekly.Len() != 1 || d.Weekly.Dates[0] != today {
		t.Errorf("weekly on empty store should be just today, got %v", d.Weekly.Dates)
	}
	if d.Breakdown.Len() != 0 || len(d.ByDate) != 0 {
		t.Errorf("expected empty views")
	}
}

func TestDashboard_InvalidMonth(t *testing.T) {
	svc := NewDashboardService(memory.New(), DashboardOptions{})
	_, err := svc.Build(context.Background(), ann, "2024-13", core.MustParseDate("2024-03-05"))
	if !errors.Is(err, core.ErrInvalidRange) {
		t.Fatalf("err = %v, want invalid range", err)
	}
	_, err = svc.Build(context.Background(), core.Session{}, "", core.MustParseDate("2024-03-05"))
	if !errors.Is(err, core.ErrUnauthenticated) {
		t.Fatalf("err = %v, want unauthenticated", err)
	}
}

func TestDashboard_MemoizedUntilMutation(t *testing.T) {
	ctx := context.Background()
	lister := &countingLister{Versioned: store.NewVersioned(memory.New())}
	seed(t, lister, ann.Owner, rec("2024-03-01", "Lunch", 10))

	svc := NewDashboardService(lister, DashboardOptions{})
	today := core.MustParseDate("2024-03-05")

	for i := 0; i < 3; i++ {
		if _, err := svc.Build(ctx, ann, "2024-03", today); err != nil {
			t.Fatal(err)
		}
	}
	if lister.lists != 1 {
		t.Fatalf("expected one store read, got %d", lister.lists)
	}

	seed(t, lister, ann.Owner, rec("2024-03-02", "Lunch", 5))
	d, err := svc.Build(ctx, ann, "2024-03", today)
	if err != nil {
		t.Fatal(err)
	}
	if lister.lists != 2 || d.MonthTotal != 15 {
		t.Fatalf("mutation must invalidate: lists=%d total=%v", lister.lists, d.MonthTotal)
	}

	svc.Invalidate(ann.Owner)
	if _, err := svc.Build(ctx, ann, "2024-03", today); err != nil {
		t.Fatal(err)
	}
	if lister.lists != 3 {
		t.Fatalf("Invalidate must drop the memo, lists=%d", lister.lists)
	}
}

func TestDashboard_MemoizedResultIsNotShared(t *testing.T) {
	ctx := context.Background()
	lister := &countingLister{Versioned: store.NewVersioned(memory.New())}
	seed(t, lister, ann.Owner, rec("2024-03-01", "Lunch", 10), rec("2024-03-05", "Coffee", 2))

	svc := NewDashboardService(lister, DashboardOptions{})
	today := core.MustParseDate("2024-03-05")

	first, err := svc.Build(ctx, ann, "2024-03", today)
	if err != nil {
		t.Fatal(err)
	}
	first.Monthly.Totals[0] = 999
	first.Weekly.Totals[len(first.Weekly.Totals)-1] = 999
	first.TodayRecords[0].Amount = 999
	first.Window.Available[0] = "1999-01"
	first.ByDate[0].Records[0].Amount = 999

	second, err := svc.Build(ctx, ann, "2024-03", today)
	if err != nil {
		t.Fatal(err)
	}
	if lister.lists != 1 {
		t.Fatalf("second build should come from the memo, lists=%d", lister.lists)
	}
	if second.Monthly.Totals[0] != 10 || second.Weekly.Totals[len(second.Weekly.Totals)-1] != 2 {
		t.Errorf("series leaked a caller's edit: monthly=%v weekly=%v", second.Monthly.Totals[0], second.Weekly.Totals)
	}
	if second.TodayRecords[0].Amount != 2 || second.ByDate[0].Records[0].Amount != 2 {
		t.Errorf("records leaked a caller's edit: %+v", second.TodayRecords)
	}
	if second.Window.Available[0] != "2024-03" {
		t.Errorf("window leaked a caller's edit: %v", second.Window.Available)
	}
}
