package services

import (
	"context"
	"fmt"
	"time"

	"expensebook/internal/aggregate"
	"expensebook/internal/cache"
	"expensebook/internal/calendar"
	"expensebook/internal/core"
	"expensebook/internal/navigation"
	"expensebook/internal/ports"
)

const (
	DefaultTrailingDays       = 7
	DefaultDashboardCacheSize = 256
	DefaultDashboardCacheTTL  = 10 * time.Minute
)

// Dashboard is every derived view of one owner's records for a viewed month.
type Dashboard struct {
	Owner string
	Today core.Date
	Month core.MonthKey

	Window    navigation.MonthWindow
	State     navigation.State
	PrevMonth core.MonthKey // empty when stepping back is not possible
	NextMonth core.MonthKey

	Weekly     aggregate.DailySeries
	Monthly    aggregate.DailySeries
	Breakdown  aggregate.Breakdown
	MonthTotal float64

	TodayRecords []core.Record
	TodayTotal   float64

	// ByDate lists non-empty days of the trailing range, newest first.
	ByDate []aggregate.DayGroup

	RecordCount int
	Total       float64
}

type versioner interface {
	Version(owner string) uint64
}

type DashboardOptions struct {
	TrailingDays int
	CacheSize    int
	CacheTTL     time.Duration
}

// DashboardService builds dashboards and memoizes them per owner version
// when the lister exposes one.
type DashboardService struct {
	records      ports.RecordLister
	versions     versioner
	trailingDays int
	cache        *cache.LRUCache[Dashboard]
}

func NewDashboardService(records ports.RecordLister, opts DashboardOptions) *DashboardService {
	if opts.TrailingDays <= 0 {
		opts.TrailingDays = DefaultTrailingDays
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = DefaultDashboardCacheSize
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = DefaultDashboardCacheTTL
	}
	v, _ := records.(versioner)
	return &DashboardService{
		records:      records,
		versions:     v,
		trailingDays: opts.TrailingDays,
		cache:        cache.NewLRUCache[Dashboard](opts.CacheSize, opts.CacheTTL),
	}
}

// Cache exposes the memo so it can be registered for cleanup.
func (s *DashboardService) Cache() cache.Cleaner { return s.cache }

// Invalidate drops every memoized dashboard of owner.
func (s *DashboardService) Invalidate(owner string) {
	s.cache.DeletePrefix(owner + "|")
}

// Build returns the dashboard for month as seen on today. An empty month
// means today's month. The slices of the result are the caller's own;
// memoized dashboards are copied on the way out.
func (s *DashboardService) Build(ctx context.Context, sess core.Session, month core.MonthKey, today core.Date) (Dashboard, error) {
	owner, err := ownerOf(sess)
	if err != nil {
		return Dashboard{}, err
	}
	if month == "" {
		month = today.MonthKey()
	}
	days, err := calendar.DaysInMonth(month)
	if err != nil {
		return Dashboard{}, err
	}

	var key string
	if s.versions != nil {
		key = fmt.Sprintf("%s|%d|%s|%s", owner, s.versions.Version(owner), month, today)
		if d, ok := s.cache.Get(key); ok {
			return d.clone(), nil
		}
	}

	records, err := s.records.ListRecords(ctx, owner)
	if err != nil {
		return Dashboard{}, err
	}

	d := s.compute(owner, records, month, days, today)
	if key != "" {
		s.cache.Set(key, d)
		return d.clone(), nil
	}
	return d, nil
}

// clone copies every slice of d. Breakdown needs no copy: it is read
// through accessors only.
func (d Dashboard) clone() Dashboard {
	out := d
	out.Window.Available = append([]core.MonthKey(nil), d.Window.Available...)
	out.Weekly = cloneSeries(d.Weekly)
	out.Monthly = cloneSeries(d.Monthly)
	out.TodayRecords = append([]core.Record(nil), d.TodayRecords...)
	if d.ByDate != nil {
		out.ByDate = make([]aggregate.DayGroup, len(d.ByDate))
		for i, g := range d.ByDate {
			g.Records = append([]core.Record(nil), g.Records...)
			out.ByDate[i] = g
		}
	}
	return out
}

func cloneSeries(s aggregate.DailySeries) aggregate.DailySeries {
	return aggregate.DailySeries{
		Dates:  append([]core.Date(nil), s.Dates...),
		Totals: append([]float64(nil), s.Totals...),
	}
}

func (s *DashboardService) compute(owner string, records []core.Record, month core.MonthKey, days []core.Date, today core.Date) Dashboard {
	window := navigation.BuildMonthWindow(calendar.DistinctMonthKeys(records), month)
	trailing := calendar.TrailingRange(records, today)
	breakdown := aggregate.SumByCategory(records, month)
	todays := aggregate.RecordsOn(records, today)

	d := Dashboard{
		Owner:        owner,
		Today:        today,
		Month:        month,
		Window:       window,
		State:        window.State(),
		Weekly:       aggregate.Series(records, aggregate.LastNDates(trailing, s.trailingDays)),
		Monthly:      aggregate.Series(records, days),
		Breakdown:    breakdown,
		MonthTotal:   breakdown.Total(),
		TodayRecords: todays,
		TodayTotal:   aggregate.Total(todays),
		ByDate:       aggregate.GroupByDate(records, trailing),
		RecordCount:  len(records),
		Total:        aggregate.Total(records),
	}
	if prev, err := window.Step(navigation.Prev); err == nil {
		d.PrevMonth = prev
	}
	if next, err := window.Step(navigation.Next); err == nil {
		d.NextMonth = next
	}
	return d
}
