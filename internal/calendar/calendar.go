// Package calendar builds the day and month sequences the dashboard charts
// are laid out on.
package calendar

import (
	"sort"

	"expensebook/internal/core"
)

// InclusiveDateRange returns every calendar day from start to end, both
// included, in ascending order. An inverted range is an error rather than
// an empty result so that swapped arguments surface in tests.
func InclusiveDateRange(start, end core.Date) ([]core.Date, error) {
	if start.IsZero() || end.IsZero() {
		return nil, &core.InvalidRangeError{Start: start.String(), End: end.String(), Reason: "zero date"}
	}
	if start.After(end) {
		return nil, &core.InvalidRangeError{Start: start.String(), End: end.String(), Reason: "start is after end"}
	}

	days := int(end.Sub(start.Time).Hours()/24) + 1
	out := make([]core.Date, 0, days)
	for d := start; !d.After(end); d = d.AddDays(1) {
		out = append(out, d)
	}
	return out, nil
}

// DistinctMonthKeys returns the months that hold at least one record,
// deduplicated and sorted ascending.
func DistinctMonthKeys(records []core.Record) []core.MonthKey {
	seen := make(map[core.MonthKey]struct{}, len(records))
	keys := make([]core.MonthKey, 0)
	for _, r := range records {
		if r.Date.IsZero() {
			continue
		}
		k := r.Date.MonthKey()
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// DaysInMonth returns all days of the month, first to last.
func DaysInMonth(key core.MonthKey) ([]core.Date, error) {
	first, err := key.FirstDay()
	if err != nil {
		return nil, &core.InvalidRangeError{Start: string(key), Reason: "malformed month key"}
	}
	last, _ := key.LastDay()
	return InclusiveDateRange(first, last)
}

// TrailingRange spans from the earliest record date (today when there are
// no records) through today. When every record lies after today the result
// is empty.
func TrailingRange(records []core.Record, today core.Date) []core.Date {
	var start core.Date
	for _, r := range records {
		if r.Date.IsZero() {
			continue
		}
		if start.IsZero() || r.Date.Before(start) {
			start = r.Date
		}
	}
	if start.IsZero() {
		start = today
	}
	days, err := InclusiveDateRange(start, today)
	if err != nil {
		return []core.Date{}
	}
	return days
}

// Strings renders dates as "YYYY-MM-DD" labels.
func Strings(dates []core.Date) []string {
	out := make([]string, len(dates))
	for i, d := range dates {
		out[i] = d.String()
	}
	return out
}
