// Package aggregate reduces a snapshot of records into the numeric series
// the dashboard renders. Every function here is pure: inputs are read only,
// empty inputs give empty (or zero-filled) results, and amounts are summed
// as given without validation.
package aggregate

import (
	"sort"

	"expensebook/internal/core"
)

// DailySeries is a sequence of dates with totals aligned by index.
type DailySeries struct {
	Dates  []core.Date
	Totals []float64
}

// Len returns the number of points in the series.
func (s DailySeries) Len() int { return len(s.Dates) }

// Sum adds every point of the series.
func (s DailySeries) Sum() float64 {
	var total float64
	for _, v := range s.Totals {
		total += v
	}
	return total
}

// SumByDate totals the records falling on each of dates, in the order the
// dates are given. A date repeated in dates is totalled at each occurrence.
// Records on dates outside the sequence are ignored.
func SumByDate(records []core.Record, dates []core.Date) []float64 {
	byDay := make(map[string]float64, len(records))
	for _, r := range records {
		byDay[r.Date.String()] += r.Amount
	}
	totals := make([]float64, len(dates))
	for i, day := range dates {
		totals[i] = byDay[day.String()]
	}
	return totals
}

// Series is SumByDate packaged with its dates.
func Series(records []core.Record, dates []core.Date) DailySeries {
	return DailySeries{
		Dates:  append([]core.Date(nil), dates...),
		Totals: SumByDate(records, dates),
	}
}

// CategoryTotal is one description bucket of a Breakdown.
type CategoryTotal struct {
	Description string
	Total       float64
}

// Breakdown maps descriptions to totals and remembers the order in which
// each description was first seen.
type Breakdown struct {
	entries []CategoryTotal
	index   map[string]int
}

// SumByCategory totals the records of one month per exact description.
func SumByCategory(records []core.Record, month core.MonthKey) Breakdown {
	b := Breakdown{index: make(map[string]int)}
	for _, r := range records {
		if !month.Contains(r.Date) {
			continue
		}
		i, ok := b.index[r.Description]
		if !ok {
			i = len(b.entries)
			b.index[r.Description] = i
			b.entries = append(b.entries, CategoryTotal{Description: r.Description})
		}
		b.entries[i].Total += r.Amount
	}
	return b
}

// Keys returns the descriptions in first-seen order.
func (b Breakdown) Keys() []string {
	keys := make([]string, len(b.entries))
	for i, e := range b.entries {
		keys[i] = e.Description
	}
	return keys
}

// Get returns the total for a description.
func (b Breakdown) Get(description string) (float64, bool) {
	i, ok := b.index[description]
	if !ok {
		return 0, false
	}
	return b.entries[i].Total, true
}

// Entries returns a copy of the buckets in first-seen order.
func (b Breakdown) Entries() []CategoryTotal {
	return append([]CategoryTotal(nil), b.entries...)
}

// Len is the number of distinct descriptions.
func (b Breakdown) Len() int { return len(b.entries) }

// Total adds every bucket.
func (b Breakdown) Total() float64 {
	var total float64
	for _, e := range b.entries {
		total += e.Total
	}
	return total
}

// LastNDates returns the final n dates. Fewer than n dates come back whole;
// n <= 0 gives an empty sequence.
func LastNDates(dates []core.Date, n int) []core.Date {
	if n <= 0 {
		return []core.Date{}
	}
	if n >= len(dates) {
		return append([]core.Date(nil), dates...)
	}
	return append([]core.Date(nil), dates[len(dates)-n:]...)
}

// RecordsOn returns the records dated day, in input order.
func RecordsOn(records []core.Record, day core.Date) []core.Record {
	out := make([]core.Record, 0)
	for _, r := range records {
		if r.Date == day {
			out = append(out, r)
		}
	}
	return out
}

// DayGroup is the list of records for one date.
type DayGroup struct {
	Date    core.Date
	Records []core.Record
	Total   float64
}

// GroupByDate lists the records of each date that has any, newest date
// first. Days without records are skipped.
func GroupByDate(records []core.Record, dates []core.Date) []DayGroup {
	groups := make([]DayGroup, 0)
	for _, day := range dates {
		on := RecordsOn(records, day)
		if len(on) == 0 {
			continue
		}
		var total float64
		for _, r := range on {
			total += r.Amount
		}
		groups = append(groups, DayGroup{Date: day, Records: on, Total: total})
	}
	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].Date.After(groups[j].Date)
	})
	return groups
}

// Total sums the amount of every record.
func Total(records []core.Record) float64 {
	var total float64
	for _, r := range records {
		total += r.Amount
	}
	return total
}
