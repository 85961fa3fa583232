package http

import (
	"math"
	"strconv"
	"time"

	"expensebook/internal/aggregate"
	"expensebook/internal/core"
	"expensebook/internal/services"
)

// Palette for breakdown slices, cycled when there are more descriptions.
var sliceColors = []string{
	"#4e79a7", "#f28e2b", "#e15759", "#76b7b2", "#59a14f",
	"#edc948", "#b07aa1", "#ff9da7", "#9c755f", "#bab0ac",
}

type recordView struct {
	ID          string
	Date        string
	Description string
	Amount      string
}

type barView struct {
	Date   string
	Label  string
	Amount string
	Height int // percent of the tallest bar
}

type sliceView struct {
	Description string
	Amount      string
	Percent     string
	Color       string
	Dash        string // stroke-dasharray on a circle of circumference 100
	Offset      string
}

type dayView struct {
	Date    string
	Label   string
	Total   string
	Records []recordView
}

type dashboardView struct {
	Month      string
	MonthLabel string
	Today      string
	PrevMonth  string
	NextMonth  string
	State      string

	Weekly      []barView
	WeeklyTotal string
	Monthly     []barView
	Breakdown   []sliceView
	MonthTotal  string

	TodayRecords []recordView
	TodayTotal   string
	ByDate       []dayView

	RecordCount int
	Total       string
}

type indexView struct {
	LoggedIn bool
	Owner    string
	Today    string
	Month    string
	Error    string
	Notice   string
}

func money(v float64) string {
	return "€" + core.FormatAmount(v)
}

func newRecordView(r core.Record) recordView {
	return recordView{
		ID:          r.ID,
		Date:        r.Date.String(),
		Description: r.Description,
		Amount:      money(r.Amount),
	}
}

func recordViews(records []core.Record) []recordView {
	out := make([]recordView, 0, len(records))
	for _, r := range records {
		out = append(out, newRecordView(r))
	}
	return out
}

func bars(series aggregate.DailySeries, label func(core.Date) string) []barView {
	var max float64
	for _, v := range series.Totals {
		max = math.Max(max, v)
	}
	out := make([]barView, 0, series.Len())
	for i, d := range series.Dates {
		v := series.Totals[i]
		height := 0
		if max > 0 && v > 0 {
			height = int(math.Round(v * 100 / max))
			if height < 2 {
				height = 2
			}
		}
		out = append(out, barView{
			Date:   d.String(),
			Label:  label(d),
			Amount: money(v),
			Height: height,
		})
	}
	return out
}

func breakdownSlices(b aggregate.Breakdown) []sliceView {
	total := b.Total()
	out := make([]sliceView, 0, b.Len())
	if total <= 0 {
		return out
	}
	// Circle starts at 3 o'clock; offset 25 moves the first slice to 12.
	cursor := 25.0
	for i, e := range b.Entries() {
		pct := e.Total * 100 / total
		out = append(out, sliceView{
			Description: e.Description,
			Amount:      money(e.Total),
			Percent:     strconv.FormatFloat(pct, 'f', 1, 64),
			Color:       sliceColors[i%len(sliceColors)],
			Dash:        fmtFloat(pct) + " " + fmtFloat(100-pct),
			Offset:      fmtFloat(cursor),
		})
		cursor -= pct
	}
	return out
}

func fmtFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}

func weekdayLabel(d core.Date) string { return d.Format("Mon 2") }
func dayLabel(d core.Date) string     { return strconv.Itoa(d.Day()) }

func monthLabel(k core.MonthKey) string {
	first, err := k.FirstDay()
	if err != nil {
		return string(k)
	}
	return first.Format("January 2006")
}

func newDashboardView(d services.Dashboard) dashboardView {
	v := dashboardView{
		Month:        string(d.Month),
		MonthLabel:   monthLabel(d.Month),
		Today:        d.Today.String(),
		PrevMonth:    string(d.PrevMonth),
		NextMonth:    string(d.NextMonth),
		State:        d.State.String(),
		Weekly:       bars(d.Weekly, weekdayLabel),
		WeeklyTotal:  money(d.Weekly.Sum()),
		Monthly:      bars(d.Monthly, dayLabel),
		Breakdown:    breakdownSlices(d.Breakdown),
		MonthTotal:   money(d.MonthTotal),
		TodayRecords: recordViews(d.TodayRecords),
		TodayTotal:   money(d.TodayTotal),
		RecordCount:  d.RecordCount,
		Total:        money(d.Total),
	}
	for _, g := range d.ByDate {
		v.ByDate = append(v.ByDate, dayView{
			Date:    g.Date.String(),
			Label:   g.Date.Format("Monday, 2 January 2006"),
			Total:   money(g.Total),
			Records: recordViews(g.Records),
		})
	}
	return v
}

// JSON shapes of the /api endpoints.
type (
	seriesJSON struct {
		Labels []string  `json:"labels"`
		Data   []float64 `json:"data"`
	}

	recordJSON struct {
		ID          string    `json:"id"`
		Date        string    `json:"date"`
		Description string    `json:"description"`
		Amount      float64   `json:"amount"`
		CreatedAt   time.Time `json:"created_at"`
	}

	dashboardJSON struct {
		Month        string       `json:"month"`
		Today        string       `json:"today"`
		State        string       `json:"state"`
		Available    []string     `json:"available_months"`
		PrevMonth    string       `json:"prev_month,omitempty"`
		NextMonth    string       `json:"next_month,omitempty"`
		Weekly       seriesJSON   `json:"weekly"`
		Monthly      seriesJSON   `json:"monthly"`
		Breakdown    seriesJSON   `json:"breakdown"`
		MonthTotal   float64      `json:"month_total"`
		TodayRecords []recordJSON `json:"today_records"`
		TodayTotal   float64      `json:"today_total"`
		RecordCount  int          `json:"record_count"`
		Total        float64      `json:"total"`
	}
)

func newRecordJSON(r core.Record) recordJSON {
	return recordJSON{
		ID:          r.ID,
		Date:        r.Date.String(),
		Description: r.Description,
		Amount:      r.Amount,
		CreatedAt:   r.CreatedAt,
	}
}

func recordsJSON(records []core.Record) []recordJSON {
	out := make([]recordJSON, 0, len(records))
	for _, r := range records {
		out = append(out, newRecordJSON(r))
	}
	return out
}

func newSeriesJSON(s aggregate.DailySeries) seriesJSON {
	out := seriesJSON{
		Labels: make([]string, 0, s.Len()),
		Data:   append(make([]float64, 0, s.Len()), s.Totals...),
	}
	for _, d := range s.Dates {
		out.Labels = append(out.Labels, d.String())
	}
	return out
}

func newDashboardJSON(d services.Dashboard) dashboardJSON {
	out := dashboardJSON{
		Month:        string(d.Month),
		Today:        d.Today.String(),
		State:        d.State.String(),
		Available:    make([]string, 0, len(d.Window.Available)),
		PrevMonth:    string(d.PrevMonth),
		NextMonth:    string(d.NextMonth),
		Weekly:       newSeriesJSON(d.Weekly),
		Monthly:      newSeriesJSON(d.Monthly),
		Breakdown:    seriesJSON{Labels: d.Breakdown.Keys(), Data: make([]float64, 0, d.Breakdown.Len())},
		MonthTotal:   d.MonthTotal,
		TodayRecords: recordsJSON(d.TodayRecords),
		TodayTotal:   d.TodayTotal,
		RecordCount:  d.RecordCount,
		Total:        d.Total,
	}
	for _, k := range d.Window.Available {
		out.Available = append(out.Available, string(k))
	}
	for _, e := range d.Breakdown.Entries() {
		out.Breakdown.Data = append(out.Breakdown.Data, e.Total)
	}
	return out
}
