package aggregate

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"expensebook/internal/calendar"
	"expensebook/internal/core"
)

func d(s string) core.Date { return core.MustParseDate(s) }

func rec(id, date, desc string, amount float64) core.Record {
	return core.Record{ID: id, Date: d(date), Description: desc, Amount: amount}
}

func dates(ss ...string) []core.Date {
	out := make([]core.Date, len(ss))
	for i, s := range ss {
		out[i] = d(s)
	}
	return out
}

func scenarioRecords() []core.Record {
	return []core.Record{
		rec("1", "2024-01-01", "food", 20000),
		rec("2", "2024-01-01", "food", 5000),
		rec("3", "2024-01-03", "transport", 15000),
	}
}

func TestSumByDateScenario(t *testing.T) {
	got := SumByDate(scenarioRecords(), dates("2024-01-01", "2024-01-02", "2024-01-03"))
	assert.Equal(t, []float64{25000, 0, 15000}, got)
}

func TestSumByCategoryScenario(t *testing.T) {
	b := SumByCategory(scenarioRecords(), "2024-01")
	assert.Equal(t, []string{"food", "transport"}, b.Keys())

	food, ok := b.Get("food")
	require.True(t, ok)
	assert.Equal(t, 25000.0, food)

	transport, ok := b.Get("transport")
	require.True(t, ok)
	assert.Equal(t, 15000.0, transport)
	assert.Equal(t, 40000.0, b.Total())
}

func TestSumByDateEmptyInputs(t *testing.T) {
	assert.Empty(t, SumByDate(nil, nil))
	assert.Equal(t, []float64{0, 0}, SumByDate(nil, dates("2024-01-01", "2024-01-02")))
	assert.Empty(t, SumByDate(scenarioRecords(), nil))
}

func TestSumByDateLengthAndMass(t *testing.T) {
	records := append(scenarioRecords(), rec("4", "2024-02-10", "rent", 700000))
	seq := dates("2024-01-03", "2024-01-01", "2024-01-03", "2023-12-31")

	got := SumByDate(records, seq)
	require.Len(t, got, len(seq))
	assert.Equal(t, []float64{15000, 25000, 15000, 0}, got)

	var want float64
	for _, day := range seq {
		for _, r := range records {
			if r.Date == day {
				want += r.Amount
			}
		}
	}
	var sum float64
	for _, v := range got {
		sum += v
	}
	assert.Equal(t, want, sum)
}

func TestSumByDateDoesNotValidateAmounts(t *testing.T) {
	records := []core.Record{rec("1", "2024-01-01", "refund", -500), rec("2", "2024-01-01", "x", 200)}
	assert.Equal(t, []float64{-300}, SumByDate(records, dates("2024-01-01")))
}

func TestSumByCategoryFiltersMonth(t *testing.T) {
	records := []core.Record{
		rec("1", "2023-12-31", "food", 100),
		rec("2", "2024-01-15", "Food", 1),
		rec("3", "2024-01-20", "food", 2),
		rec("4", "2024-02-01", "food", 300),
	}
	b := SumByCategory(records, "2024-01")
	assert.Equal(t, []string{"Food", "food"}, b.Keys())
	v, _ := b.Get("food")
	assert.Equal(t, 2.0, v)

	_, ok := b.Get("rent")
	assert.False(t, ok)
	assert.Zero(t, SumByCategory(records, "2025-05").Len())
}

func TestSumByCategoryPermutationKeepsTotals(t *testing.T) {
	records := []core.Record{
		rec("1", "2024-03-01", "food", 10),
		rec("2", "2024-03-02", "rent", 500),
		rec("3", "2024-03-02", "food", 15),
		rec("4", "2024-03-09", "fuel", 40),
		rec("5", "2024-03-11", "rent", 20),
	}
	base := SumByCategory(records, "2024-03")

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 20; i++ {
		shuffled := append([]core.Record(nil), records...)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })

		got := SumByCategory(shuffled, "2024-03")
		assert.ElementsMatch(t, base.Keys(), got.Keys())
		for _, k := range base.Keys() {
			want, _ := base.Get(k)
			have, _ := got.Get(k)
			assert.Equal(t, want, have, "total for %s", k)
		}

		firstSeen := make([]string, 0)
		seen := map[string]bool{}
		for _, r := range shuffled {
			if !seen[r.Description] {
				seen[r.Description] = true
				firstSeen = append(firstSeen, r.Description)
			}
		}
		assert.Equal(t, firstSeen, got.Keys())
	}
}

func TestLastNDates(t *testing.T) {
	seq := dates("2024-01-01", "2024-01-02", "2024-01-03")

	assert.Equal(t, seq, LastNDates(seq, 5))
	assert.Equal(t, seq, LastNDates(seq, 3))
	assert.Equal(t, dates("2024-01-02", "2024-01-03"), LastNDates(seq, 2))
	assert.Empty(t, LastNDates(seq, 0))
	assert.Empty(t, LastNDates(seq, -1))
	assert.Empty(t, LastNDates(nil, 7))

	out := LastNDates(seq, 3)
	out[0] = d("1999-01-01")
	assert.Equal(t, "2024-01-01", seq[0].String(), "input must not be aliased")
}

func TestTrailingWeekOverRange(t *testing.T) {
	records := []core.Record{rec("1", "2024-01-01", "food", 5), rec("2", "2024-01-09", "food", 7)}
	week := LastNDates(calendar.TrailingRange(records, d("2024-01-10")), 7)
	s := Series(records, week)
	assert.Equal(t, 7, s.Len())
	assert.Equal(t, "2024-01-04", s.Dates[0].String())
	assert.Equal(t, 7.0, s.Sum())
}

func TestGroupByDate(t *testing.T) {
	records := scenarioRecords()
	groups := GroupByDate(records, dates("2024-01-01", "2024-01-02", "2024-01-03"))
	require.Len(t, groups, 2)
	assert.Equal(t, "2024-01-03", groups[0].Date.String())
	assert.Equal(t, 15000.0, groups[0].Total)
	assert.Equal(t, "2024-01-01", groups[1].Date.String())
	assert.Len(t, groups[1].Records, 2)
	assert.Equal(t, "1", groups[1].Records[0].ID)
}

func TestRecordsOnAndTotal(t *testing.T) {
	records := scenarioRecords()
	assert.Len(t, RecordsOn(records, d("2024-01-01")), 2)
	assert.Empty(t, RecordsOn(records, d("2024-01-02")))
	assert.Equal(t, 40000.0, Total(records))
	assert.Zero(t, Total(nil))
}
