package google

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"expensebook/internal/core"
)

// sheetRow is a validated record row and its zero-based position in the sheet.
type sheetRow struct {
	Index  int64
	Owner  string
	Record core.Record
}

var header = []string{"Owner", "ID", "Date", "Description", "Amount", "CreatedAt"}

func formatRow(owner string, r core.Record) []interface{} {
	return []interface{}{
		owner,
		r.ID,
		r.Date.String(),
		r.Description,
		r.Amount,
		r.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// parseRows validates every row of the values matrix. A leading header row
// and blank rows are ignored; other rows that fail validation are counted
// in skipped and left out.
func parseRows(values [][]interface{}) (rows []sheetRow, skipped int) {
	for i, raw := range values {
		cols := toStrings(raw)
		if isBlank(cols) {
			continue
		}
		if i == 0 && strings.EqualFold(safeGet(cols, 0), header[0]) {
			continue
		}
		rec, owner, err := parseRow(raw)
		if err != nil {
			skipped++
			continue
		}
		rows = append(rows, sheetRow{Index: int64(i), Owner: owner, Record: rec})
	}
	return rows, skipped
}

func parseRow(raw []interface{}) (core.Record, string, error) {
	cols := toStrings(raw)
	if len(cols) < 5 {
		return core.Record{}, "", fmt.Errorf("expected at least 5 columns, got %d", len(cols))
	}
	owner := cols[0]
	id := cols[1]
	if owner == "" || id == "" {
		return core.Record{}, "", fmt.Errorf("missing owner or id")
	}
	date, err := core.ParseDate(cols[2])
	if err != nil {
		return core.Record{}, "", err
	}
	amount, err := parseAmountCell(raw[4])
	if err != nil {
		return core.Record{}, "", err
	}
	var created time.Time
	if ts := safeGet(cols, 5); ts != "" {
		created, _ = time.Parse(time.RFC3339, ts)
	}
	return core.Record{
		ID:          id,
		Date:        date,
		Description: cols[3],
		Amount:      amount,
		CreatedAt:   created,
	}, owner, nil
}

// parseAmountCell accepts numeric cells and text cells with either decimal
// separator.
func parseAmountCell(v interface{}) (float64, error) {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case int:
		f = float64(t)
	case int64:
		f = float64(t)
	case string:
		s := strings.ReplaceAll(strings.TrimSpace(t), ",", ".")
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", core.ErrInvalidAmount, t)
		}
		f = parsed
	default:
		return 0, fmt.Errorf("%w: unsupported cell type %T", core.ErrInvalidAmount, v)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, core.ErrInvalidAmount
	}
	return f, nil
}

func toStrings(in []interface{}) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func isBlank(cols []string) bool {
	for _, c := range cols {
		if c != "" {
			return false
		}
	}
	return true
}

func safeGet(arr []string, idx int) string {
	if idx < 0 || idx >= len(arr) {
		return ""
	}
	return arr[idx]
}
