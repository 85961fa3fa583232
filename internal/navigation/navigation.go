// Package navigation tracks which month the dashboard is showing and which
// neighbouring months with data can be reached from it.
package navigation

import (
	"expensebook/internal/core"
)

// Direction of a month step.
type Direction int

const (
	Prev Direction = iota - 1
	_
	Next
)

func (d Direction) String() string {
	switch d {
	case Prev:
		return "prev"
	case Next:
		return "next"
	default:
		return "none"
	}
}

// ParseDirection maps "prev"/"next" to a Direction.
func ParseDirection(s string) (Direction, bool) {
	switch s {
	case "prev":
		return Prev, true
	case "next":
		return Next, true
	}
	return 0, false
}

// State classifies a MonthWindow.
type State int

const (
	NoData State = iota
	Unanchored
	AtStart
	Mid
	AtEnd
	// Sole is a window with exactly one month which is also the current one.
	Sole
)

var stateNames = map[State]string{
	NoData:     "no_data",
	Unanchored: "unanchored",
	AtStart:    "at_start",
	Mid:        "mid",
	AtEnd:      "at_end",
	Sole:       "sole",
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return "unknown"
}

// MonthWindow is the cursor over the months that hold records.
// Available is sorted ascending and deduplicated; CurrentIndex is -1 when
// MonthKey has no records.
type MonthWindow struct {
	MonthKey     core.MonthKey
	Available    []core.MonthKey
	CurrentIndex int
}

// BuildMonthWindow locates current in available. The slice is copied so
// later changes by the caller do not leak into the window.
func BuildMonthWindow(available []core.MonthKey, current core.MonthKey) MonthWindow {
	w := MonthWindow{
		MonthKey:     current,
		Available:    append([]core.MonthKey(nil), available...),
		CurrentIndex: -1,
	}
	for i, k := range w.Available {
		if k == current {
			w.CurrentIndex = i
			break
		}
	}
	return w
}

func (w MonthWindow) CanStepPrev() bool {
	return w.CurrentIndex > 0
}

func (w MonthWindow) CanStepNext() bool {
	return w.CurrentIndex >= 0 && w.CurrentIndex < len(w.Available)-1
}

// CanStep reports whether a step in dir is valid.
func (w MonthWindow) CanStep(dir Direction) bool {
	switch dir {
	case Prev:
		return w.CanStepPrev()
	case Next:
		return w.CanStepNext()
	}
	return false
}

// Step returns the neighbouring month in dir. Stepping where CanStep is
// false returns an OutOfRangeError instead of clamping.
func (w MonthWindow) Step(dir Direction) (core.MonthKey, error) {
	if !w.CanStep(dir) {
		return "", &core.OutOfRangeError{Index: w.CurrentIndex, Length: len(w.Available), Direction: dir.String()}
	}
	return w.Available[w.CurrentIndex+int(dir)], nil
}

// Advance is Step followed by rebuilding the window on the new month.
func (w MonthWindow) Advance(dir Direction) (MonthWindow, error) {
	next, err := w.Step(dir)
	if err != nil {
		return w, err
	}
	return MonthWindow{MonthKey: next, Available: w.Available, CurrentIndex: w.CurrentIndex + int(dir)}, nil
}

func (w MonthWindow) State() State {
	last := len(w.Available) - 1
	switch {
	case len(w.Available) == 0:
		return NoData
	case w.CurrentIndex < 0:
		return Unanchored
	case last == 0:
		return Sole
	case w.CurrentIndex == 0:
		return AtStart
	case w.CurrentIndex == last:
		return AtEnd
	default:
		return Mid
	}
}
