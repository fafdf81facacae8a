// Package interval implements day-granular date ranges with an optional
// open end. A nil end means the range continues indefinitely. Both bounds
// are inclusive: a range ending on 2024-06-30 still covers that day.
package interval

import (
	"time"
)

const dateLayout = "2006-01-02"

// Date builds a UTC calendar date.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// Day truncates t to its UTC calendar date.
func Day(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	y, m, d := t.UTC().Date()
	return Date(y, m, d)
}

// DayPtr is Day for optional dates. The result never aliases t.
func DayPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	d := Day(*t)
	return &d
}

// PrevDay returns the calendar day before t.
func PrevDay(t time.Time) time.Time {
	return Day(t).AddDate(0, 0, -1)
}

// NextDay returns the calendar day after t.
func NextDay(t time.Time) time.Time {
	return Day(t).AddDate(0, 0, 1)
}

// Format renders an optional date, using "open" for nil.
func Format(t *time.Time) string {
	if t == nil {
		return "open"
	}
	return t.Format(dateLayout)
}

// Range is a closed span of days [Start, End]; End == nil is +inf.
type Range struct {
	Start time.Time
	End   *time.Time
}

// New normalizes both bounds to calendar days.
func New(start time.Time, end *time.Time) Range {
	return Range{Start: Day(start), End: DayPtr(end)}
}

// IsOpen reports whether the range has no end.
func (r Range) IsOpen() bool {
	return r.End == nil
}

// Valid reports whether the end, when present, is not before the start.
func (r Range) Valid() bool {
	return r.End == nil || !Day(*r.End).Before(Day(r.Start))
}

// Covers reports whether date falls inside the range.
func (r Range) Covers(date time.Time) bool {
	d := Day(date)
	if d.Before(Day(r.Start)) {
		return false
	}
	return r.End == nil || !d.After(Day(*r.End))
}

// Overlaps reports whether the two ranges share at least one day.
func (r Range) Overlaps(o Range) bool {
	return Overlaps(r.Start, r.End, o.Start, o.End)
}

// Touches reports whether the ranges overlap or are directly adjacent, so that
// their union is a single continuous span.
func (r Range) Touches(o Range) bool {
	if r.Overlaps(o) {
		return true
	}
	if r.End != nil && NextDay(*r.End).Equal(Day(o.Start)) {
		return true
	}
	return o.End != nil && NextDay(*o.End).Equal(Day(r.Start))
}

// Extend widens the range to include [start, end]. The start moves to the
// earlier of the two; an open end on either side keeps the result open,
// otherwise the later end wins.
func (r Range) Extend(start time.Time, end *time.Time) Range {
	out := Range{Start: Day(r.Start), End: DayPtr(r.End)}
	if s := Day(start); s.Before(out.Start) {
		out.Start = s
	}
	switch {
	case out.End == nil:
	case end == nil:
		out.End = nil
	case Day(*end).After(*out.End):
		out.End = DayPtr(end)
	}
	return out
}

// Equal compares bounds at day granularity.
func (r Range) Equal(o Range) bool {
	if !Day(r.Start).Equal(Day(o.Start)) {
		return false
	}
	if r.End == nil || o.End == nil {
		return r.End == nil && o.End == nil
	}
	return Day(*r.End).Equal(Day(*o.End))
}

func (r Range) String() string {
	return "[" + r.Start.Format(dateLayout) + ", " + Format(r.End) + "]"
}

// Overlaps is the pointer-free form used by query code: two closed day ranges
// overlap when each starts no later than the other ends. A nil end never ends.
func Overlaps(aStart time.Time, aEnd *time.Time, bStart time.Time, bEnd *time.Time) bool {
	if aEnd != nil && Day(*aEnd).Before(Day(bStart)) {
		return false
	}
	if bEnd != nil && Day(*bEnd).Before(Day(aStart)) {
		return false
	}
	return true
}
