package quotaledger

import (
	"fmt"
	"time"
)

const (
	// clampDay replaces an anchor day that does not exist in a given month.
	clampDay = 28

	// MaxPeriodDays bounds the distance between a period's start and end.
	MaxPeriodDays = 45
)

// Window is a billing window. End is the last calendar day inside the window.
type Window struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether the calendar day of d falls inside the window.
func (w Window) Contains(d time.Time) bool {
	d = DateOf(d)
	return !d.Before(w.Start) && !d.After(w.End)
}

// Days returns the number of days between Start and End.
func (w Window) Days() int {
	return daysBetween(w.Start, w.End)
}

// DateOf truncates t to its calendar day at UTC midnight.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// CalculateWindow returns the billing window containing ref for a tenant whose
// cycle flips on anchorDay. Anchor days missing from a month use day 28 for that
// month's boundary only.
func CalculateWindow(anchorDay int, ref time.Time) (Window, error) {
	if anchorDay < 1 || anchorDay > 31 {
		return Window{}, fmt.Errorf("%w: contract anchor day %d outside 1..31", ErrInvalidAmount, anchorDay)
	}

	ref = DateOf(ref)
	year, month, day := ref.Date()

	current := boundary(year, month, anchorDay)
	if day < current.Day() {
		return Window{
			Start: boundary(year, month-1, anchorDay),
			End:   current.AddDate(0, 0, -1),
		}, nil
	}

	return Window{
		Start: current,
		End:   boundary(year, month+1, anchorDay).AddDate(0, 0, -1),
	}, nil
}

// NextDueDate returns the first day of the cycle following the one containing today.
func NextDueDate(anchorDay int, today time.Time) (time.Time, error) {
	w, err := CalculateWindow(anchorDay, today)
	if err != nil {
		return time.Time{}, err
	}
	return w.End.AddDate(0, 0, 1), nil
}

// boundary returns the anchor day of the given month. month may be 0 or 13;
// time.Date normalizes it into the adjacent year.
func boundary(year int, month time.Month, anchorDay int) time.Time {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	if anchorDay > daysIn(first.Year(), first.Month()) {
		anchorDay = clampDay
	}
	return time.Date(first.Year(), first.Month(), anchorDay, 0, 0, 0, 0, time.UTC)
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func daysBetween(from, to time.Time) int {
	return int(DateOf(to).Sub(DateOf(from)).Hours() / 24)
}
