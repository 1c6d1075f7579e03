package quotaledger_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ql "github.com/ineyio/quotaledger"
)

func TestCalculateWindow(t *testing.T) {
	tests := []struct {
		name       string
		anchor     int
		ref        time.Time
		start, end time.Time
	}{
		{"first of month", 1, date(2024, 3, 20), date(2024, 3, 1), date(2024, 3, 31)},
		{"before anchor", 15, date(2024, 3, 10), date(2024, 2, 15), date(2024, 3, 14)},
		{"on anchor", 15, date(2024, 3, 15), date(2024, 3, 15), date(2024, 4, 14)},
		{"anchor 31 mid february", 31, date(2023, 2, 15), date(2023, 1, 31), date(2023, 2, 27)},
		{"anchor 31 on clamped boundary", 31, date(2023, 2, 28), date(2023, 2, 28), date(2023, 3, 30)},
		{"anchor 31 leap day", 31, date(2024, 2, 29), date(2024, 2, 28), date(2024, 3, 30)},
		{"anchor 29 leap year", 29, date(2024, 2, 15), date(2024, 1, 29), date(2024, 2, 28)},
		{"anchor 29 non-leap year", 29, date(2023, 2, 15), date(2023, 1, 29), date(2023, 2, 27)},
		{"anchor 31 in 30-day month", 31, date(2024, 4, 30), date(2024, 4, 28), date(2024, 5, 30)},
		{"january rolls back a year", 10, date(2024, 1, 5), date(2023, 12, 10), date(2024, 1, 9)},
		{"december rolls forward a year", 10, date(2024, 12, 20), date(2024, 12, 10), date(2025, 1, 9)},
		{"time of day ignored", 1, time.Date(2024, 3, 31, 23, 59, 0, 0, time.UTC), date(2024, 3, 1), date(2024, 3, 31)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, err := ql.CalculateWindow(tt.anchor, tt.ref)
			require.NoError(t, err)
			assert.Equal(t, tt.start, w.Start, "start")
			assert.Equal(t, tt.end, w.End, "end")
			assert.True(t, w.Contains(tt.ref))
		})
	}
}

func TestCalculateWindow_InvalidAnchor(t *testing.T) {
	for _, anchor := range []int{0, -1, 32} {
		_, err := ql.CalculateWindow(anchor, date(2024, 1, 1))
		assert.ErrorIs(t, err, ql.ErrInvalidAmount, "anchor %d", anchor)
	}
}

// Every day of several years, for every anchor, lies in exactly one window:
// windows contain their reference, stay within 45 days and tile without gaps.
func TestCalculateWindow_Sweep(t *testing.T) {
	for anchor := 1; anchor <= 31; anchor++ {
		for d := date(2023, 1, 1); d.Before(date(2026, 1, 1)); d = d.AddDate(0, 0, 1) {
			w, err := ql.CalculateWindow(anchor, d)
			require.NoError(t, err)

			if !w.Contains(d) {
				t.Fatalf("anchor %d: window %v..%v misses %v", anchor, w.Start, w.End, d)
			}
			if !w.Start.Before(w.End) || w.Days() > ql.MaxPeriodDays {
				t.Fatalf("anchor %d: bad window %v..%v for %v", anchor, w.Start, w.End, d)
			}

			next, err := ql.CalculateWindow(anchor, w.End.AddDate(0, 0, 1))
			require.NoError(t, err)
			if !next.Start.Equal(w.End.AddDate(0, 0, 1)) {
				t.Fatalf("anchor %d: gap after %v, next starts %v", anchor, w.End, next.Start)
			}
		}
	}
}

func TestNextDueDate(t *testing.T) {
	due, err := ql.NextDueDate(15, date(2024, 3, 20))
	require.NoError(t, err)
	assert.Equal(t, date(2024, 4, 15), due)

	due, err = ql.NextDueDate(31, date(2023, 2, 15))
	require.NoError(t, err)
	assert.Equal(t, date(2023, 2, 28), due)
}

func TestWindow(t *testing.T) {
	w := ql.Window{Start: date(2024, 3, 15), End: date(2024, 4, 14)}
	assert.Equal(t, 30, w.Days())
	assert.True(t, w.Contains(date(2024, 3, 15)))
	assert.True(t, w.Contains(date(2024, 4, 14)))
	assert.False(t, w.Contains(date(2024, 4, 15)))
	assert.False(t, w.Contains(date(2024, 3, 14)))
}
