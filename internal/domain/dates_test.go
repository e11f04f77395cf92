package domain

import (
	"testing"
	"time"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestDaysBetween(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		from  time.Time
		until time.Time
		want  int
	}{
		{"three full days", date(2025, 6, 1), date(2025, 6, 4), 3},
		{"single day", date(2025, 6, 1), date(2025, 6, 2), 1},
		{"same instant", date(2025, 6, 1), date(2025, 6, 1), 0},
		{"inverted", date(2025, 6, 4), date(2025, 6, 1), 0},
		{
			"same calendar day with duration",
			time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC),
			time.Date(2025, 6, 1, 17, 0, 0, 0, time.UTC),
			1,
		},
		{
			"partial days truncate to dates",
			time.Date(2025, 6, 1, 22, 0, 0, 0, time.UTC),
			time.Date(2025, 6, 3, 2, 0, 0, 0, time.UTC),
			2,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := DaysBetween(tc.from, tc.until); got != tc.want {
				t.Fatalf("DaysBetween(%v, %v) = %d, want %d", tc.from, tc.until, got, tc.want)
			}
		})
	}
}

func TestRangesOverlap(t *testing.T) {
	t.Parallel()

	t.Run("touching endpoints do not overlap", func(t *testing.T) {
		if RangesOverlap(date(2025, 6, 1), date(2025, 6, 3), date(2025, 6, 3), date(2025, 6, 5)) {
			t.Fatalf("expected [1,3) and [3,5) to be disjoint")
		}
	})

	t.Run("partial overlap", func(t *testing.T) {
		if !RangesOverlap(date(2025, 6, 1), date(2025, 6, 3), date(2025, 6, 2), date(2025, 6, 5)) {
			t.Fatalf("expected [1,3) and [2,5) to overlap")
		}
	})

	t.Run("containment", func(t *testing.T) {
		if !RangesOverlap(date(2025, 6, 1), date(2025, 6, 10), date(2025, 6, 4), date(2025, 6, 5)) {
			t.Fatalf("expected contained range to overlap")
		}
	})
}

func TestLedgerEntryActivity(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)
	from := date(2025, 6, 1)
	until := date(2025, 6, 4)
	released := now.Add(-time.Hour)

	t.Run("permanent claim is always active", func(t *testing.T) {
		e := LedgerEntry{Kind: LedgerEntryClaim, Quantity: 1}
		if !e.ActiveAt(now) {
			t.Fatalf("expected permanent claim active")
		}
		if !e.OverlapsRange(date(2030, 1, 1), date(2030, 1, 2)) {
			t.Fatalf("expected permanent claim to overlap any window")
		}
	})

	t.Run("temporary claim active only inside its window", func(t *testing.T) {
		e := LedgerEntry{Kind: LedgerEntryClaim, Quantity: 1, ClaimedFrom: &from, ClaimedUntil: &until}
		if !e.ActiveAt(now) {
			t.Fatalf("expected claim active inside window")
		}
		if e.ActiveAt(date(2025, 6, 4)) {
			t.Fatalf("expected claim inactive at half-open end")
		}
	})

	t.Run("released claim never counts", func(t *testing.T) {
		e := LedgerEntry{Kind: LedgerEntryClaim, Quantity: 1, ReleasedAt: &released}
		if e.ActiveAt(now) || e.OverlapsRange(from, until) {
			t.Fatalf("expected released claim to be inert")
		}
	})

	t.Run("delta entries are not claims", func(t *testing.T) {
		e := LedgerEntry{Kind: LedgerEntryDelta, Quantity: 5}
		if e.ActiveAt(now) || e.OverlapsRange(from, until) {
			t.Fatalf("expected delta entry to never act as a claim")
		}
	})
}
