package domain

import "time"

type LedgerEntryKind string

const (
	// LedgerEntryDelta is a permanent stock adjustment: positive quantities
	// grow capacity, negative quantities shrink it.
	LedgerEntryDelta LedgerEntryKind = "delta"
	// LedgerEntryClaim reserves quantity, optionally bounded to a date range,
	// until released.
	LedgerEntryClaim LedgerEntryKind = "claim"
)

// LedgerEntry is one row of the append-only stock ledger for an item.
type LedgerEntry struct {
	ID       string
	ItemID   string
	Kind     LedgerEntryKind
	Quantity int
	// ClaimedFrom/ClaimedUntil bound a claim to [from, until). Both nil means
	// the claim is permanent (a non-bookable deduction).
	ClaimedFrom  *time.Time
	ClaimedUntil *time.Time
	// Reference is an opaque owner handle (cart item, purchase, ...) supplied
	// by the caller and never interpreted here.
	Reference  *string
	Note       *string
	ReleasedAt *time.Time
	CreatedAt  time.Time
}

func (e LedgerEntry) IsClaim() bool {
	return e.Kind == LedgerEntryClaim
}

// IsTemporary reports whether the claim is bounded to a date range.
func (e LedgerEntry) IsTemporary() bool {
	return e.ClaimedFrom != nil && e.ClaimedUntil != nil
}

func (e LedgerEntry) IsReleased() bool {
	return e.ReleasedAt != nil
}

// ActiveAt reports whether the claim consumes capacity at the given instant:
// unreleased and, if temporary, the instant falls within [from, until).
func (e LedgerEntry) ActiveAt(now time.Time) bool {
	if !e.IsClaim() || e.IsReleased() {
		return false
	}
	if !e.IsTemporary() {
		return true
	}
	return !now.Before(*e.ClaimedFrom) && now.Before(*e.ClaimedUntil)
}

// OverlapsRange reports whether the claim consumes capacity anywhere within
// the queried [from, until) window. Permanent claims overlap every window.
func (e LedgerEntry) OverlapsRange(from, until time.Time) bool {
	if !e.IsClaim() || e.IsReleased() {
		return false
	}
	if !e.IsTemporary() {
		return true
	}
	return RangesOverlap(*e.ClaimedFrom, *e.ClaimedUntil, from, until)
}
