package domain

import (
	"math"
	"time"
)

type ItemKind string

const (
	ItemKindSimple   ItemKind = "simple"
	ItemKindVariable ItemKind = "variable"
	ItemKindGrouped  ItemKind = "grouped"
	ItemKindExternal ItemKind = "external"
	ItemKindBooking  ItemKind = "booking"
	ItemKindPool     ItemKind = "pool"
)

type PoolPricingStrategy string

const (
	PoolPricingLowest  PoolPricingStrategy = "lowest"
	PoolPricingHighest PoolPricingStrategy = "highest"
	PoolPricingAverage PoolPricingStrategy = "average"
)

// UnlimitedStock is the availability reported for items that do not manage
// stock. It sums safely with real quantities and preserves ordering when
// pool member availabilities are aggregated.
const UnlimitedStock = math.MaxInt32

// Item is a sellable thing. Kind is immutable after creation. Pool items
// never hold claimable stock themselves; their availability is derived from
// their member items.
type Item struct {
	ID           string
	Name         string
	Kind         ItemKind
	ManagesStock bool
	// PricingStrategy applies to pool items only; nil means lowest.
	PricingStrategy *PoolPricingStrategy
	CreatedAt       time.Time
}

func (i Item) IsPool() bool {
	return i.Kind == ItemKindPool
}

func (i Item) IsBooking() bool {
	return i.Kind == ItemKindBooking
}

// RequiresDates reports whether a cart line for this item needs a timespan
// before it can be checked out. Pool items defer to their members, which the
// caller resolves separately.
func (i Item) RequiresDates() bool {
	return i.Kind == ItemKindBooking
}

// PoolStrategy returns the effective pricing strategy, defaulting to lowest.
func (i Item) PoolStrategy() PoolPricingStrategy {
	if i.PricingStrategy == nil {
		return PoolPricingLowest
	}
	return *i.PricingStrategy
}
