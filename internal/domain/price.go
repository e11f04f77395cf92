package domain

import "time"

type PriceKind string

const (
	PriceKindOneTime   PriceKind = "one_time"
	PriceKindRecurring PriceKind = "recurring"
)

// Price is a unit price attached to an item, in minor currency units.
// "The default price" of an item is well-defined only when exactly one of
// its prices has IsDefault set.
type Price struct {
	ID         string
	ItemID     string
	UnitAmount int64
	Currency   string
	IsDefault  bool
	Kind       PriceKind
	CreatedAt  time.Time
}
