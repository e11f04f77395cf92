package domain

import "time"

type CartStatus string

const (
	CartStatusActive    CartStatus = "active"
	CartStatusConverted CartStatus = "converted"
	CartStatusAbandoned CartStatus = "abandoned"
)

// Meta keys used on pool cart items.
const (
	MetaAllocatedSingleItemID   = "allocated_single_item_id"
	MetaAllocatedSingleItemName = "allocated_single_item_name"
	MetaClaimedSingleItems      = "claimed_single_items"
	MetaIndividualTimespans     = "individual_timespans"
)

// Cart owns a sequence of cart items. FromDate/UntilDate are the cart-level
// fallback window applied to items that carry no dates of their own.
type Cart struct {
	ID        string
	Status    CartStatus
	FromDate  *time.Time
	UntilDate *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (c Cart) IsActive() bool {
	return c.Status == CartStatusActive
}

// CartItem is one line of a cart. UnitPrice is the resolved price in minor
// units, already scaled by duration for booking-type items; it is nil while
// the line is unavailable for its current window. Subtotal is authoritative
// for cart totals: pool lines charge the aggregate of their allocated member
// prices, and UnitPrice is then the rounded per-unit average.
type CartItem struct {
	ID           string
	CartID       string
	ItemID       string
	PriceID      *string
	Quantity     int
	UnitPrice    *int64
	Subtotal     *int64
	RegularPrice *int64
	From         *time.Time
	Until        *time.Time
	Meta         map[string]any
	PurchaseRef  *string
	CreatedAt    time.Time
}

// EffectiveDates resolves the line's window: its own dates if set, else the
// owning cart's window, else none.
func (ci CartItem) EffectiveDates(cart Cart) (from, until *time.Time) {
	if ci.From != nil && ci.Until != nil {
		return ci.From, ci.Until
	}
	return cart.FromDate, cart.UntilDate
}

// HasIndividualTimespans reports whether each allocated unit may carry its
// own dates, validated outside the cart.
func (ci CartItem) HasIndividualTimespans() bool {
	if ci.Meta == nil {
		return false
	}
	flag, ok := ci.Meta[MetaIndividualTimespans].(bool)
	return ok && flag
}
