package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vendible/bookstock/internal/clock"
	"github.com/vendible/bookstock/internal/domain"
)

// CartRepository is the persistence surface of carts and their lines.
// ListLines returns lines in creation order; that order drives allocation
// order when cart-level dates are applied.
type CartRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	CreateCart(ctx context.Context, cart domain.Cart) error
	GetCart(ctx context.Context, cartID string) (domain.Cart, error)
	GetCartForUpdate(ctx context.Context, cartID string) (domain.Cart, error)
	UpdateCart(ctx context.Context, cart domain.Cart) error
	ListLines(ctx context.Context, cartID string) ([]domain.CartItem, error)
	GetItemLine(ctx context.Context, cartItemID string) (domain.CartItem, error)
	FindOpenLine(ctx context.Context, cartID, itemID string) (*domain.CartItem, error)
	CreateItemLine(ctx context.Context, line domain.CartItem) error
	UpdateItemLine(ctx context.Context, line domain.CartItem) error
	DeleteItemLine(ctx context.Context, cartItemID string) error
	DeleteItemLines(ctx context.Context, cartID string) error
}

// catalogReader resolves items and pool membership for the cart orchestrator.
type catalogReader interface {
	GetItem(ctx context.Context, itemID string) (domain.Item, error)
	ListMembers(ctx context.Context, poolID string) ([]domain.Item, error)
}

// CartService orchestrates the cart lifecycle: it validates quantity against
// the availability resolver, prices lines through the pricing resolver, and
// claims stock through the ledger and pool allocator at booking and checkout
// time.
type CartService struct {
	repo         CartRepository
	catalog      catalogReader
	availability *AvailabilityService
	pricing      *PricingService
	pool         *PoolService
	ledger       *LedgerService
	clock        clock.Clock
	logger       *zap.Logger
}

func NewCartService(
	repo CartRepository,
	catalog catalogReader,
	availability *AvailabilityService,
	pricing *PricingService,
	pool *PoolService,
	ledger *LedgerService,
	clk clock.Clock,
	logger *zap.Logger,
) *CartService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CartService{
		repo:         repo,
		catalog:      catalog,
		availability: availability,
		pricing:      pricing,
		pool:         pool,
		ledger:       ledger,
		clock:        clk,
		logger:       logger,
	}
}

func (s *CartService) CreateCart(ctx context.Context) (domain.Cart, error) {
	now := s.clock.Now()
	cart := domain.Cart{
		ID:        newID(),
		Status:    domain.CartStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.CreateCart(ctx, cart); err != nil {
		return domain.Cart{}, err
	}
	return cart, nil
}

func (s *CartService) GetCart(ctx context.Context, cartID string) (domain.Cart, error) {
	return s.repo.GetCart(ctx, cartID)
}

// Items returns the cart's lines in creation order.
func (s *CartService) Items(ctx context.Context, cartID string) ([]domain.CartItem, error) {
	return s.repo.ListLines(ctx, cartID)
}

// Total sums the line subtotals; lines without a price (unavailable for their
// current window) contribute nothing.
func (s *CartService) Total(ctx context.Context, cartID string) (int64, error) {
	items, err := s.repo.ListLines(ctx, cartID)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, li := range items {
		if li.Subtotal != nil {
			total += *li.Subtotal
		}
	}
	return total, nil
}

type AddToCartInput struct {
	CartID   string
	ItemID   string
	Quantity int
	From     *time.Time
	Until    *time.Time
	Meta     map[string]any
}

// AddToCart validates pricing and total capacity and creates or increments a
// cart line. When the item is booking- or pool-typed and both dates are
// supplied the call goes through AddBooking, which also validates the window
// and, for pools, allocates members immediately. Without dates the line is
// accepted unvalidated so the shopper can pick dates later.
func (s *CartService) AddToCart(ctx context.Context, in AddToCartInput) (domain.CartItem, error) {
	if in.Quantity <= 0 {
		return domain.CartItem{}, domain.ErrInvalidQuantity
	}

	item, err := s.catalog.GetItem(ctx, in.ItemID)
	if err != nil {
		return domain.CartItem{}, err
	}

	if (item.IsBooking() || item.IsPool()) && in.From != nil && in.Until != nil {
		return s.AddBooking(ctx, AddBookingInput{
			CartID:   in.CartID,
			ItemID:   in.ItemID,
			Quantity: in.Quantity,
			From:     *in.From,
			Until:    *in.Until,
			Meta:     in.Meta,
		})
	}

	var line domain.CartItem
	err = s.repo.WithTx(ctx, func(txCtx context.Context) error {
		cart, err := s.activeCartForUpdate(txCtx, in.CartID)
		if err != nil {
			return err
		}

		// Pricing must resolve before anything lands in the cart; a pool with
		// no price anywhere fails here, not at creation or attachment time.
		unit, err := s.pricing.ResolvePrice(txCtx, item)
		if err != nil {
			return err
		}

		if item.IsPool() {
			members, err := s.catalog.ListMembers(txCtx, item.ID)
			if err != nil {
				return err
			}
			if in.Quantity > len(members) {
				return &domain.NotEnoughAvailableError{
					ItemName:  item.Name,
					Requested: in.Quantity,
					Available: len(members),
				}
			}
		} else if item.ManagesStock {
			more, err := s.availability.GetHasMore(txCtx, item, cart.ID)
			if err != nil {
				return err
			}
			if in.Quantity > more {
				return &domain.NotEnoughStockError{
					ItemName:  item.Name,
					Requested: in.Quantity,
					Available: more,
				}
			}
		}

		// Pool lines never merge: each line carries its own allocation and
		// price once dates are known.
		if !item.IsPool() {
			existing, err := s.repo.FindOpenLine(txCtx, cart.ID, item.ID)
			if err != nil {
				return err
			}
			if existing != nil {
				existing.Quantity += in.Quantity
				s.priceLine(cart, existing, item, unit)
				if err := s.repo.UpdateItemLine(txCtx, *existing); err != nil {
					return err
				}
				line = *existing
				return nil
			}
		}

		line = domain.CartItem{
			ID:        newID(),
			CartID:    cart.ID,
			ItemID:    item.ID,
			Quantity:  in.Quantity,
			Meta:      in.Meta,
			CreatedAt: s.clock.Now(),
		}
		s.priceLine(cart, &line, item, unit)
		return s.repo.CreateItemLine(txCtx, line)
	})
	if err != nil {
		return domain.CartItem{}, err
	}
	return line, nil
}

type AddBookingInput struct {
	CartID   string
	ItemID   string
	Quantity int
	From     time.Time
	Until    time.Time
	Meta     map[string]any
}

// AddBooking adds a dated line for a booking or pool item. Booking items are
// validated against date-ranged availability; pool items against their member
// count, then allocated immediately: members are claimed for the window under
// the new line's reference and the cheapest (or dearest, per strategy)
// members determine the price.
func (s *CartService) AddBooking(ctx context.Context, in AddBookingInput) (domain.CartItem, error) {
	if in.Quantity <= 0 {
		return domain.CartItem{}, domain.ErrInvalidQuantity
	}
	if in.From.After(in.Until) {
		return domain.CartItem{}, domain.ErrInvalidDateRange
	}

	item, err := s.catalog.GetItem(ctx, in.ItemID)
	if err != nil {
		return domain.CartItem{}, err
	}
	if !item.IsBooking() && !item.IsPool() {
		return domain.CartItem{}, &domain.InvalidOperationError{ItemName: item.Name, Kind: item.Kind, Op: "add booking"}
	}

	from, until := in.From, in.Until
	var line domain.CartItem
	err = s.repo.WithTx(ctx, func(txCtx context.Context) error {
		cart, err := s.activeCartForUpdate(txCtx, in.CartID)
		if err != nil {
			return err
		}

		line = domain.CartItem{
			ID:        newID(),
			CartID:    cart.ID,
			ItemID:    item.ID,
			Quantity:  in.Quantity,
			From:      &from,
			Until:     &until,
			Meta:      in.Meta,
			CreatedAt: s.clock.Now(),
		}

		if item.IsPool() {
			members, err := s.catalog.ListMembers(txCtx, item.ID)
			if err != nil {
				return err
			}
			if in.Quantity > len(members) {
				return &domain.NotEnoughAvailableError{
					ItemName:  item.Name,
					Requested: in.Quantity,
					Available: len(members),
				}
			}
			if err := s.allocatePool(txCtx, &line, item); err != nil {
				return err
			}
		} else {
			available, err := s.availability.AvailableForDateRange(txCtx, item, from, until, cart.ID)
			if err != nil {
				return err
			}
			if in.Quantity > available {
				return &domain.NotEnoughStockError{
					ItemName:  item.Name,
					Requested: in.Quantity,
					Available: available,
					From:      &from,
					Until:     &until,
				}
			}
			unit, err := s.pricing.ResolvePrice(txCtx, item)
			if err != nil {
				return err
			}
			s.priceLine(cart, &line, item, unit)
		}

		return s.repo.CreateItemLine(txCtx, line)
	})
	if err != nil {
		return domain.CartItem{}, err
	}

	s.logger.Info("booking added",
		zap.String("cart", in.CartID),
		zap.String("item", item.ID),
		zap.Int("quantity", in.Quantity))
	return line, nil
}

// SetDates applies a new cart-level window and re-applies it to every line
// that is not flagged for individual timespans. With validateAvailability,
// lines that no longer fit are marked unavailable (nil price) instead of
// failing the whole cart; only a structurally inverted range errors.
func (s *CartService) SetDates(ctx context.Context, cartID string, from, until *time.Time, validateAvailability bool) (domain.Cart, error) {
	if from != nil && until != nil && from.After(*until) {
		return domain.Cart{}, domain.ErrInvalidDateRange
	}
	return s.updateCartDates(ctx, cartID, func(cart *domain.Cart) error {
		cart.FromDate = from
		cart.UntilDate = until
		return nil
	}, validateAvailability)
}

// SetFromDate updates only the window start, validated against the existing
// end bound.
func (s *CartService) SetFromDate(ctx context.Context, cartID string, from *time.Time, validateAvailability bool) (domain.Cart, error) {
	return s.updateCartDates(ctx, cartID, func(cart *domain.Cart) error {
		if from != nil && cart.UntilDate != nil && from.After(*cart.UntilDate) {
			return domain.ErrInvalidDateRange
		}
		cart.FromDate = from
		return nil
	}, validateAvailability)
}

// SetUntilDate updates only the window end, validated against the existing
// start bound.
func (s *CartService) SetUntilDate(ctx context.Context, cartID string, until *time.Time, validateAvailability bool) (domain.Cart, error) {
	return s.updateCartDates(ctx, cartID, func(cart *domain.Cart) error {
		if until != nil && cart.FromDate != nil && cart.FromDate.After(*until) {
			return domain.ErrInvalidDateRange
		}
		cart.UntilDate = until
		return nil
	}, validateAvailability)
}

func (s *CartService) updateCartDates(ctx context.Context, cartID string, mutate func(*domain.Cart) error, validateAvailability bool) (domain.Cart, error) {
	var cart domain.Cart
	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		var err error
		cart, err = s.activeCartForUpdate(txCtx, cartID)
		if err != nil {
			return err
		}
		if err := mutate(&cart); err != nil {
			return err
		}
		cart.UpdatedAt = s.clock.Now()
		if err := s.repo.UpdateCart(txCtx, cart); err != nil {
			return err
		}
		return s.applyDatesToItems(txCtx, cart, validateAvailability)
	})
	if err != nil {
		return domain.Cart{}, err
	}
	return cart, nil
}

// ApplyDatesToItems pushes the cart window onto every line without the
// individual-timespans flag and reprices each one.
func (s *CartService) ApplyDatesToItems(ctx context.Context, cartID string, validateAvailability bool) error {
	return s.repo.WithTx(ctx, func(txCtx context.Context) error {
		cart, err := s.activeCartForUpdate(txCtx, cartID)
		if err != nil {
			return err
		}
		return s.applyDatesToItems(txCtx, cart, validateAvailability)
	})
}

func (s *CartService) applyDatesToItems(ctx context.Context, cart domain.Cart, validateAvailability bool) error {
	items, err := s.repo.ListLines(ctx, cart.ID)
	if err != nil {
		return err
	}
	for i := range items {
		li := items[i]
		if li.HasIndividualTimespans() {
			continue
		}
		li.From = cart.FromDate
		li.Until = cart.UntilDate
		// Persist the window before repricing so availability reads count
		// this line's holding against the new dates, not the old ones.
		if err := s.repo.UpdateItemLine(ctx, li); err != nil {
			return err
		}
		if err := s.repriceLine(ctx, cart, &li, validateAvailability); err != nil {
			return err
		}
		if err := s.repo.UpdateItemLine(ctx, li); err != nil {
			return err
		}
	}
	return nil
}

// repriceLine recomputes a line's price for its current window. With
// validation on, a window that no longer fits marks the line unavailable
// instead of erroring, so the rest of the cart survives a bad date pick.
func (s *CartService) repriceLine(ctx context.Context, cart domain.Cart, li *domain.CartItem, validateAvailability bool) error {
	item, err := s.catalog.GetItem(ctx, li.ItemID)
	if err != nil {
		return err
	}

	switch {
	case item.IsPool():
		// Drop the line's previous allocation before deciding the new one.
		if _, err := s.pool.ReleaseStock(ctx, item.ID, li.ID); err != nil {
			return err
		}
		clearAllocationMeta(li)

		if li.From == nil || li.Until == nil {
			unit, err := s.pricing.ResolvePrice(ctx, item)
			if err != nil {
				return err
			}
			s.priceLine(cart, li, item, unit)
			return nil
		}

		if !validateAvailability {
			unit, err := s.pricing.ResolvePrice(ctx, item)
			if err != nil {
				return err
			}
			s.priceLine(cart, li, item, unit)
			return nil
		}

		if err := s.allocatePool(ctx, li, item); err != nil {
			if isAvailabilityError(err) {
				markUnavailable(li)
				return nil
			}
			return err
		}
		return nil

	case item.IsBooking():
		unit, err := s.pricing.ResolvePrice(ctx, item)
		if err != nil {
			return err
		}
		if validateAvailability && li.From != nil && li.Until != nil {
			available, err := s.availability.AvailableForDateRange(ctx, item, *li.From, *li.Until, cart.ID)
			if err != nil {
				return err
			}
			// The line itself is part of the cart-held deduction, so a
			// negative result means its quantity no longer fits.
			if available < 0 {
				markUnavailable(li)
				return nil
			}
		}
		s.priceLine(cart, li, item, unit)
		return nil

	default:
		// Dates do not affect non-booking prices.
		return nil
	}
}

// allocatePool claims members for the line's window under the line's own
// reference and prices the line from the allocation: Average strategy charges
// the pool-level averaged price, Lowest/Highest charge the claimed members'
// actual prices.
func (s *CartService) allocatePool(ctx context.Context, li *domain.CartItem, pool domain.Item) error {
	ref := li.ID
	in := ClaimPoolStockInput{
		PoolID:    pool.ID,
		Quantity:  li.Quantity,
		Reference: &ref,
	}
	if li.From != nil && li.Until != nil {
		in.From = li.From
		in.Until = li.Until
	}
	allocations, err := s.pool.ClaimStock(ctx, in)
	if err != nil {
		return err
	}

	days := int64(1)
	if li.From != nil && li.Until != nil {
		days = int64(domain.DaysBetween(*li.From, *li.Until))
	}

	var subtotal int64
	if pool.PoolStrategy() == domain.PoolPricingAverage {
		unit, err := s.pricing.ResolvePrice(ctx, pool)
		if err != nil {
			return err
		}
		subtotal = unit * days * int64(li.Quantity)
	} else {
		for _, a := range allocations {
			subtotal += a.Amount * days
		}
	}
	// Subtotal carries the exact charged aggregate; the unit price is its
	// half-up rounded per-unit average and may differ from subtotal/quantity
	// by a minor unit when member prices do not divide evenly.
	unit := decimal.NewFromInt(subtotal).
		Div(decimal.NewFromInt(int64(li.Quantity))).
		Round(0).IntPart()

	li.UnitPrice = &unit
	sub := subtotal
	li.Subtotal = &sub
	regular := unit
	li.RegularPrice = &regular

	if li.Meta == nil {
		li.Meta = map[string]any{}
	}
	li.Meta[domain.MetaAllocatedSingleItemID] = allocations[0].Item.ID
	li.Meta[domain.MetaAllocatedSingleItemName] = allocations[0].Item.Name
	return nil
}

// ValidateBookings returns one human-readable problem per line that cannot be
// checked out as-is. It never errors on availability shortfalls; those become
// messages for the shopper.
func (s *CartService) ValidateBookings(ctx context.Context, cartID string) ([]string, error) {
	cart, err := s.repo.GetCart(ctx, cartID)
	if err != nil {
		return nil, err
	}
	items, err := s.repo.ListLines(ctx, cart.ID)
	if err != nil {
		return nil, err
	}

	var problems []string
	for _, li := range items {
		problem, err := s.lineProblem(ctx, cart, li)
		if err != nil {
			return nil, err
		}
		if problem != "" {
			problems = append(problems, problem)
		}
	}
	return problems, nil
}

// HasValidBookings reports whether ValidateBookings finds nothing to complain
// about.
func (s *CartService) HasValidBookings(ctx context.Context, cartID string) (bool, error) {
	problems, err := s.ValidateBookings(ctx, cartID)
	if err != nil {
		return false, err
	}
	return len(problems) == 0, nil
}

func (s *CartService) lineProblem(ctx context.Context, cart domain.Cart, li domain.CartItem) (string, error) {
	item, err := s.catalog.GetItem(ctx, li.ItemID)
	if err != nil {
		return "", err
	}
	from, until := li.EffectiveDates(cart)

	switch {
	case item.IsBooking():
		if from == nil || until == nil {
			return fmt.Sprintf("%s requires a timespan, please set one before checkout", item.Name), nil
		}
		available, err := s.availability.AvailableForDateRange(ctx, item, *from, *until, cart.ID)
		if err != nil {
			return "", err
		}
		if available < 0 {
			return fmt.Sprintf("%s is not available for the selected period, please choose different dates", item.Name), nil
		}

	case item.IsPool():
		members, err := s.catalog.ListMembers(ctx, item.ID)
		if err != nil {
			return "", err
		}
		if li.Quantity > len(members) {
			return fmt.Sprintf("%d available, %d requested, %s does not have enough available items",
				len(members), li.Quantity, item.Name), nil
		}
		needsDates := false
		for _, m := range members {
			if m.IsBooking() {
				needsDates = true
				break
			}
		}
		if needsDates && (from == nil || until == nil) && !li.HasIndividualTimespans() {
			return fmt.Sprintf("%s requires either a timespan or individual timespans for each of its items", item.Name), nil
		}
		if from != nil && until != nil {
			held, err := s.pool.ClaimedMembers(ctx, item.ID, li.ID)
			if err != nil {
				return "", err
			}
			if len(held) < li.Quantity {
				available, err := s.availability.AvailableForDateRange(ctx, item, *from, *until, "")
				if err != nil {
					return "", err
				}
				if available < li.Quantity-len(held) {
					return fmt.Sprintf("%s is not available for the selected period, please choose different dates", item.Name), nil
				}
			}
		}
	}
	return "", nil
}

// IsReadyForCheckout reports whether the cart has at least one line and every
// line is ready: priced, dated where its item kind demands it, and still
// within availability.
func (s *CartService) IsReadyForCheckout(ctx context.Context, cartID string) (bool, error) {
	cart, err := s.repo.GetCart(ctx, cartID)
	if err != nil {
		return false, err
	}
	items, err := s.repo.ListLines(ctx, cart.ID)
	if err != nil {
		return false, err
	}
	if len(items) == 0 {
		return false, nil
	}
	for _, li := range items {
		ready, err := s.ItemReady(ctx, cart, li)
		if err != nil {
			return false, err
		}
		if !ready {
			return false, nil
		}
	}
	return true, nil
}

// ItemReady is the per-line is_ready_to_checkout answer.
func (s *CartService) ItemReady(ctx context.Context, cart domain.Cart, li domain.CartItem) (bool, error) {
	if li.UnitPrice == nil {
		return false, nil
	}
	problem, err := s.lineProblem(ctx, cart, li)
	if err != nil {
		return false, err
	}
	return problem == "", nil
}

type CheckoutInput struct {
	CartID string
	// PurchaseRef is the opaque purchase handle claims are tagged with; one
	// is generated when empty.
	PurchaseRef string
}

// Checkout claims stock for every line and converts the cart. Pool lines swap
// their cart-held member claims for claims under the purchase reference and
// record the claimed members in order; booking and managed simple lines claim
// through the ledger directly. Any claim failure aborts the whole checkout
// and the transaction rolls every claim made within it back.
func (s *CartService) Checkout(ctx context.Context, in CheckoutInput) (domain.Cart, error) {
	purchaseRef := in.PurchaseRef
	if purchaseRef == "" {
		purchaseRef = newID()
	}

	var cart domain.Cart
	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		var err error
		cart, err = s.activeCartForUpdate(txCtx, in.CartID)
		if err != nil {
			return err
		}

		items, err := s.repo.ListLines(txCtx, cart.ID)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			return &domain.CartNotReadyError{}
		}

		var problems []string
		for _, li := range items {
			if li.UnitPrice == nil {
				item, err := s.catalog.GetItem(txCtx, li.ItemID)
				if err != nil {
					return err
				}
				problems = append(problems, fmt.Sprintf("%s is not available for the selected period, please choose different dates", item.Name))
				continue
			}
			problem, err := s.lineProblem(txCtx, cart, li)
			if err != nil {
				return err
			}
			if problem != "" {
				problems = append(problems, problem)
			}
		}
		if len(problems) > 0 {
			return &domain.CartNotReadyError{Problems: problems}
		}

		for i := range items {
			li := items[i]
			item, err := s.catalog.GetItem(txCtx, li.ItemID)
			if err != nil {
				return err
			}
			from, until := li.EffectiveDates(cart)

			switch {
			case item.IsPool():
				if err := s.checkoutPoolLine(txCtx, &li, item, purchaseRef, from, until); err != nil {
					return err
				}
			case item.ManagesStock:
				claim := ClaimStockInput{
					ItemID:    item.ID,
					Quantity:  li.Quantity,
					Reference: &purchaseRef,
				}
				if item.IsBooking() {
					claim.From = from
					claim.Until = until
				}
				if _, err := s.ledger.ClaimStock(txCtx, claim); err != nil {
					return err
				}
			}

			if !item.IsPool() {
				price, err := s.pricing.DefaultPrice(txCtx, item)
				if err != nil {
					return err
				}
				li.PriceID = &price.ID
			}

			li.PurchaseRef = &purchaseRef
			if err := s.repo.UpdateItemLine(txCtx, li); err != nil {
				return err
			}
		}

		cart.Status = domain.CartStatusConverted
		cart.UpdatedAt = s.clock.Now()
		return s.repo.UpdateCart(txCtx, cart)
	})
	if err != nil {
		return domain.Cart{}, err
	}

	s.logger.Info("cart converted",
		zap.String("cart", cart.ID),
		zap.String("purchase", purchaseRef))
	return cart, nil
}

func (s *CartService) checkoutPoolLine(ctx context.Context, li *domain.CartItem, pool domain.Item, purchaseRef string, from, until *time.Time) error {
	// Hand the cart-held member claims back before claiming under the
	// purchase reference; both run in the checkout transaction, so a failure
	// restores the cart's claims.
	if _, err := s.pool.ReleaseStock(ctx, pool.ID, li.ID); err != nil {
		return err
	}

	in := ClaimPoolStockInput{
		PoolID:    pool.ID,
		Quantity:  li.Quantity,
		Reference: &purchaseRef,
		From:      from,
		Until:     until,
	}
	allocations, err := s.pool.ClaimStock(ctx, in)
	if err != nil {
		return err
	}

	claimed := make([]string, len(allocations))
	for i, a := range allocations {
		claimed[i] = a.Item.ID
	}
	if li.Meta == nil {
		li.Meta = map[string]any{}
	}
	li.Meta[domain.MetaClaimedSingleItems] = claimed
	li.Meta[domain.MetaAllocatedSingleItemID] = allocations[0].Item.ID
	li.Meta[domain.MetaAllocatedSingleItemName] = allocations[0].Item.Name
	return nil
}

// RemoveItem deletes a line, releasing any member claims it holds.
func (s *CartService) RemoveItem(ctx context.Context, cartID, cartItemID string) error {
	return s.repo.WithTx(ctx, func(txCtx context.Context) error {
		if _, err := s.activeCartForUpdate(txCtx, cartID); err != nil {
			return err
		}
		li, err := s.repo.GetItemLine(txCtx, cartItemID)
		if err != nil {
			return err
		}
		if li.CartID != cartID {
			return domain.ErrCartItemNotFound
		}
		item, err := s.catalog.GetItem(txCtx, li.ItemID)
		if err != nil {
			return err
		}
		if item.IsPool() {
			if _, err := s.pool.ReleaseStock(txCtx, item.ID, li.ID); err != nil {
				return err
			}
		}
		return s.repo.DeleteItemLine(txCtx, li.ID)
	})
}

// Clear removes every line from the cart, releasing pool claims.
func (s *CartService) Clear(ctx context.Context, cartID string) error {
	return s.repo.WithTx(ctx, func(txCtx context.Context) error {
		if _, err := s.activeCartForUpdate(txCtx, cartID); err != nil {
			return err
		}
		items, err := s.repo.ListLines(txCtx, cartID)
		if err != nil {
			return err
		}
		for _, li := range items {
			item, err := s.catalog.GetItem(txCtx, li.ItemID)
			if err != nil {
				return err
			}
			if item.IsPool() {
				if _, err := s.pool.ReleaseStock(txCtx, item.ID, li.ID); err != nil {
					return err
				}
			}
		}
		return s.repo.DeleteItemLines(txCtx, cartID)
	})
}

// Abandon marks an active cart expired and releases its pool claims. Terminal
// states never transition.
func (s *CartService) Abandon(ctx context.Context, cartID string) (domain.Cart, error) {
	var cart domain.Cart
	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		var err error
		cart, err = s.activeCartForUpdate(txCtx, cartID)
		if err != nil {
			return err
		}
		items, err := s.repo.ListLines(txCtx, cartID)
		if err != nil {
			return err
		}
		for _, li := range items {
			item, err := s.catalog.GetItem(txCtx, li.ItemID)
			if err != nil {
				return err
			}
			if item.IsPool() {
				if _, err := s.pool.ReleaseStock(txCtx, item.ID, li.ID); err != nil {
					return err
				}
			}
		}
		cart.Status = domain.CartStatusAbandoned
		cart.UpdatedAt = s.clock.Now()
		return s.repo.UpdateCart(txCtx, cart)
	})
	if err != nil {
		return domain.Cart{}, err
	}
	return cart, nil
}

func (s *CartService) activeCartForUpdate(ctx context.Context, cartID string) (domain.Cart, error) {
	cart, err := s.repo.GetCartForUpdate(ctx, cartID)
	if err != nil {
		return domain.Cart{}, err
	}
	if !cart.IsActive() {
		return domain.Cart{}, domain.ErrCartNotActive
	}
	return cart, nil
}

// priceLine sets price, subtotal and regular price from a resolved unit
// amount, scaled by the line's effective window for booking-type items.
func (s *CartService) priceLine(cart domain.Cart, li *domain.CartItem, item domain.Item, unit int64) {
	price := unit
	if item.IsBooking() || item.IsPool() {
		from, until := li.EffectiveDates(cart)
		price = ScaleForDates(unit, from, until)
	}
	subtotal := price * int64(li.Quantity)
	li.UnitPrice = &price
	li.Subtotal = &subtotal
	regular := price
	li.RegularPrice = &regular
}

func markUnavailable(li *domain.CartItem) {
	li.UnitPrice = nil
	li.Subtotal = nil
}

func clearAllocationMeta(li *domain.CartItem) {
	if li.Meta == nil {
		return
	}
	delete(li.Meta, domain.MetaAllocatedSingleItemID)
	delete(li.Meta, domain.MetaAllocatedSingleItemName)
	delete(li.Meta, domain.MetaClaimedSingleItems)
}

func isAvailabilityError(err error) bool {
	return errors.Is(err, domain.ErrNotEnoughStock) || errors.Is(err, domain.ErrNotEnoughAvailable)
}
