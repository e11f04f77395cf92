package app

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vendible/bookstock/internal/domain"
)

// PricingRepository is the read surface price resolution needs.
type PricingRepository interface {
	GetItem(ctx context.Context, itemID string) (domain.Item, error)
	ListMembers(ctx context.Context, poolID string) ([]domain.Item, error)
	ListPrices(ctx context.Context, itemID string) ([]domain.Price, error)
}

// PricingService resolves unit prices in minor currency units, including the
// pool fallback and aggregation strategies.
type PricingService struct {
	repo PricingRepository
}

func NewPricingService(repo PricingRepository) *PricingService {
	return &PricingService{repo: repo}
}

// MemberPrice pairs a pool member with its resolved unit price.
type MemberPrice struct {
	Item   domain.Item
	Amount int64
}

// ResolvePrice resolves an item's unit price. Non-pool items must carry
// exactly one default price. Pool items aggregate member prices with the
// pool's strategy; members without a usable price fall back to the pool's own
// direct default price and are skipped when neither exists.
func (s *PricingService) ResolvePrice(ctx context.Context, item domain.Item) (int64, error) {
	if !item.IsPool() {
		return s.defaultAmount(ctx, item)
	}

	gathered, err := s.MemberPrices(ctx, item)
	if err != nil {
		return 0, err
	}
	amounts := make([]int64, len(gathered))
	for i, mp := range gathered {
		amounts[i] = mp.Amount
	}

	switch item.PoolStrategy() {
	case domain.PoolPricingHighest:
		return maxAmount(amounts), nil
	case domain.PoolPricingAverage:
		return averageAmount(amounts), nil
	default:
		return minAmount(amounts), nil
	}
}

// MemberPrices gathers each member's resolved price in attachment order,
// falling back per member to the pool's own direct default price. Members
// with no price anywhere are omitted. A pool where nothing can be priced at
// all fails with ErrHasNoPrice.
func (s *PricingService) MemberPrices(ctx context.Context, pool domain.Item) ([]MemberPrice, error) {
	if !pool.IsPool() {
		return nil, &domain.InvalidOperationError{ItemName: pool.Name, Kind: pool.Kind, Op: "member prices"}
	}

	members, err := s.repo.ListMembers(ctx, pool.ID)
	if err != nil {
		return nil, err
	}

	fallback, hasFallback, err := s.optionalDefaultAmount(ctx, pool)
	if err != nil {
		return nil, err
	}

	out := make([]MemberPrice, 0, len(members))
	for _, m := range members {
		amount, ok, err := s.optionalDefaultAmount(ctx, m)
		if err != nil {
			return nil, err
		}
		if !ok {
			if !hasFallback {
				continue
			}
			amount = fallback
		}
		out = append(out, MemberPrice{Item: m, Amount: amount})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%s: %w", pool.Name, domain.ErrHasNoPrice)
	}
	return out, nil
}

// DefaultPrice returns the item's single default price row. Zero or many
// default flags at purchase time is an ambiguity surfaced as
// ErrMultiplePurchaseOptions.
func (s *PricingService) DefaultPrice(ctx context.Context, item domain.Item) (domain.Price, error) {
	prices, err := s.repo.ListPrices(ctx, item.ID)
	if err != nil {
		return domain.Price{}, err
	}
	if len(prices) == 0 {
		return domain.Price{}, fmt.Errorf("%s: %w", item.Name, domain.ErrHasNoPrice)
	}
	var found *domain.Price
	for i := range prices {
		if !prices[i].IsDefault {
			continue
		}
		if found != nil {
			return domain.Price{}, fmt.Errorf("%s: %w", item.Name, domain.ErrMultiplePurchaseOptions)
		}
		found = &prices[i]
	}
	if found == nil {
		return domain.Price{}, fmt.Errorf("%s: %w", item.Name, domain.ErrMultiplePurchaseOptions)
	}
	return *found, nil
}

// ScaleForDates applies booking price scaling: the unit price multiplied by
// the number of whole days in [from, until). Without a window the amount is
// returned unchanged; an empty window (from == until) scales to zero.
func ScaleForDates(amount int64, from, until *time.Time) int64 {
	if from == nil || until == nil {
		return amount
	}
	return amount * int64(domain.DaysBetween(*from, *until))
}

func (s *PricingService) defaultAmount(ctx context.Context, item domain.Item) (int64, error) {
	prices, err := s.repo.ListPrices(ctx, item.ID)
	if err != nil {
		return 0, err
	}
	if len(prices) == 0 {
		return 0, fmt.Errorf("%s: %w", item.Name, domain.ErrHasNoPrice)
	}
	amount, ok := singleDefault(prices)
	if !ok {
		return 0, fmt.Errorf("%s: %w", item.Name, domain.ErrHasNoDefaultPrice)
	}
	return amount, nil
}

// optionalDefaultAmount resolves the item's default price when it is
// well-defined; an item with no prices, or with an ambiguous default, simply
// reports no price.
func (s *PricingService) optionalDefaultAmount(ctx context.Context, item domain.Item) (int64, bool, error) {
	prices, err := s.repo.ListPrices(ctx, item.ID)
	if err != nil {
		return 0, false, err
	}
	if len(prices) == 0 {
		return 0, false, nil
	}
	amount, ok := singleDefault(prices)
	return amount, ok, nil
}

func singleDefault(prices []domain.Price) (int64, bool) {
	var found *domain.Price
	for i := range prices {
		if !prices[i].IsDefault {
			continue
		}
		if found != nil {
			return 0, false
		}
		found = &prices[i]
	}
	if found == nil {
		return 0, false
	}
	return found.UnitAmount, true
}

func minAmount(amounts []int64) int64 {
	min := amounts[0]
	for _, a := range amounts[1:] {
		if a < min {
			min = a
		}
	}
	return min
}

func maxAmount(amounts []int64) int64 {
	max := amounts[0]
	for _, a := range amounts[1:] {
		if a > max {
			max = a
		}
	}
	return max
}

// averageAmount is the arithmetic mean rounded half-up to the nearest minor
// unit.
func averageAmount(amounts []int64) int64 {
	sum := decimal.Zero
	for _, a := range amounts {
		sum = sum.Add(decimal.NewFromInt(a))
	}
	return sum.Div(decimal.NewFromInt(int64(len(amounts)))).Round(0).IntPart()
}
