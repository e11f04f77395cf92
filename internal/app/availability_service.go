package app

import (
	"context"
	"time"

	"github.com/vendible/bookstock/internal/clock"
	"github.com/vendible/bookstock/internal/domain"
)

// AvailabilityRepository is the read surface availability computations need:
// ledger sums, pool membership, and the querying cart's own held quantities.
type AvailabilityRepository interface {
	GetItem(ctx context.Context, itemID string) (domain.Item, error)
	ListMembers(ctx context.Context, poolID string) ([]domain.Item, error)
	SumDeltas(ctx context.Context, itemID string) (int, error)
	SumActiveClaims(ctx context.Context, itemID string, now time.Time) (int, error)
	SumOverlappingClaims(ctx context.Context, itemID string, from, until time.Time) (int, error)
	SumCartQuantity(ctx context.Context, cartID, itemID string) (int, error)
	SumCartQuantityOverlapping(ctx context.Context, cartID, itemID string, from, until time.Time) (int, error)
}

// AvailabilityService answers the two availability questions the cart needs:
// total capacity for add-to-cart purposes, and date-ranged availability for
// date-setting and checkout. The two are deliberately decoupled so adding an
// item with undetermined dates is never blocked by future-only conflicts.
type AvailabilityService struct {
	repo  AvailabilityRepository
	clock clock.Clock
}

func NewAvailabilityService(repo AvailabilityRepository, clk clock.Clock) *AvailabilityService {
	return &AvailabilityService{repo: repo, clock: clk}
}

// GetHasMore reports how many more units the given cart could add, ignoring
// any date window. For simple and booking items this is current capacity
// minus claims active at this instant minus what the cart already holds. For
// pools it is the sum of member capacities: claims on members never reduce a
// pool's total capacity, only its date-ranged availability.
func (s *AvailabilityService) GetHasMore(ctx context.Context, item domain.Item, cartID string) (int, error) {
	if item.IsPool() {
		members, err := s.repo.ListMembers(ctx, item.ID)
		if err != nil {
			return 0, err
		}
		total := 0
		for _, m := range members {
			c, err := s.memberCapacity(ctx, m)
			if err != nil {
				return 0, err
			}
			total = saturatingAdd(total, c)
		}
		return s.minusCartQuantity(ctx, total, cartID, item.ID)
	}

	if !item.ManagesStock {
		return domain.UnlimitedStock, nil
	}

	capacity, err := s.repo.SumDeltas(ctx, item.ID)
	if err != nil {
		return 0, err
	}
	claimed, err := s.repo.SumActiveClaims(ctx, item.ID, s.clock.Now())
	if err != nil {
		return 0, err
	}
	return s.minusCartQuantity(ctx, capacity-claimed, cartID, item.ID)
}

// HasMore reports whether the cart can add quantity more units of the item.
func (s *AvailabilityService) HasMore(ctx context.Context, item domain.Item, cartID string, quantity int) (bool, error) {
	more, err := s.GetHasMore(ctx, item, cartID)
	if err != nil {
		return false, err
	}
	return quantity <= more, nil
}

// AvailableForDateRange computes availability over [from, until): capacity
// minus every unreleased claim overlapping the window, minus what the given
// cart already holds for an overlapping window. For pools it counts members
// with at least one free unit for the window; each member contributes a
// single allocatable slot.
func (s *AvailabilityService) AvailableForDateRange(ctx context.Context, item domain.Item, from, until time.Time, cartID string) (int, error) {
	if from.After(until) {
		return 0, domain.ErrInvalidDateRange
	}

	if item.IsPool() {
		members, err := s.repo.ListMembers(ctx, item.ID)
		if err != nil {
			return 0, err
		}
		// Member claims already account for this cart's allocated lines, so
		// no cart-held deduction applies at the pool level.
		slots := 0
		for _, m := range members {
			free, err := s.itemAvailableForRange(ctx, m, from, until)
			if err != nil {
				return 0, err
			}
			if free >= 1 {
				slots++
			}
		}
		return slots, nil
	}

	available, err := s.itemAvailableForRange(ctx, item, from, until)
	if err != nil {
		return 0, err
	}
	if available == domain.UnlimitedStock {
		return available, nil
	}
	if cartID != "" {
		held, err := s.repo.SumCartQuantityOverlapping(ctx, cartID, item.ID, from, until)
		if err != nil {
			return 0, err
		}
		available -= held
	}
	return available, nil
}

func (s *AvailabilityService) itemAvailableForRange(ctx context.Context, item domain.Item, from, until time.Time) (int, error) {
	if !item.ManagesStock {
		return domain.UnlimitedStock, nil
	}
	capacity, err := s.repo.SumDeltas(ctx, item.ID)
	if err != nil {
		return 0, err
	}
	claimed, err := s.repo.SumOverlappingClaims(ctx, item.ID, from, until)
	if err != nil {
		return 0, err
	}
	return capacity - claimed, nil
}

func (s *AvailabilityService) memberCapacity(ctx context.Context, member domain.Item) (int, error) {
	if !member.ManagesStock {
		return domain.UnlimitedStock, nil
	}
	return s.repo.SumDeltas(ctx, member.ID)
}

func (s *AvailabilityService) minusCartQuantity(ctx context.Context, available int, cartID, itemID string) (int, error) {
	if available == domain.UnlimitedStock || cartID == "" {
		return available, nil
	}
	held, err := s.repo.SumCartQuantity(ctx, cartID, itemID)
	if err != nil {
		return 0, err
	}
	return available - held, nil
}

// saturatingAdd keeps pool capacity sums at UnlimitedStock once any unmanaged
// member contributes the sentinel.
func saturatingAdd(a, b int) int {
	if a >= domain.UnlimitedStock || b >= domain.UnlimitedStock {
		return domain.UnlimitedStock
	}
	sum := a + b
	if sum > domain.UnlimitedStock {
		return domain.UnlimitedStock
	}
	return sum
}
