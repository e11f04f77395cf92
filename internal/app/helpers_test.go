package app

import (
	"context"
	"testing"
	"time"

	"github.com/vendible/bookstock/internal/clock"
	"github.com/vendible/bookstock/internal/domain"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// services bundles the full stack over one fake store for orchestration
// tests.
type services struct {
	store        *fakeStore
	clock        *clock.Manual
	ledger       *LedgerService
	availability *AvailabilityService
	pricing      *PricingService
	pool         *PoolService
	cart         *CartService
	admin        *AdminService
}

func newServices(t *testing.T) *services {
	t.Helper()
	store := newFakeStore()
	clk := clock.NewManual(testNow)
	ledger := NewLedgerService(store, clk)
	availability := NewAvailabilityService(store, clk)
	pricing := NewPricingService(store)
	pool := NewPoolService(store, pricing, clk, nil)
	cart := NewCartService(store, store, availability, pricing, pool, ledger, clk, nil)
	admin := NewAdminService(store, clk)
	return &services{
		store:        store,
		clock:        clk,
		ledger:       ledger,
		availability: availability,
		pricing:      pricing,
		pool:         pool,
		cart:         cart,
		admin:        admin,
	}
}

func (s *services) mustCreateItem(t *testing.T, name string, kind domain.ItemKind, managesStock bool) domain.Item {
	t.Helper()
	item, err := s.admin.CreateItem(context.Background(), CreateItemInput{
		Name:         name,
		Kind:         kind,
		ManagesStock: managesStock,
	})
	if err != nil {
		t.Fatalf("create item %s: %v", name, err)
	}
	return item
}

func (s *services) mustCreatePool(t *testing.T, name string, strategy domain.PoolPricingStrategy) domain.Item {
	t.Helper()
	item, err := s.admin.CreateItem(context.Background(), CreateItemInput{
		Name:            name,
		Kind:            domain.ItemKindPool,
		PricingStrategy: &strategy,
	})
	if err != nil {
		t.Fatalf("create pool %s: %v", name, err)
	}
	return item
}

func (s *services) mustAddPrice(t *testing.T, itemID string, amount int64) domain.Price {
	t.Helper()
	price, err := s.admin.AddPrice(context.Background(), AddPriceInput{
		ItemID:     itemID,
		UnitAmount: amount,
		Currency:   "USD",
		IsDefault:  true,
	})
	if err != nil {
		t.Fatalf("add price: %v", err)
	}
	return price
}

func (s *services) mustAttach(t *testing.T, poolID string, memberIDs ...string) {
	t.Helper()
	for _, id := range memberIDs {
		if err := s.admin.AttachMember(context.Background(), poolID, id); err != nil {
			t.Fatalf("attach member: %v", err)
		}
	}
}

func (s *services) mustIncrease(t *testing.T, itemID string, quantity int) {
	t.Helper()
	if _, err := s.ledger.IncreaseStock(context.Background(), itemID, quantity); err != nil {
		t.Fatalf("increase stock: %v", err)
	}
}

// mustMember creates a stocked booking-type pool member with an optional own
// price (amount 0 means no own price, falling back to the pool's).
func (s *services) mustMember(t *testing.T, poolID, name string, amount int64) domain.Item {
	t.Helper()
	member := s.mustCreateItem(t, name, domain.ItemKindBooking, true)
	s.mustIncrease(t, member.ID, 1)
	if amount > 0 {
		s.mustAddPrice(t, member.ID, amount)
	}
	s.mustAttach(t, poolID, member.ID)
	return member
}

func (s *services) mustCart(t *testing.T) domain.Cart {
	t.Helper()
	cart, err := s.cart.CreateCart(context.Background())
	if err != nil {
		t.Fatalf("create cart: %v", err)
	}
	return cart
}

func ts(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func tp(t time.Time) *time.Time {
	return &t
}

// parkingPool builds the six-member pool used across allocation tests:
// three members price through the pool's direct 5000 default, the rest carry
// 10001, 10002 and 50000.
func parkingPool(t *testing.T, s *services, strategy domain.PoolPricingStrategy) (domain.Item, []domain.Item) {
	t.Helper()
	pool := s.mustCreatePool(t, "Parking Spaces", strategy)
	s.mustAddPrice(t, pool.ID, 5000)
	members := []domain.Item{
		s.mustMember(t, pool.ID, "Space 1", 0),
		s.mustMember(t, pool.ID, "Space 2", 0),
		s.mustMember(t, pool.ID, "Space 3", 0),
		s.mustMember(t, pool.ID, "Space 4", 10001),
		s.mustMember(t, pool.ID, "Space 5", 10002),
		s.mustMember(t, pool.ID, "Space 6", 50000),
	}
	return pool, members
}
