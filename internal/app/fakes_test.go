package app

import (
	"context"
	"sort"
	"time"

	"github.com/vendible/bookstock/internal/domain"
)

// fakeStore is an in-memory stand-in for the Postgres repositories. It
// implements every repository interface the services consume; WithTx simply
// runs the function, so transactional rollback itself is exercised by the
// storage integration tests, not here.
type fakeStore struct {
	items   map[string]domain.Item
	members map[string][]string
	prices  map[string][]domain.Price
	entries []domain.LedgerEntry
	carts   map[string]domain.Cart
	lines   []domain.CartItem
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		items:   map[string]domain.Item{},
		members: map[string][]string{},
		prices:  map[string][]domain.Price{},
		carts:   map[string]domain.Cart{},
	}
}

func (f *fakeStore) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (f *fakeStore) CreateItem(_ context.Context, item domain.Item) error {
	f.items[item.ID] = item
	return nil
}

func (f *fakeStore) GetItem(_ context.Context, itemID string) (domain.Item, error) {
	item, ok := f.items[itemID]
	if !ok {
		return domain.Item{}, domain.ErrItemNotFound
	}
	return item, nil
}

func (f *fakeStore) GetItemForUpdate(ctx context.Context, itemID string) (domain.Item, error) {
	return f.GetItem(ctx, itemID)
}

func (f *fakeStore) ListItems(_ context.Context) ([]domain.Item, error) {
	out := make([]domain.Item, 0, len(f.items))
	for _, item := range f.items {
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeStore) CreatePrice(_ context.Context, price domain.Price) error {
	f.prices[price.ItemID] = append(f.prices[price.ItemID], price)
	return nil
}

func (f *fakeStore) ListPrices(_ context.Context, itemID string) ([]domain.Price, error) {
	return append([]domain.Price{}, f.prices[itemID]...), nil
}

func (f *fakeStore) AttachMember(_ context.Context, poolID, memberID string) error {
	f.members[poolID] = append(f.members[poolID], memberID)
	return nil
}

func (f *fakeStore) ListMembers(_ context.Context, poolID string) ([]domain.Item, error) {
	ids := f.members[poolID]
	out := make([]domain.Item, 0, len(ids))
	for _, id := range ids {
		out = append(out, f.items[id])
	}
	return out, nil
}

func (f *fakeStore) ListMembersForUpdate(ctx context.Context, poolID string) ([]domain.Item, error) {
	return f.ListMembers(ctx, poolID)
}

func (f *fakeStore) InsertEntry(_ context.Context, entry domain.LedgerEntry) error {
	f.entries = append(f.entries, entry)
	return nil
}

func (f *fakeStore) SumDeltas(_ context.Context, itemID string) (int, error) {
	total := 0
	for _, e := range f.entries {
		if e.ItemID == itemID && e.Kind == domain.LedgerEntryDelta {
			total += e.Quantity
		}
	}
	return total, nil
}

func (f *fakeStore) SumActiveClaims(_ context.Context, itemID string, now time.Time) (int, error) {
	total := 0
	for _, e := range f.entries {
		if e.ItemID == itemID && e.ActiveAt(now) {
			total += e.Quantity
		}
	}
	return total, nil
}

func (f *fakeStore) SumOverlappingClaims(_ context.Context, itemID string, from, until time.Time) (int, error) {
	total := 0
	for _, e := range f.entries {
		if e.ItemID == itemID && e.OverlapsRange(from, until) {
			total += e.Quantity
		}
	}
	return total, nil
}

func (f *fakeStore) ListClaims(_ context.Context, itemID string) ([]domain.LedgerEntry, error) {
	var out []domain.LedgerEntry
	for _, e := range f.entries {
		if e.ItemID == itemID && e.IsClaim() {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeStore) GetClaim(_ context.Context, claimID string) (domain.LedgerEntry, error) {
	for _, e := range f.entries {
		if e.ID == claimID && e.IsClaim() {
			return e, nil
		}
	}
	return domain.LedgerEntry{}, domain.ErrClaimNotFound
}

func (f *fakeStore) ReleaseClaim(_ context.Context, claimID string, at time.Time) (bool, error) {
	for i := range f.entries {
		if f.entries[i].ID != claimID || !f.entries[i].IsClaim() {
			continue
		}
		if f.entries[i].ReleasedAt != nil {
			return false, nil
		}
		released := at
		f.entries[i].ReleasedAt = &released
		return true, nil
	}
	return false, domain.ErrClaimNotFound
}

func (f *fakeStore) ListMemberClaimsByReference(_ context.Context, poolID, reference string) ([]domain.LedgerEntry, error) {
	memberIDs := map[string]bool{}
	for _, id := range f.members[poolID] {
		memberIDs[id] = true
	}
	var out []domain.LedgerEntry
	for _, e := range f.entries {
		if !e.IsClaim() || e.Reference == nil || *e.Reference != reference {
			continue
		}
		if memberIDs[e.ItemID] {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeStore) CreateCart(_ context.Context, cart domain.Cart) error {
	f.carts[cart.ID] = cart
	return nil
}

func (f *fakeStore) GetCart(_ context.Context, cartID string) (domain.Cart, error) {
	cart, ok := f.carts[cartID]
	if !ok {
		return domain.Cart{}, domain.ErrCartNotFound
	}
	return cart, nil
}

func (f *fakeStore) GetCartForUpdate(ctx context.Context, cartID string) (domain.Cart, error) {
	return f.GetCart(ctx, cartID)
}

func (f *fakeStore) UpdateCart(_ context.Context, cart domain.Cart) error {
	if _, ok := f.carts[cart.ID]; !ok {
		return domain.ErrCartNotFound
	}
	f.carts[cart.ID] = cart
	return nil
}

func (f *fakeStore) ListLines(_ context.Context, cartID string) ([]domain.CartItem, error) {
	var out []domain.CartItem
	for _, li := range f.lines {
		if li.CartID == cartID {
			out = append(out, li)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeStore) GetItemLine(_ context.Context, cartItemID string) (domain.CartItem, error) {
	for _, li := range f.lines {
		if li.ID == cartItemID {
			return li, nil
		}
	}
	return domain.CartItem{}, domain.ErrCartItemNotFound
}

func (f *fakeStore) FindOpenLine(_ context.Context, cartID, itemID string) (*domain.CartItem, error) {
	for i := range f.lines {
		li := f.lines[i]
		if li.CartID == cartID && li.ItemID == itemID && li.PurchaseRef == nil {
			return &li, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) CreateItemLine(_ context.Context, line domain.CartItem) error {
	f.lines = append(f.lines, line)
	return nil
}

func (f *fakeStore) UpdateItemLine(_ context.Context, line domain.CartItem) error {
	for i := range f.lines {
		if f.lines[i].ID == line.ID {
			f.lines[i] = line
			return nil
		}
	}
	return domain.ErrCartItemNotFound
}

func (f *fakeStore) DeleteItemLine(_ context.Context, cartItemID string) error {
	for i := range f.lines {
		if f.lines[i].ID == cartItemID {
			f.lines = append(f.lines[:i], f.lines[i+1:]...)
			return nil
		}
	}
	return domain.ErrCartItemNotFound
}

func (f *fakeStore) DeleteItemLines(_ context.Context, cartID string) error {
	kept := f.lines[:0]
	for _, li := range f.lines {
		if li.CartID != cartID {
			kept = append(kept, li)
		}
	}
	f.lines = kept
	return nil
}

func (f *fakeStore) SumCartQuantity(_ context.Context, cartID, itemID string) (int, error) {
	total := 0
	for _, li := range f.lines {
		if li.CartID == cartID && li.ItemID == itemID {
			total += li.Quantity
		}
	}
	return total, nil
}

func (f *fakeStore) SumCartQuantityOverlapping(_ context.Context, cartID, itemID string, from, until time.Time) (int, error) {
	total := 0
	for _, li := range f.lines {
		if li.CartID != cartID || li.ItemID != itemID {
			continue
		}
		if li.From == nil || li.Until == nil {
			continue
		}
		if domain.RangesOverlap(*li.From, *li.Until, from, until) {
			total += li.Quantity
		}
	}
	return total, nil
}
