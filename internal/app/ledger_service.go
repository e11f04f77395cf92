package app

import (
	"context"
	"time"

	"github.com/vendible/bookstock/internal/clock"
	"github.com/vendible/bookstock/internal/domain"
)

// LedgerRepository is the persistence surface of the stock ledger. Sums are
// computed by the store so the claim protocol can run under row locks.
type LedgerRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	GetItem(ctx context.Context, itemID string) (domain.Item, error)
	GetItemForUpdate(ctx context.Context, itemID string) (domain.Item, error)
	InsertEntry(ctx context.Context, entry domain.LedgerEntry) error
	SumDeltas(ctx context.Context, itemID string) (int, error)
	SumActiveClaims(ctx context.Context, itemID string, now time.Time) (int, error)
	SumOverlappingClaims(ctx context.Context, itemID string, from, until time.Time) (int, error)
	ListClaims(ctx context.Context, itemID string) ([]domain.LedgerEntry, error)
	ReleaseClaim(ctx context.Context, claimID string, at time.Time) (bool, error)
	GetClaim(ctx context.Context, claimID string) (domain.LedgerEntry, error)
}

// LedgerService owns the append-only stock ledger and the claim/release
// protocol. It is the only component that mutates persisted availability
// state.
type LedgerService struct {
	repo  LedgerRepository
	clock clock.Clock
}

func NewLedgerService(repo LedgerRepository, clk clock.Clock) *LedgerService {
	return &LedgerService{repo: repo, clock: clk}
}

// IncreaseStock appends a positive delta entry and returns the new available
// total.
func (s *LedgerService) IncreaseStock(ctx context.Context, itemID string, quantity int) (int, error) {
	if quantity <= 0 {
		return 0, domain.ErrInvalidQuantity
	}

	var available int
	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		item, err := s.repo.GetItemForUpdate(txCtx, itemID)
		if err != nil {
			return err
		}
		entry := domain.LedgerEntry{
			ID:        newID(),
			ItemID:    item.ID,
			Kind:      domain.LedgerEntryDelta,
			Quantity:  quantity,
			CreatedAt: s.clock.Now(),
		}
		if err := s.repo.InsertEntry(txCtx, entry); err != nil {
			return err
		}
		available, err = s.availableStock(txCtx, item)
		return err
	})
	if err != nil {
		return 0, err
	}
	return available, nil
}

// DecreaseStock appends a negative delta entry: a permanent shrink of
// capacity, independent of claims.
func (s *LedgerService) DecreaseStock(ctx context.Context, itemID string, quantity int) (int, error) {
	if quantity <= 0 {
		return 0, domain.ErrInvalidQuantity
	}

	var available int
	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		item, err := s.repo.GetItemForUpdate(txCtx, itemID)
		if err != nil {
			return err
		}
		entry := domain.LedgerEntry{
			ID:        newID(),
			ItemID:    item.ID,
			Kind:      domain.LedgerEntryDelta,
			Quantity:  -quantity,
			CreatedAt: s.clock.Now(),
		}
		if err := s.repo.InsertEntry(txCtx, entry); err != nil {
			return err
		}
		available, err = s.availableStock(txCtx, item)
		return err
	})
	if err != nil {
		return 0, err
	}
	return available, nil
}

type ClaimStockInput struct {
	ItemID    string
	Quantity  int
	Reference *string
	From      *time.Time
	Until     *time.Time
	Note      *string
}

// ClaimStock reserves quantity against an item, date-bounded when both From
// and Until are set. The availability read and the claim write run inside one
// transaction with the item row locked, so two concurrent claims for the same
// window can never jointly exceed capacity.
func (s *LedgerService) ClaimStock(ctx context.Context, in ClaimStockInput) (domain.LedgerEntry, error) {
	if in.Quantity <= 0 {
		return domain.LedgerEntry{}, domain.ErrInvalidQuantity
	}
	if in.From != nil && in.Until != nil && in.From.After(*in.Until) {
		return domain.LedgerEntry{}, domain.ErrInvalidDateRange
	}

	var claim domain.LedgerEntry
	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		item, err := s.repo.GetItemForUpdate(txCtx, in.ItemID)
		if err != nil {
			return err
		}

		if item.ManagesStock {
			available, err := s.availableFor(txCtx, item, in.From, in.Until)
			if err != nil {
				return err
			}
			if in.Quantity > available {
				return &domain.NotEnoughStockError{
					ItemName:  item.Name,
					Requested: in.Quantity,
					Available: available,
					From:      in.From,
					Until:     in.Until,
				}
			}
		}

		claim = domain.LedgerEntry{
			ID:           newID(),
			ItemID:       item.ID,
			Kind:         domain.LedgerEntryClaim,
			Quantity:     in.Quantity,
			ClaimedFrom:  in.From,
			ClaimedUntil: in.Until,
			Reference:    in.Reference,
			Note:         in.Note,
			CreatedAt:    s.clock.Now(),
		}
		return s.repo.InsertEntry(txCtx, claim)
	})
	if err != nil {
		return domain.LedgerEntry{}, err
	}
	return claim, nil
}

// Release marks a claim released. It reports whether the call changed state:
// releasing an already-released claim is a no-op returning false, never an
// error.
func (s *LedgerService) Release(ctx context.Context, claimID string) (bool, error) {
	if _, err := s.repo.GetClaim(ctx, claimID); err != nil {
		return false, err
	}
	return s.repo.ReleaseClaim(ctx, claimID, s.clock.Now())
}

// AvailableStock computes the item's currently available quantity:
// sum(deltas) minus claims active at this instant. Items that do not manage
// stock report UnlimitedStock.
func (s *LedgerService) AvailableStock(ctx context.Context, itemID string) (int, error) {
	item, err := s.repo.GetItem(ctx, itemID)
	if err != nil {
		return 0, err
	}
	return s.availableStock(ctx, item)
}

// PendingClaims lists unreleased claims regardless of their window.
func (s *LedgerService) PendingClaims(ctx context.Context, itemID string) ([]domain.LedgerEntry, error) {
	return s.filterClaims(ctx, itemID, func(e domain.LedgerEntry) bool {
		return !e.IsReleased()
	})
}

// ReleasedClaims lists claims that have been released.
func (s *LedgerService) ReleasedClaims(ctx context.Context, itemID string) ([]domain.LedgerEntry, error) {
	return s.filterClaims(ctx, itemID, func(e domain.LedgerEntry) bool {
		return e.IsReleased()
	})
}

// ActiveClaims lists claims consuming capacity right now: unreleased and, if
// temporary, not yet expired.
func (s *LedgerService) ActiveClaims(ctx context.Context, itemID string) ([]domain.LedgerEntry, error) {
	now := s.clock.Now()
	return s.filterClaims(ctx, itemID, func(e domain.LedgerEntry) bool {
		if e.IsReleased() {
			return false
		}
		if e.IsTemporary() {
			return now.Before(*e.ClaimedUntil)
		}
		return true
	})
}

func (s *LedgerService) filterClaims(ctx context.Context, itemID string, keep func(domain.LedgerEntry) bool) ([]domain.LedgerEntry, error) {
	claims, err := s.repo.ListClaims(ctx, itemID)
	if err != nil {
		return nil, err
	}
	out := make([]domain.LedgerEntry, 0, len(claims))
	for _, c := range claims {
		if keep(c) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *LedgerService) availableStock(ctx context.Context, item domain.Item) (int, error) {
	return s.availableFor(ctx, item, nil, nil)
}

func (s *LedgerService) availableFor(ctx context.Context, item domain.Item, from, until *time.Time) (int, error) {
	if !item.ManagesStock {
		return domain.UnlimitedStock, nil
	}
	capacity, err := s.repo.SumDeltas(ctx, item.ID)
	if err != nil {
		return 0, err
	}
	var claimed int
	if from != nil && until != nil {
		claimed, err = s.repo.SumOverlappingClaims(ctx, item.ID, *from, *until)
	} else {
		claimed, err = s.repo.SumActiveClaims(ctx, item.ID, s.clock.Now())
	}
	if err != nil {
		return 0, err
	}
	return capacity - claimed, nil
}
