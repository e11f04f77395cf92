package app

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/vendible/bookstock/internal/clock"
	"github.com/vendible/bookstock/internal/domain"
)

// PoolRepository is the persistence surface of pool allocation. Member rows
// are locked in attachment order so concurrent allocations against the same
// pool serialize without deadlocking.
type PoolRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	GetItem(ctx context.Context, itemID string) (domain.Item, error)
	ListMembersForUpdate(ctx context.Context, poolID string) ([]domain.Item, error)
	SumDeltas(ctx context.Context, itemID string) (int, error)
	SumActiveClaims(ctx context.Context, itemID string, now time.Time) (int, error)
	SumOverlappingClaims(ctx context.Context, itemID string, from, until time.Time) (int, error)
	InsertEntry(ctx context.Context, entry domain.LedgerEntry) error
	ListMemberClaimsByReference(ctx context.Context, poolID, reference string) ([]domain.LedgerEntry, error)
	ReleaseClaim(ctx context.Context, claimID string, at time.Time) (bool, error)
}

// memberPricer ranks candidates; implemented by PricingService.
type memberPricer interface {
	MemberPrices(ctx context.Context, pool domain.Item) ([]MemberPrice, error)
}

// PoolService selects and claims member items for pool allocations.
type PoolService struct {
	repo   PoolRepository
	pricer memberPricer
	clock  clock.Clock
	logger *zap.Logger
}

func NewPoolService(repo PoolRepository, pricer memberPricer, clk clock.Clock, logger *zap.Logger) *PoolService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PoolService{repo: repo, pricer: pricer, clock: clk, logger: logger}
}

// Allocation is one claimed member item with the unit price it was claimed
// at. The order of allocations is the order in which members were claimed and
// is observable by callers.
type Allocation struct {
	Item   domain.Item
	Amount int64
	Claim  domain.LedgerEntry
}

type ClaimPoolStockInput struct {
	PoolID    string
	Quantity  int
	Reference *string
	From      *time.Time
	Until     *time.Time
	Note      *string
}

// ClaimStock allocates Quantity member items of the pool for the given
// window: candidates are members with at least one free unit for the window,
// ranked by resolved price under the pool's strategy, ties broken by
// attachment order. One unit is claimed from each of the top candidates, all
// inside a single transaction, so a partial failure leaves no claims behind.
func (s *PoolService) ClaimStock(ctx context.Context, in ClaimPoolStockInput) ([]Allocation, error) {
	if in.Quantity <= 0 {
		return nil, domain.ErrInvalidQuantity
	}
	if in.From != nil && in.Until != nil && in.From.After(*in.Until) {
		return nil, domain.ErrInvalidDateRange
	}

	pool, err := s.repo.GetItem(ctx, in.PoolID)
	if err != nil {
		return nil, err
	}
	if !pool.IsPool() {
		return nil, &domain.InvalidOperationError{ItemName: pool.Name, Kind: pool.Kind, Op: "claim pool stock"}
	}

	var allocations []Allocation
	err = s.repo.WithTx(ctx, func(txCtx context.Context) error {
		members, err := s.repo.ListMembersForUpdate(txCtx, pool.ID)
		if err != nil {
			return err
		}

		priced, err := s.pricer.MemberPrices(txCtx, pool)
		if err != nil {
			return err
		}
		amounts := make(map[string]int64, len(priced))
		for _, mp := range priced {
			amounts[mp.Item.ID] = mp.Amount
		}

		// Candidates contribute one allocatable slot each; members without a
		// resolvable price cannot be charged and are never allocated.
		candidates := make([]Allocation, 0, len(members))
		for _, m := range members {
			amount, ok := amounts[m.ID]
			if !ok {
				continue
			}
			free, err := s.memberFree(txCtx, m, in.From, in.Until)
			if err != nil {
				return err
			}
			if free < 1 {
				continue
			}
			candidates = append(candidates, Allocation{Item: m, Amount: amount})
		}

		// Highest takes descending price; Lowest and Average both take
		// ascending. Stable sort keeps attachment order on ties.
		if pool.PoolStrategy() == domain.PoolPricingHighest {
			sort.SliceStable(candidates, func(i, j int) bool {
				return candidates[i].Amount > candidates[j].Amount
			})
		} else {
			sort.SliceStable(candidates, func(i, j int) bool {
				return candidates[i].Amount < candidates[j].Amount
			})
		}

		if in.Quantity > len(candidates) {
			return &domain.NotEnoughAvailableError{
				ItemName:  pool.Name,
				Requested: in.Quantity,
				Available: len(candidates),
			}
		}

		allocations = candidates[:in.Quantity]
		for i := range allocations {
			claim := domain.LedgerEntry{
				ID:           newID(),
				ItemID:       allocations[i].Item.ID,
				Kind:         domain.LedgerEntryClaim,
				Quantity:     1,
				ClaimedFrom:  in.From,
				ClaimedUntil: in.Until,
				Reference:    in.Reference,
				Note:         in.Note,
				CreatedAt:    s.clock.Now(),
			}
			if err := s.repo.InsertEntry(txCtx, claim); err != nil {
				return err
			}
			allocations[i].Claim = claim
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("pool stock claimed",
		zap.String("pool", pool.ID),
		zap.Int("quantity", in.Quantity),
		zap.Int("allocated", len(allocations)))
	return allocations, nil
}

// ReleaseStock releases every active claim on every member of the pool whose
// reference matches, returning how many claims changed state.
func (s *PoolService) ReleaseStock(ctx context.Context, poolID, reference string) (int, error) {
	pool, err := s.repo.GetItem(ctx, poolID)
	if err != nil {
		return 0, err
	}
	if !pool.IsPool() {
		return 0, &domain.InvalidOperationError{ItemName: pool.Name, Kind: pool.Kind, Op: "release pool stock"}
	}

	released := 0
	err = s.repo.WithTx(ctx, func(txCtx context.Context) error {
		claims, err := s.repo.ListMemberClaimsByReference(txCtx, pool.ID, reference)
		if err != nil {
			return err
		}
		now := s.clock.Now()
		for _, c := range claims {
			if c.IsReleased() {
				continue
			}
			changed, err := s.repo.ReleaseClaim(txCtx, c.ID, now)
			if err != nil {
				return err
			}
			if changed {
				released++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	if released > 0 {
		s.logger.Info("pool stock released",
			zap.String("pool", pool.ID),
			zap.String("reference", reference),
			zap.Int("released", released))
	}
	return released, nil
}

// ClaimedMembers lists the active claims held on the pool's members under
// the given reference.
func (s *PoolService) ClaimedMembers(ctx context.Context, poolID, reference string) ([]domain.LedgerEntry, error) {
	pool, err := s.repo.GetItem(ctx, poolID)
	if err != nil {
		return nil, err
	}
	if !pool.IsPool() {
		return nil, &domain.InvalidOperationError{ItemName: pool.Name, Kind: pool.Kind, Op: "claimed members"}
	}
	claims, err := s.repo.ListMemberClaimsByReference(ctx, pool.ID, reference)
	if err != nil {
		return nil, err
	}
	active := make([]domain.LedgerEntry, 0, len(claims))
	for _, c := range claims {
		if !c.IsReleased() {
			active = append(active, c)
		}
	}
	return active, nil
}

func (s *PoolService) memberFree(ctx context.Context, member domain.Item, from, until *time.Time) (int, error) {
	if !member.ManagesStock {
		return domain.UnlimitedStock, nil
	}
	capacity, err := s.repo.SumDeltas(ctx, member.ID)
	if err != nil {
		return 0, err
	}
	var claimed int
	if from != nil && until != nil {
		claimed, err = s.repo.SumOverlappingClaims(ctx, member.ID, *from, *until)
	} else {
		claimed, err = s.repo.SumActiveClaims(ctx, member.ID, s.clock.Now())
	}
	if err != nil {
		return 0, err
	}
	return capacity - claimed, nil
}
