package app

import (
	"context"

	"github.com/vendible/bookstock/internal/clock"
	"github.com/vendible/bookstock/internal/domain"
)

// CatalogRepository is the persistence surface for the minimal catalog the
// core needs: items, prices and pool membership.
type CatalogRepository interface {
	CreateItem(ctx context.Context, item domain.Item) error
	GetItem(ctx context.Context, itemID string) (domain.Item, error)
	ListItems(ctx context.Context) ([]domain.Item, error)
	CreatePrice(ctx context.Context, price domain.Price) error
	ListPrices(ctx context.Context, itemID string) ([]domain.Price, error)
	AttachMember(ctx context.Context, poolID, memberID string) error
	ListMembers(ctx context.Context, poolID string) ([]domain.Item, error)
}

// AdminService covers the catalog CRUD surrounding the core: creating items,
// attaching pool members, adding prices. Item kind is immutable once created.
type AdminService struct {
	repo  CatalogRepository
	clock clock.Clock
}

func NewAdminService(repo CatalogRepository, clk clock.Clock) *AdminService {
	return &AdminService{repo: repo, clock: clk}
}

type CreateItemInput struct {
	Name            string
	Kind            domain.ItemKind
	ManagesStock    bool
	PricingStrategy *domain.PoolPricingStrategy
}

func (s *AdminService) CreateItem(ctx context.Context, in CreateItemInput) (domain.Item, error) {
	if in.Name == "" {
		return domain.Item{}, domain.ErrInvalidID
	}
	switch in.Kind {
	case domain.ItemKindSimple, domain.ItemKindVariable, domain.ItemKindGrouped,
		domain.ItemKindExternal, domain.ItemKindBooking, domain.ItemKindPool:
	default:
		return domain.Item{}, domain.ErrInvalidOperation
	}

	item := domain.Item{
		ID:              newID(),
		Name:            in.Name,
		Kind:            in.Kind,
		ManagesStock:    in.ManagesStock,
		PricingStrategy: in.PricingStrategy,
		CreatedAt:       s.clock.Now(),
	}
	if err := s.repo.CreateItem(ctx, item); err != nil {
		return domain.Item{}, err
	}
	return item, nil
}

func (s *AdminService) GetItem(ctx context.Context, itemID string) (domain.Item, error) {
	return s.repo.GetItem(ctx, itemID)
}

func (s *AdminService) ListItems(ctx context.Context) ([]domain.Item, error) {
	return s.repo.ListItems(ctx)
}

type AddPriceInput struct {
	ItemID     string
	UnitAmount int64
	Currency   string
	IsDefault  bool
	Kind       domain.PriceKind
}

func (s *AdminService) AddPrice(ctx context.Context, in AddPriceInput) (domain.Price, error) {
	if in.UnitAmount < 0 {
		return domain.Price{}, domain.ErrInvalidQuantity
	}
	item, err := s.repo.GetItem(ctx, in.ItemID)
	if err != nil {
		return domain.Price{}, err
	}

	kind := in.Kind
	if kind == "" {
		kind = domain.PriceKindOneTime
	}
	currency := in.Currency
	if currency == "" {
		currency = "USD"
	}

	price := domain.Price{
		ID:         newID(),
		ItemID:     item.ID,
		UnitAmount: in.UnitAmount,
		Currency:   currency,
		IsDefault:  in.IsDefault,
		Kind:       kind,
		CreatedAt:  s.clock.Now(),
	}
	if err := s.repo.CreatePrice(ctx, price); err != nil {
		return domain.Price{}, err
	}
	return price, nil
}

// AttachMember links a single item into a pool. Only non-pool items can be
// members, and only pool items can own members; attachment order is
// preserved and observable through allocation tie-breaking.
func (s *AdminService) AttachMember(ctx context.Context, poolID, memberID string) error {
	pool, err := s.repo.GetItem(ctx, poolID)
	if err != nil {
		return err
	}
	if !pool.IsPool() {
		return &domain.InvalidOperationError{ItemName: pool.Name, Kind: pool.Kind, Op: "attach member"}
	}
	member, err := s.repo.GetItem(ctx, memberID)
	if err != nil {
		return err
	}
	if member.IsPool() {
		return &domain.InvalidOperationError{ItemName: member.Name, Kind: member.Kind, Op: "attach member"}
	}
	return s.repo.AttachMember(ctx, pool.ID, member.ID)
}

func (s *AdminService) ListMembers(ctx context.Context, poolID string) ([]domain.Item, error) {
	return s.repo.ListMembers(ctx, poolID)
}
