package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vendible/bookstock/internal/domain"
)

// ItemRepository persists the catalog: items, their prices, and pool
// membership.
type ItemRepository struct {
	pool *pgxpool.Pool
}

func NewItemRepository(pool *pgxpool.Pool) *ItemRepository {
	return &ItemRepository{pool: pool}
}

func (r *ItemRepository) CreateItem(ctx context.Context, item domain.Item) error {
	const stmt = `
INSERT INTO items (id, name, kind, manages_stock, pricing_strategy, created_at)
VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.exec(ctx, stmt,
		item.ID,
		item.Name,
		item.Kind,
		item.ManagesStock,
		item.PricingStrategy,
		item.CreatedAt,
	)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("create item: %w", err)
	}
	return nil
}

func (r *ItemRepository) GetItem(ctx context.Context, itemID string) (domain.Item, error) {
	const query = `
SELECT id, name, kind, manages_stock, pricing_strategy, created_at
FROM items WHERE id = $1`

	var i domain.Item
	err := r.queryRow(ctx, query, itemID).
		Scan(&i.ID, &i.Name, &i.Kind, &i.ManagesStock, &i.PricingStrategy, &i.CreatedAt)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.Item{}, domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			return domain.Item{}, domain.ErrItemNotFound
		}
		return domain.Item{}, fmt.Errorf("get item: %w", err)
	}
	return i, nil
}

func (r *ItemRepository) ListItems(ctx context.Context) ([]domain.Item, error) {
	const query = `
SELECT id, name, kind, manages_stock, pricing_strategy, created_at
FROM items ORDER BY created_at, id`

	rows, err := r.query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()
	return scanItems(rows)
}

func (r *ItemRepository) CreatePrice(ctx context.Context, price domain.Price) error {
	const stmt = `
INSERT INTO prices (id, item_id, unit_amount, currency, is_default, kind, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.exec(ctx, stmt,
		price.ID,
		price.ItemID,
		price.UnitAmount,
		price.Currency,
		price.IsDefault,
		price.Kind,
		price.CreatedAt,
	)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("create price: %w", err)
	}
	return nil
}

func (r *ItemRepository) ListPrices(ctx context.Context, itemID string) ([]domain.Price, error) {
	const query = `
SELECT id, item_id, unit_amount, currency, is_default, kind, created_at
FROM prices WHERE item_id = $1 ORDER BY created_at, id`

	rows, err := r.query(ctx, query, itemID)
	if err != nil {
		return nil, fmt.Errorf("list prices: %w", err)
	}
	defer rows.Close()

	var out []domain.Price
	for rows.Next() {
		var p domain.Price
		if err := rows.Scan(&p.ID, &p.ItemID, &p.UnitAmount, &p.Currency, &p.IsDefault, &p.Kind, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan price: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		if isInvalidUUID(err) {
			return nil, domain.ErrInvalidID
		}
		return nil, fmt.Errorf("list prices: %w", err)
	}
	return out, nil
}

// AttachMember appends the member at the end of the pool's ordering.
// Attaching the same member twice is rejected.
func (r *ItemRepository) AttachMember(ctx context.Context, poolID, memberID string) error {
	const stmt = `
INSERT INTO pool_members (pool_id, member_id, position)
VALUES ($1, $2, (SELECT COALESCE(MAX(position), 0) + 1 FROM pool_members WHERE pool_id = $1))`

	_, err := r.exec(ctx, stmt, poolID, memberID)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrInvalidOperation
		}
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("attach member: %w", err)
	}
	return nil
}

func (r *ItemRepository) ListMembers(ctx context.Context, poolID string) ([]domain.Item, error) {
	const query = `
SELECT i.id, i.name, i.kind, i.manages_stock, i.pricing_strategy, i.created_at
FROM items i
JOIN pool_members pm ON pm.member_id = i.id
WHERE pm.pool_id = $1
ORDER BY pm.position`

	rows, err := r.query(ctx, query, poolID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()
	return scanItems(rows)
}

func scanItems(rows pgx.Rows) ([]domain.Item, error) {
	var out []domain.Item
	for rows.Next() {
		var i domain.Item
		if err := rows.Scan(&i.ID, &i.Name, &i.Kind, &i.ManagesStock, &i.PricingStrategy, &i.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		out = append(out, i)
	}
	if err := rows.Err(); err != nil {
		if isInvalidUUID(err) {
			return nil, domain.ErrInvalidID
		}
		return nil, fmt.Errorf("scan items: %w", err)
	}
	return out, nil
}

func (r *ItemRepository) exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if tx := activeTx(ctx); tx != nil {
		return tx.Exec(ctx, sql, args...)
	}
	return r.pool.Exec(ctx, sql, args...)
}

func (r *ItemRepository) query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if tx := activeTx(ctx); tx != nil {
		return tx.Query(ctx, sql, args...)
	}
	return r.pool.Query(ctx, sql, args...)
}

func (r *ItemRepository) queryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if tx := activeTx(ctx); tx != nil {
		return tx.QueryRow(ctx, sql, args...)
	}
	return r.pool.QueryRow(ctx, sql, args...)
}
