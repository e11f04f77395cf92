package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vendible/bookstock/internal/domain"
)

// CartRepository persists carts and their lines. Line metadata lands in a
// jsonb column.
type CartRepository struct {
	pool *pgxpool.Pool
}

func NewCartRepository(pool *pgxpool.Pool) *CartRepository {
	return &CartRepository{pool: pool}
}

func (r *CartRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, r.pool, fn)
}

func (r *CartRepository) CreateCart(ctx context.Context, cart domain.Cart) error {
	const stmt = `
INSERT INTO carts (id, status, from_date, until_date, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.exec(ctx, stmt,
		cart.ID,
		cart.Status,
		cart.FromDate,
		cart.UntilDate,
		cart.CreatedAt,
		cart.UpdatedAt,
	)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("create cart: %w", err)
	}
	return nil
}

func (r *CartRepository) GetCart(ctx context.Context, cartID string) (domain.Cart, error) {
	return r.getCart(ctx, cartID, "")
}

func (r *CartRepository) GetCartForUpdate(ctx context.Context, cartID string) (domain.Cart, error) {
	return r.getCart(ctx, cartID, " FOR UPDATE")
}

func (r *CartRepository) getCart(ctx context.Context, cartID, locking string) (domain.Cart, error) {
	query := `
SELECT id, status, from_date, until_date, created_at, updated_at
FROM carts WHERE id = $1` + locking

	var c domain.Cart
	err := r.queryRow(ctx, query, cartID).
		Scan(&c.ID, &c.Status, &c.FromDate, &c.UntilDate, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.Cart{}, domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			return domain.Cart{}, domain.ErrCartNotFound
		}
		return domain.Cart{}, fmt.Errorf("get cart: %w", err)
	}
	return c, nil
}

func (r *CartRepository) UpdateCart(ctx context.Context, cart domain.Cart) error {
	const stmt = `
UPDATE carts SET status = $2, from_date = $3, until_date = $4, updated_at = $5
WHERE id = $1`

	tag, err := r.exec(ctx, stmt,
		cart.ID,
		cart.Status,
		cart.FromDate,
		cart.UntilDate,
		cart.UpdatedAt,
	)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("update cart: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrCartNotFound
	}
	return nil
}

const cartItemColumns = `id, cart_id, item_id, price_id, quantity, unit_price, subtotal, regular_price, from_date, until_date, meta, purchase_ref, created_at`

func (r *CartRepository) ListLines(ctx context.Context, cartID string) ([]domain.CartItem, error) {
	query := `
SELECT ` + cartItemColumns + `
FROM cart_items WHERE cart_id = $1
ORDER BY created_at, id`

	rows, err := r.query(ctx, query, cartID)
	if err != nil {
		return nil, fmt.Errorf("list cart lines: %w", err)
	}
	defer rows.Close()

	var out []domain.CartItem
	for rows.Next() {
		li, err := scanCartItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan cart line: %w", err)
		}
		out = append(out, li)
	}
	if err := rows.Err(); err != nil {
		if isInvalidUUID(err) {
			return nil, domain.ErrInvalidID
		}
		return nil, fmt.Errorf("list cart lines: %w", err)
	}
	return out, nil
}

func (r *CartRepository) GetItemLine(ctx context.Context, cartItemID string) (domain.CartItem, error) {
	query := `
SELECT ` + cartItemColumns + `
FROM cart_items WHERE id = $1`

	li, err := scanCartItem(r.queryRow(ctx, query, cartItemID))
	if err != nil {
		if isInvalidUUID(err) {
			return domain.CartItem{}, domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			return domain.CartItem{}, domain.ErrCartItemNotFound
		}
		return domain.CartItem{}, fmt.Errorf("get cart line: %w", err)
	}
	return li, nil
}

// FindOpenLine returns the cart's oldest unpurchased line for the item, or
// nil when there is none.
func (r *CartRepository) FindOpenLine(ctx context.Context, cartID, itemID string) (*domain.CartItem, error) {
	query := `
SELECT ` + cartItemColumns + `
FROM cart_items
WHERE cart_id = $1 AND item_id = $2 AND purchase_ref IS NULL
ORDER BY created_at, id
LIMIT 1`

	li, err := scanCartItem(r.queryRow(ctx, query, cartID, itemID))
	if err != nil {
		if isInvalidUUID(err) {
			return nil, domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("find open line: %w", err)
	}
	return &li, nil
}

func (r *CartRepository) CreateItemLine(ctx context.Context, line domain.CartItem) error {
	stmt := `
INSERT INTO cart_items (` + cartItemColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err := r.exec(ctx, stmt,
		line.ID,
		line.CartID,
		line.ItemID,
		line.PriceID,
		line.Quantity,
		line.UnitPrice,
		line.Subtotal,
		line.RegularPrice,
		line.From,
		line.Until,
		line.Meta,
		line.PurchaseRef,
		line.CreatedAt,
	)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("create cart line: %w", err)
	}
	return nil
}

func (r *CartRepository) UpdateItemLine(ctx context.Context, line domain.CartItem) error {
	const stmt = `
UPDATE cart_items
SET price_id = $2, quantity = $3, unit_price = $4, subtotal = $5, regular_price = $6,
    from_date = $7, until_date = $8, meta = $9, purchase_ref = $10
WHERE id = $1`

	tag, err := r.exec(ctx, stmt,
		line.ID,
		line.PriceID,
		line.Quantity,
		line.UnitPrice,
		line.Subtotal,
		line.RegularPrice,
		line.From,
		line.Until,
		line.Meta,
		line.PurchaseRef,
	)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("update cart line: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrCartItemNotFound
	}
	return nil
}

func (r *CartRepository) DeleteItemLine(ctx context.Context, cartItemID string) error {
	tag, err := r.exec(ctx, `DELETE FROM cart_items WHERE id = $1`, cartItemID)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("delete cart line: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrCartItemNotFound
	}
	return nil
}

func (r *CartRepository) DeleteItemLines(ctx context.Context, cartID string) error {
	_, err := r.exec(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, cartID)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("delete cart lines: %w", err)
	}
	return nil
}

func scanCartItem(row pgx.Row) (domain.CartItem, error) {
	var li domain.CartItem
	err := row.Scan(
		&li.ID, &li.CartID, &li.ItemID, &li.PriceID, &li.Quantity,
		&li.UnitPrice, &li.Subtotal, &li.RegularPrice,
		&li.From, &li.Until, &li.Meta, &li.PurchaseRef, &li.CreatedAt,
	)
	if err != nil {
		return domain.CartItem{}, err
	}
	return li, nil
}

func (r *CartRepository) exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if tx := activeTx(ctx); tx != nil {
		return tx.Exec(ctx, sql, args...)
	}
	return r.pool.Exec(ctx, sql, args...)
}

func (r *CartRepository) query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if tx := activeTx(ctx); tx != nil {
		return tx.Query(ctx, sql, args...)
	}
	return r.pool.Query(ctx, sql, args...)
}

func (r *CartRepository) queryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if tx := activeTx(ctx); tx != nil {
		return tx.QueryRow(ctx, sql, args...)
	}
	return r.pool.QueryRow(ctx, sql, args...)
}
