package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vendible/bookstock/internal/domain"
)

// StockRepository persists the append-only stock ledger and serves the
// availability queries derived from it. It backs the ledger service, the
// availability resolver, and the pool allocator.
type StockRepository struct {
	pool *pgxpool.Pool
}

func NewStockRepository(pool *pgxpool.Pool) *StockRepository {
	return &StockRepository{pool: pool}
}

func (r *StockRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, r.pool, fn)
}

func (r *StockRepository) GetItem(ctx context.Context, itemID string) (domain.Item, error) {
	return r.getItem(ctx, itemID, "")
}

// GetItemForUpdate locks the item row for the rest of the transaction; the
// claim protocol depends on it to serialize availability checks.
func (r *StockRepository) GetItemForUpdate(ctx context.Context, itemID string) (domain.Item, error) {
	return r.getItem(ctx, itemID, " FOR UPDATE")
}

func (r *StockRepository) getItem(ctx context.Context, itemID, locking string) (domain.Item, error) {
	query := `
SELECT id, name, kind, manages_stock, pricing_strategy, created_at
FROM items WHERE id = $1` + locking

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

func (r *StockRepository) ListMembers(ctx context.Context, poolID string) ([]domain.Item, error) {
	return r.listMembers(ctx, poolID, "")
}

// ListMembersForUpdate locks every member row in attachment order, so two
// allocations against the same pool cannot interleave.
func (r *StockRepository) ListMembersForUpdate(ctx context.Context, poolID string) ([]domain.Item, error) {
	return r.listMembers(ctx, poolID, " FOR UPDATE OF i")
}

func (r *StockRepository) listMembers(ctx context.Context, poolID, locking string) ([]domain.Item, error) {
	query := `
SELECT i.id, i.name, i.kind, i.manages_stock, i.pricing_strategy, i.created_at
FROM items i
JOIN pool_members pm ON pm.member_id = i.id
WHERE pm.pool_id = $1
ORDER BY pm.position` + locking

	rows, err := r.query(ctx, query, poolID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()
	return scanItems(rows)
}

func (r *StockRepository) InsertEntry(ctx context.Context, entry domain.LedgerEntry) error {
	const stmt = `
INSERT INTO stock_ledger (id, item_id, kind, quantity, claimed_from, claimed_until, reference, note, released_at, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := r.exec(ctx, stmt,
		entry.ID,
		entry.ItemID,
		entry.Kind,
		entry.Quantity,
		entry.ClaimedFrom,
		entry.ClaimedUntil,
		entry.Reference,
		entry.Note,
		entry.ReleasedAt,
		entry.CreatedAt,
	)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("insert ledger entry: %w", err)
	}
	return nil
}

func (r *StockRepository) SumDeltas(ctx context.Context, itemID string) (int, error) {
	const query = `
SELECT COALESCE(SUM(quantity), 0)
FROM stock_ledger
WHERE item_id = $1 AND kind = 'delta'`

	var total int
	if err := r.queryRow(ctx, query, itemID).Scan(&total); err != nil {
		if isInvalidUUID(err) {
			return 0, domain.ErrInvalidID
		}
		return 0, fmt.Errorf("sum deltas: %w", err)
	}
	return total, nil
}

// SumActiveClaims totals unreleased claims consuming capacity at the given
// instant. Claims without a window are permanent and always count.
func (r *StockRepository) SumActiveClaims(ctx context.Context, itemID string, now time.Time) (int, error) {
	const query = `
SELECT COALESCE(SUM(quantity), 0)
FROM stock_ledger
WHERE item_id = $1 AND kind = 'claim' AND released_at IS NULL
  AND (claimed_from IS NULL OR claimed_until IS NULL
       OR (claimed_from <= $2 AND $2 < claimed_until))`

	var total int
	if err := r.queryRow(ctx, query, itemID, now).Scan(&total); err != nil {
		if isInvalidUUID(err) {
			return 0, domain.ErrInvalidID
		}
		return 0, fmt.Errorf("sum active claims: %w", err)
	}
	return total, nil
}

// SumOverlappingClaims totals unreleased claims whose [from, until) window
// intersects the queried one. Permanent claims overlap every window.
func (r *StockRepository) SumOverlappingClaims(ctx context.Context, itemID string, from, until time.Time) (int, error) {
	const query = `
SELECT COALESCE(SUM(quantity), 0)
FROM stock_ledger
WHERE item_id = $1 AND kind = 'claim' AND released_at IS NULL
  AND (claimed_from IS NULL OR claimed_until IS NULL
       OR (claimed_from < $3 AND $2 < claimed_until))`

	var total int
	if err := r.queryRow(ctx, query, itemID, from, until).Scan(&total); err != nil {
		if isInvalidUUID(err) {
			return 0, domain.ErrInvalidID
		}
		return 0, fmt.Errorf("sum overlapping claims: %w", err)
	}
	return total, nil
}

func (r *StockRepository) ListClaims(ctx context.Context, itemID string) ([]domain.LedgerEntry, error) {
	const query = `
SELECT id, item_id, kind, quantity, claimed_from, claimed_until, reference, note, released_at, created_at
FROM stock_ledger
WHERE item_id = $1 AND kind = 'claim'
ORDER BY created_at, id`

	rows, err := r.query(ctx, query, itemID)
	if err != nil {
		return nil, fmt.Errorf("list claims: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

func (r *StockRepository) GetClaim(ctx context.Context, claimID string) (domain.LedgerEntry, error) {
	const query = `
SELECT id, item_id, kind, quantity, claimed_from, claimed_until, reference, note, released_at, created_at
FROM stock_ledger
WHERE id = $1 AND kind = 'claim'`

	var e domain.LedgerEntry
	err := r.queryRow(ctx, query, claimID).Scan(
		&e.ID, &e.ItemID, &e.Kind, &e.Quantity,
		&e.ClaimedFrom, &e.ClaimedUntil, &e.Reference, &e.Note,
		&e.ReleasedAt, &e.CreatedAt,
	)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.LedgerEntry{}, domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			return domain.LedgerEntry{}, domain.ErrClaimNotFound
		}
		return domain.LedgerEntry{}, fmt.Errorf("get claim: %w", err)
	}
	return e, nil
}

// ReleaseClaim stamps the claim released and reports whether this call
// changed it. An already-released claim is left untouched.
func (r *StockRepository) ReleaseClaim(ctx context.Context, claimID string, at time.Time) (bool, error) {
	const stmt = `
UPDATE stock_ledger SET released_at = $2
WHERE id = $1 AND kind = 'claim' AND released_at IS NULL`

	tag, err := r.exec(ctx, stmt, claimID, at)
	if err != nil {
		if isInvalidUUID(err) {
			return false, domain.ErrInvalidID
		}
		return false, fmt.Errorf("release claim: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *StockRepository) ListMemberClaimsByReference(ctx context.Context, poolID, reference string) ([]domain.LedgerEntry, error) {
	const query = `
SELECT e.id, e.item_id, e.kind, e.quantity, e.claimed_from, e.claimed_until, e.reference, e.note, e.released_at, e.created_at
FROM stock_ledger e
JOIN pool_members pm ON pm.member_id = e.item_id
WHERE pm.pool_id = $1 AND e.kind = 'claim' AND e.reference = $2
ORDER BY e.created_at, e.id`

	rows, err := r.query(ctx, query, poolID, reference)
	if err != nil {
		return nil, fmt.Errorf("list member claims: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

func (r *StockRepository) SumCartQuantity(ctx context.Context, cartID, itemID string) (int, error) {
	const query = `
SELECT COALESCE(SUM(quantity), 0)
FROM cart_items
WHERE cart_id = $1 AND item_id = $2`

	var total int
	if err := r.queryRow(ctx, query, cartID, itemID).Scan(&total); err != nil {
		if isInvalidUUID(err) {
			return 0, domain.ErrInvalidID
		}
		return 0, fmt.Errorf("sum cart quantity: %w", err)
	}
	return total, nil
}

func (r *StockRepository) SumCartQuantityOverlapping(ctx context.Context, cartID, itemID string, from, until time.Time) (int, error) {
	const query = `
SELECT COALESCE(SUM(quantity), 0)
FROM cart_items
WHERE cart_id = $1 AND item_id = $2
  AND from_date IS NOT NULL AND until_date IS NOT NULL
  AND from_date < $4 AND $3 < until_date`

	var total int
	if err := r.queryRow(ctx, query, cartID, itemID, from, until).Scan(&total); err != nil {
		if isInvalidUUID(err) {
			return 0, domain.ErrInvalidID
		}
		return 0, fmt.Errorf("sum cart quantity overlapping: %w", err)
	}
	return total, nil
}

func scanEntries(rows pgx.Rows) ([]domain.LedgerEntry, error) {
	var out []domain.LedgerEntry
	for rows.Next() {
		var e domain.LedgerEntry
		if err := rows.Scan(
			&e.ID, &e.ItemID, &e.Kind, &e.Quantity,
			&e.ClaimedFrom, &e.ClaimedUntil, &e.Reference, &e.Note,
			&e.ReleasedAt, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		if isInvalidUUID(err) {
			return nil, domain.ErrInvalidID
		}
		return nil, fmt.Errorf("scan ledger entries: %w", err)
	}
	return out, nil
}

func (r *StockRepository) exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if tx := activeTx(ctx); tx != nil {
		return tx.Exec(ctx, sql, args...)
	}
	return r.pool.Exec(ctx, sql, args...)
}

func (r *StockRepository) query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if tx := activeTx(ctx); tx != nil {
		return tx.Query(ctx, sql, args...)
	}
	return r.pool.Query(ctx, sql, args...)
}

func (r *StockRepository) queryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if tx := activeTx(ctx); tx != nil {
		return tx.QueryRow(ctx, sql, args...)
	}
	return r.pool.QueryRow(ctx, sql, args...)
}
