package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres error codes the repositories map onto domain errors.
const (
	pgCodeUniqueViolation = "23505"
	pgCodeInvalidTextRep  = "22P02"
)

type ctxTxKey struct{}

// withTx runs fn inside a transaction carried through the context. Calls
// nested inside an already-running transaction join it, so service-level
// WithTx blocks compose with repository methods that begin their own.
func withTx(ctx context.Context, pool *pgxpool.Pool, fn func(ctx context.Context) error) error {
	if activeTx(ctx) != nil {
		return fn(ctx)
	}

	tx, err := pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}

	if err := fn(context.WithValue(ctx, ctxTxKey{}, tx)); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

// activeTx returns the transaction the context is running under, if any.
func activeTx(ctx context.Context) pgx.Tx {
	tx, _ := ctx.Value(ctxTxKey{}).(pgx.Tx)
	return tx
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgCodeUniqueViolation
}

func isInvalidUUID(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgCodeInvalidTextRep
}
