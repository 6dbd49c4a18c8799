package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"amc-subscription/internal/domain/ports/repository"
)

var _ repository.TransactionManager = (*TxManager)(nil)

const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"

	maxTxAttempts = 3
)

// TxManager runs callbacks in pgx transactions. The pgx.Tx is handed to fn as
// repository.Tx so repositories can pick it up through getExecutor.
// Serialization failures and deadlocks re-run fn up to maxTxAttempts times.
type TxManager struct {
	pool *pgxpool.Pool
}

func NewTxManager(pool *pgxpool.Pool) *TxManager {
	return &TxManager{pool: pool}
}

func (m *TxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	var err error
	for attempt := 1; attempt <= maxTxAttempts; attempt++ {
		err = m.runOnce(ctx, txOpt, fn)
		if err == nil || !isRetryableTxErr(err) || ctx.Err() != nil {
			return err
		}
	}
	return fmt.Errorf("transaction gave up after %d attempts: %w", maxTxAttempts, err)
}

func (m *TxManager) runOnce(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) (err error) {
	tx, err := m.pool.BeginTx(ctx, txOpt)
	if err != nil {
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if err = fn(ctx, tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func isRetryableTxErr(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == pgSerializationFailure || pgErr.Code == pgDeadlockDetected
}
