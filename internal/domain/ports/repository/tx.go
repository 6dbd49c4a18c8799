package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

// Tx is an opaque storage transaction handle. Repositories accept nil to run on
// the pool, or the handle passed by TransactionManager.WithTx to join that
// transaction and lock the rows they read.
type Tx interface{}

// NoTX is the explicit "outside any transaction" handle.
var NoTX Tx

// TransactionManager runs fn in one transaction. A non-nil error from fn rolls
// back. Implementations may re-run fn on transient conflicts, so fn must not
// have side effects outside the transaction.
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}
