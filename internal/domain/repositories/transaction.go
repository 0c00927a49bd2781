package repositories

import "context"

// TxFn is a function that runs within a transaction. Repositories called
// with the ctx it receives take part in the transaction.
type TxFn func(ctx context.Context) error

// TransactionManager handles database transactions
type TransactionManager interface {
	// ExecTx runs fn in a transaction. A nil return commits, an error rolls
	// back and is returned unchanged. Locks taken inside fn are held until
	// ExecTx returns.
	ExecTx(ctx context.Context, fn TxFn) error
}
