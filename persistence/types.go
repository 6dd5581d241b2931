package persistence

import (
	"context"
	"database/sql"

	"github.com/uptrace/bun"
)

// TransactionManager runs a function inside a database transaction
type TransactionManager interface {
	RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error
}

// Validator checks that a manager has been wired correctly
type Validator interface {
	Validate() error
	MustValidate()
}
