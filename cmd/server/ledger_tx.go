package main

import (
	"context"
	"database/sql"
	"time"

	auditstore "governa/internal/audit"
	identityservice "governa/internal/identity/service"
	identitystore "governa/internal/identity/store"
	requeststore "governa/internal/request/store"
	dErrors "governa/pkg/domain-errors"
)

const defaultTxTimeout = 5 * time.Second

// ledgerPostgresTx runs a ledger unit of work in one database transaction.
// All three stores bind to the same *sql.Tx, so the identity mutation, the
// request voidings, and the audit records commit or abort together.
type ledgerPostgresTx struct {
	db      *sql.DB
	timeout time.Duration
}

func newLedgerPostgresTx(db *sql.DB, timeout time.Duration) *ledgerPostgresTx {
	return &ledgerPostgresTx{db: db, timeout: timeout}
}

func (t *ledgerPostgresTx) RunInTx(ctx context.Context, fn func(ctx context.Context, s identityservice.Stores) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	timeout := t.timeout
	if timeout == 0 {
		timeout = defaultTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback() //nolint:errcheck // rollback after commit is no-op; error already captured
	}()

	stores := identityservice.Stores{
		Identities: identitystore.NewPostgresTx(tx),
		Requests:   requeststore.NewPostgresTx(tx),
		Audit:      auditstore.NewPostgresTx(tx),
	}
	if err := fn(ctx, stores); err != nil {
		return err
	}

	return tx.Commit()
}
