package main

import (
	"context"
	"database/sql"
	"time"

	auditstore "governa/internal/audit"
	identityservice "governa/internal/identity/service"
	identitystore "governa/internal/identity/store"
	requestservice "governa/internal/request/service"
	requeststore "governa/internal/request/store"
	dErrors "governa/pkg/domain-errors"
)

// workflowPostgresTx runs a workflow unit of work in one database
// transaction. The ledger capability binds to the same *sql.Tx as the
// request store, making an approval's grant and status flip atomic.
type workflowPostgresTx struct {
	db      *sql.DB
	timeout time.Duration
}

func newWorkflowPostgresTx(db *sql.DB, timeout time.Duration) *workflowPostgresTx {
	return &workflowPostgresTx{db: db, timeout: timeout}
}

func (t *workflowPostgresTx) RunInTx(ctx context.Context, fn func(ctx context.Context, s requestservice.Stores) error) error {
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

	auditTx := auditstore.NewPostgresTx(tx)
	stores := requestservice.Stores{
		Requests: requeststore.NewPostgresTx(tx),
		Ledger: identityservice.Ledger{
			Identities: identitystore.NewPostgresTx(tx),
			Audit:      auditTx,
		},
		Audit: auditTx,
	}
	if err := fn(ctx, stores); err != nil {
		return err
	}

	return tx.Commit()
}
