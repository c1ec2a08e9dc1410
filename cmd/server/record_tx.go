package main

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"becoming/internal/becoming/ports"
	recordstore "becoming/internal/becoming/store"
	dErrors "becoming/pkg/domain-errors"
	"becoming/pkg/platform/events"
	txcontext "becoming/pkg/platform/tx"
)

const defaultRecordTxTimeout = 5 * time.Second

// recordPostgresTx runs each call in one SQL transaction. The record row
// lock taken by Load serializes writers; outbox inserts join the same
// transaction through the context.
type recordPostgresTx struct {
	db      *sqlx.DB
	outbox  events.Store
	timeout time.Duration
}

func newRecordPostgresTx(db *sqlx.DB, outbox events.Store) *recordPostgresTx {
	return &recordPostgresTx{db: db, outbox: outbox}
}

func (t *recordPostgresTx) RunInTx(ctx context.Context, fn func(ctx context.Context, stores ports.TxStores) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	timeout := t.timeout
	if timeout == 0 {
		timeout = defaultRecordTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	tx, err := t.db.BeginTxx(ctx, nil)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to begin transaction")
	}
	defer func() {
		_ = tx.Rollback()
	}()

	ctx = txcontext.WithTx(ctx, tx)
	if err := fn(ctx, ports.TxStores{Records: recordstore.NewPostgresTx(tx), Events: t.outbox}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		if ctx.Err() != nil {
			return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to commit transaction")
	}
	return nil
}
