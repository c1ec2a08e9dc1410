// Package ports declares the boundaries the becoming service depends on.
package ports

import (
	"context"

	"becoming/internal/becoming/models"
	id "becoming/pkg/domain"
	"becoming/pkg/platform/events"
)

// RecordReader serves read-only queries outside a transaction.
type RecordReader interface {
	Load(ctx context.Context) (*models.Record, error)
}

// RecordStore mutates the record inside a transaction. Load inside a
// transaction locks the record until commit or rollback.
type RecordStore interface {
	Load(ctx context.Context) (*models.Record, error)
	BindOwner(ctx context.Context, owner id.AccountID) error
	AppendMilestone(ctx context.Context, m models.Milestone) error
	SetAdmin(ctx context.Context, admin id.AccountID) error
}

// TxStores are the stores bound to one transaction.
type TxStores struct {
	Records RecordStore
	Events  events.Store
}

// RecordStoreTx runs fn as one serialized, all-or-nothing unit. State
// changes and appended events commit together when fn returns nil and are
// discarded otherwise.
type RecordStoreTx interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context, stores TxStores) error) error
}

// Ledger moves native value between identities.
type Ledger interface {
	// Transfer debits from and credits to atomically. It returns
	// sentinel.ErrInsufficientFunds or sentinel.ErrRejected without changing
	// any balance.
	Transfer(ctx context.Context, from, to id.AccountID, amount id.Balance) error
	BalanceOf(ctx context.Context, account id.AccountID) (id.Balance, error)
}
