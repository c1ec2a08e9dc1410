// Package ledger holds native value balances that tips move between
// identities.
package ledger

import (
	"context"
	"sync"

	id "becoming/pkg/domain"
	"becoming/pkg/platform/sentinel"
)

// InMemoryLedger keeps balances in process.
type InMemoryLedger struct {
	mu       sync.Mutex
	balances map[id.AccountID]id.Balance
}

func NewInMemoryLedger() *InMemoryLedger {
	return &InMemoryLedger{balances: make(map[id.AccountID]id.Balance)}
}

// Transfer moves amount from one identity to another. Self transfers only
// require the balance to cover amount.
func (l *InMemoryLedger) Transfer(_ context.Context, from, to id.AccountID, amount id.Balance) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	debited, ok := l.balances[from].Sub(amount)
	if !ok {
		return sentinel.ErrInsufficientFunds
	}
	if from == to {
		return nil
	}
	credited, ok := l.balances[to].Add(amount)
	if !ok {
		return sentinel.ErrRejected
	}
	l.balances[from] = debited
	l.balances[to] = credited
	return nil
}

func (l *InMemoryLedger) BalanceOf(_ context.Context, account id.AccountID) (id.Balance, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[account], nil
}

// Deposit credits amount to account, creating value out of nothing. It is
// used to fund development accounts.
func (l *InMemoryLedger) Deposit(_ context.Context, account id.AccountID, amount id.Balance) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	credited, ok := l.balances[account].Add(amount)
	if !ok {
		return sentinel.ErrRejected
	}
	l.balances[account] = credited
	return nil
}
