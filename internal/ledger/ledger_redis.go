package ledger

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	id "becoming/pkg/domain"
	"becoming/pkg/platform/sentinel"
)

const (
	defaultKeyPrefix = "becoming:balance:"
	maxTxRetries     = 8
)

// RedisLedger stores balances in Redis as decimal strings. Transfers run as
// optimistic WATCH/MULTI transactions so concurrent updates to the same
// balances retry instead of interleaving, and arithmetic stays exact over
// the full uint64 range.
type RedisLedger struct {
	client    *redis.Client
	keyPrefix string
}

func NewRedisLedger(client *redis.Client) *RedisLedger {
	return &RedisLedger{client: client, keyPrefix: defaultKeyPrefix}
}

func (l *RedisLedger) key(account id.AccountID) string {
	return l.keyPrefix + account.String()
}

func (l *RedisLedger) Transfer(ctx context.Context, from, to id.AccountID, amount id.Balance) error {
	fromKey, toKey := l.key(from), l.key(to)
	return l.watch(ctx, func(tx *redis.Tx) error {
		fromBalance, err := readBalance(ctx, tx, fromKey)
		if err != nil {
			return err
		}
		debited, ok := fromBalance.Sub(amount)
		if !ok {
			return sentinel.ErrInsufficientFunds
		}
		if from == to {
			return nil
		}
		toBalance, err := readBalance(ctx, tx, toKey)
		if err != nil {
			return err
		}
		credited, ok := toBalance.Add(amount)
		if !ok {
			return sentinel.ErrRejected
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, fromKey, formatBalance(debited), 0)
			pipe.Set(ctx, toKey, formatBalance(credited), 0)
			return nil
		})
		return err
	}, fromKey, toKey)
}

func (l *RedisLedger) BalanceOf(ctx context.Context, account id.AccountID) (id.Balance, error) {
	return readBalance(ctx, l.client, l.key(account))
}

// Deposit credits amount to account, creating value out of nothing. It is
// used to fund development accounts.
func (l *RedisLedger) Deposit(ctx context.Context, account id.AccountID, amount id.Balance) error {
	key := l.key(account)
	return l.watch(ctx, func(tx *redis.Tx) error {
		balance, err := readBalance(ctx, tx, key)
		if err != nil {
			return err
		}
		credited, ok := balance.Add(amount)
		if !ok {
			return sentinel.ErrRejected
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, formatBalance(credited), 0)
			return nil
		})
		return err
	}, key)
}

func (l *RedisLedger) watch(ctx context.Context, fn func(tx *redis.Tx) error, keys ...string) error {
	for attempt := 0; attempt < maxTxRetries; attempt++ {
		err := l.client.Watch(ctx, fn, keys...)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("ledger update contended after %d attempts: %w", maxTxRetries, sentinel.ErrUnavailable)
}

func readBalance(ctx context.Context, c redis.Cmdable, key string) (id.Balance, error) {
	raw, err := c.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read balance: %w", err)
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("decode balance %s: %w", key, err)
	}
	return id.Balance(v), nil
}

func formatBalance(b id.Balance) string {
	return strconv.FormatUint(uint64(b), 10)
}
