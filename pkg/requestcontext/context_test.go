package requestcontext

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	id "becoming/pkg/domain"
)

func TestCaller(t *testing.T) {
	ctx := context.Background()

	_, ok := Caller(ctx)
	assert.False(t, ok, "no caller without injection")

	zero := id.AccountID{}
	got, ok := Caller(WithCaller(ctx, zero))
	assert.True(t, ok, "zero address is still an authenticated caller")
	assert.Equal(t, zero, got)

	alice := id.DevAccount("alice")
	got, ok = Caller(WithCaller(ctx, alice))
	assert.True(t, ok)
	assert.Equal(t, alice, got)
}

func TestTransferredValue(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, id.Balance(0), TransferredValue(ctx))
	assert.Equal(t, id.Balance(50), TransferredValue(WithTransferredValue(ctx, 50)))
}

func TestNow(t *testing.T) {
	fixed := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, fixed, Now(WithTime(context.Background(), fixed)))

	before := time.Now()
	got := Now(context.Background())
	assert.False(t, got.Before(before))
}

func TestMetadata(t *testing.T) {
	ctx := WithClientMetadata(context.Background(), "10.0.0.1", "Firefox 121.0")
	ctx = WithRequestID(ctx, "req-1")
	assert.Equal(t, "10.0.0.1", ClientIP(ctx))
	assert.Equal(t, "Firefox 121.0", UserAgent(ctx))
	assert.Equal(t, "req-1", RequestID(ctx))
}
