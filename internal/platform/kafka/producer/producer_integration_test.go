//go:build integration

package producer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	id "becoming/pkg/domain"
	"becoming/pkg/platform/events"
	"becoming/pkg/testutil/containers"
)

type minted struct {
	Owner id.AccountID `json:"owner"`
}

func (minted) EventName() string { return "Minted" }

func (m minted) Topics() []id.AccountID { return []id.AccountID{m.Owner} }

func TestPublishRoundTrip(t *testing.T) {
	rp := containers.GetManager().GetRedpanda(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	topic := "becoming.events.it"
	p, err := New(rp.Brokers, topic)
	require.NoError(t, err)
	defer p.Close()

	require.NoError(t, p.EnsureTopic(ctx, 1, 1))
	require.NoError(t, p.EnsureTopic(ctx, 1, 1), "second call tolerates an existing topic")

	event, err := events.New(minted{Owner: id.DevAccount("alice")}, time.Now().UTC(), "req-it")
	require.NoError(t, err)
	require.NoError(t, p.Publish(ctx, event))

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(rp.Brokers...),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	require.NoError(t, err)
	defer consumer.Close()

	fetches := consumer.PollFetches(ctx)
	require.NoError(t, fetches.Err())
	records := fetches.Records()
	require.NotEmpty(t, records)
	require.Equal(t, id.DevAccount("alice").String(), string(records[0].Key))
}
