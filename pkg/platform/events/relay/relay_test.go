package relay

//go:generate mockgen -source=relay.go -destination=mocks/mocks.go -package=mocks Publisher

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	id "becoming/pkg/domain"
	"becoming/pkg/platform/circuit"
	"becoming/pkg/platform/events"
	"becoming/pkg/platform/events/relay/mocks"
	"becoming/pkg/platform/events/store/memory"
)

type pinged struct {
	Who id.AccountID `json:"who"`
}

func (pinged) EventName() string { return "Pinged" }

func (p pinged) Topics() []id.AccountID { return []id.AccountID{p.Who} }

type RelaySuite struct {
	suite.Suite
	ctrl      *gomock.Controller
	outbox    *memory.InMemoryStore
	publisher *mocks.MockPublisher
	now       time.Time
}

func TestRelaySuite(t *testing.T) {
	suite.Run(t, new(RelaySuite))
}

func (s *RelaySuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.outbox = memory.NewInMemoryStore()
	s.publisher = mocks.NewMockPublisher(s.ctrl)
	s.now = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
}

func (s *RelaySuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *RelaySuite) newRelay(opts ...Option) *Relay {
	opts = append(opts, WithClock(func() time.Time { return s.now }))
	r, err := New(s.outbox, s.publisher, opts...)
	s.Require().NoError(err)
	return r
}

func (s *RelaySuite) appendEvents(n int) []events.Event {
	ctx := context.Background()
	out := make([]events.Event, 0, n)
	for i := 0; i < n; i++ {
		event, err := events.New(pinged{Who: id.DevAccount("alice")}, s.now, "")
		s.Require().NoError(err)
		s.Require().NoError(s.outbox.Append(ctx, event))
		out = append(out, event)
	}
	return out
}

func (s *RelaySuite) TestNew() {
	s.Run("rejects missing outbox", func() {
		_, err := New(nil, s.publisher)
		s.Require().ErrorContains(err, "outbox is required")
	})
	s.Run("rejects missing publisher", func() {
		_, err := New(s.outbox, nil)
		s.Require().ErrorContains(err, "publisher is required")
	})
}

func (s *RelaySuite) TestDrain() {
	ctx := context.Background()

	s.Run("publishes pending events in order and marks them", func() {
		s.outbox.Clear()
		appended := s.appendEvents(3)
		gomock.InOrder(
			s.publisher.EXPECT().Publish(gomock.Any(), appended[0]).Return(nil),
			s.publisher.EXPECT().Publish(gomock.Any(), appended[1]).Return(nil),
			s.publisher.EXPECT().Publish(gomock.Any(), appended[2]).Return(nil),
		)

		n, err := s.newRelay().Drain(ctx)
		s.Require().NoError(err)
		s.Equal(3, n)

		pending, err := s.outbox.Unpublished(ctx, 0)
		s.Require().NoError(err)
		s.Empty(pending)
	})

	s.Run("walks multiple batches", func() {
		s.outbox.Clear()
		s.appendEvents(5)
		s.publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(nil).Times(5)

		n, err := s.newRelay(WithBatchSize(2)).Drain(ctx)
		s.Require().NoError(err)
		s.Equal(5, n)
	})

	s.Run("stops at the first failure and keeps the rest pending", func() {
		s.outbox.Clear()
		appended := s.appendEvents(3)
		gomock.InOrder(
			s.publisher.EXPECT().Publish(gomock.Any(), appended[0]).Return(nil),
			s.publisher.EXPECT().Publish(gomock.Any(), appended[1]).Return(errors.New("broker down")),
		)

		n, err := s.newRelay().Drain(ctx)
		s.Require().ErrorContains(err, "broker down")
		s.Equal(1, n)

		pending, err := s.outbox.Unpublished(ctx, 0)
		s.Require().NoError(err)
		s.Require().Len(pending, 2)
		s.Equal(appended[1].ID, pending[0].ID)
	})

	s.Run("nothing pending", func() {
		s.outbox.Clear()
		n, err := s.newRelay().Drain(ctx)
		s.Require().NoError(err)
		s.Zero(n)
	})
}

func (s *RelaySuite) TestBreakerTracksPublishOutcomes() {
	ctx := context.Background()
	breaker := circuit.New("kafka", circuit.WithFailureThreshold(2), circuit.WithSuccessThreshold(1))
	r := s.newRelay(WithBreaker(breaker))
	appended := s.appendEvents(1)

	s.publisher.EXPECT().Publish(gomock.Any(), appended[0]).Return(errors.New("broker down")).Times(2)
	_, err := r.Drain(ctx)
	s.Require().Error(err)
	s.False(breaker.IsOpen())
	_, err = r.Drain(ctx)
	s.Require().Error(err)
	s.True(breaker.IsOpen())

	s.publisher.EXPECT().Publish(gomock.Any(), appended[0]).Return(nil)
	n, err := r.Drain(ctx)
	s.Require().NoError(err)
	s.Equal(1, n)
	s.False(breaker.IsOpen())
}

func (s *RelaySuite) TestPublishRatePacesDelivery() {
	breaker := circuit.New("kafka", circuit.WithFailureThreshold(1))
	r := s.newRelay(WithPublishRate(1, 1), WithBreaker(breaker))
	appended := s.appendEvents(2)
	s.publisher.EXPECT().Publish(gomock.Any(), appended[0]).Return(nil)

	// The second token is a second away; the deadline is shorter.
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	n, err := r.Drain(ctx)
	s.Require().ErrorContains(err, "wait to publish")
	s.Equal(1, n)
	s.False(breaker.IsOpen(), "pacing is not a publish failure")

	pending, err := s.outbox.Unpublished(context.Background(), 0)
	s.Require().NoError(err)
	s.Require().Len(pending, 1)
	s.Equal(appended[1].ID, pending[0].ID)
}

func TestRunDrainsOnWakeup(t *testing.T) {
	ctrl := gomock.NewController(t)
	outbox := memory.NewInMemoryStore()
	publisher := mocks.NewMockPublisher(ctrl)

	wake := make(chan struct{}, 1)
	r, err := New(outbox, publisher, WithWakeup(wake), WithPollInterval(time.Hour))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	delivered := make(chan struct{})

	publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).DoAndReturn(func(context.Context, events.Event) error {
		close(delivered)
		return nil
	})

	go func() { done <- r.Run(ctx) }()

	event, err := events.New(pinged{Who: id.DevAccount("bob")}, time.Now(), "req-1")
	require.NoError(t, err)
	require.NoError(t, outbox.Append(ctx, event))
	wake <- struct{}{}

	select {
	case <-delivered:
	case <-time.After(2 * time.Second):
		t.Fatal("event was not relayed after wakeup")
	}

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}
