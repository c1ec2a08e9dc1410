//go:build integration

package postgres

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	id "becoming/pkg/domain"
	"becoming/pkg/platform/events"
	"becoming/pkg/testutil/containers"
)

type OutboxSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *Store
	now      time.Time
}

func TestOutboxSuite(t *testing.T) {
	suite.Run(t, new(OutboxSuite))
}

func (s *OutboxSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
}

func (s *OutboxSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "outbox"))
	s.store = New(s.postgres.DB)
	s.now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
}

func (s *OutboxSuite) appendEvent(name string, topics ...id.AccountID) events.Event {
	e := events.Event{
		ID:        uuid.New(),
		Name:      name,
		Payload:   json.RawMessage(`{}`),
		CreatedAt: s.now,
	}
	for _, t := range topics {
		e.Topics = append(e.Topics, t.String())
	}
	s.Require().NoError(s.store.Append(context.Background(), e))
	return e
}

func (s *OutboxSuite) TestUnpublishedInAppendOrder() {
	ctx := context.Background()
	alice := id.DevAccount("alice")
	a := s.appendEvent("Minted", alice)
	b := s.appendEvent("MilestoneAdded", alice)
	c := s.appendEvent("TipSent", id.DevAccount("bob"), alice)

	pending, err := s.store.Unpublished(ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(pending, 3)
	s.Equal([]uuid.UUID{a.ID, b.ID, c.ID}, []uuid.UUID{pending[0].ID, pending[1].ID, pending[2].ID})

	s.Require().NoError(s.store.MarkPublished(ctx, []uuid.UUID{a.ID, b.ID}, s.now))
	pending, err = s.store.Unpublished(ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(pending, 1)
	s.Equal(c.ID, pending[0].ID)

	byTopic, err := s.store.ListByTopic(ctx, alice)
	s.Require().NoError(err)
	s.Len(byTopic, 3)
}

func (s *OutboxSuite) TestPrunePublished() {
	ctx := context.Background()
	old := s.appendEvent("Minted")
	recent := s.appendEvent("TipSent")
	pending := s.appendEvent("MilestoneAdded")
	s.Require().NoError(s.store.MarkPublished(ctx, []uuid.UUID{old.ID}, s.now.Add(-48*time.Hour)))
	s.Require().NoError(s.store.MarkPublished(ctx, []uuid.UUID{recent.ID}, s.now.Add(-time.Hour)))

	removed, err := s.store.PrunePublished(ctx, s.now.Add(-24*time.Hour))
	s.Require().NoError(err)
	s.Equal(1, removed)

	removed, err = s.store.PrunePublished(ctx, s.now.Add(time.Hour))
	s.Require().NoError(err)
	s.Equal(1, removed)

	rest, err := s.store.Unpublished(ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(rest, 1)
	s.Equal(pending.ID, rest[0].ID)
}
