package service

import (
	"context"

	"becoming/internal/becoming/models"
	id "becoming/pkg/domain"
	dErrors "becoming/pkg/domain-errors"
	"becoming/pkg/platform/events"
)

func (s *Service) load(ctx context.Context) (*models.Record, error) {
	record, err := s.records.Load(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load record")
	}
	return record, nil
}

// AvatarStage derives the stage from the current milestone count.
func (s *Service) AvatarStage(ctx context.Context) (_ models.Stage, err error) {
	ctx, end := s.begin(ctx, opAvatarStage)
	defer func() { end(err) }()

	record, err := s.load(ctx)
	if err != nil {
		return 0, err
	}
	return record.Stage(), nil
}

// Milestones returns every milestone in id order.
func (s *Service) Milestones(ctx context.Context) (_ []models.Milestone, err error) {
	ctx, end := s.begin(ctx, opMilestones)
	defer func() { end(err) }()

	record, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	if record.Milestones == nil {
		return []models.Milestone{}, nil
	}
	return record.Milestones, nil
}

// Owner returns the bound identity, or nil before mint.
func (s *Service) Owner(ctx context.Context) (_ *id.AccountID, err error) {
	ctx, end := s.begin(ctx, opOwner)
	defer func() { end(err) }()

	record, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	return record.Owner, nil
}

// Profile returns owner, stage and milestones from one consistent read.
func (s *Service) Profile(ctx context.Context) (_ *models.Profile, err error) {
	ctx, end := s.begin(ctx, opProfile)
	defer func() { end(err) }()

	record, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	return record.Profile(), nil
}

// Notifications returns the committed notifications indexed under account,
// oldest first.
func (s *Service) Notifications(ctx context.Context, account id.AccountID) (_ []events.Event, err error) {
	ctx, end := s.begin(ctx, opNotifications)
	defer func() { end(err) }()

	if s.notifications == nil {
		return nil, dErrors.New(dErrors.CodeNotFound, "notifications are not served")
	}
	evs, err := s.notifications.ListByTopic(ctx, account)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list notifications")
	}
	if evs == nil {
		return []events.Event{}, nil
	}
	return evs, nil
}
