package service

import (
	"context"
	"errors"

	"becoming/internal/becoming/models"
	"becoming/internal/becoming/ports"
	dErrors "becoming/pkg/domain-errors"
	"becoming/pkg/platform/sentinel"
	"becoming/pkg/requestcontext"
)

// Mint binds the caller as the record's owner. It succeeds exactly once per
// record store; every later call fails with AlreadyBound.
func (s *Service) Mint(ctx context.Context) (err error) {
	ctx, end := s.begin(ctx, opMint)
	defer func() { end(err) }()

	caller, err := callerFrom(ctx)
	if err != nil {
		return err
	}

	err = s.tx.RunInTx(ctx, func(ctx context.Context, stores ports.TxStores) error {
		record, err := stores.Records.Load(ctx)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load record")
		}
		if err := record.CanMint(); err != nil {
			return err
		}
		if err := stores.Records.BindOwner(ctx, caller); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return dErrors.New(dErrors.CodeAlreadyBound, "record is already bound to an owner")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to bind owner")
		}
		return s.emit(ctx, stores.Events, models.Minted{Owner: caller})
	})
	if err != nil {
		return domainError(err, "mint failed")
	}

	s.logAudit(ctx, models.EventMinted, "owner", caller.String())
	if s.metrics != nil {
		s.metrics.IncrementMints()
	}
	return nil
}

// AddMilestone appends a milestone for the owner and returns its id.
// Ownership is checked before the proof hash format.
func (s *Service) AddMilestone(ctx context.Context, req *models.AddMilestoneRequest) (_ uint32, err error) {
	ctx, end := s.begin(ctx, opAddMilestone)
	defer func() { end(err) }()

	if req == nil {
		return 0, dErrors.New(dErrors.CodeBadRequest, "milestone request is required")
	}
	caller, err := callerFrom(ctx)
	if err != nil {
		return 0, err
	}

	var added models.Milestone
	err = s.tx.RunInTx(ctx, func(ctx context.Context, stores ports.TxStores) error {
		record, err := stores.Records.Load(ctx)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load record")
		}
		if err := record.CanAddMilestone(caller); err != nil {
			return err
		}
		m, err := models.NewMilestone(req.Title, req.ProofHash, req.Description, req.Category, requestcontext.Now(ctx))
		if err != nil {
			return err
		}
		added = record.ApplyMilestone(m)
		if err := stores.Records.AppendMilestone(ctx, added); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to append milestone")
		}
		return s.emit(ctx, stores.Events, models.MilestoneAdded{
			Owner:       caller,
			MilestoneID: added.ID,
			Title:       added.Title,
			Category:    added.Category,
		})
	})
	if err != nil {
		return 0, domainError(err, "add milestone failed")
	}

	s.logAudit(ctx, models.EventMilestoneAdded,
		"owner", caller.String(),
		"milestone_id", added.ID,
	)
	if s.metrics != nil {
		s.metrics.IncrementMilestonesAdded()
	}
	return added.ID, nil
}

// Transfer always fails: the record is soul-bound.
func (s *Service) Transfer(ctx context.Context) (err error) {
	_, end := s.begin(ctx, opTransfer)
	defer func() { end(err) }()

	return dErrors.New(dErrors.CodeTransferNotAllowed, "soul-bound record cannot be transferred")
}
