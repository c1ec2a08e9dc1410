package service

import (
	"context"
	"errors"

	"becoming/internal/becoming/models"
	"becoming/internal/becoming/ports"
	id "becoming/pkg/domain"
	dErrors "becoming/pkg/domain-errors"
	"becoming/pkg/requestcontext"
)

// Tip forwards the value attached to the call from the caller to recipient.
// Anyone may tip anyone. The TipSent notification and the value transfer
// commit together: a failed transfer leaves no notification and no balance
// change.
func (s *Service) Tip(ctx context.Context, recipient id.AccountID) (err error) {
	ctx, end := s.begin(ctx, opTip)
	defer func() { end(err) }()

	caller, err := callerFrom(ctx)
	if err != nil {
		return err
	}
	amount := requestcontext.TransferredValue(ctx)

	transferred := false
	err = s.tx.RunInTx(ctx, func(ctx context.Context, stores ports.TxStores) error {
		if err := s.emit(ctx, stores.Events, models.TipSent{From: caller, To: recipient, Amount: amount}); err != nil {
			return err
		}
		// The ledger is the last step so nothing after it can fail inside fn.
		if err := s.ledger.Transfer(ctx, caller, recipient, amount); err != nil {
			return dErrors.Wrap(err, dErrors.CodePaymentFailed, "value transfer failed")
		}
		transferred = true
		return nil
	})
	if err != nil {
		if transferred {
			if revertErr := s.revertTransfer(ctx, caller, recipient, amount); revertErr != nil {
				return dErrors.Wrap(errors.Join(err, revertErr), dErrors.CodeInternal, "tip transferred but not recorded")
			}
			return dErrors.Wrap(err, dErrors.CodePaymentFailed, "tip could not be recorded")
		}
		return domainError(err, "tip failed")
	}

	s.logAudit(ctx, models.EventTipSent,
		"from", caller.String(),
		"to", recipient.String(),
		"amount", uint64(amount),
	)
	if s.metrics != nil {
		s.metrics.RecordTip(uint64(amount))
	}
	return nil
}

// revertTransfer undoes a ledger transfer whose transaction failed to commit.
func (s *Service) revertTransfer(ctx context.Context, from, to id.AccountID, amount id.Balance) error {
	ctx = context.WithoutCancel(ctx)
	err := s.ledger.Transfer(ctx, to, from, amount)
	if err == nil {
		return nil
	}
	if s.metrics != nil {
		s.metrics.IncrementUnrevertedTips()
	}
	if s.logger != nil {
		s.logger.ErrorContext(ctx, "failed to revert tip transfer after commit failure",
			"from", from.String(),
			"to", to.String(),
			"amount", uint64(amount),
			"error", err,
		)
	}
	return err
}
