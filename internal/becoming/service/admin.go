package service

import (
	"context"

	"becoming/internal/becoming/models"
	"becoming/internal/becoming/ports"
	id "becoming/pkg/domain"
	dErrors "becoming/pkg/domain-errors"
)

// ExportData returns the owner and every milestone's (title, proof hash).
// Only the admin may call it.
func (s *Service) ExportData(ctx context.Context) (_ *models.ExportData, err error) {
	ctx, end := s.begin(ctx, opExportData)
	defer func() { end(err) }()

	caller, err := callerFrom(ctx)
	if err != nil {
		return nil, err
	}
	record, err := s.records.Load(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load record")
	}
	if err := record.CanAdminister(caller); err != nil {
		return nil, err
	}

	s.logAudit(ctx, "data_exported", "admin", caller.String())
	return record.Export(), nil
}

// UpdateAdmin hands the admin role to next. The new identity is not
// validated and takes effect for the following call.
func (s *Service) UpdateAdmin(ctx context.Context, next id.AccountID) (err error) {
	ctx, end := s.begin(ctx, opUpdateAdmin)
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
		if err := record.CanAdminister(caller); err != nil {
			return err
		}
		if err := stores.Records.SetAdmin(ctx, next); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update admin")
		}
		return nil
	})
	if err != nil {
		return domainError(err, "update admin failed")
	}

	s.logAudit(ctx, "admin_updated",
		"previous_admin", caller.String(),
		"admin", next.String(),
	)
	if s.metrics != nil {
		s.metrics.IncrementAdminRotations()
	}
	return nil
}
