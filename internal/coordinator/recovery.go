package coordinator

import (
	"context"
	"time"

	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/ricolancheros/movie-reservation-system/pkg/enums"
	pkgerrors "github.com/ricolancheros/movie-reservation-system/pkg/errors"
)

const recoveryBatchSize = 100

// RecoverStalledAttempts settles saga attempts stuck in capacity_reserved
// past the recovery timeout. A stall means the process died between the
// seat decrement and the ledger commit; unless the ledger shows the commit
// actually landed, the seats go back.
func (s *service) RecoverStalledAttempts(ctx context.Context) (int, error) {
	cutoff := time.Now().UTC().Add(-s.cfg.RecoveryTimeout)
	attempts, err := s.repo.ListStalledSagaAttempts(ctx, cutoff, recoveryBatchSize)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list stalled saga attempts")
	}

	var errs error
	recovered := 0
	for _, attempt := range attempts {
		actx := s.logg.WithShowtimeID(ctx, attempt.ShowtimeID.String())

		if attempt.ReservationID != nil {
			reservation, lerr := s.ledger.GetByID(actx, *attempt.ReservationID)
			if lerr == nil && reservation.Status == enums.ReservationStatusConfirmed {
				// Crash happened after the commit but before the journal
				// update. Nothing to give back.
				if uerr := s.repo.UpdateSagaAttempt(actx, attempt.ID, map[string]any{
					"step": enums.SagaStepLedgerCommitted,
				}); uerr != nil {
					errs = multierr.Append(errs, uerr)
					continue
				}
				recovered++
				continue
			}
			if lerr == nil && reservation.Status == enums.ReservationStatusPending {
				if ferr := s.ledger.MarkFailed(actx, *attempt.ReservationID); ferr != nil {
					s.logg.Error(actx, "mark stalled reservation failed errored", ferr)
				}
			}
		}

		if rerr := s.releaseWithRetry(actx, attempt.ShowtimeID, attempt.SeatCount); rerr != nil {
			s.openReconciliation(actx, attempt.ReservationID, attempt.ShowtimeID, attempt.SeatCount, enums.ReconciliationReasonCompensation, rerr)
		}
		if uerr := s.repo.UpdateSagaAttempt(actx, attempt.ID, map[string]any{
			"step": enums.SagaStepCompensationIssued,
		}); uerr != nil {
			errs = multierr.Append(errs, uerr)
			continue
		}
		s.metrics.IncCompensation()
		s.logg.Warn(actx, "stalled saga attempt compensated")
		recovered++
	}
	return recovered, errs
}

// ProcessReconciliationItems retries the seat releases that exhausted their
// inline retry budget. Items stay open until a release lands; an
// overrelease or missing-row answer means the seats no longer need
// returning, which also closes the item.
func (s *service) ProcessReconciliationItems(ctx context.Context) (int, error) {
	items, err := s.repo.ListOpenReconciliationItems(ctx, recoveryBatchSize)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list reconciliation items")
	}

	var errs error
	resolved := 0
	for _, item := range items {
		ictx := s.logg.WithShowtimeID(ctx, item.ShowtimeID.String())

		rerr := s.inventory.Release(ictx, item.ShowtimeID, item.SeatCount)
		if rerr != nil {
			if typed := pkgerrors.As(rerr); typed == nil ||
				(typed.Code() != pkgerrors.CodeOverrelease && typed.Code() != pkgerrors.CodeNotFound) {
				errs = multierr.Append(errs, rerr)
				if uerr := s.repo.UpdateReconciliationItem(ictx, item.ID, map[string]any{
					"attempts": gorm.Expr("attempts + 1"),
				}); uerr != nil {
					errs = multierr.Append(errs, uerr)
				}
				continue
			}
		}

		if uerr := s.repo.UpdateReconciliationItem(ictx, item.ID, map[string]any{
			"attempts":    gorm.Expr("attempts + 1"),
			"resolved_at": time.Now().UTC(),
		}); uerr != nil {
			errs = multierr.Append(errs, uerr)
			continue
		}
		s.metrics.IncReconciliationResolved()
		s.logg.Info(ictx, "reconciliation item resolved")
		resolved++
	}
	return resolved, errs
}
