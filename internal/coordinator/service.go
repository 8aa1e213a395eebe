package coordinator

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"

	"github.com/ricolancheros/movie-reservation-system/internal/inventory"
	"github.com/ricolancheros/movie-reservation-system/internal/ledger"
	"github.com/ricolancheros/movie-reservation-system/internal/showtimes"
	"github.com/ricolancheros/movie-reservation-system/pkg/config"
	"github.com/ricolancheros/movie-reservation-system/pkg/db/models"
	"github.com/ricolancheros/movie-reservation-system/pkg/enums"
	pkgerrors "github.com/ricolancheros/movie-reservation-system/pkg/errors"
	"github.com/ricolancheros/movie-reservation-system/pkg/logger"
	"github.com/ricolancheros/movie-reservation-system/pkg/metrics"
	"github.com/ricolancheros/movie-reservation-system/pkg/pagination"
)

type service struct {
	repo      Repository
	inventory inventory.Service
	ledger    ledger.Service
	showtimes showtimes.Service
	metrics   *metrics.ReservationMetrics
	logg      *logger.Logger
	cfg       config.SagaConfig
}

// NewService wires the reservation coordinator. Metrics may be nil.
func NewService(
	repo Repository,
	inv inventory.Service,
	led ledger.Service,
	shows showtimes.Service,
	m *metrics.ReservationMetrics,
	logg *logger.Logger,
	cfg config.SagaConfig,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("coordinator repository required")
	}
	if inv == nil {
		return nil, fmt.Errorf("inventory service required")
	}
	if led == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	if shows == nil {
		return nil, fmt.Errorf("showtime service required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if cfg.ReleaseMaxAttempts <= 0 {
		return nil, fmt.Errorf("release max attempts must be positive")
	}
	if cfg.ReleaseBaseBackoff <= 0 {
		return nil, fmt.Errorf("release base backoff must be positive")
	}
	return &service{
		repo:      repo,
		inventory: inv,
		ledger:    led,
		showtimes: shows,
		metrics:   m,
		logg:      logg,
		cfg:       cfg,
	}, nil
}

// CreateReservation runs the reserve-then-commit saga. Seats come out of
// inventory first; only after the ledger commit lands is the reservation
// confirmed. Any failure after the decrement triggers a compensating
// release, and a release that cannot land becomes a reconciliation item so
// the seats are never lost.
func (s *service) CreateReservation(ctx context.Context, actor Actor, input CreateReservationInput) (*models.Reservation, error) {
	if actor.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if input.ShowtimeID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "showtime id required")
	}
	if input.SeatCount <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "seat count must be positive")
	}
	if input.IdempotencyKey != nil && *input.IdempotencyKey == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "idempotency key must not be empty")
	}

	ctx = s.logg.WithUserID(ctx, actor.UserID.String())
	ctx = s.logg.WithShowtimeID(ctx, input.ShowtimeID.String())

	if input.IdempotencyKey != nil {
		existing, err := s.ledger.FindByIdempotencyKey(ctx, *input.IdempotencyKey)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			if existing.UserID != actor.UserID || existing.ShowtimeID != input.ShowtimeID || existing.SeatCount != input.SeatCount {
				return nil, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with different parameters")
			}
			if existing.Status == enums.ReservationStatusFailed {
				// The earlier attempt never held capacity. Replaying it as a
				// success would hide that failure from the client.
				return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "previous attempt with this idempotency key failed").
					WithDetails(map[string]any{"reservation_id": existing.ID.String()})
			}
			s.logg.Info(ctx, "reservation replayed from idempotency key")
			return existing, nil
		}
	}

	showtime, err := s.showtimes.GetByID(ctx, input.ShowtimeID)
	if err != nil {
		return nil, err
	}
	if showtime.RetiredAt != nil {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "showtime is retired")
	}
	totalPrice := showtime.PriceCents * input.SeatCount

	if err := s.inventory.Reserve(ctx, input.ShowtimeID, input.SeatCount); err != nil {
		if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeCapacity {
			s.metrics.IncCapacityRejected()
		}
		return nil, err
	}

	attempt := &models.SagaAttempt{
		ID:         uuid.New(),
		ShowtimeID: input.ShowtimeID,
		SeatCount:  input.SeatCount,
		Step:       enums.SagaStepCapacityReserved,
	}
	if err := s.repo.CreateSagaAttempt(ctx, attempt); err != nil {
		// The decrement is live but unjournaled. Undo it now rather than
		// leave seats stranded with no record for recovery to find.
		s.compensate(ctx, nil, input.ShowtimeID, input.SeatCount)
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record saga attempt")
	}

	reservation, err := s.ledger.Create(ctx, ledger.CreateReservationInput{
		UserID:          actor.UserID,
		ShowtimeID:      input.ShowtimeID,
		SeatCount:       input.SeatCount,
		TotalPriceCents: totalPrice,
		IdempotencyKey:  input.IdempotencyKey,
	})
	if err != nil {
		s.compensate(ctx, &attempt.ID, input.ShowtimeID, input.SeatCount)

		// A concurrent request with the same key won the insert race. The
		// caller gets the winner's record, not an error.
		if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeIdempotency && input.IdempotencyKey != nil {
			winner, ferr := s.ledger.FindByIdempotencyKey(ctx, *input.IdempotencyKey)
			if ferr == nil && winner != nil {
				return winner, nil
			}
		}
		return nil, err
	}

	ctx = s.logg.WithReservationID(ctx, reservation.ID.String())

	if err := s.ledger.MarkConfirmed(ctx, reservation.ID); err != nil {
		s.compensateReservation(ctx, attempt.ID, reservation.ID, input.ShowtimeID, input.SeatCount)
		return nil, err
	}
	reservation.Status = enums.ReservationStatusConfirmed

	if err := s.repo.UpdateSagaAttempt(ctx, attempt.ID, map[string]any{
		"reservation_id": reservation.ID,
		"step":           enums.SagaStepLedgerCommitted,
	}); err != nil {
		// The reservation is committed; recovery will see the confirmed
		// ledger record and settle the attempt without touching seats.
		s.logg.Error(ctx, "saga attempt update failed after ledger commit", err)
	}

	s.metrics.IncConfirmed()
	s.logg.Info(ctx, "reservation confirmed")
	return reservation, nil
}

// CancelReservation flips a confirmed reservation to cancelled, then returns
// its seats. The ledger moves first so a crash can only leave seats to give
// back, never seats taken twice.
func (s *service) CancelReservation(ctx context.Context, actor Actor, reservationID uuid.UUID) (*models.Reservation, error) {
	if actor.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if reservationID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reservation id required")
	}

	ctx = s.logg.WithReservationID(ctx, reservationID.String())

	reservation, err := s.ledger.GetByID(ctx, reservationID)
	if err != nil {
		return nil, err
	}
	if reservation.UserID != actor.UserID && !actor.IsAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "reservation belongs to another user")
	}

	if err := s.ledger.MarkCancelled(ctx, reservationID); err != nil {
		return nil, err
	}
	reservation.Status = enums.ReservationStatusCancelled

	if rerr := s.releaseWithRetry(ctx, reservation.ShowtimeID, reservation.SeatCount); rerr != nil {
		s.openReconciliation(ctx, &reservationID, reservation.ShowtimeID, reservation.SeatCount, enums.ReconciliationReasonCancellation, rerr)
	}

	s.metrics.IncCancelled()
	s.logg.Info(ctx, "reservation cancelled")
	return reservation, nil
}

func (s *service) GetReservation(ctx context.Context, actor Actor, reservationID uuid.UUID) (*models.Reservation, error) {
	if actor.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	reservation, err := s.ledger.GetByID(ctx, reservationID)
	if err != nil {
		return nil, err
	}
	if reservation.UserID != actor.UserID && !actor.IsAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "reservation belongs to another user")
	}
	return reservation, nil
}

func (s *service) ListUserReservations(ctx context.Context, actor Actor, params pagination.Params) (*ReservationPage, error) {
	if actor.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	list, err := s.ledger.ListByUser(ctx, actor.UserID, params)
	if err != nil {
		return nil, err
	}
	return &ReservationPage{Items: list.Items, NextCursor: list.NextCursor}, nil
}

func (s *service) ListShowtimeReservations(ctx context.Context, showtimeID uuid.UUID) ([]models.Reservation, error) {
	return s.ledger.ListByShowtime(ctx, showtimeID)
}

// releaseWithRetry gives seats back with capped exponential backoff. An
// overrelease answer means the seats are already home, so it counts as
// success.
func (s *service) releaseWithRetry(ctx context.Context, showtimeID uuid.UUID, seats int) error {
	backoff := retry.NewExponential(s.cfg.ReleaseBaseBackoff)
	backoff = retry.WithCappedDuration(5*time.Second, backoff)
	backoff = retry.WithMaxRetries(uint64(s.cfg.ReleaseMaxAttempts-1), backoff)

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := s.inventory.Release(ctx, showtimeID, seats)
		if err == nil {
			return nil
		}
		if typed := pkgerrors.As(err); typed != nil {
			switch typed.Code() {
			case pkgerrors.CodeOverrelease:
				return nil
			case pkgerrors.CodeNotFound, pkgerrors.CodeValidation:
				return err
			}
		}
		return retry.RetryableError(err)
	})
}

// compensate releases reserved seats after a failed saga and settles the
// attempt journal. attemptID is nil when the attempt itself never landed.
func (s *service) compensate(ctx context.Context, attemptID *uuid.UUID, showtimeID uuid.UUID, seats int) {
	s.metrics.IncCompensation()

	if err := s.releaseWithRetry(ctx, showtimeID, seats); err != nil {
		s.openReconciliation(ctx, nil, showtimeID, seats, enums.ReconciliationReasonCompensation, err)
	}
	if attemptID != nil {
		if err := s.repo.UpdateSagaAttempt(ctx, *attemptID, map[string]any{
			"step": enums.SagaStepCompensationIssued,
		}); err != nil {
			s.logg.Error(ctx, "saga attempt compensation update failed", err)
		}
	}
}

// compensateReservation additionally fails the pending ledger record.
func (s *service) compensateReservation(ctx context.Context, attemptID, reservationID, showtimeID uuid.UUID, seats int) {
	if err := s.ledger.MarkFailed(ctx, reservationID); err != nil {
		s.logg.Error(ctx, "mark reservation failed errored during compensation", err)
	}
	s.compensate(ctx, &attemptID, showtimeID, seats)
}

// openReconciliation journals seats that could not be released so the
// reconciler keeps retrying. Losing this write too is logged loudly; it is
// the one path that needs an operator.
func (s *service) openReconciliation(ctx context.Context, reservationID *uuid.UUID, showtimeID uuid.UUID, seats int, reason enums.ReconciliationReason, cause error) {
	s.logg.Error(ctx, "seat release exhausted retries, opening reconciliation item", cause)

	item := &models.ReconciliationItem{
		ID:            uuid.New(),
		ReservationID: reservationID,
		ShowtimeID:    showtimeID,
		SeatCount:     seats,
		Reason:        reason,
	}
	if err := s.repo.CreateReconciliationItem(ctx, item); err != nil {
		s.logg.Error(ctx, "failed to journal reconciliation item", err)
		return
	}
	s.metrics.IncReconciliationOpened()
}
