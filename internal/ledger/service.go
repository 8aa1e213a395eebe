package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ricolancheros/movie-reservation-system/pkg/db/models"
	"github.com/ricolancheros/movie-reservation-system/pkg/enums"
	pkgerrors "github.com/ricolancheros/movie-reservation-system/pkg/errors"
	"github.com/ricolancheros/movie-reservation-system/pkg/pagination"
)

type service struct {
	repo Repository
}

// NewService wires a reservation ledger service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Create(ctx context.Context, input CreateReservationInput) (*models.Reservation, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if input.ShowtimeID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "showtime id required")
	}
	if input.SeatCount <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "seat count must be positive")
	}
	if input.TotalPriceCents < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "total price must not be negative")
	}
	if input.IdempotencyKey != nil && *input.IdempotencyKey == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "idempotency key must not be empty")
	}

	reservation := &models.Reservation{
		ID:              uuid.New(),
		UserID:          input.UserID,
		ShowtimeID:      input.ShowtimeID,
		SeatCount:       input.SeatCount,
		TotalPriceCents: input.TotalPriceCents,
		Status:          enums.ReservationStatusPending,
		IdempotencyKey:  input.IdempotencyKey,
	}

	if err := s.repo.Create(ctx, reservation); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeIdempotency, err, "idempotency key already used")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create reservation record")
	}
	return reservation, nil
}

func (s *service) MarkConfirmed(ctx context.Context, id uuid.UUID) error {
	_, err := s.transition(ctx, id, enums.ReservationStatusPending, enums.ReservationStatusConfirmed)
	return err
}

func (s *service) MarkFailed(ctx context.Context, id uuid.UUID) error {
	_, err := s.transition(ctx, id, enums.ReservationStatusPending, enums.ReservationStatusFailed)
	return err
}

// MarkCancelled errors when the record is already cancelled. Callers release
// seats on a nil return, so the transition must flip the row exactly once.
func (s *service) MarkCancelled(ctx context.Context, id uuid.UUID) error {
	performed, err := s.transition(ctx, id, enums.ReservationStatusConfirmed, enums.ReservationStatusCancelled)
	if err != nil {
		return err
	}
	if !performed {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "reservation already cancelled")
	}
	return nil
}

// transition applies one guarded status move and reports whether this call
// performed it. A (false, nil) return means the target status already held,
// which lets crashed confirm/fail callers retry safely while cancel treats
// the repeat as a conflict.
func (s *service) transition(ctx context.Context, id uuid.UUID, from, to enums.ReservationStatus) (bool, error) {
	if id == uuid.Nil {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "reservation id required")
	}

	updated, err := s.repo.UpdateStatusIf(ctx, id, from, to)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update reservation status")
	}
	if updated {
		return true, nil
	}

	reservation, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, pkgerrors.New(pkgerrors.CodeNotFound, "reservation not found")
		}
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load reservation")
	}
	if reservation.Status == to {
		return false, nil
	}
	return false, pkgerrors.New(pkgerrors.CodeStateConflict, "invalid reservation status transition").
		WithDetails(map[string]any{
			"current": reservation.Status.String(),
			"from":    from.String(),
			"to":      to.String(),
		})
}

func (s *service) GetByID(ctx context.Context, id uuid.UUID) (*models.Reservation, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reservation id required")
	}
	reservation, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "reservation not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load reservation")
	}
	return reservation, nil
}

// FindByIdempotencyKey returns nil without error when no record carries the key.
func (s *service) FindByIdempotencyKey(ctx context.Context, key string) (*models.Reservation, error) {
	if key == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "idempotency key required")
	}
	reservation, err := s.repo.FindByIdempotencyKey(ctx, key)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load reservation by idempotency key")
	}
	return reservation, nil
}

func (s *service) ListByUser(ctx context.Context, userID uuid.UUID, params pagination.Params) (*ReservationList, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if _, err := pagination.ParseCursor(params.Cursor); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	items, next, err := s.repo.ListByUser(ctx, userID, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list reservations")
	}

	list := &ReservationList{Items: items}
	if next != nil {
		list.NextCursor = pagination.EncodeCursor(*next)
	}
	return list, nil
}

func (s *service) ListByShowtime(ctx context.Context, showtimeID uuid.UUID) ([]models.Reservation, error) {
	if showtimeID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "showtime id required")
	}
	reservations, err := s.repo.ListByShowtime(ctx, showtimeID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list reservations by showtime")
	}
	return reservations, nil
}
