package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ricolancheros/movie-reservation-system/pkg/db/models"
	pkgerrors "github.com/ricolancheros/movie-reservation-system/pkg/errors"
)

type service struct {
	repo Repository
}

// NewService builds the seat inventory service.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) CreateForShowtime(ctx context.Context, tx *gorm.DB, showtimeID uuid.UUID, totalSeats int) (*models.SeatInventory, error) {
	if showtimeID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "showtime id required")
	}
	if totalSeats <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "total seats must be positive")
	}

	inv := &models.SeatInventory{
		ShowtimeID:     showtimeID,
		TotalSeats:     totalSeats,
		AvailableSeats: totalSeats,
	}
	created, err := s.repo.WithTx(tx).Create(ctx, inv)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create seat inventory")
	}
	return created, nil
}

func (s *service) Get(ctx context.Context, showtimeID uuid.UUID) (*models.SeatInventory, error) {
	if showtimeID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "showtime id required")
	}
	inv, err := s.repo.Find(ctx, showtimeID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "seat inventory not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load seat inventory")
	}
	return inv, nil
}

// Reserve takes seats from the showtime's counter. The decrement either
// happens exactly once with the guard intact or not at all; a zero-row
// update is disambiguated with a follow-up read.
func (s *service) Reserve(ctx context.Context, showtimeID uuid.UUID, seats int) error {
	if showtimeID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "showtime id required")
	}
	if seats <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "seat count must be positive")
	}

	updated, err := s.repo.DecrementAvailable(ctx, showtimeID, seats)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reserve seats")
	}
	if updated {
		return nil
	}

	inv, err := s.repo.Find(ctx, showtimeID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "seat inventory not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load seat inventory")
	}
	if inv.Retired {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "showtime is retired")
	}
	return pkgerrors.New(pkgerrors.CodeCapacity, "insufficient seats available").
		WithDetails(map[string]any{
			"requested": seats,
			"available": inv.AvailableSeats,
		})
}

// Release returns seats to the showtime's counter. Retired showtimes still
// accept releases; compensation after a retire must not strand seats.
func (s *service) Release(ctx context.Context, showtimeID uuid.UUID, seats int) error {
	if showtimeID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "showtime id required")
	}
	if seats <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "seat count must be positive")
	}

	updated, err := s.repo.IncrementAvailable(ctx, showtimeID, seats)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "release seats")
	}
	if updated {
		return nil
	}

	inv, err := s.repo.Find(ctx, showtimeID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "seat inventory not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load seat inventory")
	}
	return pkgerrors.New(pkgerrors.CodeOverrelease, "release exceeds reserved seats").
		WithDetails(map[string]any{
			"requested": seats,
			"available": inv.AvailableSeats,
			"total":     inv.TotalSeats,
		})
}

func (s *service) Retire(ctx context.Context, tx *gorm.DB, showtimeID uuid.UUID) error {
	if showtimeID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "showtime id required")
	}

	updated, err := s.repo.WithTx(tx).MarkRetired(ctx, showtimeID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "retire seat inventory")
	}
	if updated {
		return nil
	}

	if _, err := s.repo.WithTx(tx).Find(ctx, showtimeID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "seat inventory not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load seat inventory")
	}
	// Already retired. Retiring twice is a no-op.
	return nil
}
