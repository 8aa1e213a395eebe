package inventory

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ricolancheros/movie-reservation-system/pkg/db/models"
)

// Repository defines persistence operations for seat inventory rows. All
// mutations are single-row conditional updates; callers learn whether the
// guard held from the returned flag, never from an error.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, inv *models.SeatInventory) (*models.SeatInventory, error)
	Find(ctx context.Context, showtimeID uuid.UUID) (*models.SeatInventory, error)
	DecrementAvailable(ctx context.Context, showtimeID uuid.UUID, seats int) (bool, error)
	IncrementAvailable(ctx context.Context, showtimeID uuid.UUID, seats int) (bool, error)
	MarkRetired(ctx context.Context, showtimeID uuid.UUID) (bool, error)
}

// Service exposes the seat capacity operations the coordinator and the
// showtime facade build on.
type Service interface {
	CreateForShowtime(ctx context.Context, tx *gorm.DB, showtimeID uuid.UUID, totalSeats int) (*models.SeatInventory, error)
	Get(ctx context.Context, showtimeID uuid.UUID) (*models.SeatInventory, error)
	Reserve(ctx context.Context, showtimeID uuid.UUID, seats int) error
	Release(ctx context.Context, showtimeID uuid.UUID, seats int) error
	Retire(ctx context.Context, tx *gorm.DB, showtimeID uuid.UUID) error
}
