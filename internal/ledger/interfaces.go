package ledger

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ricolancheros/movie-reservation-system/pkg/db/models"
	"github.com/ricolancheros/movie-reservation-system/pkg/enums"
	"github.com/ricolancheros/movie-reservation-system/pkg/pagination"
)

// Repository defines persistence operations for reservation records.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, reservation *models.Reservation) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Reservation, error)
	FindByIdempotencyKey(ctx context.Context, key string) (*models.Reservation, error)
	ListByUser(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]models.Reservation, *pagination.Cursor, error)
	ListByShowtime(ctx context.Context, showtimeID uuid.UUID) ([]models.Reservation, error)
	UpdateStatusIf(ctx context.Context, id uuid.UUID, from, to enums.ReservationStatus) (bool, error)
}

// Service owns the reservation record lifecycle. It never touches seat
// counters; status moves through the pending/confirmed/failed/cancelled
// machine one guarded transition at a time.
type Service interface {
	Create(ctx context.Context, input CreateReservationInput) (*models.Reservation, error)
	MarkConfirmed(ctx context.Context, id uuid.UUID) error
	MarkFailed(ctx context.Context, id uuid.UUID) error
	MarkCancelled(ctx context.Context, id uuid.UUID) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Reservation, error)
	FindByIdempotencyKey(ctx context.Context, key string) (*models.Reservation, error)
	ListByUser(ctx context.Context, userID uuid.UUID, params pagination.Params) (*ReservationList, error)
	ListByShowtime(ctx context.Context, showtimeID uuid.UUID) ([]models.Reservation, error)
}

// CreateReservationInput captures the immutable data a reservation record requires.
type CreateReservationInput struct {
	UserID          uuid.UUID
	ShowtimeID      uuid.UUID
	SeatCount       int
	TotalPriceCents int
	IdempotencyKey  *string
}

// ReservationList is a cursor page of reservation records.
type ReservationList struct {
	Items      []models.Reservation
	NextCursor string
}
