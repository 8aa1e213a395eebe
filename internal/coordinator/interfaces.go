package coordinator

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ricolancheros/movie-reservation-system/pkg/db/models"
	"github.com/ricolancheros/movie-reservation-system/pkg/enums"
	"github.com/ricolancheros/movie-reservation-system/pkg/pagination"
)

// Repository persists the coordinator's saga attempts and reconciliation
// items. These tables are the coordinator's crash journal; everything else
// lives with the inventory and ledger stores.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateSagaAttempt(ctx context.Context, attempt *models.SagaAttempt) error
	UpdateSagaAttempt(ctx context.Context, id uuid.UUID, updates map[string]any) error
	ListStalledSagaAttempts(ctx context.Context, cutoff time.Time, limit int) ([]models.SagaAttempt, error)
	CreateReconciliationItem(ctx context.Context, item *models.ReconciliationItem) error
	ListOpenReconciliationItems(ctx context.Context, limit int) ([]models.ReconciliationItem, error)
	UpdateReconciliationItem(ctx context.Context, id uuid.UUID, updates map[string]any) error
}

// Actor identifies the authenticated caller of a coordinator operation.
type Actor struct {
	UserID uuid.UUID
	Role   enums.Role
}

// IsAdmin reports whether the actor may act on other users' reservations.
func (a Actor) IsAdmin() bool {
	return a.Role == enums.RoleAdmin
}

// CreateReservationInput captures a reservation request.
type CreateReservationInput struct {
	ShowtimeID     uuid.UUID
	SeatCount      int
	IdempotencyKey *string
}

// Service orchestrates the reserve-then-commit saga across the seat
// inventory and the reservation ledger.
type Service interface {
	Recoverer
	CreateReservation(ctx context.Context, actor Actor, input CreateReservationInput) (*models.Reservation, error)
	CancelReservation(ctx context.Context, actor Actor, reservationID uuid.UUID) (*models.Reservation, error)
	GetReservation(ctx context.Context, actor Actor, reservationID uuid.UUID) (*models.Reservation, error)
	ListUserReservations(ctx context.Context, actor Actor, params pagination.Params) (*ReservationPage, error)
	ListShowtimeReservations(ctx context.Context, showtimeID uuid.UUID) ([]models.Reservation, error)
}

// ReservationPage is a cursor page of reservations.
type ReservationPage struct {
	Items      []models.Reservation
	NextCursor string
}

// Recoverer is the crash recovery surface the reconciler job drives.
type Recoverer interface {
	RecoverStalledAttempts(ctx context.Context) (int, error)
	ProcessReconciliationItems(ctx context.Context) (int, error)
}
