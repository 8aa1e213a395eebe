package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/ricolancheros/movie-reservation-system/pkg/enums"
)

// Reservation is the ledger record of a reservation attempt and its outcome.
// The ledger never touches seat counters; it is correlated with inventory only
// through ShowtimeID and the coordinator's saga attempts.
type Reservation struct {
	ID              uuid.UUID               `gorm:"column:id;type:uuid;primaryKey"`
	UserID          uuid.UUID               `gorm:"column:user_id;type:uuid;not null;index"`
	ShowtimeID      uuid.UUID               `gorm:"column:showtime_id;type:uuid;not null;index"`
	SeatCount       int                     `gorm:"column:seat_count;not null"`
	TotalPriceCents int                     `gorm:"column:total_price_cents;not null"`
	Status          enums.ReservationStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	IdempotencyKey  *string                 `gorm:"column:idempotency_key;uniqueIndex"`
	CreatedAt       time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}
