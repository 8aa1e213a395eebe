package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/ricolancheros/movie-reservation-system/pkg/enums"
)

// SagaAttempt is the coordinator's durable record of a create-reservation
// attempt. An attempt stuck in capacity_reserved past the recovery timeout
// means the process died between the inventory decrement and the ledger
// commit; the reconciler compensates it.
type SagaAttempt struct {
	ID            uuid.UUID      `gorm:"column:id;type:uuid;primaryKey"`
	ReservationID *uuid.UUID     `gorm:"column:reservation_id;type:uuid;index"`
	ShowtimeID    uuid.UUID      `gorm:"column:showtime_id;type:uuid;not null;index"`
	SeatCount     int            `gorm:"column:seat_count;not null"`
	Step          enums.SagaStep `gorm:"column:step;type:text;not null;index"`
	CreatedAt     time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}
