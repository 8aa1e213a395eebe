package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/ricolancheros/movie-reservation-system/pkg/enums"
)

// ReconciliationItem records seats the coordinator could not release
// synchronously after exhausting its retry budget. The reconciler keeps
// retrying until the release lands; capacity is never silently lost.
type ReconciliationItem struct {
	ID            uuid.UUID                  `gorm:"column:id;type:uuid;primaryKey"`
	ReservationID *uuid.UUID                 `gorm:"column:reservation_id;type:uuid;index"`
	ShowtimeID    uuid.UUID                  `gorm:"column:showtime_id;type:uuid;not null;index"`
	SeatCount     int                        `gorm:"column:seat_count;not null"`
	Reason        enums.ReconciliationReason `gorm:"column:reason;type:text;not null"`
	Attempts      int                        `gorm:"column:attempts;not null;default:0"`
	ResolvedAt    *time.Time                 `gorm:"column:resolved_at;index"`
	CreatedAt     time.Time                  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time                  `gorm:"column:updated_at;autoUpdateTime"`
}
