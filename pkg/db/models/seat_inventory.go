package models

import (
	"time"

	"github.com/google/uuid"
)

// SeatInventory is the authoritative seat counter for a showtime. Only the
// inventory store mutates it, always through conditional single-row updates,
// so `0 <= available_seats <= total_seats` holds under any interleaving.
type SeatInventory struct {
	ShowtimeID     uuid.UUID `gorm:"column:showtime_id;type:uuid;primaryKey"`
	TotalSeats     int       `gorm:"column:total_seats;not null"`
	AvailableSeats int       `gorm:"column:available_seats;not null"`
	Version        int64     `gorm:"column:version;not null;default:0"`
	Retired        bool      `gorm:"column:retired;not null;default:false"`
	UpdatedAt      time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
