package models

import (
	"time"

	"github.com/google/uuid"
)

// Showtime is a scheduled screening: movie metadata, hall, date/time and the
// per-seat price every reservation derives its total from.
type Showtime struct {
	ID         uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	MovieID    string     `gorm:"column:movie_id;not null;index"`
	MovieTitle string     `gorm:"column:movie_title;not null"`
	HallID     string     `gorm:"column:hall_id;not null"`
	Date       string     `gorm:"column:date;not null;index"`
	Time       string     `gorm:"column:time;not null"`
	PriceCents int        `gorm:"column:price_cents;not null"`
	RetiredAt  *time.Time `gorm:"column:retired_at"`
	CreatedAt  time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

// Retired reports whether the showtime was soft-retired.
func (s *Showtime) Retired() bool {
	return s.RetiredAt != nil
}
