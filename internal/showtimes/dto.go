package showtimes

import (
	"time"

	"github.com/google/uuid"
)

// ScheduleShowtimeInput captures the data required to schedule a screening.
// TotalSeats falls back to the standard hall size when omitted.
type ScheduleShowtimeInput struct {
	MovieID    string
	MovieTitle string
	HallID     string
	Date       string
	Time       string
	PriceCents int
	TotalSeats int
}

// RescheduleShowtimeInput carries the mutable fields of a showtime. Nil
// pointers leave the stored value untouched.
type RescheduleShowtimeInput struct {
	HallID     *string
	Date       *string
	Time       *string
	PriceCents *int
}

// ShowtimeView is a showtime joined with its live seat availability.
type ShowtimeView struct {
	ID             uuid.UUID  `gorm:"column:id" json:"id"`
	MovieID        string     `gorm:"column:movie_id" json:"movie_id"`
	MovieTitle     string     `gorm:"column:movie_title" json:"movie_title"`
	HallID         string     `gorm:"column:hall_id" json:"hall_id"`
	Date           string     `gorm:"column:date" json:"date"`
	Time           string     `gorm:"column:time" json:"time"`
	PriceCents     int        `gorm:"column:price_cents" json:"price_cents"`
	TotalSeats     int        `gorm:"column:total_seats" json:"total_seats"`
	AvailableSeats int        `gorm:"column:available_seats" json:"available_seats"`
	RetiredAt      *time.Time `gorm:"column:retired_at" json:"retired_at,omitempty"`
}
