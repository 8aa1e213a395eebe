package showtimes

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ricolancheros/movie-reservation-system/pkg/db/models"
)

// BrowseFilters narrows the public showtime listing. Zero values match all.
type BrowseFilters struct {
	MovieID string
	Date    string
}

// Repository defines persistence operations for showtimes.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, showtime *models.Showtime) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Showtime, error)
	FindViewByID(ctx context.Context, id uuid.UUID) (*ShowtimeView, error)
	ListActive(ctx context.Context, filters BrowseFilters) ([]ShowtimeView, error)
	Update(ctx context.Context, id uuid.UUID, updates map[string]any) error
}

// Service is the read-mostly facade the API serves showtime data from, plus
// the admin scheduling operations that keep showtimes and seat inventory in
// step.
type Service interface {
	Schedule(ctx context.Context, input ScheduleShowtimeInput) (*ShowtimeView, error)
	Reschedule(ctx context.Context, id uuid.UUID, input RescheduleShowtimeInput) (*ShowtimeView, error)
	Retire(ctx context.Context, id uuid.UUID) error
	GetByID(ctx context.Context, id uuid.UUID) (*ShowtimeView, error)
	Browse(ctx context.Context, filters BrowseFilters) ([]ShowtimeView, error)
}
