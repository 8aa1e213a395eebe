package showtimes

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ricolancheros/movie-reservation-system/pkg/db/models"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds a showtime repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, showtime *models.Showtime) error {
	return r.db.WithContext(ctx).Create(showtime).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Showtime, error) {
	var showtime models.Showtime
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&showtime).Error
	if err != nil {
		return nil, err
	}
	return &showtime, nil
}

func (r *repository) FindViewByID(ctx context.Context, id uuid.UUID) (*ShowtimeView, error) {
	var view ShowtimeView
	err := r.viewQuery(ctx).
		Where("showtimes.id = ?", id).
		Take(&view).Error
	if err != nil {
		return nil, err
	}
	return &view, nil
}

func (r *repository) ListActive(ctx context.Context, filters BrowseFilters) ([]ShowtimeView, error) {
	query := r.viewQuery(ctx).Where("showtimes.retired_at IS NULL")
	if filters.MovieID != "" {
		query = query.Where("showtimes.movie_id = ?", filters.MovieID)
	}
	if filters.Date != "" {
		query = query.Where("showtimes.date = ?", filters.Date)
	}

	var views []ShowtimeView
	if err := query.Order("showtimes.date ASC, showtimes.time ASC, showtimes.id ASC").Find(&views).Error; err != nil {
		return nil, err
	}
	return views, nil
}

func (r *repository) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.Showtime{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *repository) viewQuery(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Model(&models.Showtime{}).
		Select(`showtimes.id, showtimes.movie_id, showtimes.movie_title, showtimes.hall_id,
			showtimes.date, showtimes.time, showtimes.price_cents, showtimes.retired_at,
			seat_inventories.total_seats, seat_inventories.available_seats`).
		Joins("JOIN seat_inventories ON seat_inventories.showtime_id = showtimes.id")
}
