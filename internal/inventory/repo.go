package inventory

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ricolancheros/movie-reservation-system/pkg/db/models"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds a seat inventory repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, inv *models.SeatInventory) (*models.SeatInventory, error) {
	if err := r.db.WithContext(ctx).Create(inv).Error; err != nil {
		return nil, err
	}
	return inv, nil
}

func (r *repository) Find(ctx context.Context, showtimeID uuid.UUID) (*models.SeatInventory, error) {
	var inv models.SeatInventory
	err := r.db.WithContext(ctx).
		Where("showtime_id = ?", showtimeID).
		First(&inv).Error
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

// DecrementAvailable atomically takes seats from the counter. The WHERE guard
// keeps available_seats from going negative under concurrent callers; a false
// return means the row is missing, retired, or short on seats.
func (r *repository) DecrementAvailable(ctx context.Context, showtimeID uuid.UUID, seats int) (bool, error) {
	res := r.db.WithContext(ctx).Exec(`
		UPDATE seat_inventories
		SET available_seats = available_seats - ?,
			version = version + 1,
			updated_at = CURRENT_TIMESTAMP
		WHERE showtime_id = ? AND retired = FALSE AND available_seats >= ?
	`, seats, showtimeID, seats)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// IncrementAvailable atomically returns seats to the counter. The guard keeps
// available_seats from exceeding total_seats; retired rows still accept
// releases so compensation after a retire never strands seats.
func (r *repository) IncrementAvailable(ctx context.Context, showtimeID uuid.UUID, seats int) (bool, error) {
	res := r.db.WithContext(ctx).Exec(`
		UPDATE seat_inventories
		SET available_seats = available_seats + ?,
			version = version + 1,
			updated_at = CURRENT_TIMESTAMP
		WHERE showtime_id = ? AND available_seats + ? <= total_seats
	`, seats, showtimeID, seats)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) MarkRetired(ctx context.Context, showtimeID uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).Exec(`
		UPDATE seat_inventories
		SET retired = TRUE,
			version = version + 1,
			updated_at = CURRENT_TIMESTAMP
		WHERE showtime_id = ? AND retired = FALSE
	`, showtimeID)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
