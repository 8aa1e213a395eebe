package coordinator

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ricolancheros/movie-reservation-system/pkg/db/models"
	"github.com/ricolancheros/movie-reservation-system/pkg/enums"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds a coordinator repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateSagaAttempt(ctx context.Context, attempt *models.SagaAttempt) error {
	return r.db.WithContext(ctx).Create(attempt).Error
}

func (r *repository) UpdateSagaAttempt(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.SagaAttempt{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *repository) ListStalledSagaAttempts(ctx context.Context, cutoff time.Time, limit int) ([]models.SagaAttempt, error) {
	var attempts []models.SagaAttempt
	err := r.db.WithContext(ctx).
		Where("step = ? AND updated_at < ?", enums.SagaStepCapacityReserved, cutoff).
		Order("updated_at ASC").
		Limit(limit).
		Find(&attempts).Error
	if err != nil {
		return nil, err
	}
	return attempts, nil
}

func (r *repository) CreateReconciliationItem(ctx context.Context, item *models.ReconciliationItem) error {
	return r.db.WithContext(ctx).Create(item).Error
}

func (r *repository) ListOpenReconciliationItems(ctx context.Context, limit int) ([]models.ReconciliationItem, error) {
	var items []models.ReconciliationItem
	err := r.db.WithContext(ctx).
		Where("resolved_at IS NULL").
		Order("created_at ASC").
		Limit(limit).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repository) UpdateReconciliationItem(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.ReconciliationItem{}).
		Where("id = ?", id).
		Updates(updates).Error
}
