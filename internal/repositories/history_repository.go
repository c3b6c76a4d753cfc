package repositories

import (
	"context"

	"gorm.io/gorm"

	"tabledesk/internal/models"
)

// HistoryRepository keeps committed change batches. A repository without a
// database records nothing.
type HistoryRepository struct {
	db *gorm.DB
}

func NewHistoryRepository(db *gorm.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

func (r *HistoryRepository) Enabled() bool {
	return r != nil && r.db != nil
}

func (r *HistoryRepository) Record(ctx context.Context, batch *models.ChangeBatch) error {
	if !r.Enabled() {
		return nil
	}
	batch.Prepare()
	return r.db.WithContext(ctx).Create(batch).Error
}

// List returns the latest batches, newest first, optionally for one table.
func (r *HistoryRepository) List(ctx context.Context, target string, limit int) ([]models.ChangeBatch, error) {
	if !r.Enabled() {
		return nil, nil
	}
	if limit <= 0 {
		limit = 100
	}

	q := r.db.WithContext(ctx).Order("executed_at DESC").Limit(limit)
	if target != "" {
		q = q.Where("target = ?", target)
	}

	var batches []models.ChangeBatch
	if err := q.Find(&batches).Error; err != nil {
		return nil, err
	}
	return batches, nil
}
