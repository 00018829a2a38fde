package repository

import (
	"context"
	"time"

	"github.com/sifan077/PowerQR/internal/app/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ScanEventRepository defines the data access contract for scan events.
type ScanEventRepository interface {
	Create(ctx context.Context, event *model.ScanEvent) error
	DeleteOlderThan(ctx context.Context, before time.Time) (int64, error)
}

type scanEventRepository struct {
	db *gorm.DB
}

// NewScanEventRepository returns a GORM-backed ScanEventRepository.
func NewScanEventRepository(db *gorm.DB) ScanEventRepository {
	return &scanEventRepository{db: db}
}

// Create is idempotent on the event id so redelivered messages do not duplicate rows.
func (r *scanEventRepository) Create(ctx context.Context, event *model.ScanEvent) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(event).Error
}

func (r *scanEventRepository) DeleteOlderThan(ctx context.Context, before time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("timestamp < ?", before).
		Delete(&model.ScanEvent{})
	return result.RowsAffected, result.Error
}
