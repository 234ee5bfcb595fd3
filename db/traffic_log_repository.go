package db

import (
	"context"
	"fmt"

	"zapihook/models"

	"github.com/jinzhu/gorm"
)

type TrafficLogRepository struct {
	db *gorm.DB
}

func NewTrafficLogRepository(db *gorm.DB) *TrafficLogRepository {
	return &TrafficLogRepository{db: db}
}

func (r *TrafficLogRepository) Create(ctx context.Context, entry *models.MetaAdsLog) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := r.db.Create(entry).Error; err != nil {
		return fmt.Errorf("create meta ads log: %w", err)
	}
	return nil
}
