package db

import (
	"context"
	"fmt"

	"zapihook/models"

	"github.com/jinzhu/gorm"
)

type SettingRepository struct {
	db *gorm.DB
}

func NewSettingRepository(db *gorm.DB) *SettingRepository {
	return &SettingRepository{db: db}
}

// FindAllByContext returns the settings of one context as name -> value.
func (r *SettingRepository) FindAllByContext(ctx context.Context, settingContext string) (map[string]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var rows []models.Setting
	if err := r.db.Where("context = ?", settingContext).Order("id asc").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load settings %s: %w", settingContext, err)
	}

	out := make(map[string]string, len(rows))
	for _, s := range rows {
		out[s.Name] = s.Value
	}
	return out, nil
}

// Upsert grava o valor de context/name, criando a linha se necessário.
func (r *SettingRepository) Upsert(ctx context.Context, settingContext, name, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var s models.Setting
	err := r.db.Where("context = ? AND name = ?", settingContext, name).First(&s).Error
	if err == nil {
		return r.db.Model(&s).Updates(map[string]any{"value": value, "type": "string"}).Error
	}
	if !gorm.IsRecordNotFoundError(err) {
		return fmt.Errorf("find setting %s/%s: %w", settingContext, name, err)
	}
	s = models.Setting{Context: settingContext, Name: name, Type: "string", Value: value}
	return r.db.Create(&s).Error
}
