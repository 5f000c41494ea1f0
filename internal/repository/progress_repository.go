package repository

import (
	"color_academy_backend/internal/model"
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ProgressRepository 以数据库表作为教程进度的 key → blob 存储
type ProgressRepository struct {
	DB *gorm.DB
}

func NewProgressRepository(db *gorm.DB) *ProgressRepository {
	return &ProgressRepository{DB: db}
}

// Get key 不存在时返回 (nil, nil)
func (r *ProgressRepository) Get(ctx context.Context, key string) ([]byte, error) {
	var snap model.ProgressSnapshot
	err := r.DB.WithContext(ctx).Where(clause.Eq{Column: "key", Value: key}).First(&snap).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return snap.Blob, nil
}

func (r *ProgressRepository) Set(ctx context.Context, key string, blob []byte) error {
	snap := model.ProgressSnapshot{Key: key, Blob: blob}
	return r.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"data", "updated_at"}),
	}).Create(&snap).Error
}

// Delete 全部重置时清除
func (r *ProgressRepository) Delete(ctx context.Context, key string) error {
	return r.DB.WithContext(ctx).Where(clause.Eq{Column: "key", Value: key}).Delete(&model.ProgressSnapshot{}).Error
}
