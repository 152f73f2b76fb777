package repository

import (
	"fmt"
	"verona-ai-go/internal/model"

	"gorm.io/gorm"
)

// SearchLogRepository 定义了搜索审计记录的操作接口。
type SearchLogRepository interface {
	Create(searchLog *model.SearchLog) error
	FindRecent(userID string, limit int) ([]model.SearchLog, error)
}

type searchLogRepository struct {
	db *gorm.DB
}

// NewSearchLogRepository 创建一个新的 SearchLogRepository 实例。
func NewSearchLogRepository(db *gorm.DB) SearchLogRepository {
	return &searchLogRepository{db: db}
}

// Create 写入一条搜索记录。
func (r *searchLogRepository) Create(searchLog *model.SearchLog) error {
	if err := r.db.Create(searchLog).Error; err != nil {
		return fmt.Errorf("failed to create search log: %w", err)
	}
	return nil
}

// FindRecent 按时间倒序返回某用户最近的搜索记录。
func (r *searchLogRepository) FindRecent(userID string, limit int) ([]model.SearchLog, error) {
	var logs []model.SearchLog
	err := r.db.Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&logs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query search logs: %w", err)
	}
	return logs, nil
}
