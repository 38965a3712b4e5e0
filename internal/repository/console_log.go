package repository

import (
	"time"

	"github.com/wfunc/usb-bench/internal/models"
	"gorm.io/gorm"
)

// ConsoleLogRepository 控制台日志仓库
type ConsoleLogRepository struct {
	db *gorm.DB
}

// NewConsoleLogRepository 创建控制台日志仓库
func NewConsoleLogRepository(db *gorm.DB) *ConsoleLogRepository {
	return &ConsoleLogRepository{
		db: db,
	}
}

// Create 创建日志记录
func (r *ConsoleLogRepository) Create(log *models.ConsoleLog) error {
	return r.db.Create(log).Error
}

// CreateBatch 批量创建日志记录
func (r *ConsoleLogRepository) CreateBatch(logs []*models.ConsoleLog) error {
	if len(logs) == 0 {
		return nil
	}
	return r.db.CreateInBatches(logs, 100).Error
}

// GetByRunID 获取一次运行的控制台日志
func (r *ConsoleLogRepository) GetByRunID(runID string, limit int) ([]*models.ConsoleLog, error) {
	db := r.db.Where("run_id = ?", runID).Order("id ASC")
	if limit > 0 {
		db = db.Limit(limit)
	}
	var logs []*models.ConsoleLog
	err := db.Find(&logs).Error
	return logs, err
}

// Query 查询控制台日志
func (r *ConsoleLogRepository) Query(query *models.ConsoleLogQuery) ([]*models.ConsoleLog, int64, error) {
	db := r.db.Model(&models.ConsoleLog{})

	if query.RunID != "" {
		db = db.Where("run_id = ?", query.RunID)
	}
	if query.Board != "" {
		db = db.Where("board = ?", query.Board)
	}
	if query.Direction != "" {
		db = db.Where("direction = ?", query.Direction)
	}
	if query.Keyword != "" {
		db = db.Where("line LIKE ?", "%"+query.Keyword+"%")
	}
	if query.StartTime != nil {
		db = db.Where("created_at >= ?", *query.StartTime)
	}
	if query.EndTime != nil {
		db = db.Where("created_at <= ?", *query.EndTime)
	}

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	orderBy := query.OrderBy
	if orderBy == "" {
		orderBy = "id ASC"
	}
	db = db.Order(orderBy)

	if query.Limit > 0 {
		db = db.Limit(query.Limit)
	}
	if query.Offset > 0 {
		db = db.Offset(query.Offset)
	}

	var logs []*models.ConsoleLog
	if err := db.Find(&logs).Error; err != nil {
		return nil, 0, err
	}

	return logs, total, nil
}

// DeleteOlderThan 清理过期日志
func (r *ConsoleLogRepository) DeleteOlderThan(before time.Time) (int64, error) {
	result := r.db.Where("created_at < ?", before).Delete(&models.ConsoleLog{})
	return result.RowsAffected, result.Error
}
