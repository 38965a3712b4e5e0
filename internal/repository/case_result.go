package repository

import (
	"github.com/wfunc/usb-bench/internal/models"
	"gorm.io/gorm"
)

// CaseResultRepository 用例结果仓库
type CaseResultRepository struct {
	db *gorm.DB
}

// NewCaseResultRepository 创建用例结果仓库
func NewCaseResultRepository(db *gorm.DB) *CaseResultRepository {
	return &CaseResultRepository{
		db: db,
	}
}

// WithTx 使用事务
func (r *CaseResultRepository) WithTx(tx *gorm.DB) *CaseResultRepository {
	return &CaseResultRepository{db: tx}
}

// Create 创建用例结果
func (r *CaseResultRepository) Create(result *models.CaseResult) error {
	return r.db.Create(result).Error
}

// CreateBatch 批量创建用例结果
func (r *CaseResultRepository) CreateBatch(results []*models.CaseResult) error {
	if len(results) == 0 {
		return nil
	}
	return r.db.CreateInBatches(results, 100).Error
}

// GetByRunID 获取一次运行的全部用例结果
func (r *CaseResultRepository) GetByRunID(runID string) ([]*models.CaseResult, error) {
	var results []*models.CaseResult
	err := r.db.Where("run_id = ?", runID).
		Order("id ASC").
		Find(&results).Error
	return results, err
}

// GetByRunAndPhase 获取指定阶段的用例结果
func (r *CaseResultRepository) GetByRunAndPhase(runID, phase string) ([]*models.CaseResult, error) {
	var results []*models.CaseResult
	err := r.db.Where("run_id = ? AND phase = ?", runID, phase).
		Order("id ASC").
		Find(&results).Error
	return results, err
}

// CountByStatus 统计一次运行中指定状态的用例数
func (r *CaseResultRepository) CountByStatus(runID, status string) (int64, error) {
	var count int64
	err := r.db.Model(&models.CaseResult{}).
		Where("run_id = ? AND status = ?", runID, status).
		Count(&count).Error
	return count, err
}

// GetFailureHistory 获取某个用例最近的失败记录
func (r *CaseResultRepository) GetFailureHistory(caseName string, limit int) ([]*models.CaseResult, error) {
	if limit <= 0 {
		limit = 20
	}
	var results []*models.CaseResult
	err := r.db.Where("case_name = ? AND status IN ?", caseName, []string{"fail", "timeout"}).
		Order("created_at DESC").
		Limit(limit).
		Find(&results).Error
	return results, err
}
