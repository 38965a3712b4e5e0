package repository

import (
	"time"

	"github.com/wfunc/usb-bench/internal/models"
	"gorm.io/gorm"
)

// TestRunRepository 测试运行仓库
type TestRunRepository struct {
	db *gorm.DB
}

// NewTestRunRepository 创建测试运行仓库
func NewTestRunRepository(db *gorm.DB) *TestRunRepository {
	return &TestRunRepository{
		db: db,
	}
}

// WithTx 使用事务
func (r *TestRunRepository) WithTx(tx *gorm.DB) *TestRunRepository {
	return &TestRunRepository{db: tx}
}

// Create 创建运行记录
func (r *TestRunRepository) Create(run *models.TestRun) error {
	return r.db.Create(run).Error
}

// Update 更新运行记录
func (r *TestRunRepository) Update(run *models.TestRun) error {
	return r.db.Save(run).Error
}

// GetByRunID 根据运行ID获取记录
func (r *TestRunRepository) GetByRunID(runID string) (*models.TestRun, error) {
	var run models.TestRun
	err := r.db.Where("run_id = ?", runID).First(&run).Error
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// GetLatest 获取最近一次运行
func (r *TestRunRepository) GetLatest() (*models.TestRun, error) {
	var run models.TestRun
	err := r.db.Order("started_at DESC").First(&run).Error
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// GetRunning 获取进行中的运行
func (r *TestRunRepository) GetRunning() (*models.TestRun, error) {
	var run models.TestRun
	err := r.db.Where("status = ?", models.RunStatusRunning).First(&run).Error
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// Query 查询运行记录
func (r *TestRunRepository) Query(query *models.TestRunQuery) ([]*models.TestRun, int64, error) {
	db := r.db.Model(&models.TestRun{})

	if query.Status != "" {
		db = db.Where("status = ?", query.Status)
	}
	if query.Chip != "" {
		db = db.Where("device_chip = ? OR host_chip = ?", query.Chip, query.Chip)
	}
	if query.StartTime != nil {
		db = db.Where("started_at >= ?", *query.StartTime)
	}
	if query.EndTime != nil {
		db = db.Where("started_at <= ?", *query.EndTime)
	}

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	orderBy := query.OrderBy
	if orderBy == "" {
		orderBy = "started_at DESC"
	}
	db = db.Order(orderBy)

	if query.Limit > 0 {
		db = db.Limit(query.Limit)
	}
	if query.Offset > 0 {
		db = db.Offset(query.Offset)
	}

	var runs []*models.TestRun
	if err := db.Find(&runs).Error; err != nil {
		return nil, 0, err
	}

	return runs, total, nil
}

// MarkFinished 标记运行结束
func (r *TestRunRepository) MarkFinished(runID string, status models.RunStatus, errorMsg string) error {
	now := time.Now()
	return r.db.Model(&models.TestRun{}).
		Where("run_id = ?", runID).
		Updates(map[string]interface{}{
			"status":      status,
			"finished_at": now,
			"error_msg":   errorMsg,
		}).Error
}

// GetStats 获取运行统计信息
func (r *TestRunRepository) GetStats(startTime, endTime *time.Time) (*models.TestRunStats, error) {
	stats := &models.TestRunStats{}
	db := r.db.Model(&models.TestRun{})

	if startTime != nil {
		db = db.Where("started_at >= ?", *startTime)
	}
	if endTime != nil {
		db = db.Where("started_at <= ?", *endTime)
	}

	if err := db.Count(&stats.TotalRuns).Error; err != nil {
		return nil, err
	}

	db.Session(&gorm.Session{}).Where("status = ?", models.RunStatusPassed).Count(&stats.PassedRuns)
	db.Session(&gorm.Session{}).Where("status = ?", models.RunStatusFailed).Count(&stats.FailedRuns)
	db.Session(&gorm.Session{}).Where("status = ?", models.RunStatusAborted).Count(&stats.AbortedRuns)

	if stats.TotalRuns > 0 {
		stats.PassRate = float64(stats.PassedRuns) / float64(stats.TotalRuns)
	}

	var avg struct {
		AvgDuration float64
		TotalCases  int64
		TotalFailed int64
	}
	if err := db.Session(&gorm.Session{}).
		Select("AVG(duration_ms) as avg_duration, SUM(total_cases) as total_cases, SUM(failed) as total_failed").
		Scan(&avg).Error; err == nil {
		stats.AvgDurationMs = avg.AvgDuration
		stats.TotalCases = avg.TotalCases
		stats.TotalFailed = avg.TotalFailed
	}

	return stats, nil
}

// DeleteOlderThan 清理过期运行记录
func (r *TestRunRepository) DeleteOlderThan(before time.Time) (int64, error) {
	result := r.db.Unscoped().
		Where("started_at < ?", before).
		Delete(&models.TestRun{})
	return result.RowsAffected, result.Error
}
