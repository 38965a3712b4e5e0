package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"gorm.io/gorm"
)

// RunStatus 测试运行状态
type RunStatus string

const (
	RunStatusRunning RunStatus = "running"
	RunStatusPassed  RunStatus = "passed"
	RunStatusFailed  RunStatus = "failed"
	RunStatusAborted RunStatus = "aborted"
)

// JSONData 用于存储JSON格式的数据
type JSONData map[string]interface{}

// Value 实现 driver.Valuer 接口
func (j JSONData) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// Scan 实现 sql.Scanner 接口
func (j *JSONData) Scan(value interface{}) error {
	if value == nil {
		*j = make(map[string]interface{})
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		strVal, ok := value.(string)
		if !ok {
			return nil
		}
		bytes = []byte(strVal)
	}
	return json.Unmarshal(bytes, j)
}

// TestRun 一次完整的测试运行记录
type TestRun struct {
	ID        uint           `gorm:"primaryKey;autoIncrement" json:"id"`
	CreatedAt time.Time      `gorm:"index;not null" json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	// 运行标识
	RunID  string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"run_id"`
	Status RunStatus `gorm:"type:varchar(20);index;default:running" json:"status"`

	// 硬件信息
	DeviceChip string `gorm:"type:varchar(20)" json:"device_chip"`
	DevicePort string `gorm:"type:varchar(64)" json:"device_port"`
	HostChip   string `gorm:"type:varchar(20)" json:"host_chip"`
	HostPort   string `gorm:"type:varchar(64)" json:"host_port"`

	// 时间与统计
	StartedAt  time.Time  `gorm:"index" json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	DurationMs int64      `gorm:"default:0" json:"duration_ms"`
	TotalCases int        `gorm:"default:0" json:"total_cases"`
	Passed     int        `gorm:"default:0" json:"passed"`
	Failed     int        `gorm:"default:0" json:"failed"`
	Timeout    int        `gorm:"default:0" json:"timeout"`
	Skipped    int        `gorm:"default:0" json:"skipped"`

	// 阶段摘要（名称、组、用例计数）
	PhaseSummary JSONData `gorm:"type:json" json:"phase_summary,omitempty"`

	// 失败信息
	ErrorMsg string `gorm:"type:text" json:"error_msg,omitempty"`
}

// TableName 指定表名
func (TestRun) TableName() string {
	return "test_runs"
}

// BeforeCreate 创建前的钩子
func (r *TestRun) BeforeCreate(tx *gorm.DB) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	if r.StartedAt.IsZero() {
		r.StartedAt = time.Now()
	}
	return nil
}

// CaseResult 单个用例的执行记录
type CaseResult struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	CreatedAt time.Time `gorm:"index;not null" json:"created_at"`

	RunID     string `gorm:"type:varchar(64);index;not null" json:"run_id"`
	Phase     string `gorm:"type:varchar(50);index" json:"phase"`
	GroupName string `gorm:"type:varchar(50);index" json:"group_name"`

	CaseIndex  int    `json:"case_index"`
	CaseName   string `gorm:"type:varchar(255)" json:"case_name"`
	Status     string `gorm:"type:varchar(20);index" json:"status"`
	Failures   int    `gorm:"default:0" json:"failures"`
	DurationMs int64  `gorm:"default:0" json:"duration_ms"`
	Detail     string `gorm:"type:text" json:"detail,omitempty"`
}

// TableName 指定表名
func (CaseResult) TableName() string {
	return "case_results"
}

// BeforeCreate 创建前的钩子
func (c *CaseResult) BeforeCreate(tx *gorm.DB) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	return nil
}

// TestRunQuery 运行记录查询参数
type TestRunQuery struct {
	Status    RunStatus  `json:"status,omitempty"`
	Chip      string     `json:"chip,omitempty"`
	StartTime *time.Time `json:"start_time,omitempty"`
	EndTime   *time.Time `json:"end_time,omitempty"`
	Limit     int        `json:"limit,omitempty"`
	Offset    int        `json:"offset,omitempty"`
	OrderBy   string     `json:"order_by,omitempty"`
}

// TestRunStats 运行统计信息
type TestRunStats struct {
	TotalRuns     int64   `json:"total_runs"`
	PassedRuns    int64   `json:"passed_runs"`
	FailedRuns    int64   `json:"failed_runs"`
	AbortedRuns   int64   `json:"aborted_runs"`
	PassRate      float64 `json:"pass_rate"`
	AvgDurationMs float64 `json:"avg_duration_ms"`
	TotalCases    int64   `json:"total_cases"`
	TotalFailed   int64   `json:"total_failed"`
}
