package models

import (
	"time"

	"gorm.io/gorm"
)

// ConsoleLog 目标板控制台通信日志
type ConsoleLog struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	CreatedAt time.Time `gorm:"index;not null" json:"created_at"`

	RunID     string `gorm:"type:varchar(64);index" json:"run_id,omitempty"`
	Board     string `gorm:"type:varchar(20);index;not null" json:"board"`     // device / host
	Direction string `gorm:"type:varchar(10);index;not null" json:"direction"` // SEND / RECEIVE
	Line      string `gorm:"type:text" json:"line"`
	Timestamp int64  `gorm:"index" json:"timestamp"` // Unix时间戳（毫秒）
}

// TableName 指定表名
func (ConsoleLog) TableName() string {
	return "console_logs"
}

// BeforeCreate 创建前的钩子
func (c *ConsoleLog) BeforeCreate(tx *gorm.DB) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	if c.Timestamp == 0 {
		c.Timestamp = time.Now().UnixMilli()
	}
	return nil
}

// ConsoleLogQuery 控制台日志查询参数
type ConsoleLogQuery struct {
	RunID     string     `json:"run_id,omitempty"`
	Board     string     `json:"board,omitempty"`
	Direction string     `json:"direction,omitempty"`
	Keyword   string     `json:"keyword,omitempty"`
	StartTime *time.Time `json:"start_time,omitempty"`
	EndTime   *time.Time `json:"end_time,omitempty"`
	Limit     int        `json:"limit,omitempty"`
	Offset    int        `json:"offset,omitempty"`
	OrderBy   string     `json:"order_by,omitempty"`
}
