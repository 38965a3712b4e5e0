package models

import (
	"time"
)

// BoardInfo 目标板登记信息
type BoardInfo struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Role       string    `gorm:"type:varchar(20);uniqueIndex;not null" json:"role"` // device / host
	Chip       string    `gorm:"type:varchar(20)" json:"chip"`
	Port       string    `gorm:"type:varchar(64)" json:"port"`
	BaudRate   int       `gorm:"default:115200" json:"baud_rate"`
	Connected  bool      `gorm:"default:false" json:"connected"`
	LastSeenAt time.Time `json:"last_seen_at"`
}

// TableName 指定表名
func (BoardInfo) TableName() string {
	return "board_infos"
}
