package database

import (
	"github.com/wfunc/usb-bench/internal/errors"
	"github.com/wfunc/usb-bench/internal/logger"
	"github.com/wfunc/usb-bench/internal/models"
	"gorm.io/gorm"
)

// Migrate 执行数据库表结构迁移
func Migrate(db *gorm.DB) error {
	tables := []interface{}{
		&models.TestRun{},
		&models.CaseResult{},
		&models.ConsoleLog{},
		&models.BoardInfo{},
	}

	if err := db.AutoMigrate(tables...); err != nil {
		return errors.Wrap(err, errors.ErrDatabaseConnect, "表结构迁移失败")
	}

	logger.Info("数据库迁移完成")
	return nil
}
