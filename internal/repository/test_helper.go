package repository

import (
	"time"

	"github.com/wfunc/usb-bench/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SetupTestDB 为测试套件设置测试数据库
func SetupTestDB() *gorm.DB {
	// 使用内存数据库进行测试（更快，不需要文件系统）
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		panic(err)
	}

	err = db.AutoMigrate(
		&models.TestRun{},
		&models.CaseResult{},
		&models.ConsoleLog{},
		&models.BoardInfo{},
	)
	if err != nil {
		panic(err)
	}

	return db
}

// CleanupTestDB 清理测试数据库
func CleanupTestDB(db *gorm.DB) {
	sqlDB, _ := db.DB()
	if sqlDB != nil {
		sqlDB.Close()
	}
}

// CreateTestRun 创建测试运行记录
func CreateTestRun(runID string, status models.RunStatus) *models.TestRun {
	return &models.TestRun{
		RunID:      runID,
		Status:     status,
		DeviceChip: "esp32s2",
		DevicePort: "/dev/ttyUSB0",
		HostChip:   "esp32s3",
		HostPort:   "/dev/ttyUSB1",
		StartedAt:  time.Now(),
	}
}

// CreateTestCaseResult 创建测试用例结果
func CreateTestCaseResult(runID, phase, group, caseName, status string) *models.CaseResult {
	return &models.CaseResult{
		RunID:      runID,
		Phase:      phase,
		GroupName:  group,
		CaseIndex:  1,
		CaseName:   caseName,
		Status:     status,
		DurationMs: 1200,
	}
}

// CreateTestConsoleLog 创建测试控制台日志
func CreateTestConsoleLog(runID, board, direction, line string) *models.ConsoleLog {
	return &models.ConsoleLog{
		RunID:     runID,
		Board:     board,
		Direction: direction,
		Line:      line,
	}
}
