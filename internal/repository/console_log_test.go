package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/wfunc/usb-bench/internal/models"
	"gorm.io/gorm"
)

// ConsoleLogRepositoryTestSuite 控制台日志仓库测试套件
type ConsoleLogRepositoryTestSuite struct {
	suite.Suite
	db        *gorm.DB
	logRepo   *ConsoleLogRepository
	boardRepo *BoardInfoRepository
}

func (suite *ConsoleLogRepositoryTestSuite) SetupTest() {
	suite.db = SetupTestDB()
	suite.logRepo = NewConsoleLogRepository(suite.db)
	suite.boardRepo = NewBoardInfoRepository(suite.db)
}

func (suite *ConsoleLogRepositoryTestSuite) TearDownTest() {
	CleanupTestDB(suite.db)
}

// 测试批量写入与按运行查询
func (suite *ConsoleLogRepositoryTestSuite) TestCreateBatchAndGet() {
	logs := []*models.ConsoleLog{
		CreateTestConsoleLog("run-001", "device", "RECEIVE", "Press ENTER to see the list of tests."),
		CreateTestConsoleLog("run-001", "device", "SEND", "[cdc_acm_device]"),
		CreateTestConsoleLog("run-001", "device", "RECEIVE", "USB initialization DONE"),
	}
	suite.NoError(suite.logRepo.CreateBatch(logs))

	got, err := suite.logRepo.GetByRunID("run-001", 0)
	suite.NoError(err)
	suite.Len(got, 3)
	// 按写入顺序返回
	suite.Equal("[cdc_acm_device]", got[1].Line)
	suite.NotZero(got[0].Timestamp)
}

// 测试空批量写入
func (suite *ConsoleLogRepositoryTestSuite) TestCreateBatchEmpty() {
	suite.NoError(suite.logRepo.CreateBatch(nil))
}

// 测试条件查询
func (suite *ConsoleLogRepositoryTestSuite) TestQuery() {
	suite.NoError(suite.logRepo.CreateBatch([]*models.ConsoleLog{
		CreateTestConsoleLog("run-001", "device", "RECEIVE", "USB initialization DONE"),
		CreateTestConsoleLog("run-001", "host", "SEND", "1"),
		CreateTestConsoleLog("run-002", "device", "RECEIVE", "boot"),
	}))

	logs, total, err := suite.logRepo.Query(&models.ConsoleLogQuery{RunID: "run-001"})
	suite.NoError(err)
	suite.EqualValues(2, total)
	suite.Len(logs, 2)

	logs, _, err = suite.logRepo.Query(&models.ConsoleLogQuery{Board: "host"})
	suite.NoError(err)
	suite.Len(logs, 1)

	logs, _, err = suite.logRepo.Query(&models.ConsoleLogQuery{Keyword: "initialization"})
	suite.NoError(err)
	suite.Len(logs, 1)
	suite.Equal("USB initialization DONE", logs[0].Line)
}

// 测试清理过期日志
func (suite *ConsoleLogRepositoryTestSuite) TestDeleteOlderThan() {
	old := CreateTestConsoleLog("run-001", "device", "RECEIVE", "old line")
	old.CreatedAt = time.Now().Add(-48 * time.Hour)
	suite.NoError(suite.logRepo.Create(old))
	suite.NoError(suite.logRepo.Create(CreateTestConsoleLog("run-001", "device", "RECEIVE", "new line")))

	deleted, err := suite.logRepo.DeleteOlderThan(time.Now().Add(-24 * time.Hour))
	suite.NoError(err)
	suite.EqualValues(1, deleted)
}

// 测试目标板登记与更新
func (suite *ConsoleLogRepositoryTestSuite) TestBoardInfoUpsert() {
	suite.NoError(suite.boardRepo.Upsert(&models.BoardInfo{
		Role:     "device",
		Chip:     "esp32s2",
		Port:     "/dev/ttyUSB0",
		BaudRate: 115200,
	}))

	// 同一角色再次登记更新端口
	suite.NoError(suite.boardRepo.Upsert(&models.BoardInfo{
		Role:     "device",
		Chip:     "esp32s2",
		Port:     "/dev/ttyUSB2",
		BaudRate: 115200,
	}))

	got, err := suite.boardRepo.GetByRole("device")
	suite.NoError(err)
	suite.Equal("/dev/ttyUSB2", got.Port)

	all, err := suite.boardRepo.List()
	suite.NoError(err)
	suite.Len(all, 1)
}

// 测试连接状态更新
func (suite *ConsoleLogRepositoryTestSuite) TestBoardSetConnected() {
	suite.NoError(suite.boardRepo.Upsert(&models.BoardInfo{
		Role: "host",
		Chip: "esp32s3",
		Port: "/dev/ttyUSB1",
	}))

	suite.NoError(suite.boardRepo.SetConnected("host", true))

	got, err := suite.boardRepo.GetByRole("host")
	suite.NoError(err)
	suite.True(got.Connected)
}

func TestConsoleLogRepositorySuite(t *testing.T) {
	suite.Run(t, new(ConsoleLogRepositoryTestSuite))
}
