package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/wfunc/usb-bench/internal/models"
	"gorm.io/gorm"
)

// TestRunRepositoryTestSuite 测试运行仓库测试套件
type TestRunRepositoryTestSuite struct {
	suite.Suite
	db       *gorm.DB
	runRepo  *TestRunRepository
	caseRepo *CaseResultRepository
}

func (suite *TestRunRepositoryTestSuite) SetupTest() {
	suite.db = SetupTestDB()
	suite.runRepo = NewTestRunRepository(suite.db)
	suite.caseRepo = NewCaseResultRepository(suite.db)
}

func (suite *TestRunRepositoryTestSuite) TearDownTest() {
	CleanupTestDB(suite.db)
}

// 测试创建与查询运行记录
func (suite *TestRunRepositoryTestSuite) TestCreateAndGet() {
	run := CreateTestRun("run-001", models.RunStatusRunning)
	suite.NoError(suite.runRepo.Create(run))
	suite.NotZero(run.ID)

	got, err := suite.runRepo.GetByRunID("run-001")
	suite.NoError(err)
	suite.Equal(models.RunStatusRunning, got.Status)
	suite.Equal("esp32s2", got.DeviceChip)
	suite.Equal("/dev/ttyUSB1", got.HostPort)
}

// 测试运行ID唯一
func (suite *TestRunRepositoryTestSuite) TestRunIDUnique() {
	suite.NoError(suite.runRepo.Create(CreateTestRun("run-001", models.RunStatusRunning)))
	suite.Error(suite.runRepo.Create(CreateTestRun("run-001", models.RunStatusRunning)))
}

// 测试标记运行结束
func (suite *TestRunRepositoryTestSuite) TestMarkFinished() {
	suite.NoError(suite.runRepo.Create(CreateTestRun("run-001", models.RunStatusRunning)))

	suite.NoError(suite.runRepo.MarkFinished("run-001", models.RunStatusFailed, "等待就绪哨兵超时"))

	got, err := suite.runRepo.GetByRunID("run-001")
	suite.NoError(err)
	suite.Equal(models.RunStatusFailed, got.Status)
	suite.NotNil(got.FinishedAt)
	suite.Equal("等待就绪哨兵超时", got.ErrorMsg)
}

// 测试进行中的运行查询
func (suite *TestRunRepositoryTestSuite) TestGetRunning() {
	_, err := suite.runRepo.GetRunning()
	suite.Error(err) // 没有进行中的运行

	suite.NoError(suite.runRepo.Create(CreateTestRun("run-001", models.RunStatusPassed)))
	suite.NoError(suite.runRepo.Create(CreateTestRun("run-002", models.RunStatusRunning)))

	got, err := suite.runRepo.GetRunning()
	suite.NoError(err)
	suite.Equal("run-002", got.RunID)
}

// 测试按状态查询与分页
func (suite *TestRunRepositoryTestSuite) TestQuery() {
	suite.NoError(suite.runRepo.Create(CreateTestRun("run-001", models.RunStatusPassed)))
	suite.NoError(suite.runRepo.Create(CreateTestRun("run-002", models.RunStatusFailed)))
	suite.NoError(suite.runRepo.Create(CreateTestRun("run-003", models.RunStatusPassed)))

	runs, total, err := suite.runRepo.Query(&models.TestRunQuery{
		Status: models.RunStatusPassed,
	})
	suite.NoError(err)
	suite.EqualValues(2, total)
	suite.Len(runs, 2)

	runs, total, err = suite.runRepo.Query(&models.TestRunQuery{Limit: 1})
	suite.NoError(err)
	suite.EqualValues(3, total)
	suite.Len(runs, 1)
}

// 测试运行统计
func (suite *TestRunRepositoryTestSuite) TestGetStats() {
	passed := CreateTestRun("run-001", models.RunStatusPassed)
	passed.DurationMs = 60000
	passed.TotalCases = 10
	suite.NoError(suite.runRepo.Create(passed))

	failed := CreateTestRun("run-002", models.RunStatusFailed)
	failed.DurationMs = 30000
	failed.TotalCases = 10
	failed.Failed = 2
	suite.NoError(suite.runRepo.Create(failed))

	stats, err := suite.runRepo.GetStats(nil, nil)
	suite.NoError(err)
	suite.EqualValues(2, stats.TotalRuns)
	suite.EqualValues(1, stats.PassedRuns)
	suite.EqualValues(1, stats.FailedRuns)
	suite.InDelta(0.5, stats.PassRate, 0.001)
	suite.EqualValues(20, stats.TotalCases)
	suite.EqualValues(2, stats.TotalFailed)
}

// 测试用例结果批量写入与查询
func (suite *TestRunRepositoryTestSuite) TestCaseResults() {
	results := []*models.CaseResult{
		CreateTestCaseResult("run-001", "cdc", "cdc_acm", "cdc read", "pass"),
		CreateTestCaseResult("run-001", "cdc", "cdc_acm", "cdc write", "fail"),
		CreateTestCaseResult("run-001", "msc", "usb_msc", "msc mount", "pass"),
	}
	suite.NoError(suite.caseRepo.CreateBatch(results))

	all, err := suite.caseRepo.GetByRunID("run-001")
	suite.NoError(err)
	suite.Len(all, 3)

	cdc, err := suite.caseRepo.GetByRunAndPhase("run-001", "cdc")
	suite.NoError(err)
	suite.Len(cdc, 2)

	failCount, err := suite.caseRepo.CountByStatus("run-001", "fail")
	suite.NoError(err)
	suite.EqualValues(1, failCount)
}

// 测试用例失败历史
func (suite *TestRunRepositoryTestSuite) TestFailureHistory() {
	suite.NoError(suite.caseRepo.Create(CreateTestCaseResult("run-001", "cdc", "cdc_acm", "cdc read", "fail")))
	suite.NoError(suite.caseRepo.Create(CreateTestCaseResult("run-002", "cdc", "cdc_acm", "cdc read", "timeout")))
	suite.NoError(suite.caseRepo.Create(CreateTestCaseResult("run-003", "cdc", "cdc_acm", "cdc read", "pass")))

	history, err := suite.caseRepo.GetFailureHistory("cdc read", 10)
	suite.NoError(err)
	suite.Len(history, 2)
}

// 测试清理过期记录
func (suite *TestRunRepositoryTestSuite) TestDeleteOlderThan() {
	old := CreateTestRun("run-old", models.RunStatusPassed)
	old.StartedAt = time.Now().Add(-48 * time.Hour)
	suite.NoError(suite.runRepo.Create(old))
	suite.NoError(suite.runRepo.Create(CreateTestRun("run-new", models.RunStatusPassed)))

	deleted, err := suite.runRepo.DeleteOlderThan(time.Now().Add(-24 * time.Hour))
	suite.NoError(err)
	suite.EqualValues(1, deleted)

	_, err = suite.runRepo.GetByRunID("run-old")
	suite.Error(err)
	_, err = suite.runRepo.GetByRunID("run-new")
	suite.NoError(err)
}

func TestTestRunRepositorySuite(t *testing.T) {
	suite.Run(t, new(TestRunRepositoryTestSuite))
}
