package harness

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/wfunc/usb-bench/internal/board"
	"github.com/wfunc/usb-bench/internal/config"
	"github.com/wfunc/usb-bench/internal/errors"
	"github.com/wfunc/usb-bench/internal/runner"
)

// recordingReporter 记录上报调用的测试替身
type recordingReporter struct {
	started  []string
	phases   []string
	cases    []runner.CaseResult
	finished []*RunReport
}

func (r *recordingReporter) RunStarted(runID string, device, host board.Info) {
	r.started = append(r.started, runID)
}

func (r *recordingReporter) PhaseStarted(runID string, phase string) {
	r.phases = append(r.phases, phase)
}

func (r *recordingReporter) CaseFinished(runID string, phase string, group string, result runner.CaseResult) {
	r.cases = append(r.cases, result)
}

func (r *recordingReporter) PhaseFinished(runID string, report *PhaseReport) {}

func (r *recordingReporter) RunFinished(report *RunReport) {
	r.finished = append(r.finished, report)
}

// HarnessTestSuite 编排器测试套件
type HarnessTestSuite struct {
	suite.Suite
	device   *board.MockBoard
	host     *board.MockBoard
	cfg      *config.HarnessConfig
	reporter *recordingReporter
}

func (suite *HarnessTestSuite) SetupTest() {
	suite.device = board.NewMockBoard("device", "esp32s2", nil)
	suite.host = board.NewMockBoard("host", "esp32s3", nil)
	suite.reporter = &recordingReporter{}

	suite.cfg = &config.HarnessConfig{
		MenuPrompt:     "Press ENTER to see the list of tests.",
		ReadySentinel:  "USB initialization DONE",
		PrepareTimeout: 2 * time.Second,
		CaseTimeout:    2 * time.Second,
		ResetSettle:    10 * time.Millisecond,
		Phases: []config.PhaseConfig{
			{Name: "cdc", DeviceMode: "[cdc_acm_device]", Group: "cdc_acm", ResetBefore: false},
			{Name: "msc", DeviceMode: "[usb_msc_device]", Group: "usb_msc", ResetBefore: true},
		},
	}

	// 设备板：启动后打印菜单提示，收到模式命令后报就绪
	suite.device.SetBootLines("Press ENTER to see the list of tests.")
	suite.device.Script("[cdc_acm_device]",
		"Running cdc_acm_device...",
		"USB initialization DONE",
	)
	suite.device.Script("[usb_msc_device]",
		"Running usb_msc_device...",
		"USB initialization DONE",
	)
	suite.NoError(suite.device.Connect())

	// 主机板：按ENTER列出菜单，按编号执行用例
	suite.host.Script("",
		`(1)	"cdc read" [cdc_acm]`,
		`(2)	"msc mount" [usb_msc]`,
		`(3)	"msc dual" [usb_msc][multi_device]`,
		runner.MenuTerminator,
	)
	suite.host.Script("1",
		"1 Tests 0 Failures 0 Ignored",
		"OK",
	)
	suite.host.Script("2",
		"1 Tests 0 Failures 0 Ignored",
		"OK",
	)
	suite.NoError(suite.host.Connect())
}

func (suite *HarnessTestSuite) newOrchestrator() *Orchestrator {
	return New(suite.device, suite.host, suite.cfg, suite.reporter)
}

// 测试完整两阶段运行
func (suite *HarnessTestSuite) TestRunTwoPhases() {
	report, err := suite.newOrchestrator().Run(context.Background())
	suite.NoError(err)
	suite.True(report.Success)
	suite.NotEmpty(report.RunID)
	suite.Len(report.Phases, 2)

	// cdc阶段：1个用例通过
	cdc := report.Phases[0]
	suite.Equal("cdc", cdc.Name)
	suite.Equal(1, cdc.Passed)
	suite.Equal(0, cdc.Failed)

	// msc阶段：1个通过 + 1个multi_device跳过
	msc := report.Phases[1]
	suite.Equal("msc", msc.Name)
	suite.Equal(1, msc.Passed)
	suite.Equal(1, msc.Skipped)

	// msc阶段前复位了设备板
	suite.Equal(1, suite.device.ResetCount())

	// 设备板收到的模式命令顺序
	suite.Equal([]string{"[cdc_acm_device]", "[usb_msc_device]"}, suite.device.WrittenLines())

	// 上报回调
	suite.Len(suite.reporter.started, 1)
	suite.Equal([]string{"cdc", "msc"}, suite.reporter.phases)
	suite.Len(suite.reporter.cases, 3)
	suite.Len(suite.reporter.finished, 1)
}

// 测试用例失败不中断运行
func (suite *HarnessTestSuite) TestRunWithCaseFailure() {
	suite.host.Script("1",
		"test.c:10:cdc read:FAIL",
		"1 Tests 1 Failures 0 Ignored",
		"FAIL",
	)

	report, err := suite.newOrchestrator().Run(context.Background())
	suite.NoError(err)
	suite.False(report.Success)
	suite.Len(report.Phases, 2)
	suite.Equal(1, report.Phases[0].Failed)
	// msc阶段照常执行
	suite.Equal(1, report.Phases[1].Passed)
}

// 测试就绪哨兵超时终止后续阶段
func (suite *HarnessTestSuite) TestRunReadySentinelTimeout() {
	// cdc模式命令不再输出就绪哨兵
	suite.device.Script("[cdc_acm_device]", "Running cdc_acm_device...")
	suite.cfg.PrepareTimeout = 100 * time.Millisecond

	report, err := suite.newOrchestrator().Run(context.Background())
	suite.Error(err)
	suite.True(errors.Is(err, errors.ErrPhasePrepare))
	suite.False(report.Success)
	// 只有失败的cdc阶段，msc没有执行
	suite.Len(report.Phases, 1)
	suite.NotEmpty(report.Phases[0].Error)
}

// 测试菜单解析失败
func (suite *HarnessTestSuite) TestRunMenuFailure() {
	suite.host.Script("", runner.MenuTerminator)
	suite.cfg.PrepareTimeout = 500 * time.Millisecond

	report, err := suite.newOrchestrator().Run(context.Background())
	suite.Error(err)
	suite.True(errors.Is(err, errors.ErrPhasePrepare))
	suite.False(report.Success)
	suite.Len(report.Phases, 1)
}

// 测试运行取消
func (suite *HarnessTestSuite) TestRunCanceled() {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	suite.cfg.PrepareTimeout = 500 * time.Millisecond

	report, err := suite.newOrchestrator().Run(ctx)
	suite.Error(err)
	suite.False(report.Success)
}

func TestHarnessSuite(t *testing.T) {
	suite.Run(t, new(HarnessTestSuite))
}
