package harness

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/wfunc/usb-bench/internal/board"
	"github.com/wfunc/usb-bench/internal/config"
	"github.com/wfunc/usb-bench/internal/errors"
	"github.com/wfunc/usb-bench/internal/logger"
	"github.com/wfunc/usb-bench/internal/runner"
	"go.uber.org/zap"
)

// PhaseReport 单个测试阶段的结果
type PhaseReport struct {
	Name       string              `json:"name"`
	DeviceMode string              `json:"device_mode"`
	Group      string              `json:"group"`
	Results    []runner.CaseResult `json:"results"`
	Passed     int                 `json:"passed"`
	Failed     int                 `json:"failed"`
	Timeout    int                 `json:"timeout"`
	Skipped    int                 `json:"skipped"`
	Error      string              `json:"error,omitempty"`
	Duration   time.Duration       `json:"duration"`
}

// RunReport 一次完整运行的结果
type RunReport struct {
	RunID      string        `json:"run_id"`
	Device     board.Info    `json:"device"`
	Host       board.Info    `json:"host"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Phases     []PhaseReport `json:"phases"`
	Success    bool          `json:"success"`
}

// Reporter 运行进度上报接口（持久化、推送等由实现方负责）
type Reporter interface {
	RunStarted(runID string, device, host board.Info)
	PhaseStarted(runID string, phase string)
	CaseFinished(runID string, phase string, group string, result runner.CaseResult)
	PhaseFinished(runID string, report *PhaseReport)
	RunFinished(report *RunReport)
}

// Orchestrator 两板测试台编排器
//
// 按配置的阶段顺序驱动：先把设备板切到目标模式并等待就绪哨兵，
// 再在主机板上跑对应测试组的全部单板用例。阶段之间按需对设备板
// 做硬件复位。
type Orchestrator struct {
	device   board.Board
	host     board.Board
	cfg      *config.HarnessConfig
	reporter Reporter
	logger   *zap.Logger
}

// New 创建编排器
func New(device, host board.Board, cfg *config.HarnessConfig, reporter Reporter) *Orchestrator {
	return &Orchestrator{
		device:   device,
		host:     host,
		cfg:      cfg,
		reporter: reporter,
		logger:   logger.GetModuleLogger("harness"),
	}
}

// Close 释放两块目标板的串口
func (o *Orchestrator) Close() {
	if err := o.device.Close(); err != nil {
		o.logger.Error("关闭设备板失败", zap.Error(err))
	}
	if err := o.host.Close(); err != nil {
		o.logger.Error("关闭主机板失败", zap.Error(err))
	}
}

// Run 执行一次完整的测试运行
//
// 阶段准备失败（复位、模式切换、哨兵超时）终止后续阶段；
// 用例失败不影响后续用例和阶段。返回的报告总是完整填充。
func (o *Orchestrator) Run(ctx context.Context) (*RunReport, error) {
	report := &RunReport{
		RunID:     uuid.New().String(),
		Device:    o.device.Info(),
		Host:      o.host.Info(),
		StartedAt: time.Now(),
	}

	o.logger.Info("测试运行开始",
		zap.String("run_id", report.RunID),
		zap.String("device_port", report.Device.Port),
		zap.String("host_port", report.Host.Port),
		zap.Int("phases", len(o.cfg.Phases)))

	if o.reporter != nil {
		o.reporter.RunStarted(report.RunID, report.Device, report.Host)
	}

	var runErr error
	success := true
	for _, phase := range o.cfg.Phases {
		phaseReport, err := o.runPhase(ctx, report.RunID, phase)
		report.Phases = append(report.Phases, *phaseReport)

		if o.reporter != nil {
			o.reporter.PhaseFinished(report.RunID, phaseReport)
		}

		if err != nil {
			success = false
			runErr = err
			// 准备失败说明设备板状态未知，后续阶段没有意义
			break
		}
		if phaseReport.Failed > 0 || phaseReport.Timeout > 0 {
			success = false
		}
	}

	report.FinishedAt = time.Now()
	report.Success = success

	o.logger.Info("测试运行结束",
		zap.String("run_id", report.RunID),
		zap.Bool("success", report.Success),
		zap.Duration("duration", report.FinishedAt.Sub(report.StartedAt)))

	if o.reporter != nil {
		o.reporter.RunFinished(report)
	}

	return report, runErr
}

// runPhase 执行单个阶段：设备板进入模式 + 主机板跑测试组
func (o *Orchestrator) runPhase(ctx context.Context, runID string, phase config.PhaseConfig) (*PhaseReport, error) {
	start := time.Now()
	report := &PhaseReport{
		Name:       phase.Name,
		DeviceMode: phase.DeviceMode,
		Group:      phase.Group,
	}

	logger.LogPhase(runID, phase.Name, "started",
		zap.String("device_mode", phase.DeviceMode),
		zap.String("group", phase.Group))
	if o.reporter != nil {
		o.reporter.PhaseStarted(runID, phase.Name)
	}

	if err := o.prepareDevice(ctx, runID, phase); err != nil {
		report.Error = err.Error()
		report.Duration = time.Since(start)
		logger.LogPhase(runID, phase.Name, "prepare_failed", zap.Error(err))
		return report, err
	}

	// 主机板每个阶段重新解析菜单
	menuCtx, cancelMenu := context.WithTimeout(ctx, o.cfg.PrepareTimeout)
	hostRunner := runner.New(o.host, o.cfg.CaseTimeout)
	cases, err := hostRunner.Collect(menuCtx)
	cancelMenu()
	if err != nil {
		report.Error = err.Error()
		report.Duration = time.Since(start)
		logger.LogPhase(runID, phase.Name, "menu_failed", zap.Error(err))
		return report, errors.Wrapf(err, errors.ErrPhasePrepare, "phase=%s", phase.Name)
	}

	results, err := hostRunner.RunGroup(ctx, runID, phase.Group, cases, func(res runner.CaseResult) {
		if o.reporter != nil {
			o.reporter.CaseFinished(runID, phase.Name, phase.Group, res)
		}
	})
	report.Results = results
	report.Passed = runner.CountByStatus(results, runner.StatusPass)
	report.Failed = runner.CountByStatus(results, runner.StatusFail)
	report.Timeout = runner.CountByStatus(results, runner.StatusTimeout)
	report.Skipped = runner.CountByStatus(results, runner.StatusSkipped)
	report.Duration = time.Since(start)

	if err != nil {
		report.Error = err.Error()
		logger.LogPhase(runID, phase.Name, "aborted", zap.Error(err))
		return report, err
	}

	logger.LogPhase(runID, phase.Name, "finished",
		zap.Int("passed", report.Passed),
		zap.Int("failed", report.Failed),
		zap.Int("timeout", report.Timeout),
		zap.Int("skipped", report.Skipped))

	return report, nil
}

// prepareDevice 把设备板切到阶段要求的测试模式
func (o *Orchestrator) prepareDevice(ctx context.Context, runID string, phase config.PhaseConfig) error {
	if phase.ResetBefore {
		if err := o.device.HardReset(); err != nil {
			return errors.Wrapf(err, errors.ErrPhasePrepare, "phase=%s reset", phase.Name)
		}
		select {
		case <-time.After(o.cfg.ResetSettle):
		case <-ctx.Done():
			return errors.Wrapf(ctx.Err(), errors.ErrPhasePrepare, "phase=%s", phase.Name)
		}
	}

	prepareCtx, cancel := context.WithTimeout(ctx, o.cfg.PrepareTimeout)
	defer cancel()

	// 等固件报出测试菜单提示
	if _, err := o.device.Expect(prepareCtx, o.cfg.MenuPrompt); err != nil {
		return errors.Wrapf(err, errors.ErrPhasePrepare, "phase=%s menu_prompt", phase.Name)
	}

	// 写入模式选择命令
	if err := o.device.WriteLine(phase.DeviceMode); err != nil {
		return errors.Wrapf(err, errors.ErrPhasePrepare, "phase=%s mode", phase.Name)
	}

	// 等设备侧USB栈就绪
	if _, err := o.device.Expect(prepareCtx, o.cfg.ReadySentinel); err != nil {
		return errors.Wrapf(err, errors.ErrPhasePrepare, "phase=%s ready_sentinel", phase.Name)
	}

	logger.LogPhase(runID, phase.Name, "device_ready", zap.String("mode", phase.DeviceMode))
	return nil
}
