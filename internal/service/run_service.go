package service

import (
	"context"
	"sync"
	"time"

	"github.com/wfunc/usb-bench/internal/board"
	"github.com/wfunc/usb-bench/internal/errors"
	"github.com/wfunc/usb-bench/internal/harness"
	"github.com/wfunc/usb-bench/internal/logger"
	"github.com/wfunc/usb-bench/internal/models"
	"github.com/wfunc/usb-bench/internal/repository"
	"github.com/wfunc/usb-bench/internal/runner"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Broadcaster 实时事件推送接口（WebSocket集线器实现）
type Broadcaster interface {
	Broadcast(event string, data interface{})
}

// RunService 测试运行服务
//
// 实现harness.Reporter：把运行进度落库并推送给WebSocket订阅者。
// 同一时刻只允许一次运行。
type RunService struct {
	runRepo     *repository.TestRunRepository
	caseRepo    *repository.CaseResultRepository
	boardRepo   *repository.BoardInfoRepository
	consoleLogs *ConsoleLogService
	broadcaster Broadcaster
	logger      *zap.Logger

	mu        sync.Mutex
	running   bool
	aborted   bool
	cancel    context.CancelFunc
	runID     string
	startedCh chan string
}

// NewRunService 创建测试运行服务
func NewRunService(db *gorm.DB, consoleLogs *ConsoleLogService, broadcaster Broadcaster) *RunService {
	return &RunService{
		runRepo:     repository.NewTestRunRepository(db),
		caseRepo:    repository.NewCaseResultRepository(db),
		boardRepo:   repository.NewBoardInfoRepository(db),
		consoleLogs: consoleLogs,
		broadcaster: broadcaster,
		logger:      logger.GetModuleLogger("service"),
	}
}

// IsRunning 是否有运行进行中
func (s *RunService) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// CurrentRunID 当前运行ID（无运行时为空）
func (s *RunService) CurrentRunID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return ""
	}
	return s.runID
}

// Trigger 异步启动一次运行，返回运行ID
func (s *RunService) Trigger(orch *harness.Orchestrator) (string, error) {
	s.mu.Lock()
	if s.running {
		runID := s.runID
		s.mu.Unlock()
		return "", errors.Newf(errors.ErrRunInProgress, "run_id=%s", runID)
	}
	s.running = true
	s.aborted = false
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.startedCh = make(chan string, 1)
	startedCh := s.startedCh
	s.mu.Unlock()

	go func() {
		defer func() {
			orch.Close()
			s.mu.Lock()
			s.running = false
			s.cancel = nil
			s.mu.Unlock()
			cancel()
		}()

		if _, err := orch.Run(ctx); err != nil {
			s.logger.Error("测试运行失败", zap.Error(err))
		}
	}()

	select {
	case runID := <-startedCh:
		return runID, nil
	case <-time.After(5 * time.Second):
		return "", errors.New(errors.ErrUnknown, "运行未能启动")
	}
}

// Abort 中止当前运行
func (s *RunService) Abort() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running || s.cancel == nil {
		return errors.New(errors.ErrRunNotFound, "没有进行中的运行")
	}

	s.aborted = true
	s.cancel()
	s.logger.Info("运行已请求中止", zap.String("run_id", s.runID))
	return nil
}

// RunStarted 实现harness.Reporter
func (s *RunService) RunStarted(runID string, device, host board.Info) {
	s.mu.Lock()
	s.runID = runID
	startedCh := s.startedCh
	s.mu.Unlock()

	if s.consoleLogs != nil {
		s.consoleLogs.SetRunID(runID)
	}

	run := &models.TestRun{
		RunID:      runID,
		Status:     models.RunStatusRunning,
		DeviceChip: device.Chip,
		DevicePort: device.Port,
		HostChip:   host.Chip,
		HostPort:   host.Port,
		StartedAt:  time.Now(),
	}
	if err := s.runRepo.Create(run); err != nil {
		s.logger.Error("创建运行记录失败", zap.String("run_id", runID), zap.Error(err))
	}

	for _, info := range []board.Info{device, host} {
		if err := s.boardRepo.Upsert(&models.BoardInfo{
			Role:      info.Role,
			Chip:      info.Chip,
			Port:      info.Port,
			Connected: true,
		}); err != nil {
			s.logger.Error("登记目标板失败", zap.String("role", info.Role), zap.Error(err))
		}
	}

	s.broadcast("run_started", map[string]interface{}{
		"run_id": runID,
		"device": device,
		"host":   host,
	})

	if startedCh != nil {
		select {
		case startedCh <- runID:
		default:
		}
	}
}

// PhaseStarted 实现harness.Reporter
func (s *RunService) PhaseStarted(runID string, phase string) {
	s.broadcast("phase_started", map[string]interface{}{
		"run_id": runID,
		"phase":  phase,
	})
}

// CaseFinished 实现harness.Reporter
func (s *RunService) CaseFinished(runID string, phase string, group string, result runner.CaseResult) {
	record := &models.CaseResult{
		RunID:      runID,
		Phase:      phase,
		GroupName:  group,
		CaseIndex:  result.Case.Index,
		CaseName:   result.Case.Name,
		Status:     string(result.Status),
		Failures:   result.Failures,
		DurationMs: result.Duration.Milliseconds(),
		Detail:     result.Detail,
	}
	if err := s.caseRepo.Create(record); err != nil {
		s.logger.Error("写入用例结果失败", zap.String("run_id", runID), zap.Error(err))
	}

	s.broadcast("case_result", map[string]interface{}{
		"run_id":   runID,
		"phase":    phase,
		"group":    group,
		"case":     result.Case.Name,
		"status":   result.Status,
		"duration": result.Duration.Milliseconds(),
	})
}

// PhaseFinished 实现harness.Reporter
func (s *RunService) PhaseFinished(runID string, report *harness.PhaseReport) {
	s.broadcast("phase_finished", map[string]interface{}{
		"run_id":  runID,
		"phase":   report.Name,
		"group":   report.Group,
		"passed":  report.Passed,
		"failed":  report.Failed,
		"timeout": report.Timeout,
		"skipped": report.Skipped,
		"error":   report.Error,
	})
}

// RunFinished 实现harness.Reporter
func (s *RunService) RunFinished(report *harness.RunReport) {
	s.mu.Lock()
	aborted := s.aborted
	s.mu.Unlock()

	status := models.RunStatusFailed
	if report.Success {
		status = models.RunStatusPassed
	}
	if aborted {
		status = models.RunStatusAborted
	}

	summary := models.JSONData{}
	var total, passed, failed, timeout, skipped int
	var errorMsg string
	for _, phase := range report.Phases {
		total += len(phase.Results)
		passed += phase.Passed
		failed += phase.Failed
		timeout += phase.Timeout
		skipped += phase.Skipped
		if phase.Error != "" {
			errorMsg = phase.Error
		}
		summary[phase.Name] = map[string]interface{}{
			"group":   phase.Group,
			"passed":  phase.Passed,
			"failed":  phase.Failed,
			"timeout": phase.Timeout,
			"skipped": phase.Skipped,
			"error":   phase.Error,
		}
	}

	run, err := s.runRepo.GetByRunID(report.RunID)
	if err != nil {
		s.logger.Error("查询运行记录失败", zap.String("run_id", report.RunID), zap.Error(err))
	} else {
		now := time.Now()
		run.Status = status
		run.FinishedAt = &now
		run.DurationMs = report.FinishedAt.Sub(report.StartedAt).Milliseconds()
		run.TotalCases = total
		run.Passed = passed
		run.Failed = failed
		run.Timeout = timeout
		run.Skipped = skipped
		run.PhaseSummary = summary
		run.ErrorMsg = errorMsg
		if err := s.runRepo.Update(run); err != nil {
			s.logger.Error("更新运行记录失败", zap.String("run_id", report.RunID), zap.Error(err))
		}
	}

	if s.consoleLogs != nil {
		s.consoleLogs.SetRunID("")
	}

	s.broadcast("run_finished", map[string]interface{}{
		"run_id":  report.RunID,
		"status":  status,
		"passed":  passed,
		"failed":  failed,
		"timeout": timeout,
		"skipped": skipped,
	})
}

// broadcast 推送事件（无集线器时忽略）
func (s *RunService) broadcast(event string, data interface{}) {
	if s.broadcaster != nil {
		s.broadcaster.Broadcast(event, data)
	}
}

// History 查询运行历史
func (s *RunService) History(query *models.TestRunQuery) ([]*models.TestRun, int64, error) {
	return s.runRepo.Query(query)
}

// Detail 查询一次运行的详情（运行记录+用例结果）
func (s *RunService) Detail(runID string) (*models.TestRun, []*models.CaseResult, error) {
	run, err := s.runRepo.GetByRunID(runID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil, errors.Newf(errors.ErrRunNotFound, "run_id=%s", runID)
		}
		return nil, nil, errors.Wrap(err, errors.ErrDatabaseQuery)
	}

	cases, err := s.caseRepo.GetByRunID(runID)
	if err != nil {
		return nil, nil, errors.Wrap(err, errors.ErrDatabaseQuery)
	}

	return run, cases, nil
}

// Latest 最近一次运行
func (s *RunService) Latest() (*models.TestRun, error) {
	run, err := s.runRepo.GetLatest()
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.New(errors.ErrRunNotFound, "还没有运行记录")
		}
		return nil, errors.Wrap(err, errors.ErrDatabaseQuery)
	}
	return run, nil
}

// Stats 运行统计
func (s *RunService) Stats(startTime, endTime *time.Time) (*models.TestRunStats, error) {
	return s.runRepo.GetStats(startTime, endTime)
}

// Boards 登记的目标板列表
func (s *RunService) Boards() ([]*models.BoardInfo, error) {
	return s.boardRepo.List()
}
