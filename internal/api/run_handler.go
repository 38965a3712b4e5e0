package api

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/wfunc/usb-bench/internal/errors"
	"github.com/wfunc/usb-bench/internal/harness"
	"github.com/wfunc/usb-bench/internal/models"
	"github.com/wfunc/usb-bench/internal/service"
)

// OrchestratorFactory 按当前配置和硬件组装一次运行
type OrchestratorFactory func() (*harness.Orchestrator, error)

// RunHandler 测试运行接口
type RunHandler struct {
	runService  *service.RunService
	consoleLogs *service.ConsoleLogService
	factory     OrchestratorFactory
}

// NewRunHandler 创建测试运行接口
func NewRunHandler(runService *service.RunService, consoleLogs *service.ConsoleLogService, factory OrchestratorFactory) *RunHandler {
	return &RunHandler{
		runService:  runService,
		consoleLogs: consoleLogs,
		factory:     factory,
	}
}

// List 运行历史
func (h *RunHandler) List(c *gin.Context) {
	query := &models.TestRunQuery{
		Status: models.RunStatus(c.Query("status")),
		Chip:   c.Query("chip"),
	}
	if limit, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		query.Limit = limit
	}
	if offset, err := strconv.Atoi(c.DefaultQuery("offset", "0")); err == nil {
		query.Offset = offset
	}

	runs, total, err := h.runService.History(query)
	if err != nil {
		respondError(c, errors.Wrap(err, errors.ErrDatabaseQuery))
		return
	}

	respondOK(c, gin.H{
		"runs":  runs,
		"total": total,
	})
}

// Latest 最近一次运行
func (h *RunHandler) Latest(c *gin.Context) {
	run, err := h.runService.Latest()
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, run)
}

// Stats 运行统计
func (h *RunHandler) Stats(c *gin.Context) {
	var startTime, endTime *time.Time
	if s := c.Query("start_time"); s != "" {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			startTime = &t
		}
	}
	if s := c.Query("end_time"); s != "" {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			endTime = &t
		}
	}

	stats, err := h.runService.Stats(startTime, endTime)
	if err != nil {
		respondError(c, errors.Wrap(err, errors.ErrDatabaseQuery))
		return
	}
	respondOK(c, stats)
}

// Detail 运行详情（含用例结果）
func (h *RunHandler) Detail(c *gin.Context) {
	runID := c.Param("id")

	run, cases, err := h.runService.Detail(runID)
	if err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, gin.H{
		"run":   run,
		"cases": cases,
	})
}

// Logs 运行的控制台日志
func (h *RunHandler) Logs(c *gin.Context) {
	query := &models.ConsoleLogQuery{
		RunID:     c.Param("id"),
		Board:     c.Query("board"),
		Direction: c.Query("direction"),
		Keyword:   c.Query("keyword"),
	}
	if limit, err := strconv.Atoi(c.DefaultQuery("limit", "500")); err == nil {
		query.Limit = limit
	}
	if offset, err := strconv.Atoi(c.DefaultQuery("offset", "0")); err == nil {
		query.Offset = offset
	}

	logs, total, err := h.consoleLogs.Query(query)
	if err != nil {
		respondError(c, errors.Wrap(err, errors.ErrDatabaseQuery))
		return
	}

	respondOK(c, gin.H{
		"logs":  logs,
		"total": total,
	})
}

// Trigger 触发一次运行
func (h *RunHandler) Trigger(c *gin.Context) {
	orch, err := h.factory()
	if err != nil {
		respondError(c, err)
		return
	}

	runID, err := h.runService.Trigger(orch)
	if err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, gin.H{
		"run_id": runID,
	})
}

// Abort 中止当前运行
func (h *RunHandler) Abort(c *gin.Context) {
	if err := h.runService.Abort(); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{
		"run_id": h.runService.CurrentRunID(),
	})
}

// Status 当前运行状态
func (h *RunHandler) Status(c *gin.Context) {
	respondOK(c, gin.H{
		"running": h.runService.IsRunning(),
		"run_id":  h.runService.CurrentRunID(),
	})
}
