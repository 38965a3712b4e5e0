package service

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/wfunc/usb-bench/internal/logger"
	"github.com/wfunc/usb-bench/internal/models"
	"github.com/wfunc/usb-bench/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ConsoleLogService 控制台日志服务
//
// 串口行量大，逐条落库会拖慢读取循环，这里走缓冲+定时批量写入。
type ConsoleLogService struct {
	repo     *repository.ConsoleLogRepository
	logger   *zap.Logger
	mu       sync.Mutex
	buffer   []*models.ConsoleLog
	bufferCh chan *models.ConsoleLog
	stopCh   chan struct{}

	runMu sync.RWMutex
	runID string
}

// NewConsoleLogService 创建控制台日志服务
func NewConsoleLogService(db *gorm.DB) *ConsoleLogService {
	service := &ConsoleLogService{
		repo:     repository.NewConsoleLogRepository(db),
		logger:   logger.GetLogger(),
		buffer:   make([]*models.ConsoleLog, 0, 100),
		bufferCh: make(chan *models.ConsoleLog, 1000),
		stopCh:   make(chan struct{}),
	}

	// 启动后台写入协程
	go service.backgroundWriter()

	return service
}

// SetRunID 设置当前运行ID（后续日志归属该运行）
func (s *ConsoleLogService) SetRunID(runID string) {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	s.runID = runID
}

// currentRunID 获取当前运行ID
func (s *ConsoleLogService) currentRunID() string {
	s.runMu.RLock()
	defer s.runMu.RUnlock()
	return s.runID
}

// Record 记录一条控制台行（board.LineSink签名）
func (s *ConsoleLogService) Record(board string, direction string, line string) {
	log := &models.ConsoleLog{
		RunID:     s.currentRunID(),
		Board:     board,
		Direction: direction,
		Line:      line,
		CreatedAt: time.Now(),
		Timestamp: time.Now().UnixMilli(),
	}

	// 异步写入
	select {
	case s.bufferCh <- log:
	default:
		s.logger.Warn("控制台日志缓冲区满，丢弃日志")
	}
}

// backgroundWriter 后台写入协程
func (s *ConsoleLogService) backgroundWriter() {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case log := <-s.bufferCh:
			s.mu.Lock()
			s.buffer = append(s.buffer, log)
			// 缓冲区满立即写入
			if len(s.buffer) >= 100 {
				s.flushBuffer()
			}
			s.mu.Unlock()

		case <-ticker.C:
			s.mu.Lock()
			s.flushBuffer()
			s.mu.Unlock()

		case <-s.stopCh:
			// 退出前写入剩余的日志
			s.mu.Lock()
			for {
				select {
				case log := <-s.bufferCh:
					s.buffer = append(s.buffer, log)
					continue
				default:
				}
				break
			}
			s.flushBuffer()
			s.mu.Unlock()
			return
		}
	}
}

// flushBuffer 写入缓冲区的日志到数据库
func (s *ConsoleLogService) flushBuffer() {
	if len(s.buffer) == 0 {
		return
	}

	if err := s.repo.CreateBatch(s.buffer); err != nil {
		s.logger.Error("批量写入控制台日志失败", zap.Error(err))
	} else {
		s.logger.Debug("批量写入控制台日志成功", zap.Int("count", len(s.buffer)))
	}

	s.buffer = s.buffer[:0]
}

// Query 查询控制台日志
func (s *ConsoleLogService) Query(query *models.ConsoleLogQuery) ([]*models.ConsoleLog, int64, error) {
	return s.repo.Query(query)
}

// GetByRunID 获取一次运行的控制台日志
func (s *ConsoleLogService) GetByRunID(runID string, limit int) ([]*models.ConsoleLog, error) {
	return s.repo.GetByRunID(runID, limit)
}

// ExportLogs 导出日志为JSON格式
func (s *ConsoleLogService) ExportLogs(query *models.ConsoleLogQuery) ([]byte, error) {
	logs, _, err := s.Query(query)
	if err != nil {
		return nil, err
	}
	return json.MarshalIndent(logs, "", "  ")
}

// CleanupOldLogs 清理旧日志
func (s *ConsoleLogService) CleanupOldLogs(retentionDays int) (int64, error) {
	return s.repo.DeleteOlderThan(time.Now().AddDate(0, 0, -retentionDays))
}

// Close 关闭服务
func (s *ConsoleLogService) Close() {
	close(s.stopCh)
	// 等待后台协程完成最后一次写入
	time.Sleep(100 * time.Millisecond)
}
