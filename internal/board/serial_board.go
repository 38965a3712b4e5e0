package board

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/tarm/serial"
	"github.com/wfunc/usb-bench/internal/config"
	"github.com/wfunc/usb-bench/internal/errors"
	"github.com/wfunc/usb-bench/internal/logger"
	"go.uber.org/zap"
)

// SerialBoard 串口目标板控制台会话
type SerialBoard struct {
	cfg       *config.BoardConfig
	port      *serial.Port
	path      string
	connected bool
	mu        sync.RWMutex

	console *lineConsole
	stopCh  chan struct{}
	wg      sync.WaitGroup
	logger  *zap.Logger
}

// NewSerialBoard 创建串口目标板
func NewSerialBoard(cfg *config.BoardConfig, sink LineSink) *SerialBoard {
	return &SerialBoard{
		cfg:     cfg,
		console: newLineConsole(cfg.Role, sink),
		logger:  logger.GetLogger(),
	}
}

// Connect 连接目标板串口
func (b *SerialBoard) Connect() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.connected {
		return nil
	}

	// 解析串口路径（auto模式扫描设备）
	path := b.cfg.Port
	if path == "auto" {
		path = FindPort(b.cfg.Pattern, "")
		if path == "" {
			return errors.Newf(errors.ErrBoardNotFound, "role=%s pattern=%s", b.cfg.Role, b.cfg.Pattern)
		}
	}

	// 解析校验位
	parity := serial.ParityNone
	switch b.cfg.Parity {
	case "O", "odd":
		parity = serial.ParityOdd
	case "E", "even":
		parity = serial.ParityEven
	}

	// 配置串口
	serialCfg := &serial.Config{
		Name:        path,
		Baud:        b.cfg.BaudRate,
		Size:        byte(b.cfg.DataBits),
		Parity:      parity,
		StopBits:    serial.StopBits(b.cfg.StopBits),
		ReadTimeout: b.cfg.ReadTimeout,
	}

	// 打开串口
	port, err := serial.OpenPort(serialCfg)
	if err != nil {
		b.logger.Error("打开串口失败",
			zap.String("role", b.cfg.Role),
			zap.String("port", path),
			zap.Error(err))
		return errors.Wrapf(err, errors.ErrSerialPortOpen, "role=%s port=%s", b.cfg.Role, path)
	}

	b.port = port
	b.path = path
	b.connected = true
	b.stopCh = make(chan struct{})

	// 启动读取循环
	b.wg.Add(1)
	go b.readLoop()

	b.logger.Info("目标板串口已连接",
		zap.String("role", b.cfg.Role),
		zap.String("chip", b.cfg.Chip),
		zap.String("port", path),
		zap.Int("baud_rate", b.cfg.BaudRate))

	return nil
}

// Close 关闭连接
func (b *SerialBoard) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.connected {
		return nil
	}

	close(b.stopCh)

	if b.port != nil {
		if err := b.port.Close(); err != nil {
			b.logger.Error("关闭串口失败",
				zap.String("role", b.cfg.Role),
				zap.Error(err))
			return err
		}
	}

	b.connected = false
	b.port = nil

	b.logger.Info("目标板串口已断开", zap.String("role", b.cfg.Role))

	return nil
}

// IsConnected 检查连接状态
func (b *SerialBoard) IsConnected() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.connected
}

// WriteLine 向控制台写入一行命令
func (b *SerialBoard) WriteLine(cmd string) error {
	b.mu.RLock()
	port := b.port
	connected := b.connected
	b.mu.RUnlock()

	if !connected || port == nil {
		return errors.New(errors.ErrSerialPortWrite, "串口未连接")
	}

	if _, err := port.Write([]byte(cmd + "\n")); err != nil {
		logger.LogSerialCommand(b.cfg.Role, cmd, false)
		return errors.Wrapf(err, errors.ErrSerialPortWrite, "role=%s cmd=%q", b.cfg.Role, cmd)
	}

	b.console.recordSend(cmd)
	logger.LogSerialCommand(b.cfg.Role, cmd, true)
	return nil
}

// Expect 阻塞等待包含text的控制台行
func (b *SerialBoard) Expect(ctx context.Context, text string) (string, error) {
	return b.console.expect(ctx, text)
}

// Subscribe 订阅后续控制台行
func (b *SerialBoard) Subscribe(buf int) (<-chan string, func()) {
	return b.console.subscribe(buf)
}

// HardReset 硬件复位（EN脚脉冲）
func (b *SerialBoard) HardReset() error {
	b.mu.RLock()
	path := b.path
	connected := b.connected
	b.mu.RUnlock()

	if !connected {
		return errors.New(errors.ErrBoardReset, "串口未连接")
	}

	b.logger.Info("硬件复位目标板",
		zap.String("role", b.cfg.Role),
		zap.String("port", path))

	if err := PulseReset(path); err != nil {
		return errors.Wrapf(err, errors.ErrBoardReset, "role=%s port=%s", b.cfg.Role, path)
	}

	// 复位后旧输出作废
	b.console.discard()
	return nil
}

// Info 单板信息
func (b *SerialBoard) Info() Info {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return Info{
		Role: b.cfg.Role,
		Chip: b.cfg.Chip,
		Port: b.path,
	}
}

// readLoop 串口读取循环：把字节流切成行交给分发器
func (b *SerialBoard) readLoop() {
	defer b.wg.Done()

	buf := make([]byte, 256)
	var pending bytes.Buffer

	for {
		select {
		case <-b.stopCh:
			return
		default:
		}

		b.mu.RLock()
		port := b.port
		b.mu.RUnlock()
		if port == nil {
			return
		}

		n, err := port.Read(buf)
		if n > 0 {
			pending.Write(buf[:n])
			// 取出所有完整行
			for {
				data := pending.Bytes()
				idx := bytes.IndexByte(data, '\n')
				if idx < 0 {
					break
				}
				line := string(data[:idx])
				pending.Next(idx + 1)
				b.console.push(line)
			}
		}

		if err != nil {
			// ReadTimeout到期表现为EOF，继续轮询
			if err == io.EOF {
				continue
			}
			select {
			case <-b.stopCh:
				return
			default:
			}
			b.logger.Error("串口读取错误",
				zap.String("role", b.cfg.Role),
				zap.String("port", b.path),
				zap.Error(err))
			if isDisconnectError(err) {
				return
			}
			time.Sleep(100 * time.Millisecond)
		}
	}
}

// isDisconnectError 判断是否是断线类错误
func isDisconnectError(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "input/output error") ||
		strings.Contains(errStr, "device not configured") ||
		strings.Contains(errStr, "broken pipe") ||
		strings.Contains(errStr, "no such file") ||
		strings.Contains(errStr, "file already closed") ||
		strings.Contains(errStr, "bad file descriptor")
}
