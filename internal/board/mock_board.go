package board

import (
	"context"
	"sync"
)

// MockBoard 模拟目标板（用于无硬件环境的开发与测试）
type MockBoard struct {
	role string
	chip string
	port string

	mu        sync.Mutex
	connected bool
	bootLines []string
	script    map[string][]string
	written   []string
	resets    int

	console *lineConsole
}

// NewMockBoard 创建模拟目标板
func NewMockBoard(role, chip string, sink LineSink) *MockBoard {
	return &MockBoard{
		role:    role,
		chip:    chip,
		port:    "/dev/mock-" + role,
		script:  make(map[string][]string),
		console: newLineConsole(role, sink),
	}
}

// SetBootLines 设置连接/复位后输出的启动行
func (m *MockBoard) SetBootLines(lines ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bootLines = append([]string(nil), lines...)
}

// Script 注册命令脚本：收到cmd后输出lines
func (m *MockBoard) Script(cmd string, lines ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script[cmd] = append([]string(nil), lines...)
}

// FeedLine 从外部注入一条控制台行
func (m *MockBoard) FeedLine(line string) {
	m.console.push(line)
}

// WrittenLines 返回已写入的命令行（按顺序）
func (m *MockBoard) WrittenLines() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.written...)
}

// ResetCount 返回硬件复位次数
func (m *MockBoard) ResetCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.resets
}

// Connect 模拟连接
func (m *MockBoard) Connect() error {
	m.mu.Lock()
	m.connected = true
	boot := append([]string(nil), m.bootLines...)
	m.mu.Unlock()

	for _, line := range boot {
		m.console.push(line)
	}
	return nil
}

// Close 模拟断开
func (m *MockBoard) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = false
	return nil
}

// IsConnected 检查连接状态
func (m *MockBoard) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// WriteLine 记录命令并回放脚本输出
func (m *MockBoard) WriteLine(cmd string) error {
	m.mu.Lock()
	m.written = append(m.written, cmd)
	lines := append([]string(nil), m.script[cmd]...)
	m.mu.Unlock()

	m.console.recordSend(cmd)
	for _, line := range lines {
		m.console.push(line)
	}
	return nil
}

// Expect 等待包含text的控制台行
func (m *MockBoard) Expect(ctx context.Context, text string) (string, error) {
	return m.console.expect(ctx, text)
}

// Subscribe 订阅后续控制台行
func (m *MockBoard) Subscribe(buf int) (<-chan string, func()) {
	return m.console.subscribe(buf)
}

// HardReset 模拟复位：清空积压并重放启动行
func (m *MockBoard) HardReset() error {
	m.mu.Lock()
	m.resets++
	boot := append([]string(nil), m.bootLines...)
	m.mu.Unlock()

	m.console.discard()
	for _, line := range boot {
		m.console.push(line)
	}
	return nil
}

// Info 单板信息
func (m *MockBoard) Info() Info {
	return Info{
		Role: m.role,
		Chip: m.chip,
		Port: m.port,
	}
}
