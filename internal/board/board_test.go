package board

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/wfunc/usb-bench/internal/config"
	"github.com/wfunc/usb-bench/internal/errors"
)

// ConsoleTestSuite 控制台分发器测试套件
type ConsoleTestSuite struct {
	suite.Suite
	console *lineConsole
}

func (suite *ConsoleTestSuite) SetupTest() {
	suite.console = newLineConsole("device", nil)
}

// 测试Expect命中积压行
func (suite *ConsoleTestSuite) TestExpectBacklog() {
	suite.console.push("I (123) main: boot")
	suite.console.push("Press ENTER to see the list of tests.")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	line, err := suite.console.expect(ctx, "Press ENTER")
	suite.NoError(err)
	suite.Equal("Press ENTER to see the list of tests.", line)
}

// 测试Expect按顺序消费积压行
func (suite *ConsoleTestSuite) TestExpectConsumesInOrder() {
	suite.console.push("first marker")
	suite.console.push("second marker")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	line, err := suite.console.expect(ctx, "marker")
	suite.NoError(err)
	suite.Equal("first marker", line)

	// 同一个词的第二次Expect必须匹配下一行而不是重复第一行
	line, err = suite.console.expect(ctx, "marker")
	suite.NoError(err)
	suite.Equal("second marker", line)
}

// 测试Expect等待后续行
func (suite *ConsoleTestSuite) TestExpectWaitsForFutureLine() {
	done := make(chan struct{})
	go func() {
		defer close(done)
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		line, err := suite.console.expect(ctx, "USB initialization DONE")
		suite.NoError(err)
		suite.Equal("USB initialization DONE", line)
	}()

	time.Sleep(50 * time.Millisecond)
	suite.console.push("I (456) usb: enumeration")
	suite.console.push("USB initialization DONE")

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		suite.Fail("Expect未返回")
	}
}

// 测试Expect超时
func (suite *ConsoleTestSuite) TestExpectTimeout() {
	suite.console.push("unrelated output")

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := suite.console.expect(ctx, "never appears")
	suite.Error(err)
	suite.True(errors.Is(err, errors.ErrExpectTimeout))
	// 超时后waiter必须被清理
	suite.console.mu.Lock()
	suite.Empty(suite.console.waiters)
	suite.console.mu.Unlock()
}

// 测试ANSI序列与回车剥离
func (suite *ConsoleTestSuite) TestStripANSIAndCR() {
	suite.console.push("\x1b[0;32mI (789) main: ready\x1b[0m\r")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	line, err := suite.console.expect(ctx, "ready")
	suite.NoError(err)
	suite.Equal("I (789) main: ready", line)
}

// 测试订阅者收到订阅之后的行
func (suite *ConsoleTestSuite) TestSubscribe() {
	suite.console.push("before subscribe")

	ch, cancel := suite.console.subscribe(8)
	defer cancel()

	suite.console.push("after subscribe")

	select {
	case line := <-ch:
		suite.Equal("after subscribe", line)
	case <-time.After(time.Second):
		suite.Fail("订阅者未收到行")
	}

	// 订阅前的行不会补发
	select {
	case line := <-ch:
		suite.Fail("收到了多余的行", line)
	default:
	}
}

// 测试discard清空积压
func (suite *ConsoleTestSuite) TestDiscard() {
	suite.console.push("stale output")
	suite.console.discard()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := suite.console.expect(ctx, "stale")
	suite.Error(err)
}

// 测试行记录回调
func (suite *ConsoleTestSuite) TestLineSink() {
	type record struct {
		board     string
		direction string
		line      string
	}
	var records []record

	console := newLineConsole("host", func(board, direction, line string) {
		records = append(records, record{board, direction, line})
	})

	console.push("output line")
	console.recordSend("input cmd")

	suite.Len(records, 2)
	suite.Equal(record{"host", DirectionReceive, "output line"}, records[0])
	suite.Equal(record{"host", DirectionSend, "input cmd"}, records[1])
}

// MockBoardTestSuite 模拟目标板测试套件
type MockBoardTestSuite struct {
	suite.Suite
	mock *MockBoard
}

func (suite *MockBoardTestSuite) SetupTest() {
	suite.mock = NewMockBoard("device", "esp32s2", nil)
}

// 测试连接时输出启动行
func (suite *MockBoardTestSuite) TestBootLines() {
	suite.mock.SetBootLines(
		"I (0) cpu_start: boot",
		"Press ENTER to see the list of tests.",
	)
	suite.NoError(suite.mock.Connect())
	suite.True(suite.mock.IsConnected())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	line, err := suite.mock.Expect(ctx, "Press ENTER")
	suite.NoError(err)
	suite.Contains(line, "list of tests")
}

// 测试命令脚本回放
func (suite *MockBoardTestSuite) TestScript() {
	suite.mock.Script("[cdc_acm_device]",
		"Running cdc_acm_device...",
		"USB initialization DONE",
	)
	suite.NoError(suite.mock.Connect())
	suite.NoError(suite.mock.WriteLine("[cdc_acm_device]"))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := suite.mock.Expect(ctx, "USB initialization DONE")
	suite.NoError(err)

	suite.Equal([]string{"[cdc_acm_device]"}, suite.mock.WrittenLines())
}

// 测试复位重放启动行并清空积压
func (suite *MockBoardTestSuite) TestHardReset() {
	suite.mock.SetBootLines("Press ENTER to see the list of tests.")
	suite.NoError(suite.mock.Connect())

	suite.mock.FeedLine("leftover before reset")
	suite.NoError(suite.mock.HardReset())
	suite.Equal(1, suite.mock.ResetCount())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	// 复位前的输出已作废，启动行重新可见
	line, err := suite.mock.Expect(ctx, "Press ENTER")
	suite.NoError(err)
	suite.Contains(line, "list of tests")

	shortCtx, shortCancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer shortCancel()
	_, err = suite.mock.Expect(shortCtx, "leftover")
	suite.Error(err)
}

// 测试单板信息
func (suite *MockBoardTestSuite) TestInfo() {
	info := suite.mock.Info()
	suite.Equal("device", info.Role)
	suite.Equal("esp32s2", info.Chip)
	suite.NotEmpty(info.Port)
}

// DiscoverTestSuite 串口解析测试套件
type DiscoverTestSuite struct {
	suite.Suite
}

// 测试显式端口直接使用
func (suite *DiscoverTestSuite) TestResolveExplicitPorts() {
	device := &config.BoardConfig{Role: "device", Port: "/dev/ttyUSB0"}
	host := &config.BoardConfig{Role: "host", Port: "/dev/ttyUSB1"}

	devicePort, hostPort, err := ResolvePorts(device, host)
	suite.NoError(err)
	suite.Equal("/dev/ttyUSB0", devicePort)
	suite.Equal("/dev/ttyUSB1", hostPort)
}

// 测试两块板配置同一串口报冲突
func (suite *DiscoverTestSuite) TestResolveConflict() {
	device := &config.BoardConfig{Role: "device", Port: "/dev/ttyUSB0"}
	host := &config.BoardConfig{Role: "host", Port: "/dev/ttyUSB0"}

	_, _, err := ResolvePorts(device, host)
	suite.Error(err)
	suite.True(errors.Is(err, errors.ErrBoardConflict))
}

// 测试auto模式找不到设备
func (suite *DiscoverTestSuite) TestResolveAutoNotFound() {
	device := &config.BoardConfig{Role: "device", Port: "auto", Pattern: "ttyNOPE"}
	host := &config.BoardConfig{Role: "host", Port: "/dev/ttyUSB1"}

	_, _, err := ResolvePorts(device, host)
	suite.Error(err)
	suite.True(errors.Is(err, errors.ErrBoardNotFound))
}

func TestConsoleSuite(t *testing.T) {
	suite.Run(t, new(ConsoleTestSuite))
}

func TestMockBoardSuite(t *testing.T) {
	suite.Run(t, new(MockBoardTestSuite))
}

func TestDiscoverSuite(t *testing.T) {
	suite.Run(t, new(DiscoverTestSuite))
}
