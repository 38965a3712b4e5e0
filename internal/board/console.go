package board

import (
	"context"
	"regexp"
	"strings"
	"sync"

	"github.com/wfunc/usb-bench/internal/errors"
	"github.com/wfunc/usb-bench/internal/logger"
	"go.uber.org/zap"
)

// ANSI颜色控制序列（固件日志带色彩输出）
var ansiRe = regexp.MustCompile(`\x1b\[[0-9;]*[A-Za-z]`)

// StripANSI 去除行内的ANSI控制序列
func StripANSI(line string) string {
	return ansiRe.ReplaceAllString(line, "")
}

// waiter 等待特定输出的挂起Expect调用
type waiter struct {
	text string
	ch   chan string
}

// lineConsole 控制台行分发器
//
// 串口读取协程把完整行push进来；Expect按到达顺序消费积压行，
// 未消费的行保留在backlog中供下一次Expect匹配（与pytest-embedded
// 的expect缓冲语义一致）。订阅者只收到订阅之后的行。
type lineConsole struct {
	name string

	mu       sync.Mutex
	backlog  []string
	consumed int
	waiters  []*waiter
	subs     map[int]chan string
	nextSub  int

	sink   LineSink
	logger *zap.Logger
}

func newLineConsole(name string, sink LineSink) *lineConsole {
	return &lineConsole{
		name:   name,
		subs:   make(map[int]chan string),
		sink:   sink,
		logger: logger.GetModuleLogger("console"),
	}
}

// push 分发一条完整的控制台行
func (c *lineConsole) push(raw string) {
	line := StripANSI(strings.TrimRight(raw, "\r"))

	logger.LogConsoleLine(c.name, DirectionReceive, line)
	if c.sink != nil {
		c.sink(c.name, DirectionReceive, line)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// 先尝试满足挂起的Expect
	for i, w := range c.waiters {
		if strings.Contains(line, w.text) {
			c.waiters = append(c.waiters[:i], c.waiters[i+1:]...)
			c.backlog = c.backlog[:0]
			c.consumed = 0
			w.ch <- line
			c.notifySubs(line)
			return
		}
	}

	c.backlog = append(c.backlog, line)
	c.notifySubs(line)
}

// notifySubs 非阻塞地通知订阅者（慢订阅者丢行）
func (c *lineConsole) notifySubs(line string) {
	for _, ch := range c.subs {
		select {
		case ch <- line:
		default:
		}
	}
}

// recordSend 记录发送的命令行
func (c *lineConsole) recordSend(cmd string) {
	logger.LogConsoleLine(c.name, DirectionSend, cmd)
	if c.sink != nil {
		c.sink(c.name, DirectionSend, cmd)
	}
}

// expect 等待包含text的行
func (c *lineConsole) expect(ctx context.Context, text string) (string, error) {
	c.mu.Lock()

	// 先扫描未消费的积压行
	for i := c.consumed; i < len(c.backlog); i++ {
		if strings.Contains(c.backlog[i], text) {
			c.consumed = i + 1
			line := c.backlog[i]
			c.mu.Unlock()
			return line, nil
		}
	}
	// 积压全部扫描过，等待新行
	c.consumed = len(c.backlog)

	w := &waiter{text: text, ch: make(chan string, 1)}
	c.waiters = append(c.waiters, w)
	c.mu.Unlock()

	select {
	case line := <-w.ch:
		return line, nil
	case <-ctx.Done():
		c.removeWaiter(w)
		return "", errors.Newf(errors.ErrExpectTimeout, "board=%s text=%q: %v", c.name, text, ctx.Err())
	}
}

func (c *lineConsole) removeWaiter(w *waiter) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, cur := range c.waiters {
		if cur == w {
			c.waiters = append(c.waiters[:i], c.waiters[i+1:]...)
			return
		}
	}
}

// subscribe 订阅后续控制台行
func (c *lineConsole) subscribe(buf int) (<-chan string, func()) {
	if buf <= 0 {
		buf = 64
	}
	ch := make(chan string, buf)

	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = ch
	c.mu.Unlock()

	cancel := func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if _, ok := c.subs[id]; ok {
			delete(c.subs, id)
			close(ch)
		}
	}
	return ch, cancel
}

// discard 清空积压（复位后旧输出不再有效）
func (c *lineConsole) discard() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.backlog = c.backlog[:0]
	c.consumed = 0
}
