package runner

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/wfunc/usb-bench/internal/board"
	"github.com/wfunc/usb-bench/internal/errors"
	"github.com/wfunc/usb-bench/internal/logger"
	"go.uber.org/zap"
)

// Status 用例执行状态
type Status string

const (
	StatusPass    Status = "pass"
	StatusFail    Status = "fail"
	StatusTimeout Status = "timeout"
	StatusSkipped Status = "skipped"
)

// unity测试结束的统计行与判定行:
//   1 Tests 0 Failures 0 Ignored
//   OK
var summaryRe = regexp.MustCompile(`(\d+) Tests (\d+) Failures (\d+) Ignored`)

// CaseResult 单个用例的执行结果
type CaseResult struct {
	Case     Case          `json:"case"`
	Status   Status        `json:"status"`
	Duration time.Duration `json:"duration"`
	Failures int           `json:"failures"`
	Detail   string        `json:"detail,omitempty"`
}

// CaseHook 用例结束回调（上报进度用）
type CaseHook func(result CaseResult)

// Runner 在单块目标板上按测试组驱动固件用例
type Runner struct {
	board       board.Board
	caseTimeout time.Duration
	logger      *zap.Logger
}

// New 创建用例执行器
func New(b board.Board, caseTimeout time.Duration) *Runner {
	if caseTimeout <= 0 {
		caseTimeout = 60 * time.Second
	}
	return &Runner{
		board:       b,
		caseTimeout: caseTimeout,
		logger:      logger.GetModuleLogger("runner"),
	}
}

// Collect 按ENTER并解析固件输出的测试菜单
func (r *Runner) Collect(ctx context.Context) ([]Case, error) {
	ch, cancel := r.board.Subscribe(256)
	defer cancel()

	if err := r.board.WriteLine(""); err != nil {
		return nil, err
	}

	var cases []Case
	for {
		select {
		case line := <-ch:
			if strings.Contains(line, MenuTerminator) {
				if len(cases) == 0 {
					return nil, errors.New(errors.ErrMenuParse, "菜单为空")
				}
				r.logger.Info("测试菜单解析完成",
					zap.String("board", r.board.Info().Role),
					zap.Int("cases", len(cases)))
				return cases, nil
			}
			if c := parseMenuLine(line); c != nil {
				cases = append(cases, *c)
			}
		case <-ctx.Done():
			return nil, errors.Newf(errors.ErrMenuParse, "菜单未读完: %v", ctx.Err())
		}
	}
}

// RunGroup 逐个执行group内的用例
//
// 用例失败不会中断后续用例；multi_device用例需要多板协同，
// 单板流程里直接记为skipped。只有整次运行被取消才提前返回。
func (r *Runner) RunGroup(ctx context.Context, runID string, group string, cases []Case, hook CaseHook) ([]CaseResult, error) {
	selected := FilterGroup(cases, group)
	if len(selected) == 0 {
		return nil, errors.Newf(errors.ErrNoCasesInGroup, "group=%s", group)
	}

	results := make([]CaseResult, 0, len(selected))
	for _, c := range selected {
		select {
		case <-ctx.Done():
			return results, errors.Newf(errors.ErrRunAborted, "group=%s: %v", group, ctx.Err())
		default:
		}

		var result CaseResult
		if c.MultiDevice {
			result = CaseResult{
				Case:   c,
				Status: StatusSkipped,
				Detail: "multi_device用例需要多板协同",
			}
		} else {
			result = r.runCase(ctx, c)
		}

		logger.LogCaseResult(runID, group, c.Name, string(result.Status), result.Duration)
		if hook != nil {
			hook(result)
		}
		results = append(results, result)
	}

	return results, nil
}

// runCase 写入用例编号并等待unity判定
func (r *Runner) runCase(ctx context.Context, c Case) CaseResult {
	caseCtx, cancel := context.WithTimeout(ctx, r.caseTimeout)
	defer cancel()

	ch, unsubscribe := r.board.Subscribe(256)
	defer unsubscribe()

	start := time.Now()
	result := CaseResult{Case: c}

	if err := r.board.WriteLine(strconv.Itoa(c.Index)); err != nil {
		result.Status = StatusFail
		result.Detail = err.Error()
		result.Duration = time.Since(start)
		return result
	}

	summarySeen := false
	for {
		select {
		case line := <-ch:
			if m := summaryRe.FindStringSubmatch(line); m != nil {
				result.Failures, _ = strconv.Atoi(m[2])
				summarySeen = true
				continue
			}
			if !summarySeen {
				continue
			}
			switch strings.TrimSpace(line) {
			case "OK":
				if result.Failures > 0 {
					result.Status = StatusFail
				} else {
					result.Status = StatusPass
				}
				result.Duration = time.Since(start)
				return result
			case "FAIL":
				result.Status = StatusFail
				result.Duration = time.Since(start)
				return result
			}
		case <-caseCtx.Done():
			result.Status = StatusTimeout
			result.Detail = "等待用例判定超时"
			result.Duration = time.Since(start)
			return result
		}
	}
}

// CountByStatus 统计指定状态的用例数
func CountByStatus(results []CaseResult, status Status) int {
	n := 0
	for _, res := range results {
		if res.Status == status {
			n++
		}
	}
	return n
}
