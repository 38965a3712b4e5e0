package runner

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/wfunc/usb-bench/internal/board"
	"github.com/wfunc/usb-bench/internal/errors"
)

// MenuTestSuite 菜单解析测试套件
type MenuTestSuite struct {
	suite.Suite
}

// 测试菜单行解析
func (suite *MenuTestSuite) TestParseMenuLine() {
	c := parseMenuLine(`(1)	"usb device cdc" [cdc_acm][usb_device]`)
	suite.NotNil(c)
	suite.Equal(1, c.Index)
	suite.Equal("usb device cdc", c.Name)
	suite.Equal([]string{"cdc_acm", "usb_device"}, c.Groups)
	suite.False(c.MultiDevice)

	c = parseMenuLine(`(12)	"usb host msc mount" [usb_msc][multi_device]`)
	suite.NotNil(c)
	suite.Equal(12, c.Index)
	suite.True(c.MultiDevice)
	suite.True(c.InGroup("usb_msc"))
	suite.False(c.InGroup("cdc_acm"))
}

// 测试非菜单行返回nil
func (suite *MenuTestSuite) TestParseNonMenuLine() {
	suite.Nil(parseMenuLine("I (123) main: booting"))
	suite.Nil(parseMenuLine("Press ENTER to see the list of tests."))
	suite.Nil(parseMenuLine(MenuTerminator))
	suite.Nil(parseMenuLine(""))
}

// 测试按组过滤
func (suite *MenuTestSuite) TestFilterGroup() {
	cases := []Case{
		{Index: 1, Name: "a", Groups: []string{"cdc_acm"}},
		{Index: 2, Name: "b", Groups: []string{"usb_msc"}},
		{Index: 3, Name: "c", Groups: []string{"cdc_acm", "usb_msc"}},
	}

	cdc := FilterGroup(cases, "cdc_acm")
	suite.Len(cdc, 2)
	suite.Equal(1, cdc[0].Index)
	suite.Equal(3, cdc[1].Index)

	suite.Empty(FilterGroup(cases, "unknown"))
}

// RunnerTestSuite 用例执行器测试套件
type RunnerTestSuite struct {
	suite.Suite
	mock   *board.MockBoard
	runner *Runner
}

func (suite *RunnerTestSuite) SetupTest() {
	suite.mock = board.NewMockBoard("host", "esp32s3", nil)
	suite.NoError(suite.mock.Connect())
	suite.runner = New(suite.mock, 2*time.Second)
}

// 测试菜单收集
func (suite *RunnerTestSuite) TestCollect() {
	suite.mock.Script("",
		`(1)	"cdc read" [cdc_acm]`,
		`(2)	"msc write" [usb_msc]`,
		`(3)	"msc dual board" [usb_msc][multi_device]`,
		MenuTerminator,
	)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	cases, err := suite.runner.Collect(ctx)
	suite.NoError(err)
	suite.Len(cases, 3)
	suite.Equal("cdc read", cases[0].Name)
	suite.True(cases[2].MultiDevice)
}

// 测试空菜单报错
func (suite *RunnerTestSuite) TestCollectEmptyMenu() {
	suite.mock.Script("", MenuTerminator)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := suite.runner.Collect(ctx)
	suite.Error(err)
	suite.True(errors.Is(err, errors.ErrMenuParse))
}

// 测试菜单读取超时
func (suite *RunnerTestSuite) TestCollectTimeout() {
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := suite.runner.Collect(ctx)
	suite.Error(err)
	suite.True(errors.Is(err, errors.ErrMenuParse))
}

// 测试组内用例逐个执行
func (suite *RunnerTestSuite) TestRunGroup() {
	suite.mock.Script("1",
		"Running cdc read...",
		"1 Tests 0 Failures 0 Ignored",
		"OK",
	)
	suite.mock.Script("2",
		"Running cdc write...",
		"test.c:42:cdc write:FAIL",
		"1 Tests 1 Failures 0 Ignored",
		"FAIL",
	)

	cases := []Case{
		{Index: 1, Name: "cdc read", Groups: []string{"cdc_acm"}},
		{Index: 2, Name: "cdc write", Groups: []string{"cdc_acm"}},
		{Index: 3, Name: "msc only", Groups: []string{"usb_msc"}},
	}

	var hooked []CaseResult
	results, err := suite.runner.RunGroup(context.Background(), "run-1", "cdc_acm", cases, func(res CaseResult) {
		hooked = append(hooked, res)
	})
	suite.NoError(err)
	suite.Len(results, 2)
	suite.Equal(StatusPass, results[0].Status)
	suite.Equal(StatusFail, results[1].Status)
	suite.Equal(1, results[1].Failures)
	suite.Len(hooked, 2)

	// 写入的是菜单编号
	suite.Equal([]string{"1", "2"}, suite.mock.WrittenLines())
}

// 测试multi_device用例被跳过
func (suite *RunnerTestSuite) TestRunGroupSkipsMultiDevice() {
	suite.mock.Script("1",
		"1 Tests 0 Failures 0 Ignored",
		"OK",
	)

	cases := []Case{
		{Index: 1, Name: "single", Groups: []string{"usb_msc"}},
		{Index: 2, Name: "dual", Groups: []string{"usb_msc"}, MultiDevice: true},
	}

	results, err := suite.runner.RunGroup(context.Background(), "run-1", "usb_msc", cases, nil)
	suite.NoError(err)
	suite.Len(results, 2)
	suite.Equal(StatusPass, results[0].Status)
	suite.Equal(StatusSkipped, results[1].Status)

	// 跳过的用例不会写入编号
	suite.Equal([]string{"1"}, suite.mock.WrittenLines())
}

// 测试组内无用例
func (suite *RunnerTestSuite) TestRunGroupEmpty() {
	cases := []Case{
		{Index: 1, Name: "cdc", Groups: []string{"cdc_acm"}},
	}

	_, err := suite.runner.RunGroup(context.Background(), "run-1", "usb_msc", cases, nil)
	suite.Error(err)
	suite.True(errors.Is(err, errors.ErrNoCasesInGroup))
}

// 测试用例超时
func (suite *RunnerTestSuite) TestRunCaseTimeout() {
	// 没有注册脚本，用例永远不输出判定
	suite.runner = New(suite.mock, 100*time.Millisecond)

	cases := []Case{
		{Index: 1, Name: "hang", Groups: []string{"cdc_acm"}},
	}

	results, err := suite.runner.RunGroup(context.Background(), "run-1", "cdc_acm", cases, nil)
	suite.NoError(err)
	suite.Len(results, 1)
	suite.Equal(StatusTimeout, results[0].Status)
}

// 测试运行被取消
func (suite *RunnerTestSuite) TestRunGroupAborted() {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cases := []Case{
		{Index: 1, Name: "cdc", Groups: []string{"cdc_acm"}},
	}

	results, err := suite.runner.RunGroup(ctx, "run-1", "cdc_acm", cases, nil)
	suite.Error(err)
	suite.True(errors.Is(err, errors.ErrRunAborted))
	suite.Empty(results)
}

// 测试状态统计
func (suite *RunnerTestSuite) TestCountByStatus() {
	results := []CaseResult{
		{Status: StatusPass},
		{Status: StatusFail},
		{Status: StatusPass},
		{Status: StatusSkipped},
	}
	suite.Equal(2, CountByStatus(results, StatusPass))
	suite.Equal(1, CountByStatus(results, StatusFail))
	suite.Equal(0, CountByStatus(results, StatusTimeout))
}

func TestMenuSuite(t *testing.T) {
	suite.Run(t, new(MenuTestSuite))
}

func TestRunnerSuite(t *testing.T) {
	suite.Run(t, new(RunnerTestSuite))
}
