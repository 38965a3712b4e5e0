package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/wfunc/usb-bench/internal/api"
	"github.com/wfunc/usb-bench/internal/board"
	"github.com/wfunc/usb-bench/internal/config"
	"github.com/wfunc/usb-bench/internal/database"
	"github.com/wfunc/usb-bench/internal/harness"
	"github.com/wfunc/usb-bench/internal/logger"
	"github.com/wfunc/usb-bench/internal/service"
	"github.com/wfunc/usb-bench/internal/websocket"
	"go.uber.org/zap"
)

// 版本信息（构建时通过ldflags注入）
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	var (
		configPath  = flag.String("config", "", "配置文件路径")
		serve       = flag.Bool("serve", false, "启动HTTP服务模式（默认执行一次测试后退出）")
		showVersion = flag.Bool("version", false, "显示版本信息")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("usb-bench %s (built %s)\n", Version, BuildTime)
		return
	}

	// 初始化配置
	if err := config.Init(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "配置初始化失败: %v\n", err)
		os.Exit(1)
	}
	cfg := config.Get()

	// 初始化日志
	if err := logger.Init(&cfg.Log); err != nil {
		fmt.Fprintf(os.Stderr, "日志初始化失败: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("usb-bench启动",
		zap.String("version", Version),
		zap.Bool("serve", *serve))

	// 初始化数据库
	if err := database.Init(&cfg.Database); err != nil {
		logger.Error("数据库初始化失败", zap.Error(err))
		os.Exit(1)
	}
	defer database.Close()

	// WebSocket集线器
	var hub *websocket.Hub
	if cfg.WebSocket.Enabled {
		hub = websocket.NewHub(logger.GetModuleLogger("websocket"))
		go hub.Run()
	}

	// 服务装配
	consoleLogs := service.NewConsoleLogService(database.GetDB())
	defer consoleLogs.Close()

	var broadcaster service.Broadcaster
	if hub != nil {
		broadcaster = hub
	}
	runService := service.NewRunService(database.GetDB(), consoleLogs, broadcaster)
	authService := service.NewAuthService(&cfg.Security)

	// 控制台行同时落库和推送
	sink := func(boardName, direction, line string) {
		consoleLogs.Record(boardName, direction, line)
		if hub != nil {
			hub.StreamConsole(boardName, direction, line)
		}
	}

	// 每次运行重新解析串口并组装编排器
	factory := func() (*harness.Orchestrator, error) {
		hcfg := config.Get().Harness

		devicePort, hostPort, err := board.ResolvePorts(&hcfg.Device, &hcfg.Host)
		if err != nil {
			return nil, err
		}
		deviceCfg := hcfg.Device
		deviceCfg.Port = devicePort
		hostCfg := hcfg.Host
		hostCfg.Port = hostPort

		device := board.NewSerialBoard(&deviceCfg, sink)
		host := board.NewSerialBoard(&hostCfg, sink)

		if err := device.Connect(); err != nil {
			return nil, err
		}
		if err := host.Connect(); err != nil {
			device.Close()
			return nil, err
		}

		return harness.New(device, host, &hcfg, runService), nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *serve {
		runServer(ctx, cfg, runService, consoleLogs, authService, hub, factory)
		return
	}

	// 一次性模式：跑完两个阶段后按结果退出
	orch, err := factory()
	if err != nil {
		logger.Error("测试台组装失败", zap.Error(err))
		os.Exit(1)
	}

	report, err := orch.Run(ctx)
	orch.Close()

	if err != nil {
		logger.Error("测试运行出错", zap.Error(err))
	}
	for _, phase := range report.Phases {
		logger.Info("阶段结果",
			zap.String("phase", phase.Name),
			zap.String("group", phase.Group),
			zap.Int("passed", phase.Passed),
			zap.Int("failed", phase.Failed),
			zap.Int("timeout", phase.Timeout),
			zap.Int("skipped", phase.Skipped))
	}

	if !report.Success {
		os.Exit(1)
	}
}

// runServer HTTP服务模式
func runServer(
	ctx context.Context,
	cfg *config.Config,
	runService *service.RunService,
	consoleLogs *service.ConsoleLogService,
	authService *service.AuthService,
	hub *websocket.Hub,
	factory api.OrchestratorFactory,
) {
	router := api.NewRouter(cfg, runService, consoleLogs, authService, hub, factory, logger.GetLogger())

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// 配置热重载
	config.Watch(func(newCfg *config.Config) {
		logger.Info("测试台配置已更新")
	})

	go func() {
		logger.Info("HTTP服务启动", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP服务异常退出", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("收到退出信号，开始优雅关闭")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP服务关闭失败", zap.Error(err))
	}

	// 中止进行中的运行
	if runService.IsRunning() {
		_ = runService.Abort()
		time.Sleep(time.Second)
	}

	logger.Info("usb-bench已退出")
}
