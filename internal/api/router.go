package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/wfunc/usb-bench/internal/config"
	"github.com/wfunc/usb-bench/internal/database"
	"github.com/wfunc/usb-bench/internal/middleware"
	"github.com/wfunc/usb-bench/internal/service"
	"github.com/wfunc/usb-bench/internal/websocket"
	"go.uber.org/zap"
)

// Router API路由器
type Router struct {
	engine         *gin.Engine
	cfg            *config.Config
	runHandler     *RunHandler
	boardHandler   *BoardHandler
	authHandler    *AuthHandler
	wsHandler      *WebSocketHandler
	authMiddleware *middleware.AuthMiddleware
	log            *zap.Logger
}

// NewRouter 创建路由器
func NewRouter(
	cfg *config.Config,
	runService *service.RunService,
	consoleLogs *service.ConsoleLogService,
	authService *service.AuthService,
	hub *websocket.Hub,
	factory OrchestratorFactory,
	log *zap.Logger,
) *Router {
	if cfg.Server.Mode == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()

	// 全局中间件
	engine.Use(gin.Recovery())
	engine.Use(gin.Logger())

	router := &Router{
		engine:         engine,
		cfg:            cfg,
		runHandler:     NewRunHandler(runService, consoleLogs, factory),
		boardHandler:   NewBoardHandler(runService),
		authHandler:    NewAuthHandler(authService),
		wsHandler:      NewWebSocketHandler(hub, &cfg.WebSocket),
		authMiddleware: middleware.NewAuthMiddleware(authService),
		log:            log,
	}

	router.setupRoutes()

	return router
}

// Engine 获取Gin引擎
func (r *Router) Engine() *gin.Engine {
	return r.engine
}

// setupRoutes 设置路由
func (r *Router) setupRoutes() {
	// 健康检查
	r.engine.GET("/health", r.healthCheck)

	// API v1路由组
	v1 := r.engine.Group("/api/v1")
	{
		// 认证相关路由（不需要认证）
		auth := v1.Group("/auth")
		{
			auth.POST("/login", r.authHandler.Login)
		}

		// 运行记录查询（只读，不需要认证）
		runs := v1.Group("/runs")
		{
			runs.GET("", r.runHandler.List)
			runs.GET("/latest", r.runHandler.Latest)
			runs.GET("/stats", r.runHandler.Stats)
			runs.GET("/status", r.runHandler.Status)
			runs.GET("/:id", r.runHandler.Detail)
			runs.GET("/:id/logs", r.runHandler.Logs)
		}

		// 运行控制（需要认证）
		control := v1.Group("/runs")
		control.Use(r.authMiddleware.RequireAuth())
		{
			control.POST("", r.runHandler.Trigger)
			control.DELETE("/current", r.runHandler.Abort)
		}

		// 目标板
		boards := v1.Group("/boards")
		{
			boards.GET("", r.boardHandler.List)
		}
	}

	// WebSocket实时推送
	if r.cfg.WebSocket.Enabled {
		r.engine.GET(r.cfg.WebSocket.Path, r.wsHandler.Serve)
	}

	// Swagger文档（-tags swagger时启用）
	registerSwaggerRoutes(r.engine)
}

// healthCheck 健康检查
func (r *Router) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"database":  database.IsConnected(),
		"timestamp": time.Now().Unix(),
	})
}
