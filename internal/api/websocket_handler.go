package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	gorillaws "github.com/gorilla/websocket"
	"github.com/wfunc/usb-bench/internal/config"
	"github.com/wfunc/usb-bench/internal/logger"
	"github.com/wfunc/usb-bench/internal/middleware"
	"github.com/wfunc/usb-bench/internal/websocket"
	"go.uber.org/zap"
)

// WebSocketHandler WebSocket接入
type WebSocketHandler struct {
	hub      *websocket.Hub
	upgrader gorillaws.Upgrader
}

// NewWebSocketHandler 创建WebSocket接入
func NewWebSocketHandler(hub *websocket.Hub, cfg *config.WebSocketConfig) *WebSocketHandler {
	return &WebSocketHandler{
		hub: hub,
		upgrader: gorillaws.Upgrader{
			ReadBufferSize:  cfg.ReadBufferSize,
			WriteBufferSize: cfg.WriteBufferSize,
			// 测试台在内网运行，不做来源检查
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// Serve 升级连接并启动读写泵
func (h *WebSocketHandler) Serve(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.GetModuleLogger("websocket").Error("WebSocket升级失败", zap.Error(err))
		return
	}

	operator, _ := middleware.GetUsername(c)
	client := websocket.NewClient(h.hub, conn, operator)
	h.hub.Register(client)

	go client.WritePump()
	go client.ReadPump()
}
