package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/wfunc/usb-bench/internal/errors"
)

// SuccessResponse API成功响应结构
type SuccessResponse struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	RequestID string      `json:"request_id,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// respondOK 输出成功响应
func respondOK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, &SuccessResponse{
		Success:   true,
		Data:      data,
		RequestID: requestID(c),
		Timestamp: time.Now().Unix(),
	})
}

// respondError 输出错误响应（按错误码映射HTTP状态）
func respondError(c *gin.Context, err error) {
	appErr, ok := err.(*errors.AppError)
	if !ok {
		appErr = errors.Wrap(err, errors.ErrUnknown)
	}
	// 调用栈不外泄
	appErr.Stack = nil
	c.JSON(appErr.HTTPStatus(), errors.NewErrorResponse(appErr, requestID(c)))
}

// requestID 获取或生成请求ID
func requestID(c *gin.Context) string {
	if id := c.GetHeader("X-Request-ID"); id != "" {
		return id
	}
	if id, exists := c.Get("request_id"); exists {
		if s, ok := id.(string); ok {
			return s
		}
	}
	id := uuid.New().String()
	c.Set("request_id", id)
	return id
}
