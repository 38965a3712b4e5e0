package api

import (
	"github.com/gin-gonic/gin"
	"github.com/wfunc/usb-bench/internal/errors"
	"github.com/wfunc/usb-bench/internal/service"
)

// AuthHandler 认证接口
type AuthHandler struct {
	authService *service.AuthService
}

// NewAuthHandler 创建认证接口
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{
		authService: authService,
	}
}

// LoginRequest 登录请求
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login 操作员登录
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, errors.Wrap(err, errors.ErrInvalidParam))
		return
	}

	token, err := h.authService.Login(req.Username, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, gin.H{
		"token":    token,
		"username": req.Username,
	})
}
