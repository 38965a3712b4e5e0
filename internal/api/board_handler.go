package api

import (
	"github.com/gin-gonic/gin"
	"github.com/wfunc/usb-bench/internal/errors"
	"github.com/wfunc/usb-bench/internal/service"
)

// BoardHandler 目标板接口
type BoardHandler struct {
	runService *service.RunService
}

// NewBoardHandler 创建目标板接口
func NewBoardHandler(runService *service.RunService) *BoardHandler {
	return &BoardHandler{
		runService: runService,
	}
}

// List 登记的目标板列表
func (h *BoardHandler) List(c *gin.Context) {
	boards, err := h.runService.Boards()
	if err != nil {
		respondError(c, errors.Wrap(err, errors.ErrDatabaseQuery))
		return
	}
	respondOK(c, boards)
}
