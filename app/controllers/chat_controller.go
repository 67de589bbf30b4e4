package controllers

import (
	"encoding/json"
	"net/http"

	apperrors "github.com/izana/backend-go/internal/errors"
	"github.com/izana/backend-go/internal/logger"
	"github.com/izana/backend-go/internal/services"
	"go.uber.org/zap"
)

// ChatController 问答接口控制器
type ChatController struct {
	BaseController
}

// Chat 处理问答请求
func (c *ChatController) Chat() {
	svc := GetServices()
	if svc == nil || svc.Chat == nil {
		c.JSONAppError(apperrors.NewServiceUnavailableError("chat service"))
		return
	}

	var req services.ChatRequest
	if err := json.Unmarshal(c.Ctx.Input.RequestBody, &req); err != nil {
		c.JSONError(http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := svc.Chat.Chat(c.Ctx.Request.Context(), &req)
	if err != nil {
		logger.Warn("chat request failed",
			zap.String("lang", req.Language),
			zap.String("ip", c.getClientIP()),
			zap.Error(err))
		c.JSONAppError(err)
		return
	}

	c.JSONSuccess(resp)
}
