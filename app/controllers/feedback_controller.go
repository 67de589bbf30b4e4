package controllers

import (
	"encoding/json"
	"net/http"

	apperrors "github.com/izana/backend-go/internal/errors"
	"github.com/izana/backend-go/internal/logger"
	"github.com/izana/backend-go/internal/services"
	"go.uber.org/zap"
)

// FeedbackController 反馈接口控制器
type FeedbackController struct {
	BaseController
}

// Submit 提交回答反馈
func (c *FeedbackController) Submit() {
	svc := GetServices()
	if svc == nil || svc.Feedback == nil {
		c.JSONAppError(apperrors.NewServiceUnavailableError("feedback service"))
		return
	}

	var req services.FeedbackRequest
	if err := json.Unmarshal(c.Ctx.Input.RequestBody, &req); err != nil {
		c.JSONError(http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := svc.Feedback.Submit(c.Ctx.Request.Context(), &req)
	if err != nil {
		logger.Warn("feedback submission failed", zap.Int("rating", req.Rating), zap.Error(err))
		c.JSONAppError(err)
		return
	}

	c.JSONSuccess(resp)
}
