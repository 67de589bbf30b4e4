package controllers

import (
	apperrors "github.com/izana/backend-go/internal/errors"
)

// AdminController 管理侧只读接口
// 认证由admin中间件在路由层处理
type AdminController struct {
	BaseController
}

// Stats 运营概览：最近的知识缺口与低分反馈
func (c *AdminController) Stats() {
	svc := GetServices()
	if svc == nil || svc.LogStore == nil {
		c.JSONAppError(apperrors.NewServiceUnavailableError("log store"))
		return
	}

	gaps, err := svc.LogStore.RecentGaps(50)
	if err != nil {
		c.JSONAppError(err)
		return
	}
	lowRatings, err := svc.LogStore.LowRatings(50)
	if err != nil {
		c.JSONAppError(err)
		return
	}

	c.JSONSuccess(map[string]interface{}{
		"recent_gaps": gaps,
		"low_ratings": lowRatings,
	})
}

// Gaps 知识缺口列表
func (c *AdminController) Gaps() {
	svc := GetServices()
	if svc == nil || svc.LogStore == nil {
		c.JSONAppError(apperrors.NewServiceUnavailableError("log store"))
		return
	}

	limit, _ := c.GetInt("limit", 50)
	gaps, err := svc.LogStore.RecentGaps(limit)
	if err != nil {
		c.JSONAppError(err)
		return
	}
	c.JSONSuccess(gaps)
}

// DocUsage 最常被引用的来源
func (c *AdminController) DocUsage() {
	svc := GetServices()
	if svc == nil || svc.LogStore == nil {
		c.JSONAppError(apperrors.NewServiceUnavailableError("log store"))
		return
	}

	limit, _ := c.GetInt("limit", 20)
	counts, err := svc.LogStore.TopDocuments(limit)
	if err != nil {
		c.JSONAppError(err)
		return
	}
	c.JSONSuccess(counts)
}
