package controllers

import (
	"net/http"

	"github.com/izana/backend-go/internal/database"
)

// RootController 根路径控制器
type RootController struct {
	BaseController
}

// Index 服务标识
func (c *RootController) Index() {
	c.JSON(http.StatusOK, map[string]interface{}{
		"service": "izana-backend",
		"status":  "running",
	})
}

// HealthController 健康检查控制器
type HealthController struct {
	BaseController
}

// Health 健康检查：数据库连通即视为健康
func (c *HealthController) Health() {
	status := "healthy"
	httpCode := http.StatusOK

	components := map[string]string{}
	if database.DB != nil {
		if sqlDB, err := database.DB.DB(); err == nil && sqlDB.Ping() == nil {
			components["database"] = "up"
		} else {
			components["database"] = "down"
			status = "unhealthy"
			httpCode = http.StatusServiceUnavailable
		}
	} else {
		components["database"] = "down"
		status = "unhealthy"
		httpCode = http.StatusServiceUnavailable
	}

	if database.RedisClient != nil {
		components["redis"] = "up"
	} else {
		components["redis"] = "disabled"
	}

	c.JSON(httpCode, map[string]interface{}{
		"status":     status,
		"components": components,
	})
}
