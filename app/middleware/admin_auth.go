package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/beego/beego/v2/server/web/context"
	"github.com/izana/backend-go/internal/config"
	"github.com/izana/backend-go/internal/logger"
	"go.uber.org/zap"
)

// AdminAuthMiddleware 管理接口鉴权
// 校验X-Admin-Token头，常量时间比较；未配置token时一律拒绝
func AdminAuthMiddleware(ctx *context.Context) {
	cfg := config.GetAppConfig()

	expected := cfg.Admin.Token
	provided := ctx.Input.Header("X-Admin-Token")

	if expected == "" || subtle.ConstantTimeCompare([]byte(expected), []byte(provided)) != 1 {
		logger.Warn("admin request rejected",
			zap.String("path", ctx.Request.RequestURI),
			zap.String("ip", ctx.Input.IP()))
		ctx.Output.SetStatus(http.StatusUnauthorized)
		_ = ctx.Output.JSON(map[string]interface{}{
			"success": false,
			"error":   "unauthorized",
		}, false, false)
	}
}
