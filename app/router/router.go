package router

import (
	"github.com/beego/beego/v2/server/web"
	"github.com/izana/backend-go/app/controllers"
	"github.com/izana/backend-go/app/middleware"
)

// Init registers all routes. Must be called after services are wired.
func Init() {
	web.Router("/", &controllers.RootController{}, "get:Index")
	web.Router("/health", &controllers.HealthController{}, "get:Health")
	web.Router("/metrics", &controllers.MetricsController{}, "get:Metrics")

	web.InsertFilter("/*", web.BeforeRouter, middleware.CORSMiddleware)

	web.Router("/api/chat", &controllers.ChatController{}, "post:Chat")
	web.Router("/api/feedback", &controllers.FeedbackController{}, "post:Submit")

	// 管理接口需要X-Admin-Token
	web.InsertFilter("/api/admin/*", web.BeforeRouter, middleware.AdminAuthMiddleware)
	adminController := &controllers.AdminController{}
	web.Router("/api/admin/stats", adminController, "get:Stats")
	web.Router("/api/admin/gaps", adminController, "get:Gaps")
	web.Router("/api/admin/doc-usage", adminController, "get:DocUsage")
}
