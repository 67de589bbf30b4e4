package controllers

import (
	"github.com/izana/backend-go/internal/services"
)

// Services 控制器依赖的服务集合，由bootstrap装配后注入
type Services struct {
	Chat     *services.ChatService
	Feedback *services.FeedbackService
	LogStore *services.LogStore
}

var registry *Services

// SetServices 注入服务实例，必须在路由注册前调用
func SetServices(s *Services) {
	registry = s
}

// GetServices 获取已注入的服务集合
func GetServices() *Services {
	return registry
}
