package api

import "Carhub/internal/api/handler"

// HandlersGroup 封装了所有已初始化的 Handler 实例
type HandlersGroup struct {
	NotificationHandler *handler.NotificationHandler
	WsHandler           *handler.WsHandler
}
