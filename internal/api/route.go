package api

import (
	"Carhub/internal/api/config"
	"Carhub/internal/api/middleware"
	"Carhub/internal/pkg/consts"
	"Carhub/internal/pkg/logger"
	"net/http"

	"github.com/gin-gonic/gin"
)

func SetupRouter(group *HandlersGroup) *gin.Engine {
	r := gin.New()
	_ = r.SetTrustedProxies([]string{"localhost"})

	// TraceId & Logger & CORS
	r.Use(middleware.TraceMiddleware())
	r.Use(middleware.AuditMiddleware())
	r.Use(middleware.CORSMiddleware(config.Cfg.Server.AllowedOrigins...))
	logger.SetupGin(r)

	apiGroup := r.Group("/api")
	{
		apiGroup.GET("/ping", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"Code":    200,
				"Message": "pong",
				"Data":    nil,
			})
		})

		// 浏览器 websocket 通过 ?token= 鉴权
		apiGroup.GET("/ws", middleware.AuthMiddleware(), group.WsHandler.Connect)

		notificationGroup := apiGroup.Group("/notifications")
		notificationGroup.Use(middleware.AuthMiddleware())
		{
			notificationGroup.GET("/list", group.NotificationHandler.List)
			notificationGroup.GET("/unread", group.NotificationHandler.ListUnread)
			notificationGroup.GET("/unread/count", group.NotificationHandler.GetUnreadCount)
			notificationGroup.POST("/read", group.NotificationHandler.MarkRead)
			notificationGroup.POST("/read/all", group.NotificationHandler.MarkAllRead)
			notificationGroup.DELETE("/:id", group.NotificationHandler.Delete)
			notificationGroup.POST("/confirm", group.NotificationHandler.Confirm)
			notificationGroup.GET("/stats", group.NotificationHandler.Stats)
			notificationGroup.GET("/preferences", group.NotificationHandler.GetPreferences)
			notificationGroup.PUT("/preferences", group.NotificationHandler.UpdatePreferences)

			// 需要登录 & 拥有 admin 角色
			adminGroup := notificationGroup.Group("/admin")
			adminGroup.Use(middleware.CheckRoles(consts.RoleAdmin))
			{
				adminGroup.GET("/stats", group.NotificationHandler.AdminStats)
				adminGroup.POST("/announce", group.NotificationHandler.Announce)
			}
		}
	}

	return r
}
