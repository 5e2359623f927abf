package wire

import (
	"Carhub/internal/api"
	"Carhub/internal/api/config"
	"Carhub/internal/api/handler"
	"Carhub/internal/job"
	"Carhub/internal/pkg/cron"
	"Carhub/internal/pkg/kafka"
	"Carhub/internal/pkg/mongo"
	"Carhub/internal/pkg/presence"
	"Carhub/internal/pkg/ws"
	"Carhub/internal/repository"
	"Carhub/internal/service"
	"context"
	"time"

	"github.com/gin-gonic/gin"
	mongoDB "go.mongodb.org/mongo-driver/mongo"
	"gorm.io/gorm"
)

// ApplicationContainer 封装了应用运行所需的所有顶级组件
type ApplicationContainer struct {
	Router        *gin.Engine
	DB            *gorm.DB
	Mongo         *mongoDB.Database
	Hub           *ws.Hub
	Notifications service.NotificationService
	KafkaManager  *kafka.ConsumerManager
	CronMgr       *cron.Manager
}

func BuildApplication(db *gorm.DB, mongoConn *mongoDB.Database, cfg *config.Config) (*ApplicationContainer, error) {
	notifyCfg := cfg.Notify.WithDefaults()
	kv := service.NewRedisKV()

	// repository
	userRepo := repository.NewUserRepo(db)
	listingRepo := repository.NewListingRepo(db)
	notificationRepo := mongo.NewNotificationRepo(mongoConn)
	preferenceRepo := mongo.NewPreferenceRepo(mongoConn)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := notificationRepo.EnsureIndexes(ctx); err != nil {
		return nil, err
	}

	// 在线状态 & 推送通道，两个心跳周期内无响应视为失联
	registry := presence.NewRegistry()
	conversations := presence.NewConversations()
	hub := ws.NewHub(notifyCfg.SendBuffer, 2*notifyCfg.HeartbeatPeriod)

	// service
	userDirectory := service.NewUserDirectory(userRepo, kv)
	listingDirectory := service.NewListingDirectory(listingRepo, kv)
	preferenceService := service.NewPreferenceService(preferenceRepo, kv)
	notificationService := service.NewNotificationService(
		notificationRepo, userDirectory, preferenceService, registry, conversations, hub, notifyCfg,
	)
	messageNotifier := service.NewMessageNotifier(
		notificationService, notificationRepo, userDirectory, preferenceService, registry, conversations, kv,
	)

	handlers := &api.HandlersGroup{
		NotificationHandler: handler.NewNotificationHandler(notificationService, preferenceService),
		WsHandler:           handler.NewWsHandler(hub, notificationService, preferenceService, conversations),
	}

	router := api.SetupRouter(handlers)

	kafkaMgr, err := kafka.NewConsumerManager(cfg, notificationService, messageNotifier, listingDirectory)
	if err != nil {
		notificationService.Close()
		return nil, err
	}

	heartbeatJob := job.NewHeartbeatJob(notificationService, notifyCfg.HeartbeatPeriod)
	cronMgr := cron.NewCronManager(notifyCfg.HeartbeatSpec(), heartbeatJob)

	return &ApplicationContainer{
		Router:        router,
		DB:            db,
		Mongo:         mongoConn,
		Hub:           hub,
		Notifications: notificationService,
		KafkaManager:  kafkaMgr,
		CronMgr:       cronMgr,
	}, nil
}
