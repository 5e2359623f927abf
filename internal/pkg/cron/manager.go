package cron

import (
	"Carhub/internal/job"
	log "log/slog"

	"github.com/robfig/cron/v3"
)

type Manager struct {
	engine        *cron.Cron
	heartbeatSpec string
	heartbeatJob  *job.HeartbeatJob
}

func NewCronManager(heartbeatSpec string, heartbeatJob *job.HeartbeatJob) *Manager {
	return &Manager{
		// 上一轮巡检未结束时跳过本轮
		engine:        cron.New(cron.WithSeconds(), cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger))),
		heartbeatSpec: heartbeatSpec,
		heartbeatJob:  heartbeatJob,
	}
}

// RegisterJobs 注册定时任务
func (s *Manager) RegisterJobs() error {
	if _, err := s.engine.AddJob(s.heartbeatSpec, s.heartbeatJob); err != nil {
		return err
	}
	return nil
}

func (s *Manager) Start() {
	log.Info("Cron 定时任务引擎启动", "heartbeat", s.heartbeatSpec)
	s.engine.Start()
}

// Stop 停止调度并等待运行中的任务结束
func (s *Manager) Stop() {
	log.Info("Cron 定时任务引擎停止")
	<-s.engine.Stop().Done()
}
