package cron

import (
	"fmt"
	log "log/slog"
)

// InitCron 注册心跳巡检并启动调度；巡检是离线队列与连接回收的唯一驱动，注册失败视为启动失败
func InitCron(mgr *Manager) error {
	if err := mgr.RegisterJobs(); err != nil {
		return fmt.Errorf("register heartbeat job %q: %w", mgr.heartbeatSpec, err)
	}
	mgr.Start()
	log.Info("Cron Jobs started", "entries", len(mgr.engine.Entries()))
	return nil
}
