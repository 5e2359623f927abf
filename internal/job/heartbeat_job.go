package job

import (
	"Carhub/internal/pkg/logger"
	"Carhub/internal/service"
	"context"
	log "log/slog"
	"time"
)

// HeartbeatJob 周期性探活：回收失联连接并清理过期的去重记录、聚合桶与离线队列
type HeartbeatJob struct {
	notifications service.NotificationService
	timeout       time.Duration
}

func NewHeartbeatJob(notifications service.NotificationService, period time.Duration) *HeartbeatJob {
	return &HeartbeatJob{notifications: notifications, timeout: period}
}

func (s *HeartbeatJob) Run() {
	ctx := logger.NewTrace(context.Background(), "job-heartbeat")
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	report := s.notifications.Sweep(ctx)
	if report == nil {
		return
	}
	if report.Reaped > 0 || report.QueueExpired > 0 {
		log.InfoContext(ctx, "heartbeat sweep finished",
			"checked", report.Checked,
			"reaped", report.Reaped,
			"ledgerPurged", report.LedgerPurged,
			"batchesPurged", report.BatchesPurged,
			"queueExpired", report.QueueExpired,
			"cost", time.Since(start))
		return
	}
	log.DebugContext(ctx, "heartbeat sweep finished", "checked", report.Checked, "cost", time.Since(start))
}
