package service

import (
	"Carhub/internal/api/dto"
	"Carhub/internal/pkg/logger"
	"Carhub/internal/pkg/notify"
	"context"
	log "log/slog"
	"time"

	"golang.org/x/time/rate"
)

// SweepReport 一轮心跳巡检的结果
type SweepReport struct {
	Checked       int
	Reaped        int
	LedgerPurged  int
	BatchesPurged int
	QueueExpired  int
}

// OnConnect 登记连接并回执 system_status，离线队列非空时异步补发
func (s *notificationServiceImpl) OnConnect(ctx context.Context, userID uint64, connID string) {
	if s.registry.Register(userID, connID) {
		log.InfoContext(ctx, "user online", "userID", userID, "connID", connID)
	}

	queued := s.queue.Len(userID)
	ack := &dto.SystemStatusEvent{
		Status:       "connected",
		ConnectionID: connID,
		UserID:       userID,
		Queued:       queued,
		ServerTime:   s.now().UTC().Format(time.RFC3339),
	}
	payload, err := encodeEvent(dto.EventSystemStatus, ack)
	if err == nil {
		err = s.transport.Send(connID, payload)
	}
	if err != nil {
		log.WarnContext(ctx, "send connection ack failed", "connID", connID, "err", err)
	}

	if queued > 0 {
		s.startReplay(userID)
	}
}

// OnDisconnect 可重复调用
func (s *notificationServiceImpl) OnDisconnect(ctx context.Context, connID string) {
	userID, wentOffline, ok := s.registry.Unregister(connID)
	if !ok {
		return
	}
	if wentOffline {
		log.InfoContext(ctx, "user offline", "userID", userID, "connID", connID)
	}
}

func (s *notificationServiceImpl) startReplay(userID uint64) {
	if s.ctx.Err() != nil {
		return
	}
	s.wg.Add(1)
	go s.replay(userID)
}

// replay 取出离线队列按优先级分批补发，批间限速；补发失败标记 failed 不再重试
func (s *notificationServiceImpl) replay(userID uint64) {
	defer s.wg.Done()
	ctx := logger.NewTrace(s.ctx, "replay")

	entries, expired := s.queue.Drain(userID)
	if expired > 0 {
		log.InfoContext(ctx, "expired queued notifications discarded", "userID", userID, "count", expired)
	}
	if len(entries) == 0 {
		return
	}
	log.InfoContext(ctx, "replaying queued notifications", "userID", userID, "count", len(entries))

	limiter := rate.NewLimiter(rate.Every(s.cfg.ReplayPacing), 1)
	size := s.cfg.ReplayBatchSize
	for start := 0; start < len(entries); start += size {
		if err := limiter.Wait(ctx); err != nil {
			log.WarnContext(ctx, "replay interrupted", "userID", userID, "remaining", len(entries)-start, "err", err)
			return
		}

		conns := s.registry.ConnectionsFor(userID)
		for _, entry := range entries[start:min(start+size, len(entries))] {
			n := entry.Payload
			if len(conns) == 0 || !s.pushNotification(ctx, conns, n) {
				n.DeliveryStatus = notify.StatusFailed
				s.setStatus(ctx, n.ID, notify.StatusFailed)
			}
		}
	}
}

// Sweep 心跳巡检：回收失活连接，存活连接续期并发送 ping，随后清理过期状态
func (s *notificationServiceImpl) Sweep(ctx context.Context) *SweepReport {
	report := &SweepReport{}
	for _, ref := range s.registry.Connections() {
		report.Checked++
		if !s.transport.Alive(ref.ConnID) {
			s.registry.Unregister(ref.ConnID)
			s.transport.Close(ref.ConnID)
			report.Reaped++
			log.InfoContext(ctx, "dead connection reaped", "userID", ref.UserID, "connID", ref.ConnID)
			continue
		}
		s.registry.Touch(ref.UserID)
		if err := s.transport.Ping(ref.ConnID); err != nil {
			log.WarnContext(ctx, "heartbeat ping failed", "connID", ref.ConnID, "err", err)
		}
	}

	horizon := s.cfg.CleanupHorizon
	report.LedgerPurged = s.ledger.Purge(horizon)
	report.BatchesPurged = s.batcher.Purge(horizon)
	report.QueueExpired = s.queue.PurgeExpired()
	return report
}
