package service

import (
	"Carhub/internal/api/dto"
	"Carhub/internal/pkg/consts"
	"Carhub/internal/pkg/mongo"
	"Carhub/internal/pkg/notify"
	"Carhub/internal/pkg/util"
	"context"
	"errors"
	log "log/slog"
	"time"

	"github.com/jinzhu/copier"
	mongoDB "go.mongodb.org/mongo-driver/mongo"
)

const unreadListLimit = 50

// List 分页获取通知列表
func (s *notificationServiceImpl) List(ctx context.Context, userID uint64, page, pageSize int) ([]*dto.NotificationDTO, error) {
	limit, offset := util.Paginate(page, pageSize)
	list, err := s.repo.List(ctx, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	return toNotificationDTOs(list), nil
}

// ListUnread 未读通知，按优先级降序
func (s *notificationServiceImpl) ListUnread(ctx context.Context, userID uint64) ([]*dto.NotificationDTO, error) {
	list, err := s.repo.ListUnread(ctx, userID, unreadListLimit)
	if err != nil {
		return nil, err
	}
	return toNotificationDTOs(list), nil
}

func (s *notificationServiceImpl) UnreadCount(ctx context.Context, userID uint64) (*dto.UnreadCountDTO, error) {
	count, err := s.repo.CountUnread(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &dto.UnreadCountDTO{UnreadCount: count}, nil
}

// MarkRead 标记单条已读并同步到用户其他连接
func (s *notificationServiceImpl) MarkRead(ctx context.Context, userID uint64, id string) error {
	if err := s.repo.MarkRead(ctx, userID, id); err != nil {
		if errors.Is(err, mongoDB.ErrNoDocuments) {
			return ErrNotificationNotFound
		}
		return err
	}
	s.push(ctx, userID, dto.EventNotificationUpdated, &dto.NotificationUpdatedEvent{ID: id, IsRead: true})
	return nil
}

// MarkAllRead 一键已读
func (s *notificationServiceImpl) MarkAllRead(ctx context.Context, userID uint64) (*dto.MarkAllReadDTO, error) {
	updated, err := s.repo.MarkAllRead(ctx, userID)
	if err != nil {
		return nil, err
	}
	s.push(ctx, userID, dto.EventAllNotificationsRead, &dto.AllReadEvent{Updated: updated})
	return &dto.MarkAllReadDTO{Updated: updated}, nil
}

// Delete 删除通知，同时撤回尚未补发的队列项与确认计时
func (s *notificationServiceImpl) Delete(ctx context.Context, userID uint64, id string) error {
	n, err := s.repo.GetByID(ctx, userID, id)
	if err != nil {
		return err
	}
	if n == nil {
		return ErrNotificationNotFound
	}
	if err = s.repo.Delete(ctx, userID, id); err != nil {
		if errors.Is(err, mongoDB.ErrNoDocuments) {
			return ErrNotificationNotFound
		}
		return err
	}

	s.queue.RemoveIfPresent(userID, id)
	s.sched.Cancel(notify.KindConfirm, confirmKey(userID, n.ID))
	s.push(ctx, userID, dto.EventNotificationDeleted, &dto.NotificationDeletedEvent{ID: id})
	return nil
}

func (s *notificationServiceImpl) Stats(ctx context.Context, userID uint64) (*dto.NotificationStatsDTO, error) {
	total, err := s.repo.CountAll(ctx, userID)
	if err != nil {
		return nil, err
	}
	unread, err := s.repo.CountUnread(ctx, userID)
	if err != nil {
		return nil, err
	}
	conns := s.registry.ConnectionsFor(userID)
	return &dto.NotificationStatsDTO{
		TotalNotifications:  total,
		UnreadNotifications: unread,
		QueuedNotifications: s.queue.Len(userID),
		Online:              len(conns) > 0,
		Connections:         len(conns),
	}, nil
}

// AdminStats 投递引擎运行状态
func (s *notificationServiceImpl) AdminStats(ctx context.Context) (*dto.AdminStatsDTO, error) {
	unconfirmed, err := s.repo.CountByStatus(ctx, notify.StatusUnconfirmed)
	if err != nil {
		return nil, err
	}
	return &dto.AdminStatsDTO{
		OnlineUsers:          s.registry.OnlineCount(),
		Connections:          s.registry.ConnectionCount(),
		QueuedTotal:          s.queue.Total(),
		PendingBatches:       s.batcher.Pending(),
		PendingConfirmations: s.sched.Pending(notify.KindConfirm),
		UnconfirmedTotal:     unconfirmed,
		LedgerSize:           s.ledger.Len(),
		ActiveConversations:  s.conversations.ActiveCount(),
	}, nil
}

// Announce 向指定用户逐个发送系统公告
func (s *notificationServiceImpl) Announce(ctx context.Context, req *dto.AnnounceReq) (*dto.AnnounceResultDTO, error) {
	if err := util.ValidateDTO(req); err != nil {
		return nil, ErrParamInvalid
	}

	res := &dto.AnnounceResultDTO{}
	opts := &NotifyOptions{Link: req.Link, Source: consts.SourceAdmin}
	for _, userID := range req.UserIDs {
		n, err := s.CreateAndDeliver(ctx, userID, req.Title, req.Message, notify.TypeSystemAnnouncement, opts)
		switch {
		case err != nil:
			res.Failed++
		case n == nil:
			res.Suppressed++
		default:
			res.Created++
		}
	}
	log.InfoContext(ctx, "system announcement sent",
		"created", res.Created, "suppressed", res.Suppressed, "failed", res.Failed)
	return res, nil
}

func toNotificationDTO(n *mongo.Notification) *dto.NotificationDTO {
	d := &dto.NotificationDTO{}
	_ = copier.Copy(d, n)
	d.ID = n.IDHex()
	d.Category = n.Type.Category()
	d.RequireConfirm = n.Type.Critical()
	d.CreatedAt = n.CreatedAt.UTC().Format(time.RFC3339)
	return d
}

func toNotificationDTOs(list []*mongo.Notification) []*dto.NotificationDTO {
	res := make([]*dto.NotificationDTO, 0, len(list))
	for _, n := range list {
		res = append(res, toNotificationDTO(n))
	}
	return res
}
