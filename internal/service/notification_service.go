package service

import (
	"Carhub/internal/api/config"
	"Carhub/internal/api/dto"
	"Carhub/internal/pkg/consts"
	"Carhub/internal/pkg/logger"
	"Carhub/internal/pkg/mongo"
	"Carhub/internal/pkg/notify"
	"Carhub/internal/pkg/presence"
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"sync"
	"time"

	"github.com/codeGROOVE-dev/retry"
	"github.com/goccy/go-json"
	"go.mongodb.org/mongo-driver/bson/primitive"
	mongoDB "go.mongodb.org/mongo-driver/mongo"
)

// Transport 推送通道，按 connectionID 寻址
type Transport interface {
	Send(connID string, payload []byte) error
	Ping(connID string) error
	Alive(connID string) bool
	Close(connID string)
}

// UserDirectory 外部用户库
type UserDirectory interface {
	Exists(ctx context.Context, userID uint64) (bool, error)
	Nickname(ctx context.Context, userID uint64) (string, error)
}

// NotifyOptions 生产者可选参数
type NotifyOptions struct {
	Link      string
	SubjectID uint64
	Metadata  map[string]any
	Source    string
	// DedupKey 非空时替代 message 参与去重指纹计算
	DedupKey string
}

type NotificationService interface {
	// CreateAndDeliver 创建并投递通知。被拦截（参数非法/用户不存在/偏好屏蔽/重复）时返回 nil, nil，
	// 仅持久化失败时返回 error
	CreateAndDeliver(ctx context.Context, userID uint64, title, message string, t notify.Type, opts *NotifyOptions) (*mongo.Notification, error)
	// Refresh 通知内容被原地更新后重新推送
	Refresh(ctx context.Context, n *mongo.Notification)
	Confirm(ctx context.Context, userID uint64, id string) error

	OnConnect(ctx context.Context, userID uint64, connID string)
	OnDisconnect(ctx context.Context, connID string)
	Sweep(ctx context.Context) *SweepReport

	List(ctx context.Context, userID uint64, page, pageSize int) ([]*dto.NotificationDTO, error)
	ListUnread(ctx context.Context, userID uint64) ([]*dto.NotificationDTO, error)
	UnreadCount(ctx context.Context, userID uint64) (*dto.UnreadCountDTO, error)
	MarkRead(ctx context.Context, userID uint64, id string) error
	MarkAllRead(ctx context.Context, userID uint64) (*dto.MarkAllReadDTO, error)
	Delete(ctx context.Context, userID uint64, id string) error
	Stats(ctx context.Context, userID uint64) (*dto.NotificationStatsDTO, error)
	AdminStats(ctx context.Context) (*dto.AdminStatsDTO, error)
	Announce(ctx context.Context, req *dto.AnnounceReq) (*dto.AnnounceResultDTO, error)

	Close()
}

type notificationServiceImpl struct {
	repo          mongo.NotificationRepo
	users         UserDirectory
	prefs         PreferenceService
	registry      *presence.Registry
	conversations *presence.Conversations
	transport     Transport
	cfg           config.NotifyConfig

	sched   *notify.Scheduler
	ledger  *notify.Ledger
	batcher *notify.Batcher[*mongo.Notification]
	queue   *notify.OfflineQueue[*mongo.Notification]

	// ctx 为服务生命周期，定时器回调与离线补发使用
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	now    func() time.Time
}

func NewNotificationService(
	repo mongo.NotificationRepo,
	users UserDirectory,
	prefs PreferenceService,
	registry *presence.Registry,
	conversations *presence.Conversations,
	transport Transport,
	cfg config.NotifyConfig,
) NotificationService {
	return newNotificationService(repo, users, prefs, registry, conversations, transport, cfg)
}

func newNotificationService(
	repo mongo.NotificationRepo,
	users UserDirectory,
	prefs PreferenceService,
	registry *presence.Registry,
	conversations *presence.Conversations,
	transport Transport,
	cfg config.NotifyConfig,
) *notificationServiceImpl {
	cfg = cfg.WithDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	s := &notificationServiceImpl{
		repo:          repo,
		users:         users,
		prefs:         prefs,
		registry:      registry,
		conversations: conversations,
		transport:     transport,
		cfg:           cfg,
		sched:         notify.NewScheduler(),
		ledger:        notify.NewLedger(cfg.DedupWindow),
		queue:         notify.NewOfflineQueue[*mongo.Notification](cfg.QueueCapacity, cfg.QueueMaxAge),
		ctx:           ctx,
		cancel:        cancel,
		now:           time.Now,
	}
	s.batcher = notify.NewBatcher[*mongo.Notification](cfg.BatchWindow, s.sched, s.flushBatch)
	return s
}

func (s *notificationServiceImpl) CreateAndDeliver(ctx context.Context, userID uint64, title, message string, t notify.Type, opts *NotifyOptions) (*mongo.Notification, error) {
	if opts == nil {
		opts = &NotifyOptions{}
	}
	if userID == 0 || message == "" || !t.Valid() {
		log.WarnContext(ctx, "notification rejected: invalid input", "userID", userID, "type", t.String())
		return nil, nil
	}

	exists, err := s.users.Exists(ctx, userID)
	if err != nil {
		log.ErrorContext(ctx, "notification rejected: user lookup failed", "userID", userID, "err", err)
		return nil, nil
	}
	if !exists {
		log.WarnContext(ctx, "notification rejected: user not found", "userID", userID, "type", t.String())
		return nil, nil
	}

	suppressed, err := s.prefs.Suppresses(ctx, userID, t, s.now())
	if err != nil {
		log.ErrorContext(ctx, "notification rejected: preference lookup failed", "userID", userID, "err", err)
		return nil, nil
	}
	if suppressed {
		log.InfoContext(ctx, "notification suppressed by preference", "userID", userID, "type", t.String())
		return nil, nil
	}

	dedupKey := opts.DedupKey
	if dedupKey == "" {
		dedupKey = message
	}
	fp := notify.Fingerprint(userID, t, dedupKey)
	if !s.ledger.Reserve(fp) {
		log.InfoContext(ctx, "duplicate notification suppressed", "userID", userID, "type", t.String())
		return nil, nil
	}

	n := &mongo.Notification{
		UserID:         userID,
		Type:           t,
		Title:          title,
		Message:        message,
		Link:           opts.Link,
		SubjectID:      opts.SubjectID,
		Metadata:       opts.Metadata,
		Source:         opts.Source,
		DeliveryStatus: notify.StatusPending,
		Priority:       t.Priority(),
	}
	if err = s.repo.Create(ctx, n); err != nil {
		s.ledger.Release(fp)
		return nil, fmt.Errorf("persist notification: %w", err)
	}

	if t.Batchable() {
		s.batcher.Add(userID, t, n)
		return n, nil
	}
	s.deliver(ctx, n)
	return n, nil
}

// sentFrom sent 只能覆盖这些状态，避免迟到的写入盖掉 delivered/unconfirmed
var sentFrom = []notify.DeliveryStatus{notify.StatusPending, notify.StatusQueued, notify.StatusFailed}

// deliver 在线则推送到用户全部连接，否则进入离线队列。
// n 交给离线队列后不再修改
func (s *notificationServiceImpl) deliver(ctx context.Context, n *mongo.Notification) {
	conns := s.registry.ConnectionsFor(n.UserID)
	if len(conns) == 0 {
		s.enqueue(ctx, n, true)
		return
	}

	if !s.pushNotification(ctx, conns, n) {
		n.DeliveryStatus = notify.StatusFailed
		s.setStatus(ctx, n.ID, notify.StatusFailed)
		// 失败的连接在回收前仍登记在线，等重连后再补发
		s.enqueue(ctx, n, false)
		return
	}
	s.queue.RemoveIfPresent(n.UserID, n.IDHex())
}

// pushNotification 推送 new_notification。关键通知在推送前布置确认定时器，全部连接失败时撤销
func (s *notificationServiceImpl) pushNotification(ctx context.Context, conns []string, n *mongo.Notification) bool {
	payload, err := encodeEvent(dto.EventNewNotification, toNotificationDTO(n))
	if err != nil {
		log.ErrorContext(ctx, "encode notification failed", "id", n.IDHex(), "err", err)
		return false
	}

	critical := n.Type.Critical()
	if critical {
		s.armConfirmation(n.UserID, n.ID)
	}
	if s.sendTo(ctx, conns, payload) == 0 {
		if critical {
			s.sched.Cancel(notify.KindConfirm, confirmKey(n.UserID, n.ID))
		}
		return false
	}

	n.DeliveryStatus = notify.StatusSent
	s.setStatus(ctx, n.ID, notify.StatusSent, sentFrom...)
	return true
}

// enqueue 写入离线队列；replayIfOnline 为 true 时处理入队期间用户恰好上线的情况
func (s *notificationServiceImpl) enqueue(ctx context.Context, n *mongo.Notification, replayIfOnline bool) {
	n.DeliveryStatus = notify.StatusQueued
	s.setStatus(ctx, n.ID, notify.StatusQueued)

	evicted := s.queue.Enqueue(n.UserID, n.IDHex(), n.Priority, n)
	if evicted != nil {
		log.WarnContext(ctx, "offline queue full, notification evicted",
			"userID", n.UserID, "evictedID", evicted.ID, "evictedPriority", evicted.Priority)
		s.setStatus(ctx, evicted.Payload.ID, notify.StatusFailed)
	}

	if replayIfOnline && s.registry.IsOnline(n.UserID) {
		s.startReplay(n.UserID)
	}
}

// sendTo 逐个连接推送，返回成功数
func (s *notificationServiceImpl) sendTo(ctx context.Context, conns []string, payload []byte) int {
	sent := 0
	for _, connID := range conns {
		if err := s.transport.Send(connID, payload); err != nil {
			log.WarnContext(ctx, "push to connection failed", "connID", connID, "err", err)
			continue
		}
		sent++
	}
	return sent
}

// push 向用户全部在线连接推送事件
func (s *notificationServiceImpl) push(ctx context.Context, userID uint64, event string, data any) int {
	conns := s.registry.ConnectionsFor(userID)
	if len(conns) == 0 {
		return 0
	}
	payload, err := encodeEvent(event, data)
	if err != nil {
		log.ErrorContext(ctx, "encode push event failed", "event", event, "err", err)
		return 0
	}
	return s.sendTo(ctx, conns, payload)
}

func (s *notificationServiceImpl) Refresh(ctx context.Context, n *mongo.Notification) {
	if n == nil {
		return
	}
	if s.push(ctx, n.UserID, dto.EventNewNotification, toNotificationDTO(n)) > 0 {
		return
	}
	// 离线时替换队列中的旧内容
	if s.queue.RemoveIfPresent(n.UserID, n.IDHex()) {
		s.queue.Enqueue(n.UserID, n.IDHex(), n.Priority, n)
	}
}

// flushBatch 聚合窗口到期：单条原样投递，多条合成一条聚合通知
func (s *notificationServiceImpl) flushBatch(userID uint64, t notify.Type, items []*mongo.Notification) {
	ctx := logger.NewTrace(s.ctx, "batch")
	if len(items) == 0 {
		return
	}
	if len(items) == 1 {
		s.deliver(ctx, items[0])
		return
	}

	memberIDs := make([]string, 0, len(items))
	for _, item := range items {
		memberIDs = append(memberIDs, item.IDHex())
	}
	grouped := &mongo.Notification{
		UserID:  userID,
		Type:    t,
		Title:   t.GroupTitle(len(items)),
		Message: t.GroupMessage(len(items)),
		Metadata: map[string]any{
			mongo.MetaMemberIDs: memberIDs,
			mongo.MetaCount:     len(items),
		},
		Source:         consts.SourceBatch,
		IsGrouped:      true,
		DeliveryStatus: notify.StatusPending,
		Priority:       t.Priority(),
	}

	writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	err := s.repo.Create(writeCtx, grouped)
	cancel()
	if err != nil {
		log.ErrorContext(ctx, "persist grouped notification failed, delivering members individually",
			"userID", userID, "type", t.String(), "count", len(items), "err", err)
		for _, item := range items {
			s.deliver(ctx, item)
		}
		return
	}

	log.InfoContext(ctx, "batched notifications grouped", "userID", userID, "type", t.String(), "count", len(items))
	s.deliver(ctx, grouped)
}

func confirmKey(userID uint64, id primitive.ObjectID) string {
	return fmt.Sprintf("%d:%s", userID, id.Hex())
}

func (s *notificationServiceImpl) armConfirmation(userID uint64, id primitive.ObjectID) {
	s.sched.Arm(notify.KindConfirm, confirmKey(userID, id), s.cfg.ConfirmTimeout, func() {
		ctx := logger.NewTrace(s.ctx, "confirm")
		log.WarnContext(ctx, "critical notification unconfirmed", "userID", userID, "id", id.Hex())
		s.setStatus(ctx, id, notify.StatusUnconfirmed)
	})
}

// Confirm 客户端确认送达；超时后到达的确认不再改变状态
func (s *notificationServiceImpl) Confirm(ctx context.Context, userID uint64, id string) error {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrParamInvalid
	}
	if !s.sched.Cancel(notify.KindConfirm, confirmKey(userID, objectID)) {
		return ErrConfirmationNotPending
	}
	s.setStatus(ctx, objectID, notify.StatusDelivered)
	return nil
}

// setStatus 回写投递状态，失败重试后只记录日志。from 非空时仅在当前状态属于 from 时写入
func (s *notificationServiceImpl) setStatus(ctx context.Context, id primitive.ObjectID, status notify.DeliveryStatus, from ...notify.DeliveryStatus) {
	err := retry.Do(
		func() error {
			writeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
			defer cancel()
			return s.repo.UpdateDeliveryStatus(writeCtx, id, status, from...)
		},
		retry.Attempts(3),
		retry.Delay(100*time.Millisecond),
		retry.MaxDelay(time.Second),
		retry.MaxJitter(100*time.Millisecond),
		retry.Context(ctx),
		retry.RetryIf(func(err error) bool {
			return !errors.Is(err, mongoDB.ErrNoDocuments)
		}),
		retry.OnRetry(func(n uint, err error) {
			log.WarnContext(ctx, "retrying delivery status write", "id", id.Hex(), "status", status, "attempt", n, "err", err)
		}),
	)
	if err != nil {
		log.ErrorContext(ctx, "delivery status write failed", "id", id.Hex(), "status", status, "err", err)
	}
}

func (s *notificationServiceImpl) Close() {
	s.cancel()
	s.sched.Stop()
	s.wg.Wait()
	log.Info("NotificationService shut down gracefully",
		"queued", s.queue.Total(), "pendingBatches", s.batcher.Pending())
}

func encodeEvent(event string, data any) ([]byte, error) {
	return json.Marshal(&dto.PushEvent{Event: event, Data: data})
}
