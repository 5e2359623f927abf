package service

import (
	"Carhub/internal/pkg/consts"
	"Carhub/internal/pkg/mongo"
	"Carhub/internal/pkg/notify"
	"Carhub/internal/pkg/presence"
	"context"
	"fmt"
	log "log/slog"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

const (
	messageLockTTL     = 5 * time.Second
	messageLockRetries = 20
	previewMaxRunes    = 80

	MetaSenderID  = "senderId"
	MetaThreadID  = "threadId"
	MetaMessageID = "messageId"
)

// MessageEvent 一条新私信
type MessageEvent struct {
	MessageID   uint64
	SenderID    uint64
	RecipientID uint64
	ThreadID    string
	Content     string
}

type MessageNotifier interface {
	// OnMessage 接收方正在与发送方会话时跳过；已有未读的同源私信通知时原地合并计数
	OnMessage(ctx context.Context, msg *MessageEvent) (*mongo.Notification, error)
}

type messageNotifierImpl struct {
	notifications NotificationService
	repo          mongo.NotificationRepo
	users         UserDirectory
	prefs         PreferenceService
	registry      *presence.Registry
	conversations *presence.Conversations
	kv            KV
}

func NewMessageNotifier(
	notifications NotificationService,
	repo mongo.NotificationRepo,
	users UserDirectory,
	prefs PreferenceService,
	registry *presence.Registry,
	conversations *presence.Conversations,
	kv KV,
) MessageNotifier {
	return &messageNotifierImpl{
		notifications: notifications,
		repo:          repo,
		users:         users,
		prefs:         prefs,
		registry:      registry,
		conversations: conversations,
		kv:            kv,
	}
}

func (s *messageNotifierImpl) OnMessage(ctx context.Context, msg *MessageEvent) (*mongo.Notification, error) {
	if msg == nil || msg.RecipientID == 0 || msg.SenderID == 0 || msg.RecipientID == msg.SenderID {
		return nil, nil
	}
	if s.conversations.IsActive(msg.RecipientID, msg.SenderID) && s.registry.IsOnline(msg.RecipientID) {
		log.DebugContext(ctx, "message notification skipped: conversation open",
			"recipient", msg.RecipientID, "sender", msg.SenderID)
		return nil, nil
	}

	// 同一发送方到同一接收方的合并需串行，避免并发各建一条
	lockKey := consts.MessageNotifyLock + strconv.FormatUint(msg.RecipientID, 10) + ":" + strconv.FormatUint(msg.SenderID, 10)
	owner := uuid.NewString()
	locked, err := s.kv.TryLock(ctx, lockKey, owner, messageLockTTL, messageLockRetries)
	if err != nil {
		log.WarnContext(ctx, "message notify lock failed, continuing without lock", "key", lockKey, "err", err)
	}
	if locked {
		defer s.kv.UnLock(context.WithoutCancel(ctx), lockKey, owner)
	}

	senderName := s.senderName(ctx, msg.SenderID)
	preview := truncate(msg.Content, previewMaxRunes)

	existing, err := s.repo.FindUnreadBySubject(ctx, msg.RecipientID, notify.TypeNewMessage, msg.SenderID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return s.coalesce(ctx, existing, senderName, preview, msg)
	}

	opts := &NotifyOptions{
		Link:      messageLink(msg),
		SubjectID: msg.SenderID,
		Metadata: map[string]any{
			mongo.MetaCount: 1,
			MetaSenderID:    msg.SenderID,
			MetaThreadID:    msg.ThreadID,
			MetaMessageID:   msg.MessageID,
		},
		Source:   consts.SourceKafka,
		DedupKey: "message:" + strconv.FormatUint(msg.MessageID, 10),
	}
	return s.notifications.CreateAndDeliver(ctx, msg.RecipientID,
		"New message from "+senderName, preview, notify.TypeNewMessage, opts)
}

// coalesce 已有未读通知时累加计数并更新文案，不新建通知
func (s *messageNotifierImpl) coalesce(ctx context.Context, n *mongo.Notification, senderName, preview string, msg *MessageEvent) (*mongo.Notification, error) {
	// 整条 Kafka 消息重试时同一私信会再次到达
	if last := metaInt(n.Metadata[MetaMessageID]); last > 0 && uint64(last) == msg.MessageID {
		log.DebugContext(ctx, "message already coalesced", "recipient", msg.RecipientID, "messageID", msg.MessageID)
		return n, nil
	}
	suppressed, err := s.prefs.Suppresses(ctx, msg.RecipientID, notify.TypeNewMessage, time.Now())
	if err != nil {
		log.ErrorContext(ctx, "message notification skipped: preference lookup failed", "recipient", msg.RecipientID, "err", err)
		return nil, nil
	}
	if suppressed {
		log.InfoContext(ctx, "message notification suppressed by preference", "recipient", msg.RecipientID)
		return nil, nil
	}

	count := metaInt(n.Metadata[mongo.MetaCount]) + 1
	if count < 2 {
		count = 2
	}
	metadata := make(map[string]any, len(n.Metadata)+1)
	for k, v := range n.Metadata {
		metadata[k] = v
	}
	metadata[mongo.MetaCount] = count
	metadata[MetaMessageID] = msg.MessageID
	if msg.ThreadID != "" {
		metadata[MetaThreadID] = msg.ThreadID
	}

	title := fmt.Sprintf("%d new messages from %s", count, senderName)
	if err := s.repo.UpdateContent(ctx, n.ID, title, preview, metadata); err != nil {
		return nil, err
	}
	n.Title = title
	n.Message = preview
	n.Metadata = metadata

	s.notifications.Refresh(ctx, n)
	log.InfoContext(ctx, "message notification coalesced",
		"recipient", msg.RecipientID, "sender", msg.SenderID, "count", count)
	return n, nil
}

func (s *messageNotifierImpl) senderName(ctx context.Context, senderID uint64) string {
	name, err := s.users.Nickname(ctx, senderID)
	if err != nil || name == "" {
		if err != nil {
			log.WarnContext(ctx, "sender nickname lookup failed", "sender", senderID, "err", err)
		}
		return "User " + strconv.FormatUint(senderID, 10)
	}
	return name
}

func messageLink(msg *MessageEvent) string {
	if msg.ThreadID != "" {
		return "/messages/" + msg.ThreadID
	}
	return "/messages/user/" + strconv.FormatUint(msg.SenderID, 10)
}

// metaInt 兼容 Mongo 解码出的 int32 / int64 / float64
func metaInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int32:
		return int(n)
	case int64:
		return int(n)
	case uint64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}

func truncate(s string, maxRunes int) string {
	if utf8.RuneCountInString(s) <= maxRunes {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxRunes]) + "…"
}
