package dto

import "github.com/goccy/go-json"

// 服务端 -> 客户端事件
const (
	EventNewNotification      = "new_notification"
	EventNotificationUpdated  = "notification_updated"
	EventNotificationDeleted  = "notification_deleted"
	EventAllNotificationsRead = "all_notifications_read"
	EventSystemStatus         = "system_status"
	EventError                = "error"
)

// 客户端 -> 服务端事件
const (
	EventNotificationDelivered = "notification_delivered"
	EventUpdatePreferences     = "update_notification_preferences"
	EventEnterConversation     = "enter_conversation"
	EventLeaveConversation     = "leave_conversation"
	EventMarkNotificationRead  = "mark_notification_read"
)

// PushEvent 推送帧
type PushEvent struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// ClientEvent 客户端帧，Data 按 Event 延迟解码
type ClientEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// NotificationUpdatedEvent notification_updated 负载
type NotificationUpdatedEvent struct {
	ID     string `json:"id"`
	IsRead bool   `json:"is_read"`
}

// NotificationDeletedEvent notification_deleted 负载
type NotificationDeletedEvent struct {
	ID string `json:"id"`
}

// AllReadEvent all_notifications_read 负载
type AllReadEvent struct {
	Updated int64 `json:"updated"`
}

// SystemStatusEvent 连接确认
type SystemStatusEvent struct {
	Status       string `json:"status"`
	ConnectionID string `json:"connection_id"`
	UserID       uint64 `json:"user_id"`
	Queued       int    `json:"queued"`
	ServerTime   string `json:"server_time"`
}

// ErrorEvent 客户端事件处理失败
type ErrorEvent struct {
	Event   string `json:"event"`
	Message string `json:"message"`
}

// NotificationRefReq notification_delivered / mark_notification_read 负载
type NotificationRefReq struct {
	ID string `json:"id"`
}

// ConversationReq enter_conversation / leave_conversation 负载
type ConversationReq struct {
	CounterpartID uint64 `json:"counterpart_id"`
	ThreadID      string `json:"thread_id,omitempty"`
}
