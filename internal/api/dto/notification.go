package dto

import "Carhub/internal/pkg/notify"

// NotificationDTO 通知返回对象，同时作为 new_notification 推送负载
type NotificationDTO struct {
	ID             string                `json:"id"`
	UserID         uint64                `json:"user_id"`
	Type           notify.Type           `json:"type"`
	Category       notify.Category       `json:"category"`
	Title          string                `json:"title"`
	Message        string                `json:"message"`
	Link           string                `json:"link,omitempty"`
	SubjectID      uint64                `json:"subject_id,omitempty"`
	Metadata       map[string]any        `json:"metadata,omitempty"`
	IsRead         bool                  `json:"is_read"`
	IsGrouped      bool                  `json:"is_grouped"`
	DeliveryStatus notify.DeliveryStatus `json:"delivery_status"`
	Priority       int                   `json:"priority"`
	RequireConfirm bool                  `json:"require_confirm"`
	CreatedAt      string                `json:"created_at"`
}

// NotificationIDReq 单条操作请求
type NotificationIDReq struct {
	ID string `json:"id" binding:"required"`
}

// UnreadCountDTO 未读数返回
type UnreadCountDTO struct {
	UnreadCount int64 `json:"unread_count"`
}

// MarkAllReadDTO 一键已读返回
type MarkAllReadDTO struct {
	Updated int64 `json:"updated"`
}

// AnnounceReq 管理员公告
type AnnounceReq struct {
	UserIDs []uint64 `json:"user_ids" binding:"required" validate:"min=1,max=1000"`
	Title   string   `json:"title" binding:"required" validate:"min=1,max=100"`
	Message string   `json:"message" binding:"required" validate:"min=1,max=1000"`
	Link    string   `json:"link" validate:"omitempty,max=500"`
}

// AnnounceResultDTO 公告结果
type AnnounceResultDTO struct {
	Created    int `json:"created"`
	Suppressed int `json:"suppressed"`
	Failed     int `json:"failed"`
}
