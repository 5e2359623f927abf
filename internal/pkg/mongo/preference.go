package mongo

import (
	"Carhub/internal/pkg/notify"
	"time"
)

// NotificationPreference 用户通知偏好，_id 即用户ID
type NotificationPreference struct {
	UserID     uint64        `bson:"_id" json:"userId"`
	Muted      bool          `bson:"muted" json:"muted"`            // 全局静音
	MutedTypes []notify.Type `bson:"muted_types" json:"mutedTypes"` // 按类型静音
	QuietHours QuietHours    `bson:"quiet_hours" json:"quietHours"` // 免打扰时段
	UpdatedAt  time.Time     `bson:"updated_at" json:"updatedAt"`
}

// QuietHours 免打扰时段，Start/End 为 "HH:MM"，允许跨零点
type QuietHours struct {
	Enabled          bool   `bson:"enabled" json:"enabled"`
	Start            string `bson:"start" json:"start"`
	End              string `bson:"end" json:"end"`
	UTCOffsetMinutes int    `bson:"utc_offset_minutes" json:"utcOffsetMinutes"`
}
