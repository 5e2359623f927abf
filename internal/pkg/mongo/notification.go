package mongo

import (
	"Carhub/internal/pkg/notify"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Notification 通知记录
type Notification struct {
	ID             primitive.ObjectID    `bson:"_id,omitempty" json:"id"`
	UserID         uint64                `bson:"user_id" json:"userId"`                        // 接收者
	Type           notify.Type           `bson:"type" json:"type"`                             // 通知类型，决定优先级/聚合/确认
	Title          string                `bson:"title" json:"title"`                           // 标题
	Message        string                `bson:"message" json:"message"`                       // 正文
	Link           string                `bson:"link,omitempty" json:"link,omitempty"`         // 跳转链接
	SubjectID      uint64                `bson:"subject_id,omitempty" json:"subjectId"`        // 关联对象 (车源ID / 私信发送者ID)
	Metadata       map[string]any        `bson:"metadata,omitempty" json:"metadata,omitempty"` // 生产者自定义元数据
	Source         string                `bson:"source,omitempty" json:"source,omitempty"`     // 来源: kafka 表名 / admin / ws
	IsRead         bool                  `bson:"is_read" json:"isRead"`                        // 是否已读
	IsGrouped      bool                  `bson:"is_grouped" json:"isGrouped"`                  // 是否为聚合通知
	DeliveryStatus notify.DeliveryStatus `bson:"delivery_status" json:"deliveryStatus"`        // 投递状态，仅投递引擎修改
	Priority       int                   `bson:"priority" json:"priority"`                     // 1-10，由类型派生
	CreatedAt      time.Time             `bson:"created_at" json:"createdAt"`
	UpdatedAt      time.Time             `bson:"updated_at" json:"updatedAt"`
}

// IDHex 字符串形式的 ID
func (n *Notification) IDHex() string {
	return n.ID.Hex()
}

const (
	MetaMemberIDs = "memberIds"
	MetaCount     = "count"
)
