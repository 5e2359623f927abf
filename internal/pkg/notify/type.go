package notify

import (
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
)

// Type 通知类型（封闭枚举），优先级 / 分类 / 是否聚合 / 是否需要确认都挂在类型上
type Type uint8

const (
	TypeUnknown Type = iota
	TypeNewMessage
	TypeListingPublished
	TypeListingApproved
	TypeListingRejected
	TypeListingExpired
	TypeListingViewed
	TypeListingLiked
	TypeProfileViewed
	TypePaymentCompleted
	TypePaymentFailed
	TypeAccountActivity
	TypeReportResolved
	TypeSystemAnnouncement
)

// Category 通知分类
type Category string

const (
	CategoryMessage  Category = "message"
	CategoryListing  Category = "listing"
	CategoryActivity Category = "activity"
	CategoryPayment  Category = "payment"
	CategoryAccount  Category = "account"
	CategorySystem   Category = "system"
)

type typeInfo struct {
	name      string
	priority  int
	category  Category
	batchable bool
	critical  bool
	// 聚合文案，仅 batchable 类型使用
	groupTitle   string
	groupMessage string
}

var typeInfos = [...]typeInfo{
	TypeUnknown:          {name: "unknown", priority: 1, category: CategorySystem},
	TypeNewMessage:       {name: "new_message", priority: 7, category: CategoryMessage},
	TypeListingPublished: {name: "listing_published", priority: 5, category: CategoryListing},
	TypeListingApproved:  {name: "listing_approved", priority: 6, category: CategoryListing},
	TypeListingRejected:  {name: "listing_rejected", priority: 7, category: CategoryListing},
	TypeListingExpired:   {name: "listing_expired", priority: 8, category: CategoryListing, critical: true},
	TypeListingViewed: {
		name: "listing_viewed", priority: 2, category: CategoryActivity, batchable: true,
		groupTitle: "%d new views", groupMessage: "Your listings were viewed %d times",
	},
	TypeListingLiked: {
		name: "listing_liked", priority: 3, category: CategoryActivity, batchable: true,
		groupTitle: "%d new likes", groupMessage: "%d people added your listings to favorites",
	},
	TypeProfileViewed: {
		name: "profile_viewed", priority: 2, category: CategoryActivity, batchable: true,
		groupTitle: "%d profile views", groupMessage: "Your profile was viewed %d times",
	},
	TypePaymentCompleted:   {name: "payment_completed", priority: 9, category: CategoryPayment, critical: true},
	TypePaymentFailed:      {name: "payment_failed", priority: 10, category: CategoryPayment, critical: true},
	TypeAccountActivity:    {name: "account_activity", priority: 9, category: CategoryAccount, critical: true},
	TypeReportResolved:     {name: "report_resolved", priority: 4, category: CategorySystem},
	TypeSystemAnnouncement: {name: "system_announcement", priority: 5, category: CategorySystem},
}

var typeByName = func() map[string]Type {
	m := make(map[string]Type, len(typeInfos))
	for i := range typeInfos {
		m[typeInfos[i].name] = Type(i)
	}
	return m
}()

func (t Type) info() typeInfo {
	if int(t) >= len(typeInfos) {
		return typeInfos[TypeUnknown]
	}
	return typeInfos[t]
}

func (t Type) String() string { return t.info().name }

// Valid 是否为已知类型
func (t Type) Valid() bool { return t > TypeUnknown && int(t) < len(typeInfos) }

// Priority 1-10，越大越紧急
func (t Type) Priority() int { return t.info().priority }

func (t Type) Category() Category { return t.info().category }

// Batchable 高频低优先级类型，进入聚合窗口
func (t Type) Batchable() bool { return t.info().batchable }

// Critical 需要客户端显式确认送达
func (t Type) Critical() bool { return t.info().critical }

// GroupTitle 聚合通知标题
func (t Type) GroupTitle(count int) string {
	info := t.info()
	if info.groupTitle == "" {
		return fmt.Sprintf("%d new notifications", count)
	}
	return fmt.Sprintf(info.groupTitle, count)
}

// GroupMessage 聚合通知正文
func (t Type) GroupMessage(count int) string {
	info := t.info()
	if info.groupMessage == "" {
		return fmt.Sprintf("You have %d new notifications", count)
	}
	return fmt.Sprintf(info.groupMessage, count)
}

// ParseType 解析类型名，未知名称返回 TypeUnknown 和 false
func ParseType(name string) (Type, bool) {
	t, ok := typeByName[name]
	if !ok || t == TypeUnknown {
		return TypeUnknown, false
	}
	return t, true
}

// AllTypes 返回全部有效类型
func AllTypes() []Type {
	res := make([]Type, 0, len(typeInfos)-1)
	for i := 1; i < len(typeInfos); i++ {
		res = append(res, Type(i))
	}
	return res
}

func (t Type) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *Type) UnmarshalText(text []byte) error {
	parsed, ok := ParseType(string(text))
	if !ok {
		return fmt.Errorf("unknown notification type %q", string(text))
	}
	*t = parsed
	return nil
}

// MarshalBSONValue 以字符串形式落库，便于人工排查
func (t Type) MarshalBSONValue() (bsontype.Type, []byte, error) {
	return bson.MarshalValue(t.String())
}

func (t *Type) UnmarshalBSONValue(bt bsontype.Type, data []byte) error {
	name, ok := bson.RawValue{Type: bt, Value: data}.StringValueOK()
	if !ok {
		return fmt.Errorf("notification type must be a string, got %s", bt)
	}
	parsed, _ := ParseType(name)
	*t = parsed
	return nil
}

// DeliveryStatus 投递状态，仅由投递引擎修改
type DeliveryStatus string

const (
	StatusPending     DeliveryStatus = "pending"
	StatusSent        DeliveryStatus = "sent"
	StatusDelivered   DeliveryStatus = "delivered"
	StatusQueued      DeliveryStatus = "queued"
	StatusFailed      DeliveryStatus = "failed"
	StatusUnconfirmed DeliveryStatus = "unconfirmed"
)
