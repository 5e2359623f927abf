package consts

// 角色
const (
	RoleAdmin = "ADMIN"
	RoleUser  = "USER"
)

// 车源状态，与 listings.status 列一致
const (
	ListingStatusDraft     = "draft"
	ListingStatusPending   = "pending"
	ListingStatusPublished = "published"
	ListingStatusApproved  = "approved"
	ListingStatusRejected  = "rejected"
	ListingStatusExpired   = "expired"
)

// 支付状态，与 payments.status 列一致
const (
	PaymentStatusPending   = "pending"
	PaymentStatusCompleted = "completed"
	PaymentStatusFailed    = "failed"
)

// 通知来源
const (
	SourceKafka = "kafka"
	SourceAdmin = "admin"
	SourceBatch = "batch"
)
