package dto

// NotificationStatsDTO 用户维度统计
type NotificationStatsDTO struct {
	TotalNotifications  int64 `json:"total_notifications"`
	UnreadNotifications int64 `json:"unread_notifications"`
	QueuedNotifications int   `json:"queued_notifications"`
	Online              bool  `json:"online"`
	Connections         int   `json:"connections"`
}

// AdminStatsDTO 全局投递状态
type AdminStatsDTO struct {
	OnlineUsers          int   `json:"online_users"`
	Connections          int   `json:"connections"`
	QueuedTotal          int   `json:"queued_total"`
	PendingBatches       int   `json:"pending_batches"`
	PendingConfirmations int   `json:"pending_confirmations"`
	UnconfirmedTotal     int64 `json:"unconfirmed_total"`
	LedgerSize           int   `json:"ledger_size"`
	ActiveConversations  int   `json:"active_conversations"`
}
