package consts

const (
	UserExistsKey       = "notify:user:exists:"
	NotifyPreferenceKey = "notify:pref:"
	ListingOwnerKey     = "notify:listing:owner:"
)

const (
	MessageNotifyLock = "notify:msg:lock:"
)
