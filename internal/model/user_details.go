package model

type UserDetail struct {
	UserID    uint64 `gorm:"primaryKey"`
	Nickname  string `gorm:"type:varchar(50);not null"`
	AvatarURL string `gorm:"type:varchar(512);column:avatar_url"`
}

func (UserDetail) TableName() string {
	return "user_detail"
}
