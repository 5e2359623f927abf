package model

import (
	"time"
)

// Listing 车源，通知服务只读取归属与标题
type Listing struct {
	ID        uint64 `gorm:"primaryKey"`
	UserID    uint64 `gorm:"index:idx_listing_user"` // 卖家
	Title     string `gorm:"type:varchar(120);not null"`
	Status    string `gorm:"type:varchar(20);index:idx_listing_status"`
	IsDelete  bool   `gorm:"type:tinyint(1);default:0"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Listing) TableName() string {
	return "listings"
}
