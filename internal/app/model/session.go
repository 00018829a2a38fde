package model

import "time"

// ShopSession holds the offline Admin API access token of an installed shop.
type ShopSession struct {
	Shop        string    `gorm:"primaryKey;size:255"`
	AccessToken string    `gorm:"type:text;not null"`
	Scope       string    `gorm:"type:text"`
	CreatedAt   time.Time `gorm:"autoCreateTime"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime"`
}

func (ShopSession) TableName() string {
	return "shopify_sessions"
}
