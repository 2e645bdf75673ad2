package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	ProductStatusActive   = "active"
	ProductStatusArchived = "archived"
)

// Product is a listed item in a seller's store. Only active products count
// against the plan's product limit.
type Product struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	SellerID    uint           `gorm:"not null;index" json:"seller_id"`
	Seller      Seller         `gorm:"foreignKey:SellerID" json:"-"`
	Title       string         `gorm:"type:varchar(200);not null" json:"title"`
	Description string         `gorm:"type:text" json:"description"`
	PriceCents  int64          `gorm:"not null;default:0" json:"price_cents"`
	Currency    string         `gorm:"type:varchar(3);not null;default:'EUR'" json:"currency"`
	StorageMB   int64          `gorm:"not null;default:0" json:"storage_mb"`
	Status      string         `gorm:"type:varchar(20);not null;default:'active';index" json:"status"`
	CreatedAt   time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}
