package models

import (
	"time"

	"gorm.io/gorm"
)

// Notification kinds emitted by the billing and metering subsystems.
const (
	NotificationKindUsageWarning  = "usage_warning"
	NotificationKindLimitExceeded = "limit_exceeded"
	NotificationKindGraceStarted  = "grace_period_started"
	NotificationKindGraceEnded    = "grace_period_ended"
)

type Notification struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	SellerID  uint           `gorm:"index" json:"seller_id"`
	Seller    Seller         `gorm:"foreignKey:SellerID" json:"seller,omitempty"`
	Kind      string         `gorm:"type:varchar(50);index" json:"kind" validate:"oneof=usage_warning limit_exceeded grace_period_started grace_period_ended"`
	Payload   string         `gorm:"type:text" json:"payload"`
	IsRead    bool           `gorm:"default:false" json:"is_read"`
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// MarkAsRead marks a notification as seen by the seller.
func (n *Notification) MarkAsRead(db *gorm.DB) error {
	n.IsRead = true
	return db.Model(n).Update("is_read", true).Error
}

// CreateNotification persists a new notification for a seller.
func CreateNotification(db *gorm.DB, sellerID uint, kind string, payload string) error {
	notification := Notification{
		SellerID: sellerID,
		Kind:     kind,
		Payload:  payload,
		IsRead:   false,
	}

	return db.Create(&notification).Error
}
