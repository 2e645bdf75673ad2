package models

import "time"

// UsageRecord aggregates a seller's consumption for one billing period.
// One row exists per seller and period start, updated in place by the meter.
type UsageRecord struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	SellerID        uint      `gorm:"not null;index:ux_usage_records_seller_period,unique,priority:1" json:"seller_id"`
	PeriodStart     time.Time `gorm:"type:timestamp;not null;index:ux_usage_records_seller_period,unique,priority:2" json:"period_start"`
	PeriodEnd       time.Time `gorm:"type:timestamp;not null" json:"period_end"`
	ProductsUsed    int64     `gorm:"not null;default:0" json:"products_used"`
	OrdersProcessed int64     `gorm:"not null;default:0" json:"orders_processed"`
	StorageUsedMB   int64     `gorm:"not null;default:0" json:"storage_used_mb"`
	LimitExceeded   bool      `gorm:"default:false;index" json:"limit_exceeded"`
	WarningsSent    int       `gorm:"not null;default:0" json:"warnings_sent"`
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
