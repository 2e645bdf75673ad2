package models

import "time"

const (
	OrderStatusPending   = "pending"
	OrderStatusPaid      = "paid"
	OrderStatusShipped   = "shipped"
	OrderStatusCancelled = "cancelled"
)

// Order is a buyer order against a seller's store. Orders created within the
// current usage period count against the plan's order limit.
type Order struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	SellerID   uint      `gorm:"not null;index:idx_orders_seller_created,priority:1" json:"seller_id"`
	Seller     Seller    `gorm:"foreignKey:SellerID" json:"-"`
	BuyerEmail string    `gorm:"type:varchar(200);not null" json:"buyer_email"`
	TotalCents int64     `gorm:"not null;default:0" json:"total_cents"`
	Currency   string    `gorm:"type:varchar(3);not null;default:'EUR'" json:"currency"`
	Status     string    `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	CreatedAt  time.Time `gorm:"autoCreateTime;index:idx_orders_seller_created,priority:2" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
