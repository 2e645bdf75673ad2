package models

import "time"

const (
	PlanChangeTypeUpgrade   = "upgrade"
	PlanChangeTypeDowngrade = "downgrade"

	PlanChangeStatusCompleted = "completed"
	PlanChangeStatusScheduled = "scheduled"
)

// PlanChangeRequest records one completed or scheduled plan transition.
// Rows are immutable once written.
type PlanChangeRequest struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	SellerID       uint      `gorm:"not null;index" json:"seller_id"`
	SubscriptionID uint      `gorm:"not null;index" json:"subscription_id"`
	FromPlan       string    `gorm:"type:varchar(50);not null" json:"from_plan"`
	ToPlan         string    `gorm:"type:varchar(50);not null" json:"to_plan"`
	ChangeType     string    `gorm:"type:varchar(20);not null" json:"change_type"`
	Status         string    `gorm:"type:varchar(20);not null;default:'completed'" json:"status"`
	EffectiveDate  time.Time `gorm:"type:timestamp;not null" json:"effective_date"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
}
