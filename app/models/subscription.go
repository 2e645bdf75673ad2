package models

import "time"

const (
	SubscriptionStatusTrialing   = "trialing"
	SubscriptionStatusActive     = "active"
	SubscriptionStatusPastDue    = "past_due"
	SubscriptionStatusCanceled   = "canceled"
	SubscriptionStatusIncomplete = "incomplete"
)

// Subscription mirrors the external provider's subscription for a seller and
// is the local source of truth for the effective plan. Exactly one live row
// exists per seller; a subscription is never deleted, only canceled.
type Subscription struct {
	ID                      uint       `gorm:"primaryKey" json:"id"`
	SellerID                uint       `gorm:"not null;uniqueIndex" json:"seller_id"`
	PlanID                  string     `gorm:"type:varchar(50);not null;default:'free';index" json:"plan_id"`
	Status                  string     `gorm:"type:varchar(32);not null;default:'active';index" json:"status"`
	CurrentPeriodStart      *time.Time `gorm:"type:timestamp;default:null" json:"current_period_start,omitempty"`
	CurrentPeriodEnd        *time.Time `gorm:"type:timestamp;default:null" json:"current_period_end,omitempty"`
	CancelAtPeriodEnd       bool       `gorm:"default:false" json:"cancel_at_period_end"`
	GracePeriodStart        *time.Time `gorm:"type:timestamp;default:null" json:"grace_period_start,omitempty"`
	GracePeriodEnd          *time.Time `gorm:"type:timestamp;default:null" json:"grace_period_end,omitempty"`
	ExternalCustomerRef     string     `gorm:"type:varchar(191);default:'';index" json:"external_customer_ref"`
	ExternalSubscriptionRef string     `gorm:"type:varchar(191);default:'';index" json:"external_subscription_ref"`
	LastPaymentFailed       bool       `gorm:"default:false" json:"last_payment_failed"`
	EndedAt                 *time.Time `gorm:"type:timestamp;default:null" json:"ended_at,omitempty"`
	CreatedAt               time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt               time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsLive reports whether the subscription still represents an ongoing
// relationship with the seller (anything but terminal cancellation).
func (s *Subscription) IsLive() bool {
	return s.Status != SubscriptionStatusCanceled
}

// GraceActive reports whether a grace period is currently set.
func (s *Subscription) GraceActive() bool {
	return s.GracePeriodStart != nil && s.GracePeriodEnd != nil
}
