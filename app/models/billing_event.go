package models

import "time"

// Billing event types recorded in the audit log.
const (
	BillingEventSubscriptionCreated = "subscription_created"
	BillingEventSubscriptionUpdated = "subscription_updated"
	BillingEventSubscriptionDeleted = "subscription_deleted"
	BillingEventPaymentSucceeded    = "payment_succeeded"
	BillingEventPaymentFailed       = "payment_failed"
	BillingEventPlanChanged         = "plan_changed"
	BillingEventGraceStarted        = "grace_period_started"
	BillingEventGraceExpired        = "grace_period_expired"
	BillingEventWebhookIgnored      = "webhook_ignored"
)

// BillingEvent is the append-only audit log for everything that touched
// billing state. ExternalEventID is unique when present and carries the
// webhook deduplication guarantee.
type BillingEvent struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	SellerID        uint       `gorm:"not null;index" json:"seller_id"`
	SubscriptionID  *uint      `gorm:"default:null;index" json:"subscription_id,omitempty"`
	EventType       string     `gorm:"type:varchar(100);not null;index" json:"event_type"`
	ExternalEventID *string    `gorm:"type:varchar(191);default:null;uniqueIndex" json:"external_event_id,omitempty"`
	PayloadJSON     string     `gorm:"type:longtext" json:"payload_json"`
	ProcessedAt     *time.Time `gorm:"type:timestamp;default:null" json:"processed_at,omitempty"`
	ProcessingError string     `gorm:"type:text" json:"processing_error"`
	CreatedAt       time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
}
