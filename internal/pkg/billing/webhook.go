package billing

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// EventKind is the closed set of provider webhook event categories. Dispatch
// over kinds is exhaustive; an unknown kind is a decode-time error, not a
// silently-ignored default branch.
type EventKind string

const (
	EventSubscriptionCreated EventKind = "subscription.created"
	EventSubscriptionUpdated EventKind = "subscription.updated"
	EventSubscriptionDeleted EventKind = "subscription.deleted"
	EventPaymentSucceeded    EventKind = "invoice.payment_succeeded"
	EventPaymentFailed       EventKind = "invoice.payment_failed"
)

// ParseEventKind maps a wire event type onto the closed kind set.
func ParseEventKind(s string) (EventKind, bool) {
	switch EventKind(strings.ToLower(strings.TrimSpace(s))) {
	case EventSubscriptionCreated:
		return EventSubscriptionCreated, true
	case EventSubscriptionUpdated:
		return EventSubscriptionUpdated, true
	case EventSubscriptionDeleted:
		return EventSubscriptionDeleted, true
	case EventPaymentSucceeded:
		return EventPaymentSucceeded, true
	case EventPaymentFailed:
		return EventPaymentFailed, true
	default:
		return "", false
	}
}

// WebhookEvent is the typed envelope a raw provider payload decodes into.
// SellerRef is mandatory at this boundary; events without one are reported
// via ErrNoSellerRef by the reconciler.
type WebhookEvent struct {
	ID   string    `validate:"required"`
	Kind EventKind `validate:"required"`

	SellerRef string

	SubscriptionRef    string
	Status             string
	PriceRef           string
	CurrentPeriodStart *time.Time
	CurrentPeriodEnd   *time.Time

	// CancelAtPeriodEnd is nil when the payload omits the field, so a
	// partial event never resets a scheduled cancellation.
	CancelAtPeriodEnd *bool

	RawPayload []byte
}

var validate = validator.New()

type rawWebhookPayload struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Subscription struct {
			ID                 string `json:"id"`
			Status             string `json:"status"`
			Price              string `json:"price"`
			CurrentPeriodStart int64  `json:"current_period_start"`
			CurrentPeriodEnd   int64  `json:"current_period_end"`
			CancelAtPeriodEnd  *bool  `json:"cancel_at_period_end"`
		} `json:"subscription"`
		Invoice struct {
			ID           string `json:"id"`
			Subscription string `json:"subscription"`
		} `json:"invoice"`
	} `json:"data"`
	Metadata map[string]string `json:"metadata"`
}

// DecodeWebhookEvent parses and validates a raw provider payload.
func DecodeWebhookEvent(payload []byte) (*WebhookEvent, error) {
	var raw rawWebhookPayload
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, fmt.Errorf("malformed webhook payload: %w", err)
	}

	kind, ok := ParseEventKind(raw.Type)
	if !ok {
		return nil, fmt.Errorf("unsupported webhook event type: %q", raw.Type)
	}

	ev := &WebhookEvent{
		ID:                strings.TrimSpace(raw.ID),
		Kind:              kind,
		SellerRef:         strings.TrimSpace(raw.Metadata["seller_ref"]),
		SubscriptionRef:   strings.TrimSpace(raw.Data.Subscription.ID),
		Status:            strings.ToLower(strings.TrimSpace(raw.Data.Subscription.Status)),
		PriceRef:          strings.TrimSpace(raw.Data.Subscription.Price),
		CancelAtPeriodEnd: raw.Data.Subscription.CancelAtPeriodEnd,
		RawPayload:        payload,
	}
	if raw.Data.Subscription.CurrentPeriodStart > 0 {
		t := time.Unix(raw.Data.Subscription.CurrentPeriodStart, 0).UTC()
		ev.CurrentPeriodStart = &t
	}
	if raw.Data.Subscription.CurrentPeriodEnd > 0 {
		t := time.Unix(raw.Data.Subscription.CurrentPeriodEnd, 0).UTC()
		ev.CurrentPeriodEnd = &t
	}
	if ev.SubscriptionRef == "" {
		ev.SubscriptionRef = strings.TrimSpace(raw.Data.Invoice.Subscription)
	}

	if err := validate.Struct(ev); err != nil {
		return nil, fmt.Errorf("invalid webhook envelope: %w", err)
	}
	return ev, nil
}
