package billing

import (
	"context"
	"time"
)

// ProviderSubscription is the provider-agnostic shape returned by the
// external payment provider for create/update calls.
type ProviderSubscription struct {
	Ref                string
	Status             string
	CurrentPeriodStart *time.Time
	CurrentPeriodEnd   *time.Time
	PendingAuthToken   string
}

// PaymentProvider is the remote billing system. It is the source of truth for
// charges and subscription status; local state mirrors it.
type PaymentProvider interface {
	// CreateOrGetCustomer is idempotent by email: repeated calls for the same
	// seller return the same customer reference.
	CreateOrGetCustomer(ctx context.Context, sellerRef, email, name string) (string, error)
	CreateSubscription(ctx context.Context, customerRef, priceRef string, metadata map[string]string) (*ProviderSubscription, error)
	UpdateSubscriptionPrice(ctx context.Context, subscriptionRef, newPriceRef string, prorate bool) (*ProviderSubscription, error)
	CancelSubscription(ctx context.Context, subscriptionRef string, atPeriodEnd bool) (string, error)
}

// Notifier delivers billing notifications to sellers. Delivery is
// fire-and-forget; failures are the sink's concern.
type Notifier interface {
	Send(sellerID uint, kind string, payload map[string]interface{})
}
