package billing

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/sellora/sellora/app/models"
	"github.com/sellora/sellora/internal/pkg/plancatalog"
)

// DefaultGracePeriodDays is the continuation-of-service window after a
// payment failure before the forced downgrade.
const DefaultGracePeriodDays = 7

// GracePeriodController manages the bounded continuation-of-service window
// after a payment failure. Expiry is the sole automatic-downgrade path for
// non-payment.
type GracePeriodController struct {
	repo     Repository
	provider PaymentProvider
	notifier Notifier
}

// NewGracePeriodController wires the controller from its collaborators.
func NewGracePeriodController(repo Repository, provider PaymentProvider, notifier Notifier) *GracePeriodController {
	return &GracePeriodController{repo: repo, provider: provider, notifier: notifier}
}

// Start opens a grace period for a seller after a payment failure. Repeated
// calls while a grace period is active are a no-op, so a string of failed
// retries during one outage never extends the window.
func (g *GracePeriodController) Start(ctx context.Context, sellerID uint, days int) error {
	_ = ctx
	if days <= 0 {
		days = DefaultGracePeriodDays
	}

	started := false
	var graceEnd time.Time

	sub, err := g.repo.UpdateSubscriptionLocked(sellerID, func(cur *models.Subscription) error {
		if cur.GraceActive() {
			return nil
		}
		now := time.Now()
		end := now.Add(time.Duration(days) * 24 * time.Hour)
		cur.GracePeriodStart = &now
		cur.GracePeriodEnd = &end
		cur.Status = models.SubscriptionStatusPastDue
		cur.LastPaymentFailed = true
		started = true
		graceEnd = end
		return nil
	})
	if err != nil {
		return err
	}
	if !started {
		return nil
	}

	g.appendEvent(sub, models.BillingEventGraceStarted, map[string]interface{}{
		"grace_period_end": graceEnd.UTC().Format(time.RFC3339),
		"days":             days,
	})
	g.notifier.Send(sellerID, models.NotificationKindGraceStarted, map[string]interface{}{
		"grace_period_end": graceEnd.UTC().Format(time.RFC3339),
	})
	log.Infof("[Grace] started grace period for seller %d until %s", sellerID, graceEnd.UTC().Format(time.RFC3339))
	return nil
}

// Clear removes an active grace period after a successful payment. A payment
// success arriving after the subscription already terminated is ignored;
// canceled is terminal.
func (g *GracePeriodController) Clear(ctx context.Context, sellerID uint) error {
	_ = ctx
	_, err := g.repo.UpdateSubscriptionLocked(sellerID, func(cur *models.Subscription) error {
		if !cur.IsLive() {
			return nil
		}
		cur.GracePeriodStart = nil
		cur.GracePeriodEnd = nil
		cur.Status = models.SubscriptionStatusActive
		cur.LastPaymentFailed = false
		return nil
	})
	return err
}

// End force-downgrades a seller whose grace period elapsed without a payment
// success. The external subscription is canceled immediately, the local plan
// drops to free and the subscription terminates.
func (g *GracePeriodController) End(ctx context.Context, sellerID uint) error {
	sub, err := g.repo.GetSubscriptionBySeller(sellerID)
	if err != nil {
		return err
	}
	if !sub.GraceActive() {
		return errors.New("no active grace period")
	}

	if sub.ExternalSubscriptionRef != "" {
		if _, err := g.provider.CancelSubscription(ctx, sub.ExternalSubscriptionRef, false); err != nil {
			return err
		}
	}

	updated, err := g.repo.UpdateSubscriptionLocked(sellerID, func(cur *models.Subscription) error {
		now := time.Now()
		cur.PlanID = string(plancatalog.PlanFree)
		cur.Status = models.SubscriptionStatusCanceled
		cur.EndedAt = &now
		cur.GracePeriodStart = nil
		cur.GracePeriodEnd = nil
		cur.CancelAtPeriodEnd = false
		return nil
	})
	if err != nil {
		return err
	}

	g.appendEvent(updated, models.BillingEventGraceExpired, map[string]interface{}{
		"forced_plan": string(plancatalog.PlanFree),
	})
	g.notifier.Send(sellerID, models.NotificationKindGraceEnded, map[string]interface{}{
		"forced_plan": string(plancatalog.PlanFree),
	})
	log.Infof("[Grace] grace period expired for seller %d, downgraded to free", sellerID)
	return nil
}

// ListExpired returns the sellers whose grace window has passed without a
// clearing payment event. Driven by the periodic sweep.
func (g *GracePeriodController) ListExpired(now time.Time) ([]uint, error) {
	return g.repo.ListExpiredGraceSellerIDs(now)
}

func (g *GracePeriodController) appendEvent(sub *models.Subscription, eventType string, payload map[string]interface{}) {
	buf, _ := json.Marshal(payload)
	event := &models.BillingEvent{
		SellerID:       sub.SellerID,
		SubscriptionID: &sub.ID,
		EventType:      eventType,
		PayloadJSON:    string(buf),
	}
	if err := g.repo.AppendBillingEvent(event); err != nil {
		log.Errorf("[Grace] failed to append %s event for seller %d: %v", eventType, sub.SellerID, err)
	}
}
