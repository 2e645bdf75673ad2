package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/sellora/sellora/app/models"
	"gorm.io/gorm"
)

// Reconciler consumes asynchronous provider events and applies them
// idempotently to local state. Delivery is at-least-once and out-of-order;
// deduplication is keyed on the external event id, and each event is
// authoritative only for the fields it carries (last-write-wins on overlap).
type Reconciler struct {
	repo     Repository
	grace    *GracePeriodController
	prices   *PriceTable
	notifier Notifier
}

// NewReconciler wires the reconciler from its collaborators.
func NewReconciler(repo Repository, grace *GracePeriodController, prices *PriceTable, notifier Notifier) *Reconciler {
	return &Reconciler{repo: repo, grace: grace, prices: prices, notifier: notifier}
}

// NewReconcilerFromDB builds a reconciler with environment-configured
// collaborators.
func NewReconcilerFromDB(db *gorm.DB, notifier Notifier) *Reconciler {
	repo := NewRepository(db)
	provider := NewProviderClientFromEnv()
	return NewReconciler(repo, NewGracePeriodController(repo, provider, notifier), NewPriceTableFromEnv(), notifier)
}

// Process applies one decoded webhook event. Redelivery of an already
// processed event id is a no-op. Events without a seller reference are
// recorded and reported via ErrNoSellerRef.
func (r *Reconciler) Process(ctx context.Context, ev *WebhookEvent) error {
	if ev.SellerRef == "" {
		r.recordIgnored(ev, "missing seller reference")
		log.Warnf("[Reconciler] dropping event %s: no seller reference", ev.ID)
		return ErrNoSellerRef
	}

	seller, err := r.repo.GetSellerByPublicID(ev.SellerRef)
	if err != nil {
		r.recordIgnored(ev, "unknown seller reference "+ev.SellerRef)
		log.Warnf("[Reconciler] dropping event %s: unknown seller %s", ev.ID, ev.SellerRef)
		return ErrNoSellerRef
	}

	eventID := ev.ID
	record := &models.BillingEvent{
		SellerID:        seller.ID,
		EventType:       string(ev.Kind),
		ExternalEventID: &eventID,
		PayloadJSON:     string(ev.RawPayload),
	}
	created, stored, err := r.repo.CreateBillingEventIfNotExists(record)
	if err != nil {
		return err
	}
	if !created {
		// Duplicate delivery; all side effects already applied.
		log.Debugf("[Reconciler] skipping duplicate event %s", ev.ID)
		return nil
	}

	procErr := r.dispatch(ctx, seller.ID, ev)

	errMsg := ""
	if procErr != nil {
		errMsg = procErr.Error()
	}
	if err := r.repo.MarkBillingEventProcessed(stored.ID, errMsg); err != nil {
		log.Errorf("[Reconciler] failed to mark event %s processed: %v", ev.ID, err)
	}
	return procErr
}

func (r *Reconciler) dispatch(ctx context.Context, sellerID uint, ev *WebhookEvent) error {
	switch ev.Kind {
	case EventSubscriptionCreated, EventSubscriptionUpdated:
		return r.applySubscriptionState(sellerID, ev)
	case EventSubscriptionDeleted:
		return r.applySubscriptionDeleted(sellerID)
	case EventPaymentSucceeded:
		return r.applyPaymentSucceeded(ctx, sellerID)
	case EventPaymentFailed:
		return r.grace.Start(ctx, sellerID, DefaultGracePeriodDays)
	default:
		return fmt.Errorf("unhandled event kind %q", ev.Kind)
	}
}

// applySubscriptionState overwrites the local mirror with the fields the
// event carries. Fields the event omits keep their current value.
func (r *Reconciler) applySubscriptionState(sellerID uint, ev *WebhookEvent) error {
	_, err := r.repo.UpdateSubscriptionLocked(sellerID, func(cur *models.Subscription) error {
		if ev.Status != "" {
			cur.Status = normalizeProviderStatus(ev.Status)
			if cur.Status == models.SubscriptionStatusCanceled && cur.EndedAt == nil {
				// a terminal status carried on an update terminates the
				// subscription the same way a delete event does
				now := time.Now()
				cur.EndedAt = &now
				cur.GracePeriodStart = nil
				cur.GracePeriodEnd = nil
				cur.LastPaymentFailed = false
			}
		}
		if ev.PriceRef != "" {
			cur.PlanID = string(r.prices.PlanForPriceRef(ev.PriceRef))
		}
		if ev.CurrentPeriodStart != nil {
			cur.CurrentPeriodStart = ev.CurrentPeriodStart
		}
		if ev.CurrentPeriodEnd != nil {
			cur.CurrentPeriodEnd = ev.CurrentPeriodEnd
		}
		if ev.SubscriptionRef != "" {
			cur.ExternalSubscriptionRef = ev.SubscriptionRef
		}
		if ev.CancelAtPeriodEnd != nil {
			cur.CancelAtPeriodEnd = *ev.CancelAtPeriodEnd
		}
		return nil
	})
	return err
}

func (r *Reconciler) applySubscriptionDeleted(sellerID uint) error {
	_, err := r.repo.UpdateSubscriptionLocked(sellerID, func(cur *models.Subscription) error {
		now := time.Now()
		cur.Status = models.SubscriptionStatusCanceled
		cur.EndedAt = &now
		cur.GracePeriodStart = nil
		cur.GracePeriodEnd = nil
		cur.CancelAtPeriodEnd = false
		return nil
	})
	return err
}

func (r *Reconciler) applyPaymentSucceeded(ctx context.Context, sellerID uint) error {
	return r.grace.Clear(ctx, sellerID)
}

// recordIgnored appends an audit row for an event that could not be applied,
// keeping the external id so redeliveries of the same broken event dedup.
func (r *Reconciler) recordIgnored(ev *WebhookEvent, reason string) {
	eventID := ev.ID
	record := &models.BillingEvent{
		EventType:       models.BillingEventWebhookIgnored,
		ExternalEventID: &eventID,
		PayloadJSON:     string(ev.RawPayload),
		ProcessingError: reason,
	}
	if _, _, err := r.repo.CreateBillingEventIfNotExists(record); err != nil {
		log.Errorf("[Reconciler] failed to record ignored event %s: %v", ev.ID, err)
	}
}
