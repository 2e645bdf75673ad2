package billing

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/sellora/sellora/app/models"
	"github.com/sellora/sellora/internal/pkg/plancatalog"
	"gorm.io/gorm"
)

// ErrAlreadySubscribed is returned when a seller already has a live
// subscription and a second one is requested.
var ErrAlreadySubscribed = errors.New("seller already has a live subscription")

// ErrSubscriptionCanceled is returned for mutations on a terminally canceled
// subscription.
var ErrSubscriptionCanceled = errors.New("subscription is canceled")

// Service owns the subscription lifecycle: create, change and cancel, each
// mirrored to the external payment provider before any local write.
type Service struct {
	repo     Repository
	provider PaymentProvider
	prices   *PriceTable
}

// NewService creates a subscription service from injected collaborators.
func NewService(repo Repository, provider PaymentProvider, prices *PriceTable) *Service {
	return &Service{repo: repo, provider: provider, prices: prices}
}

// NewServiceFromDB creates a subscription service from a GORM DB handle with
// the environment-configured provider client.
func NewServiceFromDB(db *gorm.DB) *Service {
	return NewService(NewRepository(db), NewProviderClientFromEnv(), NewPriceTableFromEnv())
}

// normalizeProviderStatus maps provider status strings onto the local status
// set. Unknown statuses are treated as incomplete (non-billable).
func normalizeProviderStatus(status string) string {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case models.SubscriptionStatusActive:
		return models.SubscriptionStatusActive
	case models.SubscriptionStatusTrialing:
		return models.SubscriptionStatusTrialing
	case models.SubscriptionStatusPastDue:
		return models.SubscriptionStatusPastDue
	case models.SubscriptionStatusCanceled, "cancelled":
		return models.SubscriptionStatusCanceled
	default:
		return models.SubscriptionStatusIncomplete
	}
}

// CreateSubscription opens a subscription for a seller. Free plans are
// local-only; paid plans are created at the provider first and persisted only
// on success. The returned token is non-empty when the provider requires
// additional payment authentication.
func (s *Service) CreateSubscription(ctx context.Context, sellerID uint, planID string, paymentMethodRef string) (*models.Subscription, string, error) {
	seller, err := s.repo.GetSellerByID(sellerID)
	if err != nil {
		return nil, "", err
	}

	if existing, err := s.repo.GetSubscriptionBySeller(sellerID); err == nil && existing.IsLive() {
		return nil, "", ErrAlreadySubscribed
	} else if err != nil && !errors.Is(err, ErrSubscriptionNotFound) {
		return nil, "", err
	}

	plan := plancatalog.NormalizePlan(planID)

	if !plancatalog.IsPaid(string(plan)) {
		sub := &models.Subscription{
			SellerID: sellerID,
			PlanID:   string(plan),
			Status:   models.SubscriptionStatusActive,
		}
		if err := s.repo.CreateSubscription(sub); err != nil {
			return nil, "", err
		}
		return sub, "", nil
	}

	priceRef, ok := s.prices.PriceRefFor(string(plan))
	if !ok {
		return nil, "", errors.New("no provider price configured for plan " + string(plan))
	}

	customerRef, err := s.provider.CreateOrGetCustomer(ctx, seller.PublicID, seller.Email, seller.Name)
	if err != nil {
		return nil, "", err
	}

	ps, err := s.provider.CreateSubscription(ctx, customerRef, priceRef, map[string]string{
		"seller_ref":         seller.PublicID,
		"payment_method_ref": paymentMethodRef,
	})
	if err != nil {
		return nil, "", err
	}

	sub := &models.Subscription{
		SellerID:                sellerID,
		PlanID:                  string(plan),
		Status:                  normalizeProviderStatus(ps.Status),
		CurrentPeriodStart:      ps.CurrentPeriodStart,
		CurrentPeriodEnd:        ps.CurrentPeriodEnd,
		ExternalCustomerRef:     customerRef,
		ExternalSubscriptionRef: ps.Ref,
	}
	if err := s.repo.CreateSubscription(sub); err != nil {
		return nil, "", err
	}

	s.appendEvent(sub, models.BillingEventSubscriptionCreated, map[string]interface{}{
		"plan":      string(plan),
		"price_ref": priceRef,
	})

	return sub, ps.PendingAuthToken, nil
}

// ChangeSubscription moves a seller to a new plan. Downgrade to free cancels
// the external subscription; paid-to-paid changes update the external price
// with proration only when immediate. Every successful change appends one
// immutable PlanChangeRequest.
func (s *Service) ChangeSubscription(ctx context.Context, sellerID uint, newPlanID string, effectiveImmediately bool) (*models.Subscription, error) {
	sub, err := s.repo.GetSubscriptionBySeller(sellerID)
	if err != nil {
		return nil, err
	}
	if !sub.IsLive() {
		return nil, ErrSubscriptionCanceled
	}

	fromPlan := plancatalog.NormalizePlan(sub.PlanID)
	toPlan := plancatalog.NormalizePlan(newPlanID)

	if !plancatalog.IsPaid(string(toPlan)) {
		return s.downgradeToFree(ctx, sub, fromPlan, effectiveImmediately)
	}
	return s.changeToPaidPlan(ctx, sub, fromPlan, toPlan, effectiveImmediately)
}

func (s *Service) downgradeToFree(ctx context.Context, sub *models.Subscription, fromPlan plancatalog.Plan, immediate bool) (*models.Subscription, error) {
	if sub.ExternalSubscriptionRef != "" {
		if _, err := s.provider.CancelSubscription(ctx, sub.ExternalSubscriptionRef, !immediate); err != nil {
			return nil, err
		}
	}

	effectiveDate := time.Now()
	status := models.PlanChangeStatusScheduled
	if immediate {
		status = models.PlanChangeStatusCompleted
	} else if sub.CurrentPeriodEnd != nil {
		effectiveDate = *sub.CurrentPeriodEnd
	}

	updated, err := s.repo.UpdateSubscriptionLocked(sub.SellerID, func(cur *models.Subscription) error {
		if immediate {
			now := time.Now()
			cur.PlanID = string(plancatalog.PlanFree)
			cur.Status = models.SubscriptionStatusCanceled
			cur.EndedAt = &now
			cur.GracePeriodStart = nil
			cur.GracePeriodEnd = nil
			cur.CancelAtPeriodEnd = false
		} else {
			cur.CancelAtPeriodEnd = true
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := s.recordPlanChange(updated, string(fromPlan), string(plancatalog.PlanFree), status, effectiveDate); err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *Service) changeToPaidPlan(ctx context.Context, sub *models.Subscription, fromPlan, toPlan plancatalog.Plan, immediate bool) (*models.Subscription, error) {
	priceRef, ok := s.prices.PriceRefFor(string(toPlan))
	if !ok {
		return nil, errors.New("no provider price configured for plan " + string(toPlan))
	}

	var ps *ProviderSubscription
	var customerRef string
	var err error

	if sub.ExternalSubscriptionRef == "" {
		// Seller was local-only so far; lazily create the external side.
		seller, serr := s.repo.GetSellerByID(sub.SellerID)
		if serr != nil {
			return nil, serr
		}
		customerRef, err = s.provider.CreateOrGetCustomer(ctx, seller.PublicID, seller.Email, seller.Name)
		if err != nil {
			return nil, err
		}
		ps, err = s.provider.CreateSubscription(ctx, customerRef, priceRef, map[string]string{
			"seller_ref": seller.PublicID,
		})
	} else {
		ps, err = s.provider.UpdateSubscriptionPrice(ctx, sub.ExternalSubscriptionRef, priceRef, immediate)
	}
	if err != nil {
		return nil, err
	}

	updated, uerr := s.repo.UpdateSubscriptionLocked(sub.SellerID, func(cur *models.Subscription) error {
		cur.PlanID = string(toPlan)
		cur.Status = normalizeProviderStatus(ps.Status)
		cur.CurrentPeriodStart = ps.CurrentPeriodStart
		cur.CurrentPeriodEnd = ps.CurrentPeriodEnd
		cur.CancelAtPeriodEnd = false
		if customerRef != "" {
			cur.ExternalCustomerRef = customerRef
		}
		if ps.Ref != "" {
			cur.ExternalSubscriptionRef = ps.Ref
		}
		return nil
	})
	if uerr != nil {
		return nil, uerr
	}

	if err := s.recordPlanChange(updated, string(fromPlan), string(toPlan), models.PlanChangeStatusCompleted, time.Now()); err != nil {
		return nil, err
	}
	return updated, nil
}

// CancelSubscription cancels per caller intent: immediately, or at the end of
// the current period.
func (s *Service) CancelSubscription(ctx context.Context, sellerID uint, immediate bool) (*models.Subscription, error) {
	sub, err := s.repo.GetSubscriptionBySeller(sellerID)
	if err != nil {
		return nil, err
	}
	if !sub.IsLive() {
		return nil, ErrSubscriptionCanceled
	}

	if sub.ExternalSubscriptionRef != "" {
		if _, err := s.provider.CancelSubscription(ctx, sub.ExternalSubscriptionRef, !immediate); err != nil {
			return nil, err
		}
	}

	updated, err := s.repo.UpdateSubscriptionLocked(sellerID, func(cur *models.Subscription) error {
		if immediate {
			now := time.Now()
			cur.Status = models.SubscriptionStatusCanceled
			cur.EndedAt = &now
			cur.GracePeriodStart = nil
			cur.GracePeriodEnd = nil
			cur.CancelAtPeriodEnd = false
		} else {
			cur.CancelAtPeriodEnd = true
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.appendEvent(updated, models.BillingEventSubscriptionDeleted, map[string]interface{}{
		"immediate": immediate,
	})
	return updated, nil
}

// GetSubscription returns the seller's subscription.
func (s *Service) GetSubscription(sellerID uint) (*models.Subscription, error) {
	return s.repo.GetSubscriptionBySeller(sellerID)
}

func (s *Service) recordPlanChange(sub *models.Subscription, fromPlan, toPlan, status string, effectiveDate time.Time) error {
	changeType := models.PlanChangeTypeDowngrade
	if plancatalog.Rank(toPlan) > plancatalog.Rank(fromPlan) {
		changeType = models.PlanChangeTypeUpgrade
	}

	req := &models.PlanChangeRequest{
		SellerID:       sub.SellerID,
		SubscriptionID: sub.ID,
		FromPlan:       fromPlan,
		ToPlan:         toPlan,
		ChangeType:     changeType,
		Status:         status,
		EffectiveDate:  effectiveDate,
	}
	if err := s.repo.CreatePlanChangeRequest(req); err != nil {
		return err
	}

	s.appendEvent(sub, models.BillingEventPlanChanged, map[string]interface{}{
		"from_plan":   fromPlan,
		"to_plan":     toPlan,
		"change_type": changeType,
	})
	return nil
}

func (s *Service) appendEvent(sub *models.Subscription, eventType string, payload map[string]interface{}) {
	buf, _ := json.Marshal(payload)
	event := &models.BillingEvent{
		SellerID:       sub.SellerID,
		SubscriptionID: &sub.ID,
		EventType:      eventType,
		PayloadJSON:    string(buf),
	}
	if err := s.repo.AppendBillingEvent(event); err != nil {
		log.Errorf("[Billing] failed to append %s event for seller %d: %v", eventType, sub.SellerID, err)
	}
}
