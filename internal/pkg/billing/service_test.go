package billing

import (
	"context"
	"errors"
	"testing"

	"github.com/sellora/sellora/app/models"
)

func newTestService() (*Service, *fakeRepository, *fakeProvider) {
	repo := newFakeRepository()
	provider := newFakeProvider()
	svc := NewService(repo, provider, testPriceTable())
	return svc, repo, provider
}

func TestCreateSubscription_FreeIsLocalOnly(t *testing.T) {
	svc, repo, provider := newTestService()
	repo.addSeller(1, "pub-1", "a@example.com", "Alice")

	sub, token, err := svc.CreateSubscription(context.Background(), 1, "free", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if token != "" {
		t.Fatalf("free plan should not need payment auth, got token %q", token)
	}
	if sub.PlanID != "free" || sub.Status != models.SubscriptionStatusActive {
		t.Fatalf("unexpected subscription state: plan=%s status=%s", sub.PlanID, sub.Status)
	}
	if provider.createCustomerCalls != 0 || provider.createSubCalls != 0 {
		t.Fatalf("free plan must not touch the provider")
	}
}

func TestCreateSubscription_PaidMirrorsProvider(t *testing.T) {
	svc, repo, provider := newTestService()
	repo.addSeller(1, "pub-1", "a@example.com", "Alice")
	provider.sub.PendingAuthToken = "auth_tok"

	sub, token, err := svc.CreateSubscription(context.Background(), 1, "pro", "pm_1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if token != "auth_tok" {
		t.Fatalf("expected pending auth token to surface, got %q", token)
	}
	if sub.PlanID != "pro" {
		t.Fatalf("expected plan pro, got %s", sub.PlanID)
	}
	if sub.ExternalCustomerRef != "cus_123" || sub.ExternalSubscriptionRef != "sub_123" {
		t.Fatalf("provider refs not mirrored: %q %q", sub.ExternalCustomerRef, sub.ExternalSubscriptionRef)
	}
	if provider.lastMetadata["seller_ref"] != "pub-1" {
		t.Fatalf("seller_ref metadata missing, got %v", provider.lastMetadata)
	}
	if got := repo.eventsOfType(models.BillingEventSubscriptionCreated); len(got) != 1 {
		t.Fatalf("expected one subscription_created audit event, got %d", len(got))
	}
}

func TestCreateSubscription_ProviderFailureLeavesNoLocalState(t *testing.T) {
	svc, repo, provider := newTestService()
	repo.addSeller(1, "pub-1", "a@example.com", "Alice")
	provider.failWith = &ProviderError{Op: "create_subscription", StatusCode: 502, Err: errors.New("bad gateway")}

	_, _, err := svc.CreateSubscription(context.Background(), 1, "pro", "")
	if err == nil {
		t.Fatalf("expected provider failure to propagate")
	}
	if !IsProviderError(err) {
		t.Fatalf("expected a provider error, got %v", err)
	}
	if _, ok := repo.subs[1]; ok {
		t.Fatalf("no subscription row may exist after a failed provider call")
	}
}

func TestCreateSubscription_RejectsSecondLiveSubscription(t *testing.T) {
	svc, repo, _ := newTestService()
	repo.addSeller(1, "pub-1", "a@example.com", "Alice")

	if _, _, err := svc.CreateSubscription(context.Background(), 1, "free", ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, _, err := svc.CreateSubscription(context.Background(), 1, "pro", "")
	if !errors.Is(err, ErrAlreadySubscribed) {
		t.Fatalf("expected ErrAlreadySubscribed, got %v", err)
	}
}

func TestChangeSubscription_UpgradeFreeToPaid(t *testing.T) {
	svc, repo, provider := newTestService()
	repo.addSeller(1, "pub-1", "a@example.com", "Alice")
	if _, _, err := svc.CreateSubscription(context.Background(), 1, "free", ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sub, err := svc.ChangeSubscription(context.Background(), 1, "pro", true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sub.PlanID != "pro" {
		t.Fatalf("expected plan pro, got %s", sub.PlanID)
	}
	// local-only seller gets the external side created lazily
	if provider.createSubCalls != 1 || provider.updatePriceCalls != 0 {
		t.Fatalf("expected a lazy external create, got create=%d update=%d", provider.createSubCalls, provider.updatePriceCalls)
	}
	if len(repo.planChanges) != 1 {
		t.Fatalf("expected one plan change record, got %d", len(repo.planChanges))
	}
	pc := repo.planChanges[0]
	if pc.ChangeType != models.PlanChangeTypeUpgrade || pc.FromPlan != "free" || pc.ToPlan != "pro" {
		t.Fatalf("unexpected plan change record: %+v", pc)
	}
}

func TestChangeSubscription_PaidToPaidUpdatesPrice(t *testing.T) {
	svc, repo, provider := newTestService()
	repo.addSeller(1, "pub-1", "a@example.com", "Alice")
	if _, _, err := svc.CreateSubscription(context.Background(), 1, "pro", ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := svc.ChangeSubscription(context.Background(), 1, "business", true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if provider.updatePriceCalls != 1 {
		t.Fatalf("expected one price update, got %d", provider.updatePriceCalls)
	}
	if !provider.lastProrate {
		t.Fatalf("immediate change must prorate")
	}
	if sub := mustSub(t, repo, 1); sub.PlanID != "business" {
		t.Fatalf("expected plan business, got %s", sub.PlanID)
	}
}

func TestChangeSubscription_ProviderFailureKeepsOldPlan(t *testing.T) {
	svc, repo, provider := newTestService()
	repo.addSeller(1, "pub-1", "a@example.com", "Alice")
	if _, _, err := svc.CreateSubscription(context.Background(), 1, "pro", ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	provider.failWith = errors.New("provider down")

	if _, err := svc.ChangeSubscription(context.Background(), 1, "business", true); err == nil {
		t.Fatalf("expected provider failure to propagate")
	}
	if sub := mustSub(t, repo, 1); sub.PlanID != "pro" {
		t.Fatalf("plan must stay pro after a failed change, got %s", sub.PlanID)
	}
	if len(repo.planChanges) != 0 {
		t.Fatalf("no plan change may be recorded for a failed change")
	}
}

func TestChangeSubscription_DowngradeToFreeImmediate(t *testing.T) {
	svc, repo, provider := newTestService()
	repo.addSeller(1, "pub-1", "a@example.com", "Alice")
	if _, _, err := svc.CreateSubscription(context.Background(), 1, "business", ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sub, err := svc.ChangeSubscription(context.Background(), 1, "free", true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if provider.cancelCalls != 1 || provider.lastAtPeriodEnd {
		t.Fatalf("immediate downgrade must cancel externally right away")
	}
	if sub.PlanID != "free" || sub.Status != models.SubscriptionStatusCanceled || sub.EndedAt == nil {
		t.Fatalf("unexpected state after immediate downgrade: %+v", sub)
	}
	if len(repo.planChanges) != 1 || repo.planChanges[0].ChangeType != models.PlanChangeTypeDowngrade {
		t.Fatalf("expected one downgrade record, got %+v", repo.planChanges)
	}
	if repo.planChanges[0].Status != models.PlanChangeStatusCompleted {
		t.Fatalf("immediate downgrade must be completed, got %s", repo.planChanges[0].Status)
	}
}

func TestChangeSubscription_DowngradeToFreeAtPeriodEnd(t *testing.T) {
	svc, repo, provider := newTestService()
	repo.addSeller(1, "pub-1", "a@example.com", "Alice")
	if _, _, err := svc.CreateSubscription(context.Background(), 1, "pro", ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sub, err := svc.ChangeSubscription(context.Background(), 1, "free", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !provider.lastAtPeriodEnd {
		t.Fatalf("scheduled downgrade must cancel externally at period end")
	}
	if !sub.CancelAtPeriodEnd {
		t.Fatalf("expected cancel_at_period_end flag")
	}
	if sub.PlanID != "pro" || sub.Status != models.SubscriptionStatusActive {
		t.Fatalf("plan must stay pro until the period ends, got plan=%s status=%s", sub.PlanID, sub.Status)
	}
	if repo.planChanges[0].Status != models.PlanChangeStatusScheduled {
		t.Fatalf("expected a scheduled downgrade, got %s", repo.planChanges[0].Status)
	}
}

func TestCancelSubscription_Immediate(t *testing.T) {
	svc, repo, provider := newTestService()
	repo.addSeller(1, "pub-1", "a@example.com", "Alice")
	if _, _, err := svc.CreateSubscription(context.Background(), 1, "pro", ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sub, err := svc.CancelSubscription(context.Background(), 1, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if provider.cancelCalls != 1 {
		t.Fatalf("expected one provider cancel, got %d", provider.cancelCalls)
	}
	if sub.Status != models.SubscriptionStatusCanceled || sub.EndedAt == nil {
		t.Fatalf("unexpected state after cancel: %+v", sub)
	}

	// a canceled subscription rejects further mutations
	if _, err := svc.CancelSubscription(context.Background(), 1, true); !errors.Is(err, ErrSubscriptionCanceled) {
		t.Fatalf("expected ErrSubscriptionCanceled, got %v", err)
	}
	if _, err := svc.ChangeSubscription(context.Background(), 1, "pro", true); !errors.Is(err, ErrSubscriptionCanceled) {
		t.Fatalf("expected ErrSubscriptionCanceled, got %v", err)
	}
}

func TestNormalizeProviderStatus(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "active", want: models.SubscriptionStatusActive},
		{in: "Trialing", want: models.SubscriptionStatusTrialing},
		{in: "past_due", want: models.SubscriptionStatusPastDue},
		{in: "cancelled", want: models.SubscriptionStatusCanceled},
		{in: "canceled", want: models.SubscriptionStatusCanceled},
		{in: "paused", want: models.SubscriptionStatusIncomplete},
		{in: "", want: models.SubscriptionStatusIncomplete},
	}

	for _, tt := range tests {
		if got := normalizeProviderStatus(tt.in); got != tt.want {
			t.Fatalf("normalizeProviderStatus(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
