package sweep

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sellora/sellora/app/models"
	"github.com/sellora/sellora/internal/pkg/billing"
	"github.com/sellora/sellora/internal/pkg/usage"
)

// fakeUsageRepo meters two sellers with fixed counts.
type fakeUsageRepo struct {
	sellers []uint
	metered map[uint]int
	records map[uint]*models.UsageRecord
}

func newFakeUsageRepo(sellers ...uint) *fakeUsageRepo {
	return &fakeUsageRepo{
		sellers: sellers,
		metered: make(map[uint]int),
		records: make(map[uint]*models.UsageRecord),
	}
}

func (f *fakeUsageRepo) GetSellerPlan(sellerID uint) (string, error) {
	f.metered[sellerID]++
	return "free", nil
}

func (f *fakeUsageRepo) CountActiveProducts(sellerID uint) (int64, error) { return 1, nil }

func (f *fakeUsageRepo) CountOrdersInPeriod(sellerID uint, start, end time.Time) (int64, error) {
	return 1, nil
}

func (f *fakeUsageRepo) SumProductStorageMB(sellerID uint) (int64, error) { return 1, nil }

func (f *fakeUsageRepo) UpsertUsageRecord(rec *models.UsageRecord) error {
	f.records[rec.SellerID] = rec
	return nil
}

func (f *fakeUsageRepo) GetUsageRecord(sellerID uint, periodStart time.Time) (*models.UsageRecord, error) {
	rec, ok := f.records[sellerID]
	if !ok {
		return nil, errors.New("not found")
	}
	return rec, nil
}

func (f *fakeUsageRepo) ListActiveSellerIDs() ([]uint, error) { return f.sellers, nil }

// fakeBillingRepo holds one past_due subscription with an elapsed grace
// window.
type fakeBillingRepo struct {
	sub *models.Subscription
}

func (f *fakeBillingRepo) GetSellerByID(id uint) (*models.Seller, error) {
	return &models.Seller{ID: id}, nil
}

func (f *fakeBillingRepo) GetSellerByPublicID(publicID string) (*models.Seller, error) {
	return nil, errors.New("not found")
}

func (f *fakeBillingRepo) GetSubscriptionBySeller(sellerID uint) (*models.Subscription, error) {
	if f.sub == nil || f.sub.SellerID != sellerID {
		return nil, billing.ErrSubscriptionNotFound
	}
	cp := *f.sub
	return &cp, nil
}

func (f *fakeBillingRepo) CreateSubscription(sub *models.Subscription) error { return nil }

func (f *fakeBillingRepo) UpdateSubscriptionLocked(sellerID uint, fn func(sub *models.Subscription) error) (*models.Subscription, error) {
	if f.sub == nil || f.sub.SellerID != sellerID {
		return nil, billing.ErrSubscriptionNotFound
	}
	if err := fn(f.sub); err != nil {
		return nil, err
	}
	cp := *f.sub
	return &cp, nil
}

func (f *fakeBillingRepo) CreateBillingEventIfNotExists(event *models.BillingEvent) (bool, *models.BillingEvent, error) {
	return true, event, nil
}

func (f *fakeBillingRepo) AppendBillingEvent(event *models.BillingEvent) error { return nil }

func (f *fakeBillingRepo) MarkBillingEventProcessed(id uint, processingError string) error {
	return nil
}

func (f *fakeBillingRepo) CreatePlanChangeRequest(req *models.PlanChangeRequest) error { return nil }

func (f *fakeBillingRepo) ListExpiredGraceSellerIDs(now time.Time) ([]uint, error) {
	if f.sub != nil && f.sub.Status == models.SubscriptionStatusPastDue &&
		f.sub.GracePeriodEnd != nil && !f.sub.GracePeriodEnd.After(now) {
		return []uint{f.sub.SellerID}, nil
	}
	return nil, nil
}

type nopNotifier struct{}

func (nopNotifier) Send(sellerID uint, kind string, payload map[string]interface{}) {}

type fakeProvider struct{ cancels int }

func (p *fakeProvider) CreateOrGetCustomer(ctx context.Context, sellerRef, email, name string) (string, error) {
	return "cus_1", nil
}

func (p *fakeProvider) CreateSubscription(ctx context.Context, customerRef, priceRef string, metadata map[string]string) (*billing.ProviderSubscription, error) {
	return &billing.ProviderSubscription{Ref: "sub_1", Status: "active"}, nil
}

func (p *fakeProvider) UpdateSubscriptionPrice(ctx context.Context, subscriptionRef, newPriceRef string, prorate bool) (*billing.ProviderSubscription, error) {
	return &billing.ProviderSubscription{Ref: subscriptionRef, Status: "active"}, nil
}

func (p *fakeProvider) CancelSubscription(ctx context.Context, subscriptionRef string, atPeriodEnd bool) (string, error) {
	p.cancels++
	return "canceled", nil
}

func newTestManager(usageRepo usage.Repository, billingRepo billing.Repository, provider billing.PaymentProvider) *Manager {
	meter := usage.NewMeter(usageRepo, usage.NewMemoryThrottle(), nopNotifier{})
	grace := billing.NewGracePeriodController(billingRepo, provider, nopNotifier{})
	return NewManager(meter, usageRepo, grace, nil)
}

func TestManager_StartStop(t *testing.T) {
	m := newTestManager(newFakeUsageRepo(), &fakeBillingRepo{}, &fakeProvider{})

	assert.False(t, m.IsRunning())

	m.Start()
	assert.True(t, m.IsRunning())

	// Start is idempotent
	m.Start()
	assert.True(t, m.IsRunning())

	m.Stop()
	assert.False(t, m.IsRunning())

	// Stop is idempotent
	m.Stop()
	assert.False(t, m.IsRunning())
}

func TestManager_Restart(t *testing.T) {
	m := newTestManager(newFakeUsageRepo(), &fakeBillingRepo{}, &fakeProvider{})

	m.Start()
	m.Stop()
	m.Start()
	assert.True(t, m.IsRunning())
	m.Stop()
}

func TestManager_RunUsagePass(t *testing.T) {
	repo := newFakeUsageRepo(1, 2, 3)
	m := newTestManager(repo, &fakeBillingRepo{}, &fakeProvider{})

	err := m.RunUsagePass()
	assert.NoError(t, err)
	assert.Len(t, repo.records, 3)
	for _, id := range []uint{1, 2, 3} {
		assert.Contains(t, repo.records, id)
	}
}

func TestManager_RunGracePass(t *testing.T) {
	start := time.Now().Add(-8 * 24 * time.Hour)
	end := time.Now().Add(-24 * time.Hour)
	billingRepo := &fakeBillingRepo{
		sub: &models.Subscription{
			ID:                      1,
			SellerID:                1,
			PlanID:                  "pro",
			Status:                  models.SubscriptionStatusPastDue,
			GracePeriodStart:        &start,
			GracePeriodEnd:          &end,
			ExternalSubscriptionRef: "sub_1",
		},
	}
	provider := &fakeProvider{}
	m := newTestManager(newFakeUsageRepo(), billingRepo, provider)

	err := m.RunGracePass(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 1, provider.cancels)
	assert.Equal(t, "free", billingRepo.sub.PlanID)
	assert.Equal(t, models.SubscriptionStatusCanceled, billingRepo.sub.Status)
}
