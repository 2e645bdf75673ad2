package billing

import (
	"context"
	"errors"
	"time"

	"github.com/sellora/sellora/app/models"
)

// fakeRepository is an in-memory Repository for service tests.
type fakeRepository struct {
	sellers     map[uint]*models.Seller
	subs        map[uint]*models.Subscription
	events      []*models.BillingEvent
	planChanges []*models.PlanChangeRequest
	nextID      uint
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		sellers: make(map[uint]*models.Seller),
		subs:    make(map[uint]*models.Subscription),
	}
}

func (f *fakeRepository) addSeller(id uint, publicID, email, name string) *models.Seller {
	s := &models.Seller{ID: id, PublicID: publicID, Email: email, Name: name, Status: models.SellerStatusActive}
	f.sellers[id] = s
	return s
}

func (f *fakeRepository) GetSellerByID(id uint) (*models.Seller, error) {
	s, ok := f.sellers[id]
	if !ok {
		return nil, errors.New("seller not found")
	}
	return s, nil
}

func (f *fakeRepository) GetSellerByPublicID(publicID string) (*models.Seller, error) {
	for _, s := range f.sellers {
		if s.PublicID == publicID {
			return s, nil
		}
	}
	return nil, errors.New("seller not found")
}

func (f *fakeRepository) GetSubscriptionBySeller(sellerID uint) (*models.Subscription, error) {
	sub, ok := f.subs[sellerID]
	if !ok {
		return nil, ErrSubscriptionNotFound
	}
	cp := *sub
	return &cp, nil
}

func (f *fakeRepository) CreateSubscription(sub *models.Subscription) error {
	if _, ok := f.subs[sub.SellerID]; ok {
		return errors.New("duplicate subscription for seller")
	}
	f.nextID++
	sub.ID = f.nextID
	cp := *sub
	f.subs[sub.SellerID] = &cp
	return nil
}

func (f *fakeRepository) UpdateSubscriptionLocked(sellerID uint, fn func(sub *models.Subscription) error) (*models.Subscription, error) {
	sub, ok := f.subs[sellerID]
	if !ok {
		return nil, ErrSubscriptionNotFound
	}
	cp := *sub
	if err := fn(&cp); err != nil {
		return nil, err
	}
	f.subs[sellerID] = &cp
	out := cp
	return &out, nil
}

func (f *fakeRepository) CreateBillingEventIfNotExists(event *models.BillingEvent) (bool, *models.BillingEvent, error) {
	if event.ExternalEventID != nil {
		for _, e := range f.events {
			if e.ExternalEventID != nil && *e.ExternalEventID == *event.ExternalEventID {
				return false, e, nil
			}
		}
	}
	f.nextID++
	event.ID = f.nextID
	f.events = append(f.events, event)
	return true, event, nil
}

func (f *fakeRepository) AppendBillingEvent(event *models.BillingEvent) error {
	f.nextID++
	event.ID = f.nextID
	f.events = append(f.events, event)
	return nil
}

func (f *fakeRepository) MarkBillingEventProcessed(id uint, processingError string) error {
	for _, e := range f.events {
		if e.ID == id {
			now := time.Now()
			e.ProcessedAt = &now
			e.ProcessingError = processingError
			return nil
		}
	}
	return errors.New("event not found")
}

func (f *fakeRepository) CreatePlanChangeRequest(req *models.PlanChangeRequest) error {
	f.planChanges = append(f.planChanges, req)
	return nil
}

func (f *fakeRepository) ListExpiredGraceSellerIDs(now time.Time) ([]uint, error) {
	var ids []uint
	for sellerID, sub := range f.subs {
		if sub.Status == models.SubscriptionStatusPastDue && sub.GracePeriodEnd != nil && !sub.GracePeriodEnd.After(now) {
			ids = append(ids, sellerID)
		}
	}
	return ids, nil
}

func (f *fakeRepository) eventsOfType(eventType string) []*models.BillingEvent {
	var out []*models.BillingEvent
	for _, e := range f.events {
		if e.EventType == eventType {
			out = append(out, e)
		}
	}
	return out
}

// fakeProvider records provider calls and answers with canned responses.
type fakeProvider struct {
	customerRef string
	sub         *ProviderSubscription

	failWith error

	createCustomerCalls int
	createSubCalls      int
	updatePriceCalls    int
	cancelCalls         int

	lastPriceRef      string
	lastProrate       bool
	lastAtPeriodEnd   bool
	lastCancelSubRef  string
	lastMetadata      map[string]string
	lastCustomerEmail string
}

func newFakeProvider() *fakeProvider {
	now := time.Now().UTC()
	end := now.AddDate(0, 1, 0)
	return &fakeProvider{
		customerRef: "cus_123",
		sub: &ProviderSubscription{
			Ref:                "sub_123",
			Status:             "active",
			CurrentPeriodStart: &now,
			CurrentPeriodEnd:   &end,
		},
	}
}

func (p *fakeProvider) CreateOrGetCustomer(ctx context.Context, sellerRef, email, name string) (string, error) {
	p.createCustomerCalls++
	p.lastCustomerEmail = email
	if p.failWith != nil {
		return "", p.failWith
	}
	return p.customerRef, nil
}

func (p *fakeProvider) CreateSubscription(ctx context.Context, customerRef, priceRef string, metadata map[string]string) (*ProviderSubscription, error) {
	p.createSubCalls++
	p.lastPriceRef = priceRef
	p.lastMetadata = metadata
	if p.failWith != nil {
		return nil, p.failWith
	}
	return p.sub, nil
}

func (p *fakeProvider) UpdateSubscriptionPrice(ctx context.Context, subscriptionRef, newPriceRef string, prorate bool) (*ProviderSubscription, error) {
	p.updatePriceCalls++
	p.lastPriceRef = newPriceRef
	p.lastProrate = prorate
	if p.failWith != nil {
		return nil, p.failWith
	}
	return p.sub, nil
}

func (p *fakeProvider) CancelSubscription(ctx context.Context, subscriptionRef string, atPeriodEnd bool) (string, error) {
	p.cancelCalls++
	p.lastCancelSubRef = subscriptionRef
	p.lastAtPeriodEnd = atPeriodEnd
	if p.failWith != nil {
		return "", p.failWith
	}
	return "canceled", nil
}

// recordingNotifier captures notifications instead of delivering them.
type recordingNotifier struct {
	sent []sentNotification
}

type sentNotification struct {
	sellerID uint
	kind     string
	payload  map[string]interface{}
}

func (n *recordingNotifier) Send(sellerID uint, kind string, payload map[string]interface{}) {
	n.sent = append(n.sent, sentNotification{sellerID: sellerID, kind: kind, payload: payload})
}

func (n *recordingNotifier) kinds() []string {
	var out []string
	for _, s := range n.sent {
		out = append(out, s.kind)
	}
	return out
}

func testPriceTable() *PriceTable {
	return NewPriceTableFromEnv()
}

func mustSub(t interface {
	Helper()
	Fatalf(format string, args ...interface{})
}, repo *fakeRepository, sellerID uint) *models.Subscription {
	t.Helper()
	sub, ok := repo.subs[sellerID]
	if !ok {
		t.Fatalf("expected subscription for seller %d", sellerID)
	}
	return sub
}
