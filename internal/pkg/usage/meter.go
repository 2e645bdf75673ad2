package usage

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/sellora/sellora/app/models"
	"github.com/sellora/sellora/internal/pkg/plancatalog"
	"gorm.io/gorm"
)

const (
	// WarningThresholdPct is the fraction of a finite limit at which a usage
	// warning becomes due.
	WarningThresholdPct = 0.8

	// WarningWindow batches warnings to at most one per seller per rolling
	// window, regardless of how many resources qualify.
	WarningWindow = 24 * time.Hour
)

// Notifier delivers usage warnings. Fire-and-forget.
type Notifier interface {
	Send(sellerID uint, kind string, payload map[string]interface{})
}

// Meter computes per-seller, per-period resource consumption and answers
// synchronous limit checks. Metering failures never block seller operations.
type Meter struct {
	repo     Repository
	throttle WarningThrottle
	notifier Notifier
}

// NewMeter creates a meter from injected collaborators.
func NewMeter(repo Repository, throttle WarningThrottle, notifier Notifier) *Meter {
	return &Meter{repo: repo, throttle: throttle, notifier: notifier}
}

// NewMeterFromDB creates a meter on a GORM handle with the redis-backed
// warning throttle.
func NewMeterFromDB(db *gorm.DB, notifier Notifier) *Meter {
	return NewMeter(NewRepository(db), NewRedisThrottle(), notifier)
}

// Snapshot is a seller's consumption for the current usage period compared
// against the plan limits.
type Snapshot struct {
	SellerID    uint                    `json:"seller_id"`
	Plan        string                  `json:"plan"`
	PeriodStart time.Time               `json:"period_start"`
	PeriodEnd   time.Time               `json:"period_end"`
	Products    plancatalog.CheckResult `json:"products"`
	Orders      plancatalog.CheckResult `json:"orders"`
	Storage     plancatalog.CheckResult `json:"storage"`
}

// Decision is the outcome of a synchronous action check.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

// CurrentPeriod returns the calendar-month usage window containing now, in UTC.
func CurrentPeriod(now time.Time) (time.Time, time.Time) {
	now = now.UTC()
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)
	return start, end
}

// GetCurrentUsage computes the seller's live consumption for the current
// period against the current plan limits.
func (m *Meter) GetCurrentUsage(sellerID uint) (*Snapshot, error) {
	plan, err := m.repo.GetSellerPlan(sellerID)
	if err != nil {
		return nil, err
	}
	def := plancatalog.GetPlan(plan)
	start, end := CurrentPeriod(time.Now())

	products, err := m.repo.CountActiveProducts(sellerID)
	if err != nil {
		return nil, err
	}
	orders, err := m.repo.CountOrdersInPeriod(sellerID, start, end)
	if err != nil {
		return nil, err
	}
	storageMB, err := m.repo.SumProductStorageMB(sellerID)
	if err != nil {
		return nil, err
	}

	return &Snapshot{
		SellerID:    sellerID,
		Plan:        string(def.ID),
		PeriodStart: start,
		PeriodEnd:   end,
		Products:    plancatalog.CheckLimit(def, plancatalog.ResourceProducts, products),
		Orders:      plancatalog.CheckLimit(def, plancatalog.ResourceOrders, orders),
		Storage:     plancatalog.CheckLimit(def, plancatalog.ResourceStorage, storageMB),
	}, nil
}

// RecordUsageAndCheckLimits upserts the current period's usage record (one
// row per seller per period) and emits at most one batched warning per seller
// per rolling 24 hours when a finite limit is approached or exceeded.
func (m *Meter) RecordUsageAndCheckLimits(sellerID uint) (*models.UsageRecord, error) {
	snap, err := m.GetCurrentUsage(sellerID)
	if err != nil {
		return nil, err
	}

	def := plancatalog.GetPlan(snap.Plan)
	exceeded := overFiniteLimit(def, plancatalog.ResourceProducts, snap.Products.Current) ||
		overFiniteLimit(def, plancatalog.ResourceOrders, snap.Orders.Current) ||
		overFiniteLimit(def, plancatalog.ResourceStorage, snap.Storage.Current)

	warningsSent := 0
	if prev, err := m.repo.GetUsageRecord(sellerID, snap.PeriodStart); err == nil {
		warningsSent = prev.WarningsSent
	}

	warnable := warningResources(def, snap)
	if len(warnable) > 0 {
		allowed, terr := m.throttle.Allow(sellerID, WarningWindow)
		if terr != nil {
			// Throttle failure must not block metering; skip the warning.
			log.Warnf("[UsageMeter] warning throttle failed for seller %d: %v", sellerID, terr)
		} else if allowed {
			kind := models.NotificationKindUsageWarning
			if exceeded {
				kind = models.NotificationKindLimitExceeded
			}
			m.notifier.Send(sellerID, kind, map[string]interface{}{
				"plan":      snap.Plan,
				"resources": warnable,
			})
			warningsSent++
		}
	}

	rec := &models.UsageRecord{
		SellerID:        sellerID,
		PeriodStart:     snap.PeriodStart,
		PeriodEnd:       snap.PeriodEnd,
		ProductsUsed:    snap.Products.Current,
		OrdersProcessed: snap.Orders.Current,
		StorageUsedMB:   snap.Storage.Current,
		LimitExceeded:   exceeded,
		WarningsSent:    warningsSent,
	}
	if err := m.repo.UpsertUsageRecord(rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Actions guarded by CanPerformAction, mapped to the metered resource they
// consume.
var actionResources = map[string]string{
	"create_product": plancatalog.ResourceProducts,
	"create_order":   plancatalog.ResourceOrders,
	"upload_asset":   plancatalog.ResourceStorage,
}

// CanPerformAction answers the synchronous pre-commit check for resource
// creating paths. Unmodeled actions and metering failures default to allowed
// (fail open), so a metering outage never blocks legitimate sellers.
func (m *Meter) CanPerformAction(sellerID uint, action string) Decision {
	resource, ok := actionResources[action]
	if !ok {
		return Decision{Allowed: true}
	}

	snap, err := m.GetCurrentUsage(sellerID)
	if err != nil {
		log.Errorf("[UsageMeter] metering failed for seller %d action %s: %v", sellerID, action, err)
		return Decision{Allowed: true}
	}

	var check plancatalog.CheckResult
	switch resource {
	case plancatalog.ResourceProducts:
		check = snap.Products
	case plancatalog.ResourceOrders:
		check = snap.Orders
	case plancatalog.ResourceStorage:
		check = snap.Storage
	}

	if check.Allowed {
		return Decision{Allowed: true}
	}
	return Decision{
		Allowed: false,
		Reason:  fmt.Sprintf("%s limit reached (%d of %d) on plan %s", resource, check.Current, check.Limit, snap.Plan),
	}
}

// overFiniteLimit reports a strict over-limit condition; being exactly at the
// limit is full, not exceeded.
func overFiniteLimit(def plancatalog.Definition, resource string, current int64) bool {
	limit := plancatalog.LimitFor(def, resource)
	return limit != plancatalog.Unlimited && current > limit
}

// warningResources lists the resources at or above the warning threshold of
// a finite limit. Unlimited resources never warn.
func warningResources(def plancatalog.Definition, snap *Snapshot) []string {
	var due []string
	checks := []struct {
		resource string
		current  int64
	}{
		{plancatalog.ResourceProducts, snap.Products.Current},
		{plancatalog.ResourceOrders, snap.Orders.Current},
		{plancatalog.ResourceStorage, snap.Storage.Current},
	}
	for _, c := range checks {
		limit := plancatalog.LimitFor(def, c.resource)
		if limit == plancatalog.Unlimited || limit == 0 {
			continue
		}
		if float64(c.current) >= WarningThresholdPct*float64(limit) {
			due = append(due, c.resource)
		}
	}
	return due
}
