package billing

import (
	"strings"

	"github.com/sellora/sellora/internal/pkg/env"
	"github.com/sellora/sellora/internal/pkg/plancatalog"
)

// PriceTable maps internal plan tiers to provider price references and back.
// The reverse lookup derives the local plan from the price id carried by
// webhook events.
type PriceTable struct {
	byPlan  map[plancatalog.Plan]string
	byPrice map[string]plancatalog.Plan
}

// NewPriceTable builds a table from explicit plan/price pairs.
func NewPriceTable(pairs map[plancatalog.Plan]string) *PriceTable {
	t := &PriceTable{
		byPlan:  make(map[plancatalog.Plan]string, len(pairs)),
		byPrice: make(map[string]plancatalog.Plan, len(pairs)),
	}
	for plan, ref := range pairs {
		ref = strings.TrimSpace(ref)
		if ref == "" {
			continue
		}
		t.byPlan[plan] = ref
		t.byPrice[ref] = plan
	}
	return t
}

// NewPriceTableFromEnv reads the provider price references from environment
// configuration.
func NewPriceTableFromEnv() *PriceTable {
	return NewPriceTable(map[plancatalog.Plan]string{
		plancatalog.PlanPro:      env.GetEnv("BILLING_PRICE_REF_PRO", "price_pro_monthly"),
		plancatalog.PlanBusiness: env.GetEnv("BILLING_PRICE_REF_BUSINESS", "price_business_monthly"),
	})
}

// PriceRefFor returns the provider price reference for a paid plan. The free
// plan has no price ref.
func (t *PriceTable) PriceRefFor(plan string) (string, bool) {
	ref, ok := t.byPlan[plancatalog.NormalizePlan(plan)]
	return ref, ok
}

// PlanForPriceRef resolves a provider price reference to a plan tier,
// falling back to free for unknown refs.
func (t *PriceTable) PlanForPriceRef(priceRef string) plancatalog.Plan {
	if plan, ok := t.byPrice[strings.TrimSpace(priceRef)]; ok {
		return plan
	}
	return plancatalog.PlanFree
}
