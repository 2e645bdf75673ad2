package plancatalog

import "strings"

type Plan string

const (
	PlanFree     Plan = "free"
	PlanPro      Plan = "pro"
	PlanBusiness Plan = "business"
)

// Unlimited marks a resource without a cap. An unlimited limit never blocks
// and never warns.
const Unlimited int64 = -1

// Metered resources compared against plan limits.
const (
	ResourceProducts = "products"
	ResourceOrders   = "orders"
	ResourceStorage  = "storage"
)

// Limits holds the per-period resource caps of a plan tier.
type Limits struct {
	MaxProducts        int64
	MaxOrdersPerPeriod int64
	MaxStorageMB       int64
}

// Definition is an immutable plan tier loaded at startup.
type Definition struct {
	ID         Plan
	Name       string
	PriceCents int64
	Interval   string
	Limits     Limits
}

// CheckResult is the answer of a synchronous limit check.
type CheckResult struct {
	Allowed bool  `json:"allowed"`
	Limit   int64 `json:"limit"`
	Current int64 `json:"current"`
}

var catalog = map[Plan]Definition{
	PlanFree: {
		ID:         PlanFree,
		Name:       "Free",
		PriceCents: 0,
		Interval:   "month",
		Limits: Limits{
			MaxProducts:        10,
			MaxOrdersPerPeriod: 50,
			MaxStorageMB:       500,
		},
	},
	PlanPro: {
		ID:         PlanPro,
		Name:       "Pro",
		PriceCents: 2900,
		Interval:   "month",
		Limits: Limits{
			MaxProducts:        100,
			MaxOrdersPerPeriod: 1000,
			MaxStorageMB:       10240,
		},
	},
	PlanBusiness: {
		ID:         PlanBusiness,
		Name:       "Business",
		PriceCents: 9900,
		Interval:   "month",
		Limits: Limits{
			MaxProducts:        Unlimited,
			MaxOrdersPerPeriod: Unlimited,
			MaxStorageMB:       Unlimited,
		},
	},
}

// NormalizePlan maps arbitrary plan strings to a known tier, defaulting to free.
func NormalizePlan(plan string) Plan {
	switch strings.ToLower(strings.TrimSpace(plan)) {
	case string(PlanPro):
		return PlanPro
	case string(PlanBusiness):
		return PlanBusiness
	default:
		return PlanFree
	}
}

// Rank orders plan tiers for upgrade/downgrade classification
// (free < pro < business).
func Rank(plan string) int {
	switch NormalizePlan(plan) {
	case PlanBusiness:
		return 2
	case PlanPro:
		return 1
	default:
		return 0
	}
}

// GetPlan returns the definition for the given plan ID. Unknown or missing
// IDs fall back to the free tier.
func GetPlan(id string) Definition {
	return catalog[NormalizePlan(id)]
}

// IsPaid reports whether the plan bills through the external provider.
func IsPaid(id string) bool {
	return GetPlan(id).PriceCents > 0
}

// LimitFor returns the plan's cap for a metered resource. Unknown resources
// are treated as unlimited.
func LimitFor(def Definition, resource string) int64 {
	switch resource {
	case ResourceProducts:
		return def.Limits.MaxProducts
	case ResourceOrders:
		return def.Limits.MaxOrdersPerPeriod
	case ResourceStorage:
		return def.Limits.MaxStorageMB
	default:
		return Unlimited
	}
}

// CheckLimit compares a current count against the plan's cap for a resource.
// The check blocks only when the resource is at or above a finite limit.
func CheckLimit(def Definition, resource string, current int64) CheckResult {
	limit := LimitFor(def, resource)
	if limit == Unlimited {
		return CheckResult{Allowed: true, Limit: Unlimited, Current: current}
	}
	return CheckResult{Allowed: current < limit, Limit: limit, Current: current}
}
