package pricing

import (
	"sort"
	"time"
)

// RuleType enumerates the discount rule families.
type RuleType string

const (
	// RuleSameProductBulk rewards a large quantity of a single product.
	RuleSameProductBulk RuleType = "MISMO_PRODUCTO"
	// RuleMultiProductBasket rewards a basket with many distinct products.
	RuleMultiProductBasket RuleType = "MULTI_PRODUCTO"
)

// Valid reports whether t is a known rule type.
func (t RuleType) Valid() bool {
	return t == RuleSameProductBulk || t == RuleMultiProductBasket
}

const (
	DefaultBulkThreshold   = 12
	DefaultBasketThreshold = 3
)

// Rule is one version of a discount rule.
type Rule struct {
	ID                int64     `json:"id"`
	Type              RuleType  `json:"tipo"`
	QuantityThreshold *int      `json:"umbral_cantidad,omitempty"`
	ItemThreshold     *int      `json:"umbral_items,omitempty"`
	Percentage        float64   `json:"porcentaje"`
	Active            bool      `json:"activo"`
	Version           int       `json:"version"`
	UpdatedAt         time.Time `json:"actualizado_en"`
}

// Item is one requested product and its quantity.
type Item struct {
	ProductID int64
	Quantity  int
}

// Selection is the outcome of evaluating the rule set.
type Selection struct {
	Rate float64
	Rule *Rule
}

// CurrentRules keeps, per type, the active rule with the highest version,
// breaking ties on the most recent update.
func CurrentRules(rules []Rule) []Rule {
	candidates := make([]Rule, 0, len(rules))
	for _, r := range rules {
		if r.Active && r.Type.Valid() && r.Percentage >= 0 && r.Percentage < 100 {
			candidates = append(candidates, r)
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Version != candidates[j].Version {
			return candidates[i].Version > candidates[j].Version
		}
		return candidates[i].UpdatedAt.After(candidates[j].UpdatedAt)
	})
	seen := make(map[RuleType]bool, 2)
	current := make([]Rule, 0, 2)
	for _, r := range candidates {
		if seen[r.Type] {
			continue
		}
		seen[r.Type] = true
		current = append(current, r)
	}
	return current
}

// SelectDiscount picks at most one rule for items. A satisfied bulk rule
// always wins over a satisfied basket rule.
func SelectDiscount(items []Item, rules []Rule) Selection {
	var bulk, basket *Rule
	for _, r := range CurrentRules(rules) {
		r := r
		switch r.Type {
		case RuleSameProductBulk:
			bulk = &r
		case RuleMultiProductBasket:
			basket = &r
		}
	}

	bulkThreshold := DefaultBulkThreshold
	if bulk != nil && bulk.QuantityThreshold != nil && *bulk.QuantityThreshold > 0 {
		bulkThreshold = *bulk.QuantityThreshold
	}
	basketThreshold := DefaultBasketThreshold
	if basket != nil && basket.ItemThreshold != nil && *basket.ItemThreshold > 0 {
		basketThreshold = *basket.ItemThreshold
	}

	hasBulk := false
	distinct := make(map[int64]struct{}, len(items))
	for _, it := range items {
		if it.Quantity >= bulkThreshold {
			hasBulk = true
		}
		distinct[it.ProductID] = struct{}{}
	}
	hasBasket := len(distinct) >= basketThreshold

	switch {
	case hasBulk && bulk != nil:
		return Selection{Rate: bulk.Percentage / 100, Rule: bulk}
	case hasBasket && basket != nil:
		return Selection{Rate: basket.Percentage / 100, Rule: basket}
	default:
		return Selection{}
	}
}
