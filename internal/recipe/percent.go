package recipe

import "github.com/starford/prepcost/internal/models"

// PricingBasis is the unit a sell price is quoted in.
type PricingBasis string

// Pricing bases.
const (
	BasisKilogram PricingBasis = "kg"
	BasisEach     PricingBasis = "each"
)

// Percentages are labor, cost-of-goods and labor+cost-of-goods as a share of
// price. A nil field means not applicable.
type Percentages struct {
	Labor *float64 `json:"labor"`
	COG   *float64 `json:"cog"`
	LCOG  *float64 `json:"lcog"`
}

// Applicable reports whether the percentages could be computed.
func (p Percentages) Applicable() bool {
	return p.Labor != nil
}

// ComputePercentages derives cost ratios for item at price. Prices are per
// kilogram unless basis is each and the item yields countable units of known
// weight.
func ComputePercentages(price *float64, breakdowns map[string]models.CostBreakdown, item models.Item, basis PricingBasis) Percentages {
	if price == nil || *price <= 0 {
		return Percentages{}
	}
	bd, ok := breakdowns[item.ID]
	if !ok {
		return Percentages{}
	}

	perGram := *price / 1000
	if basis == BasisEach && item.YieldsEach() {
		if w, known := item.PerUnitGrams(); known {
			perGram = *price / w
		}
	}

	labor := bd.LaborCostPerGram / perGram * 100
	cog := bd.FoodCostPerGram / perGram * 100
	lcog := bd.Total() / perGram * 100
	return Percentages{Labor: &labor, COG: &cog, LCOG: &lcog}
}
