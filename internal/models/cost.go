package models

// CostBreakdown splits an item's per-gram cost into labor and food.
// It is produced by the cost service and only read here.
type CostBreakdown struct {
	LaborCostPerGram float64 `json:"labor_cost_per_gram"`
	FoodCostPerGram  float64 `json:"food_cost_per_gram"`
}

// Total returns the full per-gram cost.
func (b CostBreakdown) Total() float64 {
	return b.LaborCostPerGram + b.FoodCostPerGram
}
