// Package costing derives recipe totals and a suggested sale price from
// formulated lines and attached operational costs.
package costing

import (
	"math"

	"formulary/internal/apperr"
	"formulary/internal/formulation"
)

// Extra is an operational cost attached to a recipe. Cost is the price
// captured when it was attached.
type Extra struct {
	OperationalCostID uint    `json:"operational_cost_id"`
	Name              string  `json:"name"`
	Cost              float64 `json:"cost"`
}

// Totals splits the cost of one batch into materials and extras.
type Totals struct {
	MaterialCost float64 `json:"material_cost"`
	ExtraCost    float64 `json:"extra_cost"`
	TotalCost    float64 `json:"total_cost"`
}

// ComputeTotals sums line costs and extra costs. Empty inputs yield zero.
func ComputeTotals(lines []formulation.Line, extras []Extra) Totals {
	var t Totals
	for _, line := range lines {
		t.MaterialCost += line.Cost
	}
	for _, extra := range extras {
		t.ExtraCost += extra.Cost
	}
	t.TotalCost = t.MaterialCost + t.ExtraCost
	return t
}

// SuggestedPrice applies margin, expressed as a percentage, on top of total.
func SuggestedPrice(total, margin float64) float64 {
	return total * (1 + margin/100)
}

// PerGram divides value by the batch weight.
func PerGram(value, batchWeight float64) (float64, error) {
	if math.IsNaN(batchWeight) || math.IsInf(batchWeight, 0) || batchWeight <= 0 {
		return 0, apperr.Invalid("batch_weight", "must be greater than zero")
	}
	return value / batchWeight, nil
}

// Summary is the costed view of a recipe.
type Summary struct {
	Totals
	Margin           float64 `json:"margin"`
	SalePrice        float64 `json:"sale_price"`
	CostPerGram      float64 `json:"cost_per_gram"`
	SalePricePerGram float64 `json:"sale_price_per_gram"`
	TotalPercentage  float64 `json:"total_percentage"`
	RemainingPercent float64 `json:"remaining_percentage"`
}

// Summarize computes totals, sale price and per-gram values for a batch.
func Summarize(batchWeight, margin float64, lines []formulation.Line, extras []Extra) (Summary, error) {
	totals := ComputeTotals(lines, extras)
	s := Summary{
		Totals:          totals,
		Margin:          margin,
		SalePrice:       SuggestedPrice(totals.TotalCost, margin),
		TotalPercentage: formulation.TotalPercentage(lines),
	}
	s.RemainingPercent = formulation.Ceiling - s.TotalPercentage

	var err error
	if s.CostPerGram, err = PerGram(s.TotalCost, batchWeight); err != nil {
		return Summary{}, err
	}
	if s.SalePricePerGram, err = PerGram(s.SalePrice, batchWeight); err != nil {
		return Summary{}, err
	}
	return s, nil
}
