package costing

import (
	"errors"
	"math"
	"testing"

	"formulary/internal/apperr"
	"formulary/internal/formulation"
)

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestComputeTotals(t *testing.T) {
	tests := []struct {
		name   string
		lines  []formulation.Line
		extras []Extra
		want   Totals
	}{
		{name: "empty", want: Totals{}},
		{
			name:  "lines only",
			lines: []formulation.Line{{Cost: 25}, {Cost: 1.5}},
			want:  Totals{MaterialCost: 26.5, TotalCost: 26.5},
		},
		{
			name:   "extras only",
			extras: []Extra{{Name: "Label", Cost: 2}},
			want:   Totals{ExtraCost: 2, TotalCost: 2},
		},
		{
			name:   "lines and extras",
			lines:  []formulation.Line{{Cost: 25}},
			extras: []Extra{{Name: "Label", Cost: 2}, {Name: "Jar", Cost: 0.75}},
			want:   Totals{MaterialCost: 25, ExtraCost: 2.75, TotalCost: 27.75},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeTotals(tt.lines, tt.extras)
			if !approx(got.MaterialCost, tt.want.MaterialCost) || !approx(got.ExtraCost, tt.want.ExtraCost) || !approx(got.TotalCost, tt.want.TotalCost) {
				t.Fatalf("ComputeTotals() = %+v, want %+v", got, tt.want)
			}
			if !approx(got.TotalCost, got.MaterialCost+got.ExtraCost) {
				t.Fatalf("total %v is not the sum of its parts", got.TotalCost)
			}
		})
	}
}

func TestSuggestedPrice(t *testing.T) {
	tests := []struct {
		total, margin, want float64
	}{
		{27, 50, 40.5},
		{27, 0, 27},
		{0, 80, 0},
		{10, 100, 20},
	}
	for _, tt := range tests {
		if got := SuggestedPrice(tt.total, tt.margin); !approx(got, tt.want) {
			t.Fatalf("SuggestedPrice(%v, %v) = %v, want %v", tt.total, tt.margin, got, tt.want)
		}
	}
}

func TestPerGram(t *testing.T) {
	got, err := PerGram(27, 100)
	if err != nil {
		t.Fatalf("PerGram() error = %v", err)
	}
	if !approx(got, 0.27) {
		t.Fatalf("PerGram() = %v, want 0.27", got)
	}
	if _, err := PerGram(27, 0); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error for zero weight, got %v", err)
	}
}

func TestSummarizeBalm(t *testing.T) {
	draft, err := formulation.NewDraft(100)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := draft.AddLine(formulation.MethodPercentage, 50, formulation.Ingredient{ID: 1, Name: "Wax", UnitCost: 0.5}); err != nil {
		t.Fatal(err)
	}

	summary, err := Summarize(100, 50, draft.Lines(), []Extra{{OperationalCostID: 1, Name: "Label", Cost: 2}})
	if err != nil {
		t.Fatalf("Summarize() error = %v", err)
	}
	if !approx(summary.TotalCost, 27) {
		t.Fatalf("TotalCost = %v, want 27", summary.TotalCost)
	}
	if !approx(summary.SalePrice, 40.5) {
		t.Fatalf("SalePrice = %v, want 40.5", summary.SalePrice)
	}
	if !approx(summary.CostPerGram, 0.27) || !approx(summary.SalePricePerGram, 0.405) {
		t.Fatalf("unexpected per-gram values: %+v", summary)
	}
	if !approx(summary.RemainingPercent, 50) {
		t.Fatalf("RemainingPercent = %v, want 50", summary.RemainingPercent)
	}
}
