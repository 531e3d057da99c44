package formulation

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"formulary/internal/apperr"
)

var wax = Ingredient{ID: 1, Name: "Wax", UnitCost: 0.5}

func nearlyEqual(t *testing.T, name string, got, want float64) {
	t.Helper()
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("%s = %v, want %v", name, got, want)
	}
}

func mustDraft(t *testing.T, weight float64) *Draft {
	t.Helper()
	d, err := NewDraft(weight)
	if err != nil {
		t.Fatalf("NewDraft(%v) error = %v", weight, err)
	}
	return d
}

func TestAddLineByPercentage(t *testing.T) {
	d := mustDraft(t, 100)

	line, err := d.AddLine(MethodPercentage, 50, wax)
	if err != nil {
		t.Fatalf("AddLine() error = %v", err)
	}
	nearlyEqual(t, "percentage", line.Percentage, 50)
	nearlyEqual(t, "grams", line.Grams, 50)
	nearlyEqual(t, "cost", line.Cost, 25)
	if line.Name != "Wax" || line.IngredientID != 1 {
		t.Fatalf("unexpected line identity: %+v", line)
	}
	if len(d.Lines()) != 1 {
		t.Fatalf("expected one line, got %d", len(d.Lines()))
	}
}

func TestAddLineByGrams(t *testing.T) {
	d := mustDraft(t, 200)

	line, err := d.AddLine(MethodGrams, 50, wax)
	if err != nil {
		t.Fatalf("AddLine() error = %v", err)
	}
	nearlyEqual(t, "percentage", line.Percentage, 25)
	nearlyEqual(t, "grams", line.Grams, 50)
	nearlyEqual(t, "cost", line.Cost, 25)
}

func TestAddLineFillRemaining(t *testing.T) {
	d := mustDraft(t, 100)
	if _, err := d.AddLine(MethodPercentage, 30, wax); err != nil {
		t.Fatalf("AddLine() error = %v", err)
	}

	oil := Ingredient{ID: 2, Name: "Almond Oil", UnitCost: 0.2}
	line, err := d.AddLine(MethodFillRemaining, 0, oil)
	if err != nil {
		t.Fatalf("AddLine(fill) error = %v", err)
	}
	nearlyEqual(t, "percentage", line.Percentage, 70)
	nearlyEqual(t, "grams", line.Grams, 70)
	nearlyEqual(t, "cost", line.Cost, 14)
	nearlyEqual(t, "remaining", d.Remaining(), 0)

	_, err = d.AddLine(MethodFillRemaining, 0, oil)
	var overflow *apperr.CompositionOverflow
	if !errors.As(err, &overflow) {
		t.Fatalf("expected CompositionOverflow on a full recipe, got %v", err)
	}
	if overflow.Remaining != 0 {
		t.Fatalf("expected no headroom, got %v", overflow.Remaining)
	}
}

func TestAddLineRejectsOverflowAndKeepsLines(t *testing.T) {
	d := mustDraft(t, 100)
	if _, err := d.AddLine(MethodPercentage, 60, wax); err != nil {
		t.Fatalf("AddLine() error = %v", err)
	}

	_, err := d.AddLine(MethodPercentage, 50, wax)
	if !errors.Is(err, apperr.ErrCompositionOverflow) {
		t.Fatalf("expected ErrCompositionOverflow, got %v", err)
	}
	var overflow *apperr.CompositionOverflow
	if !errors.As(err, &overflow) {
		t.Fatalf("expected *CompositionOverflow, got %T", err)
	}
	nearlyEqual(t, "remaining", overflow.Remaining, 40)
	if len(d.Lines()) != 1 {
		t.Fatalf("line set changed after rejection: %+v", d.Lines())
	}
}

func TestAddLineAcceptsRoundOffWithinTolerance(t *testing.T) {
	d := mustDraft(t, 100)
	for _, pct := range []float64{33.33, 33.33, 33.345} {
		if _, err := d.AddLine(MethodPercentage, pct, wax); err != nil {
			t.Fatalf("AddLine(%v) error = %v", pct, err)
		}
	}
	if _, err := d.AddLine(MethodPercentage, 0.02, wax); !errors.Is(err, apperr.ErrCompositionOverflow) {
		t.Fatalf("expected overflow beyond tolerance, got %v", err)
	}
}

func TestAddLineValidation(t *testing.T) {
	tests := []struct {
		name       string
		method     Method
		amount     float64
		ingredient Ingredient
	}{
		{"zero percentage", MethodPercentage, 0, wax},
		{"negative grams", MethodGrams, -10, wax},
		{"nan percentage", MethodPercentage, math.NaN(), wax},
		{"unknown method", Method("drops"), 5, wax},
		{"missing ingredient", MethodPercentage, 5, Ingredient{}},
		{"negative unit cost", MethodPercentage, 5, Ingredient{ID: 9, UnitCost: -1}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			d := mustDraft(t, 100)
			if _, err := d.AddLine(tt.method, tt.amount, tt.ingredient); !errors.Is(err, apperr.ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if len(d.Lines()) != 0 {
				t.Fatal("expected no line to be added")
			}
		})
	}
}

func TestCompositionCeilingHoldsForRandomSequences(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	methods := []Method{MethodPercentage, MethodGrams, MethodFillRemaining}

	for round := 0; round < 200; round++ {
		weight := 1 + rng.Float64()*999
		d := mustDraft(t, weight)
		for step := 0; step < 12; step++ {
			before := len(d.Lines())
			method := methods[rng.Intn(len(methods))]
			amount := rng.Float64() * 60
			if method == MethodGrams {
				amount = rng.Float64() * weight * 0.6
			}
			_, err := d.AddLine(method, amount, wax)
			if err != nil && len(d.Lines()) != before {
				t.Fatalf("round %d: rejected call changed the line set", round)
			}
			if total := d.TotalPercentage(); total > Ceiling+Tolerance {
				t.Fatalf("round %d: total percentage %v exceeds ceiling", round, total)
			}
		}
	}
}

func TestRemoveLineFreesHeadroom(t *testing.T) {
	d := mustDraft(t, 100)
	for _, pct := range []float64{40, 35, 25} {
		if _, err := d.AddLine(MethodPercentage, pct, wax); err != nil {
			t.Fatalf("AddLine() error = %v", err)
		}
	}

	if err := d.RemoveLine(1); err != nil {
		t.Fatalf("RemoveLine() error = %v", err)
	}
	lines := d.Lines()
	if len(lines) != 2 || lines[0].Percentage != 40 || lines[1].Percentage != 25 {
		t.Fatalf("unexpected lines after removal: %+v", lines)
	}
	nearlyEqual(t, "remaining", d.Remaining(), 35)

	if err := d.RemoveLine(5); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error for bad index, got %v", err)
	}
}

func TestRescalePreservesPercentages(t *testing.T) {
	d := mustDraft(t, 100)
	oil := Ingredient{ID: 2, Name: "Oil", UnitCost: 0.03}
	if _, err := d.AddLine(MethodPercentage, 37.5, wax); err != nil {
		t.Fatal(err)
	}
	if _, err := d.AddLine(MethodGrams, 12.3, oil); err != nil {
		t.Fatal(err)
	}
	before := d.Lines()

	for _, weight := range []float64{250, 7.75, 1000, 100} {
		lines, err := d.Rescale(weight)
		if err != nil {
			t.Fatalf("Rescale(%v) error = %v", weight, err)
		}
		for i, line := range lines {
			if line.Percentage != before[i].Percentage {
				t.Fatalf("percentage changed on rescale: %v -> %v", before[i].Percentage, line.Percentage)
			}
			if line.Grams != before[i].Percentage/100*weight {
				t.Fatalf("grams = %v, want %v", line.Grams, before[i].Percentage/100*weight)
			}
			nearlyEqual(t, "cost", line.Cost, line.Grams*line.UnitCost)
		}
	}
	if d.BatchWeight() != 100 {
		t.Fatalf("BatchWeight() = %v, want 100", d.BatchWeight())
	}
}

func TestRescaleRejectsNonPositiveWeight(t *testing.T) {
	d := mustDraft(t, 100)
	if _, err := d.AddLine(MethodPercentage, 50, wax); err != nil {
		t.Fatal(err)
	}
	for _, weight := range []float64{0, -10} {
		if _, err := d.Rescale(weight); !errors.Is(err, apperr.ErrValidation) {
			t.Fatalf("Rescale(%v) expected validation error, got %v", weight, err)
		}
	}
	if d.BatchWeight() != 100 || d.Lines()[0].Grams != 50 {
		t.Fatal("rejected rescale must not change the draft")
	}
}

func TestRestoreAndValidate(t *testing.T) {
	lines := []Line{
		{IngredientID: 1, Percentage: 70, UnitCost: 0.5},
		{IngredientID: 2, Percentage: 40, UnitCost: 0.1},
	}
	d, err := Restore(100, lines)
	if err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	if err := d.Validate(); !errors.Is(err, apperr.ErrCompositionOverflow) {
		t.Fatalf("expected overflow from Validate, got %v", err)
	}
	nearlyEqual(t, "remaining", d.Remaining(), -10)

	if _, err := Restore(100, []Line{{IngredientID: 0, Percentage: 10}}); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error for missing ingredient, got %v", err)
	}
	if _, err := Restore(0, nil); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error for zero weight, got %v", err)
	}
}

func TestRestoreRecomputesGramsAndCost(t *testing.T) {
	t.Parallel()

	d, err := Restore(200, []Line{
		{IngredientID: 1, Percentage: 25, UnitCost: 0.5, Grams: 9999, Cost: 0.01},
		{IngredientID: 2, Percentage: 10, Grams: 10, Cost: 3},
	})
	if err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	lines := d.Lines()
	nearlyEqual(t, "grams[0]", lines[0].Grams, 50)
	nearlyEqual(t, "cost[0]", lines[0].Cost, 25)
	nearlyEqual(t, "unit_cost[1]", lines[1].UnitCost, 0.3)
	nearlyEqual(t, "grams[1]", lines[1].Grams, 20)
	nearlyEqual(t, "cost[1]", lines[1].Cost, 6)
	if lines[0].Percentage != 25 || lines[1].Percentage != 10 {
		t.Fatalf("percentages changed: %+v", lines)
	}
}

func TestParseMethod(t *testing.T) {
	t.Parallel()

	for _, value := range []string{"percentage", "grams", "fill_remaining"} {
		if _, err := ParseMethod(value); err != nil {
			t.Fatalf("ParseMethod(%q) error = %v", value, err)
		}
	}
	if _, err := ParseMethod("ounces"); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
