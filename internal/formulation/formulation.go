// Package formulation keeps the percentage, grams and cost of each recipe
// line consistent with a batch weight.
//
// Percentage is the quantity preserved by every operation: grams and cost
// are always derived from it, so rescaling a batch never changes the
// proportions of a formula.
package formulation

import (
	"fmt"
	"math"

	"formulary/internal/apperr"
)

const (
	// Ceiling is the total percentage a composition may reach.
	Ceiling = 100.0
	// Tolerance absorbs floating round-off when checking the ceiling.
	Tolerance = 0.01
)

// Method selects how the amount passed to AddLine is interpreted.
type Method string

const (
	MethodPercentage    Method = "percentage"
	MethodGrams         Method = "grams"
	MethodFillRemaining Method = "fill_remaining"
)

// ParseMethod validates a method name received from a caller.
func ParseMethod(value string) (Method, error) {
	switch m := Method(value); m {
	case MethodPercentage, MethodGrams, MethodFillRemaining:
		return m, nil
	default:
		return "", apperr.Invalid("method", fmt.Sprintf("unknown entry method %q", value))
	}
}

// Ingredient is the ledger state a line captures when it is added.
type Ingredient struct {
	ID       uint
	Name     string
	UnitCost float64
}

// Line is one formulated ingredient. UnitCost is the snapshot used to
// derive Cost and is only re-applied on Rescale.
type Line struct {
	IngredientID uint    `json:"ingredient_id"`
	Name         string  `json:"name"`
	Method       Method  `json:"method,omitempty"`
	UnitCost     float64 `json:"unit_cost"`
	Percentage   float64 `json:"percentage"`
	Grams        float64 `json:"grams"`
	Cost         float64 `json:"cost"`
}

// Draft is an in-progress composition for a given batch weight.
type Draft struct {
	batchWeight float64
	lines       []Line
}

// NewDraft starts an empty composition.
func NewDraft(batchWeight float64) (*Draft, error) {
	if err := checkBatchWeight(batchWeight); err != nil {
		return nil, err
	}
	return &Draft{batchWeight: batchWeight}, nil
}

// Restore rebuilds a draft from lines produced earlier, for example by a
// client that keeps the in-progress line set between calls. Grams and cost
// are recomputed from each line's percentage and unit cost; a line without a
// unit cost takes it from its cost per gram. The ceiling is not checked,
// call Validate before persisting.
func Restore(batchWeight float64, lines []Line) (*Draft, error) {
	d, err := NewDraft(batchWeight)
	if err != nil {
		return nil, err
	}
	restored := make([]Line, len(lines))
	for i, line := range lines {
		if line.IngredientID == 0 {
			return nil, apperr.Invalid(fmt.Sprintf("lines[%d].ingredient_id", i), "is required")
		}
		if !finite(line.Percentage) || line.Percentage <= 0 {
			return nil, apperr.Invalid(fmt.Sprintf("lines[%d].percentage", i), "must be greater than zero")
		}
		if !finite(line.UnitCost) || line.UnitCost < 0 {
			return nil, apperr.Invalid(fmt.Sprintf("lines[%d].unit_cost", i), "must not be negative")
		}
		if line.UnitCost == 0 && line.Cost > 0 && line.Grams > 0 {
			line.UnitCost = line.Cost / line.Grams
		}
		line.Grams = GramsFor(line.Percentage, batchWeight)
		line.Cost = line.Grams * line.UnitCost
		restored[i] = line
	}
	d.lines = restored
	return d, nil
}

// BatchWeight returns the weight in grams that 100% of the composition represents.
func (d *Draft) BatchWeight() float64 { return d.batchWeight }

// Lines returns a copy of the current line set.
func (d *Draft) Lines() []Line {
	out := make([]Line, len(d.lines))
	copy(out, d.lines)
	return out
}

// TotalPercentage sums the percentage of every line.
func (d *Draft) TotalPercentage() float64 {
	return TotalPercentage(d.lines)
}

// Remaining is the headroom left before the ceiling. It is negative when a
// restored line set already overflows.
func (d *Draft) Remaining() float64 {
	return Ceiling - d.TotalPercentage()
}

// AddLine appends a line for ingredient. The line set is unchanged when an
// error is returned.
func (d *Draft) AddLine(method Method, amount float64, ingredient Ingredient) (Line, error) {
	if ingredient.ID == 0 {
		return Line{}, apperr.Invalid("ingredient_id", "is required")
	}
	if !finite(ingredient.UnitCost) || ingredient.UnitCost < 0 {
		return Line{}, apperr.Invalid("unit_cost", "must not be negative")
	}

	total := d.TotalPercentage()
	var pct float64
	switch method {
	case MethodPercentage:
		if !finite(amount) || amount <= 0 {
			return Line{}, apperr.Invalid("amount", "percentage must be greater than zero")
		}
		pct = amount
	case MethodGrams:
		if !finite(amount) || amount <= 0 {
			return Line{}, apperr.Invalid("amount", "grams must be greater than zero")
		}
		pct = amount / d.batchWeight * 100
	case MethodFillRemaining:
		pct = Ceiling - total
		if pct <= 0 {
			return Line{}, &apperr.CompositionOverflow{Requested: 0, Remaining: math.Max(pct, 0)}
		}
	default:
		return Line{}, apperr.Invalid("method", fmt.Sprintf("unknown entry method %q", method))
	}

	if total+pct > Ceiling+Tolerance {
		return Line{}, &apperr.CompositionOverflow{Requested: pct, Remaining: math.Max(Ceiling-total, 0)}
	}

	line := Line{
		IngredientID: ingredient.ID,
		Name:         ingredient.Name,
		Method:       method,
		UnitCost:     ingredient.UnitCost,
		Percentage:   pct,
	}
	line.Grams = GramsFor(pct, d.batchWeight)
	line.Cost = line.Grams * line.UnitCost

	d.lines = append(d.lines, line)
	return line, nil
}

// RemoveLine drops the line at index. Sibling lines keep their percentages.
func (d *Draft) RemoveLine(index int) error {
	if index < 0 || index >= len(d.lines) {
		return apperr.Invalid("index", fmt.Sprintf("line %d does not exist", index))
	}
	d.lines = append(d.lines[:index], d.lines[index+1:]...)
	return nil
}

// Rescale recomputes grams and cost of every line for a new batch weight.
// Percentages are left untouched.
func (d *Draft) Rescale(newBatchWeight float64) ([]Line, error) {
	if err := checkBatchWeight(newBatchWeight); err != nil {
		return nil, err
	}
	d.batchWeight = newBatchWeight
	for i := range d.lines {
		d.lines[i].Grams = GramsFor(d.lines[i].Percentage, newBatchWeight)
		d.lines[i].Cost = d.lines[i].Grams * d.lines[i].UnitCost
	}
	return d.Lines(), nil
}

// Validate checks the composition ceiling before the line set is persisted.
func (d *Draft) Validate() error {
	return CheckCeiling(d.lines)
}

// GramsFor converts a percentage of batchWeight to grams.
func GramsFor(percentage, batchWeight float64) float64 {
	return percentage / 100 * batchWeight
}

// TotalPercentage sums the percentage of lines.
func TotalPercentage(lines []Line) float64 {
	total := 0.0
	for _, line := range lines {
		total += line.Percentage
	}
	return total
}

// CheckCeiling rejects a line set whose percentages exceed 100% + Tolerance.
func CheckCeiling(lines []Line) error {
	total := TotalPercentage(lines)
	if total > Ceiling+Tolerance {
		return &apperr.CompositionOverflow{Requested: total, Remaining: 0}
	}
	return nil
}

func checkBatchWeight(weight float64) error {
	if !finite(weight) || weight <= 0 {
		return apperr.Invalid("batch_weight", "must be greater than zero")
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
