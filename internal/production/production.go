// Package production turns a recipe and a unit count into an all-or-nothing
// stock deduction.
//
// A stored recipe's batch weight is the weight of one saleable unit, so the
// grams of each line are the grams needed per unit produced.
package production

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"formulary/internal/apperr"
	"formulary/internal/inventory"
	"formulary/internal/lock"
	applog "formulary/internal/log"
	"formulary/models"
)

// State is a step of a production request.
type State string

const (
	StateRequested            State = "requested"
	StateRequirementsComputed State = "requirements_computed"
	StateValidated            State = "validated"
	StateCommitted            State = "committed"
	StateRejected             State = "rejected"
)

// stockEpsilon absorbs float drift when comparing stock with a requirement.
const stockEpsilon = 1e-9

// Requirement is the demand a production request places on one ingredient.
type Requirement struct {
	IngredientID uint    `json:"ingredient_id"`
	Name         string  `json:"name"`
	PerUnit      float64 `json:"per_unit"`
	Required     float64 `json:"required"`
	Available    float64 `json:"available"`
	Shortfall    float64 `json:"shortfall"`
}

// Plan previews a production request without writing anything.
type Plan struct {
	RecipeID     uint          `json:"recipe_id"`
	RecipeName   string        `json:"recipe_name"`
	Units        int           `json:"units"`
	Requirements []Requirement `json:"requirements"`
	Feasible     bool          `json:"feasible"`
}

// Result describes a committed production run.
type Result struct {
	RunID      string        `json:"run_id"`
	RecipeID   uint          `json:"recipe_id"`
	RecipeName string        `json:"recipe_name"`
	Units      int           `json:"units"`
	Deducted   []Requirement `json:"deducted"`
}

// Transactor validates and commits production runs.
type Transactor struct {
	db     *gorm.DB
	locker lock.Locker
}

// NewTransactor returns a Transactor. locker must be the one the ingredient
// ledger uses so that every stock mutation is serialized the same way.
func NewTransactor(db *gorm.DB, locker lock.Locker) *Transactor {
	if locker == nil {
		locker = lock.NewLocal()
	}
	return &Transactor{db: db, locker: locker}
}

// Units converts a requested unit count to an int, rejecting values that
// are not positive whole numbers.
func Units(value float64) (int, error) {
	if math.IsNaN(value) || math.IsInf(value, 0) || value <= 0 || value != math.Trunc(value) || value > math.MaxInt32 {
		return 0, &apperr.InvalidQuantity{Value: value}
	}
	return int(value), nil
}

// Plan computes what producing units of recipeID would consume and which
// ingredients fall short.
func (t *Transactor) Plan(ctx context.Context, recipeID uint, units int) (*Plan, error) {
	if units <= 0 {
		return nil, &apperr.InvalidQuantity{Value: float64(units)}
	}
	name, reqs, err := requirements(t.db.WithContext(ctx), recipeID, units)
	if err != nil {
		return nil, err
	}

	plan := &Plan{RecipeID: recipeID, RecipeName: name, Units: units, Feasible: true}
	for _, r := range reqs {
		var ingredient models.Ingredient
		if err := t.db.WithContext(ctx).First(&ingredient, r.IngredientID).Error; err != nil {
			return nil, apperr.Storage(fmt.Sprintf("load ingredient %d", r.IngredientID), err)
		}
		r.Name = ingredient.Name
		r.Available = ingredient.Stock
		if ingredient.Stock+stockEpsilon < r.Required {
			r.Shortfall = r.Required - ingredient.Stock
			plan.Feasible = false
		}
		plan.Requirements = append(plan.Requirements, r)
	}
	return plan, nil
}

// Produce deducts the stock needed for units of recipeID. Either every
// ingredient is deducted or none is; when any ingredient is short the
// returned *apperr.InsufficientStock lists all of them.
func (t *Transactor) Produce(ctx context.Context, recipeID uint, units int) (*Result, error) {
	runID := uuid.NewString()
	ctx = applog.With(ctx, "run_id", runID, "recipe_id", recipeID, "units", units)
	applog.Debug(ctx, "production state", "state", StateRequested)

	if units <= 0 {
		applog.Debug(ctx, "production state", "state", StateRejected, "reason", "invalid quantity")
		return nil, &apperr.InvalidQuantity{Value: float64(units)}
	}

	name, reqs, err := requirements(t.db.WithContext(ctx), recipeID, units)
	if err != nil {
		return nil, err
	}
	applog.Debug(ctx, "production state", "state", StateRequirementsComputed, "ingredients", len(reqs))

	keys := make([]string, 0, len(reqs))
	for _, r := range reqs {
		keys = append(keys, lock.IngredientKey(r.IngredientID))
	}
	unlock, err := t.locker.Lock(ctx, keys...)
	if err != nil {
		applog.Error(ctx, "failed to lock ingredients", "error", err)
		return nil, err
	}
	defer unlock()

	err = t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ingredients := make([]*models.Ingredient, len(reqs))
		var shortfalls []apperr.Shortfall
		for i := range reqs {
			ingredient, err := inventory.LoadForUpdate(tx, reqs[i].IngredientID)
			if err != nil {
				return err
			}
			ingredients[i] = ingredient
			reqs[i].Name = ingredient.Name
			reqs[i].Available = ingredient.Stock
			if ingredient.Stock+stockEpsilon < reqs[i].Required {
				reqs[i].Shortfall = reqs[i].Required - ingredient.Stock
				shortfalls = append(shortfalls, apperr.Shortfall{
					IngredientID: ingredient.ID,
					Name:         ingredient.Name,
					Required:     reqs[i].Required,
					Available:    ingredient.Stock,
				})
			}
		}
		if len(shortfalls) > 0 {
			return &apperr.InsufficientStock{Shortfalls: shortfalls}
		}
		applog.Debug(ctx, "production state", "state", StateValidated)

		for i, ingredient := range ingredients {
			if err := inventory.Deduct(tx, ingredient, reqs[i].Required); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		var short *apperr.InsufficientStock
		if errors.As(err, &short) {
			applog.Warn(ctx, "production rejected", "state", StateRejected, "short", short.Names())
		} else {
			applog.Error(ctx, "production failed", "state", StateRejected, "error", err)
		}
		return nil, err
	}

	applog.Info(ctx, "production committed", "state", StateCommitted, "recipe", name)
	return &Result{RunID: runID, RecipeID: recipeID, RecipeName: name, Units: units, Deducted: reqs}, nil
}

// requirements loads the recipe's lines and sums grams per ingredient,
// keeping the order in which ingredients first appear.
func requirements(db *gorm.DB, recipeID uint, units int) (string, []Requirement, error) {
	var recipe models.Recipe
	if err := db.Select("id", "name").First(&recipe, recipeID).Error; err != nil {
		return "", nil, apperr.Storage(fmt.Sprintf("load recipe %d", recipeID), err)
	}
	var lines []models.RecipeLine
	if err := db.Where("recipe_id = ?", recipeID).Order("position").Find(&lines).Error; err != nil {
		return "", nil, apperr.Storage("load recipe lines", err)
	}
	if len(lines) == 0 {
		return "", nil, apperr.Invalid("recipe_id", fmt.Sprintf("recipe %q has no ingredients", recipe.Name))
	}

	index := map[uint]int{}
	var reqs []Requirement
	for _, line := range lines {
		i, ok := index[line.IngredientID]
		if !ok {
			i = len(reqs)
			index[line.IngredientID] = i
			reqs = append(reqs, Requirement{IngredientID: line.IngredientID})
		}
		reqs[i].PerUnit += line.Grams
	}
	for i := range reqs {
		reqs[i].Required = reqs[i].PerUnit * float64(units)
	}
	return recipe.Name, reqs, nil
}
