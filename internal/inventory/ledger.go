// Package inventory is the ingredient ledger: stock in grams and the cost
// of that stock. Stock changes from every caller (manual edits, top-ups and
// production) take the same per-ingredient lock and run in a transaction
// that re-reads the row and writes it back with a version check.
package inventory

import (
	"context"
	"fmt"
	"math"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"formulary/internal/apperr"
	"formulary/internal/lock"
	applog "formulary/internal/log"
	"formulary/models"
)

// Ledger reads and mutates ingredients.
type Ledger struct {
	db     *gorm.DB
	locker lock.Locker
}

// NewLedger returns a Ledger. A nil locker serializes within this process.
func NewLedger(db *gorm.DB, locker lock.Locker) *Ledger {
	if locker == nil {
		locker = lock.NewLocal()
	}
	return &Ledger{db: db, locker: locker}
}

// Locker exposes the lock shared by every stock mutation.
func (l *Ledger) Locker() lock.Locker { return l.locker }

// Create registers an ingredient with an opening stock and its total cost.
// As with Overwrite, a zero stock is stored with a zero total cost.
func (l *Ledger) Create(ctx context.Context, name string, stock, totalCost float64) (*models.Ingredient, error) {
	name = strings.TrimSpace(name)
	if err := checkName(name); err != nil {
		return nil, err
	}
	if err := checkAmounts(stock, totalCost); err != nil {
		return nil, err
	}

	if stock == 0 {
		totalCost = 0
	}

	ingredient := &models.Ingredient{
		Name:      name,
		Stock:     stock,
		TotalCost: totalCost,
		UnitCost:  models.UnitCostOf(stock, totalCost),
	}
	if err := l.db.WithContext(ctx).Create(ingredient).Error; err != nil {
		applog.Error(ctx, "failed to create ingredient", "name", name, "error", err)
		return nil, apperr.Named("create ingredient", "ingredient", name, err)
	}
	applog.Debug(ctx, "ingredient created", "ingredient_id", ingredient.ID, "name", name)
	return ingredient, nil
}

// Get loads one ingredient.
func (l *Ledger) Get(ctx context.Context, id uint) (*models.Ingredient, error) {
	var ingredient models.Ingredient
	if err := l.db.WithContext(ctx).First(&ingredient, id).Error; err != nil {
		return nil, apperr.Storage(fmt.Sprintf("load ingredient %d", id), err)
	}
	return &ingredient, nil
}

// FindByName loads an ingredient by its exact name.
func (l *Ledger) FindByName(ctx context.Context, name string) (*models.Ingredient, error) {
	var ingredient models.Ingredient
	if err := l.db.WithContext(ctx).Where("name = ?", strings.TrimSpace(name)).First(&ingredient).Error; err != nil {
		return nil, apperr.Storage(fmt.Sprintf("load ingredient %q", name), err)
	}
	return &ingredient, nil
}

// List returns every ingredient ordered by name.
func (l *Ledger) List(ctx context.Context) ([]models.Ingredient, error) {
	var ingredients []models.Ingredient
	if err := l.db.WithContext(ctx).Order("name").Find(&ingredients).Error; err != nil {
		return nil, apperr.Storage("list ingredients", err)
	}
	return ingredients, nil
}

// TopUp adds a purchase of quantity grams costing cost to the stock.
func (l *Ledger) TopUp(ctx context.Context, id uint, quantity, cost float64) (*models.Ingredient, error) {
	if !finite(quantity) || quantity <= 0 {
		return nil, apperr.Invalid("quantity", "must be greater than zero")
	}
	if !finite(cost) || cost < 0 {
		return nil, apperr.Invalid("cost", "must not be negative")
	}
	return l.mutate(ctx, id, "top up", func(ingredient *models.Ingredient) {
		ingredient.Stock += quantity
		ingredient.TotalCost += cost
	})
}

// Overwrite replaces the stock position, as after a physical count. An
// empty stock carries no cost: totalCost is stored as 0 when stock is 0.
func (l *Ledger) Overwrite(ctx context.Context, id uint, stock, totalCost float64) (*models.Ingredient, error) {
	if err := checkAmounts(stock, totalCost); err != nil {
		return nil, err
	}
	return l.mutate(ctx, id, "overwrite", func(ingredient *models.Ingredient) {
		ingredient.Stock = stock
		ingredient.TotalCost = totalCost
	})
}

// Rename changes an ingredient's name. Stock is not touched.
func (l *Ledger) Rename(ctx context.Context, id uint, name string) (*models.Ingredient, error) {
	name = strings.TrimSpace(name)
	if err := checkName(name); err != nil {
		return nil, err
	}

	res := l.db.WithContext(ctx).Model(&models.Ingredient{}).Where("id = ?", id).Update("name", name)
	if res.Error != nil {
		return nil, apperr.Named("rename ingredient", "ingredient", name, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("rename ingredient %d: %w", id, apperr.ErrNotFound)
	}
	applog.Debug(ctx, "ingredient renamed", "ingredient_id", id, "name", name)
	return l.Get(ctx, id)
}

// Delete removes an ingredient that no recipe line references.
func (l *Ledger) Delete(ctx context.Context, id uint) error {
	unlock, err := l.locker.Lock(ctx, lock.IngredientKey(id))
	if err != nil {
		return err
	}
	defer unlock()

	return l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var refs int64
		if err := tx.Model(&models.RecipeLine{}).Where("ingredient_id = ?", id).Count(&refs).Error; err != nil {
			return apperr.Storage("count ingredient references", err)
		}
		if refs > 0 {
			return fmt.Errorf("delete ingredient %d: used by %d recipe lines: %w", id, refs, apperr.ErrInUse)
		}
		res := tx.Unscoped().Delete(&models.Ingredient{}, id)
		if res.Error != nil {
			return apperr.Storage("delete ingredient", res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("delete ingredient %d: %w", id, apperr.ErrNotFound)
		}
		applog.Debug(ctx, "ingredient deleted", "ingredient_id", id)
		return nil
	})
}

func (l *Ledger) mutate(ctx context.Context, id uint, op string, apply func(*models.Ingredient)) (*models.Ingredient, error) {
	unlock, err := l.locker.Lock(ctx, lock.IngredientKey(id))
	if err != nil {
		return nil, err
	}
	defer unlock()

	var out models.Ingredient
	err = l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ingredient, err := LoadForUpdate(tx, id)
		if err != nil {
			return err
		}
		apply(ingredient)
		if err := Save(tx, ingredient); err != nil {
			return err
		}
		out = *ingredient
		return nil
	})
	if err != nil {
		applog.Error(ctx, "ingredient "+op+" failed", "ingredient_id", id, "error", err)
		return nil, err
	}
	applog.Debug(ctx, "ingredient "+op, "ingredient_id", id, "stock", out.Stock, "total_cost", out.TotalCost)
	return &out, nil
}

// ForUpdate adds a row lock to the query on databases that support one.
// sqlite serializes writers on its own.
func ForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "sqlite" {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

// LoadForUpdate reads an ingredient inside tx, locking its row.
func LoadForUpdate(tx *gorm.DB, id uint) (*models.Ingredient, error) {
	var ingredient models.Ingredient
	if err := ForUpdate(tx).First(&ingredient, id).Error; err != nil {
		return nil, apperr.Storage(fmt.Sprintf("load ingredient %d", id), err)
	}
	return &ingredient, nil
}

// Save writes stock and cost back, recomputing the unit cost. It fails
// with ErrConflict when the row changed since it was read.
func Save(tx *gorm.DB, ingredient *models.Ingredient) error {
	if ingredient.Stock < 0 {
		return apperr.Invalid("stock", "must not be negative")
	}
	if ingredient.Stock == 0 || ingredient.TotalCost < 0 {
		ingredient.TotalCost = 0
	}
	ingredient.UnitCost = models.UnitCostOf(ingredient.Stock, ingredient.TotalCost)

	res := tx.Model(&models.Ingredient{}).
		Where("id = ? AND version = ?", ingredient.ID, ingredient.Version).
		Updates(map[string]any{
			"stock":      ingredient.Stock,
			"total_cost": ingredient.TotalCost,
			"unit_cost":  ingredient.UnitCost,
			"version":    gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		return apperr.Storage(fmt.Sprintf("update ingredient %d", ingredient.ID), res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("update ingredient %d: %w", ingredient.ID, apperr.ErrConflict)
	}
	ingredient.Version++
	return nil
}

// Deduct removes grams from ingredient inside tx, reducing its total cost
// at the current unit cost. Stock is clamped at zero to absorb float drift;
// callers check availability before deducting.
func Deduct(tx *gorm.DB, ingredient *models.Ingredient, grams float64) error {
	if !finite(grams) || grams < 0 {
		return apperr.Invalid("grams", "must not be negative")
	}
	ingredient.TotalCost -= grams * ingredient.UnitCost
	ingredient.Stock = math.Max(ingredient.Stock-grams, 0)
	return Save(tx, ingredient)
}

func checkName(name string) error {
	if name == "" {
		return apperr.Invalid("name", "is required")
	}
	return nil
}

func checkAmounts(stock, totalCost float64) error {
	if !finite(stock) || stock < 0 {
		return apperr.Invalid("stock", "must not be negative")
	}
	if !finite(totalCost) || totalCost < 0 {
		return apperr.Invalid("total_cost", "must not be negative")
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
