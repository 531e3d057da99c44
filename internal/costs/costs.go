// Package costs manages the catalog of flat operational costs (labels,
// packaging, labour) that recipes attach as extras.
package costs

import (
	"context"
	"fmt"
	"math"
	"strings"

	"gorm.io/gorm"

	"formulary/internal/apperr"
	applog "formulary/internal/log"
	"formulary/models"
)

// Catalog reads and writes operational costs.
type Catalog struct {
	db *gorm.DB
}

func NewCatalog(db *gorm.DB) *Catalog {
	return &Catalog{db: db}
}

func (c *Catalog) Create(ctx context.Context, name string, price float64) (*models.OperationalCost, error) {
	name = strings.TrimSpace(name)
	if err := validate(name, price); err != nil {
		return nil, err
	}
	cost := &models.OperationalCost{Name: name, Price: price}
	if err := c.db.WithContext(ctx).Create(cost).Error; err != nil {
		applog.Error(ctx, "failed to create operational cost", "name", name, "error", err)
		return nil, apperr.Named("create operational cost", "operational cost", name, err)
	}
	applog.Debug(ctx, "operational cost created", "cost_id", cost.ID, "name", name)
	return cost, nil
}

func (c *Catalog) Get(ctx context.Context, id uint) (*models.OperationalCost, error) {
	var cost models.OperationalCost
	if err := c.db.WithContext(ctx).First(&cost, id).Error; err != nil {
		return nil, apperr.Storage(fmt.Sprintf("load operational cost %d", id), err)
	}
	return &cost, nil
}

// List returns every operational cost ordered by name.
func (c *Catalog) List(ctx context.Context) ([]models.OperationalCost, error) {
	var list []models.OperationalCost
	if err := c.db.WithContext(ctx).Order("name").Find(&list).Error; err != nil {
		return nil, apperr.Storage("list operational costs", err)
	}
	return list, nil
}

// Update changes name and price. Recipes that already attached the cost
// keep the price they captured.
func (c *Catalog) Update(ctx context.Context, id uint, name string, price float64) (*models.OperationalCost, error) {
	name = strings.TrimSpace(name)
	if err := validate(name, price); err != nil {
		return nil, err
	}
	res := c.db.WithContext(ctx).Model(&models.OperationalCost{}).Where("id = ?", id).
		Updates(map[string]any{"name": name, "price": price})
	if res.Error != nil {
		return nil, apperr.Named("update operational cost", "operational cost", name, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("update operational cost %d: %w", id, apperr.ErrNotFound)
	}
	applog.Debug(ctx, "operational cost updated", "cost_id", id)
	return c.Get(ctx, id)
}

// Delete removes a cost no recipe has attached.
func (c *Catalog) Delete(ctx context.Context, id uint) error {
	return c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var refs int64
		if err := tx.Model(&models.RecipeExtra{}).Where("operational_cost_id = ?", id).Count(&refs).Error; err != nil {
			return apperr.Storage("count operational cost references", err)
		}
		if refs > 0 {
			return fmt.Errorf("delete operational cost %d: attached to %d recipes: %w", id, refs, apperr.ErrInUse)
		}
		res := tx.Unscoped().Delete(&models.OperationalCost{}, id)
		if res.Error != nil {
			return apperr.Storage("delete operational cost", res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("delete operational cost %d: %w", id, apperr.ErrNotFound)
		}
		applog.Debug(ctx, "operational cost deleted", "cost_id", id)
		return nil
	})
}

func validate(name string, price float64) error {
	if name == "" {
		return apperr.Invalid("name", "is required")
	}
	if math.IsNaN(price) || math.IsInf(price, 0) || price < 0 {
		return apperr.Invalid("price", "must not be negative")
	}
	return nil
}
