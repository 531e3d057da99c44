package models

import (
	"gorm.io/gorm"
)

// Ingredient is a raw material held in stock, measured in grams.
type Ingredient struct {
	gorm.Model
	Name      string  `gorm:"uniqueIndex;not null" json:"name"`
	Stock     float64 `gorm:"not null;default:0" json:"stock"`
	UnitCost  float64 `gorm:"not null;default:0" json:"unit_cost"`
	TotalCost float64 `gorm:"not null;default:0" json:"total_cost"`
	// Version is bumped on every stock or cost mutation and guards
	// compare-and-swap updates.
	Version int64 `gorm:"not null;default:0" json:"version"`
}

// UnitCostOf derives the per-gram cost of a stock position.
func UnitCostOf(stock, totalCost float64) float64 {
	if stock <= 0 {
		return 0
	}
	return totalCost / stock
}
