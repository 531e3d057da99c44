package models

import (
	"gorm.io/gorm"
)

// OperationalCost is a flat cost item (labels, jars, labour) that can be
// attached to recipes.
type OperationalCost struct {
	gorm.Model
	Name  string  `gorm:"uniqueIndex;not null" json:"name"`
	Price float64 `gorm:"not null;default:0" json:"price"`
}
