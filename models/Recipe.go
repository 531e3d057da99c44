package models

import (
	"gorm.io/gorm"
)

type Recipe struct {
	gorm.Model
	Name        string        `gorm:"not null" json:"name"`
	BatchWeight float64       `gorm:"not null" json:"batch_weight"`
	Margin      float64       `gorm:"not null;default:0" json:"margin"`
	Notes       string        `gorm:"type:text" json:"notes"`
	TotalCost   float64       `gorm:"not null;default:0" json:"total_cost"`
	SalePrice   float64       `gorm:"not null;default:0" json:"sale_price"`
	Lines       []RecipeLine  `gorm:"foreignKey:RecipeID" json:"lines"`
	Extras      []RecipeExtra `gorm:"foreignKey:RecipeID" json:"extras"`
}
