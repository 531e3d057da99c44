package models

// RecipeExtra attaches an operational cost to a recipe. Cost is a copy of
// the operational cost price at attachment time.
type RecipeExtra struct {
	ID                uint             `gorm:"primaryKey" json:"id"`
	RecipeID          uint             `gorm:"not null;uniqueIndex:idx_recipe_extra_cost" json:"recipe_id"`
	OperationalCostID uint             `gorm:"not null;uniqueIndex:idx_recipe_extra_cost" json:"operational_cost_id"`
	Cost              float64          `gorm:"not null" json:"cost"`
	OperationalCost   *OperationalCost `gorm:"foreignKey:OperationalCostID" json:"operational_cost,omitempty"`
}
