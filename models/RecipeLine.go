package models

// RecipeLine is one ingredient of a recipe. Grams are grams per produced
// unit and Cost is the snapshot taken when the line was formulated.
type RecipeLine struct {
	ID           uint        `gorm:"primaryKey" json:"id"`
	RecipeID     uint        `gorm:"not null;index" json:"recipe_id"`
	Position     int         `gorm:"not null;default:0" json:"position"`
	IngredientID uint        `gorm:"not null;index" json:"ingredient_id"`
	Percentage   float64     `gorm:"not null" json:"percentage"`
	Grams        float64     `gorm:"not null" json:"grams"`
	Cost         float64     `gorm:"not null" json:"cost"`
	Ingredient   *Ingredient `gorm:"foreignKey:IngredientID" json:"ingredient,omitempty"`
}
