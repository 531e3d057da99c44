package mock

import (
	"context"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"formulary/internal/db"
	applog "formulary/internal/log"
	"formulary/models"
)

// Operator credentials seeded into the mock database.
const (
	OperatorEmail    = "operator@formulary.local"
	OperatorPassword = "workshop"
)

// New returns an in-memory sqlite database seeded with a small workshop:
// three ingredients, two operational costs and one costed recipe.
func New(ctx context.Context) (*gorm.DB, error) {
	applog.Debug(ctx, "initialising mock database")

	cfg := db.GormConfig()
	cfg.Logger = logger.Default.LogMode(logger.Silent)

	database, err := gorm.Open(sqlite.Open("file:formulary-mock?mode=memory&cache=shared"), cfg)
	if err != nil {
		return nil, err
	}

	// Shared-cache sqlite reports table locks across connections.
	sqlDB, err := database.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(database); err != nil {
		return nil, err
	}

	var users int64
	if err := database.WithContext(ctx).Model(&models.User{}).Count(&users).Error; err != nil {
		return nil, err
	}
	if users == 0 {
		if err := seed(ctx, database); err != nil {
			return nil, err
		}
	}

	applog.Debug(ctx, "mock database ready")
	return database, nil
}

func seed(ctx context.Context, database *gorm.DB) error {
	applog.Debug(ctx, "seeding mock database")

	password, err := bcrypt.GenerateFromPassword([]byte(OperatorPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	return database.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user := &models.User{
			Name:         "Workshop Operator",
			Email:        OperatorEmail,
			PasswordHash: string(password),
		}
		if err := tx.Create(user).Error; err != nil {
			return err
		}

		wax := models.Ingredient{Name: "Beeswax", Stock: 1000, TotalCost: 500}
		oil := models.Ingredient{Name: "Sweet Almond Oil", Stock: 2000, TotalCost: 60}
		butter := models.Ingredient{Name: "Shea Butter", Stock: 500, TotalCost: 45}
		for _, ingredient := range []*models.Ingredient{&wax, &oil, &butter} {
			ingredient.UnitCost = models.UnitCostOf(ingredient.Stock, ingredient.TotalCost)
			if err := tx.Create(ingredient).Error; err != nil {
				return err
			}
		}

		label := models.OperationalCost{Name: "Label", Price: 2}
		tin := models.OperationalCost{Name: "Tin 100g", Price: 1.2}
		for _, cost := range []*models.OperationalCost{&label, &tin} {
			if err := tx.Create(cost).Error; err != nil {
				return err
			}
		}

		// Lip balm: 50% wax, 30% oil, 20% butter on a 100 g batch.
		balm := models.Recipe{
			Name:        "Lip Balm",
			BatchWeight: 100,
			Margin:      50,
			Notes:       "Melt wax and butter before adding the oil.",
		}
		lines := []models.RecipeLine{
			{Position: 0, IngredientID: wax.ID, Percentage: 50, Grams: 50, Cost: 50 * wax.UnitCost},
			{Position: 1, IngredientID: oil.ID, Percentage: 30, Grams: 30, Cost: 30 * oil.UnitCost},
			{Position: 2, IngredientID: butter.ID, Percentage: 20, Grams: 20, Cost: 20 * butter.UnitCost},
		}
		extras := []models.RecipeExtra{
			{OperationalCostID: label.ID, Cost: label.Price},
			{OperationalCostID: tin.ID, Cost: tin.Price},
		}
		for _, line := range lines {
			balm.TotalCost += line.Cost
		}
		for _, extra := range extras {
			balm.TotalCost += extra.Cost
		}
		balm.SalePrice = balm.TotalCost * (1 + balm.Margin/100)

		if err := tx.Omit("Lines", "Extras").Create(&balm).Error; err != nil {
			return err
		}
		for i := range lines {
			lines[i].RecipeID = balm.ID
		}
		for i := range extras {
			extras[i].RecipeID = balm.ID
		}
		if err := tx.Create(&lines).Error; err != nil {
			return err
		}
		if err := tx.Create(&extras).Error; err != nil {
			return err
		}

		applog.Debug(ctx, "mock database seeded", "ingredients", 3, "recipes", 1)
		return nil
	})
}
