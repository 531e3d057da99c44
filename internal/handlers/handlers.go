package handlers

import (
	"github.com/alexedwards/scs/v2"
	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"

	"formulary/internal/costs"
	"formulary/internal/inventory"
	"formulary/internal/lock"
	"formulary/internal/production"
	"formulary/internal/recipes"
)

var (
	sessionManager *scs.SessionManager
	database       *gorm.DB

	ledger        *inventory.Ledger
	catalog       *costs.Catalog
	recipeService *recipes.Service
	transactor    *production.Transactor

	validate = newValidator()
)

// Configure installs the shared dependencies used by the HTTP handlers.
// The ledger and the production transactor share locker so that manual
// stock edits and production runs are serialized together.
func Configure(sm *scs.SessionManager, db *gorm.DB, locker lock.Locker) {
	sessionManager = sm
	database = db
	if db == nil {
		ledger, catalog, recipeService, transactor = nil, nil, nil, nil
		return
	}
	if locker == nil {
		locker = lock.NewLocal()
	}
	ledger = inventory.NewLedger(db, locker)
	catalog = costs.NewCatalog(db)
	recipeService = recipes.NewService(db)
	transactor = production.NewTransactor(db, locker)
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(jsonFieldName)
	return v
}
