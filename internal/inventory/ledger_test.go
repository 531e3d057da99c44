package inventory

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"gorm.io/gorm"

	"formulary/internal/apperr"
	"formulary/internal/db/dbtest"
	"formulary/models"
)

func newTestLedger(t *testing.T) (*Ledger, *gorm.DB) {
	t.Helper()
	database := dbtest.Open(t)
	return NewLedger(database, nil), database
}

func nearlyEqual(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestCreateDerivesUnitCost(t *testing.T) {
	ledger, _ := newTestLedger(t)
	ctx := context.Background()

	wax, err := ledger.Create(ctx, "  Wax ", 1000, 500)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if wax.Name != "Wax" {
		t.Fatalf("Name = %q, want trimmed name", wax.Name)
	}
	if !nearlyEqual(wax.UnitCost, 0.5) {
		t.Fatalf("UnitCost = %v, want 0.5", wax.UnitCost)
	}

	empty, err := ledger.Create(ctx, "Mica", 0, 0)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if empty.UnitCost != 0 {
		t.Fatalf("UnitCost = %v, want 0 for empty stock", empty.UnitCost)
	}
}

func TestCreateValidation(t *testing.T) {
	ledger, _ := newTestLedger(t)
	ctx := context.Background()

	tests := []struct {
		name      string
		label     string
		stock     float64
		totalCost float64
	}{
		{"blank name", "  ", 10, 1},
		{"negative stock", "Wax", -1, 1},
		{"negative cost", "Wax", 10, -1},
		{"nan stock", "Wax", math.NaN(), 1},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ledger.Create(ctx, tt.label, tt.stock, tt.totalCost); !errors.Is(err, apperr.ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestCreateRejectsDuplicateName(t *testing.T) {
	ledger, _ := newTestLedger(t)
	ctx := context.Background()

	if _, err := ledger.Create(ctx, "Wax", 10, 5); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	_, err := ledger.Create(ctx, "Wax", 20, 5)
	if !errors.Is(err, apperr.ErrDuplicateName) {
		t.Fatalf("expected duplicate name error, got %v", err)
	}
	if err.Error() != `duplicate name: ingredient "Wax" already exists` {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestTopUpAddsQuantityAndCost(t *testing.T) {
	ledger, _ := newTestLedger(t)
	ctx := context.Background()

	wax, err := ledger.Create(ctx, "Wax", 1000, 500)
	if err != nil {
		t.Fatal(err)
	}

	updated, err := ledger.TopUp(ctx, wax.ID, 1000, 700)
	if err != nil {
		t.Fatalf("TopUp() error = %v", err)
	}
	if !nearlyEqual(updated.Stock, 2000) || !nearlyEqual(updated.TotalCost, 1200) || !nearlyEqual(updated.UnitCost, 0.6) {
		t.Fatalf("unexpected ingredient after top-up: %+v", updated)
	}
	if updated.Version != wax.Version+1 {
		t.Fatalf("Version = %d, want %d", updated.Version, wax.Version+1)
	}

	stored, err := ledger.Get(ctx, wax.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !nearlyEqual(stored.Stock, 2000) || !nearlyEqual(stored.UnitCost, 0.6) {
		t.Fatalf("top-up was not persisted: %+v", stored)
	}

	if _, err := ledger.TopUp(ctx, wax.ID, 0, 1); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error for zero quantity, got %v", err)
	}
	if _, err := ledger.TopUp(ctx, 999, 10, 1); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestOverwriteReplacesPosition(t *testing.T) {
	ledger, _ := newTestLedger(t)
	ctx := context.Background()

	wax, err := ledger.Create(ctx, "Wax", 1000, 500)
	if err != nil {
		t.Fatal(err)
	}

	updated, err := ledger.Overwrite(ctx, wax.ID, 400, 100)
	if err != nil {
		t.Fatalf("Overwrite() error = %v", err)
	}
	if updated.Stock != 400 || updated.TotalCost != 100 || !nearlyEqual(updated.UnitCost, 0.25) {
		t.Fatalf("unexpected ingredient after overwrite: %+v", updated)
	}

	zeroed, err := ledger.Overwrite(ctx, wax.ID, 0, 30)
	if err != nil {
		t.Fatalf("Overwrite() error = %v", err)
	}
	if zeroed.TotalCost != 0 || zeroed.UnitCost != 0 {
		t.Fatalf("empty stock must carry no cost: %+v", zeroed)
	}

	stored, err := ledger.Get(ctx, wax.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.Stock != 0 || stored.TotalCost != 0 {
		t.Fatalf("stored position = %+v, want zero stock and cost", stored)
	}
}

func TestCreateWithoutStockCarriesNoCost(t *testing.T) {
	ledger, _ := newTestLedger(t)
	ctx := context.Background()

	mica, err := ledger.Create(ctx, "Mica", 0, 50)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if mica.TotalCost != 0 || mica.UnitCost != 0 {
		t.Fatalf("empty stock must carry no cost: %+v", mica)
	}

	topped, err := ledger.TopUp(ctx, mica.ID, 100, 20)
	if err != nil {
		t.Fatal(err)
	}
	if topped.TotalCost != 20 || !nearlyEqual(topped.UnitCost, 0.2) {
		t.Fatalf("first purchase must set the unit cost alone: %+v", topped)
	}
}

func TestRename(t *testing.T) {
	ledger, _ := newTestLedger(t)
	ctx := context.Background()

	wax, err := ledger.Create(ctx, "Wax", 10, 5)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ledger.Create(ctx, "Oil", 10, 5); err != nil {
		t.Fatal(err)
	}

	renamed, err := ledger.Rename(ctx, wax.ID, "Beeswax")
	if err != nil {
		t.Fatalf("Rename() error = %v", err)
	}
	if renamed.Name != "Beeswax" || renamed.Stock != 10 {
		t.Fatalf("unexpected ingredient after rename: %+v", renamed)
	}
	if _, err := ledger.Rename(ctx, wax.ID, "Oil"); !errors.Is(err, apperr.ErrDuplicateName) {
		t.Fatalf("expected duplicate name, got %v", err)
	}
	if _, err := ledger.Rename(ctx, 404, "Anything"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	found, err := ledger.FindByName(ctx, "Beeswax")
	if err != nil || found.ID != wax.ID {
		t.Fatalf("FindByName() = %+v, %v", found, err)
	}
}

func TestListOrdersByName(t *testing.T) {
	ledger, _ := newTestLedger(t)
	ctx := context.Background()

	for _, name := range []string{"Wax", "Almond Oil", "Mica"} {
		if _, err := ledger.Create(ctx, name, 1, 1); err != nil {
			t.Fatal(err)
		}
	}
	list, err := ledger.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	want := []string{"Almond Oil", "Mica", "Wax"}
	for i, ingredient := range list {
		if ingredient.Name != want[i] {
			t.Fatalf("List()[%d] = %q, want %q", i, ingredient.Name, want[i])
		}
	}
}

func TestDeleteRejectsReferencedIngredient(t *testing.T) {
	ledger, database := newTestLedger(t)
	ctx := context.Background()

	wax, err := ledger.Create(ctx, "Wax", 10, 5)
	if err != nil {
		t.Fatal(err)
	}
	oil, err := ledger.Create(ctx, "Oil", 10, 5)
	if err != nil {
		t.Fatal(err)
	}
	line := models.RecipeLine{RecipeID: 1, IngredientID: wax.ID, Percentage: 10, Grams: 10, Cost: 5}
	if err := database.Create(&line).Error; err != nil {
		t.Fatal(err)
	}

	if err := ledger.Delete(ctx, wax.ID); !errors.Is(err, apperr.ErrInUse) {
		t.Fatalf("expected in-use error, got %v", err)
	}
	if err := ledger.Delete(ctx, oil.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := ledger.Get(ctx, oil.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected deleted ingredient to be gone, got %v", err)
	}
	if err := ledger.Delete(ctx, oil.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found on second delete, got %v", err)
	}
}

func TestSaveDetectsStaleVersion(t *testing.T) {
	ledger, database := newTestLedger(t)
	ctx := context.Background()

	wax, err := ledger.Create(ctx, "Wax", 10, 5)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ledger.TopUp(ctx, wax.ID, 5, 1); err != nil {
		t.Fatal(err)
	}

	stale := *wax
	stale.Stock = 1
	if err := Save(database, &stale); !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("expected conflict for stale version, got %v", err)
	}

	negative := *wax
	negative.Stock = -1
	if err := Save(database, &negative); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error for negative stock, got %v", err)
	}
}

func TestConcurrentTopUpsAreAllApplied(t *testing.T) {
	ledger, _ := newTestLedger(t)
	ctx := context.Background()

	wax, err := ledger.Create(ctx, "Wax", 0, 0)
	if err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := ledger.TopUp(ctx, wax.ID, 10, 2); err != nil {
				t.Errorf("TopUp() error = %v", err)
			}
		}()
	}
	wg.Wait()

	stored, err := ledger.Get(ctx, wax.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !nearlyEqual(stored.Stock, 100) || !nearlyEqual(stored.TotalCost, 20) || stored.Version != 10 {
		t.Fatalf("unexpected ingredient after concurrent top-ups: %+v", stored)
	}
}

func TestDeductKeepsUnitCost(t *testing.T) {
	ledger, database := newTestLedger(t)
	ctx := context.Background()

	wax, err := ledger.Create(ctx, "Wax", 1000, 500)
	if err != nil {
		t.Fatal(err)
	}

	err = database.Transaction(func(tx *gorm.DB) error {
		ingredient, err := LoadForUpdate(tx, wax.ID)
		if err != nil {
			return err
		}
		return Deduct(tx, ingredient, 400)
	})
	if err != nil {
		t.Fatalf("Deduct() error = %v", err)
	}

	got, err := ledger.Get(ctx, wax.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Stock != 600 || !nearlyEqual(got.TotalCost, 300) || !nearlyEqual(got.UnitCost, 0.5) {
		t.Fatalf("after deduct got stock %v total %v unit %v", got.Stock, got.TotalCost, got.UnitCost)
	}

	err = database.Transaction(func(tx *gorm.DB) error {
		ingredient, err := LoadForUpdate(tx, wax.ID)
		if err != nil {
			return err
		}
		return Deduct(tx, ingredient, 600)
	})
	if err != nil {
		t.Fatalf("Deduct() to zero error = %v", err)
	}
	if got, _ = ledger.Get(ctx, wax.ID); got.Stock != 0 || got.TotalCost != 0 || got.UnitCost != 0 {
		t.Fatalf("expected empty position, got %+v", got)
	}

	if err := Deduct(database, got, -1); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error for negative grams, got %v", err)
	}
}
