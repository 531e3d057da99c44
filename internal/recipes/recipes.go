// Package recipes persists formulated recipes. Saving recomputes grams and
// cost from each line's percentage and unit cost snapshot, checks the
// composition ceiling and stores the costed totals. Edits replace the
// whole line and extra set inside one transaction.
package recipes

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"formulary/internal/apperr"
	"formulary/internal/costing"
	"formulary/internal/formulation"
	applog "formulary/internal/log"
	"formulary/models"
)

// CopyPrefix is prepended to the name of a duplicated recipe.
const CopyPrefix = "(Copy) "

// Input is everything a caller supplies to save a recipe. Extras carry the
// price snapshot taken by AttachExtra; it is stored as given and is not
// re-read from the operational cost, so later price changes do not move
// saved recipes.
type Input struct {
	Name        string
	BatchWeight float64
	Margin      float64
	Notes       string
	Lines       []formulation.Line
	Extras      []costing.Extra
}

// Detail is a persisted recipe with its lines, extras and costing.
type Detail struct {
	ID          uint               `json:"id"`
	Name        string             `json:"name"`
	BatchWeight float64            `json:"batch_weight"`
	Notes       string             `json:"notes"`
	Lines       []formulation.Line `json:"lines"`
	Extras      []costing.Extra    `json:"extras"`
	costing.Summary
}

// ListItem is one row of the recipe overview.
type ListItem struct {
	ID           uint    `json:"id"`
	Name         string  `json:"name"`
	BatchWeight  float64 `json:"batch_weight"`
	Margin       float64 `json:"margin"`
	TotalCost    float64 `json:"total_cost"`
	SalePrice    float64 `json:"sale_price"`
	CostPerGram  float64 `json:"cost_per_gram"`
	PricePerGram float64 `json:"price_per_gram"`
}

// Service stores and reads recipes.
type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// Create saves a new recipe and returns it as stored.
func (s *Service) Create(ctx context.Context, in Input) (*Detail, error) {
	var id uint
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		p, err := prepare(tx, in)
		if err != nil {
			return err
		}
		recipe := p.header()
		if err := tx.Omit(clause.Associations).Create(&recipe).Error; err != nil {
			return apperr.Storage("insert recipe", err)
		}
		id = recipe.ID
		return p.insertParts(tx, id)
	})
	if err != nil {
		applog.Error(ctx, "failed to create recipe", "name", in.Name, "error", err)
		return nil, err
	}
	applog.Debug(ctx, "recipe created", "recipe_id", id, "name", in.Name)
	return s.Get(ctx, id)
}

// Replace overwrites the header of recipe id and swaps its full line and
// extra set. Readers see either the old or the new set, never a mix.
func (s *Service) Replace(ctx context.Context, id uint, in Input) (*Detail, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.Recipe
		if err := tx.Select("id").First(&existing, id).Error; err != nil {
			return apperr.Storage(fmt.Sprintf("load recipe %d", id), err)
		}
		p, err := prepare(tx, in)
		if err != nil {
			return err
		}
		header := p.header()
		if err := tx.Model(&models.Recipe{}).Where("id = ?", id).Updates(map[string]any{
			"name":         header.Name,
			"batch_weight": header.BatchWeight,
			"margin":       header.Margin,
			"notes":        header.Notes,
			"total_cost":   header.TotalCost,
			"sale_price":   header.SalePrice,
		}).Error; err != nil {
			return apperr.Storage("update recipe", err)
		}
		if err := deleteParts(tx, id); err != nil {
			return err
		}
		return p.insertParts(tx, id)
	})
	if err != nil {
		applog.Error(ctx, "failed to replace recipe", "recipe_id", id, "error", err)
		return nil, err
	}
	applog.Debug(ctx, "recipe replaced", "recipe_id", id)
	return s.Get(ctx, id)
}

// Get loads a recipe with its lines in position order and its extras.
func (s *Service) Get(ctx context.Context, id uint) (*Detail, error) {
	var detail *Detail
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		recipe, err := load(tx, id)
		if err != nil {
			return err
		}
		detail, err = toDetail(recipe)
		return err
	}, readOptions(s.db)...)
	if err != nil {
		return nil, err
	}
	return detail, nil
}

// List returns every recipe ordered by name with per-gram figures.
func (s *Service) List(ctx context.Context) ([]ListItem, error) {
	var recipes []models.Recipe
	if err := s.db.WithContext(ctx).Order("name").Find(&recipes).Error; err != nil {
		return nil, apperr.Storage("list recipes", err)
	}
	items := make([]ListItem, 0, len(recipes))
	for _, r := range recipes {
		item := ListItem{
			ID:          r.ID,
			Name:        r.Name,
			BatchWeight: r.BatchWeight,
			Margin:      r.Margin,
			TotalCost:   r.TotalCost,
			SalePrice:   r.SalePrice,
		}
		// Stored batch weights are always positive; a bad row lists with zero per-gram values.
		item.CostPerGram, _ = costing.PerGram(r.TotalCost, r.BatchWeight)
		item.PricePerGram, _ = costing.PerGram(r.SalePrice, r.BatchWeight)
		items = append(items, item)
	}
	return items, nil
}

// Delete removes a recipe together with its lines and extras.
func (s *Service) Delete(ctx context.Context, id uint) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := deleteParts(tx, id); err != nil {
			return err
		}
		res := tx.Unscoped().Delete(&models.Recipe{}, id)
		if res.Error != nil {
			return apperr.Storage("delete recipe", res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("delete recipe %d: %w", id, apperr.ErrNotFound)
		}
		return nil
	})
	if err != nil {
		return err
	}
	applog.Debug(ctx, "recipe deleted", "recipe_id", id)
	return nil
}

// Duplicate copies a recipe, its lines, extras and totals under the name
// "(Copy) <name>".
func (s *Service) Duplicate(ctx context.Context, id uint) (*Detail, error) {
	var copyID uint
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		source, err := load(tx, id)
		if err != nil {
			return err
		}
		clone := models.Recipe{
			Name:        CopyPrefix + source.Name,
			BatchWeight: source.BatchWeight,
			Margin:      source.Margin,
			Notes:       source.Notes,
			TotalCost:   source.TotalCost,
			SalePrice:   source.SalePrice,
		}
		if err := tx.Omit(clause.Associations).Create(&clone).Error; err != nil {
			return apperr.Storage("insert recipe copy", err)
		}
		copyID = clone.ID

		lines := make([]models.RecipeLine, 0, len(source.Lines))
		for _, line := range source.Lines {
			lines = append(lines, models.RecipeLine{
				RecipeID:     clone.ID,
				Position:     line.Position,
				IngredientID: line.IngredientID,
				Percentage:   line.Percentage,
				Grams:        line.Grams,
				Cost:         line.Cost,
			})
		}
		extras := make([]models.RecipeExtra, 0, len(source.Extras))
		for _, extra := range source.Extras {
			extras = append(extras, models.RecipeExtra{
				RecipeID:          clone.ID,
				OperationalCostID: extra.OperationalCostID,
				Cost:              extra.Cost,
			})
		}
		return insertRows(tx, lines, extras)
	})
	if err != nil {
		applog.Error(ctx, "failed to duplicate recipe", "recipe_id", id, "error", err)
		return nil, err
	}
	applog.Debug(ctx, "recipe duplicated", "recipe_id", id, "copy_id", copyID)
	return s.Get(ctx, copyID)
}

// LoadDraft rebuilds an editable draft of a stored recipe. Each line takes
// its ingredient's current unit cost; lines whose ingredient has no stock
// cost keep the cost per gram of their snapshot.
func (s *Service) LoadDraft(ctx context.Context, id uint) (*formulation.Draft, []costing.Extra, error) {
	detail, err := s.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	ids := make([]uint, 0, len(detail.Lines))
	for _, line := range detail.Lines {
		ids = append(ids, line.IngredientID)
	}
	current := map[uint]models.Ingredient{}
	if len(ids) > 0 {
		var ingredients []models.Ingredient
		if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&ingredients).Error; err != nil {
			return nil, nil, apperr.Storage("load draft ingredients", err)
		}
		for _, ingredient := range ingredients {
			current[ingredient.ID] = ingredient
		}
	}

	lines := make([]formulation.Line, len(detail.Lines))
	for i, line := range detail.Lines {
		if ingredient, ok := current[line.IngredientID]; ok && ingredient.UnitCost > 0 {
			line.UnitCost = ingredient.UnitCost
			line.Name = ingredient.Name
		}
		line.Method = formulation.MethodPercentage
		lines[i] = line
	}

	draft, err := formulation.Restore(detail.BatchWeight, lines)
	if err != nil {
		return nil, nil, err
	}
	if _, err := draft.Rescale(detail.BatchWeight); err != nil {
		return nil, nil, err
	}
	return draft, detail.Extras, nil
}

// AttachExtra appends operational cost costID to extras, capturing its
// current price. A cost may be attached once.
func (s *Service) AttachExtra(ctx context.Context, extras []costing.Extra, costID uint) ([]costing.Extra, error) {
	for _, extra := range extras {
		if extra.OperationalCostID == costID {
			return nil, apperr.Invalid("operational_cost_id", "is already attached")
		}
	}
	var cost models.OperationalCost
	if err := s.db.WithContext(ctx).First(&cost, costID).Error; err != nil {
		return nil, apperr.Storage(fmt.Sprintf("load operational cost %d", costID), err)
	}
	out := make([]costing.Extra, 0, len(extras)+1)
	out = append(out, extras...)
	return append(out, costing.Extra{OperationalCostID: cost.ID, Name: cost.Name, Cost: cost.Price}), nil
}

type prepared struct {
	in      Input
	lines   []formulation.Line
	extras  []costing.Extra
	summary costing.Summary
}

// prepare validates in, recomputes every line from its percentage and
// checks that referenced ingredients and costs exist.
func prepare(tx *gorm.DB, in Input) (*prepared, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return nil, apperr.Invalid("name", "is required")
	}
	if !finite(in.BatchWeight) || in.BatchWeight <= 0 {
		return nil, apperr.Invalid("batch_weight", "must be greater than zero")
	}
	if !finite(in.Margin) || in.Margin < 0 {
		return nil, apperr.Invalid("margin", "must be zero or greater")
	}
	if len(in.Lines) == 0 {
		return nil, apperr.Invalid("lines", "at least one ingredient is required")
	}

	lines := make([]formulation.Line, len(in.Lines))
	ingredientIDs := make([]uint, 0, len(in.Lines))
	for i, line := range in.Lines {
		if line.IngredientID == 0 {
			return nil, apperr.Invalid(fmt.Sprintf("lines[%d].ingredient_id", i), "is required")
		}
		if !finite(line.Percentage) || line.Percentage <= 0 {
			return nil, apperr.Invalid(fmt.Sprintf("lines[%d].percentage", i), "must be greater than zero")
		}
		if line.UnitCost == 0 && line.Cost > 0 && line.Grams > 0 {
			line.UnitCost = line.Cost / line.Grams
		}
		if !finite(line.UnitCost) || line.UnitCost < 0 {
			return nil, apperr.Invalid(fmt.Sprintf("lines[%d].unit_cost", i), "must not be negative")
		}
		line.Grams = formulation.GramsFor(line.Percentage, in.BatchWeight)
		line.Cost = line.Grams * line.UnitCost
		lines[i] = line
		ingredientIDs = append(ingredientIDs, line.IngredientID)
	}
	if err := formulation.CheckCeiling(lines); err != nil {
		return nil, err
	}

	extras := make([]costing.Extra, len(in.Extras))
	costIDs := make([]uint, 0, len(in.Extras))
	seen := map[uint]bool{}
	for i, extra := range in.Extras {
		if extra.OperationalCostID == 0 {
			return nil, apperr.Invalid(fmt.Sprintf("extras[%d].operational_cost_id", i), "is required")
		}
		if seen[extra.OperationalCostID] {
			return nil, apperr.Invalid(fmt.Sprintf("extras[%d].operational_cost_id", i), "is attached more than once")
		}
		seen[extra.OperationalCostID] = true
		if !finite(extra.Cost) || extra.Cost < 0 {
			return nil, apperr.Invalid(fmt.Sprintf("extras[%d].cost", i), "must not be negative")
		}
		extras[i] = extra
		costIDs = append(costIDs, extra.OperationalCostID)
	}

	names, err := ingredientNames(tx, ingredientIDs)
	if err != nil {
		return nil, err
	}
	for i := range lines {
		name, ok := names[lines[i].IngredientID]
		if !ok {
			return nil, apperr.Invalid(fmt.Sprintf("lines[%d].ingredient_id", i), "unknown ingredient")
		}
		lines[i].Name = name
	}
	extraNames, err := costNames(tx, costIDs)
	if err != nil {
		return nil, err
	}
	for i := range extras {
		name, ok := extraNames[extras[i].OperationalCostID]
		if !ok {
			return nil, apperr.Invalid(fmt.Sprintf("extras[%d].operational_cost_id", i), "unknown operational cost")
		}
		extras[i].Name = name
	}

	summary, err := costing.Summarize(in.BatchWeight, in.Margin, lines, extras)
	if err != nil {
		return nil, err
	}
	return &prepared{in: in, lines: lines, extras: extras, summary: summary}, nil
}

func (p *prepared) header() models.Recipe {
	return models.Recipe{
		Name:        p.in.Name,
		BatchWeight: p.in.BatchWeight,
		Margin:      p.in.Margin,
		Notes:       p.in.Notes,
		TotalCost:   p.summary.TotalCost,
		SalePrice:   p.summary.SalePrice,
	}
}

func (p *prepared) insertParts(tx *gorm.DB, recipeID uint) error {
	lines := make([]models.RecipeLine, 0, len(p.lines))
	for i, line := range p.lines {
		lines = append(lines, models.RecipeLine{
			RecipeID:     recipeID,
			Position:     i,
			IngredientID: line.IngredientID,
			Percentage:   line.Percentage,
			Grams:        line.Grams,
			Cost:         line.Cost,
		})
	}
	extras := make([]models.RecipeExtra, 0, len(p.extras))
	for _, extra := range p.extras {
		extras = append(extras, models.RecipeExtra{
			RecipeID:          recipeID,
			OperationalCostID: extra.OperationalCostID,
			Cost:              extra.Cost,
		})
	}
	return insertRows(tx, lines, extras)
}

func insertRows(tx *gorm.DB, lines []models.RecipeLine, extras []models.RecipeExtra) error {
	if len(lines) > 0 {
		if err := tx.Omit(clause.Associations).Create(&lines).Error; err != nil {
			return apperr.Storage("insert recipe lines", err)
		}
	}
	if len(extras) > 0 {
		if err := tx.Omit(clause.Associations).Create(&extras).Error; err != nil {
			return apperr.Storage("insert recipe extras", err)
		}
	}
	return nil
}

func deleteParts(tx *gorm.DB, recipeID uint) error {
	if err := tx.Where("recipe_id = ?", recipeID).Delete(&models.RecipeLine{}).Error; err != nil {
		return apperr.Storage("delete recipe lines", err)
	}
	if err := tx.Where("recipe_id = ?", recipeID).Delete(&models.RecipeExtra{}).Error; err != nil {
		return apperr.Storage("delete recipe extras", err)
	}
	return nil
}

func load(tx *gorm.DB, id uint) (*models.Recipe, error) {
	var recipe models.Recipe
	err := tx.
		Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Order("position") }).
		Preload("Lines.Ingredient").
		Preload("Extras", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Preload("Extras.OperationalCost").
		First(&recipe, id).Error
	if err != nil {
		return nil, apperr.Storage(fmt.Sprintf("load recipe %d", id), err)
	}
	return &recipe, nil
}

func toDetail(recipe *models.Recipe) (*Detail, error) {
	lines := make([]formulation.Line, 0, len(recipe.Lines))
	for _, l := range recipe.Lines {
		line := formulation.Line{
			IngredientID: l.IngredientID,
			Percentage:   l.Percentage,
			Grams:        l.Grams,
			Cost:         l.Cost,
		}
		if l.Grams > 0 {
			line.UnitCost = l.Cost / l.Grams
		}
		if l.Ingredient != nil {
			line.Name = l.Ingredient.Name
		}
		lines = append(lines, line)
	}
	extras := make([]costing.Extra, 0, len(recipe.Extras))
	for _, e := range recipe.Extras {
		extra := costing.Extra{OperationalCostID: e.OperationalCostID, Cost: e.Cost}
		if e.OperationalCost != nil {
			extra.Name = e.OperationalCost.Name
		}
		extras = append(extras, extra)
	}

	summary, err := costing.Summarize(recipe.BatchWeight, recipe.Margin, lines, extras)
	if err != nil {
		return nil, err
	}
	return &Detail{
		ID:          recipe.ID,
		Name:        recipe.Name,
		BatchWeight: recipe.BatchWeight,
		Notes:       recipe.Notes,
		Lines:       lines,
		Extras:      extras,
		Summary:     summary,
	}, nil
}

func ingredientNames(tx *gorm.DB, ids []uint) (map[uint]string, error) {
	out := map[uint]string{}
	if len(ids) == 0 {
		return out, nil
	}
	var rows []models.Ingredient
	if err := tx.Select("id", "name").Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, apperr.Storage("load recipe ingredients", err)
	}
	for _, row := range rows {
		out[row.ID] = row.Name
	}
	return out, nil
}

func costNames(tx *gorm.DB, ids []uint) (map[uint]string, error) {
	out := map[uint]string{}
	if len(ids) == 0 {
		return out, nil
	}
	var rows []models.OperationalCost
	if err := tx.Select("id", "name").Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, apperr.Storage("load recipe operational costs", err)
	}
	for _, row := range rows {
		out[row.ID] = row.Name
	}
	return out, nil
}

// readOptions asks postgres for a single snapshot across the preload
// queries of one read.
func readOptions(db *gorm.DB) []*sql.TxOptions {
	if db.Dialector.Name() != "postgres" {
		return nil
	}
	return []*sql.TxOptions{{Isolation: sql.LevelRepeatableRead, ReadOnly: true}}
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
