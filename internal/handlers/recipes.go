package handlers

import (
	"net/http"

	"formulary/internal/costing"
	"formulary/internal/formulation"
	applog "formulary/internal/log"
	"formulary/internal/recipes"
	"formulary/internal/views/sheets"
)

type recipeRequest struct {
	Name        string             `json:"name" validate:"required"`
	BatchWeight float64            `json:"batch_weight" validate:"gt=0"`
	Margin      float64            `json:"margin" validate:"gte=0"`
	Notes       string             `json:"notes"`
	Lines       []formulation.Line `json:"lines"`
	Extras      []costing.Extra    `json:"extras"`
}

func (req recipeRequest) input() recipes.Input {
	return recipes.Input{
		Name:        req.Name,
		BatchWeight: req.BatchWeight,
		Margin:      req.Margin,
		Notes:       req.Notes,
		Lines:       req.Lines,
		Extras:      req.Extras,
	}
}

// ListRecipes returns every recipe with its stored totals.
func ListRecipes(w http.ResponseWriter, r *http.Request) {
	if !available(w, r) {
		return
	}
	items, err := recipeService.List(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// CreateRecipe saves a formulated recipe.
func CreateRecipe(w http.ResponseWriter, r *http.Request) {
	if !available(w, r) {
		return
	}
	var req recipeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	detail, err := recipeService.Create(r.Context(), req.input())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	applog.Info(r.Context(), "recipe saved", "recipe_id", detail.ID, "name", detail.Name)
	writeJSON(w, http.StatusCreated, detail)
}

// GetRecipe returns a recipe with its lines, extras and costing.
func GetRecipe(w http.ResponseWriter, r *http.Request) {
	if !available(w, r) {
		return
	}
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	detail, err := recipeService.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// ReplaceRecipe overwrites a recipe and its full line set.
func ReplaceRecipe(w http.ResponseWriter, r *http.Request) {
	if !available(w, r) {
		return
	}
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	var req recipeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	detail, err := recipeService.Replace(r.Context(), id, req.input())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	applog.Info(r.Context(), "recipe updated", "recipe_id", id)
	writeJSON(w, http.StatusOK, detail)
}

// DeleteRecipe removes a recipe with its lines and extras.
func DeleteRecipe(w http.ResponseWriter, r *http.Request) {
	if !available(w, r) {
		return
	}
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	if err := recipeService.Delete(r.Context(), id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	applog.Info(r.Context(), "recipe deleted", "recipe_id", id)
	w.WriteHeader(http.StatusNoContent)
}

// DuplicateRecipe copies a recipe under a "(Copy) " name.
func DuplicateRecipe(w http.ResponseWriter, r *http.Request) {
	if !available(w, r) {
		return
	}
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	detail, err := recipeService.Duplicate(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, detail)
}

// RecipeSheet renders a printable costing sheet.
func RecipeSheet(w http.ResponseWriter, r *http.Request) {
	if !available(w, r) {
		return
	}
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	detail, err := recipeService.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	renderHTML(w, r, sheets.RecipeSheet(detail))
}
