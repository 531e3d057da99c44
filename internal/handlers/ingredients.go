package handlers

import (
	"net/http"

	applog "formulary/internal/log"
)

type ingredientRequest struct {
	Name      string   `json:"name" validate:"required"`
	Stock     *float64 `json:"stock" validate:"required,gte=0"`
	TotalCost *float64 `json:"total_cost" validate:"required,gte=0"`
}

type stockRequest struct {
	Stock     *float64 `json:"stock" validate:"required,gte=0"`
	TotalCost *float64 `json:"total_cost" validate:"required,gte=0"`
}

type topUpRequest struct {
	Quantity float64  `json:"quantity" validate:"gt=0"`
	Cost     *float64 `json:"cost" validate:"required,gte=0"`
}

type renameRequest struct {
	Name string `json:"name" validate:"required"`
}

// ListIngredients returns the ledger ordered by name.
func ListIngredients(w http.ResponseWriter, r *http.Request) {
	if !available(w, r) {
		return
	}
	items, err := ledger.List(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// CreateIngredient registers a raw material with its opening stock.
func CreateIngredient(w http.ResponseWriter, r *http.Request) {
	if !available(w, r) {
		return
	}
	var req ingredientRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	ingredient, err := ledger.Create(r.Context(), req.Name, *req.Stock, *req.TotalCost)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	applog.Info(r.Context(), "ingredient created", "ingredient_id", ingredient.ID, "name", ingredient.Name)
	writeJSON(w, http.StatusCreated, ingredient)
}

// GetIngredient returns one ingredient.
func GetIngredient(w http.ResponseWriter, r *http.Request) {
	if !available(w, r) {
		return
	}
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	ingredient, err := ledger.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ingredient)
}

// OverwriteIngredient replaces the stock and total cost of an ingredient.
func OverwriteIngredient(w http.ResponseWriter, r *http.Request) {
	if !available(w, r) {
		return
	}
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	var req stockRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	ingredient, err := ledger.Overwrite(r.Context(), id, *req.Stock, *req.TotalCost)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	applog.Info(r.Context(), "ingredient stock overwritten", "ingredient_id", id, "stock", ingredient.Stock)
	writeJSON(w, http.StatusOK, ingredient)
}

// TopUpIngredient adds a purchase to an ingredient's stock.
func TopUpIngredient(w http.ResponseWriter, r *http.Request) {
	if !available(w, r) {
		return
	}
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	var req topUpRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	ingredient, err := ledger.TopUp(r.Context(), id, req.Quantity, *req.Cost)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	applog.Info(r.Context(), "ingredient topped up", "ingredient_id", id, "quantity", req.Quantity)
	writeJSON(w, http.StatusOK, ingredient)
}

// RenameIngredient changes an ingredient's name.
func RenameIngredient(w http.ResponseWriter, r *http.Request) {
	if !available(w, r) {
		return
	}
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	var req renameRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	ingredient, err := ledger.Rename(r.Context(), id, req.Name)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ingredient)
}

// DeleteIngredient removes an ingredient no recipe references.
func DeleteIngredient(w http.ResponseWriter, r *http.Request) {
	if !available(w, r) {
		return
	}
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	if err := ledger.Delete(r.Context(), id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	applog.Info(r.Context(), "ingredient deleted", "ingredient_id", id)
	w.WriteHeader(http.StatusNoContent)
}
