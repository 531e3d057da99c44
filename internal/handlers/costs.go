package handlers

import (
	"net/http"

	applog "formulary/internal/log"
)

type costRequest struct {
	Name  string   `json:"name" validate:"required"`
	Price *float64 `json:"price" validate:"required,gte=0"`
}

// ListCosts returns the operational cost catalog.
func ListCosts(w http.ResponseWriter, r *http.Request) {
	if !available(w, r) {
		return
	}
	items, err := catalog.List(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// CreateCost adds an operational cost.
func CreateCost(w http.ResponseWriter, r *http.Request) {
	if !available(w, r) {
		return
	}
	var req costRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	cost, err := catalog.Create(r.Context(), req.Name, *req.Price)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	applog.Info(r.Context(), "operational cost created", "cost_id", cost.ID)
	writeJSON(w, http.StatusCreated, cost)
}

// UpdateCost changes the name and price of an operational cost. Recipes
// keep the price captured when the cost was attached.
func UpdateCost(w http.ResponseWriter, r *http.Request) {
	if !available(w, r) {
		return
	}
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	var req costRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	cost, err := catalog.Update(r.Context(), id, req.Name, *req.Price)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cost)
}

// DeleteCost removes an operational cost no recipe uses.
func DeleteCost(w http.ResponseWriter, r *http.Request) {
	if !available(w, r) {
		return
	}
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	if err := catalog.Delete(r.Context(), id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
