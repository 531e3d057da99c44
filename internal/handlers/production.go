package handlers

import (
	"net/http"
	"time"

	"github.com/a-h/templ"

	applog "formulary/internal/log"
	"formulary/internal/production"
	"formulary/internal/views/sheets"
)

type productionRequest struct {
	RecipeID uint    `json:"recipe_id" validate:"required"`
	Units    float64 `json:"units"`
}

func (req productionRequest) units(w http.ResponseWriter, r *http.Request) (int, bool) {
	units, err := production.Units(req.Units)
	if err != nil {
		writeServiceError(w, r, err)
		return 0, false
	}
	return units, true
}

// PlanProduction previews the stock a production request would consume.
func PlanProduction(w http.ResponseWriter, r *http.Request) {
	if !available(w, r) {
		return
	}
	var req productionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	units, ok := req.units(w, r)
	if !ok {
		return
	}
	plan, err := transactor.Plan(r.Context(), req.RecipeID, units)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

// Produce deducts the ingredients for a number of units of a recipe. With
// ?format=ticket the committed run is rendered as a printable pick list.
func Produce(w http.ResponseWriter, r *http.Request) {
	if !available(w, r) {
		return
	}
	var req productionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	units, ok := req.units(w, r)
	if !ok {
		return
	}
	result, err := transactor.Produce(r.Context(), req.RecipeID, units)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if r.URL.Query().Get("format") == "ticket" {
		renderHTML(w, r, sheets.ProductionTicket(result, time.Now()))
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func renderHTML(w http.ResponseWriter, r *http.Request, component templ.Component) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := component.Render(r.Context(), w); err != nil {
		applog.Error(r.Context(), "failed to render page", "path", r.URL.Path, "error", err)
		http.Error(w, "failed to render page", http.StatusInternalServerError)
	}
}
