package handlers

import (
	"net/http"

	"formulary/internal/costing"
	"formulary/internal/formulation"
	applog "formulary/internal/log"
)

// draftRequest is the in-progress composition a client sends with every
// formulation call. The server keeps no draft state between requests.
type draftRequest struct {
	BatchWeight float64            `json:"batch_weight" validate:"gt=0"`
	Margin      float64            `json:"margin"`
	Lines       []formulation.Line `json:"lines"`
	Extras      []costing.Extra    `json:"extras"`
}

type formulateRequest struct {
	draftRequest
	IngredientID uint    `json:"ingredient_id" validate:"required"`
	Method       string  `json:"method" validate:"required,oneof=percentage grams fill_remaining"`
	Amount       float64 `json:"amount"`
}

type rescaleRequest struct {
	draftRequest
	NewBatchWeight float64 `json:"new_batch_weight" validate:"gt=0"`
}

type removeLineRequest struct {
	draftRequest
	Index *int `json:"index" validate:"required,gte=0"`
}

type attachExtraRequest struct {
	draftRequest
	OperationalCostID uint `json:"operational_cost_id" validate:"required"`
}

type draftResponse struct {
	BatchWeight float64            `json:"batch_weight"`
	Lines       []formulation.Line `json:"lines"`
	Extras      []costing.Extra    `json:"extras"`
	Added       *formulation.Line  `json:"added,omitempty"`
	costing.Summary
}

func respondDraft(w http.ResponseWriter, r *http.Request, draft *formulation.Draft, margin float64, extras []costing.Extra, added *formulation.Line) {
	lines := draft.Lines()
	summary, err := costing.Summarize(draft.BatchWeight(), margin, lines, extras)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if extras == nil {
		extras = []costing.Extra{}
	}
	writeJSON(w, http.StatusOK, draftResponse{
		BatchWeight: draft.BatchWeight(),
		Lines:       lines,
		Extras:      extras,
		Added:       added,
		Summary:     summary,
	})
}

// Formulate adds one ingredient line to the submitted draft. The line may
// be entered as a percentage, as grams, or as whatever percentage remains.
func Formulate(w http.ResponseWriter, r *http.Request) {
	if !available(w, r) {
		return
	}
	var req formulateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	method, err := formulation.ParseMethod(req.Method)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	draft, err := formulation.Restore(req.BatchWeight, req.Lines)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	ingredient, err := ledger.Get(r.Context(), req.IngredientID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	line, err := draft.AddLine(method, req.Amount, formulation.Ingredient{
		ID:       ingredient.ID,
		Name:     ingredient.Name,
		UnitCost: ingredient.UnitCost,
	})
	if err != nil {
		applog.Debug(r.Context(), "line rejected", "ingredient_id", req.IngredientID, "method", method, "error", err)
		writeServiceError(w, r, err)
		return
	}
	respondDraft(w, r, draft, req.Margin, req.Extras, &line)
}

// Rescale recomputes grams and costs of the submitted draft for a new batch
// weight, keeping every percentage.
func Rescale(w http.ResponseWriter, r *http.Request) {
	var req rescaleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	draft, err := formulation.Restore(req.BatchWeight, req.Lines)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if _, err := draft.Rescale(req.NewBatchWeight); err != nil {
		writeServiceError(w, r, err)
		return
	}
	respondDraft(w, r, draft, req.Margin, req.Extras, nil)
}

// RemoveLine drops the line at the submitted index from the draft.
func RemoveLine(w http.ResponseWriter, r *http.Request) {
	var req removeLineRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	draft, err := formulation.Restore(req.BatchWeight, req.Lines)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if err := draft.RemoveLine(*req.Index); err != nil {
		writeServiceError(w, r, err)
		return
	}
	respondDraft(w, r, draft, req.Margin, req.Extras, nil)
}

// AttachExtra adds an operational cost to the draft at its current price.
func AttachExtra(w http.ResponseWriter, r *http.Request) {
	if !available(w, r) {
		return
	}
	var req attachExtraRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	draft, err := formulation.Restore(req.BatchWeight, req.Lines)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	extras, err := recipeService.AttachExtra(r.Context(), req.Extras, req.OperationalCostID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	respondDraft(w, r, draft, req.Margin, extras, nil)
}

// RecipeDraft reloads a stored recipe as an editable draft priced at the
// current ingredient costs.
func RecipeDraft(w http.ResponseWriter, r *http.Request) {
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
	draft, extras, err := recipeService.LoadDraft(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	respondDraft(w, r, draft, detail.Margin, extras, nil)
}
