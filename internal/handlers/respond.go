package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"formulary/internal/apperr"
	applog "formulary/internal/log"
)

const maxBodyBytes = 1 << 20

type errorResponse struct {
	Error      string             `json:"error"`
	Field      string             `json:"field,omitempty"`
	Remaining  *float64           `json:"remaining,omitempty"`
	Shortfalls []apperr.Shortfall `json:"shortfalls,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		applog.Error(context.Background(), "failed to encode json response", "error", err)
	}
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// writeServiceError maps the service error taxonomy to HTTP statuses.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		invalid  *apperr.ValidationError
		overflow *apperr.CompositionOverflow
		short    *apperr.InsufficientStock
	)
	switch {
	case errors.As(err, &overflow):
		remaining := overflow.Remaining
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error(), Remaining: &remaining})
	case errors.As(err, &short):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error(), Shortfalls: short.Shortfalls})
	case errors.As(err, &invalid):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error(), Field: invalid.Field})
	case errors.Is(err, apperr.ErrInvalidQuantity):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error(), Field: "units"})
	case errors.Is(err, apperr.ErrDuplicateName), errors.Is(err, apperr.ErrInUse), errors.Is(err, apperr.ErrConflict):
		writeJSONError(w, http.StatusConflict, err.Error())
	case errors.Is(err, apperr.ErrNotFound):
		writeJSONError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		applog.Warn(r.Context(), "request abandoned", "path", r.URL.Path, "error", err)
		writeJSONError(w, http.StatusServiceUnavailable, "request cancelled")
	default:
		applog.Error(r.Context(), "request failed", "path", r.URL.Path, "error", err)
		writeJSONError(w, http.StatusInternalServerError, err.Error())
	}
}

// decodeJSON reads a JSON body into dst and validates its struct tags.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		applog.Debug(r.Context(), "invalid json payload", "path", r.URL.Path, "error", err)
		writeJSONError(w, http.StatusBadRequest, "invalid json payload: "+err.Error())
		return false
	}
	if err := validate.StructCtx(r.Context(), dst); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			writeServiceError(w, r, apperr.Invalid(fe.Field(), describeRule(fe)))
			return false
		}
		writeServiceError(w, r, err)
		return false
	}
	return true
}

func describeRule(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte":
		return "must be at least " + fe.Param()
	case "min":
		return fmt.Sprintf("needs at least %s entries", fe.Param())
	case "oneof":
		return "must be one of: " + fe.Param()
	default:
		return "is invalid"
	}
}

func jsonFieldName(field reflect.StructField) string {
	name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
	if name == "-" || name == "" {
		return field.Name
	}
	return name
}

// idParam reads a positive numeric URL parameter. It writes a 404 and
// returns false when the value is not an identifier.
func idParam(w http.ResponseWriter, r *http.Request, name string) (uint, bool) {
	raw := chi.URLParam(r, name)
	value, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || value == 0 {
		applog.Debug(r.Context(), "invalid identifier", "param", name, "value", raw)
		writeJSONError(w, http.StatusNotFound, "not found")
		return 0, false
	}
	return uint(value), true
}

// available reports whether the services are configured, writing a 503
// when they are not.
func available(w http.ResponseWriter, r *http.Request) bool {
	if database == nil {
		applog.Debug(r.Context(), "api request without database", "path", r.URL.Path)
		writeJSONError(w, http.StatusServiceUnavailable, "service unavailable")
		return false
	}
	return true
}
