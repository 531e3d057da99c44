// Package apperr defines the error taxonomy shared by the formulation,
// costing, inventory, recipe and production services.
package apperr

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

var (
	ErrValidation          = errors.New("validation failed")
	ErrCompositionOverflow = errors.New("composition exceeds 100%")
	ErrInsufficientStock   = errors.New("insufficient stock")
	ErrInvalidQuantity     = errors.New("invalid quantity")
	ErrStorage             = errors.New("storage failure")
	ErrNotFound            = errors.New("not found")
	ErrDuplicateName       = errors.New("duplicate name")
	ErrInUse               = errors.New("record is in use")
	ErrConflict            = errors.New("concurrent update")
)

// ValidationError reports malformed or missing input. No state was changed.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// Invalid builds a ValidationError for a single field.
func Invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// CompositionOverflow is returned when a line would push a recipe past 100%.
type CompositionOverflow struct {
	Requested float64
	Remaining float64
}

func (e *CompositionOverflow) Error() string {
	return fmt.Sprintf("composition would exceed 100%%: requested %.2f%%, available %.2f%%", e.Requested, e.Remaining)
}

func (e *CompositionOverflow) Is(target error) bool { return target == ErrCompositionOverflow }

// Shortfall describes one ingredient that cannot cover a production request.
type Shortfall struct {
	IngredientID uint    `json:"ingredient_id"`
	Name         string  `json:"name"`
	Required     float64 `json:"required"`
	Available    float64 `json:"available"`
}

// InsufficientStock lists every short ingredient of a production request.
type InsufficientStock struct {
	Shortfalls []Shortfall
}

// Names returns the short ingredient names in request order.
func (e *InsufficientStock) Names() []string {
	names := make([]string, 0, len(e.Shortfalls))
	for _, s := range e.Shortfalls {
		names = append(names, s.Name)
	}
	return names
}

func (e *InsufficientStock) Error() string {
	return "insufficient stock for: " + strings.Join(e.Names(), ", ")
}

func (e *InsufficientStock) Is(target error) bool { return target == ErrInsufficientStock }

// InvalidQuantity rejects a non-positive or fractional unit count.
type InvalidQuantity struct {
	Value float64
}

func (e *InvalidQuantity) Error() string {
	return fmt.Sprintf("units must be a positive whole number, got %v", e.Value)
}

func (e *InvalidQuantity) Is(target error) bool { return target == ErrInvalidQuantity }

// DuplicateName is the user-facing form of a unique-name constraint violation.
type DuplicateName struct {
	Entity string
	Name   string
}

func (e *DuplicateName) Error() string {
	return fmt.Sprintf("duplicate name: %s %q already exists", e.Entity, e.Name)
}

func (e *DuplicateName) Is(target error) bool { return target == ErrDuplicateName }

// StorageFailure wraps an error raised by the underlying store.
type StorageFailure struct {
	Op  string
	Err error
}

func (e *StorageFailure) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StorageFailure) Unwrap() error { return e.Err }

func (e *StorageFailure) Is(target error) bool { return target == ErrStorage }

// Storage wraps err as a StorageFailure. Errors that already belong to the
// taxonomy pass through untouched, record-not-found becomes ErrNotFound.
func Storage(op string, err error) error {
	if err == nil {
		return nil
	}
	if known(err) {
		return err
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return &StorageFailure{Op: op, Err: err}
}

// Named is Storage with duplicate-key translation for catalog entities.
func Named(op, entity, name string, err error) error {
	if err == nil {
		return nil
	}
	if IsDuplicateKey(err) {
		return &DuplicateName{Entity: entity, Name: name}
	}
	return Storage(op, err)
}

// IsDuplicateKey reports whether err is a unique constraint violation from
// postgres or sqlite.
func IsDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "unique constraint")
}

func known(err error) bool {
	for _, target := range []error{
		ErrValidation, ErrCompositionOverflow, ErrInsufficientStock, ErrInvalidQuantity,
		ErrNotFound, ErrDuplicateName, ErrInUse, ErrConflict, ErrStorage,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
