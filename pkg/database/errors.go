package database

import (
	"strings"

	"github.com/lib/pq"

	"github.com/compraflow/compraflow-backend/pkg/errors"
)

// MapPQError converts a PostgreSQL error to an AppError with meaningful messages.
// Returns nil if the error is not a pq.Error.
func MapPQError(err error) *errors.AppError {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return nil
	}

	switch pqErr.Code {
	// Check constraint violation (23514)
	case "23514":
		return errors.BadRequest("data validation failed: " + pqErr.Constraint)

	// Unique constraint violation (23505)
	case "23505":
		return errors.Conflict(formatConstraintMessage(pqErr))

	// Foreign key violation (23503)
	case "23503":
		return errors.BadRequest("referenced record does not exist")

	// Not null violation (23502)
	case "23502":
		col := pqErr.Column
		if col == "" {
			col = "required field"
		}
		return errors.Validation(map[string]string{
			col: "must not be empty",
		})

	default:
		return nil
	}
}

// IsUniqueViolation reports whether the error is a unique constraint
// violation, optionally on a specific constraint. The reconciler uses this to
// detect a concurrent run winning the dedupe-key race.
func IsUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	if pqErr.Code != "23505" {
		return false
	}
	return constraint == "" || strings.Contains(pqErr.Constraint, constraint)
}

// formatConstraintMessage creates a user-friendly message for unique constraint violations.
func formatConstraintMessage(pqErr *pq.Error) string {
	constraint := pqErr.Constraint

	switch {
	case strings.Contains(constraint, "dedupe_key"):
		return "an automatic order for this supplier and window already exists"
	case strings.Contains(constraint, "code"):
		return "an order with this code already exists"
	case strings.Contains(constraint, "external_ref"):
		return "a kanban card for this order already exists"
	case strings.Contains(constraint, "sku"):
		return "an item with this SKU already exists"
	default:
		return "a record with these values already exists"
	}
}
