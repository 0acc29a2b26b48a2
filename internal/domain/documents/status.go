// Package documents holds what the workflow documents share: status guards
// and the error mapping of their repositories.
package documents

import (
	"slices"

	"stockledger/internal/core/apperror"
)

// RequireStatus returns an INVALID_STATUS error with msg unless current is
// one of allowed.
func RequireStatus[S ~string](current S, msg string, allowed ...S) error {
	if slices.Contains(allowed, current) {
		return nil
	}
	return apperror.NewInvalidStatus(msg, string(current))
}

// NotFound maps a repository NotFound to the entity's NotFound.
func NotFound(err error, entity string, id any) error {
	if apperror.IsNotFound(err) {
		return apperror.NewNotFound(entity, id)
	}
	return err
}
